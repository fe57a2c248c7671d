// Package images resolves slide image queries into image URLs.
package images

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/markis/gh-slides/internal/config"
)

// Image sources accepted in configuration.
const (
	SourceAI    = "ai"
	SourceStock = "stock"
	SourceNone  = "none"
)

const (
	pollinationsURL = "https://image.pollinations.ai"
	unsplashURL     = "https://api.unsplash.com"
)

// ErrNoImage is returned when a source has nothing for a query.
var ErrNoImage = errors.New("no image found")

// Generator turns an image query into a URL.
type Generator interface {
	Generate(ctx context.Context, query, layoutType string) (string, error)
}

// StatusError reports a non-200 response from an image source.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("image request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("image request failed with status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// NewGenerator returns the generator for cfg.Source. SourceNone yields nil.
func NewGenerator(cfg config.Images) (Generator, error) {
	switch strings.ToLower(cfg.Source) {
	case SourceAI, "":
		return NewPollinations(cfg), nil
	case SourceStock:
		key := os.Getenv(cfg.UnsplashKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("stock images need an access key in $%s", cfg.UnsplashKeyEnv)
		}
		return NewUnsplash(key, cfg.Timeout), nil
	case SourceNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown image source %q", cfg.Source)
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// Pollinations generates images with the Pollinations text-to-image API.
type Pollinations struct {
	BaseURL string
	Model   string
	Width   int
	Height  int
	HTTP    *http.Client
}

// NewPollinations creates a Pollinations generator from the image config.
func NewPollinations(cfg config.Images) *Pollinations {
	return &Pollinations{
		BaseURL: pollinationsURL,
		Model:   cfg.Model,
		Width:   cfg.Width,
		Height:  cfg.Height,
		HTTP:    &http.Client{Timeout: cfg.Timeout},
	}
}

// URL returns the image URL for query.
func (p *Pollinations) URL(query string) string {
	v := url.Values{}
	v.Set("width", strconv.Itoa(p.Width))
	v.Set("height", strconv.Itoa(p.Height))
	if p.Model != "" {
		v.Set("model", p.Model)
	}
	return strings.TrimRight(p.BaseURL, "/") + "/prompt/" + url.PathEscape(query) + "?" + v.Encode()
}

// Generate requests the image so it is rendered and cached upstream, then
// returns its URL.
func (p *Pollinations) Generate(ctx context.Context, query, _ string) (string, error) {
	imageURL := p.URL(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("image request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}

	return imageURL, nil
}

// Unsplash searches stock photos.
type Unsplash struct {
	BaseURL   string
	AccessKey string
	HTTP      *http.Client
}

// NewUnsplash creates an Unsplash search client.
func NewUnsplash(accessKey string, timeout time.Duration) *Unsplash {
	return &Unsplash{
		BaseURL:   unsplashURL,
		AccessKey: accessKey,
		HTTP:      &http.Client{Timeout: timeout},
	}
}

type unsplashSearch struct {
	Results []struct {
		URLs struct {
			Regular string `json:"regular"`
		} `json:"urls"`
	} `json:"results"`
}

func orientation(layoutType string) string {
	if layoutType == "vertical" {
		return "portrait"
	}
	return "landscape"
}

// Generate returns the first photo matching query.
func (u *Unsplash) Generate(ctx context.Context, query, layoutType string) (string, error) {
	v := url.Values{}
	v.Set("query", query)
	v.Set("per_page", "1")
	v.Set("orientation", orientation(layoutType))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(u.BaseURL, "/")+"/search/photos?"+v.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+u.AccessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := u.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("image search failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var result unsplashSearch
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode search results: %w", err)
	}
	if len(result.Results) == 0 || result.Results[0].URLs.Regular == "" {
		return "", fmt.Errorf("%w for %q", ErrNoImage, query)
	}
	return result.Results[0].URLs.Regular, nil
}
