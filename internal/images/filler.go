package images

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/markis/gh-slides/internal/config"
	"github.com/markis/gh-slides/internal/slides"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxDelay  = 8 * time.Second
)

// State is the generation state of one slide's image.
type State int

const (
	StateNone State = iota
	StatePending
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "none"
	}
}

// Status is the image status tracked for a slide.
type Status struct {
	State      State
	Query      string
	LayoutType string
	URL        string
	Err        error
}

// Filler generates root images for slides in the background and merges the
// results back into parsed slides.
type Filler struct {
	gen     Generator
	logger  zerolog.Logger
	limiter *rate.Limiter
	sem     chan struct{}
	retries int

	baseDelay time.Duration
	maxDelay  time.Duration

	mu     sync.Mutex
	status map[string]Status
	wg     sync.WaitGroup
}

// FillerOption configures a Filler.
type FillerOption func(*Filler)

// WithBackoff overrides the retry backoff delays.
func WithBackoff(base, maxDelay time.Duration) FillerOption {
	return func(f *Filler) {
		f.baseDelay = base
		f.maxDelay = maxDelay
	}
}

// NewFiller creates a Filler around gen using the concurrency, rate and
// retry settings of cfg.
func NewFiller(gen Generator, cfg config.Images, logger zerolog.Logger, opts ...FillerOption) *Filler {
	concurrency := max(cfg.Concurrency, 1)

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	f := &Filler{
		gen:       gen,
		logger:    logger.With().Str("component", "images").Logger(),
		limiter:   rate.NewLimiter(limit, concurrency),
		sem:       make(chan struct{}, concurrency),
		retries:   max(cfg.Retries, 0),
		baseDelay: defaultBaseDelay,
		maxDelay:  defaultMaxDelay,
		status:    make(map[string]Status),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Ensure starts generating the image for a slide unless the same query is
// already pending, done or failed. A changed query replaces the previous one.
// It reports whether work was started.
func (f *Filler) Ensure(ctx context.Context, slideID string, img *slides.RootImage) bool {
	if img == nil || img.Query == "" || img.URL != "" {
		return false
	}

	f.mu.Lock()
	if st, ok := f.status[slideID]; ok && st.Query == img.Query {
		f.mu.Unlock()
		return false
	}
	f.status[slideID] = Status{State: StatePending, Query: img.Query, LayoutType: img.LayoutType}
	f.mu.Unlock()

	f.start(ctx, slideID, img.Query, img.LayoutType)
	return true
}

// Retry restarts generation for a slide whose image failed. It reports
// whether work was started.
func (f *Filler) Retry(ctx context.Context, slideID string) bool {
	f.mu.Lock()
	st, ok := f.status[slideID]
	if !ok || st.State != StateFailed {
		f.mu.Unlock()
		return false
	}
	f.status[slideID] = Status{State: StatePending, Query: st.Query, LayoutType: st.LayoutType}
	f.mu.Unlock()

	f.start(ctx, slideID, st.Query, st.LayoutType)
	return true
}

func (f *Filler) start(ctx context.Context, slideID, query, layoutType string) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.run(ctx, slideID, query, layoutType)
	}()
}

func (f *Filler) run(ctx context.Context, slideID, query, layoutType string) {
	logger := f.logger.With().Str("slide", slideID).Str("query", query).Logger()

	select {
	case f.sem <- struct{}{}:
		defer func() { <-f.sem }()
	case <-ctx.Done():
		f.set(slideID, Status{State: StateFailed, Query: query, LayoutType: layoutType, Err: ctx.Err()})
		return
	}

	var err error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			delay := f.backoffDelay(attempt)
			logger.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying image")
			if err = sleep(ctx, delay); err != nil {
				break
			}
		}

		if err = f.limiter.Wait(ctx); err != nil {
			break
		}

		var imageURL string
		imageURL, err = f.gen.Generate(ctx, query, layoutType)
		if err == nil {
			logger.Debug().Str("url", imageURL).Msg("image ready")
			f.set(slideID, Status{State: StateDone, Query: query, LayoutType: layoutType, URL: imageURL})
			return
		}
		if !retryable(err) {
			break
		}
	}

	logger.Warn().Err(err).Msg("image generation failed")
	f.set(slideID, Status{State: StateFailed, Query: query, LayoutType: layoutType, Err: err})
}

func (f *Filler) set(slideID string, st Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// A newer query for the same slide replaced this one.
	if cur, ok := f.status[slideID]; ok && cur.Query != st.Query {
		return
	}
	f.status[slideID] = st
}

func (f *Filler) backoffDelay(attempt int) time.Duration {
	if f.baseDelay <= 0 {
		return 0
	}
	delay := f.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if f.maxDelay > 0 && delay >= f.maxDelay {
			return f.maxDelay
		}
	}
	return delay
}

func retryable(err error) bool {
	if errors.Is(err, ErrNoImage) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the tracked status of a slide's image.
func (f *Filler) Status(slideID string) Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status[slideID]
}

// Merge returns a copy of deck with generated URLs filled into root images
// that do not have one yet.
func (f *Filler) Merge(deck []slides.Slide) []slides.Slide {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]slides.Slide, len(deck))
	for i, s := range deck {
		out[i] = s
		if s.RootImage == nil || s.RootImage.URL != "" {
			continue
		}
		st, ok := f.status[s.ID]
		if !ok || st.State != StateDone || st.Query != s.RootImage.Query {
			continue
		}
		img := *s.RootImage
		img.URL = st.URL
		out[i].RootImage = &img
	}
	return out
}

// Wait blocks until every started generation has finished or ctx is done.
func (f *Filler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
