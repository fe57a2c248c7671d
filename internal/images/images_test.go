package images

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/markis/gh-slides/internal/config"
	"github.com/markis/gh-slides/internal/slides"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	mu       sync.Mutex
	calls    map[string]int
	failures int
	err      error
}

func (g *fakeGenerator) Generate(ctx context.Context, query, layoutType string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = map[string]int{}
	}
	g.calls[query]++
	if g.calls[query] <= g.failures {
		return "", g.err
	}
	return "https://img.test/" + query + "?layout=" + layoutType, nil
}

func (g *fakeGenerator) count(query string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[query]
}

func testImagesConfig() config.Images {
	return config.Images{Concurrency: 2, RatePerSecond: 0, Retries: 2}
}

func TestFiller_EnsureAndMerge(t *testing.T) {
	gen := &fakeGenerator{}
	f := NewFiller(gen, testImagesConfig(), zerolog.Nop(), WithBackoff(0, 0))
	ctx := context.Background()

	deck := []slides.Slide{
		{ID: "s1", RootImage: &slides.RootImage{Query: "mountains", LayoutType: "left"}},
		{ID: "s2"},
		{ID: "s3", RootImage: &slides.RootImage{Query: "done", URL: "https://already"}},
	}

	assert.True(t, f.Ensure(ctx, "s1", deck[0].RootImage))
	assert.False(t, f.Ensure(ctx, "s1", deck[0].RootImage), "second ensure is a no-op")
	assert.False(t, f.Ensure(ctx, "s2", deck[1].RootImage))
	assert.False(t, f.Ensure(ctx, "s3", deck[2].RootImage))

	require.NoError(t, f.Wait(ctx))
	assert.Equal(t, 1, gen.count("mountains"))
	assert.Equal(t, StateDone, f.Status("s1").State)

	merged := f.Merge(deck)
	assert.Equal(t, "https://img.test/mountains?layout=left", merged[0].RootImage.URL)
	assert.Empty(t, deck[0].RootImage.URL, "input is not mutated")
	assert.Nil(t, merged[1].RootImage)
	assert.Equal(t, "https://already", merged[2].RootImage.URL)
}

func TestFiller_RetriesTemporaryErrors(t *testing.T) {
	gen := &fakeGenerator{failures: 2, err: &StatusError{StatusCode: http.StatusServiceUnavailable}}
	f := NewFiller(gen, testImagesConfig(), zerolog.Nop(), WithBackoff(time.Millisecond, 2*time.Millisecond))
	ctx := context.Background()

	f.Ensure(ctx, "s1", &slides.RootImage{Query: "q"})
	require.NoError(t, f.Wait(ctx))

	assert.Equal(t, 3, gen.count("q"))
	assert.Equal(t, StateDone, f.Status("s1").State)
}

func TestFiller_PermanentFailureCanBeRetried(t *testing.T) {
	gen := &fakeGenerator{failures: 1, err: &StatusError{StatusCode: http.StatusBadRequest}}
	f := NewFiller(gen, testImagesConfig(), zerolog.Nop(), WithBackoff(0, 0))
	ctx := context.Background()
	img := &slides.RootImage{Query: "q", LayoutType: "left"}

	f.Ensure(ctx, "s1", img)
	require.NoError(t, f.Wait(ctx))
	st := f.Status("s1")
	assert.Equal(t, StateFailed, st.State)
	assert.Error(t, st.Err)
	assert.Equal(t, 1, gen.count("q"))

	assert.False(t, f.Ensure(ctx, "s1", img), "ensure does not restart a failed query")
	assert.False(t, f.Retry(ctx, "missing"))
	assert.True(t, f.Retry(ctx, "s1"))
	require.NoError(t, f.Wait(ctx))
	st = f.Status("s1")
	assert.Equal(t, StateDone, st.State)
	assert.Equal(t, "https://img.test/q?layout=left", st.URL)
	assert.False(t, f.Retry(ctx, "s1"), "done slides are not retried")
}

func TestFiller_RepeatedEnsureDoesNotRestartFailures(t *testing.T) {
	cfg := testImagesConfig()
	for name, err := range map[string]error{
		"temporary": &StatusError{StatusCode: http.StatusServiceUnavailable},
		"permanent": ErrNoImage,
	} {
		t.Run(name, func(t *testing.T) {
			gen := &fakeGenerator{failures: 100, err: err}
			f := NewFiller(gen, cfg, zerolog.Nop(), WithBackoff(0, 0))
			ctx := context.Background()
			img := &slides.RootImage{Query: "q"}

			for i := 0; i < 20; i++ {
				f.Ensure(ctx, "s1", img)
				require.NoError(t, f.Wait(ctx))
			}

			want := 1
			if name == "temporary" {
				want = cfg.Retries + 1
			}
			assert.Equal(t, want, gen.count("q"))
			assert.Equal(t, StateFailed, f.Status("s1").State)
		})
	}
}

func TestFiller_ChangedQueryRestarts(t *testing.T) {
	gen := &fakeGenerator{failures: 1, err: ErrNoImage}
	f := NewFiller(gen, testImagesConfig(), zerolog.Nop(), WithBackoff(0, 0))
	ctx := context.Background()

	f.Ensure(ctx, "s1", &slides.RootImage{Query: "first"})
	require.NoError(t, f.Wait(ctx))
	assert.Equal(t, StateFailed, f.Status("s1").State)

	assert.True(t, f.Ensure(ctx, "s1", &slides.RootImage{Query: "second"}))
	require.NoError(t, f.Wait(ctx))
	st := f.Status("s1")
	assert.Equal(t, StateFailed, st.State, "second query fails its first attempt too")
	assert.Equal(t, "second", st.Query)
	assert.Equal(t, 1, gen.count("second"))
}

func TestFiller_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	gen := generatorFunc(func(ctx context.Context, query, _ string) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return "u/" + query, nil
	})
	f := NewFiller(gen, testImagesConfig(), zerolog.Nop())
	ctx := context.Background()

	for _, q := range []string{"a", "b", "c", "d", "e", "f"} {
		f.Ensure(ctx, q, &slides.RootImage{Query: q})
	}
	require.NoError(t, f.Wait(ctx))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestFiller_CancelledContext(t *testing.T) {
	gen := &fakeGenerator{failures: 10, err: errors.New("network down")}
	f := NewFiller(gen, testImagesConfig(), zerolog.Nop(), WithBackoff(time.Hour, time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	f.Ensure(ctx, "s1", &slides.RootImage{Query: "q"})
	time.Sleep(10 * time.Millisecond)
	cancel()

	require.NoError(t, f.Wait(context.Background()))
	assert.Equal(t, StateFailed, f.Status("s1").State)
}

type generatorFunc func(ctx context.Context, query, layoutType string) (string, error)

func (g generatorFunc) Generate(ctx context.Context, query, layoutType string) (string, error) {
	return g(ctx, query, layoutType)
}

func TestBackoffDelay(t *testing.T) {
	f := &Filler{baseDelay: 100 * time.Millisecond, maxDelay: 300 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, f.backoffDelay(1))
	assert.Equal(t, 200*time.Millisecond, f.backoffDelay(2))
	assert.Equal(t, 300*time.Millisecond, f.backoffDelay(3))
}

func TestPollinations(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotQuery = r.URL.RawQuery
		w.Write([]byte("png"))
	}))
	defer srv.Close()

	p := NewPollinations(config.Images{Model: "flux", Width: 1024, Height: 768, Timeout: time.Second})
	p.BaseURL = srv.URL

	u, err := p.Generate(context.Background(), "solar panels", "left")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, srv.URL+"/prompt/solar%20panels?"))
	assert.Equal(t, "/prompt/solar%20panels", gotPath)
	assert.Equal(t, "height=768&model=flux&width=1024", gotQuery)
}

func TestPollinations_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewPollinations(config.Images{Timeout: time.Second})
	p.BaseURL = srv.URL

	_, err := p.Generate(context.Background(), "x", "")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.True(t, statusErr.Temporary())
}

func TestUnsplash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Client-ID key", r.Header.Get("Authorization"))
		assert.Equal(t, "/search/photos", r.URL.Path)
		if r.URL.Query().Get("query") == "nothing" {
			w.Write([]byte(`{"results":[]}`))
			return
		}
		assert.Equal(t, "portrait", r.URL.Query().Get("orientation"))
		w.Write([]byte(`{"results":[{"urls":{"regular":"https://images.test/1.jpg"}}]}`))
	}))
	defer srv.Close()

	u := NewUnsplash("key", time.Second)
	u.BaseURL = srv.URL

	got, err := u.Generate(context.Background(), "forest", "vertical")
	require.NoError(t, err)
	assert.Equal(t, "https://images.test/1.jpg", got)

	_, err = u.Generate(context.Background(), "nothing", "vertical")
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestNewGenerator(t *testing.T) {
	t.Setenv("GH_SLIDES_TEST_UNSPLASH", "")

	gen, err := NewGenerator(config.Images{Source: SourceAI})
	require.NoError(t, err)
	assert.IsType(t, &Pollinations{}, gen)

	gen, err = NewGenerator(config.Images{Source: SourceNone})
	require.NoError(t, err)
	assert.Nil(t, gen)

	_, err = NewGenerator(config.Images{Source: SourceStock, UnsplashKeyEnv: "GH_SLIDES_TEST_UNSPLASH"})
	assert.Error(t, err)

	t.Setenv("GH_SLIDES_TEST_UNSPLASH", "k")
	gen, err = NewGenerator(config.Images{Source: SourceStock, UnsplashKeyEnv: "GH_SLIDES_TEST_UNSPLASH"})
	require.NoError(t, err)
	assert.IsType(t, &Unsplash{}, gen)

	_, err = NewGenerator(config.Images{Source: "paint"})
	assert.Error(t, err)
}
