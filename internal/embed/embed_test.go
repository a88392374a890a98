package embed

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
)

func TestStaticProvider_Deterministic(t *testing.T) {
	p := NewStaticProvider(64)
	ctx := context.Background()

	a, err := p.Embed(ctx, "parse the configuration file")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "parse the configuration file")
	require.NoError(t, err)
	assert.Equal(t, a, b, "same text must produce the same vector")

	c, err := p.Embed(ctx, "completely different text")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestStaticProvider_UnitLength(t *testing.T) {
	p := NewStaticProvider(128)
	v, err := p.Embed(context.Background(), "getUserById returns the user")
	require.NoError(t, err)
	require.Len(t, v, 128)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestStaticProvider_EmptyText(t *testing.T) {
	p := NewStaticProvider(16)
	v, err := p.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 16), v)
}

func TestHTTPProvider_EmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		_, _ = w.Write([]byte(`{"model":"test-embed","embeddings":[[1,0],[0,1]]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPConfig{URL: srv.URL, Model: "test-embed", Dimensions: 2})
	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestHTTPProvider_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model":"test-embed","embeddings":[[1,0,0]]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPConfig{URL: srv.URL, Dimensions: 2})
	_, err := p.Embed(context.Background(), "a")
	assert.Error(t, err)
}

func TestHTTPProvider_ChunkText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chunk", r.URL.Path)
		_, _ = w.Write([]byte(`{"model":"test-embed","chunks":[{"text":"part one","embedding":[0.5,0.5],"score":1.5}]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(HTTPConfig{URL: srv.URL, Dimensions: 2})
	pieces, err := p.ChunkText(context.Background(), "part one and more")
	require.NoError(t, err)
	require.Len(t, pieces, 1)
	assert.Equal(t, "part one", pieces[0].Text)
	assert.Equal(t, "test-embed", pieces[0].Model)
	assert.InDelta(t, 1.5, pieces[0].Score, 1e-9)
}

type failingProvider struct{ dims int }

func (f *failingProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("service down")
}
func (f *failingProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("service down")
}
func (f *failingProvider) Dimensions() int   { return f.dims }
func (f *failingProvider) ModelName() string { return "real-model" }

func TestResilient_FallsBackDeterministically(t *testing.T) {
	breaker := cerr.NewCircuitBreaker("embed", cerr.BreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  time.Minute,
	})
	r := NewResilient(&failingProvider{dims: 32}, 32, breaker, nil)
	ctx := context.Background()

	res1, err := r.Embed(ctx, "some docstring")
	require.NoError(t, err)
	assert.True(t, res1.Approximate)
	assert.Equal(t, FallbackModelName, res1.Model)

	res2, err := r.Embed(ctx, "some docstring")
	require.NoError(t, err)
	assert.Equal(t, res1.Vector, res2.Vector, "fallback must be stable")

	// After threshold failures the circuit is open and short-circuits.
	assert.Equal(t, cerr.StateOpen, breaker.State())
	res3, err := r.Embed(ctx, "another text")
	require.NoError(t, err)
	assert.True(t, res3.Approximate)
}

func TestResilient_NilPrimaryUsesFallback(t *testing.T) {
	breaker := cerr.NewCircuitBreaker("embed", cerr.DefaultBreakerConfig())
	r := NewResilient(nil, 16, breaker, nil)

	res, err := r.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.True(t, res.Approximate)
	require.Len(t, res.Vector, 16)
	assert.Equal(t, cerr.StateClosed, breaker.State(), "fallback-only use never trips the breaker")
}
