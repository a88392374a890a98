package embed

import (
	"context"
	"log/slog"

	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
)

// Resilient wraps a primary provider with a circuit breaker and the
// deterministic fallback. While the circuit is open (or the primary keeps
// failing) embeddings come from the hash provider so indexing never stalls;
// such vectors are marked with FallbackModelName.
type Resilient struct {
	primary  Provider
	fallback *StaticProvider
	breaker  *cerr.CircuitBreaker
	logger   *slog.Logger
}

// NewResilient builds the wrapper. A nil primary always uses the fallback.
func NewResilient(primary Provider, dims int, breaker *cerr.CircuitBreaker, logger *slog.Logger) *Resilient {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resilient{
		primary:  primary,
		fallback: NewStaticProvider(dims),
		breaker:  breaker,
		logger:   logger,
	}
}

// Result is an embedding plus its provenance.
type Result struct {
	Vector []float32
	Model  string
	// Approximate is set when the vector came from the hash fallback.
	Approximate bool
}

// Embed produces one embedding, falling back deterministically on outage.
func (r *Resilient) Embed(ctx context.Context, text string) (Result, error) {
	if r.primary == nil {
		return r.embedFallback(ctx, text)
	}

	vec, err := cerr.CircuitExecute(r.breaker,
		func() ([]float32, error) { return r.primary.Embed(ctx, text) },
		func() ([]float32, error) { return nil, cerr.ErrCircuitOpen },
	)
	if err == nil {
		return Result{Vector: vec, Model: r.primary.ModelName()}, nil
	}

	r.logger.Warn("embedding_fallback",
		slog.String("reason", err.Error()),
		slog.String("breaker_state", r.breaker.State().String()))
	return r.embedFallback(ctx, text)
}

// EmbedBatch embeds several texts, falling back per batch.
func (r *Resilient) EmbedBatch(ctx context.Context, texts []string) ([]Result, error) {
	if r.primary != nil {
		vecs, err := cerr.CircuitExecute(r.breaker,
			func() ([][]float32, error) { return r.primary.EmbedBatch(ctx, texts) },
			func() ([][]float32, error) { return nil, cerr.ErrCircuitOpen },
		)
		if err == nil {
			out := make([]Result, len(vecs))
			for i, v := range vecs {
				out[i] = Result{Vector: v, Model: r.primary.ModelName()}
			}
			return out, nil
		}
		r.logger.Warn("embedding_batch_fallback",
			slog.String("reason", err.Error()),
			slog.String("breaker_state", r.breaker.State().String()))
	}

	out := make([]Result, len(texts))
	for i, text := range texts {
		res, err := r.embedFallback(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (r *Resilient) Dimensions() int {
	return r.fallback.Dimensions()
}

// Breaker exposes the circuit breaker for status reporting.
func (r *Resilient) Breaker() *cerr.CircuitBreaker {
	return r.breaker
}

func (r *Resilient) embedFallback(ctx context.Context, text string) (Result, error) {
	vec, err := r.fallback.Embed(ctx, text)
	if err != nil {
		return Result{}, err
	}
	return Result{Vector: vec, Model: FallbackModelName, Approximate: true}, nil
}
