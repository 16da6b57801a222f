// Package embedding wraps the Gemini embedding API with the batching,
// pacing, and resilience C9 depends on (§4.6). Batching/pacing is grounded
// on the teacher's GeminiEmbedder
// (internal/core/llm/gemini_embed.go); the retry/circuit-breaker wrapper is
// grounded on kk7453603-AIAssistent's resilience.Executor
// (internal/infrastructure/resilience/executor.go), adapted from a
// generic operation executor into an embedding-specific client; the
// inter-batch pacing is grounded on custodia-labs-sercha-cli's
// golang.org/x/time/rate usage (internal/connectors/google/ratelimit.go).
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/markdave123-py/Contexta/internal/ingesterr"
)

const (
	// Dimension is the fixed output width of every embedding vector (§4.6).
	Dimension = 1536

	defaultBatchSize   = 50
	defaultInterBatch  = 100 * time.Millisecond
	defaultModel       = "gemini-embedding-001"
	defaultMaxAttempts = 3
)

// Config tunes batching, pacing, and resilience.
type Config struct {
	APIKey          string
	Model           string
	BatchSize       int
	InterBatchDelay time.Duration
	RequestsPerSec  float64
	Burst           int
	MaxAttempts     int
	BreakerEnabled  bool
}

// DefaultConfig matches the spec's stated defaults and a conservative
// sustained rate, mirroring the pack's conservative-default convention.
// model overrides the provider's default embedding model when non-empty,
// threading the operator's EMBEDDINGS_MODEL setting (§6) through.
func DefaultConfig(apiKey, model string) Config {
	if model == "" {
		model = defaultModel
	}
	return Config{
		APIKey:          apiKey,
		Model:           model,
		BatchSize:       defaultBatchSize,
		InterBatchDelay: defaultInterBatch,
		RequestsPerSec:  5.0,
		Burst:           5,
		MaxAttempts:     defaultMaxAttempts,
		BreakerEnabled:  true,
	}
}

// Client embeds batches of text against Gemini, pacing calls with a token
// bucket and guarding the provider with a circuit breaker (§4.6).
type Client struct {
	cfg     Config
	genai   *genai.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[][]float32]
}

// New dials the Gemini client and wires pacing/breaker state around it.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.InterBatchDelay <= 0 {
		cfg.InterBatchDelay = defaultInterBatch
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("embedding: dial genai: %w", err)
	}

	c := &Client{
		cfg:     cfg,
		genai:   cl,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
	}

	if cfg.BreakerEnabled {
		settings := gobreaker.Settings{
			Name:        "embedding",
			MaxRequests: 2,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < 5 {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				slog.Warn("embedding circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			},
		}
		c.breaker = gobreaker.NewCircuitBreaker[[][]float32](settings)
	}

	return c, nil
}

// ModelName reports the embedding model the client was configured with, for
// recording alongside each persisted vector (§4.6).
func (c *Client) ModelName() string {
	return c.cfg.Model
}

// Close releases the underlying genai client.
func (c *Client) Close() error {
	if c.genai != nil {
		return c.genai.Close()
	}
	return nil
}

// EmbedTexts embeds texts in batch-ordered, same-order output. Provider
// errors are propagated verbatim (wrapped, not reclassified) so C4's
// classifier can tell rate-limit from timeout from the raw message (§4.6).
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	ranges := batchRanges(len(texts), c.cfg.BatchSize)
	for i, r := range ranges {
		batch := texts[r[0]:r[1]]

		vectors, err := c.embedBatchWithRetry(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)

		if i < len(ranges)-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.InterBatchDelay):
			}
		}
	}
	return out, nil
}

// batchRanges splits [0, n) into contiguous [start, end) slices of at most
// size. A pure helper so the batching math is independently testable.
func batchRanges(n, size int) [][2]int {
	if n == 0 || size <= 0 {
		return nil
	}
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

func (c *Client) embedBatchWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	call := func() ([][]float32, error) { return c.embedBatch(ctx, batch) }
	if c.breaker != nil {
		call = func() ([][]float32, error) {
			return c.breaker.Execute(func() ([][]float32, error) { return c.embedBatch(ctx, batch) })
		}
	}

	var lastErr error
	backoff := 200 * time.Millisecond
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vectors, err := call()
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		classified := ingesterr.Classify(err.Error())
		if classified != ingesterr.ProviderRateLimited && classified != ingesterr.Timeout {
			return nil, err
		}
		if attempt == c.cfg.MaxAttempts {
			break
		}

		slog.Warn("embedding retry attempt", "attempt", attempt, "max_attempts", c.cfg.MaxAttempts, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	em := c.genai.EmbeddingModel(c.cfg.Model)

	gbatch := em.NewBatch()
	for _, t := range batch {
		gbatch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, gbatch)
	if err != nil {
		return nil, fmt.Errorf("embedding: batch embed: %w", err)
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		if len(e.Values) != Dimension {
			return nil, ingesterr.New(ingesterr.Internal,
				fmt.Sprintf("embedding: model %s returned vector of length %d, want %d", c.cfg.Model, len(e.Values), Dimension))
		}
		out = append(out, e.Values)
	}
	return out, nil
}
