package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/igorhaf/orbit-ai-optimizer/models"
)

// stubEmbedder returns canned vectors per prompt.
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (e *stubEmbedder) Encode(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if vec, ok := e.vectors[text]; ok {
		return vec, nil
	}
	return []float32{0, 0, 1}, nil
}

// failingStore errors on every operation, standing in for an
// unreachable external store.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (failingStore) Delete(context.Context, string) error { return errors.New("connection refused") }
func (failingStore) Clear(context.Context) error          { return errors.New("connection refused") }

func defaultConfig() Config {
	return Config{
		Enabled:           true,
		SemanticEnabled:   true,
		TemplateEnabled:   true,
		SemanticThreshold: 0.95,
		TTL:               time.Hour,
		MaxEntries:        100,
	}
}

func testResult(model string) *models.CompletionResult {
	return &models.CompletionResult{
		Content:      "forty-two",
		Model:        model,
		InputTokens:  100,
		OutputTokens: 50,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestService_ExactHit(t *testing.T) {
	ctx := context.Background()
	s := NewService(NewMemoryStore(100), nil, defaultConfig(), nil, zap.NewNop())

	req := &models.CompletionRequest{Prompt: "What is the answer?", Model: "gpt-4o", Temperature: 0.7}
	s.Set(ctx, req, testResult("gpt-4o"))

	got, ok := s.Get(ctx, req)
	require.True(t, ok)
	assert.Equal(t, models.CacheLevelExact, got.CacheLevel)
	assert.Equal(t, "forty-two", got.Content)

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Exact.Hits)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(0), stats.Misses)
	assert.Equal(t, int64(150), stats.TokensSaved)
}

func TestService_MissIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewService(NewMemoryStore(100), nil, defaultConfig(), nil, zap.NewNop())

	s.Set(ctx, &models.CompletionRequest{Prompt: "Plan sprint one", Temperature: 0.7}, testResult("gpt-4o"))

	_, ok := s.Get(ctx, &models.CompletionRequest{Prompt: "Write a haiku", Temperature: 0.7})
	assert.False(t, ok)

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(0), stats.Hits)
}

func TestService_SemanticHit(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{vectors: map[string][]float32{
		"What's the project deadline?":  {1, 0, 0},
		"When is the project deadline?": {0.999, 0.04, 0},
	}}
	s := NewService(NewMemoryStore(100), emb, defaultConfig(), nil, zap.NewNop())

	stored := &models.CompletionRequest{Prompt: "What's the project deadline?", Temperature: 0.7}
	s.Set(ctx, stored, testResult("gpt-4o"))

	rephrased := &models.CompletionRequest{Prompt: "When is the project deadline?", Temperature: 0.7}
	got, ok := s.Get(ctx, rephrased)
	require.True(t, ok)
	assert.Equal(t, models.CacheLevelSemantic, got.CacheLevel)

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Semantic.Hits)
}

func TestService_SemanticBelowThresholdMisses(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{vectors: map[string][]float32{
		"Plan sprint one": {1, 0, 0},
		"Write a haiku":   {0.2, 0.97, 0},
	}}
	s := NewService(NewMemoryStore(100), emb, defaultConfig(), nil, zap.NewNop())

	s.Set(ctx, &models.CompletionRequest{Prompt: "Plan sprint one", Temperature: 0.7}, testResult("gpt-4o"))

	_, ok := s.Get(ctx, &models.CompletionRequest{Prompt: "Write a haiku", Temperature: 0.7})
	assert.False(t, ok)
	assert.Equal(t, uint64(1), s.Stats().Semantic.Misses)
}

func TestService_SemanticUndecodableEntryCountsAsMiss(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{vectors: map[string][]float32{
		"Plan sprint one": {1, 0, 0},
	}}
	s := NewService(NewMemoryStore(100), emb, defaultConfig(), nil, zap.NewNop())

	// A nearest neighbor above threshold whose stored payload is not
	// valid JSON must count as a semantic miss, not vanish from stats.
	s.index.Add("corrupt", []float32{1, 0, 0}, []byte("{not json"))

	_, ok := s.Get(ctx, &models.CompletionRequest{Prompt: "Plan sprint one", Temperature: 0.7})
	assert.False(t, ok)
	assert.Equal(t, uint64(1), s.Stats().Semantic.Misses)
}

func TestService_TemplateHitOnWhitespaceVariant(t *testing.T) {
	ctx := context.Background()
	s := NewService(NewMemoryStore(100), nil, defaultConfig(), nil, zap.NewNop())

	stored := &models.CompletionRequest{Prompt: "Summarize: X", Model: "gpt-4o", Temperature: 0}
	s.Set(ctx, stored, testResult("gpt-4o"))

	variant := &models.CompletionRequest{Prompt: "Summarize:    X", Model: "gpt-4o", Temperature: 0}
	got, ok := s.Get(ctx, variant)
	require.True(t, ok)
	assert.Equal(t, models.CacheLevelTemplate, got.CacheLevel, "whitespace variant must hit template, not exact")

	// The identical request still hits the exact level first.
	got, ok = s.Get(ctx, stored)
	require.True(t, ok)
	assert.Equal(t, models.CacheLevelExact, got.CacheLevel)
}

func TestService_NoTemplateLevelForSampledRequests(t *testing.T) {
	ctx := context.Background()
	s := NewService(NewMemoryStore(100), nil, defaultConfig(), nil, zap.NewNop())

	stored := &models.CompletionRequest{Prompt: "Summarize: X", Model: "gpt-4o", Temperature: 0.7}
	s.Set(ctx, stored, testResult("gpt-4o"))

	variant := &models.CompletionRequest{Prompt: "Summarize:  X", Model: "gpt-4o", Temperature: 0.7}
	_, ok := s.Get(ctx, variant)
	assert.False(t, ok)
}

func TestService_SetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(100)
	s := NewService(store, nil, defaultConfig(), nil, zap.NewNop())

	req := &models.CompletionRequest{Prompt: "Summarize: X", Temperature: 0}

	first := testResult("gpt-4o")
	second := testResult("gpt-4o")
	second.Content = "updated"

	s.Set(ctx, req, first)
	s.Set(ctx, req, second)

	got, ok := s.Get(ctx, req)
	require.True(t, ok)
	assert.Equal(t, "updated", got.Content)
	// One exact entry and one template entry, not four.
	assert.Equal(t, 2, store.Len())
}

func TestService_ClearResets(t *testing.T) {
	ctx := context.Background()
	s := NewService(NewMemoryStore(100), nil, defaultConfig(), nil, zap.NewNop())

	req := &models.CompletionRequest{Prompt: "Summarize: X", Temperature: 0.7}
	s.Set(ctx, req, testResult("gpt-4o"))

	_, ok := s.Get(ctx, req)
	require.True(t, ok)

	require.NoError(t, s.Clear(ctx))

	stats := s.Stats()
	assert.Zero(t, stats.Requests)
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Zero(t, stats.TokensSaved)

	_, ok = s.Get(ctx, req)
	assert.False(t, ok, "first get after clear must be a miss")
}

func TestService_EmbedderFailureDegradesGracefully(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{err: errors.New("embedding service down")}
	s := NewService(NewMemoryStore(100), emb, defaultConfig(), nil, zap.NewNop())

	req := &models.CompletionRequest{Prompt: "Summarize: X", Temperature: 0.7}
	s.Set(ctx, req, testResult("gpt-4o"))

	// Exact level still works despite the embedder being down.
	got, ok := s.Get(ctx, req)
	require.True(t, ok)
	assert.Equal(t, models.CacheLevelExact, got.CacheLevel)
	assert.False(t, s.SemanticActive())

	// The embedder is not retried once the level is disabled.
	calls := emb.calls
	_, _ = s.Get(ctx, &models.CompletionRequest{Prompt: "other", Temperature: 0.7})
	assert.Equal(t, calls, emb.calls)
}

func TestService_BackingStoreFailureFallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	cfg := defaultConfig()
	cfg.SemanticEnabled = false
	s := NewService(failingStore{}, nil, cfg, nil, zap.NewNop())

	req := &models.CompletionRequest{Prompt: "Summarize: X", Temperature: 0.7}

	// Set and Get must not fail even though the primary store errors.
	s.Set(ctx, req, testResult("gpt-4o"))

	got, ok := s.Get(ctx, req)
	require.True(t, ok, "entry should be served from the in-process fallback")
	assert.Equal(t, "forty-two", got.Content)
}

func TestService_CostSavedUsesEstimator(t *testing.T) {
	ctx := context.Background()
	estimator := func(model string, in, out int) float64 {
		return float64(in)*0.001 + float64(out)*0.002
	}
	s := NewService(NewMemoryStore(100), nil, defaultConfig(), estimator, zap.NewNop())

	req := &models.CompletionRequest{Prompt: "Summarize: X", Temperature: 0.7}
	s.Set(ctx, req, testResult("gpt-4o"))

	_, ok := s.Get(ctx, req)
	require.True(t, ok)

	assert.InDelta(t, 100*0.001+50*0.002, s.Stats().CostSavedUSD, 1e-9)
}

func TestService_DisabledCacheNeverHits(t *testing.T) {
	ctx := context.Background()
	cfg := defaultConfig()
	cfg.Enabled = false
	store := NewMemoryStore(100)
	s := NewService(store, nil, cfg, nil, zap.NewNop())

	req := &models.CompletionRequest{Prompt: "Summarize: X", Temperature: 0}
	s.Set(ctx, req, testResult("gpt-4o"))

	_, ok := s.Get(ctx, req)
	assert.False(t, ok)
	assert.Zero(t, store.Len(), "a disabled cache writes nothing")
	assert.Zero(t, s.Stats().Requests)
}

func TestService_StatsIsReadOnly(t *testing.T) {
	ctx := context.Background()
	s := NewService(NewMemoryStore(100), nil, defaultConfig(), nil, zap.NewNop())

	req := &models.CompletionRequest{Prompt: "Summarize: X", Temperature: 0.7}
	s.Set(ctx, req, testResult("gpt-4o"))
	_, _ = s.Get(ctx, req)

	before := s.Stats()
	_ = s.Stats()
	after := s.Stats()
	assert.Equal(t, before, after)
}
