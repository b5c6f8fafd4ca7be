package optimizer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/igorhaf/orbit-ai-optimizer/models"
	"github.com/igorhaf/orbit-ai-optimizer/services"
	"github.com/igorhaf/orbit-ai-optimizer/services/batch"
	"github.com/igorhaf/orbit-ai-optimizer/services/cache"
	"github.com/igorhaf/orbit-ai-optimizer/services/catalog"
	"github.com/igorhaf/orbit-ai-optimizer/services/selector"
)

func newTestService(t *testing.T, cat *catalog.Catalog) *Service {
	t.Helper()
	logger := zap.NewNop()

	cacheSvc := cache.NewService(cache.NewMemoryStore(100), nil, cache.Config{
		Enabled:           true,
		TemplateEnabled:   true,
		SemanticThreshold: 0.95,
		TTL:               time.Hour,
		MaxEntries:        100,
	}, nil, logger)

	// Size 1 flushes every submission immediately.
	batchSvc := batch.NewService(1, time.Second, logger)
	selectorSvc := selector.NewService(cat, selector.ObjectiveBalanced, logger)

	return NewService(cacheSvc, batchSvc, selectorSvc, logger)
}

func singleModelCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.ModelInfo{{
		Name:               "only-model",
		Provider:           "openai",
		QualityScore:       0.9,
		AvgLatencyMs:       1000,
		InputPricePerMTok:  1.0,
		OutputPricePerMTok: 2.0,
		Available:          true,
	}})
	require.NoError(t, err)
	return cat
}

func echoInvoker(calls *atomic.Int64) models.Invoker {
	return func(_ context.Context, req *models.CompletionRequest) (*models.CompletionResult, error) {
		calls.Add(1)
		return &models.CompletionResult{
			Content:      "echo: " + req.Prompt,
			Model:        req.Model,
			InputTokens:  40,
			OutputTokens: 20,
			CreatedAt:    time.Now().UTC(),
		}, nil
	}
}

func TestService_ExecuteRejectsEmptyPrompt(t *testing.T) {
	s := newTestService(t, singleModelCatalog(t))

	_, err := s.Execute(context.Background(), &models.CompletionRequest{Prompt: "   "}, echoInvoker(&atomic.Int64{}))
	assert.True(t, services.IsValidationError(err))

	_, err = s.Execute(context.Background(), nil, echoInvoker(&atomic.Int64{}))
	assert.True(t, services.IsValidationError(err))
}

func TestService_ExecuteRequiresInvoker(t *testing.T) {
	s := newTestService(t, singleModelCatalog(t))

	_, err := s.Execute(context.Background(), &models.CompletionRequest{Prompt: "hi"}, nil)
	assert.True(t, services.IsValidationError(err))
}

func TestService_ExecuteInvokesOnMissThenHits(t *testing.T) {
	s := newTestService(t, singleModelCatalog(t))
	var calls atomic.Int64

	req := &models.CompletionRequest{Prompt: "Generate interview questions", Temperature: 0.7}

	first, err := s.Execute(context.Background(), req, echoInvoker(&calls))
	require.NoError(t, err)
	assert.Empty(t, first.CacheLevel, "a fresh result carries no cache level")
	assert.Equal(t, int64(1), calls.Load())

	second, err := s.Execute(context.Background(), req, echoInvoker(&calls))
	require.NoError(t, err)
	assert.Equal(t, models.CacheLevelExact, second.CacheLevel)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, int64(1), calls.Load(), "a cache hit must not invoke the provider")
}

func TestService_ExecuteSelectsModelWhenUnpinned(t *testing.T) {
	s := newTestService(t, singleModelCatalog(t))

	result, err := s.Execute(context.Background(),
		&models.CompletionRequest{Prompt: "hello", Temperature: 0.7},
		func(_ context.Context, req *models.CompletionRequest) (*models.CompletionResult, error) {
			return &models.CompletionResult{Content: "ok", Model: req.Model}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "only-model", result.Model)
}

func TestService_ExecutePreservesPinnedModel(t *testing.T) {
	s := newTestService(t, catalog.Default())

	result, err := s.Execute(context.Background(),
		&models.CompletionRequest{Prompt: "hello", Model: "claude-sonnet-4", Temperature: 0.7},
		func(_ context.Context, req *models.CompletionRequest) (*models.CompletionResult, error) {
			return &models.CompletionResult{Content: "ok", Model: req.Model}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4", result.Model)
}

func TestService_ExecuteCachesUnderSubmittedRequest(t *testing.T) {
	s := newTestService(t, singleModelCatalog(t))
	var calls atomic.Int64

	// No pinned model: the selector fills one in at dispatch, but the
	// cache key must stay that of the unpinned request.
	req := &models.CompletionRequest{Prompt: "hello", Temperature: 0.7}

	_, err := s.Execute(context.Background(), req, echoInvoker(&calls))
	require.NoError(t, err)

	got, err := s.Execute(context.Background(), req, echoInvoker(&calls))
	require.NoError(t, err)
	assert.Equal(t, models.CacheLevelExact, got.CacheLevel)
	assert.Equal(t, int64(1), calls.Load())
}

func TestService_ExecuteFailedInvocationIsNotCached(t *testing.T) {
	s := newTestService(t, singleModelCatalog(t))
	boom := errors.New("provider down")

	req := &models.CompletionRequest{Prompt: "hello", Temperature: 0.7}

	_, err := s.Execute(context.Background(), req,
		func(context.Context, *models.CompletionRequest) (*models.CompletionResult, error) {
			return nil, boom
		})
	require.Error(t, err)
	assert.True(t, services.IsInvocationError(err))
	assert.ErrorIs(t, err, boom)

	// The failure left nothing behind; a retry reaches the provider.
	var calls atomic.Int64
	result, err := s.Execute(context.Background(), req, echoInvoker(&calls))
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
	assert.Empty(t, result.CacheLevel)
}

func TestService_ExecuteSurfacesInfeasibleSelection(t *testing.T) {
	cat, err := catalog.New([]catalog.ModelInfo{{
		Name:         "offline",
		Provider:     "openai",
		QualityScore: 0.9,
		Available:    false,
	}})
	require.NoError(t, err)
	s := newTestService(t, cat)

	_, err = s.Execute(context.Background(),
		&models.CompletionRequest{Prompt: "hello", Temperature: 0.7},
		echoInvoker(&atomic.Int64{}))
	require.Error(t, err)
	assert.True(t, services.IsNoFeasibleModelError(err))
}

func TestService_StatsCombineComponents(t *testing.T) {
	s := newTestService(t, singleModelCatalog(t))
	var calls atomic.Int64

	req := &models.CompletionRequest{Prompt: "hello", Temperature: 0.7}
	_, err := s.Execute(context.Background(), req, echoInvoker(&calls))
	require.NoError(t, err)
	_, err = s.Execute(context.Background(), req, echoInvoker(&calls))
	require.NoError(t, err)

	stats := s.Stats()
	assert.Equal(t, uint64(2), stats.Cache.Requests)
	assert.Equal(t, uint64(1), stats.Cache.Hits)
	assert.Equal(t, uint64(1), stats.Batch.Requests, "only the miss reached the batcher")
}

func TestService_ClearCache(t *testing.T) {
	s := newTestService(t, singleModelCatalog(t))
	var calls atomic.Int64

	req := &models.CompletionRequest{Prompt: "hello", Temperature: 0.7}
	_, err := s.Execute(context.Background(), req, echoInvoker(&calls))
	require.NoError(t, err)

	require.NoError(t, s.ClearCache(context.Background()))

	_, err = s.Execute(context.Background(), req, echoInvoker(&calls))
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load(), "after clear the same request must invoke again")
}

func TestService_SelectDelegates(t *testing.T) {
	s := newTestService(t, catalog.Default())

	selection, err := s.Select(1000, 500, selector.Constraints{Objective: selector.ObjectiveCost})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", selection.Model)
}
