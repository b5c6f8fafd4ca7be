// Package optimizer is the facade callers interact with. It threads a
// request through the cache, the batcher and the model selector, and
// delegates the actual provider call to the caller-supplied Invoker.
package optimizer

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/igorhaf/orbit-ai-optimizer/models"
	"github.com/igorhaf/orbit-ai-optimizer/services"
	"github.com/igorhaf/orbit-ai-optimizer/services/batch"
	"github.com/igorhaf/orbit-ai-optimizer/services/cache"
	"github.com/igorhaf/orbit-ai-optimizer/services/selector"
)

// defaultOutputEstimate stands in for MaxTokens when the caller did not
// bound the response.
const defaultOutputEstimate = 512

// Stats aggregates the per-component statistics surfaced by the ops API.
type Stats struct {
	Cache cache.Statistics `json:"cache"`
	Batch batch.Stats      `json:"batch"`
}

// Service wires the cache, batcher and selector behind a single Execute
// call.
type Service struct {
	cache    *cache.Service
	batch    *batch.Service
	selector *selector.Service
	logger   *zap.Logger
}

// NewService creates the facade over already-constructed components.
func NewService(cacheSvc *cache.Service, batchSvc *batch.Service, selectorSvc *selector.Service, logger *zap.Logger) *Service {
	return &Service{
		cache:    cacheSvc,
		batch:    batchSvc,
		selector: selectorSvc,
		logger:   logger,
	}
}

// Execute runs one completion through the optimization pipeline: cache
// lookup first, then a batched invocation on miss, with the model chosen
// at dispatch time when the request does not pin one. The fresh result
// is written back to the cache before being returned.
func (s *Service) Execute(ctx context.Context, req *models.CompletionRequest, invoke models.Invoker) (*models.CompletionResult, error) {
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return nil, services.ErrEmptyPrompt
	}
	if invoke == nil {
		return nil, services.ErrInvalidInput.WithDetail("field", "invoker")
	}

	normalized := req.Normalized()

	if result, ok := s.cache.Get(ctx, &normalized); ok {
		return result, nil
	}

	result, err := s.batch.Submit(ctx, normalized.UsageType, func(ctx context.Context) (*models.CompletionResult, error) {
		dispatched := normalized
		if dispatched.Model == "" {
			selection, err := s.selector.Select(
				estimateInputTokens(&dispatched),
				estimateOutputTokens(&dispatched),
				selector.Constraints{},
			)
			if err != nil {
				return nil, err
			}
			dispatched.Model = selection.Model
		}

		started := time.Now()
		result, err := invoke(ctx, &dispatched)
		if err != nil {
			return nil, services.WrapInvocation("provider call failed", err)
		}
		if result.LatencyMs == 0 {
			result.LatencyMs = time.Since(started).Milliseconds()
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	// Cache under the request as submitted: a later identical request
	// with no pinned model must hit regardless of what the selector
	// chose this time.
	s.cache.Set(ctx, &normalized, result)

	return result, nil
}

// Select exposes constrained model selection as a standalone operation.
func (s *Service) Select(inputTokens, outputTokens int, c selector.Constraints) (selector.Selection, error) {
	return s.selector.Select(inputTokens, outputTokens, c)
}

// Stats returns a combined snapshot of the cache and batch counters.
func (s *Service) Stats() Stats {
	return Stats{
		Cache: s.cache.Stats(),
		Batch: s.batch.Stats(),
	}
}

// CacheStats returns the cache counters only.
func (s *Service) CacheStats() cache.Statistics {
	return s.cache.Stats()
}

// BatchStats returns the batching counters only.
func (s *Service) BatchStats() batch.Stats {
	return s.batch.Stats()
}

// ClearCache empties every cache level and resets the cache counters.
func (s *Service) ClearCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

// estimateInputTokens approximates prompt size for cost estimation. A
// four-characters-per-token heuristic is enough for relative ranking.
func estimateInputTokens(req *models.CompletionRequest) int {
	n := (len(req.Prompt) + len(req.SystemPrompt)) / 4
	if n < 1 {
		n = 1
	}
	return n
}

func estimateOutputTokens(req *models.CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultOutputEstimate
}
