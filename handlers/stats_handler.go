package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/igorhaf/orbit-ai-optimizer/services/batch"
	"github.com/igorhaf/orbit-ai-optimizer/services/cache"
	"github.com/igorhaf/orbit-ai-optimizer/utils"
)

// StatsProvider exposes the cache and batch counters plus cache control
type StatsProvider interface {
	CacheStats() cache.Statistics
	BatchStats() batch.Stats
	ClearCache(ctx context.Context) error
}

// StatsHandler serves the operational statistics endpoints
type StatsHandler struct {
	provider StatsProvider
	logger   *zap.Logger
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(provider StatsProvider, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		provider: provider,
		logger:   logger,
	}
}

// HandleCacheStats handles GET /api/v1/cache/stats
func (h *StatsHandler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteOK(w, h.provider.CacheStats()); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleClearCache handles DELETE /api/v1/cache
func (h *StatsHandler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.provider.ClearCache(r.Context()); err != nil {
		h.logger.Error("cache clear failed", zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("cache cleared")
	utils.WriteNoContent(w)
}

// HandleBatchStats handles GET /api/v1/batch/stats
func (h *StatsHandler) HandleBatchStats(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteOK(w, h.provider.BatchStats()); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
