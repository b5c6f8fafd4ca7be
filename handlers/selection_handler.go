package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/igorhaf/orbit-ai-optimizer/services/catalog"
	"github.com/igorhaf/orbit-ai-optimizer/services/selector"
	"github.com/igorhaf/orbit-ai-optimizer/utils"
)

// SelectModelRequest is the request body for POST /api/v1/models/select
type SelectModelRequest struct {
	InputTokens   int      `json:"input_tokens" validate:"gte=0"`
	OutputTokens  int      `json:"output_tokens" validate:"gte=0"`
	MaxCost       float64  `json:"max_cost,omitempty" validate:"gte=0"`
	MinQuality    float64  `json:"min_quality,omitempty" validate:"gte=0,lte=1"`
	MaxLatencyMs  int      `json:"max_latency_ms,omitempty" validate:"gte=0"`
	ExcludeModels []string `json:"exclude_models,omitempty"`
	Objective     string   `json:"objective,omitempty" validate:"omitempty,oneof=cost quality latency balanced"`
}

// ModelSelector picks a model under constraints
type ModelSelector interface {
	Select(inputTokens, outputTokens int, c selector.Constraints) (selector.Selection, error)
}

// SelectionHandler handles model selection and catalog listing requests
type SelectionHandler struct {
	selector ModelSelector
	catalog  *catalog.Catalog
	logger   *zap.Logger
}

// NewSelectionHandler creates a new SelectionHandler
func NewSelectionHandler(sel ModelSelector, cat *catalog.Catalog, logger *zap.Logger) *SelectionHandler {
	return &SelectionHandler{
		selector: sel,
		catalog:  cat,
		logger:   logger,
	}
}

// HandleSelect handles POST /api/v1/models/select
func (h *SelectionHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	var body SelectModelRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("failed to parse request body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&body); err != nil {
		h.logger.Warn("request validation failed", zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	selection, err := h.selector.Select(body.InputTokens, body.OutputTokens, selector.Constraints{
		MaxCost:       body.MaxCost,
		MinQuality:    body.MinQuality,
		MaxLatencyMs:  body.MaxLatencyMs,
		ExcludeModels: body.ExcludeModels,
		Objective:     selector.Objective(body.Objective),
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, selection); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleListModels handles GET /api/v1/models
func (h *SelectionHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteOK(w, h.catalog.List()); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
