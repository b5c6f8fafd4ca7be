package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/igorhaf/orbit-ai-optimizer/models"
	"github.com/igorhaf/orbit-ai-optimizer/utils"
)

// OptimizeRequest is the request body for POST /api/v1/optimize
type OptimizeRequest struct {
	Prompt       string  `json:"prompt" validate:"required"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	UsageType    string  `json:"usage_type,omitempty" validate:"omitempty,oneof=interview_questions spec_generation task_generation general"`
	Model        string  `json:"model,omitempty"`
	Temperature  float64 `json:"temperature" validate:"gte=0,lte=2"`
	MaxTokens    int     `json:"max_tokens,omitempty" validate:"gte=0"`
}

// OptimizeResponse is the response body for POST /api/v1/optimize
type OptimizeResponse struct {
	RequestID string                   `json:"request_id"`
	Result    *models.CompletionResult `json:"result"`
}

// CompletionExecutor runs one request through the optimization pipeline
type CompletionExecutor interface {
	Execute(ctx context.Context, req *models.CompletionRequest, invoke models.Invoker) (*models.CompletionResult, error)
}

// OptimizeHandler handles optimized completion requests. It is only
// mounted when the host application supplies a provider Invoker.
type OptimizeHandler struct {
	executor CompletionExecutor
	invoker  models.Invoker
	logger   *zap.Logger
}

// NewOptimizeHandler creates a new OptimizeHandler
func NewOptimizeHandler(executor CompletionExecutor, invoker models.Invoker, logger *zap.Logger) *OptimizeHandler {
	return &OptimizeHandler{
		executor: executor,
		invoker:  invoker,
		logger:   logger,
	}
}

// HandleOptimize handles POST /api/v1/optimize
func (h *OptimizeHandler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var body OptimizeRequest
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

	requestID := uuid.NewString()
	req := &models.CompletionRequest{
		Prompt:       body.Prompt,
		SystemPrompt: body.SystemPrompt,
		UsageType:    models.UsageType(body.UsageType),
		Model:        body.Model,
		Temperature:  body.Temperature,
		MaxTokens:    body.MaxTokens,
	}

	result, err := h.executor.Execute(r.Context(), req, h.invoker)
	if err != nil {
		h.logger.Error("optimized completion failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("optimized completion served",
		zap.String("request_id", requestID),
		zap.String("model", result.Model),
		zap.String("cache_level", string(result.CacheLevel)),
		zap.Int("total_tokens", result.TotalTokens()))

	if err := utils.WriteOK(w, OptimizeResponse{RequestID: requestID, Result: result}); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}
