package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/igorhaf/orbit-ai-optimizer/services/experiment"
	"github.com/igorhaf/orbit-ai-optimizer/utils"
)

// AssignVariantRequest is the request body for variant assignment
type AssignVariantRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
}

// ExperimentRegistry manages experiments and subject assignment
type ExperimentRegistry interface {
	Register(exp *experiment.Experiment) error
	Get(id string) (*experiment.Experiment, error)
	List() []*experiment.Experiment
	Assign(experimentID, subjectID string) (*experiment.Assignment, error)
}

// ExperimentHandler handles experiment management and assignment requests
type ExperimentHandler struct {
	registry ExperimentRegistry
	logger   *zap.Logger
}

// NewExperimentHandler creates a new ExperimentHandler
func NewExperimentHandler(registry ExperimentRegistry, logger *zap.Logger) *ExperimentHandler {
	return &ExperimentHandler{
		registry: registry,
		logger:   logger,
	}
}

// HandleRegister handles POST /api/v1/experiments
func (h *ExperimentHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var exp experiment.Experiment
	if err := json.NewDecoder(r.Body).Decode(&exp); err != nil {
		h.logger.Warn("failed to parse request body", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := h.registry.Register(&exp); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse{Data: exp}); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleList handles GET /api/v1/experiments
func (h *ExperimentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteOK(w, h.registry.List()); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleGet handles GET /api/v1/experiments/{id}
func (h *ExperimentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	exp, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, exp); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleAssign handles POST /api/v1/experiments/{id}/assignment
func (h *ExperimentHandler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	var body AssignVariantRequest
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

	assignment, err := h.registry.Assign(chi.URLParam(r, "id"), body.SubjectID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, assignment); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
