// Package selector chooses a model from the catalog under hard
// cost/quality/latency constraints and a scoring objective.
package selector

import (
	"sort"

	"go.uber.org/zap"

	"github.com/igorhaf/orbit-ai-optimizer/services"
	"github.com/igorhaf/orbit-ai-optimizer/services/catalog"
)

// Objective selects the scoring policy applied to the feasible set.
type Objective string

const (
	ObjectiveCost     Objective = "cost"
	ObjectiveQuality  Objective = "quality"
	ObjectiveLatency  Objective = "latency"
	ObjectiveBalanced Objective = "balanced"
)

// ParseObjective validates an objective string.
func ParseObjective(s string) (Objective, error) {
	switch Objective(s) {
	case ObjectiveCost, ObjectiveQuality, ObjectiveLatency, ObjectiveBalanced:
		return Objective(s), nil
	case "":
		return ObjectiveBalanced, nil
	default:
		return "", services.ErrInvalidObjective.WithDetail("objective", s)
	}
}

// Constraints are optional hard limits applied before scoring. Zero
// values mean "no constraint" for the numeric fields.
type Constraints struct {
	MaxCost       float64   `json:"max_cost,omitempty"`
	MinQuality    float64   `json:"min_quality,omitempty"`
	MaxLatencyMs  int       `json:"max_latency_ms,omitempty"`
	ExcludeModels []string  `json:"exclude_models,omitempty"`
	Objective     Objective `json:"objective,omitempty"`
}

// Selection reports the chosen model together with the cost estimate the
// decision was based on.
type Selection struct {
	Model         string  `json:"model"`
	Provider      string  `json:"provider"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// Balanced objective weights. Cost and latency are normalized against
// the most expensive/slowest feasible candidate so the three terms are
// comparable; the weights are fixed so identical inputs always produce
// identical scores.
const (
	balancedCostWeight    = 0.4
	balancedQualityWeight = 0.4
	balancedLatencyWeight = 0.2
)

// Service picks one catalog entry per request. It owns no mutable state
// beyond the read-only catalog, so it is safe for concurrent use.
type Service struct {
	catalog          *catalog.Catalog
	defaultObjective Objective
	logger           *zap.Logger
}

// NewService creates a new selector service.
func NewService(cat *catalog.Catalog, defaultObjective Objective, logger *zap.Logger) *Service {
	if defaultObjective == "" {
		defaultObjective = ObjectiveBalanced
	}
	return &Service{
		catalog:          cat,
		defaultObjective: defaultObjective,
		logger:           logger,
	}
}

// Select picks the best model for the estimated token volumes under the
// given constraints. An empty feasible set is a business-level failure
// (ErrNoFeasibleModel), never silently substituted.
//
// Ties are broken by ascending model name so selection is deterministic.
func (s *Service) Select(inputTokens, outputTokens int, c Constraints) (Selection, error) {
	if inputTokens < 0 || outputTokens < 0 {
		return Selection{}, services.ErrInvalidConstraints.WithDetail("reason", "negative token estimate")
	}

	objective := c.Objective
	if objective == "" {
		objective = s.defaultObjective
	}
	if _, err := ParseObjective(string(objective)); err != nil {
		return Selection{}, err
	}

	excluded := make(map[string]bool, len(c.ExcludeModels))
	for _, name := range c.ExcludeModels {
		excluded[name] = true
	}

	type candidate struct {
		model catalog.ModelInfo
		cost  float64
	}

	var feasible []candidate
	for _, m := range s.catalog.List() {
		if !m.Available || excluded[m.Name] {
			continue
		}
		cost := m.EstimateCost(inputTokens, outputTokens)
		if c.MaxCost > 0 && cost > c.MaxCost {
			continue
		}
		if c.MinQuality > 0 && m.QualityScore < c.MinQuality {
			continue
		}
		if c.MaxLatencyMs > 0 && m.AvgLatencyMs > c.MaxLatencyMs {
			continue
		}
		feasible = append(feasible, candidate{model: m, cost: cost})
	}

	if len(feasible) == 0 {
		return Selection{}, services.ErrNoFeasibleModel.
			WithDetail("max_cost", c.MaxCost).
			WithDetail("min_quality", c.MinQuality).
			WithDetail("max_latency_ms", c.MaxLatencyMs)
	}

	// Candidates arrive name-sorted from the catalog. sort.SliceStable
	// keeps that order among equal scores, which is the documented
	// tie-break.
	switch objective {
	case ObjectiveCost:
		sort.SliceStable(feasible, func(i, j int) bool {
			return feasible[i].cost < feasible[j].cost
		})
	case ObjectiveQuality:
		sort.SliceStable(feasible, func(i, j int) bool {
			return feasible[i].model.QualityScore > feasible[j].model.QualityScore
		})
	case ObjectiveLatency:
		sort.SliceStable(feasible, func(i, j int) bool {
			return feasible[i].model.AvgLatencyMs < feasible[j].model.AvgLatencyMs
		})
	case ObjectiveBalanced:
		maxCost, maxLatency := 0.0, 0
		for _, f := range feasible {
			if f.cost > maxCost {
				maxCost = f.cost
			}
			if f.model.AvgLatencyMs > maxLatency {
				maxLatency = f.model.AvgLatencyMs
			}
		}
		score := func(f candidate) float64 {
			var costTerm, latencyTerm float64
			if maxCost > 0 {
				costTerm = 1 - f.cost/maxCost
			}
			if maxLatency > 0 {
				latencyTerm = 1 - float64(f.model.AvgLatencyMs)/float64(maxLatency)
			}
			return balancedCostWeight*costTerm +
				balancedQualityWeight*f.model.QualityScore +
				balancedLatencyWeight*latencyTerm
		}
		sort.SliceStable(feasible, func(i, j int) bool {
			return score(feasible[i]) > score(feasible[j])
		})
	}

	best := feasible[0]
	s.logger.Debug("model selected",
		zap.String("model", best.model.Name),
		zap.String("objective", string(objective)),
		zap.Float64("estimated_cost", best.cost),
		zap.Int("feasible", len(feasible)))

	return Selection{
		Model:         best.model.Name,
		Provider:      best.model.Provider,
		EstimatedCost: best.cost,
	}, nil
}
