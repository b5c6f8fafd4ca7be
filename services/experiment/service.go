// Package experiment implements deterministic weighted variant
// assignment for prompt experiments. Assignment is a pure function of
// experiment ID and subject ID, so the same subject always lands in the
// same variant without any stored state.
package experiment

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/igorhaf/orbit-ai-optimizer/services"
)

// Status describes whether an experiment is currently splitting traffic.
type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
)

// Variant is one arm of an experiment. Weight is a relative share, not a
// percentage; weights are normalized over the experiment's total.
type Variant struct {
	Name            string  `json:"name"`
	Weight          float64 `json:"weight"`
	TemplateVersion string  `json:"template_version,omitempty"`
	Model           string  `json:"model,omitempty"`
}

// Experiment holds the variants under test plus the control arm that
// paused experiments and unknown subjects fall back to.
type Experiment struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Status   Status    `json:"status"`
	Control  Variant   `json:"control"`
	Variants []Variant `json:"variants"`
}

// Assignment is the resolved variant for one subject.
type Assignment struct {
	ExperimentID string  `json:"experiment_id"`
	SubjectID    string  `json:"subject_id"`
	Variant      Variant `json:"variant"`
	Bucket       uint32  `json:"bucket"`
}

// bucketCount fixes assignment granularity at 0.01%.
const bucketCount = 10000

// Service is an in-memory experiment registry.
type Service struct {
	mu          sync.RWMutex
	experiments map[string]*Experiment
	logger      *zap.Logger
}

// NewService creates an empty registry.
func NewService(logger *zap.Logger) *Service {
	return &Service{
		experiments: make(map[string]*Experiment),
		logger:      logger,
	}
}

// Register validates and stores an experiment, replacing any previous
// registration under the same ID.
func (s *Service) Register(exp *Experiment) error {
	if exp.ID == "" {
		return services.ErrInvalidInput.WithDetail("field", "id")
	}
	if len(exp.Variants) == 0 {
		return services.ErrInvalidVariants.WithDetail("experiment_id", exp.ID)
	}
	names := make(map[string]struct{}, len(exp.Variants))
	for _, v := range exp.Variants {
		if v.Name == "" {
			return services.ErrInvalidVariants.WithDetail("experiment_id", exp.ID)
		}
		if v.Weight <= 0 {
			return services.ErrInvalidVariants.
				WithDetail("experiment_id", exp.ID).
				WithDetail("variant", v.Name)
		}
		if _, dup := names[v.Name]; dup {
			return services.ErrInvalidVariants.
				WithDetail("experiment_id", exp.ID).
				WithDetail("duplicate_variant", v.Name)
		}
		names[v.Name] = struct{}{}
	}
	if exp.Status == "" {
		exp.Status = StatusActive
	}
	if exp.Control.Name == "" {
		exp.Control = exp.Variants[0]
	}

	s.mu.Lock()
	s.experiments[exp.ID] = exp
	s.mu.Unlock()

	s.logger.Info("experiment registered",
		zap.String("experiment_id", exp.ID),
		zap.String("status", string(exp.Status)),
		zap.Int("variants", len(exp.Variants)))
	return nil
}

// Get returns a registered experiment by ID.
func (s *Service) Get(id string) (*Experiment, error) {
	s.mu.RLock()
	exp, ok := s.experiments[id]
	s.mu.RUnlock()
	if !ok {
		return nil, services.ErrExperimentNotFound.WithDetail("experiment_id", id)
	}
	return exp, nil
}

// List returns all registered experiments ordered by ID.
func (s *Service) List() []*Experiment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Experiment, 0, len(s.experiments))
	for _, exp := range s.experiments {
		out = append(out, exp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Assign resolves the variant for a subject. The mapping is stable: the
// same (experiment, subject) pair always yields the same variant as long
// as the variant set and weights are unchanged. Paused experiments
// assign everyone to the control arm.
func (s *Service) Assign(experimentID, subjectID string) (*Assignment, error) {
	if subjectID == "" {
		return nil, services.ErrInvalidInput.WithDetail("field", "subject_id")
	}
	exp, err := s.Get(experimentID)
	if err != nil {
		return nil, err
	}

	bucket := bucketFor(experimentID, subjectID)
	assignment := &Assignment{
		ExperimentID: experimentID,
		SubjectID:    subjectID,
		Bucket:       bucket,
	}

	if exp.Status != StatusActive {
		assignment.Variant = exp.Control
		return assignment, nil
	}

	var total float64
	for _, v := range exp.Variants {
		total += v.Weight
	}

	// Walk cumulative weight shares until the subject's bucket falls in.
	point := float64(bucket) / bucketCount * total
	var cumulative float64
	for _, v := range exp.Variants {
		cumulative += v.Weight
		if point < cumulative {
			assignment.Variant = v
			return assignment, nil
		}
	}
	// Floating point edge at the top of the range.
	assignment.Variant = exp.Variants[len(exp.Variants)-1]
	return assignment, nil
}

// bucketFor hashes a subject into one of bucketCount buckets.
func bucketFor(experimentID, subjectID string) uint32 {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s:%s", experimentID, subjectID)
	return h.Sum32() % bucketCount
}
