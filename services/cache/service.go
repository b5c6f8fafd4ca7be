// Package cache implements the three-level response cache that fronts
// model invocations: exact (hash of the full normalized request),
// semantic (embedding nearest-neighbor above a similarity threshold)
// and template (zero-temperature requests keyed by prompt skeleton).
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/igorhaf/orbit-ai-optimizer/models"
)

// Config holds the cache service's tuning knobs.
type Config struct {
	// Enabled turns the whole cache off when false: every Get misses
	// and Set is a no-op.
	Enabled bool

	SemanticEnabled bool
	TemplateEnabled bool

	// SemanticThreshold is deliberately high by default (0.95): a false
	// semantic hit silently returns a wrong answer to the caller.
	SemanticThreshold float64

	TTL        time.Duration
	MaxEntries int
}

// CostEstimator prices a saved invocation so hit statistics can report
// estimated cost savings. Wired to the catalog at startup; may be nil.
type CostEstimator func(model string, inputTokens, outputTokens int) float64

// LevelStats are the hit/miss counters for one cache level. Misses count
// lookups that reached the level and failed there.
type LevelStats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Statistics is a read-only snapshot of the cache counters.
type Statistics struct {
	Exact    LevelStats `json:"exact"`
	Semantic LevelStats `json:"semantic"`
	Template LevelStats `json:"template"`

	Requests uint64  `json:"requests"`
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	HitRate  float64 `json:"hit_rate"`

	TokensSaved  int64   `json:"tokens_saved"`
	CostSavedUSD float64 `json:"cost_saved_usd"`
}

// Service coordinates the three cache levels and owns all cache
// statistics. Infrastructure failures (backing store, embedder) are
// absorbed and logged; they never fail the caller's request path.
type Service struct {
	store    Store
	fallback *MemoryStore // non-nil only when store is external
	index    *VectorIndex
	embedder Embedder

	cfg          Config
	estimateCost CostEstimator
	logger       *zap.Logger

	// semanticDown latches when the embedding backend fails; the
	// semantic level stays off for the rest of the process lifetime.
	semanticDown atomic.Bool
	embedWarn    sync.Once

	mu             sync.Mutex
	exactHits      uint64
	exactMisses    uint64
	semanticHits   uint64
	semanticMisses uint64
	templateHits   uint64
	templateMisses uint64
	tokensSaved    int64
	costSaved      float64
}

// NewService creates the cache service. store is the primary backing
// store; when it is external (Redis), a process-local MemoryStore is
// kept as the degradation target. embedder may be nil, which disables
// the semantic level outright.
func NewService(store Store, embedder Embedder, cfg Config, estimateCost CostEstimator, logger *zap.Logger) *Service {
	s := &Service{
		store:        store,
		index:        NewVectorIndex(cfg.MaxEntries),
		embedder:     embedder,
		cfg:          cfg,
		estimateCost: estimateCost,
		logger:       logger,
	}
	if _, local := store.(*MemoryStore); !local {
		s.fallback = NewMemoryStore(cfg.MaxEntries)
	}
	if embedder == nil {
		s.semanticDown.Store(true)
	}
	return s
}

// Get looks a request up across all enabled levels, recording
// statistics. The boolean reports whether any level hit; Get never
// returns an error; infrastructure failures degrade silently.
func (s *Service) Get(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResult, bool) {
	if !s.cfg.Enabled {
		return nil, false
	}

	// Exact level.
	if payload, ok := s.storeGet(ctx, Key(req)); ok {
		if res := decodeResult(payload); res != nil {
			res.CacheLevel = models.CacheLevelExact
			s.recordHit(models.CacheLevelExact, res)
			return res, true
		}
	}
	s.bump(&s.exactMisses)

	// Semantic level.
	if s.semanticActive() {
		if vec, err := s.embedder.Encode(ctx, req.Prompt); err != nil {
			s.disableSemantic(err)
		} else if payload, score, ok := s.index.Search(vec, s.cfg.SemanticThreshold); ok {
			if res := decodeResult(payload); res != nil {
				res.CacheLevel = models.CacheLevelSemantic
				s.recordHit(models.CacheLevelSemantic, res)
				s.logger.Debug("semantic cache hit", zap.Float64("similarity", score))
				return res, true
			}
			// A neighbor whose payload fails to decode is a miss at
			// this level.
			s.bump(&s.semanticMisses)
		} else {
			s.bump(&s.semanticMisses)
		}
	}

	// Template level, deterministic requests only.
	if s.cfg.TemplateEnabled && req.Deterministic() {
		if payload, ok := s.storeGet(ctx, TemplateKey(req)); ok {
			if res := decodeResult(payload); res != nil {
				res.CacheLevel = models.CacheLevelTemplate
				s.recordHit(models.CacheLevelTemplate, res)
				return res, true
			}
		}
		s.bump(&s.templateMisses)
	}

	return nil, false
}

// Set writes a result to every level the request qualifies for. Writes
// are idempotent: re-setting a key overwrites rather than duplicating.
func (s *Service) Set(ctx context.Context, req *models.CompletionRequest, result *models.CompletionResult) {
	if !s.cfg.Enabled {
		return
	}

	stored := *result
	stored.CacheLevel = "" // the level tag belongs to the lookup, not the entry
	payload, err := json.Marshal(&stored)
	if err != nil {
		s.logger.Error("failed to encode cache entry", zap.Error(err))
		return
	}

	s.storeSet(ctx, Key(req), payload)

	if s.semanticActive() {
		if vec, err := s.embedder.Encode(ctx, req.Prompt); err != nil {
			s.disableSemantic(err)
		} else {
			s.index.Add(Key(req), vec, payload)
		}
	}

	if s.cfg.TemplateEnabled && req.Deterministic() {
		s.storeSet(ctx, TemplateKey(req), payload)
	}
}

// Stats returns a snapshot of the counters without mutating state.
func (s *Service) Stats() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Statistics{
		Exact:        levelStats(s.exactHits, s.exactMisses),
		Semantic:     levelStats(s.semanticHits, s.semanticMisses),
		Template:     levelStats(s.templateHits, s.templateMisses),
		TokensSaved:  s.tokensSaved,
		CostSavedUSD: s.costSaved,
	}
	stats.Hits = s.exactHits + s.semanticHits + s.templateHits
	// Every lookup starts at the exact level, so exact attempts count
	// total requests.
	stats.Requests = s.exactHits + s.exactMisses
	stats.Misses = stats.Requests - stats.Hits
	if stats.Requests > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Requests)
	}
	return stats
}

// Clear empties all levels and resets every counter. The next Get after
// Clear is guaranteed to miss.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Warn("backing store clear failed", zap.Error(err))
	}
	if s.fallback != nil {
		_ = s.fallback.Clear(ctx)
	}
	s.index.Clear()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.exactHits, s.exactMisses = 0, 0
	s.semanticHits, s.semanticMisses = 0, 0
	s.templateHits, s.templateMisses = 0, 0
	s.tokensSaved = 0
	s.costSaved = 0
	return nil
}

// SemanticActive reports whether the semantic level is currently live.
func (s *Service) SemanticActive() bool {
	return s.semanticActive()
}

func (s *Service) semanticActive() bool {
	return s.cfg.SemanticEnabled && !s.semanticDown.Load()
}

func (s *Service) disableSemantic(err error) {
	s.semanticDown.Store(true)
	s.embedWarn.Do(func() {
		s.logger.Warn("embedding backend unavailable, semantic cache level disabled",
			zap.Error(err))
	})
}

// storeGet reads from the primary store, degrading to the process-local
// fallback when the primary is unreachable.
func (s *Service) storeGet(ctx context.Context, key string) ([]byte, bool) {
	payload, ok, err := s.store.Get(ctx, key)
	if err == nil {
		return payload, ok
	}

	s.logger.Warn("cache backing store unreachable, using in-process fallback",
		zap.Error(err))
	if s.fallback == nil {
		return nil, false
	}
	payload, ok, _ = s.fallback.Get(ctx, key)
	return payload, ok
}

// storeSet writes to the primary store, degrading to the process-local
// fallback when the primary is unreachable.
func (s *Service) storeSet(ctx context.Context, key string, payload []byte) {
	if err := s.store.Set(ctx, key, payload, s.cfg.TTL); err != nil {
		s.logger.Warn("cache backing store unreachable, writing to in-process fallback",
			zap.Error(err))
		if s.fallback != nil {
			_ = s.fallback.Set(ctx, key, payload, s.cfg.TTL)
		}
	}
}

func (s *Service) recordHit(level models.CacheLevel, res *models.CompletionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch level {
	case models.CacheLevelExact:
		s.exactHits++
	case models.CacheLevelSemantic:
		s.semanticHits++
	case models.CacheLevelTemplate:
		s.templateHits++
	}

	s.tokensSaved += int64(res.TotalTokens())
	if s.estimateCost != nil {
		s.costSaved += s.estimateCost(res.Model, res.InputTokens, res.OutputTokens)
	}
}

func (s *Service) bump(counter *uint64) {
	s.mu.Lock()
	*counter++
	s.mu.Unlock()
}

func decodeResult(payload []byte) *models.CompletionResult {
	var res models.CompletionResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil
	}
	return &res
}

func levelStats(hits, misses uint64) LevelStats {
	ls := LevelStats{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		ls.HitRate = float64(hits) / float64(total)
	}
	return ls
}
