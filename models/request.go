package models

import (
	"context"
	"time"
)

// UsageType classifies the purpose of a completion request. It groups
// batch windows and lets the selector apply purpose-specific defaults.
type UsageType string

const (
	UsageInterviewQuestions UsageType = "interview_questions"
	UsageSpecGeneration     UsageType = "spec_generation"
	UsageTaskGeneration     UsageType = "task_generation"
	UsageGeneral            UsageType = "general"
)

// CacheLevel identifies which cache level produced a result.
type CacheLevel string

const (
	CacheLevelExact    CacheLevel = "exact"
	CacheLevelSemantic CacheLevel = "semantic"
	CacheLevelTemplate CacheLevel = "template"
)

// CompletionRequest describes a single model invocation to optimize.
// Model is optional; when empty the selector chooses one at dispatch time.
// The cache key is derived from exactly these fields (see services/cache).
type CompletionRequest struct {
	Prompt       string    `json:"prompt"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	UsageType    UsageType `json:"usage_type,omitempty"`
	Model        string    `json:"model,omitempty"`
	Temperature  float64   `json:"temperature"`
	MaxTokens    int       `json:"max_tokens,omitempty"`
}

// Normalized returns a copy with defaults applied. Requests without a
// usage type fall into the general batch window.
func (r CompletionRequest) Normalized() CompletionRequest {
	if r.UsageType == "" {
		r.UsageType = UsageGeneral
	}
	return r
}

// Deterministic reports whether the request is eligible for the
// template cache level (zero sampling temperature).
func (r CompletionRequest) Deterministic() bool {
	return r.Temperature == 0
}

// CompletionResult is the provider output returned to callers. A result
// served from cache carries the level it was found at in CacheLevel;
// fresh results leave it empty. The shape is identical either way.
type CompletionResult struct {
	Content      string     `json:"content"`
	Model        string     `json:"model"`
	InputTokens  int        `json:"input_tokens"`
	OutputTokens int        `json:"output_tokens"`
	CacheLevel   CacheLevel `json:"cache_level,omitempty"`
	LatencyMs    int64      `json:"latency_ms"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TotalTokens returns the combined token count of the exchange.
func (r *CompletionResult) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Invoker is the provider-invocation capability supplied by the caller.
// The optimization layer never owns provider credentials or transports;
// it only decides whether and when to call this function.
type Invoker func(ctx context.Context, req *CompletionRequest) (*CompletionResult, error)
