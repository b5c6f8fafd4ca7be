// Package catalog holds the static descriptors of available model
// endpoints. The catalog is immutable after load; everything else in the
// optimization layer treats it as read-only reference data.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/igorhaf/orbit-ai-optimizer/services"
)

// ModelInfo describes one model endpoint.
type ModelInfo struct {
	Name     string `json:"name" yaml:"name"`
	Provider string `json:"provider" yaml:"provider"`

	// QualityScore is a fixed catalog-assigned scalar in [0,1] used only
	// for relative ranking.
	QualityScore float64 `json:"quality_score" yaml:"quality_score"`
	AvgLatencyMs int     `json:"avg_latency_ms" yaml:"avg_latency_ms"`

	// Prices are USD per million tokens.
	InputPricePerMTok  float64 `json:"input_price_per_mtok" yaml:"input_price_per_mtok"`
	OutputPricePerMTok float64 `json:"output_price_per_mtok" yaml:"output_price_per_mtok"`

	MaxInputTokens  int  `json:"max_input_tokens" yaml:"max_input_tokens"`
	MaxOutputTokens int  `json:"max_output_tokens" yaml:"max_output_tokens"`
	Available       bool `json:"available" yaml:"available"`
}

// EstimateCost returns the estimated USD cost of a call with the given
// token volumes.
func (m ModelInfo) EstimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*m.InputPricePerMTok +
		float64(outputTokens)/1e6*m.OutputPricePerMTok
}

// Catalog is an immutable collection of model descriptors.
type Catalog struct {
	models map[string]ModelInfo
	names  []string // sorted, for deterministic iteration
}

// New builds a catalog from the given descriptors. Duplicate names are
// rejected so selection stays unambiguous.
func New(models []ModelInfo) (*Catalog, error) {
	c := &Catalog{models: make(map[string]ModelInfo, len(models))}
	for _, m := range models {
		if m.Name == "" {
			return nil, fmt.Errorf("catalog entry missing name")
		}
		if _, exists := c.models[m.Name]; exists {
			return nil, fmt.Errorf("duplicate catalog entry %q", m.Name)
		}
		if m.QualityScore < 0 || m.QualityScore > 1 {
			return nil, fmt.Errorf("catalog entry %q: quality score must be in [0,1]", m.Name)
		}
		c.models[m.Name] = m
		c.names = append(c.names, m.Name)
	}
	sort.Strings(c.names)
	return c, nil
}

// Default returns the built-in catalog used when no override file is
// configured.
func Default() *Catalog {
	c, err := New(defaultModels())
	if err != nil {
		// The built-in table is validated by tests; failing here means a
		// programming error, not a runtime condition.
		panic(err)
	}
	return c
}

// LoadFile reads a catalog override from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	var doc struct {
		Models []ModelInfo `yaml:"models"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}
	if len(doc.Models) == 0 {
		return nil, fmt.Errorf("catalog file %s contains no models", path)
	}
	return New(doc.Models)
}

// Get returns the descriptor for a model name.
func (c *Catalog) Get(name string) (ModelInfo, error) {
	m, ok := c.models[name]
	if !ok {
		return ModelInfo{}, services.ErrModelNotFound.WithDetail("model", name)
	}
	return m, nil
}

// List returns all descriptors ordered by name.
func (c *Catalog) List() []ModelInfo {
	out := make([]ModelInfo, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, c.models[name])
	}
	return out
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.models)
}

func defaultModels() []ModelInfo {
	return []ModelInfo{
		{
			Name:               "claude-sonnet-4",
			Provider:           "anthropic",
			QualityScore:       0.95,
			AvgLatencyMs:       2400,
			InputPricePerMTok:  3.00,
			OutputPricePerMTok: 15.00,
			MaxInputTokens:     200000,
			MaxOutputTokens:    64000,
			Available:          true,
		},
		{
			Name:               "claude-3-5-haiku",
			Provider:           "anthropic",
			QualityScore:       0.78,
			AvgLatencyMs:       900,
			InputPricePerMTok:  0.80,
			OutputPricePerMTok: 4.00,
			MaxInputTokens:     200000,
			MaxOutputTokens:    8192,
			Available:          true,
		},
		{
			Name:               "gpt-4o",
			Provider:           "openai",
			QualityScore:       0.92,
			AvgLatencyMs:       1800,
			InputPricePerMTok:  2.50,
			OutputPricePerMTok: 10.00,
			MaxInputTokens:     128000,
			MaxOutputTokens:    16384,
			Available:          true,
		},
		{
			Name:               "gpt-4o-mini",
			Provider:           "openai",
			QualityScore:       0.72,
			AvgLatencyMs:       750,
			InputPricePerMTok:  0.15,
			OutputPricePerMTok: 0.60,
			MaxInputTokens:     128000,
			MaxOutputTokens:    16384,
			Available:          true,
		},
		{
			// Kept for callers with pinned requests; not selectable.
			Name:               "gpt-4-turbo",
			Provider:           "openai",
			QualityScore:       0.88,
			AvgLatencyMs:       3200,
			InputPricePerMTok:  10.00,
			OutputPricePerMTok: 30.00,
			MaxInputTokens:     128000,
			MaxOutputTokens:    4096,
			Available:          false,
		},
	}
}
