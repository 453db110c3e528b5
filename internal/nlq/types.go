// Package nlq turns a raw Korean question into structured candidates:
// intent, metric/dimension candidates with confidence, a date range,
// modifiers and entity terms. Everything downstream of this package is
// deterministic; this is where the ambiguity gets resolved into scores.
package nlq

import "nugget/internal/catalog"

// Intent is the single question-level intent, first matching rule wins.
type Intent string

const (
	IntentMetricSingle Intent = "metric_single"
	IntentMetricMulti  Intent = "metric_multi"
	IntentBreakdown    Intent = "breakdown"
	IntentTopN         Intent = "topn"
	IntentComparison   Intent = "comparison"
	IntentTrend        Intent = "trend"
	IntentCategoryList Intent = "category_list"
)

// MatchedBy records how a candidate earned its score. Explicit and alias
// hits are both literal substring matches; the tag keeps the provenance
// apart in telemetry.
type MatchedBy string

const (
	MatchedExplicit     MatchedBy = "explicit"
	MatchedAlias        MatchedBy = "alias"
	MatchedSemanticHigh MatchedBy = "semantic_high"
	MatchedSemanticMid  MatchedBy = "semantic_mid"
	MatchedInherited    MatchedBy = "inherited"
	MatchedSynthetic    MatchedBy = "synthetic"
	MatchedLLM          MatchedBy = "llm"
)

// Semantic lookup thresholds. HIGH accepts, MID only suggests.
const (
	SemanticHighThreshold = 0.40
	SemanticMidThreshold  = 0.25
)

// Candidate is one scored metric or dimension hypothesis.
type Candidate struct {
	Name         string        `json:"name"`
	Score        float64       `json:"score"`
	MatchedBy    MatchedBy     `json:"matched_by"`
	Scope        catalog.Scope `json:"scope,omitempty"`
	NeedsClarify bool          `json:"needs_clarify,omitempty"`
}

// DateRange is a closed ISO date window. Both ends set or both empty.
type DateRange struct {
	Start           string `json:"start_date,omitempty"`
	End             string `json:"end_date,omitempty"`
	IsRelativeShift bool   `json:"is_relative_shift,omitempty"`
}

// IsZero reports whether no dates were detected.
func (d DateRange) IsZero() bool { return d.Start == "" && d.End == "" }

// Modifiers are the operator requests detected in the question.
type Modifiers struct {
	NeedsTotal     bool          `json:"needs_total,omitempty"`
	NeedsBreakdown bool          `json:"needs_breakdown,omitempty"`
	ExcludeNotSet  bool          `json:"exclude_notset,omitempty"`
	ScopeHint      catalog.Scope `json:"scope_hint,omitempty"`
	EntityTerms    []string      `json:"entity_contains,omitempty"`
	Limit          int           `json:"limit,omitempty"`
	OrderDesc      bool          `json:"order_desc,omitempty"`
}

// DebugMatch is one telemetry record of the matching stage.
type DebugMatch struct {
	Token  string  `json:"token"`
	Key    string  `json:"key"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

// MatchingDebug is extractor telemetry surfaced through the envelope.
type MatchingDebug struct {
	Normalized  string       `json:"normalized"`
	Metrics     []DebugMatch `json:"metrics,omitempty"`
	Dimensions  []DebugMatch `json:"dimensions,omitempty"`
	DateSource  string       `json:"date_source,omitempty"`
	LLMFallback bool         `json:"llm_fallback,omitempty"`
	Inherited   bool         `json:"inherited,omitempty"`
	Relation    string       `json:"relation,omitempty"`
}

// Extraction is the extractor's full output for one question.
type Extraction struct {
	Intent     Intent        `json:"intent"`
	Metrics    []Candidate   `json:"metric_candidates"`
	Dimensions []Candidate   `json:"dimension_candidates"`
	Dates      DateRange     `json:"date_range"`
	Modifiers  Modifiers     `json:"modifiers"`
	Debug      MatchingDebug `json:"matching_debug"`
}

// BestMetric returns the top metric candidate, if any.
func (e Extraction) BestMetric() (Candidate, bool) {
	if len(e.Metrics) == 0 {
		return Candidate{}, false
	}
	return e.Metrics[0], true
}

// BestDimension returns the top dimension candidate, if any.
func (e Extraction) BestDimension() (Candidate, bool) {
	if len(e.Dimensions) == 0 {
		return Candidate{}, false
	}
	return e.Dimensions[0], true
}
