// Package convo carries conversational state across turns: the persisted
// last-state snapshot, the relation of a new question to that state, and
// the slot-inheritance policy applied before planning.
package convo

import "time"

// Source identifies which data source a conversation key belongs to.
// States for different sources of the same conversation are independent.
type Source string

const (
	SourceAnalytics Source = "ga4"
	SourceFile      Source = "file"
)

// Period is one closed date range carried in state, ISO YYYY-MM-DD.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AnalysisMeta records where the file engine left off, for pagination
// follow-ups ("다음 500개").
type AnalysisMeta struct {
	Intent       string `json:"intent,omitempty"`
	GroupColumn  string `json:"group_column,omitempty"`
	MetricColumn string `json:"metric_column,omitempty"`
	PageOffset   int    `json:"page_offset"`
	PageLimit    int    `json:"page_limit,omitempty"`
}

// State is the last successful turn's anchor, persisted per
// (conversation, source). It is written as a whole document; partial
// updates never happen.
type State struct {
	Metrics    []string `json:"metrics,omitempty"`
	Dimensions []string `json:"dimensions,omitempty"`
	StartDate  string   `json:"start_date,omitempty"`
	EndDate    string   `json:"end_date,omitempty"`
	Intent     string   `json:"intent,omitempty"`
	ScopeType  string   `json:"scope_type,omitempty"`
	LastEntity string   `json:"last_entity,omitempty"`

	EventFilter string   `json:"event_filter,omitempty"`
	Periods     []Period `json:"periods,omitempty"`

	// LastAnalysisMeta is only populated for file-source states.
	LastAnalysisMeta *AnalysisMeta `json:"last_analysis_meta,omitempty"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// HasDates reports whether the state carries a complete date window.
func (s *State) HasDates() bool {
	return s != nil && s.StartDate != "" && s.EndDate != ""
}

// Clone returns a deep copy so policy pruning never mutates the stored state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Metrics = append([]string(nil), s.Metrics...)
	out.Dimensions = append([]string(nil), s.Dimensions...)
	out.Periods = append([]Period(nil), s.Periods...)
	if s.LastAnalysisMeta != nil {
		meta := *s.LastAnalysisMeta
		out.LastAnalysisMeta = &meta
	}
	return &out
}

// Context records which source a conversation is currently pointed at and
// the addressing it needs (property for analytics, path for files).
type Context struct {
	ActiveSource Source `json:"active_source,omitempty"`
	PropertyID   string `json:"property_id,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
}
