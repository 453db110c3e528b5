// Package chat orchestrates one conversational turn end to end and shapes
// the reply envelope shared by the HTTP handler and the REPL.
package chat

import (
	"nugget/internal/exec"
	"nugget/internal/nlq"
	"nugget/internal/plan"
	"nugget/internal/respond"
)

// Turn status values carried in the envelope.
const (
	StatusOK           = "ok"
	StatusClarify      = "clarify"
	StatusError        = "error"
	StatusPartialError = "partial_error"
)

// BlockPayload is the machine-usable view of one executed block.
type BlockPayload struct {
	BlockID    string             `json:"block_id"`
	Title      string             `json:"title"`
	Type       plan.BlockType     `json:"block_type"`
	Metrics    []string           `json:"metrics,omitempty"`
	Dimensions []string           `json:"dimensions,omitempty"`
	Totals     map[string]float64 `json:"totals,omitempty"`
	Rows       []map[string]any   `json:"rows,omitempty"`
}

// Envelope is the reply of one turn. Collection fields are always present,
// empty rather than null, so clients never branch on missing keys.
type Envelope struct {
	Status     string             `json:"status"`
	Message    string             `json:"message"`
	Account    string             `json:"account,omitempty"`
	Period     string             `json:"period,omitempty"`
	Blocks     []BlockPayload     `json:"blocks"`
	PlotData   respond.PlotData   `json:"plot_data"`
	RawData    []map[string]any   `json:"raw_data"`
	Structured map[string]string  `json:"structured"`
	Followups  []string           `json:"followup_suggestions"`
	Debug      *nlq.MatchingDebug `json:"matching_debug,omitempty"`
}

func newEnvelope(status, message string) *Envelope {
	return &Envelope{
		Status:     status,
		Message:    message,
		Blocks:     []BlockPayload{},
		RawData:    []map[string]any{},
		Structured: map[string]string{},
		Followups:  []string{},
	}
}

func statusOf(s exec.Status) string {
	switch s {
	case exec.StatusOK:
		return StatusOK
	case exec.StatusPartial:
		return StatusPartialError
	default:
		return StatusError
	}
}

func blockPayloads(results []exec.BlockResult) []BlockPayload {
	out := make([]BlockPayload, 0, len(results))
	for _, res := range results {
		out = append(out, BlockPayload{
			BlockID:    res.BlockID,
			Title:      res.Title,
			Type:       res.Type,
			Metrics:    append([]string(nil), res.Metrics...),
			Dimensions: append([]string(nil), res.Dimensions...),
			Totals:     res.Totals,
			Rows:       tableRows(res.Table),
		})
	}
	return out
}

func tableRows(t *exec.Table) []map[string]any {
	if t == nil || t.Len() == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, t.Len())
	for _, row := range t.Rows {
		m := make(map[string]any, len(row))
		for k, v := range row {
			m[k] = v.Any()
		}
		rows = append(rows, m)
	}
	return rows
}
