// Package respond shapes executor outcomes into the user-facing reply:
// Korean prose, a single chart spec, cleaned rows, headline values and
// follow-up suggestions. Everything here is deterministic; the same
// inputs always render the same reply.
package respond

import (
	"fmt"
	"regexp"
	"strings"

	"nugget/internal/catalog"
	"nugget/internal/exec"
	"nugget/internal/nlq"
	"nugget/internal/plan"
	"nugget/internal/shared/logging"
)

// Input is everything the adapter needs to render one turn.
type Input struct {
	Question   string
	Extraction nlq.Extraction
	Plan       plan.Plan
	Outcome    exec.Outcome
}

// Response is the adapter's contribution to the envelope. Blocks carries
// the results after row cleaning so callers serialize what was rendered.
type Response struct {
	Message    string
	Blocks     []exec.BlockResult
	PlotData   PlotData
	RawData    []map[string]any
	Structured map[string]string
	Followups  []string
}

// Adapter renders executed plans into Korean prose and chart shapes.
type Adapter struct {
	reg    *catalog.Registry
	logger logging.Logger
}

// NewAdapter builds an adapter over the metric/dimension registry.
func NewAdapter(reg *catalog.Registry, logger logging.Logger) *Adapter {
	return &Adapter{reg: reg, logger: logging.OrNop(logger)}
}

var brevityRe = regexp.MustCompile(`한\s*줄|요약|간단|짧게|brief`)

// Respond builds the reply for one executed plan.
func (a *Adapter) Respond(in Input) Response {
	if in.Extraction.Modifiers.ExcludeNotSet {
		cleaned := make([]exec.BlockResult, len(in.Outcome.Results))
		for i, res := range in.Outcome.Results {
			cleaned[i] = dropBlankRows(res)
		}
		in.Outcome.Results = cleaned
	}

	parts := a.buildMessage(in)
	if warning, ok := a.collectionWarning(in); ok {
		parts = append(parts, warning)
	}
	if len(in.Outcome.Dropped) > 0 {
		parts = append(parts, "일부 데이터는 불러오지 못해 제외했습니다.")
	}

	separator := "\n"
	if brevityRe.MatchString(strings.ToLower(in.Question)) {
		separator = " "
	}

	return Response{
		Message:    strings.Join(parts, separator),
		Blocks:     in.Outcome.Results,
		PlotData:   a.buildChart(in.Outcome.Results),
		RawData:    rawRows(in.Outcome.Results),
		Structured: a.structured(in.Outcome.Results),
		Followups:  buildFollowups(in.Question, in.Extraction, in.Outcome.Results),
	}
}

// blankLikeValues are the dimension values that count as uncollected.
var blankLikeValues = map[string]bool{
	"":          true,
	"(not set)": true,
	"(none)":    true,
	"none":      true,
	"null":      true,
	"nan":       true,
	"unknown":   true,
}

func isBlankLike(v string) bool {
	return blankLikeValues[strings.ToLower(strings.TrimSpace(v))]
}

// dropBlankRows removes rows whose primary dimension is blank-like and
// recomputes the totals from the survivors.
func dropBlankRows(res exec.BlockResult) exec.BlockResult {
	if len(res.Dimensions) == 0 || res.Table.Len() == 0 {
		return res
	}
	primaryDim := res.Dimensions[0]
	table := exec.NewTable(res.Table.Columns...)
	totals := make(map[string]float64, len(res.Metrics))
	for _, row := range res.Table.Rows {
		if isBlankLike(row[primaryDim].Str()) {
			continue
		}
		table.Rows = append(table.Rows, row)
		for _, m := range res.Metrics {
			if row[m].Kind() == exec.KindFloat {
				f, _ := row[m].Float64()
				totals[m] += f
			}
		}
	}
	res.Table = table
	res.Totals = totals
	return res
}

const blankWarnRatio = 0.70

// collectionWarning flags a custom parameter the question asked for whose
// rows are mostly uncollected.
func (a *Adapter) collectionWarning(in Input) (string, bool) {
	primary, ok := primaryResult(in.Outcome.Results)
	if !ok {
		return "", false
	}
	for _, d := range primary.Dimensions {
		if !catalog.IsCustomKey(d) || primary.Table.Len() == 0 {
			continue
		}
		blanks := 0
		for _, row := range primary.Table.Rows {
			if isBlankLike(row[d].Str()) {
				blanks++
			}
		}
		ratio := float64(blanks) / float64(primary.Table.Len())
		if ratio >= blankWarnRatio {
			_, param, _ := catalog.SplitCustomKey(d)
			return fmt.Sprintf("참고: '%s' 값이 수집되지 않은 행이 %.0f%%여서 해석에 주의가 필요합니다.", param, ratio*100), true
		}
	}
	return "", false
}

// primaryResult returns the anchor result: first breakdown or trend, else
// the first block.
func primaryResult(results []exec.BlockResult) (exec.BlockResult, bool) {
	for _, r := range results {
		if r.Type != plan.BlockTotal {
			return r, true
		}
	}
	if len(results) > 0 {
		return results[0], true
	}
	return exec.BlockResult{}, false
}

// rawRows flattens the primary block's rows for the raw_data field.
// Values unwrap through Value, so NaN and Inf are already null.
func rawRows(results []exec.BlockResult) []map[string]any {
	primary, ok := primaryResult(results)
	if !ok {
		return []map[string]any{}
	}
	rows := make([]map[string]any, 0, primary.Table.Len())
	for _, row := range primary.Table.Rows {
		out := make(map[string]any, len(row))
		for k, v := range row {
			out[k] = v.Any()
		}
		rows = append(rows, out)
	}
	return rows
}

// structured maps UI names to formatted headline values: total blocks
// when present, else the primary block's per-metric totals.
func (a *Adapter) structured(results []exec.BlockResult) map[string]string {
	out := make(map[string]string)
	for _, res := range results {
		if res.Type != plan.BlockTotal {
			continue
		}
		for _, m := range res.Metrics {
			out[a.reg.UINameOf(m)] = FormatMetric(m, res.Totals[m])
		}
	}
	if len(out) > 0 {
		return out
	}
	if primary, ok := primaryResult(results); ok {
		for _, m := range primary.Metrics {
			out[a.reg.UINameOf(m)] = FormatMetric(m, primary.Totals[m])
		}
	}
	return out
}
