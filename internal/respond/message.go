package respond

import (
	"fmt"
	"strings"

	"nugget/internal/exec"
	"nugget/internal/nlq"
	"nugget/internal/plan"
)

const (
	defaultListTop  = 10
	fullListTop     = 1000
	condensedTop    = 5
	noResultMessage = "조회된 데이터가 없습니다."
)

// buildMessage renders the prose parts for one turn: a synthesizer
// insight first when one matches, then one passage per surviving block.
func (a *Adapter) buildMessage(in Input) []string {
	var parts []string
	if insight, ok := a.synthesize(in); ok {
		parts = append(parts, insight...)
	}
	for _, res := range in.Outcome.Results {
		switch res.Type {
		case plan.BlockTotal:
			parts = append(parts, a.totalLines(res)...)
		case plan.BlockTrend:
			parts = append(parts, a.trendLine(res))
		default:
			parts = append(parts, a.breakdownPassage(in.Question, in.Extraction.Modifiers, res)...)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, noResultMessage)
	}
	return parts
}

// totalLines renders one line per metric of a total block.
func (a *Adapter) totalLines(res exec.BlockResult) []string {
	lines := make([]string, 0, len(res.Metrics))
	for _, m := range res.Metrics {
		ui := a.reg.UINameOf(m)
		lines = append(lines, fmt.Sprintf("%s%s %s입니다",
			ui, TopicParticle(ui), FormatMetric(m, res.Totals[m])))
	}
	return lines
}

// breakdownPassage renders the summary line plus the ranked list.
func (a *Adapter) breakdownPassage(question string, mods nlq.Modifiers, res exec.BlockResult) []string {
	if len(res.Dimensions) == 0 || len(res.Metrics) == 0 || res.Table.Len() == 0 {
		return []string{fmt.Sprintf("%s 결과가 없습니다.", res.Title)}
	}
	dim, metric := res.Dimensions[0], res.Metrics[0]
	rows := res.Table.Rows

	topLabel := FormatDimension(dim, rows[0][dim].Str())
	topValue := FormatValue(metric, rows[0][metric])
	lines := []string{fmt.Sprintf("%s 기준 상위 결과는 %s (%s) 입니다. (총 %d개)",
		res.Title, topLabel, topValue, len(rows))}

	budget := listBudget(question, mods)
	for i, row := range rows {
		if i >= budget {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s: %s",
			i+1, FormatDimension(dim, row[dim].Str()), FormatValue(metric, row[metric])))
	}
	return lines
}

// listBudget sizes the ranked list: 전체/모두 widens it, 가장/많이 without an
// explicit top-N narrows it to the head.
func listBudget(question string, mods nlq.Modifiers) int {
	switch {
	case strings.Contains(question, "전체") || strings.Contains(question, "모두"):
		return fullListTop
	case mods.Limit == 0 && (strings.Contains(question, "가장") || strings.Contains(question, "많이")):
		return condensedTop
	default:
		return defaultListTop
	}
}

// trendLine summarizes the time span of a trend block.
func (a *Adapter) trendLine(res exec.BlockResult) string {
	if len(res.Dimensions) == 0 || res.Table.Len() == 0 {
		return fmt.Sprintf("%s 결과가 없습니다.", res.Title)
	}
	dim := res.Dimensions[0]
	rows := res.Table.Rows
	first := FormatDimension(dim, rows[0][dim].Str())
	last := FormatDimension(dim, rows[len(rows)-1][dim].Str())
	return fmt.Sprintf("%s%s %d개 시점으로 확인했습니다. (%s ~ %s)",
		res.Title, ObjectParticle(res.Title), len(rows), first, last)
}
