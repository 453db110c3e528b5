package respond

import (
	"regexp"
	"strings"

	"nugget/internal/exec"
	"nugget/internal/nlq"
	"nugget/internal/plan"
)

const maxFollowups = 3

var (
	comparisonTokenRe = regexp.MustCompile(`전주|대비|비교|차이|증감|vs`)
	relativePeriodRe  = regexp.MustCompile(`지난\s*주|이번\s*주|지난\s*달|이번\s*달`)
	topNTokenRe       = regexp.MustCompile(`상위|top|\d+\s*위`)
)

// buildFollowups proposes up to three next questions, mirroring what the
// current answer did not cover.
func buildFollowups(question string, ext nlq.Extraction, results []exec.BlockResult) []string {
	lower := strings.ToLower(question)
	hasBreakdown := false
	for _, r := range results {
		if r.Type == plan.BlockBreakdown || r.Type == plan.BlockBreakdownTopN {
			hasBreakdown = true
			break
		}
	}

	var out []string
	if !comparisonTokenRe.MatchString(lower) && relativePeriodRe.MatchString(question) {
		out = append(out, "이전 기간과 비교해 증감도 보여드릴까요?")
	}
	if !hasBreakdown {
		out = append(out, "채널별/디바이스별로 나눠서 볼까요?")
	}
	if len(ext.Metrics) > 0 && ext.Intent != nlq.IntentTopN && !topNTokenRe.MatchString(lower) {
		out = append(out, "상위 항목 TOP 10으로 확장할까요?")
	}
	if hasBreakdown {
		out = append(out, "상위 항목의 원인 분석까지 이어서 볼까요?")
	}
	if len(out) > maxFollowups {
		out = out[:maxFollowups]
	}
	return out
}
