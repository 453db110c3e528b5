package nlq

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	categoryListRe = regexp.MustCompile(`종류|(무슨|어떤)\s*이벤트`)
	trendRe        = regexp.MustCompile(`추이|흐름|일별|변화|트렌드|trend|daily`)
	comparisonRe   = regexp.MustCompile(`전주|대비|비교|차이|증감|vs`)
	topNRe         = regexp.MustCompile(`상위|top|\d+\s*위`)
	breakdownRe    = regexp.MustCompile(`[가-힣]별(로|은|는)?([^가-힣]|$)|기준|따라| by `)

	limitRes = []*regexp.Regexp{
		regexp.MustCompile(`상위\s*(\d+)`),
		regexp.MustCompile(`top\s*(\d+)`),
		regexp.MustCompile(`(\d+)\s*위`),
		regexp.MustCompile(`(\d+)\s*개`),
	}
)

// classifyIntent applies the fixed first-match-wins rule order.
// distinctMetrics is the number of distinct explicit metric matches.
func classifyIntent(question string, distinctMetrics int) Intent {
	q := strings.ToLower(question)
	// 요일별 is a weekday breakdown; keep its 일별 substring away from the
	// trend rule.
	trendQ := strings.ReplaceAll(q, "요일별", "")

	switch {
	case categoryListRe.MatchString(q):
		return IntentCategoryList
	case trendRe.MatchString(trendQ):
		return IntentTrend
	case comparisonRe.MatchString(q):
		return IntentComparison
	case topNRe.MatchString(q):
		return IntentTopN
	case breakdownRe.MatchString(q):
		return IntentBreakdown
	case distinctMetrics > 1:
		return IntentMetricMulti
	default:
		return IntentMetricSingle
	}
}

// parseLimit extracts an explicit top-N ask, 0 when absent.
func parseLimit(question string) int {
	q := strings.ToLower(question)
	for _, re := range limitRes {
		if m := re.FindStringSubmatch(q); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}
