package respond

import (
	"fmt"
	"regexp"
	"strings"

	"nugget/internal/catalog"
	"nugget/internal/exec"
)

// Domain synthesizers are pure functions over the primary block's rows.
// Each one inspects the question for its trigger and, when preconditions
// hold, computes a lead-in passage whose numbers all come from the rows.
// They run in a fixed order and the first match wins.

var (
	ratioTriggerRe      = regexp.MustCompile(`비중|구성비|비율|점유율`)
	dualTriggerRe       = regexp.MustCompile(`중|어떤게|어느|많아|더`)
	conversionAskRe     = regexp.MustCompile(`전환|비율`)
	conversionSubjectRe = regexp.MustCompile(`클릭|구매`)
	profileTriggerRe    = regexp.MustCompile(`매개변수|파라미터|상세|정보`)
	donationKeywordRe   = regexp.MustCompile(`[가-힣]*후원`)
)

type synthesizer func(Input, exec.BlockResult) ([]string, bool)

func (a *Adapter) synthesize(in Input) ([]string, bool) {
	primary, ok := primaryResult(in.Outcome.Results)
	if !ok {
		return nil, false
	}
	for _, synth := range []synthesizer{
		a.namedRatio,
		a.dualEntity,
		a.domesticOverseas,
		a.conversionRate,
		a.itemProfile,
	} {
		if lines, ok := synth(in, primary); ok {
			return lines, true
		}
	}
	return nil, false
}

// namedRatio answers share questions over 후원-suffixed keywords: each
// keyword's sum against the block total, plus a 기타 remainder.
func (a *Adapter) namedRatio(in Input, primary exec.BlockResult) ([]string, bool) {
	if !ratioTriggerRe.MatchString(in.Question) {
		return nil, false
	}
	keywords := donationKeywords(in.Question)
	if len(keywords) < 2 || len(primary.Dimensions) == 0 || len(primary.Metrics) == 0 {
		return nil, false
	}
	dim, metric := primary.Dimensions[0], primary.Metrics[0]
	total := primary.Totals[metric]
	if total <= 0 {
		return nil, false
	}

	sums := make([]float64, len(keywords))
	var matched float64
	for _, row := range primary.Table.Rows {
		label := row[dim].Str()
		f, ok := row[metric].Float64()
		if !ok {
			continue
		}
		for i, kw := range keywords {
			if strings.Contains(label, kw) {
				sums[i] += f
				matched += f
				break
			}
		}
	}

	lines := make([]string, 0, len(keywords)+1)
	for i, kw := range keywords {
		lines = append(lines, fmt.Sprintf("%s: %s (%.1f%%)",
			kw, FormatMetric(metric, sums[i]), sums[i]/total*100))
	}
	rest := total - matched
	lines = append(lines, fmt.Sprintf("기타: %s (%.1f%%)",
		FormatMetric(metric, rest), rest/total*100))
	return lines, true
}

// donationKeywords pulls the unique 후원-suffixed words out of the
// question, in appearance order. Bare 후원 does not count.
func donationKeywords(question string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, kw := range donationKeywordRe.FindAllString(question, -1) {
		if len([]rune(kw)) < 3 || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

// dualEntity decides which of exactly two asked-about entities is larger.
func (a *Adapter) dualEntity(in Input, primary exec.BlockResult) ([]string, bool) {
	terms := in.Extraction.Modifiers.EntityTerms
	if len(terms) != 2 || !dualTriggerRe.MatchString(in.Question) {
		return nil, false
	}
	if len(primary.Dimensions) == 0 || len(primary.Metrics) == 0 {
		return nil, false
	}
	dim, metric := primary.Dimensions[0], primary.Metrics[0]

	var sums [2]float64
	for _, row := range primary.Table.Rows {
		label := row[dim].Str()
		f, ok := row[metric].Float64()
		if !ok {
			continue
		}
		for i, term := range terms {
			if strings.Contains(label, term) {
				sums[i] += f
			}
		}
	}
	if sums[0] == 0 && sums[1] == 0 {
		return nil, false
	}

	winner := 0
	if sums[1] > sums[0] {
		winner = 1
	}
	second := FormatMetric(metric, sums[1])
	line := fmt.Sprintf("'%s' %s, '%s' %s%s '%s'%s 더 많습니다.",
		terms[0], FormatMetric(metric, sums[0]),
		terms[1], second, InstrumentalParticle(second),
		terms[winner], SubjectParticle(terms[winner]))
	return []string{line}, true
}

// domesticValues are the country labels counted as 국내.
var domesticValues = map[string]bool{
	"한국":          true,
	"대한민국":        true,
	"South Korea": true,
	"Korea":       true,
}

// domesticOverseas splits a country column into 국내 and 해외 shares.
func (a *Adapter) domesticOverseas(in Input, primary exec.BlockResult) ([]string, bool) {
	if !strings.Contains(in.Question, "해외") || !strings.Contains(in.Question, "국내") {
		return nil, false
	}
	if !primary.Table.HasColumn("country") || len(primary.Metrics) == 0 {
		return nil, false
	}
	metric := primary.Metrics[0]

	var domestic, overseas float64
	for _, row := range primary.Table.Rows {
		f, ok := row[metric].Float64()
		if !ok {
			continue
		}
		if domesticValues[row["country"].Str()] {
			domestic += f
		} else {
			overseas += f
		}
	}
	total := domestic + overseas
	if total <= 0 {
		return nil, false
	}
	return []string{fmt.Sprintf("국내 %s (%.1f%%), 해외 %s (%.1f%%)입니다.",
		FormatMetric(metric, domestic), domestic/total*100,
		FormatMetric(metric, overseas), overseas/total*100)}, true
}

// conversionRate buckets click and purchase counts per donation type and
// derives the purchase/click percentage.
func (a *Adapter) conversionRate(in Input, primary exec.BlockResult) ([]string, bool) {
	if !conversionAskRe.MatchString(in.Question) || !conversionSubjectRe.MatchString(in.Question) {
		return nil, false
	}
	var typeDim string
	for _, d := range primary.Dimensions {
		if strings.HasSuffix(d, "is_regular_donation") {
			typeDim = d
			break
		}
	}
	if typeDim == "" || !primary.Table.HasColumn("eventName") || len(primary.Metrics) == 0 {
		return nil, false
	}
	metric := primary.Metrics[0]

	type funnel struct{ clicks, purchases float64 }
	buckets := make(map[string]*funnel)
	var order []string
	for _, row := range primary.Table.Rows {
		f, ok := row[metric].Float64()
		if !ok {
			continue
		}
		key := row[typeDim].Str()
		b := buckets[key]
		if b == nil {
			b = &funnel{}
			buckets[key] = b
			order = append(order, key)
		}
		event := row["eventName"].Str()
		switch {
		case strings.Contains(event, "click"):
			b.clicks += f
		case strings.Contains(event, "purchase"):
			b.purchases += f
		}
	}

	var lines []string
	for _, key := range order {
		b := buckets[key]
		if b.clicks == 0 && b.purchases == 0 {
			continue
		}
		rate := 0.0
		if b.clicks > 0 {
			rate = b.purchases / b.clicks * 100
		}
		lines = append(lines, fmt.Sprintf("%s: 클릭 %s, 구매 %s, 전환율 %.1f%%",
			donationTypeLabel(key),
			FormatMetric(metric, b.clicks),
			FormatMetric(metric, b.purchases), rate))
	}
	if len(lines) == 0 {
		return nil, false
	}
	return lines, true
}

func donationTypeLabel(raw string) string {
	switch raw {
	case "true":
		return "정기"
	case "false":
		return "일시"
	default:
		return raw
	}
}

// itemProfile lists the distinct parameter values behind the asked-about
// entities.
func (a *Adapter) itemProfile(in Input, primary exec.BlockResult) ([]string, bool) {
	if !profileTriggerRe.MatchString(in.Question) {
		return nil, false
	}
	var profileDims []string
	for _, d := range primary.Dimensions {
		if d == "itemName" || catalog.IsCustomKey(d) {
			profileDims = append(profileDims, d)
		}
	}
	if len(profileDims) == 0 {
		return nil, false
	}
	terms := in.Extraction.Modifiers.EntityTerms

	rowMatches := func(row exec.Row) bool {
		if len(terms) == 0 {
			return true
		}
		for _, d := range primary.Dimensions {
			label := row[d].Str()
			for _, term := range terms {
				if strings.Contains(label, term) {
					return true
				}
			}
		}
		return false
	}

	var lines []string
	for _, d := range profileDims {
		seen := make(map[string]bool)
		var values []string
		for _, row := range primary.Table.Rows {
			if !rowMatches(row) {
				continue
			}
			v := row[d].Str()
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			values = append(values, v)
		}
		if len(values) > 0 {
			lines = append(lines, fmt.Sprintf("%s: %s", a.reg.UINameOf(d), strings.Join(values, ", ")))
		}
	}
	if len(lines) == 0 {
		return nil, false
	}
	return lines, true
}
