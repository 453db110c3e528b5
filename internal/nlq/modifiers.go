package nlq

import (
	"regexp"
	"strings"

	"nugget/internal/catalog"
)

const maxEntityTerms = 4

var (
	totalRe      = regexp.MustCompile(`총|전체|합계|합쳐|모두`)
	splitRe      = regexp.MustCompile(`나눠|나누어|분포`)
	notSetRe     = regexp.MustCompile(`\(?not\s*set\)?|notset|미수집`)
	excludeRe    = regexp.MustCompile(`제외|빼고|빼줘`)
	itemScopeRe  = regexp.MustCompile(`상품|제품|아이템`)
	userScopeRe  = regexp.MustCompile(`사용자\s*특성|연령|성별|재방문`)
	orderAscRe   = regexp.MustCompile(`적은\s*순|낮은\s*순|오름차순`)
	quotedSpanRe = regexp.MustCompile(`['"‘“「]([^'"’”」]{2,40})['"’”」]`)
	snakeCaseRe  = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9]*(?:_[a-zA-Z0-9]+)+`)
	aboutRe      = regexp.MustCompile(`([\w가-힣]+)\s*에\s*대해`)
	basisRe      = regexp.MustCompile(`([\w가-힣]+)\s*기준`)
	pairRe       = regexp.MustCompile(`([\w가-힣]+)[와과]\s+([\w가-힣]+)`)

	trailingJosaRe = regexp.MustCompile(`(은|는|이|가|을|를|에|의|중)$`)
	noiseTermRe    = regexp.MustCompile(`^(가장|많이|상위|top\d*|\d+위|\d+개|매우|제일)$`)
)

// entityStopwords are terms that read like entities but carry no filter
// meaning for this domain.
var entityStopwords = map[string]struct{}{
	"이벤트": {}, "데이터": {}, "정보": {}, "결과": {}, "분석": {}, "내용": {},
	"오늘": {}, "어제": {}, "지난주": {}, "이번주": {}, "지난달": {}, "이번달": {},
	"그리고": {}, "어떤": {}, "어떤게": {}, "어느": {}, "얼마나": {}, "궁금": {},
	"알려줘": {}, "보여줘": {}, "알려주세요": {}, "보여주세요": {}, "주세요": {},
	"비중": {}, "비율": {}, "차이": {}, "추이": {}, "기준": {}, "전체": {},
}

// detectModifiers scans the raw question for operator requests.
func detectModifiers(question string, reg *catalog.Registry) Modifiers {
	q := strings.ToLower(question)

	mods := Modifiers{
		NeedsTotal:     totalRe.MatchString(question),
		NeedsBreakdown: breakdownRe.MatchString(q) || splitRe.MatchString(question),
		ExcludeNotSet:  notSetRe.MatchString(q) && excludeRe.MatchString(question),
		Limit:          parseLimit(question),
		EntityTerms:    extractEntityTerms(question, reg),
		// Rows sort by value descending unless the question asks for the
		// small end.
		OrderDesc: !orderAscRe.MatchString(question),
	}

	switch {
	case itemScopeRe.MatchString(question):
		mods.ScopeHint = catalog.ScopeItem
	case userScopeRe.MatchString(question):
		mods.ScopeHint = catalog.ScopeUser
	}

	return mods
}

// extractEntityTerms pulls filter-worthy terms out of the question:
// quoted spans, noun-조사 constructions, and snake_case event-like tokens.
// Terms that resolve as registry fields are matching's business, not
// entities.
func extractEntityTerms(question string, reg *catalog.Registry) []string {
	var raw []string

	for _, m := range quotedSpanRe.FindAllStringSubmatch(question, -1) {
		raw = append(raw, m[1])
	}
	raw = append(raw, snakeCaseRe.FindAllString(question, -1)...)
	for _, m := range aboutRe.FindAllStringSubmatch(question, -1) {
		raw = append(raw, m[1])
	}
	for _, m := range basisRe.FindAllStringSubmatch(question, -1) {
		raw = append(raw, m[1])
	}
	for _, m := range pairRe.FindAllStringSubmatch(question, -1) {
		raw = append(raw, m[1], m[2])
	}

	seen := make(map[string]struct{})
	var terms []string
	for _, term := range raw {
		cleaned, ok := cleanEntityTerm(term, reg)
		if !ok {
			continue
		}
		if _, dup := seen[cleaned]; dup {
			continue
		}
		seen[cleaned] = struct{}{}
		terms = append(terms, cleaned)
		if len(terms) == maxEntityTerms {
			break
		}
	}
	return terms
}

func cleanEntityTerm(term string, reg *catalog.Registry) (string, bool) {
	cleaned := strings.TrimSpace(term)
	// Snake_case identifiers keep their trailing characters; Korean nouns
	// shed one trailing 조사.
	if !strings.Contains(cleaned, "_") {
		cleaned = trailingJosaRe.ReplaceAllString(cleaned, "")
	}
	cleaned = strings.TrimSpace(cleaned)

	if len([]rune(cleaned)) < 2 {
		return "", false
	}
	lower := strings.ToLower(cleaned)
	if noiseTermRe.MatchString(lower) {
		return "", false
	}
	if _, stop := entityStopwords[cleaned]; stop {
		return "", false
	}
	if reg != nil {
		if _, isMetric := reg.ResolveMetric(cleaned); isMetric {
			return "", false
		}
		if _, isDim := reg.ResolveDimension(cleaned); isDim {
			return "", false
		}
	}
	return cleaned, true
}
