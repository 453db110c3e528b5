package fileengine

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"nugget/internal/convo"
	"nugget/internal/exec"
)

// Intent is one file-analysis question class. Level 1 and 2 are answered
// deterministically; only IntentInsight reaches the LLM port.
type Intent string

const (
	IntentGuidance       Intent = "guidance"
	IntentTrend          Intent = "trend"
	IntentCompare        Intent = "compare"
	IntentSchema         Intent = "schema"
	IntentColumnsSummary Intent = "columns_summary"
	IntentPreview        Intent = "preview"
	IntentOverview       Intent = "overview"
	IntentColumnProbe    Intent = "column_probe"
	IntentColumnCount    Intent = "column_count"
	IntentPreviewMore    Intent = "preview_more"
	IntentExplain        Intent = "explain"
	IntentCountUsers     Intent = "count_users"
	IntentCountAdmin     Intent = "count_admin"

	IntentGroupBy      Intent = "groupby"
	IntentAggregate    Intent = "aggregate"
	IntentDistribution Intent = "distribution"

	IntentInsight Intent = "insight"
)

// detection carries the matched intent plus the bits the handlers need:
// the targeted column, the pagination direction and an explicit row count.
type detection struct {
	intent Intent
	column string
	step   int
	limit  int
}

var (
	guidanceRe    = regexp.MustCompile(`뭘\s*물어|무엇을\s*물어|어떤\s*질문|도움말|사용법|할\s*수\s*있|help`)
	fileTrendRe   = regexp.MustCompile(`추이|트렌드|변화|흐름|시간대별|일별|월별`)
	fileCompareRe = regexp.MustCompile(`비교|대비|차이|vs`)
	schemaRe      = regexp.MustCompile(`스키마|구조|타입|형식|dtype`)
	columnsRe     = regexp.MustCompile(`컬럼.*(뭐|무엇|목록|보여)|(무슨|어떤)\s*(컬럼|항목|열)`)
	previewRe     = regexp.MustCompile(`미리\s*보기|샘플|처음|앞\s*(부분|에서)|head|데이터\s*보여|행\s*보여`)
	overviewRe    = regexp.MustCompile(`개요|요약|전반|전체적|(어떤|무슨)\s*(데이터|파일|내용)`)
	probeRe       = regexp.MustCompile(`(어떤|무슨)\s*값|값.*(있|종류)|유니크|고유\s*값`)
	columnCountRe = regexp.MustCompile(`컬럼.*(몇|개수)|열.*(몇|개수)|몇\s*개.*(컬럼|열)`)
	pageStepRe    = regexp.MustCompile(`(다음|이전)\s*(\d+)?\s*(개|행|줄)`)
	pageBareRe    = regexp.MustCompile(`^\s*(그\s*)?(다음|이전)\s*(페이지)?\s*(보여줘|볼래|줘)?\s*[?.!]?\s*$`)
	explainFileRe = regexp.MustCompile(`설명|의미|뜻`)
	countUsersRe  = regexp.MustCompile(`(사용자|유저|회원|고객)[가-힣\s]{0,6}(몇|수|명)`)
	countAdminRe  = regexp.MustCompile(`(관리자|어드민|admin)[가-힣\s]{0,6}(몇|수|명)`)

	groupByMarkerRe = regexp.MustCompile(`[가-힣a-z0-9_]+별(로)?|기준으로|그룹|묶어`)
	aggOpMarkerRe   = regexp.MustCompile(`평균|avg|mean|최대|max|최소|min|합계|총|sum|개수|건수|count|몇\s*건|몇\s*개|몇\s*행|행\s*수`)
	distributionRe  = regexp.MustCompile(`분포|비중|구성비|점유율`)
)

// detectIntent walks the fixed rule ladder: level-1 exploration intents in
// priority order, then the deterministic aggregation level, then insight.
func detectIntent(question string, t *exec.Table, last *convo.AnalysisMeta) detection {
	q := strings.ToLower(question)
	col := resolveColumn(question, t)

	switch {
	case guidanceRe.MatchString(q):
		return detection{intent: IntentGuidance}
	case fileTrendRe.MatchString(q):
		return detection{intent: IntentTrend, column: col}
	case fileCompareRe.MatchString(q):
		return detection{intent: IntentCompare, column: col}
	case schemaRe.MatchString(q):
		return detection{intent: IntentSchema}
	case columnsRe.MatchString(q):
		return detection{intent: IntentColumnsSummary}
	case previewRe.MatchString(q):
		return detection{intent: IntentPreview, limit: parseRowLimit(q)}
	case overviewRe.MatchString(q):
		return detection{intent: IntentOverview}
	case col != "" && probeRe.MatchString(q):
		return detection{intent: IntentColumnProbe, column: col}
	case columnCountRe.MatchString(q):
		return detection{intent: IntentColumnCount}
	}

	if d, ok := detectPagination(question, q, last); ok {
		return d
	}

	switch {
	case explainFileRe.MatchString(q):
		return detection{intent: IntentExplain, column: col}
	case countUsersRe.MatchString(q):
		return detection{intent: IntentCountUsers}
	case countAdminRe.MatchString(q):
		return detection{intent: IntentCountAdmin}
	case groupByMarkerRe.MatchString(q):
		return detection{intent: IntentGroupBy, column: col}
	case distributionRe.MatchString(q):
		// 분포/비중 asks are a grouping question even without a 별 marker;
		// checking them before bare aggregation ops keeps "건수 분포" out
		// of the scalar path.
		return detection{intent: IntentDistribution, column: col}
	case aggOpMarkerRe.MatchString(q):
		return detection{intent: IntentAggregate, column: col}
	}
	return detection{intent: IntentInsight, column: col}
}

// detectPagination recognizes "다음 500개" style steps. A bare 다음/이전 only
// counts when the previous turn was already paging.
func detectPagination(question, lower string, last *convo.AnalysisMeta) (detection, bool) {
	if m := pageStepRe.FindStringSubmatch(question); m != nil {
		d := detection{intent: IntentPreviewMore, step: 1}
		if m[1] == "이전" {
			d.step = -1
		}
		if m[2] != "" {
			if n, err := strconv.Atoi(m[2]); err == nil && n > 0 {
				d.limit = n
			}
		}
		return d, true
	}
	if last == nil {
		return detection{}, false
	}
	lastIntent := Intent(last.Intent)
	if lastIntent != IntentPreview && lastIntent != IntentPreviewMore {
		return detection{}, false
	}
	if m := pageBareRe.FindStringSubmatch(lower); m != nil {
		d := detection{intent: IntentPreviewMore, step: 1}
		if m[2] == "이전" {
			d.step = -1
		}
		return d, true
	}
	return detection{}, false
}

var rowLimitRe = regexp.MustCompile(`(\d+)\s*(개|행|줄)`)

func parseRowLimit(lower string) int {
	if m := rowLimitRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// resolveColumn finds the column whose name appears literally in the
// question, longest name first so 후원유형 wins over 유형.
func resolveColumn(question string, t *exec.Table) string {
	if t == nil {
		return ""
	}
	lower := strings.ToLower(question)
	names := append([]string(nil), t.Columns...)
	sort.SliceStable(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	for _, name := range names {
		trimmed := strings.ToLower(strings.TrimSpace(name))
		if trimmed == "" {
			continue
		}
		if strings.Contains(lower, trimmed) {
			return name
		}
	}
	return ""
}
