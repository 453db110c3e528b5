package fileengine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"nugget/internal/convo"
	"nugget/internal/exec"
	"nugget/internal/llm"
	"nugget/internal/respond"
	"nugget/internal/shared/logging"
)

const (
	defaultPageLimit   = 500
	defaultInsightWait = 6 * time.Second
	insightSampleRows  = 20
	insightMaxColumns  = 8
	listTop            = 10
	chartTopRows       = 30
)

// Result is one answered file question. Meta is handed back to the caller
// for persistence so pagination follow-ups can resume where this turn
// stopped.
type Result struct {
	Message   string
	PlotData  respond.PlotData
	RawData   []map[string]any
	Followups []string
	Meta      *convo.AnalysisMeta
	Period    string
}

// Engine answers questions over one in-memory table. All level-1 and
// level-2 intents are computed locally; only free-form insight reaches the
// LLM client, which may be nil.
type Engine struct {
	llm         llm.Client
	logger      logging.Logger
	insightWait time.Duration
	pageLimit   int
}

// Option adjusts engine defaults.
type Option func(*Engine)

// WithInsightTimeout bounds the LLM insight call.
func WithInsightTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.insightWait = d
		}
	}
}

// WithPageLimit sets the preview page size.
func WithPageLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageLimit = n
		}
	}
}

// NewEngine builds a file engine around an optional LLM client.
func NewEngine(client llm.Client, logger logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		llm:         client,
		logger:      logging.OrNop(logger),
		insightWait: defaultInsightWait,
		pageLimit:   defaultPageLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze profiles the table, detects the question's intent and runs the
// matching handler. Only unmatched questions cost an LLM call.
func (e *Engine) Analyze(ctx context.Context, question string, t *exec.Table, last *convo.State) (*Result, error) {
	if t == nil || len(t.Columns) == 0 {
		return nil, fmt.Errorf("file engine: no table loaded")
	}
	var lastMeta *convo.AnalysisMeta
	if last != nil {
		lastMeta = last.LastAnalysisMeta
	}

	profiles := Profile(t)
	det := detectIntent(question, t, lastMeta)
	e.logger.Debug("file intent %s (column=%q rows=%d)", det.intent, det.column, t.Len())

	res, ok := e.dispatch(det, question, t, profiles, lastMeta)
	if !ok {
		res = e.insight(ctx, question, t, profiles)
	}
	if len(res.Followups) == 0 {
		res.Followups = fileFollowups(res.Meta)
	}
	return res, nil
}

func (e *Engine) dispatch(det detection, question string, t *exec.Table, profiles []ColumnProfile, last *convo.AnalysisMeta) (*Result, bool) {
	switch det.intent {
	case IntentGuidance:
		return guidanceAnswer(profiles), true
	case IntentTrend:
		return trendAnswer(question, t, profiles, det), true
	case IntentCompare:
		return compareAnswer(question, t, profiles, det), true
	case IntentSchema:
		return schemaAnswer(profiles), true
	case IntentColumnsSummary:
		return columnsAnswer(profiles, true), true
	case IntentColumnCount:
		return columnsAnswer(profiles, false), true
	case IntentPreview:
		return e.previewAnswer(t, 0, det.limit, IntentPreview), true
	case IntentPreviewMore:
		return e.pageAnswer(t, det, last), true
	case IntentOverview:
		return overviewAnswer(t, profiles), true
	case IntentColumnProbe:
		return probeAnswer(t, det), true
	case IntentExplain:
		return explainAnswer(t, profiles, det), true
	case IntentCountUsers:
		return countUsersAnswer(t, profiles), true
	case IntentCountAdmin:
		return countAdminAnswer(t, profiles), true
	case IntentGroupBy:
		return e.groupByAnswer(question, t, profiles, det)
	case IntentAggregate:
		return scalarAggregate(question, t, profiles, det)
	case IntentDistribution:
		return distributionAnswer(question, t, profiles, det)
	default:
		return nil, false
	}
}

func guidanceAnswer(profiles []ColumnProfile) *Result {
	names := make([]string, 0, 5)
	for _, p := range profiles {
		if len(names) == 5 {
			break
		}
		names = append(names, p.Name)
	}
	msg := fmt.Sprintf(
		"이 파일로 데이터 개요, 컬럼 구조, 미리보기, 컬럼별 상위 값, 유형별 집계 같은 질문을 할 수 있어요. 주요 컬럼: %s",
		strings.Join(names, ", "))
	return &Result{Message: msg, Meta: &convo.AnalysisMeta{Intent: string(IntentGuidance)}}
}

func trendAnswer(question string, t *exec.Table, profiles []ColumnProfile, det detection) *Result {
	meta := &convo.AnalysisMeta{Intent: string(IntentTrend)}
	dateCol := ""
	if p, ok := findProfile(profiles, det.column); ok && p.Type == TypeDate {
		dateCol = p.Name
	}
	if dateCol == "" {
		for _, p := range profiles {
			if p.Type == TypeDate {
				dateCol = p.Name
				break
			}
		}
	}
	if dateCol == "" {
		return &Result{Message: "날짜로 볼 수 있는 컬럼이 없어 추이를 계산하지 못했습니다.", Meta: meta}
	}

	metricCol, hasMetric := pickMetricColumn(question, profiles)
	seriesName := "건수"
	if hasMetric {
		seriesName = metricCol
	}

	sums := make(map[string]float64)
	seen := make(map[string]bool)
	var order []string
	for _, row := range t.Rows {
		norm, ok := parseDate(strings.TrimSpace(row[dateCol].Str()))
		if !ok {
			continue
		}
		if !seen[norm] {
			seen[norm] = true
			order = append(order, norm)
		}
		if hasMetric {
			if v, ok := row[metricCol].Float64(); ok {
				sums[norm] += v
			}
		} else {
			sums[norm]++
		}
	}
	if len(order) == 0 {
		return &Result{Message: "추이를 계산할 날짜 값이 없습니다.", Meta: meta}
	}
	sort.Strings(order)

	data := make([]float64, 0, len(order))
	raw := make([]map[string]any, 0, len(order))
	for _, d := range order {
		data = append(data, sums[d])
		raw = append(raw, map[string]any{dateCol: d, seriesName: sums[d]})
	}

	meta.GroupColumn = dateCol
	if hasMetric {
		meta.MetricColumn = metricCol
	}
	first, last := order[0], order[len(order)-1]
	return &Result{
		Message: fmt.Sprintf("'%s' 기준 %d개 시점의 추이입니다. (%s ~ %s)", dateCol, len(order), first, last),
		PlotData: respond.PlotData{Chart: &respond.ChartSpec{
			Type:   "line",
			Labels: order,
			Series: []respond.ChartSeries{{Name: seriesName, Data: data}},
		}},
		RawData: raw,
		Meta:    meta,
		Period:  first + " ~ " + last,
	}
}

func compareAnswer(question string, t *exec.Table, profiles []ColumnProfile, det detection) *Result {
	meta := &convo.AnalysisMeta{Intent: string(IntentCompare)}
	group := groupColumnFor(question, t, profiles, det.column)
	if group == "" {
		group = firstCategorical(profiles)
	}
	if group == "" {
		return &Result{Message: "비교할 기준 컬럼을 찾지 못했습니다.", Meta: meta}
	}

	metric, hasMetric := pickMetricColumn(question, profiles)
	op := pickOp(question)
	if !hasMetric {
		metric, op = "", opCount
	}
	agg := aggregate(t, group, metric, op)
	if agg.Len() < 2 {
		return &Result{Message: "비교할 그룹이 충분하지 않습니다.", Meta: meta}
	}

	valueCol := agg.Columns[1]
	g1, g2 := agg.Rows[0][group].Str(), agg.Rows[1][group].Str()
	v1f, _ := agg.Rows[0][valueCol].Float64()
	v2f, _ := agg.Rows[1][valueCol].Float64()
	v1 := formatAggValue(metric, op, v1f)
	v2 := formatAggValue(metric, op, v2f)

	meta.GroupColumn = group
	meta.MetricColumn = metric
	return &Result{
		Message: fmt.Sprintf("'%s' %s, '%s' %s%s '%s'%s 더 많습니다.",
			g1, v1, g2, v2, respond.InstrumentalParticle(v2), g1, respond.SubjectParticle(g1)),
		PlotData: barFromAgg(agg, group, valueCol, seriesNameFor(metric, op)),
		RawData:  rowsToMaps(agg.Columns, agg.Rows),
		Meta:     meta,
	}
}

func schemaAnswer(profiles []ColumnProfile) *Result {
	lines := make([]string, 0, len(profiles)+1)
	lines = append(lines, "컬럼 구조는 다음과 같습니다.")
	for _, p := range profiles {
		lines = append(lines, fmt.Sprintf("- %s: %s (고유값 %d개)", p.Name, typeLabel(p.Type), p.Unique))
	}
	return &Result{Message: strings.Join(lines, "\n"), Meta: &convo.AnalysisMeta{Intent: string(IntentSchema)}}
}

func columnsAnswer(profiles []ColumnProfile, withNames bool) *Result {
	intent := IntentColumnCount
	msg := fmt.Sprintf("컬럼은 모두 %d개입니다.", len(profiles))
	if withNames {
		intent = IntentColumnsSummary
		names := make([]string, 0, len(profiles))
		for _, p := range profiles {
			names = append(names, p.Name)
		}
		msg = fmt.Sprintf("컬럼은 모두 %d개입니다: %s", len(names), strings.Join(names, ", "))
	}
	return &Result{Message: msg, Meta: &convo.AnalysisMeta{Intent: string(intent)}}
}

func (e *Engine) previewAnswer(t *exec.Table, offset, limit int, intent Intent) *Result {
	if limit <= 0 {
		limit = e.pageLimit
	}
	meta := &convo.AnalysisMeta{Intent: string(intent), PageOffset: offset, PageLimit: limit}
	rows := t.Slice(offset, limit)
	if len(rows) == 0 {
		return &Result{Message: "더 보여드릴 행이 없습니다.", Meta: meta}
	}
	msg := fmt.Sprintf("전체 %s행 중 %d~%d행입니다.",
		respond.FormatMetric("", float64(t.Len())), offset+1, offset+len(rows))
	return &Result{Message: msg, RawData: rowsToMaps(t.Columns, rows), Meta: meta}
}

// pageAnswer steps the page window by one limit in either direction,
// clamping at the first row and refusing to walk past the last.
func (e *Engine) pageAnswer(t *exec.Table, det detection, last *convo.AnalysisMeta) *Result {
	limit := det.limit
	if limit <= 0 && last != nil && last.PageLimit > 0 {
		limit = last.PageLimit
	}
	if limit <= 0 {
		limit = e.pageLimit
	}
	offset := 0
	if last != nil {
		offset = last.PageOffset
	}
	offset += det.step * limit
	if offset < 0 {
		offset = 0
	}
	if offset >= t.Len() {
		prev := 0
		if last != nil {
			prev = last.PageOffset
		}
		return &Result{
			Message: "더 보여드릴 행이 없습니다.",
			Meta:    &convo.AnalysisMeta{Intent: string(IntentPreviewMore), PageOffset: prev, PageLimit: limit},
		}
	}
	return e.previewAnswer(t, offset, limit, IntentPreviewMore)
}

func overviewAnswer(t *exec.Table, profiles []ColumnProfile) *Result {
	meta := &convo.AnalysisMeta{Intent: string(IntentOverview)}
	summary := deterministicSummary(t, profiles)
	if summary == "" {
		return &Result{Message: "데이터가 비어 있습니다.", Meta: meta}
	}
	return &Result{Message: summary, Meta: meta}
}

func probeAnswer(t *exec.Table, det detection) *Result {
	col := det.column
	meta := &convo.AnalysisMeta{Intent: string(IntentColumnProbe), GroupColumn: col}
	counts := valueCounts(t, col)
	if len(counts) == 0 {
		return &Result{Message: fmt.Sprintf("'%s' 컬럼에 값이 없습니다.", col), Meta: meta}
	}

	tops := make([]string, 0, listTop)
	labels := make([]string, 0, listTop)
	data := make([]float64, 0, listTop)
	var raw []map[string]any
	for i, c := range counts {
		if i < listTop {
			tops = append(tops, fmt.Sprintf("%s (%d건)", c.value, c.count))
			labels = append(labels, c.value)
			data = append(data, float64(c.count))
		}
		if i < aggMaxRows {
			raw = append(raw, map[string]any{col: c.value, "count": c.count})
		}
	}
	msg := fmt.Sprintf("'%s' 컬럼에는 고유값이 %d개 있습니다. 상위 값: %s",
		col, len(counts), strings.Join(tops, ", "))
	return &Result{
		Message:  msg,
		PlotData: barFromPairs("건수", labels, data),
		RawData:  raw,
		Meta:     meta,
	}
}

func explainAnswer(t *exec.Table, profiles []ColumnProfile, det detection) *Result {
	if det.column == "" {
		return overviewAnswer(t, profiles)
	}
	p, _ := findProfile(profiles, det.column)
	meta := &convo.AnalysisMeta{Intent: string(IntentExplain), GroupColumn: p.Name}

	desc := fmt.Sprintf("'%s' 컬럼은 %s이고 고유값이 %d개입니다.", p.Name, typeLabel(p.Type), p.Unique)
	if p.Type == TypeNumeric {
		if mean, n := foldColumn(t, p.Name, opMean); n > 0 {
			minv, _ := foldColumn(t, p.Name, opMin)
			maxv, _ := foldColumn(t, p.Name, opMax)
			desc += fmt.Sprintf(" 평균 %s, 최소 %s, 최대 %s입니다.",
				respond.FormatMetric(p.Name, mean),
				respond.FormatMetric(p.Name, minv),
				respond.FormatMetric(p.Name, maxv))
		}
	} else if len(p.Samples) > 0 {
		desc += fmt.Sprintf(" 예시 값: %s", strings.Join(p.Samples, ", "))
	}
	return &Result{Message: desc, Meta: meta}
}

var userColumnHints = []string{"user", "member", "customer", "email", "사용자", "회원", "고객", "아이디"}

func countUsersAnswer(t *exec.Table, profiles []ColumnProfile) *Result {
	meta := &convo.AnalysisMeta{Intent: string(IntentCountUsers)}
	col := ""
	for _, p := range profiles {
		if p.Type == TypeIdentifier && nameContainsAny(p.Name, userColumnHints) {
			col = p.Name
			break
		}
	}
	if col == "" {
		for _, p := range profiles {
			if p.Type == TypeIdentifier {
				col = p.Name
				break
			}
		}
	}
	if col == "" {
		for _, p := range profiles {
			if nameContainsAny(p.Name, userColumnHints) {
				col = p.Name
				break
			}
		}
	}
	if col == "" {
		return &Result{Message: "사용자를 식별할 컬럼을 찾지 못했습니다.", Meta: meta}
	}
	meta.MetricColumn = col
	n := uniqueNonBlank(t, col)
	return &Result{
		Message: fmt.Sprintf("'%s' 기준 고유 사용자 수는 %s명입니다.", col, respond.FormatMetric("", float64(n))),
		Meta:    meta,
	}
}

var adminColumnHints = []string{"admin", "관리자", "role", "권한", "역할"}

var truthyTokens = map[string]struct{}{
	"y": {}, "yes": {}, "true": {}, "t": {}, "1": {},
}

func countAdminAnswer(t *exec.Table, profiles []ColumnProfile) *Result {
	meta := &convo.AnalysisMeta{Intent: string(IntentCountAdmin)}
	var col string
	var colType ColumnType
	for _, p := range profiles {
		if nameContainsAny(p.Name, adminColumnHints) {
			col, colType = p.Name, p.Type
			break
		}
	}
	if col == "" {
		return &Result{Message: "관리자 컬럼을 찾지 못했습니다.", Meta: meta}
	}

	n := 0
	for _, row := range t.Rows {
		s := strings.ToLower(strings.TrimSpace(row[col].Str()))
		if colType == TypeBoolean {
			if _, ok := truthyTokens[s]; ok {
				n++
			}
			continue
		}
		if strings.Contains(s, "admin") || strings.Contains(s, "관리자") {
			n++
		}
	}
	meta.MetricColumn = col
	return &Result{
		Message: fmt.Sprintf("'%s' 기준 관리자는 %s명입니다.", col, respond.FormatMetric("", float64(n))),
		Meta:    meta,
	}
}

func (e *Engine) groupByAnswer(question string, t *exec.Table, profiles []ColumnProfile, det detection) (*Result, bool) {
	group := groupColumnFor(question, t, profiles, det.column)
	if group == "" {
		// 별 marker without a usable group column degrades to a scalar.
		return scalarAggregate(question, t, profiles, det)
	}
	metric, hasMetric := pickMetricColumn(question, profiles)
	op := pickOp(question)
	if !hasMetric {
		metric, op = "", opCount
	}

	agg := aggregate(t, group, metric, op)
	meta := &convo.AnalysisMeta{Intent: string(IntentGroupBy), GroupColumn: group, MetricColumn: metric}
	if agg.Len() == 0 {
		return &Result{Message: "집계할 값이 없습니다.", Meta: meta}, true
	}

	valueCol := agg.Columns[1]
	topValue, _ := agg.Rows[0][valueCol].Float64()
	lines := []string{fmt.Sprintf("'%s' 기준 %s 상위는 %s (%s)입니다. (총 %d개 그룹)",
		group, subjectLabel(metric, op), agg.Rows[0][group].Str(),
		formatAggValue(metric, op, topValue), agg.Len())}
	for i, row := range agg.Rows {
		if i >= listTop {
			break
		}
		v, _ := row[valueCol].Float64()
		lines = append(lines, fmt.Sprintf("%d. %s: %s", i+1, row[group].Str(), formatAggValue(metric, op, v)))
	}

	return &Result{
		Message:  strings.Join(lines, "\n"),
		PlotData: barFromAgg(agg, group, valueCol, seriesNameFor(metric, op)),
		RawData:  rowsToMaps(agg.Columns, agg.Rows),
		Meta:     meta,
	}, true
}

func scalarAggregate(question string, t *exec.Table, profiles []ColumnProfile, det detection) (*Result, bool) {
	op := pickOp(question)
	meta := &convo.AnalysisMeta{Intent: string(IntentAggregate)}

	metric := ""
	if p, ok := findProfile(profiles, det.column); ok && p.Type == TypeNumeric {
		metric = p.Name
	} else if m, ok := pickMetricColumn(question, profiles); ok {
		metric = m
	}

	if op == opCount {
		if metric == "" {
			return &Result{
				Message: fmt.Sprintf("전체 행 수는 %s개입니다.", respond.FormatMetric("", float64(t.Len()))),
				Meta:    meta,
			}, true
		}
		meta.MetricColumn = metric
		n := countNonBlank(t, metric)
		return &Result{
			Message: fmt.Sprintf("'%s' 값이 있는 행은 %s개입니다.", metric, respond.FormatMetric("", float64(n))),
			Meta:    meta,
		}, true
	}
	if metric == "" {
		return &Result{Message: "계산할 숫자 컬럼을 찾지 못했습니다.", Meta: meta}, true
	}

	v, n := foldColumn(t, metric, op)
	if n == 0 {
		return &Result{Message: fmt.Sprintf("'%s' 컬럼에서 숫자 값을 찾지 못했습니다.", metric), Meta: meta}, true
	}
	meta.MetricColumn = metric
	label := op.label()
	return &Result{
		Message: fmt.Sprintf("'%s'의 %s%s %s입니다.",
			metric, label, respond.TopicParticle(label), respond.FormatMetric(metric, v)),
		Meta: meta,
	}, true
}

func distributionAnswer(question string, t *exec.Table, profiles []ColumnProfile, det detection) (*Result, bool) {
	group := groupColumnFor(question, t, profiles, det.column)
	if group == "" {
		group = firstCategorical(profiles)
	}
	if group == "" {
		return nil, false
	}

	agg := aggregate(t, group, "", opCount)
	meta := &convo.AnalysisMeta{Intent: string(IntentDistribution), GroupColumn: group}
	if agg.Len() == 0 {
		return &Result{Message: "집계할 값이 없습니다.", Meta: meta}, true
	}

	valueCol := agg.Columns[1]
	total := 0.0
	for _, row := range agg.Rows {
		v, _ := row[valueCol].Float64()
		total += v
	}

	lines := []string{fmt.Sprintf("'%s' 분포입니다. (총 %s건)", group, respond.FormatMetric("", total))}
	for i, row := range agg.Rows {
		if i >= listTop {
			break
		}
		v, _ := row[valueCol].Float64()
		lines = append(lines, fmt.Sprintf("%d. %s: %s건 (%.1f%%)",
			i+1, row[group].Str(), respond.FormatMetric("", v), v/total*100))
	}

	return &Result{
		Message:  strings.Join(lines, "\n"),
		PlotData: barFromAgg(agg, group, valueCol, "건수"),
		RawData:  rowsToMaps(agg.Columns, agg.Rows),
		Meta:     meta,
	}, true
}

const insightSystemPrompt = "당신은 업로드된 표 데이터를 설명하는 분석 어시스턴트입니다. " +
	"주어진 요약과 샘플만 근거로 두세 문장의 한국어 인사이트를 작성하세요. 수치를 지어내지 마세요."

// insight is the only LLM-backed path. Failures fall back to the
// deterministic summary, or a generic nudge when the table is empty.
func (e *Engine) insight(ctx context.Context, question string, t *exec.Table, profiles []ColumnProfile) *Result {
	meta := &convo.AnalysisMeta{Intent: string(IntentInsight)}
	summary := deterministicSummary(t, profiles)

	if e.llm == nil {
		return &Result{Message: fallbackMessage(summary), Meta: meta}
	}

	cctx, cancel := context.WithTimeout(ctx, e.insightWait)
	defer cancel()
	resp, err := e.llm.Complete(cctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: insightSystemPrompt},
			{Role: "user", Content: insightPrompt(question, t, profiles)},
		},
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		e.logger.Warn("insight completion failed: %v", err)
		return &Result{Message: fallbackMessage(summary), Meta: meta}
	}
	return &Result{Message: strings.TrimSpace(resp.Content), Meta: meta}
}

func fallbackMessage(summary string) string {
	if summary != "" {
		return summary
	}
	return "결과를 확인해주세요."
}

func insightPrompt(question string, t *exec.Table, profiles []ColumnProfile) string {
	cols := t.Columns
	if len(cols) > insightMaxColumns {
		cols = cols[:insightMaxColumns]
	}

	var b strings.Builder
	b.WriteString("## 데이터 요약\n")
	b.WriteString(deterministicSummary(t, profiles))
	b.WriteString("\n\n## 샘플\n")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteByte('\n')
	for i, row := range t.Rows {
		if i >= insightSampleRows {
			break
		}
		cells := make([]string, 0, len(cols))
		for _, c := range cols {
			cells = append(cells, row[c].Str())
		}
		b.WriteString(strings.Join(cells, ", "))
		b.WriteByte('\n')
	}
	b.WriteString("\n## 질문\n")
	b.WriteString(question)
	return b.String()
}

// deterministicSummary is the overview sentence reused by the explain and
// insight fallbacks. Empty tables yield "".
func deterministicSummary(t *exec.Table, profiles []ColumnProfile) string {
	if t.Len() == 0 {
		return ""
	}
	parts := make([]string, 0, len(profiles))
	for i, p := range profiles {
		if i == insightMaxColumns {
			parts = append(parts, fmt.Sprintf("외 %d개", len(profiles)-insightMaxColumns))
			break
		}
		parts = append(parts, fmt.Sprintf("%s(%s)", p.Name, typeLabel(p.Type)))
	}
	return fmt.Sprintf("전체 %s행, %d개 컬럼의 데이터입니다. 컬럼: %s",
		respond.FormatMetric("", float64(t.Len())), len(profiles), strings.Join(parts, ", "))
}

func fileFollowups(meta *convo.AnalysisMeta) []string {
	if meta == nil {
		return nil
	}
	switch Intent(meta.Intent) {
	case IntentPreview, IntentPreviewMore:
		return []string{"다음 페이지를 보여드릴까요?"}
	case IntentGroupBy, IntentDistribution, IntentCompare:
		return []string{"다른 컬럼 기준으로도 나눠볼까요?", "상위 그룹만 추려서 볼까요?"}
	case IntentTrend:
		return []string{"특정 그룹만 걸러서 추이를 볼까요?"}
	case IntentGuidance, IntentSchema, IntentColumnsSummary, IntentColumnCount, IntentOverview:
		return []string{"데이터 미리보기를 보여드릴까요?", "특정 컬럼의 값 구성이 궁금하신가요?"}
	default:
		return []string{"유형별 집계도 확인해볼까요?"}
	}
}

func groupColumnFor(question string, t *exec.Table, profiles []ColumnProfile, hinted string) string {
	if p, ok := findProfile(profiles, hinted); ok && (p.Type == TypeCategorical || p.Type == TypeBoolean) {
		return p.Name
	}
	if g, ok := pickGroupColumn(question, t, profiles); ok {
		return g
	}
	return ""
}

func firstCategorical(profiles []ColumnProfile) string {
	for _, p := range profiles {
		if (p.Type == TypeCategorical || p.Type == TypeBoolean) && p.Unique >= 2 {
			return p.Name
		}
	}
	return ""
}

func nameContainsAny(name string, hints []string) bool {
	n := strings.ToLower(name)
	for _, h := range hints {
		if strings.Contains(n, h) {
			return true
		}
	}
	return false
}

func seriesNameFor(metric string, op aggOp) string {
	if op == opCount || metric == "" {
		return "건수"
	}
	return metric
}

func subjectLabel(metric string, op aggOp) string {
	if op == opCount || metric == "" {
		return "건수"
	}
	return fmt.Sprintf("'%s' %s", metric, op.label())
}

func formatAggValue(metric string, op aggOp, v float64) string {
	if op == opCount || metric == "" {
		return respond.FormatMetric("", v) + "건"
	}
	return respond.FormatMetric(metric, v)
}

func foldColumn(t *exec.Table, col string, op aggOp) (float64, int) {
	var sum, maxv, minv float64
	n := 0
	for _, row := range t.Rows {
		v, ok := row[col].Float64()
		if !ok {
			continue
		}
		if n == 0 || v > maxv {
			maxv = v
		}
		if n == 0 || v < minv {
			minv = v
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, 0
	}
	switch op {
	case opMean:
		return sum / float64(n), n
	case opMax:
		return maxv, n
	case opMin:
		return minv, n
	default:
		return sum, n
	}
}

func countNonBlank(t *exec.Table, col string) int {
	n := 0
	for _, row := range t.Rows {
		if !row[col].IsNull() && !isBlankCell(row[col].Str()) {
			n++
		}
	}
	return n
}

func uniqueNonBlank(t *exec.Table, col string) int {
	seen := make(map[string]struct{})
	for _, row := range t.Rows {
		s := strings.TrimSpace(row[col].Str())
		if row[col].IsNull() || isBlankCell(s) {
			continue
		}
		seen[s] = struct{}{}
	}
	return len(seen)
}

type valueCount struct {
	value string
	count int
}

func valueCounts(t *exec.Table, col string) []valueCount {
	counts := make(map[string]int)
	var order []string
	for _, row := range t.Rows {
		s := strings.TrimSpace(row[col].Str())
		if row[col].IsNull() || isBlankCell(s) {
			continue
		}
		if _, ok := counts[s]; !ok {
			order = append(order, s)
		}
		counts[s]++
	}
	out := make([]valueCount, 0, len(order))
	for _, v := range order {
		out = append(out, valueCount{value: v, count: counts[v]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].value < out[j].value
	})
	return out
}

func rowsToMaps(columns []string, rows []exec.Row) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		m := make(map[string]any, len(columns))
		for _, c := range columns {
			m[c] = row[c].Any()
		}
		out = append(out, m)
	}
	return out
}

func barFromAgg(agg *exec.Table, groupCol, valueCol, seriesName string) respond.PlotData {
	labels := make([]string, 0, chartTopRows)
	data := make([]float64, 0, chartTopRows)
	for i, row := range agg.Rows {
		if i >= chartTopRows {
			break
		}
		labels = append(labels, row[groupCol].Str())
		v, _ := row[valueCol].Float64()
		data = append(data, v)
	}
	return barFromPairs(seriesName, labels, data)
}

func barFromPairs(name string, labels []string, data []float64) respond.PlotData {
	if len(labels) == 0 {
		return respond.PlotData{}
	}
	return respond.PlotData{Chart: &respond.ChartSpec{
		Type:   "bar",
		Labels: labels,
		Series: []respond.ChartSeries{{Name: name, Data: data}},
	}}
}
