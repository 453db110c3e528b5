package plan

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"nugget/internal/catalog"
	"nugget/internal/convo"
	"nugget/internal/nlq"
	"nugget/internal/shared/logging"
)

const (
	defaultWindowDays    = 7
	defaultTopN          = 10
	categoryListLimit    = 50
	strongDimThreshold   = 0.60
	syntheticDimScore    = 0.90
	eventNameDimScore    = 0.95
	syntheticMetricScore = 0.86
	inheritedMetricScore = 0.98

	isoDate = "2006-01-02"
)

const clarifyMetricPrompt = "어떤 지표를 보고 싶으신지 조금 더 구체적으로 알려주세요. 예: 사용자 수, 매출, 클릭수"

var (
	userSessionRe = regexp.MustCompile(`사용자|유저|방문|세션|접속`)
	customParamRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]*(?:_[a-zA-Z0-9]+)+$`)
)

// Input is everything one planning pass may consult. Two identical inputs
// always produce identical plans.
type Input struct {
	Question   string
	PropertyID string
	Extraction nlq.Extraction

	// Last is the post-policy conversation state, nil on a fresh topic.
	Last *convo.State

	// KnownEvents and KnownNames come from the property's metadata: the
	// event names seen so far and the full custom dimension keys
	// (customEvent:donation_name) the property exposes.
	KnownEvents []string
	KnownNames  map[string]bool
}

// Planner builds execution plans. It holds no per-request state.
type Planner struct {
	reg    *catalog.Registry
	now    func() time.Time
	logger logging.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// NewPlanner returns a planner over the given registry.
func NewPlanner(reg *catalog.Registry, logger logging.Logger, opts ...Option) *Planner {
	p := &Planner{
		reg:    reg,
		now:    time.Now,
		logger: logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// scoredDim is a dimension placed but not yet assigned to a block.
type scoredDim struct {
	key   string
	score float64
	scope catalog.Scope
}

// metricGroup collects the chosen metrics sharing one scope.
type metricGroup struct {
	scope   catalog.Scope
	metrics []string
}

// Build turns an extraction plus inherited state into an execution plan.
// When no metric survives resolution and no strong dimension rescues the
// question, the plan comes back with StatusClarify and no blocks.
func (p *Planner) Build(in Input) Plan {
	start, end := p.resolveDates(in)
	out := Plan{
		PropertyID: in.PropertyID,
		StartDate:  start,
		EndDate:    end,
		Intent:     in.Extraction.Intent,
		Status:     StatusOK,
	}

	events, customDims := p.splitEntityTerms(in)
	dims := p.resolveDimensions(in, customDims, events)
	metrics, suggestion := p.resolveMetrics(in, dims)
	if len(metrics) == 0 {
		p.logger.Info("plan clarify: no metric resolved for %q", in.Question)
		return clarify(out, suggestion)
	}

	out.Blocks = p.buildBlocks(in, metrics, dims, events)
	if len(out.Blocks) == 0 {
		p.logger.Info("plan clarify: no block survived scope filtering for %q", in.Question)
		return clarify(out, suggestion)
	}
	return out
}

func clarify(out Plan, suggestion string) Plan {
	out.Status = StatusClarify
	out.Blocks = nil
	out.ClarifyMessage = clarifyMetricPrompt
	if suggestion != "" {
		out.ClarifyMessage = suggestion
	}
	return out
}

// resolveDates prefers the question's own window, then the inherited one,
// then the trailing week.
func (p *Planner) resolveDates(in Input) (string, string) {
	if !in.Extraction.Dates.IsZero() {
		return in.Extraction.Dates.Start, in.Extraction.Dates.End
	}
	if in.Last.HasDates() {
		return in.Last.StartDate, in.Last.EndDate
	}
	today := p.now()
	return today.AddDate(0, 0, -defaultWindowDays).Format(isoDate), today.Format(isoDate)
}

// splitEntityTerms sorts the extractor's free-form entity terms into event
// names and custom parameter dimensions. Terms that are neither stay with
// the adapter for value matching and never reach a block.
func (p *Planner) splitEntityTerms(in Input) (events []string, customDims []scoredDim) {
	seenEvent := make(map[string]bool)
	for _, term := range in.Extraction.Modifiers.EntityTerms {
		if containsString(in.KnownEvents, term) {
			if !seenEvent[term] {
				events = append(events, term)
				seenEvent[term] = true
			}
			continue
		}
		if !customParamRe.MatchString(term) {
			continue
		}
		if dim, ok := p.resolveCustomDim(in.KnownNames, term); ok {
			customDims = append(customDims, dim)
			continue
		}
		// A snake_case token with no matching custom parameter reads like
		// an event name.
		if !seenEvent[term] {
			events = append(events, term)
			seenEvent[term] = true
		}
	}
	// Known events mentioned without the extractor marking them, e.g. a
	// bare "scroll" with no particle.
	for _, name := range in.KnownEvents {
		if !seenEvent[name] && containsToken(in.Question, name) {
			events = append(events, name)
			seenEvent[name] = true
		}
	}
	return events, customDims
}

// containsToken reports whether name occurs in question as a whole token,
// so the event "scroll" does not fire inside "scroll_depth".
func containsToken(question, name string) bool {
	for start := 0; ; {
		idx := strings.Index(question[start:], name)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(name)
		if !isTokenByte(question, idx-1) && !isTokenByte(question, end) {
			return true
		}
		start = idx + 1
	}
}

func isTokenByte(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	c := s[i]
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func (p *Planner) resolveCustomDim(known map[string]bool, param string) (scoredDim, bool) {
	for _, prefix := range catalog.CustomPrefixes {
		key := prefix + param
		if known[key] {
			return scoredDim{key: key, score: syntheticDimScore, scope: scopeOfPrefix(prefix)}, true
		}
	}
	return scoredDim{}, false
}

func scopeOfPrefix(prefix string) catalog.Scope {
	switch prefix {
	case "customUser:":
		return catalog.ScopeUser
	case "customItem:":
		return catalog.ScopeItem
	default:
		return catalog.ScopeEvent
	}
}

// resolveDimensions merges synthesized dimensions with the extractor's
// candidates. Order decides block layout later, so synthesized leading
// dimensions go first: eventName when two events are compared, yearMonth
// when a comparison spans months.
func (p *Planner) resolveDimensions(in Input, customDims []scoredDim, events []string) []scoredDim {
	ext := in.Extraction
	var ordered []scoredDim

	if len(events) >= 2 {
		ordered = append(ordered, scoredDim{key: "eventName", score: eventNameDimScore, scope: catalog.ScopeEvent})
	}
	if ext.Intent == nlq.IntentComparison && ext.Dates.SpansMultipleMonths() && !ext.Dates.IsRelativeShift {
		ordered = append(ordered, scoredDim{key: "yearMonth", score: syntheticDimScore, scope: p.scopeOf("yearMonth")})
	}
	if ext.Intent == nlq.IntentCategoryList {
		ordered = append(ordered, scoredDim{key: "eventName", score: syntheticDimScore, scope: catalog.ScopeEvent})
	}
	for _, cand := range ext.Dimensions {
		if cand.NeedsClarify {
			continue
		}
		ordered = append(ordered, scoredDim{key: cand.Name, score: cand.Score, scope: cand.Scope})
	}
	ordered = append(ordered, customDims...)

	seen := make(map[string]bool, len(ordered))
	dims := make([]scoredDim, 0, len(ordered))
	for _, d := range ordered {
		if seen[d.key] {
			continue
		}
		seen[d.key] = true
		dims = append(dims, d)
	}
	return dims
}

// resolveMetrics picks the metric keys the plan will query. The returned
// suggestion names the closest below-threshold candidate when nothing
// usable was found, so the clarify message can point at it.
func (p *Planner) resolveMetrics(in Input, dims []scoredDim) (metrics []string, suggestion string) {
	ext := in.Extraction
	var chosen []nlq.Candidate
	for _, cand := range ext.Metrics {
		if cand.NeedsClarify {
			if suggestion == "" {
				suggestion = fmt.Sprintf("혹시 '%s' 지표를 의미하셨나요?", p.reg.UINameOf(cand.Name))
			}
			continue
		}
		chosen = append(chosen, cand)
	}

	if hint := ext.Modifiers.ScopeHint; hint != "" && len(chosen) > 0 {
		hinted := filterByScope(chosen, hint)
		switch {
		case len(hinted) > 0:
			chosen = hinted
		case len(dims) == 0:
			chosen = p.remapToScope(chosen, hint)
		}
	}

	// Fallbacks manufacture candidates the question never named; their
	// provenance tags keep them apart from question matches.
	if len(chosen) == 0 && ext.Modifiers.NeedsBreakdown && in.Last != nil {
		// Breakdown follow-ups keep asking about the same numbers.
		for _, key := range in.Last.Metrics {
			if !p.reg.IsMetric(key) {
				continue
			}
			chosen = append(chosen, p.fallbackCandidate(key, inheritedMetricScore, nlq.MatchedInherited))
		}
	}
	if len(chosen) == 0 && ext.Intent == nlq.IntentTrend && userSessionRe.MatchString(in.Question) {
		chosen = append(chosen, p.fallbackCandidate("activeUsers", syntheticMetricScore, nlq.MatchedSynthetic))
	}
	if len(chosen) == 0 {
		if dim, ok := strongestDim(dims); ok && dim.score >= strongDimThreshold {
			key := defaultMetricForScope(dim.scope)
			chosen = append(chosen, p.fallbackCandidate(key, syntheticMetricScore, nlq.MatchedSynthetic))
		}
	}

	seen := make(map[string]bool, len(chosen))
	for _, cand := range chosen {
		if !seen[cand.Name] {
			seen[cand.Name] = true
			metrics = append(metrics, cand.Name)
		}
	}
	return metrics, suggestion
}

func (p *Planner) fallbackCandidate(key string, score float64, matched nlq.MatchedBy) nlq.Candidate {
	scope, _ := p.reg.ScopeOf(key)
	return nlq.Candidate{Name: key, Score: score, MatchedBy: matched, Scope: scope}
}

func filterByScope(cands []nlq.Candidate, scope catalog.Scope) []nlq.Candidate {
	var out []nlq.Candidate
	for _, cand := range cands {
		if cand.Scope == scope {
			out = append(out, cand)
		}
	}
	return out
}

// remapToScope swaps each metric for its same-concept counterpart in the
// hinted scope. Metrics without a counterpart drop; when none has one the
// originals stand.
func (p *Planner) remapToScope(cands []nlq.Candidate, scope catalog.Scope) []nlq.Candidate {
	remapped := make([]nlq.Candidate, 0, len(cands))
	for _, cand := range cands {
		if key, ok := p.reg.CounterpartMetric(cand.Name, scope); ok {
			cand.Name = key
			cand.Scope = scope
			remapped = append(remapped, cand)
		}
	}
	if len(remapped) == 0 {
		return cands
	}
	return remapped
}

func strongestDim(dims []scoredDim) (scoredDim, bool) {
	if len(dims) == 0 {
		return scoredDim{}, false
	}
	best := dims[0]
	for _, d := range dims[1:] {
		if d.score > best.score {
			best = d
		}
	}
	return best, true
}

// defaultMetricForScope is the metric a dimension-only question implies.
func defaultMetricForScope(scope catalog.Scope) string {
	switch scope {
	case catalog.ScopeItem:
		return "itemRevenue"
	case catalog.ScopeUser:
		return "activeUsers"
	default:
		return "eventCount"
	}
}

var scopeOrder = []catalog.Scope{catalog.ScopeEvent, catalog.ScopeItem, catalog.ScopeUser}

func scopeRank(scope catalog.Scope) int {
	for i, s := range scopeOrder {
		if s == scope {
			return i
		}
	}
	return len(scopeOrder)
}

// buildBlocks splits metrics by scope, pairs each group with its compatible
// dimensions, and emits blocks in scope order. An empty result means the
// caller must ask for clarification.
func (p *Planner) buildBlocks(in Input, metrics []string, dims []scoredDim, events []string) []Block {
	mods := in.Extraction.Modifiers
	intent := in.Extraction.Intent

	groups := p.groupMetricsByScope(metrics)
	groups = p.expandForDimScopes(groups, dims)
	usable := p.usableDims(groups, dims)

	var blocks []Block
	if mods.NeedsTotal {
		if eventMetrics := metricsOfScope(groups, catalog.ScopeEvent); len(eventMetrics) > 0 {
			filters := p.blockFilters(catalog.ScopeEvent, nil, events)
			blocks = append(blocks, p.newBlock(BlockTotal, catalog.ScopeEvent, eventMetrics, nil, filters, nil, 0, len(blocks)))
		}
	}

	for _, group := range groups {
		ds := p.compatibleDims(usable, group.scope)
		if intent == nlq.IntentTrend {
			ds = p.arrangeTrendDims(ds)
		}
		if len(ds) == 0 {
			// A scope group with nothing to break down becomes a total,
			// unless another group owns the requested dimensions or the
			// explicit total block already covers it.
			if len(usable) == 0 && !(mods.NeedsTotal && group.scope == catalog.ScopeEvent) {
				filters := p.blockFilters(group.scope, nil, events)
				blocks = append(blocks, p.newBlock(BlockTotal, group.scope, group.metrics, nil, filters, nil, 0, len(blocks)))
			}
			continue
		}
		blockType, orderBys, limit := blockShape(intent, mods, group.metrics[0], ds)
		filters := p.blockFilters(group.scope, ds, events)
		blocks = append(blocks, p.newBlock(blockType, group.scope, group.metrics, dimKeys(ds), filters, orderBys, limit, len(blocks)))
	}
	return blocks
}

func (p *Planner) groupMetricsByScope(metrics []string) []metricGroup {
	byScope := make(map[catalog.Scope][]string, len(scopeOrder))
	for _, key := range metrics {
		scope := p.scopeOf(key)
		byScope[scope] = append(byScope[scope], key)
	}
	groups := make([]metricGroup, 0, len(byScope))
	for _, scope := range scopeOrder {
		if keys := byScope[scope]; len(keys) > 0 {
			groups = append(groups, metricGroup{scope: scope, metrics: keys})
		}
	}
	return groups
}

// expandForDimScopes gives a dimension with no compatible metric group a
// group of its own by remapping an existing metric to its counterpart in
// the dimension's scope. This is how "상품별 매출" queries itemRevenue while
// the question only said 매출.
func (p *Planner) expandForDimScopes(groups []metricGroup, dims []scoredDim) []metricGroup {
	for _, d := range dims {
		if p.isTimeDim(d.key) || p.hasCompatibleGroup(groups, d) {
			continue
		}
		counterpart, ok := p.counterpartFor(groups, d.scope)
		if !ok {
			continue
		}
		groups = append(groups, metricGroup{scope: d.scope, metrics: []string{counterpart}})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return scopeRank(groups[i].scope) < scopeRank(groups[j].scope)
	})
	return groups
}

func (p *Planner) hasCompatibleGroup(groups []metricGroup, d scoredDim) bool {
	for _, g := range groups {
		if p.dimFits(d, g.scope) {
			return true
		}
	}
	return false
}

func (p *Planner) counterpartFor(groups []metricGroup, scope catalog.Scope) (string, bool) {
	for _, g := range groups {
		for _, key := range g.metrics {
			if counterpart, ok := p.reg.CounterpartMetric(key, scope); ok {
				return counterpart, true
			}
		}
	}
	return "", false
}

// usableDims keeps the dimensions that fit at least one group. The rest
// were asked about a scope no chosen metric can reach and fall away, per
// the scope-compatibility rule.
func (p *Planner) usableDims(groups []metricGroup, dims []scoredDim) []scoredDim {
	var out []scoredDim
	for _, d := range dims {
		for _, g := range groups {
			if p.dimFits(d, g.scope) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

func (p *Planner) compatibleDims(dims []scoredDim, scope catalog.Scope) []scoredDim {
	var out []scoredDim
	for _, d := range dims {
		if p.dimFits(d, scope) {
			out = append(out, d)
		}
	}
	return out
}

// dimFits reports whether a dimension can appear in a block of the given
// scope. Time dimensions cut across every scope; item stays isolated from
// the event/user pair.
func (p *Planner) dimFits(d scoredDim, scope catalog.Scope) bool {
	if p.isTimeDim(d.key) {
		return true
	}
	if d.scope == scope {
		return true
	}
	return d.scope != catalog.ScopeItem && scope != catalog.ScopeItem
}

// arrangeTrendDims moves the time dimension to the front so trend rows key
// on it, adding daily granularity when none was asked.
func (p *Planner) arrangeTrendDims(ds []scoredDim) []scoredDim {
	for i, d := range ds {
		if !p.isTimeDim(d.key) {
			continue
		}
		if i == 0 {
			return ds
		}
		out := make([]scoredDim, 0, len(ds))
		out = append(out, d)
		out = append(out, ds[:i]...)
		return append(out, ds[i+1:]...)
	}
	key := "date"
	if keys := p.reg.TimeDimensionKeys(); len(keys) > 0 {
		key = keys[0]
	}
	out := make([]scoredDim, 0, len(ds)+1)
	out = append(out, scoredDim{key: key, score: syntheticDimScore, scope: p.scopeOf(key)})
	return append(out, ds...)
}

func blockShape(intent nlq.Intent, mods nlq.Modifiers, primary string, ds []scoredDim) (BlockType, []OrderBy, int64) {
	switch intent {
	case nlq.IntentTrend:
		return BlockTrend, []OrderBy{{Dimension: ds[0].key, Desc: false}}, 0
	case nlq.IntentTopN:
		limit := int64(defaultTopN)
		if mods.Limit > 0 {
			limit = int64(mods.Limit)
		}
		return BlockBreakdownTopN, []OrderBy{{Metric: primary, Desc: true}}, limit
	case nlq.IntentCategoryList:
		return BlockBreakdown, []OrderBy{{Metric: primary, Desc: true}}, categoryListLimit
	case nlq.IntentComparison:
		if hasDimKey(ds, "yearMonth") {
			return BlockBreakdown, []OrderBy{{Dimension: "yearMonth", Desc: false}}, 0
		}
	}
	var limit int64
	if mods.Limit > 0 {
		limit = int64(mods.Limit)
	}
	return BlockBreakdown, []OrderBy{{Metric: primary, Desc: mods.OrderDesc}}, limit
}

// blockFilters narrows event-scope blocks to the events the question named.
// Two events keep both names; collapsing them would erase the comparison.
func (p *Planner) blockFilters(scope catalog.Scope, ds []scoredDim, events []string) Filters {
	if scope != catalog.ScopeEvent || len(events) == 0 {
		return Filters{}
	}
	if len(events) >= 2 {
		return Filters{EventFilters: append([]string(nil), events...)}
	}
	if hasCustomEventDim(ds) {
		return Filters{EventFilter: events[0]}
	}
	return Filters{DimensionFilters: map[string][]string{"eventName": {events[0]}}}
}

func (p *Planner) newBlock(blockType BlockType, scope catalog.Scope, metrics, dims []string, filters Filters, orderBys []OrderBy, limit int64, index int) Block {
	return Block{
		ID:         fmt.Sprintf("%s_%s_%d", blockType, scope, index),
		Type:       blockType,
		Scope:      scope,
		Metrics:    append([]string(nil), metrics...),
		Dimensions: dims,
		Filters:    filters,
		OrderBys:   orderBys,
		Limit:      limit,
		Title:      p.blockTitle(blockType, metrics, dims),
	}
}

func (p *Planner) blockTitle(blockType BlockType, metrics, dims []string) string {
	switch blockType {
	case BlockTotal:
		names := make([]string, len(metrics))
		for i, key := range metrics {
			names[i] = p.reg.UINameOf(key)
		}
		return strings.Join(names, ", ") + " 합계"
	case BlockTrend:
		return p.reg.UINameOf(metrics[0]) + " 추이"
	default:
		return p.reg.UINameOf(dims[0]) + "별 " + p.reg.UINameOf(metrics[0])
	}
}

func (p *Planner) scopeOf(key string) catalog.Scope {
	if scope, ok := p.reg.ScopeOf(key); ok {
		return scope
	}
	return catalog.ScopeEvent
}

func (p *Planner) isTimeDim(key string) bool {
	category, ok := p.reg.CategoryOf(key)
	return ok && category == catalog.CategoryTime
}

func metricsOfScope(groups []metricGroup, scope catalog.Scope) []string {
	for _, g := range groups {
		if g.scope == scope {
			return g.metrics
		}
	}
	return nil
}

func dimKeys(ds []scoredDim) []string {
	keys := make([]string, len(ds))
	for i, d := range ds {
		keys[i] = d.key
	}
	return keys
}

func hasDimKey(ds []scoredDim, key string) bool {
	for _, d := range ds {
		if d.key == key {
			return true
		}
	}
	return false
}

func hasCustomEventDim(ds []scoredDim) bool {
	for _, d := range ds {
		if prefix, _, ok := catalog.SplitCustomKey(d.key); ok && prefix == "customEvent:" {
			return true
		}
	}
	return false
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

// AnchorState distills a successful plan into the state persisted for the
// next turn. Metrics union across all blocks in plan order so a follow-up
// can switch back to any of them; dimensions, scope and the event filter
// come from the primary block. Clarify plans return nil: an unanswered
// question must not overwrite a good anchor.
func AnchorState(p Plan, ext nlq.Extraction) *convo.State {
	if p.Status != StatusOK {
		return nil
	}
	block, ok := p.PrimaryBlock()
	if !ok {
		return nil
	}
	state := &convo.State{
		Dimensions: append([]string(nil), block.Dimensions...),
		StartDate:  p.StartDate,
		EndDate:    p.EndDate,
		Intent:     string(p.Intent),
		ScopeType:  string(block.Scope),
		Periods:    []convo.Period{{Start: p.StartDate, End: p.EndDate}},
	}
	seen := make(map[string]bool)
	for _, b := range p.Blocks {
		for _, m := range b.Metrics {
			if !seen[m] {
				seen[m] = true
				state.Metrics = append(state.Metrics, m)
			}
		}
	}
	if block.Filters.EventFilter != "" {
		state.EventFilter = block.Filters.EventFilter
	} else if vals := block.Filters.DimensionFilters["eventName"]; len(vals) == 1 {
		state.EventFilter = vals[0]
	}
	if terms := ext.Modifiers.EntityTerms; len(terms) > 0 {
		state.LastEntity = terms[0]
	}
	return state
}
