package nlq

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"nugget/internal/catalog"
	"nugget/internal/convo"
	"nugget/internal/llm"
	"nugget/internal/semindex"
	"nugget/internal/shared/logging"
)

const (
	maxCandidates     = 5
	inheritedScore    = 0.98
	llmCandidateScore = 0.55
	maxFollowUpRunes  = 20
	maskByte          = 0x00
)

// Extractor resolves a raw question into scored candidates. It reads only
// the static registry; live property metadata (custom events and the like)
// is the planner's concern.
type Extractor struct {
	reg    *catalog.Registry
	index  *semindex.Index
	llm    llm.Client
	now    func() time.Time
	logger logging.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithSemanticIndex enables bag-of-words fallback matching.
func WithSemanticIndex(index *semindex.Index) Option {
	return func(e *Extractor) { e.index = index }
}

// WithLLMFallback enables the last-resort intent extraction call.
func WithLLMFallback(client llm.Client) Option {
	return func(e *Extractor) { e.llm = client }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// NewExtractor builds an Extractor over the given registry.
func NewExtractor(reg *catalog.Registry, logger logging.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		reg:    reg,
		now:    time.Now,
		logger: logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs the full pipeline: explicit matching, intent and modifier
// classification, date parsing, follow-up inheritance, then semantic and
// LLM fallbacks for whatever is still missing.
func (e *Extractor) Extract(ctx context.Context, question string, last *convo.State) Extraction {
	norm := catalog.Normalize(question)

	metrics, dims, metricDebug, dimDebug := e.matchExplicit(norm)

	intent := classifyIntent(question, distinctKeys(metrics))
	mods := detectModifiers(question, e.reg)
	dates, dateSource := parseDates(question, last, e.now())

	debug := MatchingDebug{
		Normalized: norm,
		DateSource: dateSource,
		Metrics:    metricDebug,
		Dimensions: dimDebug,
	}

	if e.shouldInheritDims(question, intent, metrics, dims, mods, last) {
		mods.NeedsBreakdown = true
		debug.Inherited = true
		for _, key := range last.Dimensions {
			scope, _ := e.reg.ScopeOf(key)
			dims = append(dims, Candidate{
				Name:      key,
				Score:     inheritedScore,
				MatchedBy: MatchedInherited,
				Scope:     scope,
			})
			debug.Dimensions = append(debug.Dimensions, DebugMatch{
				Token:  key,
				Key:    key,
				Score:  inheritedScore,
				Source: string(MatchedInherited),
			})
		}
	}

	if len(metrics) == 0 {
		if cand, ok := e.semanticFallback(ctx, question, catalog.KindMetric); ok {
			metrics = append(metrics, cand)
			debug.Metrics = append(debug.Metrics, DebugMatch{
				Token:  question,
				Key:    cand.Name,
				Score:  cand.Score,
				Source: string(cand.MatchedBy),
			})
		}
	}
	// Dimension fallback only fires on an actual breakdown signal, so a
	// plain metric question cannot pick up a noise dimension.
	if len(dims) == 0 && wantsDimension(intent, mods) {
		if cand, ok := e.semanticFallback(ctx, question, catalog.KindDimension); ok {
			dims = append(dims, cand)
			debug.Dimensions = append(debug.Dimensions, DebugMatch{
				Token:  question,
				Key:    cand.Name,
				Score:  cand.Score,
				Source: string(cand.MatchedBy),
			})
		}
	}

	if e.llm != nil && bestScore(metrics) < SemanticHighThreshold {
		fb, err := e.fallbackExtract(ctx, question)
		if err != nil {
			e.logger.Warn("nlq: llm fallback skipped: %v", err)
		} else if fb != nil {
			debug.LLMFallback = true
			metrics, dims = e.applyFallback(fb, metrics, dims, &debug)
			if intent == IntentMetricSingle && fb.Intent.valid() {
				intent = fb.Intent
			}
			if mods.Limit == 0 && fb.Limit > 0 {
				mods.Limit = fb.Limit
			}
		}
	}

	sortCandidates(e.reg, metrics)
	sortCandidates(e.reg, dims)
	if len(metrics) > maxCandidates {
		metrics = metrics[:maxCandidates]
	}
	if len(dims) > maxCandidates {
		dims = dims[:maxCandidates]
	}

	return Extraction{
		Intent:     intent,
		Metrics:    metrics,
		Dimensions: dims,
		Dates:      dates,
		Modifiers:  mods,
		Debug:      debug,
	}
}

// matchExplicit scans the normalized question for registry names, longest
// pattern first. Matched spans are masked so a shorter alias cannot
// rematch inside a longer one ("구매 수익" must not also yield "수익").
// Matches are produced in question order and deduplicated by key.
func (e *Extractor) matchExplicit(norm string) (metrics, dims []Candidate, metricDebug, dimDebug []DebugMatch) {
	if norm == "" {
		return nil, nil, nil, nil
	}
	masked := []byte(norm)

	type hit struct {
		pattern catalog.NamePattern
		pos     int
	}
	var hits []hit
	seen := map[string]struct{}{}

	for _, p := range e.reg.NamePatterns() {
		if p.Norm == "" {
			continue
		}
		idx := strings.Index(string(masked), p.Norm)
		if idx < 0 {
			continue
		}
		for i := idx; i < idx+len(p.Norm); i++ {
			masked[i] = maskByte
		}
		if _, dup := seen[p.Key]; dup {
			continue
		}
		seen[p.Key] = struct{}{}
		hits = append(hits, hit{pattern: p, pos: idx})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	for _, h := range hits {
		scope, _ := e.reg.ScopeOf(h.pattern.Key)
		matched := MatchedExplicit
		if h.pattern.Alias {
			matched = MatchedAlias
		}
		cand := Candidate{
			Name:      h.pattern.Key,
			Score:     1.0,
			MatchedBy: matched,
			Scope:     scope,
		}
		dm := DebugMatch{
			Token:  h.pattern.Norm,
			Key:    h.pattern.Key,
			Score:  1.0,
			Source: string(matched),
		}
		if h.pattern.Kind == catalog.KindMetric {
			metrics = append(metrics, cand)
			metricDebug = append(metricDebug, dm)
		} else {
			dims = append(dims, cand)
			dimDebug = append(dimDebug, dm)
		}
	}
	return metrics, dims, metricDebug, dimDebug
}

// semanticFallback asks the bag-of-words index for the closest registry
// entry of the given kind. Scores at or above the high threshold are
// accepted outright; scores in the mid band come back flagged for
// clarification.
func (e *Extractor) semanticFallback(ctx context.Context, question string, kind catalog.Kind) (Candidate, bool) {
	if e.index == nil {
		return Candidate{}, false
	}
	match, ok, err := e.index.Best(ctx, question, kind)
	if err != nil {
		e.logger.Warn("nlq: semantic lookup failed: %v", err)
		return Candidate{}, false
	}
	if !ok {
		return Candidate{}, false
	}
	score := float64(match.Score)
	scope, _ := e.reg.ScopeOf(match.Key)
	switch {
	case score >= SemanticHighThreshold:
		return Candidate{Name: match.Key, Score: score, MatchedBy: MatchedSemanticHigh, Scope: scope}, true
	case score >= SemanticMidThreshold:
		return Candidate{Name: match.Key, Score: score, MatchedBy: MatchedSemanticMid, Scope: scope, NeedsClarify: true}, true
	default:
		return Candidate{}, false
	}
}

// shouldInheritDims detects short follow-up questions like "그럼 매출은?"
// that name a metric but no dimension: the previous turn's dimensions are
// carried forward so the breakdown shape survives the metric switch.
func (e *Extractor) shouldInheritDims(question string, intent Intent, metrics, dims []Candidate, mods Modifiers, last *convo.State) bool {
	if last == nil || len(last.Dimensions) == 0 {
		return false
	}
	if intent != IntentMetricSingle {
		return false
	}
	if len(metrics) == 0 || len(dims) > 0 || mods.NeedsBreakdown {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(question)) <= maxFollowUpRunes
}

// applyFallback folds LLM-suggested names into the candidate lists.
// Suggestions that do not resolve against the registry are discarded.
func (e *Extractor) applyFallback(fb *fallbackResult, metrics, dims []Candidate, debug *MatchingDebug) ([]Candidate, []Candidate) {
	for _, name := range fb.Metrics {
		key, ok := e.reg.ResolveMetric(name)
		if !ok || hasKey(metrics, key) {
			continue
		}
		scope, _ := e.reg.ScopeOf(key)
		metrics = append(metrics, Candidate{Name: key, Score: llmCandidateScore, MatchedBy: MatchedLLM, Scope: scope})
		debug.Metrics = append(debug.Metrics, DebugMatch{Token: name, Key: key, Score: llmCandidateScore, Source: string(MatchedLLM)})
	}
	for _, name := range fb.Dimensions {
		key, ok := e.reg.ResolveDimension(name)
		if !ok || hasKey(dims, key) {
			continue
		}
		scope, _ := e.reg.ScopeOf(key)
		dims = append(dims, Candidate{Name: key, Score: llmCandidateScore, MatchedBy: MatchedLLM, Scope: scope})
		debug.Dimensions = append(debug.Dimensions, DebugMatch{Token: name, Key: key, Score: llmCandidateScore, Source: string(MatchedLLM)})
	}
	return metrics, dims
}

// wantsDimension reports whether the question carries any breakdown
// signal worth a semantic dimension lookup.
func wantsDimension(intent Intent, mods Modifiers) bool {
	return mods.NeedsBreakdown || intent == IntentBreakdown || intent == IntentTopN
}

// sortCandidates orders by score descending, ties by registry priority
// then registry order. The sort is stable, so explicit matches that tie
// on all three keep their question order.
func sortCandidates(reg *catalog.Registry, cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		pa, pb := reg.PriorityOf(a.Name), reg.PriorityOf(b.Name)
		if pa != pb {
			return pa > pb
		}
		return reg.RegistryOrder(a.Name) < reg.RegistryOrder(b.Name)
	})
}

func distinctKeys(cands []Candidate) int {
	seen := map[string]struct{}{}
	for _, c := range cands {
		seen[c.Name] = struct{}{}
	}
	return len(seen)
}

func bestScore(cands []Candidate) float64 {
	best := 0.0
	for _, c := range cands {
		if c.Score > best {
			best = c.Score
		}
	}
	return best
}

func hasKey(cands []Candidate, key string) bool {
	for _, c := range cands {
		if c.Name == key {
			return true
		}
	}
	return false
}
