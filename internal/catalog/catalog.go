package catalog

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scope is the analytic grain of a field. Queries may only mix
// scope-compatible fields inside one block.
type Scope string

const (
	ScopeEvent Scope = "event"
	ScopeItem  Scope = "item"
	ScopeUser  Scope = "user"
)

// Category groups fields for lookup heuristics and follow-up suggestions.
type Category string

const (
	CategoryTime      Category = "time"
	CategoryEvent     Category = "event"
	CategoryPage      Category = "page"
	CategoryDevice    Category = "device"
	CategoryGeo       Category = "geo"
	CategoryTraffic   Category = "traffic"
	CategoryUser      Category = "user"
	CategoryAds       Category = "ads"
	CategoryEcommerce Category = "ecommerce"
)

// Kind distinguishes metric entries from dimension entries.
type Kind string

const (
	KindMetric    Kind = "metric"
	KindDimension Kind = "dimension"
)

// MetricDef describes one metric of the analytics property.
type MetricDef struct {
	Key         string   `yaml:"key"`
	UIName      string   `yaml:"ui_name"`
	Aliases     []string `yaml:"aliases,omitempty"`
	KRSemantics []string `yaml:"kr_semantics,omitempty"`
	Category    Category `yaml:"category"`
	Scope       Scope    `yaml:"scope"`
	Priority    int      `yaml:"priority"`
	Concept     string   `yaml:"concept,omitempty"`
}

// DimensionDef describes one dimension of the analytics property.
type DimensionDef struct {
	Key         string   `yaml:"key"`
	UIName      string   `yaml:"ui_name"`
	Aliases     []string `yaml:"aliases,omitempty"`
	KRSemantics []string `yaml:"kr_semantics,omitempty"`
	Category    Category `yaml:"category"`
	Scope       Scope    `yaml:"scope"`
	Priority    int      `yaml:"priority"`
	Concept     string   `yaml:"concept,omitempty"`
}

// NamePattern is a normalized name of a registry entry, used by the
// extractor for substring scanning over the normalized question.
type NamePattern struct {
	Norm     string
	Key      string
	Kind     Kind
	Priority int
	Order    int  // registry order, for deterministic tie-breaks
	Alias    bool // true when the name is an alias, not the key or UI name
}

type entry struct {
	key      string
	kind     Kind
	scope    Scope
	category Category
	priority int
	uiName   string
	order    int
}

// Registry is the immutable metric/dimension catalog. It is loaded once at
// startup and safe for concurrent reads.
type Registry struct {
	metrics    []MetricDef
	dimensions []DimensionDef

	byKey        map[string]entry
	metricNorms  map[string]string // normalized name -> key
	dimNorms     map[string]string
	patterns     []NamePattern
	timeDimKeys  []string
	conceptIndex map[string][]string // concept -> metric keys, priority desc
}

type catalogFile struct {
	Metrics    []MetricDef    `yaml:"metrics"`
	Dimensions []DimensionDef `yaml:"dimensions"`
}

// Load parses a YAML catalog into a Registry.
func Load(data []byte) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.Metrics) == 0 || len(file.Dimensions) == 0 {
		return nil, fmt.Errorf("catalog must declare metrics and dimensions")
	}

	r := &Registry{
		metrics:      file.Metrics,
		dimensions:   file.Dimensions,
		byKey:        make(map[string]entry),
		metricNorms:  make(map[string]string),
		dimNorms:     make(map[string]string),
		conceptIndex: make(map[string][]string),
	}

	order := 0
	for _, m := range file.Metrics {
		if _, dup := r.byKey[m.Key]; dup {
			return nil, fmt.Errorf("duplicate catalog key %q", m.Key)
		}
		r.byKey[m.Key] = entry{
			key: m.Key, kind: KindMetric, scope: m.Scope,
			category: m.Category, priority: m.Priority, uiName: m.UIName, order: order,
		}
		r.addNames(KindMetric, m.Key, m.UIName, m.Aliases, m.Priority, order)
		if m.Concept != "" {
			r.conceptIndex[m.Concept] = append(r.conceptIndex[m.Concept], m.Key)
		}
		order++
	}
	for _, d := range file.Dimensions {
		if _, dup := r.byKey[d.Key]; dup {
			return nil, fmt.Errorf("duplicate catalog key %q", d.Key)
		}
		r.byKey[d.Key] = entry{
			key: d.Key, kind: KindDimension, scope: d.Scope,
			category: d.Category, priority: d.Priority, uiName: d.UIName, order: order,
		}
		r.addNames(KindDimension, d.Key, d.UIName, d.Aliases, d.Priority, order)
		if d.Category == CategoryTime {
			r.timeDimKeys = append(r.timeDimKeys, d.Key)
		}
		order++
	}

	// Longer names first so the extractor prefers the most specific match.
	sort.SliceStable(r.patterns, func(i, j int) bool {
		if len(r.patterns[i].Norm) != len(r.patterns[j].Norm) {
			return len(r.patterns[i].Norm) > len(r.patterns[j].Norm)
		}
		return r.patterns[i].Order < r.patterns[j].Order
	})
	for concept := range r.conceptIndex {
		keys := r.conceptIndex[concept]
		sort.SliceStable(keys, func(i, j int) bool {
			return r.byKey[keys[i]].priority > r.byKey[keys[j]].priority
		})
	}

	return r, nil
}

func (r *Registry) addNames(kind Kind, key, uiName string, aliases []string, priority, order int) {
	norms := r.metricNorms
	if kind == KindDimension {
		norms = r.dimNorms
	}
	seen := map[string]bool{}
	for i, name := range append([]string{key, uiName}, aliases...) {
		norm := Normalize(name)
		if len([]rune(norm)) < 2 || seen[norm] {
			continue
		}
		seen[norm] = true
		if _, taken := norms[norm]; !taken {
			norms[norm] = key
		}
		r.patterns = append(r.patterns, NamePattern{
			Norm: norm, Key: key, Kind: kind, Priority: priority, Order: order,
			Alias: i >= 2,
		})
	}
}

var normStrip = regexp.MustCompile(`[\s\-_/]+`)

// Normalize lowercases a token and strips whitespace, hyphens, underscores
// and slashes. Idempotent.
func Normalize(token string) string {
	return normStrip.ReplaceAllString(strings.ToLower(token), "")
}

// ResolveMetric maps a free-form token to a metric key. Single-character
// tokens never resolve.
func (r *Registry) ResolveMetric(token string) (string, bool) {
	return r.resolve(r.metricNorms, token)
}

// ResolveDimension maps a free-form token to a dimension key.
func (r *Registry) ResolveDimension(token string) (string, bool) {
	return r.resolve(r.dimNorms, token)
}

func (r *Registry) resolve(norms map[string]string, token string) (string, bool) {
	norm := Normalize(token)
	if len([]rune(norm)) < 2 {
		return "", false
	}
	key, ok := norms[norm]
	return key, ok
}

// IsMetric reports whether key names a metric.
func (r *Registry) IsMetric(key string) bool {
	e, ok := r.byKey[key]
	return ok && e.kind == KindMetric
}

// IsDimension reports whether key names a dimension.
func (r *Registry) IsDimension(key string) bool {
	e, ok := r.byKey[key]
	return ok && e.kind == KindDimension
}

// ScopeOf returns the scope of a registry key.
func (r *Registry) ScopeOf(key string) (Scope, bool) {
	e, ok := r.byKey[key]
	return e.scope, ok
}

// CategoryOf returns the category of a registry key.
func (r *Registry) CategoryOf(key string) (Category, bool) {
	e, ok := r.byKey[key]
	return e.category, ok
}

// PriorityOf returns the priority of a registry key (0 when unknown).
func (r *Registry) PriorityOf(key string) int {
	return r.byKey[key].priority
}

// UINameOf returns the Korean display name for a key. Unknown keys
// (live custom parameters) fall back to the bare parameter name.
func (r *Registry) UINameOf(key string) string {
	if e, ok := r.byKey[key]; ok {
		return e.uiName
	}
	if _, param, ok := SplitCustomKey(key); ok {
		return param
	}
	return key
}

// RegistryOrder returns the load order of a key, for deterministic tie-breaks.
func (r *Registry) RegistryOrder(key string) int {
	if e, ok := r.byKey[key]; ok {
		return e.order
	}
	return int(^uint(0) >> 1)
}

// MetricDefs returns metric definitions in registry order.
func (r *Registry) MetricDefs() []MetricDef { return r.metrics }

// DimensionDefs returns dimension definitions in registry order.
func (r *Registry) DimensionDefs() []DimensionDef { return r.dimensions }

// LookupMetric returns the definition of a metric key.
func (r *Registry) LookupMetric(key string) (MetricDef, bool) {
	for _, m := range r.metrics {
		if m.Key == key {
			return m, true
		}
	}
	return MetricDef{}, false
}

// NamePatterns returns every normalized entry name, longest first.
func (r *Registry) NamePatterns() []NamePattern { return r.patterns }

// TimeDimensionKeys returns the time-category dimension keys in registry order.
func (r *Registry) TimeDimensionKeys() []string { return r.timeDimKeys }

// CounterpartMetric finds a metric with the same concept in the target
// scope, e.g. purchaseRevenue -> itemRevenue when an item-scoped axis wins.
func (r *Registry) CounterpartMetric(key string, scope Scope) (string, bool) {
	m, ok := r.LookupMetric(key)
	if !ok || m.Concept == "" {
		return "", false
	}
	for _, candidate := range r.conceptIndex[m.Concept] {
		if candidate == key {
			continue
		}
		if s, ok := r.ScopeOf(candidate); ok && s == scope {
			return candidate, true
		}
	}
	return "", false
}

// CustomPrefixes are tried in order when a name does not resolve against
// the live property metadata directly.
var CustomPrefixes = []string{"customEvent:", "customUser:", "customItem:"}

// SplitCustomKey splits a custom-parameter key into prefix and parameter name.
func SplitCustomKey(key string) (prefix, param string, ok bool) {
	for _, p := range CustomPrefixes {
		if strings.HasPrefix(key, p) {
			return p, strings.TrimPrefix(key, p), true
		}
	}
	return "", "", false
}

// IsCustomKey reports whether key carries a custom-parameter prefix.
func IsCustomKey(key string) bool {
	_, _, ok := SplitCustomKey(key)
	return ok
}
