// Package plan turns extraction output plus inherited state into a
// deterministic execution plan. Everything downstream executes the plan
// literally; no inference happens after this layer.
package plan

import (
	"nugget/internal/catalog"
	"nugget/internal/nlq"
)

// BlockType selects the shape of one planned query.
type BlockType string

const (
	BlockTotal         BlockType = "total"
	BlockBreakdown     BlockType = "breakdown"
	BlockBreakdownTopN BlockType = "breakdown_topn"
	BlockTrend         BlockType = "trend"
)

// Filters narrows a block to an event or to dimension values. EventFilter
// and EventFilters are mutually exclusive: comparing two events keeps both
// names and never collapses to a single filter.
type Filters struct {
	EventFilter      string              `json:"event_filter,omitempty"`
	EventFilters     []string            `json:"event_filters,omitempty"`
	DimensionFilters map[string][]string `json:"dimension_filters,omitempty"`
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f.EventFilter == "" && len(f.EventFilters) == 0 && len(f.DimensionFilters) == 0
}

// OrderBy sorts block rows by a metric or a dimension.
type OrderBy struct {
	Metric    string `json:"metric,omitempty"`
	Dimension string `json:"dimension,omitempty"`
	Desc      bool   `json:"desc"`
}

// Block is one self-contained query. Every metric and dimension in it is
// compatible with the block's scope.
type Block struct {
	ID         string        `json:"block_id"`
	Type       BlockType     `json:"block_type"`
	Scope      catalog.Scope `json:"scope"`
	Metrics    []string      `json:"metrics"`
	Dimensions []string      `json:"dimensions,omitempty"`
	Filters    Filters       `json:"filters,omitempty"`
	OrderBys   []OrderBy     `json:"order_bys,omitempty"`
	Limit      int64         `json:"limit,omitempty"`
	Title      string        `json:"title"`
}

// Status marks whether the plan is executable or needs clarification.
type Status string

const (
	StatusOK      Status = "ok"
	StatusClarify Status = "clarify"
)

// Plan is the full execution plan for one turn. A clarify plan carries no
// blocks; partial plans are never emitted.
type Plan struct {
	PropertyID     string     `json:"property_id"`
	StartDate      string     `json:"start_date"`
	EndDate        string     `json:"end_date"`
	Intent         nlq.Intent `json:"intent"`
	Status         Status     `json:"status"`
	ClarifyMessage string     `json:"clarify_message,omitempty"`
	Blocks         []Block    `json:"blocks"`
}

// PrimaryBlock returns the anchor block: the first breakdown or trend
// block, else the first total block.
func (p Plan) PrimaryBlock() (Block, bool) {
	for _, b := range p.Blocks {
		if b.Type != BlockTotal {
			return b, true
		}
	}
	if len(p.Blocks) > 0 {
		return p.Blocks[0], true
	}
	return Block{}, false
}
