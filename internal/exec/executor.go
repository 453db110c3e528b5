package exec

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"nugget/internal/analytics"
	"nugget/internal/catalog"
	"nugget/internal/plan"
	"nugget/internal/shared/logging"
)

const (
	defaultBlockTimeout = 20 * time.Second
	defaultParallelism  = 4
)

// Status summarizes a full plan run.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial_error"
	StatusError   Status = "error"
)

// BlockResult is one executed block: its normalized row table plus the
// per-metric sums over all returned rows.
type BlockResult struct {
	BlockID    string
	Title      string
	Type       plan.BlockType
	Scope      catalog.Scope
	Metrics    []string
	Dimensions []string
	Table      *Table
	Totals     map[string]float64
}

// DroppedBlock records a block that failed and was removed from the run.
type DroppedBlock struct {
	BlockID string
	Err     error
}

// Outcome carries the surviving results in plan order plus the drops.
type Outcome struct {
	Results []BlockResult
	Dropped []DroppedBlock
	Status  Status
}

// Executor runs plan blocks against the analytics port. Blocks are
// independent: one failing block is dropped and the rest of the plan
// continues. Retries are not attempted here; the transport owns those.
type Executor struct {
	svc      analytics.Service
	resolver *analytics.Resolver
	timeout  time.Duration
	parallel int
	logger   logging.Logger
}

// Option adjusts executor construction.
type Option func(*Executor)

// WithTimeout overrides the per-block deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithParallelism caps how many blocks run concurrently.
func WithParallelism(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.parallel = n
		}
	}
}

// NewExecutor builds an executor over the analytics port. The resolver is
// optional; without one, plan field names go to the port as-is.
func NewExecutor(svc analytics.Service, resolver *analytics.Resolver, logger logging.Logger, opts ...Option) *Executor {
	e := &Executor{
		svc:      svc,
		resolver: resolver,
		timeout:  defaultBlockTimeout,
		parallel: defaultParallelism,
		logger:   logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes every block of the plan, in parallel up to the configured
// limit, and assembles the surviving results in plan order. A block error
// never cancels its siblings.
func (e *Executor) Run(ctx context.Context, p plan.Plan) Outcome {
	if len(p.Blocks) == 0 {
		return Outcome{Status: StatusError}
	}

	results := make([]*BlockResult, len(p.Blocks))
	errs := make([]error, len(p.Blocks))

	var g errgroup.Group
	g.SetLimit(e.parallel)
	for i, block := range p.Blocks {
		g.Go(func() error {
			res, err := e.runBlock(ctx, p, block)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait() // block errors are collected per slot, never returned

	var out Outcome
	for i, block := range p.Blocks {
		if errs[i] != nil {
			e.logger.Warn("block %s dropped: %v", block.ID, errs[i])
			out.Dropped = append(out.Dropped, DroppedBlock{BlockID: block.ID, Err: errs[i]})
			continue
		}
		out.Results = append(out.Results, *results[i])
	}
	switch {
	case len(out.Dropped) == 0:
		out.Status = StatusOK
	case len(out.Results) > 0:
		out.Status = StatusPartial
	default:
		out.Status = StatusError
	}
	return out
}

func (e *Executor) runBlock(ctx context.Context, p plan.Plan, block plan.Block) (*BlockResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.svc.RunReport(ctx, e.translate(ctx, p, block))
	if err != nil {
		return nil, fmt.Errorf("run report: %w", err)
	}
	return e.normalize(block, resp), nil
}

// translate maps one block onto the port's request shape. Field names are
// resolved against the live property metadata on the way out; the block's
// own names stay untouched so the normalized table keeps plan keys.
func (e *Executor) translate(ctx context.Context, p plan.Plan, block plan.Block) analytics.ReportRequest {
	req := analytics.ReportRequest{
		PropertyID: p.PropertyID,
		DateRanges: []analytics.DateRange{{Start: p.StartDate, End: p.EndDate}},
		Limit:      block.Limit,
	}
	for _, d := range block.Dimensions {
		req.Dimensions = append(req.Dimensions, e.resolveDimension(ctx, p.PropertyID, d))
	}
	for _, m := range block.Metrics {
		req.Metrics = append(req.Metrics, e.resolveMetric(ctx, p.PropertyID, m))
	}
	if f := translateFilter(block.Filters); f != nil {
		f.Field = e.resolveDimension(ctx, p.PropertyID, f.Field)
		req.DimensionFilter = f
	}
	for _, ob := range block.OrderBys {
		out := analytics.OrderBy{Desc: ob.Desc}
		if ob.Metric != "" {
			out.Metric = e.resolveMetric(ctx, p.PropertyID, ob.Metric)
		}
		if ob.Dimension != "" {
			out.Dimension = e.resolveDimension(ctx, p.PropertyID, ob.Dimension)
		}
		req.OrderBys = append(req.OrderBys, out)
	}
	return req
}

// translateFilter collapses the plan's filter forms into the port's single
// dimension filter. When several dimension filters are present only one
// field survives: eventName first, else the lexically smallest key, so
// repeated runs always pick the same field.
func translateFilter(f plan.Filters) *analytics.DimensionFilter {
	switch {
	case len(f.EventFilters) > 0:
		return &analytics.DimensionFilter{
			Field:  "eventName",
			Values: append([]string(nil), f.EventFilters...),
		}
	case f.EventFilter != "":
		return &analytics.DimensionFilter{
			Field:  "eventName",
			Values: []string{f.EventFilter},
		}
	case len(f.DimensionFilters) > 0:
		if vals, ok := f.DimensionFilters["eventName"]; ok {
			return &analytics.DimensionFilter{
				Field:  "eventName",
				Values: append([]string(nil), vals...),
			}
		}
		keys := make([]string, 0, len(f.DimensionFilters))
		for k := range f.DimensionFilters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return &analytics.DimensionFilter{
			Field:  keys[0],
			Values: append([]string(nil), f.DimensionFilters[keys[0]]...),
		}
	default:
		return nil
	}
}

// normalize turns a report response into a table keyed by the block's own
// field names. Metric cells parse leniently into floats and feed the
// per-metric totals; cells that stay non-numeric keep their text.
func (e *Executor) normalize(block plan.Block, resp *analytics.ReportResponse) *BlockResult {
	columns := make([]string, 0, len(block.Dimensions)+len(block.Metrics))
	columns = append(columns, block.Dimensions...)
	columns = append(columns, block.Metrics...)

	table := NewTable(columns...)
	totals := make(map[string]float64, len(block.Metrics))
	for _, row := range resp.Rows {
		out := make(Row, len(columns))
		for i, dim := range block.Dimensions {
			if i < len(row.DimensionValues) {
				out[dim] = String(row.DimensionValues[i])
			} else {
				out[dim] = Null()
			}
		}
		for j, metric := range block.Metrics {
			if j >= len(row.MetricValues) {
				out[metric] = Null()
				continue
			}
			raw := row.MetricValues[j]
			if f, ok := ParseNumeric(raw); ok {
				out[metric] = Float(f)
				totals[metric] += f
			} else {
				out[metric] = String(raw)
			}
		}
		table.Rows = append(table.Rows, out)
	}

	return &BlockResult{
		BlockID:    block.ID,
		Title:      block.Title,
		Type:       block.Type,
		Scope:      block.Scope,
		Metrics:    append([]string(nil), block.Metrics...),
		Dimensions: append([]string(nil), block.Dimensions...),
		Table:      table,
		Totals:     totals,
	}
}

func (e *Executor) resolveDimension(ctx context.Context, propertyID, name string) string {
	if e.resolver == nil {
		return name
	}
	return e.resolver.ResolveDimension(ctx, propertyID, name)
}

func (e *Executor) resolveMetric(ctx context.Context, propertyID, name string) string {
	if e.resolver == nil {
		return name
	}
	return e.resolver.ResolveMetric(ctx, propertyID, name)
}
