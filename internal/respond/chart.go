package respond

import (
	"regexp"
	"sort"

	"nugget/internal/exec"
	"nugget/internal/plan"
	"nugget/internal/shared/jsonx"
)

const (
	maxChartRows   = 30
	maxChartSeries = 2
)

// ChartSeries is one named data vector. Its length always matches the
// chart's label count.
type ChartSeries struct {
	Name string    `json:"name"`
	Data []float64 `json:"data"`
}

// ChartSpec describes the single chart of one response.
type ChartSpec struct {
	Type   string        `json:"type"`
	Labels []string      `json:"labels"`
	Series []ChartSeries `json:"series"`
}

// PlotData wraps an optional chart. It marshals to [] when empty, so the
// wire shape stays stable for clients that expect an array.
type PlotData struct {
	Chart *ChartSpec
}

// MarshalJSON renders the chart spec, or [] when there is none.
func (p PlotData) MarshalJSON() ([]byte, error) {
	if p.Chart == nil {
		return []byte("[]"), nil
	}
	return jsonx.Marshal(p.Chart)
}

var isoDateLabelRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// buildChart picks one chart for the response: a trend block renders as a
// line, else the first chartable breakdown as a bar, else a lone total as
// a bar over its metric keys.
func (a *Adapter) buildChart(results []exec.BlockResult) PlotData {
	for _, res := range results {
		if res.Type == plan.BlockTrend {
			if spec := a.lineChart(res); spec != nil {
				return PlotData{Chart: spec}
			}
		}
	}
	for _, res := range results {
		if res.Type == plan.BlockBreakdown || res.Type == plan.BlockBreakdownTopN {
			if spec := a.barChart(res); spec != nil {
				return PlotData{Chart: spec}
			}
		}
	}
	if len(results) == 1 && results[0].Type == plan.BlockTotal {
		if spec := totalBar(results[0]); spec != nil {
			return PlotData{Chart: spec}
		}
	}
	return PlotData{}
}

// lineChart renders a trend block. Labels that all look like ISO dates
// are sorted ascending, carrying their series values along.
func (a *Adapter) lineChart(res exec.BlockResult) *ChartSpec {
	if len(res.Dimensions) == 0 || len(res.Metrics) == 0 || res.Table.Len() == 0 {
		return nil
	}
	dim := res.Dimensions[0]

	type point struct {
		label  string
		values []float64
	}
	points := make([]point, 0, res.Table.Len())
	for _, row := range res.Table.Rows {
		p := point{label: FormatDimension(dim, row[dim].Str())}
		for _, m := range res.Metrics {
			f, _ := row[m].Float64()
			p.values = append(p.values, f)
		}
		points = append(points, p)
	}

	sortable := true
	for _, p := range points {
		if !isoDateLabelRe.MatchString(p.label) {
			sortable = false
			break
		}
	}
	if sortable {
		sort.SliceStable(points, func(i, j int) bool { return points[i].label < points[j].label })
	}

	spec := &ChartSpec{Type: "line", Labels: make([]string, 0, len(points))}
	for _, m := range res.Metrics {
		spec.Series = append(spec.Series, ChartSeries{
			Name: a.reg.UINameOf(m),
			Data: make([]float64, 0, len(points)),
		})
	}
	for _, p := range points {
		spec.Labels = append(spec.Labels, p.label)
		for i := range spec.Series {
			spec.Series[i].Data = append(spec.Series[i].Data, p.values[i])
		}
	}
	return spec
}

// barChart renders a breakdown block when it has a non-numeric label
// column and at least one numeric metric column.
func (a *Adapter) barChart(res exec.BlockResult) *ChartSpec {
	if len(res.Dimensions) == 0 || len(res.Metrics) == 0 || res.Table.Len() == 0 {
		return nil
	}
	dim := res.Dimensions[0]
	rows := res.Table.Rows
	if len(rows) > maxChartRows {
		rows = rows[:maxChartRows]
	}

	textualLabel := false
	for _, row := range rows {
		if _, ok := exec.ParseNumeric(row[dim].Str()); !ok {
			textualLabel = true
			break
		}
	}
	if !textualLabel {
		return nil
	}

	metrics := res.Metrics
	if len(metrics) > maxChartSeries {
		metrics = metrics[:maxChartSeries]
	}
	hasNumeric := false
	for _, m := range metrics {
		for _, row := range rows {
			if row[m].Kind() == exec.KindFloat {
				hasNumeric = true
				break
			}
		}
	}
	if !hasNumeric {
		return nil
	}

	spec := &ChartSpec{Type: "bar", Labels: make([]string, 0, len(rows))}
	for _, m := range metrics {
		spec.Series = append(spec.Series, ChartSeries{
			Name: a.reg.UINameOf(m),
			Data: make([]float64, 0, len(rows)),
		})
	}
	for _, row := range rows {
		spec.Labels = append(spec.Labels, FormatDimension(dim, row[dim].Str()))
		for i, m := range metrics {
			f, _ := row[m].Float64()
			spec.Series[i].Data = append(spec.Series[i].Data, f)
		}
	}
	return spec
}

// totalBar renders a lone total block as a bar over its metric keys.
func totalBar(res exec.BlockResult) *ChartSpec {
	if len(res.Metrics) == 0 {
		return nil
	}
	data := make([]float64, 0, len(res.Metrics))
	for _, m := range res.Metrics {
		data = append(data, res.Totals[m])
	}
	return &ChartSpec{
		Type:   "bar",
		Labels: append([]string(nil), res.Metrics...),
		Series: []ChartSeries{{Name: "합계", Data: data}},
	}
}
