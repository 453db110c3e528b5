package respond

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nugget/internal/exec"
	"nugget/internal/plan"
	"nugget/internal/shared/jsonx"
)

func TestLineChartSortsISOLabels(t *testing.T) {
	a := newTestAdapter(t)
	trend := makeResult(t, "trend_event_0", plan.BlockTrend, "활성 사용자 추이",
		[]string{"date"}, []string{"activeUsers"},
		[]any{"20260211", 90},
		[]any{"20260209", 120},
		[]any{"20260210", 140})

	spec := a.lineChart(trend)
	require.NotNil(t, spec)
	assert.Equal(t, "line", spec.Type)
	assert.Equal(t, []string{"2026-02-09", "2026-02-10", "2026-02-11"}, spec.Labels)
	require.Len(t, spec.Series, 1)
	assert.Equal(t, "활성 사용자", spec.Series[0].Name)
	assert.Equal(t, []float64{120, 140, 90}, spec.Series[0].Data)
	assert.Len(t, spec.Series[0].Data, len(spec.Labels))
}

func TestLineChartFormatsYearMonthLabels(t *testing.T) {
	a := newTestAdapter(t)
	trend := makeResult(t, "trend_event_0", plan.BlockTrend, "활성 사용자 추이",
		[]string{"yearMonth"}, []string{"activeUsers"},
		[]any{"202601", 1000},
		[]any{"202602", 1200})

	spec := a.lineChart(trend)
	require.NotNil(t, spec)
	assert.Equal(t, []string{"2026-01", "2026-02"}, spec.Labels)
}

func TestBarChartCapsRowsAndSeries(t *testing.T) {
	a := newTestAdapter(t)
	rows := make([][]any, 0, 35)
	for i := 0; i < 35; i++ {
		rows = append(rows, []any{fmt.Sprintf("ch-%02d", i), 100 + i, 200 + i, 300 + i})
	}
	breakdown := makeResult(t, "breakdown_event_0", plan.BlockBreakdown, "채널별 지표",
		[]string{"sessionDefaultChannelGroup"},
		[]string{"eventCount", "activeUsers", "purchaseRevenue"}, rows...)

	spec := a.barChart(breakdown)
	require.NotNil(t, spec)
	assert.Equal(t, "bar", spec.Type)
	assert.Len(t, spec.Labels, maxChartRows)
	require.Len(t, spec.Series, maxChartSeries)
	for _, s := range spec.Series {
		assert.Len(t, s.Data, len(spec.Labels))
	}
}

func TestBarChartSkipsNumericLabelColumn(t *testing.T) {
	a := newTestAdapter(t)
	breakdown := makeResult(t, "breakdown_event_0", plan.BlockBreakdown, "시간별 이벤트 수",
		[]string{"hour"}, []string{"eventCount"},
		[]any{"09", 120},
		[]any{"12", 300},
		[]any{"18", 210})

	assert.Nil(t, a.barChart(breakdown))

	// No trend, no chartable breakdown, not a lone total: no chart.
	plot := a.buildChart([]exec.BlockResult{breakdown})
	raw, err := jsonx.Marshal(plot)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestBuildChartPrefersTrend(t *testing.T) {
	a := newTestAdapter(t)
	trend := makeResult(t, "trend_event_1", plan.BlockTrend, "활성 사용자 추이",
		[]string{"date"}, []string{"activeUsers"},
		[]any{"20260209", 120})
	breakdown := makeResult(t, "breakdown_event_0", plan.BlockBreakdown, "채널별 이벤트 수",
		[]string{"sessionDefaultChannelGroup"}, []string{"eventCount"},
		[]any{"Direct", 300})

	plot := a.buildChart([]exec.BlockResult{breakdown, trend})
	require.NotNil(t, plot.Chart)
	assert.Equal(t, "line", plot.Chart.Type)
}

func TestPlotDataMarshalsEmptyAsArray(t *testing.T) {
	raw, err := jsonx.Marshal(PlotData{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}
