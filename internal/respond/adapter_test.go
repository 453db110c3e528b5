package respond

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nugget/internal/catalog"
	"nugget/internal/exec"
	"nugget/internal/nlq"
	"nugget/internal/plan"
	"nugget/internal/shared/jsonx"
	"nugget/internal/shared/logging"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	return NewAdapter(catalog.Default(), logging.Nop())
}

// makeResult builds a BlockResult the way the executor would: dims first,
// numeric cells as floats, totals summed over float cells.
func makeResult(t *testing.T, id string, typ plan.BlockType, title string, dims, metrics []string, rows ...[]any) exec.BlockResult {
	t.Helper()
	columns := make([]string, 0, len(dims)+len(metrics))
	columns = append(columns, dims...)
	columns = append(columns, metrics...)

	table := exec.NewTable(columns...)
	totals := make(map[string]float64, len(metrics))
	for _, raw := range rows {
		require.Len(t, raw, len(columns))
		row := make(exec.Row, len(columns))
		for i, c := range columns {
			v := exec.FromAny(raw[i])
			row[c] = v
			if i >= len(dims) && v.Kind() == exec.KindFloat {
				f, _ := v.Float64()
				totals[c] += f
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return exec.BlockResult{
		BlockID:    id,
		Title:      title,
		Type:       typ,
		Metrics:    metrics,
		Dimensions: dims,
		Table:      table,
		Totals:     totals,
	}
}

func respondInput(question string, results ...exec.BlockResult) Input {
	return Input{
		Question: question,
		Outcome:  exec.Outcome{Results: results, Status: exec.StatusOK},
	}
}

func TestRespondTotalMessage(t *testing.T) {
	a := newTestAdapter(t)
	total := makeResult(t, "total_event_0", plan.BlockTotal, "구매 수익 합계",
		nil, []string{"purchaseRevenue"}, []any{1234000})

	resp := a.Respond(respondInput("지난주 총 매출 알려줘", total))

	assert.Contains(t, resp.Message, "구매 수익은 1,234,000원입니다")
	assert.Equal(t, map[string]string{"구매 수익": "1,234,000원"}, resp.Structured)
	require.Len(t, resp.RawData, 1)
	assert.Equal(t, 1234000.0, resp.RawData[0]["purchaseRevenue"])

	// A lone total falls back to a bar over the metric keys.
	require.NotNil(t, resp.PlotData.Chart)
	assert.Equal(t, "bar", resp.PlotData.Chart.Type)
	assert.Equal(t, []string{"purchaseRevenue"}, resp.PlotData.Chart.Labels)
}

func TestRespondBreakdownMessage(t *testing.T) {
	a := newTestAdapter(t)
	breakdown := makeResult(t, "breakdown_event_0", plan.BlockBreakdown, "채널별 구매 수익",
		[]string{"sessionDefaultChannelGroup"}, []string{"purchaseRevenue"},
		[]any{"Organic Search", 500000},
		[]any{"Direct", 300000},
		[]any{"Referral", 200000})

	resp := a.Respond(respondInput("지난주 채널별 매출 보여줘", breakdown))

	assert.Contains(t, resp.Message, "채널별 구매 수익 기준 상위 결과는 Organic Search (500,000원) 입니다. (총 3개)")
	assert.Contains(t, resp.Message, "1. Organic Search: 500,000원")
	assert.Contains(t, resp.Message, "3. Referral: 200,000원")

	require.NotNil(t, resp.PlotData.Chart)
	assert.Equal(t, "bar", resp.PlotData.Chart.Type)
	assert.Equal(t, []string{"Organic Search", "Direct", "Referral"}, resp.PlotData.Chart.Labels)
}

func TestRespondTrendMessage(t *testing.T) {
	a := newTestAdapter(t)
	trend := makeResult(t, "trend_event_0", plan.BlockTrend, "활성 사용자 추이",
		[]string{"date"}, []string{"activeUsers"},
		[]any{"20260209", 120},
		[]any{"20260210", 140},
		[]any{"20260211", 90})

	resp := a.Respond(respondInput("지난주 사용자 추이 보여줘", trend))

	assert.Contains(t, resp.Message, "활성 사용자 추이를 3개 시점으로 확인했습니다. (2026-02-09 ~ 2026-02-11)")
	require.NotNil(t, resp.PlotData.Chart)
	assert.Equal(t, "line", resp.PlotData.Chart.Type)
}

func TestRespondListBudget(t *testing.T) {
	a := newTestAdapter(t)
	rows := make([][]any, 0, 12)
	channels := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	for i, ch := range channels {
		rows = append(rows, []any{"ch-" + ch, 1200 - i*10})
	}
	breakdown := makeResult(t, "breakdown_event_0", plan.BlockBreakdown, "채널별 이벤트 수",
		[]string{"sessionDefaultChannelGroup"}, []string{"eventCount"}, rows...)

	countListLines := func(message string) int {
		n := 0
		for _, line := range strings.Split(message, "\n") {
			if strings.Contains(line, ". ch-") {
				n++
			}
		}
		return n
	}

	// Default keeps ten entries.
	resp := a.Respond(respondInput("채널별 클릭수 보여줘", breakdown))
	assert.Equal(t, 10, countListLines(resp.Message))

	// 전체 widens the list to everything available.
	resp = a.Respond(respondInput("채널별 클릭수 전체 보여줘", breakdown))
	assert.Equal(t, 12, countListLines(resp.Message))

	// 가장/많이 without an explicit top-N compresses to five.
	resp = a.Respond(respondInput("가장 클릭이 많은 채널은?", breakdown))
	assert.Equal(t, 5, countListLines(resp.Message))
}

func TestRespondExcludeNotSetDropsBlankRows(t *testing.T) {
	a := newTestAdapter(t)
	breakdown := makeResult(t, "breakdown_event_0", plan.BlockBreakdown, "후원명별 이벤트 수",
		[]string{"customEvent:donation_name"}, []string{"eventCount"},
		[]any{"어린이 결연", 700},
		[]any{"(not set)", 400},
		[]any{"", 50},
		[]any{"해외 아동 후원", 300})

	in := respondInput("후원명별 클릭수, not set 제외", breakdown)
	in.Extraction.Modifiers.ExcludeNotSet = true
	resp := a.Respond(in)

	assert.Contains(t, resp.Message, "(총 2개)")
	require.Len(t, resp.RawData, 2)
	for _, row := range resp.RawData {
		assert.NotContains(t, []any{"(not set)", ""}, row["customEvent:donation_name"])
	}
	require.Len(t, resp.Blocks, 1)
	assert.Equal(t, 2, resp.Blocks[0].Table.Len())
	assert.Equal(t, 1000.0, resp.Blocks[0].Totals["eventCount"])
}

func TestRespondWarnsOnMostlyBlankParameter(t *testing.T) {
	a := newTestAdapter(t)
	breakdown := makeResult(t, "breakdown_event_0", plan.BlockBreakdown, "후원명별 이벤트 수",
		[]string{"customEvent:donation_name"}, []string{"eventCount"},
		[]any{"(not set)", 700},
		[]any{"(not set)", 400},
		[]any{"", 50},
		[]any{"어린이 결연", 300})

	resp := a.Respond(respondInput("후원명별 클릭수 보여줘", breakdown))

	assert.Contains(t, resp.Message, "참고:")
	assert.Contains(t, resp.Message, "donation_name")
}

func TestRespondNotesDroppedBlocks(t *testing.T) {
	a := newTestAdapter(t)
	total := makeResult(t, "total_event_0", plan.BlockTotal, "이벤트 수 합계",
		nil, []string{"eventCount"}, []any{4200})

	in := respondInput("지난주 클릭수와 매출 알려줘", total)
	in.Outcome.Dropped = []exec.DroppedBlock{{BlockID: "total_event_1"}}
	in.Outcome.Status = exec.StatusPartial
	resp := a.Respond(in)

	assert.Contains(t, resp.Message, "일부 데이터는 불러오지 못해 제외했습니다.")
	assert.Contains(t, resp.Message, "이벤트 수는 4,200회입니다")
}

func TestRespondBrevityJoinsWithSpaces(t *testing.T) {
	a := newTestAdapter(t)
	total := makeResult(t, "total_event_0", plan.BlockTotal, "이벤트 수, 구매 수익 합계",
		nil, []string{"eventCount", "purchaseRevenue"}, []any{4200, 99000})

	resp := a.Respond(respondInput("지난주 실적 한줄 요약해줘", total))

	assert.NotContains(t, resp.Message, "\n")
	assert.Contains(t, resp.Message, "이벤트 수는 4,200회입니다")
	assert.Contains(t, resp.Message, "구매 수익은 99,000원입니다")
}

func TestRespondEmptyOutcome(t *testing.T) {
	a := newTestAdapter(t)
	resp := a.Respond(respondInput("지난주 매출"))

	assert.Equal(t, "조회된 데이터가 없습니다.", resp.Message)
	assert.Empty(t, resp.RawData)
	assert.Empty(t, resp.Structured)

	raw, err := jsonx.Marshal(resp.PlotData)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestRespondStructuredPrefersTotals(t *testing.T) {
	a := newTestAdapter(t)
	total := makeResult(t, "total_event_0", plan.BlockTotal, "구매 수익 합계",
		nil, []string{"purchaseRevenue"}, []any{50000})
	breakdown := makeResult(t, "breakdown_item_1", plan.BlockBreakdown, "상품별 상품 수익",
		[]string{"itemName"}, []string{"itemRevenue"},
		[]any{"정기후원", 30000},
		[]any{"일시후원", 20000})

	resp := a.Respond(respondInput("총 매출과 상품별 매출 보여줘", total, breakdown))
	assert.Equal(t, map[string]string{"구매 수익": "50,000원"}, resp.Structured)

	// Without a total block the primary block's totals take over.
	resp = a.Respond(respondInput("상품별 매출 보여줘", breakdown))
	assert.Equal(t, map[string]string{"상품 수익": "50,000원"}, resp.Structured)
}

func TestRespondFollowupsComeFromRules(t *testing.T) {
	a := newTestAdapter(t)
	total := makeResult(t, "total_event_0", plan.BlockTotal, "구매 수익 합계",
		nil, []string{"purchaseRevenue"}, []any{50000})

	in := respondInput("지난주 매출 알려줘", total)
	in.Extraction.Metrics = []nlq.Candidate{{Name: "purchaseRevenue", Score: 1}}
	resp := a.Respond(in)

	assert.Equal(t, []string{
		"이전 기간과 비교해 증감도 보여드릴까요?",
		"채널별/디바이스별로 나눠서 볼까요?",
		"상위 항목 TOP 10으로 확장할까요?",
	}, resp.Followups)
}
