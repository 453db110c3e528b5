package respond

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nugget/internal/plan"
)

func TestNamedRatioSynthesizer(t *testing.T) {
	a := newTestAdapter(t)
	breakdown := makeResult(t, "breakdown_event_0", plan.BlockBreakdown, "후원유형별 이벤트 수",
		[]string{"customEvent:donation_type"}, []string{"eventCount"},
		[]any{"정기후원", 600},
		[]any{"일시후원", 300},
		[]any{"굿즈", 100})

	resp := a.Respond(respondInput("정기후원과 일시후원 비중 알려줘", breakdown))

	assert.Contains(t, resp.Message, "정기후원: 600회 (60.0%)")
	assert.Contains(t, resp.Message, "일시후원: 300회 (30.0%)")
	assert.Contains(t, resp.Message, "기타: 100회 (10.0%)")

	// The insight leads the message, ahead of the block passage.
	require.True(t, strings.Index(resp.Message, "정기후원: 600회") <
		strings.Index(resp.Message, "기준 상위 결과는"))
}

func TestNamedRatioNeedsTwoKeywords(t *testing.T) {
	a := newTestAdapter(t)
	breakdown := makeResult(t, "breakdown_event_0", plan.BlockBreakdown, "후원유형별 이벤트 수",
		[]string{"customEvent:donation_type"}, []string{"eventCount"},
		[]any{"정기후원", 600},
		[]any{"일시후원", 300})

	resp := a.Respond(respondInput("정기후원 비중 알려줘", breakdown))
	assert.NotContains(t, resp.Message, "기타:")
}

func TestDualEntitySynthesizer(t *testing.T) {
	a := newTestAdapter(t)
	breakdown := makeResult(t, "breakdown_event_0", plan.BlockBreakdown, "후원명별 이벤트 수",
		[]string{"customEvent:donation_name"}, []string{"eventCount"},
		[]any{"어린이 결연", 700},
		[]any{"해외 아동 후원", 400},
		[]any{"(not set)", 100})

	in := respondInput("'어린이 결연'과 '해외 아동 후원' 중 어떤게 더 많아?", breakdown)
	in.Extraction.Modifiers.EntityTerms = []string{"어린이 결연", "해외 아동 후원"}
	resp := a.Respond(in)

	assert.Contains(t, resp.Message, "'어린이 결연' 700회")
	assert.Contains(t, resp.Message, "'해외 아동 후원' 400회")
	assert.Contains(t, resp.Message, "'어린이 결연'이 더 많습니다")
}

func TestDomesticOverseasSynthesizer(t *testing.T) {
	a := newTestAdapter(t)
	breakdown := makeResult(t, "breakdown_event_0", plan.BlockBreakdown, "국가별 활성 사용자",
		[]string{"country"}, []string{"activeUsers"},
		[]any{"South Korea", 800},
		[]any{"United States", 150},
		[]any{"Japan", 50})

	resp := a.Respond(respondInput("해외랑 국내 사용자 나눠서 보여줘", breakdown))

	assert.Contains(t, resp.Message, "국내 800명 (80.0%)")
	assert.Contains(t, resp.Message, "해외 200명 (20.0%)")
}

func TestConversionRateSynthesizer(t *testing.T) {
	a := newTestAdapter(t)
	breakdown := makeResult(t, "breakdown_event_0", plan.BlockBreakdown, "정기여부별 이벤트 수",
		[]string{"customEvent:is_regular_donation", "eventName"}, []string{"eventCount"},
		[]any{"true", "donation_click", 1000},
		[]any{"true", "purchase", 250},
		[]any{"false", "donation_click", 400},
		[]any{"false", "purchase", 40})

	resp := a.Respond(respondInput("클릭 대비 구매 전환 얼마나 돼?", breakdown))

	assert.Contains(t, resp.Message, "정기: 클릭 1,000회, 구매 250회, 전환율 25.0%")
	assert.Contains(t, resp.Message, "일시: 클릭 400회, 구매 40회, 전환율 10.0%")
}

func TestItemProfileSynthesizer(t *testing.T) {
	a := newTestAdapter(t)
	breakdown := makeResult(t, "breakdown_item_0", plan.BlockBreakdown, "상품별 상품 수익",
		[]string{"itemName", "customEvent:donation_type"}, []string{"itemRevenue"},
		[]any{"정기후원", "매월", 500000},
		[]any{"정기후원", "매주", 200000},
		[]any{"일시후원", "일회", 100000})

	in := respondInput("정기후원 상세 정보 보여줘", breakdown)
	in.Extraction.Modifiers.EntityTerms = []string{"정기후원"}
	resp := a.Respond(in)

	assert.Contains(t, resp.Message, "상품명: 정기후원")
	assert.Contains(t, resp.Message, "donation_type: 매월, 매주")
	assert.NotContains(t, resp.Message, "일회")
}

func TestSynthesizersSkipWhenNoTrigger(t *testing.T) {
	a := newTestAdapter(t)
	breakdown := makeResult(t, "breakdown_event_0", plan.BlockBreakdown, "채널별 이벤트 수",
		[]string{"sessionDefaultChannelGroup"}, []string{"eventCount"},
		[]any{"Organic Search", 900},
		[]any{"Direct", 100})

	resp := a.Respond(respondInput("채널별 클릭수 보여줘", breakdown))
	first := strings.Split(resp.Message, "\n")[0]
	assert.Contains(t, first, "기준 상위 결과는")
}
