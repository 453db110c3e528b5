package fileengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nugget/internal/convo"
	"nugget/internal/exec"
)

const donationsCSV = `date,donation_type,amount,user_id,is_admin
2026-02-01,정기,10000,u1,n
2026-02-01,일시,5000,u2,n
2026-02-02,정기,10000,u1,y
2026-02-02,정기,15000,u3,n
2026-02-03,일시,7000,u4,n
`

func donationsTable(t *testing.T) *exec.Table {
	t.Helper()
	return csvTable(t, donationsCSV)
}

func TestDetectIntentLadder(t *testing.T) {
	table := donationsTable(t)
	cases := []struct {
		question string
		want     Intent
	}{
		{"이 파일로 뭘 물어보면 돼?", IntentGuidance},
		{"일별 amount 추이 보여줘", IntentTrend},
		{"정기와 일시 비교해줘", IntentCompare},
		{"컬럼 구조 알려줘", IntentSchema},
		{"어떤 컬럼이 있어?", IntentColumnsSummary},
		{"샘플 보여줘", IntentPreview},
		{"처음 10개 보여줘", IntentPreview},
		{"데이터 개요 알려줘", IntentOverview},
		{"donation_type에는 어떤 값이 있어?", IntentColumnProbe},
		{"컬럼 몇 개야?", IntentColumnCount},
		{"다음 500개 보여줘", IntentPreviewMore},
		{"amount 컬럼 설명해줘", IntentExplain},
		{"사용자 몇 명이야?", IntentCountUsers},
		{"관리자는 몇 명이야?", IntentCountAdmin},
		{"donation_type별 amount 합계 알려줘", IntentGroupBy},
		{"amount 평균은 얼마야?", IntentAggregate},
		{"donation_type 비중 알려줘", IntentDistribution},
		{"이 데이터에서 특이한 패턴 찾아줘", IntentInsight},
	}
	for _, tc := range cases {
		got := detectIntent(tc.question, table, nil)
		assert.Equal(t, tc.want, got.intent, "question %q", tc.question)
	}
}

func TestDetectIntentResolvesTargetColumn(t *testing.T) {
	table := donationsTable(t)

	det := detectIntent("donation_type에는 어떤 값이 있어?", table, nil)
	assert.Equal(t, "donation_type", det.column)

	det = detectIntent("amount 컬럼 설명해줘", table, nil)
	assert.Equal(t, "amount", det.column)
}

func TestDetectIntentParsesExplicitPageStep(t *testing.T) {
	table := donationsTable(t)

	det := detectIntent("다음 500개 보여줘", table, nil)
	require.Equal(t, IntentPreviewMore, det.intent)
	assert.Equal(t, 1, det.step)
	assert.Equal(t, 500, det.limit)

	det = detectIntent("이전 100개 줘", table, nil)
	require.Equal(t, IntentPreviewMore, det.intent)
	assert.Equal(t, -1, det.step)
	assert.Equal(t, 100, det.limit)
}

func TestDetectIntentBarePagingNeedsContext(t *testing.T) {
	table := donationsTable(t)

	det := detectIntent("다음", table, nil)
	assert.Equal(t, IntentInsight, det.intent, "bare 다음 without paging history is not pagination")

	last := &convo.AnalysisMeta{Intent: string(IntentPreview), PageOffset: 0, PageLimit: 2}
	det = detectIntent("다음", table, last)
	require.Equal(t, IntentPreviewMore, det.intent)
	assert.Equal(t, 1, det.step)

	det = detectIntent("이전 보여줘", table, last)
	require.Equal(t, IntentPreviewMore, det.intent)
	assert.Equal(t, -1, det.step)
}

func TestDetectIntentPreviewParsesRowLimit(t *testing.T) {
	det := detectIntent("처음 10개 보여줘", donationsTable(t), nil)
	require.Equal(t, IntentPreview, det.intent)
	assert.Equal(t, 10, det.limit)
}

func TestResolveColumnPrefersLongestName(t *testing.T) {
	table := exec.NewTable("유형", "후원유형")
	assert.Equal(t, "후원유형", resolveColumn("후원유형별로 묶어줘", table))
	assert.Equal(t, "유형", resolveColumn("유형이 궁금해", table))
	assert.Equal(t, "", resolveColumn("아무 컬럼도 없음", table))
}
