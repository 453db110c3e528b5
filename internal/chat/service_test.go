package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nugget/internal/analytics"
	"nugget/internal/catalog"
	"nugget/internal/convo"
	"nugget/internal/exec"
	"nugget/internal/fileengine"
	"nugget/internal/llm"
	"nugget/internal/nlq"
	"nugget/internal/plan"
	"nugget/internal/respond"
	"nugget/internal/shared/jsonx"
	"nugget/internal/shared/logging"
	"nugget/internal/store"
)

// 2026-02-18 is a Wednesday; 지난주 is 02-09..02-15.
var chatTestNow = time.Date(2026, 2, 18, 10, 30, 0, 0, time.UTC)

const testProperty = "properties/123"

type recorderStub struct {
	mu     sync.Mutex
	turns  []string
	stages map[string]int
	blocks [][2]int
}

func (r *recorderStub) TurnObserved(source, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, source+"/"+status)
}

func (r *recorderStub) StageObserved(stage string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stages == nil {
		r.stages = make(map[string]int)
	}
	r.stages[stage]++
}

func (r *recorderStub) BlocksObserved(executed, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks = append(r.blocks, [2]int{executed, dropped})
}

type fixture struct {
	svc      *Service
	fake     *analytics.FakeService
	store    *store.MemoryStore
	mock     *llm.Mock
	recorder *recorderStub
}

// newFixture wires a full pipeline over the fake backend and the in-memory
// store. LLM replies are scripted per test.
func newFixture(t *testing.T, replies ...string) *fixture {
	t.Helper()
	reg := catalog.Default()
	logger := logging.Nop()
	clock := func() time.Time { return chatTestNow }

	fake := analytics.NewFakeService()
	resolver, err := analytics.NewResolver(fake, 8, logger)
	require.NoError(t, err)

	mock := llm.NewMock(replies...)
	mem := store.NewMemoryStore()
	rec := &recorderStub{}

	svc := NewService(Deps{
		Extractor:  nlq.NewExtractor(reg, logger, nlq.WithClock(clock)),
		Classifier: convo.NewClassifier(mock, time.Second, logger),
		Planner:    plan.NewPlanner(reg, logger, plan.WithClock(clock)),
		Executor:   exec.NewExecutor(fake, resolver, logger),
		Adapter:    respond.NewAdapter(reg, logger),
		FileEngine: fileengine.NewEngine(mock, logger),
		Resolver:   resolver,
		Analytics:  fake,
		Store:      mem,
		Recorder:   rec,
		Logger:     logger,
	}, WithClock(clock))

	return &fixture{svc: svc, fake: fake, store: mem, mock: mock, recorder: rec}
}

func handle(t *testing.T, f *fixture, req Request) *Envelope {
	t.Helper()
	env := f.svc.Handle(context.Background(), req)
	require.NotNil(t, env)
	return env
}

func analyticsRequest(conv, question string) Request {
	return Request{
		ConversationID: conv,
		Question:       question,
		Source:         convo.SourceAnalytics,
		PropertyID:     testProperty,
	}
}

func donationTable() *exec.Table {
	return exec.FromRecords([]map[string]any{
		{"date": "2026-02-01", "donation_type": "정기", "amount": 10000, "user_id": "u1"},
		{"date": "2026-02-01", "donation_type": "일시", "amount": 5000, "user_id": "u2"},
		{"date": "2026-02-02", "donation_type": "정기", "amount": 10000, "user_id": "u1"},
		{"date": "2026-02-02", "donation_type": "정기", "amount": 15000, "user_id": "u3"},
		{"date": "2026-02-03", "donation_type": "일시", "amount": 7000, "user_id": "u4"},
	})
}

func TestHandleTotalRevenue(t *testing.T) {
	f := newFixture(t)

	env := handle(t, f, analyticsRequest("conv-total", "총 매출 알려줘"))

	assert.Equal(t, StatusOK, env.Status)
	assert.Contains(t, env.Message, "구매 수익은")
	assert.Contains(t, env.Message, "원입니다")
	assert.Equal(t, testProperty, env.Account)

	require.Len(t, env.Blocks, 1)
	block := env.Blocks[0]
	assert.Equal(t, plan.BlockTotal, block.Type)
	assert.Equal(t, []string{"purchaseRevenue"}, block.Metrics)
	assert.Empty(t, block.Dimensions)

	state, err := f.store.LoadLastState(context.Background(), "conv-total", convo.SourceAnalytics)
	require.NoError(t, err)
	assert.Equal(t, []string{"purchaseRevenue"}, state.Metrics)
	assert.NotEmpty(t, state.StartDate)
	assert.NotEmpty(t, state.EndDate)

	raw, err := f.store.LoadLastResult(context.Background(), "conv-total", convo.SourceAnalytics)
	require.NoError(t, err)
	var saved struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	require.NoError(t, jsonx.Unmarshal(raw, &saved))
	assert.Equal(t, StatusOK, saved.Status)
	assert.Equal(t, env.Message, saved.Message)
}

func TestHandleTrendLastWeek(t *testing.T) {
	f := newFixture(t)

	env := handle(t, f, analyticsRequest("conv-trend", "지난주 사용자 추이 알려줘"))

	assert.Equal(t, StatusOK, env.Status)
	assert.Equal(t, "2026-02-09 ~ 2026-02-15", env.Period)

	require.Len(t, env.Blocks, 1)
	block := env.Blocks[0]
	assert.Equal(t, plan.BlockTrend, block.Type)
	assert.Equal(t, []string{"date"}, block.Dimensions)
	assert.Equal(t, []string{"activeUsers"}, block.Metrics)

	chart := env.PlotData.Chart
	require.NotNil(t, chart)
	assert.Equal(t, "line", chart.Type)
	require.Len(t, chart.Labels, 7)
	assert.Equal(t, "2026-02-09", chart.Labels[0])
	assert.Equal(t, "2026-02-15", chart.Labels[6])
	assert.True(t, sort.StringsAreSorted(chart.Labels))
	require.Len(t, chart.Series, 1)
	assert.Len(t, chart.Series[0].Data, len(chart.Labels))
}

func TestHandleEventFilteredBreakdown(t *testing.T) {
	f := newFixture(t)

	env := handle(t, f, analyticsRequest("conv-filter", "donation_click의 donation_name 보여줘"))

	assert.Equal(t, StatusOK, env.Status)
	require.Len(t, env.Blocks, 1)
	block := env.Blocks[0]
	assert.Equal(t, []string{"customEvent:donation_name"}, block.Dimensions)
	assert.Equal(t, []string{"eventCount"}, block.Metrics)

	// The wire request carries the event filter.
	var filtered *analytics.ReportRequest
	for _, call := range f.fake.Calls() {
		if call.DimensionFilter != nil {
			c := call
			filtered = &c
			break
		}
	}
	require.NotNil(t, filtered)
	assert.Equal(t, "eventName", filtered.DimensionFilter.Field)
	assert.Equal(t, []string{"donation_click"}, filtered.DimensionFilter.Values)

	// The turn refreshed and persisted the event registry.
	events, err := f.store.GetEvents(context.Background(), testProperty)
	require.NoError(t, err)
	assert.Contains(t, events, "donation_click")
}

func TestHandleRelativeShift(t *testing.T) {
	f := newFixture(t, `{"relation": "refine"}`)

	seed := &convo.State{
		Metrics:   []string{"activeUsers"},
		StartDate: "2026-02-09",
		EndDate:   "2026-02-15",
		Intent:    "trend",
	}
	require.NoError(t, f.store.SaveSuccessState(context.Background(), "conv-shift", convo.SourceAnalytics, seed))

	env := handle(t, f, analyticsRequest("conv-shift", "그 전주 사용자는?"))

	assert.Equal(t, StatusOK, env.Status)
	assert.Equal(t, "2026-02-02 ~ 2026-02-08", env.Period)
	require.NotNil(t, env.Debug)
	assert.Equal(t, "refine", env.Debug.Relation)
	assert.Equal(t, 1, f.mock.CallCount())

	state, err := f.store.LoadLastState(context.Background(), "conv-shift", convo.SourceAnalytics)
	require.NoError(t, err)
	assert.Equal(t, "comparison", state.Intent)
	assert.Equal(t, "2026-02-02", state.StartDate)
	assert.Equal(t, "2026-02-08", state.EndDate)
}

func TestHandleMultiScopeSplit(t *testing.T) {
	f := newFixture(t)

	env := handle(t, f, analyticsRequest("conv-split", "총 매출과 상품별 매출 알려줘"))

	assert.Equal(t, StatusOK, env.Status)
	require.Len(t, env.Blocks, 2)
	assert.Equal(t, plan.BlockTotal, env.Blocks[0].Type)
	assert.Equal(t, []string{"purchaseRevenue"}, env.Blocks[0].Metrics)
	assert.Equal(t, plan.BlockBreakdown, env.Blocks[1].Type)
	assert.Equal(t, []string{"itemName"}, env.Blocks[1].Dimensions)
	assert.Equal(t, []string{"itemRevenue"}, env.Blocks[1].Metrics)

	assert.Contains(t, env.Message, "구매 수익은")
	assert.Contains(t, env.Message, "기준 상위 결과는")
	assert.Contains(t, env.Message, "1. ")
	assert.Contains(t, env.Structured, "구매 수익")
}

func TestHandleClarifyOnNoMatch(t *testing.T) {
	f := newFixture(t)

	env := handle(t, f, analyticsRequest("conv-clarify", "xyz zzz"))

	assert.Equal(t, StatusClarify, env.Status)
	assert.Contains(t, env.Message, "지표")
	assert.Empty(t, env.Blocks)
	require.NotNil(t, env.Debug)

	// Clarify turns never persist state.
	_, err := f.store.LoadLastState(context.Background(), "conv-clarify", convo.SourceAnalytics)
	assert.ErrorIs(t, err, convo.ErrNotFound)

	// Collection fields serialize as empty, never null.
	raw, err := jsonx.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"blocks":[]`)
	assert.Contains(t, string(raw), `"plot_data":[]`)
	assert.Contains(t, string(raw), `"raw_data":[]`)
	assert.Contains(t, string(raw), `"followup_suggestions":[]`)
}

func TestHandleEmptyQuestion(t *testing.T) {
	f := newFixture(t)

	env := handle(t, f, Request{ConversationID: "conv-empty", Question: "   "})

	assert.Equal(t, StatusClarify, env.Status)
	assert.Equal(t, respond.MsgEmptyQuestion, env.Message)
	assert.Empty(t, f.fake.Calls())
}

func TestHandleBackendFailure(t *testing.T) {
	f := newFixture(t)
	f.fake.FailOn("purchaseRevenue", fmt.Errorf("backend unavailable"))

	env := handle(t, f, analyticsRequest("conv-fail", "총 매출 알려줘"))

	assert.Equal(t, StatusError, env.Status)
	assert.Equal(t, respond.MsgBackendFailure, env.Message)
	assert.Empty(t, env.Blocks)

	_, err := f.store.LoadLastState(context.Background(), "conv-fail", convo.SourceAnalytics)
	assert.ErrorIs(t, err, convo.ErrNotFound)
}

func TestHandlePartialFailure(t *testing.T) {
	f := newFixture(t)
	f.fake.FailOn("itemRevenue", fmt.Errorf("quota exceeded"))

	env := handle(t, f, analyticsRequest("conv-partial", "총 매출과 상품별 매출 알려줘"))

	assert.Equal(t, StatusPartialError, env.Status)
	require.Len(t, env.Blocks, 1)
	assert.Equal(t, plan.BlockTotal, env.Blocks[0].Type)
	assert.Contains(t, env.Message, "일부 데이터는 불러오지 못해 제외했습니다.")

	// Partial turns still anchor the state.
	state, err := f.store.LoadLastState(context.Background(), "conv-partial", convo.SourceAnalytics)
	require.NoError(t, err)
	assert.Contains(t, state.Metrics, "purchaseRevenue")
}

func TestHandleFileTurn(t *testing.T) {
	f := newFixture(t)

	env := handle(t, f, Request{
		ConversationID: "conv-file",
		Question:       "donation_type별 amount 합계 알려줘",
		Source:         convo.SourceFile,
		Table:          donationTable(),
	})

	assert.Equal(t, StatusOK, env.Status)
	assert.Contains(t, env.Message, "'donation_type' 기준 'amount' 합계")
	assert.Empty(t, env.Account)

	state, err := f.store.LoadLastState(context.Background(), "conv-file", convo.SourceFile)
	require.NoError(t, err)
	require.NotNil(t, state.LastAnalysisMeta)
	assert.Equal(t, "groupby", state.LastAnalysisMeta.Intent)

	// File turns never touch the analytics backend.
	assert.Empty(t, f.fake.Calls())
}

func TestHandleFilePagination(t *testing.T) {
	f := newFixture(t)

	req := Request{
		ConversationID: "conv-page",
		Question:       "처음 2행 보여줘",
		Source:         convo.SourceFile,
		Table:          donationTable(),
	}
	env := handle(t, f, req)
	assert.Equal(t, StatusOK, env.Status)
	assert.Contains(t, env.Message, "전체 5행 중 1~2행입니다.")

	req.Question = "다음"
	env = handle(t, f, req)
	assert.Contains(t, env.Message, "전체 5행 중 3~4행입니다.")
}

func TestHandleFileWithoutTable(t *testing.T) {
	f := newFixture(t)

	env := handle(t, f, Request{
		ConversationID: "conv-nofile",
		Question:       "데이터 보여줘",
		Source:         convo.SourceFile,
	})

	assert.Equal(t, StatusClarify, env.Status)
	assert.Equal(t, respond.MsgNoFileData, env.Message)
}

func TestHandleInfersFileSourceFromTable(t *testing.T) {
	f := newFixture(t)

	env := handle(t, f, Request{
		ConversationID: "conv-infer",
		Question:       "처음 2행 보여줘",
		Table:          donationTable(),
	})
	assert.Equal(t, StatusOK, env.Status)
	assert.Contains(t, env.Message, "전체 5행")

	// The source sticks: the next bare turn stays on the file branch.
	env = handle(t, f, Request{ConversationID: "conv-infer", Question: "다음"})
	assert.Equal(t, StatusClarify, env.Status)
	assert.Equal(t, respond.MsgNoFileData, env.Message)
}

func TestHandleRemembersProperty(t *testing.T) {
	f := newFixture(t)

	env := handle(t, f, analyticsRequest("conv-prop", "총 매출 알려줘"))
	assert.Equal(t, testProperty, env.Account)

	env = handle(t, f, Request{ConversationID: "conv-prop", Question: "세션수는?", Source: convo.SourceAnalytics})
	assert.Equal(t, testProperty, env.Account)
}

func TestHandleRefreshesEventRegistryOnce(t *testing.T) {
	f := newFixture(t)

	handle(t, f, analyticsRequest("conv-reg", "총 매출 알려줘"))
	handle(t, f, analyticsRequest("conv-reg", "총 매출 알려줘"))

	registryCalls := 0
	for _, call := range f.fake.Calls() {
		if len(call.Dimensions) == 1 && call.Dimensions[0] == "eventName" && call.Limit == eventRegistryLimit {
			registryCalls++
		}
	}
	assert.Equal(t, 1, registryCalls)
}

func TestHandleReportsTelemetry(t *testing.T) {
	f := newFixture(t)

	handle(t, f, analyticsRequest("conv-rec", "총 매출 알려줘"))

	rec := f.recorder
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"ga4/ok"}, rec.turns)
	for _, stage := range []string{StageExtract, StageClassify, StagePlan, StageExecute, StageRespond} {
		assert.Equal(t, 1, rec.stages[stage], "stage %s", stage)
	}
	require.Len(t, rec.blocks, 1)
	assert.Equal(t, [2]int{1, 0}, rec.blocks[0])
}
