package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"nugget/internal/analytics"
	"nugget/internal/convo"
	"nugget/internal/exec"
	"nugget/internal/fileengine"
	"nugget/internal/nlq"
	"nugget/internal/plan"
	"nugget/internal/respond"
	"nugget/internal/shared/jsonx"
	"nugget/internal/shared/logging"
)

const (
	defaultStoreWait = 3 * time.Second

	// eventRegistryWindow bounds the lookback when refreshing a property's
	// event-name registry from the backend.
	eventRegistryWindow = 30
	eventRegistryLimit  = 50
)

// Pipeline stage names reported to the Recorder.
const (
	StageExtract  = "extract"
	StageClassify = "classify"
	StagePlan     = "plan"
	StageExecute  = "execute"
	StageRespond  = "respond"
	StageFile     = "file"
)

// Recorder receives pipeline telemetry. Implementations must be safe for
// concurrent use; a nil Recorder records nothing.
type Recorder interface {
	TurnObserved(source, status string)
	StageObserved(stage string, elapsed time.Duration)
	BlocksObserved(executed, dropped int)
}

// Request is one user turn. Source may be empty: the stored conversation
// context decides, falling back to the analytics source. Table carries the
// uploaded rows for file-source turns.
type Request struct {
	ConversationID string
	Question       string
	Source         convo.Source
	PropertyID     string
	Table          *exec.Table
}

// Deps are the collaborators of a Service. Extractor, Planner, Executor,
// Adapter and Store are required; the rest degrade gracefully when nil.
type Deps struct {
	Extractor  *nlq.Extractor
	Classifier *convo.Classifier
	Planner    *plan.Planner
	Executor   *exec.Executor
	Adapter    *respond.Adapter
	FileEngine *fileengine.Engine
	Resolver   *analytics.Resolver
	Analytics  analytics.Service
	Store      convo.Store
	Recorder   Recorder
	Logger     logging.Logger
}

// Option tunes a Service.
type Option func(*Service)

// WithStoreTimeout caps every store call issued during a turn.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeWait = d
		}
	}
}

// WithClock fixes the reference time used for event-registry refreshes.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service runs one turn end to end: extraction, relation classification,
// state policy, planning, execution and response shaping, persisting the
// anchor state when the turn succeeds.
type Service struct {
	extractor  *nlq.Extractor
	classifier *convo.Classifier
	planner    *plan.Planner
	executor   *exec.Executor
	adapter    *respond.Adapter
	files      *fileengine.Engine
	resolver   *analytics.Resolver
	analytics  analytics.Service
	store      convo.Store
	recorder   Recorder
	logger     logging.Logger
	storeWait  time.Duration
	now        func() time.Time
}

// NewService wires the turn pipeline.
func NewService(deps Deps, opts ...Option) *Service {
	s := &Service{
		extractor:  deps.Extractor,
		classifier: deps.Classifier,
		planner:    deps.Planner,
		executor:   deps.Executor,
		adapter:    deps.Adapter,
		files:      deps.FileEngine,
		resolver:   deps.Resolver,
		analytics:  deps.Analytics,
		store:      deps.Store,
		recorder:   deps.Recorder,
		logger:     logging.OrNop(deps.Logger),
		storeWait:  defaultStoreWait,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle answers one question. It never returns an error: every failure
// mode renders as an envelope with a user-facing message.
func (s *Service) Handle(ctx context.Context, req Request) *Envelope {
	started := time.Now()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		env := newEnvelope(StatusClarify, respond.MsgEmptyQuestion)
		s.observeTurn(string(req.Source), env.Status)
		return env
	}

	source, propertyID := s.resolveTurn(ctx, req)

	var env *Envelope
	if source == convo.SourceFile {
		env = s.handleFile(ctx, req, question)
	} else {
		env = s.handleAnalytics(ctx, req, question, propertyID)
	}

	s.observeTurn(string(source), env.Status)
	s.logger.Info("turn %s source=%s status=%s in %s",
		req.ConversationID, source, env.Status, time.Since(started).Round(time.Millisecond))
	return env
}

// resolveTurn picks the turn's source and account: the request wins, then
// the stored conversation context, then the analytics default. A table in
// the request implies the file source. The resolved context is persisted
// best-effort.
func (s *Service) resolveTurn(ctx context.Context, req Request) (convo.Source, string) {
	source := req.Source
	if source != convo.SourceAnalytics && source != convo.SourceFile {
		source = ""
	}
	if source == "" && req.Table != nil {
		source = convo.SourceFile
	}

	stored := s.loadContext(ctx, req.ConversationID)
	if source == "" {
		if stored != nil && (stored.ActiveSource == convo.SourceAnalytics || stored.ActiveSource == convo.SourceFile) {
			source = stored.ActiveSource
		} else {
			source = convo.SourceAnalytics
		}
	}
	propertyID := req.PropertyID
	if propertyID == "" && stored != nil {
		propertyID = stored.PropertyID
	}

	var next convo.Context
	if stored != nil {
		next = *stored
	}
	if stored == nil || next.ActiveSource != source || next.PropertyID != propertyID {
		next.ActiveSource = source
		next.PropertyID = propertyID
		s.saveContext(ctx, req.ConversationID, &next)
	}
	return source, propertyID
}

func (s *Service) handleAnalytics(ctx context.Context, req Request, question, propertyID string) *Envelope {
	last := s.loadState(ctx, req.ConversationID, convo.SourceAnalytics)

	t := time.Now()
	ext := s.extractor.Extract(ctx, question, last)
	s.observeStage(StageExtract, t)

	t = time.Now()
	relation := s.classifier.Classify(ctx, question, last, deltaOf(ext))
	s.observeStage(StageClassify, t)

	pruned := convo.ApplyRelation(relation, last)
	ext.Debug.Relation = string(relation)

	t = time.Now()
	built := s.planner.Build(plan.Input{
		Question:    question,
		PropertyID:  propertyID,
		Extraction:  ext,
		Last:        pruned,
		KnownEvents: s.knownEvents(ctx, propertyID),
		KnownNames:  s.knownNames(ctx, propertyID),
	})
	s.observeStage(StagePlan, t)

	if built.Status == plan.StatusClarify {
		env := newEnvelope(StatusClarify, built.ClarifyMessage)
		env.Account = propertyID
		env.Debug = &ext.Debug
		return env
	}

	t = time.Now()
	outcome := s.executor.Run(ctx, built)
	s.observeStage(StageExecute, t)
	s.observeBlocks(len(outcome.Results), len(outcome.Dropped))

	if outcome.Status == exec.StatusError {
		env := newEnvelope(StatusError, respond.MsgBackendFailure)
		env.Account = propertyID
		env.Period = periodOf(built)
		env.Debug = &ext.Debug
		return env
	}

	t = time.Now()
	resp := s.adapter.Respond(respond.Input{
		Question:   question,
		Extraction: ext,
		Plan:       built,
		Outcome:    outcome,
	})
	s.observeStage(StageRespond, t)

	env := newEnvelope(statusOf(outcome.Status), resp.Message)
	env.Account = propertyID
	env.Period = periodOf(built)
	env.Blocks = blockPayloads(resp.Blocks)
	env.PlotData = resp.PlotData
	if resp.RawData != nil {
		env.RawData = resp.RawData
	}
	if resp.Structured != nil {
		env.Structured = resp.Structured
	}
	if resp.Followups != nil {
		env.Followups = resp.Followups
	}
	env.Debug = &ext.Debug

	s.persistTurn(ctx, req.ConversationID, convo.SourceAnalytics, plan.AnchorState(built, ext), env)
	return env
}

func (s *Service) handleFile(ctx context.Context, req Request, question string) *Envelope {
	if s.files == nil {
		return newEnvelope(StatusError, respond.MsgFileFailure)
	}
	if req.Table == nil || len(req.Table.Columns) == 0 {
		return newEnvelope(StatusClarify, respond.MsgNoFileData)
	}

	last := s.loadState(ctx, req.ConversationID, convo.SourceFile)

	t := time.Now()
	res, err := s.files.Analyze(ctx, question, req.Table, last)
	s.observeStage(StageFile, t)
	if err != nil {
		s.logger.Warn("file analysis failed for %s: %v", req.ConversationID, err)
		return newEnvelope(StatusError, respond.MsgFileFailure)
	}

	env := newEnvelope(StatusOK, res.Message)
	env.Period = res.Period
	env.PlotData = res.PlotData
	if res.RawData != nil {
		env.RawData = res.RawData
	}
	if res.Followups != nil {
		env.Followups = res.Followups
	}

	state := &convo.State{LastAnalysisMeta: res.Meta}
	if res.Meta != nil {
		state.Intent = res.Meta.Intent
	}
	s.persistTurn(ctx, req.ConversationID, convo.SourceFile, state, env)
	return env
}

// persistTurn saves the anchor state and the rendered envelope.
// Store failures log and never fail the turn.
func (s *Service) persistTurn(ctx context.Context, conversationID string, source convo.Source, state *convo.State, env *Envelope) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.store.SaveSuccessState(sctx, conversationID, source, state); err != nil {
		s.logger.Warn("state save failed for %s/%s: %v", conversationID, source, err)
	}
	payload, err := jsonx.Marshal(env)
	if err != nil {
		s.logger.Warn("result marshal failed for %s/%s: %v", conversationID, source, err)
		return
	}
	if err := s.store.SaveLastResult(sctx, conversationID, source, payload); err != nil {
		s.logger.Warn("result save failed for %s/%s: %v", conversationID, source, err)
	}
}

func (s *Service) loadState(ctx context.Context, conversationID string, source convo.Source) *convo.State {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	state, err := s.store.LoadLastState(sctx, conversationID, source)
	if err != nil {
		if !errors.Is(err, convo.ErrNotFound) {
			s.logger.Warn("state load failed for %s/%s: %v", conversationID, source, err)
		}
		return nil
	}
	return state
}

func (s *Service) loadContext(ctx context.Context, conversationID string) *convo.Context {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	stored, err := s.store.LoadContext(sctx, conversationID)
	if err != nil {
		if !errors.Is(err, convo.ErrNotFound) {
			s.logger.Warn("context load failed for %s: %v", conversationID, err)
		}
		return nil
	}
	return stored
}

func (s *Service) saveContext(ctx context.Context, conversationID string, c *convo.Context) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.SaveContext(sctx, conversationID, c); err != nil {
		s.logger.Warn("context save failed for %s: %v", conversationID, err)
	}
}

// knownEvents returns the property's event-name registry, refreshing it
// from the backend on a registry miss.
func (s *Service) knownEvents(ctx context.Context, propertyID string) []string {
	if propertyID == "" {
		return nil
	}
	sctx, cancel := s.storeCtx(ctx)
	events, err := s.store.GetEvents(sctx, propertyID)
	cancel()
	if err == nil {
		return events
	}
	if !errors.Is(err, convo.ErrNotFound) {
		s.logger.Warn("event registry load failed for %s: %v", propertyID, err)
	}

	events = s.fetchEvents(ctx, propertyID)
	if len(events) == 0 {
		return nil
	}
	sctx, cancel = s.storeCtx(ctx)
	defer cancel()
	if err := s.store.SaveEvents(sctx, propertyID, events); err != nil {
		s.logger.Warn("event registry save failed for %s: %v", propertyID, err)
	}
	return events
}

// fetchEvents lists the event names the property reported inside the
// registry window, ordered by event count.
func (s *Service) fetchEvents(ctx context.Context, propertyID string) []string {
	if s.analytics == nil {
		return nil
	}
	end := s.now()
	start := end.AddDate(0, 0, -eventRegistryWindow)
	resp, err := s.analytics.RunReport(ctx, analytics.ReportRequest{
		PropertyID: propertyID,
		Dimensions: []string{"eventName"},
		Metrics:    []string{"eventCount"},
		DateRanges: []analytics.DateRange{{Start: start.Format("2006-01-02"), End: end.Format("2006-01-02")}},
		OrderBys:   []analytics.OrderBy{{Metric: "eventCount", Desc: true}},
		Limit:      eventRegistryLimit,
	})
	if err != nil {
		s.logger.Warn("event registry refresh failed for %s: %v", propertyID, err)
		return nil
	}
	names := make([]string, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		if len(row.DimensionValues) > 0 && row.DimensionValues[0] != "" {
			names = append(names, row.DimensionValues[0])
		}
	}
	return names
}

// knownNames is the set of live api_names custom parameters may bind to.
func (s *Service) knownNames(ctx context.Context, propertyID string) map[string]bool {
	if propertyID == "" {
		return nil
	}
	var (
		meta *analytics.Metadata
		err  error
	)
	switch {
	case s.resolver != nil:
		meta, err = s.resolver.Metadata(ctx, propertyID)
	case s.analytics != nil:
		meta, err = s.analytics.GetMetadata(ctx, propertyID)
	default:
		return nil
	}
	if err != nil {
		s.logger.Warn("metadata load failed for %s: %v", propertyID, err)
		return nil
	}
	names := make(map[string]bool, len(meta.Dimensions)+len(meta.Metrics))
	for _, d := range meta.Dimensions {
		names[d] = true
	}
	for _, m := range meta.Metrics {
		names[m] = true
	}
	return names
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeWait)
}

func (s *Service) observeTurn(source, status string) {
	if s.recorder != nil {
		s.recorder.TurnObserved(source, status)
	}
}

func (s *Service) observeStage(stage string, started time.Time) {
	if s.recorder != nil {
		s.recorder.StageObserved(stage, time.Since(started))
	}
}

func (s *Service) observeBlocks(executed, dropped int) {
	if s.recorder != nil {
		s.recorder.BlocksObserved(executed, dropped)
	}
}

func deltaOf(ext nlq.Extraction) convo.Delta {
	return convo.Delta{
		Metrics:    candidateNames(ext.Metrics),
		Dimensions: candidateNames(ext.Dimensions),
	}
}

func candidateNames(cands []nlq.Candidate) []string {
	if len(cands) == 0 {
		return nil
	}
	names := make([]string, 0, len(cands))
	for _, c := range cands {
		names = append(names, c.Name)
	}
	return names
}

func periodOf(built plan.Plan) string {
	if built.StartDate == "" || built.EndDate == "" {
		return ""
	}
	return built.StartDate + " ~ " + built.EndDate
}
