// Package di assembles the application graph from configuration. The REPL
// and the HTTP server both build a Container and drive the chat service it
// carries; fake mode swaps the live adapters for offline ones behind the
// same ports.
package di

import (
	"fmt"

	"nugget/internal/analytics"
	"nugget/internal/catalog"
	"nugget/internal/chat"
	"nugget/internal/config"
	"nugget/internal/convo"
	apperrors "nugget/internal/errors"
	"nugget/internal/exec"
	"nugget/internal/fileengine"
	"nugget/internal/llm"
	"nugget/internal/metrics"
	"nugget/internal/nlq"
	"nugget/internal/plan"
	"nugget/internal/respond"
	"nugget/internal/semindex"
	"nugget/internal/shared/logging"
	"nugget/internal/store"
)

// resolverCacheSize bounds the per-property metadata LRU.
const resolverCacheSize = 32

// Container holds the wired application dependencies.
type Container struct {
	Config    *config.Config
	Chat      *chat.Service
	Analytics analytics.Service
	LLM       llm.Client
	Store     convo.Store
	Metrics   *metrics.Pipeline
	Logger    logging.Logger
}

// BuildContainer wires the dependency graph for cfg. The config must have
// passed validation; fake mode needs no credentials and no network.
func BuildContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("di: nil config")
	}
	logging.SetGlobalLevel(logging.ParseLevel(cfg.Log.Level))
	logger := logging.NewComponentLogger("di")
	logger.Debug("building container mode=%s store=%s", cfg.Mode, cfg.Store.Backend)

	reg := catalog.Default()
	pipeline := metrics.DefaultPipeline()

	llmClient, err := buildLLM(cfg, pipeline)
	if err != nil {
		return nil, fmt.Errorf("build llm client: %w", err)
	}

	svc, err := buildAnalytics(cfg)
	if err != nil {
		return nil, fmt.Errorf("build analytics adapter: %w", err)
	}

	resolver, err := analytics.NewResolver(svc, resolverCacheSize, logging.NewComponentLogger("resolver"))
	if err != nil {
		return nil, fmt.Errorf("build resolver: %w", err)
	}

	st, err := buildStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("build store: %w", err)
	}

	index, err := semindex.New(reg, logging.NewComponentLogger("semindex"))
	if err != nil {
		return nil, fmt.Errorf("build semantic index: %w", err)
	}

	extractorOpts := []nlq.Option{nlq.WithSemanticIndex(index)}
	if llmClient != nil {
		extractorOpts = append(extractorOpts, nlq.WithLLMFallback(llmClient))
	}

	chatSvc := chat.NewService(chat.Deps{
		Extractor:  nlq.NewExtractor(reg, logging.NewComponentLogger("nlq"), extractorOpts...),
		Classifier: convo.NewClassifier(llmClient, cfg.LLM.Timeout, logging.NewComponentLogger("convo")),
		Planner:    plan.NewPlanner(reg, logging.NewComponentLogger("plan")),
		Executor: exec.NewExecutor(svc, resolver, logging.NewComponentLogger("exec"),
			exec.WithTimeout(cfg.Analytics.Timeout)),
		Adapter: respond.NewAdapter(reg, logging.NewComponentLogger("respond")),
		FileEngine: fileengine.NewEngine(llmClient, logging.NewComponentLogger("fileengine"),
			fileengine.WithInsightTimeout(cfg.LLM.Timeout)),
		Resolver:  resolver,
		Analytics: svc,
		Store:     st,
		Recorder:  pipeline,
		Logger:    logging.NewComponentLogger("chat"),
	}, chat.WithStoreTimeout(cfg.Store.Timeout))

	return &Container{
		Config:    cfg,
		Chat:      chatSvc,
		Analytics: svc,
		LLM:       llmClient,
		Store:     st,
		Metrics:   pipeline,
		Logger:    logger,
	}, nil
}

// buildLLM returns the completion client for the mode. Fake mode runs with
// no client at all: the classifier then answers new_topic and the file
// engine keeps to its deterministic summaries.
func buildLLM(cfg *config.Config, pipeline *metrics.Pipeline) (llm.Client, error) {
	if cfg.IsFake() {
		return nil, nil
	}

	client, err := llm.NewOpenAIClient(llm.Config{
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.Model,
		Timeout:    cfg.LLM.Timeout,
		MaxRetries: cfg.LLM.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	retryCfg := apperrors.DefaultRetryConfig()
	if cfg.LLM.MaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.LLM.MaxRetries
	}
	return metrics.InstrumentLLM(llm.WrapWithRetry(client, retryCfg), pipeline), nil
}

func buildAnalytics(cfg *config.Config) (analytics.Service, error) {
	if cfg.IsFake() {
		return analytics.NewFakeService(), nil
	}
	return analytics.NewHTTPService(analytics.HTTPConfig{
		BaseURL:    cfg.Analytics.BaseURL,
		Token:      cfg.Analytics.Token,
		Timeout:    cfg.Analytics.Timeout,
		QPS:        cfg.Analytics.QPS,
		Burst:      cfg.Analytics.Burst,
		MaxRetries: cfg.Analytics.MaxRetries,
	})
}

func buildStore(cfg *config.Config) (convo.Store, error) {
	if cfg.Store.Backend == "memory" {
		return store.NewMemoryStore(), nil
	}
	return store.NewFileStore(cfg.Store.Dir, logging.NewComponentLogger("store"))
}
