// Package metrics exposes the Prometheus collectors behind the chat
// pipeline's Recorder port and the LLM client decorator.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline holds the turn-level collectors. A nil Pipeline records nothing,
// so callers never guard their observation calls.
type Pipeline struct {
	turns     *prometheus.CounterVec
	stageTime *prometheus.HistogramVec
	blocks    *prometheus.CounterVec
	llmCalls  *prometheus.CounterVec
}

var (
	defaultPipelineOnce sync.Once
	sharedPipeline      *Pipeline
)

// DefaultPipeline returns the package-level instance registered with the
// global Prometheus registry. Collectors are created once so repeated
// wiring (tests, multiple servers in one process) cannot double-register.
func DefaultPipeline() *Pipeline {
	defaultPipelineOnce.Do(func() {
		sharedPipeline = MustNewPipeline(prometheus.DefaultRegisterer)
	})
	return sharedPipeline
}

// MustNewPipeline constructs the collectors against reg. Registration
// errors other than AlreadyRegistered panic, mirroring promauto, so wiring
// bugs surface at startup rather than as silent metric gaps.
func MustNewPipeline(reg prometheus.Registerer) *Pipeline {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	turns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nugget",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Completed turns by source and envelope status.",
		},
		[]string{"source", "status"},
	)
	stageTime := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nugget",
			Subsystem: "chat",
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	blocks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nugget",
			Subsystem: "chat",
			Name:      "blocks_total",
			Help:      "Plan blocks by execution outcome.",
		},
		[]string{"outcome"},
	)
	llmCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nugget",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "LLM completions by model and outcome.",
		},
		[]string{"model", "outcome"},
	)

	for _, collector := range []prometheus.Collector{turns, stageTime, blocks, llmCalls} {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch collector {
				case turns:
					turns = already.ExistingCollector.(*prometheus.CounterVec)
				case stageTime:
					stageTime = already.ExistingCollector.(*prometheus.HistogramVec)
				case blocks:
					blocks = already.ExistingCollector.(*prometheus.CounterVec)
				case llmCalls:
					llmCalls = already.ExistingCollector.(*prometheus.CounterVec)
				}
				continue
			}
			panic(err)
		}
	}

	return &Pipeline{turns: turns, stageTime: stageTime, blocks: blocks, llmCalls: llmCalls}
}

// TurnObserved counts one completed turn.
func (p *Pipeline) TurnObserved(source, status string) {
	if p == nil || p.turns == nil {
		return
	}
	p.turns.WithLabelValues(source, status).Inc()
}

// StageObserved records the wall time of one pipeline stage.
func (p *Pipeline) StageObserved(stage string, elapsed time.Duration) {
	if p == nil || p.stageTime == nil {
		return
	}
	p.stageTime.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// BlocksObserved counts the executed and dropped blocks of one turn.
func (p *Pipeline) BlocksObserved(executed, dropped int) {
	if p == nil || p.blocks == nil {
		return
	}
	if executed > 0 {
		p.blocks.WithLabelValues("executed").Add(float64(executed))
	}
	if dropped > 0 {
		p.blocks.WithLabelValues("dropped").Add(float64(dropped))
	}
}

// LLMObserved counts one completion call.
func (p *Pipeline) LLMObserved(model string, err error) {
	if p == nil || p.llmCalls == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.llmCalls.WithLabelValues(model, outcome).Inc()
}
