package convo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"nugget/internal/llm"
	"nugget/internal/shared/jsonx"
	"nugget/internal/shared/logging"
)

// Relation classifies how the current question relates to the last state.
type Relation string

const (
	RelationRefine          Relation = "refine"
	RelationNewTopic        Relation = "new_topic"
	RelationMetricSwitch    Relation = "metric_switch"
	RelationDimensionSwitch Relation = "dimension_switch"
)

// Delta summarizes what the extractor found in the current question, so
// the classifier can compare it against the previous turn.
type Delta struct {
	Metrics    []string
	Dimensions []string
}

// Classifier decides the relation of a question to the previous state via
// the LLM port. Every failure mode falls back to new_topic: downstream
// code must always be safe under that default.
type Classifier struct {
	client  llm.Client
	timeout time.Duration
	logger  logging.Logger
}

// NewClassifier builds a relation classifier. A nil client classifies
// everything as new_topic.
func NewClassifier(client llm.Client, timeout time.Duration, logger logging.Logger) *Classifier {
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	return &Classifier{client: client, timeout: timeout, logger: logging.OrNop(logger)}
}

const relationPrompt = `이전 분석 상태와 새 질문의 관계를 분류하세요.

이전 상태:
- 지표: %s
- 측정기준: %s

새 질문: %q
새 질문에서 감지된 지표: %s
새 질문에서 감지된 측정기준: %s

다음 중 하나를 고르세요.
- refine: 같은 주제를 더 좁히거나 조건만 바꾼 질문
- metric_switch: 측정기준은 유지하고 지표를 바꾼 질문
- dimension_switch: 지표는 유지하고 측정기준을 바꾼 질문
- new_topic: 이전과 무관한 새 주제

JSON 한 줄로만 답하세요: {"relation": "<refine|metric_switch|dimension_switch|new_topic>"}`

// Classify returns the relation between question and last state.
// last == nil is trivially a new topic and skips the LLM call.
func (c *Classifier) Classify(ctx context.Context, question string, last *State, delta Delta) Relation {
	if last == nil {
		return RelationNewTopic
	}
	if c.client == nil {
		return RelationNewTopic
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := fmt.Sprintf(relationPrompt,
		joinOrNone(last.Metrics), joinOrNone(last.Dimensions),
		question,
		joinOrNone(delta.Metrics), joinOrNone(delta.Dimensions))

	resp, err := c.client.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0,
		MaxTokens:   64,
	})
	if err != nil {
		c.logger.Warn("relation classify failed, defaulting to new_topic: %v", err)
		return RelationNewTopic
	}

	relation, ok := parseRelation(resp.Content)
	if !ok {
		c.logger.Warn("relation classify returned unusable output %q, defaulting to new_topic", resp.Content)
		return RelationNewTopic
	}
	return relation
}

// parseRelation extracts the relation enum from model output, repairing
// malformed JSON first. Unknown values are rejected.
func parseRelation(content string) (Relation, bool) {
	var payload struct {
		Relation string `json:"relation"`
	}
	raw := strings.TrimSpace(content)
	if err := jsonx.Unmarshal([]byte(raw), &payload); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return "", false
		}
		if err := jsonx.Unmarshal([]byte(repaired), &payload); err != nil {
			return "", false
		}
	}

	switch Relation(strings.TrimSpace(strings.ToLower(payload.Relation))) {
	case RelationRefine:
		return RelationRefine, true
	case RelationNewTopic:
		return RelationNewTopic, true
	case RelationMetricSwitch:
		return RelationMetricSwitch, true
	case RelationDimensionSwitch:
		return RelationDimensionSwitch, true
	default:
		return "", false
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(없음)"
	}
	return strings.Join(items, ", ")
}
