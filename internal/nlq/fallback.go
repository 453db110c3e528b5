package nlq

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"nugget/internal/llm"
	"nugget/internal/shared/jsonx"
)

const fallbackTimeout = 6 * time.Second

const fallbackPrompt = `다음 분석 질문에서 의도와 지표, 측정기준을 추출하세요.

질문: %q

의도는 다음 중 하나입니다:
metric_single, metric_multi, breakdown, topn, comparison, trend, category_list

JSON 한 줄로만 답하세요:
{"intent": "<의도>", "metrics": ["지표명"], "dimensions": ["측정기준명"], "limit": 0}`

// fallbackResult is the LLM's answer to the intent-extraction prompt.
// Names are raw model output; the caller resolves them against the
// registry and drops anything that does not resolve.
type fallbackResult struct {
	Intent     Intent   `json:"intent"`
	Metrics    []string `json:"metrics"`
	Dimensions []string `json:"dimensions"`
	Limit      int      `json:"limit"`
}

func (i Intent) valid() bool {
	switch i {
	case IntentMetricSingle, IntentMetricMulti, IntentBreakdown,
		IntentTopN, IntentComparison, IntentTrend, IntentCategoryList:
		return true
	}
	return false
}

// fallbackExtract asks the LLM port to extract intent and names when rule
// matching came up short. A nil result with nil error means the model
// answered but said nothing usable.
func (e *Extractor) fallbackExtract(ctx context.Context, question string) (*fallbackResult, error) {
	ctx, cancel := context.WithTimeout(ctx, fallbackTimeout)
	defer cancel()

	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: fmt.Sprintf(fallbackPrompt, question)}},
		Temperature: 0,
		MaxTokens:   256,
	})
	if err != nil {
		return nil, err
	}

	fb, ok := parseFallback(resp.Content)
	if !ok {
		return nil, fmt.Errorf("unusable fallback output %q", resp.Content)
	}
	if len(fb.Metrics) == 0 && len(fb.Dimensions) == 0 && !fb.Intent.valid() {
		return nil, nil
	}
	return fb, nil
}

func parseFallback(content string) (*fallbackResult, bool) {
	raw := strings.TrimSpace(content)
	var fb fallbackResult
	if err := jsonx.Unmarshal([]byte(raw), &fb); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return nil, false
		}
		if err := jsonx.Unmarshal([]byte(repaired), &fb); err != nil {
			return nil, false
		}
	}
	fb.Intent = Intent(strings.TrimSpace(strings.ToLower(string(fb.Intent))))
	if fb.Limit < 0 {
		fb.Limit = 0
	}
	return &fb, true
}
