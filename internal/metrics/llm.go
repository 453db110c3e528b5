package metrics

import (
	"context"

	"nugget/internal/llm"
)

// instrumentedClient counts completions flowing through an llm.Client.
type instrumentedClient struct {
	inner    llm.Client
	pipeline *Pipeline
}

// InstrumentLLM wraps client so every completion is counted on pipeline.
// A nil client or pipeline passes through unchanged.
func InstrumentLLM(client llm.Client, pipeline *Pipeline) llm.Client {
	if client == nil || pipeline == nil {
		return client
	}
	return &instrumentedClient{inner: client, pipeline: pipeline}
}

func (c *instrumentedClient) Model() string { return c.inner.Model() }

func (c *instrumentedClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := c.inner.Complete(ctx, req)
	c.pipeline.LLMObserved(c.inner.Model(), err)
	return resp, err
}
