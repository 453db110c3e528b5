package di

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nugget/internal/analytics"
	"nugget/internal/chat"
	"nugget/internal/config"
	"nugget/internal/store"
)

func fakeConfig() *config.Config {
	return &config.Config{
		Mode:     config.ModeFake,
		Property: "properties/123",
		Server:   config.Server{Port: 8080, CORSOrigins: []string{"*"}},
		LLM:      config.LLM{Timeout: time.Second},
		Analytics: config.Analytics{
			Timeout: time.Second,
		},
		Store: config.Store{Backend: "memory", Timeout: time.Second},
		Log:   config.Log{Level: "info"},
	}
}

func TestBuildContainerFakeMode(t *testing.T) {
	c, err := BuildContainer(fakeConfig())
	require.NoError(t, err)

	require.NotNil(t, c.Chat)
	assert.Nil(t, c.LLM)
	assert.NotNil(t, c.Metrics)

	_, ok := c.Analytics.(*analytics.FakeService)
	assert.True(t, ok, "fake mode should wire the fake analytics adapter")
	_, ok = c.Store.(*store.MemoryStore)
	assert.True(t, ok)
}

func TestBuildContainerAnswersOffline(t *testing.T) {
	c, err := BuildContainer(fakeConfig())
	require.NoError(t, err)

	env := c.Chat.Handle(context.Background(), chat.Request{
		ConversationID: "smoke",
		Question:       "총 매출 알려줘",
		PropertyID:     "properties/123",
	})
	require.Equal(t, chat.StatusOK, env.Status)
	assert.Contains(t, env.Message, "구매 수익")
}

func TestBuildContainerFileStore(t *testing.T) {
	cfg := fakeConfig()
	cfg.Store.Backend = "file"
	cfg.Store.Dir = t.TempDir()

	c, err := BuildContainer(cfg)
	require.NoError(t, err)

	_, ok := c.Store.(*store.FileStore)
	assert.True(t, ok)
}

func TestBuildContainerLiveMode(t *testing.T) {
	cfg := fakeConfig()
	cfg.Mode = config.ModeLive
	cfg.Analytics.BaseURL = "https://analytics.example.com"
	cfg.Analytics.Token = "token"
	cfg.LLM.APIKey = "key"
	cfg.LLM.BaseURL = "https://llm.example.com/v1"
	cfg.LLM.Model = "test-model"
	cfg.LLM.MaxRetries = 1

	c, err := BuildContainer(cfg)
	require.NoError(t, err)

	_, ok := c.Analytics.(*analytics.HTTPService)
	assert.True(t, ok, "live mode should wire the HTTP analytics adapter")
	require.NotNil(t, c.LLM)
	assert.Equal(t, "test-model", c.LLM.Model())
}

func TestBuildContainerNilConfig(t *testing.T) {
	_, err := BuildContainer(nil)
	require.Error(t, err)
}
