package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devclip/internal/catalog"
	"devclip/internal/models"
	"devclip/internal/utils"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return p
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{})
	assert.Error(t, err)
}

func TestOpenAIProvider_Chat(t *testing.T) {
	var got openAIChatRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"it adds"}}],"usage":{"prompt_tokens":20,"completion_tokens":22,"total_tokens":42}}`))
	})

	resp, err := p.Chat(context.Background(), ChatRequest{
		Model:     "gpt-4o-mini",
		MaxTokens: 100,
		Messages:  []Message{{Role: RoleUser, Content: "a+b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "it adds", resp.Content)
	assert.Equal(t, 1, resp.Choices)
	assert.Equal(t, 42, resp.TotalTokens)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 100, got.MaxTokens)
	assert.Len(t, got.Messages, 1)
}

func TestOpenAIProvider_ChatTokensFallback(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[],"usage":{"prompt_tokens":5,"completion_tokens":0}}`))
	})

	resp, err := p.Chat(context.Background(), ChatRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Choices)
	assert.Empty(t, resp.Content)
	assert.Equal(t, 5, resp.TotalTokens)
}

func TestOpenAIProvider_ChatStatusError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	})

	_, err := p.Chat(context.Background(), ChatRequest{Model: "m"})
	require.Error(t, err)

	var statusErr *utils.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "rate limited")
}

func TestOpenAIProvider_ChatInvalidBody(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := p.Chat(context.Background(), ChatRequest{Model: "m"})
	assert.ErrorContains(t, err, "failed to decode response")
}

type stubProvider struct {
	resp    *ChatResponse
	err     error
	lastReq ChatRequest
	calls   int
	block   bool
}

func (s *stubProvider) Type() string { return "stub" }

func (s *stubProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	s.calls++
	s.lastReq = req
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.resp, s.err
}

func (s *stubProvider) Close() error { return nil }

func testModels() map[models.PlanTier]string {
	return map[models.PlanTier]string{
		models.TierFree:       "gpt-4o-mini",
		models.TierPro:        "gpt-4o",
		models.TierEnterprise: "gpt-4.1",
	}
}

func mustAssistant(t *testing.T, provider Provider, config AssistantConfig) *Assistant {
	t.Helper()
	a, err := NewAssistant(provider, config)
	require.NoError(t, err)
	return a
}

func TestNewAssistant_RequiresModels(t *testing.T) {
	tests := []struct {
		name   string
		models map[models.PlanTier]string
	}{
		{"no models", nil},
		{"no free model", map[models.PlanTier]string{models.TierPro: "gpt-4o"}},
		{"empty model", map[models.PlanTier]string{models.TierFree: "gpt-4o-mini", models.TierPro: ""}},
		{"unknown tier", map[models.PlanTier]string{models.TierFree: "gpt-4o-mini", "platinum": "gpt-5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAssistant(&stubProvider{}, AssistantConfig{Models: tt.models})
			assert.Error(t, err)
		})
	}
}

func TestAssistant_Invoke(t *testing.T) {
	tests := []struct {
		name  string
		tier  models.PlanTier
		op    string
		model string
	}{
		{"free explain", models.TierFree, catalog.OpExplain, "gpt-4o-mini"},
		{"pro summarize", models.TierPro, catalog.OpSummarize, "gpt-4o"},
		{"enterprise refactor", models.TierEnterprise, catalog.OpRefactor, "gpt-4.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubProvider{resp: &ChatResponse{Content: "done", Choices: 1, TotalTokens: 42}}
			a := mustAssistant(t, stub, AssistantConfig{Models: testModels(), MaxTokens: 500})

			c, err := a.Invoke(context.Background(), "x := 1", tt.op, tt.tier)
			require.NoError(t, err)
			assert.Equal(t, "done", c.Text)
			assert.Equal(t, 42, c.TotalTokens)

			assert.Equal(t, tt.model, stub.lastReq.Model)
			assert.Equal(t, 500, stub.lastReq.MaxTokens)
			require.Len(t, stub.lastReq.Messages, 2)
			assert.Equal(t, RoleSystem, stub.lastReq.Messages[0].Role)
			assert.Equal(t, systemPrompts[tt.op], stub.lastReq.Messages[0].Content)
			assert.Equal(t, Message{Role: RoleUser, Content: "x := 1"}, stub.lastReq.Messages[1])
		})
	}
}

func TestAssistant_MaxTokensCapped(t *testing.T) {
	stub := &stubProvider{resp: &ChatResponse{Choices: 1}}
	a := mustAssistant(t, stub, AssistantConfig{Models: testModels(), MaxTokens: 5000})

	_, err := a.Invoke(context.Background(), "text", catalog.OpExplain, models.TierFree)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxTokens, stub.lastReq.MaxTokens)
}

func TestAssistant_ZeroChoices(t *testing.T) {
	stub := &stubProvider{resp: &ChatResponse{Choices: 0, TotalTokens: 3}}
	a := mustAssistant(t, stub, AssistantConfig{Models: testModels()})

	c, err := a.Invoke(context.Background(), "text", catalog.OpSummarize, models.TierPro)
	require.NoError(t, err)
	assert.Equal(t, NoCompletionText, c.Text)
	assert.Equal(t, 3, c.TotalTokens)
}

func TestAssistant_UnknownOperation(t *testing.T) {
	stub := &stubProvider{}
	a := mustAssistant(t, stub, AssistantConfig{Models: testModels()})

	_, err := a.Invoke(context.Background(), "text", catalog.OpJSON, models.TierFree)
	assert.ErrorIs(t, err, ErrNoPrompt)
	assert.Zero(t, stub.calls)
}

func TestAssistant_ProviderErrorNotRetried(t *testing.T) {
	stub := &stubProvider{err: &utils.StatusError{StatusCode: http.StatusBadGateway}}
	a := mustAssistant(t, stub, AssistantConfig{Models: testModels()})

	_, err := a.Invoke(context.Background(), "text", catalog.OpExplain, models.TierFree)
	require.Error(t, err)

	var statusErr *utils.StatusError
	assert.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 1, stub.calls)
}

func TestAssistant_Timeout(t *testing.T) {
	stub := &stubProvider{block: true}
	a := mustAssistant(t, stub, AssistantConfig{Models: testModels(), Timeout: 20 * time.Millisecond})

	_, err := a.Invoke(context.Background(), "text", catalog.OpExplain, models.TierFree)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAssistant_ModelFallback(t *testing.T) {
	a := mustAssistant(t, &stubProvider{}, AssistantConfig{Models: map[models.PlanTier]string{models.TierFree: "small"}})
	assert.Equal(t, "small", a.ModelFor(models.TierEnterprise))
}
