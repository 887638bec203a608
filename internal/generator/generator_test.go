package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region template-tests

func TestBuildPrompt(t *testing.T) {
	got := BuildPrompt("tell me stuff", 0.4321, "ANALYSIS: \n")
	assert.True(t, strings.HasPrefix(got, "You are a prompt engineering expert."))
	assert.Contains(t, got, "Current Prompt:\ntell me stuff\n")
	assert.Contains(t, got, "Current Quality Score: 0.43\n")
	assert.Contains(t, got, "Feedback:\nANALYSIS: \n")
	assert.True(t, strings.HasSuffix(got, "Return ONLY the improved prompt, no explanations or preamble."))
}

// #endregion template-tests

// #region static-tests

func TestStatic_RepliesInOrderThenRepeats(t *testing.T) {
	s := NewStatic("first", "  second \n")
	ctx := context.Background()

	for _, want := range []string{"first", "second", "second"} {
		got, err := s.Rewrite(ctx, "p", 0.1, "f")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 3, s.CallCount())
	assert.Equal(t, Call{Prompt: "p", Score: 0.1, Feedback: "f"}, s.Calls[0])
}

func TestStatic_BlankReplyIsEmptyResponse(t *testing.T) {
	_, err := NewStatic("   ").Rewrite(context.Background(), "p", 0, "")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestFailing(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewFailing(boom).Rewrite(context.Background(), "p", 0, "")
	assert.ErrorIs(t, err, boom)
}

func TestEcho(t *testing.T) {
	got, err := Echo{}.Rewrite(context.Background(), "same prompt", 0.5, "fb")
	require.NoError(t, err)
	assert.Equal(t, "same prompt", got)
}

// #endregion static-tests

// #region ollama-tests

func TestOllama_Rewrite(t *testing.T) {
	var seen ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "\n  Explain the topic clearly.  \n", "done": true})
	}))
	defer srv.Close()

	o := NewOllama(srv.URL+"/", "llama3", 5*time.Second)
	got, err := o.Rewrite(context.Background(), "tell me stuff", 0.4, "feedback")
	require.NoError(t, err)
	assert.Equal(t, "Explain the topic clearly.", got)
	assert.Equal(t, "llama3", seen.Model)
	assert.False(t, seen.Stream)
	assert.Equal(t, BuildPrompt("tell me stuff", 0.4, "feedback"), seen.Prompt)
}

func TestOllama_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"   "}`))
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, "m", time.Second).Rewrite(context.Background(), "p", 0, "")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOllama_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, "missing", time.Second).Rewrite(context.Background(), "p", 0, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "model not found")
}

// #endregion ollama-tests

// #region openai-tests

func TestOpenAI_Rewrite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" Better prompt "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	got, err := NewOpenAI("sk-test", srv.URL+"/v1", "gpt-test").Rewrite(context.Background(), "p", 0.2, "f")
	require.NoError(t, err)
	assert.Equal(t, "Better prompt", got)
}

func TestOpenAI_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", srv.URL+"/v1", "m").Rewrite(context.Background(), "p", 0, "")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

// #endregion openai-tests

// #region anthropic-tests

func TestAnthropic_Rewrite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",` +
			`"content":[{"type":"text","text":"Refined "},{"type":"text","text":"prompt"}],` +
			`"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":2}}`))
	}))
	defer srv.Close()

	got, err := NewAnthropic("ak-test", srv.URL, "claude-test").Rewrite(context.Background(), "p", 0.2, "f")
	require.NoError(t, err)
	assert.Equal(t, "Refined prompt", got)
}

// #endregion anthropic-tests

// #region factory-tests

func TestRateLimited_WaitsAndForwards(t *testing.T) {
	inner := NewStatic("ok")
	r := NewRateLimited(inner, 0, 0)
	got, err := r.Rewrite(context.Background(), "p", 0, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, inner.CallCount())
}

func TestRateLimited_CancelledWhileWaiting(t *testing.T) {
	inner := NewStatic("ok")
	// one token per hour; the first call drains the burst
	r := NewRateLimited(inner, 1.0/3600, 1)
	_, err := r.Rewrite(context.Background(), "p", 0, "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Rewrite(ctx, "p", 0, "")
	require.Error(t, err)
	assert.Equal(t, 1, inner.CallCount())
}

func TestNew(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"response":"x"}`))
	}))
	defer srv.Close()

	g, err := New(Config{Provider: "OLLAMA", Model: "m", Endpoint: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	_, err = g.Rewrite(context.Background(), "p", 0, "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	_, err = New(Config{Provider: ProviderOpenAI})
	assert.Error(t, err)
	_, err = New(Config{Provider: ProviderAnthropic})
	assert.Error(t, err)
	_, err = New(Config{Provider: "bard"})
	assert.Error(t, err)

	g, err = New(Config{Provider: ProviderEcho})
	require.NoError(t, err)
	got, err := g.Rewrite(context.Background(), "p", 0, "")
	require.NoError(t, err)
	assert.Equal(t, "p", got)
}

// #endregion factory-tests
