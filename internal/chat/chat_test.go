package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shl518/vchat/internal/proxy"
	"github.com/shl518/vchat/internal/vchat"
	"github.com/shl518/vchat/internal/vchat/controller"
	"github.com/shl518/vchat/internal/vchat/prompt"
	"github.com/shl518/vchat/internal/worker"
)

type staticModel vchat.ModelConfig

func (m staticModel) ModelConfig() vchat.ModelConfig {
	return vchat.ModelConfig(m)
}

var conversation = []vchat.Message{
	{Role: vchat.RoleUser, Content: "hi"},
	{Role: vchat.RoleAssistant, Content: "hello"},
	{Role: vchat.RoleUser, Content: "how are you"},
}

func completion(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		ID:    "chatcmpl-1",
		Model: "vicuna-13b",
		Choices: []openai.ChatCompletionChoice{
			{Index: 0, Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
	}
}

func newProxyService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewService(
		proxy.NewClient(server.URL, nil, server.Client(), nil),
		nil,
		staticModel{Model: "vicuna-13b", Temperature: 0.5},
		nil,
		nil,
	)
}

func TestRequestChat(t *testing.T) {
	var got vchat.GenerationRequest
	var path string
	s := newProxyService(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.Header.Get("path")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(completion("fine"))
	})

	res, err := s.RequestChat(context.Background(), conversation)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "fine", res.Choices[0].Message.Content)

	assert.Equal(t, CompletionsPath, path)
	// assistant turns are dropped on the proxy path
	assert.Equal(t, "Human: hi###Human: how are you###Assistant:", got.Prompt)
	assert.Equal(t, "vicuna-13b", got.Model)
	assert.Equal(t, 0.5, got.Temperature)
	assert.Nil(t, got.MaxNewTokens)
	assert.Equal(t, prompt.Separator, got.Stop)
}

func TestRequestChatInvalidResponse(t *testing.T) {
	s := newProxyService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("upstream unavailable"))
	})

	res, err := s.RequestChat(context.Background(), conversation)
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestRequestChatNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	s := NewService(proxy.NewClient(server.URL, nil, nil, nil), nil, staticModel{}, nil, nil)

	res, err := s.RequestChat(context.Background(), conversation)
	assert.Error(t, err)
	assert.Nil(t, res)
}

func TestRequestWithPrompt(t *testing.T) {
	tests := []struct {
		name     string
		response any
		want     string
	}{
		{"first choice", completion("Greetings"), "Greetings"},
		{"no choices", openai.ChatCompletionResponse{ID: "x"}, ""},
		{"unparseable", "not json", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got vchat.GenerationRequest
			s := newProxyService(t, func(w http.ResponseWriter, r *http.Request) {
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				if raw, ok := tt.response.(string); ok {
					_, _ = w.Write([]byte(raw))
					return
				}
				_ = json.NewEncoder(w).Encode(tt.response)
			})

			text, err := s.RequestWithPrompt(context.Background(), conversation[:1], "summarize")
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
			assert.Equal(t, "Human: hi###Human: summarize###Assistant:", got.Prompt)
		})
	}
}

func newWorkerService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewService(
		nil,
		worker.NewClient(worker.ClientConfig{BaseURL: server.URL, HTTPClient: server.Client(), ChunkTimeout: 2 * time.Second}),
		staticModel{Model: "vicuna-13b"},
		controller.NewRegistry(),
		nil,
	)
}

func writeChunk(w http.ResponseWriter, text string) {
	data, _ := json.Marshal(map[string]any{"text": text, "error_code": 0})
	_, _ = w.Write(append(data, 0))
	w.(http.Flusher).Flush()
}

func TestStream(t *testing.T) {
	s := newWorkerService(t, func(w http.ResponseWriter, r *http.Request) {
		var req vchat.GenerationRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeChunk(w, req.Prompt+" I am")
		writeChunk(w, req.Prompt+" I am fine")
	})

	var updates []string
	var pendingWhileStreaming bool
	text, err := s.Stream(context.Background(), 2, 3, conversation, func(text string, done bool) {
		if !done {
			pendingWhileStreaming = pendingWhileStreaming || s.Registry().HasPending()
		}
		updates = append(updates, text)
	})

	require.NoError(t, err)
	assert.Equal(t, "I am fine", text)
	assert.Equal(t, []string{"I am", "I am fine", "I am fine"}, updates)
	assert.True(t, pendingWhileStreaming)
	assert.False(t, s.Registry().HasPending())
}

func TestStreamStoppedThroughRegistry(t *testing.T) {
	s := newWorkerService(t, func(w http.ResponseWriter, r *http.Request) {
		var req vchat.GenerationRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeChunk(w, req.Prompt+" partial")
		<-r.Context().Done()
	})

	text, err := s.Stream(context.Background(), 0, 1, conversation, func(text string, done bool) {
		if !done {
			s.Registry().Stop(0, 1)
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "partial", text)
	assert.Equal(t, 0, s.Registry().Len())
}

func TestStreamUnauthorized(t *testing.T) {
	s := newWorkerService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	var calls int
	text, err := s.Stream(context.Background(), 0, 0, conversation, func(string, bool) { calls++ })

	assert.ErrorIs(t, err, worker.ErrUnauthorized)
	assert.Empty(t, text)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, s.Registry().Len())
}
