// Package chat implements the conversation requests of the vchat client:
// non-streaming chat through the proxy and streaming replies from the worker.
package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/shl518/vchat/internal/proxy"
	"github.com/shl518/vchat/internal/vchat"
	"github.com/shl518/vchat/internal/vchat/controller"
	"github.com/shl518/vchat/internal/vchat/prompt"
	"github.com/shl518/vchat/internal/worker"
)

// CompletionsPath is the upstream path for non-streaming chat.
const CompletionsPath = "v1/chat/completions"

// Service sends chat requests for a conversation.
type Service struct {
	proxy    *proxy.Client
	worker   *worker.Client
	models   vchat.ModelSource
	registry *controller.Registry
	logger   *slog.Logger
}

// NewService creates a chat service. A nil registry gets a fresh one.
func NewService(proxyClient *proxy.Client, workerClient *worker.Client, models vchat.ModelSource, registry *controller.Registry, logger *slog.Logger) *Service {
	if registry == nil {
		registry = controller.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		proxy:    proxyClient,
		worker:   workerClient,
		models:   models,
		registry: registry,
		logger:   logger,
	}
}

// Registry returns the registry holding the cancel handles of live streams.
func (s *Service) Registry() *controller.Registry {
	return s.registry
}

// RequestChat sends messages without assistant turns to the proxy.
// A response that cannot be parsed is logged and yields nil.
func (s *Service) RequestChat(ctx context.Context, messages []vchat.Message) (*openai.ChatCompletionResponse, error) {
	req := prompt.MakeRequestParam(messages, s.models.ModelConfig(), prompt.Options{FilterBot: true})

	resp, err := s.proxy.Do(ctx, CompletionsPath, req, "")
	if err != nil {
		return nil, fmt.Errorf("requesting chat: %w", err)
	}

	var response openai.ChatCompletionResponse
	if !s.proxy.DecodeJSON(resp, &response) {
		return nil, nil
	}
	return &response, nil
}

// RequestWithPrompt appends promptText as a user message and returns the
// content of the first choice, or "" when there is none.
func (s *Service) RequestWithPrompt(ctx context.Context, messages []vchat.Message, promptText string) (string, error) {
	all := make([]vchat.Message, 0, len(messages)+1)
	all = append(all, messages...)
	all = append(all, vchat.NewMessage(vchat.RoleUser, promptText))

	res, err := s.RequestChat(ctx, all)
	if err != nil {
		return "", err
	}
	if res == nil || len(res.Choices) == 0 {
		return "", nil
	}
	return res.Choices[0].Message.Content, nil
}

// Stream streams a reply to messages, reporting every update to onMessage.
// While the stream is live its cancel handle is registered under
// (sessionIndex, messageIndex); the entry is removed once the stream ends,
// unless a newer stream has taken the same key.
// It returns the final text, and an error when the stream failed or was
// cancelled (the text then holds what had been received).
func (s *Service) Stream(ctx context.Context, sessionIndex, messageIndex int, messages []vchat.Message, onMessage func(text string, done bool)) (string, error) {
	var (
		text      string
		streamErr error
		release   func()
	)

	worker.RequestChatStream(ctx, s.worker, messages, s.models.ModelConfig(), worker.StreamOptions{
		OnController: func(cancel context.CancelFunc) {
			var key string
			key, release = s.registry.Register(sessionIndex, messageIndex, cancel)
			s.logger.Debug("stream registered", "key", key)
		},
		OnMessage: func(message string, done bool) {
			text = message
			if onMessage != nil {
				onMessage(message, done)
			}
		},
		OnError: func(err error, statusCode int) {
			s.logger.Debug("stream failed", "error", err, "status", statusCode)
			streamErr = err
		},
	})

	if release != nil {
		release()
	}
	return text, streamErr
}
