package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"chatrelay.dev/context-bot/internal/store"
)

const contextLengthExceeded = "context_length_exceeded"

// OpenAIService talks to the chat completion and transcription endpoints.
type OpenAIService struct {
	client             *openai.Client
	model              string
	transcriptionModel string
}

func NewOpenAIService(apiKey, baseURL, model, transcriptionModel string) *OpenAIService {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIService{
		client:             openai.NewClientWithConfig(cfg),
		model:              model,
		transcriptionModel: transcriptionModel,
	}
}

func (s *OpenAIService) Complete(ctx context.Context, messages []store.ChatMessage) (store.ChatMessage, error) {
	req := openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if isContextLengthError(err) {
			return store.ChatMessage{}, fmt.Errorf("%w: %v", ErrContextTooLong, err)
		}
		return store.ChatMessage{}, fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return store.ChatMessage{}, ErrEmptyCompletion
	}

	reply := resp.Choices[0].Message
	role := reply.Role
	if role == "" {
		role = store.RoleAssistant
	}
	return store.ChatMessage{Role: role, Content: reply.Content}, nil
}

func (s *OpenAIService) Transcribe(ctx context.Context, audio io.Reader, fileName string) (string, error) {
	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.transcriptionModel,
		Reader:   audio,
		FilePath: fileName,
	})
	if err != nil {
		return "", fmt.Errorf("openai transcription failed: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func isContextLengthError(err error) bool {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if code, ok := apiErr.Code.(string); ok && code == contextLengthExceeded {
		return true
	}
	return strings.Contains(apiErr.Message, "Please reduce the length of the messages")
}
