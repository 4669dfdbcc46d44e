package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"chatrelay.dev/context-bot/internal/logger"
	"chatrelay.dev/context-bot/internal/store"
)

const geminiModelRole = "model"

// GeminiService is the alternative completion provider.
type GeminiService struct {
	client    *genai.Client
	modelName string
	log       *logger.Logger
}

func NewGeminiService(ctx context.Context, apiKey, modelName string, log *logger.Logger) (*GeminiService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiService{client: client, modelName: modelName, log: log}, nil
}

func (s *GeminiService) Close() {
	if s.client == nil {
		return
	}
	if err := s.client.Close(); err != nil {
		s.log.Warn("error closing GenAI client", "error", err)
	} else {
		s.log.Info("GenAI client closed")
	}
}

func (s *GeminiService) Complete(ctx context.Context, messages []store.ChatMessage) (store.ChatMessage, error) {
	instruction, history, err := toGeminiHistory(messages)
	if err != nil {
		return store.ChatMessage{}, err
	}

	model := s.client.GenerativeModel(s.modelName)
	if instruction != nil {
		model.SystemInstruction = instruction
	}

	chatSession := model.StartChat()
	last := history[len(history)-1]
	chatSession.History = history[:len(history)-1]

	resp, err := chatSession.SendMessage(ctx, last.Parts...)
	if err != nil {
		if strings.Contains(err.Error(), "exceeds the maximum number of tokens") {
			return store.ChatMessage{}, fmt.Errorf("%w: %v", ErrContextTooLong, err)
		}
		return store.ChatMessage{}, fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return store.ChatMessage{}, ErrEmptyCompletion
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			s.log.Debug("gemini response part was not text", "type", fmt.Sprintf("%T", part))
		}
	}
	if responseText.Len() == 0 {
		return store.ChatMessage{}, ErrEmptyCompletion
	}

	return store.ChatMessage{Role: store.RoleAssistant, Content: responseText.String()}, nil
}

// toGeminiHistory folds system messages into a system instruction and maps
// the rest onto Gemini's user/model turns, merging consecutive turns of the
// same role. The last turn must come from the user.
func toGeminiHistory(messages []store.ChatMessage) (*genai.Content, []*genai.Content, error) {
	var instruction *genai.Content
	var history []*genai.Content

	for _, m := range messages {
		if m.Role == store.RoleSystem {
			if instruction == nil {
				instruction = &genai.Content{}
			}
			instruction.Parts = append(instruction.Parts, genai.Text(m.Content))
			continue
		}

		role := store.RoleUser
		if m.Role == store.RoleAssistant {
			role = geminiModelRole
		}
		if n := len(history); n > 0 && history[n-1].Role == role {
			history[n-1].Parts = append(history[n-1].Parts, genai.Text(m.Content))
			continue
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}

	if len(history) == 0 {
		return nil, nil, fmt.Errorf("prompt history is empty for chat completion")
	}
	if history[len(history)-1].Role != store.RoleUser {
		return nil, nil, fmt.Errorf("last message in history is not from 'user', cannot proceed with chat completion")
	}
	return instruction, history, nil
}
