package core

import (
	"context"
	"errors"
	"fmt"

	"chatrelay.dev/context-bot/internal/store"
	"chatrelay.dev/context-bot/internal/utils"
)

// MessageStore is the part of the context store the relay needs.
type MessageStore interface {
	AppendMessage(ctx context.Context, userID int64, role string, content string) (int64, error)
	GetMessages(ctx context.Context, userID int64, limit int) ([]store.ChatMessage, error)
}

// ChatService records an inbound message in the user's current context,
// forwards the newest window of that context to the completion API and
// records the answer.
type ChatService struct {
	dbStore   MessageStore
	completer Completer
	window    int
	chunkSize int
}

func NewChatService(db MessageStore, completer Completer, window int, chunkSize int) *ChatService {
	return &ChatService{
		dbStore:   db,
		completer: completer,
		window:    window,
		chunkSize: chunkSize,
	}
}

// Reply returns the assistant's answer split into transport-sized chunks.
// Completion failures come back wrapped in ErrCompletionFailed, with
// ErrContextTooLong preserved when that was the cause.
func (s *ChatService) Reply(ctx context.Context, userID int64, content string) ([]string, error) {
	if _, err := s.dbStore.AppendMessage(ctx, userID, store.RoleUser, content); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	window, err := s.dbStore.GetMessages(ctx, userID, s.window)
	if err != nil {
		return nil, fmt.Errorf("failed to load message window: %w", err)
	}

	answer, err := s.completer.Complete(ctx, window)
	if err != nil {
		if errors.Is(err, ErrCompletionFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	if _, err := s.dbStore.AppendMessage(ctx, userID, store.RoleAssistant, answer.Content); err != nil {
		return nil, fmt.Errorf("failed to store assistant message: %w", err)
	}
	return utils.SplitMessage(answer.Content, s.chunkSize), nil
}
