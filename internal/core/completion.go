package core

import (
	"context"
	"errors"
	"io"

	"chatrelay.dev/context-bot/internal/store"
)

var (
	// ErrContextTooLong means the provider rejected the window as too large.
	// The user can recover with /reset.
	ErrContextTooLong = errors.New("completion context too long")
	// ErrCompletionFailed wraps every other provider failure.
	ErrCompletionFailed = errors.New("completion failed")
	// ErrEmptyCompletion is returned when the provider answers without content.
	ErrEmptyCompletion = errors.New("completion returned no content")
)

// Completer maps an ordered, role-tagged history to one generated reply.
type Completer interface {
	Complete(ctx context.Context, messages []store.ChatMessage) (store.ChatMessage, error)
}

// Transcriber turns recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, fileName string) (string, error)
}
