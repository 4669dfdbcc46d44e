package bot

import (
	"context"
	"io"

	"chatrelay.dev/context-bot/internal/store"
)

// Event is one inbound transport update, already stripped of
// transport-specific types.
type Event struct {
	Sender    store.Identity
	ChatID    int64
	MessageID int

	// Command is the command keyword without the leading slash; Args is the
	// rest of the line.
	Command string
	Args    string

	Text        string
	VoiceFileID string

	Callback *Callback
}

// Callback is a button press on a message the bot sent earlier.
type Callback struct {
	ID        string
	MessageID int
	Data      string
}

type Button struct {
	Label string
	Data  string
}

// Keyboard is rows of inline buttons.
type Keyboard [][]Button

type OutgoingMessage struct {
	ChatID   int64
	Text     string
	ReplyTo  int
	Keyboard Keyboard
}

// Messenger is the outbound side of the transport.
type Messenger interface {
	Send(ctx context.Context, msg OutgoingMessage) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	EditKeyboard(ctx context.Context, chatID int64, messageID int, keyboard Keyboard) error
	AnswerCallback(ctx context.Context, callbackID string) error
	SendTyping(ctx context.Context, chatID int64) error
	DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error)
}
