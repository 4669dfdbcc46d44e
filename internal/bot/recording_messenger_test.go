package bot

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// MessengerCall records a single outbound call made through a Messenger.
type MessengerCall struct {
	Method    string // "Send", "EditText", "EditKeyboard", "AnswerCallback", "SendTyping", "DownloadFile"
	ChatID    int64
	MessageID int
	ReplyTo   int
	Text      string
	Keyboard  Keyboard
}

// recordingMessenger implements Messenger by recording all outbound calls
// for later assertion.
type recordingMessenger struct {
	mu     sync.Mutex
	calls  []MessengerCall
	files  map[string]string
	nextID int
}

func newRecordingMessenger() *recordingMessenger {
	return &recordingMessenger{files: map[string]string{}}
}

func (r *recordingMessenger) record(call MessengerCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recordingMessenger) Send(_ context.Context, msg OutgoingMessage) (int, error) {
	r.record(MessengerCall{Method: "Send", ChatID: msg.ChatID, ReplyTo: msg.ReplyTo, Text: msg.Text, Keyboard: msg.Keyboard})
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return r.nextID, nil
}

func (r *recordingMessenger) EditText(_ context.Context, chatID int64, messageID int, text string) error {
	r.record(MessengerCall{Method: "EditText", ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

func (r *recordingMessenger) EditKeyboard(_ context.Context, chatID int64, messageID int, keyboard Keyboard) error {
	r.record(MessengerCall{Method: "EditKeyboard", ChatID: chatID, MessageID: messageID, Keyboard: keyboard})
	return nil
}

func (r *recordingMessenger) AnswerCallback(_ context.Context, callbackID string) error {
	r.record(MessengerCall{Method: "AnswerCallback", Text: callbackID})
	return nil
}

func (r *recordingMessenger) SendTyping(_ context.Context, chatID int64) error {
	r.record(MessengerCall{Method: "SendTyping", ChatID: chatID})
	return nil
}

func (r *recordingMessenger) DownloadFile(_ context.Context, fileID string) (io.ReadCloser, error) {
	r.record(MessengerCall{Method: "DownloadFile", Text: fileID})
	r.mu.Lock()
	defer r.mu.Unlock()
	content, ok := r.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s not found", fileID)
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

// sent returns only the Send calls, in order.
func (r *recordingMessenger) sent() []MessengerCall {
	return r.byMethod("Send")
}

func (r *recordingMessenger) byMethod(method string) []MessengerCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []MessengerCall
	for _, c := range r.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (r *recordingMessenger) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
