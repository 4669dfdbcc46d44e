package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chatrelay.dev/context-bot/internal/store"
)

const pollTimeoutSeconds = 60

// TelegramMessenger adapts the Telegram Bot API to Messenger and turns
// incoming updates into Events.
type TelegramMessenger struct {
	api        *tgbotapi.BotAPI
	httpClient *http.Client
}

func NewTelegramMessenger(token string) (*TelegramMessenger, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	return &TelegramMessenger{api: api, httpClient: http.DefaultClient}, nil
}

// Username is the bot's own handle.
func (t *TelegramMessenger) Username() string {
	return t.api.Self.UserName
}

func (t *TelegramMessenger) Send(_ context.Context, out OutgoingMessage) (int, error) {
	msg := tgbotapi.NewMessage(out.ChatID, out.Text)
	msg.ReplyToMessageID = out.ReplyTo
	if out.Keyboard != nil {
		msg.ReplyMarkup = inlineKeyboard(out.Keyboard)
	}
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return sent.MessageID, nil
}

func (t *TelegramMessenger) EditText(_ context.Context, chatID int64, messageID int, text string) error {
	if _, err := t.api.Request(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		return fmt.Errorf("failed to edit message text: %w", err)
	}
	return nil
}

func (t *TelegramMessenger) EditKeyboard(_ context.Context, chatID int64, messageID int, keyboard Keyboard) error {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, inlineKeyboard(keyboard))
	if _, err := t.api.Request(edit); err != nil {
		return fmt.Errorf("failed to edit keyboard: %w", err)
	}
	return nil
}

func (t *TelegramMessenger) AnswerCallback(_ context.Context, callbackID string) error {
	if _, err := t.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

func (t *TelegramMessenger) SendTyping(_ context.Context, chatID int64) error {
	if _, err := t.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		return fmt.Errorf("failed to send chat action: %w", err)
	}
	return nil
}

func (t *TelegramMessenger) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	url, err := t.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file %s: %w", fileID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download file %s: status %d", fileID, resp.StatusCode)
	}
	return resp.Body, nil
}

// Poll long-polls for updates and hands every usable one to handle until
// ctx is cancelled.
func (t *TelegramMessenger) Poll(ctx context.Context, handle func(ctx context.Context, ev *Event)) error {
	if _, err := t.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to remove webhook before polling: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	updates := t.api.GetUpdatesChan(u)
	defer t.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if ev, ok := EventFromUpdate(update); ok {
				handle(ctx, ev)
			}
		}
	}
}

// SetWebhook registers url as the update destination.
func (t *TelegramMessenger) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if _, err := t.api.Request(wh); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	return nil
}

// DecodeWebhook reads one update pushed by Telegram. The bool is false for
// updates the bot does not act on.
func (t *TelegramMessenger) DecodeWebhook(r *http.Request) (*Event, bool, error) {
	update, err := t.api.HandleUpdate(r)
	if err != nil {
		return nil, false, err
	}
	ev, ok := EventFromUpdate(*update)
	return ev, ok, nil
}

// EventFromUpdate converts text, voice and callback updates; everything
// else is ignored.
func EventFromUpdate(u tgbotapi.Update) (*Event, bool) {
	switch {
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		q := u.CallbackQuery
		ev := &Event{
			Sender:   identityOf(q.From),
			Callback: &Callback{ID: q.ID, Data: q.Data},
		}
		if q.Message != nil && q.Message.Chat != nil {
			ev.ChatID = q.Message.Chat.ID
			ev.Callback.MessageID = q.Message.MessageID
		}
		return ev, true
	case u.Message != nil && u.Message.From != nil && u.Message.Chat != nil:
		m := u.Message
		ev := &Event{
			Sender:    identityOf(m.From),
			ChatID:    m.Chat.ID,
			MessageID: m.MessageID,
			Text:      m.Text,
		}
		if m.IsCommand() {
			ev.Command = m.Command()
			ev.Args = m.CommandArguments()
		}
		if m.Voice != nil {
			ev.VoiceFileID = m.Voice.FileID
		}
		return ev, ev.Text != "" || ev.VoiceFileID != ""
	default:
		return nil, false
	}
}

func identityOf(u *tgbotapi.User) store.Identity {
	return store.Identity{UserID: u.ID, Username: u.UserName}
}

func inlineKeyboard(keyboard Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(keyboard))
	for _, row := range keyboard {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
