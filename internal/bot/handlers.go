package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chatrelay.dev/context-bot/internal/core"
	"chatrelay.dev/context-bot/internal/store"
)

const (
	textGreeting       = "Hi, I am a bot that answers your requests with a language model"
	textAlreadyStarted = "You have already started the bot"
	textStopped        = "Stopping"
	textRemoved        = "Removed the current context"
	textReset          = "Reset the current context"
	textChoose         = "Choose a context:"
	textRenameUsage    = "Use /rename together with the new context name"
	textRenamed        = "Renamed the current context to `%s`"
	textAccessChanged  = "Access of @%s changed to %t"
	textNoSuchUser     = "No such user"
	textSelected       = "Selected context: %s"
	textContextGone    = "This context no longer exists"
	textCreated        = "Created a context"
	textUnknownAction  = "Unknown action %s"
	textForeignButton  = "This menu belongs to another user"
	textNotRegistered  = "You have not started the bot, send /start"
	textAccessDenied   = "You do not have access"
	textContextTooLong = "The context is overloaded, clear it with /reset"
	textUnhandledError = "Unhandled error: %v"
	textNoVoice        = "voice messages are not supported"
)

func (b *Bot) handleStart(ctx context.Context, ev *Event) error {
	if err := b.store.Register(ctx, ev.Sender); err != nil {
		return err
	}
	current, err := b.store.CurrentContextID(ctx, ev.Sender.UserID)
	if err != nil {
		return err
	}
	if current != nil {
		return b.send(ctx, ev.ChatID, textAlreadyStarted)
	}
	if _, err := b.store.CreateContext(ctx, ev.Sender.UserID, store.DefaultContextName); err != nil {
		return err
	}
	return b.send(ctx, ev.ChatID, textGreeting)
}

func (b *Bot) handleStop(ctx context.Context, ev *Event) error {
	if err := b.store.Remove(ctx, ev.Sender.UserID); err != nil {
		return err
	}
	return b.send(ctx, ev.ChatID, textStopped)
}

func (b *Bot) handleRemove(ctx context.Context, ev *Event) error {
	current, err := b.store.RemoveCurrentContext(ctx, ev.Sender.UserID)
	if err != nil {
		return err
	}
	loggerFrom(ctx, b.log).Debug("current context after removal", "context_id", current.ID)
	return b.send(ctx, ev.ChatID, textRemoved)
}

func (b *Bot) handleReset(ctx context.Context, ev *Event) error {
	if err := b.store.ResetContext(ctx, ev.Sender.UserID); err != nil {
		return err
	}
	return b.send(ctx, ev.ChatID, textReset)
}

func (b *Bot) handleChange(ctx context.Context, ev *Event) error {
	contexts, err := b.store.ListContexts(ctx, ev.Sender.UserID)
	if err != nil {
		return err
	}
	_, err = b.messenger.Send(ctx, OutgoingMessage{
		ChatID:   ev.ChatID,
		Text:     textChoose,
		Keyboard: BuildSelector(ev.Sender.UserID, contexts, 0, b.pageSize),
	})
	return err
}

func (b *Bot) handleRename(ctx context.Context, ev *Event) error {
	name := strings.TrimSpace(ev.Args)
	if name == "" {
		return b.send(ctx, ev.ChatID, textRenameUsage)
	}
	if err := b.store.RenameContext(ctx, ev.Sender.UserID, name); err != nil {
		return err
	}
	return b.send(ctx, ev.ChatID, fmt.Sprintf(textRenamed, name))
}

func (b *Bot) handleChangeAccess(ctx context.Context, ev *Event) error {
	username := parseHandle(ev.Args)
	if username == "" {
		return b.send(ctx, ev.ChatID, textNoSuchUser)
	}
	granted, err := b.store.ToggleAccess(ctx, store.Identity{Username: username})
	if errors.Is(err, store.ErrUserNotFound) {
		return b.send(ctx, ev.ChatID, textNoSuchUser)
	}
	if err != nil {
		return err
	}
	return b.send(ctx, ev.ChatID, fmt.Sprintf(textAccessChanged, username, granted))
}

// parseHandle accepts "@name", "name" or a t.me/name link.
func parseHandle(arg string) string {
	fields := strings.Fields(arg)
	if len(fields) == 0 {
		return ""
	}
	handle := strings.TrimLeft(fields[0], "@")
	handle = strings.TrimRight(handle, "/")
	if i := strings.LastIndex(handle, "/"); i >= 0 {
		handle = handle[i+1:]
	}
	return strings.TrimLeft(handle, "@")
}

func (b *Bot) handleMessage(ctx context.Context, ev *Event) error {
	if err := b.messenger.SendTyping(ctx, ev.ChatID); err != nil {
		loggerFrom(ctx, b.log).Warn("failed to send typing action", "error", err)
	}

	prompt := ev.Text
	if ev.VoiceFileID != "" {
		text, err := b.transcribe(ctx, ev.VoiceFileID)
		if err != nil {
			return err
		}
		prompt = text
	}
	if strings.TrimSpace(prompt) == "" {
		return nil
	}

	chunks, err := b.relay.Reply(ctx, ev.Sender.UserID, prompt)
	if errors.Is(err, core.ErrCompletionFailed) {
		if sendErr := b.reply(ctx, ev, completionFailureText(err)); sendErr != nil {
			return sendErr
		}
		return fmt.Errorf("%w: %w", errReported, err)
	}
	if err != nil {
		return err
	}

	for i, chunk := range chunks {
		msg := OutgoingMessage{ChatID: ev.ChatID, Text: chunk}
		if i == 0 {
			msg.ReplyTo = ev.MessageID
		}
		if _, err := b.messenger.Send(ctx, msg); err != nil {
			return fmt.Errorf("failed to send reply part %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func (b *Bot) transcribe(ctx context.Context, fileID string) (string, error) {
	if b.transcriber == nil {
		return "", errors.New(textNoVoice)
	}
	audio, err := b.messenger.DownloadFile(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("failed to download voice message: %w", err)
	}
	defer audio.Close()

	text, err := b.transcriber.Transcribe(ctx, audio, "voice.ogg")
	if err != nil {
		return "", fmt.Errorf("failed to transcribe voice message: %w", err)
	}
	return text, nil
}

func (b *Bot) handleCallback(ctx context.Context, ev *Event) error {
	action := ParseAction(ev.Callback.Data)
	if action.Kind != ActionUnknown && action.Subject != ev.Sender.UserID {
		if err := b.send(ctx, ev.ChatID, textForeignButton); err != nil {
			return err
		}
		return fmt.Errorf("%w: %w", errReported, ErrForeignCallback)
	}

	userID := ev.Sender.UserID
	messageID := ev.Callback.MessageID
	switch action.Kind {
	case ActionPage:
		contexts, err := b.store.ListContexts(ctx, userID)
		if err != nil {
			return err
		}
		return b.messenger.EditKeyboard(ctx, ev.ChatID, messageID, BuildSelector(userID, contexts, action.Page, b.pageSize))
	case ActionChangeContext:
		selected, err := b.store.SetCurrentContext(ctx, userID, action.ContextID)
		if errors.Is(err, store.ErrContextNotFound) {
			return b.messenger.EditText(ctx, ev.ChatID, messageID, textContextGone)
		}
		if err != nil {
			return err
		}
		return b.messenger.EditText(ctx, ev.ChatID, messageID, fmt.Sprintf(textSelected, selected.Name))
	case ActionCreateContext:
		if _, err := b.store.CreateContext(ctx, userID, store.DefaultContextName); err != nil {
			return err
		}
		return b.messenger.EditText(ctx, ev.ChatID, messageID, textCreated)
	default:
		return b.messenger.EditText(ctx, ev.ChatID, messageID, fmt.Sprintf(textUnknownAction, action.Raw))
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) error {
	_, err := b.messenger.Send(ctx, OutgoingMessage{ChatID: chatID, Text: text})
	return err
}

// reply answers the triggering message when there is one.
func (b *Bot) reply(ctx context.Context, ev *Event, text string) error {
	msg := OutgoingMessage{ChatID: ev.ChatID, Text: text}
	if ev.Callback == nil {
		msg.ReplyTo = ev.MessageID
	}
	_, err := b.messenger.Send(ctx, msg)
	return err
}
