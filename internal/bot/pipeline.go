package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"chatrelay.dev/context-bot/internal/core"
	"chatrelay.dev/context-bot/internal/logger"
	"chatrelay.dev/context-bot/internal/store"
)

var (
	ErrNotRegistered   = errors.New("user is not registered")
	ErrAccessDenied    = errors.New("user has no access")
	ErrForeignCallback = errors.New("callback token belongs to another user")

	// errReported marks failures the handler already answered to the user.
	errReported = errors.New("reported to user")
)

// HandlerFunc handles one inbound event.
type HandlerFunc func(ctx context.Context, ev *Event) error

// Middleware wraps a handler; it may short-circuit by not calling next.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain applies middlewares so that the first one is the outermost stage.
func Chain(h HandlerFunc, middlewares ...Middleware) HandlerFunc {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Requirements selects which gate checks run. The zero value runs both.
type Requirements struct {
	SkipExists bool
	SkipAccess bool
}

// Gate rejects unknown or unauthorized senders before the handler runs.
func (b *Bot) Gate(req Requirements) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, ev *Event) error {
			if !req.SkipExists {
				ok, err := b.store.Exists(ctx, ev.Sender)
				if err != nil {
					return fmt.Errorf("failed to check registration: %w", err)
				}
				if !ok {
					if err := b.send(ctx, ev.ChatID, textNotRegistered); err != nil {
						return err
					}
					return fmt.Errorf("%w: %w", errReported, ErrNotRegistered)
				}
			}
			if !req.SkipAccess {
				ok, err := b.store.HasAccess(ctx, ev.Sender)
				if err != nil {
					return fmt.Errorf("failed to check access: %w", err)
				}
				if !ok {
					if err := b.send(ctx, ev.ChatID, textAccessDenied); err != nil {
						return err
					}
					return fmt.Errorf("%w: %w", errReported, ErrAccessDenied)
				}
			}
			return next(ctx, ev)
		}
	}
}

// AdminOnly silently drops events from anyone but the operator.
func (b *Bot) AdminOnly() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, ev *Event) error {
			if b.adminID == 0 || ev.Sender.UserID != b.adminID {
				loggerFrom(ctx, b.log).Warn("admin command from non-operator", "user_id", ev.Sender.UserID)
				return nil
			}
			return next(ctx, ev)
		}
	}
}

// Logging is the outermost stage: it tags the event with a trace id,
// recovers panics, answers unreported failures with one generic message
// and records the tail of the user's current context.
func (b *Bot) Logging(name string) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, ev *Event) (err error) {
			log := b.log.With("trace_id", uuid.NewString(), "handler", name, "user_id", ev.Sender.UserID, "username", ev.Sender.Username)
			ctx = withLogger(ctx, log)
			log.Debug("handler called", "chat_id", ev.ChatID, "message_id", ev.MessageID, "text", ev.Text)

			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic in %s: %v", name, r)
				}
				b.finish(ctx, log, ev, err)
			}()
			return next(ctx, ev)
		}
	}
}

func (b *Bot) finish(ctx context.Context, log *logger.Logger, ev *Event, err error) {
	tail := 2
	switch {
	case err == nil:
		log.Debug("handler returned")
	case errors.Is(err, ErrNotRegistered), errors.Is(err, ErrAccessDenied), errors.Is(err, ErrForeignCallback):
		log.Info("event rejected", "reason", err)
		tail = 1
	case errors.Is(err, errReported):
		log.Error("handler failed", "error", err)
		tail = 1
	default:
		log.Error("handler failed", "error", err)
		tail = 1
		if sendErr := b.reply(ctx, ev, fmt.Sprintf(textUnhandledError, err)); sendErr != nil {
			log.Error("failed to report error to user", "error", sendErr)
		}
	}
	b.logTranscript(ctx, log, ev.Sender, tail)
}

func (b *Bot) logTranscript(ctx context.Context, log *logger.Logger, sender store.Identity, count int) {
	messages, err := b.store.GetMessages(ctx, sender.UserID, count)
	if err != nil {
		log.Warn("failed to load transcript", "error", err)
		return
	}
	for _, m := range messages {
		switch m.Role {
		case store.RoleUser:
			log.Info(fmt.Sprintf("%s: %s", sender.Username, m.Content))
		case store.RoleAssistant:
			log.Info(fmt.Sprintf("%s to %s: %s", b.name, sender.Username, m.Content))
		}
	}
}

// completionFailureText picks the user-facing text for a relay failure.
func completionFailureText(err error) string {
	if errors.Is(err, core.ErrContextTooLong) {
		return textContextTooLong
	}
	return fmt.Sprintf(textUnhandledError, err)
}

type loggerKey struct{}

func withLogger(ctx context.Context, log *logger.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, log)
}

func loggerFrom(ctx context.Context, fallback *logger.Logger) *logger.Logger {
	if log, ok := ctx.Value(loggerKey{}).(*logger.Logger); ok {
		return log
	}
	return fallback
}
