package bot

import (
	"context"
	"sync"

	"chatrelay.dev/context-bot/internal/core"
	"chatrelay.dev/context-bot/internal/logger"
	"chatrelay.dev/context-bot/internal/store"
)

// Store is everything the handlers need from persistence.
type Store interface {
	Register(ctx context.Context, ident store.Identity) error
	Exists(ctx context.Context, ident store.Identity) (bool, error)
	HasAccess(ctx context.Context, ident store.Identity) (bool, error)
	ToggleAccess(ctx context.Context, ident store.Identity) (bool, error)
	Remove(ctx context.Context, userID int64) error

	ListContexts(ctx context.Context, userID int64) ([]store.Context, error)
	CreateContext(ctx context.Context, userID int64, name string) (int64, error)
	RemoveCurrentContext(ctx context.Context, userID int64) (*store.Context, error)
	CurrentContextID(ctx context.Context, userID int64) (*int64, error)
	SetCurrentContext(ctx context.Context, userID int64, contextID int64) (*store.Context, error)
	RenameContext(ctx context.Context, userID int64, name string) error
	ResetContext(ctx context.Context, userID int64) error
	GetMessages(ctx context.Context, userID int64, limit int) ([]store.ChatMessage, error)
}

// Relay produces the assistant's reply chunks for a user message.
type Relay interface {
	Reply(ctx context.Context, userID int64, content string) ([]string, error)
}

type Options struct {
	Store       Store
	Relay       Relay
	Transcriber core.Transcriber // optional; voice messages fail without it
	Messenger   Messenger
	Logger      *logger.Logger
	// Name is the bot's own handle, used in transcript logs.
	Name     string
	AdminID  int64
	PageSize int
}

type Bot struct {
	store       Store
	relay       Relay
	transcriber core.Transcriber
	messenger   Messenger
	log         *logger.Logger
	name        string
	adminID     int64
	pageSize    int

	commands   map[string]HandlerFunc
	onMessage  HandlerFunc
	onCallback HandlerFunc

	locks    userLocks
	inflight sync.WaitGroup
}

func New(opts Options) *Bot {
	b := &Bot{
		store:       opts.Store,
		relay:       opts.Relay,
		transcriber: opts.Transcriber,
		messenger:   opts.Messenger,
		log:         opts.Logger,
		name:        opts.Name,
		adminID:     opts.AdminID,
		pageSize:    opts.PageSize,
	}
	if b.log == nil {
		b.log = logger.NewNop()
	}
	if b.pageSize <= 0 {
		b.pageSize = 15
	}

	gated := b.Gate(Requirements{})
	b.commands = map[string]HandlerFunc{
		"start":         Chain(b.handleStart, b.Logging("start"), b.Gate(Requirements{SkipExists: true, SkipAccess: true})),
		"stop":          Chain(b.handleStop, b.Logging("stop"), b.Gate(Requirements{SkipAccess: true})),
		"remove":        Chain(b.handleRemove, b.Logging("remove"), gated),
		"reset":         Chain(b.handleReset, b.Logging("reset"), gated),
		"change":        Chain(b.handleChange, b.Logging("change"), gated),
		"rename":        Chain(b.handleRename, b.Logging("rename"), gated),
		"change_access": Chain(b.handleChangeAccess, b.Logging("change_access"), b.AdminOnly()),
	}
	b.onMessage = Chain(b.handleMessage, b.Logging("message"), gated)
	b.onCallback = Chain(b.handleCallback, b.Logging("callback"), gated)
	return b
}

// Handle processes one event synchronously. Events of the same user never
// run concurrently.
func (b *Bot) Handle(ctx context.Context, ev *Event) {
	unlock := b.locks.lock(ev.Sender.UserID)
	defer unlock()

	if ev.Callback != nil {
		if err := b.messenger.AnswerCallback(ctx, ev.Callback.ID); err != nil {
			b.log.Warn("failed to answer callback", "error", err)
		}
		_ = b.onCallback(ctx, ev)
		return
	}
	if h, ok := b.commands[ev.Command]; ok {
		_ = h(ctx, ev)
		return
	}
	_ = b.onMessage(ctx, ev)
}

// Dispatch handles the event in its own goroutine, detached from the
// caller's cancellation so shutdown lets in-flight turns finish.
func (b *Bot) Dispatch(ctx context.Context, ev *Event) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		b.Handle(context.WithoutCancel(ctx), ev)
	}()
}

// Wait blocks until every dispatched event has been handled.
func (b *Bot) Wait() {
	b.inflight.Wait()
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

func (l *userLocks) lock(userID int64) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[int64]*userLock)
	}
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}
