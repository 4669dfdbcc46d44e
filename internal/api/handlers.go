package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"chatrelay.dev/context-bot/internal/bot"
	"chatrelay.dev/context-bot/internal/logger"
	"chatrelay.dev/context-bot/internal/store"
)

// UserReader is the read-only part of the store the admin routes use.
type UserReader interface {
	GetUser(ctx context.Context, ident store.Identity) (*store.User, error)
	ListContexts(ctx context.Context, userID int64) ([]store.Context, error)
}

// UpdateDecoder turns a pushed webhook request into a bot event.
type UpdateDecoder interface {
	DecodeWebhook(r *http.Request) (*bot.Event, bool, error)
}

// Dispatcher runs an event in the background.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *bot.Event)
}

type Options struct {
	Store  UserReader
	Logger *logger.Logger
	// AdminToken guards the operator routes; empty disables them.
	AdminToken string

	// Decoder and Dispatcher enable the webhook receiver when both are set.
	Decoder     UpdateDecoder
	Dispatcher  Dispatcher
	WebhookPath string
}

type APIHandler struct {
	store       UserReader
	log         *logger.Logger
	adminToken  string
	decoder     UpdateDecoder
	dispatcher  Dispatcher
	webhookPath string
}

func NewAPIHandler(opts Options) *APIHandler {
	h := &APIHandler{
		store:       opts.Store,
		log:         opts.Logger,
		adminToken:  opts.AdminToken,
		webhookPath: opts.WebhookPath,
	}
	if h.log == nil {
		h.log = logger.NewNop()
	}
	if opts.Decoder != nil && opts.Dispatcher != nil {
		h.decoder = opts.Decoder
		h.dispatcher = opts.Dispatcher
	}
	if h.webhookPath == "" {
		h.webhookPath = DefaultWebhookPath
	}
	return h
}

func (h *APIHandler) TokenAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WebhookHandler acknowledges the update immediately and handles it in the
// background; Telegram retries anything that is not answered with 2xx.
func (h *APIHandler) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	ev, ok, err := h.decoder.DecodeWebhook(r)
	if err != nil {
		h.log.Warn("failed to decode webhook update", "error", err)
		http.Error(w, "Invalid update", http.StatusBadRequest)
		return
	}
	if ok {
		h.dispatcher.Dispatch(r.Context(), ev)
	}
	w.WriteHeader(http.StatusOK)
}

type UserContextsResponse struct {
	User     *store.User     `json:"user"`
	Contexts []store.Context `json:"contexts"`
}

func (h *APIHandler) UserContextsHandler(w http.ResponseWriter, r *http.Request) {
	userIDParam := chi.URLParam(r, "userID")
	userID, err := strconv.ParseInt(userIDParam, 10, 64)
	if err != nil || userID == 0 {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	user, err := h.store.GetUser(r.Context(), store.Identity{UserID: userID})
	if err != nil {
		h.log.Error("failed to get user", "user_id", userID, "error", err)
		http.Error(w, "Failed to get user", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	contexts, err := h.store.ListContexts(r.Context(), userID)
	if err != nil {
		h.log.Error("failed to list contexts", "user_id", userID, "error", err)
		http.Error(w, "Failed to list contexts", http.StatusInternalServerError)
		return
	}
	if contexts == nil {
		contexts = []store.Context{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(UserContextsResponse{User: user, Contexts: contexts})
}
