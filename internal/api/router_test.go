package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"chatrelay.dev/context-bot/internal/bot"
	"chatrelay.dev/context-bot/internal/store"
)

const testToken = "s3cret"

type stubDecoder struct {
	ev  *bot.Event
	ok  bool
	err error
}

func (d stubDecoder) DecodeWebhook(*http.Request) (*bot.Event, bool, error) {
	return d.ev, d.ok, d.err
}

type recordingDispatcher struct {
	events []*bot.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, ev *bot.Event) {
	d.events = append(d.events, ev)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func do(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router := NewRouter(NewAPIHandler(Options{Store: newTestStore(t)}))

	rec := do(t, router, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUserContextsRequiresToken(t *testing.T) {
	s := newTestStore(t)
	router := NewRouter(NewAPIHandler(Options{Store: s, AdminToken: testToken}))

	require.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/api/users/1/contexts", "").Code)
	require.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/api/users/1/contexts", "wrong").Code)
}

func TestUserContextsDisabledWithoutToken(t *testing.T) {
	router := NewRouter(NewAPIHandler(Options{Store: newTestStore(t)}))
	require.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/users/1/contexts", "").Code)
}

func TestUserContexts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := store.Identity{UserID: 1, Username: "alice"}
	require.NoError(t, s.Register(ctx, alice))
	first, err := s.CreateContext(ctx, alice.UserID, store.DefaultContextName)
	require.NoError(t, err)
	second, err := s.CreateContext(ctx, alice.UserID, "work")
	require.NoError(t, err)
	router := NewRouter(NewAPIHandler(Options{Store: s, AdminToken: testToken}))

	rec := do(t, router, http.MethodGet, "/api/users/1/contexts", testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp UserContextsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "alice", resp.User.Username)
	require.NotNil(t, resp.User.CurrentContextID)
	require.Equal(t, second, *resp.User.CurrentContextID)
	require.Len(t, resp.Contexts, 2)
	require.Equal(t, first, resp.Contexts[0].ID)
	require.Equal(t, "work", resp.Contexts[1].Name)

	require.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/users/2/contexts", testToken).Code)
	require.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/users/alice/contexts", testToken).Code)
}

func TestWebhookDispatchesEvents(t *testing.T) {
	ev := &bot.Event{Sender: store.Identity{UserID: 1}, ChatID: 1, Text: "hi"}
	dispatcher := &recordingDispatcher{}
	router := NewRouter(NewAPIHandler(Options{
		Store:      newTestStore(t),
		Decoder:    stubDecoder{ev: ev, ok: true},
		Dispatcher: dispatcher,
	}))

	rec := do(t, router, http.MethodPost, DefaultWebhookPath, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []*bot.Event{ev}, dispatcher.events)
}

func TestWebhookIgnoresAndRejects(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	ignoring := NewRouter(NewAPIHandler(Options{
		Store:       newTestStore(t),
		Decoder:     stubDecoder{},
		Dispatcher:  dispatcher,
		WebhookPath: "/hook",
	}))
	require.Equal(t, http.StatusOK, do(t, ignoring, http.MethodPost, "/hook", "").Code)
	require.Empty(t, dispatcher.events)

	failing := NewRouter(NewAPIHandler(Options{
		Store:      newTestStore(t),
		Decoder:    stubDecoder{err: errors.New("bad json")},
		Dispatcher: dispatcher,
	}))
	require.Equal(t, http.StatusBadRequest, do(t, failing, http.MethodPost, DefaultWebhookPath, "").Code)
	require.Empty(t, dispatcher.events)
}

func TestWebhookDisabledInPollingMode(t *testing.T) {
	router := NewRouter(NewAPIHandler(Options{Store: newTestStore(t)}))
	rec := do(t, router, http.MethodPost, DefaultWebhookPath, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
