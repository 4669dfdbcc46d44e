package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateContextSeedsSystemMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := Identity{UserID: 1, Username: "alice"}
	id := registerWithContext(t, s, alice)

	current, err := s.CurrentContextID(ctx, alice.UserID)
	require.NoError(t, err)
	require.NotNil(t, current)
	require.Equal(t, id, *current)

	stored, err := s.ContextMessages(ctx, id)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, RoleSystem, stored[0].Role)
	require.Equal(t, SystemPrompt, stored[0].Content)
	requirePointersValid(t, s)
}

func TestCreateContextRequiresRegisteredUser(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateContext(context.Background(), 5, DefaultContextName)
	require.ErrorIs(t, err, ErrUserNotFound)

	contexts, err := s.ListContexts(context.Background(), 5)
	require.NoError(t, err)
	require.Empty(t, contexts, "the insert is rolled back")
}

func TestListContextsInCreationOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := Identity{UserID: 1, Username: "alice"}
	registerWithContext(t, s, alice)
	_, err := s.CreateContext(ctx, alice.UserID, "b")
	require.NoError(t, err)
	_, err = s.CreateContext(ctx, alice.UserID, "c")
	require.NoError(t, err)

	contexts, err := s.ListContexts(ctx, alice.UserID)
	require.NoError(t, err)
	require.Len(t, contexts, 3)
	require.Equal(t, []string{DefaultContextName, "b", "c"}, []string{contexts[0].Name, contexts[1].Name, contexts[2].Name})
	require.Less(t, contexts[0].ID, contexts[1].ID)
	require.Less(t, contexts[1].ID, contexts[2].ID)
}

func TestDeleteContextRemovesMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := Identity{UserID: 1, Username: "alice"}
	first := registerWithContext(t, s, alice)
	second, err := s.CreateContext(ctx, alice.UserID, "second")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, alice.UserID, RoleUser, "hi")
	require.NoError(t, err)

	require.NoError(t, s.DeleteContext(ctx, alice.UserID, first))
	requireNoOrphanMessages(t, s)

	current, err := s.CurrentContextID(ctx, alice.UserID)
	require.NoError(t, err)
	require.Equal(t, second, *current, "deleting another context keeps the pointer")

	require.NoError(t, s.DeleteContext(ctx, alice.UserID, 0))
	current, err = s.CurrentContextID(ctx, alice.UserID)
	require.NoError(t, err)
	require.Nil(t, current, "deleting the current context clears the pointer")
	requireNoOrphanMessages(t, s)
	requirePointersValid(t, s)

	require.NoError(t, s.DeleteContext(ctx, alice.UserID, 0), "no target is a no-op")
}

func TestDeleteContextOfAnotherUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerWithContext(t, s, Identity{UserID: 1, Username: "alice"})
	bobs := registerWithContext(t, s, Identity{UserID: 2, Username: "bob"})

	err := s.DeleteContext(ctx, 1, bobs)
	require.ErrorIs(t, err, ErrContextNotFound)

	contexts, err := s.ListContexts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, contexts, 1)
}

func TestRemoveCurrentContextFallsBackToNewest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := Identity{UserID: 1, Username: "alice"}
	registerWithContext(t, s, alice)
	middle, err := s.CreateContext(ctx, alice.UserID, "middle")
	require.NoError(t, err)
	newest, err := s.CreateContext(ctx, alice.UserID, "newest")
	require.NoError(t, err)

	_, err = s.SetCurrentContext(ctx, alice.UserID, middle)
	require.NoError(t, err)

	current, err := s.RemoveCurrentContext(ctx, alice.UserID)
	require.NoError(t, err)
	require.Equal(t, newest, current.ID)
	require.Equal(t, "newest", current.Name)

	pointer, err := s.CurrentContextID(ctx, alice.UserID)
	require.NoError(t, err)
	require.Equal(t, newest, *pointer)
	requirePointersValid(t, s)
	requireNoOrphanMessages(t, s)
}

func TestRemoveLastContextCreatesDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := Identity{UserID: 1, Username: "alice"}
	only := registerWithContext(t, s, alice)
	_, err := s.AppendMessage(ctx, alice.UserID, RoleUser, "hi")
	require.NoError(t, err)

	current, err := s.RemoveCurrentContext(ctx, alice.UserID)
	require.NoError(t, err)
	require.NotEqual(t, only, current.ID)
	require.Equal(t, DefaultContextName, current.Name)

	history, err := s.GetMessages(ctx, alice.UserID, 0)
	require.NoError(t, err)
	require.Equal(t, []ChatMessage{{Role: RoleSystem, Content: SystemPrompt}}, history)
	requirePointersValid(t, s)
	requireNoOrphanMessages(t, s)
}

func TestSetCurrentContext(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	first := registerWithContext(t, s, Identity{UserID: 1, Username: "alice"})
	_, err := s.CreateContext(ctx, 1, "second")
	require.NoError(t, err)
	bobs := registerWithContext(t, s, Identity{UserID: 2, Username: "bob"})

	selected, err := s.SetCurrentContext(ctx, 1, first)
	require.NoError(t, err)
	require.Equal(t, first, selected.ID)
	require.Equal(t, DefaultContextName, selected.Name)

	_, err = s.SetCurrentContext(ctx, 1, bobs)
	require.ErrorIs(t, err, ErrContextNotFound)

	current, err := s.CurrentContextID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, first, *current, "a rejected selection leaves the pointer alone")
	requirePointersValid(t, s)
}

func TestRenameContext(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := registerWithContext(t, s, Identity{UserID: 1, Username: "alice"})

	require.NoError(t, s.RenameContext(ctx, 1, "Travel plans"))
	selected, err := s.SetCurrentContext(ctx, 1, id)
	require.NoError(t, err)
	require.Equal(t, "Travel plans", selected.Name)

	require.NoError(t, s.RenameContext(ctx, 404, "ignored"))
}
