package bot

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"chatrelay.dev/context-bot/internal/store"
)

func commandMessage(text string, length int) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: 42, UserName: "alice"},
		Chat:      &tgbotapi.Chat{ID: 100},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
	}
}

func TestEventFromUpdateCommand(t *testing.T) {
	ev, ok := EventFromUpdate(tgbotapi.Update{Message: commandMessage("/rename Travel plans", len("/rename"))})
	require.True(t, ok)
	require.Equal(t, store.Identity{UserID: 42, Username: "alice"}, ev.Sender)
	require.Equal(t, int64(100), ev.ChatID)
	require.Equal(t, 7, ev.MessageID)
	require.Equal(t, "rename", ev.Command)
	require.Equal(t, "Travel plans", ev.Args)

	ev, ok = EventFromUpdate(tgbotapi.Update{Message: commandMessage("/start@relay_bot", len("/start@relay_bot"))})
	require.True(t, ok)
	require.Equal(t, "start", ev.Command)
	require.Empty(t, ev.Args)
}

func TestEventFromUpdatePlainAndVoice(t *testing.T) {
	msg := &tgbotapi.Message{
		MessageID: 8,
		From:      &tgbotapi.User{ID: 42},
		Chat:      &tgbotapi.Chat{ID: 100},
		Text:      "how are you",
	}
	ev, ok := EventFromUpdate(tgbotapi.Update{Message: msg})
	require.True(t, ok)
	require.Empty(t, ev.Command)
	require.Equal(t, "how are you", ev.Text)

	msg = &tgbotapi.Message{
		MessageID: 9,
		From:      &tgbotapi.User{ID: 42},
		Chat:      &tgbotapi.Chat{ID: 100},
		Voice:     &tgbotapi.Voice{FileID: "voice-file"},
	}
	ev, ok = EventFromUpdate(tgbotapi.Update{Message: msg})
	require.True(t, ok)
	require.Equal(t, "voice-file", ev.VoiceFileID)
}

func TestEventFromUpdateCallback(t *testing.T) {
	ev, ok := EventFromUpdate(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: 42, UserName: "alice"},
		Message: &tgbotapi.Message{MessageID: 55, Chat: &tgbotapi.Chat{ID: 100}},
		Data:    "42.page.1",
	}})
	require.True(t, ok)
	require.Equal(t, int64(100), ev.ChatID)
	require.Equal(t, &Callback{ID: "cb-1", MessageID: 55, Data: "42.page.1"}, ev.Callback)
}

func TestEventFromUpdateIgnoresOtherUpdates(t *testing.T) {
	updates := []tgbotapi.Update{
		{},
		{EditedMessage: &tgbotapi.Message{Text: "edited"}},
		{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "no sender"}},
		{Message: &tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 1}, Sticker: &tgbotapi.Sticker{FileID: "s"}}},
	}
	for i, u := range updates {
		_, ok := EventFromUpdate(u)
		require.False(t, ok, "update %d", i)
	}
}

func TestInlineKeyboard(t *testing.T) {
	markup := inlineKeyboard(BuildSelector(42, makeContexts(2), 0, 15))
	require.Len(t, markup.InlineKeyboard, 3)
	require.Equal(t, "1. chat 1", markup.InlineKeyboard[0][0].Text)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	require.Equal(t, "42.change_context.101", *markup.InlineKeyboard[0][0].CallbackData)
	require.Equal(t, "42.create_context.", *markup.InlineKeyboard[2][0].CallbackData)
}
