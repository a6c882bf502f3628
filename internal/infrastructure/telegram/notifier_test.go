package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsletterScanner/internal/config"
)

func TestPublishDigestPostsForm(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotPath = r.URL.Path
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "tok", ChatID: "42", APIBase: srv.URL + "/"})
	require.NoError(t, n.PublishDigest(context.Background(), "2 new newsletter entries"))

	assert.Equal(t, "/bottok/sendMessage", gotPath)
	assert.Equal(t, "42", gotChat)
	assert.Equal(t, "2 new newsletter entries", gotText)
}

func TestPublishDigestTruncatesLongMessages(t *testing.T) {
	t.Parallel()

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r.PostForm.Get("text")
	}))
	defer srv.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "tok", ChatID: "42", APIBase: srv.URL})
	require.NoError(t, n.PublishDigest(context.Background(), strings.Repeat("é", 5000)))
	assert.Len(t, []rune(got), maxMessageRunes)
}

func TestPublishDigestErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewNotifier(config.TelegramConfig{BotToken: "tok", ChatID: "42", APIBase: srv.URL}).
		PublishDigest(context.Background(), "x")
	assert.ErrorContains(t, err, "403")

	missing := NewNotifier(config.TelegramConfig{})
	assert.False(t, missing.Enabled())
	assert.ErrorContains(t, missing.PublishDigest(context.Background(), "x"), "misconfigured")
}
