package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studvik/companion/internal/model"
	"github.com/studvik/companion/internal/store"
	"github.com/studvik/companion/tests/testutil"
)

type fakePusher struct {
	sent []string
	err  error
}

func (p *fakePusher) Send(to, subject, body string) error {
	p.sent = append(p.sent, to+"|"+subject+"|"+body)
	return p.err
}

func TestFanoutPersistsAndPushes(t *testing.T) {
	s := testutil.NewTestStore(t)
	email := &fakePusher{}
	telegram := &fakePusher{}

	f := NewFanout(s, nil)
	f.AddChannel("email", "student@example.com", email)
	f.AddChannel("telegram", "12345", telegram)

	n := &model.Notification{
		UserID:   "user-1",
		Title:    "New deadline: Exercise 4",
		Message:  "TDT4120: Exercise 4 is due Tue 10 Mar 23:59",
		Priority: model.PriorityMedium,
		Source:   "canvas",
		URL:      "/deadlines",
	}
	require.NoError(t, f.Deliver(context.Background(), n))

	userID := "user-1"
	inbox, err := s.GetNotifications(context.Background(), store.NotificationFilter{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "New deadline: Exercise 4", inbox[0].Title)
	assert.False(t, inbox[0].Read)

	require.Len(t, email.sent, 1)
	assert.Contains(t, email.sent[0], "student@example.com|New deadline: Exercise 4|")
	assert.Contains(t, email.sent[0], "/deadlines")
	require.Len(t, telegram.sent, 1)
	assert.Contains(t, telegram.sent[0], "12345|")
}

func TestFanoutContinuesPastChannelFailure(t *testing.T) {
	s := testutil.NewTestStore(t)
	broken := &fakePusher{err: errors.New("smtp: connection refused")}
	working := &fakePusher{}

	f := NewFanout(s, nil)
	f.AddChannel("email", "student@example.com", broken)
	f.AddChannel("telegram", "12345", working)

	err := f.Deliver(context.Background(), &model.Notification{
		UserID: "user-1",
		Title:  "Sync needs attention",
	})
	require.NoError(t, err)
	assert.Len(t, working.sent, 1)
}

func TestFanoutSkipsUnconfiguredChannels(t *testing.T) {
	s := testutil.NewTestStore(t)
	p := &fakePusher{}

	f := NewFanout(s, nil)
	f.AddChannel("email", "", p)
	f.AddChannel("telegram", "12345", nil)

	require.NoError(t, f.Deliver(context.Background(), &model.Notification{
		UserID: "user-1",
		Title:  "hello",
	}))
	assert.Empty(t, p.sent)
}

func TestFanoutReturnsPersistError(t *testing.T) {
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	f := NewFanout(s, nil)
	err = f.Deliver(context.Background(), &model.Notification{UserID: "user-1", Title: "x"})
	assert.Error(t, err)
}

func TestTelegramPusherSend(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewTelegramPusher("test-token")
	p.baseURL = srv.URL
	p.client = srv.Client()

	require.NoError(t, p.Send("12345", "New deadline: Exercise 4", "TDT4120: due soon"))
	assert.Equal(t, "12345", got.ChatID)
	assert.Equal(t, "New deadline: Exercise 4\n\nTDT4120: due soon", got.Text)
}

func TestTelegramPusherSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewTelegramPusher("bad-token")
	p.baseURL = srv.URL
	p.client = srv.Client()

	err := p.Send("12345", "t", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram API error")
}
