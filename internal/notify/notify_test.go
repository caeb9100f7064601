package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goodtune/screenguard/internal/storage"
	"github.com/goodtune/screenguard/internal/storage/bolt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) Notify(context.Context, Message) error {
	c.calls++
	return c.err
}

func openStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := bolt.Open(t.TempDir() + "/notify.bolt")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecorderAppendsToLog(t *testing.T) {
	store := openStore(t)
	rec := NewRecorder(store.Notifications())
	fixed := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	err := rec.Notify(context.Background(), Message{
		Channel: "limits",
		Title:   "Heads up!",
		Body:    "You have used 80% of the time allowed for Game",
	})
	require.NoError(t, err)

	entries, err := store.Notifications().List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Heads up!", entries[0].Title)
	assert.Equal(t, "You have used 80% of the time allowed for Game", entries[0].Message)
	assert.True(t, entries[0].Timestamp.Equal(fixed))
}

func TestFanoutDeliversToAllDespiteFailure(t *testing.T) {
	failing := &countingNotifier{err: errors.New("push down")}
	ok := &countingNotifier{}

	f := NewFanout(zerolog.Nop(), failing, nil, ok)
	err := f.Notify(context.Background(), Message{Title: "t"})

	assert.Error(t, err)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)
}

func TestFanoutNoNotifiers(t *testing.T) {
	assert.NoError(t, NewFanout(zerolog.Nop()).Notify(context.Background(), Message{}))
}

func TestNewShoutrrrValidatesURLs(t *testing.T) {
	_, err := NewShoutrrr(nil, 0)
	assert.Error(t, err)

	_, err = NewShoutrrr([]string{"nosuchservice://x"}, 0)
	assert.Error(t, err)
}

func TestShoutrrrGenericWebhook(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	s, err := NewShoutrrr([]string{"generic://" + host + "/hook?disabletls=yes"}, 2*time.Second)
	require.NoError(t, err)

	require.NoError(t, s.Notify(context.Background(), Message{Title: "Heads up!", Body: "You have used 80% of the time allowed for Game"}))

	select {
	case body := <-received:
		assert.Contains(t, body, "You have used 80% of the time allowed for Game")
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not called")
	}
}
