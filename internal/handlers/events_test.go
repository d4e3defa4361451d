package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/novel-engine/internal/events"
	"github.com/jwebster45206/novel-engine/internal/session"
)

func TestEventsHandler_BadRequests(t *testing.T) {
	h := NewEventsHandler(nil, nil, testLogger())

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"wrong method", http.MethodPost, "/v1/events/sessions/" + uuid.NewString(), http.StatusMethodNotAllowed},
		{"wrong path", http.MethodGet, "/v1/events/games/" + uuid.NewString(), http.StatusBadRequest},
		{"bad id", http.MethodGet, "/v1/events/sessions/abc", http.StatusBadRequest},
		{"unknown type", http.MethodGet, "/v1/events/sessions/" + uuid.NewString() + "?types=screen.changed,chat", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, do(t, h, tt.method, tt.path, "").Code)
		})
	}
}

func TestEventsHandler_UnknownSession(t *testing.T) {
	_, manager := newSessionsHandler(t)
	h := NewEventsHandler(nil, manager, testLogger())
	rr := do(t, h, http.MethodGet, "/v1/events/sessions/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Session not found")
}

func TestParseTypes(t *testing.T) {
	f, err := parseTypes("")
	require.NoError(t, err)
	assert.True(t, f.allows(events.EventTypeGameSaved))

	f, err = parseTypes(" screen.changed , battle.finished,")
	require.NoError(t, err)
	assert.True(t, f.allows(events.EventTypeScreenChanged))
	assert.True(t, f.allows(events.EventTypeBattleFinished))
	assert.False(t, f.allows(events.EventTypeBattleStarted))

	_, err = parseTypes("screen.changed,nope")
	assert.Error(t, err)
}

// openStream connects to the SSE endpoint and returns a function that waits
// for the next line with the given prefix. Lines seen while waiting are
// appended to skipped.
func openStream(t *testing.T, ctx context.Context, url string, skipped *[]string) func(prefix string) string {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	return func(prefix string) string {
		t.Helper()
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream closed before %q", prefix)
				}
				if strings.HasPrefix(line, prefix) {
					return line
				}
				if skipped != nil {
					*skipped = append(*skipped, line)
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %q", prefix)
			}
		}
	}
}

// publishUntil publishes every tick until the test ends. The server may not
// have processed its subscription when the first message goes out.
func publishUntil(t *testing.T, publish func()) {
	t.Helper()
	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			publish()
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

func TestEventsHandler_Stream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	srv := httptest.NewServer(NewEventsHandler(client, nil, testLogger()))
	defer srv.Close()

	id := uuid.New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	waitFor := openStream(t, ctx, srv.URL+"/v1/events/sessions/"+id.String(), nil)
	assert.Equal(t, "event: connected", waitFor("event: connected"))

	pub := events.NewBroadcaster(client, testLogger())
	publishUntil(t, func() {
		_ = pub.PublishScreenChanged(context.Background(), id, "BATTLE", "b")
	})

	assert.Equal(t, "event: screen.changed", waitFor("event: screen."))
	data := waitFor("data: ")
	assert.Contains(t, data, `"screen":"BATTLE"`)
	assert.Contains(t, data, `"storyID":"b"`)
}

func TestEventsHandler_InitialScreenAndFilter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	_, manager := newSessionsHandler(t)
	s, err := manager.Create(context.Background(), session.CreateOptions{Script: "intro.json"})
	require.NoError(t, err)

	srv := httptest.NewServer(NewEventsHandler(client, manager, testLogger()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var skipped []string
	waitFor := openStream(t, ctx, srv.URL+"/v1/events/sessions/"+s.ID.String()+"?types=screen.changed", &skipped)
	waitFor("event: connected")

	assert.Equal(t, "event: screen.changed", waitFor("event: screen.changed"))
	data := waitFor("data: ")
	assert.Contains(t, data, `"screen":"NOVEL"`)
	assert.Contains(t, data, `"storyID":"a"`)

	pub := events.NewBroadcaster(client, testLogger())
	publishUntil(t, func() {
		_ = pub.PublishBattleStarted(context.Background(), s.ID, "slime", "Slime")
		_ = pub.PublishScreenChanged(context.Background(), s.ID, "BATTLE", "b")
	})

	waitFor("event: screen.changed")
	data = waitFor("data: ")
	assert.Contains(t, data, `"screen":"BATTLE"`)
	assert.NotContains(t, skipped, "event: battle.started")
}
