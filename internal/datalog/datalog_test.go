package datalog

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	queries []string
}

func (r *recorder) handler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		r.queries = append(r.queries, req.URL.RawQuery)
		r.mu.Unlock()
		w.WriteHeader(status)
	})
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...)
}

func TestEntryQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		entry Entry
		want  string
	}{
		{Entry{}, "&door_status=0&motion_detected=0"},
		{Entry{DoorOpen: true}, "&door_status=1&motion_detected=0"},
		{Entry{Motion: true}, "&door_status=0&motion_detected=1"},
		{Entry{DoorOpen: true, Motion: true}, "&door_status=1&motion_detected=1"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.entry.Query())
	}
}

func TestPostSendsInOrder(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusOK))
	t.Cleanup(srv.Close)

	c := New(srv.URL+"/input/key?private_key=abc", WithTimeout(time.Second))
	require.True(t, c.Enabled())

	c.Post(Entry{DoorOpen: true})
	c.Post(Entry{DoorOpen: true, Motion: true})
	c.Post(Entry{DoorOpen: true})
	c.Close()

	require.Equal(t, []string{
		"private_key=abc&door_status=1&motion_detected=0",
		"private_key=abc&door_status=1&motion_detected=1",
		"private_key=abc&door_status=1&motion_detected=0",
	}, rec.got())

	sent, failed, dropped := c.Stats()
	require.Equal(t, int64(3), sent)
	require.Zero(t, failed)
	require.Zero(t, dropped)
}

func TestPostFailureIsCounted(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusInternalServerError))
	t.Cleanup(srv.Close)

	c := New(srv.URL + "?k=1")
	c.Post(Entry{})
	c.Close()

	sent, failed, _ := c.Stats()
	require.Zero(t, sent)
	require.Equal(t, int64(1), failed)
	require.Len(t, rec.got(), 1)
}

func TestPostUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url+"?k=1", WithTimeout(time.Second))
	c.Post(Entry{DoorOpen: true})
	c.Close()

	_, failed, _ := c.Stats()
	require.Equal(t, int64(1), failed)
}

func TestPostNeverBlocks(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL+"?k=1", WithQueueSize(1), WithTimeout(5*time.Second))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			c.Post(Entry{Motion: true})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Post blocked on a stalled endpoint")
	}

	// One entry may be in flight and one queued; the rest are dropped.
	_, _, dropped := c.Stats()
	require.GreaterOrEqual(t, dropped, int64(3))

	close(release)
	c.Close()
}

func TestPostAfterClose(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(http.StatusOK))
	t.Cleanup(srv.Close)

	c := New(srv.URL + "?k=1")
	c.Close()
	c.Close()

	require.NotPanics(t, func() { c.Post(Entry{}) })
	_, _, dropped := c.Stats()
	require.Equal(t, int64(1), dropped)
	require.Empty(t, rec.got())
}

func TestDisabledClient(t *testing.T) {
	t.Parallel()

	c := New("")
	require.False(t, c.Enabled())
	c.Post(Entry{DoorOpen: true})
	c.Close()

	sent, failed, dropped := c.Stats()
	require.Zero(t, sent+failed+dropped)
}
