package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainchannel "github.com/chefware/backoffice/internal/domain/channel"
)

func TestStreamClient_Snapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"order-1":{"total":10},"order-2":{"total":20}}`)
	}))
	defer server.Close()

	client := NewStreamClient(server.URL, "orders", "secret", 5*time.Second)

	snapshot, err := client.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snapshot, 2)
	assert.JSONEq(t, `{"total":10}`, string(snapshot["order-1"]))
}

func TestStreamClient_SnapshotNullBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `null`)
	}))
	defer server.Close()

	client := NewStreamClient(server.URL, "orders", "", 5*time.Second)

	snapshot, err := client.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snapshot)
}

func TestStreamClient_SnapshotErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewStreamClient(server.URL, "orders", "", 5*time.Second)

	_, err := client.Snapshot(context.Background())
	assert.Error(t, err)
}

func TestStreamClient_UpdateFields(t *testing.T) {
	var gotBody []byte
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewStreamClient(server.URL, "orders", "", 5*time.Second)

	err := client.UpdateFields(context.Background(), "order-1", map[string]any{"status": "confirmed"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/orders/order-1", gotPath)
	assert.JSONEq(t, `{"status":"confirmed"}`, string(gotBody))
}

func TestStreamClient_SubscribeReceivesEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orders/stream", r.URL.Path)
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		fmt.Fprint(w, "event: added\n")
		fmt.Fprint(w, `data: {"key":"order-1","value":{"total":10}}`+"\n\n")
		fmt.Fprint(w, "event: keep-alive\ndata: {}\n\n")
		fmt.Fprint(w, "event: removed\n")
		fmt.Fprint(w, `data: {"key":"order-1","value":null}`+"\n\n")
		flusher.Flush()

		// Hold the connection open until the client goes away
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewStreamClient(server.URL, "orders", "", 5*time.Second)

	ctx := context.Background()
	sub, err := client.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Cancel()

	var events []domainchannel.RawEvent
	timeout := time.After(2 * time.Second)
	for len(events) < 2 {
		select {
		case ev := <-sub.Events():
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %d", len(events))
		}
	}

	assert.Equal(t, domainchannel.EventAdded, events[0].Kind)
	assert.Equal(t, "order-1", events[0].Key)
	assert.JSONEq(t, `{"total":10}`, string(events[0].Payload))
	assert.Equal(t, domainchannel.EventRemoved, events[1].Kind)
}

func TestStreamClient_CancelClosesStream(t *testing.T) {
	connected := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		close(connected)
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewStreamClient(server.URL, "orders", "", 5*time.Second)

	sub, err := client.Subscribe(context.Background())
	require.NoError(t, err)

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("stream never connected")
	}

	sub.Cancel()

	// The event channel closes once the stream loop winds down
	select {
	case _, open := <-sub.Events():
		assert.False(t, open, "event channel should be closed after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("event channel not closed after cancel")
	}
}

func TestMemorySource(t *testing.T) {
	src := NewMemorySource()

	sub, err := src.Subscribe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.SubscriberCount())

	src.Emit(domainchannel.EventAdded, "order-1", json.RawMessage(`{"total":10}`))

	ev := <-sub.Events()
	assert.Equal(t, "order-1", ev.Key)
	assert.Equal(t, domainchannel.EventAdded, ev.Kind)

	snapshot, err := src.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snapshot, 1)

	require.NoError(t, src.UpdateFields(context.Background(), "order-1", map[string]any{"status": "confirmed"}))
	updates := src.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, "order-1", updates[0].Key)

	sub.Cancel()
	assert.Eventually(t, func() bool {
		return src.SubscriberCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestMemorySource_SlowSubscriberDoesNotBlockEmit(t *testing.T) {
	src := NewMemorySource()

	// Subscriber that never reads, so its buffer fills up
	sub, err := src.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			src.Emit(domainchannel.EventAdded, fmt.Sprintf("order-%d", i), json.RawMessage(`{}`))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit blocked on a full subscriber buffer")
	}

	snapshot, err := src.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snapshot, 200, "stored state is complete even when deliveries are dropped")
}
