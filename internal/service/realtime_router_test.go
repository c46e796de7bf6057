package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/escolahub/comms-api/internal/models"
)

type mockReplyFetcher struct {
	replies map[string]*models.Reply
	err     error
	calls   int
}

func (m *mockReplyFetcher) GetByID(ctx context.Context, id string) (*models.Reply, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.replies[id]
	if !ok {
		return nil, assert.AnError
	}
	return r, nil
}

func feedPayload(t *testing.T, table, op string, row models.FeedRow) []byte {
	t.Helper()
	payload, err := json.Marshal(models.FeedEvent{Table: table, Operation: op, Row: row})
	require.NoError(t, err)
	return payload
}

func newTestRouter(t *testing.T, reader *mockReplyReader, fetcher *mockReplyFetcher) *RealtimeRouter {
	t.Helper()
	threads := NewThreadService(reader, nil, zap.NewNop())
	tracker := NewTrackerService(nil, threads, zap.NewNop())
	return NewRealtimeRouter(nil, fetcher, threads, tracker, nil, time.Second, zap.NewNop())
}

func receiveEvent(t *testing.T, ch <-chan models.ThreadEvent) models.ThreadEvent {
	t.Helper()
	select {
	case event := <-ch:
		return event
	default:
		t.Fatal("expected a thread event")
		return models.ThreadEvent{}
	}
}

func TestRealtimeRouterAppliesReplyEvent(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	existing := reply("r1", "g1", "Bom dia", false, base)
	incoming := reply("r2", "g1", "Recebido!", true, base.Add(time.Minute))

	reader := &mockReplyReader{replies: []models.Reply{existing}}
	fetcher := &mockReplyFetcher{replies: map[string]*models.Reply{"r2": &incoming}}
	router := newTestRouter(t, reader, fetcher)

	ch, snapshot, cancel, err := router.Subscribe(context.Background(), "comm-1")
	require.NoError(t, err)
	defer cancel()
	require.Len(t, snapshot, 1)
	assert.True(t, snapshot[0].NeedsReply)

	router.HandleEvent(context.Background(), feedPayload(t, models.FeedTableReplies, models.FeedOpInsert, models.FeedRow{ID: "r2", CommunicationID: "comm-1", GuardianID: "g1"}))

	event := receiveEvent(t, ch)
	assert.Equal(t, models.ThreadEventReply, event.Type)
	require.NotNil(t, event.Reply)
	assert.Equal(t, "r2", event.Reply.ID)
	assert.Equal(t, 0, event.PendingThreads)

	conversations := router.Conversations("comm-1")
	require.Len(t, conversations, 1)
	assert.Len(t, conversations[0].Messages, 2)
	assert.False(t, conversations[0].NeedsReply)
}

func TestRealtimeRouterDeduplicatesRedeliveredEvent(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	incoming := reply("r2", "g1", "Mais uma dúvida", false, base.Add(time.Minute))

	reader := &mockReplyReader{replies: []models.Reply{reply("r1", "g1", "Bom dia", false, base)}}
	fetcher := &mockReplyFetcher{replies: map[string]*models.Reply{"r2": &incoming}}
	router := newTestRouter(t, reader, fetcher)

	ch, _, cancel, err := router.Subscribe(context.Background(), "comm-1")
	require.NoError(t, err)
	defer cancel()

	payload := feedPayload(t, models.FeedTableReplies, models.FeedOpInsert, models.FeedRow{ID: "r2", CommunicationID: "comm-1", GuardianID: "g1"})
	router.HandleEvent(context.Background(), payload)
	router.HandleEvent(context.Background(), payload)

	receiveEvent(t, ch)
	select {
	case extra := <-ch:
		t.Fatalf("redelivered event produced a second notification: %+v", extra)
	default:
	}

	conversations := router.Conversations("comm-1")
	require.Len(t, conversations, 1)
	assert.Len(t, conversations[0].Messages, 2)
}

func TestRealtimeRouterDropsEventWhenRefetchFails(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	reader := &mockReplyReader{replies: []models.Reply{reply("r1", "g1", "Bom dia", false, base)}}
	fetcher := &mockReplyFetcher{err: assert.AnError}
	router := newTestRouter(t, reader, fetcher)

	ch, _, cancel, err := router.Subscribe(context.Background(), "comm-1")
	require.NoError(t, err)
	defer cancel()

	router.HandleEvent(context.Background(), feedPayload(t, models.FeedTableReplies, models.FeedOpInsert, models.FeedRow{ID: "r-gone", CommunicationID: "comm-1"}))

	select {
	case event := <-ch:
		t.Fatalf("dropped event reached the subscriber: %+v", event)
	default:
	}
	conversations := router.Conversations("comm-1")
	require.Len(t, conversations, 1)
	assert.Len(t, conversations[0].Messages, 1)
}

func TestRealtimeRouterIgnoresEventsWithoutViewers(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	incoming := reply("r1", "g1", "Bom dia", false, base)
	fetcher := &mockReplyFetcher{replies: map[string]*models.Reply{"r1": &incoming}}
	router := newTestRouter(t, &mockReplyReader{}, fetcher)

	router.HandleEvent(context.Background(), feedPayload(t, models.FeedTableReplies, models.FeedOpInsert, models.FeedRow{ID: "r1", CommunicationID: "comm-1"}))

	assert.Nil(t, router.Conversations("comm-1"))
}

func TestRealtimeRouterForwardsCommunicationEvents(t *testing.T) {
	reader := &mockReplyReader{}
	router := newTestRouter(t, reader, &mockReplyFetcher{})

	ch, _, cancel, err := router.Subscribe(context.Background(), "comm-1")
	require.NoError(t, err)
	defer cancel()

	router.HandleEvent(context.Background(), feedPayload(t, models.FeedTableCommunications, models.FeedOpInsert, models.FeedRow{ID: "comm-1", CommunicationID: "comm-1"}))

	event := receiveEvent(t, ch)
	assert.Equal(t, models.ThreadEventCommunication, event.Type)
	assert.Equal(t, "comm-1", event.CommunicationID)
}

func TestRealtimeRouterDropsMalformedPayload(t *testing.T) {
	router := newTestRouter(t, &mockReplyReader{}, &mockReplyFetcher{})
	router.HandleEvent(context.Background(), []byte("not json"))
}

func TestRealtimeRouterSubscribeCancelDetachesViewer(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	reader := &mockReplyReader{replies: []models.Reply{reply("r1", "g1", "Bom dia", false, base)}}
	router := newTestRouter(t, reader, &mockReplyFetcher{})

	_, _, cancel, err := router.Subscribe(context.Background(), "comm-1")
	require.NoError(t, err)
	require.NotNil(t, router.Conversations("comm-1"))

	cancel()
	assert.Nil(t, router.Conversations("comm-1"))
}

func TestRealtimeRouterSubscriberChurnDuringFanOut(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	replies := make(map[string]*models.Reply, 64)
	payloads := make([][]byte, 0, 64)
	for i := 0; i < 64; i++ {
		id := fmt.Sprintf("r%d", i)
		incoming := reply(id, "g1", "Oi", false, base.Add(time.Duration(i)*time.Second))
		replies[id] = &incoming
		payloads = append(payloads, feedPayload(t, models.FeedTableReplies, models.FeedOpInsert, models.FeedRow{ID: id, CommunicationID: "comm-1", GuardianID: "g1"}))
	}
	router := newTestRouter(t, &mockReplyReader{}, &mockReplyFetcher{replies: replies})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			router.HandleEvent(context.Background(), payloads[i%len(payloads)])
		}
	}()

	// Viewers attach and detach while events are in flight. A send must
	// never land on a channel the detach already closed.
	for i := 0; i < 200; i++ {
		_, _, cancel, err := router.Subscribe(context.Background(), "comm-1")
		require.NoError(t, err)
		cancel()
	}
	<-done
}
