package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/escolahub/comms-api/internal/models"
)

type routerReplyFetcher interface {
	GetByID(ctx context.Context, id string) (*models.Reply, error)
}

// Feed event outcomes recorded on metrics.
const (
	feedOutcomeApplied   = "applied"
	feedOutcomeDuplicate = "duplicate"
	feedOutcomeDropped   = "dropped"
	feedOutcomeIgnored   = "ignored"
)

// RealtimeRouter consumes the changefeed and keeps per-broadcast conversation
// state for connected viewers. Change events carry only a partial row; the
// router refetches the joined row, classifies by table and merges through the
// reconciler. The feed is at-least-once: every merge is idempotent by reply
// id, so redelivery and double subscription are harmless.
type RealtimeRouter struct {
	client     *redis.Client
	replies    routerReplyFetcher
	reconciler *ThreadService
	tracker    *TrackerService
	metrics    *MetricsService
	logger     *zap.Logger
	backoff    time.Duration

	mu     sync.Mutex
	states map[string]*threadState

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

type threadState struct {
	conversations []models.Conversation
	subscribers   map[chan models.ThreadEvent]struct{}
}

// NewRealtimeRouter constructs the router.
func NewRealtimeRouter(client *redis.Client, replies routerReplyFetcher, reconciler *ThreadService, tracker *TrackerService, metrics *MetricsService, backoff time.Duration, logger *zap.Logger) *RealtimeRouter {
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeRouter{
		client:     client,
		replies:    replies,
		reconciler: reconciler,
		tracker:    tracker,
		metrics:    metrics,
		logger:     logger,
		backoff:    backoff,
		states:     make(map[string]*threadState),
	}
}

// Start begins consuming the feed channels. Safe to call once.
func (r *RealtimeRouter) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.client == nil {
		return
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.consume()
	r.started = true
	r.logger.Sugar().Infow("realtime router started",
		"channels", []string{FeedChannel(models.FeedTableReplies), FeedChannel(models.FeedTableCommunications)})
}

// Stop cancels the consumer and waits for it to exit.
func (r *RealtimeRouter) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.cancel()
	r.mu.Unlock()
	r.wg.Wait()
	r.logger.Sugar().Infow("realtime router stopped")
}

// consume runs the subscribe loop. On subscription drop it resubscribes after
// a backoff; missed events are not replayed, viewers refetch on refocus.
func (r *RealtimeRouter) consume() {
	defer r.wg.Done()
	channels := []string{
		FeedChannel(models.FeedTableReplies),
		FeedChannel(models.FeedTableCommunications),
		FeedChannel(models.FeedTableRecipients),
	}
	for {
		if r.ctx.Err() != nil {
			return
		}
		pubsub := r.client.Subscribe(r.ctx, channels...)
		if _, err := pubsub.Receive(r.ctx); err != nil {
			_ = pubsub.Close()
			if r.ctx.Err() != nil {
				return
			}
			r.logger.Warn("feed subscribe failed, retrying", zap.Error(err))
			r.wait()
			continue
		}
		ch := pubsub.Channel()
	recv:
		for {
			select {
			case <-r.ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				r.HandleEvent(r.ctx, []byte(msg.Payload))
			}
		}
		_ = pubsub.Close()
		r.logger.Warn("feed subscription dropped, resubscribing")
		r.wait()
	}
}

func (r *RealtimeRouter) wait() {
	timer := time.NewTimer(r.backoff)
	defer timer.Stop()
	select {
	case <-r.ctx.Done():
	case <-timer.C:
	}
}

// HandleEvent classifies one raw feed message and dispatches it. Any failure
// drops the event without disturbing the subscription.
func (r *RealtimeRouter) HandleEvent(ctx context.Context, payload []byte) {
	var event models.FeedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		r.logger.Debug("unparseable feed event dropped", zap.Error(err))
		r.recordFeedEvent("unknown", feedOutcomeDropped)
		return
	}
	switch event.Table {
	case models.FeedTableReplies:
		r.handleReplyEvent(ctx, event)
	case models.FeedTableCommunications:
		r.notify(event.Row.ID, models.ThreadEvent{
			Type:            models.ThreadEventCommunication,
			CommunicationID: event.Row.ID,
		})
		r.recordFeedEvent(event.Table, feedOutcomeApplied)
	case models.FeedTableRecipients:
		r.notify(event.Row.CommunicationID, models.ThreadEvent{
			Type:            models.ThreadEventRecipient,
			CommunicationID: event.Row.CommunicationID,
		})
		r.recordFeedEvent(event.Table, feedOutcomeApplied)
	default:
		r.recordFeedEvent(event.Table, feedOutcomeIgnored)
	}
}

// notify fans one event out to the subscribers of a broadcast, dropping it
// for any subscriber whose buffer is full. Sends stay inside the lock:
// subscriber channels are closed under the same lock on detach, so a send can
// never land on a closed channel.
func (r *RealtimeRouter) notify(communicationID string, event models.ThreadEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[communicationID]
	if !ok {
		return
	}
	for ch := range state.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (r *RealtimeRouter) handleReplyEvent(ctx context.Context, event models.FeedEvent) {
	reply, err := r.replies.GetByID(ctx, event.Row.ID)
	if err != nil {
		// Row gone or not visible under row-level security: drop silently.
		r.logger.Debug("reply refetch failed, event dropped",
			zap.String("reply_id", event.Row.ID), zap.Error(err))
		r.recordFeedEvent(event.Table, feedOutcomeDropped)
		return
	}

	r.mu.Lock()
	state, ok := r.states[reply.CommunicationID]
	if !ok {
		// Nobody is viewing this broadcast; counters on the next full
		// rebuild will pick the reply up.
		r.mu.Unlock()
		r.recordFeedEvent(event.Table, feedOutcomeIgnored)
		return
	}
	duplicate := false
	for i := range state.conversations {
		if state.conversations[i].GuardianID == reply.GuardianID && state.conversations[i].HasMessage(reply.ID) {
			duplicate = true
			break
		}
	}
	if duplicate {
		r.mu.Unlock()
		r.recordFeedEvent(event.Table, feedOutcomeDuplicate)
		return
	}
	state.conversations = r.reconciler.Merge(state.conversations, *reply)
	threadEvent := models.ThreadEvent{
		Type:            models.ThreadEventReply,
		CommunicationID: reply.CommunicationID,
		Reply:           reply,
		PendingThreads:  r.tracker.PendingCount(state.conversations),
	}
	// Fan out under the lock; detach closes channels under the same lock.
	for ch := range state.subscribers {
		select {
		case ch <- threadEvent:
		default:
			// Slow consumer: drop rather than stall the feed loop. The
			// viewer heals with a refetch on refocus.
		}
	}
	r.mu.Unlock()

	r.recordFeedEvent(event.Table, feedOutcomeApplied)
}

// Subscribe attaches a viewer to one broadcast's thread stream. The initial
// conversation state is rebuilt from the store so merges have a base to land
// on. The returned cancel func must be called when the viewer disconnects.
func (r *RealtimeRouter) Subscribe(ctx context.Context, communicationID string) (<-chan models.ThreadEvent, []models.Conversation, func(), error) {
	conversations, err := r.reconciler.ListConversations(ctx, communicationID)
	if err != nil {
		return nil, nil, nil, err
	}

	ch := make(chan models.ThreadEvent, 16)
	r.mu.Lock()
	state, ok := r.states[communicationID]
	if !ok {
		state = &threadState{subscribers: make(map[chan models.ThreadEvent]struct{})}
		r.states[communicationID] = state
	}
	// The freshest rebuild wins; merges since the previous rebuild are a
	// subset of what the store just returned.
	state.conversations = conversations
	state.subscribers[ch] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if state, ok := r.states[communicationID]; ok {
			delete(state.subscribers, ch)
			if len(state.subscribers) == 0 {
				delete(r.states, communicationID)
			}
		}
		// Closing under the lock keeps fan-out sends, which also hold it,
		// from racing the close.
		close(ch)
		r.mu.Unlock()
	}
	return ch, conversations, cancel, nil
}

// Conversations returns the current in-memory state for a broadcast, or nil
// when no viewer is attached.
func (r *RealtimeRouter) Conversations(communicationID string) []models.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[communicationID]
	if !ok {
		return nil
	}
	out := make([]models.Conversation, len(state.conversations))
	copy(out, state.conversations)
	return out
}

func (r *RealtimeRouter) recordFeedEvent(table, outcome string) {
	if r.metrics != nil {
		r.metrics.RecordFeedEvent(table, outcome)
	}
}
