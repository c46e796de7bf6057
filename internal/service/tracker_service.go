package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/escolahub/comms-api/internal/models"
	appErrors "github.com/escolahub/comms-api/pkg/errors"
)

type trackerRecipientStore interface {
	MarkRead(ctx context.Context, id string) (*models.MarkReadResult, error)
	UnreadCountForGuardian(ctx context.Context, guardianID string) (int, error)
}

// TrackerService derives pending/read state. Thread-level state is a pure
// function of the message list; broadcast-level read state lives on the
// recipient row and is written at most once.
type TrackerService struct {
	recipients trackerRecipientStore
	threads    *ThreadService
	cache      *CacheService
	logger     *zap.Logger
}

// NewTrackerService constructs the service.
func NewTrackerService(recipients trackerRecipientStore, threads *ThreadService, logger *zap.Logger) *TrackerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackerService{recipients: recipients, threads: threads, logger: logger}
}

// AttachDashboardCache registers the cache holding dashboard aggregates so a
// first-time read can invalidate the read-ratio numbers.
func (s *TrackerService) AttachDashboardCache(cache *CacheService) {
	s.cache = cache
}

// NeedsReply reports whether the ball is in the staff's court: true iff the
// thread's last message was authored by the guardian side.
func (s *TrackerService) NeedsReply(conv models.Conversation) bool {
	last := conv.LastMessage()
	return last != nil && !last.IsAdminReply
}

// UnreadRepliesCount counts guardian messages after the last admin message.
func (s *TrackerService) UnreadRepliesCount(conv models.Conversation) int {
	return unreadReplies(conv.Messages)
}

// PendingCount counts distinct guardian threads currently awaiting a staff
// reply. Always recomputed over the full conversation set, never adjusted
// incrementally.
func (s *TrackerService) PendingCount(conversations []models.Conversation) int {
	count := 0
	for i := range conversations {
		if s.NeedsReply(conversations[i]) {
			count++
		}
	}
	return count
}

// ThreadsNeedingReply re-derives the pending badge of one broadcast from the
// full reply set.
func (s *TrackerService) ThreadsNeedingReply(ctx context.Context, communicationID string) (int, error) {
	conversations, err := s.threads.ListConversations(ctx, communicationID)
	if err != nil {
		return 0, err
	}
	return s.PendingCount(conversations), nil
}

// MarkRead sets the recipient's read_at at most once. Redundant calls are
// safe and report the first-set timestamp.
func (s *TrackerService) MarkRead(ctx context.Context, recipientID string) (*models.MarkReadResult, error) {
	result, err := s.recipients.MarkRead(ctx, recipientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "recipient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark recipient read")
	}
	if !result.WasAlreadyRead && s.cache.Enabled() {
		if err := s.cache.Invalidate(ctx, "comms:dashboard:*"); err != nil {
			s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
		}
	}
	return result, nil
}

// UnreadBroadcasts returns the guardian's inbox badge count.
func (s *TrackerService) UnreadBroadcasts(ctx context.Context, guardianID string) (int, error) {
	count, err := s.recipients.UnreadCountForGuardian(ctx, guardianID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread broadcasts")
	}
	return count, nil
}
