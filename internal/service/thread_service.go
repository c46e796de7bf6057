package service

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/escolahub/comms-api/internal/models"
	appErrors "github.com/escolahub/comms-api/pkg/errors"
)

type threadReplyReader interface {
	ListByCommunication(ctx context.Context, communicationID string) ([]models.Reply, error)
}

type guardianNameResolver interface {
	FirstLinkedStudentName(ctx context.Context, guardianID string) (string, error)
}

// ThreadService reconciles flat reply lists into per-guardian conversations.
// Ingest rebuilds from scratch; Merge applies one reply idempotently. Both
// tolerate redelivery: a reply id already present is never appended twice,
// which is what keeps the optimistic local insert and its realtime echo from
// producing duplicate messages.
type ThreadService struct {
	replies threadReplyReader
	roster  guardianNameResolver
	logger  *zap.Logger
}

// NewThreadService constructs the service.
func NewThreadService(replies threadReplyReader, roster guardianNameResolver, logger *zap.Logger) *ThreadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThreadService{replies: replies, roster: roster, logger: logger}
}

// Ingest groups replies by guardian id into conversations. Messages keep
// chronological order within each thread; the conversation list is ordered by
// latest activity, most recent first.
func (s *ThreadService) Ingest(replies []models.Reply) []models.Conversation {
	byGuardian := make(map[string]*models.Conversation)
	order := make([]string, 0)
	for _, reply := range replies {
		conv, ok := byGuardian[reply.GuardianID]
		if !ok {
			conv = &models.Conversation{GuardianID: reply.GuardianID, GuardianName: models.GuardianNamePlaceholder}
			byGuardian[reply.GuardianID] = conv
			order = append(order, reply.GuardianID)
		}
		if conv.HasMessage(reply.ID) {
			continue
		}
		conv.Messages = append(conv.Messages, reply)
	}

	conversations := make([]models.Conversation, 0, len(order))
	for _, guardianID := range order {
		conv := byGuardian[guardianID]
		finalizeConversation(conv)
		conversations = append(conversations, *conv)
	}
	sortConversations(conversations)
	return conversations
}

// Merge applies one reply to an existing conversation list. Calling it twice
// with the same reply yields the same result as calling it once.
func (s *ThreadService) Merge(existing []models.Conversation, reply models.Reply) []models.Conversation {
	for i := range existing {
		if existing[i].GuardianID != reply.GuardianID {
			continue
		}
		if existing[i].HasMessage(reply.ID) {
			return existing
		}
		existing[i].Messages = append(existing[i].Messages, reply)
		// Stable sort: replies sharing a timestamp keep insertion order so
		// already-rendered messages never swap places.
		sort.SliceStable(existing[i].Messages, func(a, b int) bool {
			return existing[i].Messages[a].CreatedAt.Before(existing[i].Messages[b].CreatedAt)
		})
		finalizeConversation(&existing[i])
		sortConversations(existing)
		return existing
	}

	conv := models.Conversation{GuardianID: reply.GuardianID, GuardianName: models.GuardianNamePlaceholder, Messages: []models.Reply{reply}}
	finalizeConversation(&conv)
	merged := append([]models.Conversation{conv}, existing...)
	sortConversations(merged)
	return merged
}

// ListConversations rebuilds the conversation map of one broadcast from the
// store and enriches guardian display names.
func (s *ThreadService) ListConversations(ctx context.Context, communicationID string) ([]models.Conversation, error) {
	replies, err := s.replies.ListByCommunication(ctx, communicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load replies")
	}
	conversations := s.Ingest(replies)
	s.EnrichNames(ctx, conversations)
	return conversations, nil
}

// EnrichNames resolves guardian display names that came back as the generic
// placeholder, using the guardian's linked student. Best-effort: lookup
// failures leave the placeholder in place.
func (s *ThreadService) EnrichNames(ctx context.Context, conversations []models.Conversation) {
	for i := range conversations {
		conv := &conversations[i]
		name := guardianNameFromMessages(conv)
		if name != "" && name != models.GuardianNamePlaceholder {
			conv.GuardianName = name
			continue
		}
		if s.roster == nil {
			continue
		}
		studentName, err := s.roster.FirstLinkedStudentName(ctx, conv.GuardianID)
		if err != nil || studentName == "" {
			s.logger.Debug("guardian name resolution skipped",
				zap.String("guardian_id", conv.GuardianID), zap.Error(err))
			continue
		}
		resolved := models.GuardianNamePlaceholder + " " + firstName(studentName)
		conv.GuardianName = resolved
		for j := range conv.Messages {
			if !conv.Messages[j].IsAdminReply && conv.Messages[j].AuthorName == models.GuardianNamePlaceholder {
				conv.Messages[j].AuthorName = resolved
			}
		}
	}
}

func guardianNameFromMessages(conv *models.Conversation) string {
	for i := range conv.Messages {
		if !conv.Messages[i].IsAdminReply {
			return conv.Messages[i].AuthorName
		}
	}
	return ""
}

func firstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return fullName
	}
	return fields[0]
}

// finalizeConversation recomputes every derived field from the message list.
// Derived state is never carried forward, so it cannot drift.
func finalizeConversation(conv *models.Conversation) {
	if len(conv.Messages) == 0 {
		conv.LastMessageAt = conv.LastMessageAt.UTC()
		conv.NeedsReply = false
		conv.UnreadCount = 0
		return
	}
	last := conv.Messages[len(conv.Messages)-1]
	conv.LastMessageAt = last.CreatedAt
	conv.NeedsReply = !last.IsAdminReply
	conv.UnreadCount = unreadReplies(conv.Messages)
	if name := guardianNameFromMessages(conv); name != "" {
		conv.GuardianName = name
	}
}

// unreadReplies counts guardian messages after the last admin message.
func unreadReplies(messages []models.Reply) int {
	count := 0
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].IsAdminReply {
			break
		}
		count++
	}
	return count
}

func sortConversations(conversations []models.Conversation) {
	sort.SliceStable(conversations, func(a, b int) bool {
		return conversations[a].LastMessageAt.After(conversations[b].LastMessageAt)
	})
}
