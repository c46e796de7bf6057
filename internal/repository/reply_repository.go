package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/escolahub/comms-api/internal/models"
)

// ReplyRepository provides persistence for thread replies. The profile join
// is flattened here so everything above it sees one canonical row shape.
type ReplyRepository struct {
	db *sqlx.DB
}

// NewReplyRepository creates the repository.
func NewReplyRepository(db *sqlx.DB) *ReplyRepository {
	return &ReplyRepository{db: db}
}

const replySelect = `SELECT r.id, r.communication_id, r.guardian_id, r.content, r.is_admin_reply, r.attachment_path, r.created_at,
        COALESCE(p.full_name, '` + models.GuardianNamePlaceholder + `') AS author_name
        FROM communication_replies r
        LEFT JOIN profiles p ON p.id = CASE WHEN r.is_admin_reply THEN r.author_id ELSE r.guardian_id END`

// ListByCommunication returns every reply of a broadcast in chronological
// order, the input the reconciler rebuilds threads from.
func (r *ReplyRepository) ListByCommunication(ctx context.Context, communicationID string) ([]models.Reply, error) {
	query := replySelect + ` WHERE r.communication_id = $1 ORDER BY r.created_at ASC, r.id ASC`
	var replies []models.Reply
	if err := r.db.SelectContext(ctx, &replies, query, communicationID); err != nil {
		return nil, fmt.Errorf("list replies for %s: %w", communicationID, err)
	}
	return replies, nil
}

// GetByID returns one fully-joined reply. Used by the realtime router to
// hydrate partial change events.
func (r *ReplyRepository) GetByID(ctx context.Context, id string) (*models.Reply, error) {
	query := replySelect + ` WHERE r.id = $1`
	var reply models.Reply
	if err := r.db.GetContext(ctx, &reply, query, id); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Create inserts a reply. AuthorID is the staff profile for admin replies and
// the guardian profile otherwise.
func (r *ReplyRepository) Create(ctx context.Context, reply *models.Reply, authorID string) error {
	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO communication_replies (id, communication_id, guardian_id, author_id, content, is_admin_reply, attachment_path, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query,
		reply.ID, reply.CommunicationID, reply.GuardianID, authorID,
		reply.Content, reply.IsAdminReply, reply.AttachmentPath, reply.CreatedAt); err != nil {
		return fmt.Errorf("create reply: %w", err)
	}
	return nil
}
