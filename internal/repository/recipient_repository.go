package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/escolahub/comms-api/internal/models"
)

// RecipientRepository provides persistence for delivery records.
type RecipientRepository struct {
	db *sqlx.DB
}

// NewRecipientRepository creates the repository.
func NewRecipientRepository(db *sqlx.DB) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// InsertBatch inserts one batch of recipient pairs for a broadcast. The
// ON CONFLICT guard enforces pair uniqueness even across redelivered batches.
func (r *RecipientRepository) InsertBatch(ctx context.Context, communicationID string, pairs []models.RecipientPair) (int, error) {
	if len(pairs) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	values := make([]string, 0, len(pairs))
	args := make([]interface{}, 0, len(pairs)*5)
	for i, pair := range pairs {
		base := i * 5
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5))
		args = append(args, uuid.NewString(), communicationID, pair.StudentID, pair.GuardianID, now)
	}
	query := fmt.Sprintf(`INSERT INTO communication_recipients (id, communication_id, student_id, guardian_id, created_at)
VALUES %s
ON CONFLICT (communication_id, student_id, guardian_id) DO NOTHING`, strings.Join(values, ", "))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert recipient batch: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return len(pairs), nil
	}
	return int(inserted), nil
}

// GetByID returns a recipient row.
func (r *RecipientRepository) GetByID(ctx context.Context, id string) (*models.Recipient, error) {
	const query = `SELECT id, communication_id, student_id, guardian_id, read_at, is_archived, response, created_at
FROM communication_recipients WHERE id = $1`
	var recipient models.Recipient
	if err := r.db.GetContext(ctx, &recipient, query, id); err != nil {
		return nil, err
	}
	return &recipient, nil
}

// MarkRead sets read_at at most once. A second call is a no-op that reports
// the original timestamp.
func (r *RecipientRepository) MarkRead(ctx context.Context, id string) (*models.MarkReadResult, error) {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		"UPDATE communication_recipients SET read_at = $2 WHERE id = $1 AND read_at IS NULL", id, now)
	if err != nil {
		return nil, fmt.Errorf("mark recipient %s read: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected > 0 {
		return &models.MarkReadResult{ReadAt: now, WasAlreadyRead: false}, nil
	}
	var readAt *time.Time
	if err := r.db.GetContext(ctx, &readAt, "SELECT read_at FROM communication_recipients WHERE id = $1", id); err != nil {
		return nil, err
	}
	if readAt == nil {
		return nil, sql.ErrNoRows
	}
	return &models.MarkReadResult{ReadAt: *readAt, WasAlreadyRead: true}, nil
}

// RecordResponse stores a guardian's interactive answer once. Returns
// sql.ErrNoRows when the recipient is missing or already answered.
func (r *RecipientRepository) RecordResponse(ctx context.Context, id string, response models.RecipientResponse) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE communication_recipients SET response = $2 WHERE id = $1 AND response IS NULL", id, response)
	if err != nil {
		return fmt.Errorf("record response for %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetArchived toggles the per-recipient archive flag.
func (r *RecipientRepository) SetArchived(ctx context.Context, id string, archived bool) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE communication_recipients SET is_archived = $2 WHERE id = $1", id, archived); err != nil {
		return fmt.Errorf("archive recipient %s: %w", id, err)
	}
	return nil
}

// UnreadCountForGuardian counts unarchived broadcasts the guardian has not
// opened yet, the inbox badge.
func (r *RecipientRepository) UnreadCountForGuardian(ctx context.Context, guardianID string) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM communication_recipients
WHERE guardian_id = $1 AND read_at IS NULL AND is_archived = FALSE`
	if err := r.db.GetContext(ctx, &count, query, guardianID); err != nil {
		return 0, fmt.Errorf("unread count for guardian %s: %w", guardianID, err)
	}
	return count, nil
}

// CountByCommunication returns the number of delivery records of a broadcast.
func (r *RecipientRepository) CountByCommunication(ctx context.Context, communicationID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM communication_recipients WHERE communication_id = $1", communicationID); err != nil {
		return 0, fmt.Errorf("count recipients for %s: %w", communicationID, err)
	}
	return count, nil
}
