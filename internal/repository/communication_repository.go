package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/escolahub/comms-api/internal/models"
)

// CommunicationRepository provides persistence for broadcasts.
type CommunicationRepository struct {
	db *sqlx.DB
}

// NewCommunicationRepository creates the repository.
func NewCommunicationRepository(db *sqlx.DB) *CommunicationRepository {
	return &CommunicationRepository{db: db}
}

const communicationColumns = `id, channel, title, body, priority, interactive, target_scope, target_ids, recipient_count, created_by, created_at`

// List returns broadcasts matching the filter, most recent first.
func (r *CommunicationRepository) List(ctx context.Context, filter models.CommunicationFilter) ([]models.Communication, int, error) {
	base := "FROM communications"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Channel != "" {
		where = append(where, fmt.Sprintf("channel = $%d", len(args)+1))
		args = append(args, string(filter.Channel))
	}
	if filter.Priority != "" {
		where = append(where, fmt.Sprintf("priority = $%d", len(args)+1))
		args = append(args, string(filter.Priority))
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR body ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s
%s WHERE %s
ORDER BY (priority = 'HIGH') DESC, created_at DESC
LIMIT %d OFFSET %d`, communicationColumns, base, whereClause, size, offset)
	var communications []models.Communication
	if err := r.db.SelectContext(ctx, &communications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list communications: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count communications: %w", err)
	}
	return communications, total, nil
}

// GetByID returns a broadcast by identifier.
func (r *CommunicationRepository) GetByID(ctx context.Context, id string) (*models.Communication, error) {
	query := fmt.Sprintf("SELECT %s FROM communications WHERE id = $1", communicationColumns)
	var communication models.Communication
	if err := r.db.GetContext(ctx, &communication, query, id); err != nil {
		return nil, err
	}
	return &communication, nil
}

// Create inserts a new broadcast.
func (r *CommunicationRepository) Create(ctx context.Context, communication *models.Communication) error {
	if communication.ID == "" {
		communication.ID = uuid.NewString()
	}
	if communication.CreatedAt.IsZero() {
		communication.CreatedAt = time.Now().UTC()
	}
	if communication.TargetIDs == nil {
		communication.TargetIDs = pq.StringArray{}
	}
	query := `INSERT INTO communications (id, channel, title, body, priority, interactive, target_scope, target_ids, recipient_count, created_by, created_at)
VALUES (:id, :channel, :title, :body, :priority, :interactive, :target_scope, :target_ids, :recipient_count, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, communication); err != nil {
		return fmt.Errorf("create communication: %w", err)
	}
	return nil
}

// BackfillTargetMeta records the resolved recipient count after distribution.
// The only permitted mutation of a broadcast.
func (r *CommunicationRepository) BackfillTargetMeta(ctx context.Context, id string, recipientCount int) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE communications SET recipient_count = $2 WHERE id = $1", id, recipientCount); err != nil {
		return fmt.Errorf("backfill communication %s: %w", id, err)
	}
	return nil
}

// DashboardMetrics invokes the aggregation function backing the staff
// dashboard. Pagination happens inside the function.
func (r *CommunicationRepository) DashboardMetrics(ctx context.Context, page, pageSize int) ([]models.CommunicationMetrics, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	const query = `SELECT communication_id, title, recipients, read_count, read_ratio, reply_threads, pending_threads
FROM communication_dashboard_metrics($1, $2)`
	var metrics []models.CommunicationMetrics
	if err := r.db.SelectContext(ctx, &metrics, query, page, pageSize); err != nil {
		return nil, fmt.Errorf("dashboard metrics: %w", err)
	}
	return metrics, nil
}
