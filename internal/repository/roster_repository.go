package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/escolahub/comms-api/internal/models"
)

// RosterRepository reads the school roster slices needed for audience
// expansion and guardian name resolution.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository creates the repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// ActiveStudentIDs returns every active student of the tenant.
func (r *RosterRepository) ActiveStudentIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids,
		"SELECT id FROM students WHERE active = TRUE ORDER BY id"); err != nil {
		return nil, fmt.Errorf("active students: %w", err)
	}
	return ids, nil
}

// StudentIDsByClasses returns students currently enrolled in the given classes.
func (r *RosterRepository) StudentIDsByClasses(ctx context.Context, classIDs []string) ([]string, error) {
	if len(classIDs) == 0 {
		return nil, nil
	}
	var ids []string
	const query = `SELECT DISTINCT e.student_id FROM enrollments e
JOIN students s ON s.id = e.student_id
WHERE e.class_id = ANY($1) AND e.status = 'ACTIVE' AND s.active = TRUE
ORDER BY e.student_id`
	if err := r.db.SelectContext(ctx, &ids, query, pq.Array(classIDs)); err != nil {
		return nil, fmt.Errorf("students by classes: %w", err)
	}
	return ids, nil
}

// GuardianLinksForStudents fans each student out to all linked guardians.
func (r *RosterRepository) GuardianLinksForStudents(ctx context.Context, studentIDs []string) ([]models.GuardianLink, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	var links []models.GuardianLink
	const query = `SELECT gs.student_id, s.full_name AS student_name, gs.guardian_id,
        COALESCE(p.full_name, '` + models.GuardianNamePlaceholder + `') AS guardian_name,
        COALESCE(p.push_tag, '') AS guardian_push_tag
        FROM guardian_students gs
        JOIN students s ON s.id = gs.student_id
        LEFT JOIN profiles p ON p.id = gs.guardian_id
        WHERE gs.student_id = ANY($1)
        ORDER BY gs.student_id, gs.guardian_id`
	if err := r.db.SelectContext(ctx, &links, query, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("guardian links: %w", err)
	}
	return links, nil
}

// FirstLinkedStudentName resolves the fallback display name source for a
// guardian whose profile join yields the placeholder.
func (r *RosterRepository) FirstLinkedStudentName(ctx context.Context, guardianID string) (string, error) {
	var name string
	const query = `SELECT s.full_name FROM guardian_students gs
JOIN students s ON s.id = gs.student_id
WHERE gs.guardian_id = $1
ORDER BY s.full_name ASC
LIMIT 1`
	if err := r.db.GetContext(ctx, &name, query, guardianID); err != nil {
		return "", err
	}
	return name, nil
}
