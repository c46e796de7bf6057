package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/escolahub/comms-api/internal/models"
)

func newRecipientRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRecipientRepositoryInsertBatch(t *testing.T) {
	db, mock, cleanup := newRecipientRepoMock(t)
	defer cleanup()

	repo := NewRecipientRepository(db)
	pairs := []models.RecipientPair{
		{StudentID: "s1", GuardianID: "g1"},
		{StudentID: "s2", GuardianID: "g1"},
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO communication_recipients")).
		WillReturnResult(sqlmock.NewResult(0, 2))

	inserted, err := repo.InsertBatch(context.Background(), "comm-1", pairs)
	require.NoError(t, err)
	require.Equal(t, 2, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientRepositoryInsertBatchConflictSkipsExisting(t *testing.T) {
	db, mock, cleanup := newRecipientRepoMock(t)
	defer cleanup()

	repo := NewRecipientRepository(db)
	// One of the two pairs already exists; ON CONFLICT swallows it.
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (communication_id, student_id, guardian_id) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.InsertBatch(context.Background(), "comm-1", []models.RecipientPair{
		{StudentID: "s1", GuardianID: "g1"},
		{StudentID: "s2", GuardianID: "g1"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)
}

func TestRecipientRepositoryInsertBatchEmpty(t *testing.T) {
	db, _, cleanup := newRecipientRepoMock(t)
	defer cleanup()

	repo := NewRecipientRepository(db)
	inserted, err := repo.InsertBatch(context.Background(), "comm-1", nil)
	require.NoError(t, err)
	require.Equal(t, 0, inserted)
}

func TestRecipientRepositoryMarkReadFirstTime(t *testing.T) {
	db, mock, cleanup := newRecipientRepoMock(t)
	defer cleanup()

	repo := NewRecipientRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE communication_recipients SET read_at = $2 WHERE id = $1 AND read_at IS NULL")).
		WithArgs("rec-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := repo.MarkRead(context.Background(), "rec-1")
	require.NoError(t, err)
	require.False(t, result.WasAlreadyRead)
	require.False(t, result.ReadAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientRepositoryMarkReadAlreadyRead(t *testing.T) {
	db, mock, cleanup := newRecipientRepoMock(t)
	defer cleanup()

	repo := NewRecipientRepository(db)
	readAt := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE communication_recipients SET read_at = $2 WHERE id = $1 AND read_at IS NULL")).
		WithArgs("rec-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT read_at FROM communication_recipients WHERE id = $1")).
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows([]string{"read_at"}).AddRow(readAt))

	result, err := repo.MarkRead(context.Background(), "rec-1")
	require.NoError(t, err)
	require.True(t, result.WasAlreadyRead)
	require.Equal(t, readAt, result.ReadAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientRepositoryMarkReadUnknownRecipient(t *testing.T) {
	db, mock, cleanup := newRecipientRepoMock(t)
	defer cleanup()

	repo := NewRecipientRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE communication_recipients SET read_at = $2")).
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT read_at FROM communication_recipients WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.MarkRead(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRecipientRepositoryRecordResponseOnce(t *testing.T) {
	db, mock, cleanup := newRecipientRepoMock(t)
	defer cleanup()

	repo := NewRecipientRepository(db)
	response := models.RecipientResponse{SelectedOption: "Sim", AnsweredAt: time.Now().UTC()}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE communication_recipients SET response = $2 WHERE id = $1 AND response IS NULL")).
		WithArgs("rec-1", response).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.RecordResponse(context.Background(), "rec-1", response))

	// Second answer hits zero rows and reports sql.ErrNoRows.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE communication_recipients SET response = $2 WHERE id = $1 AND response IS NULL")).
		WithArgs("rec-1", response).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.RecordResponse(context.Background(), "rec-1", response), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientRepositorySetArchived(t *testing.T) {
	db, mock, cleanup := newRecipientRepoMock(t)
	defer cleanup()

	repo := NewRecipientRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE communication_recipients SET is_archived = $2 WHERE id = $1")).
		WithArgs("rec-1", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetArchived(context.Background(), "rec-1", true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientRepositoryUnreadCountForGuardian(t *testing.T) {
	db, mock, cleanup := newRecipientRepoMock(t)
	defer cleanup()

	repo := NewRecipientRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM communication_recipients")).
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.UnreadCountForGuardian(context.Background(), "g1")
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
