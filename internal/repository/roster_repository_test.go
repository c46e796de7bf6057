package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/escolahub/comms-api/internal/models"
)

func newRosterRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRosterRepositoryActiveStudentIDs(t *testing.T) {
	db, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()

	repo := NewRosterRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM students WHERE active = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s1").AddRow("s2"))

	ids, err := repo.ActiveStudentIDs(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"s1", "s2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryStudentIDsByClasses(t *testing.T) {
	db, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()

	repo := NewRosterRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.class_id = ANY($1) AND e.status = 'ACTIVE'")).
		WithArgs(pq.Array([]string{"class-1"})).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("s1").AddRow("s3"))

	ids, err := repo.StudentIDsByClasses(context.Background(), []string{"class-1"})
	require.NoError(t, err)
	require.Equal(t, []string{"s1", "s3"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryStudentIDsByClassesEmptyInput(t *testing.T) {
	db, _, cleanup := newRosterRepoMock(t)
	defer cleanup()

	repo := NewRosterRepository(db)
	ids, err := repo.StudentIDsByClasses(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestRosterRepositoryGuardianLinksForStudents(t *testing.T) {
	db, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()

	repo := NewRosterRepository(db)
	rows := sqlmock.NewRows([]string{"student_id", "student_name", "guardian_id", "guardian_name", "guardian_push_tag"}).
		AddRow("s1", "Maria Clara Souza", "g1", "Ana Paula", "tag-1").
		AddRow("s2", "Pedro Souza", "g1", models.GuardianNamePlaceholder, "")
	mock.ExpectQuery(regexp.QuoteMeta("FROM guardian_students gs")).
		WithArgs(pq.Array([]string{"s1", "s2"})).
		WillReturnRows(rows)

	links, err := repo.GuardianLinksForStudents(context.Background(), []string{"s1", "s2"})
	require.NoError(t, err)
	require.Len(t, links, 2)
	require.Equal(t, "g1", links[0].GuardianID)
	require.Equal(t, models.GuardianNamePlaceholder, links[1].GuardianName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryFirstLinkedStudentName(t *testing.T) {
	db, mock, cleanup := newRosterRepoMock(t)
	defer cleanup()

	repo := NewRosterRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY s.full_name ASC")).
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"full_name"}).AddRow("Maria Clara Souza"))

	name, err := repo.FirstLinkedStudentName(context.Background(), "g1")
	require.NoError(t, err)
	require.Equal(t, "Maria Clara Souza", name)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY s.full_name ASC")).
		WithArgs("g-unknown").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.FirstLinkedStudentName(context.Background(), "g-unknown")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
