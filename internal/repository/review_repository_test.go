package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
)

func TestReviewRepositoryResolve(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewReviewRepository(db)
	uow := beginUOW(t, db, mock)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE pending_reviews")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Resolve(context.Background(), uow, ResolveReviewParams{
		ID:         "rev-1",
		ReviewedAt: time.Now().UTC(),
		ReviewedBy: "clin-1",
		Approved:   true,
	})
	require.NoError(t, err)
	require.NoError(t, uow.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryResolveIsSingleUse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewReviewRepository(db)
	uow := beginUOW(t, db, mock)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE pending_reviews")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Resolve(context.Background(), uow, ResolveReviewParams{
		ID:         "rev-1",
		ReviewedAt: time.Now().UTC(),
		ReviewedBy: "clin-1",
		Approved:   false,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, uow.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryCountUnresolved(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewReviewRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM pending_reviews")).
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountUnresolved(context.Background(), "rec-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryListDetailsOnlyPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewReviewRepository(db)
	rows := sqlmock.NewRows([]string{
		"id", "record_id", "patient_id", "audit_log_id", "field_path", "label",
		"old_value", "new_value", "reason", "severity", "created_by", "created_at",
		"reviewed_at", "reviewed_by", "review_notes", "is_approved",
		"action", "information_source", "is_outside_encounter",
	}).AddRow(
		"rev-1", "rec-1", "patient-1", "audit-1", "hasAllergies", "¿Tiene alergias?",
		[]byte(`false`), []byte(`true`), nil, "HIGH", "user-1", time.Now(),
		nil, nil, nil, nil,
		"UPDATE", "llamada telefonica", true,
	)
	mock.ExpectQuery(regexp.QuoteMeta("JOIN audit_log_entries al ON al.id = pr.audit_log_id")).
		WithArgs("rec-1").
		WillReturnRows(rows)

	details, err := repo.ListDetails(context.Background(), models.ReviewFilter{RecordID: "rec-1", OnlyPending: true})
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Equal(t, "rev-1", details[0].ID)
	require.True(t, details[0].IsOutsideEncounter)
	require.False(t, details[0].Resolved())
	require.NoError(t, mock.ExpectationsWereMet())
}
