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

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func beginUOW(t *testing.T, db *sqlx.DB, mock sqlmock.Sqlmock) *UnitOfWork {
	mock.ExpectBegin()
	uow, err := Begin(context.Background(), db)
	require.NoError(t, err)
	return uow
}

func recordRows(record *models.Record) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "patient_id", "record_type", "fields", "payload", "collections", "version",
		"has_pending_reviews", "pending_review_since", "pending_review_reason",
		"last_verified_at", "last_verified_by", "created_by", "updated_by", "created_at", "updated_at",
	}).AddRow(
		record.ID, record.PatientID, record.RecordType, record.Fields, record.Payload, record.Collections, record.Version,
		record.HasPendingReviews, record.PendingReviewSince, record.PendingReviewReason,
		record.LastVerifiedAt, record.LastVerifiedBy, record.CreatedBy, record.UpdatedBy, record.CreatedAt, record.UpdatedAt,
	)
}

func TestRecordRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	uow := beginUOW(t, db, mock)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO anamnesis_records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	record := &models.Record{
		PatientID:   "patient-1",
		RecordType:  "ANAMNESIS",
		Fields:      []byte(`{"hasAllergies":true}`),
		Payload:     []byte(`{}`),
		Collections: []byte(`{}`),
		CreatedBy:   "user-1",
		UpdatedBy:   "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), uow, record))
	require.NotEmpty(t, record.ID)
	require.Equal(t, 1, record.Version)
	require.NoError(t, uow.Commit())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, patient_id, record_type")).
		WithArgs(record.ID).
		WillReturnRows(recordRows(record))

	found, err := repo.GetByID(context.Background(), record.ID)
	require.NoError(t, err)
	require.Equal(t, record.PatientID, found.PatientID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryGetByPatientMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, patient_id, record_type")).
		WithArgs("patient-x").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByPatient(context.Background(), "patient-x")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryUpdateState(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	uow := beginUOW(t, db, mock)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE anamnesis_records")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record := &models.Record{
		ID:          "rec-1",
		Fields:      []byte(`{}`),
		Payload:     []byte(`{}`),
		Collections: []byte(`{}`),
		Version:     4,
		UpdatedBy:   "user-2",
	}
	require.NoError(t, repo.UpdateState(context.Background(), uow, record, 3))
	require.NoError(t, uow.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryUpdateStateVersionConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	uow := beginUOW(t, db, mock)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE anamnesis_records")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	record := &models.Record{
		ID:          "rec-1",
		Fields:      []byte(`{}`),
		Payload:     []byte(`{}`),
		Collections: []byte(`{}`),
		Version:     4,
	}
	err := repo.UpdateState(context.Background(), uow, record, 3)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, uow.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	uow := beginUOW(t, db, mock)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM anamnesis_records")).
		WithArgs("rec-missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), uow, "rec-missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, uow.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepositoryMarkPendingReviewKeepsFirstFlag(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRecordRepository(db)
	uow := beginUOW(t, db, mock)
	since := time.Now().UTC()
	reason := "edicion fuera de consulta"
	mock.ExpectExec(regexp.QuoteMeta("COALESCE(pending_review_since, $2)")).
		WithArgs("rec-1", since, reason).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.MarkPendingReview(context.Background(), uow, "rec-1", since, &reason))
	require.NoError(t, uow.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}
