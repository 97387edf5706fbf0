package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formlink/formlink/internal/database"
	"github.com/formlink/formlink/internal/model"
)

var deliveryCols = []string{
	"id", "submission_id", "form_id", "recipient", "name", "results_url",
	"provider", "status", "error", "created_at", "sent_at",
}

func newMockRepo(t *testing.T) (*DeliveryRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDeliveryRepository(&database.Postgres{DB: db}), mock
}

func strPtr(s string) *string { return &s }

func TestDeliveryRepositoryCreate(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	d := &model.Delivery{
		ID:           "6f1c2a8e-3b7d-4c1a-9e2f-0a1b2c3d4e5f",
		SubmissionID: "sub-1",
		FormID:       strPtr("form-1"),
		Recipient:    "jo@example.com",
		ResultsURL:   "https://x.example/?email=jo%40example.com",
		Provider:     "smtp",
		Status:       model.DeliveryStatusSent,
		CreatedAt:    now,
		SentAt:       &now,
	}

	mock.ExpectExec("INSERT INTO deliveries").
		WithArgs(d.ID, "sub-1", "form-1", "jo@example.com", nil, d.ResultsURL, "smtp", "sent", nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), d))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryRepositoryCreateDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO deliveries").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &model.Delivery{ID: "d-1", Status: model.DeliveryStatusSent})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestDeliveryRepositoryGetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM deliveries WHERE id = \$1`).
		WithArgs("d-1").
		WillReturnRows(sqlmock.NewRows(deliveryCols).AddRow(
			"d-1", "sub-1", nil, "jo@example.com", "Jo", "https://x.example/?email=jo%40example.com",
			"resend", "failed", "quota exceeded", created, nil,
		))

	d, err := repo.GetByID(context.Background(), "d-1")
	require.NoError(t, err)

	assert.Equal(t, "sub-1", d.SubmissionID)
	assert.Nil(t, d.FormID)
	require.NotNil(t, d.Name)
	assert.Equal(t, "Jo", *d.Name)
	assert.Equal(t, "resend", d.Provider)
	assert.Equal(t, model.DeliveryStatusFailed, d.Status)
	require.NotNil(t, d.Error)
	assert.Equal(t, "quota exceeded", *d.Error)
	assert.Equal(t, created, d.CreatedAt)
	assert.Nil(t, d.SentAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryRepositoryGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM deliveries WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(deliveryCols))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeliveryRepositoryListRecent(t *testing.T) {
	repo, mock := newMockRepo(t)
	newer := time.Date(2026, 10, 2, 9, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	mock.ExpectQuery(`SELECT .+ FROM deliveries ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(deliveryCols).
			AddRow("d-2", "sub-2", "form-1", "b@example.com", nil, "https://x.example/?email=b", "smtp", "sent", nil, newer, newer).
			AddRow("d-1", "sub-1", "form-1", "a@example.com", nil, "https://x.example/?email=a", "smtp", "duplicate", nil, older, nil))

	got, err := repo.ListRecent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d-2", got[0].ID)
	require.NotNil(t, got[0].SentAt)
	assert.Equal(t, model.DeliveryStatusDuplicate, got[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryRepositoryListRecentInvalidLimit(t *testing.T) {
	repo, _ := newMockRepo(t)

	_, err := repo.ListRecent(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
