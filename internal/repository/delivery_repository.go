package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/formlink/formlink/internal/database"
	"github.com/formlink/formlink/internal/model"
)

// DeliveryRepository handles delivery log persistence
type DeliveryRepository struct {
	db *database.Postgres
}

// NewDeliveryRepository creates a new DeliveryRepository
func NewDeliveryRepository(db *database.Postgres) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

const deliveryColumns = `id, submission_id, form_id, recipient, name, results_url,
		       provider, status, error, created_at, sent_at`

// Create inserts a new delivery record
func (r *DeliveryRepository) Create(ctx context.Context, d *model.Delivery) error {
	query := `
		INSERT INTO deliveries (id, submission_id, form_id, recipient, name, results_url,
		    provider, status, error, created_at, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.SubmissionID,
		d.FormID,
		d.Recipient,
		d.Name,
		d.ResultsURL,
		d.Provider,
		string(d.Status),
		d.Error,
		d.CreatedAt,
		d.SentAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create delivery: %w", err)
	}
	return nil
}

// GetByID retrieves a delivery by ID
func (r *DeliveryRepository) GetByID(ctx context.Context, id string) (*model.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1`

	d, err := scanDelivery(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan delivery: %w", err)
	}
	return d, nil
}

// ListRecent returns the newest deliveries first
func (r *DeliveryRepository) ListRecent(ctx context.Context, limit int) ([]model.Delivery, error) {
	if limit <= 0 {
		return nil, ErrInvalidInput
	}

	query := `SELECT ` + deliveryColumns + ` FROM deliveries ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer rows.Close()

	deliveries := make([]model.Delivery, 0, limit)
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		deliveries = append(deliveries, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deliveries: %w", err)
	}
	return deliveries, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDelivery(row rowScanner) (*model.Delivery, error) {
	var d model.Delivery
	err := row.Scan(
		&d.ID,
		&d.SubmissionID,
		&d.FormID,
		&d.Recipient,
		&d.Name,
		&d.ResultsURL,
		&d.Provider,
		&d.Status,
		&d.Error,
		&d.CreatedAt,
		&d.SentAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
