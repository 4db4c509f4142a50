package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"rental-application-engine/internal/models"
)

// ApplicationRepository handles application database operations.
type ApplicationRepository struct {
	db *DB
}

// NewApplicationRepository creates a new application repository.
func NewApplicationRepository(db *DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Insert stores a new application and returns its id.
func (r *ApplicationRepository) Insert(ctx context.Context, app *models.ApplicationRecord) (string, error) {
	documentStatus, err := json.Marshal(app.DocumentStatus)
	if err != nil {
		return "", fmt.Errorf("failed to encode document status: %w", err)
	}

	createdAt := app.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO applications (property_id, user_id, first_name, last_name, email, phone, message, status, document_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id::text`

	var id string
	err = r.db.QueryRowContext(ctx, query,
		app.PropertyID,
		app.UserID,
		app.FirstName,
		app.LastName,
		app.Email,
		app.Phone,
		app.Message,
		string(app.Status),
		documentStatus,
		createdAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to insert application: %w", err)
	}

	return id, nil
}

// GetByID retrieves an application by id.
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*models.ApplicationRecord, error) {
	query := `
		SELECT id::text, property_id::text, user_id::text, first_name, last_name, email, phone,
			COALESCE(message, ''), status, document_status, created_at
		FROM applications
		WHERE id = $1`

	var app models.ApplicationRecord
	var status string
	var documentStatus []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&app.ID,
		&app.PropertyID,
		&app.UserID,
		&app.FirstName,
		&app.LastName,
		&app.Email,
		&app.Phone,
		&app.Message,
		&status,
		&documentStatus,
		&app.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}

	app.Status = models.ApplicationStatus(status)
	if err := json.Unmarshal(documentStatus, &app.DocumentStatus); err != nil {
		return nil, fmt.Errorf("failed to decode document status: %w", err)
	}
	return &app, nil
}

// ListByProperty returns the applications of a property, newest first.
func (r *ApplicationRepository) ListByProperty(ctx context.Context, propertyID string) ([]*models.ApplicationRecord, error) {
	query := `
		SELECT id::text, first_name, last_name, email, phone, status, created_at
		FROM applications
		WHERE property_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.ApplicationRecord
	for rows.Next() {
		app := &models.ApplicationRecord{PropertyID: propertyID}
		var status string
		if err := rows.Scan(&app.ID, &app.FirstName, &app.LastName, &app.Email, &app.Phone, &status, &app.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		app.Status = models.ApplicationStatus(status)
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// UpdateStatus sets the review status of an application.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid application status %q", status)
	}

	affected, err := r.db.ExecContext(ctx,
		`UPDATE applications SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update application status: %w", err)
	}
	if affected == 0 {
		return models.ErrApplicationNotFound
	}
	return nil
}

// DocumentReview is the agent decision on one stored document.
type DocumentReview struct {
	ApplicationID string
	DocumentKey   string
	Status        models.DocumentStatus
	Comment       string
}

// UpdateDocumentStatus applies an agent review to one document and returns the
// applicant email for follow-up notifications.
func (r *ApplicationRepository) UpdateDocumentStatus(ctx context.Context, review DocumentReview) (string, error) {
	if !review.Status.IsValid() {
		return "", fmt.Errorf("invalid document status %q", review.Status)
	}

	patch, err := json.Marshal(map[string]any{
		"status":     review.Status,
		"comment":    review.Comment,
		"verifiedAt": time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode review: %w", err)
	}

	query := `
		UPDATE applications
		SET document_status = jsonb_set(document_status, ARRAY[$2::text], (document_status -> $2::text) || $3::jsonb, false),
			updated_at = now()
		WHERE id = $1 AND document_status ? $2::text
		RETURNING email`

	var email string
	err = r.db.QueryRowContext(ctx, query, review.ApplicationID, review.DocumentKey, patch).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", models.ErrDocumentNotFound
		}
		return "", fmt.Errorf("failed to update document status: %w", err)
	}
	return email, nil
}
