package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"rental-application-engine/internal/models"
)

// AccountRepository provisions applicant accounts.
type AccountRepository struct {
	db *DB
}

// NewAccountRepository creates a new account repository.
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// SignUp creates an account and returns its id. An existing email yields ErrAccountExists.
func (r *AccountRepository) SignUp(ctx context.Context, email, password string, metadata map[string]string) (string, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}

	meta, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode account metadata: %w", err)
	}

	query := `
		INSERT INTO accounts (id, email, password_hash, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING
		RETURNING id::text`

	var id string
	err = r.db.QueryRowContext(ctx, query,
		uuid.New().String(),
		strings.ToLower(strings.TrimSpace(email)),
		hash,
		meta,
		time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", models.ErrAccountExists
		}
		return "", fmt.Errorf("failed to create account: %w", err)
	}
	return id, nil
}

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
