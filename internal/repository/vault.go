package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atinyakov/TapKeeper/internal/models"
	"github.com/lib/pq"
)

// PostgresVaultRepository stores vault credentials in a PostgreSQL database.
// Deletes are soft; db.StartSoftDeleteCleaner purges them later.
type PostgresVaultRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
	// now returns the current time, replaceable in tests.
	now func() time.Time
}

// NewPostgresVaultRepository creates a new PostgresVaultRepository using the provided *sql.DB.
func NewPostgresVaultRepository(db *sql.DB) *PostgresVaultRepository {
	return &PostgresVaultRepository{DB: db, now: time.Now}
}

// ListCredentials returns the live credentials of userID, oldest first.
func (r *PostgresVaultRepository) ListCredentials(ctx context.Context, userID string) ([]models.Credential, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, name, username, password, url, notes FROM credentials
		WHERE user_id = $1 AND deleted = false
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListCredentials: %w", err)
	}
	defer rows.Close()

	creds := []models.Credential{}
	for rows.Next() {
		var c models.Credential
		if err := rows.Scan(&c.ID, &c.Name, &c.Username, &c.Password, &c.URL, &c.Notes); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		creds = append(creds, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListCredentials: %w", err)
	}
	return creds, nil
}

// AddCredential stores c for userID.
func (r *PostgresVaultRepository) AddCredential(ctx context.Context, userID string, c models.Credential) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO credentials (id, user_id, name, username, password, url, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, userID, c.Name, c.Username, c.Password, c.URL, c.Notes, r.now().UnixNano())
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("AddCredential: %w", err)
	}
	return nil
}

// DeleteCredentials soft-deletes the credentials with the given ids that
// belong to userID and returns how many were affected.
func (r *PostgresVaultRepository) DeleteCredentials(ctx context.Context, userID string, ids []string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE credentials SET deleted = true, deleted_at = $3
		WHERE user_id = $1 AND id = ANY($2) AND deleted = false
	`, userID, pq.Array(ids), r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("DeleteCredentials: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteCredentials: %w", err)
	}
	return n, nil
}
