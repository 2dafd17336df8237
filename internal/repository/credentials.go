// Package repository provides persistence implementations for the
// credential service using a PostgreSQL database. Every query is
// pre-filtered by owner id; the store is trusted for storage only,
// not for authorization enforcement.
package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"

	"github.com/vkotelnikov/credvault/internal/models"
)

// metadataColumns are the columns fetched by list and search queries.
// The envelope columns are deliberately excluded: listing never touches
// encrypted material.
const metadataColumns = `id, owner_id, kind, name, description, tags, url, username,
       service, environment, container_id, expires_at, access_count, created_at, updated_at`

// PostgresCredentialRepository implements credential persistence against
// a PostgreSQL database.
type PostgresCredentialRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresCredentialRepository creates a repository using the provided *sql.DB.
// db must be a valid connection to a PostgreSQL instance.
func NewPostgresCredentialRepository(db *sql.DB) *PostgresCredentialRepository {
	return &PostgresCredentialRepository{DB: db}
}

// Insert persists a new credential row, envelope and metadata together.
func (r *PostgresCredentialRepository) Insert(ctx context.Context, c *models.Credential) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO credentials
			(id, owner_id, kind, name, ciphertext, iv, salt, description, tags,
			 url, username, service, environment, container_id, expires_at,
			 access_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, c.ID, c.OwnerID, string(c.Kind), c.Name,
		c.Envelope.Ciphertext, c.Envelope.IV, c.Envelope.Salt,
		c.Description, pq.Array(c.Tags), c.URL, c.Username, c.Service,
		c.Environment, c.ContainerID, c.ExpiresAt, c.AccessCount,
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return &models.StoreError{Op: "insert", Err: err}
	}
	return nil
}

// GetByID fetches a single credential, envelope included, scoped by owner.
// A row owned by someone else is indistinguishable from a missing one.
func (r *PostgresCredentialRepository) GetByID(ctx context.Context, ownerID, id string) (*models.Credential, error) {
	var c models.Credential
	var kind string
	var expiresAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, owner_id, kind, name, ciphertext, iv, salt, description, tags,
		       url, username, service, environment, container_id, expires_at,
		       access_count, created_at, updated_at
		  FROM credentials
		 WHERE owner_id = $1 AND id = $2
	`, ownerID, id).Scan(
		&c.ID, &c.OwnerID, &kind, &c.Name,
		&c.Envelope.Ciphertext, &c.Envelope.IV, &c.Envelope.Salt,
		&c.Description, pq.Array(&c.Tags), &c.URL, &c.Username, &c.Service,
		&c.Environment, &c.ContainerID, &expiresAt,
		&c.AccessCount, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, &models.StoreError{Op: "get", Err: err}
	}
	c.Kind = models.Kind(kind)
	if expiresAt.Valid {
		t := expiresAt.Time
		c.ExpiresAt = &t
	}
	return &c, nil
}

// ListByOwner returns metadata-only rows of one kind for an owner,
// optionally restricted to a container.
func (r *PostgresCredentialRepository) ListByOwner(ctx context.Context, ownerID string, kind models.Kind, containerID string) ([]models.Credential, error) {
	query := `
		SELECT ` + metadataColumns + `
		  FROM credentials
		 WHERE owner_id = $1 AND kind = $2`
	args := []any{ownerID, string(kind)}
	if containerID != "" {
		query += ` AND container_id = $3`
		args = append(args, containerID)
	}
	query += ` ORDER BY name`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &models.StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	return scanMetadataRows(rows)
}

// Search returns metadata-only rows whose name or description contains
// the query, case-insensitively.
func (r *PostgresCredentialRepository) Search(ctx context.Context, ownerID string, kind models.Kind, query string) ([]models.Credential, error) {
	pattern := "%" + escapeLike(query) + "%"
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+metadataColumns+`
		  FROM credentials
		 WHERE owner_id = $1 AND kind = $2
		   AND (name ILIKE $3 OR description ILIKE $3)
		 ORDER BY name
	`, ownerID, string(kind), pattern)
	if err != nil {
		return nil, &models.StoreError{Op: "search", Err: err}
	}
	defer rows.Close()

	return scanMetadataRows(rows)
}

// Update rewrites a credential row scoped by owner. Returns ErrNotFound
// when the row no longer exists, so an update racing a completed delete
// surfaces as not found.
func (r *PostgresCredentialRepository) Update(ctx context.Context, c *models.Credential) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE credentials
		   SET name = $3, ciphertext = $4, iv = $5, salt = $6, description = $7,
		       tags = $8, url = $9, username = $10, service = $11,
		       environment = $12, container_id = $13, expires_at = $14,
		       updated_at = $15
		 WHERE owner_id = $1 AND id = $2
	`, c.OwnerID, c.ID, c.Name,
		c.Envelope.Ciphertext, c.Envelope.IV, c.Envelope.Salt,
		c.Description, pq.Array(c.Tags), c.URL, c.Username, c.Service,
		c.Environment, c.ContainerID, c.ExpiresAt, c.UpdatedAt)
	if err != nil {
		return &models.StoreError{Op: "update", Err: err}
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Delete removes a credential row scoped by owner.
func (r *PostgresCredentialRepository) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM credentials WHERE owner_id = $1 AND id = $2
	`, ownerID, id)
	if err != nil {
		return &models.StoreError{Op: "delete", Err: err}
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CountByContainer returns how many records of an owner reference the
// given container.
func (r *PostgresCredentialRepository) CountByContainer(ctx context.Context, ownerID, containerID string) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM credentials WHERE owner_id = $1 AND container_id = $2
	`, ownerID, containerID).Scan(&count)
	if err != nil {
		return 0, &models.StoreError{Op: "count", Err: err}
	}
	return count, nil
}

// scanMetadataRows scans metadata-only result rows into credentials.
func scanMetadataRows(rows *sql.Rows) ([]models.Credential, error) {
	var out []models.Credential
	for rows.Next() {
		var c models.Credential
		var kind string
		var expiresAt sql.NullTime
		if err := rows.Scan(
			&c.ID, &c.OwnerID, &kind, &c.Name, &c.Description, pq.Array(&c.Tags),
			&c.URL, &c.Username, &c.Service, &c.Environment, &c.ContainerID,
			&expiresAt, &c.AccessCount, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, &models.StoreError{Op: "scan", Err: err}
		}
		c.Kind = models.Kind(kind)
		if expiresAt.Valid {
			t := expiresAt.Time
			c.ExpiresAt = &t
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreError{Op: "scan", Err: err}
	}
	return out, nil
}

// escapeLike escapes LIKE metacharacters in user-supplied search text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
