package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thebookish/proofsnap/internal/models"
)

var ErrScreenshotNotFound = errors.New("screenshot not found")

type ScreenshotRepository struct {
	pool *pgxpool.Pool
}

func NewScreenshotRepository(pool *pgxpool.Pool) *ScreenshotRepository {
	return &ScreenshotRepository{pool: pool}
}

func (r *ScreenshotRepository) Create(ctx context.Context, shot models.Screenshot) error {
	const query = `
		INSERT INTO screenshots (
			id, user_id, storage_key, original_filename, size_bytes, mime_type,
			public_url, sha256_hash, ip_address, user_agent, project, tags,
			verification_status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		shot.ID,
		shot.UserID,
		shot.StorageKey,
		shot.OriginalFilename,
		shot.SizeBytes,
		shot.MimeType,
		shot.PublicURL,
		shot.SHA256,
		shot.IPAddress,
		shot.UserAgent,
		shot.Project,
		shot.Tags,
		shot.Status,
	)
	return err
}

// GetOwned fetches a screenshot scoped to its owner. Every read path except
// the public share-token lookup goes through an owner filter.
func (r *ScreenshotRepository) GetOwned(ctx context.Context, id, userID string) (models.Screenshot, error) {
	const query = screenshotColumns + ` FROM screenshots WHERE id = $1 AND user_id = $2`

	row := r.pool.QueryRow(ctx, query, id, userID)
	return scanScreenshot(row)
}

func (r *ScreenshotRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Screenshot, error) {
	const query = screenshotColumns + `
		FROM screenshots
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectScreenshots(rows)
}

func (r *ScreenshotRepository) List(ctx context.Context, limit, offset int) ([]models.Screenshot, error) {
	const query = screenshotColumns + `
		FROM screenshots
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectScreenshots(rows)
}

// DeleteOwned removes the metadata row, scoped to the owner.
func (r *ScreenshotRepository) DeleteOwned(ctx context.Context, id, userID string) error {
	const query = `DELETE FROM screenshots WHERE id = $1 AND user_id = $2`
	cmd, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrScreenshotNotFound
	}
	return nil
}

const screenshotColumns = `
	SELECT id, user_id, storage_key, original_filename, size_bytes, mime_type,
	       public_url, sha256_hash, ip_address, user_agent, project, tags,
	       verification_status, created_at, updated_at`

func scanScreenshot(row pgx.Row) (models.Screenshot, error) {
	var shot models.Screenshot
	if err := row.Scan(
		&shot.ID,
		&shot.UserID,
		&shot.StorageKey,
		&shot.OriginalFilename,
		&shot.SizeBytes,
		&shot.MimeType,
		&shot.PublicURL,
		&shot.SHA256,
		&shot.IPAddress,
		&shot.UserAgent,
		&shot.Project,
		&shot.Tags,
		&shot.Status,
		&shot.CreatedAt,
		&shot.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Screenshot{}, ErrScreenshotNotFound
		}
		return models.Screenshot{}, err
	}
	return shot, nil
}

func collectScreenshots(rows pgx.Rows) ([]models.Screenshot, error) {
	var shots []models.Screenshot
	for rows.Next() {
		shot, err := scanScreenshot(rows)
		if err != nil {
			return nil, err
		}
		shots = append(shots, shot)
	}
	return shots, rows.Err()
}
