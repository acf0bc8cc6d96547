package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thebookish/proofsnap/internal/models"
)

var ErrShareLinkNotFound = errors.New("share link not found")

type ShareLinkRepository struct {
	pool *pgxpool.Pool
}

func NewShareLinkRepository(pool *pgxpool.Pool) *ShareLinkRepository {
	return &ShareLinkRepository{pool: pool}
}

func (r *ShareLinkRepository) Create(ctx context.Context, link models.ShareLink) error {
	const query = `
		INSERT INTO shareable_links (
			id, screenshot_id, user_id, share_token, expires_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query,
		link.ID,
		link.ScreenshotID,
		link.UserID,
		link.Token,
		link.ExpiresAt,
	)
	return err
}

// ResolveToken is the one unauthenticated lookup: it joins the link to its
// screenshot by token, with no ownership filter.
func (r *ShareLinkRepository) ResolveToken(ctx context.Context, token string) (models.ShareLink, models.Screenshot, error) {
	const query = `
		SELECT l.id, l.screenshot_id, l.user_id, l.share_token, l.expires_at, l.created_at,
		       s.id, s.user_id, s.storage_key, s.original_filename, s.size_bytes, s.mime_type,
		       s.public_url, s.sha256_hash, s.ip_address, s.user_agent, s.project, s.tags,
		       s.verification_status, s.created_at, s.updated_at
		FROM shareable_links l
		JOIN screenshots s ON s.id = l.screenshot_id
		WHERE l.share_token = $1
	`

	row := r.pool.QueryRow(ctx, query, token)
	var (
		link models.ShareLink
		shot models.Screenshot
	)
	if err := row.Scan(
		&link.ID,
		&link.ScreenshotID,
		&link.UserID,
		&link.Token,
		&link.ExpiresAt,
		&link.CreatedAt,
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
			return models.ShareLink{}, models.Screenshot{}, ErrShareLinkNotFound
		}
		return models.ShareLink{}, models.Screenshot{}, err
	}
	return link, shot, nil
}

// DeleteByScreenshot removes every link referencing a screenshot and returns
// their tokens. Called before the metadata row is deleted; the caller drops
// each returned token from the resolution cache so stale tokens stop
// resolving immediately, not at cache expiry.
func (r *ShareLinkRepository) DeleteByScreenshot(ctx context.Context, screenshotID string) ([]string, error) {
	const query = `DELETE FROM shareable_links WHERE screenshot_id = $1 RETURNING share_token`
	rows, err := r.pool.Query(ctx, query, screenshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// PurgeExpired deletes links whose optional expiry has passed and returns
// the number removed. Links without an expiry are never purged.
func (r *ShareLinkRepository) PurgeExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM shareable_links WHERE expires_at IS NOT NULL AND expires_at < NOW()`
	cmd, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
