package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/thebookish/proofsnap/internal/config"
	"github.com/thebookish/proofsnap/internal/ids"
	"github.com/thebookish/proofsnap/internal/models"
	"github.com/thebookish/proofsnap/internal/repository"
)

var ErrShareLinkNotFound = errors.New("share link not found")

// ShareService mints share tokens and resolves them publicly. A token is a
// pure capability: ownership is checked when the link is created, never when
// it is resolved.
type ShareService struct {
	screenshots ScreenshotStore
	links       ShareLinkStore
	cache       *redis.Client
	cfg         config.ShareConfig
	log         zerolog.Logger
}

func NewShareService(screenshots ScreenshotStore, links ShareLinkStore, cache *redis.Client, cfg config.ShareConfig, log zerolog.Logger) *ShareService {
	return &ShareService{
		screenshots: screenshots,
		links:       links,
		cache:       cache,
		cfg:         cfg,
		log:         log,
	}
}

type ShareLinkResult struct {
	Link     models.ShareLink
	ShareURL string
}

// CreateLink mints a share link for a screenshot the caller owns. A request
// for a record owned by someone else resolves as not-found, the same as a
// missing record.
func (s *ShareService) CreateLink(ctx context.Context, ownerID, screenshotID string, expiresAt *time.Time) (ShareLinkResult, error) {
	if ownerID == "" {
		return ShareLinkResult{}, ErrNotAuthenticated
	}

	shot, err := s.screenshots.GetOwned(ctx, screenshotID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrScreenshotNotFound) {
			return ShareLinkResult{}, ErrRecordNotFound
		}
		return ShareLinkResult{}, err
	}

	link := models.ShareLink{
		ID:           ids.New(),
		ScreenshotID: shot.ID,
		UserID:       ownerID,
		Token:        uuid.NewString(),
		ExpiresAt:    expiresAt,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.links.Create(ctx, link); err != nil {
		return ShareLinkResult{}, fmt.Errorf("database error: %w", err)
	}

	return ShareLinkResult{
		Link:     link,
		ShareURL: s.buildShareURL(link.Token),
	}, nil
}

// Resolve looks up a share token without authentication. Expired and
// unknown tokens are indistinguishable to the caller.
func (s *ShareService) Resolve(ctx context.Context, token string) (models.Screenshot, error) {
	if shot, ok := s.cachedResolve(ctx, token); ok {
		return shot, nil
	}

	link, shot, err := s.links.ResolveToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrShareLinkNotFound) {
			return models.Screenshot{}, ErrShareLinkNotFound
		}
		return models.Screenshot{}, err
	}

	if link.ExpiresAt != nil && link.ExpiresAt.Before(time.Now()) {
		return models.Screenshot{}, ErrShareLinkNotFound
	}

	s.cacheResolve(ctx, token, shot, link.ExpiresAt)
	return shot, nil
}

type ReportPayload struct {
	Screenshot  models.Screenshot `json:"screenshot"`
	GeneratedAt time.Time         `json:"generatedAt"`
	ReportID    string            `json:"reportId"`
}

// Report assembles the printable report payload for a record the caller
// owns. Document layout lives entirely in the calling surface.
func (s *ShareService) Report(ctx context.Context, ownerID, screenshotID string) (ReportPayload, error) {
	if ownerID == "" {
		return ReportPayload{}, ErrNotAuthenticated
	}

	shot, err := s.screenshots.GetOwned(ctx, screenshotID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrScreenshotNotFound) {
			return ReportPayload{}, ErrRecordNotFound
		}
		return ReportPayload{}, err
	}

	return ReportPayload{
		Screenshot:  shot,
		GeneratedAt: time.Now().UTC(),
		ReportID:    uuid.NewString(),
	}, nil
}

func (s *ShareService) buildShareURL(token string) string {
	return fmt.Sprintf("%s/share/%s", strings.TrimSuffix(s.cfg.BaseURL, "/"), token)
}

func shareCacheKey(token string) string {
	return "share:" + token
}

func (s *ShareService) cachedResolve(ctx context.Context, token string) (models.Screenshot, bool) {
	if s.cache == nil {
		return models.Screenshot{}, false
	}
	raw, err := s.cache.Get(ctx, shareCacheKey(token)).Bytes()
	if err != nil {
		return models.Screenshot{}, false
	}
	var shot models.Screenshot
	if err := json.Unmarshal(raw, &shot); err != nil {
		return models.Screenshot{}, false
	}
	return shot, true
}

func (s *ShareService) cacheResolve(ctx context.Context, token string, shot models.Screenshot, expiresAt *time.Time) {
	if s.cache == nil {
		return
	}
	ttl := s.cfg.CacheTTL
	if expiresAt != nil {
		if remaining := time.Until(*expiresAt); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(shot)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, shareCacheKey(token), raw, ttl).Err(); err != nil {
		s.log.Debug().Err(err).Msg("share cache set failed")
	}
}

// InvalidateToken drops a cached resolution, used when a screenshot and its
// links are deleted.
func (s *ShareService) InvalidateToken(ctx context.Context, token string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, shareCacheKey(token)).Err(); err != nil {
		s.log.Debug().Err(err).Msg("share cache invalidate failed")
	}
}
