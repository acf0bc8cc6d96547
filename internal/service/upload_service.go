package service

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/thebookish/proofsnap/internal/fingerprint"
	"github.com/thebookish/proofsnap/internal/ids"
	"github.com/thebookish/proofsnap/internal/media/sniffer"
	"github.com/thebookish/proofsnap/internal/models"
	"github.com/thebookish/proofsnap/internal/repository"
)

type UploadInput struct {
	OwnerID      string
	Data         []byte
	Filename     string
	DeclaredMIME string
	Project      string
	RawTags      string
	Client       fingerprint.ClientContext
}

type UploadResult struct {
	Screenshot models.Screenshot
}

// UploadService runs the upload pipeline: storage write, fingerprint
// computation and metadata insert as one logical operation with a
// best-effort compensating delete on partial failure.
type UploadService struct {
	screenshots ScreenshotStore
	links       ShareLinkStore
	store       ObjectStore
	invalidator TokenInvalidator
	log         zerolog.Logger
}

func NewUploadService(screenshots ScreenshotStore, links ShareLinkStore, store ObjectStore, invalidator TokenInvalidator, log zerolog.Logger) *UploadService {
	return &UploadService{
		screenshots: screenshots,
		links:       links,
		store:       store,
		invalidator: invalidator,
		log:         log,
	}
}

// Upload persists an image and its verification metadata. The storage write
// strictly precedes the metadata insert, so a returned record always has its
// object in storage. If the insert fails the just-written object is deleted
// best-effort; a failed cleanup is logged and reported through the
// PersistFailure, never retried.
func (s *UploadService) Upload(ctx context.Context, input UploadInput) (UploadResult, error) {
	if input.OwnerID == "" {
		return UploadResult{}, ErrNotAuthenticated
	}
	if len(input.Data) == 0 {
		return UploadResult{}, ErrNoFile
	}

	head := input.Data
	if len(head) > 512 {
		head = head[:512]
	}
	detected, err := sniffer.DetectHead(head)
	if err != nil {
		return UploadResult{}, fmt.Errorf("detect type: %w", err)
	}
	if input.DeclaredMIME != "" && input.DeclaredMIME != detected.MIME {
		return UploadResult{}, fmt.Errorf("%w: declared %s, actual %s", ErrTypeMismatch, input.DeclaredMIME, detected.MIME)
	}

	key := buildStorageKey(input.OwnerID, input.Filename, detected.Type)

	if err := s.store.Put(ctx, key, input.Data, detected.MIME); err != nil {
		return UploadResult{}, &StorageError{Err: err}
	}

	publicURL := s.store.PublicURL(key)
	digest := fingerprint.Sum(input.Data)
	tags := ParseTags(input.RawTags)

	var project *string
	if p := strings.TrimSpace(input.Project); p != "" {
		project = &p
	}

	shot := models.Screenshot{
		ID:               ids.New(),
		UserID:           input.OwnerID,
		StorageKey:       key,
		OriginalFilename: input.Filename,
		SizeBytes:        int64(len(input.Data)),
		MimeType:         detected.MIME,
		PublicURL:        publicURL,
		SHA256:           digest,
		IPAddress:        input.Client.IP,
		UserAgent:        input.Client.UserAgent,
		Project:          project,
		Tags:             tags,
		Status:           models.VerificationVerified,
	}
	now := time.Now().UTC()
	shot.CreatedAt = now
	shot.UpdatedAt = now

	if err := s.screenshots.Create(ctx, shot); err != nil {
		failure := &PersistFailure{InsertErr: err}
		if cleanupErr := s.store.Remove(ctx, key); cleanupErr != nil {
			failure.CleanupErr = cleanupErr
			s.log.Error().
				Err(cleanupErr).
				Str("storage_key", key).
				Msg("compensating delete failed, object orphaned")
		} else {
			s.log.Warn().
				Err(err).
				Str("storage_key", key).
				Msg("metadata insert failed, stored object removed")
		}
		return UploadResult{}, failure
	}

	return UploadResult{Screenshot: shot}, nil
}

// Delete verifies ownership, removes all share links (dropping each token
// from the resolution cache), removes the stored object (failure logged,
// never blocking) and finally deletes the metadata row. Only the final step
// can fail the operation.
func (s *UploadService) Delete(ctx context.Context, screenshotID, ownerID string) error {
	if ownerID == "" {
		return ErrNotAuthenticated
	}

	shot, err := s.screenshots.GetOwned(ctx, screenshotID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrScreenshotNotFound) {
			return ErrRecordNotFound
		}
		return err
	}

	tokens, err := s.links.DeleteByScreenshot(ctx, shot.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("screenshot_id", shot.ID).Msg("share link cleanup failed")
	}
	if s.invalidator != nil {
		for _, token := range tokens {
			s.invalidator.InvalidateToken(ctx, token)
		}
	}

	if present, err := s.store.Exists(ctx, shot.StorageKey); err == nil && !present {
		s.log.Warn().
			Str("storage_key", shot.StorageKey).
			Msg("stored object already absent, deleting metadata only")
	} else if err := s.store.Remove(ctx, shot.StorageKey); err != nil {
		s.log.Warn().
			Err(err).
			Str("storage_key", shot.StorageKey).
			Msg("object removal failed, deleting metadata anyway")
	}

	if err := s.screenshots.DeleteOwned(ctx, shot.ID, ownerID); err != nil {
		if errors.Is(err, repository.ErrScreenshotNotFound) {
			return ErrRecordNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}
	return nil
}

func (s *UploadService) GetOwned(ctx context.Context, screenshotID, ownerID string) (models.Screenshot, error) {
	shot, err := s.screenshots.GetOwned(ctx, screenshotID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrScreenshotNotFound) {
			return models.Screenshot{}, ErrRecordNotFound
		}
		return models.Screenshot{}, err
	}
	return shot, nil
}

func (s *UploadService) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Screenshot, error) {
	return s.screenshots.ListByUser(ctx, ownerID, limit, offset)
}

// ParseTags splits a comma-separated tags string into ordered, trimmed,
// non-empty tokens.
func ParseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

// buildStorageKey derives a key unique per owner, timestamp and random
// suffix, preserving the original extension. Concurrent uploads never share
// a key.
func buildStorageKey(ownerID, filename string, detected sniffer.MediaType) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = "." + string(detected)
	}
	return fmt.Sprintf("%s/%d-%s%s", ownerID, time.Now().UnixMilli(), randomSuffix(), ext)
}

var suffixEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

func randomSuffix() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a
		// ksuid so key generation cannot abort an upload.
		return ids.New()
	}
	return strings.ToLower(suffixEncoding.EncodeToString(buf))
}
