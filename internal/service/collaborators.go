package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/thebookish/proofsnap/internal/models"
)

// Collaborator surfaces the pipelines depend on. Narrow interfaces keep the
// coordinate-transform, commit and compensation logic testable without a
// live bucket or database.

type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Remove(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	PublicURL(key string) string
}

type ScreenshotStore interface {
	Create(ctx context.Context, shot models.Screenshot) error
	GetOwned(ctx context.Context, id, userID string) (models.Screenshot, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Screenshot, error)
	DeleteOwned(ctx context.Context, id, userID string) error
}

type ShareLinkStore interface {
	Create(ctx context.Context, link models.ShareLink) error
	ResolveToken(ctx context.Context, token string) (models.ShareLink, models.Screenshot, error)
	DeleteByScreenshot(ctx context.Context, screenshotID string) ([]string, error)
}

// TokenInvalidator drops a share token from the resolution cache. Deleting a
// record must stop its tokens resolving immediately, including tokens whose
// last resolution is still cached.
type TokenInvalidator interface {
	InvalidateToken(ctx context.Context, token string)
}

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoFile           = errors.New("no file provided")
	ErrRecordNotFound   = errors.New("screenshot not found")
	ErrTypeMismatch     = errors.New("content type mismatch")
)

// StorageError is a failed object-storage call, surfaced with the
// collaborator's underlying message.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %v", e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PersistFailure is a failed metadata insert after a successful storage
// write. The compensating delete has already been attempted; CleanupErr
// records its outcome so the accepted inconsistency (an orphaned object when
// both fail) is observable rather than silently swallowed.
type PersistFailure struct {
	InsertErr  error
	CleanupErr error
}

func (e *PersistFailure) Error() string {
	return fmt.Sprintf("database error: %v", e.InsertErr)
}

func (e *PersistFailure) Unwrap() error { return e.InsertErr }

// CleanedUp reports whether the compensating storage delete succeeded.
func (e *PersistFailure) CleanedUp() bool { return e.CleanupErr == nil }
