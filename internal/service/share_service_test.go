package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebookish/proofsnap/internal/config"
	"github.com/thebookish/proofsnap/internal/models"
)

type shareEnv struct {
	shots *fakeScreenshotStore
	links *fakeShareLinkStore
	svc   *ShareService
}

func newShareEnv() *shareEnv {
	shots := newFakeScreenshotStore()
	links := newFakeShareLinkStore(shots)
	cfg := config.ShareConfig{BaseURL: "https://proofsnap.test/", CacheTTL: time.Minute}
	return &shareEnv{
		shots: shots,
		links: links,
		svc:   NewShareService(shots, links, nil, cfg, zerolog.Nop()),
	}
}

func (e *shareEnv) seedScreenshot(id, userID string) models.Screenshot {
	shot := models.Screenshot{
		ID:         id,
		UserID:     userID,
		StorageKey: userID + "/" + id + ".png",
		SHA256:     strings.Repeat("ab", 32),
		Status:     models.VerificationVerified,
	}
	e.shots.shots[id] = shot
	return shot
}

func TestCreateLink(t *testing.T) {
	env := newShareEnv()
	shot := env.seedScreenshot("shot-1", "user-1")

	result, err := env.svc.CreateLink(context.Background(), "user-1", shot.ID, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Link.Token)
	assert.Equal(t, shot.ID, result.Link.ScreenshotID)
	assert.Nil(t, result.Link.ExpiresAt)
	assert.Equal(t, "https://proofsnap.test/share/"+result.Link.Token, result.ShareURL)
	assert.Contains(t, env.links.links, result.Link.Token)
}

func TestCreateLinkForeignScreenshot(t *testing.T) {
	env := newShareEnv()
	shot := env.seedScreenshot("shot-1", "user-1")

	_, err := env.svc.CreateLink(context.Background(), "user-2", shot.ID, nil)
	assert.ErrorIs(t, err, ErrRecordNotFound, "foreign records resolve exactly like missing ones")
}

func TestCreateLinkRequiresAuth(t *testing.T) {
	env := newShareEnv()
	_, err := env.svc.CreateLink(context.Background(), "", "shot-1", nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestResolveWithoutOwnership(t *testing.T) {
	env := newShareEnv()
	shot := env.seedScreenshot("shot-1", "user-1")

	created, err := env.svc.CreateLink(context.Background(), "user-1", shot.ID, nil)
	require.NoError(t, err)

	// Resolution takes no caller identity: the token is the capability.
	resolved, err := env.svc.Resolve(context.Background(), created.Link.Token)
	require.NoError(t, err)
	assert.Equal(t, shot.ID, resolved.ID)
	assert.Equal(t, shot.SHA256, resolved.SHA256)
}

func TestResolveUnknownToken(t *testing.T) {
	env := newShareEnv()
	_, err := env.svc.Resolve(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrShareLinkNotFound)
}

func TestResolveExpiredToken(t *testing.T) {
	env := newShareEnv()
	shot := env.seedScreenshot("shot-1", "user-1")

	past := time.Now().Add(-time.Hour)
	created, err := env.svc.CreateLink(context.Background(), "user-1", shot.ID, &past)
	require.NoError(t, err)

	_, err = env.svc.Resolve(context.Background(), created.Link.Token)
	assert.ErrorIs(t, err, ErrShareLinkNotFound, "expired tokens are indistinguishable from unknown ones")
}

func TestResolveAfterScreenshotDeleted(t *testing.T) {
	env := newShareEnv()
	shot := env.seedScreenshot("shot-1", "user-1")

	created, err := env.svc.CreateLink(context.Background(), "user-1", shot.ID, nil)
	require.NoError(t, err)

	delete(env.shots.shots, shot.ID)

	_, err = env.svc.Resolve(context.Background(), created.Link.Token)
	assert.ErrorIs(t, err, ErrShareLinkNotFound)
}

func TestReport(t *testing.T) {
	env := newShareEnv()
	shot := env.seedScreenshot("shot-1", "user-1")

	payload, err := env.svc.Report(context.Background(), "user-1", shot.ID)
	require.NoError(t, err)

	assert.Equal(t, shot.ID, payload.Screenshot.ID)
	assert.Equal(t, shot.SHA256, payload.Screenshot.SHA256)
	assert.NotEmpty(t, payload.ReportID)
	assert.WithinDuration(t, time.Now(), payload.GeneratedAt, 5*time.Second)
}

// Deleting a screenshot must stop its tokens resolving immediately, even
// when a resolution is sitting in the cache with time left on its TTL.
func TestDeleteStopsCachedResolution(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	shots := newFakeScreenshotStore()
	links := newFakeShareLinkStore(shots)
	objects := newFakeObjectStore()
	cfg := config.ShareConfig{BaseURL: "https://proofsnap.test", CacheTTL: 5 * time.Minute}
	share := NewShareService(shots, links, client, cfg, zerolog.Nop())
	upload := NewUploadService(shots, links, objects, share, zerolog.Nop())

	ctx := context.Background()
	uploaded, err := upload.Upload(ctx, UploadInput{OwnerID: "user-1", Data: pngPayload()})
	require.NoError(t, err)

	created, err := share.CreateLink(ctx, "user-1", uploaded.Screenshot.ID, nil)
	require.NoError(t, err)

	resolved, err := share.Resolve(ctx, created.Link.Token)
	require.NoError(t, err)
	require.Equal(t, uploaded.Screenshot.ID, resolved.ID)
	require.True(t, mr.Exists("share:"+created.Link.Token), "resolution should be cached")

	require.NoError(t, upload.Delete(ctx, uploaded.Screenshot.ID, "user-1"))

	assert.False(t, mr.Exists("share:"+created.Link.Token), "cache entry must be dropped on delete")
	_, err = share.Resolve(ctx, created.Link.Token)
	assert.ErrorIs(t, err, ErrShareLinkNotFound)
}

func TestReportForeignScreenshot(t *testing.T) {
	env := newShareEnv()
	shot := env.seedScreenshot("shot-1", "user-1")

	_, err := env.svc.Report(context.Background(), "user-2", shot.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
