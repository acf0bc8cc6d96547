package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebookish/proofsnap/internal/fingerprint"
	"github.com/thebookish/proofsnap/internal/media/sniffer"
	"github.com/thebookish/proofsnap/internal/models"
	"github.com/thebookish/proofsnap/internal/repository"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func pngPayload(extra ...byte) []byte {
	return append(append([]byte{}, pngHeader...), extra...)
}

type uploadEnv struct {
	shots       *fakeScreenshotStore
	links       *fakeShareLinkStore
	objects     *fakeObjectStore
	invalidator *fakeInvalidator
	svc         *UploadService
}

func newUploadEnv() *uploadEnv {
	shots := newFakeScreenshotStore()
	links := newFakeShareLinkStore(shots)
	objects := newFakeObjectStore()
	invalidator := &fakeInvalidator{}
	return &uploadEnv{
		shots:       shots,
		links:       links,
		objects:     objects,
		invalidator: invalidator,
		svc:         NewUploadService(shots, links, objects, invalidator, zerolog.Nop()),
	}
}

func TestUploadComputesFingerprint(t *testing.T) {
	env := newUploadEnv()
	data := pngPayload(1, 2)

	result, err := env.svc.Upload(context.Background(), UploadInput{
		OwnerID:  "user-1",
		Data:     data,
		Filename: "shot.png",
		Project:  "Demo",
		RawTags:  "a, b",
		Client:   fingerprint.ClientContext{IP: "10.0.0.1", UserAgent: "test-agent"},
	})
	require.NoError(t, err)

	shot := result.Screenshot
	assert.Equal(t, fingerprint.Sum(data), shot.SHA256)
	assert.Len(t, shot.SHA256, 64)
	assert.Equal(t, models.VerificationVerified, shot.Status)
	assert.Equal(t, int64(len(data)), shot.SizeBytes)
	assert.Equal(t, "image/png", shot.MimeType)
	assert.Equal(t, []string{"a", "b"}, shot.Tags)
	require.NotNil(t, shot.Project)
	assert.Equal(t, "Demo", *shot.Project)
	assert.Equal(t, "10.0.0.1", shot.IPAddress)

	stored, ok := env.objects.get(shot.StorageKey)
	require.True(t, ok, "object missing from storage")
	assert.Equal(t, data, stored)
	assert.Equal(t, "https://cdn.test/"+shot.StorageKey, shot.PublicURL)

	persisted, err := env.shots.GetOwned(context.Background(), shot.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, shot.SHA256, persisted.SHA256)
}

func TestUploadRequiresAuth(t *testing.T) {
	env := newUploadEnv()
	_, err := env.svc.Upload(context.Background(), UploadInput{Data: pngPayload()})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestUploadRequiresFile(t *testing.T) {
	env := newUploadEnv()
	_, err := env.svc.Upload(context.Background(), UploadInput{OwnerID: "user-1"})
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestUploadRejectsUnknownType(t *testing.T) {
	env := newUploadEnv()
	_, err := env.svc.Upload(context.Background(), UploadInput{
		OwnerID: "user-1",
		Data:    []byte("definitely not an image"),
	})
	assert.ErrorIs(t, err, sniffer.ErrUnknownType)
	assert.Zero(t, env.objects.count(), "nothing should reach storage")
}

func TestUploadStorageFailure(t *testing.T) {
	env := newUploadEnv()
	env.objects.failPut = errors.New("bucket offline")

	_, err := env.svc.Upload(context.Background(), UploadInput{
		OwnerID: "user-1",
		Data:    pngPayload(),
	})

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Empty(t, env.shots.shots, "insert must not run after a failed write")
}

func TestUploadCompensatesFailedInsert(t *testing.T) {
	env := newUploadEnv()
	env.shots.failCreate = errors.New("unique violation")

	_, err := env.svc.Upload(context.Background(), UploadInput{
		OwnerID: "user-1",
		Data:    pngPayload(),
	})

	var failure *PersistFailure
	require.ErrorAs(t, err, &failure)
	assert.True(t, failure.CleanedUp())
	assert.Zero(t, env.objects.count(), "stored object must be removed after a failed insert")
}

func TestUploadReportsOrphanedObject(t *testing.T) {
	env := newUploadEnv()
	env.shots.failCreate = errors.New("unique violation")
	env.objects.failRemove = errors.New("bucket offline")

	_, err := env.svc.Upload(context.Background(), UploadInput{
		OwnerID: "user-1",
		Data:    pngPayload(),
	})

	var failure *PersistFailure
	require.ErrorAs(t, err, &failure)
	assert.False(t, failure.CleanedUp())
	assert.Equal(t, 1, env.objects.count(), "orphaned object remains when cleanup fails")
}

func TestDeleteRemovesObjectLinksAndRow(t *testing.T) {
	env := newUploadEnv()
	ctx := context.Background()

	result, err := env.svc.Upload(ctx, UploadInput{OwnerID: "user-1", Data: pngPayload()})
	require.NoError(t, err)
	shot := result.Screenshot

	require.NoError(t, env.links.Create(ctx, models.ShareLink{
		ID:           "link-1",
		ScreenshotID: shot.ID,
		UserID:       "user-1",
		Token:        "tok-1",
	}))

	require.NoError(t, env.svc.Delete(ctx, shot.ID, "user-1"))

	_, ok := env.objects.get(shot.StorageKey)
	assert.False(t, ok, "object should be gone")
	assert.Empty(t, env.links.links, "share links should be gone")
	assert.Equal(t, []string{"tok-1"}, env.invalidator.tokens, "cached resolution must be dropped")
	_, err = env.shots.GetOwned(ctx, shot.ID, "user-1")
	assert.ErrorIs(t, err, repository.ErrScreenshotNotFound)
}

func TestDeleteSkipsRemoveWhenObjectAbsent(t *testing.T) {
	env := newUploadEnv()
	ctx := context.Background()

	result, err := env.svc.Upload(ctx, UploadInput{OwnerID: "user-1", Data: pngPayload()})
	require.NoError(t, err)
	shot := result.Screenshot

	// Simulate an object lost out of band; delete must not issue a remove
	// for it.
	env.objects.mu.Lock()
	delete(env.objects.objects, shot.StorageKey)
	env.objects.removes = 0
	env.objects.mu.Unlock()

	require.NoError(t, env.svc.Delete(ctx, shot.ID, "user-1"))
	assert.Zero(t, env.objects.removes, "no remove call for an absent object")
	_, err = env.shots.GetOwned(ctx, shot.ID, "user-1")
	assert.ErrorIs(t, err, repository.ErrScreenshotNotFound)
}

func TestUploadRejectsMismatchedContentType(t *testing.T) {
	env := newUploadEnv()

	_, err := env.svc.Upload(context.Background(), UploadInput{
		OwnerID:      "user-1",
		Data:         pngPayload(),
		Filename:     "shot.png",
		DeclaredMIME: "image/jpeg",
	})
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Zero(t, env.objects.count(), "mismatched upload must not reach storage")
}

func TestUploadAcceptsMatchingContentType(t *testing.T) {
	env := newUploadEnv()

	_, err := env.svc.Upload(context.Background(), UploadInput{
		OwnerID:      "user-1",
		Data:         pngPayload(),
		Filename:     "shot.png",
		DeclaredMIME: "image/png",
	})
	assert.NoError(t, err)
}

func TestDeleteSurvivesObjectRemovalFailure(t *testing.T) {
	env := newUploadEnv()
	ctx := context.Background()

	result, err := env.svc.Upload(ctx, UploadInput{OwnerID: "user-1", Data: pngPayload()})
	require.NoError(t, err)

	env.objects.failRemove = errors.New("bucket offline")
	require.NoError(t, env.svc.Delete(ctx, result.Screenshot.ID, "user-1"))

	_, err = env.shots.GetOwned(ctx, result.Screenshot.ID, "user-1")
	assert.Error(t, err, "metadata row must be deleted even when storage fails")
}

func TestDeleteUnknownScreenshot(t *testing.T) {
	env := newUploadEnv()
	err := env.svc.Delete(context.Background(), "missing", "user-1")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestDeleteForeignScreenshot(t *testing.T) {
	env := newUploadEnv()
	ctx := context.Background()

	result, err := env.svc.Upload(ctx, UploadInput{OwnerID: "user-1", Data: pngPayload()})
	require.NoError(t, err)

	err = env.svc.Delete(ctx, result.Screenshot.ID, "user-2")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	_, getErr := env.shots.GetOwned(ctx, result.Screenshot.ID, "user-1")
	assert.NoError(t, getErr, "foreign delete must not touch the record")
}

func TestParseTags(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"single", "alpha", []string{"alpha"}},
		{"trimmed", " alpha , beta ", []string{"alpha", "beta"}},
		{"drops empty tokens", "alpha,,beta,", []string{"alpha", "beta"}},
		{"only separators", " , , ", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseTags(tc.raw))
		})
	}
}
