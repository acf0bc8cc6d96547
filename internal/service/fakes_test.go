package service

import (
	"context"
	"sync"

	"github.com/thebookish/proofsnap/internal/models"
	"github.com/thebookish/proofsnap/internal/repository"
)

type fakeObjectStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	removes    int
	failPut    error
	failRemove error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Put(_ context.Context, key string, data []byte, _ string) error {
	if f.failPut != nil {
		return f.failPut
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	f.objects[key] = buf
	return nil
}

func (f *fakeObjectStore) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	f.removes++
	f.mu.Unlock()
	if f.failRemove != nil {
		return f.failRemove
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStore) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeObjectStore) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

func (f *fakeObjectStore) get(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	return data, ok
}

func (f *fakeObjectStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type fakeScreenshotStore struct {
	mu         sync.Mutex
	shots      map[string]models.Screenshot
	failCreate error
}

func newFakeScreenshotStore() *fakeScreenshotStore {
	return &fakeScreenshotStore{shots: make(map[string]models.Screenshot)}
}

func (f *fakeScreenshotStore) Create(_ context.Context, shot models.Screenshot) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shots[shot.ID] = shot
	return nil
}

func (f *fakeScreenshotStore) GetOwned(_ context.Context, id, userID string) (models.Screenshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	shot, ok := f.shots[id]
	if !ok || shot.UserID != userID {
		return models.Screenshot{}, repository.ErrScreenshotNotFound
	}
	return shot, nil
}

func (f *fakeScreenshotStore) ListByUser(_ context.Context, userID string, limit, offset int) ([]models.Screenshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Screenshot
	for _, shot := range f.shots {
		if shot.UserID == userID {
			out = append(out, shot)
		}
	}
	return out, nil
}

func (f *fakeScreenshotStore) DeleteOwned(_ context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	shot, ok := f.shots[id]
	if !ok || shot.UserID != userID {
		return repository.ErrScreenshotNotFound
	}
	delete(f.shots, id)
	return nil
}

type fakeShareLinkStore struct {
	mu         sync.Mutex
	links      map[string]models.ShareLink // keyed by token
	shots      *fakeScreenshotStore
	failCreate error
}

func newFakeShareLinkStore(shots *fakeScreenshotStore) *fakeShareLinkStore {
	return &fakeShareLinkStore{links: make(map[string]models.ShareLink), shots: shots}
}

func (f *fakeShareLinkStore) Create(_ context.Context, link models.ShareLink) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[link.Token] = link
	return nil
}

func (f *fakeShareLinkStore) ResolveToken(_ context.Context, token string) (models.ShareLink, models.Screenshot, error) {
	f.mu.Lock()
	link, ok := f.links[token]
	f.mu.Unlock()
	if !ok {
		return models.ShareLink{}, models.Screenshot{}, repository.ErrShareLinkNotFound
	}

	f.shots.mu.Lock()
	shot, found := f.shots.shots[link.ScreenshotID]
	f.shots.mu.Unlock()
	if !found {
		return models.ShareLink{}, models.Screenshot{}, repository.ErrShareLinkNotFound
	}
	return link, shot, nil
}

func (f *fakeShareLinkStore) DeleteByScreenshot(_ context.Context, screenshotID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var tokens []string
	for token, link := range f.links {
		if link.ScreenshotID == screenshotID {
			tokens = append(tokens, token)
			delete(f.links, token)
		}
	}
	return tokens, nil
}

type fakeInvalidator struct {
	mu     sync.Mutex
	tokens []string
}

func (f *fakeInvalidator) InvalidateToken(_ context.Context, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
}
