package handlers_test

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/swachhsnap-api/api"
	"github.com/linesmerrill/swachhsnap-api/media"
	"github.com/linesmerrill/swachhsnap-api/models"
)

const pngDataURL = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

const cdnPrefix = "https://cdn.example.com/"

type fakeUploader struct {
	mu      sync.Mutex
	keys    []string
	removed []string
	err     error
}

func (f *fakeUploader) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, key)
	return nil
}

func (f *fakeUploader) Hosts(rawURL string) bool {
	return strings.HasPrefix(rawURL, cdnPrefix)
}

func (f *fakeUploader) removedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func (f *fakeUploader) Upload(_ context.Context, img media.Image, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return cdnPrefix + key, nil
}

func (f *fakeUploader) uploaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

func caller(role models.Role) api.Identity {
	return api.Identity{ID: primitive.NewObjectID().Hex(), Name: string(role) + " one", Email: string(role) + "@example.com", Role: role}
}

func as(req *http.Request, id api.Identity) *http.Request {
	return req.WithContext(api.WithIdentity(req.Context(), id))
}

func strPtr(s string) *string { return &s }
