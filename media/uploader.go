package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/linesmerrill/swachhsnap-api/config"
)

var (
	// ErrNotConfigured is returned when the selected provider is missing credentials
	ErrNotConfigured = errors.New("media provider not configured")
	// ErrInvalidImage is returned for empty, oversized or non-image payloads
	ErrInvalidImage = errors.New("invalid image")
)

// UploadError is a failed upload reported by the provider
type UploadError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UploadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s upload failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s upload failed: %v", e.Provider, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Uploader stores an image under key and returns its public url. A non-nil
// error means nothing usable was stored.
type Uploader interface {
	Upload(ctx context.Context, img Image, key string) (string, error)
}

// Remover deletes an object stored by Upload
type Remover interface {
	Remove(ctx context.Context, key string) error
}

// Host reports whether a url points at an image this provider stores, so a
// client may upload directly and hand over only the url
type Host interface {
	Hosts(rawURL string) bool
}

// New builds the uploader selected by conf.Media.Provider
func New(conf *config.Config) (Uploader, error) {
	switch strings.ToLower(conf.Media.Provider) {
	case "cloudinary", "":
		return NewCloudinaryUploader(conf.Cloudinary)
	case "minio", "s3":
		return NewMinioUploader(conf.Minio)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNotConfigured, conf.Media.Provider)
	}
}
