package media

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/linesmerrill/swachhsnap-api/config"
)

type objectStore interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
}

// MinioUploader stores images in an S3 compatible bucket
type MinioUploader struct {
	store     objectStore
	bucket    string
	publicURL string
}

// NewMinioUploader needs an endpoint and a key pair
func NewMinioUploader(conf config.MinioConfig) (*MinioUploader, error) {
	if conf.Endpoint == "" || conf.AccessKey == "" || conf.SecretKey == "" {
		return nil, fmt.Errorf("%w: minio needs MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY", ErrNotConfigured)
	}
	mc, err := minio.New(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.AccessKey, conf.SecretKey, ""),
		Secure: conf.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	return newMinioUploader(mc, conf), nil
}

func newMinioUploader(store objectStore, conf config.MinioConfig) *MinioUploader {
	bucket := conf.Bucket
	if bucket == "" {
		bucket = "swachhsnap"
	}
	public := conf.PublicURL
	if public == "" {
		scheme := "http"
		if conf.UseSSL {
			scheme = "https"
		}
		public = scheme + "://" + conf.Endpoint
	}
	return &MinioUploader{store: store, bucket: bucket, publicURL: strings.TrimRight(public, "/")}
}

// EnsureBucket creates the bucket on first start
func (m *MinioUploader) EnsureBucket(ctx context.Context) error {
	exists, err := m.store.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.store.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	zap.S().Infow("created media bucket", "bucket", m.bucket)
	return nil
}

// Upload puts the image at key and returns <public url>/<bucket>/<key>
func (m *MinioUploader) Upload(ctx context.Context, img Image, key string) (string, error) {
	if len(img.Data) == 0 {
		return "", fmt.Errorf("%w: empty", ErrInvalidImage)
	}
	_, err := m.store.PutObject(ctx, m.bucket, key, img.Reader(), img.Size(), minio.PutObjectOptions{
		ContentType: img.ContentType,
	})
	if err != nil {
		return "", &UploadError{Provider: "minio", StatusCode: minio.ToErrorResponse(err).StatusCode, Err: err}
	}
	return fmt.Sprintf("%s/%s/%s", m.publicURL, m.bucket, key), nil
}

// Remove deletes the object at key
func (m *MinioUploader) Remove(ctx context.Context, key string) error {
	if err := m.store.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return &UploadError{Provider: "minio", StatusCode: minio.ToErrorResponse(err).StatusCode, Err: err}
	}
	return nil
}

// Hosts accepts urls under this bucket's public prefix
func (m *MinioUploader) Hosts(rawURL string) bool {
	prefix := m.publicURL + "/" + m.bucket + "/"
	return strings.HasPrefix(rawURL, prefix) && len(rawURL) > len(prefix) && !strings.Contains(rawURL[len(prefix):], "..")
}
