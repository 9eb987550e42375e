package media

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/swachhsnap-api/config"
)

// smallest valid png: 1x1 transparent pixel
var pngPixel, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}

func TestNewImageSniffsType(t *testing.T) {
	img, err := NewImage(pngPixel, 0)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, "png", img.Extension())

	img, err = NewImage(jpegHeader, 0)
	require.NoError(t, err)
	assert.Equal(t, "jpg", img.Extension())
}

func TestNewImageRejects(t *testing.T) {
	_, err := NewImage(nil, 0)
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = NewImage([]byte("%PDF-1.4 not a photo"), 0)
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = NewImage(pngPixel, 10)
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestReadImageStopsAtLimit(t *testing.T) {
	big := strings.NewReader(string(jpegHeader) + strings.Repeat("x", 100))
	_, err := ReadImage(big, 50)
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestDecodeDataURL(t *testing.T) {
	img, err := DecodeDataURL("data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngPixel), 0)
	require.NoError(t, err)
	assert.Equal(t, pngPixel, img.Data)

	_, err = DecodeDataURL("https://example.com/a.png", 0)
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = DecodeDataURL("data:image/png,rawbytes", 0)
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = DecodeDataURL("data:image/png;base64,!!!", 0)
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestObjectKey(t *testing.T) {
	img, _ := NewImage(jpegHeader, 0)
	assert.Equal(t, "complaints/abc/before.jpg", ObjectKey("abc", StageBefore, img))
	assert.Equal(t, "complaints/abc/after.jpg", ObjectKey("abc", StageAfter, img))
}

func TestNewSelectsProvider(t *testing.T) {
	_, err := New(&config.Config{Media: config.MediaConfig{Provider: "cloudinary"}})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New(&config.Config{Media: config.MediaConfig{Provider: "minio"}})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New(&config.Config{Media: config.MediaConfig{Provider: "ftp"}})
	assert.ErrorIs(t, err, ErrNotConfigured)

	up, err := New(&config.Config{
		Media: config.MediaConfig{Provider: "minio"},
		Minio: config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s"},
	})
	require.NoError(t, err)
	assert.IsType(t, &MinioUploader{}, up)
}

type fakeCloudinary struct {
	params    uploader.UploadParams
	result    *uploader.UploadResult
	err       error
	destroyed string
}

func (f *fakeCloudinary) Destroy(_ context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error) {
	f.destroyed = params.PublicID
	return &uploader.DestroyResult{Result: "ok"}, f.err
}

func (f *fakeCloudinary) Upload(_ context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error) {
	f.params = params
	if _, ok := file.(io.Reader); !ok {
		return nil, errors.New("expected a reader")
	}
	return f.result, f.err
}

func TestCloudinaryUpload(t *testing.T) {
	fake := &fakeCloudinary{result: &uploader.UploadResult{SecureURL: "https://res.cloudinary.com/demo/complaints/abc/before.jpg"}}
	c := &CloudinaryUploader{api: fake, conf: config.CloudinaryConfig{Folder: "swachhsnap", UploadPreset: "civic"}}
	img, _ := NewImage(jpegHeader, 0)

	got, err := c.Upload(context.Background(), img, "complaints/abc/before.jpg")

	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/demo/complaints/abc/before.jpg", got)
	assert.Equal(t, "complaints/abc/before", fake.params.PublicID)
	assert.Equal(t, "swachhsnap", fake.params.Folder)
	assert.Equal(t, "civic", fake.params.UploadPreset)
	require.NotNil(t, fake.params.Unsigned)
	assert.True(t, *fake.params.Unsigned)
}

func TestCloudinaryPresetOnly(t *testing.T) {
	up, err := New(&config.Config{
		Media:      config.MediaConfig{Provider: "cloudinary"},
		Cloudinary: config.CloudinaryConfig{CloudName: "demo", UploadPreset: "civic"},
	})
	require.NoError(t, err)
	c, ok := up.(*CloudinaryUploader)
	require.True(t, ok)
	assert.True(t, c.unsigned())

	_, err = c.Sign()
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, c.Remove(context.Background(), "complaints/abc/after.jpg"), ErrNotConfigured)

	_, err = NewCloudinaryUploader(config.CloudinaryConfig{CloudName: "demo"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCloudinarySignedUploadAndRemove(t *testing.T) {
	fake := &fakeCloudinary{result: &uploader.UploadResult{SecureURL: "https://res.cloudinary.com/demo/image/upload/swachhsnap/k.jpg"}}
	c := &CloudinaryUploader{api: fake, conf: config.CloudinaryConfig{CloudName: "demo", APIKey: "key", APISecret: "secret", Folder: "swachhsnap"}}
	img, _ := NewImage(jpegHeader, 0)

	_, err := c.Upload(context.Background(), img, "k.jpg")
	require.NoError(t, err)
	require.NotNil(t, fake.params.Unsigned)
	assert.False(t, *fake.params.Unsigned)

	require.NoError(t, c.Remove(context.Background(), "complaints/abc/after.jpg"))
	assert.Equal(t, "swachhsnap/complaints/abc/after", fake.destroyed)
}

func TestCloudinaryHosts(t *testing.T) {
	c := &CloudinaryUploader{conf: config.CloudinaryConfig{CloudName: "demo", Folder: "swachhsnap"}}

	assert.True(t, c.Hosts("https://res.cloudinary.com/demo/image/upload/v1712/swachhsnap/complaints/abc/after.jpg"))
	assert.False(t, c.Hosts("http://res.cloudinary.com/demo/image/upload/v1712/swachhsnap/a.jpg"))
	assert.False(t, c.Hosts("https://res.cloudinary.com/other/image/upload/v1712/swachhsnap/a.jpg"))
	assert.False(t, c.Hosts("https://res.cloudinary.com/demo/image/upload/v1712/elsewhere/a.jpg"))
	assert.False(t, c.Hosts("https://evil.example.com/demo/image/upload/swachhsnap/a.jpg"))
	assert.False(t, c.Hosts("::not a url"))
}

func TestCloudinaryUploadFailures(t *testing.T) {
	img, _ := NewImage(jpegHeader, 0)
	tests := []struct {
		name string
		fake *fakeCloudinary
	}{
		{"transport", &fakeCloudinary{err: errors.New("dial tcp: timeout")}},
		{"api error", &fakeCloudinary{result: &uploader.UploadResult{Error: api.ErrorResp{Message: "Invalid Signature"}}}},
		{"no url", &fakeCloudinary{result: &uploader.UploadResult{}}},
		{"nil result", &fakeCloudinary{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &CloudinaryUploader{api: tt.fake}
			got, err := c.Upload(context.Background(), img, "k.jpg")
			assert.Empty(t, got)
			var ue *UploadError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, "cloudinary", ue.Provider)
		})
	}
}

func TestCloudinarySign(t *testing.T) {
	c := &CloudinaryUploader{
		conf: config.CloudinaryConfig{CloudName: "demo", APIKey: "key", APISecret: "secret", UploadPreset: "civic"},
		now:  time.Now,
	}
	s, err := c.Sign()
	require.NoError(t, err)
	assert.Equal(t, "demo", s.CloudName)
	assert.NotEmpty(t, s.Signature)
	assert.NotEmpty(t, s.Timestamp)
}

type fakeStore struct {
	bucket, key, contentType string
	size                     int64
	exists                   bool
	made                     bool
	removed                  string
	err                      error
}

func (f *fakeStore) RemoveObject(_ context.Context, _, object string, _ minio.RemoveObjectOptions) error {
	f.removed = object
	return f.err
}

func (f *fakeStore) PutObject(_ context.Context, bucket, object string, _ io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.bucket, f.key, f.size, f.contentType = bucket, object, size, opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: object}, f.err
}

func (f *fakeStore) BucketExists(context.Context, string) (bool, error) { return f.exists, nil }

func (f *fakeStore) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	f.made = true
	return nil
}

func TestMinioUpload(t *testing.T) {
	store := &fakeStore{}
	m := newMinioUploader(store, config.MinioConfig{Endpoint: "minio.local:9000", UseSSL: true})
	img, _ := NewImage(pngPixel, 0)

	got, err := m.Upload(context.Background(), img, "complaints/abc/after.png")

	require.NoError(t, err)
	assert.Equal(t, "https://minio.local:9000/swachhsnap/complaints/abc/after.png", got)
	assert.Equal(t, "image/png", store.contentType)
	assert.Equal(t, int64(len(pngPixel)), store.size)
}

func TestMinioUploadFailure(t *testing.T) {
	store := &fakeStore{err: minio.ErrorResponse{StatusCode: 403, Code: "AccessDenied", Message: "denied"}}
	m := newMinioUploader(store, config.MinioConfig{Endpoint: "x", PublicURL: "https://cdn.example.com/"})
	img, _ := NewImage(pngPixel, 0)

	got, err := m.Upload(context.Background(), img, "k.png")

	assert.Empty(t, got)
	var ue *UploadError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 403, ue.StatusCode)
}

func TestMinioRemoveAndHosts(t *testing.T) {
	store := &fakeStore{}
	m := newMinioUploader(store, config.MinioConfig{Endpoint: "x", PublicURL: "https://cdn.example.com/"})

	require.NoError(t, m.Remove(context.Background(), "complaints/abc/after.png"))
	assert.Equal(t, "complaints/abc/after.png", store.removed)

	assert.True(t, m.Hosts("https://cdn.example.com/swachhsnap/complaints/abc/after.png"))
	assert.False(t, m.Hosts("https://cdn.example.com/swachhsnap/"))
	assert.False(t, m.Hosts("https://cdn.example.com/other/a.png"))
	assert.False(t, m.Hosts("https://cdn.example.com/swachhsnap/../other/a.png"))
}

func TestMinioEnsureBucket(t *testing.T) {
	store := &fakeStore{}
	require.NoError(t, newMinioUploader(store, config.MinioConfig{}).EnsureBucket(context.Background()))
	assert.True(t, store.made)

	store = &fakeStore{exists: true}
	require.NoError(t, newMinioUploader(store, config.MinioConfig{}).EnsureBucket(context.Background()))
	assert.False(t, store.made)
}
