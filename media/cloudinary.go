package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/linesmerrill/swachhsnap-api/config"
)

type cloudinaryAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

const cloudinaryHost = "res.cloudinary.com"

// CloudinaryUploader hosts images on Cloudinary
type CloudinaryUploader struct {
	api  cloudinaryAPI
	conf config.CloudinaryConfig
	now  func() time.Time
}

// NewCloudinaryUploader needs a cloud name plus either an api key and
// secret, or an unsigned upload preset
func NewCloudinaryUploader(conf config.CloudinaryConfig) (*CloudinaryUploader, error) {
	if conf.CloudName == "" {
		return nil, fmt.Errorf("%w: cloudinary needs CLOUDINARY_CLOUD_NAME", ErrNotConfigured)
	}
	if (conf.APIKey == "" || conf.APISecret == "") && conf.UploadPreset == "" {
		return nil, fmt.Errorf("%w: cloudinary needs CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET, or CLOUDINARY_UPLOAD_PRESET", ErrNotConfigured)
	}
	cld, err := cloudinary.NewFromParams(conf.CloudName, conf.APIKey, conf.APISecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	return &CloudinaryUploader{api: &cld.Upload, conf: conf, now: time.Now}, nil
}

// unsigned is true when only an upload preset is configured
func (c *CloudinaryUploader) unsigned() bool {
	return c.conf.APIKey == "" || c.conf.APISecret == ""
}

// Upload sends the image with key, minus its extension, as the public id
func (c *CloudinaryUploader) Upload(ctx context.Context, img Image, key string) (string, error) {
	if len(img.Data) == 0 {
		return "", fmt.Errorf("%w: empty", ErrInvalidImage)
	}
	resp, err := c.api.Upload(ctx, img.Reader(), uploader.UploadParams{
		PublicID:     strings.TrimSuffix(key, path.Ext(key)),
		Folder:       c.conf.Folder,
		UploadPreset: c.conf.UploadPreset,
		Unsigned:     api.Bool(c.unsigned()),
	})
	if err != nil {
		return "", &UploadError{Provider: "cloudinary", Err: err}
	}
	if resp == nil {
		return "", &UploadError{Provider: "cloudinary", Err: errors.New("empty response")}
	}
	if resp.Error.Message != "" {
		return "", &UploadError{Provider: "cloudinary", Err: errors.New(resp.Error.Message)}
	}
	if resp.SecureURL == "" {
		return "", &UploadError{Provider: "cloudinary", Err: errors.New("response carried no url")}
	}
	return resp.SecureURL, nil
}

// SignedUpload is what a browser needs to upload straight to Cloudinary
type SignedUpload struct {
	CloudName    string `json:"cloudName"`
	APIKey       string `json:"apiKey"`
	Timestamp    string `json:"timestamp"`
	Folder       string `json:"folder,omitempty"`
	UploadPreset string `json:"uploadPreset,omitempty"`
	Signature    string `json:"signature"`
}

// Remove destroys the image Upload stored under key. Deletes are always
// signed, so an unsigned setup cannot remove anything.
func (c *CloudinaryUploader) Remove(ctx context.Context, key string) error {
	if c.unsigned() {
		return fmt.Errorf("%w: deleting needs CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET", ErrNotConfigured)
	}
	publicID := strings.TrimSuffix(key, path.Ext(key))
	if c.conf.Folder != "" {
		publicID = path.Join(c.conf.Folder, publicID)
	}
	resp, err := c.api.Destroy(ctx, uploader.DestroyParams{PublicID: publicID, Invalidate: api.Bool(true)})
	if err != nil {
		return &UploadError{Provider: "cloudinary", Err: err}
	}
	if resp != nil && resp.Error.Message != "" {
		return &UploadError{Provider: "cloudinary", Err: errors.New(resp.Error.Message)}
	}
	return nil
}

// Hosts accepts https delivery urls of images in this cloud and folder
func (c *CloudinaryUploader) Hosts(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "https" || u.Host != cloudinaryHost {
		return false
	}
	if !strings.HasPrefix(u.Path, "/"+c.conf.CloudName+"/image/upload/") {
		return false
	}
	return c.conf.Folder == "" || strings.Contains(u.Path, "/"+c.conf.Folder+"/")
}

// Sign returns signed parameters for a direct client upload. An unsigned
// setup has no secret to sign with.
func (c *CloudinaryUploader) Sign() (SignedUpload, error) {
	if c.unsigned() {
		return SignedUpload{}, fmt.Errorf("%w: signing needs CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET", ErrNotConfigured)
	}
	s := SignedUpload{
		CloudName:    c.conf.CloudName,
		APIKey:       c.conf.APIKey,
		Timestamp:    strconv.FormatInt(c.now().Unix(), 10),
		Folder:       c.conf.Folder,
		UploadPreset: c.conf.UploadPreset,
	}
	params := url.Values{"timestamp": {s.Timestamp}}
	if s.Folder != "" {
		params.Set("folder", s.Folder)
	}
	if s.UploadPreset != "" {
		params.Set("upload_preset", s.UploadPreset)
	}
	sig, err := api.SignParameters(params, c.conf.APISecret)
	if err != nil {
		return SignedUpload{}, fmt.Errorf("failed to sign upload parameters: %w", err)
	}
	s.Signature = sig
	return s, nil
}
