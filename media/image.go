// Package media turns captured stills into hosted image URLs.
package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes caps an encoded still when no limit is configured
const DefaultMaxBytes = 10 << 20

// Stages of a complaint photo
const (
	StageBefore = "before"
	StageAfter  = "after"
)

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/heic": "heic",
}

// Image is an encoded still with its sniffed content type
type Image struct {
	Data        []byte
	ContentType string
}

// NewImage sniffs data and accepts it only if it is a supported image no
// larger than maxBytes
func NewImage(data []byte, maxBytes int64) (Image, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty", ErrInvalidImage)
	}
	if int64(len(data)) > maxBytes {
		return Image{}, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrInvalidImage, len(data), maxBytes)
	}
	mt := mimetype.Detect(data)
	for ct := range extensions {
		if mt.Is(ct) {
			return Image{Data: data, ContentType: ct}, nil
		}
	}
	return Image{}, fmt.Errorf("%w: unsupported content type %s", ErrInvalidImage, mt.String())
}

// ReadImage reads at most maxBytes+1 bytes from r and validates them
func ReadImage(r io.Reader, maxBytes int64) (Image, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return NewImage(data, maxBytes)
}

// DecodeDataURL accepts a base64 data url such as a canvas export
func DecodeDataURL(s string, maxBytes int64) (Image, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return Image{}, fmt.Errorf("%w: not a data url", ErrInvalidImage)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return Image{}, fmt.Errorf("%w: data url is not base64 encoded", ErrInvalidImage)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return NewImage(data, maxBytes)
}

// Extension is the file extension for the image type, without a dot
func (i Image) Extension() string {
	if ext, ok := extensions[i.ContentType]; ok {
		return ext
	}
	return "bin"
}

// Reader returns a fresh reader over the image bytes
func (i Image) Reader() io.Reader {
	return bytes.NewReader(i.Data)
}

// Size is the encoded length in bytes
func (i Image) Size() int64 {
	return int64(len(i.Data))
}

// ObjectKey names a complaint photo, e.g. complaints/<id>/before.jpg
func ObjectKey(complaintID, stage string, img Image) string {
	return fmt.Sprintf("complaints/%s/%s.%s", complaintID, stage, img.Extension())
}
