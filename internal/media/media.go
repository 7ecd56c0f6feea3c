// Package media stores clinical photos in Cloudinary and optionally keeps
// the untouched originals in an S3 archive bucket.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/orthoflow/practice-service/internal/apperr"
)

// ErrNotConfigured is returned by the disabled store.
var ErrNotConfigured = fmt.Errorf("%w: photo storage is not configured", apperr.ErrUnavailable)

// UploadInput describes one image upload.
type UploadInput struct {
	Body     io.Reader
	Folder   string
	PublicID string
	Tags     []string
}

// Asset is what the store reports back for an uploaded image.
type Asset struct {
	PublicID  string
	URL       string
	SecureURL string
	Width     int
	Height    int
	Format    string
	Bytes     int64
}

// RemoteAsset is one hit from a store search.
type RemoteAsset struct {
	PublicID  string    `json:"public_id"`
	Folder    string    `json:"folder"`
	SecureURL string    `json:"secure_url"`
	Format    string    `json:"format"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Bytes     int64     `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

type SearchResult struct {
	TotalCount int           `json:"total_count"`
	NextCursor string        `json:"next_cursor,omitempty"`
	Assets     []RemoteAsset `json:"assets"`
}

// Store is the primary photo store.
type Store interface {
	Upload(ctx context.Context, in UploadInput) (*Asset, error)
	Destroy(ctx context.Context, publicID string) error
	URL(publicID string, t Transform) (string, error)
	Search(ctx context.Context, expression string, maxResults int, cursor string) (*SearchResult, error)
}

// Crop modes accepted by Transform.
var cropModes = map[string]bool{
	"fill": true, "fit": true, "limit": true, "scale": true, "thumb": true, "crop": true, "pad": true,
}

const maxDimension = 4000

// Transform is a delivery-time resize of an image.
type Transform struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Crop    string `json:"crop"`
	Quality string `json:"quality"`
	Format  string `json:"format"`
}

// Thumbnail is the transform stored as thumbnail_url.
var Thumbnail = Transform{Width: 300, Height: 300, Crop: "fill", Quality: "auto", Format: "auto"}

// Validate checks bounds and crop mode.
func (t Transform) Validate() error {
	if t.Width < 0 || t.Width > maxDimension {
		return apperr.Invalid("width", "must be between 1 and %d", maxDimension)
	}
	if t.Height < 0 || t.Height > maxDimension {
		return apperr.Invalid("height", "must be between 1 and %d", maxDimension)
	}
	if t.Width == 0 && t.Height == 0 {
		return apperr.Invalid("width", "width or height is required")
	}
	if t.Crop != "" && !cropModes[t.Crop] {
		return apperr.Invalid("crop", "unknown crop mode %q", t.Crop)
	}
	for field, v := range map[string]string{"quality": t.Quality, "format": t.Format} {
		if strings.ContainsAny(v, ",/ ") {
			return apperr.Invalid(field, "contains invalid characters")
		}
	}
	return nil
}

// String renders the transformation in Cloudinary URL syntax.
func (t Transform) String() string {
	var parts []string
	if t.Crop != "" {
		parts = append(parts, "c_"+t.Crop)
	}
	if t.Width > 0 {
		parts = append(parts, fmt.Sprintf("w_%d", t.Width))
	}
	if t.Height > 0 {
		parts = append(parts, fmt.Sprintf("h_%d", t.Height))
	}
	if t.Quality != "" {
		parts = append(parts, "q_"+t.Quality)
	}
	if t.Format != "" {
		parts = append(parts, "f_"+t.Format)
	}
	return strings.Join(parts, ",")
}

// Disabled is the Store used when Cloudinary credentials are absent.
type Disabled struct{}

func (Disabled) Upload(context.Context, UploadInput) (*Asset, error) { return nil, ErrNotConfigured }
func (Disabled) Destroy(context.Context, string) error               { return ErrNotConfigured }
func (Disabled) URL(string, Transform) (string, error)               { return "", ErrNotConfigured }
func (Disabled) Search(context.Context, string, int, string) (*SearchResult, error) {
	return nil, ErrNotConfigured
}

// IsNotConfigured reports whether err came from a disabled store.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}
