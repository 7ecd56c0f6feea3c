package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/admin"
	"github.com/cloudinary/cloudinary-go/v2/api/admin/search"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

type searchAPI interface {
	Search(ctx context.Context, q search.Query) (*admin.SearchResult, error)
}

// Cloudinary is the Store backed by a Cloudinary account.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	upload uploadAPI
	admin  searchAPI
	logger zerolog.Logger
}

// CloudinaryConfig holds either a CLOUDINARY_URL or discrete credentials.
type CloudinaryConfig struct {
	URL       string
	CloudName string
	APIKey    string
	APISecret string
}

func NewCloudinary(cfg CloudinaryConfig, logger zerolog.Logger) (*Cloudinary, error) {
	var (
		cld *cloudinary.Cloudinary
		err error
	)
	if cfg.URL != "" {
		cld, err = cloudinary.NewFromURL(cfg.URL)
	} else {
		cld, err = cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	}
	if err != nil {
		return nil, fmt.Errorf("cloudinary client: %w", err)
	}
	cld.Config.URL.Secure = true

	logger.Info().Str("cloud", cld.Config.Cloud.CloudName).Msg("cloudinary photo store configured")
	return &Cloudinary{cld: cld, upload: &cld.Upload, admin: &cld.Admin, logger: logger}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, in UploadInput) (*Asset, error) {
	res, err := c.upload.Upload(ctx, in.Body, uploader.UploadParams{
		PublicID:       in.PublicID,
		Folder:         in.Folder,
		Tags:           in.Tags,
		ResourceType:   "image",
		Overwrite:      api.Bool(false),
		UniqueFilename: api.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	return &Asset{
		PublicID:  res.PublicID,
		URL:       res.URL,
		SecureURL: res.SecureURL,
		Width:     res.Width,
		Height:    res.Height,
		Format:    res.Format,
		Bytes:     int64(res.Bytes),
	}, nil
}

// Destroy removes an asset and invalidates cached derivatives. A missing
// asset is not an error.
func (c *Cloudinary) Destroy(ctx context.Context, publicID string) error {
	res, err := c.upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: "image",
		Invalidate:   api.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("cloudinary destroy %s: %w", publicID, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy %s: %s", publicID, res.Error.Message)
	}
	if res.Result != "ok" && res.Result != "not found" {
		return fmt.Errorf("cloudinary destroy %s: unexpected result %q", publicID, res.Result)
	}
	return nil
}

func (c *Cloudinary) URL(publicID string, t Transform) (string, error) {
	if publicID == "" {
		return "", errors.New("public id is required")
	}
	img, err := c.cld.Image(publicID)
	if err != nil {
		return "", fmt.Errorf("cloudinary image %s: %w", publicID, err)
	}
	img.Transformation = t.String()
	return img.String()
}

func (c *Cloudinary) Search(ctx context.Context, expression string, maxResults int, cursor string) (*SearchResult, error) {
	res, err := c.admin.Search(ctx, search.Query{
		Expression: expression,
		SortBy:     []search.SortByField{{"created_at": search.Descending}},
		MaxResults: maxResults,
		NextCursor: cursor,
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary search: %w", err)
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary search: %s", res.Error.Message)
	}

	out := &SearchResult{TotalCount: res.TotalCount, NextCursor: res.NextCursor, Assets: make([]RemoteAsset, 0, len(res.Assets))}
	for _, a := range res.Assets {
		out.Assets = append(out.Assets, RemoteAsset{
			PublicID:  a.PublicID,
			Folder:    a.Folder,
			SecureURL: a.SecureURL,
			Format:    a.Format,
			Width:     a.Width,
			Height:    a.Height,
			Bytes:     int64(a.Bytes),
			CreatedAt: a.CreatedAt,
		})
	}
	return out, nil
}
