package photo

import (
	"context"
	"io"

	"github.com/orthoflow/practice-service/internal/media"
)

type ServiceInterface interface {
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, req CreateCategoryRequest) (*Category, error)
	UpdateCategory(ctx context.Context, id string, req UpdateCategoryRequest) (*Category, error)
	DeleteCategory(ctx context.Context, id string) error

	Upload(ctx context.Context, req UploadRequest) (*Photo, error)
	GetPhoto(ctx context.Context, id string) (*Photo, error)
	ListForPatient(ctx context.Context, patientID string, filter ListFilter) ([]Photo, error)
	UpdateMetadata(ctx context.Context, id string, req UpdateMetadataRequest) (*Photo, error)
	DeletePhoto(ctx context.Context, id string) error
	Transform(ctx context.Context, id string, t media.Transform) (string, error)
	SearchRemote(ctx context.Context, patientID string, req SearchRequest) (*media.SearchResult, error)

	CreatePair(ctx context.Context, patientID string, req CreatePairRequest) (*Pair, error)
	ListPairs(ctx context.Context, patientID string) ([]Pair, error)
	Unpair(ctx context.Context, pairID string) error
}

// Archiver keeps untouched originals outside the primary store.
type Archiver interface {
	Enabled() bool
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
}

type MetricsRecorder interface {
	RecordPhotoOperation(ctx context.Context, operation string)
}
