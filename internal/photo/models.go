package photo

import "time"

// Pair roles.
const (
	RoleBefore = "BEFORE"
	RoleAfter  = "AFTER"
)

var allowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

type Category struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateCategoryRequest struct {
	Slug        string  `json:"slug" yaml:"slug"`
	Name        string  `json:"name" yaml:"name"`
	Description *string `json:"description,omitempty" yaml:"description"`
	SortOrder   int     `json:"sort_order" yaml:"sort_order"`
}

type UpdateCategoryRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	SortOrder   *int    `json:"sort_order,omitempty"`
}

type Photo struct {
	ID              string     `json:"id"`
	PatientID       string     `json:"patient_id"`
	CategoryID      string     `json:"category_id"`
	TreatmentPlanID *string    `json:"treatment_plan_id,omitempty"`
	PublicID        string     `json:"public_id"`
	URL             string     `json:"url"`
	SecureURL       string     `json:"secure_url"`
	ThumbnailURL    *string    `json:"thumbnail_url,omitempty"`
	ArchiveKey      *string    `json:"-"`
	Width           *int       `json:"width,omitempty"`
	Height          *int       `json:"height,omitempty"`
	Format          *string    `json:"format,omitempty"`
	Bytes           *int64     `json:"bytes,omitempty"`
	TakenAt         time.Time  `json:"taken_at"`
	Notes           *string    `json:"notes,omitempty"`
	Tags            []string   `json:"tags"`
	PairID          *string    `json:"pair_id,omitempty"`
	PairRole        *string    `json:"pair_role,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// UploadRequest is a decoded multipart upload. CategoryID accepts a
// category id or slug.
type UploadRequest struct {
	PatientID       string
	CategoryID      string
	TreatmentPlanID *string
	TakenAt         *time.Time
	Notes           *string
	Tags            []string
	Filename        string
	ContentType     string
	Data            []byte
}

// UpdateMetadataRequest is a partial update. An empty treatment_plan_id
// detaches the photo from its plan.
type UpdateMetadataRequest struct {
	CategoryID      *string    `json:"category_id,omitempty"`
	TreatmentPlanID *string    `json:"treatment_plan_id,omitempty"`
	TakenAt         *time.Time `json:"taken_at,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
}

// ListFilter narrows a patient's photo listing.
type ListFilter struct {
	CategoryID      string
	TreatmentPlanID string
}

type CreatePairRequest struct {
	BeforeID string `json:"before_id"`
	AfterID  string `json:"after_id"`
}

// Pair is a before/after comparison of two photos of one patient.
type Pair struct {
	PairID    string `json:"pair_id"`
	PatientID string `json:"patient_id"`
	Before    Photo  `json:"before"`
	After     Photo  `json:"after"`
}

// SearchRequest queries the remote store within a patient's folder.
type SearchRequest struct {
	Category   string
	Tag        string
	MaxResults int
	Cursor     string
}
