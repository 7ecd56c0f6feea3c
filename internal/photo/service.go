package photo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/orthoflow/practice-service/internal/apperr"
	"github.com/orthoflow/practice-service/internal/media"
	"github.com/orthoflow/practice-service/internal/messaging"
)

const (
	defaultFolder    = "ortho"
	defaultMaxBytes  = 20 << 20
	defaultSearchMax = 30
	maxSearchResults = 100
	maxTags          = 20
)

var (
	slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:[-_][a-z0-9]+)*$`)
	tagPattern  = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,39}$`)
)

type Options struct {
	Folder   string
	MaxBytes int64
}

type Service struct {
	repo      RepositoryInterface
	store     media.Store
	archive   Archiver
	publisher messaging.PublisherInterface
	metrics   MetricsRecorder
	logger    zerolog.Logger
	opts      Options
	now       func() time.Time
}

func NewService(repo RepositoryInterface, store media.Store, archive Archiver, publisher messaging.PublisherInterface,
	metrics MetricsRecorder, opts Options, logger zerolog.Logger) *Service {
	if opts.Folder == "" {
		opts.Folder = defaultFolder
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	return &Service{
		repo:      repo,
		store:     store,
		archive:   archive,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.With().Str("component", "photo").Logger(),
		opts:      opts,
		now:       time.Now,
	}
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, req CreateCategoryRequest) (*Category, error) {
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	req.Name = strings.TrimSpace(req.Name)
	if !slugPattern.MatchString(req.Slug) {
		return nil, apperr.Invalid("slug", "must be lower-case letters, digits, dashes or underscores")
	}
	if req.Name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	req.Description = trimmedOrNil(req.Description)
	return s.repo.CreateCategory(ctx, req)
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req UpdateCategoryRequest) (*Category, error) {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperr.Invalid("name", "must not be empty")
		}
		req.Name = &name
	}
	return s.repo.UpdateCategory(ctx, id, req)
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	return s.repo.DeleteCategory(ctx, id)
}

// Upload stores the image, archives the original when an archive is
// configured and records the row. A failed insert rolls back the remote
// copies.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*Photo, error) {
	contentType, err := s.validateUpload(&req)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.PatientExists(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPatientNotFound
	}
	category, err := s.repo.GetCategory(ctx, req.CategoryID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrUnknownCategory
		}
		return nil, err
	}

	photoID := uuid.NewString()
	folder := path.Join(s.opts.Folder, "patients", req.PatientID, category.Slug)
	var archiveKey *string
	if s.archive != nil && s.archive.Enabled() {
		key := media.Key(req.PatientID, photoID, contentType)
		archiveKey = &key
	}

	var asset *media.Asset
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := s.store.Upload(gctx, media.UploadInput{
			Body:     bytes.NewReader(req.Data),
			Folder:   folder,
			PublicID: photoID,
			Tags:     req.Tags,
		})
		if err != nil {
			return fmt.Errorf("failed to upload photo: %w", err)
		}
		asset = a
		return nil
	})
	if archiveKey != nil {
		g.Go(func() error {
			if err := s.archive.Put(gctx, *archiveKey, bytes.NewReader(req.Data), contentType); err != nil {
				s.logger.Warn().Err(err).Str("photo_id", photoID).Msg("failed to archive original")
				archiveKey = nil
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if asset == nil && archiveKey != nil {
			s.cleanupArchive(ctx, *archiveKey)
		}
		return nil, err
	}

	p := Photo{
		ID:              photoID,
		PatientID:       req.PatientID,
		CategoryID:      category.ID,
		TreatmentPlanID: req.TreatmentPlanID,
		PublicID:        asset.PublicID,
		URL:             asset.URL,
		SecureURL:       asset.SecureURL,
		ArchiveKey:      archiveKey,
		TakenAt:         s.now().UTC(),
		Notes:           req.Notes,
		Tags:            req.Tags,
	}
	if req.TakenAt != nil {
		p.TakenAt = req.TakenAt.UTC()
	}
	if asset.Width > 0 {
		p.Width = &asset.Width
	}
	if asset.Height > 0 {
		p.Height = &asset.Height
	}
	if asset.Format != "" {
		p.Format = &asset.Format
	}
	if asset.Bytes > 0 {
		p.Bytes = &asset.Bytes
	}
	if thumb, err := s.store.URL(asset.PublicID, media.Thumbnail); err == nil {
		p.ThumbnailURL = &thumb
	}

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		s.rollbackUpload(ctx, asset.PublicID, archiveKey)
		return nil, err
	}

	s.record(ctx, "upload")
	s.publish(ctx, messaging.EventPhotoUploaded, created, "")
	s.logger.Info().Str("photo_id", created.ID).Str("patient_id", created.PatientID).
		Str("category", category.Slug).Msg("photo uploaded")
	return created, nil
}

func (s *Service) validateUpload(req *UploadRequest) (string, error) {
	if len(req.Data) == 0 {
		return "", ErrEmptyUpload
	}
	if int64(len(req.Data)) > s.opts.MaxBytes {
		return "", apperr.Invalid("file", "exceeds the %d MB limit", s.opts.MaxBytes>>20)
	}
	if _, err := uuid.Parse(req.PatientID); err != nil {
		return "", apperr.Invalid("patient_id", "must be a valid UUID")
	}
	req.CategoryID = strings.TrimSpace(req.CategoryID)
	if req.CategoryID == "" {
		return "", apperr.Invalid("category", "is required")
	}
	if req.TreatmentPlanID != nil {
		if _, err := uuid.Parse(*req.TreatmentPlanID); err != nil {
			return "", apperr.Invalid("treatment_plan_id", "must be a valid UUID")
		}
	}
	if req.TakenAt != nil && req.TakenAt.After(s.now()) {
		return "", apperr.Invalid("taken_at", "must not be in the future")
	}
	req.Notes = trimmedOrNil(req.Notes)

	tags, err := normalizeTags(req.Tags)
	if err != nil {
		return "", err
	}
	req.Tags = tags

	contentType := sniffContentType(req.Data, req.ContentType)
	if !allowedContentTypes[contentType] {
		return "", ErrUnsupportedFormat
	}
	return contentType, nil
}

// sniffContentType trusts the bytes over the declared type, except for
// HEIC which the standard sniffer does not recognize.
func sniffContentType(data []byte, declared string) string {
	sniffed := http.DetectContentType(data)
	if allowedContentTypes[sniffed] {
		return sniffed
	}
	declared = strings.ToLower(strings.TrimSpace(declared))
	if (declared == "image/heic" || declared == "image/heif") && isHEIF(data) {
		return declared
	}
	return sniffed
}

// isHEIF checks for an ISO base media "ftyp" box with a HEIF brand.
func isHEIF(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "hevc", "heim", "heis", "mif1", "msf1":
		return true
	}
	return false
}

func normalizeTags(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		if !tagPattern.MatchString(t) {
			return nil, apperr.Invalid("tags", "invalid tag %q", t)
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) > maxTags {
		return nil, apperr.Invalid("tags", "at most %d tags are allowed", maxTags)
	}
	return out, nil
}

func (s *Service) rollbackUpload(ctx context.Context, publicID string, archiveKey *string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.store.Destroy(ctx, publicID); err != nil {
		s.logger.Error().Err(err).Str("public_id", publicID).Msg("failed to remove orphaned upload")
	}
	if archiveKey != nil {
		s.cleanupArchive(ctx, *archiveKey)
	}
}

func (s *Service) cleanupArchive(ctx context.Context, key string) {
	if err := s.archive.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Error().Err(err).Str("archive_key", key).Msg("failed to remove archived original")
	}
}

func (s *Service) GetPhoto(ctx context.Context, id string) (*Photo, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListForPatient(ctx context.Context, patientID string, filter ListFilter) ([]Photo, error) {
	exists, err := s.repo.PatientExists(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPatientNotFound
	}
	if filter.CategoryID != "" {
		c, err := s.repo.GetCategory(ctx, filter.CategoryID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, ErrUnknownCategory
			}
			return nil, err
		}
		filter.CategoryID = c.ID
	}
	return s.repo.ListForPatient(ctx, patientID, filter)
}

func (s *Service) UpdateMetadata(ctx context.Context, id string, req UpdateMetadataRequest) (*Photo, error) {
	if req.CategoryID != nil {
		c, err := s.repo.GetCategory(ctx, strings.TrimSpace(*req.CategoryID))
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, ErrUnknownCategory
			}
			return nil, err
		}
		req.CategoryID = &c.ID
	}
	if req.TreatmentPlanID != nil && *req.TreatmentPlanID != "" {
		if _, err := uuid.Parse(*req.TreatmentPlanID); err != nil {
			return nil, apperr.Invalid("treatment_plan_id", "must be a valid UUID")
		}
	}
	if req.TakenAt != nil && req.TakenAt.After(s.now()) {
		return nil, apperr.Invalid("taken_at", "must not be in the future")
	}
	if req.Notes != nil {
		notes := strings.TrimSpace(*req.Notes)
		req.Notes = &notes
	}
	if req.Tags != nil {
		tags, err := normalizeTags(req.Tags)
		if err != nil {
			return nil, err
		}
		req.Tags = tags
	}

	p, err := s.repo.UpdateMetadata(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.record(ctx, "update")
	return p, nil
}

// DeletePhoto removes the row first. Remote cleanup failures are logged
// and leave an orphan in the store rather than a dangling row.
func (s *Service) DeletePhoto(ctx context.Context, id string) error {
	p, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}

	cleanupCtx := context.WithoutCancel(ctx)
	if err := s.store.Destroy(cleanupCtx, p.PublicID); err != nil {
		s.logger.Error().Err(err).Str("photo_id", p.ID).Str("public_id", p.PublicID).Msg("failed to destroy photo asset")
	}
	if p.ArchiveKey != nil && s.archive != nil {
		s.cleanupArchive(cleanupCtx, *p.ArchiveKey)
	}

	s.record(ctx, "delete")
	s.publish(ctx, messaging.EventPhotoDeleted, p, "")
	return nil
}

func (s *Service) Transform(ctx context.Context, id string, t media.Transform) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.store.URL(p.PublicID, t)
}

// SearchRemote searches the store inside the patient's folder. It sees
// assets the database may not know about.
func (s *Service) SearchRemote(ctx context.Context, patientID string, req SearchRequest) (*media.SearchResult, error) {
	folder := path.Join(s.opts.Folder, "patients", patientID)
	if req.Category != "" {
		c, err := s.repo.GetCategory(ctx, req.Category)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, ErrUnknownCategory
			}
			return nil, err
		}
		folder = path.Join(folder, c.Slug)
	}

	expr := fmt.Sprintf(`folder:"%s/*"`, folder)
	if req.Category != "" {
		expr = fmt.Sprintf(`folder:"%s"`, folder)
	}
	if req.Tag != "" {
		tag := strings.ToLower(strings.TrimSpace(req.Tag))
		if !tagPattern.MatchString(tag) {
			return nil, apperr.Invalid("tag", "invalid tag %q", req.Tag)
		}
		expr += fmt.Sprintf(" AND tags=%s", tag)
	}

	max := req.MaxResults
	switch {
	case max <= 0:
		max = defaultSearchMax
	case max > maxSearchResults:
		max = maxSearchResults
	}
	return s.store.Search(ctx, expr, max, req.Cursor)
}

func (s *Service) CreatePair(ctx context.Context, patientID string, req CreatePairRequest) (*Pair, error) {
	if _, err := uuid.Parse(req.BeforeID); err != nil {
		return nil, apperr.Invalid("before_id", "must be a valid UUID")
	}
	if _, err := uuid.Parse(req.AfterID); err != nil {
		return nil, apperr.Invalid("after_id", "must be a valid UUID")
	}
	if req.BeforeID == req.AfterID {
		return nil, ErrPairSamePhoto
	}

	pair, err := s.repo.CreatePair(ctx, patientID, req.BeforeID, req.AfterID)
	if err != nil {
		return nil, err
	}

	s.record(ctx, "pair")
	s.publish(ctx, messaging.EventPhotoPaired, &pair.Before, pair.After.ID)
	s.logger.Info().Str("pair_id", pair.PairID).Str("patient_id", patientID).Msg("photos paired")
	return pair, nil
}

func (s *Service) ListPairs(ctx context.Context, patientID string) ([]Pair, error) {
	exists, err := s.repo.PatientExists(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPatientNotFound
	}
	return s.repo.ListPairs(ctx, patientID)
}

func (s *Service) Unpair(ctx context.Context, pairID string) error {
	ids, err := s.repo.Unpair(ctx, pairID)
	if err != nil {
		return err
	}
	s.record(ctx, "unpair")
	s.logger.Info().Str("pair_id", pairID).Strs("photo_ids", ids).Msg("photo pair removed")
	return nil
}

func (s *Service) record(ctx context.Context, op string) {
	if s.metrics != nil {
		s.metrics.RecordPhotoOperation(ctx, op)
	}
}

func (s *Service) publish(ctx context.Context, key string, p *Photo, partnerID string) {
	data := messaging.PhotoData{
		PhotoID:    p.ID,
		PatientID:  p.PatientID,
		CategoryID: p.CategoryID,
		PublicID:   p.PublicID,
		PartnerID:  partnerID,
	}
	if p.PairID != nil {
		data.PairID = *p.PairID
	}
	messaging.Emit(ctx, s.publisher, s.logger, key, messaging.PhotoEvent{
		BaseEvent: messaging.NewBaseEvent(key),
		Data:      data,
	})
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
