package photo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/orthoflow/practice-service/internal/apperr"
	"github.com/orthoflow/practice-service/internal/db"
)

const categoryColumns = `id, slug, name, description, sort_order, created_at`

const photoColumns = `id, patient_id, category_id, treatment_plan_id, public_id, url, secure_url,
	thumbnail_url, archive_key, width, height, format, bytes, taken_at, notes, tags,
	pair_id, pair_role, created_at, updated_at`

type RepositoryInterface interface {
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, idOrSlug string) (*Category, error)
	CreateCategory(ctx context.Context, req CreateCategoryRequest) (*Category, error)
	UpdateCategory(ctx context.Context, id string, req UpdateCategoryRequest) (*Category, error)
	DeleteCategory(ctx context.Context, id string) error

	PatientExists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, p Photo) (*Photo, error)
	Get(ctx context.Context, id string) (*Photo, error)
	ListForPatient(ctx context.Context, patientID string, filter ListFilter) ([]Photo, error)
	UpdateMetadata(ctx context.Context, id string, req UpdateMetadataRequest) (*Photo, error)
	Delete(ctx context.Context, id string) (*Photo, error)

	CreatePair(ctx context.Context, patientID, beforeID, afterID string) (*Pair, error)
	ListPairs(ctx context.Context, patientID string) ([]Pair, error)
	Unpair(ctx context.Context, pairID string) ([]string, error)
}

type Repository struct {
	db *sql.DB
}

func NewRepository(conn *sql.DB) *Repository {
	return &Repository{db: conn}
}

var _ RepositoryInterface = (*Repository)(nil)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCategory(row rowScanner) (*Category, error) {
	var (
		c    Category
		desc sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Slug, &c.Name, &desc, &c.SortOrder, &c.CreatedAt); err != nil {
		return nil, err
	}
	if desc.Valid {
		c.Description = &desc.String
	}
	return &c, nil
}

func scanPhoto(row rowScanner) (*Photo, error) {
	var (
		p                                        Photo
		planID, thumb, archiveKey, format, notes sql.NullString
		pairID, pairRole                         sql.NullString
		width, height                            sql.NullInt32
		size                                     sql.NullInt64
		updatedAt                                sql.NullTime
	)
	err := row.Scan(&p.ID, &p.PatientID, &p.CategoryID, &planID, &p.PublicID, &p.URL, &p.SecureURL,
		&thumb, &archiveKey, &width, &height, &format, &size, &p.TakenAt, &notes, pq.Array(&p.Tags),
		&pairID, &pairRole, &p.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.TreatmentPlanID = nullableString(planID)
	p.ThumbnailURL = nullableString(thumb)
	p.ArchiveKey = nullableString(archiveKey)
	p.Format = nullableString(format)
	p.Notes = nullableString(notes)
	p.PairID = nullableString(pairID)
	p.PairRole = nullableString(pairRole)
	if width.Valid {
		w := int(width.Int32)
		p.Width = &w
	}
	if height.Valid {
		h := int(height.Int32)
		p.Height = &h
	}
	if size.Valid {
		p.Bytes = &size.Int64
	}
	if updatedAt.Valid {
		p.UpdatedAt = &updatedAt.Time
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return &p, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM photo_categories ORDER BY sort_order, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query photo categories: %w", err)
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo category: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *Repository) GetCategory(ctx context.Context, idOrSlug string) (*Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM photo_categories WHERE slug = $1`
	if _, err := uuid.Parse(idOrSlug); err == nil {
		query = `SELECT ` + categoryColumns + ` FROM photo_categories WHERE id = $1`
	}
	c, err := scanCategory(r.db.QueryRowContext(ctx, query, idOrSlug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query photo category: %w", err)
	}
	return c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, req CreateCategoryRequest) (*Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, `
		INSERT INTO photo_categories (slug, name, description, sort_order)
		VALUES ($1, $2, $3, $4)
		RETURNING `+categoryColumns, req.Slug, req.Name, req.Description, req.SortOrder))
	if err != nil {
		if db.IsUniqueViolation(err, "photo_categories_slug_key") {
			return nil, ErrDuplicateSlug
		}
		return nil, fmt.Errorf("failed to insert photo category: %w", err)
	}
	return c, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, id string, req UpdateCategoryRequest) (*Category, error) {
	var (
		sets []string
		args []interface{}
	)
	if req.Name != nil {
		args = append(args, *req.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if req.Description != nil {
		args = append(args, *req.Description)
		sets = append(sets, fmt.Sprintf("description = NULLIF($%d, '')", len(args)))
	}
	if req.SortOrder != nil {
		args = append(args, *req.SortOrder)
		sets = append(sets, fmt.Sprintf("sort_order = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil, ErrNoFieldsToUpdate
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE photo_categories SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), categoryColumns)
	c, err := scanCategory(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update photo category: %w", err)
	}
	return c, nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM photo_categories WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrCategoryInUse
		}
		return fmt.Errorf("failed to delete photo category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *Repository) PatientExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1 AND deleted_at IS NULL)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check patient: %w", err)
	}
	return exists, nil
}

func (r *Repository) Create(ctx context.Context, p Photo) (*Photo, error) {
	out, err := scanPhoto(r.db.QueryRowContext(ctx, `
		INSERT INTO photos (id, patient_id, category_id, treatment_plan_id, public_id, url, secure_url,
			thumbnail_url, archive_key, width, height, format, bytes, taken_at, notes, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING `+photoColumns,
		p.ID, p.PatientID, p.CategoryID, p.TreatmentPlanID, p.PublicID, p.URL, p.SecureURL,
		p.ThumbnailURL, p.ArchiveKey, p.Width, p.Height, p.Format, p.Bytes, p.TakenAt, p.Notes, pq.Array(p.Tags)))
	if err != nil {
		switch db.ForeignKeyConstraint(err) {
		case "photos_patient_id_fkey":
			return nil, ErrPatientNotFound
		case "photos_category_id_fkey":
			return nil, ErrUnknownCategory
		case "photos_treatment_plan_id_fkey":
			return nil, apperr.Invalid("treatment_plan_id", "does not reference a treatment plan")
		}
		return nil, fmt.Errorf("failed to insert photo: %w", err)
	}
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Photo, error) {
	p, err := scanPhoto(r.db.QueryRowContext(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPhotoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query photo: %w", err)
	}
	return p, nil
}

func (r *Repository) ListForPatient(ctx context.Context, patientID string, filter ListFilter) ([]Photo, error) {
	where := "patient_id = $1"
	args := []interface{}{patientID}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		where += fmt.Sprintf(" AND category_id = $%d", len(args))
	}
	if filter.TreatmentPlanID != "" {
		args = append(args, filter.TreatmentPlanID)
		where += fmt.Sprintf(" AND treatment_plan_id = $%d", len(args))
	}
	return queryPhotos(ctx, r.db, `SELECT `+photoColumns+` FROM photos WHERE `+where+` ORDER BY taken_at, created_at`, args...)
}

func queryPhotos(ctx context.Context, q db.Queryer, query string, args ...interface{}) ([]Photo, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query photos: %w", err)
	}
	defer rows.Close()

	out := []Photo{}
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateMetadata(ctx context.Context, id string, req UpdateMetadataRequest) (*Photo, error) {
	var (
		sets []string
		args []interface{}
	)
	set := func(expr string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	if req.CategoryID != nil {
		set("category_id = $%d", *req.CategoryID)
	}
	if req.TreatmentPlanID != nil {
		set("treatment_plan_id = NULLIF($%d, '')::uuid", *req.TreatmentPlanID)
	}
	if req.TakenAt != nil {
		set("taken_at = $%d", *req.TakenAt)
	}
	if req.Notes != nil {
		set("notes = NULLIF($%d, '')", *req.Notes)
	}
	if req.Tags != nil {
		set("tags = $%d", pq.Array(req.Tags))
	}
	if len(sets) == 0 {
		return nil, ErrNoFieldsToUpdate
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE photos SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), photoColumns)
	p, err := scanPhoto(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPhotoNotFound
	}
	if err != nil {
		switch db.ForeignKeyConstraint(err) {
		case "photos_category_id_fkey":
			return nil, ErrUnknownCategory
		case "photos_treatment_plan_id_fkey":
			return nil, apperr.Invalid("treatment_plan_id", "does not reference a treatment plan")
		}
		return nil, fmt.Errorf("failed to update photo: %w", err)
	}
	return p, nil
}

// Delete removes the photo row and releases its pair partner. It returns
// the deleted row so the caller can clean up remote assets.
func (r *Repository) Delete(ctx context.Context, id string) (*Photo, error) {
	var deleted *Photo
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		p, err := scanPhoto(tx.QueryRowContext(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPhotoNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock photo: %w", err)
		}

		if p.PairID != nil {
			if _, err := tx.ExecContext(ctx, `
				UPDATE photos SET pair_id = NULL, pair_role = NULL, updated_at = NOW()
				 WHERE pair_id = $1 AND id <> $2`, *p.PairID, id); err != nil {
				return fmt.Errorf("failed to release pair partner: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM photos WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete photo: %w", err)
		}
		deleted = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// CreatePair links two photos of patientID under a new pair id.
func (r *Repository) CreatePair(ctx context.Context, patientID, beforeID, afterID string) (*Pair, error) {
	pairID := uuid.NewString()
	var pair *Pair
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, patient_id, pair_id FROM photos
			 WHERE id IN ($1, $2)
			 FOR UPDATE`, beforeID, afterID)
		if err != nil {
			return fmt.Errorf("failed to lock photos: %w", err)
		}
		type lockedPhoto struct {
			patientID string
			paired    bool
		}
		locked := map[string]lockedPhoto{}
		for rows.Next() {
			var (
				id, owner string
				existing  sql.NullString
			)
			if err := rows.Scan(&id, &owner, &existing); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan photo: %w", err)
			}
			locked[id] = lockedPhoto{patientID: owner, paired: existing.Valid}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		before, okBefore := locked[beforeID]
		after, okAfter := locked[afterID]
		if !okBefore || !okAfter {
			return ErrPhotoNotFound
		}
		if before.patientID != patientID || after.patientID != patientID {
			return ErrPairOtherPatient
		}
		if before.paired || after.paired {
			return ErrAlreadyPaired
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE photos
			   SET pair_id = $1,
			       pair_role = CASE WHEN id = $2 THEN 'BEFORE' ELSE 'AFTER' END,
			       updated_at = NOW()
			 WHERE id IN ($2, $3)`, pairID, beforeID, afterID); err != nil {
			if db.IsUniqueViolation(err, "photos_pair_role_key") {
				return ErrAlreadyPaired
			}
			return fmt.Errorf("failed to pair photos: %w", err)
		}

		photos, err := queryPhotos(ctx, tx, `SELECT `+photoColumns+` FROM photos WHERE pair_id = $1`, pairID)
		if err != nil {
			return err
		}
		pairs := groupPairs(photos)
		if len(pairs) != 1 {
			return fmt.Errorf("pair %s: expected two photos, got %d", pairID, len(photos))
		}
		pair = &pairs[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (r *Repository) ListPairs(ctx context.Context, patientID string) ([]Pair, error) {
	photos, err := queryPhotos(ctx, r.db, `SELECT `+photoColumns+` FROM photos
		WHERE patient_id = $1 AND pair_id IS NOT NULL
		ORDER BY taken_at`, patientID)
	if err != nil {
		return nil, err
	}
	return groupPairs(photos), nil
}

// groupPairs folds paired photos into complete pairs ordered by the
// before photo's taken_at.
func groupPairs(photos []Photo) []Pair {
	byID := map[string]*Pair{}
	for _, p := range photos {
		if p.PairID == nil || p.PairRole == nil {
			continue
		}
		pair, ok := byID[*p.PairID]
		if !ok {
			pair = &Pair{PairID: *p.PairID, PatientID: p.PatientID}
			byID[*p.PairID] = pair
		}
		if *p.PairRole == RoleBefore {
			pair.Before = p
		} else {
			pair.After = p
		}
	}

	out := make([]Pair, 0, len(byID))
	for _, pair := range byID {
		if pair.Before.ID == "" || pair.After.ID == "" {
			continue
		}
		out = append(out, *pair)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Before.TakenAt.Equal(out[j].Before.TakenAt) {
			return out[i].Before.TakenAt.Before(out[j].Before.TakenAt)
		}
		return out[i].PairID < out[j].PairID
	})
	return out
}

// Unpair clears both photos of a pair and returns their ids.
func (r *Repository) Unpair(ctx context.Context, pairID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE photos SET pair_id = NULL, pair_role = NULL, updated_at = NOW()
		 WHERE pair_id = $1
		RETURNING id`, pairID)
	if err != nil {
		return nil, fmt.Errorf("failed to unpair photos: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan photo id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrPairNotFound
	}
	return ids, nil
}
