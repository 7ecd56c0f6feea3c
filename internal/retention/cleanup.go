// Package retention permanently removes patients whose soft-delete has
// outlived the retention period.
package retention

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/orthoflow/practice-service/internal/db"
	"github.com/orthoflow/practice-service/internal/messaging"
)

// DefaultPeriod keeps deleted patient records for seven years.
const DefaultPeriod = 7 * 365 * 24 * time.Hour

var errNotSoftDeleted = errors.New("patient not found or not soft-deleted")

// AssetDestroyer removes a stored image by public id.
type AssetDestroyer interface {
	Destroy(ctx context.Context, publicID string) error
}

// ArchiveDeleter removes an archived original by key.
type ArchiveDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Result summarizes one cleanup pass.
type Result struct {
	Cutoff time.Time `json:"cutoff"`
	Found  int       `json:"found"`
	Purged int       `json:"purged"`
	Failed int       `json:"failed"`
}

type expiredPatient struct {
	ID        string
	DeletedAt time.Time
}

type photoAsset struct {
	PublicID   string
	ArchiveKey sql.NullString
}

// CleanupService hard-deletes expired patients together with their
// photos, archived originals and dependent rows.
type CleanupService struct {
	db        *sql.DB
	store     AssetDestroyer
	archive   ArchiveDeleter
	publisher messaging.PublisherInterface
	period    time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

func NewCleanupService(conn *sql.DB, store AssetDestroyer, archive ArchiveDeleter,
	publisher messaging.PublisherInterface, period time.Duration, logger zerolog.Logger) *CleanupService {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &CleanupService{
		db:        conn,
		store:     store,
		archive:   archive,
		publisher: publisher,
		period:    period,
		logger:    logger.With().Str("component", "retention").Logger(),
		now:       time.Now,
	}
}

func (s *CleanupService) cutoff() time.Time {
	return s.now().UTC().Add(-s.period)
}

// ExpiredCount returns how many patients are eligible for purging.
func (s *CleanupService) ExpiredCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM patients
		WHERE deleted_at IS NOT NULL AND deleted_at < $1`, s.cutoff()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count expired patients: %w", err)
	}
	return count, nil
}

// CleanupExpiredPatients purges every expired patient. A patient whose
// remote assets cannot be removed is left for the next run.
func (s *CleanupService) CleanupExpiredPatients(ctx context.Context) (*Result, error) {
	res := &Result{Cutoff: s.cutoff()}
	s.logger.Info().Time("cutoff", res.Cutoff).Msg("starting patient retention cleanup")

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, deleted_at FROM patients
		WHERE deleted_at IS NOT NULL AND deleted_at < $1
		ORDER BY deleted_at ASC`, res.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired patients: %w", err)
	}
	var expired []expiredPatient
	for rows.Next() {
		var p expiredPatient
		if err := rows.Scan(&p.ID, &p.DeletedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		expired = append(expired, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating patients: %w", err)
	}

	res.Found = len(expired)
	if res.Found == 0 {
		s.logger.Info().Msg("no expired patients found")
		return res, nil
	}

	for _, p := range expired {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.purge(ctx, p); err != nil {
			res.Failed++
			s.logger.Error().Err(err).Str("patient_id", p.ID).Msg("failed to purge patient")
			continue
		}
		res.Purged++
	}

	s.logger.Info().Int("purged", res.Purged).Int("found", res.Found).Int("failed", res.Failed).
		Msg("patient retention cleanup finished")
	return res, nil
}

func (s *CleanupService) purge(ctx context.Context, p expiredPatient) error {
	assets, err := s.photoAssets(ctx, p.ID)
	if err != nil {
		return err
	}
	for _, a := range assets {
		if s.store == nil {
			return fmt.Errorf("photo %s: no photo store configured", a.PublicID)
		}
		if err := s.store.Destroy(ctx, a.PublicID); err != nil {
			return fmt.Errorf("destroy photo %s: %w", a.PublicID, err)
		}
		if a.ArchiveKey.Valid && s.archive != nil {
			if err := s.archive.Delete(ctx, a.ArchiveKey.String); err != nil {
				return fmt.Errorf("delete archived original %s: %w", a.ArchiveKey.String, err)
			}
		}
	}

	// dependent rows go with the patient via ON DELETE CASCADE
	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM patients WHERE id = $1 AND deleted_at IS NOT NULL AND deleted_at < $2`, p.ID, s.cutoff())
		if err != nil {
			return fmt.Errorf("failed to delete patient record: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			return errNotSoftDeleted
		}
		return nil
	})
	if err != nil {
		return err
	}

	deletedAt := p.DeletedAt
	messaging.Emit(ctx, s.publisher, s.logger, messaging.EventPatientPurged, messaging.PatientEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventPatientPurged),
		Data: messaging.PatientData{
			PatientID:  p.ID,
			OccurredAt: s.now().UTC(),
			DeletedAt:  &deletedAt,
		},
	})
	s.logger.Info().Str("patient_id", p.ID).Int("photos", len(assets)).Msg("patient permanently deleted")
	return nil
}

func (s *CleanupService) photoAssets(ctx context.Context, patientID string) ([]photoAsset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT public_id, archive_key FROM photos WHERE patient_id = $1`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query patient photos: %w", err)
	}
	defer rows.Close()

	var out []photoAsset
	for rows.Next() {
		var a photoAsset
		if err := rows.Scan(&a.PublicID, &a.ArchiveKey); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
