package facility

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/empathic/podiatry/internal/platform/apperror"
	"github.com/empathic/podiatry/internal/platform/db"
)

// PatientCounter reports how many patients, archived or not, reference a facility.
type PatientCounter interface {
	CountByFacility(ctx context.Context, facilityID uuid.UUID) (int, error)
}

type Service struct {
	repo     Repository
	patients PatientCounter
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, logger: zerolog.Nop(), now: time.Now}
}

// SetPatientCounter enables the force-delete integrity check.
func (s *Service) SetPatientCounter(pc PatientCounter) {
	s.patients = pc
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "facility").Logger()
}

// SetClock overrides the archival clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func validate(f *Facility) error {
	v := apperror.NewValidationError()
	v.Required("name", f.Name)
	v.Max("name", &f.Name, 255)
	v.Max("address_one", f.AddressOne, 255)
	v.Max("address_two", f.AddressTwo, 255)
	v.Max("city", f.City, 100)
	v.Max("state", f.State, 100)
	v.Max("zip", f.Zip, 20)
	v.Max("phone_one", f.PhoneOne, 20)
	v.Max("phone_two", f.PhoneTwo, 20)
	v.Email("email", f.Email)
	v.Max("email", f.Email, 255)
	v.Max("contact_name", f.ContactName, 255)
	return v.Err()
}

func (s *Service) Create(ctx context.Context, f *Facility) error {
	f.normalize()
	f.DeletedAt = nil
	if err := validate(f); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return fmt.Errorf("create facility: %w", err)
	}
	s.logger.Info().Str("facility_id", f.ID.String()).Msg("facility created")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID, scope db.Scope) (*Facility, error) {
	return s.repo.Get(ctx, id, scope)
}

// Exists reports whether a facility with id exists in any archival state.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.repo.Get(ctx, id, db.ScopeAny)
	if errors.Is(err, apperror.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Update replaces every field of an active facility.
func (s *Service) Update(ctx context.Context, f *Facility) error {
	f.normalize()
	if err := validate(f); err != nil {
		return err
	}
	return s.repo.Update(ctx, f)
}

// Archive soft-deletes an active facility. Its patients are left untouched.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) (*Facility, error) {
	f, err := s.repo.Archive(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("facility_id", id.String()).Msg("facility archived")
	return f, nil
}

func (s *Service) Restore(ctx context.Context, id uuid.UUID) (*Facility, error) {
	f, err := s.repo.Restore(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("facility_id", id.String()).Msg("facility restored")
	return f, nil
}

// ForceDelete purges a facility in any state. It fails with
// apperror.ErrConflict while any patient still references it.
func (s *Service) ForceDelete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.Get(ctx, id, db.ScopeAny); err != nil {
		return err
	}
	if s.patients != nil {
		n, err := s.patients.CountByFacility(ctx, id)
		if err != nil {
			return fmt.Errorf("count facility patients: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("facility has %d patients: %w", n, apperror.ErrConflict)
		}
	}
	if err := s.repo.Purge(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("facility_id", id.String()).Msg("facility purged")
	return nil
}

func (s *Service) List(ctx context.Context, scope db.Scope, limit, offset int) ([]*Facility, int, error) {
	return s.repo.List(ctx, ListFilter{Scope: scope, Limit: limit, Offset: offset})
}
