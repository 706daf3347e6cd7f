package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/empathic/podiatry/internal/platform/apperror"
	"github.com/empathic/podiatry/internal/platform/db"
)

// FacilityChecker resolves facility references. Archived facilities exist.
type FacilityChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// TransitionRecorder counts lifecycle transitions.
type TransitionRecorder interface {
	RecordTransition(transition string)
}

const (
	TransitionUpdate  = "update"
	TransitionArchive = "archive"
	TransitionRestore = "restore"
	TransitionPurge   = "purge"
)

type Service struct {
	repo       Repository
	facilities FacilityChecker
	logger     zerolog.Logger
	recorder   TransitionRecorder
	now        func() time.Time
}

func NewService(repo Repository, facilities FacilityChecker) *Service {
	return &Service{repo: repo, facilities: facilities, logger: zerolog.Nop(), now: time.Now}
}

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "patient").Logger()
}

// SetRecorder enables transition metrics.
func (s *Service) SetRecorder(r TransitionRecorder) {
	s.recorder = r
}

// SetClock overrides the archival clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) record(transition string) {
	if s.recorder != nil {
		s.recorder.RecordTransition(transition)
	}
}

func (s *Service) checkFacility(ctx context.Context, v *apperror.ValidationError, id uuid.UUID) error {
	if id == uuid.Nil {
		v.Add("facility_id", "The facility id field is required.")
		return nil
	}
	ok, err := s.facilities.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("check facility: %w", err)
	}
	if !ok {
		v.Add("facility_id", "The selected facility id is invalid.")
	}
	return nil
}

// normalizeDate validates a date_last_seen value and rewrites it as YYYY-MM-DD.
func normalizeDate(v *apperror.ValidationError, value *string) {
	if value == nil || *value == "" {
		return
	}
	t, ok := ParseDate(*value)
	if !ok {
		v.Add("date_last_seen", "The date last seen is not a valid date.")
		return
	}
	*value = FormatDate(t)
}

func validateFields(v *apperror.ValidationError, name, dob, room, consent, insurance *string, status *Status) {
	v.Max("name", name, 255)
	v.Max("date_of_birth", dob, 255)
	v.Max("room_number", room, 50)
	v.Max("type_of_consent", consent, 255)
	v.Max("primary_insurance", insurance, 255)
	if status != nil {
		str := string(*status)
		v.Max("status", &str, 50)
	}
}

// Create stores p as an active record; a deleted_at supplied by the caller is
// dropped.
func (s *Service) Create(ctx context.Context, p *Patient) error {
	p.normalize()
	p.DeletedAt = nil
	v := apperror.NewValidationError()
	v.Required("name", p.Name)
	validateFields(v, &p.Name, p.DateOfBirth, p.RoomNumber, p.TypeOfConsent, p.PrimaryInsurance, p.Status)
	normalizeDate(v, p.DateLastSeen)
	if err := s.checkFacility(ctx, v, p.FacilityID); err != nil {
		return err
	}
	if err := v.Err(); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return err
	}
	s.logger.Info().
		Str("patient_id", p.ID.String()).
		Str("facility_id", p.FacilityID.String()).
		Str("status", string(p.StatusOrEmpty())).
		Msg("patient created")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID, scope db.Scope) (*Patient, error) {
	return s.repo.Get(ctx, id, scope)
}

// Update applies a partial update to an active patient. Only supplied fields
// are validated and written. Update never archives.
func (s *Service) Update(ctx context.Context, id uuid.UUID, u *Update) (*Patient, error) {
	v := apperror.NewValidationError()
	if u.Name != nil {
		*u.Name = strings.TrimSpace(*u.Name)
		v.Required("name", *u.Name)
	}
	if u.Status != nil {
		*u.Status = Status(strings.TrimSpace(string(*u.Status)))
	}
	validateFields(v, u.Name, u.DateOfBirth, u.RoomNumber, u.TypeOfConsent, u.PrimaryInsurance, u.Status)
	normalizeDate(v, u.DateLastSeen)
	if u.FacilityID != nil {
		if err := s.checkFacility(ctx, v, *u.FacilityID); err != nil {
			return nil, err
		}
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	before, err := s.repo.Get(ctx, id, db.ScopeActive)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.Update(ctx, id, u)
	if err != nil {
		return nil, err
	}

	if u.Status != nil && before.StatusOrEmpty() != p.StatusOrEmpty() {
		s.record(TransitionUpdate)
		s.logger.Info().
			Str("patient_id", id.String()).
			Str("from", string(before.StatusOrEmpty())).
			Str("to", string(p.StatusOrEmpty())).
			Msg("patient status changed")
	}
	return p, nil
}

// Archive soft-deletes an active patient, keeping its status.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.Archive(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	s.record(TransitionArchive)
	s.logger.Info().
		Str("patient_id", id.String()).
		Str("from", "active:"+string(p.StatusOrEmpty())).
		Str("to", "archived:"+string(p.StatusOrEmpty())).
		Msg("patient archived")
	return p, nil
}

// Restore reactivates an archived patient. The status always becomes
// "needs seen" in the same statement.
func (s *Service) Restore(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.Restore(ctx, id, StatusNeedsSeen)
	if err != nil {
		return nil, err
	}
	s.record(TransitionRestore)
	s.logger.Info().
		Str("patient_id", id.String()).
		Str("to", "active:"+string(StatusNeedsSeen)).
		Msg("patient restored")
	return p, nil
}

// ForceDelete purges a patient in any archival state.
func (s *Service) ForceDelete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.Get(ctx, id, db.ScopeAny); err != nil {
		return err
	}
	if err := s.repo.Purge(ctx, id); err != nil {
		return err
	}
	s.record(TransitionPurge)
	s.logger.Info().Str("patient_id", id.String()).Msg("patient purged")
	return nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Patient, int, error) {
	return s.repo.List(ctx, filter)
}

// ListByFacility returns the active patients of a facility ordered by name.
func (s *Service) ListByFacility(ctx context.Context, facilityID uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, ListFilter{Scope: db.ScopeActive, FacilityID: &facilityID, Limit: limit, Offset: offset})
}

// CountByFacility counts patients in any archival state referencing facilityID.
func (s *Service) CountByFacility(ctx context.Context, facilityID uuid.UUID) (int, error) {
	return s.repo.CountByFacility(ctx, facilityID)
}
