package patient

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/empathic/podiatry/internal/platform/db"
)

// ListFilter selects a page of patients. Limit 0 returns every row.
type ListFilter struct {
	Scope      db.Scope
	FacilityID *uuid.UUID
	Status     *Status
	Limit      int
	Offset     int
}

// Repository persists patients. Every transition is a single-row statement
// guarded by the archival state it requires; a miss returns
// apperror.ErrNotFound.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	Get(ctx context.Context, id uuid.UUID, scope db.Scope) (*Patient, error)
	Update(ctx context.Context, id uuid.UUID, u *Update) (*Patient, error)
	Archive(ctx context.Context, id uuid.UUID, at time.Time) (*Patient, error)
	Restore(ctx context.Context, id uuid.UUID, status Status) (*Patient, error)
	Purge(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]*Patient, int, error)
	CountByFacility(ctx context.Context, facilityID uuid.UUID) (int, error)
}

type assignment struct {
	column string
	value  interface{}
}

// assignments lists the columns a partial update writes, in a fixed order.
// Empty optional strings become NULL. date_last_seen is passed as the
// normalized YYYY-MM-DD string (or nil); drivers convert it as needed.
func (u *Update) assignments() []assignment {
	var out []assignment
	if u.FacilityID != nil {
		out = append(out, assignment{"facility_id", *u.FacilityID})
	}
	if u.Name != nil {
		out = append(out, assignment{"name", *u.Name})
	}
	opt := func(col string, v *string) {
		if v != nil {
			out = append(out, assignment{col, nullIfEmpty(*v)})
		}
	}
	opt("date_of_birth", u.DateOfBirth)
	opt("room_number", u.RoomNumber)
	opt("type_of_consent", u.TypeOfConsent)
	opt("primary_insurance", u.PrimaryInsurance)
	opt("date_last_seen", u.DateLastSeen)
	if u.Status != nil {
		out = append(out, assignment{"status", nullIfEmpty(string(*u.Status))})
	}
	return out
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// filterClauses builds the WHERE conditions for filter. placeholder renders
// the nth (1-based) bind parameter.
func filterClauses(filter ListFilter, placeholder func(n int) string) (string, []interface{}) {
	where := filter.Scope.Predicate()
	var args []interface{}
	if filter.FacilityID != nil {
		args = append(args, *filter.FacilityID)
		where += " AND facility_id = " + placeholder(len(args))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where += " AND status = " + placeholder(len(args))
	}
	return where, args
}
