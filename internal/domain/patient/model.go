package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the visit state of a patient. Storage accepts any string; the
// constants below are the values the practice works with.
type Status string

const (
	StatusNeedsSeen     Status = "needs seen"
	StatusDeceased      Status = "deceased"
	StatusDischarged    Status = "discharged"
	StatusRefused       Status = "refused"
	StatusVisitComplete Status = "visit complete"
)

// Statuses lists the known statuses in display order.
var Statuses = []Status{StatusNeedsSeen, StatusVisitComplete, StatusRefused, StatusDischarged, StatusDeceased}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Patient maps to the patients table.
type Patient struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	FacilityID       uuid.UUID  `db:"facility_id" json:"facility_id"`
	Name             string     `db:"name" json:"name"`
	DateOfBirth      *string    `db:"date_of_birth" json:"date_of_birth"`
	RoomNumber       *string    `db:"room_number" json:"room_number"`
	TypeOfConsent    *string    `db:"type_of_consent" json:"type_of_consent"`
	PrimaryInsurance *string    `db:"primary_insurance" json:"primary_insurance"`
	DateLastSeen     *string    `db:"date_last_seen" json:"date_last_seen"`
	Status           *Status    `db:"status" json:"status"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt        *time.Time `db:"deleted_at" json:"deleted_at"`
}

// Archived reports whether the patient has been soft-deleted.
func (p *Patient) Archived() bool {
	return p.DeletedAt != nil
}

// HasStatus reports whether the patient's status equals s. An unset status
// matches nothing.
func (p *Patient) HasStatus(s Status) bool {
	return p.Status != nil && *p.Status == s
}

// StatusOrEmpty returns the status, or "" when unset.
func (p *Patient) StatusOrEmpty() Status {
	if p.Status == nil {
		return ""
	}
	return *p.Status
}

func (p *Patient) normalize() {
	p.Name = strings.TrimSpace(p.Name)
	for _, f := range []**string{&p.DateOfBirth, &p.RoomNumber, &p.TypeOfConsent, &p.PrimaryInsurance, &p.DateLastSeen} {
		if *f != nil && strings.TrimSpace(**f) == "" {
			*f = nil
		}
	}
	if p.Status != nil && strings.TrimSpace(string(*p.Status)) == "" {
		p.Status = nil
	}
}

// Update is a partial patient update. Nil fields are left unchanged; an empty
// string clears an optional field.
type Update struct {
	FacilityID       *uuid.UUID `json:"facility_id"`
	Name             *string    `json:"name"`
	DateOfBirth      *string    `json:"date_of_birth"`
	RoomNumber       *string    `json:"room_number"`
	TypeOfConsent    *string    `json:"type_of_consent"`
	PrimaryInsurance *string    `json:"primary_insurance"`
	DateLastSeen     *string    `json:"date_last_seen"`
	Status           *Status    `json:"status"`
}

// Empty reports whether the update carries no field.
func (u *Update) Empty() bool {
	return u.FacilityID == nil && u.Name == nil && u.DateOfBirth == nil && u.RoomNumber == nil &&
		u.TypeOfConsent == nil && u.PrimaryInsurance == nil && u.DateLastSeen == nil && u.Status == nil
}

// View is a patient enriched with derived staleness for presentation.
type View struct {
	*Patient
	Due           bool `json:"due"`
	DaysSinceSeen *int `json:"days_since_seen"`
}

// NewView derives the staleness fields of p at now.
func NewView(p *Patient, now time.Time) View {
	v := View{Patient: p, Due: IsDue(p.DateLastSeen, now)}
	if days, ok := DaysSinceSeen(p.DateLastSeen, now); ok {
		v.DaysSinceSeen = &days
	}
	return v
}
