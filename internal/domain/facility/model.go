package facility

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Facility maps to the facilities table.
type Facility struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	AddressOne  *string    `db:"address_one" json:"address_one"`
	AddressTwo  *string    `db:"address_two" json:"address_two"`
	City        *string    `db:"city" json:"city"`
	State       *string    `db:"state" json:"state"`
	Zip         *string    `db:"zip" json:"zip"`
	PhoneOne    *string    `db:"phone_one" json:"phone_one"`
	PhoneTwo    *string    `db:"phone_two" json:"phone_two"`
	Email       *string    `db:"email" json:"email"`
	ContactName *string    `db:"contact_name" json:"contact_name"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deleted_at"`
}

// Archived reports whether the facility has been soft-deleted.
func (f *Facility) Archived() bool {
	return f.DeletedAt != nil
}

// Address joins the address lines, city, state and zip for display.
func (f *Facility) Address() string {
	var parts []string
	for _, p := range []*string{f.AddressOne, f.AddressTwo, f.City, f.State, f.Zip} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	return strings.Join(parts, ", ")
}

// normalize trims the name and turns blank optional fields into NULL.
func (f *Facility) normalize() {
	f.Name = strings.TrimSpace(f.Name)
	for _, p := range []**string{
		&f.AddressOne, &f.AddressTwo, &f.City, &f.State, &f.Zip,
		&f.PhoneOne, &f.PhoneTwo, &f.Email, &f.ContactName,
	} {
		if *p != nil && strings.TrimSpace(**p) == "" {
			*p = nil
		}
	}
}
