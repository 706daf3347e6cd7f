// Package document builds the printable visit and order documents handed to
// facilities, and renders them as HTML or XLSX.
package document

import (
	"sort"
	"strings"
	"time"

	"github.com/empathic/podiatry/internal/domain/patient"
)

const (
	DefaultPracticeName = "Empathic Podiatry"
	DefaultFacilityName = "Spring Creek"

	PracticeAddress = "4600 Highland Drive, Millcreek, UT"
	PracticePhone   = "801-272-1892"

	PhysicianOrderPlaceholder = "No physician consent patients found"
	PodiatryVisitPlaceholder  = "No patients found that need to be seen"

	// PhysicianConsent is the type_of_consent value that puts a patient on the
	// physician order.
	PhysicianConsent = "Physician Request"

	dateLayout = "01/02/2006"
)

// DefaultDiagnoses are printed for a patient that carries no diagnoses.
var DefaultDiagnoses = []string{"Onycomicosis B35.1", "Generalized Atherosclerosis I70.91"}

// Patient is the subset of a patient a document needs. Diagnoses is nil when
// the caller supplied none.
type Patient struct {
	Name       string   `json:"name"`
	RoomNumber string   `json:"room_number"`
	Status     string   `json:"status"`
	Diagnoses  []string `json:"diagnoses"`
}

// FromPatient converts a stored patient.
func FromPatient(p *patient.Patient) Patient {
	out := Patient{Name: p.Name, Status: string(p.StatusOrEmpty())}
	if p.RoomNumber != nil {
		out.RoomNumber = *p.RoomNumber
	}
	return out
}

// FromPatients converts stored patients, keeping their order.
func FromPatients(ps []*patient.Patient) []Patient {
	out := make([]Patient, 0, len(ps))
	for _, p := range ps {
		out = append(out, FromPatient(p))
	}
	return out
}

// SortByName orders patients by name, case-insensitively. Equal names keep
// their relative order.
func SortByName(ps []Patient) {
	sort.SliceStable(ps, func(i, j int) bool {
		return strings.ToLower(ps[i].Name) < strings.ToLower(ps[j].Name)
	})
}

// Header is the practice block printed at the top of every document.
type Header struct {
	PracticeName string
	Address      string
	Phone        string
	Date         string
}

type OrderRow struct {
	Name       string
	Diagnoses  []string
	Deceased   bool
	Discharged bool
	Other      bool
}

// PhysicianOrder is the order a facility physician signs for podiatry care.
// Placeholder is set instead of Rows when there are no patients.
type PhysicianOrder struct {
	Header
	FacilityName string
	Rows         []OrderRow
	Placeholder  string
}

type VisitRow struct {
	Number     int
	Name       string
	RoomNumber string
	Comment    string
}

// PodiatryVisit is the sheet carried on a facility visit.
type PodiatryVisit struct {
	Header
	FacilityName    string
	FacilityContact string
	Rows            []VisitRow
	Placeholder     string
}

// Generator turns ordered patients into documents. It never reorders its
// input and holds only immutable configuration besides the clock.
type Generator struct {
	practiceName    string
	defaultFacility string
	now             func() time.Time
}

func NewGenerator(practiceName, defaultFacility string) *Generator {
	if practiceName == "" {
		practiceName = DefaultPracticeName
	}
	if defaultFacility == "" {
		defaultFacility = DefaultFacilityName
	}
	return &Generator{practiceName: practiceName, defaultFacility: defaultFacility, now: time.Now}
}

// SetClock overrides the clock used for the printed date.
func (g *Generator) SetClock(now func() time.Time) {
	g.now = now
}

func (g *Generator) header() Header {
	return Header{
		PracticeName: g.practiceName,
		Address:      PracticeAddress,
		Phone:        PracticePhone,
		Date:         g.now().Format(dateLayout),
	}
}

func (g *Generator) facility(name string) string {
	if strings.TrimSpace(name) == "" {
		return g.defaultFacility
	}
	return name
}

// PhysicianOrder builds one row per patient. Only refused marks Other; any
// status besides deceased, discharged and refused leaves all three blank.
func (g *Generator) PhysicianOrder(patients []Patient, facilityName string) *PhysicianOrder {
	doc := &PhysicianOrder{Header: g.header(), FacilityName: g.facility(facilityName)}
	if len(patients) == 0 {
		doc.Placeholder = PhysicianOrderPlaceholder
		return doc
	}

	doc.Rows = make([]OrderRow, 0, len(patients))
	for _, p := range patients {
		diagnoses := p.Diagnoses
		if diagnoses == nil {
			diagnoses = DefaultDiagnoses
		}
		status := patient.Status(p.Status)
		doc.Rows = append(doc.Rows, OrderRow{
			Name:       p.Name,
			Diagnoses:  diagnoses,
			Deceased:   status == patient.StatusDeceased,
			Discharged: status == patient.StatusDischarged,
			Other:      status == patient.StatusRefused,
		})
	}
	return doc
}

// PodiatryVisit builds numbered rows starting at 1 with an empty comment.
func (g *Generator) PodiatryVisit(patients []Patient, facilityName, facilityContact string) *PodiatryVisit {
	doc := &PodiatryVisit{
		Header:          g.header(),
		FacilityName:    g.facility(facilityName),
		FacilityContact: facilityContact,
	}
	if len(patients) == 0 {
		doc.Placeholder = PodiatryVisitPlaceholder
		return doc
	}

	doc.Rows = make([]VisitRow, 0, len(patients))
	for i, p := range patients {
		doc.Rows = append(doc.Rows, VisitRow{Number: i + 1, Name: p.Name, RoomNumber: p.RoomNumber})
	}
	return doc
}
