package patient

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/empathic/podiatry/internal/platform/apperror"
	"github.com/empathic/podiatry/internal/platform/db"
)

// -- Mock Patient Repository --

type mockRepo struct {
	patients map[uuid.UUID]*Patient
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[uuid.UUID]*Patient)}
}

func inScope(p *Patient, scope db.Scope) bool {
	switch scope {
	case db.ScopeAny:
		return true
	case db.ScopeArchived:
		return p.DeletedAt != nil
	default:
		return p.DeletedAt == nil
	}
}

func clone(p *Patient) *Patient {
	cp := *p
	return &cp
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.patients[p.ID] = clone(p)
	return nil
}

func (m *mockRepo) Get(_ context.Context, id uuid.UUID, scope db.Scope) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok || !inScope(p, scope) {
		return nil, apperror.ErrNotFound
	}
	return clone(p), nil
}

func (m *mockRepo) Update(_ context.Context, id uuid.UUID, u *Update) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok || p.DeletedAt != nil {
		return nil, apperror.ErrNotFound
	}
	for _, a := range u.assignments() {
		var s *string
		if v, ok := a.value.(string); ok {
			s = &v
		}
		switch a.column {
		case "facility_id":
			p.FacilityID = a.value.(uuid.UUID)
		case "name":
			p.Name = *s
		case "date_of_birth":
			p.DateOfBirth = s
		case "room_number":
			p.RoomNumber = s
		case "type_of_consent":
			p.TypeOfConsent = s
		case "primary_insurance":
			p.PrimaryInsurance = s
		case "date_last_seen":
			p.DateLastSeen = s
		case "status":
			if s == nil {
				p.Status = nil
			} else {
				st := Status(*s)
				p.Status = &st
			}
		}
	}
	p.UpdatedAt = time.Now()
	return clone(p), nil
}

func (m *mockRepo) Archive(_ context.Context, id uuid.UUID, at time.Time) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok || p.DeletedAt != nil {
		return nil, apperror.ErrNotFound
	}
	p.DeletedAt = &at
	return clone(p), nil
}

func (m *mockRepo) Restore(_ context.Context, id uuid.UUID, status Status) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok || p.DeletedAt == nil {
		return nil, apperror.ErrNotFound
	}
	p.DeletedAt = nil
	p.Status = &status
	return clone(p), nil
}

func (m *mockRepo) Purge(_ context.Context, id uuid.UUID) error {
	if _, ok := m.patients[id]; !ok {
		return apperror.ErrNotFound
	}
	delete(m.patients, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, filter ListFilter) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		if !inScope(p, filter.Scope) {
			continue
		}
		if filter.FacilityID != nil && p.FacilityID != *filter.FacilityID {
			continue
		}
		if filter.Status != nil && !p.HasStatus(*filter.Status) {
			continue
		}
		result = append(result, clone(p))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, len(result), nil
}

func (m *mockRepo) CountByFacility(_ context.Context, facilityID uuid.UUID) (int, error) {
	n := 0
	for _, p := range m.patients {
		if p.FacilityID == facilityID {
			n++
		}
	}
	return n, nil
}

type stubFacilities map[uuid.UUID]bool

func (s stubFacilities) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return s[id], nil
}

type countingRecorder map[string]int

func (c countingRecorder) RecordTransition(transition string) {
	c[transition]++
}

var testFacility = uuid.MustParse("7f1c6f0e-3a55-4c1e-9d7c-2b0b7c9a1f11")

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, stubFacilities{testFacility: true}), repo
}

func strPtr(s string) *string { return &s }

func statusPtr(s Status) *Status { return &s }

func createPatient(t *testing.T, svc *Service, name string, status Status) *Patient {
	t.Helper()
	p := &Patient{FacilityID: testFacility, Name: name}
	if status != "" {
		p.Status = statusPtr(status)
	}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("create patient: %v", err)
	}
	return p
}

func TestService_Create(t *testing.T) {
	svc, _ := newTestService()
	p := &Patient{
		FacilityID:   testFacility,
		Name:         " Jane Doe ",
		RoomNumber:   strPtr("12B"),
		DateLastSeen: strPtr("03/15/2024"),
		Status:       statusPtr(StatusNeedsSeen),
		DateOfBirth:  strPtr(""),
	}
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Error("expected ID to be assigned")
	}
	if p.Name != "Jane Doe" {
		t.Errorf("expected trimmed name, got %q", p.Name)
	}
	if p.DateLastSeen == nil || *p.DateLastSeen != "2024-03-15" {
		t.Errorf("expected normalized date, got %v", p.DateLastSeen)
	}
	if p.DateOfBirth != nil {
		t.Error("expected blank date of birth to become NULL")
	}
}

func TestService_Create_IgnoresDeletedAt(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	yesterday := time.Now().Add(-24 * time.Hour)
	p := &Patient{FacilityID: testFacility, Name: "Jane Doe", DeletedAt: &yesterday}
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.DeletedAt != nil {
		t.Errorf("expected new patient to be active, got deleted_at %v", p.DeletedAt)
	}
	if _, err := svc.Get(ctx, p.ID, db.ScopeActive); err != nil {
		t.Errorf("expected patient in active scope, got %v", err)
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc, _ := newTestService()

	cases := []struct {
		name  string
		p     Patient
		field string
	}{
		{"missing name", Patient{FacilityID: testFacility}, "name"},
		{"missing facility", Patient{Name: "Jane"}, "facility_id"},
		{"unknown facility", Patient{Name: "Jane", FacilityID: uuid.New()}, "facility_id"},
		{"long room", Patient{Name: "Jane", FacilityID: testFacility, RoomNumber: strPtr(strings.Repeat("1", 51))}, "room_number"},
		{"long status", Patient{Name: "Jane", FacilityID: testFacility, Status: statusPtr(Status(strings.Repeat("s", 51)))}, "status"},
		{"bad date", Patient{Name: "Jane", FacilityID: testFacility, DateLastSeen: strPtr("last tuesday")}, "date_last_seen"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.p
			err := svc.Create(context.Background(), &p)
			var ve *apperror.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := ve.Fields[tc.field]; !ok {
				t.Errorf("expected error on %s, got %v", tc.field, ve.Fields)
			}
		})
	}
}

func TestService_Create_UnknownStatusAccepted(t *testing.T) {
	svc, _ := newTestService()
	p := createPatient(t, svc, "Jane", Status("on vacation"))
	if p.StatusOrEmpty() != "on vacation" {
		t.Errorf("expected open status to be stored, got %q", p.StatusOrEmpty())
	}
}

func TestService_Update_PartialMerge(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p := &Patient{
		FacilityID:       testFacility,
		Name:             "Jane Doe",
		RoomNumber:       strPtr("12B"),
		PrimaryInsurance: strPtr("Medicare"),
		DateLastSeen:     strPtr("2024-01-02"),
		Status:           statusPtr(StatusVisitComplete),
	}
	if err := svc.Create(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Update(ctx, p.ID, &Update{Status: statusPtr(StatusNeedsSeen)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !got.HasStatus(StatusNeedsSeen) {
		t.Errorf("expected needs seen, got %q", got.StatusOrEmpty())
	}
	if got.Name != "Jane Doe" || *got.RoomNumber != "12B" || *got.PrimaryInsurance != "Medicare" || *got.DateLastSeen != "2024-01-02" {
		t.Errorf("unsupplied fields changed: %+v", got)
	}
	if got.FacilityID != testFacility {
		t.Error("facility changed")
	}
}

func TestService_Update_ClearsWithEmptyString(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p := &Patient{FacilityID: testFacility, Name: "Jane", RoomNumber: strPtr("12B")}
	if err := svc.Create(ctx, p); err != nil {
		t.Fatal(err)
	}
	got, err := svc.Update(ctx, p.ID, &Update{RoomNumber: strPtr("")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.RoomNumber != nil {
		t.Errorf("expected room number cleared, got %q", *got.RoomNumber)
	}
}

func TestService_Update_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p := createPatient(t, svc, "Jane", StatusNeedsSeen)

	_, err := svc.Update(ctx, p.ID, &Update{Name: strPtr("  ")})
	var ve *apperror.ValidationError
	if !errors.As(err, &ve) || ve.Fields["name"] == nil {
		t.Fatalf("expected name ValidationError, got %v", err)
	}

	bogus := uuid.New()
	_, err = svc.Update(ctx, p.ID, &Update{FacilityID: &bogus})
	if !errors.As(err, &ve) || ve.Fields["facility_id"] == nil {
		t.Fatalf("expected facility_id ValidationError, got %v", err)
	}
}

func TestService_Update_ArchivedIsNotFound(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p := createPatient(t, svc, "Jane", StatusNeedsSeen)
	if _, err := svc.Archive(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Update(ctx, p.ID, &Update{Status: statusPtr(StatusVisitComplete)})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestService_Update_NeverArchives(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p := createPatient(t, svc, "Jane", StatusNeedsSeen)

	got, err := svc.Update(ctx, p.ID, &Update{Status: statusPtr(StatusDeceased)})
	if err != nil {
		t.Fatal(err)
	}
	if got.Archived() {
		t.Error("Update must not archive on its own")
	}
}

func TestService_RestoreForcesNeedsSeen(t *testing.T) {
	for _, start := range []Status{StatusDeceased, StatusDischarged, StatusRefused, StatusVisitComplete} {
		t.Run(string(start), func(t *testing.T) {
			svc, _ := newTestService()
			ctx := context.Background()
			p := createPatient(t, svc, "Jane", start)

			archived, err := svc.Archive(ctx, p.ID)
			if err != nil {
				t.Fatalf("archive: %v", err)
			}
			if !archived.HasStatus(start) {
				t.Errorf("archive must keep status, got %q", archived.StatusOrEmpty())
			}

			restored, err := svc.Restore(ctx, p.ID)
			if err != nil {
				t.Fatalf("restore: %v", err)
			}
			if !restored.HasStatus(StatusNeedsSeen) {
				t.Errorf("expected needs seen, got %q", restored.StatusOrEmpty())
			}
			if restored.DeletedAt != nil {
				t.Error("expected archival timestamp cleared")
			}
		})
	}
}

func TestService_TransitionNotFound(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p := createPatient(t, svc, "Jane", StatusNeedsSeen)

	if _, err := svc.Restore(ctx, p.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("restoring an active patient should be NotFound, got %v", err)
	}
	if _, err := svc.Archive(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Archive(ctx, p.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("archiving twice should be NotFound, got %v", err)
	}
	if _, err := svc.Archive(ctx, uuid.New()); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("archiving unknown id should be NotFound, got %v", err)
	}
}

func TestService_ForceDelete(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p := createPatient(t, svc, "Jane", StatusRefused)
	if _, err := svc.Archive(ctx, p.ID); err != nil {
		t.Fatal(err)
	}

	if err := svc.ForceDelete(ctx, p.ID); err != nil {
		t.Fatalf("force delete: %v", err)
	}
	if _, err := svc.Get(ctx, p.ID, db.ScopeArchived); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("purged patient must be absent from archived scope, got %v", err)
	}
	if _, err := svc.Get(ctx, p.ID, db.ScopeAny); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("purged patient must be absent from any scope, got %v", err)
	}
	if err := svc.ForceDelete(ctx, p.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second force delete should be NotFound, got %v", err)
	}
}

func TestService_List_Scopes(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	createPatient(t, svc, "Bob", StatusNeedsSeen)
	createPatient(t, svc, "Alice", StatusVisitComplete)
	gone := createPatient(t, svc, "Carl", StatusDischarged)
	if _, err := svc.Archive(ctx, gone.ID); err != nil {
		t.Fatal(err)
	}

	active, activeN, _ := svc.List(ctx, ListFilter{Scope: db.ScopeActive})
	archived, archivedN, _ := svc.List(ctx, ListFilter{Scope: db.ScopeArchived})
	_, anyN, _ := svc.List(ctx, ListFilter{Scope: db.ScopeAny})

	for _, p := range active {
		if p.DeletedAt != nil {
			t.Errorf("active list contains archived patient %s", p.Name)
		}
	}
	if activeN != 2 || archivedN != 1 || archived[0].ID != gone.ID {
		t.Errorf("unexpected counts active=%d archived=%d", activeN, archivedN)
	}
	if anyN != activeN+archivedN {
		t.Errorf("any-count %d != active %d + archived %d", anyN, activeN, archivedN)
	}
}

func TestService_RecordsTransitions(t *testing.T) {
	svc, _ := newTestService()
	rec := countingRecorder{}
	svc.SetRecorder(rec)
	ctx := context.Background()
	p := createPatient(t, svc, "Jane", StatusNeedsSeen)

	if _, err := svc.Update(ctx, p.ID, &Update{Status: statusPtr(StatusNeedsSeen)}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Update(ctx, p.ID, &Update{Status: statusPtr(StatusRefused)}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Archive(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Restore(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.ForceDelete(ctx, p.ID); err != nil {
		t.Fatal(err)
	}

	want := countingRecorder{TransitionUpdate: 1, TransitionArchive: 1, TransitionRestore: 1, TransitionPurge: 1}
	for k, v := range want {
		if rec[k] != v {
			t.Errorf("%s: expected %d, got %d", k, v, rec[k])
		}
	}
}

// Scenario A: create, mark deceased, archive.
func TestScenario_DeceasedThenArchived(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p := createPatient(t, svc, "Test Patient", StatusNeedsSeen)

	got, err := svc.Update(ctx, p.ID, &Update{Status: statusPtr(StatusDeceased)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !got.HasStatus(StatusDeceased) {
		t.Fatalf("expected deceased, got %q", got.StatusOrEmpty())
	}
	if _, err := svc.Archive(ctx, p.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	active, _, _ := svc.List(ctx, ListFilter{Scope: db.ScopeActive})
	for _, a := range active {
		if a.ID == p.ID {
			t.Error("archived patient in default list")
		}
	}
	archived, _, _ := svc.List(ctx, ListFilter{Scope: db.ScopeArchived})
	if len(archived) != 1 || archived[0].ID != p.ID {
		t.Errorf("expected patient in archived list, got %v", archived)
	}
}

// Scenario C: a refused patient comes back as needs seen.
func TestScenario_RefusedRestoredAsNeedsSeen(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p := createPatient(t, svc, "Jane", StatusRefused)
	if _, err := svc.Archive(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	restored, err := svc.Restore(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if restored.HasStatus(StatusRefused) || !restored.HasStatus(StatusNeedsSeen) {
		t.Errorf("expected needs seen, got %q", restored.StatusOrEmpty())
	}
}
