package doctor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-clinic-booking/internal/apperr"
)

type mockDoctorRepo struct {
	mu      sync.Mutex
	doctors map[uuid.UUID]*Doctor
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{doctors: make(map[uuid.UUID]*Doctor)}
}

func (m *mockDoctorRepo) Create(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.doctors {
		if existing.Email == d.Email {
			return ErrEmailTaken
		}
	}
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	cp.AvailableDays = append([]string(nil), d.AvailableDays...)
	return &cp, nil
}

func (m *mockDoctorRepo) List(_ context.Context, f Filter) ([]Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Doctor
	for _, d := range m.doctors {
		if f.Specialization != "" && d.Specialization != f.Specialization {
			continue
		}
		if f.IsActive != nil && d.IsActive != *f.IsActive {
			continue
		}
		if f.Search != "" {
			q := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(d.Name), q) && !strings.Contains(strings.ToLower(d.Specialization), q) {
				continue
			}
		}
		out = append(out, *d)
	}
	return out, nil
}

func (m *mockDoctorRepo) Update(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.doctors[d.ID]; !ok {
		return ErrDoctorNotFound
	}
	for id, existing := range m.doctors {
		if id != d.ID && existing.Email == d.Email {
			return ErrEmailTaken
		}
	}
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *mockDoctorRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.doctors[id]; !ok {
		return ErrDoctorNotFound
	}
	delete(m.doctors, id)
	return nil
}

type stubLedger struct {
	upcoming int
	counts   AppointmentCounts
}

func (l stubLedger) CountUpcomingForDoctor(context.Context, uuid.UUID) (int, error) {
	return l.upcoming, nil
}

func (l stubLedger) CountByStatusForDoctor(context.Context, uuid.UUID) (AppointmentCounts, error) {
	return l.counts, nil
}

func newDoctorInput() *Doctor {
	return &Doctor{
		Name:            "Dr. Sarah Lee",
		Email:           "Sarah.Lee@Clinic.test",
		Phone:           "+1 555 0100",
		Specialization:  "Orthodontics",
		Experience:      12,
		Qualification:   "DDS, MS",
		ConsultationFee: 120,
	}
}

func TestCreate_AppliesDefaults(t *testing.T) {
	svc := NewService(newMockDoctorRepo(), stubLedger{}, zerolog.Nop())

	d, err := svc.Create(context.Background(), newDoctorInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Email != "sarah.lee@clinic.test" {
		t.Errorf("email = %q, want lowercased", d.Email)
	}
	if d.ImageURL != DefaultImageURL {
		t.Errorf("image url = %q", d.ImageURL)
	}
	if len(d.AvailableDays) != 5 || d.AvailableDays[0] != "Monday" {
		t.Errorf("available days = %v", d.AvailableDays)
	}
	if !d.IsActive {
		t.Error("new doctor should be active")
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Doctor)
	}{
		{"short name", func(d *Doctor) { d.Name = "D" }},
		{"bad email", func(d *Doctor) { d.Email = "lee" }},
		{"no phone", func(d *Doctor) { d.Phone = " " }},
		{"unknown specialization", func(d *Doctor) { d.Specialization = "Dermatology" }},
		{"negative experience", func(d *Doctor) { d.Experience = -1 }},
		{"too much experience", func(d *Doctor) { d.Experience = 61 }},
		{"no qualification", func(d *Doctor) { d.Qualification = "" }},
		{"negative fee", func(d *Doctor) { d.ConsultationFee = -5 }},
		{"bad day", func(d *Doctor) { d.AvailableDays = []string{"Funday"} }},
		{"long about", func(d *Doctor) { d.About = strings.Repeat("a", 501) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(newMockDoctorRepo(), stubLedger{}, zerolog.Nop())
			in := newDoctorInput()
			tt.mutate(in)
			_, err := svc.Create(context.Background(), in)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("err = %v, want validation", err)
			}
		})
	}
}

func TestCreate_NormalizesDayNames(t *testing.T) {
	svc := NewService(newMockDoctorRepo(), stubLedger{}, zerolog.Nop())
	in := newDoctorInput()
	in.AvailableDays = []string{"saturday", " SUNDAY "}

	d, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.AvailableDays[0] != "Saturday" || d.AvailableDays[1] != "Sunday" {
		t.Errorf("available days = %v", d.AvailableDays)
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	svc := NewService(newMockDoctorRepo(), stubLedger{}, zerolog.Nop())
	if _, err := svc.Create(context.Background(), newDoctorInput()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.Create(context.Background(), newDoctorInput())
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want conflict", err)
	}
}

func TestUpdate_Partial(t *testing.T) {
	svc := NewService(newMockDoctorRepo(), stubLedger{}, zerolog.Nop())
	ctx := context.Background()
	d, err := svc.Create(ctx, newDoctorInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	fee := 150.0
	inactive := false
	updated, err := svc.Update(ctx, d.ID, Patch{ConsultationFee: &fee, IsActive: &inactive})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ConsultationFee != 150 || updated.IsActive {
		t.Errorf("updated = %+v", updated)
	}
	if updated.Name != d.Name || updated.Specialization != d.Specialization {
		t.Error("untouched fields changed")
	}

	bad := "Astrology"
	if _, err := svc.Update(ctx, d.ID, Patch{Specialization: &bad}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want validation", err)
	}
	if _, err := svc.Update(ctx, uuid.New(), Patch{ConsultationFee: &fee}); !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestDelete_GuardedByUpcoming(t *testing.T) {
	repo := newMockDoctorRepo()
	ctx := context.Background()

	busy := NewService(repo, stubLedger{upcoming: 2}, zerolog.Nop())
	d, err := busy.Create(ctx, newDoctorInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := busy.Delete(ctx, d.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("err = %v, want invalid state", err)
	}

	idle := NewService(repo, stubLedger{}, zerolog.Nop())
	if err := idle.Delete(ctx, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := idle.Get(ctx, d.ID); !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("err = %v, want not found after delete", err)
	}
}

func TestList_Filters(t *testing.T) {
	svc := NewService(newMockDoctorRepo(), stubLedger{}, zerolog.Nop())
	ctx := context.Background()

	a := newDoctorInput()
	b := newDoctorInput()
	b.Name, b.Email, b.Specialization = "Dr. Omar Khan", "omar@clinic.test", "Oral Surgery"
	for _, in := range []*Doctor{a, b} {
		if _, err := svc.Create(ctx, in); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := svc.List(ctx, Filter{Search: "  surgery "})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Dr. Omar Khan" {
		t.Errorf("search result = %+v", got)
	}

	got, _ = svc.List(ctx, Filter{Specialization: "Orthodontics"})
	if len(got) != 1 || got[0].Name != "Dr. Sarah Lee" {
		t.Errorf("specialization result = %+v", got)
	}
}

func TestStats(t *testing.T) {
	ledger := stubLedger{upcoming: 3, counts: AppointmentCounts{Total: 7, Pending: 2, Confirmed: 1, Completed: 3, Cancelled: 1}}
	svc := NewService(newMockDoctorRepo(), ledger, zerolog.Nop())
	ctx := context.Background()
	d, err := svc.Create(ctx, newDoctorInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	st, err := svc.Stats(ctx, d.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Upcoming != 3 || st.Appointments.Total != 7 || st.Doctor.ID != d.ID {
		t.Errorf("stats = %+v", st)
	}
}

func TestSpecializations_ReturnsCopy(t *testing.T) {
	svc := NewService(newMockDoctorRepo(), stubLedger{}, zerolog.Nop())
	list := svc.Specializations()
	list[0] = "changed"
	if Specializations[0] == "changed" {
		t.Error("Specializations() leaked the package slice")
	}
}
