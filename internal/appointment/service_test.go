package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-clinic-booking/internal/apperr"
	"github.com/hackgods/dental-clinic-booking/internal/doctor"
	"github.com/hackgods/dental-clinic-booking/internal/notify"
	redisclient "github.com/hackgods/dental-clinic-booking/internal/redis"
	"github.com/hackgods/dental-clinic-booking/internal/slot"
	"github.com/hackgods/dental-clinic-booking/internal/user"
)

// memRepo is an in-memory Repository. It enforces the active-per-day rule
// on Create the way the partial unique index does.
type memRepo struct {
	mu       sync.Mutex
	appts    map[uuid.UUID]*Appointment
	doctors  map[uuid.UUID]*doctor.Doctor
	patients map[uuid.UUID]*user.User
}

func newMemRepo() *memRepo {
	return &memRepo{
		appts:    make(map[uuid.UUID]*Appointment),
		doctors:  make(map[uuid.UUID]*doctor.Doctor),
		patients: make(map[uuid.UUID]*user.User),
	}
}

func active(s Status) bool { return s == StatusPending || s == StatusConfirmed }

func (m *memRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.appts {
		if e.PatientID == a.PatientID && *e.DoctorID == *a.DoctorID && e.Date.Equal(a.Date) && active(e.Status) {
			return ErrDuplicateBooking
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *memRepo) HasActive(_ context.Context, patientID, doctorID uuid.UUID, date time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.appts {
		if e.PatientID == patientID && *e.DoctorID == doctorID && e.Date.Equal(date) && active(e.Status) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) detail(a *Appointment) Detail {
	d := Detail{Appointment: *a}
	if a.DoctorID != nil {
		if doc, ok := m.doctors[*a.DoctorID]; ok {
			d.Doctor = doctorSummary(doc)
		}
	}
	if p, ok := m.patients[a.PatientID]; ok {
		d.Patient = patientSummary(p)
	}
	return d
}

func (m *memRepo) GetDetail(_ context.Context, id uuid.UUID) (*Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	d := m.detail(a)
	return &d, nil
}

func (m *memRepo) List(_ context.Context, f Filter) ([]Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Detail
	for _, a := range m.appts {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && (a.DoctorID == nil || *a.DoctorID != *f.DoctorID) {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Date != nil && !a.Date.Equal(*f.Date) {
			continue
		}
		if f.FromDate != nil && a.Date.Before(*f.FromDate) {
			continue
		}
		if f.ActiveOnly && !active(a.Status) {
			continue
		}
		out = append(out, m.detail(a))
	}
	return out, nil
}

func (m *memRepo) Transition(_ context.Context, id uuid.UUID, t Transition) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != t.From {
		return nil, ErrStatusChanged
	}
	a.Status = t.To
	at := t.At
	switch t.To {
	case StatusConfirmed:
		a.ConfirmedAt = &at
	case StatusCancelled:
		a.CancelledAt = &at
	case StatusCompleted:
		a.CompletedAt = &at
	}
	if t.Notes != nil {
		a.Notes = *t.Notes
	}
	if t.CancelledBy != nil {
		a.CancelledBy = *t.CancelledBy
	}
	if t.CancellationReason != nil {
		a.CancellationReason = *t.CancellationReason
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appts[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(m.appts, id)
	return nil
}

func (m *memRepo) Stats(_ context.Context, from, to, today time.Time) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &Stats{ByStatus: make(map[Status]int)}
	for _, a := range m.appts {
		if !a.CreatedAt.Before(from) && !a.CreatedAt.After(to) {
			st.Total++
			st.ByStatus[a.Status]++
		}
		if a.Date.Equal(today) {
			st.Today++
		}
		if !a.Date.Before(today) && active(a.Status) {
			st.Upcoming++
		}
	}
	return st, nil
}

func (m *memRepo) CountUpcomingForDoctor(context.Context, uuid.UUID) (int, error) {
	return 0, nil
}

func (m *memRepo) CountByStatusForDoctor(context.Context, uuid.UUID) (doctor.AppointmentCounts, error) {
	return doctor.AppointmentCounts{}, nil
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.appts)
}

// memSlots is an in-memory SlotStore with an atomic Book.
type memSlots struct {
	mu         sync.Mutex
	slots      map[uuid.UUID]*slot.Slot
	bookErr    error
	releaseErr error
	released   int
}

func newMemSlots() *memSlots {
	return &memSlots{slots: make(map[uuid.UUID]*slot.Slot)}
}

func (m *memSlots) Get(_ context.Context, id uuid.UUID) (*slot.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, slot.ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSlots) Book(_ context.Context, id, appointmentID uuid.UUID) (*slot.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bookErr != nil {
		return nil, m.bookErr
	}
	s, ok := m.slots[id]
	if !ok {
		return nil, slot.ErrSlotNotFound
	}
	if err := s.Unavailable(); err != nil {
		return nil, err
	}
	s.IsBooked = true
	s.AppointmentID = &appointmentID
	cp := *s
	return &cp, nil
}

func (m *memSlots) Release(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.releaseErr != nil {
		return m.releaseErr
	}
	s, ok := m.slots[id]
	if !ok {
		return slot.ErrSlotNotFound
	}
	s.IsBooked = false
	s.AppointmentID = nil
	m.released++
	return nil
}

func (m *memSlots) ReleaseFor(_ context.Context, id, appointmentID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.releaseErr != nil {
		return false, m.releaseErr
	}
	s, ok := m.slots[id]
	if !ok || s.AppointmentID == nil || *s.AppointmentID != appointmentID {
		return false, nil
	}
	s.IsBooked = false
	s.AppointmentID = nil
	m.released++
	return true, nil
}

// lateReplySlots commits every booking and then reports a timeout, like a
// database round trip whose answer arrives after the deadline.
type lateReplySlots struct{ *memSlots }

func (l lateReplySlots) Book(ctx context.Context, id, appointmentID uuid.UUID) (*slot.Slot, error) {
	if _, err := l.memSlots.Book(ctx, id, appointmentID); err != nil {
		return nil, err
	}
	return nil, context.DeadlineExceeded
}

type repoDoctors struct{ repo *memRepo }

func (r repoDoctors) GetByID(_ context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	d, ok := r.repo.doctors[id]
	if !ok {
		return nil, doctor.ErrDoctorNotFound
	}
	return d, nil
}

type repoPatients struct{ repo *memRepo }

func (r repoPatients) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := r.repo.patients[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, ev notify.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
}

func (d *recordingDispatcher) types() []notify.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []notify.EventType
	for _, ev := range d.events {
		out = append(out, ev.Type)
	}
	return out
}

type busyLocker struct{}

func (busyLocker) WithSlotLock(context.Context, uuid.UUID, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

var (
	clinicNow = time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC)
	tomorrow  = time.Date(2026, 4, 7, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc       *Service
	repo      *memRepo
	slots     *memSlots
	events    *recordingDispatcher
	lee       *doctor.Doctor
	patient   *user.User
	admin     Actor
	asPatient Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemRepo()
	slots := newMemSlots()
	events := &recordingDispatcher{}

	lee := &doctor.Doctor{ID: uuid.New(), Name: "Dr. Lee", Specialization: "Orthodontics", IsActive: true}
	repo.doctors[lee.ID] = lee
	patient := &user.User{ID: uuid.New(), Name: "Pat Doe", Email: "pat@clinic.test", Role: user.RolePatient, IsActive: true}
	repo.patients[patient.ID] = patient

	svc := NewService(repo, slots, repoDoctors{repo}, repoPatients{repo}, nil, events, zerolog.Nop())
	svc.now = func() time.Time { return clinicNow }

	return &fixture{
		svc:       svc,
		repo:      repo,
		slots:     slots,
		events:    events,
		lee:       lee,
		patient:   patient,
		admin:     Actor{UserID: uuid.New(), Role: user.RoleAdmin},
		asPatient: Actor{UserID: patient.ID, Role: user.RolePatient},
	}
}

func (f *fixture) addSlot(doctorID uuid.UUID, date time.Time, label string) *slot.Slot {
	l, err := slot.ParseTimeLabel(label)
	if err != nil {
		panic(err)
	}
	s := &slot.Slot{ID: uuid.New(), DoctorID: doctorID, Date: date, Time: l.Text, StartMinute: l.Minute}
	f.slots.slots[s.ID] = s
	return s
}

func (f *fixture) book(t *testing.T, s *slot.Slot) *Detail {
	t.Helper()
	d, err := f.svc.Book(context.Background(), BookInput{
		PatientID: f.patient.ID,
		DoctorID:  s.DoctorID,
		SlotID:    s.ID,
		Reason:    "check-up",
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	return d
}

func TestDrLeeScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.addSlot(f.lee.ID, tomorrow, "10:00 AM")

	booked, err := f.svc.Book(ctx, BookInput{
		PatientID: f.patient.ID,
		DoctorID:  f.lee.ID,
		SlotID:    s.ID,
		Date:      &tomorrow,
		Time:      "10:00 AM",
		Reason:    "tooth ache",
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if booked.Status != StatusPending {
		t.Errorf("status = %s, want pending", booked.Status)
	}
	if booked.Doctor == nil || booked.Doctor.Name != "Dr. Lee" || booked.Patient == nil || booked.Patient.Email != "pat@clinic.test" {
		t.Errorf("details not attached: %+v", booked)
	}
	stored, _ := f.slots.Get(ctx, s.ID)
	if !stored.IsBooked || stored.AppointmentID == nil || *stored.AppointmentID != booked.ID {
		t.Fatalf("slot after booking = %+v", stored)
	}

	confirmed, err := f.svc.Confirm(ctx, f.admin, booked.ID, "bring x-rays")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != StatusConfirmed || confirmed.ConfirmedAt == nil || confirmed.Notes != "bring x-rays" {
		t.Errorf("after confirm = %+v", confirmed.Appointment)
	}

	cancelled, err := f.svc.Cancel(ctx, f.asPatient, booked.ID, "travelling")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled || cancelled.CancelledBy != user.RolePatient ||
		cancelled.CancellationReason != "travelling" || cancelled.CancelledAt == nil {
		t.Errorf("after cancel = %+v", cancelled.Appointment)
	}

	stored, _ = f.slots.Get(ctx, s.ID)
	if stored.IsBooked || stored.AppointmentID != nil {
		t.Errorf("slot not released: %+v", stored)
	}

	want := []notify.EventType{notify.EventBooked, notify.EventConfirmed, notify.EventCancelled}
	got := f.events.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestBook_DuplicateSameDoctorSameDay(t *testing.T) {
	f := newFixture(t)
	first := f.addSlot(f.lee.ID, tomorrow, "09:00 AM")
	second := f.addSlot(f.lee.ID, tomorrow, "11:00 AM")
	f.book(t, first)

	_, err := f.svc.Book(context.Background(), BookInput{PatientID: f.patient.ID, DoctorID: f.lee.ID, SlotID: second.ID})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if s, _ := f.slots.Get(context.Background(), second.ID); s.IsBooked {
		t.Error("second slot should stay open")
	}
}

func TestBook_AfterCancelSameDayAllowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.addSlot(f.lee.ID, tomorrow, "09:00 AM")
	second := f.addSlot(f.lee.ID, tomorrow, "11:00 AM")

	d := f.book(t, first)
	if _, err := f.svc.Cancel(ctx, f.asPatient, d.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	f.book(t, second)
}

func TestBook_Rejections(t *testing.T) {
	f := newFixture(t)
	other := &doctor.Doctor{ID: uuid.New(), Name: "Dr. Khan", IsActive: true}
	f.repo.doctors[other.ID] = other
	retired := &doctor.Doctor{ID: uuid.New(), Name: "Dr. Gone", IsActive: false}
	f.repo.doctors[retired.ID] = retired

	open := f.addSlot(f.lee.ID, tomorrow, "09:00 AM")
	blocked := f.addSlot(f.lee.ID, tomorrow, "09:30 AM")
	blocked.IsBlocked = true
	taken := f.addSlot(f.lee.ID, tomorrow, "10:00 AM")
	takenBy := uuid.New()
	taken.IsBooked, taken.AppointmentID = true, &takenBy
	khans := f.addSlot(other.ID, tomorrow, "09:00 AM")
	retiredSlot := f.addSlot(retired.ID, tomorrow, "09:00 AM")
	yesterday := f.addSlot(f.lee.ID, tomorrow.AddDate(0, 0, -2), "09:00 AM")
	wrongDate := tomorrow.AddDate(0, 0, 1)

	tests := []struct {
		name string
		in   BookInput
		want error
	}{
		{"unknown doctor", BookInput{DoctorID: uuid.New(), SlotID: open.ID}, doctor.ErrDoctorNotFound},
		{"inactive doctor", BookInput{DoctorID: retired.ID, SlotID: retiredSlot.ID}, apperr.ErrInvalidState},
		{"unknown slot", BookInput{DoctorID: f.lee.ID, SlotID: uuid.New()}, slot.ErrSlotNotFound},
		{"blocked slot", BookInput{DoctorID: f.lee.ID, SlotID: blocked.ID}, slot.ErrSlotBlocked},
		{"booked slot", BookInput{DoctorID: f.lee.ID, SlotID: taken.ID}, slot.ErrSlotBooked},
		{"other doctor's slot", BookInput{DoctorID: f.lee.ID, SlotID: khans.ID}, apperr.ErrInvalidState},
		{"date mismatch", BookInput{DoctorID: f.lee.ID, SlotID: open.ID, Date: &wrongDate}, apperr.ErrValidation},
		{"time mismatch", BookInput{DoctorID: f.lee.ID, SlotID: open.ID, Time: "04:00 PM"}, apperr.ErrValidation},
		{"past slot", BookInput{DoctorID: f.lee.ID, SlotID: yesterday.ID}, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.PatientID = f.patient.ID
			_, err := f.svc.Book(context.Background(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if n := f.repo.count(); n != 0 {
		t.Errorf("%d appointments created by rejected bookings", n)
	}
}

func TestBook_CompensatesWhenSlotBookFails(t *testing.T) {
	f := newFixture(t)
	s := f.addSlot(f.lee.ID, tomorrow, "09:00 AM")
	// another request won the slot between our read and our update
	f.slots.bookErr = slot.ErrSlotBooked

	_, err := f.svc.Book(context.Background(), BookInput{PatientID: f.patient.ID, DoctorID: f.lee.ID, SlotID: s.ID})
	if !errors.Is(err, slot.ErrSlotBooked) {
		t.Fatalf("err = %v, want slot booked", err)
	}
	if n := f.repo.count(); n != 0 {
		t.Errorf("appointments left behind: %d", n)
	}
	if len(f.events.types()) != 0 {
		t.Error("no notification expected for a failed booking")
	}
}

func TestBook_CompensationReleasesCommittedSlot(t *testing.T) {
	f := newFixture(t)
	f.svc.slots = lateReplySlots{f.slots}
	s := f.addSlot(f.lee.ID, tomorrow, "09:00 AM")

	_, err := f.svc.Book(context.Background(), BookInput{PatientID: f.patient.ID, DoctorID: f.lee.ID, SlotID: s.ID})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if n := f.repo.count(); n != 0 {
		t.Errorf("appointments left behind: %d", n)
	}
	got, _ := f.slots.Get(context.Background(), s.ID)
	if got.IsBooked || got.AppointmentID != nil {
		t.Errorf("slot still booked after rollback: %+v", got)
	}

	// the freed slot is bookable again
	f.svc.slots = f.slots
	f.book(t, s)
}

func TestBook_CompensationKeepsAppointmentWhenReleaseFails(t *testing.T) {
	f := newFixture(t)
	f.svc.slots = lateReplySlots{f.slots}
	f.slots.releaseErr = errors.New("connection reset")
	s := f.addSlot(f.lee.ID, tomorrow, "09:00 AM")

	if _, err := f.svc.Book(context.Background(), BookInput{PatientID: f.patient.ID, DoctorID: f.lee.ID, SlotID: s.ID}); err == nil {
		t.Fatal("expected booking error")
	}
	got, _ := f.slots.Get(context.Background(), s.ID)
	if !got.IsBooked || got.AppointmentID == nil {
		t.Fatalf("slot = %+v, want still booked", got)
	}
	if _, err := f.repo.GetByID(context.Background(), *got.AppointmentID); err != nil {
		t.Errorf("booked slot links to a missing appointment: %v", err)
	}
}

func TestBook_LockContention(t *testing.T) {
	f := newFixture(t)
	f.svc.locker = busyLocker{}
	s := f.addSlot(f.lee.ID, tomorrow, "09:00 AM")

	_, err := f.svc.Book(context.Background(), BookInput{PatientID: f.patient.ID, DoctorID: f.lee.ID, SlotID: s.ID})
	if !errors.Is(err, ErrSlotBeingBooked) || !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want slot being booked conflict", err)
	}
}

func TestBook_ConcurrentPatientsOneWinner(t *testing.T) {
	f := newFixture(t)
	s := f.addSlot(f.lee.ID, tomorrow, "09:00 AM")

	const racers = 16
	var patients []uuid.UUID
	for i := 0; i < racers; i++ {
		p := &user.User{ID: uuid.New(), Name: "Racer", Email: "racer@clinic.test", Role: user.RolePatient}
		f.repo.patients[p.ID] = p
		patients = append(patients, p.ID)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, pid := range patients {
		wg.Add(1)
		go func(pid uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.Book(context.Background(), BookInput{PatientID: pid, DoctorID: f.lee.ID, SlotID: s.ID})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !errors.Is(err, apperr.ErrInvalidState) {
				t.Errorf("unexpected error: %v", err)
			}
		}(pid)
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("wins = %d, want 1", wins)
	}
	if n := f.repo.count(); n != 1 {
		t.Errorf("appointments = %d, want 1", n)
	}
}

func TestBook_NotificationFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t)
	pub := failingPublisher{}
	dispatcher := notify.NewAsyncDispatcher(pub, zerolog.Nop(), notify.DispatcherOptions{Buffer: 1, Workers: 1})
	f.svc.notifier = dispatcher
	s := f.addSlot(f.lee.ID, tomorrow, "09:00 AM")

	d := f.book(t, s)
	if d.Status != StatusPending {
		t.Errorf("status = %s", d.Status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := dispatcher.Close(ctx); err != nil {
		t.Fatalf("close dispatcher: %v", err)
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, notify.Event) error { return errors.New("broker down") }
func (failingPublisher) Close() error                                { return nil }

func TestCompleteAfterCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.book(t, f.addSlot(f.lee.ID, tomorrow, "09:00 AM"))

	if _, err := f.svc.Cancel(ctx, f.admin, d.ID, "clinic closed"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err := f.svc.Complete(ctx, f.admin, d.ID, "")
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Errorf("err = %v, want invalid state", err)
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cancelled := f.book(t, f.addSlot(f.lee.ID, tomorrow, "09:00 AM"))
	if _, err := f.svc.Cancel(ctx, f.asPatient, cancelled.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	completed := f.book(t, f.addSlot(f.lee.ID, tomorrow, "10:00 AM"))
	if _, err := f.svc.Complete(ctx, f.admin, completed.ID, "all good"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	for _, id := range []uuid.UUID{cancelled.ID, completed.ID} {
		if _, err := f.svc.Confirm(ctx, f.admin, id, ""); !errors.Is(err, apperr.ErrInvalidState) {
			t.Errorf("confirm %s: err = %v", id, err)
		}
		if _, err := f.svc.Cancel(ctx, f.admin, id, ""); !errors.Is(err, apperr.ErrInvalidState) {
			t.Errorf("cancel %s: err = %v", id, err)
		}
		if _, err := f.svc.Complete(ctx, f.admin, id, ""); !errors.Is(err, apperr.ErrInvalidState) {
			t.Errorf("complete %s: err = %v", id, err)
		}
	}
}

func TestComplete_KeepsSlotBooked(t *testing.T) {
	f := newFixture(t)
	s := f.addSlot(f.lee.ID, tomorrow, "09:00 AM")
	d := f.book(t, s)

	done, err := f.svc.Complete(context.Background(), f.admin, d.ID, "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if stored, _ := f.slots.Get(context.Background(), s.ID); !stored.IsBooked {
		t.Error("completed appointment should keep its slot")
	}
}

func TestRoleRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.book(t, f.addSlot(f.lee.ID, tomorrow, "09:00 AM"))
	stranger := Actor{UserID: uuid.New(), Role: user.RolePatient}

	if _, err := f.svc.Confirm(ctx, f.asPatient, d.ID, ""); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("patient confirm: err = %v", err)
	}
	if _, err := f.svc.Complete(ctx, f.asPatient, d.ID, ""); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("patient complete: err = %v", err)
	}
	if _, err := f.svc.Cancel(ctx, stranger, d.ID, ""); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("stranger cancel: err = %v", err)
	}
	if _, err := f.svc.Get(ctx, stranger, d.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("stranger get: err = %v", err)
	}
	if err := f.svc.Delete(ctx, f.asPatient, d.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("patient delete: err = %v", err)
	}
	if _, err := f.svc.Get(ctx, f.asPatient, d.ID); err != nil {
		t.Errorf("owner get: %v", err)
	}
}

func TestCancel_ReleaseFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.book(t, f.addSlot(f.lee.ID, tomorrow, "09:00 AM"))
	f.slots.releaseErr = errors.New("connection reset")

	_, err := f.svc.Cancel(ctx, f.asPatient, d.ID, "")
	if err == nil {
		t.Fatal("expected release error")
	}

	stored, _ := f.repo.GetByID(ctx, d.ID)
	if stored.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled before release", stored.Status)
	}
}

func TestDelete_ReleasesOwnSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.addSlot(f.lee.ID, tomorrow, "09:00 AM")
	d := f.book(t, s)

	if err := f.svc.Delete(ctx, f.admin, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if stored, _ := f.slots.Get(ctx, s.ID); stored.IsBooked {
		t.Error("slot still booked after delete")
	}
	if _, err := f.repo.GetByID(ctx, d.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestDelete_LeavesRebookedSlotAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.addSlot(f.lee.ID, tomorrow, "09:00 AM")
	d := f.book(t, s)
	if _, err := f.svc.Cancel(ctx, f.asPatient, d.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	other := &user.User{ID: uuid.New(), Name: "Sam", Email: "sam@clinic.test", Role: user.RolePatient}
	f.repo.patients[other.ID] = other
	rebooked, err := f.svc.Book(ctx, BookInput{PatientID: other.ID, DoctorID: f.lee.ID, SlotID: s.ID})
	if err != nil {
		t.Fatalf("rebook: %v", err)
	}

	if err := f.svc.Delete(ctx, f.admin, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	stored, _ := f.slots.Get(ctx, s.ID)
	if !stored.IsBooked || *stored.AppointmentID != rebooked.ID {
		t.Errorf("rebooked slot disturbed: %+v", stored)
	}
}

func TestListMine_Upcoming(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	keep := f.book(t, f.addSlot(f.lee.ID, tomorrow, "09:00 AM"))
	khan := &doctor.Doctor{ID: uuid.New(), Name: "Dr. Khan", IsActive: true}
	f.repo.doctors[khan.ID] = khan
	gone := f.book(t, f.addSlot(khan.ID, tomorrow, "09:00 AM"))
	if _, err := f.svc.Cancel(ctx, f.asPatient, gone.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	all, err := f.svc.ListMine(ctx, f.patient.ID, "", false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all = %d, want 2", len(all))
	}

	upcoming, err := f.svc.ListMine(ctx, f.patient.ID, StatusCancelled, true)
	if err != nil {
		t.Fatalf("list upcoming: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].ID != keep.ID {
		t.Errorf("upcoming = %+v", upcoming)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.book(t, f.addSlot(f.lee.ID, tomorrow, "09:00 AM"))
	f.book(t, f.addSlot(f.lee.ID, tomorrow.AddDate(0, 0, 1), "09:00 AM"))
	if _, err := f.svc.Confirm(ctx, f.admin, d.ID, ""); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	f.svc.now = time.Now
	st, err := f.svc.Stats(ctx, nil, nil)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 2 || st.ByStatus[StatusConfirmed] != 1 || st.ByStatus[StatusPending] != 1 {
		t.Errorf("stats = %+v", st)
	}

	later := time.Now()
	earlier := later.Add(-time.Hour)
	if _, err := f.svc.Stats(ctx, &later, &earlier); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want validation", err)
	}
}

func TestReminderEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.book(t, f.addSlot(f.lee.ID, tomorrow, "09:00 AM"))

	events, err := f.svc.ReminderEvents(ctx, tomorrow.Add(13*time.Hour))
	if err != nil {
		t.Fatalf("reminders: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Type != notify.EventReminder || ev.AppointmentID != d.ID || ev.To != "pat@clinic.test" ||
		ev.Date != "2026-04-07" || ev.Time != "09:00 AM" || ev.DoctorName != "Dr. Lee" {
		t.Errorf("event = %+v", ev)
	}
}
