package memory

import (
	"sync"

	"github.com/festlabs/festreg/internal/domain/event"
	"github.com/festlabs/festreg/internal/domain/registration"
	"github.com/festlabs/festreg/internal/domain/settings"
)

// Store is the in-memory counterpart of the postgres repos, used by unit
// tests and local development. One mutex guards events, registrations and
// settings together so the capacity check-and-increment and the endpoint
// claim are as atomic as their SQL versions. The sub-repos mirror the
// postgres package's types.
type Store struct {
	mu        sync.Mutex
	events    map[string]*event.Event
	regs      map[string]*registration.Registration
	scheduler settings.Scheduler

	Events        *EventsRepo
	Registrations *RegistrationsRepo
	Settings      *SettingsRepo
}

func NewStore() *Store {
	s := &Store{
		events: make(map[string]*event.Event),
		regs:   make(map[string]*registration.Registration),
		scheduler: settings.Scheduler{
			RegistrationOpen: true,
		},
	}
	s.Events = &EventsRepo{s: s}
	s.Registrations = &RegistrationsRepo{s: s}
	s.Settings = &SettingsRepo{s: s}
	return s
}

// PutEvent seeds or replaces an event.
func (s *Store) PutEvent(e event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneEvent(&e)
	s.events[e.ID] = &cp
}

// PutRegistration seeds a registration. Test helper; bypasses admission.
func (s *Store) PutRegistration(r registration.Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := r
	s.regs[r.ID] = &cp
}

func cloneEvent(e *event.Event) event.Event {
	cp := *e
	cp.Categories = append([]event.RegistrationCategory(nil), e.Categories...)
	cp.QREndpoints = append([]event.QRCodeEndpoint(nil), e.QREndpoints...)
	return cp
}
