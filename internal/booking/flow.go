package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"spa-chat-widget/internal/domain"
	"spa-chat-widget/internal/integrations/spaapi"
)

var (
	ErrOptionUnavailable = errors.New("booking: option not available")
	ErrBusy              = errors.New("booking: a request is already in flight")
	ErrPastDate          = errors.New("booking: date is in the past")
)

// Messages shown to the user. Error strings land in BookingState.Error.
const (
	promptService  = "Please select a service:"
	promptLocation = "Please select a location:"
	promptSlot     = "Please select an available time slot:"
	bookedMessage  = "Great! Your appointment has been booked. You will receive a confirmation email shortly."

	ErrTextLocations   = "Failed to fetch locations"
	ErrTextSlots       = "Failed to fetch available slots"
	ErrTextAppointment = "Failed to book appointment"

	dateLayout = "2006-01-02"
)

// API is the subset of the spa backend used by the booking dialogue.
type API interface {
	Locations(ctx context.Context) ([]domain.Location, error)
	AvailableSlots(ctx context.Context, date time.Time, serviceID, locationID int) ([]domain.Slot, error)
	CreateAppointment(ctx context.Context, in spaapi.AppointmentRequest) error
}

// Recorder receives the messages the dialogue adds to the transcript.
type Recorder interface {
	Append(m domain.Message) error
}

// Flow owns the booking state of one widget together with the option lists
// the assistant surfaced. It is safe for concurrent use.
type Flow struct {
	api    API
	rec    Recorder
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	mu           sync.Mutex
	state        State
	booking      domain.BookingState
	services     []domain.Service
	locations    []domain.Location
	slots        []domain.Slot
	slotsLoaded  bool
	date         time.Time
	calendarOpen bool
	// gen is bumped on every reset so late responses can be dropped.
	gen uint64
}

type Option func(*Flow)

func WithLogger(l *slog.Logger) Option {
	return func(f *Flow) {
		if l != nil {
			f.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(f *Flow) {
		if now != nil {
			f.now = now
		}
	}
}

func WithIDs(newID func() string) Option {
	return func(f *Flow) {
		if newID != nil {
			f.newID = newID
		}
	}
}

func NewFlow(api API, rec Recorder, opts ...Option) (*Flow, error) {
	if api == nil {
		return nil, errors.New("booking: api must not be nil")
	}
	if rec == nil {
		return nil, errors.New("booking: recorder must not be nil")
	}
	f := &Flow{
		api:    api,
		rec:    rec,
		logger: slog.Default(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// ApplyActions fills the option lists from the assistant's actions, in order.
// Unknown action types are ignored. The booking state is not changed.
func (f *Flow) ApplyActions(actions []domain.Action) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range actions {
		switch a.Type {
		case domain.ActionShowServices:
			if len(a.Services) == 0 {
				continue
			}
			f.services = append([]domain.Service(nil), a.Services...)
			f.record(promptService, false)
		case domain.ActionShowLocations:
			if len(a.Locations) == 0 {
				continue
			}
			f.locations = append([]domain.Location(nil), a.Locations...)
			f.record(promptLocation, false)
		case domain.ActionShowSlots:
			if len(a.Slots) == 0 {
				continue
			}
			f.slots = append([]domain.Slot(nil), a.Slots...)
			f.calendarOpen = true
		default:
			f.logger.Debug("booking: ignoring action", "type", a.Type)
		}
	}
}

// SelectService chooses a service from the offered list and loads the
// locations it can be booked at.
func (f *Flow) SelectService(ctx context.Context, id int) error {
	f.mu.Lock()
	if f.booking.SelectedService != nil {
		f.mu.Unlock()
		return fmt.Errorf("booking: select service %d: %w", id, ErrOptionUnavailable)
	}
	svc, ok := findService(f.services, id)
	if !ok {
		f.mu.Unlock()
		return fmt.Errorf("booking: select service %d: %w", id, ErrOptionUnavailable)
	}
	next, err := Transition(f.state, EventServiceSelected)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.state = next
	f.booking.SelectedService = &svc
	f.booking.Error = ""
	f.record("You selected: "+svc.Name, true)
	f.mu.Unlock()

	return f.FetchLocations(ctx)
}

// FetchLocations loads the location list for the chosen service. It can be
// called again after a failure.
func (f *Flow) FetchLocations(ctx context.Context) error {
	f.mu.Lock()
	if f.state != StateServiceChosen {
		f.mu.Unlock()
		return fmt.Errorf("booking: fetch locations: %w: no service chosen", ErrInvalidTransition)
	}
	if f.booking.IsLoading {
		f.mu.Unlock()
		return ErrBusy
	}
	f.booking.IsLoading = true
	f.booking.Error = ""
	gen := f.gen
	f.mu.Unlock()

	locs, err := f.api.Locations(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return nil
	}
	f.booking.IsLoading = false
	if err != nil {
		f.booking.Error = ErrTextLocations
		return fmt.Errorf("booking: fetch locations: %w", err)
	}
	f.locations = locs
	f.record(promptLocation, false)
	return nil
}

// SelectLocation chooses a location and opens the calendar.
func (f *Flow) SelectLocation(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.booking.SelectedService == nil || f.booking.SelectedLocation != nil || f.booking.IsLoading {
		return fmt.Errorf("booking: select location %d: %w", id, ErrOptionUnavailable)
	}
	loc, ok := findLocation(f.locations, id)
	if !ok {
		return fmt.Errorf("booking: select location %d: %w", id, ErrOptionUnavailable)
	}
	next, err := Transition(f.state, EventLocationSelected)
	if err != nil {
		return err
	}
	f.state = next
	f.booking.SelectedLocation = &loc
	f.booking.Error = ""
	f.calendarOpen = true
	f.record("You selected: "+loc.Name, true)
	return nil
}

// ChooseDate asks the backend which slots are free on date for the chosen
// service and location. Prior selections survive a failed request.
func (f *Flow) ChooseDate(ctx context.Context, date time.Time) error {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	now := f.now().In(date.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, date.Location())
	if day.Before(today) {
		return fmt.Errorf("booking: choose date %s: %w", day.Format(dateLayout), ErrPastDate)
	}

	f.mu.Lock()
	if f.booking.IsLoading {
		f.mu.Unlock()
		return ErrBusy
	}
	next, err := Transition(f.state, EventDateChosen)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.state = next
	f.date = day
	f.slots = nil
	f.slotsLoaded = false
	f.booking.IsLoading = true
	f.booking.Error = ""
	serviceID, locationID := f.booking.SelectedService.ID, f.booking.SelectedLocation.ID
	gen := f.gen
	f.mu.Unlock()

	slots, err := f.api.AvailableSlots(ctx, day, serviceID, locationID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen || !f.date.Equal(day) {
		return nil
	}
	f.booking.IsLoading = false
	if err != nil {
		f.booking.Error = ErrTextSlots
		return fmt.Errorf("booking: available slots: %w", err)
	}
	f.slots = slots
	f.slotsLoaded = true
	if len(slots) > 0 {
		f.record(promptSlot, false)
	}
	return nil
}

// SelectSlot picks the slot at index in SlotOptions and opens the contact form.
func (f *Flow) SelectSlot(index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.slotsVisible() || index < 0 || index >= len(f.slots) {
		return fmt.Errorf("booking: select slot %d: %w", index, ErrOptionUnavailable)
	}
	next, err := Transition(f.state, EventSlotSelected)
	if err != nil {
		return err
	}
	slot := f.slots[index]
	f.state = next
	f.booking.SelectedSlot = &slot
	f.booking.ShowForm = true
	f.booking.Error = ""
	f.record("You selected: "+slot.Time, true)
	return nil
}

// Submit books the chosen slot for the given contact. On success the whole
// dialogue starts over; on failure the form stays open.
func (f *Flow) Submit(ctx context.Context, info domain.ClientInfo) error {
	info, err := normalizeContact(info)
	if err != nil {
		return err
	}

	f.mu.Lock()
	if !f.booking.ShowForm {
		f.mu.Unlock()
		return fmt.Errorf("booking: submit: %w: no slot chosen", ErrInvalidTransition)
	}
	if f.booking.IsLoading {
		f.mu.Unlock()
		return ErrBusy
	}
	if _, err := Transition(f.state, EventSubmitted); err != nil {
		f.mu.Unlock()
		return err
	}
	req := spaapi.AppointmentRequest{
		ServiceID:  f.booking.SelectedService.ID,
		LocationID: f.booking.SelectedLocation.ID,
		Datetime:   f.date.Format(dateLayout) + "T" + f.booking.SelectedSlot.Time,
		ClientInfo: info,
	}
	f.booking.IsLoading = true
	f.booking.Error = ""
	gen := f.gen
	f.mu.Unlock()

	err = f.api.CreateAppointment(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return nil
	}
	f.booking.IsLoading = false
	if err != nil {
		f.booking.Error = ErrTextAppointment
		return fmt.Errorf("booking: submit: %w", err)
	}
	f.record(bookedMessage, false)
	f.reset()
	f.services = nil
	f.locations = nil
	return nil
}

// Cancel abandons the dialogue without contacting the backend. The offered
// services and locations stay so the user can start over.
func (f *Flow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset()
}

func (f *Flow) reset() {
	f.state, _ = Transition(f.state, EventCancelled)
	f.booking = domain.BookingState{}
	f.date = time.Time{}
	f.slots = nil
	f.slotsLoaded = false
	f.calendarOpen = false
	f.gen++
}

// ServiceOptions returns the services to offer, or nil once one is chosen.
func (f *Flow) ServiceOptions() []domain.Service {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.services) == 0 || f.booking.SelectedService != nil {
		return nil
	}
	return append([]domain.Service(nil), f.services...)
}

// LocationOptions returns the locations to offer between choosing a service
// and choosing a location.
func (f *Flow) LocationOptions() []domain.Location {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.locations) == 0 || f.booking.SelectedService == nil || f.booking.SelectedLocation != nil {
		return nil
	}
	return append([]domain.Location(nil), f.locations...)
}

// SlotOptions returns the free slots for the chosen date while the form is closed.
func (f *Flow) SlotOptions() []domain.Slot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.slotsVisible() {
		return nil
	}
	return append([]domain.Slot(nil), f.slots...)
}

func (f *Flow) slotsVisible() bool {
	return f.calendarOpen && !f.date.IsZero() && len(f.slots) > 0 && !f.booking.ShowForm
}

// NoSlots reports that the availability lookup for the chosen date came back empty.
func (f *Flow) NoSlots() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calendarOpen && !f.date.IsZero() && f.slotsLoaded && len(f.slots) == 0 &&
		!f.booking.IsLoading && !f.booking.ShowForm
}

func (f *Flow) ShowForm() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.booking.ShowForm
}

func (f *Flow) CalendarOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calendarOpen
}

// SelectedDate returns the chosen date, if any.
func (f *Flow) SelectedDate() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.date, !f.date.IsZero()
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Snapshot returns a copy of the booking state that does not alias the Flow.
func (f *Flow) Snapshot() domain.BookingState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.booking
	if s := f.booking.SelectedService; s != nil {
		c := *s
		out.SelectedService = &c
	}
	if l := f.booking.SelectedLocation; l != nil {
		c := *l
		out.SelectedLocation = &c
	}
	if s := f.booking.SelectedSlot; s != nil {
		c := *s
		out.SelectedSlot = &c
	}
	return out
}

// record appends a sent message to the transcript. Callers hold f.mu.
func (f *Flow) record(content string, isUser bool) {
	m := domain.Message{
		ID:        f.newID(),
		Content:   content,
		IsUser:    isUser,
		Timestamp: f.now(),
		Status:    domain.StatusSent,
	}
	if err := f.rec.Append(m); err != nil {
		f.logger.Warn("booking: record message failed", "err", err)
	}
}

func findService(list []domain.Service, id int) (domain.Service, bool) {
	for _, s := range list {
		if s.ID == id {
			return s, true
		}
	}
	return domain.Service{}, false
}

func findLocation(list []domain.Location, id int) (domain.Location, bool) {
	for _, l := range list {
		if l.ID == id {
			return l, true
		}
	}
	return domain.Location{}, false
}
