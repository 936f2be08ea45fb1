package widget

import (
	"time"

	"spa-chat-widget/internal/domain"
	"spa-chat-widget/internal/transcript"
)

// View is everything a front-end needs to draw the widget once.
type View struct {
	Rows        []transcript.VisibleMessage
	Total       int
	TotalHeight float64

	Online  bool
	Busy    bool
	CanSend bool
	Queued  int

	Booking      domain.BookingState
	Services     []domain.Service
	Locations    []domain.Location
	Slots        []domain.Slot
	NoSlots      bool
	CalendarOpen bool
	SelectedDate time.Time
}

// View renders the current state. The transcript window follows the newest
// message whenever the transcript changed since the previous call.
func (w *Widget) View() View {
	msgs := w.store.Messages()
	online := w.Online()

	w.mu.Lock()
	rows := w.renderer.Render(msgs)
	win := w.renderer.Window()
	busy := w.busy
	closed := w.closed
	w.mu.Unlock()

	date, _ := w.flow.SelectedDate()
	return View{
		Rows:         rows,
		Total:        len(msgs),
		TotalHeight:  win.TotalSize(len(msgs)),
		Online:       online,
		Busy:         busy,
		CanSend:      online && !busy && !closed,
		Queued:       w.queue.Len(),
		Booking:      w.flow.Snapshot(),
		Services:     w.flow.ServiceOptions(),
		Locations:    w.flow.LocationOptions(),
		Slots:        w.flow.SlotOptions(),
		NoSlots:      w.flow.NoSlots(),
		CalendarOpen: w.flow.CalendarOpen(),
		SelectedDate: date,
	}
}

// Scroll moves the transcript window to offset pixels from the top.
func (w *Widget) Scroll(offset float64) {
	n := w.store.Len()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.renderer.Scroll(offset, n)
}
