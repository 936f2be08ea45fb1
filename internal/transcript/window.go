package transcript

import (
	"math"
	"sync"

	"spa-chat-widget/internal/domain"
)

// VisibleRange returns the half-open index range [start, end) of items whose
// estimated position intersects the viewport, widened by overscan items on
// both sides. Row heights are estimated, not measured, so long messages can
// drift from their computed offsets.
func VisibleRange(scrollOffset, viewportHeight float64, itemCount int, estimatedItemHeight float64, overscan int) (start, end int) {
	if itemCount <= 0 || estimatedItemHeight <= 0 {
		return 0, 0
	}
	if scrollOffset < 0 || math.IsNaN(scrollOffset) {
		scrollOffset = 0
	}
	if viewportHeight < 0 || math.IsNaN(viewportHeight) {
		viewportHeight = 0
	}
	if overscan < 0 {
		overscan = 0
	}

	first := int(math.Floor(scrollOffset / estimatedItemHeight))
	last := int(math.Ceil((scrollOffset + viewportHeight) / estimatedItemHeight))

	start = max(first-overscan, 0)
	end = min(last+overscan, itemCount)
	if start > end {
		start = end
	}
	return start, end
}

// DefaultWindow is the chat panel geometry used when none is configured.
var DefaultWindow = Window{EstimatedItemHeight: 80, ViewportHeight: 480, Overscan: 5}

// Window is the geometry of a scroll container over fixed-estimate rows.
type Window struct {
	EstimatedItemHeight float64
	ViewportHeight      float64
	Overscan            int
	ScrollOffset        float64
}

// Row is one item to draw, absolutely positioned at Offset.
type Row struct {
	Index  int
	Offset float64
}

func (w Window) TotalSize(itemCount int) float64 {
	if itemCount <= 0 {
		return 0
	}
	return float64(itemCount) * w.EstimatedItemHeight
}

func (w Window) Rows(itemCount int) []Row {
	start, end := VisibleRange(w.ScrollOffset, w.ViewportHeight, itemCount, w.EstimatedItemHeight, w.Overscan)
	rows := make([]Row, 0, end-start)
	for i := start; i < end; i++ {
		rows = append(rows, Row{Index: i, Offset: float64(i) * w.EstimatedItemHeight})
	}
	return rows
}

// ScrollTo moves the viewport, clamped to the scrollable extent. A NaN
// offset leaves the viewport where it is.
func (w *Window) ScrollTo(offset float64, itemCount int) {
	if math.IsNaN(offset) {
		return
	}
	maxOffset := math.Max(w.TotalSize(itemCount)-w.ViewportHeight, 0)
	w.ScrollOffset = math.Min(math.Max(offset, 0), maxOffset)
}

func (w *Window) ScrollToEnd(itemCount int) {
	w.ScrollTo(math.Inf(1), itemCount)
}

// VisibleMessage is a message paired with its computed vertical offset.
type VisibleMessage struct {
	domain.Message
	Index  int
	Offset float64
}

// Renderer draws a Window over a message sequence and follows the newest
// message whenever the sequence changes.
type Renderer struct {
	mu      sync.Mutex
	window  Window
	lastLen int
	lastID  string
}

func NewRenderer(w Window) *Renderer {
	return &Renderer{window: w}
}

func (r *Renderer) Render(msgs []domain.Message) []VisibleMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	lastID := ""
	if len(msgs) > 0 {
		lastID = msgs[len(msgs)-1].ID
	}
	if len(msgs) != r.lastLen || lastID != r.lastID {
		r.window.ScrollToEnd(len(msgs))
		r.lastLen = len(msgs)
		r.lastID = lastID
	}

	rows := r.window.Rows(len(msgs))
	out := make([]VisibleMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, VisibleMessage{Message: msgs[row.Index], Index: row.Index, Offset: row.Offset})
	}
	return out
}

// Scroll moves the viewport without changing the follow state; the next
// change to the sequence snaps back to the newest message.
func (r *Renderer) Scroll(offset float64, itemCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.window.ScrollTo(offset, itemCount)
}

func (r *Renderer) Window() Window {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.window
}
