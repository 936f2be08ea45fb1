package handler

import (
	"fmt"
	"strings"

	"spa-chat-widget/internal/domain"
	"spa-chat-widget/internal/widget"
)

// Render draws one frame of the widget.
func Render(v widget.View) string {
	var b strings.Builder

	if len(v.Rows) > 0 {
		fmt.Fprintf(&b, "-- messages %d-%d of %d --\n", v.Rows[0].Index+1, v.Rows[len(v.Rows)-1].Index+1, v.Total)
	}
	for _, row := range v.Rows {
		who := "bot"
		if row.IsUser {
			who = "you"
		}
		fmt.Fprintf(&b, "[%s] %s: %s%s\n", row.Timestamp.Format("15:04"), who, row.Content, statusNote(row.Message))
	}

	if !v.Online {
		fmt.Fprintf(&b, "** offline: sending is paused (%d queued) **\n", v.Queued)
	}

	for i, s := range v.Services {
		if i == 0 {
			b.WriteString("services (/service <n>):\n")
		}
		fmt.Fprintf(&b, "  %d) %s, %d min, $%.2f\n", i+1, s.Name, s.Duration, s.Price)
	}
	for i, l := range v.Locations {
		if i == 0 {
			b.WriteString("locations (/location <n>):\n")
		}
		fmt.Fprintf(&b, "  %d) %s%s\n", i+1, l.Name, place(l))
	}

	bs := v.Booking
	if v.CalendarOpen && !bs.ShowForm {
		if svc := bs.SelectedService; svc != nil {
			fmt.Fprintf(&b, "booking %s (%d min, $%.2f)\n", svc.Name, svc.Duration, svc.Price)
		}
		if v.SelectedDate.IsZero() {
			b.WriteString("pick a date with /date YYYY-MM-DD\n")
		}
	}
	if bs.IsLoading {
		b.WriteString("loading...\n")
	}
	for i, s := range v.Slots {
		if i == 0 {
			fmt.Fprintf(&b, "available slots on %s (/slot <n>):\n", v.SelectedDate.Format("2006-01-02"))
		}
		fmt.Fprintf(&b, "  %d) %s - %s (%d min)\n", i+1, s.Time, s.Service, s.Duration)
	}
	if v.NoSlots {
		b.WriteString("No available slots for this date\n")
	}
	if bs.ShowForm && bs.SelectedSlot != nil {
		fmt.Fprintf(&b, "complete your booking for %s at %s: /book name|email|phone[|notes] or /cancel\n",
			v.SelectedDate.Format("2006-01-02"), bs.SelectedSlot.Time)
	}
	if bs.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", bs.Error)
	}
	return strings.TrimRight(b.String(), "\n")
}

func statusNote(m domain.Message) string {
	switch m.Status {
	case domain.StatusFailed:
		return fmt.Sprintf("  [Failed to send (/retry %s)]", m.ID)
	case domain.StatusRetry:
		return "  [retrying]"
	case domain.StatusPending:
		if m.IsUser {
			return "  [sending]"
		}
	}
	return ""
}

func place(l domain.Location) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.Address, l.City, l.State} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return ", " + strings.Join(parts, ", ")
}
