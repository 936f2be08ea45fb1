// Package booking drives the appointment dialogue that runs alongside the
// free-form chat: service, location, date, slot, contact form.
package booking

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("booking: invalid transition")

// State is a step of the booking dialogue.
type State int

const (
	StateIdle State = iota
	StateServiceChosen
	StateLocationChosen
	StateDateChosen
	StateSlotChosen
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateServiceChosen:
		return "service_chosen"
	case StateLocationChosen:
		return "location_chosen"
	case StateDateChosen:
		return "date_chosen"
	case StateSlotChosen:
		return "slot_chosen"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is a user selection or form outcome that moves the dialogue.
type Event int

const (
	EventServiceSelected Event = iota + 1
	EventLocationSelected
	EventDateChosen
	EventSlotSelected
	EventSubmitted
	EventCancelled
)

func (e Event) String() string {
	switch e {
	case EventServiceSelected:
		return "service_selected"
	case EventLocationSelected:
		return "location_selected"
	case EventDateChosen:
		return "date_chosen"
	case EventSlotSelected:
		return "slot_selected"
	case EventSubmitted:
		return "submitted"
	case EventCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Transition returns the state that follows s on e. Cancelling is allowed
// from every state; picking another date is allowed while a date is chosen.
func Transition(s State, e Event) (State, error) {
	if e == EventCancelled {
		return StateIdle, nil
	}
	switch {
	case s == StateIdle && e == EventServiceSelected:
		return StateServiceChosen, nil
	case s == StateServiceChosen && e == EventLocationSelected:
		return StateLocationChosen, nil
	case (s == StateLocationChosen || s == StateDateChosen) && e == EventDateChosen:
		return StateDateChosen, nil
	case s == StateDateChosen && e == EventSlotSelected:
		return StateSlotChosen, nil
	case s == StateSlotChosen && e == EventSubmitted:
		return StateIdle, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e, s)
}
