package domain

// Action types pushed by the assistant alongside a chat reply.
const (
	ActionShowServices  = "show_services"
	ActionShowLocations = "show_locations"
	ActionShowSlots     = "show_slots"
)

type Service struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Duration    int     `json:"duration"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
}

type Location struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Phone     string `json:"phone"`
	IsPrimary bool   `json:"is_primary"`
}

// Slot is a bookable time window. Time is local wall-clock "HH:MM".
type Slot struct {
	Time       string `json:"time"`
	Duration   int    `json:"duration"`
	Service    string `json:"service"`
	ServiceID  int    `json:"service_id,omitempty"`
	LocationID int    `json:"location_id,omitempty"`
}

// Action is a structured directive asking the client to surface a booking step.
type Action struct {
	Type       string     `json:"type"`
	Services   []Service  `json:"services,omitempty"`
	Locations  []Location `json:"locations,omitempty"`
	Slots      []Slot     `json:"slots,omitempty"`
	ServiceID  int        `json:"service_id,omitempty"`
	LocationID int        `json:"location_id,omitempty"`
}

// ClientInfo holds the contact details collected by the booking form.
type ClientInfo struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required,phone"`
	Notes string `json:"notes,omitempty"`
}

// BookingState is the observable state of the booking dialogue.
// ShowForm is true exactly when SelectedSlot is set.
type BookingState struct {
	SelectedService  *Service
	SelectedLocation *Location
	SelectedSlot     *Slot
	ShowForm         bool
	IsLoading        bool
	Error            string
}
