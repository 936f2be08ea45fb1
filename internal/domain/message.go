package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the delivery outcome of a Message. The zero value means the
// outcome is not known yet.
type Status int

const (
	StatusPending Status = iota
	StatusSent
	StatusFailed
	StatusRetry
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return ""
	case StatusSent:
		return "sent"
	case StatusFailed:
		return "failed"
	case StatusRetry:
		return "retry"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("domain: decode status: %w", err)
	}
	switch raw {
	case "":
		*s = StatusPending
	case "sent":
		*s = StatusSent
	case "failed":
		*s = StatusFailed
	case "retry":
		*s = StatusRetry
	default:
		return fmt.Errorf("domain: unknown status %q", raw)
	}
	return nil
}

// Message is a single transcript entry authored by the user or the assistant.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status,omitempty"`
}

// QueuedMessage is a user message composed while offline and waiting for delivery.
type QueuedMessage struct {
	ID         string
	Content    string
	Timestamp  time.Time
	RetryCount int
}

// Sent converts a delivered queued message into its transcript form.
func (q QueuedMessage) Sent() Message {
	return Message{ID: q.ID, Content: q.Content, IsUser: true, Timestamp: q.Timestamp, Status: StatusSent}
}

// Failed converts a queued message that ran out of retries into its transcript form.
func (q QueuedMessage) Failed() Message {
	return Message{ID: q.ID, Content: q.Content, IsUser: true, Timestamp: q.Timestamp, Status: StatusFailed}
}

// HistoryEntry is one prior turn sent along with a chat request.
type HistoryEntry struct {
	Content string `json:"content"`
	IsUser  bool   `json:"isUser"`
}
