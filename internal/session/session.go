// Package session keeps the widget's session identifier across restarts.
package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Key is the fixed name the session id is stored under.
const Key = "spa_chat_session_id"

// Store is a durable slot for the session id. Load returns "" when nothing
// has been stored yet.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, id string) error
}

var newID = uuid.NewString

// Resolve reads the stored session id, generates one when there is none, and
// writes the result back. Concurrent processes may race here; the last write
// wins.
func Resolve(ctx context.Context, s Store) (string, error) {
	id, err := s.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("session: load: %w", err)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = newID()
	}
	if err := s.Save(ctx, id); err != nil {
		return "", fmt.Errorf("session: save: %w", err)
	}
	return id, nil
}
