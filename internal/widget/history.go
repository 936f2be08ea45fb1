package widget

import (
	"strings"

	"spa-chat-widget/internal/domain"
)

const defaultHistoryLimit = 20

// buildHistory returns the conversation context sent with a turn: the newest
// limit entries, oldest first, leaving out the message being sent and user
// messages that never reached the backend.
func buildHistory(msgs []domain.Message, exclude string, limit int) []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		if m.ID == exclude {
			continue
		}
		if m.IsUser && m.Status != domain.StatusSent {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		out = append(out, domain.HistoryEntry{Content: content, IsUser: m.IsUser})
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
