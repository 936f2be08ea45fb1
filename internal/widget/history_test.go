package widget

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"spa-chat-widget/internal/domain"
)

func TestBuildHistory(t *testing.T) {
	msgs := []domain.Message{
		{ID: "1", Content: "welcome", Status: domain.StatusSent},
		{ID: "2", Content: "lost", IsUser: true, Status: domain.StatusFailed},
		{ID: "3", Content: " hi ", IsUser: true, Status: domain.StatusSent},
		{ID: "4", Content: "  ", Status: domain.StatusSent},
		{ID: "5", Content: "now", IsUser: true},
	}
	got := buildHistory(msgs, "5", 0)
	require.Equal(t, []domain.HistoryEntry{
		{Content: "welcome"},
		{Content: "hi", IsUser: true},
	}, got)
}

func TestBuildHistory_KeepsNewest(t *testing.T) {
	var msgs []domain.Message
	for i := 0; i < 30; i++ {
		msgs = append(msgs, domain.Message{ID: strconv.Itoa(i), Content: "m" + strconv.Itoa(i), Status: domain.StatusSent})
	}
	got := buildHistory(msgs, "", defaultHistoryLimit)
	require.Len(t, got, defaultHistoryLimit)
	require.Equal(t, "m10", got[0].Content)
	require.Equal(t, "m29", got[len(got)-1].Content)
}

func TestBuildHistory_EmptyIsNotNil(t *testing.T) {
	got := buildHistory(nil, "", 5)
	require.NotNil(t, got)
	require.Empty(t, got)
}
