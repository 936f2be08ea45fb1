package booking

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "choose service", from: StateIdle, event: EventServiceSelected, want: StateServiceChosen},
		{name: "choose location", from: StateServiceChosen, event: EventLocationSelected, want: StateLocationChosen},
		{name: "choose date", from: StateLocationChosen, event: EventDateChosen, want: StateDateChosen},
		{name: "choose another date", from: StateDateChosen, event: EventDateChosen, want: StateDateChosen},
		{name: "choose slot", from: StateDateChosen, event: EventSlotSelected, want: StateSlotChosen},
		{name: "submit", from: StateSlotChosen, event: EventSubmitted, want: StateIdle},
		{name: "location before service", from: StateIdle, event: EventLocationSelected, wantErr: true},
		{name: "second service", from: StateServiceChosen, event: EventServiceSelected, wantErr: true},
		{name: "date before location", from: StateServiceChosen, event: EventDateChosen, wantErr: true},
		{name: "slot before date", from: StateLocationChosen, event: EventSlotSelected, wantErr: true},
		{name: "submit without slot", from: StateDateChosen, event: EventSubmitted, wantErr: true},
		{name: "date while form open", from: StateSlotChosen, event: EventDateChosen, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.from, tt.event)
			if tt.wantErr {
				require.True(t, errors.Is(err, ErrInvalidTransition))
				require.Equal(t, tt.from, got)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestTransition_CancelFromEveryState(t *testing.T) {
	for _, s := range []State{StateIdle, StateServiceChosen, StateLocationChosen, StateDateChosen, StateSlotChosen} {
		got, err := Transition(s, EventCancelled)
		require.NoError(t, err, s.String())
		require.Equal(t, StateIdle, got)
	}
}

func TestStateAndEventNames(t *testing.T) {
	require.Equal(t, "date_chosen", StateDateChosen.String())
	require.Equal(t, "slot_selected", EventSlotSelected.String())
	require.Equal(t, "state(42)", State(42).String())
	require.Equal(t, "event(0)", Event(0).String())
}
