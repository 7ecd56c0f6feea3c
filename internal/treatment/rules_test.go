package treatment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusPlanned, StatusActive, true},
		{StatusPlanned, StatusCancelled, true},
		{StatusPlanned, StatusCompleted, false},
		{StatusPlanned, StatusOnHold, false},
		{StatusActive, StatusOnHold, true},
		{StatusActive, StatusCompleted, true},
		{StatusActive, StatusCancelled, true},
		{StatusActive, StatusPlanned, false},
		{StatusOnHold, StatusActive, true},
		{StatusOnHold, StatusCancelled, true},
		{StatusOnHold, StatusCompleted, false},
		{StatusCompleted, StatusActive, false},
		{StatusCancelled, StatusPlanned, false},
		{StatusActive, StatusActive, false},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestProgress(t *testing.T) {
	assert.Zero(t, Progress(nil))
	assert.Equal(t, 33, Progress([]Phase{{Status: PhaseCompleted}, {Status: PhasePending}, {Status: PhaseInProgress}}))
	assert.Equal(t, 67, Progress([]Phase{{Status: PhaseCompleted}, {Status: PhaseSkipped}, {Status: PhasePending}}))
	assert.Equal(t, 100, Progress([]Phase{{Status: PhaseCompleted}, {Status: PhaseSkipped}}))
	assert.Equal(t, 50, Progress([]Phase{{Status: PhaseCompleted}, {Status: PhaseInProgress}}))
}
