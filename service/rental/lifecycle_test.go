package rental

import (
	"math/rand"
	"testing"

	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"pending to accepted", models.RequestPending, models.RequestAccepted, true},
		{"pending to rejected", models.RequestPending, models.RequestRejected, true},
		{"pending to cancelled", models.RequestPending, models.RequestCancelled, true},
		{"pending to active skips escrow", models.RequestPending, models.RequestActive, false},
		{"accepted to in_escrow", models.RequestAccepted, models.RequestInEscrow, true},
		{"accepted to rejected", models.RequestAccepted, models.RequestRejected, false},
		{"in_escrow to active", models.RequestInEscrow, models.RequestActive, true},
		{"in_escrow to cancelled", models.RequestInEscrow, models.RequestCancelled, true},
		{"active to completed", models.RequestActive, models.RequestCompleted, true},
		{"active to cancelled", models.RequestActive, models.RequestCancelled, false},
		{"completed is terminal", models.RequestCompleted, models.RequestPending, false},
		{"rejected is terminal", models.RequestRejected, models.RequestAccepted, false},
		{"cancelled is terminal", models.RequestCancelled, models.RequestPending, false},
		{"unknown status", "bogus", models.RequestAccepted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCheckTransition(t *testing.T) {
	require.NoError(t, CheckTransition(models.RequestPending, models.RequestAccepted))

	err := CheckTransition(models.RequestAccepted, models.RequestCompleted)
	require.Error(t, err)
	assert.Equal(t, apierr.KindInvalidTransition, apierr.KindOf(err))
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal(models.RequestRejected))
	assert.True(t, Terminal(models.RequestCancelled))
	assert.True(t, Terminal(models.RequestCompleted))
	assert.False(t, Terminal(models.RequestPending))
	assert.False(t, Terminal(models.RequestAccepted))
	assert.False(t, Terminal(models.RequestInEscrow))
	assert.False(t, Terminal(models.RequestActive))
}

// Random walks through the lifecycle must always end in a terminal state
// and never revisit a previous status.
func TestLifecycleWalksTerminate(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		status := models.RequestPending
		seen := map[string]bool{status: true}

		for !Terminal(status) {
			next := transitions[status]
			require.NotEmpty(t, next, "non-terminal status %q has no transitions", status)

			candidate := next[rng.Intn(len(next))]
			require.True(t, CanTransition(status, candidate))
			require.False(t, seen[candidate], "lifecycle revisited %q", candidate)

			seen[candidate] = true
			status = candidate
		}
	}
}
