package rental

import (
	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
)

// transitions is the authoritative map of permitted status changes. The
// in_escrow entry and exits are driven only by the escrow service; user
// actions never move through them directly.
var transitions = map[string][]string{
	models.RequestPending:  {models.RequestAccepted, models.RequestRejected, models.RequestCancelled},
	models.RequestAccepted: {models.RequestInEscrow, models.RequestCancelled},
	models.RequestInEscrow: {models.RequestActive, models.RequestCancelled},
	models.RequestActive:   {models.RequestCompleted},
}

// CanTransition reports whether a status change is permitted.
func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CheckTransition returns the invalid_state_transition error the API
// surfaces when a change is not permitted.
func CheckTransition(from, to string) error {
	if !CanTransition(from, to) {
		return apierr.New(apierr.KindInvalidTransition,
			"cannot move request from "+from+" to "+to)
	}
	return nil
}

// Terminal reports whether a request status has no outgoing transitions.
func Terminal(status string) bool {
	return len(transitions[status]) == 0
}
