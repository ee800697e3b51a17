package models

import (
	"time"

	"gorm.io/gorm"
)

// Escrow states. Hold is the only non-terminal state; released and
// refunded are both terminal.
const (
	EscrowHold     = "hold"
	EscrowReleased = "released"
	EscrowRefunded = "refunded"
)

// Escrow pairs a rental request with a provider-side fund hold. At most one
// escrow in hold status may exist per request; the escrow service enforces
// this before creating a row.
type Escrow struct {
	gorm.Model
	RequestID uint `gorm:"column:request_id;not null;index" json:"request_id"`
	PaymentID uint `gorm:"column:payment_id" json:"payment_id,omitempty"`

	// Amount held, in paise.
	Amount   int64  `gorm:"column:amount;not null" json:"amount"`
	Currency string `gorm:"column:currency;size:10;default:INR" json:"currency"`

	Status string `gorm:"column:status;size:50;not null;index" json:"status"`

	Provider string `gorm:"column:provider;size:50;default:stripe_sim" json:"provider"`
	// Provider payment-intent reference used for manual capture or cancel.
	HoldRef string `gorm:"column:hold_ref;size:255;index" json:"hold_ref"`

	ReleaseConditions string     `gorm:"column:release_conditions;type:text" json:"release_conditions,omitempty"`
	AutoReleaseDate   *time.Time `gorm:"column:auto_release_date" json:"auto_release_date,omitempty"`

	Request *RentalRequest `gorm:"foreignKey:RequestID" json:"request,omitempty"`
}

// Terminal reports whether the escrow has reached a final state.
func (e *Escrow) Terminal() bool {
	return e.Status == EscrowReleased || e.Status == EscrowRefunded
}
