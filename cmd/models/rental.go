package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Rental request lifecycle states. The request row is the authoritative
// record of where a tenancy proposal stands; rows are never deleted.
const (
	RequestPending   = "pending"
	RequestAccepted  = "accepted"
	RequestRejected  = "rejected"
	RequestInEscrow  = "in_escrow"
	RequestActive    = "active"
	RequestCompleted = "completed"
	RequestCancelled = "cancelled"
)

type RentalRequest struct {
	gorm.Model
	ListingID   uint `gorm:"column:listing_id;not null;index" json:"listing_id"`
	FarmerID    uint `gorm:"column:farmer_id;not null;index" json:"farmer_id"`
	LandOwnerID uint `gorm:"column:land_owner_id;not null;index" json:"land_owner_id"`

	Status string `gorm:"column:status;size:50;not null;default:pending;index" json:"status"`

	Message                string          `gorm:"column:message;type:text" json:"message,omitempty"`
	ProposedStartDate      *time.Time      `gorm:"column:proposed_start_date" json:"proposed_start_date,omitempty"`
	ProposedDurationMonths int             `gorm:"column:proposed_duration_months" json:"proposed_duration_months"`
	ProposedRentPerAcre    decimal.Decimal `gorm:"column:proposed_rent_per_acre;type:decimal(10,2)" json:"proposed_rent_per_acre"`

	OwnerResponse   string `gorm:"column:owner_response;type:text" json:"owner_response,omitempty"`
	RejectionReason string `gorm:"column:rejection_reason;type:text" json:"rejection_reason,omitempty"`

	// Contract terms. FinalRentPerAcre is frozen when the escrow hold is
	// created; ContractStartDate is assigned at the same moment and marks
	// the point after which terms are immutable.
	FinalRentPerAcre  decimal.Decimal `gorm:"column:final_rent_per_acre;type:decimal(10,2)" json:"final_rent_per_acre"`
	ContractStartDate *time.Time      `gorm:"column:contract_start_date" json:"contract_start_date,omitempty"`
	ContractEndDate   *time.Time      `gorm:"column:contract_end_date" json:"contract_end_date,omitempty"`

	RespondedAt *time.Time `gorm:"column:responded_at" json:"responded_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	Listing   *LandListing `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
	Farmer    *User        `gorm:"foreignKey:FarmerID" json:"farmer,omitempty"`
	LandOwner *User        `gorm:"foreignKey:LandOwnerID" json:"land_owner,omitempty"`
}

// TermsLocked reports whether the negotiated terms may still change.
func (r *RentalRequest) TermsLocked() bool {
	return r.ContractStartDate != nil
}

// IsParticipant reports whether userID is a party to the request.
func (r *RentalRequest) IsParticipant(userID uint) bool {
	return userID == r.FarmerID || userID == r.LandOwnerID
}
