package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	RoleFarmer    = "farmer"
	RoleLandowner = "landowner"
	RoleBoth      = "both"
)

const (
	TierBasic      = "basic"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

const (
	SubscriptionInactive  = "inactive"
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionPastDue   = "past_due"
)

type User struct {
	gorm.Model
	FullName     string `gorm:"column:full_name;size:255;not null" json:"full_name"`
	Email        string `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string `gorm:"column:password_hash;size:255;not null" json:"-"`
	Role         string `gorm:"column:role;size:50;not null" json:"role"`
	Phone        string `gorm:"column:phone;size:20;not null" json:"phone"`
	State        string `gorm:"column:state;size:100;not null;index:idx_users_state_district" json:"state"`
	District     string `gorm:"column:district;size:100;index:idx_users_state_district" json:"district"`
	Village      string `gorm:"column:village;size:100" json:"village,omitempty"`

	// Government scheme flags feeding the pricing calculator.
	IsPmKisanBeneficiary bool           `gorm:"column:is_pm_kisan_beneficiary;default:false" json:"is_pm_kisan_beneficiary"`
	IsFpoMember          bool           `gorm:"column:is_fpo_member;default:false" json:"is_fpo_member"`
	KccNumber            string         `gorm:"column:kcc_number;size:50" json:"kcc_number,omitempty"`
	PreferredCrops       pq.StringArray `gorm:"column:preferred_crops;type:text[]" json:"preferred_crops,omitempty"`

	// Subscription mirror. These fields are written only by the payments
	// service, either on local creation or when a provider webhook lands.
	SubscriptionTier      string     `gorm:"column:subscription_tier;size:50;default:basic;index:idx_users_subscription" json:"subscription_tier"`
	SubscriptionStatus    string     `gorm:"column:subscription_status;size:50;default:inactive;index:idx_users_subscription" json:"subscription_status"`
	SubscriptionStartDate *time.Time `gorm:"column:subscription_start_date" json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   *time.Time `gorm:"column:subscription_end_date" json:"subscription_end_date,omitempty"`
	FreeTrialUsed         bool       `gorm:"column:free_trial_used;default:false" json:"free_trial_used"`

	// Payment provider references.
	PaymentCustomerID     string `gorm:"column:payment_customer_id;size:255" json:"-"`
	PaymentSubscriptionID string `gorm:"column:payment_subscription_id;size:255" json:"-"`
}

// IsParticipantRole reports whether the role is one the marketplace accepts.
func IsParticipantRole(role string) bool {
	switch role {
	case RoleFarmer, RoleLandowner, RoleBoth:
		return true
	}
	return false
}

// TierRank orders subscription tiers for gating checks.
func TierRank(tier string) int {
	switch tier {
	case TierEnterprise:
		return 2
	case TierPro:
		return 1
	default:
		return 0
	}
}
