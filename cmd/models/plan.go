package models

import (
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// PlanScopeNational marks plan rows that apply when a state has no
// state-specific pricing of its own.
const PlanScopeNational = "national"

// SubscriptionPlan is immutable reference data seeded at provisioning time.
// Prices are stored in paise. AvgStateIncome is the average annual income
// figure (paise) used for the affordability ratio; zero means unknown.
type SubscriptionPlan struct {
	gorm.Model
	State string `gorm:"column:state;size:100;not null;uniqueIndex:idx_plans_state_tier" json:"state"`
	Tier  string `gorm:"column:tier;size:50;not null;uniqueIndex:idx_plans_state_tier" json:"tier"`
	Name  string `gorm:"column:name;size:100;not null" json:"name"`

	MonthlyPrice   int64 `gorm:"column:monthly_price;not null" json:"monthly_price"`
	YearlyPrice    int64 `gorm:"column:yearly_price;not null" json:"yearly_price"`
	AvgStateIncome int64 `gorm:"column:avg_state_income" json:"avg_state_income"`

	Features pq.StringArray `gorm:"column:features;type:text[]" json:"features"`

	// Limits. -1 means unlimited.
	MaxListings       int  `gorm:"column:max_listings;default:3" json:"max_listings"`
	MaxActiveRequests int  `gorm:"column:max_active_requests;default:2" json:"max_active_requests"`
	EscrowProtection  bool `gorm:"column:escrow_protection;default:false" json:"escrow_protection"`
	PrioritySupport   bool `gorm:"column:priority_support;default:false" json:"priority_support"`

	FreeTrialDays int `gorm:"column:free_trial_days;default:7" json:"free_trial_days"`
}

// National reports whether the plan row belongs to the national fallback set.
func (p *SubscriptionPlan) National() bool {
	return p.State == PlanScopeNational
}
