package pricing

import (
	"math"

	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
)

// Discount types surfaced to clients.
const (
	DiscountIncomeSupport = "income_support"
	DiscountFpoPriority   = "fpo_priority"
)

const incomeSupportPercentage = 20

// Applicant carries the scheme flags that affect pricing.
type Applicant struct {
	IsPmKisanBeneficiary bool `json:"is_pm_kisan_beneficiary"`
	IsFpoMember          bool `json:"is_fpo_member"`
}

type Discount struct {
	Type       string `json:"type"`
	Percentage int    `json:"percentage"`
	Benefit    string `json:"benefit,omitempty"`
}

// Quote is the result of a price calculation. Prices are in paise.
// AffordabilityRatio is the annualized cost as a percentage of the state's
// average income; it is only meaningful when AffordabilityKnown is true.
type Quote struct {
	OriginalPrice           int64      `json:"original_price"`
	FinalPrice              int64      `json:"final_price"`
	Discounts               []Discount `json:"discounts"`
	TotalDiscountPercentage int        `json:"total_discount_percentage"`
	AffordabilityRatio      float64    `json:"-"`
	AffordabilityKnown      bool       `json:"-"`
}

// ApplyDiscount reduces a paise price by a whole percentage, rounding to
// the nearest paisa.
func ApplyDiscount(price int64, percentage int) int64 {
	return int64(math.Round(float64(price) * (1 - float64(percentage)/100)))
}

// CalculatePrice computes the effective monthly price for an applicant.
// Monetary discounts are additive percentages of the original price, never
// compounded, and the result is rounded to the nearest paisa. Pure function:
// safe to call for UI previews without persisting anything.
func CalculatePrice(plan models.SubscriptionPlan, applicant Applicant) Quote {
	quote := Quote{
		OriginalPrice: plan.MonthlyPrice,
		Discounts:     []Discount{},
	}

	totalPct := 0
	if applicant.IsPmKisanBeneficiary {
		totalPct += incomeSupportPercentage
		quote.Discounts = append(quote.Discounts, Discount{
			Type:       DiscountIncomeSupport,
			Percentage: incomeSupportPercentage,
		})
	}
	if applicant.IsFpoMember {
		quote.Discounts = append(quote.Discounts, Discount{
			Type:       DiscountFpoPriority,
			Percentage: 0,
			Benefit:    "Priority listing",
		})
	}

	quote.TotalDiscountPercentage = totalPct
	quote.FinalPrice = ApplyDiscount(plan.MonthlyPrice, totalPct)

	if plan.AvgStateIncome > 0 {
		quote.AffordabilityRatio = (float64(quote.FinalPrice) * 12 / float64(plan.AvgStateIncome)) * 100
		quote.AffordabilityKnown = true
	}

	return quote
}

// YearlySavings returns the paise saved by paying yearly instead of monthly.
func YearlySavings(plan models.SubscriptionPlan) int64 {
	return plan.MonthlyPrice*12 - plan.YearlyPrice
}

// YearlySavingsPercentage returns the yearly discount as a whole percentage.
func YearlySavingsPercentage(plan models.SubscriptionPlan) int {
	monthlyTotal := plan.MonthlyPrice * 12
	if monthlyTotal == 0 {
		return 0
	}
	return int(math.Round(float64(monthlyTotal-plan.YearlyPrice) / float64(monthlyTotal) * 100))
}
