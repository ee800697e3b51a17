package pricing

import (
	"math"
	"math/rand"
	"testing"

	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatePriceNoDiscounts(t *testing.T) {
	plan := models.SubscriptionPlan{MonthlyPrice: 49900, AvgStateIncome: 25000000}

	quote := CalculatePrice(plan, Applicant{})

	assert.Equal(t, int64(49900), quote.OriginalPrice)
	assert.Equal(t, int64(49900), quote.FinalPrice)
	assert.Empty(t, quote.Discounts)
	assert.True(t, quote.AffordabilityKnown)
}

func TestCalculatePriceBeneficiaryDiscount(t *testing.T) {
	plan := models.SubscriptionPlan{MonthlyPrice: 50000, AvgStateIncome: 3500000000}

	quote := CalculatePrice(plan, Applicant{IsPmKisanBeneficiary: true})

	require.Len(t, quote.Discounts, 1)
	assert.Equal(t, DiscountIncomeSupport, quote.Discounts[0].Type)
	assert.Equal(t, 20, quote.Discounts[0].Percentage)
	assert.Equal(t, int64(40000), quote.FinalPrice)

	require.True(t, quote.AffordabilityKnown)
	assert.InDelta(t, 0.0137, quote.AffordabilityRatio, 0.0001)
}

func TestCalculatePriceFpoMemberHasNoPriceEffect(t *testing.T) {
	plan := models.SubscriptionPlan{MonthlyPrice: 89900}

	quote := CalculatePrice(plan, Applicant{IsFpoMember: true})

	assert.Equal(t, quote.OriginalPrice, quote.FinalPrice)
	require.Len(t, quote.Discounts, 1)
	assert.Equal(t, DiscountFpoPriority, quote.Discounts[0].Type)
	assert.Equal(t, 0, quote.Discounts[0].Percentage)
	assert.Equal(t, "Priority listing", quote.Discounts[0].Benefit)
}

func TestCalculatePriceBothFlags(t *testing.T) {
	plan := models.SubscriptionPlan{MonthlyPrice: 100000}

	quote := CalculatePrice(plan, Applicant{IsPmKisanBeneficiary: true, IsFpoMember: true})

	// FPO membership never stacks a monetary discount on top of PM-KISAN.
	assert.Equal(t, int64(80000), quote.FinalPrice)
	assert.Len(t, quote.Discounts, 2)
}

func TestCalculatePriceMissingIncome(t *testing.T) {
	for _, income := range []int64{0, -1} {
		plan := models.SubscriptionPlan{MonthlyPrice: 49900, AvgStateIncome: income}
		quote := CalculatePrice(plan, Applicant{})
		assert.False(t, quote.AffordabilityKnown)
		assert.Zero(t, quote.AffordabilityRatio)
	}
}

func TestCalculatePriceProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		plan := models.SubscriptionPlan{
			MonthlyPrice:   rng.Int63n(500000) + 1,
			AvgStateIncome: rng.Int63n(5000000000) + 1,
		}
		applicant := Applicant{
			IsPmKisanBeneficiary: rng.Intn(2) == 0,
			IsFpoMember:          rng.Intn(2) == 0,
		}

		quote := CalculatePrice(plan, applicant)

		if quote.FinalPrice > quote.OriginalPrice {
			t.Fatalf("final price %d exceeds original %d", quote.FinalPrice, quote.OriginalPrice)
		}
		if !applicant.IsPmKisanBeneficiary && quote.FinalPrice != quote.OriginalPrice {
			t.Fatalf("price changed without a monetary discount: %d != %d", quote.FinalPrice, quote.OriginalPrice)
		}

		want := (float64(quote.FinalPrice) * 12 / float64(plan.AvgStateIncome)) * 100
		if math.Abs(quote.AffordabilityRatio-want) > 1e-9 {
			t.Fatalf("affordability ratio %v, want %v", quote.AffordabilityRatio, want)
		}
	}
}

func TestYearlySavings(t *testing.T) {
	plan := models.SubscriptionPlan{MonthlyPrice: 9900, YearlyPrice: 99900}

	assert.Equal(t, int64(9900*12-99900), YearlySavings(plan))
	assert.Equal(t, 16, YearlySavingsPercentage(plan))
}
