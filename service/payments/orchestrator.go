package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
	"github.com/Rajtiwari0202/AgriConnect-Platform/gateway"
	"github.com/Rajtiwari0202/AgriConnect-Platform/service/pricing"
	"gorm.io/gorm"
)

// Orchestrator coordinates provider calls with local payment records. The
// local row is created in pending and only moves on webhook confirmation;
// the one exception is a trial subscription, which activates immediately
// because no charge happens until the trial ends.
type Orchestrator struct {
	db    *gorm.DB
	gw    gateway.API
	plans *pricing.PlanStore
}

func NewOrchestrator(db *gorm.DB, gw gateway.API) *Orchestrator {
	return &Orchestrator{db: db, gw: gw, plans: pricing.NewPlanStore(db)}
}

// ensureCustomer lazily creates the provider-side customer on first payment
// and persists the reference on the user.
func (o *Orchestrator) ensureCustomer(ctx context.Context, user *models.User) error {
	if user.PaymentCustomerID != "" {
		return nil
	}

	customerID, err := o.gw.CreateCustomer(ctx, gateway.CustomerParams{
		Email: user.Email,
		Name:  user.FullName,
		Phone: user.Phone,
		Metadata: map[string]string{
			"user_id": fmt.Sprintf("%d", user.ID),
			"state":   user.State,
		},
	})
	if err != nil {
		return err
	}

	user.PaymentCustomerID = customerID
	if err := o.db.Model(user).Update("payment_customer_id", customerID).Error; err != nil {
		return apierr.Wrap(apierr.KindInternal, "failed to save payment customer", err)
	}
	return nil
}

type IntentInput struct {
	// Amount in paise.
	Amount  int64  `json:"amount"`
	Purpose string `json:"purpose"`
}

type IntentResult struct {
	Payment      *models.Payment `json:"payment"`
	ClientSecret string          `json:"client_secret"`
}

// CreateIntent opens a one-time payment with the provider and records it
// locally as pending. The caller confirms the intent client-side; the
// outcome arrives by webhook.
func (o *Orchestrator) CreateIntent(ctx context.Context, userID uint, input IntentInput) (*IntentResult, error) {
	if input.Amount <= 0 {
		return nil, apierr.New(apierr.KindValidation, "amount must be positive")
	}
	switch input.Purpose {
	case models.PurposeRent, models.PurposeCommission, models.PurposeDeposit:
	default:
		return nil, apierr.New(apierr.KindValidation, "unknown payment purpose")
	}

	var user models.User
	if err := o.db.First(&user, userID).Error; err != nil {
		return nil, apierr.New(apierr.KindNotFound, "user not found")
	}
	if err := o.ensureCustomer(ctx, &user); err != nil {
		return nil, err
	}

	intent, err := o.gw.CreateIntent(ctx, gateway.IntentParams{
		Amount:     input.Amount,
		Currency:   "inr",
		CustomerID: user.PaymentCustomerID,
		Metadata: map[string]string{
			"user_id": fmt.Sprintf("%d", user.ID),
			"purpose": input.Purpose,
		},
	})
	if err != nil {
		return nil, err
	}

	payment := models.Payment{
		UserID:      user.ID,
		Amount:      input.Amount,
		Currency:    "INR",
		Purpose:     input.Purpose,
		Type:        "one_time",
		Status:      models.PaymentPending,
		ProviderRef: intent.Ref,
	}
	if err := o.db.Create(&payment).Error; err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "failed to record payment", err)
	}

	return &IntentResult{Payment: &payment, ClientSecret: intent.ClientSecret}, nil
}

type SubscribeInput struct {
	Tier     string `json:"tier"`
	Interval string `json:"interval"` // month or year
}

type SubscribeResult struct {
	Subscription *gateway.Subscription    `json:"subscription"`
	Plan         *models.SubscriptionPlan `json:"plan"`
	Quote        pricing.Quote            `json:"quote"`
	Payment      *models.Payment          `json:"payment"`
	Trial        bool                     `json:"trial"`
}

// CreateSubscription starts a paid subscription for the caller at the
// scheme-discounted price of their state's plan. A user who still has the
// free trial available starts in trial and is charged when it lapses.
func (o *Orchestrator) CreateSubscription(ctx context.Context, userID uint, input SubscribeInput) (*SubscribeResult, error) {
	if input.Tier != models.TierPro && input.Tier != models.TierEnterprise {
		return nil, apierr.New(apierr.KindValidation, "tier must be pro or enterprise")
	}
	if input.Interval == "" {
		input.Interval = "month"
	}
	if input.Interval != "month" && input.Interval != "year" {
		return nil, apierr.New(apierr.KindValidation, "interval must be month or year")
	}

	var user models.User
	if err := o.db.First(&user, userID).Error; err != nil {
		return nil, apierr.New(apierr.KindNotFound, "user not found")
	}

	if user.SubscriptionStatus == models.SubscriptionActive &&
		(user.SubscriptionEndDate == nil || user.SubscriptionEndDate.After(time.Now())) {
		return nil, apierr.New(apierr.KindSubscriptionActive, "an active subscription already exists")
	}

	plan, err := o.plans.PlanFor(user.State, input.Tier)
	if err != nil {
		return nil, err
	}

	quote := pricing.CalculatePrice(*plan, pricing.Applicant{
		IsPmKisanBeneficiary: user.IsPmKisanBeneficiary,
		IsFpoMember:          user.IsFpoMember,
	})

	amount := quote.FinalPrice
	if input.Interval == "year" {
		// The yearly price carries its own bundled discount; scheme
		// discounts apply on top at the same percentage.
		amount = pricing.ApplyDiscount(plan.YearlyPrice, quote.TotalDiscountPercentage)
	}

	if err := o.ensureCustomer(ctx, &user); err != nil {
		return nil, err
	}

	trial := !user.FreeTrialUsed && plan.FreeTrialDays > 0
	trialDays := 0
	if trial {
		trialDays = plan.FreeTrialDays
	}

	sub, err := o.gw.CreateSubscription(ctx, gateway.SubscriptionParams{
		CustomerID: user.PaymentCustomerID,
		PlanRef:    fmt.Sprintf("%s-%s-%s", plan.State, plan.Tier, input.Interval),
		Interval:   input.Interval,
		Amount:     amount,
		Currency:   "inr",
		TrialDays:  trialDays,
		Metadata: map[string]string{
			"user_id": fmt.Sprintf("%d", user.ID),
			"tier":    plan.Tier,
		},
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	end := periodEnd(sub, input.Interval, now, trialDays)

	payment := models.Payment{
		UserID:      user.ID,
		Amount:      amount,
		Currency:    "INR",
		Purpose:     models.PurposeSubscription,
		Type:        "recurring",
		Status:      models.PaymentPending,
		ProviderRef: sub.Ref,
	}

	// Only a trial activates here: nothing gets charged until it lapses.
	// A paid subscription stays inactive until the provider confirms the
	// first charge by webhook, so a failed charge can simply retry.
	status := models.SubscriptionInactive
	if trial {
		status = models.SubscriptionActive
	}

	err = o.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"subscription_tier":       plan.Tier,
			"subscription_status":     status,
			"subscription_start_date": now,
			"subscription_end_date":   end,
			"payment_subscription_id": sub.Ref,
		}
		if trial {
			updates["free_trial_used"] = true
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "failed to record subscription", err)
	}

	return &SubscribeResult{
		Subscription: sub,
		Plan:         plan,
		Quote:        quote,
		Payment:      &payment,
		Trial:        trial,
	}, nil
}

// CancelSubscription stops billing at the provider, then clears the local
// reference so a late subscription.renewed webhook cannot resurrect the
// subscription. Access runs to the end of the already-paid period.
func (o *Orchestrator) CancelSubscription(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := o.db.First(&user, userID).Error; err != nil {
		return nil, apierr.New(apierr.KindNotFound, "user not found")
	}
	if user.PaymentSubscriptionID == "" {
		return nil, apierr.New(apierr.KindValidation, "no subscription to cancel")
	}

	if err := o.gw.CancelSubscription(ctx, user.PaymentSubscriptionID); err != nil {
		return nil, err
	}

	if err := o.db.Model(&user).Updates(map[string]interface{}{
		"subscription_status":     models.SubscriptionCancelled,
		"payment_subscription_id": "",
	}).Error; err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "failed to cancel subscription", err)
	}
	user.SubscriptionStatus = models.SubscriptionCancelled
	user.PaymentSubscriptionID = ""
	return &user, nil
}

func periodEnd(sub *gateway.Subscription, interval string, now time.Time, trialDays int) time.Time {
	if sub.PeriodEnd != nil {
		return *sub.PeriodEnd
	}
	start := now
	if trialDays > 0 {
		start = start.AddDate(0, 0, trialDays)
	}
	if interval == "year" {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
