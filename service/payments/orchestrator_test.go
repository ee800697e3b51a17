package payments

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
	"github.com/Rajtiwari0202/AgriConnect-Platform/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway records provider calls so tests can assert what reached the
// provider without a network.
type fakeGateway struct {
	subscription *gateway.Subscription
	subParams    []gateway.SubscriptionParams
	cancelledSub []string

	customerID string

	intent      *gateway.Intent
	hold        *gateway.Hold
	holdParams  []gateway.HoldParams
	captured    []string
	cancelled   []string
	failNextSub error
}

func (f *fakeGateway) CreateCustomer(ctx context.Context, params gateway.CustomerParams) (string, error) {
	if f.customerID == "" {
		return "cus_fake", nil
	}
	return f.customerID, nil
}

func (f *fakeGateway) CreateIntent(ctx context.Context, params gateway.IntentParams) (*gateway.Intent, error) {
	return f.intent, nil
}

func (f *fakeGateway) CreateHold(ctx context.Context, params gateway.HoldParams) (*gateway.Hold, error) {
	f.holdParams = append(f.holdParams, params)
	return f.hold, nil
}

func (f *fakeGateway) CaptureHold(ctx context.Context, holdRef string, amount int64) error {
	f.captured = append(f.captured, holdRef)
	return nil
}

func (f *fakeGateway) CancelHold(ctx context.Context, holdRef string) error {
	f.cancelled = append(f.cancelled, holdRef)
	return nil
}

func (f *fakeGateway) CreateSubscription(ctx context.Context, params gateway.SubscriptionParams) (*gateway.Subscription, error) {
	f.subParams = append(f.subParams, params)
	if f.failNextSub != nil {
		return nil, f.failNextSub
	}
	return f.subscription, nil
}

func (f *fakeGateway) CancelSubscription(ctx context.Context, subRef string) error {
	f.cancelledSub = append(f.cancelledSub, subRef)
	return nil
}

func subscriberRow(status string, end interface{}) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "state", "subscription_status", "subscription_end_date",
		"free_trial_used", "payment_customer_id", "payment_subscription_id",
	})
	return rows.AddRow(7, "Punjab", status, end, true, "cus_7", "")
}

func punjabProPlanRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "state", "tier", "name", "monthly_price", "yearly_price",
		"avg_state_income", "free_trial_days",
	}).AddRow(2, "Punjab", models.TierPro, "Pro", 129900, 1299000, 35000000, 7)
}

func TestCreateSubscriptionRejectsSecondActiveSubscription(t *testing.T) {
	db, mock := newMockDB(t)
	fake := &fakeGateway{}
	o := NewOrchestrator(db, fake)

	end := time.Now().AddDate(0, 1, 0)
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(subscriberRow(models.SubscriptionActive, end))

	_, err := o.CreateSubscription(context.Background(), 7, SubscribeInput{Tier: models.TierPro})
	require.Error(t, err)
	assert.Equal(t, apierr.KindSubscriptionActive, apierr.KindOf(err))
	assert.Empty(t, fake.subParams, "provider must not be called for a double subscribe")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSubscriptionStaysInactiveUntilFirstCharge(t *testing.T) {
	db, mock := newMockDB(t)
	fake := &fakeGateway{subscription: &gateway.Subscription{Ref: "sub_1", Status: "incomplete"}}
	o := NewOrchestrator(db, fake)

	// Trial already spent, so this subscribe charges for real.
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(subscriberRow(models.SubscriptionInactive, nil))
	mock.ExpectQuery(`SELECT \* FROM "subscription_plans"`).
		WillReturnRows(punjabProPlanRows())

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "payments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	// The mirror stays inactive until the webhook confirms the charge.
	mock.ExpectExec(`UPDATE "users"`).
		WithArgs("sub_1", sqlmock.AnyArg(), sqlmock.AnyArg(),
			models.SubscriptionInactive, models.TierPro, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := o.CreateSubscription(context.Background(), 7, SubscribeInput{Tier: models.TierPro})
	require.NoError(t, err)
	assert.False(t, result.Trial)
	assert.Equal(t, models.PaymentPending, result.Payment.Status)
	require.Len(t, fake.subParams, 1)
	assert.Equal(t, 0, fake.subParams[0].TrialDays)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelSubscriptionCancelsAtProviderAndClearsReference(t *testing.T) {
	db, mock := newMockDB(t)
	fake := &fakeGateway{}
	o := NewOrchestrator(db, fake)

	rows := sqlmock.NewRows([]string{"id", "subscription_status", "payment_subscription_id"}).
		AddRow(7, models.SubscriptionActive, "sub_1")
	mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnRows(rows)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users"`).
		WithArgs("", models.SubscriptionCancelled, sqlmock.AnyArg(), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user, err := o.CancelSubscription(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"sub_1"}, fake.cancelledSub)
	assert.Equal(t, models.SubscriptionCancelled, user.SubscriptionStatus)
	assert.Empty(t, user.PaymentSubscriptionID,
		"a renewal webhook must not find the cancelled subscription")
	require.NoError(t, mock.ExpectationsWereMet())
}
