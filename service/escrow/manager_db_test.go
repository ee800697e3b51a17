package escrow

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
	"github.com/Rajtiwari0202/AgriConnect-Platform/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return db, mock
}

type fakeGateway struct {
	hold       *gateway.Hold
	holdParams []gateway.HoldParams
	captured   []string
	cancelled  []string
}

func (f *fakeGateway) CreateCustomer(ctx context.Context, params gateway.CustomerParams) (string, error) {
	return "cus_fake", nil
}

func (f *fakeGateway) CreateIntent(ctx context.Context, params gateway.IntentParams) (*gateway.Intent, error) {
	return &gateway.Intent{Ref: "pi_fake"}, nil
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
	return &gateway.Subscription{Ref: "sub_fake"}, nil
}

func (f *fakeGateway) CancelSubscription(ctx context.Context, subRef string) error {
	return nil
}

func TestCreateHoldRejectsPendingRequest(t *testing.T) {
	db, mock := newMockDB(t)
	fake := &fakeGateway{}
	m := NewManager(db, fake, nil)

	mock.ExpectQuery(`SELECT \* FROM "rental_requests"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "farmer_id", "land_owner_id", "status"}).
			AddRow(1, 10, 20, models.RequestPending))
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "payment_customer_id"}).
			AddRow(10, "cus_1"))

	_, err := m.CreateHold(context.Background(), 10, HoldInput{RequestID: 1})
	require.Error(t, err)
	assert.Equal(t, apierr.KindInvalidTransition, apierr.KindOf(err))
	assert.Empty(t, fake.holdParams, "provider must not authorize for an unaccepted request")
	require.NoError(t, mock.ExpectationsWereMet(), "no escrow row may be written")
}

func TestReleaseTwiceSecondCallFails(t *testing.T) {
	db, mock := newMockDB(t)
	fake := &fakeGateway{}
	m := NewManager(db, fake, nil)

	// The second release finds the escrow already released under the row
	// lock and stops before reaching the provider.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "escrows"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "request_id", "amount", "status", "hold_ref", "payment_id"}).
			AddRow(1, 1, 2250000, models.EscrowReleased, "hold_1", 5))
	mock.ExpectQuery(`SELECT \* FROM "rental_requests"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "farmer_id", "land_owner_id", "status"}).
			AddRow(1, 10, 20, models.RequestActive))
	mock.ExpectRollback()

	_, err := m.Release(context.Background(), 1, 20)
	require.Error(t, err)
	assert.Equal(t, apierr.KindInvalidTransition, apierr.KindOf(err))
	assert.Empty(t, fake.captured, "funds must not be captured twice")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettleFailsWhenHoldGuardLosesRace(t *testing.T) {
	db, mock := newMockDB(t)
	fake := &fakeGateway{}
	m := NewManager(db, fake, nil)

	// The guarded status update matches no row when the escrow left hold
	// between validation and write; the transaction rolls back.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "escrows"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "request_id", "amount", "status", "hold_ref", "payment_id"}).
			AddRow(1, 1, 2250000, models.EscrowHold, "hold_1", 5))
	mock.ExpectQuery(`SELECT \* FROM "rental_requests"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "farmer_id", "land_owner_id", "status"}).
			AddRow(1, 10, 20, models.RequestInEscrow))
	mock.ExpectExec(`UPDATE "escrows"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := m.Release(context.Background(), 1, 20)
	require.Error(t, err)
	assert.Equal(t, apierr.KindInvalidTransition, apierr.KindOf(err))
	assert.Equal(t, []string{"hold_1"}, fake.captured)
	require.NoError(t, mock.ExpectationsWereMet())
}
