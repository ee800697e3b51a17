package pricing

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return db, mock
}

func planRows(tiers ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "state", "tier", "monthly_price", "yearly_price", "avg_state_income"})
	for i, tier := range tiers {
		rows.AddRow(i+1, "x", tier, 49900, 499900, 25000000)
	}
	return rows
}

func TestPlansForStateUsesStateRows(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPlanStore(db)

	mock.ExpectQuery(`SELECT \* FROM "subscription_plans" WHERE state = \$1`).
		WithArgs("Punjab").
		WillReturnRows(planRows("basic", "pro", "enterprise"))

	plans, err := store.PlansForState("Punjab")
	require.NoError(t, err)
	assert.Len(t, plans, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlansForStateFallsBackToNational(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPlanStore(db)

	mock.ExpectQuery(`SELECT \* FROM "subscription_plans" WHERE state = \$1`).
		WithArgs("Kerala").
		WillReturnRows(planRows())
	mock.ExpectQuery(`SELECT \* FROM "subscription_plans" WHERE state = \$1`).
		WithArgs("national").
		WillReturnRows(planRows("basic", "pro"))

	plans, err := store.PlansForState("Kerala")
	require.NoError(t, err)
	assert.Len(t, plans, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlansForStateNoDataAnywhere(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPlanStore(db)

	mock.ExpectQuery(`SELECT \* FROM "subscription_plans" WHERE state = \$1`).
		WithArgs("Atlantis").
		WillReturnRows(planRows())
	mock.ExpectQuery(`SELECT \* FROM "subscription_plans" WHERE state = \$1`).
		WithArgs("national").
		WillReturnRows(planRows())

	_, err := store.PlansForState("Atlantis")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.New(apierr.KindStateNotFound, "")))
}

func TestPlanForDistinguishesMissingTier(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewPlanStore(db)

	mock.ExpectQuery(`SELECT \* FROM "subscription_plans" WHERE state = \$1`).
		WithArgs("Punjab").
		WillReturnRows(planRows("basic", "pro"))

	_, err := store.PlanFor("Punjab", "enterprise")
	require.Error(t, err)
	assert.Equal(t, apierr.KindPlanNotFound, apierr.KindOf(err))
}
