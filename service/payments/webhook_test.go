package payments

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
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

func TestProcessRejectsMalformedPayloads(t *testing.T) {
	p := NewProcessor(nil)

	err := p.Process([]byte("not json"))
	require.Error(t, err)
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))

	err = p.Process([]byte(`{"data":{}}`))
	require.Error(t, err)
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))
}

func TestProcessIgnoresDuplicateEvents(t *testing.T) {
	db, mock := newMockDB(t)
	p := NewProcessor(db)

	// ON CONFLICT DO NOTHING inserts no row for a replayed event id; once the
	// stored row shows a clean earlier run, processing stops there.
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "webhook_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM "webhook_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "processed_at", "processing_error"}).
			AddRow(1, time.Now(), ""))

	err := p.Process([]byte(`{"id":"evt_1","type":"payment.captured","data":{"ref":"pi_1"}}`))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessRetriesEventThatFailedToApply(t *testing.T) {
	db, mock := newMockDB(t)
	p := NewProcessor(db)

	// The provider redelivers events we could not apply. The stored row
	// carries the earlier error, so the redelivery runs the handler again
	// instead of being swallowed as a duplicate.
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "webhook_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM "webhook_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "processed_at", "processing_error"}).
			AddRow(1, time.Now(), "database is shutting down"))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "payments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "webhook_events"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := p.Process([]byte(`{"id":"evt_1","type":"payment.captured","data":{"ref":"pi_1","receipt_number":"R-7"}}`))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessAppliesPaymentCaptured(t *testing.T) {
	db, mock := newMockDB(t)
	p := NewProcessor(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "webhook_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "payments"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// The first captured charge of a subscription flips the still-inactive
	// local mirror to active.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "webhook_events"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := p.Process([]byte(`{"id":"evt_2","type":"payment.captured","data":{"ref":"pi_2","receipt_number":"R-42"}}`))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessRecordsUnknownEventTypes(t *testing.T) {
	db, mock := newMockDB(t)
	p := NewProcessor(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "webhook_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "webhook_events"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := p.Process([]byte(`{"id":"evt_3","type":"invoice.created","data":{}}`))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
