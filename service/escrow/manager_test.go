package escrow

import (
	"testing"

	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func acceptedRequest() *models.RentalRequest {
	req := &models.RentalRequest{
		FarmerID:               10,
		LandOwnerID:            20,
		Status:                 models.RequestAccepted,
		ProposedRentPerAcre:    decimal.NewFromInt(5000),
		ProposedDurationMonths: 12,
	}
	req.ID = 1
	return req
}

func payerWithCustomer() *models.User {
	u := &models.User{PaymentCustomerID: "cus_123"}
	u.ID = 10
	return u
}

func TestValidateHold(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(req *models.RentalRequest, payer *models.User)
		caller   uint
		wantKind apierr.Kind
	}{
		{
			name:   "farmer on accepted request",
			mutate: func(req *models.RentalRequest, payer *models.User) {},
			caller: 10,
		},
		{
			name:   "landowner may also open the escrow",
			mutate: func(req *models.RentalRequest, payer *models.User) {},
			caller: 20,
		},
		{
			name:     "stranger cannot fund",
			mutate:   func(req *models.RentalRequest, payer *models.User) {},
			caller:   99,
			wantKind: apierr.KindForbidden,
		},
		{
			name: "pending request not yet fundable",
			mutate: func(req *models.RentalRequest, payer *models.User) {
				req.Status = models.RequestPending
			},
			caller:   10,
			wantKind: apierr.KindInvalidTransition,
		},
		{
			name: "cancelled request not fundable",
			mutate: func(req *models.RentalRequest, payer *models.User) {
				req.Status = models.RequestCancelled
			},
			caller:   10,
			wantKind: apierr.KindInvalidTransition,
		},
		{
			name: "payer without provider customer",
			mutate: func(req *models.RentalRequest, payer *models.User) {
				payer.PaymentCustomerID = ""
			},
			caller:   10,
			wantKind: apierr.KindPaymentMethodMissing,
		},
		{
			name: "landowner initiates but the farmer has no payment method",
			mutate: func(req *models.RentalRequest, payer *models.User) {
				payer.PaymentCustomerID = ""
			},
			caller:   20,
			wantKind: apierr.KindPaymentMethodMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := acceptedRequest()
			payer := payerWithCustomer()
			tt.mutate(req, payer)

			err := validateHold(req, payer, tt.caller)
			if tt.wantKind == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apierr.KindOf(err))
			}
		})
	}
}

func TestValidateRelease(t *testing.T) {
	req := acceptedRequest()
	req.Status = models.RequestInEscrow
	held := &models.Escrow{RequestID: req.ID, Status: models.EscrowHold}

	require.NoError(t, validateRelease(held, req, 20))

	err := validateRelease(held, req, 10)
	require.Error(t, err, "farmer must not release their own deposit")
	assert.Equal(t, apierr.KindForbidden, apierr.KindOf(err))

	released := &models.Escrow{RequestID: req.ID, Status: models.EscrowReleased}
	err = validateRelease(released, req, 20)
	require.Error(t, err)
	assert.Equal(t, apierr.KindInvalidTransition, apierr.KindOf(err))

	refunded := &models.Escrow{RequestID: req.ID, Status: models.EscrowRefunded}
	err = validateRelease(refunded, req, 20)
	require.Error(t, err)
	assert.Equal(t, apierr.KindInvalidTransition, apierr.KindOf(err))
}

func TestValidateRefund(t *testing.T) {
	req := acceptedRequest()
	req.Status = models.RequestInEscrow
	held := &models.Escrow{RequestID: req.ID, Status: models.EscrowHold}

	require.NoError(t, validateRefund(held, req, 10), "farmer can refund")
	require.NoError(t, validateRefund(held, req, 20), "landowner can refund")

	err := validateRefund(held, req, 99)
	require.Error(t, err)
	assert.Equal(t, apierr.KindForbidden, apierr.KindOf(err))

	released := &models.Escrow{RequestID: req.ID, Status: models.EscrowReleased}
	err = validateRefund(released, req, 10)
	require.Error(t, err)
	assert.Equal(t, apierr.KindInvalidTransition, apierr.KindOf(err))
}

func TestDepositAmount(t *testing.T) {
	req := acceptedRequest()
	req.Listing = &models.LandListing{
		SizeInAcres:     decimal.NewFromFloat(2.5),
		SecurityDeposit: decimal.NewFromInt(10000),
	}

	// 10000 deposit + 5000/acre * 2.5 acres = 22500 rupees = 2250000 paise
	assert.Equal(t, int64(2250000), depositAmount(req))

	req.Listing = nil
	assert.Equal(t, int64(0), depositAmount(req))
}
