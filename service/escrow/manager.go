package escrow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
	"github.com/Rajtiwari0202/AgriConnect-Platform/gateway"
	"github.com/Rajtiwari0202/AgriConnect-Platform/service/notifications"
	"github.com/Rajtiwari0202/AgriConnect-Platform/service/rental"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Manager owns the escrow lifecycle. The invariant throughout is that local
// escrow state only advances after the provider confirms the corresponding
// operation: an authorization before the hold row is written, a capture
// before released, a cancellation before refunded. Settlement runs inside a
// transaction with a row lock so two concurrent settle calls cannot both
// reach the provider.
type Manager struct {
	db       *gorm.DB
	gw       gateway.API
	notifier *notifications.Notifier
}

func NewManager(db *gorm.DB, gw gateway.API, notifier *notifications.Notifier) *Manager {
	return &Manager{db: db, gw: gw, notifier: notifier}
}

type HoldInput struct {
	RequestID         uint       `json:"request_id"`
	ReleaseConditions string     `json:"release_conditions"`
	AutoReleaseDate   *time.Time `json:"auto_release_date"`
}

// CreateHold authorizes the deposit with the provider and opens the escrow.
// The provider call happens first: if it fails nothing has changed locally,
// and if the local transaction fails afterwards the authorization is
// cancelled on a best-effort basis (an orphaned authorization expires on the
// provider side regardless).
func (m *Manager) CreateHold(ctx context.Context, callerID uint, input HoldInput) (*models.Escrow, error) {
	var request models.RentalRequest
	if err := m.db.Preload("Listing").First(&request, input.RequestID).Error; err != nil {
		return nil, apierr.New(apierr.KindNotFound, "rental request not found")
	}

	var payer models.User
	if err := m.db.First(&payer, request.FarmerID).Error; err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "failed to load payer", err)
	}

	if err := validateHold(&request, &payer, callerID); err != nil {
		return nil, err
	}

	var existing int64
	m.db.Model(&models.Escrow{}).
		Where("request_id = ? AND status = ?", request.ID, models.EscrowHold).
		Count(&existing)
	if existing > 0 {
		return nil, apierr.New(apierr.KindEscrowExists, "an active escrow already exists for this request")
	}

	amount := depositAmount(&request)
	if amount <= 0 {
		return nil, apierr.New(apierr.KindValidation, "escrow amount must be positive")
	}

	hold, err := m.gw.CreateHold(ctx, gateway.HoldParams{
		Amount:     amount,
		Currency:   "inr",
		CustomerID: payer.PaymentCustomerID,
		Reference:  fmt.Sprintf("escrow-request-%d", request.ID),
		Metadata: map[string]string{
			"request_id": fmt.Sprintf("%d", request.ID),
			"farmer_id":  fmt.Sprintf("%d", request.FarmerID),
		},
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if request.ProposedStartDate != nil {
		start = *request.ProposedStartDate
	}
	end := start.AddDate(0, request.ProposedDurationMonths, 0)

	escrow := models.Escrow{
		RequestID:         request.ID,
		Amount:            amount,
		Currency:          "INR",
		Status:            models.EscrowHold,
		HoldRef:           hold.Ref,
		ReleaseConditions: input.ReleaseConditions,
		AutoReleaseDate:   input.AutoReleaseDate,
	}

	err = m.db.Transaction(func(tx *gorm.DB) error {
		payment := models.Payment{
			UserID:      request.FarmerID,
			Amount:      amount,
			Currency:    "INR",
			Purpose:     models.PurposeDeposit,
			Type:        "one_time",
			Status:      models.PaymentPending,
			ProviderRef: hold.Ref,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		escrow.PaymentID = payment.ID
		if err := tx.Create(&escrow).Error; err != nil {
			return err
		}

		// Guarded transition so a concurrent accept/cancel cannot race the
		// escrow creation past the state machine.
		result := tx.Model(&models.RentalRequest{}).
			Where("id = ? AND status = ?", request.ID, models.RequestAccepted).
			Updates(map[string]interface{}{
				"status":              models.RequestInEscrow,
				"final_rent_per_acre": request.ProposedRentPerAcre,
				"contract_start_date": start,
				"contract_end_date":   end,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apierr.New(apierr.KindInvalidTransition,
				"request is no longer accepted")
		}
		return nil
	})
	if err != nil {
		if cancelErr := m.gw.CancelHold(ctx, hold.Ref); cancelErr != nil {
			log.Printf("failed to cancel orphaned hold %s: %v", hold.Ref, cancelErr)
		}
		var ae *apierr.Error
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, apierr.Wrap(apierr.KindInternal, "failed to record escrow", err)
	}

	m.notifier.Notify(request.LandOwnerID, "Escrow funded",
		"The deposit for your listing is now held in escrow.",
		map[string]string{"escrow_id": fmt.Sprintf("%d", escrow.ID)})

	return &escrow, nil
}

// Release captures the held funds in favor of the landowner and activates
// the tenancy. Only the landowner may release.
func (m *Manager) Release(ctx context.Context, escrowID, callerID uint) (*models.Escrow, error) {
	return m.settle(ctx, escrowID, callerID, settleRelease)
}

// Refund cancels the hold and returns the funds to the farmer. Either
// participant may refund.
func (m *Manager) Refund(ctx context.Context, escrowID, callerID uint) (*models.Escrow, error) {
	return m.settle(ctx, escrowID, callerID, settleRefund)
}

const (
	settleRelease = "release"
	settleRefund  = "refund"
)

func (m *Manager) settle(ctx context.Context, escrowID, callerID uint, mode string) (*models.Escrow, error) {
	var escrow models.Escrow

	err := m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&escrow, escrowID).Error; err != nil {
			return apierr.New(apierr.KindNotFound, "escrow not found")
		}

		var request models.RentalRequest
		if err := tx.First(&request, escrow.RequestID).Error; err != nil {
			return apierr.Wrap(apierr.KindInternal, "failed to load rental request", err)
		}

		var newEscrowStatus, newRequestStatus, newPaymentStatus string
		switch mode {
		case settleRelease:
			if err := validateRelease(&escrow, &request, callerID); err != nil {
				return err
			}
			newEscrowStatus = models.EscrowReleased
			newRequestStatus = models.RequestActive
			newPaymentStatus = models.PaymentCompleted
		case settleRefund:
			if err := validateRefund(&escrow, &request, callerID); err != nil {
				return err
			}
			newEscrowStatus = models.EscrowRefunded
			newRequestStatus = models.RequestCancelled
			newPaymentStatus = models.PaymentRefunded
		default:
			return apierr.New(apierr.KindInternal, "unknown settlement mode")
		}

		// Provider first. A failure here rolls everything back and the
		// escrow stays in hold, retryable.
		if mode == settleRelease {
			if err := m.gw.CaptureHold(ctx, escrow.HoldRef, escrow.Amount); err != nil {
				return err
			}
		} else {
			if err := m.gw.CancelHold(ctx, escrow.HoldRef); err != nil {
				return err
			}
		}

		// Guarded update as a second line of defense under the row lock.
		result := tx.Model(&models.Escrow{}).
			Where("id = ? AND status = ?", escrow.ID, models.EscrowHold).
			Update("status", newEscrowStatus)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apierr.New(apierr.KindInvalidTransition, "escrow is no longer in hold")
		}
		escrow.Status = newEscrowStatus

		if escrow.PaymentID != 0 {
			if err := tx.Model(&models.Payment{}).
				Where("id = ?", escrow.PaymentID).
				Update("status", newPaymentStatus).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&models.RentalRequest{}).
			Where("id = ? AND status = ?", request.ID, models.RequestInEscrow).
			Update("status", newRequestStatus).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		var ae *apierr.Error
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, apierr.Wrap(apierr.KindInternal, "escrow settlement failed", err)
	}

	m.notifySettled(&escrow, mode)
	return &escrow, nil
}

func (m *Manager) notifySettled(escrow *models.Escrow, mode string) {
	var request models.RentalRequest
	if err := m.db.First(&request, escrow.RequestID).Error; err != nil {
		return
	}

	data := map[string]string{"escrow_id": fmt.Sprintf("%d", escrow.ID)}
	if mode == settleRelease {
		m.notifier.Notify(request.FarmerID, "Escrow released",
			"Your deposit has been released to the landowner. The tenancy is now active.", data)
		m.notifier.NotifyEmail(request.LandOwnerID, "Escrow released",
			fmt.Sprintf("The escrow deposit of ₹%s for request #%d has been released to you.",
				rupees(escrow.Amount), request.ID))
	} else {
		m.notifier.Notify(request.LandOwnerID, "Escrow refunded",
			"The deposit for this request has been refunded to the farmer.", data)
		m.notifier.NotifyEmail(request.FarmerID, "Escrow refunded",
			fmt.Sprintf("Your escrow deposit of ₹%s for request #%d has been refunded.",
				rupees(escrow.Amount), request.ID))
	}
}

// Get returns an escrow to one of the participants of its request.
func (m *Manager) Get(escrowID, callerID uint) (*models.Escrow, error) {
	var escrow models.Escrow
	if err := m.db.Preload("Request").First(&escrow, escrowID).Error; err != nil {
		return nil, apierr.New(apierr.KindNotFound, "escrow not found")
	}
	if escrow.Request == nil || !escrow.Request.IsParticipant(callerID) {
		return nil, apierr.New(apierr.KindForbidden, "not authorized for this escrow")
	}
	return &escrow, nil
}

// validateHold checks everything about a hold request that does not need
// the provider: caller identity, request state and payer readiness. Either
// participant may open the escrow; the funds are always drawn from the
// farmer's payment method.
func validateHold(request *models.RentalRequest, payer *models.User, callerID uint) error {
	if !request.IsParticipant(callerID) {
		return apierr.New(apierr.KindForbidden, "not authorized for this request")
	}
	if err := rental.CheckTransition(request.Status, models.RequestInEscrow); err != nil {
		return err
	}
	if payer.PaymentCustomerID == "" {
		return apierr.New(apierr.KindPaymentMethodMissing,
			"no payment method on file; create a payment intent first")
	}
	return nil
}

func validateRelease(escrow *models.Escrow, request *models.RentalRequest, callerID uint) error {
	if callerID != request.LandOwnerID {
		return apierr.New(apierr.KindForbidden, "only the landowner can release the escrow")
	}
	if escrow.Status != models.EscrowHold {
		return apierr.New(apierr.KindInvalidTransition,
			"cannot release an escrow in status "+escrow.Status)
	}
	return nil
}

func validateRefund(escrow *models.Escrow, request *models.RentalRequest, callerID uint) error {
	if !request.IsParticipant(callerID) {
		return apierr.New(apierr.KindForbidden, "not authorized for this escrow")
	}
	if escrow.Status != models.EscrowHold {
		return apierr.New(apierr.KindInvalidTransition,
			"cannot refund an escrow in status "+escrow.Status)
	}
	return nil
}

// depositAmount computes the amount to hold, in paise: the listing's
// security deposit plus one month of rent at the proposed rate.
func depositAmount(request *models.RentalRequest) int64 {
	if request.Listing == nil {
		return 0
	}
	monthly := request.ProposedRentPerAcre.Mul(request.Listing.SizeInAcres)
	total := request.Listing.SecurityDeposit.Add(monthly)
	return total.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func rupees(paise int64) string {
	return decimal.NewFromInt(paise).Div(decimal.NewFromInt(100)).StringFixed(2)
}
