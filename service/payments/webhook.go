package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const providerName = "stripe_sim"

// Event is the normalized shape of a provider webhook notification.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		// Reference of the payment intent or subscription this event is
		// about.
		Ref           string     `json:"ref"`
		FailureReason string     `json:"failure_reason,omitempty"`
		ReceiptNumber string     `json:"receipt_number,omitempty"`
		InvoiceURL    string     `json:"invoice_url,omitempty"`
		PeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	} `json:"data"`
}

// Processor applies webhook events to local payment state. Events are
// deduplicated by their provider-assigned id, so provider retries and
// out-of-order redeliveries reduce to no-ops.
type Processor struct {
	db *gorm.DB
}

func NewProcessor(db *gorm.DB) *Processor {
	return &Processor{db: db}
}

// Process parses, records and applies one webhook delivery. The raw payload
// must already be signature-verified. Returns nil on duplicates.
func (p *Processor) Process(payload []byte) error {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return apierr.New(apierr.KindValidation, "malformed webhook payload")
	}
	if event.ID == "" || event.Type == "" {
		return apierr.New(apierr.KindValidation, "webhook event missing id or type")
	}

	record := models.WebhookEvent{
		Provider:        providerName,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		Payload:         string(payload),
	}
	result := p.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if result.Error != nil {
		return apierr.Wrap(apierr.KindInternal, "failed to record webhook event", result.Error)
	}
	if result.RowsAffected == 0 {
		// Already seen. A delivery that reconciled cleanly is a no-op, but
		// one that failed mid-apply gets another chance on the provider's
		// retry; the event row alone does not mean the work happened.
		var existing models.WebhookEvent
		if err := p.db.Where("provider = ? AND provider_event_id = ?", providerName, event.ID).
			First(&existing).Error; err != nil {
			return apierr.Wrap(apierr.KindInternal, "failed to load webhook event", err)
		}
		if existing.ProcessedAt != nil && existing.ProcessingError == "" {
			log.Printf("duplicate webhook event %s ignored", event.ID)
			return nil
		}
		log.Printf("retrying webhook event %s after failed delivery", event.ID)
	}

	err := p.apply(&event)

	now := time.Now()
	updates := map[string]interface{}{"processed_at": now, "processing_error": ""}
	if err != nil {
		updates["processing_error"] = err.Error()
	}
	if dbErr := p.db.Model(&models.WebhookEvent{}).
		Where("provider = ? AND provider_event_id = ?", providerName, event.ID).
		Updates(updates).Error; dbErr != nil {
		log.Printf("failed to mark webhook event %s processed: %v", event.ID, dbErr)
	}

	return err
}

func (p *Processor) apply(event *Event) error {
	switch event.Type {
	case "payment.captured":
		return p.paymentCaptured(event)
	case "payment.failed":
		return p.paymentFailed(event)
	case "subscription.renewed":
		return p.subscriptionRenewed(event)
	case "subscription.cancelled":
		return p.subscriptionCancelled(event)
	default:
		// Unknown event types are recorded but not an error; the provider
		// adds types faster than we consume them.
		log.Printf("unhandled webhook event type %q", event.Type)
		return nil
	}
}

func (p *Processor) paymentCaptured(event *Event) error {
	receipt := event.Data.ReceiptNumber
	if receipt == "" {
		// The provider omits receipts for some payment methods; issue our
		// own so every completed payment has one.
		receipt = "RCPT-" + strings.ToUpper(uuid.NewString()[:8])
	}
	updates := map[string]interface{}{
		"status":         models.PaymentCompleted,
		"receipt_number": receipt,
	}
	if event.Data.InvoiceURL != "" {
		updates["invoice_url"] = event.Data.InvoiceURL
	}
	if err := p.updatePayment(event.Data.Ref, models.PaymentPending, updates); err != nil {
		return err
	}

	// A subscription's first confirmed charge is what activates the local
	// mirror; creation alone leaves it inactive.
	return p.db.Model(&models.User{}).
		Where("payment_subscription_id = ? AND subscription_status = ?",
			event.Data.Ref, models.SubscriptionInactive).
		Update("subscription_status", models.SubscriptionActive).Error
}

func (p *Processor) paymentFailed(event *Event) error {
	return p.updatePayment(event.Data.Ref, models.PaymentPending, map[string]interface{}{
		"status":         models.PaymentFailed,
		"failure_reason": event.Data.FailureReason,
	})
}

// updatePayment moves a payment out of fromStatus only; a payment already
// settled by an earlier event stays where it is.
func (p *Processor) updatePayment(providerRef, fromStatus string, updates map[string]interface{}) error {
	if providerRef == "" {
		return errors.New("event has no payment reference")
	}
	result := p.db.Model(&models.Payment{}).
		Where("provider_ref = ? AND status = ?", providerRef, fromStatus).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		log.Printf("webhook for %s matched no pending payment", providerRef)
	}
	return nil
}

func (p *Processor) subscriptionRenewed(event *Event) error {
	if event.Data.Ref == "" {
		return errors.New("event has no subscription reference")
	}

	var user models.User
	if err := p.db.Where("payment_subscription_id = ?", event.Data.Ref).First(&user).Error; err != nil {
		return fmt.Errorf("no user with subscription %s: %w", event.Data.Ref, err)
	}

	end := time.Now().AddDate(0, 1, 0)
	if event.Data.PeriodEnd != nil {
		end = *event.Data.PeriodEnd
	}

	return p.db.Model(&user).Updates(map[string]interface{}{
		"subscription_status":   models.SubscriptionActive,
		"subscription_end_date": end,
	}).Error
}

func (p *Processor) subscriptionCancelled(event *Event) error {
	if event.Data.Ref == "" {
		return errors.New("event has no subscription reference")
	}

	result := p.db.Model(&models.User{}).
		Where("payment_subscription_id = ?", event.Data.Ref).
		Updates(map[string]interface{}{
			"subscription_status":     models.SubscriptionCancelled,
			"payment_subscription_id": "",
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		log.Printf("cancellation webhook for %s matched no user", event.Data.Ref)
	}
	return nil
}
