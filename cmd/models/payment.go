package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

const (
	PurposeSubscription = "subscription"
	PurposeDeposit      = "deposit"
	PurposeRent         = "rent"
	PurposeCommission   = "commission"
)

// Payment mirrors a single provider-facing monetary operation. Rows advance
// out of pending only on confirmed provider outcomes, normally delivered by
// webhook.
type Payment struct {
	gorm.Model
	UserID uint `gorm:"column:user_id;not null;index" json:"user_id"`

	// Amount in paise.
	Amount   int64  `gorm:"column:amount;not null" json:"amount"`
	Currency string `gorm:"column:currency;size:10;default:INR" json:"currency"`

	Purpose string `gorm:"column:purpose;size:50;not null" json:"purpose"`
	// one_time or recurring
	Type   string `gorm:"column:type;size:50;not null" json:"type"`
	Status string `gorm:"column:status;size:50;not null;index" json:"status"`
	Method string `gorm:"column:method;size:50" json:"method,omitempty"`

	ProviderRef   string `gorm:"column:provider_ref;size:255;uniqueIndex" json:"provider_ref"`
	ReceiptNumber string `gorm:"column:receipt_number;size:100" json:"receipt_number,omitempty"`
	InvoiceURL    string `gorm:"column:invoice_url;size:500" json:"invoice_url,omitempty"`
	FailureReason string `gorm:"column:failure_reason;type:text" json:"failure_reason,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// WebhookEvent records every provider notification by its provider-assigned
// event id. The unique index is what makes webhook replays no-ops.
type WebhookEvent struct {
	gorm.Model
	Provider        string     `gorm:"column:provider;size:50;not null;uniqueIndex:idx_webhook_provider_event" json:"provider"`
	ProviderEventID string     `gorm:"column:provider_event_id;size:255;not null;uniqueIndex:idx_webhook_provider_event" json:"provider_event_id"`
	EventType       string     `gorm:"column:event_type;size:100;not null" json:"event_type"`
	Payload         string     `gorm:"column:payload;type:text" json:"-"`
	ProcessedAt     *time.Time `gorm:"column:processed_at" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"column:processing_error;type:text" json:"processing_error,omitempty"`
}
