package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Kind is a stable machine-readable error code surfaced to API clients.
type Kind string

const (
	KindValidation           Kind = "validation_error"
	KindNotFound             Kind = "not_found"
	KindUnauthorized         Kind = "unauthorized"
	KindForbidden            Kind = "forbidden"
	KindInvalidTransition    Kind = "invalid_state_transition"
	KindStateNotFound        Kind = "state_not_found"
	KindPlanNotFound         Kind = "plan_not_found"
	KindDivisionUndefined    Kind = "division_undefined"
	KindPaymentMethodMissing Kind = "payment_method_missing"
	KindProviderUnavailable  Kind = "provider_unavailable"
	KindProviderFailed       Kind = "provider_operation_failed"
	KindInvalidSignature     Kind = "invalid_signature"
	KindSubscriptionActive   Kind = "subscription_already_active"
	KindEscrowExists         Kind = "escrow_already_exists"
	KindInternal             Kind = "internal_error"
)

// Error carries a kind plus a human message across component boundaries.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors by kind so callers can use errors.Is with sentinel kinds.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from any error in the chain, defaulting to internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Status maps an error kind to its HTTP status code.
func Status(kind Kind) int {
	switch kind {
	case KindValidation, KindDivisionUndefined, KindPaymentMethodMissing:
		return http.StatusBadRequest
	case KindUnauthorized, KindInvalidSignature:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound, KindStateNotFound, KindPlanNotFound:
		return http.StatusNotFound
	case KindInvalidTransition, KindSubscriptionActive, KindEscrowExists:
		return http.StatusConflict
	case KindProviderUnavailable:
		return http.StatusServiceUnavailable
	case KindProviderFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the client may retry the failed operation as-is.
// Provider-side failures are transient; state and authorization errors are not.
func Retryable(kind Kind) bool {
	return kind == KindProviderUnavailable || kind == KindProviderFailed
}

type response struct {
	Error     string `json:"error"`
	Code      Kind   `json:"code"`
	Retryable bool   `json:"retryable"`
}

// WriteJSON renders an error as the standard API error envelope.
func WriteJSON(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	msg := err.Error()
	var e *Error
	if errors.As(err, &e) {
		msg = e.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(Status(kind))
	json.NewEncoder(w).Encode(response{Error: msg, Code: kind, Retryable: Retryable(kind)})
}
