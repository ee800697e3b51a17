package payments

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"

	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/utils"
	"github.com/Rajtiwari0202/AgriConnect-Platform/gateway"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type Handler struct {
	db           *gorm.DB
	orchestrator *Orchestrator
	processor    *Processor
}

func NewHandler(db *gorm.DB, orchestrator *Orchestrator) *Handler {
	return &Handler{
		db:           db,
		orchestrator: orchestrator,
		processor:    NewProcessor(db),
	}
}

// RegisterRoutes registers all payment routes. The webhook endpoint is
// authenticated by signature, not JWT; the provider is not a logged-in user.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	paymentRouter := router.PathPrefix("/payments").Subrouter()

	paymentRouter.HandleFunc("/intent", utils.AuthMiddleware(h.CreateIntent)).Methods("POST")
	paymentRouter.HandleFunc("/subscriptions", utils.AuthMiddleware(h.CreateSubscription)).Methods("POST")
	paymentRouter.HandleFunc("/subscriptions", utils.AuthMiddleware(h.CancelSubscription)).Methods("DELETE")
	paymentRouter.HandleFunc("/history", utils.AuthMiddleware(h.GetHistory)).Methods("GET")
	paymentRouter.HandleFunc("/webhook", h.Webhook).Methods("POST")
}

func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "authentication required"))
		return
	}

	var input IntentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid request body"))
		return
	}

	result, err := h.orchestrator.CreateIntent(r.Context(), userID, input)
	if err != nil {
		apierr.WriteJSON(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "authentication required"))
		return
	}

	var input SubscribeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid request body"))
		return
	}

	result, err := h.orchestrator.CreateSubscription(r.Context(), userID, input)
	if err != nil {
		apierr.WriteJSON(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "authentication required"))
		return
	}

	user, err := h.orchestrator.CancelSubscription(r.Context(), userID)
	if err != nil {
		apierr.WriteJSON(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":               "Subscription cancelled",
		"subscription_status":   user.SubscriptionStatus,
		"subscription_end_date": user.SubscriptionEndDate,
	})
}

// GetHistory returns the caller's payments, newest first, with an optional
// status filter.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "authentication required"))
		return
	}

	query := h.db.Model(&models.Payment{}).Where("user_id = ?", userID)
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	perPage := 10
	if pp, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && pp > 0 && pp <= 100 {
		perPage = pp
	}

	var totalItems int64
	query.Count(&totalItems)

	var payments []models.Payment
	if err := query.Order("created_at DESC").
		Limit(perPage).Offset((page - 1) * perPage).Find(&payments).Error; err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "failed to retrieve payments", err))
		return
	}

	totalPages := int(math.Ceil(float64(totalItems) / float64(perPage)))
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"data": payments,
		"pagination": map[string]interface{}{
			"current_page": page,
			"per_page":     perPage,
			"total_items":  totalItems,
			"total_pages":  totalPages,
		},
	})
}

// Webhook receives provider notifications. The HMAC signature is checked
// against the raw body before anything is parsed.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "unreadable request body"))
		return
	}

	signature := r.Header.Get("X-Webhook-Signature")
	secret := os.Getenv("PAYMENT_WEBHOOK_SECRET")
	if !gateway.VerifyWebhookSignature(payload, signature, secret) {
		apierr.WriteJSON(w, apierr.New(apierr.KindInvalidSignature, "webhook signature verification failed"))
		return
	}

	if err := h.processor.Process(payload); err != nil {
		apierr.WriteJSON(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
