package escrow

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/utils"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type Handler struct {
	db      *gorm.DB
	manager *Manager
}

func NewHandler(db *gorm.DB, manager *Manager) *Handler {
	return &Handler{db: db, manager: manager}
}

// RegisterRoutes registers all escrow routes. Funding an escrow is a pro
// feature; settling an existing one is not gated so a lapsed subscription
// can never strand held funds.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	escrowRouter := router.PathPrefix("/escrow").Subrouter()

	escrowRouter.HandleFunc("/hold",
		utils.AuthMiddleware(utils.RequireTier(h.db, models.TierPro, h.CreateHold))).Methods("POST")
	escrowRouter.HandleFunc("/{id:[0-9]+}/release", utils.AuthMiddleware(h.Release)).Methods("POST")
	escrowRouter.HandleFunc("/{id:[0-9]+}/refund", utils.AuthMiddleware(h.Refund)).Methods("POST")
	escrowRouter.HandleFunc("/{id:[0-9]+}", utils.AuthMiddleware(h.Get)).Methods("GET")
	escrowRouter.HandleFunc("", utils.AuthMiddleware(h.List)).Methods("GET")
}

func (h *Handler) CreateHold(w http.ResponseWriter, r *http.Request) {
	callerID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "authentication required"))
		return
	}

	var input HoldInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid request body"))
		return
	}
	if input.RequestID == 0 {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "request_id is required"))
		return
	}

	escrow, err := h.manager.CreateHold(r.Context(), callerID, input)
	if err != nil {
		apierr.WriteJSON(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, escrow)
}

func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.manager.Release)
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.manager.Refund)
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, escrowID, callerID uint) (*models.Escrow, error)) {
	callerID, escrowID, ok := callerAndID(w, r)
	if !ok {
		return
	}

	escrow, err := op(r.Context(), escrowID, callerID)
	if err != nil {
		apierr.WriteJSON(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, escrow)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	callerID, escrowID, ok := callerAndID(w, r)
	if !ok {
		return
	}

	escrow, err := h.manager.Get(escrowID, callerID)
	if err != nil {
		apierr.WriteJSON(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, escrow)
}

// List returns the caller's escrows, on either side of the table, with an
// optional status filter.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	callerID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "authentication required"))
		return
	}

	query := h.db.Model(&models.Escrow{}).
		Joins("JOIN rental_requests ON rental_requests.id = escrows.request_id").
		Where("rental_requests.farmer_id = ? OR rental_requests.land_owner_id = ?", callerID, callerID)
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("escrows.status = ?", status)
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

	var escrows []models.Escrow
	if err := query.Preload("Request").Order("escrows.created_at DESC").
		Limit(perPage).Offset((page - 1) * perPage).Find(&escrows).Error; err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "failed to retrieve escrows", err))
		return
	}

	totalPages := int(math.Ceil(float64(totalItems) / float64(perPage)))
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"data": escrows,
		"pagination": map[string]interface{}{
			"current_page": page,
			"per_page":     perPage,
			"total_items":  totalItems,
			"total_pages":  totalPages,
		},
	})
}

func callerAndID(w http.ResponseWriter, r *http.Request) (uint, uint, bool) {
	callerID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "authentication required"))
		return 0, 0, false
	}
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid escrow ID"))
		return 0, 0, false
	}
	return callerID, uint(id), true
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
