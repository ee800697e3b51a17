package rental

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/utils"
	"github.com/Rajtiwari0202/AgriConnect-Platform/service/notifications"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaginatedResponse represents the standard paginated API response structure
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
	Error      string         `json:"error,omitempty"`
}

// PaginationMeta contains pagination metadata
type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	HasPrevious bool  `json:"has_previous"`
	HasNext     bool  `json:"has_next"`
}

type RequestHandler struct {
	db       *gorm.DB
	notifier *notifications.Notifier
}

func NewRequestHandler(db *gorm.DB, notifier *notifications.Notifier) *RequestHandler {
	return &RequestHandler{db: db, notifier: notifier}
}

// RegisterRoutes registers all rental request routes
func (h *RequestHandler) RegisterRoutes(router *mux.Router) {
	requestRouter := router.PathPrefix("/requests").Subrouter()

	requestRouter.HandleFunc("", utils.AuthMiddleware(h.CreateRequest)).Methods("POST")
	requestRouter.HandleFunc("/{id:[0-9]+}", utils.AuthMiddleware(h.GetRequest)).Methods("GET")
	requestRouter.HandleFunc("/{id:[0-9]+}/accept", utils.AuthMiddleware(h.AcceptRequest)).Methods("POST")
	requestRouter.HandleFunc("/{id:[0-9]+}/reject", utils.AuthMiddleware(h.RejectRequest)).Methods("POST")
	requestRouter.HandleFunc("/{id:[0-9]+}/cancel", utils.AuthMiddleware(h.CancelRequest)).Methods("POST")
	requestRouter.HandleFunc("/{id:[0-9]+}/complete", utils.AuthMiddleware(h.CompleteRequest)).Methods("POST")
	requestRouter.HandleFunc("/{id:[0-9]+}/terms", utils.AuthMiddleware(h.UpdateTerms)).Methods("PATCH")
	requestRouter.HandleFunc("/farmer/{userID:[0-9]+}", utils.AuthMiddleware(h.GetFarmerRequests)).Methods("GET")
	requestRouter.HandleFunc("/owner/{userID:[0-9]+}", utils.AuthMiddleware(h.GetOwnerRequests)).Methods("GET")
}

type createRequestBody struct {
	ListingID              uint            `json:"listing_id"`
	Message                string          `json:"message"`
	ProposedStartDate      *time.Time      `json:"proposed_start_date"`
	ProposedDurationMonths int             `json:"proposed_duration_months"`
	ProposedRentPerAcre    decimal.Decimal `json:"proposed_rent_per_acre"`
}

// CreateRequest opens a tenancy proposal against an available listing.
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	farmerID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "authentication required"))
		return
	}

	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid request body"))
		return
	}
	if body.ListingID == 0 {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "listing_id is required"))
		return
	}

	var listing models.LandListing
	if err := h.db.First(&listing, body.ListingID).Error; err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindNotFound, "listing not found"))
		return
	}
	if !listing.IsAvailable {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "listing is not available"))
		return
	}
	if listing.OwnerID == farmerID {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "cannot request your own listing"))
		return
	}

	request := models.RentalRequest{
		ListingID:              listing.ID,
		FarmerID:               farmerID,
		LandOwnerID:            listing.OwnerID,
		Status:                 models.RequestPending,
		Message:                body.Message,
		ProposedStartDate:      body.ProposedStartDate,
		ProposedDurationMonths: body.ProposedDurationMonths,
		ProposedRentPerAcre:    body.ProposedRentPerAcre,
	}

	if err := h.db.Create(&request).Error; err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "failed to create request", err))
		return
	}

	h.notifier.Notify(listing.OwnerID, "New tenancy request",
		"A farmer has requested to rent "+listing.Title,
		map[string]string{"request_id": strconv.FormatUint(uint64(request.ID), 10)})

	h.respondWithJSON(w, http.StatusCreated, request)
}

// GetRequest returns a request to one of its participants.
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	request, _, ok := h.loadRequestForParticipant(w, r)
	if !ok {
		return
	}

	h.respondWithJSON(w, http.StatusOK, request)
}

// AcceptRequest is the landowner's approval of a pending proposal.
func (h *RequestHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	request, userID, ok := h.loadRequestForParticipant(w, r)
	if !ok {
		return
	}
	if userID != request.LandOwnerID {
		apierr.WriteJSON(w, apierr.New(apierr.KindForbidden, "only the landowner can accept a request"))
		return
	}
	if err := CheckTransition(request.Status, models.RequestAccepted); err != nil {
		apierr.WriteJSON(w, err)
		return
	}

	var body struct {
		OwnerResponse string `json:"owner_response"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	now := time.Now()
	request.Status = models.RequestAccepted
	request.OwnerResponse = body.OwnerResponse
	request.RespondedAt = &now

	if err := h.db.Save(request).Error; err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "failed to accept request", err))
		return
	}

	h.notifier.Notify(request.FarmerID, "Request accepted",
		"Your tenancy request was accepted. You can now set up the escrow deposit.",
		map[string]string{"request_id": strconv.FormatUint(uint64(request.ID), 10)})

	h.respondWithJSON(w, http.StatusOK, request)
}

// RejectRequest declines a pending proposal; a reason is mandatory.
func (h *RequestHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	request, userID, ok := h.loadRequestForParticipant(w, r)
	if !ok {
		return
	}
	if userID != request.LandOwnerID {
		apierr.WriteJSON(w, apierr.New(apierr.KindForbidden, "only the landowner can reject a request"))
		return
	}

	var body struct {
		RejectionReason string `json:"rejection_reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RejectionReason == "" {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "rejection_reason is required"))
		return
	}

	if err := CheckTransition(request.Status, models.RequestRejected); err != nil {
		apierr.WriteJSON(w, err)
		return
	}

	now := time.Now()
	request.Status = models.RequestRejected
	request.RejectionReason = body.RejectionReason
	request.RespondedAt = &now

	if err := h.db.Save(request).Error; err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "failed to reject request", err))
		return
	}

	h.notifier.Notify(request.FarmerID, "Request rejected", body.RejectionReason,
		map[string]string{"request_id": strconv.FormatUint(uint64(request.ID), 10)})

	h.respondWithJSON(w, http.StatusOK, request)
}

// CancelRequest withdraws a proposal while no money is held. Once the
// request is in escrow the financial unwind has to go through the escrow
// refund endpoint instead.
func (h *RequestHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	request, _, ok := h.loadRequestForParticipant(w, r)
	if !ok {
		return
	}

	if request.Status == models.RequestInEscrow {
		apierr.WriteJSON(w, apierr.New(apierr.KindInvalidTransition,
			"request is in escrow; refund the escrow to cancel"))
		return
	}
	if request.Status != models.RequestPending && request.Status != models.RequestAccepted {
		apierr.WriteJSON(w, apierr.New(apierr.KindInvalidTransition,
			"cannot move request from "+request.Status+" to "+models.RequestCancelled))
		return
	}

	request.Status = models.RequestCancelled
	if err := h.db.Save(request).Error; err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "failed to cancel request", err))
		return
	}

	h.respondWithJSON(w, http.StatusOK, request)
}

// CompleteRequest marks the end of the lease term.
func (h *RequestHandler) CompleteRequest(w http.ResponseWriter, r *http.Request) {
	request, _, ok := h.loadRequestForParticipant(w, r)
	if !ok {
		return
	}
	if err := CheckTransition(request.Status, models.RequestCompleted); err != nil {
		apierr.WriteJSON(w, err)
		return
	}

	now := time.Now()
	request.Status = models.RequestCompleted
	request.CompletedAt = &now

	if err := h.db.Save(request).Error; err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "failed to complete request", err))
		return
	}

	h.respondWithJSON(w, http.StatusOK, request)
}

// UpdateTerms renegotiates the proposed terms. Terms freeze at escrow-hold
// creation; after that this endpoint always rejects.
func (h *RequestHandler) UpdateTerms(w http.ResponseWriter, r *http.Request) {
	request, _, ok := h.loadRequestForParticipant(w, r)
	if !ok {
		return
	}
	if request.TermsLocked() {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "contract terms are locked"))
		return
	}
	if request.Status != models.RequestPending && request.Status != models.RequestAccepted {
		apierr.WriteJSON(w, apierr.New(apierr.KindInvalidTransition,
			"terms can only change while the request is pending or accepted"))
		return
	}

	var body struct {
		ProposedRentPerAcre    *decimal.Decimal `json:"proposed_rent_per_acre"`
		ProposedStartDate      *time.Time       `json:"proposed_start_date"`
		ProposedDurationMonths *int             `json:"proposed_duration_months"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid request body"))
		return
	}

	if body.ProposedRentPerAcre != nil {
		request.ProposedRentPerAcre = *body.ProposedRentPerAcre
	}
	if body.ProposedStartDate != nil {
		request.ProposedStartDate = body.ProposedStartDate
	}
	if body.ProposedDurationMonths != nil {
		request.ProposedDurationMonths = *body.ProposedDurationMonths
	}

	if err := h.db.Save(request).Error; err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "failed to update terms", err))
		return
	}

	h.respondWithJSON(w, http.StatusOK, request)
}

// GetFarmerRequests lists requests created by a farmer.
func (h *RequestHandler) GetFarmerRequests(w http.ResponseWriter, r *http.Request) {
	h.listRequests(w, r, "farmer_id")
}

// GetOwnerRequests lists requests received by a landowner.
func (h *RequestHandler) GetOwnerRequests(w http.ResponseWriter, r *http.Request) {
	h.listRequests(w, r, "land_owner_id")
}

func (h *RequestHandler) listRequests(w http.ResponseWriter, r *http.Request, column string) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["userID"], 10, 32)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid user ID"))
		return
	}

	query := h.db.Model(&models.RentalRequest{}).Where(column+" = ?", uint(userID))
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	page, perPage := parsePagination(r)
	offset := (page - 1) * perPage

	var totalItems int64
	query.Count(&totalItems)

	var requests []models.RentalRequest
	if err := query.Preload("Listing").Order("created_at DESC").
		Limit(perPage).Offset(offset).Find(&requests).Error; err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "failed to retrieve requests", err))
		return
	}

	totalPages := int(math.Ceil(float64(totalItems) / float64(perPage)))
	h.respondWithJSON(w, http.StatusOK, PaginatedResponse{
		Data: requests,
		Pagination: PaginationMeta{
			CurrentPage: page,
			PerPage:     perPage,
			TotalItems:  totalItems,
			TotalPages:  totalPages,
			HasPrevious: page > 1,
			HasNext:     page < totalPages,
		},
	})
}

func (h *RequestHandler) loadRequestForParticipant(w http.ResponseWriter, r *http.Request) (*models.RentalRequest, uint, bool) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "authentication required"))
		return nil, 0, false
	}

	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid request ID"))
		return nil, 0, false
	}

	var request models.RentalRequest
	if err := h.db.First(&request, id).Error; err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindNotFound, "rental request not found"))
		return nil, 0, false
	}
	if !request.IsParticipant(userID) {
		apierr.WriteJSON(w, apierr.New(apierr.KindForbidden, "not authorized for this request"))
		return nil, 0, false
	}
	return &request, userID, true
}

func parsePagination(r *http.Request) (int, int) {
	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	perPage := 10
	if pp, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && pp > 0 {
		if pp > 100 {
			pp = 100
		}
		perPage = pp
	}
	return page, perPage
}

func (h *RequestHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
