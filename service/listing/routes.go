package listing

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/utils"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RegisterRoutes registers all listing routes. Browsing is public;
// creating and editing require a login.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	listingRouter := router.PathPrefix("/listings").Subrouter()

	listingRouter.HandleFunc("", h.ListListings).Methods("GET")
	listingRouter.HandleFunc("/{id:[0-9]+}", h.GetListing).Methods("GET")
	listingRouter.HandleFunc("", utils.AuthMiddleware(h.CreateListing)).Methods("POST")
	listingRouter.HandleFunc("/{id:[0-9]+}", utils.AuthMiddleware(h.UpdateListing)).Methods("PATCH")
	listingRouter.HandleFunc("/{id:[0-9]+}/availability", utils.AuthMiddleware(h.SetAvailability)).Methods("PATCH")
}

// ListFilter collects the supported search criteria.
type ListFilter struct {
	State      string
	District   string
	Crop       string
	MinSize    *decimal.Decimal
	MaxSize    *decimal.Decimal
	MaxRent    *decimal.Decimal
	IncludeAll bool
	Page       int
	PerPage    int
}

func parseFilter(r *http.Request) ListFilter {
	q := r.URL.Query()
	f := ListFilter{
		State:    q.Get("state"),
		District: q.Get("district"),
		Crop:     q.Get("crop"),
		Page:     1,
		PerPage:  10,
	}

	if v, err := decimal.NewFromString(q.Get("min_size")); err == nil {
		f.MinSize = &v
	}
	if v, err := decimal.NewFromString(q.Get("max_size")); err == nil {
		f.MaxSize = &v
	}
	if v, err := decimal.NewFromString(q.Get("max_rent")); err == nil {
		f.MaxRent = &v
	}
	if q.Get("include_unavailable") == "true" {
		f.IncludeAll = true
	}
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		f.Page = p
	}
	if pp, err := strconv.Atoi(q.Get("per_page")); err == nil && pp > 0 && pp <= 100 {
		f.PerPage = pp
	}
	return f
}

func (f ListFilter) apply(query *gorm.DB) *gorm.DB {
	if !f.IncludeAll {
		query = query.Where("is_available = ?", true)
	}
	if f.State != "" {
		query = query.Where("state = ?", f.State)
	}
	if f.District != "" {
		query = query.Where("district = ?", f.District)
	}
	if f.Crop != "" {
		query = query.Where("? = ANY(suitable_crops)", f.Crop)
	}
	if f.MinSize != nil {
		query = query.Where("size_in_acres >= ?", f.MinSize)
	}
	if f.MaxSize != nil {
		query = query.Where("size_in_acres <= ?", f.MaxSize)
	}
	if f.MaxRent != nil {
		query = query.Where("rent_per_acre <= ?", f.MaxRent)
	}
	return query
}

func (h *Handler) ListListings(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)

	query := filter.apply(h.db.Model(&models.LandListing{}))

	var totalItems int64
	query.Count(&totalItems)

	var listings []models.LandListing
	if err := query.Order("created_at DESC").
		Limit(filter.PerPage).Offset((filter.Page - 1) * filter.PerPage).
		Find(&listings).Error; err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "failed to retrieve listings", err))
		return
	}

	totalPages := int(math.Ceil(float64(totalItems) / float64(filter.PerPage)))
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"data": listings,
		"pagination": map[string]interface{}{
			"current_page": filter.Page,
			"per_page":     filter.PerPage,
			"total_items":  totalItems,
			"total_pages":  totalPages,
		},
	})
}

func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid listing ID"))
		return
	}

	var listing models.LandListing
	if err := h.db.Preload("Owner").First(&listing, id).Error; err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindNotFound, "listing not found"))
		return
	}

	respondWithJSON(w, http.StatusOK, listing)
}

func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	ownerID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "authentication required"))
		return
	}

	var owner models.User
	if err := h.db.First(&owner, ownerID).Error; err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "user not found"))
		return
	}
	if owner.Role == models.RoleFarmer {
		apierr.WriteJSON(w, apierr.New(apierr.KindForbidden, "only landowners can create listings"))
		return
	}

	var listing models.LandListing
	if err := json.NewDecoder(r.Body).Decode(&listing); err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid request body"))
		return
	}

	if listing.Title == "" || listing.State == "" {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "title and state are required"))
		return
	}
	if listing.SizeInAcres.LessThanOrEqual(decimal.Zero) {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "size_in_acres must be positive"))
		return
	}
	if listing.RentPerAcre.LessThanOrEqual(decimal.Zero) {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "rent_per_acre must be positive"))
		return
	}
	if listing.LeaseDurationMin <= 0 || listing.LeaseDurationMax < listing.LeaseDurationMin {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid lease duration range"))
		return
	}

	listing.OwnerID = ownerID
	listing.IsAvailable = true
	listing.IsVerified = false

	if err := h.db.Create(&listing).Error; err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "failed to create listing", err))
		return
	}

	respondWithJSON(w, http.StatusCreated, listing)
}

func (h *Handler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	listing, ok := h.loadOwnListing(w, r)
	if !ok {
		return
	}

	var req struct {
		Title           *string          `json:"title"`
		Description     *string          `json:"description"`
		RentPerAcre     *decimal.Decimal `json:"rent_per_acre"`
		SecurityDeposit *decimal.Decimal `json:"security_deposit"`
		SoilType        *string          `json:"soil_type"`
		Irrigation      *string          `json:"irrigation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid request body"))
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.RentPerAcre != nil {
		if req.RentPerAcre.LessThanOrEqual(decimal.Zero) {
			apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "rent_per_acre must be positive"))
			return
		}
		updates["rent_per_acre"] = *req.RentPerAcre
	}
	if req.SecurityDeposit != nil {
		updates["security_deposit"] = *req.SecurityDeposit
	}
	if req.SoilType != nil {
		updates["soil_type"] = *req.SoilType
	}
	if req.Irrigation != nil {
		updates["irrigation"] = *req.Irrigation
	}

	if len(updates) > 0 {
		if err := h.db.Model(listing).Updates(updates).Error; err != nil {
			apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "failed to update listing", err))
			return
		}
	}

	respondWithJSON(w, http.StatusOK, listing)
}

func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	listing, ok := h.loadOwnListing(w, r)
	if !ok {
		return
	}

	var req struct {
		IsAvailable *bool `json:"is_available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsAvailable == nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "is_available is required"))
		return
	}

	if err := h.db.Model(listing).Update("is_available", *req.IsAvailable).Error; err != nil {
		apierr.WriteJSON(w, apierr.Wrap(apierr.KindInternal, "failed to update availability", err))
		return
	}
	listing.IsAvailable = *req.IsAvailable

	respondWithJSON(w, http.StatusOK, listing)
}

func (h *Handler) loadOwnListing(w http.ResponseWriter, r *http.Request) (*models.LandListing, bool) {
	userID, err := utils.GetUserIDFromContext(r)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindUnauthorized, "authentication required"))
		return nil, false
	}

	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid listing ID"))
		return nil, false
	}

	var listing models.LandListing
	if err := h.db.First(&listing, id).Error; err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindNotFound, "listing not found"))
		return nil, false
	}
	if listing.OwnerID != userID {
		apierr.WriteJSON(w, apierr.New(apierr.KindForbidden, "not the owner of this listing"))
		return nil, false
	}
	return &listing, true
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
