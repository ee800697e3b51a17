package pricing

import (
	"encoding/json"
	"net/http"

	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// Response is a standardized API response structure
type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Meta  interface{} `json:"meta,omitempty"`
	Error string      `json:"error,omitempty"`
}

type PricingHandler struct {
	db    *gorm.DB
	store *PlanStore
}

func NewPricingHandler(db *gorm.DB) *PricingHandler {
	return &PricingHandler{db: db, store: NewPlanStore(db)}
}

// RegisterRoutes registers all pricing routes. Pricing is read-only and
// deliberately unauthenticated so the marketing pages can preview prices.
func (h *PricingHandler) RegisterRoutes(router *mux.Router) {
	pricingRouter := router.PathPrefix("/pricing").Subrouter()

	pricingRouter.HandleFunc("/calculate", h.CalculatePrice).Methods("POST")
	pricingRouter.HandleFunc("/compare", h.ComparePlans).Methods("GET")
	pricingRouter.HandleFunc("/economics/{state}", h.GetStateEconomics).Methods("GET")
	pricingRouter.HandleFunc("/{state}", h.GetStatePlans).Methods("GET")
}

// GetStatePlans returns the plans applicable to a state, including the
// national fallback when the state has no dedicated pricing.
func (h *PricingHandler) GetStatePlans(w http.ResponseWriter, r *http.Request) {
	state := mux.Vars(r)["state"]

	plans, err := h.store.PlansForState(state)
	if err != nil {
		apierr.WriteJSON(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, Response{Data: plans})
}

type calculateRequest struct {
	State string `json:"state"`
	Tier  string `json:"tier"`
	Applicant
}

type calculateResponse struct {
	OriginalPrice      int64                   `json:"original_price"`
	FinalPrice         int64                   `json:"final_price"`
	Discounts          []Discount              `json:"discounts"`
	Plan               models.SubscriptionPlan `json:"plan"`
	AffordabilityRatio *float64                `json:"affordability_ratio"`
}

// CalculatePrice computes the effective price for an applicant without
// persisting anything.
func (h *PricingHandler) CalculatePrice(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "invalid request body"))
		return
	}
	if req.State == "" || req.Tier == "" {
		apierr.WriteJSON(w, apierr.New(apierr.KindValidation, "state and tier are required"))
		return
	}

	plan, err := h.store.PlanFor(req.State, req.Tier)
	if err != nil {
		apierr.WriteJSON(w, err)
		return
	}

	quote := CalculatePrice(*plan, req.Applicant)

	resp := calculateResponse{
		OriginalPrice: quote.OriginalPrice,
		FinalPrice:    quote.FinalPrice,
		Discounts:     quote.Discounts,
		Plan:          *plan,
	}
	// Never divide by a missing income figure; an unknown ratio is null.
	if quote.AffordabilityKnown {
		resp.AffordabilityRatio = &quote.AffordabilityRatio
	}

	h.respondWithJSON(w, http.StatusOK, Response{Data: resp})
}

type planComparison struct {
	models.SubscriptionPlan
	YearlySavings           int64 `json:"yearly_savings"`
	YearlySavingsPercentage int   `json:"yearly_savings_percentage"`
}

// ComparePlans returns the national plan set with yearly-savings figures.
func (h *PricingHandler) ComparePlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.store.PlansForState(models.PlanScopeNational)
	if err != nil {
		apierr.WriteJSON(w, err)
		return
	}

	comparisons := make([]planComparison, 0, len(plans))
	for _, plan := range plans {
		comparisons = append(comparisons, planComparison{
			SubscriptionPlan:        plan,
			YearlySavings:           YearlySavings(plan),
			YearlySavingsPercentage: YearlySavingsPercentage(plan),
		})
	}

	h.respondWithJSON(w, http.StatusOK, Response{Data: comparisons})
}

type tierAffordability struct {
	Tier               string   `json:"tier"`
	MonthlyPrice       int64    `json:"monthly_price"`
	AffordabilityRatio *float64 `json:"affordability_ratio"`
}

// GetStateEconomics reports per-tier affordability for a state, the figure
// the economics dashboard charts.
func (h *PricingHandler) GetStateEconomics(w http.ResponseWriter, r *http.Request) {
	state := mux.Vars(r)["state"]

	plans, err := h.store.PlansForState(state)
	if err != nil {
		apierr.WriteJSON(w, err)
		return
	}

	rows := make([]tierAffordability, 0, len(plans))
	for _, plan := range plans {
		quote := CalculatePrice(plan, Applicant{})
		row := tierAffordability{Tier: plan.Tier, MonthlyPrice: plan.MonthlyPrice}
		if quote.AffordabilityKnown {
			row.AffordabilityRatio = &quote.AffordabilityRatio
		}
		rows = append(rows, row)
	}

	h.respondWithJSON(w, http.StatusOK, Response{
		Data: rows,
		Meta: map[string]interface{}{"state": state},
	})
}

// Helper function to respond with JSON
func (h *PricingHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
