package pricing

import (
	"errors"

	"github.com/Rajtiwari0202/AgriConnect-Platform/apierr"
	"github.com/Rajtiwari0202/AgriConnect-Platform/cmd/models"
	"gorm.io/gorm"
)

// PlanStore resolves subscription plans by state and tier. State rows are
// authoritative; a state without rows of its own falls back to the national
// plan set, which is seeded alongside the state plans.
type PlanStore struct {
	db *gorm.DB
}

func NewPlanStore(db *gorm.DB) *PlanStore {
	return &PlanStore{db: db}
}

// PlansForState returns all plans that apply to a state, falling back to the
// national set. A state with no rows and no national data is a data problem,
// reported as state_not_found.
func (s *PlanStore) PlansForState(state string) ([]models.SubscriptionPlan, error) {
	var plans []models.SubscriptionPlan
	if err := s.db.Where("state = ?", state).Order("tier").Find(&plans).Error; err != nil {
		return nil, err
	}
	if len(plans) > 0 {
		return plans, nil
	}

	if err := s.db.Where("state = ?", models.PlanScopeNational).Order("tier").Find(&plans).Error; err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, apierr.New(apierr.KindStateNotFound, "no pricing data for state "+state)
	}
	return plans, nil
}

// PlanFor resolves a single (state, tier) pair. A known state without the
// requested tier is a normal empty result, reported as plan_not_found so the
// caller may offer a default.
func (s *PlanStore) PlanFor(state, tier string) (*models.SubscriptionPlan, error) {
	plans, err := s.PlansForState(state)
	if err != nil {
		return nil, err
	}
	for i := range plans {
		if plans[i].Tier == tier {
			return &plans[i], nil
		}
	}
	return nil, apierr.New(apierr.KindPlanNotFound, "no "+tier+" plan for state "+state)
}

// NationalPlanForTier resolves a tier from the national set only.
func (s *PlanStore) NationalPlanForTier(tier string) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := s.db.Where("state = ? AND tier = ?", models.PlanScopeNational, tier).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.New(apierr.KindPlanNotFound, "no national "+tier+" plan")
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}
