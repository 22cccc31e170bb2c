package seed

import (
	"github.com/kimgyuhyun/ott-project-sub001/internal/models"
	"github.com/kimgyuhyun/ott-project-sub001/internal/repository"
	"github.com/kimgyuhyun/ott-project-sub001/pkg/cache"
	"github.com/kimgyuhyun/ott-project-sub001/pkg/logger"
)

// EnsureDefaultPlans seeds the plan catalog on first boot. Prices are in the
// minor currency unit (KRW has none, so these are whole won).
func EnsureDefaultPlans(planRepo repository.PlanRepository, c *cache.Cache) {
	if planRepo == nil {
		return
	}

	count, err := planRepo.Count()
	if err != nil {
		logger.Error(err, "Failed to count membership plans", nil)
		return
	}
	if count > 0 {
		return
	}

	defaults := []models.MembershipPlan{
		{Code: "basic", Name: "Basic", Price: 9900, PeriodDays: 30, Active: true},
		{Code: "premium", Name: "Premium", Price: 14900, PeriodDays: 30, Active: true},
	}

	for _, plan := range defaults {
		plan := plan
		if err := planRepo.Create(&plan); err != nil {
			logger.Error(err, "Failed to seed membership plan", map[string]interface{}{
				"code": plan.Code,
			})
		}
	}

	if c != nil {
		_ = c.InvalidatePlans()
	}

	logger.Info("Seeded default membership plans", map[string]interface{}{
		"count": len(defaults),
	})
}
