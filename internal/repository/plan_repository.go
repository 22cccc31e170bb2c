package repository

import (
	"github.com/kimgyuhyun/ott-project-sub001/internal/models"

	"gorm.io/gorm"
)

type PlanRepository interface {
	GetByCode(code string) (*models.MembershipPlan, error)
	GetAllActive() ([]models.MembershipPlan, error)
	Create(plan *models.MembershipPlan) error
	Count() (int64, error)
}

type planRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

func (r *planRepository) GetByCode(code string) (*models.MembershipPlan, error) {
	var plan models.MembershipPlan
	err := r.db.Where("code = ?", code).First(&plan).Error
	return &plan, err
}

func (r *planRepository) GetAllActive() ([]models.MembershipPlan, error) {
	var plans []models.MembershipPlan
	err := r.db.Where("active = ?", true).Order("price ASC").Find(&plans).Error
	return plans, err
}

func (r *planRepository) Create(plan *models.MembershipPlan) error {
	return r.db.Create(plan).Error
}

func (r *planRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.MembershipPlan{}).Count(&count).Error
	return count, err
}
