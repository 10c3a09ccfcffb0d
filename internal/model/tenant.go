package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tenant statuses
const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
)

// Subscription plans
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// Tenant represents an isolated customer organization. Every tenant-owned
// row carries the tenant id; queries are always qualified by it.
type Tenant struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string         `json:"name" gorm:"type:varchar(255);not null"`
	Subdomain   string         `json:"subdomain" gorm:"type:varchar(255);uniqueIndex;not null"`
	Status      string         `json:"status" gorm:"type:varchar(50);not null;default:'active'"`
	Plan        string         `json:"plan" gorm:"column:subscription_plan;type:varchar(50);not null;default:'free'"`
	MaxUsers    int            `json:"max_users" gorm:"not null;default:5"`
	MaxProjects int            `json:"max_projects" gorm:"not null;default:3"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// ValidPlan reports whether p is a known subscription plan
func ValidPlan(p string) bool {
	switch p {
	case PlanFree, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// ValidTenantStatus reports whether s is a known tenant status
func ValidTenantStatus(s string) bool {
	return s == TenantStatusActive || s == TenantStatusSuspended
}
