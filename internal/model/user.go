package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents an account inside a tenant. A nil TenantID denotes a
// system-level user (role system_admin) outside every tenant's scope.
// Email is unique per tenant, not globally.
type User struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID     *uuid.UUID     `json:"tenant_id" gorm:"type:uuid;index;uniqueIndex:idx_users_tenant_email"`
	Email        string         `json:"email" gorm:"type:varchar(255);not null;uniqueIndex:idx_users_tenant_email"`
	PasswordHash string         `json:"-" gorm:"type:varchar(255);not null"`
	FullName     string         `json:"full_name" gorm:"type:varchar(255);not null"`
	Role         string         `json:"role" gorm:"type:varchar(50);not null;default:'member'"`
	Active       bool           `json:"active" gorm:"not null;default:true"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
