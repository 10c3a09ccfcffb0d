package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"taskboard/internal/apperr"
	"taskboard/internal/audit"
	"taskboard/internal/authz"
	"taskboard/internal/model"
	"taskboard/pkg/logger"
	"taskboard/prometheus"
)

// TenantHandler serves tenant administration
type TenantHandler struct {
	db    *gorm.DB
	audit *audit.Recorder
}

// NewTenantHandler creates a TenantHandler
func NewTenantHandler(db *gorm.DB, recorder *audit.Recorder) *TenantHandler {
	return &TenantHandler{db: db, audit: recorder}
}

// List returns all tenants; system scope only
func (h *TenantHandler) List(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("tenant", "list")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpTenantList, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var tenants []model.Tenant
	if result := h.db.Order("created_at").Find(&tenants); result.Error != nil {
		log.Error("Failed to list tenants", zap.Error(result.Error))
		return respondError(c, apperr.Internal("database error", result.Error))
	}

	return respond(c, http.StatusOK, tenants)
}

// Get returns one tenant: any for system_admin, own only for tenant_admin
func (h *TenantHandler) Get(c echo.Context) error {
	prometheus.RecordResourceOperation("tenant", "read")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpTenantRead, &id); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var tenant model.Tenant
	if result := h.db.First(&tenant, "id = ?", id); result.Error != nil {
		return respondError(c, storeError(result.Error, "tenant"))
	}

	return respond(c, http.StatusOK, tenant)
}

// Update mutates a tenant. system_admin may change name, status, plan and
// limits of any tenant; a tenant_admin only their own tenant's name.
func (h *TenantHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("tenant", "update")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpTenantUpdate, &id); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	var req struct {
		Name        *string `json:"name"`
		Status      *string `json:"status"`
		Plan        *string `json:"plan"`
		MaxUsers    *int    `json:"max_users"`
		MaxProjects *int    `json:"max_projects"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request"))
	}

	var tenant model.Tenant
	if result := h.db.First(&tenant, "id = ?", id); result.Error != nil {
		return respondError(c, storeError(result.Error, "tenant"))
	}

	updates := map[string]interface{}{}
	if req.Name != nil && *req.Name != "" {
		updates["name"] = *req.Name
	}

	// Status, plan and limits are system-level concerns
	if req.Status != nil || req.Plan != nil || req.MaxUsers != nil || req.MaxProjects != nil {
		if !identity.IsSystem() {
			prometheus.RecordAuthError("forbidden")
			return respondError(c, apperr.Authorization("plan and status changes require system scope"))
		}
		if req.Status != nil {
			if !model.ValidTenantStatus(*req.Status) {
				return respondError(c, apperr.Validation("invalid tenant status"))
			}
			updates["status"] = *req.Status
		}
		if req.Plan != nil {
			if !model.ValidPlan(*req.Plan) {
				return respondError(c, apperr.Validation("invalid subscription plan"))
			}
			updates["subscription_plan"] = *req.Plan
		}
		if req.MaxUsers != nil {
			if *req.MaxUsers < 1 {
				return respondError(c, apperr.Validation("max_users must be positive"))
			}
			updates["max_users"] = *req.MaxUsers
		}
		if req.MaxProjects != nil {
			if *req.MaxProjects < 1 {
				return respondError(c, apperr.Validation("max_projects must be positive"))
			}
			updates["max_projects"] = *req.MaxProjects
		}
	}

	if len(updates) == 0 {
		return respondError(c, apperr.Validation("no updatable fields provided"))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := h.db.Model(&tenant).Updates(updates); result.Error != nil {
		log.Error("Failed to update tenant", zap.Error(result.Error))
		return respondError(c, apperr.Internal("database error", result.Error))
	}

	h.audit.Record(&tenant.ID, &identity.UserID, audit.ActionUpdate, "tenant", tenant.ID.String(), c.RealIP())

	log.Info("Tenant updated", zap.String("tenant_id", tenant.ID.String()))
	return respond(c, http.StatusOK, tenant)
}

// Delete removes a tenant and everything it owns in one transaction;
// system scope only
func (h *TenantHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("tenant", "delete")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpTenantDelete, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	var tenant model.Tenant
	if result := h.db.First(&tenant, "id = ?", id); result.Error != nil {
		return respondError(c, storeError(result.Error, "tenant"))
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if result := tx.Where("tenant_id = ?", id).Delete(&model.Task{}); result.Error != nil {
			return result.Error
		}
		if result := tx.Where("tenant_id = ?", id).Delete(&model.Project{}); result.Error != nil {
			return result.Error
		}
		if result := tx.Where("tenant_id = ?", id).Delete(&model.User{}); result.Error != nil {
			return result.Error
		}
		if result := tx.Delete(&tenant); result.Error != nil {
			return result.Error
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to delete tenant", zap.Error(err))
		return respondError(c, apperr.Internal("database error", err))
	}

	h.audit.Record(&id, &identity.UserID, audit.ActionDelete, "tenant", id.String(), c.RealIP())

	log.Info("Tenant deleted", zap.String("tenant_id", id.String()))
	return respondMessage(c, http.StatusOK, "tenant deleted")
}
