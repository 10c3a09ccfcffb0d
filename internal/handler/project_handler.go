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

// ProjectHandler serves tenant-scoped project management
type ProjectHandler struct {
	db    *gorm.DB
	audit *audit.Recorder
}

// NewProjectHandler creates a ProjectHandler
func NewProjectHandler(db *gorm.DB, recorder *audit.Recorder) *ProjectHandler {
	return &ProjectHandler{db: db, audit: recorder}
}

// Create adds a project under the caller's tenant; tenant_admin only.
// The max_projects pre-check and the insert are separate statements, so
// concurrent creations can jointly exceed the limit.
func (h *ProjectHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("project", "create")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpProjectCreate, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	var req struct {
		Name        string `json:"name" validate:"required,max=255"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, apperr.Validation("name is required"))
	}

	tenantID := *identity.TenantID

	var tenant model.Tenant
	if result := h.db.First(&tenant, "id = ?", tenantID); result.Error != nil {
		return respondError(c, storeError(result.Error, "tenant"))
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var count int64
	if result := h.db.Model(&model.Project{}).Where("tenant_id = ?", tenantID).Count(&count); result.Error != nil {
		return respondError(c, apperr.Internal("database error", result.Error))
	}
	if count >= int64(tenant.MaxProjects) {
		log.Error("Project quota exceeded",
			zap.String("tenant_id", tenantID.String()),
			zap.Int64("count", count),
			zap.Int("max_projects", tenant.MaxProjects))
		prometheus.RecordQuotaRejection("project")
		return respondError(c, apperr.QuotaExceeded("project limit reached for the current plan"))
	}

	// Tenant ownership always comes from the authenticated identity,
	// never from the request body
	project := model.Project{
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Status:      model.ProjectStatusActive,
		CreatedBy:   &identity.UserID,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := h.db.Create(&project); result.Error != nil {
		log.Error("Failed to create project", zap.Error(result.Error))
		return respondError(c, apperr.Internal("project creation failed", result.Error))
	}

	h.audit.Record(&tenantID, &identity.UserID, audit.ActionCreate, "project", project.ID.String(), c.RealIP())

	log.Info("Project created",
		zap.String("project_id", project.ID.String()),
		zap.String("name", project.Name))

	return respond(c, http.StatusCreated, project)
}

// List returns the projects of the caller's tenant, optionally filtered
// by status
func (h *ProjectHandler) List(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("project", "list")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpProjectList, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	query := h.db.Where("tenant_id = ?", *identity.TenantID)
	if status := c.QueryParam("status"); status != "" {
		if !model.ValidProjectStatus(status) {
			return respondError(c, apperr.Validation("invalid project status"))
		}
		query = query.Where("status = ?", status)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var projects []model.Project
	if result := query.Order("created_at").Find(&projects); result.Error != nil {
		log.Error("Failed to list projects", zap.Error(result.Error))
		return respondError(c, apperr.Internal("database error", result.Error))
	}

	return respond(c, http.StatusOK, projects)
}

// Get returns one project of the caller's tenant
func (h *ProjectHandler) Get(c echo.Context) error {
	prometheus.RecordResourceOperation("project", "read")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpProjectRead, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var project model.Project
	if result := h.db.Where("id = ? AND tenant_id = ?", id, *identity.TenantID).First(&project); result.Error != nil {
		return respondError(c, storeError(result.Error, "project"))
	}

	return respond(c, http.StatusOK, project)
}

// Update mutates a project of the caller's tenant; tenant_admin only
func (h *ProjectHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("project", "update")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpProjectUpdate, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request"))
	}

	var project model.Project
	if result := h.db.Where("id = ? AND tenant_id = ?", id, *identity.TenantID).First(&project); result.Error != nil {
		return respondError(c, storeError(result.Error, "project"))
	}

	updates := map[string]interface{}{}
	if req.Name != nil && *req.Name != "" {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		if !model.ValidProjectStatus(*req.Status) {
			return respondError(c, apperr.Validation("invalid project status"))
		}
		updates["status"] = *req.Status
	}
	if len(updates) == 0 {
		return respondError(c, apperr.Validation("no updatable fields provided"))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := h.db.Model(&project).Updates(updates); result.Error != nil {
		log.Error("Failed to update project", zap.Error(result.Error))
		return respondError(c, apperr.Internal("database error", result.Error))
	}

	h.audit.Record(identity.TenantID, &identity.UserID, audit.ActionUpdate, "project", project.ID.String(), c.RealIP())

	log.Info("Project updated", zap.String("project_id", project.ID.String()))
	return respond(c, http.StatusOK, project)
}

// Delete removes a project and its tasks in one transaction;
// tenant_admin only
func (h *ProjectHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("project", "delete")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpProjectDelete, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var project model.Project
	if result := h.db.Where("id = ? AND tenant_id = ?", id, *identity.TenantID).First(&project); result.Error != nil {
		return respondError(c, storeError(result.Error, "project"))
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if result := tx.Where("project_id = ? AND tenant_id = ?", id, *identity.TenantID).Delete(&model.Task{}); result.Error != nil {
			return result.Error
		}
		if result := tx.Delete(&project); result.Error != nil {
			return result.Error
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to delete project", zap.Error(err))
		return respondError(c, apperr.Internal("database error", err))
	}

	h.audit.Record(identity.TenantID, &identity.UserID, audit.ActionDelete, "project", project.ID.String(), c.RealIP())

	log.Info("Project deleted", zap.String("project_id", project.ID.String()))
	return respondMessage(c, http.StatusOK, "project deleted")
}
