package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"taskboard/internal/apperr"
	"taskboard/internal/authz"
	"taskboard/internal/model"
	"taskboard/pkg/logger"
	"taskboard/prometheus"
)

// DashboardHandler serves aggregate counts whose shape depends on the
// caller's role
type DashboardHandler struct {
	db *gorm.DB
}

// NewDashboardHandler creates a DashboardHandler
func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

// Stats returns system-wide tenant counts for system_admin and
// tenant-scoped project/task counts for everyone else
func (h *DashboardHandler) Stats(c echo.Context) error {
	log := logger.FromContext(c)

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpDashboardView, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	if identity.IsSystem() {
		stats, err := h.systemStats()
		if err != nil {
			log.Error("Failed to compute system stats", zap.Error(err))
			return respondError(c, apperr.Internal("database error", err))
		}
		return respond(c, http.StatusOK, stats)
	}

	stats, err := h.tenantStats(identity)
	if err != nil {
		log.Error("Failed to compute tenant stats", zap.Error(err))
		return respondError(c, apperr.Internal("database error", err))
	}
	return respond(c, http.StatusOK, stats)
}

func (h *DashboardHandler) systemStats() (echo.Map, error) {
	var totalTenants, activeTenants, suspendedTenants, totalUsers int64

	if result := h.db.Model(&model.Tenant{}).Count(&totalTenants); result.Error != nil {
		return nil, result.Error
	}
	if result := h.db.Model(&model.Tenant{}).Where("status = ?", model.TenantStatusActive).Count(&activeTenants); result.Error != nil {
		return nil, result.Error
	}
	if result := h.db.Model(&model.Tenant{}).Where("status = ?", model.TenantStatusSuspended).Count(&suspendedTenants); result.Error != nil {
		return nil, result.Error
	}
	if result := h.db.Model(&model.User{}).Where("tenant_id IS NOT NULL").Count(&totalUsers); result.Error != nil {
		return nil, result.Error
	}

	planCounts := map[string]int64{}
	for _, plan := range []string{model.PlanFree, model.PlanPro, model.PlanEnterprise} {
		var n int64
		if result := h.db.Model(&model.Tenant{}).Where("subscription_plan = ?", plan).Count(&n); result.Error != nil {
			return nil, result.Error
		}
		planCounts[plan] = n
	}

	return echo.Map{
		"tenants": echo.Map{
			"total":     totalTenants,
			"active":    activeTenants,
			"suspended": suspendedTenants,
			"by_plan":   planCounts,
		},
		"users": echo.Map{
			"total": totalUsers,
		},
	}, nil
}

func (h *DashboardHandler) tenantStats(identity authz.Identity) (echo.Map, error) {
	tenantID := *identity.TenantID

	var totalProjects, totalTasks, totalUsers, myOpenTasks int64

	if result := h.db.Model(&model.Project{}).Where("tenant_id = ?", tenantID).Count(&totalProjects); result.Error != nil {
		return nil, result.Error
	}
	if result := h.db.Model(&model.Task{}).Where("tenant_id = ?", tenantID).Count(&totalTasks); result.Error != nil {
		return nil, result.Error
	}
	if result := h.db.Model(&model.User{}).Where("tenant_id = ?", tenantID).Count(&totalUsers); result.Error != nil {
		return nil, result.Error
	}
	if result := h.db.Model(&model.Task{}).
		Where("tenant_id = ? AND assigned_to = ? AND status <> ?", tenantID, identity.UserID, model.TaskStatusCompleted).
		Count(&myOpenTasks); result.Error != nil {
		return nil, result.Error
	}

	taskCounts := map[string]int64{}
	for _, status := range []string{model.TaskStatusTodo, model.TaskStatusInProgress, model.TaskStatusCompleted} {
		var n int64
		if result := h.db.Model(&model.Task{}).Where("tenant_id = ? AND status = ?", tenantID, status).Count(&n); result.Error != nil {
			return nil, result.Error
		}
		taskCounts[status] = n
	}

	projectCounts := map[string]int64{}
	for _, status := range []string{model.ProjectStatusActive, model.ProjectStatusArchived, model.ProjectStatusCompleted} {
		var n int64
		if result := h.db.Model(&model.Project{}).Where("tenant_id = ? AND status = ?", tenantID, status).Count(&n); result.Error != nil {
			return nil, result.Error
		}
		projectCounts[status] = n
	}

	return echo.Map{
		"projects": echo.Map{
			"total":     totalProjects,
			"by_status": projectCounts,
		},
		"tasks": echo.Map{
			"total":     totalTasks,
			"by_status": taskCounts,
		},
		"users": echo.Map{
			"total": totalUsers,
		},
		"my_open_tasks": myOpenTasks,
	}, nil
}
