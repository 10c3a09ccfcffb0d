package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
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

// TaskHandler serves tenant-scoped task management
type TaskHandler struct {
	db    *gorm.DB
	audit *audit.Recorder
}

// NewTaskHandler creates a TaskHandler
func NewTaskHandler(db *gorm.DB, recorder *audit.Recorder) *TaskHandler {
	return &TaskHandler{db: db, audit: recorder}
}

type taskRequest struct {
	ProjectID   *uuid.UUID `json:"project_id"`
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	AssignedTo  *uuid.UUID `json:"assigned_to"`
	DueDate     *time.Time `json:"due_date"`
}

// Create adds a task under a project of the caller's tenant. The project
// is resolved with the caller's tenant in the predicate, which both hides
// foreign projects and pins task.tenant_id to the project's tenant.
func (h *TaskHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("task", "create")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpTaskCreate, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	var req taskRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, apperr.Validation("title is required"))
	}

	// The nested route carries the project id in the path
	projectID := req.ProjectID
	if p := c.Param("id"); p != "" {
		id, err := parseUUIDParam(c, "id")
		if err != nil {
			return respondError(c, err)
		}
		projectID = &id
	}
	if projectID == nil {
		return respondError(c, apperr.Validation("project_id is required"))
	}

	status := req.Status
	if status == "" {
		status = model.TaskStatusTodo
	}
	if !model.ValidTaskStatus(status) {
		return respondError(c, apperr.Validation("invalid task status"))
	}
	priority := req.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !model.ValidPriority(priority) {
		return respondError(c, apperr.Validation("invalid task priority"))
	}

	tenantID := *identity.TenantID

	defer prometheus.TrackDBOperation("query")(time.Now())
	var project model.Project
	if result := h.db.Where("id = ? AND tenant_id = ?", *projectID, tenantID).First(&project); result.Error != nil {
		return respondError(c, storeError(result.Error, "project"))
	}

	if req.AssignedTo != nil {
		var assignee model.User
		if result := h.db.Where("id = ? AND tenant_id = ?", *req.AssignedTo, tenantID).First(&assignee); result.Error != nil {
			return respondError(c, storeError(result.Error, "assignee"))
		}
	}

	task := model.Task{
		TenantID:    project.TenantID,
		ProjectID:   project.ID,
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		Priority:    priority,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := h.db.Create(&task); result.Error != nil {
		log.Error("Failed to create task", zap.Error(result.Error))
		return respondError(c, apperr.Internal("task creation failed", result.Error))
	}

	h.audit.Record(&tenantID, &identity.UserID, audit.ActionCreate, "task", task.ID.String(), c.RealIP())

	log.Info("Task created",
		zap.String("task_id", task.ID.String()),
		zap.String("project_id", task.ProjectID.String()))

	return respond(c, http.StatusCreated, task)
}

// List returns the tasks of the caller's tenant with optional filters
func (h *TaskHandler) List(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("task", "list")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpTaskList, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	query := h.db.Where("tenant_id = ?", *identity.TenantID)
	if status := c.QueryParam("status"); status != "" {
		if !model.ValidTaskStatus(status) {
			return respondError(c, apperr.Validation("invalid task status"))
		}
		query = query.Where("status = ?", status)
	}
	if priority := c.QueryParam("priority"); priority != "" {
		if !model.ValidPriority(priority) {
			return respondError(c, apperr.Validation("invalid task priority"))
		}
		query = query.Where("priority = ?", priority)
	}
	if assignee := c.QueryParam("assigned_to"); assignee != "" {
		id, err := uuid.Parse(assignee)
		if err != nil {
			return respondError(c, apperr.Validation("invalid assigned_to"))
		}
		query = query.Where("assigned_to = ?", id)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var tasks []model.Task
	if result := query.Order("created_at DESC").Find(&tasks); result.Error != nil {
		log.Error("Failed to list tasks", zap.Error(result.Error))
		return respondError(c, apperr.Internal("database error", result.Error))
	}

	return respond(c, http.StatusOK, tasks)
}

// ListByProject returns the tasks of one project of the caller's tenant
func (h *TaskHandler) ListByProject(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("task", "list")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpTaskList, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}
	projectID, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var project model.Project
	if result := h.db.Where("id = ? AND tenant_id = ?", projectID, *identity.TenantID).First(&project); result.Error != nil {
		return respondError(c, storeError(result.Error, "project"))
	}

	var tasks []model.Task
	if result := h.db.Where("project_id = ? AND tenant_id = ?", projectID, *identity.TenantID).
		Order("created_at DESC").Find(&tasks); result.Error != nil {
		log.Error("Failed to list project tasks", zap.Error(result.Error))
		return respondError(c, apperr.Internal("database error", result.Error))
	}

	return respond(c, http.StatusOK, tasks)
}

// Get returns one task of the caller's tenant
func (h *TaskHandler) Get(c echo.Context) error {
	prometheus.RecordResourceOperation("task", "read")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpTaskRead, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var task model.Task
	if result := h.db.Where("id = ? AND tenant_id = ?", id, *identity.TenantID).First(&task); result.Error != nil {
		return respondError(c, storeError(result.Error, "task"))
	}

	return respond(c, http.StatusOK, task)
}

// Update mutates task fields. Reassignment is restricted to tenant_admin;
// everything else is open to members too.
func (h *TaskHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("task", "update")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpTaskUpdate, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		Priority    *string    `json:"priority"`
		AssignedTo  *uuid.UUID `json:"assigned_to"`
		Unassign    bool       `json:"unassign"`
		DueDate     *time.Time `json:"due_date"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request"))
	}

	var task model.Task
	if result := h.db.Where("id = ? AND tenant_id = ?", id, *identity.TenantID).First(&task); result.Error != nil {
		return respondError(c, storeError(result.Error, "task"))
	}

	updates := map[string]interface{}{}
	if req.Title != nil && *req.Title != "" {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Priority != nil {
		if !model.ValidPriority(*req.Priority) {
			return respondError(c, apperr.Validation("invalid task priority"))
		}
		updates["priority"] = *req.Priority
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	}
	if req.AssignedTo != nil || req.Unassign {
		if identity.Role != authz.RoleTenantAdmin {
			prometheus.RecordAuthError("forbidden")
			return respondError(c, apperr.Authorization("only tenant admins may reassign tasks"))
		}
		if req.Unassign {
			updates["assigned_to"] = nil
		} else {
			var assignee model.User
			if result := h.db.Where("id = ? AND tenant_id = ?", *req.AssignedTo, *identity.TenantID).First(&assignee); result.Error != nil {
				return respondError(c, storeError(result.Error, "assignee"))
			}
			updates["assigned_to"] = *req.AssignedTo
		}
	}
	if len(updates) == 0 {
		return respondError(c, apperr.Validation("no updatable fields provided"))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := h.db.Model(&task).Updates(updates); result.Error != nil {
		log.Error("Failed to update task", zap.Error(result.Error))
		return respondError(c, apperr.Internal("database error", result.Error))
	}

	h.audit.Record(identity.TenantID, &identity.UserID, audit.ActionUpdate, "task", task.ID.String(), c.RealIP())

	log.Info("Task updated", zap.String("task_id", task.ID.String()))
	return respond(c, http.StatusOK, task)
}

// UpdateStatus applies an explicit status transition. Every move between
// todo, in_progress and completed is legal, including reverting a
// completed task.
func (h *TaskHandler) UpdateStatus(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("task", "update_status")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpTaskUpdateStatus, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		Status string `json:"status" validate:"required"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request"))
	}
	if !model.ValidTaskStatus(req.Status) {
		return respondError(c, apperr.Validation("invalid task status"))
	}

	var task model.Task
	if result := h.db.Where("id = ? AND tenant_id = ?", id, *identity.TenantID).First(&task); result.Error != nil {
		return respondError(c, storeError(result.Error, "task"))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := h.db.Model(&task).Update("status", req.Status); result.Error != nil {
		log.Error("Failed to update task status", zap.Error(result.Error))
		return respondError(c, apperr.Internal("database error", result.Error))
	}

	h.audit.Record(identity.TenantID, &identity.UserID, audit.ActionStatusChange, "task", task.ID.String(), c.RealIP())

	log.Info("Task status updated",
		zap.String("task_id", task.ID.String()),
		zap.String("status", req.Status))
	return respond(c, http.StatusOK, task)
}

// Claim assigns an unassigned task to the caller. The predicate carries
// assigned_to IS NULL, so of N concurrent claims exactly one row update
// wins; the rest see zero rows and come back as a conflict.
func (h *TaskHandler) Claim(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("task", "claim")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpTaskClaim, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	tenantID := *identity.TenantID

	defer prometheus.TrackDBOperation("update")(time.Now())
	result := h.db.Model(&model.Task{}).
		Where("id = ? AND tenant_id = ? AND assigned_to IS NULL", id, tenantID).
		Update("assigned_to", identity.UserID)
	if result.Error != nil {
		log.Error("Failed to claim task", zap.Error(result.Error))
		return respondError(c, apperr.Internal("database error", result.Error))
	}

	if result.RowsAffected == 0 {
		// Either the task is gone, foreign, or someone claimed it first
		var task model.Task
		if lookup := h.db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&task); lookup.Error != nil {
			return respondError(c, storeError(lookup.Error, "task"))
		}
		log.Info("Task already claimed",
			zap.String("task_id", id.String()),
			zap.String("user_id", identity.UserID.String()))
		prometheus.ClaimConflictCounter.Inc()
		return respondError(c, apperr.Conflict("task already claimed"))
	}

	var task model.Task
	if lookup := h.db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&task); lookup.Error != nil {
		return respondError(c, storeError(lookup.Error, "task"))
	}

	h.audit.Record(&tenantID, &identity.UserID, audit.ActionClaim, "task", task.ID.String(), c.RealIP())

	log.Info("Task claimed",
		zap.String("task_id", task.ID.String()),
		zap.String("user_id", identity.UserID.String()))
	return respond(c, http.StatusOK, task)
}

// Delete removes a task: tenant_admin any in their tenant, a member only
// tasks assigned to them
func (h *TaskHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("task", "delete")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if identity.TenantID == nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, apperr.Authorization("operation not permitted"))
	}

	var task model.Task
	if result := h.db.Where("id = ? AND tenant_id = ?", id, *identity.TenantID).First(&task); result.Error != nil {
		return respondError(c, storeError(result.Error, "task"))
	}

	if err := authz.CanDeleteTask(identity, &task); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if result := h.db.Delete(&task); result.Error != nil {
		log.Error("Failed to delete task", zap.Error(result.Error))
		return respondError(c, apperr.Internal("database error", result.Error))
	}

	h.audit.Record(identity.TenantID, &identity.UserID, audit.ActionDelete, "task", task.ID.String(), c.RealIP())

	log.Info("Task deleted", zap.String("task_id", task.ID.String()))
	return respondMessage(c, http.StatusOK, "task deleted")
}

// MyTasks returns the caller's assigned tasks plus the tenant's unassigned
// pool, which every member may claim
func (h *TaskHandler) MyTasks(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("task", "list")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpTaskList, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	tenantID := *identity.TenantID

	defer prometheus.TrackDBOperation("query")(time.Now())
	var assigned []model.Task
	if result := h.db.Where("tenant_id = ? AND assigned_to = ?", tenantID, identity.UserID).
		Order("created_at DESC").Find(&assigned); result.Error != nil {
		log.Error("Failed to list assigned tasks", zap.Error(result.Error))
		return respondError(c, apperr.Internal("database error", result.Error))
	}

	var unassigned []model.Task
	if result := h.db.Where("tenant_id = ? AND assigned_to IS NULL", tenantID).
		Order("created_at DESC").Find(&unassigned); result.Error != nil {
		log.Error("Failed to list unassigned tasks", zap.Error(result.Error))
		return respondError(c, apperr.Internal("database error", result.Error))
	}

	return respond(c, http.StatusOK, echo.Map{
		"assigned":  assigned,
		"claimable": unassigned,
	})
}
