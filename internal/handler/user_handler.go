package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"taskboard/internal/apperr"
	"taskboard/internal/audit"
	"taskboard/internal/authz"
	"taskboard/internal/model"
	"taskboard/pkg/logger"
	"taskboard/prometheus"
)

// UserHandler serves tenant-scoped user management
type UserHandler struct {
	db    *gorm.DB
	audit *audit.Recorder
}

// NewUserHandler creates a UserHandler
func NewUserHandler(db *gorm.DB, recorder *audit.Recorder) *UserHandler {
	return &UserHandler{db: db, audit: recorder}
}

// Create invites a user into the caller's tenant; tenant_admin only.
// The max_users pre-check and the insert are separate statements: two
// concurrent invites can both pass the count and jointly exceed the limit.
func (h *UserHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("user", "create")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpUserCreate, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
		FullName string `json:"full_name" validate:"required,max=255"`
		Role     string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, apperr.Validation("invalid user data: "+err.Error()))
	}

	role := authz.Role(req.Role)
	if req.Role == "" {
		role = authz.RoleMember
	}
	if !role.Assignable() {
		return respondError(c, apperr.Validation("role must be tenant_admin or member"))
	}

	tenantID := *identity.TenantID

	var tenant model.Tenant
	if result := h.db.First(&tenant, "id = ?", tenantID); result.Error != nil {
		return respondError(c, storeError(result.Error, "tenant"))
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var count int64
	if result := h.db.Model(&model.User{}).Where("tenant_id = ?", tenantID).Count(&count); result.Error != nil {
		return respondError(c, apperr.Internal("database error", result.Error))
	}
	if count >= int64(tenant.MaxUsers) {
		log.Error("User quota exceeded",
			zap.String("tenant_id", tenantID.String()),
			zap.Int64("count", count),
			zap.Int("max_users", tenant.MaxUsers))
		prometheus.RecordQuotaRejection("user")
		return respondError(c, apperr.QuotaExceeded("user limit reached for the current plan"))
	}

	email := strings.ToLower(req.Email)
	var existing model.User
	if result := h.db.Where("tenant_id = ? AND email = ?", tenantID, email).First(&existing); result.Error == nil {
		return respondError(c, apperr.Conflict("email already registered in this tenant"))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return respondError(c, apperr.Internal("user creation failed", err))
	}

	user := model.User{
		TenantID:     &tenantID,
		Email:        email,
		PasswordHash: string(hashedPassword),
		FullName:     req.FullName,
		Role:         string(role),
		Active:       true,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := h.db.Create(&user); result.Error != nil {
		log.Error("Failed to create user", zap.Error(result.Error))
		return respondError(c, apperr.Internal("user creation failed", result.Error))
	}

	h.audit.Record(&tenantID, &identity.UserID, audit.ActionCreate, "user", user.ID.String(), c.RealIP())

	log.Info("User created",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email),
		zap.String("role", user.Role))

	return respond(c, http.StatusCreated, user)
}

// List returns the users of the caller's tenant
func (h *UserHandler) List(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("user", "list")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpUserList, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var users []model.User
	if result := h.db.Where("tenant_id = ?", *identity.TenantID).Order("created_at").Find(&users); result.Error != nil {
		log.Error("Failed to list users", zap.Error(result.Error))
		return respondError(c, apperr.Internal("database error", result.Error))
	}

	return respond(c, http.StatusOK, users)
}

// Get returns one user of the caller's tenant
func (h *UserHandler) Get(c echo.Context) error {
	prometheus.RecordResourceOperation("user", "read")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpUserRead, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	if result := h.db.Where("id = ? AND tenant_id = ?", id, *identity.TenantID).First(&user); result.Error != nil {
		return respondError(c, storeError(result.Error, "user"))
	}

	return respond(c, http.StatusOK, user)
}

// Update mutates a user of the caller's tenant; tenant_admin only
func (h *UserHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("user", "update")

	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := authz.Authorize(identity, authz.OpUserUpdate, nil); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		FullName *string `json:"full_name"`
		Role     *string `json:"role"`
		Active   *bool   `json:"active"`
		Password *string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.Validation("invalid request"))
	}

	var user model.User
	if result := h.db.Where("id = ? AND tenant_id = ?", id, *identity.TenantID).First(&user); result.Error != nil {
		return respondError(c, storeError(result.Error, "user"))
	}

	updates := map[string]interface{}{}
	if req.FullName != nil && *req.FullName != "" {
		updates["full_name"] = *req.FullName
	}
	if req.Role != nil {
		if !authz.Role(*req.Role).Assignable() {
			return respondError(c, apperr.Validation("role must be tenant_admin or member"))
		}
		updates["role"] = *req.Role
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			return respondError(c, apperr.Validation("password must be at least 8 characters"))
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return respondError(c, apperr.Internal("user update failed", err))
		}
		updates["password_hash"] = string(hashed)
	}
	if len(updates) == 0 {
		return respondError(c, apperr.Validation("no updatable fields provided"))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := h.db.Model(&user).Updates(updates); result.Error != nil {
		log.Error("Failed to update user", zap.Error(result.Error))
		return respondError(c, apperr.Internal("database error", result.Error))
	}

	h.audit.Record(identity.TenantID, &identity.UserID, audit.ActionUpdate, "user", user.ID.String(), c.RealIP())

	log.Info("User updated", zap.String("user_id", user.ID.String()))
	return respond(c, http.StatusOK, user)
}

// Delete removes a user of the caller's tenant; tenant_admin only, and
// never the caller's own record. Tasks assigned to the user return to the
// unassigned pool in the same transaction.
func (h *UserHandler) Delete(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("user", "delete")

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

	var user model.User
	if result := h.db.Where("id = ? AND tenant_id = ?", id, *identity.TenantID).First(&user); result.Error != nil {
		return respondError(c, storeError(result.Error, "user"))
	}

	if err := authz.CanDeleteUser(identity, &user); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if result := tx.Model(&model.Task{}).
			Where("tenant_id = ? AND assigned_to = ?", *identity.TenantID, user.ID).
			Update("assigned_to", nil); result.Error != nil {
			return result.Error
		}
		if result := tx.Delete(&user); result.Error != nil {
			return result.Error
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to delete user", zap.Error(err))
		return respondError(c, apperr.Internal("database error", err))
	}

	h.audit.Record(identity.TenantID, &identity.UserID, audit.ActionDelete, "user", user.ID.String(), c.RealIP())

	log.Info("User deleted", zap.String("user_id", user.ID.String()))
	return respondMessage(c, http.StatusOK, "user deleted")
}
