package handler

import (
	"errors"
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
	"taskboard/pkg/jwtutil"
	"taskboard/pkg/logger"
	"taskboard/prometheus"
)

// SystemSubdomain is the reserved login hint selecting the system-level
// identity space instead of a tenant
const SystemSubdomain = "system"

// AuthHandler serves registration, login and identity echo
type AuthHandler struct {
	db    *gorm.DB
	jwt   *jwtutil.JWTUtil
	audit *audit.Recorder
}

// NewAuthHandler creates an AuthHandler with its injected collaborators
func NewAuthHandler(db *gorm.DB, jwt *jwtutil.JWTUtil, recorder *audit.Recorder) *AuthHandler {
	return &AuthHandler{db: db, jwt: jwt, audit: recorder}
}

// RegisterTenant creates a tenant and its first tenant_admin user in one
// transaction: either both rows commit or neither does.
func (h *AuthHandler) RegisterTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterTenantCounter.Inc()

	var req struct {
		TenantName string `json:"tenant_name" validate:"required,max=255"`
		Subdomain  string `json:"subdomain" validate:"required,min=2,max=63,alphanum"`
		Email      string `json:"email" validate:"required,email"`
		Password   string `json:"password" validate:"required,min=8"`
		FullName   string `json:"full_name" validate:"required,max=255"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse tenant registration request", zap.Error(err))
		return respondError(c, apperr.Validation("invalid request"))
	}
	if err := c.Validate(&req); err != nil {
		log.Error("Invalid tenant registration data", zap.Error(err))
		return respondError(c, apperr.Validation("invalid registration data: "+err.Error()))
	}

	subdomain := strings.ToLower(req.Subdomain)
	if subdomain == SystemSubdomain {
		return respondError(c, apperr.Validation("subdomain is reserved"))
	}

	// Check for a taken subdomain up front for a clean conflict response
	defer prometheus.TrackDBOperation("query")(time.Now())
	var existing model.Tenant
	if result := h.db.Where("subdomain = ?", subdomain).First(&existing); result.Error == nil {
		log.Error("Subdomain already registered", zap.String("subdomain", subdomain))
		return respondError(c, apperr.Conflict("subdomain already registered"))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return respondError(c, apperr.Internal("registration failed", err))
	}

	tenant := model.Tenant{
		Name:        req.TenantName,
		Subdomain:   subdomain,
		Status:      model.TenantStatusActive,
		Plan:        model.PlanFree,
		MaxUsers:    5,
		MaxProjects: 3,
	}
	admin := model.User{
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hashedPassword),
		FullName:     req.FullName,
		Role:         string(authz.RoleTenantAdmin),
		Active:       true,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if result := tx.Create(&tenant); result.Error != nil {
			return result.Error
		}
		admin.TenantID = &tenant.ID
		if result := tx.Create(&admin); result.Error != nil {
			return result.Error
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to register tenant", zap.Error(err))
		return respondError(c, apperr.Internal("registration failed", err))
	}

	h.audit.Record(&tenant.ID, &admin.ID, audit.ActionRegisterTenant, "tenant", tenant.ID.String(), c.RealIP())

	log.Info("Tenant registered",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("subdomain", tenant.Subdomain))

	return respond(c, http.StatusCreated, echo.Map{
		"tenant": tenant,
		"admin":  admin,
	})
}

// Login resolves credentials against the tenant named by the subdomain
// hint, or against the system-level identity space when the hint is absent
// or the reserved "system" value. A missing user and a wrong password fail
// identically so accounts cannot be enumerated.
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email     string `json:"email" validate:"required,email"`
		Password  string `json:"password" validate:"required"`
		Subdomain string `json:"subdomain"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		return respondError(c, apperr.Validation("invalid request"))
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, apperr.Validation("email and password are required"))
	}

	email := strings.ToLower(req.Email)
	subdomain := strings.ToLower(req.Subdomain)

	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	var tenant *model.Tenant

	if subdomain == "" || subdomain == SystemSubdomain {
		result := h.db.Where("email = ? AND role = ? AND tenant_id IS NULL", email, string(authz.RoleSystemAdmin)).First(&user)
		if result.Error != nil {
			log.Error("System login failed", zap.String("email", email))
			prometheus.RecordAuthError("invalid_credentials")
			return respondError(c, apperr.Authentication("invalid credentials"))
		}
	} else {
		var t model.Tenant
		result := h.db.Where("subdomain = ?", subdomain).First(&t)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				log.Error("Tenant not found", zap.String("subdomain", subdomain))
				prometheus.RecordAuthError("tenant_not_found")
				return respondError(c, apperr.NotFound("tenant not found"))
			}
			return respondError(c, apperr.Internal("database error", result.Error))
		}
		if t.Status == model.TenantStatusSuspended {
			log.Error("Login against suspended tenant", zap.String("subdomain", subdomain))
			prometheus.RecordAuthError("tenant_suspended")
			return respondError(c, apperr.Authorization("tenant is suspended"))
		}
		tenant = &t

		result = h.db.Where("email = ? AND tenant_id = ?", email, t.ID).First(&user)
		if result.Error != nil {
			log.Error("User not found", zap.String("email", email), zap.String("subdomain", subdomain))
			prometheus.RecordAuthError("invalid_credentials")
			return respondError(c, apperr.Authentication("invalid credentials"))
		}
	}

	// Inactive accounts fail the same way as unknown ones
	if !user.Active {
		log.Error("Login attempt on inactive user", zap.String("email", email))
		prometheus.RecordAuthError("invalid_credentials")
		return respondError(c, apperr.Authentication("invalid credentials"))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Error("Invalid password", zap.String("email", email))
		prometheus.RecordAuthError("invalid_credentials")
		return respondError(c, apperr.Authentication("invalid credentials"))
	}

	token, err := h.jwt.GenerateToken(user.ID, user.TenantID, user.Email, user.Role)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return respondError(c, apperr.Internal("token error", err))
	}

	h.audit.Record(user.TenantID, &user.ID, audit.ActionLogin, "user", user.ID.String(), c.RealIP())

	log.Info("User logged in",
		zap.String("email", user.Email),
		zap.String("role", user.Role))

	data := echo.Map{
		"token": token,
		"user": echo.Map{
			"id":        user.ID,
			"email":     user.Email,
			"full_name": user.FullName,
			"role":      user.Role,
			"tenant_id": user.TenantID,
		},
	}
	if tenant != nil {
		data["tenant"] = echo.Map{
			"id":        tenant.ID,
			"name":      tenant.Name,
			"subdomain": tenant.Subdomain,
		}
	}

	return respond(c, http.StatusOK, data)
}

// Me echoes the identity resolved from the session token
func (h *AuthHandler) Me(c echo.Context) error {
	identity, err := callerIdentity(c)
	if err != nil {
		return respondError(c, err)
	}

	var user model.User
	if result := h.db.First(&user, "id = ?", identity.UserID); result.Error != nil {
		return respondError(c, storeError(result.Error, "user"))
	}

	return respond(c, http.StatusOK, echo.Map{
		"id":        user.ID,
		"email":     user.Email,
		"full_name": user.FullName,
		"role":      user.Role,
		"tenant_id": user.TenantID,
		"active":    user.Active,
	})
}

// MetricsHandler exposes the prometheus registry
func MetricsHandler(c echo.Context) error {
	handler := prometheus.GetPrometheusHandler()
	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}
