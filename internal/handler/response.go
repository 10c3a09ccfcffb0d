package handler

import (
	"errors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"taskboard/internal/apperr"
	"taskboard/internal/authz"
	"taskboard/internal/middleware"
)

// respond writes the success envelope
func respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{
		"success": true,
		"data":    data,
	})
}

// respondMessage writes a success envelope carrying only a message
func respondMessage(c echo.Context, status int, message string) error {
	return c.JSON(status, echo.Map{
		"success": true,
		"message": message,
	})
}

// respondError maps the error taxonomy onto the failure envelope
func respondError(c echo.Context, err error) error {
	return c.JSON(apperr.HTTPStatus(err), echo.Map{
		"success": false,
		"message": apperr.Message(err),
	})
}

// callerIdentity fetches the identity resolved by the auth middleware
func callerIdentity(c echo.Context) (authz.Identity, error) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return authz.Identity{}, apperr.Authentication("authentication required")
	}
	return identity, nil
}

// parseUUIDParam parses a uuid path parameter
func parseUUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid " + name)
	}
	return id, nil
}

// storeError translates gorm lookup failures: a missing row is a NotFound,
// anything else is internal. Cross-tenant lookups never reach gorm with the
// foreign tenant id, so they surface as the same NotFound.
func storeError(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity + " not found")
	}
	return apperr.Internal("database error", err)
}
