package middleware

import (
	"net/http"

	"cellarledger/internal/common"
	"cellarledger/internal/models"
	"cellarledger/internal/services"

	"github.com/labstack/echo/v4"
)

type RBACMiddleware struct {
	authz services.Authorizer
}

func NewRBACMiddleware(authz services.Authorizer) *RBACMiddleware {
	return &RBACMiddleware{
		authz: authz,
	}
}

// RequirePermission rejects the request before the handler runs. The
// services check the same permission again.
func (m *RBACMiddleware) RequirePermission(permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			userID, ok := common.GetUserIDFromContext(ctx)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
			}

			actor := models.Actor{ID: userID, Name: common.GetUserNameFromContext(ctx)}
			hasPermission, err := m.authz.Can(ctx, actor, permission)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "Error checking permission")
			}
			if !hasPermission {
				return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
			}

			return next(c)
		}
	}
}
