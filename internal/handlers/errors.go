package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"cellarledger/internal/common"
	"cellarledger/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CustomValidator plugs the shared struct validator into echo.
type CustomValidator struct {
	validator *validator.Validate
}

func NewCustomValidator() *CustomValidator {
	return &CustomValidator{validator: common.Validator()}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// StatusForCode maps a client-facing error code onto its HTTP status.
func StatusForCode(code string) int {
	switch code {
	case common.CodeNotFound:
		return http.StatusNotFound
	case common.CodeInvalidArgument:
		return http.StatusBadRequest
	case common.CodeInvalidTransition, common.CodeValidationFailed:
		return http.StatusUnprocessableEntity
	case common.CodeCommittedBlocked, common.CodeStaleState, common.CodeUnitLocked:
		return http.StatusConflict
	case common.CodeAuthorizationDenied:
		return http.StatusForbidden
	case common.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return common.CodeInvalidArgument
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return common.CodeAuthorizationDenied
	case http.StatusNotFound:
		return common.CodeNotFound
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return common.CodeRateLimited
	}
	if status >= 500 {
		return common.CodeInternal
	}
	return "REQUEST_ERROR"
}

// HTTPErrorHandler renders every error as an ErrorResponse. Domain errors
// are mapped by their sentinel; internal errors are logged and hidden.
func HTTPErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := renderError(err)
		if status >= 500 {
			logger.Error("unhandled request error",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Warn("failed to write error response", zap.Error(writeErr))
		}
	}
}

func renderError(err error) (int, *common.ErrorResponse) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message := http.StatusText(httpErr.Code)
		if m, ok := httpErr.Message.(string); ok {
			message = m
		}
		return httpErr.Code, common.CreateErrorResponse(codeForStatus(httpErr.Code), message, nil)
	}

	if details := common.ProcessValidationErrors(err); details != nil {
		return http.StatusBadRequest, common.CreateErrorResponse(common.CodeInvalidArgument, "Validation failed", details)
	}

	if !common.IsClientError(err) {
		return http.StatusInternalServerError, common.CreateErrorResponse(common.CodeInternal, "Internal server error", nil)
	}
	code := common.ErrorCode(err)
	status := StatusForCode(code)

	var details map[string]string
	var unitErr *common.UnitError
	if errors.As(err, &unitErr) {
		details = map[string]string{
			"unit_type": unitErr.UnitType,
			"unit_id":   unitErr.UnitID.String(),
		}
	}
	return status, common.CreateErrorResponse(code, err.Error(), details)
}

// bindError reports a body or query that could not be decoded.
func bindError(err error) error {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid request format: %v", httpErr.Message))
	}
	return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
}

// actorFromContext returns the authenticated user issuing the command.
func actorFromContext(c echo.Context) (models.Actor, error) {
	ctx := c.Request().Context()
	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return models.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return models.Actor{ID: userID, Name: common.GetUserNameFromContext(ctx)}, nil
}

func pathID(c echo.Context, name string) (uuid.UUID, error) {
	return common.ValidateUUID(c.Param(name), name)
}
