package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lllypuk/querydeck/internal/domain/errs"
)

// Response represents a standard API response.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error represents an error in the API response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondJSON sends a successful JSON response.
func RespondJSON(c echo.Context, code int, data any) error {
	return c.JSON(code, Response{
		Success: true,
		Data:    data,
	})
}

// RespondOK sends a 200 OK response with data.
func RespondOK(c echo.Context, data any) error {
	return RespondJSON(c, http.StatusOK, data)
}

// RespondCreated sends a 201 Created response with data.
func RespondCreated(c echo.Context, data any) error {
	return RespondJSON(c, http.StatusCreated, data)
}

// RespondNoContent sends a 204 No Content response.
func RespondNoContent(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// RespondError sends an error JSON response based on the error type.
func RespondError(c echo.Context, err error) error {
	statusCode, apiError := mapError(err)
	return c.JSON(statusCode, Response{
		Success: false,
		Error:   apiError,
	})
}

// RespondErrorWithCode sends an error JSON response with a specific HTTP status code.
func RespondErrorWithCode(c echo.Context, code int, errorCode, message string) error {
	return c.JSON(code, Response{
		Success: false,
		Error: &Error{
			Code:    errorCode,
			Message: message,
		},
	})
}

// mapError maps domain errors to HTTP status codes and API errors.
// The error code is always the machine-readable one from errs.Code so the
// JSON body and the domain taxonomy never drift apart.
func mapError(err error) (int, *Error) {
	apiError := &Error{Code: errs.Code(err)}

	switch {
	case errors.Is(err, errs.ErrNotFound):
		apiError.Message = "The requested resource was not found"
		return http.StatusNotFound, apiError

	case errors.Is(err, errs.ErrAlreadyExists):
		apiError.Message = "The resource already exists"
		return http.StatusConflict, apiError

	case errors.Is(err, errs.ErrInvalidInput):
		apiError.Message = "Invalid input data"
		return http.StatusBadRequest, apiError

	case errors.Is(err, errs.ErrUnauthorized):
		apiError.Message = "Authentication required"
		return http.StatusUnauthorized, apiError

	case errors.Is(err, errs.ErrForbidden):
		apiError.Message = "Access denied"
		return http.StatusForbidden, apiError

	case errors.Is(err, errs.ErrQuotaExceeded):
		// 403 rather than 429: the ceiling comes from the caller's plan,
		// not from request throttling.
		apiError.Message = "Plan quota exceeded"
		return http.StatusForbidden, apiError

	default:
		apiError.Message = "An internal error occurred"
		return http.StatusInternalServerError, apiError
	}
}
