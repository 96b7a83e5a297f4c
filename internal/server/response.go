package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "nifty-paper/internal/errors"
)

// Response is the standard JSON envelope for all API responses.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SuccessResponse sends a 200 OK success envelope.
func SuccessResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Status: "success",
		Data:   data,
	})
}

// SuccessMessageResponse sends a success envelope with a message.
func SuccessMessageResponse(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// CreatedResponse sends a 201 Created envelope.
func CreatedResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Response{
		Status: "success",
		Data:   data,
	})
}

// ErrorResponse sends an error envelope with the given status code.
func ErrorResponse(c echo.Context, statusCode int, message string) error {
	return c.JSON(statusCode, Response{
		Status: "error",
		Error:  message,
	})
}

// BadRequestResponse sends a 400 Bad Request envelope.
func BadRequestResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusBadRequest, message)
}

// UnauthorizedResponse sends a 401 Unauthorized envelope.
func UnauthorizedResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusUnauthorized, message)
}

// DomainErrorResponse maps a domain error to the appropriate HTTP status and
// sends it as an error envelope.
func DomainErrorResponse(c echo.Context, err error) error {
	return ErrorResponse(c, statusForError(err), err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrNotAuthenticated),
		errors.Is(err, apperrors.ErrSessionExpired),
		errors.Is(err, apperrors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrDataNotFound),
		errors.Is(err, apperrors.ErrSymbolNotFound),
		errors.Is(err, apperrors.ErrPositionNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrDuplicateEmail),
		errors.Is(err, apperrors.ErrDuplicateUsername),
		errors.Is(err, apperrors.ErrTournamentFull),
		errors.Is(err, apperrors.ErrAlreadyJoined),
		errors.Is(err, apperrors.ErrTournamentClosed),
		errors.Is(err, apperrors.ErrDuplicateTeamName),
		errors.Is(err, apperrors.ErrAlreadyTeamMember):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrInputValidation),
		errors.Is(err, apperrors.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrOrderRejected),
		errors.Is(err, apperrors.ErrInsufficientFunds),
		errors.Is(err, apperrors.ErrOrderNotOpen),
		errors.Is(err, apperrors.ErrMarketClosed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
