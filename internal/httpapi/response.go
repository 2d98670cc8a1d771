package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"envirotrack/internal/blob"
	"envirotrack/internal/core"
)

// Error codes returned in ErrorInfo.Code.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeNoOpenWorkspace  = "NO_OPEN_WORKSPACE"
	ErrCodeNoRecords        = "NO_RECORDS"
	ErrCodeMalformedImport  = "MALFORMED_IMPORT"
	ErrCodeArchiveDisabled  = "ARCHIVE_DISABLED"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeUnknownFuel      = "UNKNOWN_FUEL"
	ErrCodeUnknownWorkspace = "WORKSPACE_NOT_FOUND"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo describes a failed request.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{Error: &ErrorInfo{
		Code:      code,
		Message:   message,
		RequestID: c.GetString(RequestIDKey),
	}})
}

// failErr maps a service error onto a status code and error code.
func failErr(c *gin.Context, err error) {
	_ = c.Error(err)
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, Response{Error: &ErrorInfo{
			Code:      ErrCodeValidation,
			Message:   err.Error(),
			Field:     verr.Field,
			RequestID: c.GetString(RequestIDKey),
		}})
	case errors.Is(err, core.ErrNoOpenWorkspace):
		fail(c, http.StatusConflict, ErrCodeNoOpenWorkspace, err.Error())
	case errors.Is(err, core.ErrWorkspaceNotFound):
		fail(c, http.StatusNotFound, ErrCodeUnknownWorkspace, err.Error())
	case errors.Is(err, core.ErrUnknownCollection), errors.Is(err, blob.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, core.ErrNoRecords):
		fail(c, http.StatusNotFound, ErrCodeNoRecords, err.Error())
	case errors.Is(err, core.ErrMalformedImport):
		fail(c, http.StatusBadRequest, ErrCodeMalformedImport, err.Error())
	case errors.Is(err, core.ErrUnknownFuel):
		fail(c, http.StatusBadRequest, ErrCodeUnknownFuel, err.Error())
	case errors.Is(err, core.ErrArchiveDisabled):
		fail(c, http.StatusNotImplemented, ErrCodeArchiveDisabled, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}
