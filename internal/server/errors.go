package server

import (
	"errors"
	"net/http"

	auditdomain "github.com/buildquote/matchline/internal/audit/domain"
	catalogdomain "github.com/buildquote/matchline/internal/catalog/domain"
	classifierdomain "github.com/buildquote/matchline/internal/classifier/domain"
	itemdomain "github.com/buildquote/matchline/internal/item/domain"
	matchingdomain "github.com/buildquote/matchline/internal/matching/domain"
	mappingdomain "github.com/buildquote/matchline/internal/mapping/domain"
	"github.com/buildquote/matchline/internal/report"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case errors.Is(err, matchingdomain.ErrCriticalFlagVeto):
		// Distinct from a plain conflict so clients cannot mistake the veto
		// for a retryable state.
		return http.StatusConflict, errorPayload{
			Type:    "critical_flag_veto",
			Message: err.Error(),
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case isOrganizationError(err):
		return http.StatusForbidden, errorPayload{
			Type:    "invalid_organization",
			Message: "organization scope is required",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, mappingdomain.ErrWriteConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, matchingdomain.ErrValidation) ||
		errors.Is(err, mappingdomain.ErrValidation) ||
		errors.Is(err, classifierdomain.ErrInvalidRule) ||
		errors.Is(err, itemdomain.ErrMissingDescription) ||
		errors.Is(err, auditdomain.ErrInvalidPageToken) ||
		errors.Is(err, auditdomain.ErrInvalidTimeRange) ||
		errors.Is(err, auditdomain.ErrInvalidAction)
}

func isOrganizationError(err error) bool {
	return errors.Is(err, matchingdomain.ErrInvalidOrganization) ||
		errors.Is(err, mappingdomain.ErrInvalidOrganization) ||
		errors.Is(err, itemdomain.ErrInvalidOrganization) ||
		errors.Is(err, catalogdomain.ErrInvalidOrganization) ||
		errors.Is(err, classifierdomain.ErrInvalidOrganization) ||
		errors.Is(err, auditdomain.ErrInvalidOrganization) ||
		errors.Is(err, report.ErrInvalidOrganization)
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, matchingdomain.ErrNotFound) ||
		errors.Is(err, mappingdomain.ErrNotFound) ||
		errors.Is(err, itemdomain.ErrNotFound) ||
		errors.Is(err, catalogdomain.ErrNotFound) ||
		errors.Is(err, gorm.ErrRecordNotFound)
}

// classifyErrorForLog reduces handler errors to low-cardinality type and code
// labels for request logs.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "internal_error", payload.Type
	case status == http.StatusConflict:
		return "conflict", payload.Type
	case status == http.StatusNotFound:
		return "not_found", payload.Type
	case status == http.StatusForbidden:
		return "forbidden", payload.Type
	default:
		return "validation_error", payload.Type
	}
}
