// Package errors defines structured error types for the ScribeFlow Gatekeeper service.
// Every admission gate resolves its backing-service failures into one of these
// outcomes; a raw store error never propagates to the HTTP layer.
package errors

import (
	"fmt"
	"net/http"
	"time"

	"github.com/scribeflow/gatekeeper/pkg/constants"
)

// ================================================================================
// AppError
// ================================================================================

// AppError is a structured application error carrying a machine-readable code,
// an HTTP status, and optional metadata for user-visible hints.
type AppError struct {
	code       constants.ErrorCode
	httpStatus int
	message    string
	cause      error
	metadata   map[string]interface{}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return e.message
}

// Code returns the machine-readable error code.
func (e *AppError) Code() constants.ErrorCode {
	return e.code
}

// HTTPStatus returns the HTTP status code for this error.
func (e *AppError) HTTPStatus() int {
	return e.httpStatus
}

// Unwrap returns the underlying cause for error chain support.
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause attaches an underlying error to the chain.
func (e *AppError) WithCause(cause error) *AppError {
	e.cause = cause
	return e
}

// WithMetadata attaches a metadata entry surfaced in the response body.
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

// Metadata returns all metadata attached to the error.
func (e *AppError) Metadata() map[string]interface{} {
	return e.metadata
}

// New creates an AppError with the given code, status, and message.
func New(code constants.ErrorCode, httpStatus int, message string) *AppError {
	return &AppError{
		code:       code,
		httpStatus: httpStatus,
		message:    message,
		metadata:   make(map[string]interface{}),
	}
}

// ================================================================================
// Admission Outcome Constructors
// ================================================================================

// ErrRateLimited reports a denied request at a rate-limit gate. The reset time
// tells the caller when the fixed window rolls over.
func ErrRateLimited(scope constants.RateLimitScope, limit int, resetAt time.Time) *AppError {
	return New(
		constants.ErrCodeRateLimited,
		http.StatusTooManyRequests,
		fmt.Sprintf("rate limit exceeded for scope %q: %d requests per window", scope, limit),
	).
		WithMetadata("scope", string(scope)).
		WithMetadata("limit", limit).
		WithMetadata("reset_at", resetAt.UTC().Format(time.RFC3339))
}

// ErrSecurityBlocked reports a request from a blocked source.
func ErrSecurityBlocked(source string) *AppError {
	return New(
		constants.ErrCodeSecurityBlocked,
		http.StatusForbidden,
		"access temporarily blocked due to suspicious activity",
	).WithMetadata("source", source)
}

// ErrMonthlyLimitExceeded reports an exhausted monthly quota with a usage
// snapshot and an upgrade hint for caller display.
func ErrMonthlyLimitExceeded(used, limit int64) *AppError {
	return New(
		constants.ErrCodeMonthlyLimitExceeded,
		http.StatusTooManyRequests,
		fmt.Sprintf("monthly transcript limit reached (%d of %d)", used, limit),
	).
		WithMetadata("monthly_used", used).
		WithMetadata("monthly_limit", limit).
		WithMetadata("upgrade_hint", "upgrade your plan to raise the monthly limit")
}

// ErrDailyLimitExceeded reports an exhausted daily quota.
func ErrDailyLimitExceeded(used, limit int64) *AppError {
	return New(
		constants.ErrCodeDailyLimitExceeded,
		http.StatusTooManyRequests,
		fmt.Sprintf("daily transcript limit reached (%d of %d)", used, limit),
	).
		WithMetadata("daily_used", used).
		WithMetadata("daily_limit", limit).
		WithMetadata("upgrade_hint", "upgrade your plan to raise the daily limit")
}

// ErrFeatureUnavailable reports a feature the current plan does not grant,
// with the lowest plan tier that does as a recommendation.
func ErrFeatureUnavailable(feature string, requiredPlan constants.PlanID) *AppError {
	return New(
		constants.ErrCodeFeatureUnavailable,
		http.StatusForbidden,
		fmt.Sprintf("feature %q is not available on your plan", feature),
	).
		WithMetadata("feature", feature).
		WithMetadata("required_plan", string(requiredPlan))
}

// ErrInvalidPlan reports an unknown plan id. This is a configuration defect
// and is never silently defaulted.
func ErrInvalidPlan(planID string) *AppError {
	return New(
		constants.ErrCodeInvalidPlan,
		http.StatusBadRequest,
		fmt.Sprintf("unknown plan id %q", planID),
	).WithMetadata("plan_id", planID)
}

// ErrUsageCheckFailed is the fail-closed outcome when the usage-count
// collaborator is unreachable.
func ErrUsageCheckFailed() *AppError {
	return New(
		constants.ErrCodeUsageCheckFailed,
		http.StatusInternalServerError,
		"unable to verify usage, please retry",
	)
}

// ErrStoreUnavailable marks a backing-store failure. It is internal: each
// gate resolves it into fail-open or fail-closed and never surfaces it.
func ErrStoreUnavailable(store string, cause error) *AppError {
	return New(
		constants.ErrCodeStoreUnavailable,
		http.StatusInternalServerError,
		fmt.Sprintf("%s store unavailable", store),
	).WithCause(cause)
}

// ErrInvalidRequest reports a malformed request.
func ErrInvalidRequest(message string) *AppError {
	return New(constants.ErrCodeInvalidRequest, http.StatusBadRequest, message)
}

// ErrNotFound reports a missing resource.
func ErrNotFound(resource string) *AppError {
	return New(
		constants.ErrCodeNotFound,
		http.StatusNotFound,
		fmt.Sprintf("%s not found", resource),
	)
}

// ErrServerError reports an unexpected internal failure.
func ErrServerError(message string) *AppError {
	return New(constants.ErrCodeServerError, http.StatusInternalServerError, message)
}

// ================================================================================
// Error Predicates
// ================================================================================

// AsAppError attempts to cast an error to *AppError.
func AsAppError(err error) (*AppError, bool) {
	appErr, ok := err.(*AppError)
	return appErr, ok
}

// IsRateLimited reports whether the error is a rate-limit denial.
func IsRateLimited(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code() == constants.ErrCodeRateLimited
	}
	return false
}

// IsQuotaExceeded reports whether the error is a monthly or daily quota denial.
func IsQuotaExceeded(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		code := appErr.Code()
		return code == constants.ErrCodeMonthlyLimitExceeded ||
			code == constants.ErrCodeDailyLimitExceeded
	}
	return false
}

// IsStoreUnavailable reports whether the error marks a backing-store failure.
func IsStoreUnavailable(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code() == constants.ErrCodeStoreUnavailable
	}
	return false
}

// ================================================================================
// Error Response Builder
// ================================================================================

// ErrorResponse is the JSON structure for deny responses. Internal stack
// traces are never included outside development mode.
type ErrorResponse struct {
	Error    string                 `json:"error"`
	Message  string                 `json:"message"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToErrorResponse converts an AppError to its wire representation.
func ToErrorResponse(err *AppError) *ErrorResponse {
	return &ErrorResponse{
		Error:    string(err.Code()),
		Message:  err.Error(),
		Metadata: err.Metadata(),
	}
}

// ToGenericErrorResponse converts any error to a wire representation, hiding
// details of errors that are not AppErrors.
func ToGenericErrorResponse(err error) *ErrorResponse {
	if appErr, ok := AsAppError(err); ok {
		return ToErrorResponse(appErr)
	}
	return &ErrorResponse{
		Error:   string(constants.ErrCodeServerError),
		Message: "an unexpected error occurred",
	}
}
