package errors

import (
	"fmt"
)

// Common error creators for frequent use cases

// NewValidationError creates a validation error with field context
func NewValidationError(field, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewAuthorizationError creates an authorization error for a denied action
func NewAuthorizationError(action string) *AppError {
	return New(ErrCodeAuthorization, fmt.Sprintf("not allowed to %s", action)).
		WithContext("action", action).
		WithUserMessage("You are not allowed to perform this action")
}

// NewConflictError creates a conflict error; callers should re-fetch state
// before retrying
func NewConflictError(resource, message string) *AppError {
	return New(ErrCodeConflict, message).
		WithContext("resource", resource).
		WithUserMessage(message)
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Database operation failed")
}

// NewAuthError creates an authentication error
func NewAuthError(reason string) *AppError {
	return New(ErrCodeAuthentication, "authentication failed").
		WithContext("reason", reason).
		WithUserMessage("Authentication failed")
}

// HTTP helpers

// HTTPStatusCode maps error codes to appropriate HTTP status codes
func HTTPStatusCode(err error) int {
	code := GetCode(err)

	switch code {
	case ErrCodeValidationFailed, ErrCodeInvalidInput, ErrCodeInvalidConfig:
		return 400 // Bad Request
	case ErrCodeAuthentication:
		return 401 // Unauthorized
	case ErrCodeAuthorization:
		return 403 // Forbidden
	case ErrCodeNotFound:
		return 404 // Not Found
	case ErrCodeConflict:
		return 409 // Conflict
	case ErrCodeTimeout:
		return 408 // Request Timeout
	case ErrCodePushGateway, ErrCodeAuthProvider:
		if IsRetryable(err) {
			return 502 // Bad Gateway
		}
		return 500 // Internal Server Error
	case ErrCodeDatabaseConnection, ErrCodeDatabaseQuery:
		return 503 // Service Unavailable
	default:
		return 500 // Internal Server Error
	}
}

// HTTPErrorResponse is the standardized error body returned by the API
type HTTPErrorResponse struct {
	Error struct {
		Code    ErrorCode `json:"code"`
		Message string    `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ToHTTPResponse converts an error to a standardized HTTP response. Internal
// details stay server-side; only the user message crosses the boundary.
func ToHTTPResponse(err error, requestID string) HTTPErrorResponse {
	response := HTTPErrorResponse{
		RequestID: requestID,
	}

	if appErr, ok := err.(*AppError); ok {
		response.Error.Code = appErr.Code
	} else {
		response.Error.Code = ErrCodeInternalError
	}
	response.Error.Message = GetUserMessage(err)

	return response
}
