package domain

// APIError is the RFC 7807 problem body returned for every failed request.
// Code carries the business error code (e.g. DEAL_ALREADY_EXIST) when one applies.
type APIError struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Code   string            `json:"code,omitempty"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Title
}

// ValidationMessages maps validator tags to messages shown to API clients
var ValidationMessages = map[string]string{
	"required":      "This field is required",
	"required_with": "This field is required together with a related field",
	"email":         "Must be a valid email address",
	"max":           "Exceeds maximum length",
	"min":           "Below minimum length",
	"gte":           "Must be greater than or equal to minimum value",
	"lte":           "Must be less than or equal to maximum value",
	"uuid":          "Must be a valid UUID",
	"oneof":         "Must be one of the allowed values",
	"dive":          "One or more list entries are invalid",
}

// GetValidationMessage returns a human-readable message for a validation tag
func GetValidationMessage(tag string) string {
	if msg, ok := ValidationMessages[tag]; ok {
		return msg
	}
	return "Validation failed: " + tag
}

// Problem types for RFC 7807 responses
const (
	ErrorTypeValidation   = "validation_error"
	ErrorTypeNotFound     = "not_found"
	ErrorTypeBadRequest   = "bad_request"
	ErrorTypeConflict     = "conflict"
	ErrorTypeInvalidState = "invalid_state"
	ErrorTypeUnauthorized = "unauthorized"
	ErrorTypeForbidden    = "forbidden"
	ErrorTypeInternal     = "internal_error"
)
