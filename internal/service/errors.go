package service

import "errors"

// Error kinds. Every business error unwraps to exactly one of these.
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrConflict is returned when there's a conflict (e.g., duplicate)
	ErrConflict = errors.New("resource conflict")

	// ErrAccessDenied is returned when a user holds neither the global
	// permission nor an assignment on the entity
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidState is returned when an operation is not allowed in the
	// resource's current status
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidInput is returned when input fails a business rule
	ErrInvalidInput = errors.New("invalid input")
)

// Error is a business error with a stable code for API clients
type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrLeadNotFound          = newError(ErrNotFound, "LEAD_NOT_FOUND", "lead not found")
	ErrOpportunityNotFound   = newError(ErrNotFound, "OPPORTUNITY_NOT_FOUND", "opportunity not found")
	ErrDealNotFound          = newError(ErrNotFound, "DEAL_NOT_FOUND", "deal not found")
	ErrClientNotFound        = newError(ErrNotFound, "CLIENT_NOT_FOUND", "client not found")
	ErrProjectNotFound       = newError(ErrNotFound, "PROJECT_NOT_FOUND", "project not found")
	ErrProposalNotFound      = newError(ErrNotFound, "PROPOSAL_NOT_FOUND", "proposal not found")
	ErrUserNotFound          = newError(ErrNotFound, "USER_NOT_FOUND", "user not found")
	ErrNotificationNotFound  = newError(ErrNotFound, "NOTIFICATION_NOT_FOUND", "notification not found")
	ErrRelatedEntityNotFound = newError(ErrNotFound, "RELATED_ENTITY_NOT_FOUND", "related entity not found")

	ErrLeadAlreadyExists              = newError(ErrConflict, "LEAD_ALREADY_EXIST", "a lead with this email already exists")
	ErrClientAlreadyFound             = newError(ErrConflict, "CLIENT_ALREADY_FOUND", "a client with this contact already exists")
	ErrDealAlreadyExists              = newError(ErrConflict, "DEAL_ALREADY_EXIST", "a deal with this name and company already exists")
	ErrLeadAlreadyConverted           = newError(ErrConflict, "LEAD_ALREADY_CONVERTED", "lead has already been converted")
	ErrOpportunityAlreadyConverted    = newError(ErrConflict, "OPPORTUNITY_ALREADY_CONVERTED", "opportunity has already been converted")
	ErrDealAlreadyConverted           = newError(ErrConflict, "DEAL_ALREADY_CONVERTED", "deal has already been converted")
	ErrProposalReferenceAlreadyExists = newError(ErrConflict, "PROPOSAL_REFERENCE_ALREADY_EXIST", "a proposal with this reference already exists")
	ErrProposalAlreadyApproved        = newError(ErrConflict, "PROPOSAL_ALREADY_APPROVED", "proposal is already approved")
	ErrProposalAlreadyRejected        = newError(ErrConflict, "PROPOSAL_ALREADY_REJECTED", "proposal is already rejected")
	ErrProposalAlreadyWaiting         = newError(ErrConflict, "PROPOSAL_ALREADY_WAITING_APPROVAL", "proposal is already waiting for approval")
	ErrProjectAlreadyArchived         = newError(ErrConflict, "PROJECT_ALREADY_ARCHIVED", "project is already archived")

	ErrAccessDeniedToEntity = newError(ErrAccessDenied, "ACCESS_DENIED", "you do not have access to this record")

	ErrInvalidProposalStatusToUpdate = newError(ErrInvalidState, "INVALID_PROPOSAL_STATUS_TO_UPDATE", "proposal can only be changed while waiting for approval")
	ErrInvalidProposalStatus         = newError(ErrInvalidState, "INVALID_PROPOSAL_STATUS", "archived proposals cannot change status")
	ErrDealNotConvertible            = newError(ErrInvalidState, "DEAL_NOT_CONVERTIBLE", "cancelled deals cannot be converted to a project")

	ErrLeadContactRequired     = newError(ErrInvalidInput, "LEAD_CONTACT_REQUIRED", "a lead needs an email or a phone number")
	ErrInvalidRejectionReason  = newError(ErrInvalidInput, "INVALID_REJECTION_REASON", "rejection reason must be between 1 and 500 characters")
	ErrInvalidRelatedEntity    = newError(ErrInvalidInput, "INVALID_RELATED_ENTITY", "related entity type and id are invalid")
	ErrDealSourceAmbiguous     = newError(ErrInvalidInput, "DEAL_SOURCE_AMBIGUOUS", "provide either an existing lead id or new lead details, not both")
	ErrInvalidDealStage        = newError(ErrInvalidInput, "INVALID_DEAL_STAGE", "deal stage is not valid")
	ErrCancelledReasonRequired = newError(ErrInvalidInput, "CANCELLED_REASON_REQUIRED", "a cancelled deal needs a cancellation reason")
	ErrEntityNotAssignable     = newError(ErrInvalidInput, "ENTITY_NOT_ASSIGNABLE", "users cannot be assigned to this kind of record")
)
