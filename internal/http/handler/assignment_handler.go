package handler

import (
	"net/http"

	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/service"
	"go.uber.org/zap"
)

// AssignmentHandler replaces the assigned users of leads, opportunities,
// deals and clients
type AssignmentHandler struct {
	assignmentService *service.AssignmentService
	logger            *zap.Logger
}

// NewAssignmentHandler creates a new assignment handler
func NewAssignmentHandler(assignmentService *service.AssignmentService, logger *zap.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		assignmentService: assignmentService,
		logger:            logger,
	}
}

// AssignUsers godoc
// @Summary Replace assigned users
// @Description Replaces the assigned user set. Added users are notified.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Entity ID" format(uuid)
// @Param request body domain.AssignUsersRequest true "Desired user set"
// @Success 200 {object} service.AssignmentDiff
// @Failure 400 {object} domain.APIError "Unknown user"
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /leads/{id}/users [put]
// @Router /opportunities/{id}/users [put]
// @Router /deals/{id}/users [put]
// @Router /clients/{id}/users [put]
func (h *AssignmentHandler) AssignUsers(kind domain.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id", string(kind))
		if !ok {
			return
		}

		var req domain.AssignUsersRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		diff, err := h.assignmentService.AssignUsers(r.Context(), kind, id, req.Users)
		if err != nil {
			respondServiceError(w, h.logger, err, "assign users")
			return
		}
		respondJSON(w, http.StatusOK, diff)
	}
}
