package handler

import (
	"net/http"

	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/repository"
	"github.com/straye-as/salesflow-api/internal/service"
	"go.uber.org/zap"
)

// ProposalHandler serves proposal CRUD, content editing and the approval
// lifecycle endpoints
type ProposalHandler struct {
	proposalService  *service.ProposalService
	lifecycleService *service.ProposalLifecycleService
	logger           *zap.Logger
}

func NewProposalHandler(proposalService *service.ProposalService, lifecycleService *service.ProposalLifecycleService, logger *zap.Logger) *ProposalHandler {
	return &ProposalHandler{
		proposalService:  proposalService,
		lifecycleService: lifecycleService,
		logger:           logger,
	}
}

// List godoc
// @Summary List proposals
// @Tags Proposals
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param status query string false "Filter by status (WAITING_APPROVAL, APPROVED, REJECTED, ARCHIVED)"
// @Param relatedEntityType query string false "Filter by owner kind (OPPORTUNITY, DEAL, PROJECT)"
// @Param relatedEntityId query string false "Filter by owner ID"
// @Param search query string false "Search title or reference"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ProposalDTO}
// @Security BearerAuth
// @Router /proposals [get]
func (h *ProposalHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := &repository.ProposalFilters{SearchQuery: optionalString(r, "search")}

	if status := r.URL.Query().Get("status"); status != "" {
		s := domain.ProposalStatus(status)
		filters.Status = &s
	}

	if kind := r.URL.Query().Get("relatedEntityType"); kind != "" {
		relatedID, err := optionalUUID(r, "relatedEntityId")
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid relatedEntityId: must be a valid UUID")
			return
		}
		related, err := domain.ParseRelatedEntity(kind, relatedID)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		filters.Related = &related
	}

	result, err := h.proposalService.List(r.Context(), parseListOptions(r), filters)
	if err != nil {
		respondServiceError(w, h.logger, err, "list proposals")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Create godoc
// @Summary Create proposal
// @Description Creates a proposal in WAITING_APPROVAL, optionally attached to an opportunity, deal or project
// @Tags Proposals
// @Accept json
// @Produce json
// @Param request body domain.CreateProposalRequest true "Proposal data"
// @Success 201 {object} domain.ProposalDTO
// @Failure 409 {object} domain.APIError "PROPOSAL_ALREADY_EXIST"
// @Security BearerAuth
// @Router /proposals [post]
func (h *ProposalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProposalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	proposal, err := h.proposalService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create proposal")
		return
	}

	w.Header().Set("Location", "/api/v1/proposals/"+proposal.ID.String())
	respondJSON(w, http.StatusCreated, proposal)
}

// GetByID godoc
// @Summary Get proposal
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} domain.ProposalDTO
// @Security BearerAuth
// @Router /proposals/{id} [get]
func (h *ProposalHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "proposal")
	if !ok {
		return
	}

	proposal, err := h.proposalService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get proposal")
		return
	}
	respondJSON(w, http.StatusOK, proposal)
}

// Update godoc
// @Summary Update proposal
// @Description Only proposals waiting for approval can be edited
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param request body domain.UpdateProposalRequest true "Proposal data"
// @Success 200 {object} domain.ProposalDTO
// @Failure 422 {object} domain.APIError "INVALID_PROPOSAL_STATUS"
// @Security BearerAuth
// @Router /proposals/{id} [put]
func (h *ProposalHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "proposal")
	if !ok {
		return
	}

	var req domain.UpdateProposalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	proposal, err := h.lifecycleService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update proposal")
		return
	}
	respondJSON(w, http.StatusOK, proposal)
}

// Approve godoc
// @Summary Approve proposal
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} domain.ProposalDTO
// @Failure 422 {object} domain.APIError "INVALID_PROPOSAL_STATUS"
// @Security BearerAuth
// @Router /proposals/{id}/approve [post]
func (h *ProposalHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "proposal")
	if !ok {
		return
	}

	proposal, err := h.lifecycleService.Approve(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "approve proposal")
		return
	}
	respondJSON(w, http.StatusOK, proposal)
}

// Reject godoc
// @Summary Reject proposal
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param request body domain.RejectProposalRequest true "Rejection reason"
// @Success 200 {object} domain.ProposalDTO
// @Failure 422 {object} domain.APIError "INVALID_PROPOSAL_STATUS"
// @Security BearerAuth
// @Router /proposals/{id}/reject [post]
func (h *ProposalHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "proposal")
	if !ok {
		return
	}

	var req domain.RejectProposalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	proposal, err := h.lifecycleService.Reject(r.Context(), id, req.Reason)
	if err != nil {
		respondServiceError(w, h.logger, err, "reject proposal")
		return
	}
	respondJSON(w, http.StatusOK, proposal)
}

// Reopen godoc
// @Summary Reopen proposal
// @Description Moves an approved or rejected proposal back to WAITING_APPROVAL
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} domain.ProposalDTO
// @Security BearerAuth
// @Router /proposals/{id}/reopen [post]
func (h *ProposalHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "proposal")
	if !ok {
		return
	}

	proposal, err := h.lifecycleService.Reopen(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "reopen proposal")
		return
	}
	respondJSON(w, http.StatusOK, proposal)
}

// AssignUsers godoc
// @Summary Replace proposal users
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param request body domain.AssignUsersRequest true "Desired user set"
// @Success 200 {object} service.AssignmentDiff
// @Security BearerAuth
// @Router /proposals/{id}/users [put]
func (h *ProposalHandler) AssignUsers(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "proposal")
	if !ok {
		return
	}

	var req domain.AssignUsersRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	diff, err := h.lifecycleService.AssignUsers(r.Context(), id, req.Users)
	if err != nil {
		respondServiceError(w, h.logger, err, "assign proposal users")
		return
	}
	respondJSON(w, http.StatusOK, diff)
}

// ReplaceContent godoc
// @Summary Replace proposal content
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param request body domain.ReplaceProposalContentRequest true "Content sections"
// @Success 200 {object} domain.ProposalDTO
// @Security BearerAuth
// @Router /proposals/{id}/content [put]
func (h *ProposalHandler) ReplaceContent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "proposal")
	if !ok {
		return
	}

	var req domain.ReplaceProposalContentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	proposal, err := h.proposalService.ReplaceContent(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "replace proposal content")
		return
	}
	respondJSON(w, http.StatusOK, proposal)
}

// UpsertFinanceTable godoc
// @Summary Set proposal finance table
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param request body domain.UpsertFinanceTableRequest true "Finance rows"
// @Success 200 {object} domain.ProposalDTO
// @Security BearerAuth
// @Router /proposals/{id}/finance [put]
func (h *ProposalHandler) UpsertFinanceTable(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "proposal")
	if !ok {
		return
	}

	var req domain.UpsertFinanceTableRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	proposal, err := h.proposalService.UpsertFinanceTable(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update finance table")
		return
	}
	respondJSON(w, http.StatusOK, proposal)
}

// Logs godoc
// @Summary List proposal log
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {array} domain.ProposalLogDTO
// @Security BearerAuth
// @Router /proposals/{id}/logs [get]
func (h *ProposalHandler) Logs(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "proposal")
	if !ok {
		return
	}

	logs, err := h.proposalService.Logs(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "list proposal logs")
		return
	}
	respondJSON(w, http.StatusOK, logs)
}
