package handler

import (
	"net/http"

	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/repository"
	"github.com/straye-as/salesflow-api/internal/service"
	"go.uber.org/zap"
)

type OpportunityHandler struct {
	opportunityService *service.OpportunityService
	conversionService  *service.ConversionService
	logger             *zap.Logger
}

func NewOpportunityHandler(opportunityService *service.OpportunityService, conversionService *service.ConversionService, logger *zap.Logger) *OpportunityHandler {
	return &OpportunityHandler{
		opportunityService: opportunityService,
		conversionService:  conversionService,
		logger:             logger,
	}
}

// List godoc
// @Summary List opportunities
// @Tags Opportunities
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param stage query string false "Filter by stage"
// @Param clientId query string false "Filter by client ID"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.OpportunityDTO}
// @Security BearerAuth
// @Router /opportunities [get]
func (h *OpportunityHandler) List(w http.ResponseWriter, r *http.Request) {
	clientID, err := optionalUUID(r, "clientId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid clientId: must be a valid UUID")
		return
	}
	filters := &repository.OpportunityFilters{ClientID: clientID}
	if stage := r.URL.Query().Get("stage"); stage != "" {
		s := domain.OpportunityStage(stage)
		filters.Stage = &s
	}

	result, err := h.opportunityService.List(r.Context(), parseListOptions(r), filters)
	if err != nil {
		respondServiceError(w, h.logger, err, "list opportunities")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Create godoc
// @Summary Create opportunity
// @Description Creates an opportunity. A given lead is marked CONVERTED.
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param request body domain.CreateOpportunityRequest true "Opportunity data"
// @Success 201 {object} domain.OpportunityDTO
// @Security BearerAuth
// @Router /opportunities [post]
func (h *OpportunityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOpportunityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	opp, err := h.conversionService.CreateOpportunity(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create opportunity")
		return
	}

	w.Header().Set("Location", "/api/v1/opportunities/"+opp.ID.String())
	respondJSON(w, http.StatusCreated, opp)
}

// GetByID godoc
// @Summary Get opportunity
// @Tags Opportunities
// @Produce json
// @Param id path string true "Opportunity ID"
// @Success 200 {object} domain.OpportunityDTO
// @Security BearerAuth
// @Router /opportunities/{id} [get]
func (h *OpportunityHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "opportunity")
	if !ok {
		return
	}

	opp, err := h.opportunityService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get opportunity")
		return
	}
	respondJSON(w, http.StatusOK, opp)
}

// ConvertToDeal godoc
// @Summary Convert opportunity to deal
// @Tags Opportunities
// @Accept json
// @Produce json
// @Param id path string true "Opportunity ID"
// @Param request body domain.DealInput true "Deal fields"
// @Success 201 {object} domain.DealDTO
// @Failure 409 {object} domain.APIError "OPPORTUNITY_ALREADY_CONVERTED"
// @Security BearerAuth
// @Router /opportunities/{id}/convert-to-deal [post]
func (h *OpportunityHandler) ConvertToDeal(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "opportunity")
	if !ok {
		return
	}

	var req domain.DealInput
	if !decodeAndValidate(w, r, &req) {
		return
	}

	deal, err := h.conversionService.ConvertOpportunityToDeal(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "convert opportunity")
		return
	}

	w.Header().Set("Location", "/api/v1/deals/"+deal.ID.String())
	respondJSON(w, http.StatusCreated, deal)
}
