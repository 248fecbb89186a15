package handler

import (
	"net/http"

	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/repository"
	"github.com/straye-as/salesflow-api/internal/service"
	"go.uber.org/zap"
)

type LeadHandler struct {
	leadService       *service.LeadService
	conversionService *service.ConversionService
	logger            *zap.Logger
}

func NewLeadHandler(leadService *service.LeadService, conversionService *service.ConversionService, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{
		leadService:       leadService,
		conversionService: conversionService,
		logger:            logger,
	}
}

// List godoc
// @Summary List leads
// @Description List leads visible to the current user
// @Tags Leads
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param status query string false "Filter by status"
// @Param source query string false "Filter by source"
// @Param search query string false "Search name, email or company"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.LeadDTO}
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /leads [get]
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := &repository.LeadFilters{
		Source:      optionalString(r, "source"),
		SearchQuery: optionalString(r, "search"),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		s := domain.LeadStatus(status)
		filters.Status = &s
	}

	result, err := h.leadService.List(r.Context(), parseListOptions(r), filters)
	if err != nil {
		respondServiceError(w, h.logger, err, "list leads")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Create godoc
// @Summary Create lead
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body domain.CreateLeadRequest true "Lead data"
// @Success 201 {object} domain.LeadDTO
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError "LEAD_ALREADY_EXIST"
// @Security BearerAuth
// @Router /leads [post]
func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLeadRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	lead, err := h.leadService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create lead")
		return
	}

	w.Header().Set("Location", "/api/v1/leads/"+lead.ID.String())
	respondJSON(w, http.StatusCreated, lead)
}

// GetByID godoc
// @Summary Get lead
// @Tags Leads
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} domain.LeadDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /leads/{id} [get]
func (h *LeadHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "lead")
	if !ok {
		return
	}

	lead, err := h.leadService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get lead")
		return
	}
	respondJSON(w, http.StatusOK, lead)
}

// ConvertToDeal godoc
// @Summary Convert lead to deal
// @Description Creates a client from the lead's contact details and a deal linked to both.
// @Description Fails with CLIENT_ALREADY_FOUND when a client with the same contact exists.
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param request body domain.ConvertLeadToDealRequest true "Deal fields"
// @Success 201 {object} domain.DealDTO
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /leads/{id}/convert-to-deal [post]
func (h *LeadHandler) ConvertToDeal(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "lead")
	if !ok {
		return
	}

	var req domain.ConvertLeadToDealRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	deal, err := h.conversionService.ConvertLeadToDeal(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "convert lead")
		return
	}

	w.Header().Set("Location", "/api/v1/deals/"+deal.ID.String())
	respondJSON(w, http.StatusCreated, deal)
}
