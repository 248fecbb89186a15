package handler

import (
	"net/http"
	"strconv"

	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/repository"
	"github.com/straye-as/salesflow-api/internal/service"
	"go.uber.org/zap"
)

type DealHandler struct {
	dealService       *service.DealService
	conversionService *service.ConversionService
	logger            *zap.Logger
}

func NewDealHandler(dealService *service.DealService, conversionService *service.ConversionService, logger *zap.Logger) *DealHandler {
	return &DealHandler{
		dealService:       dealService,
		conversionService: conversionService,
		logger:            logger,
	}
}

// List godoc
// @Summary List deals
// @Description List deals with optional filters. Users holding only VIEW_OWN_DEALS see the deals they are assigned to.
// @Tags Deals
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param stage query string false "Filter by stage (DRAFT, IN_PROGRESS, NEGOTIATION, CLOSED, CANCELLED, CONVERTED)"
// @Param clientId query string false "Filter by client ID"
// @Param minPrice query number false "Minimum price"
// @Param maxPrice query number false "Maximum price"
// @Param search query string false "Search name or company"
// @Param sortBy query string false "Sort field (createdAt, updatedAt, name, price)"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.DealDTO}
// @Security BearerAuth
// @Router /deals [get]
func (h *DealHandler) List(w http.ResponseWriter, r *http.Request) {
	clientID, err := optionalUUID(r, "clientId")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid clientId: must be a valid UUID")
		return
	}

	filters := &repository.DealFilters{
		ClientID:    clientID,
		SearchQuery: optionalString(r, "search"),
	}
	if stage := r.URL.Query().Get("stage"); stage != "" {
		s := domain.DealStage(stage)
		if !s.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid stage")
			return
		}
		filters.Stage = &s
	}
	if v := r.URL.Query().Get("minPrice"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filters.MinPrice = &f
		}
	}
	if v := r.URL.Query().Get("maxPrice"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filters.MaxPrice = &f
		}
	}

	result, err := h.dealService.List(r.Context(), parseListOptions(r), filters)
	if err != nil {
		respondServiceError(w, h.logger, err, "list deals")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Create godoc
// @Summary Create deal
// @Description Creates a deal from an existing lead (leadId), a new lead (lead) or a client (clientId)
// @Tags Deals
// @Accept json
// @Produce json
// @Param request body domain.CreateDealRequest true "Deal data"
// @Success 201 {object} domain.DealDTO
// @Failure 409 {object} domain.APIError "DEAL_ALREADY_EXIST"
// @Security BearerAuth
// @Router /deals [post]
func (h *DealHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDealRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	deal, err := h.conversionService.CreateDeal(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create deal")
		return
	}

	w.Header().Set("Location", "/api/v1/deals/"+deal.ID.String())
	respondJSON(w, http.StatusCreated, deal)
}

// GetByID godoc
// @Summary Get deal
// @Tags Deals
// @Produce json
// @Param id path string true "Deal ID"
// @Success 200 {object} domain.DealDTO
// @Security BearerAuth
// @Router /deals/{id} [get]
func (h *DealHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "deal")
	if !ok {
		return
	}

	deal, err := h.dealService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get deal")
		return
	}
	respondJSON(w, http.StatusOK, deal)
}

// Update godoc
// @Summary Update deal
// @Description Updates deal fields. When users is present the assignment set is replaced.
// @Tags Deals
// @Accept json
// @Produce json
// @Param id path string true "Deal ID"
// @Param request body domain.UpdateDealRequest true "Deal data"
// @Success 200 {object} domain.DealDTO
// @Security BearerAuth
// @Router /deals/{id} [put]
func (h *DealHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "deal")
	if !ok {
		return
	}

	var req domain.UpdateDealRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	deal, err := h.dealService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update deal")
		return
	}
	respondJSON(w, http.StatusOK, deal)
}

// ConvertToProject godoc
// @Summary Convert deal to project
// @Tags Deals
// @Accept json
// @Produce json
// @Param id path string true "Deal ID"
// @Param request body domain.CreateProjectRequest true "Project data"
// @Success 201 {object} domain.ProjectDTO
// @Failure 409 {object} domain.APIError "DEAL_ALREADY_CONVERTED"
// @Failure 422 {object} domain.APIError "DEAL_NOT_CONVERTIBLE"
// @Security BearerAuth
// @Router /deals/{id}/convert-to-project [post]
func (h *DealHandler) ConvertToProject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "deal")
	if !ok {
		return
	}

	var req domain.CreateProjectRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	project, err := h.conversionService.ConvertDealToProject(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "convert deal")
		return
	}

	w.Header().Set("Location", "/api/v1/projects/"+project.ID.String())
	respondJSON(w, http.StatusCreated, project)
}
