package handler

import (
	"net/http"
	"strconv"

	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/service"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 50

// AuditHandler handles audit log related HTTP requests
type AuditHandler struct {
	auditService *service.AuditLogService
	logger       *zap.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *service.AuditLogService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		logger:       logger,
	}
}

// History godoc
// @Summary Get entity history
// @Description Returns the newest audit entries for an assignable entity
// @Tags Audit
// @Produce json
// @Param id path string true "Entity ID"
// @Param limit query int false "Maximum entries (default: 50, max: 200)"
// @Success 200 {array} domain.AuditLogDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /leads/{id}/history [get]
// @Router /opportunities/{id}/history [get]
// @Router /deals/{id}/history [get]
// @Router /clients/{id}/history [get]
func (h *AuditHandler) History(kind domain.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id", string(kind))
		if !ok {
			return
		}

		limit := defaultHistoryLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed < 1 {
				respondWithError(w, http.StatusBadRequest, "Invalid limit: must be a positive integer")
				return
			}
			limit = min(parsed, 200)
		}

		logs, err := h.auditService.GetByEntity(r.Context(), kind, id, limit)
		if err != nil {
			respondServiceError(w, h.logger, err, "get entity history")
			return
		}
		respondJSON(w, http.StatusOK, logs)
	}
}
