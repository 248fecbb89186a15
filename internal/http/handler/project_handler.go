package handler

import (
	"net/http"

	"github.com/straye-as/salesflow-api/internal/service"
	"go.uber.org/zap"
)

type ProjectHandler struct {
	projectService *service.ProjectService
	logger         *zap.Logger
}

func NewProjectHandler(projectService *service.ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		logger:         logger,
	}
}

// GetByID godoc
// @Summary Get project
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} domain.ProjectDTO
// @Security BearerAuth
// @Router /projects/{id} [get]
func (h *ProjectHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "project")
	if !ok {
		return
	}

	project, err := h.projectService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get project")
		return
	}
	respondJSON(w, http.StatusOK, project)
}

// Archive godoc
// @Summary Archive project
// @Description Archives the project and every proposal attached to it
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} domain.ProjectDTO
// @Failure 409 {object} domain.APIError "PROJECT_ALREADY_ARCHIVED"
// @Security BearerAuth
// @Router /projects/{id}/archive [post]
func (h *ProjectHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "project")
	if !ok {
		return
	}

	project, err := h.projectService.Archive(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "archive project")
		return
	}
	respondJSON(w, http.StatusOK, project)
}
