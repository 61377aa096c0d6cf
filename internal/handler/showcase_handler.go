package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/OpenxAI-Network/miniapp-factory/internal/pkg/response"
	"github.com/OpenxAI-Network/miniapp-factory/internal/repository"
)

// ShowcaseHandler serves the public landing page numbers. No auth.
type ShowcaseHandler struct {
	projects    repository.ProjectRepository
	deployments repository.DeploymentRepository
	workers     repository.WorkerRepository
}

// NewShowcaseHandler creates a new showcase handler.
func NewShowcaseHandler(
	projects repository.ProjectRepository,
	deployments repository.DeploymentRepository,
	workers repository.WorkerRepository,
) *ShowcaseHandler {
	return &ShowcaseHandler{
		projects:    projects,
		deployments: deployments,
		workers:     workers,
	}
}

// Routes returns a chi router with showcase routes.
func (h *ShowcaseHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/projects/count", h.ProjectsCount)
	r.Get("/projects/all", h.ProjectsAll)
	r.Get("/queue/count", h.QueueCount)
	r.Get("/queue/workers", h.QueueWorkers)

	return r
}

// projectShowcase is the public view of a project.
type projectShowcase struct {
	ID   int32  `json:"id"`
	Name string `json:"name"`
}

// ProjectsCount handles GET /api/showcase/projects/count
func (h *ShowcaseHandler) ProjectsCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.projects.GetCount(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, count)
}

// ProjectsAll handles GET /api/showcase/projects/all
func (h *ShowcaseHandler) ProjectsAll(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.GetAll(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}

	showcase := make([]projectShowcase, len(projects))
	for i, p := range projects {
		showcase[i] = projectShowcase{ID: p.ID, Name: p.Name}
	}
	response.OK(w, showcase)
}

// QueueCount handles GET /api/showcase/queue/count
func (h *ShowcaseHandler) QueueCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.deployments.GetQueuedCount(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, count)
}

// QueueWorkers handles GET /api/showcase/queue/workers
func (h *ShowcaseHandler) QueueWorkers(w http.ResponseWriter, r *http.Request) {
	count, err := h.workers.GetCount(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, count)
}
