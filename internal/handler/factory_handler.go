// Package handler provides HTTP handlers for the factory API.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/OpenxAI-Network/miniapp-factory/internal/middleware"
	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
	apierrors "github.com/OpenxAI-Network/miniapp-factory/internal/pkg/errors"
	"github.com/OpenxAI-Network/miniapp-factory/internal/pkg/response"
	"github.com/OpenxAI-Network/miniapp-factory/internal/service"
)

// FactoryHandler handles project lifecycle HTTP requests.
type FactoryHandler struct {
	factory  service.FactoryService
	validate *validator.Validate
}

// NewFactoryHandler creates a new factory handler.
func NewFactoryHandler(factory service.FactoryService) *FactoryHandler {
	return &FactoryHandler{
		factory:  factory,
		validate: validator.New(),
	}
}

// Routes returns a chi router with factory routes.
func (h *FactoryHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/owner", h.Owner)
	r.Get("/user/projects", h.UserProjects)
	r.Get("/user/credits", h.UserCredits)
	r.Get("/project/available", h.ProjectAvailable)
	r.Get("/project/price", h.ProjectPrice)
	r.Post("/project/create", h.Create)
	r.Post("/project/change", h.Change)
	r.Get("/project/history", h.History)
	r.Post("/project/reset", h.Reset)
	r.Post("/project/account_association", h.AccountAssociation)
	r.Post("/project/base_build", h.BaseBuild)
	r.Get("/deployment/llm_output", h.LLMOutput)
	r.Get("/deployment/queue", h.Queue)
	r.Post("/promo_code/redeem", h.RedeemPromoCode)
	r.Post("/promo_code/add", h.AddPromoCodes)

	return r
}

// user returns the verified caller account or writes a 401.
func user(w http.ResponseWriter, r *http.Request) (string, bool) {
	account := middleware.User(r.Context())
	if account == "" {
		response.Unauthorized(w)
		return "", false
	}
	return account, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.BadRequest(w, "invalid request body")
		return false
	}
	return true
}

// Owner handles GET /api/factory/owner
func (h *FactoryHandler) Owner(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.factory.Owner())
}

// UserProjects handles GET /api/factory/user/projects
func (h *FactoryHandler) UserProjects(w http.ResponseWriter, r *http.Request) {
	account, ok := user(w, r)
	if !ok {
		return
	}

	names, err := h.factory.UserProjects(r.Context(), account)
	if err != nil {
		response.Error(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	response.OK(w, names)
}

// UserCredits handles GET /api/factory/user/credits
func (h *FactoryHandler) UserCredits(w http.ResponseWriter, r *http.Request) {
	account, ok := user(w, r)
	if !ok {
		return
	}

	credits, err := h.factory.UserCredits(r.Context(), account)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, credits)
}

// ProjectAvailable handles GET /api/factory/project/available
func (h *FactoryHandler) ProjectAvailable(w http.ResponseWriter, r *http.Request) {
	available, err := h.factory.ProjectAvailable(r.Context(), r.URL.Query().Get("project"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, available)
}

// ProjectPrice handles GET /api/factory/project/price
func (h *FactoryHandler) ProjectPrice(w http.ResponseWriter, r *http.Request) {
	account, ok := user(w, r)
	if !ok {
		return
	}

	price, err := h.factory.ProjectPrice(r.Context(), account)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, price)
}

// CreateRequest is the HTTP request body for creating a project.
type CreateRequest struct {
	Project string `json:"project" validate:"required"`
}

// Create handles POST /api/factory/project/create
func (h *FactoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	account, ok := user(w, r)
	if !ok {
		return
	}

	var req CreateRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, "project is required")
		return
	}

	if err := h.factory.CreateProject(r.Context(), account, req.Project); err != nil {
		response.Error(w, err)
		return
	}
	response.Empty(w)
}

// ChangeRequest is the HTTP request body for requesting a change.
type ChangeRequest struct {
	Project      string `json:"project" validate:"required"`
	Instructions string `json:"instructions" validate:"required"`
}

// Change handles POST /api/factory/project/change
func (h *FactoryHandler) Change(w http.ResponseWriter, r *http.Request) {
	account, ok := user(w, r)
	if !ok {
		return
	}

	var req ChangeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, "project and instructions are required")
		return
	}

	id, err := h.factory.ChangeProject(r.Context(), account, req.Project, req.Instructions)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, id)
}

// History handles GET /api/factory/project/history
func (h *FactoryHandler) History(w http.ResponseWriter, r *http.Request) {
	deployments, err := h.factory.History(r.Context(), r.URL.Query().Get("project"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, deployments)
}

// ResetRequest is the HTTP request body for resetting a project.
type ResetRequest struct {
	Project    string `json:"project" validate:"required"`
	Deployment *int32 `json:"deployment,omitempty"`
}

// Reset handles POST /api/factory/project/reset
func (h *FactoryHandler) Reset(w http.ResponseWriter, r *http.Request) {
	account, ok := user(w, r)
	if !ok {
		return
	}

	var req ResetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, "project is required")
		return
	}

	request, err := h.factory.ResetProject(r.Context(), account, req.Project, req.Deployment)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, request)
}

// AccountAssociationRequest is the HTTP request body for the association doc.
type AccountAssociationRequest struct {
	Project            string                     `json:"project" validate:"required"`
	AccountAssociation *models.AccountAssociation `json:"account_association"`
}

// AccountAssociation handles POST /api/factory/project/account_association
func (h *FactoryHandler) AccountAssociation(w http.ResponseWriter, r *http.Request) {
	account, ok := user(w, r)
	if !ok {
		return
	}

	var req AccountAssociationRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, "project is required")
		return
	}

	request, err := h.factory.SetAccountAssociation(r.Context(), account, req.Project, req.AccountAssociation)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, request)
}

// BaseBuildRequest is the HTTP request body for the build options.
type BaseBuildRequest struct {
	Project   string            `json:"project" validate:"required"`
	BaseBuild *models.BaseBuild `json:"base_build"`
}

// BaseBuild handles POST /api/factory/project/base_build
func (h *FactoryHandler) BaseBuild(w http.ResponseWriter, r *http.Request) {
	account, ok := user(w, r)
	if !ok {
		return
	}

	var req BaseBuildRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, "project is required")
		return
	}

	request, err := h.factory.SetBaseBuild(r.Context(), account, req.Project, req.BaseBuild)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, request)
}

func deploymentParam(w http.ResponseWriter, r *http.Request) (int32, bool) {
	raw := r.URL.Query().Get("deployment")
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		response.BadRequest(w, "%s is not a valid deployment id", raw)
		return 0, false
	}
	return int32(id), true
}

// LLMOutput handles GET /api/factory/deployment/llm_output
func (h *FactoryHandler) LLMOutput(w http.ResponseWriter, r *http.Request) {
	id, ok := deploymentParam(w, r)
	if !ok {
		return
	}

	output, err := h.factory.LLMOutput(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, output)
}

// Queue handles GET /api/factory/deployment/queue
func (h *FactoryHandler) Queue(w http.ResponseWriter, r *http.Request) {
	id, ok := deploymentParam(w, r)
	if !ok {
		return
	}

	position, err := h.factory.QueuePosition(r.Context(), id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, position)
}

// RedeemRequest is the HTTP request body for redeeming a promo code.
type RedeemRequest struct {
	Code string `json:"code" validate:"required"`
}

// RedeemPromoCode handles POST /api/factory/promo_code/redeem
func (h *FactoryHandler) RedeemPromoCode(w http.ResponseWriter, r *http.Request) {
	account, ok := user(w, r)
	if !ok {
		return
	}

	var req RedeemRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, "code is required")
		return
	}

	if err := h.factory.RedeemPromoCode(r.Context(), account, req.Code); err != nil {
		response.Error(w, err)
		return
	}
	response.Empty(w)
}

// AddPromoCodesRequest is the HTTP request body for adding promo codes. The
// codes stay raw so the signature can be checked over the exact bytes.
type AddPromoCodesRequest struct {
	PromoCodes json.RawMessage `json:"promo_codes"`
	Signature  string          `json:"signature"`
}

// AddPromoCodes handles POST /api/factory/promo_code/add
func (h *FactoryHandler) AddPromoCodes(w http.ResponseWriter, r *http.Request) {
	var req AddPromoCodesRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.PromoCodes) == 0 || req.Signature == "" {
		response.Error(w, apierrors.ErrUnauthorized)
		return
	}

	if err := h.factory.AddPromoCodes(r.Context(), req.PromoCodes, req.Signature); err != nil {
		response.Error(w, err)
		return
	}
	response.Empty(w)
}
