package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/OpenxAI-Network/miniapp-factory/internal/middleware"
	"github.com/OpenxAI-Network/miniapp-factory/internal/models"
	apierrors "github.com/OpenxAI-Network/miniapp-factory/internal/pkg/errors"
	"github.com/OpenxAI-Network/miniapp-factory/internal/pkg/response"
	"github.com/OpenxAI-Network/miniapp-factory/internal/repository"
)

// WaitlistHandler serves enrollment. One signup per IP.
type WaitlistHandler struct {
	waitlist repository.WaitlistRepository
}

// NewWaitlistHandler creates a new waitlist handler.
func NewWaitlistHandler(waitlist repository.WaitlistRepository) *WaitlistHandler {
	return &WaitlistHandler{waitlist: waitlist}
}

// Routes returns a chi router with waitlist routes.
func (h *WaitlistHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/allowed", h.Allowed)
	r.Get("/{account}/position", h.Position)
	r.Post("/{account}/enroll", h.Enroll)

	return r
}

// Allowed handles GET /api/waitlist/allowed
func (h *WaitlistHandler) Allowed(w http.ResponseWriter, r *http.Request) {
	ip := middleware.RealIP(r)
	if ip == "" {
		response.BadRequest(w, "could not determine client address")
		return
	}

	existing, err := h.waitlist.GetByIP(r.Context(), ip)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, existing == nil)
}

// Position handles GET /api/waitlist/{account}/position. Positions are
// 1-based; accounts not on the list report 0.
func (h *WaitlistHandler) Position(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	entry, err := h.waitlist.GetByAccount(r.Context(), account)
	if err != nil {
		response.InternalError(w)
		return
	}
	if entry == nil {
		response.OK(w, 0)
		return
	}
	response.OK(w, entry.ID)
}

// Enroll handles POST /api/waitlist/{account}/enroll
func (h *WaitlistHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	ip := middleware.RealIP(r)
	if ip == "" {
		response.BadRequest(w, "could not determine client address")
		return
	}

	existing, err := h.waitlist.GetByIP(r.Context(), ip)
	if err != nil {
		response.InternalError(w)
		return
	}
	if existing != nil {
		response.Error(w, apierrors.ErrForbidden)
		return
	}

	entry := &models.WaitlistEntry{Account: account, IP: ip, Date: time.Now().Unix()}
	if err := h.waitlist.Insert(r.Context(), entry); err != nil {
		response.InternalError(w)
		return
	}
	response.Empty(w)
}
