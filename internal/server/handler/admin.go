package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/service"
)

// Settler defines the operator actions exposed by the admin endpoints.
type Settler interface {
	SettleEvent(ctx context.Context, id domain.EventID) (service.SettlementReport, error)
	VoidEvent(ctx context.Context, id domain.EventID, reason, operator string) (service.SettlementReport, error)
	SetOverride(ctx context.Context, o domain.ManualOverride) (service.SettlementReport, error)
}

// AuditReader lists recent audit entries.
type AuditReader interface {
	List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error)
}

// AdminHandler serves operator endpoints. Routes are mounted behind the API
// key middleware.
type AdminHandler struct {
	settler Settler
	audit   AuditReader
	logger  *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(settler Settler, audit AuditReader, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{settler: settler, audit: audit, logger: logger}
}

// operator names who performed an admin action.
func operator(r *http.Request) string {
	if op := strings.TrimSpace(r.Header.Get("X-Operator")); op != "" {
		return op
	}
	return "admin-api"
}

// Settle runs a settlement pass over one event.
// POST /api/admin/events/{id}/settle
func (h *AdminHandler) Settle(w http.ResponseWriter, r *http.Request) {
	id, err := eventParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := h.settler.SettleEvent(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "settle event", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type voidRequest struct {
	Reason string `json:"reason"`
}

// Void voids an event and refunds every pending leg on it.
// POST /api/admin/events/{id}/void {"reason": "..."}
func (h *AdminHandler) Void(w http.ResponseWriter, r *http.Request) {
	id, err := eventParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req voidRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}

	report, err := h.settler.VoidEvent(r.Context(), id, req.Reason, operator(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "void event", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type overrideRequest struct {
	Market  string `json:"market"`
	Outcome string `json:"outcome"`
}

// Override records an operator result for one market and re-settles.
// POST /api/admin/events/{id}/overrides {"market": "...", "outcome": "..."}
func (h *AdminHandler) Override(w http.ResponseWriter, r *http.Request) {
	id, err := eventParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req overrideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	report, err := h.settler.SetOverride(r.Context(), domain.ManualOverride{
		EventID:  id,
		Market:   req.Market,
		Outcome:  req.Outcome,
		Operator: operator(r),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, "set override", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListAudit returns recent audit entries.
// GET /api/admin/audit?limit=50&offset=0
func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.audit.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "list audit", err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
