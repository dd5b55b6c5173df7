package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/service"
)

// BetPlacer defines the methods that the bet handler requires from the
// service layer.
type BetPlacer interface {
	Place(ctx context.Context, slip service.Slip) (service.Placement, error)
	Get(ctx context.Context, id string) (domain.Bet, error)
	ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Bet, error)
}

// BetHandler serves bet placement and lookup.
type BetHandler struct {
	bets   BetPlacer
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler with the given service and logger.
func NewBetHandler(bets BetPlacer, logger *slog.Logger) *BetHandler {
	return &BetHandler{bets: bets, logger: logger}
}

// PlaceBet prices and records a bet slip. Odds always come from the book.
// POST /api/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var slip service.Slip
	if err := decodeJSON(w, r, &slip); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	p, err := h.bets.Place(r.Context(), slip)
	if err != nil {
		writeServiceError(w, r, h.logger, "place bet", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetBet returns a bet by id.
// GET /api/bets/{id}
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	bet, err := h.bets.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get bet", err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

// ListUserBets returns a user's bets, newest first.
// GET /api/users/{user}/bets?limit=50&offset=0
func (h *BetHandler) ListUserBets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	bets, err := h.bets.ListByUser(r.Context(), r.PathValue("user"), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, "list bets", err)
		return
	}
	if bets == nil {
		bets = []domain.Bet{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bets":   bets,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}
