package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/service"
)

// OutcomeReader is the part of the outcome service the event endpoints use.
type OutcomeReader interface {
	Get(ctx context.Context, id domain.EventID) (domain.Outcome, error)
	Status(ctx context.Context, id domain.EventID) (domain.EventStatus, error)
}

// MarketReader is the part of the market service the event endpoints use.
type MarketReader interface {
	Markets(ctx context.Context, id domain.EventID) ([]domain.Market, error)
	Market(ctx context.Context, id domain.EventID, name string) (domain.Market, error)
	ActiveBoard(ctx context.Context, round int64, matches int, category, region string) ([]service.BoardEvent, error)
}

// EventHandler serves events, their markets and the betting board.
type EventHandler struct {
	outcomes OutcomeReader
	markets  MarketReader
	schedule domain.Schedule
	matches  int
	logger   *slog.Logger
	now      func() time.Time
}

// NewEventHandler creates an EventHandler. matches is the number of events
// per round shown on the board.
func NewEventHandler(outcomes OutcomeReader, markets MarketReader, schedule domain.Schedule, matches int, logger *slog.Logger) *EventHandler {
	if matches <= 0 {
		matches = 1
	}
	return &EventHandler{
		outcomes: outcomes,
		markets:  markets,
		schedule: schedule,
		matches:  matches,
		logger:   logger,
		now:      time.Now,
	}
}

type eventResponse struct {
	EventID domain.EventID     `json:"event_id"`
	Status  domain.EventStatus `json:"status"`
	Starts  time.Time          `json:"starts"`
	Ends    time.Time          `json:"ends"`
	Outcome *domain.Outcome    `json:"outcome,omitempty"`
}

// GetEvent returns the schedule and status of an event. The outcome is only
// included once the event has ended.
// GET /api/events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := eventParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := h.outcomes.Status(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "event status", err)
		return
	}
	resp := eventResponse{
		EventID: id,
		Status:  status,
		Starts:  h.schedule.Start(id),
		Ends:    h.schedule.End(id),
	}
	if status == domain.EventStatusVoid || !h.schedule.Ended(id, h.now()) {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	o, err := h.outcomes.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get outcome", err)
		return
	}
	resp.Status = domain.EventStatusFinal
	resp.Outcome = &o
	writeJSON(w, http.StatusOK, resp)
}

// ListMarkets returns the priced markets of an event.
// GET /api/events/{id}/markets
func (h *EventHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	id, err := eventParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	markets, err := h.markets.Markets(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "list markets", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event_id": id, "markets": markets})
}

// GetMarket returns one market of an event by name.
// GET /api/events/{id}/markets/{name}
func (h *EventHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := eventParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := h.markets.Market(r.Context(), id, r.PathValue("name"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get market", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Board returns the priced events of a round.
// GET /api/board?round=&category=national|regional|duel&region=&matches=
func (h *EventHandler) Board(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	round := h.schedule.RoundAt(h.now()) + 1
	if v := q.Get("round"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "round must be a non-negative integer")
			return
		}
		round = n
	}

	matches := h.matches
	if v := q.Get("matches"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 50 {
			writeError(w, http.StatusBadRequest, "matches must be within [1, 50]")
			return
		}
		matches = n
	}

	category := strings.ToLower(q.Get("category"))
	switch category {
	case "", domain.CategoryNational, domain.CategoryDuel:
	case domain.CategoryRegional:
		if q.Get("region") == "" {
			writeError(w, http.StatusBadRequest, "region is required for regional events")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown category "+strconv.Quote(category))
		return
	}

	board, err := h.markets.ActiveBoard(r.Context(), round, matches, category, q.Get("region"))
	if err != nil {
		writeServiceError(w, r, h.logger, "board", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"round": round, "events": board})
}
