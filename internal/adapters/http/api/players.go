package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/ladder/internal/domain/dedupe"
	"github.com/okian/ladder/internal/domain/matchmaking"
	"github.com/okian/ladder/internal/domain/skill"
)

// IdempotencyKeyHeader lets a client retry an outcome report safely.
const IdempotencyKeyHeader = "Idempotency-Key"

// ReplayedHeader is set on responses to an already applied report.
const ReplayedHeader = "Idempotent-Replayed"

// PlayerDependencies defines the matchmaking operations exposed per player.
type PlayerDependencies interface {
	CreatePlayer(ctx context.Context, name, surname string) (Standing, error)
	Standing(ctx context.Context, name, surname string) (Standing, error)
	ChooseOpponent(ctx context.Context, name, surname string) (int, error)
	RecordOutcome(ctx context.Context, name, surname string, outcome skill.Outcome, reward float64) (Standing, error)
}

// PlayerHandler handles /players requests.
type PlayerHandler struct {
	deps    PlayerDependencies
	deduper dedupe.Deduper
}

// NewPlayerHandler creates a new player handler.
func NewPlayerHandler(deps PlayerDependencies, deduper dedupe.Deduper) *PlayerHandler {
	return &PlayerHandler{deps: deps, deduper: deduper}
}

type createRequest struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
}

type outcomeRequest struct {
	Outcome string  `json:"outcome"`
	Reward  float64 `json:"reward"`
}

type opponentResponse struct {
	LevelID int `json:"level_id"`
}

// HandleCreate handles POST /players.
func (h *PlayerHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_player"
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Surname) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing name or surname")))
		return
	}
	st, err := h.deps.CreatePlayer(r.Context(), req.Name, req.Surname)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// HandleGet handles GET /players/{name}/{surname}.
func (h *PlayerHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	name, surname := pathName(r)
	st, err := h.deps.Standing(r.Context(), name, surname)
	if err != nil {
		writeFailure(w, Wrap("api.get_player", err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleChooseOpponent handles POST /players/{name}/{surname}/opponent.
func (h *PlayerHandler) HandleChooseOpponent(w http.ResponseWriter, r *http.Request) {
	name, surname := pathName(r)
	level, err := h.deps.ChooseOpponent(r.Context(), name, surname)
	if err != nil {
		writeFailure(w, Wrap("api.choose_opponent", err))
		return
	}
	writeJSON(w, http.StatusOK, opponentResponse{LevelID: level})
}

// HandleRecordOutcome handles POST /players/{name}/{surname}/outcome.
//
// With an Idempotency-Key header a settled report is replayed as the current
// standing, and a retry that arrives while the first report is still running
// gets 409 in_flight.
func (h *PlayerHandler) HandleRecordOutcome(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_outcome"
	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	outcome, err := skill.ParseOutcome(req.Outcome)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	ctx := r.Context()
	name, surname := pathName(r)
	var key string
	if k := r.Header.Get(IdempotencyKeyHeader); k != "" && h.deduper != nil {
		key = name + "/" + surname + "/" + k
		switch h.deduper.Claim(ctx, key) {
		case dedupe.InFlight:
			writeFailure(w, NewKind(op, ErrInFlight))
			return
		case dedupe.Settled:
			st, err := h.deps.Standing(ctx, name, surname)
			if err != nil {
				writeFailure(w, Wrap(op, err))
				return
			}
			w.Header().Set(ReplayedHeader, "true")
			writeJSON(w, http.StatusOK, st)
			return
		}
	}

	st, err := h.deps.RecordOutcome(ctx, name, surname, outcome, req.Reward)
	if key != "" {
		// A store failure happens after the game was applied in memory, so the
		// key settles.
		if err == nil || errors.Is(err, matchmaking.ErrStoreIO) {
			h.deduper.Settle(ctx, key)
		} else {
			h.deduper.Unrecord(ctx, key)
		}
	}
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// pathName returns the trimmed player name and surname.
func pathName(r *http.Request) (string, string) {
	return strings.TrimSpace(pathParam(r, "name")), strings.TrimSpace(pathParam(r, "surname"))
}

// pathParam returns the decoded URL parameter key. chi matches on the raw
// path when the request carries escaped characters.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}
