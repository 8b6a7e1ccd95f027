// internal/api/matches/handlers.go
package matches

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/marceldopr/volleyball-stats-pro-v3-sub003/internal/db"
	"github.com/marceldopr/volleyball-stats-pro-v3-sub003/internal/match"
)

const (
	matchIDPathKey = "id"
	atQueryKey     = "at"
	afterQueryKey  = "after"
)

var manager *match.Manager

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(m *match.Manager) {
	manager = m
}

type actionRequest struct {
	Action   string `json:"action"`
	PlayerID string `json:"playerId,omitempty"`
}

type eventRequest struct {
	ID      string        `json:"id,omitempty"`
	Type    string        `json:"type"`
	Payload match.Payload `json:"payload"`
}

type substitutionRequest struct {
	OutPlayerID string `json:"outPlayerId"`
	InPlayerID  string `json:"inPlayerId"`
	Position    int    `json:"position,omitempty"`
}

type dismissRequest struct {
	SetNumber int `json:"setNumber"`
}

// GET /api/v1/matches/{id}/state
// With ?at=N, the state is re-derived from the first N events (time-travel).
func HandleMatchState(w http.ResponseWriter, r *http.Request) {
	session, ok := loadSession(w, r)
	if !ok {
		return
	}

	if raw := r.URL.Query().Get(atQueryKey); raw != "" {
		at, err := strconv.Atoi(raw)
		if err != nil || at < 0 {
			http.Error(w, "invalid at index", http.StatusBadRequest)
			return
		}
		writeJSON(w, r, http.StatusOK, session.StateAt(at))
		return
	}

	writeJSON(w, r, http.StatusOK, session.State())
}

// POST /api/v1/matches/{id}/actions
// Captures a semantic scoring action. Returns 409 with needsPlayer when a
// player-attribution step is required, 429 while a duplicate tap is
// suppressed.
func HandleCaptureAction(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	session, ok := loadSession(w, r)
	if !ok {
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resolution, err := match.ResolveAction(match.ActionKind(req.Action))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if resolution.NeedsPlayer && req.PlayerID == "" {
		writeJSON(w, r, http.StatusConflict, map[string]any{
			"needsPlayer": true,
			"action":      req.Action,
		})
		return
	}

	if session.State().IsMatchFinished {
		http.Error(w, "match is finished", http.StatusConflict)
		return
	}

	if !session.Guard().Allow(match.ActionKind(req.Action)) {
		logger.Debug().Str("action", req.Action).Msg("Duplicate action dispatch suppressed")
		http.Error(w, "action already in flight", http.StatusTooManyRequests)
		return
	}

	ev := resolution.BuildEvent(req.PlayerID)
	if err := session.Append(r.Context(), ev); err != nil {
		logger.Error().Err(err).Str("action", req.Action).Msg("Failed to append captured event")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, http.StatusCreated, session.State())
}

// POST /api/v1/matches/{id}/events
// Appends a raw typed event, for intents the action capture layer does not
// cover (lineups, service choice, timeouts, receptions).
func HandleAppendEvent(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	session, ok := loadSession(w, r)
	if !ok {
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ev := match.Event{
		ID:        strings.TrimSpace(req.ID),
		Type:      match.EventType(req.Type),
		Timestamp: time.Now().UTC(),
		Payload:   req.Payload,
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if !ev.Type.IsValid() {
		http.Error(w, "unknown event type", http.StatusBadRequest)
		return
	}

	if err := session.Append(r.Context(), ev); err != nil {
		logger.Error().Err(err).Str("type", req.Type).Msg("Failed to append event")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, http.StatusCreated, session.State())
}

// DELETE /api/v1/matches/{id}/events?after=N
// Truncates the log to the first N events: the time-travel undo.
func HandleTruncateEvents(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	session, ok := loadSession(w, r)
	if !ok {
		return
	}

	after, err := strconv.Atoi(r.URL.Query().Get(afterQueryKey))
	if err != nil || after < 0 {
		http.Error(w, "invalid after index", http.StatusBadRequest)
		return
	}

	if err := session.Truncate(r.Context(), after); err != nil {
		logger.Error().Err(err).Int("after", after).Msg("Failed to truncate event log")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, http.StatusOK, session.State())
}

// GET /api/v1/matches/{id}/timeline
func HandleTimeline(w http.ResponseWriter, r *http.Request) {
	session, ok := loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, session.Timeline())
}

// GET /api/v1/matches/{id}/analytics
func HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	session, ok := loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, session.Analytics())
}

// POST /api/v1/matches/{id}/substitutions/validate
func HandleValidateSubstitution(w http.ResponseWriter, r *http.Request) {
	session, ok := loadSession(w, r)
	if !ok {
		return
	}

	var req substitutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	state := session.State()
	check := match.ValidateSubstitution(state.CurrentSetSubstitutions, req.OutPlayerID, req.InPlayerID, state.OnCourt)
	writeJSON(w, r, http.StatusOK, check)
}

// POST /api/v1/matches/{id}/substitutions/batch
// Queues a substitution after validating it against committed state plus
// the queue so far.
func HandleQueueSubstitution(w http.ResponseWriter, r *http.Request) {
	session, ok := loadSession(w, r)
	if !ok {
		return
	}

	var req substitutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	roster := session.Roster()
	candidate := match.PlannedSub{
		OutPlayerID: req.OutPlayerID,
		InPlayerID:  req.InPlayerID,
		OutPosition: match.Position(req.Position),
		OutPlayer:   roster[req.OutPlayerID],
		InPlayer:    roster[req.InPlayerID],
	}
	if candidate.OutPosition == 0 {
		candidate.OutPosition = session.State().PositionOf(req.OutPlayerID)
	}

	check := session.QueueSubstitution(candidate)
	status := http.StatusOK
	if !check.Valid {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, r, status, map[string]any{
		"check": check,
		"queue": session.PlannedQueue(),
	})
}

// GET /api/v1/matches/{id}/substitutions/batch
func HandlePlannedQueue(w http.ResponseWriter, r *http.Request) {
	session, ok := loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, session.PlannedQueue())
}

// DELETE /api/v1/matches/{id}/substitutions/batch
func HandleClearQueue(w http.ResponseWriter, r *http.Request) {
	session, ok := loadSession(w, r)
	if !ok {
		return
	}
	session.ClearPlanned()
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/matches/{id}/substitutions/commit
// Converts the planned queue into SUBSTITUTION events in order.
func HandleCommitSubstitutions(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	session, ok := loadSession(w, r)
	if !ok {
		return
	}

	if err := session.CommitPlanned(r.Context()); err != nil {
		logger.Error().Err(err).Msg("Failed to commit planned substitutions")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, session.State())
}

// POST /api/v1/matches/{id}/summary/dismiss
func HandleDismissSummary(w http.ResponseWriter, r *http.Request) {
	session, ok := loadSession(w, r)
	if !ok {
		return
	}

	var req dismissRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SetNumber < 1 {
		http.Error(w, "invalid set number", http.StatusBadRequest)
		return
	}

	session.DismissSetSummary(req.SetNumber)
	writeJSON(w, r, http.StatusOK, session.State())
}

func loadSession(w http.ResponseWriter, r *http.Request) (*match.Session, bool) {
	logger := log.Ctx(r.Context())

	if manager == nil {
		logger.Error().Msg("Match session manager not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}

	matchID := strings.TrimSpace(r.PathValue(matchIDPathKey))
	if matchID == "" {
		http.Error(w, "match id is required", http.StatusBadRequest)
		return nil, false
	}

	session, err := manager.Session(r.Context(), matchID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "match not found", http.StatusNotFound)
			return nil, false
		}
		logger.Error().Err(err).Str("match_id", matchID).Msg("Failed to load match session")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, false
	}
	return session, true
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode response")
	}
}
