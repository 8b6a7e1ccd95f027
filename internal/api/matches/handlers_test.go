package matches_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marceldopr/volleyball-stats-pro-v3-sub003/internal/api/matches"
	"github.com/marceldopr/volleyball-stats-pro-v3-sub003/internal/db"
	"github.com/marceldopr/volleyball-stats-pro-v3-sub003/internal/match"
	"github.com/marceldopr/volleyball-stats-pro-v3-sub003/internal/testutil"
)

// newTestMux seeds a match into a fresh database and wires the scouting
// routes the way cmd/server does.
func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	database := testutil.NewTestDB(t)
	ctx := context.Background()

	if err := database.Queries.CreateTeam(ctx, db.CreateTeamParams{ID: "team-1", Name: "CV Centro"}); err != nil {
		t.Fatalf("seed team: %v", err)
	}
	for i := 1; i <= 8; i++ {
		err := database.Queries.CreatePlayer(ctx, db.CreatePlayerParams{
			ID:     fmt.Sprintf("p%d", i),
			TeamID: "team-1",
			Name:   fmt.Sprintf("Jugadora %d", i),
			Number: i,
		})
		if err != nil {
			t.Fatalf("seed player %d: %v", i, err)
		}
	}
	err := database.Queries.CreateMatch(ctx, db.CreateMatchParams{
		ID: "match-1", TeamID: "team-1", Opponent: "CV Rivales", OurSide: match.SideHome,
	})
	if err != nil {
		t.Fatalf("seed match: %v", err)
	}

	matches.InitHandlers(match.NewManager(database.Queries))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/matches/{id}/state", matches.HandleMatchState)
	mux.HandleFunc("POST /api/v1/matches/{id}/actions", matches.HandleCaptureAction)
	mux.HandleFunc("POST /api/v1/matches/{id}/events", matches.HandleAppendEvent)
	mux.HandleFunc("DELETE /api/v1/matches/{id}/events", matches.HandleTruncateEvents)
	mux.HandleFunc("GET /api/v1/matches/{id}/timeline", matches.HandleTimeline)
	mux.HandleFunc("GET /api/v1/matches/{id}/analytics", matches.HandleAnalytics)
	mux.HandleFunc("POST /api/v1/matches/{id}/substitutions/validate", matches.HandleValidateSubstitution)
	mux.HandleFunc("POST /api/v1/matches/{id}/substitutions/batch", matches.HandleQueueSubstitution)
	mux.HandleFunc("GET /api/v1/matches/{id}/substitutions/batch", matches.HandlePlannedQueue)
	mux.HandleFunc("DELETE /api/v1/matches/{id}/substitutions/batch", matches.HandleClearQueue)
	mux.HandleFunc("POST /api/v1/matches/{id}/substitutions/commit", matches.HandleCommitSubstitutions)
	mux.HandleFunc("POST /api/v1/matches/{id}/summary/dismiss", matches.HandleDismissSummary)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) match.DerivedState {
	t.Helper()
	var state match.DerivedState
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return state
}

// postLineup seeds a set 1 lineup through the events endpoint.
func postLineup(t *testing.T, mux *http.ServeMux) {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/events", map[string]any{
		"type": "SET_LINEUP",
		"payload": map[string]any{
			"lineup": map[string]any{
				"setNumber": 1,
				"positions": map[string]string{"1": "p1", "2": "p2", "3": "p3", "4": "p4", "5": "p5", "6": "p6"},
			},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("lineup post status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleMatchState_EmptyMatch(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/matches/match-1/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	state := decodeState(t, rec)
	if state.CurrentSet != 1 || state.HomeScore != 0 {
		t.Errorf("state = set %d score %d, want set 1 score 0", state.CurrentSet, state.HomeScore)
	}
}

func TestHandleMatchState_UnknownMatch(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/matches/nope/state", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleCaptureAction_AttributedPoint(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/actions",
		map[string]string{"action": "attack_point", "playerId": "p1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	state := decodeState(t, rec)
	if state.HomeScore != 1 {
		t.Errorf("HomeScore = %d, want 1", state.HomeScore)
	}
}

func TestHandleCaptureAction_NeedsPlayer(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/actions",
		map[string]string{"action": "attack_point"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["needsPlayer"] != true {
		t.Errorf("body = %v, want needsPlayer true", body)
	}

	// The attribution round trip did not score anything.
	state := decodeState(t, doJSON(t, mux, http.MethodGet, "/api/v1/matches/match-1/state", nil))
	if state.HomeScore != 0 {
		t.Errorf("HomeScore = %d, want 0", state.HomeScore)
	}
}

func TestHandleCaptureAction_OpponentErrorNeedsNoPlayer(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/actions",
		map[string]string{"action": "opponent_error"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	state := decodeState(t, rec)
	if state.HomeScore != 1 {
		t.Errorf("HomeScore = %d, want 1", state.HomeScore)
	}
}

func TestHandleCaptureAction_DuplicateTapSuppressed(t *testing.T) {
	mux := newTestMux(t)

	first := doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/actions",
		map[string]string{"action": "opponent_point"})
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d", first.Code)
	}
	second := doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/actions",
		map[string]string{"action": "opponent_point"})
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", second.Code)
	}

	state := decodeState(t, doJSON(t, mux, http.MethodGet, "/api/v1/matches/match-1/state", nil))
	if state.AwayScore != 1 {
		t.Errorf("AwayScore = %d, want 1 (duplicate suppressed)", state.AwayScore)
	}
}

func TestHandleCaptureAction_UnknownAction(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/actions",
		map[string]string{"action": "dance_move"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleAppendEvent_AndTimeTravel(t *testing.T) {
	mux := newTestMux(t)

	for i := 0; i < 3; i++ {
		rec := doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/events",
			map[string]any{"type": "POINT_US", "payload": map[string]any{"point": map[string]any{"reason": "attack"}}})
		if rec.Code != http.StatusCreated {
			t.Fatalf("append %d status = %d: %s", i, rec.Code, rec.Body.String())
		}
	}

	past := decodeState(t, doJSON(t, mux, http.MethodGet, "/api/v1/matches/match-1/state?at=1", nil))
	if past.HomeScore != 1 {
		t.Errorf("state at 1 = %d, want 1", past.HomeScore)
	}
	live := decodeState(t, doJSON(t, mux, http.MethodGet, "/api/v1/matches/match-1/state", nil))
	if live.HomeScore != 3 {
		t.Errorf("live state = %d, want 3", live.HomeScore)
	}
}

func TestHandleAppendEvent_UnknownType(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/events",
		map[string]any{"type": "MYSTERY"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleTruncateEvents(t *testing.T) {
	mux := newTestMux(t)

	for i := 0; i < 4; i++ {
		doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/events",
			map[string]any{"type": "POINT_US"})
	}

	rec := doJSON(t, mux, http.MethodDelete, "/api/v1/matches/match-1/events?after=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	state := decodeState(t, rec)
	if state.HomeScore != 2 {
		t.Errorf("HomeScore after truncate = %d, want 2", state.HomeScore)
	}
}

func TestHandleTruncateEvents_InvalidIndex(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodDelete, "/api/v1/matches/match-1/events?after=-1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleTimeline(t *testing.T) {
	mux := newTestMux(t)
	postLineup(t, mux)
	doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/actions",
		map[string]string{"action": "attack_point", "playerId": "p1"})

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/matches/match-1/timeline", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var entries []match.TimelineEntry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	last := entries[1]
	if last.Home != 1 || last.SetNumber != 1 {
		t.Errorf("last entry = set %d %d-%d, want set 1 1-0", last.SetNumber, last.Home, last.Away)
	}
}

func TestHandleAnalytics(t *testing.T) {
	mux := newTestMux(t)
	doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/actions",
		map[string]string{"action": "attack_point", "playerId": "p1"})

	rec := doJSON(t, mux, http.MethodGet, "/api/v1/matches/match-1/analytics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		PlayerStats []match.PlayerStats `json:"playerStats"`
		Streaks     match.StreakStats   `json:"streaks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.PlayerStats) != 1 || body.PlayerStats[0].PlayerID != "p1" {
		t.Errorf("playerStats = %+v, want one row for p1", body.PlayerStats)
	}
	if body.Streaks.LongestUs != 1 {
		t.Errorf("LongestUs = %d, want 1", body.Streaks.LongestUs)
	}
}

func TestHandleValidateSubstitution(t *testing.T) {
	mux := newTestMux(t)
	postLineup(t, mux)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/substitutions/validate",
		map[string]string{"outPlayerId": "p1", "inPlayerId": "p7"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var check match.SubstitutionCheck
	if err := json.NewDecoder(rec.Body).Decode(&check); err != nil {
		t.Fatal(err)
	}
	if !check.Valid {
		t.Errorf("check = %+v, want valid", check)
	}

	rec = doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/substitutions/validate",
		map[string]string{"outPlayerId": "p9", "inPlayerId": "p7"})
	if err := json.NewDecoder(rec.Body).Decode(&check); err != nil {
		t.Fatal(err)
	}
	if check.Valid || check.Reason != match.ReasonOutNotOnCourt {
		t.Errorf("check = %+v, want rejection %q", check, match.ReasonOutNotOnCourt)
	}
}

func TestHandleSubstitutionBatchLifecycle(t *testing.T) {
	mux := newTestMux(t)
	postLineup(t, mux)

	// Queue a legal swap.
	rec := doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/substitutions/batch",
		map[string]string{"outPlayerId": "p1", "inPlayerId": "p7"})
	if rec.Code != http.StatusOK {
		t.Fatalf("queue status = %d: %s", rec.Code, rec.Body.String())
	}

	// Queueing the same player again fails with 422.
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/substitutions/batch",
		map[string]string{"outPlayerId": "p7", "inPlayerId": "p8"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("conflicting queue status = %d, want 422", rec.Code)
	}

	// The queue endpoint reports the single pending entry.
	rec = doJSON(t, mux, http.MethodGet, "/api/v1/matches/match-1/substitutions/batch", nil)
	var queue []match.PlannedSub
	if err := json.NewDecoder(rec.Body).Decode(&queue); err != nil {
		t.Fatal(err)
	}
	if len(queue) != 1 || queue[0].OutPlayerID != "p1" {
		t.Fatalf("queue = %+v, want one entry p1 out", queue)
	}

	// Commit turns the queue into a committed substitution.
	rec = doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/substitutions/commit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("commit status = %d", rec.Code)
	}
	state := decodeState(t, rec)
	if state.CurrentSetSubstitutions.Total != 1 {
		t.Errorf("committed total = %d, want 1", state.CurrentSetSubstitutions.Total)
	}
	if !state.IsOnCourt("p7") || state.IsOnCourt("p1") {
		t.Errorf("on court = %v, want p7 in for p1", state.OnCourt)
	}
}

func TestHandleClearQueue(t *testing.T) {
	mux := newTestMux(t)
	postLineup(t, mux)

	doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/substitutions/batch",
		map[string]string{"outPlayerId": "p1", "inPlayerId": "p7"})

	rec := doJSON(t, mux, http.MethodDelete, "/api/v1/matches/match-1/substitutions/batch", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d, want 204", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/v1/matches/match-1/substitutions/batch", nil)
	var queue []match.PlannedSub
	if err := json.NewDecoder(rec.Body).Decode(&queue); err != nil {
		t.Fatal(err)
	}
	if len(queue) != 0 {
		t.Errorf("queue after clear = %+v, want empty", queue)
	}
}

func TestHandleDismissSummary(t *testing.T) {
	mux := newTestMux(t)

	// Finish set 1 at 25-0 through raw events.
	for i := 0; i < 25; i++ {
		doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/events",
			map[string]any{"type": "POINT_US"})
	}

	state := decodeState(t, doJSON(t, mux, http.MethodGet, "/api/v1/matches/match-1/state", nil))
	if state.LastFinishedSetSummary == nil {
		t.Fatal("summary missing after set finish")
	}

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/summary/dismiss",
		map[string]int{"setNumber": 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("dismiss status = %d", rec.Code)
	}
	state = decodeState(t, rec)
	if state.LastFinishedSetSummary != nil {
		t.Error("summary should be gone after dismissal")
	}
}

func TestHandleDismissSummary_InvalidSet(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/api/v1/matches/match-1/summary/dismiss",
		map[string]int{"setNumber": 0})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
