package match

import (
	"github.com/rs/zerolog/log"
)

const (
	setWinPoints         = 25
	decidingSetWinPoints = 15
	decidingSetNumber    = 5
	setsToWinMatch       = 3
	timeoutsPerSet       = 2
	maxSubsPerSet        = 6
)

// setWinThreshold returns the points needed to win the given set. The
// deciding fifth set plays to 15, every other set to 25, always win by two.
func setWinThreshold(setNumber int) int {
	if setNumber >= decidingSetNumber {
		return decidingSetWinPoints
	}
	return setWinPoints
}

// CalculateDerivedState folds the event log into the current match state.
// It is pure over its return value, deterministic, and total: malformed
// events are logged and skipped, never a reason to abort, because the log
// may have been written by an older event schema. Running it on a prefix of
// the log reproduces the historical state at that point.
func CalculateDerivedState(events []Event, ourSide CourtSide, initialOnCourt map[Position]string, dismissedSetSummaries []int) DerivedState {
	acc := newAccumulator(ourSide, initialOnCourt, dismissedSetSummaries)
	for _, ev := range events {
		acc.apply(ev)
	}
	return acc.state
}

// accumulator carries the running fold state. timeline.go reuses it to
// snapshot score and set after each event without re-deriving prefixes
// from scratch.
type accumulator struct {
	state      DerivedState
	ourSide    CourtSide
	dismissed  map[int]bool
	firstServe map[int]TeamRef
}

func newAccumulator(ourSide CourtSide, initialOnCourt map[Position]string, dismissedSetSummaries []int) *accumulator {
	onCourt := make(map[Position]string, 6)
	for pos, id := range initialOnCourt {
		onCourt[pos] = id
	}
	dismissed := make(map[int]bool, len(dismissedSetSummaries))
	for _, setNumber := range dismissedSetSummaries {
		dismissed[setNumber] = true
	}
	return &accumulator{
		state: DerivedState{
			CurrentSet:              1,
			OnCourt:                 onCourt,
			CurrentSetSubstitutions: NewSetSubstitutions(),
		},
		ourSide:    ourSide,
		dismissed:  dismissed,
		firstServe: make(map[int]TeamRef),
	}
}

func (a *accumulator) apply(ev Event) {
	switch ev.Type {
	case EventSetLineup:
		a.applyLineup(ev)
	case EventSetServiceChoice:
		a.applyServiceChoice(ev)
	case EventSetStart:
		a.applySetStart(ev)
	case EventSetEnd:
		a.applySetEnd(ev)
	case EventPointUs:
		a.applyPoint(TeamUs, ev)
	case EventPointOpponent:
		a.applyPoint(TeamOpponent, ev)
	case EventSubstitution:
		a.applySubstitution(ev)
	case EventTimeout:
		a.applyTimeout(ev)
	case EventReceptionEval, EventFreeball, EventFreeballSent, EventFreeballReceived:
		// Recorded for analytics and timeline only; no scoreboard effect.
	default:
		log.Warn().Str("event_id", ev.ID).Str("type", string(ev.Type)).
			Msg("Skipping event of unknown type")
	}
}

func (a *accumulator) sideOf(team TeamRef) CourtSide {
	if team == TeamUs {
		return a.ourSide
	}
	return a.ourSide.Opposite()
}

func (a *accumulator) applyLineup(ev Event) {
	p := ev.Payload.Lineup
	if p == nil || len(p.Positions) == 0 {
		log.Warn().Str("event_id", ev.ID).Msg("Skipping lineup event without positions")
		return
	}
	if p.SetNumber != 0 && p.SetNumber != a.state.CurrentSet {
		log.Warn().Str("event_id", ev.ID).
			Int("lineup_set", p.SetNumber).
			Int("current_set", a.state.CurrentSet).
			Msg("Lineup set number does not match current set")
	}
	onCourt := make(map[Position]string, 6)
	for pos, id := range p.Positions {
		if pos < 1 || pos > 6 {
			log.Warn().Str("event_id", ev.ID).Int("position", int(pos)).
				Msg("Ignoring lineup entry with invalid position")
			continue
		}
		onCourt[pos] = id
	}
	a.state.OnCourt = onCourt
	a.state.CurrentLiberoID = p.LiberoID
	a.state.CurrentSetSubstitutions = NewSetSubstitutions()
	a.state.HasLineupForCurrentSet = true
	// A lineup for the new set implies the previous set summary was seen.
	a.clearSetSummary()
}

func (a *accumulator) applyServiceChoice(ev Event) {
	p := ev.Payload.ServiceChoice
	if p == nil {
		log.Warn().Str("event_id", ev.ID).Msg("Skipping service choice event without payload")
		return
	}
	setNumber := p.SetNumber
	if setNumber == 0 {
		setNumber = a.state.CurrentSet
	}
	// The explicit choice event is authoritative for the set it names.
	a.firstServe[setNumber] = p.Serving
	if setNumber == a.state.CurrentSet && a.state.HomeScore == 0 && a.state.AwayScore == 0 {
		a.state.ServingSide = p.Serving
	}
}

func (a *accumulator) applySetStart(ev Event) {
	if p := ev.Payload.Set; p != nil && p.SetNumber > a.state.CurrentSet && !a.state.IsMatchFinished {
		a.state.CurrentSet = p.SetNumber
	}
	a.state.HomeScore = 0
	a.state.AwayScore = 0
	a.state.TimeoutsHome = 0
	a.state.TimeoutsAway = 0
	a.state.CurrentSetSubstitutions = NewSetSubstitutions()
	a.state.ServingSide = a.serveForSet(a.state.CurrentSet)
	a.clearSetSummary()
}

func (a *accumulator) applySetEnd(ev Event) {
	if p := ev.Payload.Set; p != nil && p.SetNumber != 0 && p.SetNumber != a.state.CurrentSet {
		// Stale close for a set that already finished at the threshold.
		return
	}
	if a.state.IsMatchFinished {
		return
	}
	var winner CourtSide
	switch {
	case a.state.HomeScore > a.state.AwayScore:
		winner = SideHome
	case a.state.AwayScore > a.state.HomeScore:
		winner = SideAway
	default:
		log.Warn().Str("event_id", ev.ID).
			Int("set", a.state.CurrentSet).
			Msg("Set closed with tied score; no set awarded")
		a.advanceSet()
		return
	}
	a.finishSet(winner)
}

func (a *accumulator) applyPoint(scorer TeamRef, ev Event) {
	if a.state.IsMatchFinished {
		log.Warn().Str("event_id", ev.ID).Msg("Skipping point event after match finish")
		return
	}
	if a.sideOf(scorer) == SideHome {
		a.state.HomeScore++
	} else {
		a.state.AwayScore++
	}
	// Serve always moves to the scoring side.
	a.state.ServingSide = scorer

	threshold := setWinThreshold(a.state.CurrentSet)
	home, away := a.state.HomeScore, a.state.AwayScore
	switch {
	case home >= threshold && home-away >= 2:
		a.finishSet(SideHome)
	case away >= threshold && away-home >= 2:
		a.finishSet(SideAway)
	}
}

func (a *accumulator) applySubstitution(ev Event) {
	p := ev.Payload.Substitution
	if p == nil {
		log.Warn().Str("event_id", ev.ID).Msg("Skipping substitution event without payload")
		return
	}
	if p.IsLiberoSwap {
		// Libero swaps bypass the ledger and the 6-per-set budget.
		a.state.CurrentLiberoID = p.InPlayerID
		return
	}

	pos := a.state.PositionOf(p.OutPlayerID)
	if pos == 0 && p.Position >= 1 && p.Position <= 6 {
		pos = p.Position
	}
	if pos == 0 || a.state.OnCourt[pos] != p.OutPlayerID {
		log.Warn().Str("event_id", ev.ID).
			Str("out_player", p.OutPlayerID).
			Msg("Skipping substitution: outgoing player not on court")
		return
	}
	if a.state.IsOnCourt(p.InPlayerID) {
		log.Warn().Str("event_id", ev.ID).
			Str("in_player", p.InPlayerID).
			Msg("Skipping substitution: incoming player already on court")
		return
	}

	a.state.OnCourt[pos] = p.InPlayerID
	a.state.CurrentSetSubstitutions.record(p.OutPlayerID, p.InPlayerID)
	if a.state.CurrentSetSubstitutions.Total > maxSubsPerSet {
		log.Warn().Str("event_id", ev.ID).
			Int("total", a.state.CurrentSetSubstitutions.Total).
			Msg("Substitution count exceeds the per-set limit")
	}
}

func (a *accumulator) applyTimeout(ev Event) {
	p := ev.Payload.Timeout
	if p == nil {
		log.Warn().Str("event_id", ev.ID).Msg("Skipping timeout event without payload")
		return
	}
	// The fold clamps at two per side per set and reports overflow rather
	// than rejecting, so older malformed logs still replay.
	switch p.Side {
	case SideHome:
		if a.state.TimeoutsHome >= timeoutsPerSet {
			log.Warn().Str("event_id", ev.ID).Msg("Timeout beyond per-set limit ignored")
			return
		}
		a.state.TimeoutsHome++
	case SideAway:
		if a.state.TimeoutsAway >= timeoutsPerSet {
			log.Warn().Str("event_id", ev.ID).Msg("Timeout beyond per-set limit ignored")
			return
		}
		a.state.TimeoutsAway++
	default:
		log.Warn().Str("event_id", ev.ID).Str("side", string(p.Side)).
			Msg("Skipping timeout event with unknown side")
	}
}

// finishSet closes the running set for the winning side, records the score
// history and summary, and either finishes the match or advances to the
// next set.
func (a *accumulator) finishSet(winner CourtSide) {
	setNumber := a.state.CurrentSet
	a.state.SetsScores = append(a.state.SetsScores, SetScore{
		SetNumber: setNumber,
		Home:      a.state.HomeScore,
		Away:      a.state.AwayScore,
	})
	if winner == SideHome {
		a.state.SetsWonHome++
	} else {
		a.state.SetsWonAway++
	}
	if !a.dismissed[setNumber] {
		a.state.LastFinishedSetSummary = &SetSummary{
			SetNumber: setNumber,
			Home:      a.state.HomeScore,
			Away:      a.state.AwayScore,
			WonByUs:   winner == a.ourSide,
		}
		a.state.IsSetFinished = true
	}

	if a.state.SetsWonHome >= setsToWinMatch || a.state.SetsWonAway >= setsToWinMatch {
		a.state.IsMatchFinished = true
		return
	}
	a.advanceSet()
}

// advanceSet resets the per-set counters for the next set. On-court players
// carry over until the new lineup arrives.
func (a *accumulator) advanceSet() {
	a.state.CurrentSet++
	a.state.HomeScore = 0
	a.state.AwayScore = 0
	a.state.TimeoutsHome = 0
	a.state.TimeoutsAway = 0
	a.state.CurrentSetSubstitutions = NewSetSubstitutions()
	a.state.HasLineupForCurrentSet = false
	a.state.ServingSide = a.serveForSet(a.state.CurrentSet)
}

// serveForSet resolves who serves first in a set: the explicit service
// choice when one was recorded, otherwise alternating from the previous
// set's first serve.
func (a *accumulator) serveForSet(setNumber int) TeamRef {
	if serving, ok := a.firstServe[setNumber]; ok {
		return serving
	}
	if previous, ok := a.firstServe[setNumber-1]; ok {
		serving := previous.Opposite()
		a.firstServe[setNumber] = serving
		return serving
	}
	return a.state.ServingSide
}

func (a *accumulator) clearSetSummary() {
	a.state.LastFinishedSetSummary = nil
	a.state.IsSetFinished = false
}
