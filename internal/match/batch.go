package match

// PlannedSub is a substitution the scorer has queued but not committed.
// It lives only in the session; on commit it becomes a SUBSTITUTION event,
// on cancel it is discarded.
type PlannedSub struct {
	OutPlayerID string   `json:"outPlayerId"`
	InPlayerID  string   `json:"inPlayerId"`
	OutPosition Position `json:"outPosition"`
	OutPlayer   Player   `json:"outPlayer"`
	InPlayer    Player   `json:"inPlayer"`
}

// SimulatedSubState is the result of applying a planned queue on top of the
// committed state, without touching it.
type SimulatedSubState struct {
	OnCourt map[Position]string
	Subs    SetSubstitutions
}

// SimulatePlannedSubstitutions applies each planned substitution in order
// to a deep clone of the committed on-court table and pair ledger, exactly
// as the fold would. The next candidate can then be validated against a
// state that already accounts for the not-yet-committed queue.
func SimulatePlannedSubstitutions(onCourt map[Position]string, subs SetSubstitutions, planned []PlannedSub) SimulatedSubState {
	sim := SimulatedSubState{
		OnCourt: cloneOnCourt(onCourt),
		Subs:    subs.Clone(),
	}
	for _, sub := range planned {
		pos := positionOn(sim.OnCourt, sub.OutPlayerID)
		if pos == 0 {
			pos = sub.OutPosition
		}
		if pos < 1 || pos > 6 || sim.OnCourt[pos] != sub.OutPlayerID {
			// Stale queue entry; skip it the same way the fold would.
			continue
		}
		sim.OnCourt[pos] = sub.InPlayerID
		sim.Subs.record(sub.OutPlayerID, sub.InPlayerID)
	}
	return sim
}

// CanAddToBatch decides whether another substitution may join the planned
// queue. It re-runs the legality rules against the simulated state, plus
// the queue-specific checks: no player may appear twice in the queue, and
// committed plus queued substitutions must stay within the set budget.
func CanAddToBatch(onCourt map[Position]string, subs SetSubstitutions, planned []PlannedSub, candidate PlannedSub) SubstitutionCheck {
	if subs.Total+len(planned) >= maxSubsPerSet {
		return rejected(ReasonNoSubsLeft)
	}
	for _, queued := range planned {
		if queued.OutPlayerID == candidate.OutPlayerID || queued.InPlayerID == candidate.OutPlayerID ||
			queued.OutPlayerID == candidate.InPlayerID || queued.InPlayerID == candidate.InPlayerID {
			return rejected(ReasonAlreadyQueued)
		}
	}
	sim := SimulatePlannedSubstitutions(onCourt, subs, planned)
	return ValidateSubstitution(sim.Subs, candidate.OutPlayerID, candidate.InPlayerID, sim.OnCourt)
}

// IsPlayerAvailableInBatch reports whether a player is selectable in the
// substitution UI given the queue so far: as the incoming player when off
// the simulated court, or as the outgoing player when on it, and in either
// case not bound to an exhausted or foreign pair and not already queued.
func IsPlayerAvailableInBatch(onCourt map[Position]string, subs SetSubstitutions, planned []PlannedSub, playerID string, incoming bool) bool {
	for _, queued := range planned {
		if queued.OutPlayerID == playerID || queued.InPlayerID == playerID {
			return false
		}
	}

	sim := SimulatePlannedSubstitutions(onCourt, subs, planned)
	if sim.Subs.Total >= maxSubsPerSet {
		return false
	}
	onSimCourt := positionOn(sim.OnCourt, playerID) != 0
	if incoming == onSimCourt {
		return false
	}

	pair, hasPair := sim.Subs.PairFor(playerID)
	if !hasPair {
		return true
	}
	if pair.Uses >= maxPairUses {
		return false
	}
	// Mid-pair players may only move in the return direction.
	if incoming {
		return playerID == pair.StarterID
	}
	return playerID == pair.SubstituteID
}

func cloneOnCourt(onCourt map[Position]string) map[Position]string {
	cloned := make(map[Position]string, len(onCourt))
	for pos, id := range onCourt {
		cloned[pos] = id
	}
	return cloned
}

func positionOn(onCourt map[Position]string, playerID string) Position {
	for pos, id := range onCourt {
		if id == playerID {
			return pos
		}
	}
	return 0
}
