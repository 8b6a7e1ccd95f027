package match

import (
	"encoding/json"
	"sort"
)

// PairKey identifies a starter/substitute pair regardless of swap direction.
// The two player ids are stored in lexicographic order so that A↔B and B↔A
// collapse to the same key.
type PairKey struct {
	Low  string
	High string
}

// NewPairKey normalizes two player ids into a PairKey.
func NewPairKey(a, b string) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{Low: a, High: b}
}

// Contains reports whether the key involves the given player.
func (k PairKey) Contains(playerID string) bool {
	return k.Low == playerID || k.High == playerID
}

// SubPair tracks one starter/substitute pairing within a set. Uses counts
// committed swaps through the pair: 1 after the substitute enters, 2 after
// the starter returns. FIVB caps it at 2 per set.
type SubPair struct {
	StarterID    string `json:"starterId"`
	SubstituteID string `json:"substituteId"`
	Uses         int    `json:"uses"`
}

// SetSubstitutions is the per-set substitution ledger. On the wire the
// pair map flattens into a slice sorted by starter id; PairKey is an
// internal index, not part of the JSON shape.
type SetSubstitutions struct {
	Pairs map[PairKey]*SubPair
	Total int
}

type setSubstitutionsJSON struct {
	Pairs []SubPair `json:"pairs"`
	Total int       `json:"total"`
}

func (s SetSubstitutions) MarshalJSON() ([]byte, error) {
	pairs := make([]SubPair, 0, len(s.Pairs))
	for _, pair := range s.Pairs {
		pairs = append(pairs, *pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].StarterID != pairs[j].StarterID {
			return pairs[i].StarterID < pairs[j].StarterID
		}
		return pairs[i].SubstituteID < pairs[j].SubstituteID
	})
	return json.Marshal(setSubstitutionsJSON{Pairs: pairs, Total: s.Total})
}

func (s *SetSubstitutions) UnmarshalJSON(data []byte) error {
	var decoded setSubstitutionsJSON
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	s.Total = decoded.Total
	s.Pairs = make(map[PairKey]*SubPair, len(decoded.Pairs))
	for _, pair := range decoded.Pairs {
		copied := pair
		s.Pairs[NewPairKey(pair.StarterID, pair.SubstituteID)] = &copied
	}
	return nil
}

// NewSetSubstitutions returns an empty ledger.
func NewSetSubstitutions() SetSubstitutions {
	return SetSubstitutions{Pairs: make(map[PairKey]*SubPair)}
}

// PairFor returns the pair involving the given player, if any. A player
// belongs to at most one pair per set, exhausted or not.
func (s SetSubstitutions) PairFor(playerID string) (*SubPair, bool) {
	for key, pair := range s.Pairs {
		if key.Contains(playerID) {
			return pair, true
		}
	}
	return nil, false
}

// Clone deep-copies the ledger so simulations never touch committed state.
func (s SetSubstitutions) Clone() SetSubstitutions {
	cloned := SetSubstitutions{
		Pairs: make(map[PairKey]*SubPair, len(s.Pairs)),
		Total: s.Total,
	}
	for key, pair := range s.Pairs {
		copied := *pair
		cloned.Pairs[key] = &copied
	}
	return cloned
}

// record applies a committed swap to the ledger: a new pair on first use,
// an extra use on an existing one. The out player is the one leaving the
// court, so the first use defines the starter direction.
func (s *SetSubstitutions) record(outID, inID string) {
	if s.Pairs == nil {
		s.Pairs = make(map[PairKey]*SubPair)
	}
	key := NewPairKey(outID, inID)
	if pair, ok := s.Pairs[key]; ok {
		pair.Uses++
	} else {
		s.Pairs[key] = &SubPair{StarterID: outID, SubstituteID: inID, Uses: 1}
	}
	s.Total++
}

// SetScore is one entry of the per-set score history.
type SetScore struct {
	SetNumber int `json:"setNumber"`
	Home      int `json:"home"`
	Away      int `json:"away"`
}

// SetSummary is captured when a set finishes and shown until dismissed.
type SetSummary struct {
	SetNumber int  `json:"setNumber"`
	Home      int  `json:"home"`
	Away      int  `json:"away"`
	WonByUs   bool `json:"wonByUs"`
}

// DerivedState is the fold's output: the complete current match state,
// wholly recomputable from the event log plus static context. Every field
// is a cache; none is independently persisted as source of truth.
type DerivedState struct {
	CurrentSet int `json:"currentSet"`
	HomeScore  int `json:"homeScore"`
	AwayScore  int `json:"awayScore"`

	SetsWonHome int        `json:"setsWonHome"`
	SetsWonAway int        `json:"setsWonAway"`
	SetsScores  []SetScore `json:"setsScores"`

	OnCourt         map[Position]string `json:"onCourt"`
	CurrentLiberoID string              `json:"currentLiberoId,omitempty"`

	CurrentSetSubstitutions SetSubstitutions `json:"currentSetSubstitutions"`

	TimeoutsHome int `json:"timeoutsHome"`
	TimeoutsAway int `json:"timeoutsAway"`

	ServingSide            TeamRef `json:"servingSide"`
	HasLineupForCurrentSet bool    `json:"hasLineupForCurrentSet"`
	IsSetFinished          bool    `json:"isSetFinished"`
	IsMatchFinished        bool    `json:"isMatchFinished"`

	LastFinishedSetSummary *SetSummary `json:"lastFinishedSetSummary,omitempty"`
}

// OurScore returns our team's points in the running set.
func (s DerivedState) OurScore(ourSide CourtSide) int {
	if ourSide == SideHome {
		return s.HomeScore
	}
	return s.AwayScore
}

// OpponentScore returns the opponent's points in the running set.
func (s DerivedState) OpponentScore(ourSide CourtSide) int {
	if ourSide == SideHome {
		return s.AwayScore
	}
	return s.HomeScore
}

// SetsWonUs returns the number of sets our team has won.
func (s DerivedState) SetsWonUs(ourSide CourtSide) int {
	if ourSide == SideHome {
		return s.SetsWonHome
	}
	return s.SetsWonAway
}

// IsOnCourt reports whether the player currently occupies a rotation
// position. The libero is tracked separately.
func (s DerivedState) IsOnCourt(playerID string) bool {
	for _, id := range s.OnCourt {
		if id == playerID {
			return true
		}
	}
	return false
}

// PositionOf returns the rotation position the player occupies, or 0.
func (s DerivedState) PositionOf(playerID string) Position {
	for pos, id := range s.OnCourt {
		if id == playerID {
			return pos
		}
	}
	return 0
}
