package match

// User-facing rejection reasons, in the club's scoresheet language.
const (
	ReasonNoSubsLeft       = "Se han agotado los 6 cambios del set"
	ReasonOutNotOnCourt    = "La jugadora que sale no está en pista"
	ReasonInAlreadyOnCourt = "La jugadora que entra ya está en pista"
	ReasonPairExhausted    = "Este cambio ya se ha usado dos veces en el set"
	ReasonWrongDirection   = "La sustituta solo puede devolver la pista a su titular"
	ReasonPlayerMidPair    = "La jugadora ya forma parte de otro cambio este set"
	ReasonAlreadyQueued    = "La jugadora ya está en un cambio pendiente"
)

const maxPairUses = 2

// SubstitutionCheck is the validator's result. Rejections are expected,
// frequent occurrences during live scoring, so they travel as values.
type SubstitutionCheck struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func rejected(reason string) SubstitutionCheck {
	return SubstitutionCheck{Reason: reason}
}

var allowed = SubstitutionCheck{Valid: true}

// ValidateSubstitution enforces the FIVB pairing rules for a proposed field
// substitution against the committed per-set ledger. Rules apply in order
// and the first failure wins. Libero swaps never pass through here; they
// are exempt from the field-substitution count.
func ValidateSubstitution(subs SetSubstitutions, outID, inID string, onCourt map[Position]string) SubstitutionCheck {
	if subs.Total >= maxSubsPerSet {
		return rejected(ReasonNoSubsLeft)
	}
	if !playerOnCourt(onCourt, outID) {
		return rejected(ReasonOutNotOnCourt)
	}
	if playerOnCourt(onCourt, inID) {
		return rejected(ReasonInAlreadyOnCourt)
	}

	outPair, outHasPair := subs.PairFor(outID)
	inPair, inHasPair := subs.PairFor(inID)

	switch {
	case !outHasPair && !inHasPair:
		// A fresh pair is always legal while the set budget lasts.
		return allowed
	case outHasPair && inHasPair && outPair == inPair:
		if outPair.Uses >= maxPairUses {
			return rejected(ReasonPairExhausted)
		}
		// Second use must run the other way: the substitute hands the
		// court back to the starter she originally replaced.
		if outID != outPair.SubstituteID || inID != outPair.StarterID {
			return rejected(ReasonWrongDirection)
		}
		return allowed
	default:
		// Different pairs, or only one player is mid-pair: a player
		// already bound to a pair cannot swap with anyone outside it.
		return rejected(ReasonPlayerMidPair)
	}
}

func playerOnCourt(onCourt map[Position]string, playerID string) bool {
	for _, id := range onCourt {
		if id == playerID {
			return true
		}
	}
	return false
}
