package types

// IsValidTier reports whether t is one of the three tiers.
func IsValidTier(t Tier) bool {
	switch t {
	case TierDraft, TierAmbiguous, TierResolved:
		return true
	default:
		return false
	}
}

// IsValidTierTransition validates promotions between tiers.
//
// Valid transitions:
//
//	(absent)    -> draft
//	draft       -> ambiguities | fixed
//	ambiguities -> fixed
//	fixed       -> (terminal, no transitions out)
//
// Staying in place is not a transition. A draft that gets no candidates
// simply stays a draft.
func IsValidTierTransition(current, next Tier) bool {
	switch current {
	case "":
		return next == TierDraft
	case TierDraft:
		return next == TierAmbiguous || next == TierResolved
	case TierAmbiguous:
		return next == TierResolved
	case TierResolved:
		return false
	default:
		return false
	}
}
