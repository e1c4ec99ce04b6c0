package pattern

import "errors"

var (
	// ErrNoCandidatesFound indicates the reranker left no viable candidate.
	// The draft stays a draft and is retried on a later pass.
	ErrNoCandidatesFound = errors.New("no candidates found")

	// ErrTargetNotFound indicates an intent's target is absent from every
	// session tier and from history. No dependency is wired.
	ErrTargetNotFound = errors.New("target not found")

	// ErrUnknownAmbiguity indicates Solve was called for an identifier that
	// is not in the ambiguous tier.
	ErrUnknownAmbiguity = errors.New("unknown ambiguity")

	// ErrOptionNotFound indicates Solve was called with a path that matches
	// none of the ambiguity's options.
	ErrOptionNotFound = errors.New("option not found")

	// ErrUnknownEntity indicates a ranking arrived for an identifier that is
	// no longer a draft, typically because an ingestion pass dropped it.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrTierConflict indicates a write that would break tier ordering, such
	// as drafting an identifier that is already resolved.
	ErrTierConflict = errors.New("tier conflict")

	// ErrIdentifierMismatch indicates a serialized record whose map key
	// differs from its identifier.
	ErrIdentifierMismatch = errors.New("identifier mismatch")
)

// IsPending reports whether err means the entity may still resolve on a later
// pass, as opposed to a caller mistake or a permanently stale request.
func IsPending(err error) bool {
	return errors.Is(err, ErrNoCandidatesFound) || errors.Is(err, ErrTargetNotFound)
}
