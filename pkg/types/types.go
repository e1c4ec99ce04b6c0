// Package types defines the data model of the disambiguation engine.
// It covers the three entity kinds (classes, intents, arguments), the three
// certainty tiers each of them moves through, the parser input, the reranker
// contract types and the serialized documents used to persist and report a
// session.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is returned when a kind string is not class, intent or argument.
var ErrUnknownKind = errors.New("unknown entity kind")

// Kind identifies an entity kind.
type Kind string

// Entity kind constants
const (
	// KindClass is a concept of the knowledge graph (a model, a table, a type).
	KindClass Kind = "class"

	// KindIntent is an operation the user wants to perform on a target.
	KindIntent Kind = "intent"

	// KindArgument is a parameter of an intent.
	KindArgument Kind = "argument"
)

// ValidKinds lists every entity kind in store order.
var ValidKinds = []Kind{KindClass, KindIntent, KindArgument}

// ParseKind converts a user supplied string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range ValidKinds {
		if k == valid {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Tier is the certainty level an entity currently sits in.
// The string values double as the "kind" field of serialized summaries.
type Tier string

// Tier constants
const (
	// TierDraft holds entities observed by the parser but not resolved yet.
	TierDraft Tier = "draft"

	// TierAmbiguous holds entities with several viable graph candidates.
	TierAmbiguous Tier = "ambiguities"

	// TierResolved holds entities bound to exactly one graph path.
	TierResolved Tier = "fixed"
)

// IntentType classifies what an intent does.
type IntentType string

// Intent type constants
const (
	IntentSelection    IntentType = "Selection"
	IntentValidation   IntentType = "Validation"
	IntentAggregation  IntentType = "Aggregation"
	IntentChart        IntentType = "Chart"
	IntentHook         IntentType = "Hook"
	IntentTask         IntentType = "Task"
	IntentUpdateValue  IntentType = "UpdateValue"
	IntentCreateObject IntentType = "CreateObject"
)

// ValidIntentTypes is the closed set of intent types.
var ValidIntentTypes = []IntentType{
	IntentSelection,
	IntentValidation,
	IntentAggregation,
	IntentChart,
	IntentHook,
	IntentTask,
	IntentUpdateValue,
	IntentCreateObject,
}

// IsValidIntentType reports whether t is one of ValidIntentTypes.
// The empty string is accepted (type not reported by the parser).
func IsValidIntentType(t IntentType) bool {
	if t == "" {
		return true
	}
	for _, valid := range ValidIntentTypes {
		if t == valid {
			return true
		}
	}
	return false
}

// MaxTargetRelevance is the upper bound of Intent.TargetRelevance.
const MaxTargetRelevance = 5

// MaxScore is the upper bound of candidate scores.
const MaxScore = 5.0
