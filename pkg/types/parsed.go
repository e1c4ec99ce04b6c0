package types

import (
	"errors"
	"fmt"
)

// ErrInvalidParse is returned when a parse result violates basic shape rules.
var ErrInvalidParse = errors.New("invalid parse result")

// ParsedPattern is the output of the natural-language parser for one query.
type ParsedPattern struct {
	Classes []ParsedClass  `json:"classes"`
	Intents []ParsedIntent `json:"intents"`
}

// ParsedClass is a class fragment named by the parser.
type ParsedClass struct {
	Identifier  string `json:"identifier"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Relevant marks the fragment as complete and ready for resolution.
	Relevant bool `json:"relevant"`
}

// ParsedIntent is an intent fragment named by the parser.
type ParsedIntent struct {
	Identifier      string           `json:"identifier"`
	Instruction     string           `json:"instruction"`
	Target          string           `json:"target"`
	TargetRelevance int              `json:"target_relevance"`
	IntentType      IntentType       `json:"intent_type"`
	Relevant        bool             `json:"relevant"`
	Arguments       []ParsedArgument `json:"arguments,omitempty"`
}

// ParsedArgument is an argument fragment nested in a parsed intent.
type ParsedArgument struct {
	Identifier  string            `json:"identifier"`
	Description string            `json:"description,omitempty"`
	Type        string            `json:"type"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Relevant    bool              `json:"relevant"`
}

// Validate checks identifiers are present and unique per kind, intent types
// are known and target relevance is within 0..MaxTargetRelevance.
func (p ParsedPattern) Validate() error {
	seen := make(map[string]bool, len(p.Classes))
	for i, c := range p.Classes {
		if c.Identifier == "" {
			return fmt.Errorf("%w: class %d has no identifier", ErrInvalidParse, i)
		}
		if seen[c.Identifier] {
			return fmt.Errorf("%w: duplicate class %q", ErrInvalidParse, c.Identifier)
		}
		seen[c.Identifier] = true
	}

	seen = make(map[string]bool, len(p.Intents))
	args := make(map[string]string)
	for i, in := range p.Intents {
		if in.Identifier == "" {
			return fmt.Errorf("%w: intent %d has no identifier", ErrInvalidParse, i)
		}
		if seen[in.Identifier] {
			return fmt.Errorf("%w: duplicate intent %q", ErrInvalidParse, in.Identifier)
		}
		seen[in.Identifier] = true

		if !IsValidIntentType(in.IntentType) {
			return fmt.Errorf("%w: intent %q has unknown type %q", ErrInvalidParse, in.Identifier, in.IntentType)
		}
		if in.TargetRelevance < 0 || in.TargetRelevance > MaxTargetRelevance {
			return fmt.Errorf("%w: intent %q target_relevance %d out of range", ErrInvalidParse, in.Identifier, in.TargetRelevance)
		}

		for j, a := range in.Arguments {
			if a.Identifier == "" {
				return fmt.Errorf("%w: argument %d of intent %q has no identifier", ErrInvalidParse, j, in.Identifier)
			}
			if owner, dup := args[a.Identifier]; dup {
				return fmt.Errorf("%w: argument %q used by intents %q and %q", ErrInvalidParse, a.Identifier, owner, in.Identifier)
			}
			args[a.Identifier] = in.Identifier
		}
	}

	return nil
}
