package types

// Variant is the sealed union of the nine entity records: one per
// (kind, tier) pair. Only types in this package implement it.
type Variant interface {
	// ID returns the identifier, unique within the kind.
	ID() string

	// Kind returns the entity kind.
	Kind() Kind

	// Tier returns the certainty tier the record represents.
	Tier() Tier

	// Dependents returns the mutable used_by set.
	Dependents() *UsedBy

	variant()
}

// Class is the part shared by every class record.
type Class struct {
	Identifier  string `json:"identifier"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UsedBy      UsedBy `json:"used_by"`
}

// ID returns the class identifier.
func (c *Class) ID() string { return c.Identifier }

// Kind returns KindClass.
func (c *Class) Kind() Kind { return KindClass }

// Dependents returns the used_by set.
func (c *Class) Dependents() *UsedBy { return &c.UsedBy }

// Intent is the part shared by every intent record.
type Intent struct {
	Identifier  string `json:"identifier"`
	Instruction string `json:"instruction"`

	// Target is the identifier of the class or intent this intent operates on.
	Target string `json:"target"`

	// TargetRelevance rates how strongly the parser tied the intent to its target (0..5).
	TargetRelevance int `json:"target_relevance"`

	IntentType IntentType `json:"intent_type"`

	// Version increases every time one of the intent's arguments gets resolved.
	Version int `json:"version"`

	UsedBy UsedBy `json:"used_by"`
}

// ID returns the intent identifier.
func (i *Intent) ID() string { return i.Identifier }

// Kind returns KindIntent.
func (i *Intent) Kind() Kind { return KindIntent }

// Dependents returns the used_by set.
func (i *Intent) Dependents() *UsedBy { return &i.UsedBy }

// Argument is the part shared by every argument record.
type Argument struct {
	Identifier  string            `json:"identifier"`
	Description string            `json:"description"`
	Intent      string            `json:"intent"`
	Type        string            `json:"type"`
	Attributes  map[string]string `json:"attributes"`
	UsedBy      UsedBy            `json:"used_by"`
}

// ID returns the argument identifier.
func (a *Argument) ID() string { return a.Identifier }

// Kind returns KindArgument.
func (a *Argument) Kind() Kind { return KindArgument }

// Dependents returns the used_by set.
func (a *Argument) Dependents() *UsedBy { return &a.UsedBy }

// DraftState carries the transient flags of a draft.
type DraftState struct {
	// Loading is set while graph search runs for the draft.
	Loading bool `json:"loading"`

	// Reranking is set while the reranker scores the draft's candidates.
	Reranking bool `json:"reranking"`

	// Finished is set once the parser considers the fragment complete.
	// Only finished drafts are sent to resolution.
	Finished bool `json:"finished"`
}

// Option is one candidate of an ambiguous entity. Candidate is the record the
// entity becomes if the option is chosen.
type Option[R interface{ Path() string }] struct {
	Candidate   R       `json:"candidate"`
	Score       float64 `json:"score"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
}

// Path returns the graph path of the option's candidate.
func (o Option[R]) Path() string { return o.Candidate.Path() }

// ClassDraft is an unresolved class.
type ClassDraft struct {
	Class
	DraftState
}

// ClassAmbiguity is a class with several candidate graph nodes.
type ClassAmbiguity struct {
	Class
	Options []Option[ClassFixed] `json:"options"`
}

// ClassFixed is a class bound to a graph node.
type ClassFixed struct {
	Class
	GraphPath string `json:"graph_path"`
}

// Path returns the graph path.
func (c ClassFixed) Path() string { return c.GraphPath }

// Clone returns a deep copy.
func (c ClassFixed) Clone() ClassFixed {
	c.UsedBy = c.UsedBy.Clone()
	return c
}

// IntentDraft is an unresolved intent.
type IntentDraft struct {
	Intent
	DraftState
}

// IntentAmbiguity is an intent with several candidate graph nodes.
type IntentAmbiguity struct {
	Intent
	Options []Option[IntentFixed] `json:"options"`
}

// IntentFixed is an intent bound to a graph node.
type IntentFixed struct {
	Intent
	GraphPath string `json:"graph_path"`
}

// Path returns the graph path.
func (i IntentFixed) Path() string { return i.GraphPath }

// Clone returns a deep copy.
func (i IntentFixed) Clone() IntentFixed {
	i.UsedBy = i.UsedBy.Clone()
	return i
}

// ArgumentDraft is an unresolved argument.
type ArgumentDraft struct {
	Argument
	DraftState
}

// ArgumentAmbiguity is an argument with several candidate graph nodes.
type ArgumentAmbiguity struct {
	Argument
	Options []Option[ArgumentFixed] `json:"options"`
}

// ArgumentFixed is an argument bound to a graph node.
type ArgumentFixed struct {
	Argument
	GraphPath string `json:"graph_path"`
}

// Path returns the graph path.
func (a ArgumentFixed) Path() string { return a.GraphPath }

// Clone returns a deep copy.
func (a ArgumentFixed) Clone() ArgumentFixed {
	a.UsedBy = a.UsedBy.Clone()
	a.Attributes = cloneAttributes(a.Attributes)
	return a
}

func cloneAttributes(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (*ClassDraft) Tier() Tier        { return TierDraft }
func (*ClassAmbiguity) Tier() Tier    { return TierAmbiguous }
func (*ClassFixed) Tier() Tier        { return TierResolved }
func (*IntentDraft) Tier() Tier       { return TierDraft }
func (*IntentAmbiguity) Tier() Tier   { return TierAmbiguous }
func (*IntentFixed) Tier() Tier       { return TierResolved }
func (*ArgumentDraft) Tier() Tier     { return TierDraft }
func (*ArgumentAmbiguity) Tier() Tier { return TierAmbiguous }
func (*ArgumentFixed) Tier() Tier     { return TierResolved }

func (*ClassDraft) variant()        {}
func (*ClassAmbiguity) variant()    {}
func (*ClassFixed) variant()        {}
func (*IntentDraft) variant()       {}
func (*IntentAmbiguity) variant()   {}
func (*IntentFixed) variant()       {}
func (*ArgumentDraft) variant()     {}
func (*ArgumentAmbiguity) variant() {}
func (*ArgumentFixed) variant()     {}

// State returns the draft flags for in-place updates.
func (s *DraftState) State() *DraftState { return s }

// SummaryOptions lists the options in reported form.
func (a *ClassAmbiguity) SummaryOptions() []SummaryOption { return summarize(a.Options) }

// SummaryOptions lists the options in reported form.
func (a *IntentAmbiguity) SummaryOptions() []SummaryOption { return summarize(a.Options) }

// SummaryOptions lists the options in reported form.
func (a *ArgumentAmbiguity) SummaryOptions() []SummaryOption { return summarize(a.Options) }

func summarize[R interface{ Path() string }](opts []Option[R]) []SummaryOption {
	out := make([]SummaryOption, 0, len(opts))
	for _, o := range opts {
		out = append(out, SummaryOption{
			Path:        o.Path(),
			Score:       o.Score,
			Label:       o.Label,
			Description: o.Description,
		})
	}
	return out
}
