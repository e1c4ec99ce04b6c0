package types

// SummaryOption is the reported form of an ambiguity option.
type SummaryOption struct {
	Path        string  `json:"path"`
	Score       float64 `json:"score"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
}

// Summary is one line of a per-kind summary list.
type Summary struct {
	Identifier string          `json:"identifier"`
	Kind       Tier            `json:"kind"`
	Options    []SummaryOption `json:"options,omitempty"`
	Loading    bool            `json:"loading"`
	Reranking  bool            `json:"reranking"`
}

// SerializedPattern is the transport and persistence document of a session.
// The _sum lists are derived from the detail maps; the detail maps are the
// source of truth when loading.
type SerializedPattern struct {
	Query string `json:"query"`

	ClassesSum   []Summary `json:"classes_sum"`
	IntentsSum   []Summary `json:"intents_sum"`
	ArgumentsSum []Summary `json:"arguments_sum"`

	ClassDrafts    map[string]ClassDraft    `json:"class_drafts"`
	IntentDrafts   map[string]IntentDraft   `json:"intent_drafts"`
	ArgumentDrafts map[string]ArgumentDraft `json:"argument_drafts"`

	ClassAmbiguities    map[string]ClassAmbiguity    `json:"class_ambiguities"`
	IntentAmbiguities   map[string]IntentAmbiguity   `json:"intent_ambiguities"`
	ArgumentAmbiguities map[string]ArgumentAmbiguity `json:"argument_ambiguities"`

	ClassFixed    map[string]ClassFixed    `json:"class_fixed"`
	IntentFixed   map[string]IntentFixed   `json:"intent_fixed"`
	ArgumentFixed map[string]ArgumentFixed `json:"argument_fixed"`
}

// SerializedHistory is the persistence document of the history ledger.
type SerializedHistory struct {
	Classes   []ClassFixed    `json:"classes"`
	Intents   []IntentFixed   `json:"intents"`
	Arguments []ArgumentFixed `json:"arguments"`
}
