package storage

import (
	"encoding/json"
	"fmt"

	"github.com/scrypster/disambig/pkg/types"
)

// EntriesFromHistory flattens a ledger document into rows, classes first,
// then intents, then arguments.
func EntriesFromHistory(doc types.SerializedHistory) ([]HistoryEntry, error) {
	entries := make([]HistoryEntry, 0, len(doc.Classes)+len(doc.Intents)+len(doc.Arguments))
	for _, c := range doc.Classes {
		e, err := newEntry(types.KindClass, c.Identifier, c.GraphPath, c)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	for _, i := range doc.Intents {
		e, err := newEntry(types.KindIntent, i.Identifier, i.GraphPath, i)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	for _, a := range doc.Arguments {
		e, err := newEntry(types.KindArgument, a.Identifier, a.GraphPath, a)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func newEntry(kind types.Kind, id, path string, record any) (HistoryEntry, error) {
	if id == "" {
		return HistoryEntry{}, fmt.Errorf("%w: %s history entry without identifier", ErrInvalidInput, kind)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("storage: failed to encode %s %q: %w", kind, id, err)
	}
	return HistoryEntry{Kind: kind, Identifier: id, GraphPath: path, Document: data}, nil
}

// HistoryFromEntries rebuilds a ledger document from rows in insertion order.
func HistoryFromEntries(entries []HistoryEntry) (types.SerializedHistory, error) {
	doc := types.SerializedHistory{
		Classes:   []types.ClassFixed{},
		Intents:   []types.IntentFixed{},
		Arguments: []types.ArgumentFixed{},
	}
	for _, e := range entries {
		var err error
		switch e.Kind {
		case types.KindClass:
			var c types.ClassFixed
			if err = json.Unmarshal(e.Document, &c); err == nil {
				doc.Classes = append(doc.Classes, c)
			}
		case types.KindIntent:
			var i types.IntentFixed
			if err = json.Unmarshal(e.Document, &i); err == nil {
				doc.Intents = append(doc.Intents, i)
			}
		case types.KindArgument:
			var a types.ArgumentFixed
			if err = json.Unmarshal(e.Document, &a); err == nil {
				doc.Arguments = append(doc.Arguments, a)
			}
		default:
			err = fmt.Errorf("%w: %q", types.ErrUnknownKind, e.Kind)
		}
		if err != nil {
			return types.SerializedHistory{}, fmt.Errorf("storage: failed to decode %s %q: %w", e.Kind, e.Identifier, err)
		}
	}
	return doc, nil
}
