// Package history implements the cross-session ledger of resolved classes and
// intents. A Ledger never forgets: entries are inserted or overwritten by
// identifier but never removed.
package history

import "github.com/scrypster/disambig/pkg/types"

// Ledger records resolved classes and intents by identifier.
// It is not safe for concurrent use; the owning engine serializes access.
type Ledger struct {
	classes     map[string]*types.ClassFixed
	classOrder  []string
	intents     map[string]*types.IntentFixed
	intentOrder []string

	// arguments pass through from the document the ledger was built from.
	arguments []types.ArgumentFixed
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		classes: make(map[string]*types.ClassFixed),
		intents: make(map[string]*types.IntentFixed),
	}
}

// FromSerialized rebuilds a ledger from its persisted document.
func FromSerialized(doc types.SerializedHistory) *Ledger {
	l := New()
	for _, c := range doc.Classes {
		l.AddClass(c)
	}
	for _, i := range doc.Intents {
		l.AddIntent(i)
	}
	l.arguments = make([]types.ArgumentFixed, 0, len(doc.Arguments))
	for _, a := range doc.Arguments {
		l.arguments = append(l.arguments, a.Clone())
	}
	return l
}

// AddClass inserts or overwrites a resolved class. The ledger keeps its own
// copy. Back-references of an overwritten record are kept.
func (l *Ledger) AddClass(c types.ClassFixed) {
	cp := c.Clone()
	if prev, ok := l.classes[c.Identifier]; ok {
		mergeUsedBy(&cp.UsedBy, prev.UsedBy)
	} else {
		l.classOrder = append(l.classOrder, c.Identifier)
	}
	l.classes[c.Identifier] = &cp
}

// AddIntent inserts or overwrites a resolved intent. The ledger keeps its own
// copy. Back-references of an overwritten record are kept.
func (l *Ledger) AddIntent(i types.IntentFixed) {
	cp := i.Clone()
	if prev, ok := l.intents[i.Identifier]; ok {
		mergeUsedBy(&cp.UsedBy, prev.UsedBy)
	} else {
		l.intentOrder = append(l.intentOrder, i.Identifier)
	}
	l.intents[i.Identifier] = &cp
}

func mergeUsedBy(dst *types.UsedBy, src types.UsedBy) {
	for _, id := range src.Items() {
		dst.Add(id)
	}
}

// AddDependency records that sourceID targets targetID. Classes are checked
// before intents. Unknown targets are ignored. It reports whether targetID is known.
func (l *Ledger) AddDependency(targetID, sourceID string) bool {
	if c, ok := l.classes[targetID]; ok {
		c.UsedBy.Add(sourceID)
		return true
	}
	if i, ok := l.intents[targetID]; ok {
		i.UsedBy.Add(sourceID)
		return true
	}
	return false
}

// Search returns a copy of the class or intent recorded under id, or nil.
// Use AddDependency to change the recorded entry.
func (l *Ledger) Search(id string) types.Variant {
	if c, ok := l.classes[id]; ok {
		cp := c.Clone()
		return &cp
	}
	if i, ok := l.intents[id]; ok {
		cp := i.Clone()
		return &cp
	}
	return nil
}

// Class returns a copy of the recorded class.
func (l *Ledger) Class(id string) (types.ClassFixed, bool) {
	c, ok := l.classes[id]
	if !ok {
		return types.ClassFixed{}, false
	}
	return c.Clone(), true
}

// Intent returns a copy of the recorded intent.
func (l *Ledger) Intent(id string) (types.IntentFixed, bool) {
	i, ok := l.intents[id]
	if !ok {
		return types.IntentFixed{}, false
	}
	return i.Clone(), true
}

// Len returns the number of recorded classes and intents.
func (l *Ledger) Len() int {
	return len(l.classes) + len(l.intents)
}

// Get exports the whole ledger in insertion order.
func (l *Ledger) Get() types.SerializedHistory {
	doc := types.SerializedHistory{
		Classes:   make([]types.ClassFixed, 0, len(l.classOrder)),
		Intents:   make([]types.IntentFixed, 0, len(l.intentOrder)),
		Arguments: make([]types.ArgumentFixed, 0, len(l.arguments)),
	}
	for _, id := range l.classOrder {
		doc.Classes = append(doc.Classes, l.classes[id].Clone())
	}
	for _, id := range l.intentOrder {
		doc.Intents = append(doc.Intents, l.intents[id].Clone())
	}
	for _, a := range l.arguments {
		doc.Arguments = append(doc.Arguments, a.Clone())
	}
	return doc
}
