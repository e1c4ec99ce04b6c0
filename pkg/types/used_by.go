package types

import "encoding/json"

// UsedBy is an insertion-ordered set of identifiers of the intents that
// target an entity. Add is idempotent. The zero value is ready to use.
type UsedBy struct {
	items []string
}

// NewUsedBy builds a set from ids, dropping duplicates.
func NewUsedBy(ids ...string) UsedBy {
	var u UsedBy
	for _, id := range ids {
		u.Add(id)
	}
	return u
}

// Add appends id unless it is already present. It reports whether the set changed.
func (u *UsedBy) Add(id string) bool {
	if id == "" || u.Contains(id) {
		return false
	}
	u.items = append(u.items, id)
	return true
}

// Contains reports whether id is in the set.
func (u UsedBy) Contains(id string) bool {
	for _, existing := range u.items {
		if existing == id {
			return true
		}
	}
	return false
}

// Len returns the number of identifiers.
func (u UsedBy) Len() int {
	return len(u.items)
}

// Items returns a copy of the identifiers in insertion order.
func (u UsedBy) Items() []string {
	out := make([]string, len(u.items))
	copy(out, u.items)
	return out
}

// Clone returns an independent copy.
func (u UsedBy) Clone() UsedBy {
	if len(u.items) == 0 {
		return UsedBy{}
	}
	return UsedBy{items: u.Items()}
}

// MarshalJSON encodes the set as a JSON array (never null).
func (u UsedBy) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Items())
}

// UnmarshalJSON decodes a JSON array, dropping duplicates.
func (u *UsedBy) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*u = NewUsedBy(ids...)
	return nil
}

// Equal reports whether both sets hold the same identifiers in the same order.
func (u UsedBy) Equal(o UsedBy) bool {
	if len(u.items) != len(o.items) {
		return false
	}
	for i := range u.items {
		if u.items[i] != o.items[i] {
			return false
		}
	}
	return true
}
