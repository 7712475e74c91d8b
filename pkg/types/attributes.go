package types

import (
	"encoding/json"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Attributes is a string map that remembers insertion order. Emitters rely on
// the order to lay out attribute columns deterministically.
type Attributes struct {
	m *orderedmap.OrderedMap[string, string]
}

// NewAttributes creates an empty attribute set.
func NewAttributes() *Attributes {
	return &Attributes{m: orderedmap.New[string, string]()}
}

// AttributesFrom builds an attribute set from alternating key/value pairs.
func AttributesFrom(kv ...string) *Attributes {
	a := NewAttributes()
	for i := 0; i+1 < len(kv); i += 2 {
		a.Set(kv[i], kv[i+1])
	}
	return a
}

// Set stores value under key, keeping the key's original position if it exists.
func (a *Attributes) Set(key, value string) {
	a.m.Set(key, value)
}

// SetIfAbsent stores value only when key is not present yet and reports
// whether it did.
func (a *Attributes) SetIfAbsent(key, value string) bool {
	if _, ok := a.m.Get(key); ok {
		return false
	}
	a.m.Set(key, value)
	return true
}

// Get returns the value stored under key.
func (a *Attributes) Get(key string) (string, bool) {
	if a == nil {
		return "", false
	}
	return a.m.Get(key)
}

// Value returns the value stored under key or "".
func (a *Attributes) Value(key string) string {
	v, _ := a.Get(key)
	return v
}

// Len returns the number of keys.
func (a *Attributes) Len() int {
	if a == nil {
		return 0
	}
	return a.m.Len()
}

// Keys returns the keys in insertion order.
func (a *Attributes) Keys() []string {
	if a == nil {
		return nil
	}
	keys := make([]string, 0, a.m.Len())
	for pair := a.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Map returns a plain copy of the attributes.
func (a *Attributes) Map() map[string]string {
	out := make(map[string]string, a.Len())
	if a == nil {
		return out
	}
	for pair := a.m.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = pair.Value
	}
	return out
}

// Clone returns an independent copy.
func (a *Attributes) Clone() *Attributes {
	c := NewAttributes()
	if a == nil {
		return c
	}
	for pair := a.m.Oldest(); pair != nil; pair = pair.Next() {
		c.m.Set(pair.Key, pair.Value)
	}
	return c
}

// MarshalJSON encodes the attributes as a JSON object in insertion order.
func (a *Attributes) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a.m)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
