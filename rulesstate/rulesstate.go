// Package rulesstate implements the per-module JSON-safe state store (spec
// §4.4): an opaque map from a rule module's name to whatever canon.Value
// that module wants to persist, isolated so one module can never observe or
// corrupt another's data. Grounded on the teacher's State.Tables keyed map,
// generalized from "table id -> Table struct" to "module name -> opaque
// JSON value".
package rulesstate

import (
	"encoding/json"
	"fmt"

	"github.com/7seasdotnet/hexcrawler/canon"
	"github.com/7seasdotnet/hexcrawler/simerr"
)

// Store holds one canon.Value per registered module name.
type Store struct {
	modules map[string]canon.Value
}

// New constructs an empty store.
func New() *Store {
	return &Store{modules: map[string]canon.Value{}}
}

// Get returns a deep copy of the named module's state, or canon.Null() with
// ok=false if nothing has been set yet. Returning a copy (rather than the
// stored Value by reference) is safe for free since Value holds its
// composite data in Go maps/slices that the caller could otherwise mutate in
// place; encoding and re-decoding guarantees true independence.
func (s *Store) Get(moduleName string) (canon.Value, bool, error) {
	v, ok := s.modules[moduleName]
	if !ok {
		return canon.Null(), false, nil
	}
	cp, err := deepCopy(v)
	if err != nil {
		return canon.Null(), false, fmt.Errorf("rulesstate: copy %q: %w", moduleName, err)
	}
	return cp, true, nil
}

// Set validates v is JSON-safe and stores a deep copy under moduleName,
// replacing whatever was there before.
func (s *Store) Set(moduleName string, v canon.Value) error {
	if err := v.Validate(); err != nil {
		return simerr.Wrap(simerr.SchemaInvalid, fmt.Sprintf("rulesstate: %q value not JSON-safe", moduleName), err)
	}
	cp, err := deepCopy(v)
	if err != nil {
		return fmt.Errorf("rulesstate: copy %q: %w", moduleName, err)
	}
	s.modules[moduleName] = cp
	return nil
}

// Delete removes a module's stored state entirely (distinct from setting it
// to canon.Null(), which the module would see as "present but null").
func (s *Store) Delete(moduleName string) {
	delete(s.modules, moduleName)
}

// Has reports whether moduleName currently has stored state.
func (s *Store) Has(moduleName string) bool {
	_, ok := s.modules[moduleName]
	return ok
}

// ModuleNames returns the set of module names with stored state, unordered;
// callers needing determinism should sort the result.
func (s *Store) ModuleNames() []string {
	out := make([]string, 0, len(s.modules))
	for name := range s.modules {
		out = append(out, name)
	}
	return out
}

func deepCopy(v canon.Value) (canon.Value, error) {
	b, err := v.Encode()
	if err != nil {
		return canon.Null(), err
	}
	return canon.FromJSON(b)
}

// MarshalJSON serializes the store as a plain module-name-keyed object;
// encoding/json sorts the keys, giving canonical byte output for free.
func (s *Store) MarshalJSON() ([]byte, error) {
	if s.modules == nil {
		return json.Marshal(map[string]canon.Value{})
	}
	return json.Marshal(s.modules)
}

// UnmarshalJSON restores the store from its serialized object form.
func (s *Store) UnmarshalJSON(data []byte) error {
	var m map[string]canon.Value
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("rulesstate: decode: %w", err)
	}
	if m == nil {
		m = map[string]canon.Value{}
	}
	s.modules = m
	return nil
}
