package phase

import (
	"errors"
	"sort"
)

// Key identifies a phase in the catalog (short code, e.g. "ONB").
type Key string

// Built-in phase keys. The catalog is data-driven; these constants exist for
// the two always-present phases and for seed/test data.
const (
	KeyOnboarding Key = "ONB"
	KeyIdeation   Key = "IDEA"
	KeyDesign     Key = "DSGN"
	KeyReview     Key = "REV"
	KeyProduction Key = "PROD"
	KeyPayment    Key = "PAY"
	KeySignoff    Key = "SIGN"
	KeyLaunch     Key = "LAUNCH"
)

var (
	ErrInvalidService = errors.New("unknown service code")
	ErrUnknownPhase   = errors.New("unknown phase key")
)

// ActionID identifies one mandatory client action within a phase
// (e.g. "intake_form", "deposit_payment").
type ActionID string

// RequiredAction is one mandatory gate configured on a phase definition.
type RequiredAction struct {
	ID          ActionID
	PhaseKey    Key
	DisplayName string
}

// Definition is an immutable catalog entry. Created at configuration time,
// never mutated at runtime.
type Definition struct {
	Key                  Key
	DisplayName          string
	SortOrder            int
	RequiresClientAction bool
	Actions              []RequiredAction
}

// ServiceDefinition maps one sellable service code (e.g. "book_cover") to the
// phase keys its projects go through.
type ServiceDefinition struct {
	Code        string
	DisplayName string
	PhaseKeys   []Key
}

// Set is the ordered sequence of phase keys applicable to one project.
type Set []Key

// Contains reports whether k is a member of the set.
func (s Set) Contains(k Key) bool {
	for _, key := range s {
		if key == k {
			return true
		}
	}
	return false
}

// First returns the entry phase of the set.
func (s Set) First() (Key, bool) {
	if len(s) == 0 {
		return "", false
	}
	return s[0], true
}

// Last returns the closing phase of the set.
func (s Set) Last() (Key, bool) {
	if len(s) == 0 {
		return "", false
	}
	return s[len(s)-1], true
}

// Next returns the phase following current, or ok=false when current is the
// last phase (or not a member at all).
func (s Set) Next(current Key) (Key, bool) {
	for i, key := range s {
		if key == current && i+1 < len(s) {
			return s[i+1], true
		}
	}
	return "", false
}

// BuildSet unions the phase keys of the selected definitions with the
// always-present first and last phases, sorts by catalog order and
// deduplicates. order maps every known key to its sort_order.
func BuildSet(selected []Key, first, last Key, order map[Key]int) Set {
	seen := make(map[Key]struct{}, len(selected)+2)
	keys := make([]Key, 0, len(selected)+2)

	add := func(k Key) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	add(first)
	for _, k := range selected {
		add(k)
	}
	add(last)

	sort.SliceStable(keys, func(i, j int) bool {
		return order[keys[i]] < order[keys[j]]
	})
	return Set(keys)
}
