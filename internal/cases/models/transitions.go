package models

import (
	"fmt"
)

// TransitionTable lists the allowed status changes. A nil table allows every
// change.
type TransitionTable struct {
	allowed map[Status]map[Status]bool
}

// Unrestricted allows any status to move to any other.
func Unrestricted() TransitionTable {
	return TransitionTable{}
}

// NewTransitionTable builds a table from configuration. Unknown statuses are
// rejected; a status absent from raw has no outgoing transitions.
func NewTransitionTable(raw map[string][]string) (TransitionTable, error) {
	if raw == nil {
		return Unrestricted(), nil
	}
	allowed := make(map[Status]map[Status]bool, len(raw))
	for from, targets := range raw {
		src := Status(from)
		if !src.IsValid() {
			return TransitionTable{}, fmt.Errorf("unknown case status %q in transitions", from)
		}
		allowed[src] = make(map[Status]bool, len(targets))
		for _, to := range targets {
			dst := Status(to)
			if !dst.IsValid() {
				return TransitionTable{}, fmt.Errorf("unknown case status %q in transitions of %q", to, from)
			}
			allowed[src][dst] = true
		}
	}
	return TransitionTable{allowed: allowed}, nil
}

// Allows reports whether from may change to to. Staying put is always allowed.
func (t TransitionTable) Allows(from, to Status) bool {
	if from == to {
		return true
	}
	if t.allowed == nil {
		return from.IsValid() && to.IsValid()
	}
	return t.allowed[from][to]
}
