package acl

import (
	"context"
	"errors"
	"strings"
)

var ErrNotFound = errors.New("acl entry not found")

// Entry is one row of the access-control table.
type Entry struct {
	RID  string
	Flag string
	// Row locates the entry inside its backing store (sheet row number, file index).
	Row int
}

// Store is the remote rid -> inhibited flag table. Implementations make a single
// attempt per call.
type Store interface {
	Lookup(ctx context.Context, rid string) (Entry, bool, error)
	Update(ctx context.Context, entry Entry, flag string) error
}

// Polarity records which flag values a deployment uses.
type Polarity struct {
	NotInhibited string
	Inhibited    string
}

func DefaultPolarity() Polarity {
	return Polarity{NotInhibited: "1", Inhibited: "0"}
}

// Allows reports whether the flag marks the rid as not inhibited. Any other value,
// including an empty cell, counts as inhibited.
func (p Polarity) Allows(flag string) bool {
	return strings.TrimSpace(flag) == p.NotInhibited
}

func matchRID(candidate, rid string) bool {
	return strings.TrimSpace(candidate) == strings.TrimSpace(rid)
}
