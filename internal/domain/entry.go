package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind distinguishes the two isomorphic ledger entry shapes.
type EntryKind string

const (
	KindJournal  EntryKind = "journal"
	KindCashbook EntryKind = "cashbook"
)

// Line is one debit or credit row of a ledger entry. At most one of Debit and
// Credit is nonzero.
type Line struct {
	ID        string          `json:"id"`
	AccountID string          `json:"accountId"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`

	// Invalid holds raw user input that failed to parse, keyed by field name.
	// It is reported by validation at save time.
	Invalid map[string]string `json:"invalid,omitempty"`
}

// Entry is a journal entry or cashbook entry.
type Entry struct {
	ID          string    `json:"id"`
	Kind        EntryKind `json:"kind"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Reference   string    `json:"reference,omitempty"`
	Lines       []Line    `json:"lines"`
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	out := e
	out.Lines = make([]Line, len(e.Lines))
	for i, l := range e.Lines {
		out.Lines[i] = l.clone()
	}
	return out
}

func (l Line) clone() Line {
	out := l
	if l.Invalid != nil {
		out.Invalid = make(map[string]string, len(l.Invalid))
		for k, v := range l.Invalid {
			out.Invalid[k] = v
		}
	}
	return out
}

// LineIndex returns the index of the line with the given id, or -1.
func (e *Entry) LineIndex(lineID string) int {
	for i := range e.Lines {
		if e.Lines[i].ID == lineID {
			return i
		}
	}
	return -1
}
