package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SuggestedLine is one line of a validated entry suggestion. Amounts are
// already coerced to non-negative values.
type SuggestedLine struct {
	AccountID string          `json:"accountId"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

// Suggestion is a structured entry proposal produced by the extraction
// service after it has passed the parse boundary.
type Suggestion struct {
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Lines       []SuggestedLine `json:"lines"`
}
