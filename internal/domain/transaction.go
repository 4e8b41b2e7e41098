package domain

import (
	"time"
)

// TransactionType classifies a transaction as money in or money out.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// Valid reports whether t is one of the two known transaction types.
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// DefaultEmoji is used when no display glyph was supplied or recognized.
const DefaultEmoji = "💰"

// Transaction is the canonical persisted ledger entry.
//
// Amount is always expressed in Currency (the owner's default currency at
// save time). When the recognized input was denominated in another currency,
// OriginalAmount/OriginalCurrency keep the pre-conversion values for audit
// and display.
type Transaction struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
	OriginalAmount   float64 `json:"original_amount,omitempty"`
	OriginalCurrency string  `json:"original_currency,omitempty"`

	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`

	// Timestamp is when the transaction occurred; CreatedAt/UpdatedAt are
	// bookkeeping stamps owned by the store.
	Timestamp time.Time `json:"timestamp"`

	Note     string   `json:"note,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Location string   `json:"location,omitempty"`
	Emoji    string   `json:"emoji,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Candidate is an extracted, not-yet-persisted transaction payload produced
// by the extraction adapter. It carries the amount as recognized, in the
// currency the model reported; conversion to the owner's currency happens
// downstream.
type Candidate struct {
	Amount      float64         `json:"amount"`
	Currency    string          `json:"currency"`
	Type        TransactionType `json:"type"`
	Category    string          `json:"category"`
	Subcategory string          `json:"subcategory,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Note        string          `json:"note,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Location    string          `json:"location,omitempty"`
	Emoji       string          `json:"emoji,omitempty"`
}

// ExtractionResult is what the extraction adapter hands back to callers.
// Found=false means "nothing financial detected in the input" and is a
// success, not a failure; callers must not treat it as an error.
type ExtractionResult struct {
	Found      bool        `json:"found"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

// Stats holds the per-user aggregation snapshot.
type Stats struct {
	TotalIncome  float64 `json:"total_income"`
	TotalExpense float64 `json:"total_expense"`
	Balance      float64 `json:"balance"`
	TotalCount   int64   `json:"total_count"`
}
