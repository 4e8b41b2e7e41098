package store

import (
	"context"
	"time"

	"github.com/avoronov/billfold/internal/domain"
)

// DefaultLimit is the page size used when the caller does not supply one.
const DefaultLimit = 10

// ListFilter selects and paginates a user's transactions. Page is 1-based.
type ListFilter struct {
	Page  int
	Limit int

	// Category is a case-insensitive substring match.
	Category string

	// Equality filters; empty means "no constraint".
	Type     string
	Currency string
	Location string
	Tag      string
}

// Page is one page of list results. HasMore is the heuristic
// len(items) == limit: it can report true on an exactly-full last page and
// is not an exact remaining-count guarantee.
type Page struct {
	Items   []domain.Transaction `json:"items"`
	HasMore bool                 `json:"has_more"`
}

// Patch carries the fields of a partial update; nil fields are left
// untouched. Currency and the original-amount audit pair are immutable
// after creation.
type Patch struct {
	Amount      *float64
	Type        *domain.TransactionType
	Category    *string
	Subcategory *string
	Timestamp   *time.Time
	Note        *string
	Tags        *[]string
	Location    *string
	Emoji       *string
}

// TransactionStore is the durable ledger. Every operation is scoped to the
// owning user: a record owned by someone else reads as domain.ErrNotFound.
type TransactionStore interface {
	// Create validates and persists tx, assigning its ID and stamping
	// CreatedAt/UpdatedAt. The amount must already be in the owner's
	// currency.
	Create(ctx context.Context, tx *domain.Transaction) error

	Get(ctx context.Context, id, userID string) (domain.Transaction, error)

	// Update merges the patch into the stored record and returns the
	// updated row, refreshing UpdatedAt.
	Update(ctx context.Context, id, userID string, patch Patch) (domain.Transaction, error)

	Delete(ctx context.Context, id, userID string) error

	// List returns transactions sorted by timestamp descending; the UI's
	// infinite scroll depends on that ordering.
	List(ctx context.Context, userID string, filter ListFilter) (Page, error)

	// Stats aggregates the user's current persisted state; a user with no
	// transactions gets zero-valued totals.
	Stats(ctx context.Context, userID string) (domain.Stats, error)
}
