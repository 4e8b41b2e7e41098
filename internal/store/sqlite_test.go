package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/avoronov/billfold/internal/domain"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func validTx(userID string, ts time.Time) domain.Transaction {
	return domain.Transaction{
		UserID:    userID,
		Amount:    25.50,
		Currency:  "USD",
		Type:      domain.TypeExpense,
		Category:  "Food",
		Timestamp: ts,
		Note:      "groceries",
		Tags:      []string{"weekly"},
	}
}

func TestCreateAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx := validTx("user-a", time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	if err := s.Create(ctx, &tx); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tx.ID == "" {
		t.Fatal("Create did not assign an id")
	}
	if tx.CreatedAt.IsZero() || tx.UpdatedAt.IsZero() {
		t.Fatal("Create did not stamp created_at/updated_at")
	}
	if tx.Emoji != domain.DefaultEmoji {
		t.Errorf("Emoji = %q, want default %q", tx.Emoji, domain.DefaultEmoji)
	}

	got, err := s.Get(ctx, tx.ID, "user-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Amount != 25.50 || got.Category != "Food" || got.Note != "groceries" {
		t.Errorf("Get returned altered record: %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "weekly" {
		t.Errorf("Tags = %v, want [weekly]", got.Tags)
	}
	if !got.Timestamp.Equal(tx.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, tx.Timestamp)
	}
}

func TestCreateValidation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := validTx("user-a", time.Now())

	tests := []struct {
		name   string
		mutate func(*domain.Transaction)
	}{
		{"zero amount", func(tx *domain.Transaction) { tx.Amount = 0 }},
		{"negative amount", func(tx *domain.Transaction) { tx.Amount = -5 }},
		{"bad type", func(tx *domain.Transaction) { tx.Type = "transfer" }},
		{"missing category", func(tx *domain.Transaction) { tx.Category = "" }},
		{"unknown category", func(tx *domain.Transaction) { tx.Category = "Yachts" }},
		{"income category on expense", func(tx *domain.Transaction) { tx.Category = "Salary" }},
		{"zero timestamp", func(tx *domain.Transaction) { tx.Timestamp = time.Time{} }},
		{"missing currency", func(tx *domain.Transaction) { tx.Currency = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := base
			tt.mutate(&tx)
			err := s.Create(ctx, &tx)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !domain.IsValidation(err) {
				t.Errorf("error %v is not a ValidationError", err)
			}
		})
	}
}

func TestOwnershipIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx := validTx("user-b", time.Now())
	if err := s.Create(ctx, &tx); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := s.Get(ctx, tx.ID, "user-a"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get by non-owner: err = %v, want ErrNotFound", err)
	}

	note := "hijacked"
	if _, err := s.Update(ctx, tx.ID, "user-a", Patch{Note: &note}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Update by non-owner: err = %v, want ErrNotFound", err)
	}

	if err := s.Delete(ctx, tx.ID, "user-a"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Delete by non-owner: err = %v, want ErrNotFound", err)
	}

	// Owner still sees the untouched record.
	got, err := s.Get(ctx, tx.ID, "user-b")
	if err != nil {
		t.Fatalf("Get by owner: %v", err)
	}
	if got.Note != "groceries" {
		t.Errorf("record was modified by a non-owner: %+v", got)
	}
}

func TestUpdatePartialMerge(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx := validTx("user-a", time.Now())
	if err := s.Create(ctx, &tx); err != nil {
		t.Fatalf("Create: %v", err)
	}
	createdUpdatedAt := tx.UpdatedAt

	s.now = func() time.Time { return time.Now().Add(time.Minute) }

	amount := 99.99
	note := "dinner out"
	got, err := s.Update(ctx, tx.ID, "user-a", Patch{Amount: &amount, Note: &note})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if got.Amount != 99.99 || got.Note != "dinner out" {
		t.Errorf("patched fields not applied: %+v", got)
	}
	if got.Category != "Food" || got.Currency != "USD" || len(got.Tags) != 1 {
		t.Errorf("unpatched fields changed: %+v", got)
	}
	if !got.UpdatedAt.After(createdUpdatedAt) {
		t.Errorf("UpdatedAt not refreshed: %v vs %v", got.UpdatedAt, createdUpdatedAt)
	}

	badAmount := -1.0
	if _, err := s.Update(ctx, tx.ID, "user-a", Patch{Amount: &badAmount}); !domain.IsValidation(err) {
		t.Errorf("Update with bad amount: err = %v, want ValidationError", err)
	}
}

func TestUpdateTypeRevalidatesCategory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx := validTx("user-a", time.Now()) // Food expense
	if err := s.Create(ctx, &tx); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Flipping only the type would leave Food on an income transaction.
	income := domain.TypeIncome
	if _, err := s.Update(ctx, tx.ID, "user-a", Patch{Type: &income}); !domain.IsValidation(err) {
		t.Errorf("Update type-only with stranded category: err = %v, want ValidationError", err)
	}

	got, err := s.Get(ctx, tx.ID, "user-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Type != domain.TypeExpense || got.Category != "Food" {
		t.Errorf("rejected update changed the record: type=%s category=%q", got.Type, got.Category)
	}

	// Patching type and a matching category together succeeds.
	salary := "Salary"
	got, err = s.Update(ctx, tx.ID, "user-a", Patch{Type: &income, Category: &salary})
	if err != nil {
		t.Fatalf("Update type+category: %v", err)
	}
	if got.Type != domain.TypeIncome || got.Category != "Salary" {
		t.Errorf("update not applied: type=%s category=%q", got.Type, got.Category)
	}

	// Other shows up in both vocabularies, so a type flip alone is fine there.
	other := validTx("user-a", time.Now())
	other.Category = "Other"
	if err := s.Create(ctx, &other); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Update(ctx, other.ID, "user-a", Patch{Type: &income}); err != nil {
		t.Errorf("Update type-only with shared category: %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx := validTx("user-a", time.Now())
	if err := s.Create(ctx, &tx); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.Delete(ctx, tx.ID, "user-a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, tx.ID, "user-a"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second Delete: err = %v, want ErrNotFound", err)
	}
}

func seedTransactions(t *testing.T, s *SQLiteStore, userID string, n int) {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		tx := validTx(userID, base.Add(time.Duration(i)*time.Hour))
		tx.Note = fmt.Sprintf("tx-%02d", i)
		if err := s.Create(context.Background(), &tx); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}
}

func TestListPaginationAndOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedTransactions(t, s, "user-a", 25)

	page1, err := s.List(ctx, "user-a", ListFilter{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("List page 1: %v", err)
	}
	if len(page1.Items) != 10 {
		t.Fatalf("page 1 size = %d, want 10", len(page1.Items))
	}
	if !page1.HasMore {
		t.Error("page 1 HasMore = false, want true")
	}
	// Most recent first.
	if page1.Items[0].Note != "tx-24" {
		t.Errorf("first item = %q, want tx-24", page1.Items[0].Note)
	}
	for i := 1; i < len(page1.Items); i++ {
		if page1.Items[i].Timestamp.After(page1.Items[i-1].Timestamp) {
			t.Fatalf("items not in descending timestamp order at %d", i)
		}
	}

	page3, err := s.List(ctx, "user-a", ListFilter{Page: 3, Limit: 10})
	if err != nil {
		t.Fatalf("List page 3: %v", err)
	}
	if len(page3.Items) != 5 {
		t.Errorf("page 3 size = %d, want 5", len(page3.Items))
	}
	if page3.HasMore {
		t.Error("page 3 HasMore = true, want false")
	}
}

func TestListDefaultLimit(t *testing.T) {
	s := openTestStore(t)
	seedTransactions(t, s, "user-a", 15)

	page, err := s.List(context.Background(), "user-a", ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != DefaultLimit {
		t.Errorf("default page size = %d, want %d", len(page.Items), DefaultLimit)
	}
}

func TestListFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	food := validTx("user-a", time.Now())
	if err := s.Create(ctx, &food); err != nil {
		t.Fatalf("Create: %v", err)
	}

	transport := validTx("user-a", time.Now())
	transport.Category = "Transport"
	transport.Location = "Berlin"
	transport.Tags = []string{"work"}
	if err := s.Create(ctx, &transport); err != nil {
		t.Fatalf("Create: %v", err)
	}

	salary := validTx("user-a", time.Now())
	salary.Type = domain.TypeIncome
	salary.Category = "Salary"
	if err := s.Create(ctx, &salary); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Case-insensitive substring on category.
	page, err := s.List(ctx, "user-a", ListFilter{Category: "ansp"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Category != "Transport" {
		t.Errorf("category filter returned %+v", page.Items)
	}

	page, err = s.List(ctx, "user-a", ListFilter{Type: "income"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Category != "Salary" {
		t.Errorf("type filter returned %+v", page.Items)
	}

	page, err = s.List(ctx, "user-a", ListFilter{Location: "Berlin"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 1 {
		t.Errorf("location filter returned %d items, want 1", len(page.Items))
	}

	page, err = s.List(ctx, "user-a", ListFilter{Tag: "work"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Category != "Transport" {
		t.Errorf("tag filter returned %+v", page.Items)
	}
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Empty user: zero totals, no error.
	stats, err := s.Stats(ctx, "user-empty")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalIncome != 0 || stats.TotalExpense != 0 || stats.Balance != 0 || stats.TotalCount != 0 {
		t.Errorf("empty user stats = %+v, want zeros", stats)
	}

	income := validTx("user-a", time.Now())
	income.Type = domain.TypeIncome
	income.Category = "Salary"
	income.Amount = 100
	expense1 := validTx("user-a", time.Now())
	expense1.Amount = 40
	expense2 := validTx("user-a", time.Now())
	expense2.Amount = 10
	other := validTx("user-b", time.Now())
	other.Amount = 500

	for _, tx := range []*domain.Transaction{&income, &expense1, &expense2, &other} {
		if err := s.Create(ctx, tx); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	stats, err = s.Stats(ctx, "user-a")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := domain.Stats{TotalIncome: 100, TotalExpense: 50, Balance: 50, TotalCount: 3}
	if stats != want {
		t.Errorf("Stats = %+v, want %+v", stats, want)
	}
}
