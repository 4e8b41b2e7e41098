package warehouse

import (
	"testing"
	"time"

	"github.com/avoronov/billfold/internal/domain"
)

func TestRowFromTransaction(t *testing.T) {
	ts := time.Date(2026, 3, 9, 19, 30, 0, 0, time.UTC)
	exported := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	tx := domain.Transaction{
		ID:               "tx-1",
		UserID:           "user-a",
		Amount:           21.70,
		Currency:         "USD",
		OriginalAmount:   20,
		OriginalCurrency: "EUR",
		Type:             domain.TypeExpense,
		Category:         "Food",
		Subcategory:      "Restaurants",
		Timestamp:        ts,
		Note:             "dinner",
		Tags:             []string{"family"},
		CreatedAt:        ts,
	}

	row := rowFromTransaction(tx, exported)

	if row.TransactionID != "tx-1" || row.UserID != "user-a" {
		t.Errorf("identity fields wrong: %+v", row)
	}
	if row.TransactionDate.String() != "2026-03-09" {
		t.Errorf("TransactionDate = %s", row.TransactionDate)
	}
	if !row.OriginalAmount.Valid || row.OriginalAmount.Float64 != 20 {
		t.Errorf("OriginalAmount = %+v", row.OriginalAmount)
	}
	if !row.OriginalCurrency.Valid || row.OriginalCurrency.StringVal != "EUR" {
		t.Errorf("OriginalCurrency = %+v", row.OriginalCurrency)
	}
	if row.ExportedTS != exported {
		t.Errorf("ExportedTS = %v", row.ExportedTS)
	}
}

func TestRowFromTransaction_OptionalFieldsStayNull(t *testing.T) {
	tx := domain.Transaction{
		ID:        "tx-2",
		UserID:    "user-a",
		Amount:    5,
		Currency:  "USD",
		Type:      domain.TypeIncome,
		Category:  "Salary",
		Timestamp: time.Now(),
	}

	row := rowFromTransaction(tx, time.Now())

	if row.OriginalAmount.Valid || row.OriginalCurrency.Valid {
		t.Errorf("original pair should be null: %+v", row)
	}
	if row.Subcategory.Valid || row.Note.Valid || row.Location.Valid {
		t.Errorf("optional strings should be null: %+v", row)
	}
}
