package warehouse

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/avoronov/billfold/internal/domain"
	"github.com/avoronov/billfold/internal/store"
)

// exportBatchSize is how many ledger rows go to the inserter per call.
const exportBatchSize = 500

// TransactionRow is the warehouse shape of a ledger transaction.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED

	Amount   float64 `bigquery:"amount"`   // REQUIRED
	Currency string  `bigquery:"currency"` // REQUIRED

	OriginalAmount   bigquery.NullFloat64 `bigquery:"original_amount"`   // NULLABLE
	OriginalCurrency bigquery.NullString  `bigquery:"original_currency"` // NULLABLE

	Type        string              `bigquery:"type"`        // REQUIRED
	Category    string              `bigquery:"category"`    // REQUIRED
	Subcategory bigquery.NullString `bigquery:"subcategory"` // NULLABLE

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	TransactionTS   time.Time  `bigquery:"transaction_ts"`   // REQUIRED

	Note     bigquery.NullString `bigquery:"note"`     // NULLABLE
	Tags     []string            `bigquery:"tags"`     // REPEATED STRING
	Location bigquery.NullString `bigquery:"location"` // NULLABLE

	CreatedTS  time.Time `bigquery:"created_ts"`
	ExportedTS time.Time `bigquery:"exported_ts"`
}

func rowFromTransaction(tx domain.Transaction, exportedAt time.Time) *TransactionRow {
	row := &TransactionRow{
		TransactionID:   tx.ID,
		UserID:          tx.UserID,
		Amount:          tx.Amount,
		Currency:        tx.Currency,
		Type:            string(tx.Type),
		Category:        tx.Category,
		TransactionDate: civil.DateOf(tx.Timestamp),
		TransactionTS:   tx.Timestamp,
		Tags:            tx.Tags,
		CreatedTS:       tx.CreatedAt,
		ExportedTS:      exportedAt,
	}
	if tx.OriginalCurrency != "" {
		row.OriginalAmount = bigquery.NullFloat64{Float64: tx.OriginalAmount, Valid: true}
		row.OriginalCurrency = bigquery.NullString{StringVal: tx.OriginalCurrency, Valid: true}
	}
	if tx.Subcategory != "" {
		row.Subcategory = bigquery.NullString{StringVal: tx.Subcategory, Valid: true}
	}
	if tx.Note != "" {
		row.Note = bigquery.NullString{StringVal: tx.Note, Valid: true}
	}
	if tx.Location != "" {
		row.Location = bigquery.NullString{StringVal: tx.Location, Valid: true}
	}
	return row
}

// Exporter batch-loads ledger transactions into a BigQuery table for offline
// analysis. It is a point-in-time copy, not part of the serving path.
type Exporter struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewExporter creates an exporter against the given project/dataset/table.
func NewExporter(ctx context.Context, project, dataset, table string) (*Exporter, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	return &Exporter{client: client, dataset: dataset, table: table}, nil
}

// Close releases the underlying client.
func (e *Exporter) Close() error {
	return e.client.Close()
}

// EnsureTable creates the destination table from the row schema if it does
// not exist yet.
func (e *Exporter) EnsureTable(ctx context.Context) error {
	schema, err := bigquery.InferSchema(TransactionRow{})
	if err != nil {
		return fmt.Errorf("infer schema: %w", err)
	}

	table := e.client.Dataset(e.dataset).Table(e.table)
	if _, err := table.Metadata(ctx); err == nil {
		return nil
	}
	if err := table.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil {
		return fmt.Errorf("create table %s.%s: %w", e.dataset, e.table, err)
	}
	return nil
}

// ExportUser pages through the user's transactions and streams them into
// the warehouse table. Returns the number of exported rows.
func (e *Exporter) ExportUser(ctx context.Context, src store.TransactionStore, userID string) (int, error) {
	inserter := e.client.Dataset(e.dataset).Table(e.table).Inserter()
	exportedAt := time.Now().UTC()

	total := 0
	for page := 1; ; page++ {
		result, err := src.List(ctx, userID, store.ListFilter{Page: page, Limit: exportBatchSize})
		if err != nil {
			return total, fmt.Errorf("list page %d: %w", page, err)
		}
		if len(result.Items) == 0 {
			break
		}

		rows := make([]*TransactionRow, 0, len(result.Items))
		for _, tx := range result.Items {
			rows = append(rows, rowFromTransaction(tx, exportedAt))
		}
		if err := inserter.Put(ctx, rows); err != nil {
			return total, fmt.Errorf("insert page %d: %w", page, err)
		}
		total += len(rows)

		if !result.HasMore {
			break
		}
	}
	return total, nil
}
