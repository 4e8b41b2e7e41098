package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/avoronov/billfold/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	amount            REAL NOT NULL,
	currency          TEXT NOT NULL,
	original_amount   REAL NOT NULL DEFAULT 0,
	original_currency TEXT NOT NULL DEFAULT '',
	type              TEXT NOT NULL CHECK (type IN ('income', 'expense')),
	category          TEXT NOT NULL,
	subcategory       TEXT NOT NULL DEFAULT '',
	ts                TEXT NOT NULL,
	note              TEXT NOT NULL DEFAULT '',
	tags              TEXT NOT NULL DEFAULT '[]',
	location          TEXT NOT NULL DEFAULT '',
	emoji             TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_user_ts ON transactions(user_id, ts DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_user_type ON transactions(user_id, type);
`

// SQLiteStore implements TransactionStore on a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the SQLite database at path and ensures the
// schema exists. Use ":memory:" for tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// DB exposes the underlying handle so collaborators (the user directory)
// can share the same database file.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func validateCreate(tx *domain.Transaction) error {
	if tx.Amount <= 0 {
		return domain.Validation("amount", "must be a positive number")
	}
	if !tx.Type.Valid() {
		return domain.Validation("type", "must be income or expense")
	}
	if strings.TrimSpace(tx.Category) == "" {
		return domain.Validation("category", "is required")
	}
	if !domain.ValidCategory(tx.Type, tx.Category) {
		return domain.Validation("category", fmt.Sprintf("%q is not a known %s category", tx.Category, tx.Type))
	}
	if tx.Timestamp.IsZero() {
		return domain.Validation("timestamp", "is required")
	}
	if strings.TrimSpace(tx.Currency) == "" {
		return domain.Validation("currency", "is required")
	}
	if tx.OriginalCurrency != "" && tx.OriginalCurrency != tx.Currency && tx.OriginalAmount == 0 {
		return domain.Validation("original_amount", "required when original_currency differs")
	}
	return nil
}

// Create implements TransactionStore.
func (s *SQLiteStore) Create(ctx context.Context, tx *domain.Transaction) error {
	if err := validateCreate(tx); err != nil {
		return err
	}

	tx.ID = uuid.NewString()
	now := s.now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	if tx.Emoji == "" {
		tx.Emoji = domain.DefaultEmoji
	}

	tags, err := json.Marshal(tx.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, user_id, amount, currency, original_amount, original_currency,
			type, category, subcategory, ts, note, tags, location, emoji,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Amount, tx.Currency, tx.OriginalAmount, tx.OriginalCurrency,
		string(tx.Type), tx.Category, tx.Subcategory, tx.Timestamp.UTC().Format(time.RFC3339Nano),
		tx.Note, string(tags), tx.Location, tx.Emoji,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

const selectColumns = `
	id, user_id, amount, currency, original_amount, original_currency,
	type, category, subcategory, ts, note, tags, location, emoji,
	created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (domain.Transaction, error) {
	var (
		tx                              domain.Transaction
		typ, ts, tags, created, updated string
	)
	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.Amount, &tx.Currency, &tx.OriginalAmount, &tx.OriginalCurrency,
		&typ, &tx.Category, &tx.Subcategory, &ts, &tx.Note, &tags, &tx.Location, &tx.Emoji,
		&created, &updated,
	)
	if err != nil {
		return domain.Transaction{}, err
	}

	tx.Type = domain.TransactionType(typ)
	if tx.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return domain.Transaction{}, fmt.Errorf("parse ts: %w", err)
	}
	if tx.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return domain.Transaction{}, fmt.Errorf("parse created_at: %w", err)
	}
	if tx.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return domain.Transaction{}, fmt.Errorf("parse updated_at: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &tx.Tags); err != nil {
		return domain.Transaction{}, fmt.Errorf("parse tags: %w", err)
	}
	return tx, nil
}

// Get implements TransactionStore.
func (s *SQLiteStore) Get(ctx context.Context, id, userID string) (domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM transactions WHERE id = ? AND user_id = ?`,
		id, userID)

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transaction{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

// Update implements TransactionStore: read the owned row, merge the patch,
// write it back and return the result, all inside one SQL transaction.
func (s *SQLiteStore) Update(ctx context.Context, id, userID string, patch Patch) (domain.Transaction, error) {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("begin update: %w", err)
	}
	defer dbtx.Rollback()

	row := dbtx.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM transactions WHERE id = ? AND user_id = ?`,
		id, userID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transaction{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("read for update: %w", err)
	}

	if patch.Amount != nil {
		if *patch.Amount <= 0 {
			return domain.Transaction{}, domain.Validation("amount", "must be a positive number")
		}
		tx.Amount = *patch.Amount
	}
	if patch.Type != nil {
		if !patch.Type.Valid() {
			return domain.Transaction{}, domain.Validation("type", "must be income or expense")
		}
		tx.Type = *patch.Type
	}
	if patch.Category != nil {
		if !domain.ValidCategory(tx.Type, *patch.Category) {
			return domain.Transaction{}, domain.Validation("category",
				fmt.Sprintf("%q is not a known %s category", *patch.Category, tx.Type))
		}
		tx.Category = *patch.Category
	} else if patch.Type != nil && !domain.ValidCategory(tx.Type, tx.Category) {
		// A type change alone must not strand the kept category outside
		// the new type's vocabulary.
		return domain.Transaction{}, domain.Validation("type",
			fmt.Sprintf("category %q is not a known %s category", tx.Category, tx.Type))
	}
	if patch.Subcategory != nil {
		tx.Subcategory = domain.NormalizeSubcategory(tx.Category, *patch.Subcategory)
	}
	if patch.Timestamp != nil {
		if patch.Timestamp.IsZero() {
			return domain.Transaction{}, domain.Validation("timestamp", "must not be zero")
		}
		tx.Timestamp = *patch.Timestamp
	}
	if patch.Note != nil {
		tx.Note = *patch.Note
	}
	if patch.Tags != nil {
		tx.Tags = *patch.Tags
	}
	if patch.Location != nil {
		tx.Location = *patch.Location
	}
	if patch.Emoji != nil {
		tx.Emoji = *patch.Emoji
		if tx.Emoji == "" {
			tx.Emoji = domain.DefaultEmoji
		}
	}

	tx.UpdatedAt = s.now().UTC()

	tags, err := json.Marshal(tx.Tags)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("marshal tags: %w", err)
	}

	_, err = dbtx.ExecContext(ctx, `
		UPDATE transactions SET
			amount = ?, type = ?, category = ?, subcategory = ?, ts = ?,
			note = ?, tags = ?, location = ?, emoji = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		tx.Amount, string(tx.Type), tx.Category, tx.Subcategory,
		tx.Timestamp.UTC().Format(time.RFC3339Nano),
		tx.Note, string(tags), tx.Location, tx.Emoji,
		tx.UpdatedAt.Format(time.RFC3339Nano),
		id, userID,
	)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("write update: %w", err)
	}

	if err := dbtx.Commit(); err != nil {
		return domain.Transaction{}, fmt.Errorf("commit update: %w", err)
	}
	return tx, nil
}

// Delete implements TransactionStore.
func (s *SQLiteStore) Delete(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction: rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List implements TransactionStore.
func (s *SQLiteStore) List(ctx context.Context, userID string, filter ListFilter) (Page, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = DefaultLimit
	}

	where := []string{"user_id = ?"}
	args := []any{userID}

	if filter.Category != "" {
		where = append(where, "instr(lower(category), lower(?)) > 0")
		args = append(args, filter.Category)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Currency != "" {
		where = append(where, "currency = ?")
		args = append(args, strings.ToUpper(filter.Currency))
	}
	if filter.Location != "" {
		where = append(where, "location = ?")
		args = append(args, filter.Location)
	}
	if filter.Tag != "" {
		// Tags are stored as a JSON array of strings.
		where = append(where, `instr(tags, ?) > 0`)
		args = append(args, fmt.Sprintf("%q", filter.Tag))
	}

	query := `SELECT ` + selectColumns + ` FROM transactions WHERE ` +
		strings.Join(where, " AND ") +
		` ORDER BY ts DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Page{}, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Transaction, 0, filter.Limit)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return Page{}, fmt.Errorf("scan transaction: %w", err)
		}
		items = append(items, tx)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("list transactions: %w", err)
	}

	return Page{Items: items, HasMore: len(items) == filter.Limit}, nil
}

// Stats implements TransactionStore.
func (s *SQLiteStore) Stats(ctx context.Context, userID string) (domain.Stats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'income' THEN amount END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN amount END), 0),
			COUNT(*)
		FROM transactions WHERE user_id = ?`, userID)

	var stats domain.Stats
	if err := row.Scan(&stats.TotalIncome, &stats.TotalExpense, &stats.TotalCount); err != nil {
		return domain.Stats{}, fmt.Errorf("aggregate stats: %w", err)
	}
	stats.Balance = stats.TotalIncome - stats.TotalExpense
	return stats, nil
}

// Ensure SQLiteStore implements TransactionStore.
var _ TransactionStore = (*SQLiteStore)(nil)
