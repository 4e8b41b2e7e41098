package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/avoronov/billfold/internal/domain"
)

// Directory is the authority on users: their default currency, language,
// tag/location vocabularies, and whether a presented credential belongs to
// one of them. This core only ever reads from it.
type Directory interface {
	Lookup(ctx context.Context, userID string) (domain.User, error)
	Authenticate(ctx context.Context, token string) (domain.User, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id               TEXT PRIMARY KEY,
	token            TEXT NOT NULL UNIQUE,
	default_currency TEXT NOT NULL,
	language         TEXT NOT NULL DEFAULT 'en'
);

CREATE TABLE IF NOT EXISTS user_tags (
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name    TEXT NOT NULL,
	PRIMARY KEY (user_id, name)
);

CREATE TABLE IF NOT EXISTS user_locations (
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	name    TEXT NOT NULL,
	PRIMARY KEY (user_id, name)
);
`

// SQLDirectory is a Directory backed by the same SQLite database as the
// transaction store.
type SQLDirectory struct {
	db *sql.DB
}

// NewSQLDirectory ensures the user tables exist on db.
func NewSQLDirectory(db *sql.DB) (*SQLDirectory, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply users schema: %w", err)
	}
	return &SQLDirectory{db: db}, nil
}

// SeedUser is one configured user to upsert at startup.
type SeedUser struct {
	ID              string
	Token           string
	DefaultCurrency string
	Language        string
	Tags            []string
	Locations       []string
}

// Seed upserts the configured users and replaces their vocabularies.
func (d *SQLDirectory) Seed(ctx context.Context, seeds []SeedUser) error {
	for _, u := range seeds {
		if u.ID == "" || u.Token == "" || u.DefaultCurrency == "" {
			return fmt.Errorf("seed user %q: id, token and default_currency are required", u.ID)
		}
		lang := u.Language
		if lang == "" {
			lang = "en"
		}

		_, err := d.db.ExecContext(ctx, `
			INSERT INTO users (id, token, default_currency, language)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				token = excluded.token,
				default_currency = excluded.default_currency,
				language = excluded.language`,
			u.ID, u.Token, strings.ToUpper(u.DefaultCurrency), lang)
		if err != nil {
			return fmt.Errorf("seed user %q: %w", u.ID, err)
		}

		for table, names := range map[string][]string{
			"user_tags":      u.Tags,
			"user_locations": u.Locations,
		} {
			if _, err := d.db.ExecContext(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE user_id = ?`, table), u.ID); err != nil {
				return fmt.Errorf("seed user %q: clear %s: %w", u.ID, table, err)
			}
			for _, name := range names {
				if _, err := d.db.ExecContext(ctx,
					fmt.Sprintf(`INSERT OR IGNORE INTO %s (user_id, name) VALUES (?, ?)`, table),
					u.ID, name); err != nil {
					return fmt.Errorf("seed user %q: insert into %s: %w", u.ID, table, err)
				}
			}
		}
	}
	return nil
}

// Lookup implements Directory.
func (d *SQLDirectory) Lookup(ctx context.Context, userID string) (domain.User, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, default_currency, language FROM users WHERE id = ?`, userID)
	return d.scanUser(ctx, row)
}

// Authenticate implements Directory. Every credential failure maps to the
// same ErrUnauthorized; callers never learn which check failed.
func (d *SQLDirectory) Authenticate(ctx context.Context, token string) (domain.User, error) {
	if strings.TrimSpace(token) == "" {
		return domain.User{}, domain.ErrUnauthorized
	}
	row := d.db.QueryRowContext(ctx,
		`SELECT id, default_currency, language FROM users WHERE token = ?`, token)
	user, err := d.scanUser(ctx, row)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, domain.ErrUnauthorized
	}
	return user, err
}

func (d *SQLDirectory) scanUser(ctx context.Context, row *sql.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.DefaultCurrency, &user.Language)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("scan user: %w", err)
	}

	if user.Tags, err = d.names(ctx, "user_tags", user.ID); err != nil {
		return domain.User{}, err
	}
	if user.Locations, err = d.names(ctx, "user_locations", user.ID); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (d *SQLDirectory) names(ctx context.Context, table, userID string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT name FROM %s WHERE user_id = ? ORDER BY name`, table), userID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

var _ Directory = (*SQLDirectory)(nil)
