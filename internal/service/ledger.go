package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/avoronov/billfold/internal/domain"
	"github.com/avoronov/billfold/internal/pending"
	"github.com/avoronov/billfold/internal/store"
)

// Extractor is the slice of the extraction adapter the ledger needs.
type Extractor interface {
	ExtractText(ctx context.Context, user domain.User, text string) (domain.ExtractionResult, error)
	ExtractAudio(ctx context.Context, user domain.User, audio []byte, mimeType string) (domain.ExtractionResult, error)
	ExtractImage(ctx context.Context, user domain.User, image []byte, mimeType string) (domain.ExtractionResult, error)
}

// Converter converts an amount between currency codes.
type Converter interface {
	Convert(ctx context.Context, amount float64, from, to string) (float64, error)
}

// ReceiptArchive persists the raw uploaded receipt image and returns its
// storage URI. Archiving is best-effort: the shortcut flow proceeds even
// when it fails.
type ReceiptArchive interface {
	Store(ctx context.Context, userID string, image []byte, mimeType string) (string, error)
}

// Ledger composes extraction, conversion, the pending cache and the durable
// store into the operations the HTTP layer exposes.
type Ledger struct {
	store     store.TransactionStore
	extractor Extractor
	converter Converter
	pending   *pending.Cache
	archive   ReceiptArchive // nil when no archive is configured
	log       zerolog.Logger
}

// NewLedger wires the ledger service. archive may be nil.
func NewLedger(
	st store.TransactionStore,
	ex Extractor,
	conv Converter,
	pend *pending.Cache,
	archive ReceiptArchive,
	log zerolog.Logger,
) *Ledger {
	return &Ledger{
		store:     st,
		extractor: ex,
		converter: conv,
		pending:   pend,
		archive:   archive,
		log:       log,
	}
}

// CreateFromCandidate converts the candidate into the user's default
// currency when needed and persists it. A conversion failure aborts the
// save; nothing is written with a wrong-currency amount.
func (l *Ledger) CreateFromCandidate(ctx context.Context, user domain.User, c domain.Candidate) (domain.Transaction, error) {
	tx, err := l.materialize(ctx, user, c)
	if err != nil {
		return domain.Transaction{}, err
	}
	if err := l.store.Create(ctx, &tx); err != nil {
		return domain.Transaction{}, err
	}
	return tx, nil
}

func (l *Ledger) materialize(ctx context.Context, user domain.User, c domain.Candidate) (domain.Transaction, error) {
	tx := domain.Transaction{
		UserID:      user.ID,
		Amount:      c.Amount,
		Currency:    user.DefaultCurrency,
		Type:        c.Type,
		Category:    c.Category,
		Subcategory: c.Subcategory,
		Timestamp:   c.Timestamp,
		Note:        c.Note,
		Tags:        c.Tags,
		Location:    c.Location,
		Emoji:       c.Emoji,
	}

	from := strings.ToUpper(strings.TrimSpace(c.Currency))
	if from != "" && from != user.DefaultCurrency {
		converted, err := l.converter.Convert(ctx, c.Amount, from, user.DefaultCurrency)
		if err != nil {
			return domain.Transaction{}, err
		}
		tx.Amount = converted
		tx.OriginalAmount = c.Amount
		tx.OriginalCurrency = from
	}
	return tx, nil
}

// Get, Update, Delete, List and Stats delegate to the store; ownership
// scoping lives there.

func (l *Ledger) Get(ctx context.Context, id, userID string) (domain.Transaction, error) {
	return l.store.Get(ctx, id, userID)
}

func (l *Ledger) Update(ctx context.Context, id, userID string, patch store.Patch) (domain.Transaction, error) {
	return l.store.Update(ctx, id, userID, patch)
}

func (l *Ledger) Delete(ctx context.Context, id, userID string) error {
	return l.store.Delete(ctx, id, userID)
}

func (l *Ledger) List(ctx context.Context, userID string, filter store.ListFilter) (store.Page, error) {
	return l.store.List(ctx, userID, filter)
}

func (l *Ledger) Stats(ctx context.Context, userID string) (domain.Stats, error) {
	return l.store.Stats(ctx, userID)
}

// ExtractText, ExtractAudio and ExtractImage surface candidates without
// persisting anything; the client reviews them and creates explicitly.

func (l *Ledger) ExtractText(ctx context.Context, user domain.User, text string) (domain.ExtractionResult, error) {
	return l.extractor.ExtractText(ctx, user, text)
}

func (l *Ledger) ExtractAudio(ctx context.Context, user domain.User, audio []byte, mimeType string) (domain.ExtractionResult, error) {
	return l.extractor.ExtractAudio(ctx, user, audio, mimeType)
}

func (l *Ledger) ExtractImage(ctx context.Context, user domain.User, image []byte, mimeType string) (domain.ExtractionResult, error) {
	return l.extractor.ExtractImage(ctx, user, image, mimeType)
}

// ShortcutResult is what an upload hands back: the confirmation token plus
// a human-readable preview of what confirming it will persist. The preview
// names the amount as recognized, before conversion, so the person holding
// the receipt can sanity-check it.
type ShortcutResult struct {
	ID         string     `json:"id,omitempty"`
	Found      bool       `json:"found"`
	Preview    string     `json:"preview,omitempty"`
	ReceiptURI string     `json:"receipt_uri,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

func previewText(c domain.Candidate, user domain.User) string {
	currency := c.Currency
	if currency == "" {
		currency = user.DefaultCurrency
	}
	label := c.Category
	if c.Note != "" {
		label += ", " + c.Note
	}
	return fmt.Sprintf("%s %.2f %s (%s)", c.Type, c.Amount, currency, label)
}

// ShortcutUpload runs the first half of the two-step flow: extract a single
// candidate from the receipt photo, convert it, park it in the pending cache
// and return a token. Nothing touches the durable store here.
func (l *Ledger) ShortcutUpload(ctx context.Context, user domain.User, image []byte, mimeType string) (ShortcutResult, error) {
	result, err := l.extractor.ExtractImage(ctx, user, image, mimeType)
	if err != nil {
		return ShortcutResult{}, err
	}
	if !result.Found || len(result.Candidates) == 0 {
		return ShortcutResult{Found: false}, nil
	}
	candidate := result.Candidates[0]

	tx, err := l.materialize(ctx, user, candidate)
	if err != nil {
		return ShortcutResult{}, err
	}

	var receiptURI string
	if l.archive != nil {
		receiptURI, err = l.archive.Store(ctx, user.ID, image, mimeType)
		if err != nil {
			l.log.Warn().Err(err).Str("user_id", user.ID).Msg("receipt archive failed, continuing without it")
			receiptURI = ""
		}
	}

	id := l.pending.Put(tx, user.ID)
	expiresAt := time.Now().Add(l.pending.TTL())
	return ShortcutResult{
		ID:         id,
		Found:      true,
		Preview:    previewText(candidate, user),
		ReceiptURI: receiptURI,
		ExpiresAt:  &expiresAt,
	}, nil
}

// ShortcutConfirm consumes the pending entry and persists it. Take is
// atomic, so two racing confirmations for the same token persist at most
// one transaction.
func (l *Ledger) ShortcutConfirm(ctx context.Context, userID, id string) (domain.Transaction, error) {
	entry, status := l.pending.Take(id, userID)
	switch status {
	case pending.Expired:
		return domain.Transaction{}, domain.ErrExpired
	case pending.NotFound:
		return domain.Transaction{}, domain.ErrNotFound
	}

	tx := entry.Data
	if err := l.store.Create(ctx, &tx); err != nil {
		return domain.Transaction{}, err
	}
	l.log.Info().
		Str("user_id", userID).
		Str("transaction_id", tx.ID).
		Str("pending_id", id).
		Msg("shortcut transaction confirmed")
	return tx, nil
}
