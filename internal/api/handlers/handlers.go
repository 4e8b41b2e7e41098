package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/avoronov/billfold/internal/api/middleware"
	"github.com/avoronov/billfold/internal/domain"
	"github.com/avoronov/billfold/internal/service"
	"github.com/avoronov/billfold/internal/store"
)

// maxUploadBytes bounds audio and image payloads.
const maxUploadBytes = 10 << 20

// TransactionsHandler handles the transaction CRUD and stats endpoints.
type TransactionsHandler struct {
	ledger *service.Ledger
	log    zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(ledger *service.Ledger, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{ledger: ledger, log: log}
}

// transactionRequest is the JSON body for create; all fields optional except
// what the store's validation demands.
type transactionRequest struct {
	Amount      float64                `json:"amount"`
	Currency    string                 `json:"currency"`
	Type        domain.TransactionType `json:"type"`
	Category    string                 `json:"category"`
	Subcategory string                 `json:"subcategory"`
	Timestamp   *time.Time             `json:"timestamp"`
	Note        string                 `json:"note"`
	Tags        []string               `json:"tags"`
	Location    string                 `json:"location"`
	Emoji       string                 `json:"emoji"`
}

// Create handles POST /api/transactions
func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	candidate := domain.Candidate{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Type:        req.Type,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Note:        req.Note,
		Tags:        req.Tags,
		Location:    req.Location,
		Emoji:       req.Emoji,
	}
	if req.Timestamp != nil {
		candidate.Timestamp = *req.Timestamp
	} else {
		candidate.Timestamp = time.Now()
	}

	tx, err := h.ledger.CreateFromCandidate(r.Context(), user, candidate)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// List handles GET /api/transactions
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	query := r.URL.Query()
	filter := store.ListFilter{
		Category: query.Get("category"),
		Type:     query.Get("type"),
		Currency: query.Get("currency"),
		Location: query.Get("location"),
		Tag:      query.Get("tag"),
	}

	if pageStr := query.Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid page")
			return
		}
		filter.Page = page
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = limit
	}

	page, err := h.ledger.List(r.Context(), user.ID, filter)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, page)
}

// Get handles GET /api/transactions/{id}
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request, id string) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	tx, err := h.ledger.Get(r.Context(), id, user.ID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// updateRequest mirrors store.Patch; absent fields stay untouched.
type updateRequest struct {
	Amount      *float64                `json:"amount"`
	Type        *domain.TransactionType `json:"type"`
	Category    *string                 `json:"category"`
	Subcategory *string                 `json:"subcategory"`
	Timestamp   *time.Time              `json:"timestamp"`
	Note        *string                 `json:"note"`
	Tags        *[]string               `json:"tags"`
	Location    *string                 `json:"location"`
	Emoji       *string                 `json:"emoji"`
}

// Update handles PUT /api/transactions/{id}
func (h *TransactionsHandler) Update(w http.ResponseWriter, r *http.Request, id string) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	patch := store.Patch{
		Amount:      req.Amount,
		Type:        req.Type,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Timestamp:   req.Timestamp,
		Note:        req.Note,
		Tags:        req.Tags,
		Location:    req.Location,
		Emoji:       req.Emoji,
	}

	tx, err := h.ledger.Update(r.Context(), id, user.ID, patch)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// Delete handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) Delete(w http.ResponseWriter, r *http.Request, id string) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.ledger.Delete(r.Context(), id, user.ID); err != nil {
		respondError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Stats handles GET /api/stats
func (h *TransactionsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	stats, err := h.ledger.Stats(r.Context(), user.ID)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, stats)
}

// ExtractHandler handles the extraction endpoints. Results are candidates
// only; nothing is persisted here.
type ExtractHandler struct {
	ledger *service.Ledger
	log    zerolog.Logger
}

// NewExtractHandler creates a new extraction handler.
func NewExtractHandler(ledger *service.Ledger, log zerolog.Logger) *ExtractHandler {
	return &ExtractHandler{ledger: ledger, log: log}
}

// Text handles POST /api/extract/text
func (h *ExtractHandler) Text(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.ledger.ExtractText(r.Context(), user, req.Text)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// Audio handles POST /api/extract/audio. The body is the raw audio; its
// format travels in Content-Type.
func (h *ExtractHandler) Audio(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	audio, mimeType, ok := readUpload(w, r, "audio/m4a")
	if !ok {
		return
	}

	result, err := h.ledger.ExtractAudio(r.Context(), user, audio, mimeType)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// Image handles POST /api/extract/image. The body is the raw image bytes.
func (h *ExtractHandler) Image(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	image, mimeType, ok := readUpload(w, r, "image/jpeg")
	if !ok {
		return
	}

	result, err := h.ledger.ExtractImage(r.Context(), user, image, mimeType)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// ShortcutHandler handles the two-step unattended ingestion flow.
type ShortcutHandler struct {
	ledger *service.Ledger
	log    zerolog.Logger
}

// NewShortcutHandler creates a new shortcut handler.
func NewShortcutHandler(ledger *service.Ledger, log zerolog.Logger) *ShortcutHandler {
	return &ShortcutHandler{ledger: ledger, log: log}
}

// Upload handles POST /api/shortcut: extract from the image and park the
// result for later confirmation.
func (h *ShortcutHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	image, mimeType, ok := readUpload(w, r, "image/jpeg")
	if !ok {
		return
	}

	result, err := h.ledger.ShortcutUpload(r.Context(), user, image, mimeType)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// Confirm handles GET /api/shortcut/{id}: consume the pending entry and
// persist it. 404 for unknown or foreign ids, 410 for expired ones.
func (h *ShortcutHandler) Confirm(w http.ResponseWriter, r *http.Request, id string) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	tx, err := h.ledger.ShortcutConfirm(r.Context(), user.ID, id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "saved",
		"transaction": tx,
	})
}

// readUpload slurps a bounded raw-body upload, defaulting the MIME type when
// the client sent none.
func readUpload(w http.ResponseWriter, r *http.Request, defaultMIME string) ([]byte, string, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return nil, "", false
	}
	if len(body) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Empty request body")
		return nil, "", false
	}

	mimeType := r.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = defaultMIME
	}
	return body, mimeType, true
}

// respondError maps service errors to HTTP statuses. Upstream diagnostics
// are logged, never leaked.
func respondError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var ve *domain.ValidationError
	var ee *domain.ExternalServiceError

	switch {
	case errors.As(err, &ve):
		middleware.WriteError(w, http.StatusBadRequest, ve.Field+": "+ve.Message)
	case errors.Is(err, domain.ErrUnauthorized):
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, domain.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrExpired):
		middleware.WriteError(w, http.StatusGone, "Expired")
	case errors.As(err, &ee):
		log.Error().Err(err).Str("service", ee.Service).Msg("Upstream dependency failed")
		middleware.WriteError(w, http.StatusBadGateway, ee.Service+": "+ee.Reason)
	default:
		log.Error().Err(err).Msg("Unhandled error")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
