package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/avoronov/billfold/internal/api/handlers"
	"github.com/avoronov/billfold/internal/api/middleware"
	"github.com/avoronov/billfold/internal/archive"
	"github.com/avoronov/billfold/internal/config"
	"github.com/avoronov/billfold/internal/exchange"
	"github.com/avoronov/billfold/internal/extract"
	"github.com/avoronov/billfold/internal/logger"
	"github.com/avoronov/billfold/internal/pending"
	"github.com/avoronov/billfold/internal/service"
	"github.com/avoronov/billfold/internal/store"
	"github.com/avoronov/billfold/internal/users"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		lg := logger.New("info")
		lg.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(cfg.Server.LogLevel)
	ctx := context.Background()

	// Durable store and the user directory share one SQLite database
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open database")
	}
	defer st.Close()

	directory, err := users.NewSQLDirectory(st.DB())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize user directory")
	}

	seeds := make([]users.SeedUser, 0, len(cfg.Users))
	for _, u := range cfg.Users {
		seeds = append(seeds, users.SeedUser{
			ID:              u.ID,
			Token:           u.Token,
			DefaultCurrency: u.DefaultCurrency,
			Language:        u.Language,
			Tags:            u.Tags,
			Locations:       u.Locations,
		})
	}
	if err := directory.Seed(ctx, seeds); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed users")
	}
	if len(seeds) == 0 {
		log.Warn().Msg("No users configured - every request will be rejected")
	}

	// Extraction adapter
	model, err := extract.NewGeminiClient(ctx, cfg.Extract.Model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create generative model client")
	}

	var transcriber extract.Transcriber
	if cfg.Extract.TranscriberURL != "" {
		transcriber = extract.NewHTTPTranscriber(cfg.Extract.TranscriberURL)
	} else {
		log.Warn().Msg("No transcriber configured - audio extraction will be disabled")
	}
	extractor := extract.New(model, transcriber)

	// Currency conversion
	rateURL := cfg.Exchange.BaseURL
	if cfg.Exchange.APIKey != "" {
		rateURL = strings.TrimSuffix(rateURL, "/") + "/" + cfg.Exchange.APIKey
	}
	converter := exchange.NewConverter(exchange.NewAPIProvider(rateURL))

	// Optional receipt archive
	var receipts service.ReceiptArchive
	if cfg.Archive.Bucket != "" {
		gcsArchive, err := archive.New(ctx, cfg.Archive.Bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create receipt archive")
		}
		defer gcsArchive.Close()
		receipts = gcsArchive
	} else {
		log.Warn().Msg("No GCS bucket configured - receipt archiving disabled")
	}

	pendingCache := pending.New(pending.DefaultTTL)
	ledger := service.NewLedger(st, extractor, converter, pendingCache, receipts, log)

	// Initialize handlers
	transactionsHandler := handlers.NewTransactionsHandler(ledger, log)
	extractHandler := handlers.NewExtractHandler(ledger, log)
	shortcutHandler := handlers.NewShortcutHandler(ledger, log)

	// Create router; everything under /api requires a Bearer token
	api := http.NewServeMux()

	api.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			transactionsHandler.Create(w, r)
		case http.MethodGet:
			transactionsHandler.List(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
		if id == "" || strings.Contains(id, "/") {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		switch r.Method {
		case http.MethodGet:
			transactionsHandler.Get(w, r, id)
		case http.MethodPut:
			transactionsHandler.Update(w, r, id)
		case http.MethodDelete:
			transactionsHandler.Delete(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.Stats(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/extract/text", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			extractHandler.Text(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/extract/audio", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			extractHandler.Audio(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/extract/image", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			extractHandler.Image(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/shortcut", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			shortcutHandler.Upload(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	api.HandleFunc("/api/shortcut/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/shortcut/")
		if id == "" || strings.Contains(id, "/") {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		if r.Method == http.MethodGet {
			shortcutHandler.Confirm(w, r, id)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", middleware.Auth(directory, log)(api))

	// Health check endpoint, outside auth
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
