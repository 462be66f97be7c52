// Entry point for the bannerhound HTTP service: chi router, optional
// Basic Auth, browser manager, pattern store, maintenance scheduler,
// optional MCP over stdio.
package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/ovrld/bannerhound/adaptive"
	"github.com/ovrld/bannerhound/browser"
	"github.com/ovrld/bannerhound/config"
	"github.com/ovrld/bannerhound/dbopen"
	"github.com/ovrld/bannerhound/events"
	"github.com/ovrld/bannerhound/extractor"
	"github.com/ovrld/bannerhound/maintain"
	"github.com/ovrld/bannerhound/pattern"
	"github.com/ovrld/bannerhound/ratelimit"
	"github.com/ovrld/bannerhound/vocab"
)

func main() {
	port := env("PORT", "8086")
	configPath := env("CONFIG", "")
	mcpTransport := env("MCP_TRANSPORT", "")
	logLevel := env("LOG_LEVEL", "info")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}

	// Optional Basic Auth: AUTH_PASSWORD_HASH is a bcrypt hash, or
	// AUTH_PASSWORD a plaintext hashed at startup. Unset means open.
	authHash := os.Getenv("AUTH_PASSWORD_HASH")
	if authHash == "" {
		if pw := os.Getenv("AUTH_PASSWORD"); pw != "" {
			h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
			if err != nil {
				slog.Error("hash AUTH_PASSWORD", "error", err)
				os.Exit(1)
			}
			authHash = string(h)
		}
	}
	authUser := env("AUTH_USER", "bannerhound")

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Vocabulary tables, embedded defaults unless overridden.
	tables, err := vocab.Load(cfg.Vocab)
	if err != nil {
		slog.Error("vocab", "error", err)
		os.Exit(1)
	}

	// Event DB.
	eventDB, err := dbopen.Open(cfg.Events.Path, dbopen.WithMkdirAll(), dbopen.WithSchema(events.Schema))
	if err != nil {
		slog.Error("event db", "error", err)
		os.Exit(1)
	}
	defer eventDB.Close()
	eventLog := events.NewLogger(eventDB)

	// Pattern store.
	store := pattern.NewStore(pattern.Config{
		Path:          cfg.Store.Path,
		AutosaveEvery: cfg.Store.AutosaveEvery,
		Cleanup: pattern.CleanupPolicy{
			MaxRate:     cfg.Store.MaxRate,
			MinAttempts: cfg.Store.MinAttempts,
			Retention:   cfg.Store.Retention,
		},
		Vocab:  tables,
		Logger: logger,
	})
	defer func() {
		if err := store.Persist(); err != nil {
			slog.Warn("final persist", "error", err)
		}
	}()

	provider := adaptive.NewProvider(store, adaptive.Config{
		Profile: adaptive.ProfileByName(cfg.Environment),
		TTL:     cfg.Adaptive.TTL,
		Limit:   cfg.Adaptive.Limit,
		Enabled: *cfg.Adaptive.Enabled,
		Vocab:   tables,
		Logger:  logger,
	})

	limiter := ratelimit.New(cfg.RateLimit.Max, cfg.RateLimit.Window)

	// Browser manager.
	mgr := browser.NewManager(browser.Config{
		RemoteURL:       cfg.Browser.Remote,
		MemoryLimit:     cfg.Browser.MemoryLimit,
		RecycleInterval: cfg.Browser.RecycleInterval,
		Headless:        cfg.Browser.Headless,
		Logger:          logger,
	})
	if err := mgr.Start(ctx); err != nil {
		slog.Error("browser start", "error", err)
		os.Exit(1)
	}
	defer mgr.Close()

	svc, err := extractor.New(extractor.Config{
		Store:    store,
		Provider: provider,
		Limiter:  limiter,
		Events:   eventLog,
		Browser:  mgr,
		Vocab:    tables,
		Session: browser.SessionConfig{
			NavTimeout: cfg.Browser.NavTimeout,
			QueueDepth: cfg.Browser.QueueDepth,
			Logger:     logger,
		},
		ObserveWindow:  cfg.Cascade.ObserveWindow,
		IdleCutoff:     cfg.Cascade.IdleCutoff,
		RequestTimeout: cfg.Cascade.RequestTimeout,
		MaxRetries:     cfg.Cascade.MaxRetries,
		Logger:         logger,
	})
	if err != nil {
		slog.Error("extractor service", "error", err)
		os.Exit(1)
	}

	// Maintenance scheduler.
	sched := maintain.New(store, eventLog, maintain.Config{
		Interval:       cfg.Maintain.Interval,
		EventRetention: cfg.Events.Retention,
	}, logger)
	go sched.Run(ctx)

	// Optional MCP over stdio.
	if mcpTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "bannerhound",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("MCP stdio", "error", err)
			}
		}()
	}

	// Router.
	r := chi.NewRouter()
	r.Use(securityHeaders)
	if authHash != "" {
		r.Use(basicAuth(authUser, authHash))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})
	r.Mount("/api", svc.Routes())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// --- Middleware ---

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// basicAuth checks credentials against a bcrypt hash. /health stays open
// for probes.
func basicAuth(user, hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			u, p, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
				bcrypt.CompareHashAndPassword([]byte(hash), []byte(p)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="bannerhound"`)
				writeJSON(w, 401, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Helpers ---

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
