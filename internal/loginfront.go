package internal

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgellow/tglogin-front/internal/config"
	"github.com/dgellow/tglogin-front/internal/envutil"
	"github.com/dgellow/tglogin-front/internal/log"
	"github.com/dgellow/tglogin-front/internal/server"
	"github.com/dgellow/tglogin-front/internal/session"
	"github.com/dgellow/tglogin-front/internal/storage"
	"github.com/dgellow/tglogin-front/internal/tgauth"
)

const shutdownTimeout = 30 * time.Second

// LoginFront is the complete login service
type LoginFront struct {
	config     config.Config
	handler    http.Handler
	httpServer *server.HTTPServer
	storage    storage.Store
}

// NewLoginFront creates the login service with all dependencies built
func NewLoginFront(ctx context.Context, cfg config.Config) (*LoginFront, error) {
	log.LogInfoWithFields("loginfront", "Building login service", map[string]any{
		"name":          cfg.Server.Name,
		"baseURL":       cfg.Server.BaseURL,
		"sessionFormat": cfg.Session.Format,
		"storage":       cfg.Storage.Kind,
	})

	store, err := SetupStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	verifier := tgauth.NewVerifier(string(cfg.Telegram.BotToken),
		tgauth.WithMaxAge(cfg.Telegram.MaxAuthAge),
		tgauth.WithMaxFutureSkew(cfg.Telegram.MaxFutureSkew),
		tgauth.WithWebAppKeyDerivation(tgauth.KeyDerivation(cfg.Telegram.WebAppKeyDerivation)),
	)

	issuer, err := session.NewIssuer(session.Options{
		Format: session.Format(cfg.Session.Format),
		Secret: []byte(cfg.Session.Secret),
		MaxAge: cfg.Session.MaxAge,
		Secure: envutil.IsProduction(),
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to setup sessions: %w", err)
	}
	if issuer.Format() == session.FormatPlain {
		log.LogWarnWithFields("loginfront", "Session cookies are unsigned; set session.format to hmac or jwt to prevent forgery", nil)
	}

	handler := buildHTTPHandler(cfg, verifier, issuer, store)

	return &LoginFront{
		config:     cfg,
		handler:    handler,
		httpServer: server.NewHTTPServer(handler, cfg.Server.Addr),
		storage:    store,
	}, nil
}

// Handler returns the routed HTTP handler
func (l *LoginFront) Handler() http.Handler {
	return l.handler
}

// Run serves until SIGINT/SIGTERM or a server error, then shuts down
// gracefully.
func (l *LoginFront) Run() error {
	return l.RunContext(context.Background())
}

// RunContext is Run with a parent context; cancelling it triggers shutdown.
func (l *LoginFront) RunContext(parent context.Context) error {
	log.LogInfoWithFields("loginfront", "Starting login service", map[string]any{
		"addr": l.config.Server.Addr,
	})

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := l.httpServer.Start(); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.LogInfoWithFields("loginfront", "Starting graceful shutdown", map[string]any{
			"reason":  context.Cause(gctx).Error(),
			"timeout": shutdownTimeout.String(),
		})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := l.httpServer.Stop(shutdownCtx); err != nil {
			log.LogErrorWithFields("loginfront", "HTTP server shutdown error", map[string]any{
				"error": err.Error(),
			})
			return err
		}
		return nil
	})

	err := g.Wait()

	if cerr := l.storage.Close(); cerr != nil {
		log.LogWarnWithFields("loginfront", "Failed to close storage", map[string]any{
			"error": cerr.Error(),
		})
	}

	log.LogInfoWithFields("loginfront", "Application shutdown complete", nil)
	return err
}

// SetupStorage opens the configured profile store
func SetupStorage(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch storage.Kind(cfg.Kind) {
	case storage.KindFirestore:
		log.LogInfoWithFields("storage", "Using Firestore storage", map[string]any{
			"project":    cfg.GCPProject,
			"database":   cfg.FirestoreDatabase,
			"collection": cfg.FirestoreCollection,
		})
		collection := cfg.FirestoreCollection
		if collection == "" {
			collection = storage.DefaultFirestoreCollection
		}
		return storage.NewFirestoreStorage(ctx, cfg.GCPProject, cfg.FirestoreDatabase, collection)
	case storage.KindSQLite:
		return storage.NewSQLiteStorage(ctx, cfg.SQLitePath)
	case storage.KindMemory, "":
		log.LogInfoWithFields("storage", "Using in-memory storage", map[string]any{})
		return storage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage kind %q", cfg.Kind)
	}
}

// buildHTTPHandler creates the complete HTTP handler with all routing and middleware
func buildHTTPHandler(cfg config.Config, verifier *tgauth.Verifier, issuer *session.Issuer, store storage.Store) http.Handler {
	mux := http.NewServeMux()

	authHandlers := server.NewAuthHandlers(verifier, issuer, store, server.AuthHandlersConfig{
		BaseURL:      cfg.Server.BaseURL,
		BotUsername:  cfg.Telegram.BotUsername,
		RedirectPath: cfg.Server.RedirectPath,
	})

	// Innermost first: recover wraps CORS and the handler, and sits inside
	// the logger so the request id and the final status are both available.
	authMiddleware := []server.MiddlewareFunc{
		server.NewCORSMiddleware(cfg.Server.AllowedOrigins),
		server.NewRecoverMiddleware("auth"),
		server.NewLoggerMiddleware("auth"),
	}
	route := func(path string, h http.HandlerFunc) {
		mux.Handle(path, server.ChainMiddleware(h, authMiddleware...))
	}

	mux.Handle("/health", server.NewHealthHandler())
	route(server.TelegramCallbackPath, authHandlers.TelegramCallbackHandler)
	route(server.WebAppPath, authHandlers.WebAppHandler)
	route(server.SessionPath, authHandlers.SessionHandler)
	route(server.LogoutPath, authHandlers.LogoutHandler)
	route(server.ConfigPath, authHandlers.ConfigHandler)

	return mux
}
