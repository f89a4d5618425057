// Package ui provides the web playground for Macroscope.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/macroscope/internal/ui/features/playground"
	"github.com/leapstack-labs/macroscope/internal/ui/router"
)

// Server is the main UI server.
type Server struct {
	registry     *playground.Registry
	sessionStore *sessions.CookieStore
	highlighter  *playground.Highlighter
	port         int
	watchFile    string
	isDev        bool
	logger       *slog.Logger
}

// Config holds configuration for the UI server.
type Config struct {
	Playground    playground.Options
	Port          int
	SessionSecret string
	Theme         string
	IsDev         bool
	Logger        *slog.Logger

	// WatchFile, when set, is re-read on every write and pushed into
	// every workspace.
	WatchFile string
}

// NewServer creates a new UI server instance.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Playground.Logger == nil {
		cfg.Playground.Logger = cfg.Logger
	}

	if cfg.WatchFile != "" {
		data, err := os.ReadFile(cfg.WatchFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", cfg.WatchFile, err)
		}
		cfg.Playground.Source = string(data)
	}

	registry, err := playground.NewRegistry(cfg.Playground)
	if err != nil {
		return nil, err
	}

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400 * 30) // 30 days
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	return &Server{
		registry:     registry,
		sessionStore: sessionStore,
		highlighter:  playground.NewHighlighter(cfg.Theme),
		port:         cfg.Port,
		watchFile:    cfg.WatchFile,
		isDev:        cfg.IsDev,
		logger:       cfg.Logger,
	}, nil
}

// Handler builds the router with middleware and every route.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	if err := router.SetupRoutes(r, s.registry, s.sessionStore, s.highlighter, s.isDev); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}
	return r, nil
}

// Serve starts the UI server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting UI server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	handler, err := s.Handler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Evict idle workspaces; closes them all on shutdown.
	eg.Go(func() error {
		return s.registry.Run(egctx)
	})

	// Start file watcher if enabled
	if s.watchFile != "" {
		eg.Go(func() error {
			return s.watchSource(egctx)
		})
	}

	// Start HTTP server
	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down UI server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Registry returns the server's workspace registry.
func (s *Server) Registry() *playground.Registry {
	return s.registry
}

// watchSource reloads the watched file into every workspace when it changes.
// The parent directory is watched so editors that replace the file on save
// are still seen.
func (s *Server) watchSource(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	target, err := filepath.Abs(s.watchFile)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		s.logger.Error("failed to watch source file", "file", target, "error", err)
		// Don't fail - continue without watching
		<-ctx.Done()
		return nil
	}

	// Debounce timer
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if name, _ := filepath.Abs(event.Name); name != target {
				continue
			}

			// Debounce
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				data, err := os.ReadFile(target)
				if err != nil {
					s.logger.Error("failed to reload source file", "file", target, "error", err)
					return
				}
				s.logger.Debug("source file changed", "file", target)
				s.registry.SetSource(string(data))
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}
