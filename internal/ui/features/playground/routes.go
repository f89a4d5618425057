// Package playground provides the live macro expansion editor.
package playground

import (
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
)

// SetupRoutes configures routes for the playground feature.
func SetupRoutes(
	router chi.Router,
	registry *Registry,
	sessionStore sessions.Store,
	hl *Highlighter,
	isDev bool,
) error {
	handlers := NewHandlers(registry, sessionStore, hl, isDev)

	router.Get("/", handlers.Page)
	router.Post("/changes", handlers.Changes)
	router.Post("/tabs/{tab}", handlers.Tab)
	router.Get("/updates", handlers.Updates)
	router.Get("/api/expand", handlers.Expand)
	router.Post("/api/expand", handlers.Expand)

	return nil
}
