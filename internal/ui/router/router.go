// Package router sets up HTTP routes for the UI server.
package router

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	playgroundFeature "github.com/leapstack-labs/macroscope/internal/ui/features/playground"
	"github.com/leapstack-labs/macroscope/internal/ui/resources"
)

// SetupRoutes configures all routes for the UI server.
func SetupRoutes(
	router chi.Router,
	registry *playgroundFeature.Registry,
	sessionStore sessions.Store,
	hl *playgroundFeature.Highlighter,
	isDev bool,
) error {
	if isDev {
		setupReload(router)
	}

	router.Handle(resources.Prefix+"*", resources.Handler())

	return playgroundFeature.SetupRoutes(router, registry, sessionStore, hl, isDev)
}

// setupReload lets a dev watcher refresh open pages: GET /hotreload
// wakes one browser parked on GET /reload. The first /reload after a
// server restart reloads immediately.
func setupReload(router chi.Router) {
	wake := make(chan struct{}, 1)
	var restarted sync.Once

	router.Get("/reload", func(w http.ResponseWriter, r *http.Request) {
		sse := datastar.NewSSE(w, r)
		reload := func() { _ = sse.ExecuteScript("window.location.reload()") }
		restarted.Do(reload)
		select {
		case <-wake:
			reload()
		case <-r.Context().Done():
		}
	})

	router.Get("/hotreload", func(w http.ResponseWriter, _ *http.Request) {
		select {
		case wake <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
