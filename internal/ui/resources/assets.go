// Package resources serves the playground's static assets.
package resources

import (
	"io/fs"
	"net/http"
)

// Prefix is the URL path static assets are mounted under.
const Prefix = "/static/"

// StaticDirectoryPath is the path to static assets from the project root.
const StaticDirectoryPath = "internal/ui/resources/static"

// StaticPath returns the URL path for a static asset.
func StaticPath(name string) string {
	return Prefix + name
}

func serve(fsys fs.FS, cacheControl string) http.Handler {
	files := http.StripPrefix(Prefix, http.FileServer(http.FS(fsys)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", cacheControl)
		files.ServeHTTP(w, r)
	})
}
