// Package web holds the dashboard pages served by the monitor.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed dist
var dist embed.FS

// Pages returns the dashboard pages built into the binary.
func Pages() fs.FS {
	pages, err := fs.Sub(dist, "dist")
	if err != nil {
		panic(err)
	}

	return pages
}

// Handler serves the dashboard. If dir is empty, the built-in pages are
// served. Otherwise the pages are read from dir on every request and are
// never cached by the browser, so they can be edited while a simulation runs.
func Handler(dir string) http.Handler {
	if dir == "" {
		return http.FileServer(http.FS(Pages()))
	}

	files := http.FileServer(http.Dir(dir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		files.ServeHTTP(w, r)
	})
}
