package handler

import (
	"net/http"
	"path/filepath"
)

// HandleStaticFile serves one named asset from dir.
func HandleStaticFile(dir, name string) http.HandlerFunc {
	path := filepath.Join(dir, name)

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, path)
	}
}
