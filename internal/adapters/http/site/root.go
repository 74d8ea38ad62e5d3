// Package site serves the embedded upload page and report viewer.
package site

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Register attaches the embedded site at / on r.
func Register(r chi.Router) {
	if r == nil {
		panic("router is nil")
	}
	r.Get("/", NewRootHandler().HandleRoot)
	r.Get("/static/*", http.StripPrefix("/static/", http.FileServer(FS())).ServeHTTP)
}

// RootHandler serves the upload page.
type RootHandler struct {
	files http.Handler
}

// NewRootHandler creates a new root handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{files: http.FileServer(FS())}
}

// HandleRoot handles GET / with the index page.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	h.files.ServeHTTP(w, r)
}
