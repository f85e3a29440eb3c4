package handlers

import (
	_ "embed"
	"net/http"
)

// PlaceholderPath: путь встроенной заглушки превью.
const PlaceholderPath = "/placeholder-thumb.svg"

//go:embed assets/placeholder-thumb.svg
var placeholderSVG []byte

// ServePlaceholder: GET /placeholder-thumb.svg.
func ServePlaceholder(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(placeholderSVG)
}
