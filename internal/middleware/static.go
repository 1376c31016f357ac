package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#f0f0f0"/><path d="M60 40h80a8 8 0 0 1 8 8v104a8 8 0 0 1-8 8H60a8 8 0 0 1-8-8V48a8 8 0 0 1 8-8zm10 25h60M70 85h60M70 105h40" stroke="#999" stroke-width="6" fill="none"/><text x="100" y="185" text-anchor="middle" font-family="Arial" font-size="14" fill="#666">BOOK</text></svg>`

// StaticFileServer serves uploaded book cover images, falling back to a
// placeholder when the file is missing.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean(r.URL.Path))

		if _, err := os.Stat(path); err == nil {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
