package server

import (
	"embed"
	"net/http"
)

const (
	pageIndex       = "web/index.html"
	pageDemo        = "web/demo.html"
	contentTypeHTML = "text/html; charset=utf-8"
	logFmtPage      = "Failed to serve page %s: %v"
)

//go:embed web/*.html
var pages embed.FS

func (s *Server) handlePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		page, err := pages.ReadFile(name)
		if err != nil {
			s.log.Error(logFmtPage, name, err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

			return
		}

		w.Header().Set(headerContentType, contentTypeHTML)

		_, writeErr := w.Write(page)
		if writeErr != nil {
			s.log.Warn(logFmtPage, name, writeErr)
		}
	}
}
