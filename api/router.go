// Package api exposes session workflows over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/geouploader/geosheet/session"
)

// GetRouter initialises a new http router and applies all routes
func GetRouter(svc *session.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	return applyRoutes(r, &handler{svc: svc})
}

func applyRoutes(r chi.Router, h *handler) chi.Router {
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.listSessions)
		r.Post("/", h.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Get("/metadata", h.getMetadata)
			r.Put("/metadata", h.saveMetadata)
			r.Get("/dropdowns", h.getDropdowns)
			r.Post("/resize", h.resize)
			r.Put("/samples/width", h.resizeSampleColumns)
			r.Post("/checksums", h.fillChecksums)
			r.Get("/validate", h.validate)
			r.Get("/describe", h.describe)
		})
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}
