package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/fetchstore/internal/api"
	apiMiddleware "github.com/phrazzld/fetchstore/internal/api/middleware"
)

// setupRouter creates the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(middleware.Recoverer)

	fetchHandler := api.NewFetchHandler(app.fetchService, app.config.API.AwaitTimeout, app.logger)
	submitLimiter := apiMiddleware.NewRateLimiter(app.config.API.SubmitRate, app.config.API.SubmitBurst)

	r.Route("/api", func(r chi.Router) {
		r.With(submitLimiter.Limit).Post("/fetches", fetchHandler.SubmitFetch)
		r.Get("/fetches/{id}", fetchHandler.GetFetch)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
