/*
Package handler provides the HTTP handlers and routing setup for the chat server.

This file defines the main Router, applying logging, CORS and recovery middleware before
delegating to the health, static asset and WebSocket handlers.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"chatroom/internal/pkg/errs"
	"chatroom/internal/pkg/logx"
	"chatroom/internal/pkg/resp"
)

const serviceName = "Chat Room Server"

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It configures CORS and the WebSocket origin policy from the AppConfig and applies global middleware.
func Router(deps *AppDeps) http.Handler {
	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				// non-browser clients send no Origin header
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
		Error: upgradeError,
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{},
		MaxAge:         300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", HandleHealth(deps))

	if deps.Config.StaticDir != "" {
		r.Get("/", HandleStaticFile(deps.Config.StaticDir, "index.html"))
		r.Get("/style.css", HandleStaticFile(deps.Config.StaticDir, "style.css"))
		r.Get("/client.js", HandleStaticFile(deps.Config.StaticDir, "client.js"))
	}

	r.Get("/ws", HandleWebSocket(deps.Manager, wsUpgrader))

	return r
}

// upgradeError writes failed handshakes as JSON envelopes where an error code exists.
func upgradeError(w http.ResponseWriter, r *http.Request, status int, reason error) {
	switch status {
	case http.StatusForbidden:
		resp.RespondError(w, r, errs.NewError(errs.ErrOriginNotAllowed))
	case http.StatusBadRequest:
		logx.Debug("WebSocket handshake rejected", "reason", reason.Error())
		resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
	default:
		http.Error(w, http.StatusText(status), status)
	}
}

// HandleHealth reports liveness together with the room's online and connection counts.
func HandleHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logx.Debug("Health check endpoint hit")

		stats := deps.Manager.Stats()
		resp.RespondSuccess(w, r, map[string]any{
			"status":      "ok",
			"service":     serviceName,
			"online":      stats.Online,
			"sessions":    stats.Sessions,
			"subscribers": stats.Subscribers,
		})
	}
}
