/*
Package handler provides the HTTP handler function for WebSocket connection upgrading.

This file contains HandleWebSocket, which upgrades the HTTP connection and hands it to the
chat manager for the lifetime of the session.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"chatroom/internal/app/chat"
	"chatroom/internal/pkg/logx"
	"chatroom/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// The handler blocks until the session ends.
func HandleWebSocket(manager *chat.Manager, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !manager.Accepting() {
			logx.Info("WebSocket connection rejected: chat is shutting down.")
			resp.RespondError(w, r, chat.ErrChatUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// the upgrader has already written an HTTP error response
			logx.Warn("Failed to upgrade connection to WebSocket", "error", err.Error())
			return
		}

		remoteIP := logx.AnonymizeIP(r.RemoteAddr)
		logx.Info("WebSocket connection established", "remote_ip", remoteIP)

		if err := manager.Serve(conn, r.RemoteAddr); err != nil {
			logx.Info("WebSocket session refused", "remote_ip", remoteIP, "error", err.Error())
			return
		}

		logx.Debug("WebSocket connection finished", "remote_ip", remoteIP)
	}
}
