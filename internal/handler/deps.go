package handler

import (
	"chatroom/internal/app/chat"
	"chatroom/internal/configs"
)

// AppDeps bundles what the HTTP layer needs from the rest of the application.
type AppDeps struct {
	Manager *chat.Manager
	Config  *configs.AppConfig
}
