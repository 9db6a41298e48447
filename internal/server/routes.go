package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/kanban/internal/api/v1"
	"github.com/gosuda/kanban/internal/api/ws"
	"github.com/gosuda/kanban/internal/auth"
	"github.com/gosuda/kanban/internal/board"
)

func registerAuthRoutes(api huma.API, authSvc *auth.Service) {
	v1.RegisterAuthRoutes(api, authSvc)
}

func registerAPIRoutes(api huma.API, boards *board.Service) {
	v1.RegisterBoardRoutes(api, boards)
	v1.RegisterListRoutes(api, boards)
	v1.RegisterTaskRoutes(api, boards)
}

func registerWSRoutes(r chi.Router, handler *ws.Handler) {
	r.Get("/ws", handler.ServeHTTP)
}
