package server

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crashcore/internal/gateway"
)

// RegisterFiberRoutes mirrors the teacher's own RegisterFiberRoutes:
// CORS, /health, and a WebSocket route — /ws replaces the teacher's
// REST bet/cashout/balance endpoints entirely, since spec.md §6
// carries every round operation over the socket instead.
func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.FrontendURL,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Accept,Authorization,Content-Type",
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	s.App.Get("/ws", websocket.New(gateway.Handler(s.hub, s.dispatcher, s.validator, s.log)))
}

// healthHandler reports database/cache health plus the live connected
// client count, the same shape the teacher's healthHandler returns.
func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"database": s.db.Health(),
		"cache":    s.rdb.Health(),
		"game": fiber.Map{
			"status":            "running",
			"connected_clients": s.hub.ClientCount(),
		},
	})
}
