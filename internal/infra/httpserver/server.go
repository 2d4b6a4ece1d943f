package httpserver

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Server is the ops HTTP surface: liveness and a readiness probe that
// checks the remote store. Deployment platforms expect a listening port
// even though all user traffic arrives through the chat platform.
type Server struct {
	app  *fiber.App
	db   *sql.DB
	port string
	log  *logrus.Entry
}

func New(db *sql.DB, port string, log *logrus.Entry) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "attendance-bot",
		DisableStartupMessage: true,
	})

	s := &Server{app: app, db: db, port: port, log: log}

	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	return s
}

// Start listens in the background; listener errors are logged, not fatal,
// because the bot can keep serving chat traffic without the ops port.
func (s *Server) Start() {
	go func() {
		if err := s.app.Listen(":" + s.port); err != nil {
			s.log.WithError(err).Error("Ops HTTP server stopped")
		}
	}()
	s.log.WithField("port", s.port).Info("Ops HTTP server listening")
}

func (s *Server) Stop() {
	if err := s.app.Shutdown(); err != nil {
		s.log.WithError(err).Warn("Ops HTTP server shutdown failed")
	}
}
