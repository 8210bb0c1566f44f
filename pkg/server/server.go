// Package server exposes a gateway.Pool over HTTP.
package server

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/pario-ai/narrator/pkg/gateway"
	"github.com/pario-ai/narrator/pkg/models"
)

// Server is the narrator HTTP API.
type Server struct {
	app  *fiber.App
	pool *gateway.Pool
}

// New creates a Server with all routes registered.
func New(pool *gateway.Pool) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "narrator",
		DisableStartupMessage: true,
	})
	s := &Server{app: app, pool: pool}

	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/health", s.handleHealth)

	v1 := app.Group("/v1")
	v1.Post("/respond", s.handleRespond)
	v1.Get("/status", s.handleStatusAll)
	v1.Get("/status/:endpoint", s.handleStatus)
	return s
}

// App returns the underlying fiber app, for tests.
func (s *Server) App() *fiber.App { return s.app }

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("narrator listening on %s", addr)
		errCh <- s.app.Listen(addr)
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.app.ShutdownWithContext(shutCtx)
	case err := <-errCh:
		return err
	}
}

// RespondRequest is the body of POST /v1/respond.
type RespondRequest struct {
	Endpoint  string            `json:"endpoint"`
	SessionID string            `json:"session_id"`
	Input     string            `json:"input"`
	Context   models.RawContext `json:"context"`
}

// RespondResponse is an envelope with its latency in milliseconds.
type RespondResponse struct {
	models.Envelope
	LatencyMs int64 `json:"latency_ms"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	statuses := s.pool.Statuses()
	overall := models.Healthy
	for _, st := range statuses {
		if st.Health != models.Healthy {
			overall = models.Unhealthy
		}
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":    "ok",
		"upstreams": overall,
	})
}

func (s *Server) handleRespond(c *fiber.Ctx) error {
	var req RespondRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.SessionID == "" {
		req.SessionID = req.Context.SessionID
	}

	client, err := s.pool.Resolve(req.Endpoint)
	if err != nil {
		return endpointError(c, err)
	}

	env := client.Respond(c.UserContext(), req.Context, req.Input, req.SessionID)
	c.Set("X-Narrator-Source", string(env.Source))
	c.Set("X-Narrator-Request-Id", env.RequestID)
	return c.Status(fiber.StatusOK).JSON(RespondResponse{Envelope: env, LatencyMs: env.LatencyMs()})
}

func (s *Server) handleStatusAll(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"endpoints": s.pool.Statuses()})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	client, err := s.pool.Resolve(c.Params("endpoint"))
	if err != nil {
		return endpointError(c, err)
	}
	return c.JSON(client.Status())
}

func endpointError(c *fiber.Ctx, err error) error {
	if errors.Is(err, gateway.ErrUnknownEndpoint) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
