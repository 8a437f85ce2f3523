package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/facestream/internal/provider"
	"github.com/saturnino-fabrica-de-software/facestream/internal/registry"
)

const readyProbeTimeout = 2 * time.Second

type SnapshotSource interface {
	Snapshot() *registry.Snapshot
}

type ConnectionCounter interface {
	Count() int
}

type HealthHandler struct {
	registry    SnapshotSource
	connections ConnectionCounter
	// checker is nil for in-process embedders.
	checker provider.HealthChecker
}

func NewHealthHandler(reg SnapshotSource, connections ConnectionCounter, checker provider.HealthChecker) *HealthHandler {
	return &HealthHandler{
		registry:    reg,
		connections: connections,
		checker:     checker,
	}
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type ReadyResponse struct {
	Status          string `json:"status"`
	RegistryVersion uint64 `json:"registry_version"`
	Identities      int    `json:"identities"`
	Connections     int    `json:"connections"`
	Provider        string `json:"provider"`
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "ok",
		Version: "0.1.0",
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	snap := h.registry.Snapshot()
	resp := ReadyResponse{
		Status:          "ready",
		RegistryVersion: snap.Version(),
		Identities:      snap.Len(),
		Connections:     h.connections.Count(),
		Provider:        "ok",
	}

	if h.checker != nil {
		ctx, cancel := context.WithTimeout(c.Context(), readyProbeTimeout)
		defer cancel()

		if err := h.checker.Ping(ctx); err != nil {
			resp.Status = "unavailable"
			resp.Provider = "unreachable"
			return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
		}
	}

	return c.JSON(resp)
}
