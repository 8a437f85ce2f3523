package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
	"github.com/saturnino-fabrica-de-software/facestream/internal/registrysync"
)

type RegistrySyncer interface {
	Sync(ctx context.Context) (registrysync.Result, error)
}

type RegistryHandler struct {
	syncer RegistrySyncer
}

// NewRegistryHandler accepts a nil syncer when no source is configured.
func NewRegistryHandler(syncer RegistrySyncer) *RegistryHandler {
	return &RegistryHandler{syncer: syncer}
}

// Sync POST /v1/registry/sync - pull the identity list now
func (h *RegistryHandler) Sync(c *fiber.Ctx) error {
	if h.syncer == nil {
		return domain.ErrSyncNotConfigured
	}

	result, err := h.syncer.Sync(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(result)
}
