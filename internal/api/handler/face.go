package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
	"github.com/saturnino-fabrica-de-software/facestream/internal/service"
)

// FaceService interface for the service
type FaceService interface {
	Register(ctx context.Context, name, image string) (service.RegistrationResult, error)
	Encode(ctx context.Context, image string) (service.EncodeResult, error)
	Recognize(ctx context.Context, image string) ([]domain.MatchResult, error)
	Identities() []domain.IdentitySummary
}

// FaceHandler handles face-related requests
type FaceHandler struct {
	service FaceService
	logger  *slog.Logger
}

func NewFaceHandler(service FaceService, logger *slog.Logger) *FaceHandler {
	return &FaceHandler{
		service: service,
		logger:  logger,
	}
}

// ImageRequest is the body of POST /encode and POST /v1/recognize.
type ImageRequest struct {
	Image string `json:"image"`
}

// RegisterRequest is the body of POST /v1/identities.
type RegisterRequest struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

type EncodeResponse struct {
	Success  bool      `json:"success"`
	Encoding []float64 `json:"encoding"`
}

// EncodeErrorResponse keeps the flat {error} shape clients of /encode expect.
type EncodeErrorResponse struct {
	Error string `json:"error"`
}

type RegisterResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Identity domain.Identity `json:"identity"`
}

// Encode POST /encode - single-shot embedding extraction
func (h *FaceHandler) Encode(c *fiber.Ctx) error {
	var req ImageRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Image) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(EncodeErrorResponse{Error: "missing_image"})
	}

	result, err := h.service.Encode(c.Context(), req.Image)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidImage) {
			return c.Status(fiber.StatusBadRequest).JSON(EncodeErrorResponse{Error: "invalid_image"})
		}
		h.logger.Error("encode failed", slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(EncodeErrorResponse{Error: encodeFailure(err)})
	}

	switch result.Status {
	case service.StatusNoFace, service.StatusMultipleFaces:
		return c.Status(fiber.StatusBadRequest).JSON(EncodeErrorResponse{Error: string(result.Status)})
	}

	return c.JSON(EncodeResponse{
		Success:  true,
		Encoding: result.Embedding,
	})
}

func encodeFailure(err error) string {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return domain.ErrInternal.Message
}

// Register POST /v1/identities - enrol a face under a name
func (h *FaceHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}
	if strings.TrimSpace(req.Name) == "" || req.Image == "" {
		return domain.ErrValidationFailed.WithError(errors.New("name and image are required"))
	}

	result, err := h.service.Register(c.Context(), req.Name, req.Image)
	if err != nil {
		return err
	}

	switch result.Status {
	case service.StatusNoFace:
		return domain.ErrNoFaceDetected
	case service.StatusMultipleFaces:
		return domain.ErrMultipleFaces
	}

	return c.Status(fiber.StatusCreated).JSON(RegisterResponse{
		Success:  true,
		Message:  "Face registered for " + result.Identity.Name,
		Identity: result.Identity,
	})
}

// Recognize POST /v1/recognize - one frame, one result per detected face
func (h *FaceHandler) Recognize(c *fiber.Ctx) error {
	var req ImageRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}
	if strings.TrimSpace(req.Image) == "" {
		return domain.ErrValidationFailed.WithError(errors.New("image is required"))
	}

	results, err := h.service.Recognize(c.Context(), req.Image)
	if err != nil {
		return err
	}
	return c.JSON(results)
}

// ListIdentities GET /v1/identities - registered names, newest first
func (h *FaceHandler) ListIdentities(c *fiber.Ctx) error {
	return c.JSON(h.service.Identities())
}
