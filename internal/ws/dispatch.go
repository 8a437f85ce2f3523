package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
	"github.com/saturnino-fabrica-de-software/facestream/internal/service"
)

// FaceService is what the session layer needs from service.FaceService.
type FaceService interface {
	Register(ctx context.Context, name, image string) (service.RegistrationResult, error)
	Recognize(ctx context.Context, image string) ([]domain.MatchResult, error)
}

// HandlerFunc handles one inbound event for c.
type HandlerFunc func(ctx context.Context, c *Client, data json.RawMessage)

// Dispatcher routes inbound events through an explicit table.
type Dispatcher struct {
	service  FaceService
	logger   *slog.Logger
	handlers map[EventType]HandlerFunc
	now      func() time.Time
}

func NewDispatcher(svc FaceService, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		service: svc,
		logger:  logger,
		now:     time.Now,
	}
	d.handlers = map[EventType]HandlerFunc{
		EventRegister: d.handleRegister,
		EventFrame:    d.handleFrame,
	}
	return d
}

func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, env Envelope) {
	handler, ok := d.handlers[env.Event]
	if !ok {
		c.Emit(EventError, ErrorPayload{
			Code:    "unknown_event",
			Message: fmt.Sprintf("unknown event %q", env.Event),
		})
		return
	}
	handler(ctx, c, env.Data)
}

func (d *Dispatcher) handleRegister(ctx context.Context, c *Client, data json.RawMessage) {
	var payload RegisterPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.Emit(EventRegistrationResult, RegistrationReply{
			Error:   "validation_failed",
			Message: "register expects {name, image}",
		})
		return
	}
	if strings.TrimSpace(payload.Name) == "" || payload.Image == "" {
		c.Emit(EventRegistrationResult, RegistrationReply{
			Error:   "validation_failed",
			Message: "Name and image are required",
		})
		return
	}

	result, err := d.service.Register(ctx, payload.Name, payload.Image)
	if err != nil {
		code, message := d.classify(c, "registration", err)
		c.Emit(EventRegistrationResult, RegistrationReply{Error: code, Message: message})
		return
	}

	switch result.Status {
	case service.StatusNoFace:
		c.Emit(EventRegistrationResult, RegistrationReply{
			Error:   string(service.StatusNoFace),
			Message: domain.ErrNoFaceDetected.Message,
		})
	case service.StatusMultipleFaces:
		c.Emit(EventRegistrationResult, RegistrationReply{
			Error:   string(service.StatusMultipleFaces),
			Message: domain.ErrMultipleFaces.Message,
		})
	default:
		ts := d.now().UTC()
		c.Emit(EventRegistrationResult, RegistrationReply{
			Success:   true,
			Message:   "Face registered for " + result.Identity.Name,
			Timestamp: &ts,
		})
	}
}

func (d *Dispatcher) handleFrame(ctx context.Context, c *Client, data json.RawMessage) {
	var payload FramePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Image == "" {
		c.Emit(EventRecognitionError, ErrorPayload{
			Code:    "validation_failed",
			Message: "frame expects {image}",
		})
		return
	}

	results, err := d.service.Recognize(ctx, payload.Image)
	if err != nil {
		code, message := d.classify(c, "recognition", err)
		c.Emit(EventRecognitionError, ErrorPayload{Code: code, Message: message})
		return
	}

	c.Emit(EventRecognitionResult, results)
}

// classify maps a service error onto a client-facing code. Only faults on
// our side are logged as errors.
func (d *Dispatcher) classify(c *Client, op string, err error) (string, string) {
	var appErr *domain.AppError
	switch {
	case errors.Is(err, domain.ErrInvalidImage):
		return "invalid_image", domain.ErrInvalidImage.Message
	case errors.Is(err, domain.ErrValidationFailed):
		return "validation_failed", err.Error()
	case errors.Is(err, domain.ErrProviderUnavailable):
		c.logger.Warn(op+" failed, provider unavailable", slog.Any("error", err))
		return "provider_unavailable", domain.ErrProviderUnavailable.Message
	case errors.As(err, &appErr):
		c.logger.Error(op+" failed", slog.String("code", appErr.Code), slog.Any("error", err))
		return "internal_error", appErr.Message
	default:
		c.logger.Error(op+" failed", slog.Any("error", err))
		return "internal_error", domain.ErrInternal.Message
	}
}
