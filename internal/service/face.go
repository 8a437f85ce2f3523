package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
	"github.com/saturnino-fabrica-de-software/facestream/internal/imagedata"
	"github.com/saturnino-fabrica-de-software/facestream/internal/matcher"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider"
	"github.com/saturnino-fabrica-de-software/facestream/internal/registry"
)

// persistTimeout bounds a write-through save so a slow store cannot hold a
// connection's worker.
const persistTimeout = 5 * time.Second

// DetectionStatus is the routine outcome of a single-face operation.
type DetectionStatus string

const (
	StatusOK            DetectionStatus = "ok"
	StatusNoFace        DetectionStatus = "no_face"
	StatusMultipleFaces DetectionStatus = "multiple_faces"
)

// RegistrationResult carries the outcome of Register. Identity and Templates
// are set only when Status is StatusOK.
type RegistrationResult struct {
	Status    DetectionStatus
	Identity  domain.Identity
	Templates int
	Version   uint64
}

type EncodeResult struct {
	Status    DetectionStatus
	Embedding []float64
}

// RegistryLoader fills an empty registry from the configured source.
type RegistryLoader interface {
	EnsureLoaded(ctx context.Context)
}

// IdentityStore persists registrations made on this instance.
type IdentityStore interface {
	SaveIdentity(ctx context.Context, identity domain.Identity) error
}

// ChangePublisher tells other instances that the shared store changed.
type ChangePublisher interface {
	Publish(ctx context.Context, version uint64) error
}

type FaceService struct {
	embedder provider.Embedder
	registry *registry.Registry
	matcher  *matcher.Matcher
	logger   *slog.Logger

	loader    RegistryLoader
	store     IdentityStore
	publisher ChangePublisher
}

func NewFaceService(
	embedder provider.Embedder,
	reg *registry.Registry,
	m *matcher.Matcher,
	logger *slog.Logger,
) *FaceService {
	return &FaceService{
		embedder: embedder,
		registry: reg,
		matcher:  m,
		logger:   logger,
	}
}

// WithLoader enables lazy loading on the recognition path.
func (s *FaceService) WithLoader(loader RegistryLoader) *FaceService {
	s.loader = loader
	return s
}

// WithStore enables write-through persistence of registrations.
func (s *FaceService) WithStore(store IdentityStore, publisher ChangePublisher) *FaceService {
	s.store = store
	s.publisher = publisher
	return s
}

// Register enrols name from an encoded image. Exactly one detected face
// produces a new template; zero or several faces are reported through
// Status and leave the registry untouched.
func (s *FaceService) Register(ctx context.Context, name, image string) (RegistrationResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return RegistrationResult{}, domain.ErrValidationFailed.WithError(registry.ErrEmptyName)
	}

	status, detection, err := s.single(ctx, image)
	if err != nil {
		return RegistrationResult{}, err
	}
	if status != StatusOK {
		return RegistrationResult{Status: status}, nil
	}

	outcome, err := s.registry.Register(name, detection.Embedding)
	if err != nil {
		return RegistrationResult{}, err
	}

	s.logger.Info("identity registered",
		slog.String("name", outcome.Identity.Name),
		slog.Int("templates", outcome.Templates),
		slog.Uint64("version", outcome.Version),
	)

	s.persist(ctx, outcome)

	return RegistrationResult{
		Status:    StatusOK,
		Identity:  outcome.Identity,
		Templates: outcome.Templates,
		Version:   outcome.Version,
	}, nil
}

// Recognize matches every face in the image against the current snapshot.
// An image without faces yields an empty slice.
func (s *FaceService) Recognize(ctx context.Context, image string) ([]domain.MatchResult, error) {
	img, err := imagedata.Decode(image)
	if err != nil {
		return nil, err
	}

	if s.loader != nil {
		s.loader.EnsureLoaded(ctx)
	}

	detections, err := s.embedder.Extract(ctx, img.Data)
	if err != nil {
		return nil, err
	}

	snap := s.registry.Snapshot()
	results := make([]domain.MatchResult, 0, len(detections))
	for _, d := range detections {
		m := s.matcher.Match(d.Embedding, snap)
		results = append(results, domain.MatchResult{
			Box:        d.Box.ToBox(),
			Name:       m.Name,
			Distance:   m.Distance,
			Confidence: m.Confidence,
		})
	}

	return results, nil
}

// Encode returns the embedding of the single face in the image.
func (s *FaceService) Encode(ctx context.Context, image string) (EncodeResult, error) {
	status, detection, err := s.single(ctx, image)
	if err != nil {
		return EncodeResult{}, err
	}
	if status != StatusOK {
		return EncodeResult{Status: status}, nil
	}
	return EncodeResult{Status: StatusOK, Embedding: detection.Embedding}, nil
}

// Identities lists registered names, newest first.
func (s *FaceService) Identities() []domain.IdentitySummary {
	return s.registry.Snapshot().Summaries()
}

func (s *FaceService) single(ctx context.Context, image string) (DetectionStatus, provider.Detection, error) {
	img, err := imagedata.Decode(image)
	if err != nil {
		return "", provider.Detection{}, err
	}

	detections, err := s.embedder.Extract(ctx, img.Data)
	if err != nil {
		return "", provider.Detection{}, err
	}

	switch len(detections) {
	case 0:
		return StatusNoFace, provider.Detection{}, nil
	case 1:
		return StatusOK, detections[0], nil
	default:
		return StatusMultipleFaces, provider.Detection{}, nil
	}
}

// persist saves a registration to the backing store. The in-memory registry
// already owns the identity, so failures are logged and swallowed.
func (s *FaceService) persist(ctx context.Context, outcome registry.Outcome) {
	if s.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.store.SaveIdentity(ctx, outcome.Identity); err != nil {
		s.logger.Warn("failed to persist registration",
			slog.String("name", outcome.Identity.Name),
			slog.Any("error", err),
		)
		return
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, outcome.Version); err != nil {
		s.logger.Warn("failed to publish registry change", slog.Any("error", fmt.Errorf("version %d: %w", outcome.Version, err)))
	}
}
