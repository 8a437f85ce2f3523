// Package registrysync keeps the in-memory registry in step with an
// external registry source.
package registrysync

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
	"github.com/saturnino-fabrica-de-software/facestream/internal/registry"
)

// DefaultLazyRetry bounds how often an empty registry triggers a fetch from
// the recognition path.
const DefaultLazyRetry = 30 * time.Second

// Source yields the authoritative identity list.
type Source interface {
	FetchIdentities(ctx context.Context) ([]domain.Identity, error)
}

// Result describes one sync attempt.
type Result struct {
	Success  bool   `json:"success"`
	Fetched  int    `json:"fetched"`
	Accepted int    `json:"accepted"`
	Version  uint64 `json:"version"`
}

type Synchronizer struct {
	registry  *registry.Registry
	source    Source
	logger    *slog.Logger
	timeout   time.Duration
	lazyRetry time.Duration

	group       singleflight.Group
	lastAttempt atomic.Int64
	now         func() time.Time
}

func NewSynchronizer(reg *registry.Registry, source Source, logger *slog.Logger, timeout time.Duration) *Synchronizer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Synchronizer{
		registry:  reg,
		source:    source,
		logger:    logger,
		timeout:   timeout,
		lazyRetry: DefaultLazyRetry,
		now:       time.Now,
	}
}

// Sync fetches the full identity list and swaps it into the registry.
// Concurrent calls share one fetch. On failure the registry is left as it
// was and the error wraps domain.ErrRegistrySync.
func (s *Synchronizer) Sync(ctx context.Context) (Result, error) {
	v, err, _ := s.group.Do("sync", func() (interface{}, error) {
		return s.sync(ctx)
	})
	return v.(Result), err
}

func (s *Synchronizer) sync(ctx context.Context) (Result, error) {
	s.lastAttempt.Store(s.now().UnixNano())

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	identities, err := s.source.FetchIdentities(ctx)
	if err != nil {
		snap := s.registry.Snapshot()
		s.logger.Warn("registry sync failed, keeping last known registry",
			slog.Any("error", err),
			slog.Uint64("version", snap.Version()),
			slog.Int("templates", snap.Len()),
		)
		return Result{Version: snap.Version()}, domain.ErrRegistrySync.WithError(err)
	}

	replaced := s.registry.ReplaceAll(identities)
	if replaced.Skipped > 0 {
		s.logger.Warn("registry sync skipped invalid records", "skipped", replaced.Skipped)
	}
	s.logger.Info("registry synced",
		slog.Int("fetched", len(identities)),
		slog.Int("accepted", replaced.Accepted),
		slog.Uint64("version", replaced.Version),
		slog.Duration("took", s.now().Sub(start)),
	)

	return Result{
		Success:  true,
		Fetched:  len(identities),
		Accepted: replaced.Accepted,
		Version:  replaced.Version,
	}, nil
}

// EnsureLoaded syncs when the registry is empty and no attempt was made
// within the lazy retry window. It is called on the recognition path, so a
// failure is only logged.
func (s *Synchronizer) EnsureLoaded(ctx context.Context) {
	if !s.registry.Snapshot().IsEmpty() {
		return
	}

	last := s.lastAttempt.Load()
	if last != 0 && s.now().Sub(time.Unix(0, last)) < s.lazyRetry {
		return
	}

	_, _ = s.Sync(ctx)
}

// Run syncs on every tick until ctx is done.
func (s *Synchronizer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("registry sync worker started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("registry sync worker stopped")
			return
		case <-ticker.C:
			_, _ = s.Sync(ctx)
		}
	}
}
