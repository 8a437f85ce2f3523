package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

// PostgresIdentityRepository stores identity templates in Postgres with
// pgvector. It is both a registry source and a write-through store.
type PostgresIdentityRepository struct {
	pool PgxPool
}

func NewPostgresIdentityRepository(pool PgxPool) *PostgresIdentityRepository {
	return &PostgresIdentityRepository{pool: pool}
}

// FetchIdentities returns every template, oldest first.
func (r *PostgresIdentityRepository) FetchIdentities(ctx context.Context) ([]domain.Identity, error) {
	query := `
		SELECT id, name, embedding, registered_at
		FROM identities
		ORDER BY registered_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch identities: %w", err)
	}
	defer rows.Close()

	identities := make([]domain.Identity, 0)
	for rows.Next() {
		var (
			id           uuid.UUID
			name         string
			embedding    *pgvector.Vector
			registeredAt time.Time
		)
		if err := rows.Scan(&id, &name, &embedding, &registeredAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}

		identities = append(identities, domain.Identity{
			ID:           id.String(),
			Name:         name,
			Embedding:    vectorToFloat64(embedding),
			RegisteredAt: registeredAt,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}

	return identities, nil
}

// SaveIdentity inserts one template. Saving an id twice is a no-op.
func (r *PostgresIdentityRepository) SaveIdentity(ctx context.Context, identity domain.Identity) error {
	query := `
		INSERT INTO identities (id, name, embedding, registered_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`

	id, err := uuid.Parse(identity.ID)
	if err != nil {
		return domain.ErrValidationFailed.WithError(fmt.Errorf("identity id %q: %w", identity.ID, err))
	}
	if len(identity.Embedding) == 0 {
		return domain.ErrValidationFailed.WithError(errors.New("identity has no embedding"))
	}

	registeredAt := identity.RegisteredAt
	if registeredAt.IsZero() {
		registeredAt = time.Now().UTC()
	}

	_, err = r.pool.Exec(ctx, query, id, identity.Name, float64ToVector(identity.Embedding), registeredAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("save identity: %w", err)
	}

	return nil
}

// Count returns the number of stored templates.
func (r *PostgresIdentityRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM identities`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

// Nearest asks pgvector for the template closest to embedding by cosine
// distance. It returns domain.ErrNotFound when the table is empty.
func (r *PostgresIdentityRepository) Nearest(ctx context.Context, embedding []float64) (*domain.Identity, float64, error) {
	query := `
		SELECT id, name, registered_at, embedding <=> $1 AS distance
		FROM identities
		ORDER BY embedding <=> $1, registered_at ASC
		LIMIT 1
	`

	var (
		id       uuid.UUID
		identity domain.Identity
		distance float64
	)
	err := r.pool.QueryRow(ctx, query, float64ToVector(embedding)).Scan(&id, &identity.Name, &identity.RegisteredAt, &distance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, domain.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("nearest identity: %w", err)
	}

	identity.ID = id.String()
	return &identity, distance, nil
}

func float64ToVector(v []float64) pgvector.Vector {
	floats := make([]float32, len(v))
	for i, x := range v {
		floats[i] = float32(x)
	}
	return pgvector.NewVector(floats)
}

func vectorToFloat64(v *pgvector.Vector) []float64 {
	if v == nil || v.Slice() == nil {
		return nil
	}
	out := make([]float64, len(v.Slice()))
	for i, x := range v.Slice() {
		out[i] = float64(x)
	}
	return out
}
