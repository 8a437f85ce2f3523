package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facestream/internal/database"
	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
	"github.com/saturnino-fabrica-de-software/facestream/internal/face"
	"github.com/saturnino-fabrica-de-software/facestream/internal/matcher"
	"github.com/saturnino-fabrica-de-software/facestream/internal/registry"
	"github.com/saturnino-fabrica-de-software/facestream/internal/repository"
	"github.com/saturnino-fabrica-de-software/facestream/internal/service"
)

func newEncodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode FILE",
		Short: "Print the embedding of the single face in FILE as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			embedding, err := encodeFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(embedding)
		},
	}
}

func newIdentifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identify FILE",
		Short: "Look up the face in FILE in the Postgres registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}

			embedding, err := encodeFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			pool, err := database.NewPgxPool(cmd.Context(), database.DefaultPoolConfig(cfg.DatabaseURL))
			if err != nil {
				return err
			}
			defer pool.Close()

			identity, distance, err := repository.NewPostgresIdentityRepository(pool).Nearest(cmd.Context(), embedding)
			if errors.Is(err, domain.ErrNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "Unknown (registry is empty)")
				return nil
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if distance < cfg.MatchThreshold {
				fmt.Fprintf(out, "%s (distance %.4f, confidence %.4f)\n", identity.Name, distance, 1-distance)
				return nil
			}
			fmt.Fprintf(out, "Unknown (nearest %s at distance %.4f, threshold %.2f)\n", identity.Name, distance, cfg.MatchThreshold)
			return nil
		},
	}
}

// encodeFile runs FILE through the configured provider.
func encodeFile(ctx context.Context, path string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	embedder, err := face.NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc := service.NewFaceService(
		embedder,
		registry.New(cfg.EmbeddingDimension),
		matcher.New(matcher.Options{Threshold: cfg.MatchThreshold}, logger),
		logger,
	)

	result, err := svc.Encode(ctx, base64.StdEncoding.EncodeToString(data))
	if err != nil {
		return nil, err
	}
	switch result.Status {
	case service.StatusNoFace:
		return nil, fmt.Errorf("no face detected in %s", path)
	case service.StatusMultipleFaces:
		return nil, fmt.Errorf("multiple faces detected in %s", path)
	}
	return result.Embedding, nil
}
