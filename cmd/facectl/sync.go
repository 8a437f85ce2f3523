package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facestream/internal/registry"
	"github.com/saturnino-fabrica-de-software/facestream/internal/registrysync"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch the configured registry source once and report what it holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, result, err := loadRegistry(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fetched %d identities, accepted %d, dimension %d\n",
				result.Fetched, result.Accepted, reg.Snapshot().Dimension())
			return nil
		},
	}
}

func newIdentitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identities",
		Short: "List the identities held by the configured registry source",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, err := loadRegistry(cmd)
			if err != nil {
				return err
			}

			summaries := reg.Snapshot().Summaries()
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No identities found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "NAME\tTEMPLATES\tREGISTERED")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%d\t%s\n", s.Name, s.Templates, s.RegisteredAt.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

// loadRegistry fills a fresh registry from the configured source.
func loadRegistry(cmd *cobra.Command) (*registry.Registry, registrysync.Result, error) {
	if !cfg.HasRegistrySource() {
		return nil, registrysync.Result{}, fmt.Errorf("REGISTRY_SOURCE is not set")
	}

	backend, err := registrysync.NewBackend(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, registrysync.Result{}, err
	}
	defer backend.Close()

	reg := registry.New(cfg.EmbeddingDimension)
	result, err := registrysync.NewSynchronizer(reg, backend.Source, logger, cfg.SyncTimeout).Sync(cmd.Context())
	if err != nil {
		return nil, result, err
	}
	return reg, result, nil
}

