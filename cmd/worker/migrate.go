package main

import (
	"github.com/spf13/cobra"

	"github.com/jhoicas/facturador-sunat/internal/infrastructure/postgres"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes del esquema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			pool, err := postgres.NewPool(cmd.Context(), cfg.DB)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := postgres.Migrate(cmd.Context(), pool, log.Zerolog())
			if err != nil {
				return err
			}
			log.Info().Int("applied", n).Msg("migraciones al día")
			return nil
		},
	}
}
