package main

import (
	"github.com/spf13/cobra"

	"github.com/jhoicas/facturador-sunat/pkg/config"
	"github.com/jhoicas/facturador-sunat/pkg/logger"
)

// rootCommand sin subcomando equivale a "run".
func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "worker",
		Short:         "Envío de comprobantes electrónicos a SUNAT",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCommand().RunE(cmd, nil)
		},
	}
	root.AddCommand(runCommand(), migrateCommand(), tokenCommand())
	return root
}

// bootstrap carga configuración y logger; lo comparten todos los subcomandos.
func bootstrap() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
	return cfg, log, nil
}
