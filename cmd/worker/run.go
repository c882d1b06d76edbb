package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/facturador-sunat/internal/application/submission"
	"github.com/jhoicas/facturador-sunat/internal/infrastructure/audit"
	"github.com/jhoicas/facturador-sunat/internal/infrastructure/metrics"
	"github.com/jhoicas/facturador-sunat/internal/infrastructure/postgres"
	"github.com/jhoicas/facturador-sunat/internal/infrastructure/sunat"
	httpRouter "github.com/jhoicas/facturador-sunat/internal/interfaces/http"
	"github.com/jhoicas/facturador-sunat/internal/interfaces/worker"
	"github.com/jhoicas/facturador-sunat/pkg/config"
	"github.com/jhoicas/facturador-sunat/pkg/logger"
)

func runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Inicia el loop de envíos y la API de administración",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, log)
		},
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando worker")

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	clock := clockwork.NewRealClock()
	docs := postgres.NewDocumentRepository(pool)
	jobs := postgres.NewJobRepository(pool)
	settings := postgres.NewSettingsRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	client := sunat.NewSOAPClient(sunat.ClientConfig{
		SandboxURL:    cfg.SUNAT.SandboxURL,
		ProductionURL: cfg.SUNAT.ProductionURL,
		Timeout:       cfg.SUNAT.HTTPTimeout,
	}, log.Component("sunat"))

	credentials := submission.NewCredentialsProvider(settings, submission.CredentialsConfig{
		TTL:              cfg.SUNAT.CredentialsTTL,
		OverrideUser:     cfg.SUNAT.SolUser,
		OverridePassword: cfg.SUNAT.SolPassword,
	}, clock)

	processor := submission.NewProcessor(submission.ProcessorDeps{
		Documents:   docs,
		Jobs:        jobs,
		Tx:          txRunner,
		Credentials: credentials,
		Client:      client,
		Policy: submission.RetryPolicy{
			Ladder:       cfg.Retry.Ladder,
			MaxAttempts:  cfg.Retry.MaxAttempts,
			PendingDelay: cfg.Retry.PendingDelay,
		},
		Clock:   clock,
		Audit:   audit.Multi{audit.NewLogSink(log.Zerolog())},
		Metrics: m,
		Logger:  log.Zerolog(),
	})

	loop := worker.New(jobs, processor, worker.Config{
		PollInterval:  cfg.Worker.PollInterval,
		Concurrency:   cfg.Worker.Concurrency,
		ShutdownGrace: cfg.Worker.ShutdownGrace,
		Lease:         cfg.Worker.Lease,
	}, clock, m, log.Zerolog())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })

	if cfg.HTTP.Enabled {
		app := fiber.New(fiber.Config{
			AppName:               cfg.App.Name,
			ReadTimeout:           10 * time.Second,
			WriteTimeout:          10 * time.Second,
			IdleTimeout:           60 * time.Second,
			DisableStartupMessage: true,
		})
		app.Use(recover.New())
		httpRouter.Router(app, httpRouter.RouterDeps{
			Submissions: submission.NewService(docs, jobs, txRunner, clock, log.Zerolog()),
			JWTSecret:   cfg.JWT.Secret,
			Gatherer:    reg,
			Ping:        pool.Ping,
			WorkerID:    loop.WorkerID(),
			InFlight:    loop.InFlight,
			Logger:      log.Component("http"),
		})

		g.Go(func() error {
			log.Info().Str("addr", cfg.HTTP.Addr()).Msg("API de administración escuchando")
			return app.Listen(cfg.HTTP.Addr())
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return app.ShutdownWithContext(shutdownCtx)
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("worker finalizado con error")
		return err
	}
	log.Info().Msg("worker detenido")
	return nil
}
