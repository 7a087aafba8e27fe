package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/footprint/internal/api"
	"example.com/footprint/internal/auth"
	"example.com/footprint/internal/config"
	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/emissions"
	"example.com/footprint/internal/logging"
	"example.com/footprint/internal/outbox"
	httptransport "example.com/footprint/internal/transport/http"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if addr != "" {
				cfg.HTTPAddress = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logging.New(cfg.LogLevel, cfg.LogFormat))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDRESS)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	factors, err := emissions.LoadFactors(cfg.EmissionFactorsFile)
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	service := domain.NewService(b.store, factors)
	accounts := domain.NewAuthService(b.store)
	sessions := auth.NewSessions(cfg.SessionSecret, cfg.SecureCookies)

	handler, err := api.NewHandler(service, accounts, sessions, api.Options{
		RecentLimit:  cfg.RecentLimit,
		RequireLogin: cfg.RequireLogin,
		Tokens: auth.TokenConfig{
			Secret: cfg.JWTSecret,
			Issuer: cfg.JWTIssuer,
			TTL:    cfg.JWTTTL,
		},
		Health: b.store,
	}, logger)
	if err != nil {
		return err
	}

	server := httptransport.NewServer(
		httptransport.DefaultServerConfig(cfg.HTTPAddress),
		api.NewRouter(handler, sessions, accounts, logger),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("addr", cfg.HTTPAddress).
			Str("store", cfg.StoreDriver).
			Bool("require_login", cfg.RequireLogin).
			Strs("categories", factors.Names()).
			Msg("footprint listening")
		if err := server.Run(gctx); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
		return nil
	})

	if cfg.OutboxEnabled() && b.pool != nil {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		dispatcher := outbox.NewDispatcher(b.pool, producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger)
		g.Go(func() error {
			dispatcher.Start(gctx)
			return nil
		})
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Msg("outbox dispatcher started")
	}

	err = g.Wait()
	logger.Info().Msg("footprint stopped")
	return err
}
