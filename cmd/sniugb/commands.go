package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	jwttoken "github.com/NogaLive/SNIUGB/internal/jwt_token"
	livestockhandler "github.com/NogaLive/SNIUGB/internal/livestock/handler"
	"github.com/NogaLive/SNIUGB/internal/livestock/identifier"
	livestockmetrics "github.com/NogaLive/SNIUGB/internal/livestock/metrics"
	livestockservice "github.com/NogaLive/SNIUGB/internal/livestock/service"
	"github.com/NogaLive/SNIUGB/internal/platform/config"
	"github.com/NogaLive/SNIUGB/internal/platform/httpserver"
	"github.com/NogaLive/SNIUGB/internal/platform/metrics"
	"github.com/NogaLive/SNIUGB/internal/ratelimit"
	ratelimitmetrics "github.com/NogaLive/SNIUGB/internal/ratelimit/metrics"
	transferhandler "github.com/NogaLive/SNIUGB/internal/transfer/handler"
	transfermetrics "github.com/NogaLive/SNIUGB/internal/transfer/metrics"
	transferservice "github.com/NogaLive/SNIUGB/internal/transfer/service"
	"github.com/NogaLive/SNIUGB/internal/transfer/sweeper"
	httptransport "github.com/NogaLive/SNIUGB/internal/transport/http"
	"github.com/NogaLive/SNIUGB/pkg/requestcontext"
)

func serve(c *cli.Context) error {
	ctx := c.Context
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.cfg

	if c.Bool("migrate") {
		if err := rt.store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	notifier, closeNotifier, err := rt.notifier(ctx)
	if err != nil {
		return err
	}
	defer closeNotifier()

	redisClient, err := rt.redis(ctx)
	if err != nil {
		return err
	}
	checks := map[string]httptransport.HealthCheck{"database": rt.store.Ping}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = redisClient.Health
	}

	transferMetrics := transfermetrics.New()
	livestockSvc := livestockservice.New(rt.store,
		livestockservice.WithLogger(rt.logger),
		livestockservice.WithMetrics(livestockmetrics.New()),
	)
	transferSvc := transferservice.New(rt.store,
		transferservice.WithNotifier(notifier),
		transferservice.WithLogger(rt.logger),
		transferservice.WithMetrics(transferMetrics),
		transferservice.WithBcryptCost(cfg.Transfer.BcryptCost),
		transferservice.WithExpiryWindow(cfg.Sweeper.Window),
	)

	var attemptStore ratelimit.Store = ratelimit.NewInMemoryStore()
	if redisClient != nil {
		attemptStore = ratelimit.NewRedisStore(redisClient.Client)
	}
	limiter := ratelimit.New(attemptStore, rt.logger,
		ratelimit.WithDisabled(cfg.RateLimit.Disabled),
		ratelimit.WithMetrics(ratelimitmetrics.New()),
	)
	approveGuard := limiter.PerCaller("transfer-approve", ratelimit.Policy{
		Limit:  cfg.RateLimit.ApproveAttempts,
		Window: cfg.RateLimit.ApproveWindow,
	})

	livestockHTTP := livestockhandler.New(livestockSvc, rt.logger)
	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:    rt.logger,
		Metrics:   metrics.New(),
		Validator: jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer)),
		Public:    []httptransport.PublicRegistrar{livestockHTTP},
		Modules: []httptransport.Registrar{
			livestockHTTP,
			transferhandler.New(transferSvc, rt.logger, transferhandler.WithApproveGuard(approveGuard)),
		},
		Checks: checks,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rt.logger.InfoContext(gctx, "starting sniugb", "addr", cfg.Server.Addr)
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout)
	})
	if cfg.Sweeper.Enabled {
		opts := append(rt.sweeperOptions(redisClient), sweeper.WithMetrics(transferMetrics))
		sw := sweeper.New(transferSvc, opts...)
		g.Go(func() error {
			return sw.Run(gctx)
		})
	}
	err = g.Wait()
	rt.logger.InfoContext(ctx, "sniugb stopped", "error", err)
	return err
}

func migrate(c *cli.Context) error {
	rt, err := bootstrap(c.Context)
	if err != nil {
		return err
	}
	defer rt.Close()
	if err := rt.store.Migrate(c.Context); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	rt.logger.InfoContext(c.Context, "schema and reference data applied")
	return nil
}

func sweep(c *cli.Context) error {
	ctx := c.Context
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	redisClient, err := rt.redis(ctx)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	opts := rt.sweeperOptions(redisClient)
	if w := c.Duration("window"); w > 0 {
		opts = append(opts, sweeper.WithWindow(w))
	}
	svc := transferservice.New(rt.store, transferservice.WithLogger(rt.logger))
	expired, err := sweeper.New(svc, opts...).RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "expired %d transfer(s)\n", expired)
	return nil
}

func verifyCUI(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one CUI is required", 2)
	}
	invalid := 0
	for _, cui := range c.Args().Slice() {
		parts, err := identifier.Parse(cui)
		if err != nil {
			invalid++
			fmt.Fprintf(c.App.Writer, "%s\tinvalid\t%v\n", cui, err)
			continue
		}
		fmt.Fprintf(c.App.Writer, "%s\tvalid\tspecies=%d region=%02d sequence=%d\n",
			cui, parts.SpeciesDigit, parts.RegionCode, parts.Sequence)
	}
	if invalid > 0 {
		return cli.Exit(fmt.Sprintf("%d invalid CUI(s)", invalid), 1)
	}
	return nil
}

func issueToken(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	role := requestcontext.Role(c.String("role"))
	if role != requestcontext.RoleProducer && role != requestcontext.RoleAdmin {
		return cli.Exit("role must be producer or admin", 2)
	}
	token, err := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer).
		GenerateAccessToken(c.String("subject"), role, c.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}
