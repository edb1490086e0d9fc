package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/goliatone/go-marketplace-auth/adapters/amqpnotify"
	"github.com/goliatone/go-marketplace-auth/adapters/paymentclient"
	"github.com/goliatone/go-marketplace-auth/adapters/redissession"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	adminEmail := flag.String("create-admin", "", "create an admin with this email (secret from MARKET_AUTH_ADMIN_SECRET) and exit")
	devCodes := flag.Bool("dev-codes", false, "echo verification codes and reset tokens in responses")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg, err := auth.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *adminEmail, *devCodes); err != nil {
		logger.Error("marketplace-auth stopped", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *auth.Config, logger *slog.Logger, adminEmail string, devCodes bool) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	if err := auth.Migrate(ctx, db); err != nil {
		return err
	}

	repo := auth.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		return err
	}

	tokens, err := auth.NewTokenService([]byte(cfg.SigningKey), cfg.Issuer, cfg.TokenTTLs(), auth.WithTokenLogger(logger))
	if err != nil {
		return err
	}

	validators := []auth.TokenValidator{tokens}
	for _, key := range cfg.PreviousSigningKeys {
		previous, err := auth.NewTokenService([]byte(key), cfg.Issuer, cfg.TokenTTLs(), auth.WithTokenLogger(logger))
		if err != nil {
			return err
		}
		validators = append(validators, previous)
	}

	var notifications auth.NotificationGateway = auth.LogNotificationGateway{Logger: logger}
	// lifecycle rows are written in the same tx as the transition, so the
	// lifecycle only gets the outbound sink.
	var outbound auth.ActivitySink
	if cfg.AMQPURL != "" {
		conn, err := amqpnotify.Dial(ctx, cfg.AMQPURL, 5)
		if err != nil {
			return err
		}
		defer conn.Close()

		ch, err := amqpnotify.SetupChannel(conn, cfg.AMQPExchange)
		if err != nil {
			return err
		}
		defer ch.Close()
		notifications = amqpnotify.New(ch, cfg.AMQPExchange)

		activityCh, err := amqpnotify.SetupChannel(conn, cfg.AMQPActivity)
		if err != nil {
			return err
		}
		defer activityCh.Close()
		outbound = amqpnotify.NewActivityPublisher(activityCh, cfg.AMQPActivity)
	}

	resolverOpts := []auth.ResolverOption{auth.WithResolverLogger(logger)}
	if cfg.RedisAddr != "" {
		client, err := redissession.Connect(ctx, cfg.RedisAddr, "", 0)
		if err != nil {
			return err
		}
		defer client.Close()
		resolverOpts = append(resolverOpts, auth.WithFederatedSessions(redissession.New(client)))
	}

	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	sink := auth.MultiActivitySink{repo.Activity(), outbound}

	handlerOpts := []auth.HandlerOption{
		auth.WithHandlerLogger(logger),
		auth.WithHandlerActivitySink(sink),
		auth.WithHandlerNotifications(notifications),
		auth.WithHandlerPasswordHasher(hasher),
		auth.WithCredentialPolicy(auth.CredentialPolicyFromConfig(*cfg)),
	}

	if adminEmail != "" {
		return createAdmin(ctx, repo, tokens, handlerOpts, adminEmail, logger)
	}

	lifecycleOpts := []auth.LifecycleOption{
		auth.WithLifecycleLogger(logger),
		auth.WithLifecycleActivitySink(outbound),
		auth.WithLifecycleNotifications(notifications),
		auth.WithTrialPolicy(cfg.TrialPolicy()),
	}
	if cfg.PaymentAPIURL != "" {
		lifecycleOpts = append(lifecycleOpts, auth.WithPaymentGateway(
			paymentclient.New(cfg.PaymentAPIURL, cfg.PaymentAPIKey),
			auth.SubscriptionPlanFromConfig(*cfg),
		))
	}
	engine := auth.NewLifecycleEngine(repo, lifecycleOpts...)

	auther := auth.NewAuthenticator(repo, tokens).
		WithLogger(logger).
		WithActivitySink(sink).
		WithPasswordHasher(hasher)

	resolver := auth.NewIdentityResolver(auth.NewMultiTokenValidator(validators...), repo, resolverOpts...)
	httpAuth := auth.NewHTTPAuthenticator(resolver, auther, *cfg).WithLogger(logger)

	controller := auth.NewController(repo, tokens, httpAuth, engine, handlerOpts,
		auth.WithControllerLogger(logger),
		auth.WithExposeCodes(devCodes),
		auth.WithWebhookSecret(cfg.PaymentWebhookSecret),
	)

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:  true,
			StrictRouting: false,
		}))
	})

	auth.RegisterRoutes(srv.Router(), controller)

	ctx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	go func() {
		logger.Info("listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.Serve(cfg.HTTPAddr); err != nil {
			logger.Error("http server failed", slog.Any("err", err))
			cancelRun()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func createAdmin(ctx context.Context, repo auth.RepositoryManager, tokens auth.TokenService, opts []auth.HandlerOption, email string, logger *slog.Logger) error {
	var created auth.Actor
	err := auth.NewRegisterActorHandler(repo, tokens, opts...).Execute(ctx, auth.RegisterActorMessage{
		Role:   auth.RoleAdmin,
		Email:  email,
		Secret: os.Getenv("MARKET_AUTH_ADMIN_SECRET"),
		OnResponse: func(resp *auth.RegisterActorResponse) {
			created = resp.Actor
		},
	})
	if err != nil {
		return err
	}
	logger.Info("admin created", slog.String("id", created.ActorID()), slog.String("email", created.ActorEmail()))
	return nil
}
