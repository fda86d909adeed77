package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/factoring-portal/api/controllers"
	"github.com/angelmondragon/factoring-portal/api/routes"
	"github.com/angelmondragon/factoring-portal/internal/audit"
	"github.com/angelmondragon/factoring-portal/internal/authz"
	"github.com/angelmondragon/factoring-portal/internal/companies"
	"github.com/angelmondragon/factoring-portal/internal/contracts"
	"github.com/angelmondragon/factoring-portal/internal/documents"
	"github.com/angelmondragon/factoring-portal/internal/fundingrequests"
	"github.com/angelmondragon/factoring-portal/internal/memberships"
	"github.com/angelmondragon/factoring-portal/internal/notifications"
	"github.com/angelmondragon/factoring-portal/internal/sideeffects"
	"github.com/angelmondragon/factoring-portal/pkg/auth/session"
	"github.com/angelmondragon/factoring-portal/pkg/config"
	"github.com/angelmondragon/factoring-portal/pkg/db"
	"github.com/angelmondragon/factoring-portal/pkg/logger"
	"github.com/angelmondragon/factoring-portal/pkg/metrics"
	"github.com/angelmondragon/factoring-portal/pkg/migrate"
	"github.com/angelmondragon/factoring-portal/pkg/pandadoc"
	"github.com/angelmondragon/factoring-portal/pkg/pubsub"
	"github.com/angelmondragon/factoring-portal/pkg/redis"
	"github.com/angelmondragon/factoring-portal/pkg/storage/gcs"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	resolver, err := memberships.NewResolver(memberships.NewRepository(dbClient.DB()), cfg.Backoffice.NormalizedEmails())
	if err != nil {
		logg.Error(ctx, "failed to create membership resolver", err)
		os.Exit(1)
	}

	readiness := map[string]controllers.Pinger{"db": dbClient, "redis": redisClient}

	var files *gcs.Client
	if cfg.GCS.BucketName != "" {
		files, err = gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap gcs", err)
			os.Exit(1)
		}
		defer files.Close()
		readiness["gcs"] = files
	} else {
		logg.Warn(ctx, "gcs bucket not configured, document uploads disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	dispatcher, err := sideeffects.NewDispatcher(sideeffects.Params{
		Logger:      logg,
		Metrics:     metrics.NewSideEffectMetrics(reg),
		Workers:     cfg.SideEffects.Workers,
		QueueSize:   cfg.SideEffects.QueueSize,
		TaskTimeout: cfg.SideEffects.TaskTimeout,
	})
	if err != nil {
		logg.Error(ctx, "failed to start side effect dispatcher", err)
		os.Exit(1)
	}

	var publisher notifications.Publisher
	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer psClient.Close()
		readiness["pubsub"] = psClient
		if pub := psClient.NotificationPublisher(); pub != nil {
			defer pub.Stop()
			publisher = pub
		}
	}

	recorder, err := audit.NewRecorder(audit.NewRepository(dbClient.DB()), dispatcher, logg)
	if err != nil {
		logg.Error(ctx, "failed to create audit recorder", err)
		os.Exit(1)
	}

	notificationsRepo := notifications.NewRepository(dbClient.DB())
	notifier, err := notifications.NewNotifier(notificationsRepo, publisher, dispatcher, logg)
	if err != nil {
		logg.Error(ctx, "failed to create notifier", err)
		os.Exit(1)
	}
	notificationsService, err := notifications.NewService(notificationsRepo)
	if err != nil {
		logg.Error(ctx, "failed to create notifications service", err)
		os.Exit(1)
	}

	pandadocClient := pandadoc.NewClient(cfg.PandaDoc)
	generator, err := contracts.NewPandaDocGenerator(pandadocClient, companies.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create contract generator", err)
		os.Exit(1)
	}

	updateLevel, err := authz.ParseLevel(cfg.Lifecycle.UpdatePermission)
	if err != nil {
		logg.Error(ctx, "invalid update permission", err)
		os.Exit(1)
	}
	deleteLevel, err := authz.ParseLevel(cfg.Lifecycle.DeletePermission)
	if err != nil {
		logg.Error(ctx, "invalid delete permission", err)
		os.Exit(1)
	}

	params := fundingrequests.ServiceParams{
		Repo:      fundingrequests.NewRepository(dbClient.DB()),
		Documents: documents.NewRepository(dbClient.DB()),
		Tx:        dbClient,
		Generator: generator,
		Provider:  pandadocClient,
		Audit:     recorder,
		Notifier:  notifier,
		Logger:    logg,
		Config: fundingrequests.Config{
			UpdateLevel:       updateLevel,
			DeleteLevel:       deleteLevel,
			PermissiveFunding: cfg.Lifecycle.PermissiveFunding,
			ForceSignEnabled:  cfg.FeatureFlags.ForceSignEnabled(cfg.App),
			ViewerURLTemplate: cfg.PandaDoc.ViewerURLTemplate,
			MaxUploadBytes:    int64(cfg.GCS.MaxUploadMB) << 20,
		},
	}
	if files != nil {
		params.Files = files
	}
	requestsService, err := fundingrequests.NewService(params)
	if err != nil {
		logg.Error(ctx, "failed to create funding request service", err)
		os.Exit(1)
	}

	var idempotencyStore redis.IdempotencyStore
	if cfg.FeatureFlags.Idempotency {
		idempotencyStore = redisClient
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(serverCtx, "starting api server")

	router := routes.NewRouter(
		cfg,
		logg,
		routes.Observability{
			Readiness:   readiness,
			HTTPMetrics: metrics.NewHTTPMetrics(reg),
			Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		},
		sessionManager,
		resolver,
		idempotencyStore,
		requestsService,
		notificationsService,
	)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(serverCtx, "api server shutdown failed", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logg.Error(serverCtx, "side effect queue did not drain", err)
	}
}
