package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"docverify/internal/audit"
	audithandler "docverify/internal/audit/handler"
	"docverify/internal/audit/relay"
	auditmemory "docverify/internal/audit/store/memory"
	auditpostgres "docverify/internal/audit/store/postgres"
	"docverify/internal/authz"
	"docverify/internal/blob"
	blobhandler "docverify/internal/blob/handler"
	"docverify/internal/dashboard"
	dashboardhandler "docverify/internal/dashboard/handler"
	httpapi "docverify/internal/http"
	jwttoken "docverify/internal/jwt_token"
	"docverify/internal/platform/config"
	"docverify/internal/platform/httpserver"
	"docverify/internal/platform/kafka"
	"docverify/internal/platform/logger"
	platformmetrics "docverify/internal/platform/metrics"
	"docverify/internal/platform/postgres"
	"docverify/internal/platform/redis"
	"docverify/internal/ratelimit"
	"docverify/internal/scan"
	scanhandler "docverify/internal/scan/handler"
	"docverify/internal/verification/handler"
	verificationmetrics "docverify/internal/verification/metrics"
	"docverify/internal/verification/models"
	"docverify/internal/verification/service"
	requeststore "docverify/internal/verification/store/request"
	"docverify/pkg/platform/circuit"
	"docverify/pkg/platform/tx"
)

// requestStore is everything the features need from the request table.
type requestStore interface {
	service.RequestStore
	dashboard.Store
	scan.RequestStore
}

type infra struct {
	db       *sql.DB
	redis    *redis.Client
	requests requestStore
	audit    audit.Store
	runner   tx.Runner
	files    *blob.Store
	closers  []func()
	checks   map[string]httpapi.HealthCheck
}

func (in *infra) close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		in.closers[i]()
	}
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("docverify stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	in, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.close()

	policy := authz.Policy{AdminsMayReview: cfg.AdminsMayReview}
	countries := models.DefaultCountrySet()
	if len(cfg.Countries) > 0 {
		countries = models.NewCountrySet(cfg.Countries...)
	}

	auditMetrics := audit.NewMetrics()
	ledger := audit.NewLedger(in.audit, audit.WithLogger(log), audit.WithMetrics(auditMetrics))

	verification := service.New(in.requests, ledger,
		service.WithLogger(log),
		service.WithMetrics(verificationmetrics.New()),
		service.WithTx(in.runner),
		service.WithPolicy(policy),
		service.WithCountries(countries),
	)

	scanOpts := []scan.Option{
		scan.WithPolicy(policy),
		scan.WithLogger(log),
	}
	if in.redis != nil {
		scanOpts = append(scanOpts, scan.WithCache(scan.NewRedisCache(in.redis.Client, cfg.Scan.CacheTTL)))
	}
	if cfg.Scan.Live {
		breaker := circuit.New("scan-live", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2))
		scanOpts = append(scanOpts, scan.WithScanner(scan.ModeLive,
			scan.NewFallbackScanner(scan.LiveScanner{}, scan.MockScanner{}, breaker, log)))
	}
	scans := scan.NewService(in.requests, scanOpts...)

	outboxRelay, err := buildRelay(ctx, cfg, in, auditMetrics, log)
	if err != nil {
		return err
	}

	jwt := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer)

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:         log,
		Validator:      jwttoken.NewJWTServiceAdapter(jwt),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:        platformmetrics.NewHTTP(),
		RateLimit:      buildRateLimit(cfg.RateLimit, in, log),
		Checks:         in.checks,
		Handlers: []httpapi.Registrar{
			handler.New(verification, in.files, log, handler.Config{PublicFileBase: cfg.Blob.PublicFileBase, Countries: countries, Policy: policy}),
			scanhandler.New(scans, log),
			audithandler.New(audit.NewService(in.audit), log),
			dashboardhandler.New(dashboard.New(in.requests, dashboard.WithPolicy(policy), dashboard.WithLogger(log)),
				log, countries, in.files.MaxBytes()),
			blobhandler.New(in.files, policy, log),
		},
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting docverify", "addr", cfg.Addr, "blob_backend", cfg.Blob.Backend, "postgres", in.db != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if outboxRelay != nil {
		g.Go(func() error { return outboxRelay.Run(gctx) })
	}

	return g.Wait()
}

func buildInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	in := &infra{checks: map[string]httpapi.HealthCheck{}}

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database.URL, postgres.Options{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		in.closers = append(in.closers, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			in.close()
			return nil, err
		}
		in.db = db
		in.requests = requeststore.NewPostgres(db)
		in.audit = auditpostgres.New(db)
		in.runner = tx.NewSQLRunner(db)
		in.checks["postgres"] = db.PingContext
	} else {
		log.Warn("DATABASE_URL not set; using in-memory stores")
		in.requests = requeststore.NewInMemory()
		in.audit = auditmemory.NewInMemoryStore()
		in.runner = tx.NewMemoryRunner()
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		in.close()
		return nil, err
	}
	if rdb != nil {
		in.redis = rdb
		in.closers = append(in.closers, func() { _ = rdb.Close() })
		in.checks["redis"] = rdb.Health
	}

	var backend blob.Backend
	switch cfg.Blob.Backend {
	case config.BlobBackendGCS:
		gcs, err := blob.NewGCS(ctx, cfg.Blob.GCSBucket, cfg.Blob.GCSCredentials)
		if err != nil {
			in.close()
			return nil, err
		}
		in.closers = append(in.closers, func() { _ = gcs.Close() })
		backend = gcs
	default:
		local, err := blob.NewLocal(cfg.Blob.UploadDir)
		if err != nil {
			in.close()
			return nil, err
		}
		backend = local
	}
	in.files = blob.New(backend, cfg.Blob.MaxUploadBytes)

	return in, nil
}

func buildRateLimit(cfg config.RateLimitConfig, in *infra, log *slog.Logger) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		log.Info("rate limiting disabled")
		return nil
	}
	var store ratelimit.Store = ratelimit.NewInMemoryStore()
	if in.redis != nil {
		store = ratelimit.NewRedisStore(in.redis.Client)
	}
	limiter := ratelimit.NewLimiter(store, ratelimit.WithLimits(ratelimit.Limits{
		ratelimit.ClassSubmit: {Requests: cfg.SubmitPerMinute, Window: time.Minute},
		ratelimit.ClassDecide: {Requests: cfg.DecidePerMinute, Window: time.Minute},
		ratelimit.ClassRead:   {Requests: cfg.ReadPerMinute, Window: time.Minute},
	}))
	return ratelimit.Middleware(limiter, log)
}

// buildRelay returns nil when there is no outbox to drain or nowhere to
// publish it.
func buildRelay(ctx context.Context, cfg config.Server, in *infra, m *audit.Metrics, log *slog.Logger) (*relay.Relay, error) {
	outbox, ok := in.audit.(relay.Outbox)
	if !ok || in.db == nil || len(cfg.Kafka.Brokers) == 0 {
		log.Info("audit outbox relay disabled")
		return nil, nil
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		return nil, err
	}
	in.closers = append(in.closers, producer.Close)
	in.checks["kafka"] = producer.Ping

	topicCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := producer.EnsureTopic(topicCtx, cfg.Kafka.AuditTopic, 3, 1); err != nil {
		log.Warn("could not ensure audit topic", "topic", cfg.Kafka.AuditTopic, "error", err)
	}

	opts := []relay.Option{
		relay.WithLogger(log),
		relay.WithMetrics(m),
		relay.WithInterval(cfg.Kafka.PollInterval),
		relay.WithBatchSize(cfg.Kafka.RelayBatchSize),
		relay.WithTx(in.runner),
	}
	if in.redis != nil {
		opts = append(opts, relay.WithLocker(redis.NewLocker(in.redis.Client)))
	}
	return relay.New(outbox, producer, cfg.Kafka.AuditTopic, opts...), nil
}
