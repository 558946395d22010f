package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	auditrelay "findthem/internal/audit"
	auditmetrics "findthem/internal/audit/metrics"
	caseshandler "findthem/internal/cases/handler"
	casesmetrics "findthem/internal/cases/metrics"
	casesmodels "findthem/internal/cases/models"
	"findthem/internal/cases/search"
	casesservice "findthem/internal/cases/service"
	casesstore "findthem/internal/cases/store"
	dashboardhandler "findthem/internal/dashboard/handler"
	dashboardmetrics "findthem/internal/dashboard/metrics"
	dashboardservice "findthem/internal/dashboard/service"
	identityhandler "findthem/internal/identity/handler"
	identitymetrics "findthem/internal/identity/metrics"
	identityservice "findthem/internal/identity/service"
	accountstore "findthem/internal/identity/store/account"
	"findthem/internal/identity/store/revocation"
	"findthem/internal/identity/token"
	"findthem/internal/platform/config"
	"findthem/internal/platform/kafka"
	"findthem/internal/platform/postgres"
	platformredis "findthem/internal/platform/redis"
	profilehandler "findthem/internal/profile/handler"
	profilemetrics "findthem/internal/profile/metrics"
	profileservice "findthem/internal/profile/service"
	profilestore "findthem/internal/profile/store/profile"
	verificationstore "findthem/internal/profile/store/verification"
	ratelimitmetrics "findthem/internal/ratelimit/metrics"
	ratelimit "findthem/internal/ratelimit/middleware"
	"findthem/internal/ratelimit/store/bucket"
	sightingshandler "findthem/internal/sightings/handler"
	sightingsmetrics "findthem/internal/sightings/metrics"
	sightingsservice "findthem/internal/sightings/service"
	sightingsstore "findthem/internal/sightings/store"
	httptransport "findthem/internal/transport/http"
	platformaudit "findthem/pkg/platform/audit"
	"findthem/pkg/platform/audit/publishers/compliance"
	auditmemory "findthem/pkg/platform/audit/store/memory"
	auditpostgres "findthem/pkg/platform/audit/store/postgres"
)

const sightingScope = "sightings"

type caseStore interface {
	casesservice.Store
	search.Querier
	sightingsservice.CaseReader
	dashboardservice.CaseReader
}

type sightingStore interface {
	sightingsservice.Store
	dashboardservice.SightingReader
}

// stores groups one backend's implementations.
type stores struct {
	accounts      identityservice.AccountStore
	profiles      profileservice.ProfileStore
	verifications profileservice.VerificationStore
	cases         caseStore
	sightings     sightingStore
	audit         platformaudit.Store
}

func memoryStores() stores {
	return stores{
		accounts:      accountstore.New(),
		profiles:      profilestore.NewInMemoryStore(),
		verifications: verificationstore.NewInMemoryStore(),
		cases:         casesstore.NewInMemoryStore(),
		sightings:     sightingsstore.NewInMemoryStore(),
		audit:         auditmemory.NewInMemoryStore(),
	}
}

func postgresStores(db *sql.DB) stores {
	return stores{
		accounts:      accountstore.NewPostgres(db),
		profiles:      profilestore.NewPostgres(db),
		verifications: verificationstore.NewPostgres(db),
		cases:         casesstore.NewPostgres(db),
		sightings:     sightingsstore.NewPostgres(db),
		audit:         auditpostgres.New(db),
	}
}

// runner is a background loop started alongside the HTTP server.
type runner interface {
	Run(ctx context.Context) error
}

type app struct {
	router  http.Handler
	runners []runner
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// buildApp wires every module. Without DATABASE_URL all state lives in
// memory; without REDIS_URL revocations and rate limits are per process.
func buildApp(ctx context.Context, cfg config.Server, logger *slog.Logger) (*app, error) {
	a := &app{}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checks := map[string]httptransport.HealthCheck{}

	st := memoryStores()
	var txRunner *postgres.TxRunner
	var db *sql.DB
	if cfg.Database.Enabled() {
		var err error
		db, err = postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := postgres.Migrate(ctx, db); err != nil {
			a.Close()
			return nil, err
		}
		st = postgresStores(db)
		txRunner = postgres.NewTxRunner(db)
		checks["postgres"] = db.PingContext
		logger.Info("using postgres stores", "driver", cfg.Database.Driver)
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory stores")
	}

	identityMetrics := identitymetrics.New(reg)
	var revocations identityservice.TokenRevocationList = revocation.NewInMemoryTRL()
	var buckets ratelimit.Limiter = bucket.NewInMemoryStore()
	limiterOpts := []ratelimit.Option{
		ratelimit.WithDisabled(cfg.DemoMode),
		ratelimit.WithMetrics(ratelimitmetrics.New(reg)),
	}
	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}
	if rc != nil {
		a.closers = append(a.closers, rc.Close)
		revocations = revocation.NewRedisTRL(rc.Client, revocation.WithLatencyObserver(identityMetrics.ObserveRevocationCheck))
		buckets = bucket.NewRedisStore(rc.Client)
		limiterOpts = append(limiterOpts, ratelimit.WithFallback(bucket.NewInMemoryStore()))
		checks["redis"] = rc.Health
	}

	publisher := compliance.New(st.audit,
		compliance.WithLogger(logger),
		compliance.WithMetrics(compliance.NewMetrics(reg)),
	)

	identity := identityservice.New(st.accounts, revocations,
		token.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer),
		identityservice.WithLogger(logger),
		identityservice.WithAuditPublisher(publisher),
		identityservice.WithMetrics(identityMetrics),
		identityservice.WithSessionTTL(cfg.Auth.SessionTTL),
	)

	profileOpts := []profileservice.Option{
		profileservice.WithLogger(logger),
		profileservice.WithAuditPublisher(publisher),
		profileservice.WithMetrics(profilemetrics.New(reg)),
	}
	transitions, err := casesmodels.NewTransitionTable(cfg.Cases.Transitions)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("case transitions: %w", err)
	}
	casesMetrics := casesmetrics.New(reg)
	caseOpts := []casesservice.Option{
		casesservice.WithLogger(logger),
		casesservice.WithAuditPublisher(publisher),
		casesservice.WithMetrics(casesMetrics),
		casesservice.WithTransitions(transitions),
	}
	sightingOpts := []sightingsservice.Option{
		sightingsservice.WithLogger(logger),
		sightingsservice.WithAuditPublisher(publisher),
		sightingsservice.WithMetrics(sightingsmetrics.New(reg)),
	}
	dashboardOpts := []dashboardservice.Option{
		dashboardservice.WithLogger(logger),
		dashboardservice.WithMetrics(dashboardmetrics.New(reg)),
	}
	if txRunner != nil {
		profileOpts = append(profileOpts, profileservice.WithTx(txRunner))
		caseOpts = append(caseOpts, casesservice.WithTx(txRunner))
		sightingOpts = append(sightingOpts, sightingsservice.WithTx(txRunner))
		dashboardOpts = append(dashboardOpts, dashboardservice.WithTx(txRunner))
	}

	profiles := profileservice.New(st.profiles, st.verifications, identity, profileOpts...)
	cases := casesservice.New(st.cases, caseOpts...)
	searcher := search.NewEngine(st.cases, search.WithLogger(logger), search.WithMetrics(casesMetrics))
	sightings := sightingsservice.New(st.sightings, st.cases, sightingOpts...)
	dashboard := dashboardservice.New(st.cases, st.sightings, dashboardOpts...)

	limiter := ratelimit.New(buckets, logger, limiterOpts...)

	a.router = httptransport.NewRouter(httptransport.Config{
		Logger:            logger,
		Gatherer:          reg,
		Checks:            checks,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		Handlers: []httptransport.Registrar{
			identityhandler.New(identity, identity, logger),
			profilehandler.New(profiles, identity, cfg.AdminToken, logger),
			caseshandler.New(cases, searcher, profiles, identity, logger),
			sightingshandler.New(sightings, profiles, identity, logger,
				sightingshandler.WithSubmitLimiter(limiter.PerIP(sightingScope, cfg.Sightings.RateLimitPerMinute)),
			),
			dashboardhandler.New(dashboard, profiles, identity, logger),
		},
	})

	a.runners = append(a.runners, profileservice.NewWorker(profiles, cfg.Registrations.RetryInterval, logger))
	if cfg.Kafka.Enabled() {
		relay, err := newRelay(ctx, cfg.Kafka, db, txRunner, logger, reg)
		if err != nil {
			a.Close()
			return nil, err
		}
		if relay != nil {
			a.runners = append(a.runners, relay)
			a.closers = append(a.closers, relay.Close)
		}
	}
	if cfg.AdminToken == "" {
		logger.Warn("ADMIN_API_TOKEN not set; verification review is disabled")
	}
	return a, nil
}

type relayRunner struct {
	*auditrelay.Relay
	producer *kafka.Producer
}

func (r relayRunner) Close() error {
	r.producer.Close()
	return nil
}

// newRelay builds the outbox relay. The outbox only exists in PostgreSQL.
func newRelay(ctx context.Context, cfg config.KafkaConfig, db *sql.DB, tx *postgres.TxRunner, logger *slog.Logger, reg prometheus.Registerer) (*relayRunner, error) {
	if db == nil {
		logger.Warn("KAFKA_BROKERS set without DATABASE_URL; audit relay disabled")
		return nil, nil
	}
	producer, err := kafka.NewProducer(cfg.Brokers, "findthem-audit-relay")
	if err != nil {
		return nil, err
	}
	if err := producer.EnsureTopic(ctx, cfg.AuditTopic); err != nil {
		producer.Close()
		return nil, err
	}
	relay := auditrelay.NewRelay(auditpostgres.New(db), producer, tx, cfg.AuditTopic,
		auditrelay.WithLogger(logger),
		auditrelay.WithMetrics(auditmetrics.New(reg)),
		auditrelay.WithInterval(cfg.RelayInterval),
		auditrelay.WithBatch(cfg.RelayBatch),
	)
	return &relayRunner{Relay: relay, producer: producer}, nil
}
