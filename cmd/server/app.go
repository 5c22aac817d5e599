package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"microbonds/internal/admin"
	custodyhandler "microbonds/internal/custody/handler"
	custodymetrics "microbonds/internal/custody/metrics"
	custodyservice "microbonds/internal/custody/service"
	custodymemory "microbonds/internal/custody/store/memory"
	custodypostgres "microbonds/internal/custody/store/postgres"
	factoryhandler "microbonds/internal/factory/handler"
	factorymetrics "microbonds/internal/factory/metrics"
	factoryservice "microbonds/internal/factory/service"
	factorymemory "microbonds/internal/factory/store/memory"
	factorypostgres "microbonds/internal/factory/store/postgres"
	jwttoken "microbonds/internal/jwt_token"
	"microbonds/internal/jwt_token/revocation"
	"microbonds/internal/ledger"
	membershiphandler "microbonds/internal/membership/handler"
	membershipservice "microbonds/internal/membership/service"
	membershipmemory "microbonds/internal/membership/store/memory"
	membershipredis "microbonds/internal/membership/store/redis"
	"microbonds/internal/platform/config"
	httpmetrics "microbonds/internal/platform/metrics"
	ratelimitmetrics "microbonds/internal/ratelimit/metrics"
	ratelimit "microbonds/internal/ratelimit/middleware"
	"microbonds/internal/ratelimit/models"
	"microbonds/internal/ratelimit/store/bucket"
	audit "microbonds/pkg/platform/audit"
	"microbonds/pkg/platform/audit/publisher"
	auditmemory "microbonds/pkg/platform/audit/store/memory"
	auditpostgres "microbonds/pkg/platform/audit/store/postgres"
	"microbonds/pkg/platform/httputil"
	adminmw "microbonds/pkg/platform/middleware/admin"
	authmw "microbonds/pkg/platform/middleware/auth"
	"microbonds/pkg/platform/middleware/metadata"
	"microbonds/pkg/platform/middleware/request"
	"microbonds/pkg/platform/middleware/requesttime"
	txcontext "microbonds/pkg/platform/tx"
)

const (
	jwtIssuer   = "microbonds"
	jwtAudience = "microbonds-api"
)

type auditStore interface {
	audit.Store
	audit.Outbox
}

type revocationList interface {
	authmw.RevocationList
	admin.TokenRevoker
}

type app struct {
	factory    *factoryservice.Service
	custody    *custodyservice.Service
	membership *membershipservice.Service
	publisher  *publisher.Publisher
	outbox     audit.Outbox
	jwt        *jwttoken.JWTService
	revoked    revocationList
}

// buildApp picks a store per service from the configured infrastructure.
// With Postgres, the audit publisher stays synchronous so events commit in
// the same transaction as the state change they describe.
func buildApp(cfg config.Server, in *infra, env ledger.Environment, log *slog.Logger) (*app, error) {
	var events auditStore = auditmemory.NewInMemoryStore()
	if in.db != nil {
		events = auditpostgres.New(in.db)
	}
	pub := publisher.NewPublisher(events,
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetrics()),
	)

	factoryOpts := []factoryservice.Option{
		factoryservice.WithLogger(log),
		factoryservice.WithAuditPublisher(pub),
		factoryservice.WithMetrics(factorymetrics.New()),
	}
	var factoryStore factoryservice.Store = factorymemory.NewInMemoryStore()
	if in.db != nil {
		pg := factorypostgres.New(in.db)
		factoryStore = pg
		factoryOpts = append(factoryOpts, factoryservice.WithStoreTx(
			txcontext.NewRunner[factoryservice.Store](in.db, pg, factorypostgres.LockKey)))
	}
	factory, err := factoryservice.New(factoryStore, env, factoryservice.Config{
		OwnerID:                cfg.Factory.OwnerID,
		AccountID:              cfg.Factory.AccountID,
		StoragePricePerByte:    cfg.Factory.StoragePricePerByte,
		AccountCreationReserve: cfg.Factory.AccountCreationReserve,
	}, factoryOpts...)
	if err != nil {
		return nil, err
	}

	custodyOpts := []custodyservice.Option{
		custodyservice.WithLogger(log),
		custodyservice.WithAuditPublisher(pub),
		custodyservice.WithMetrics(custodymetrics.New()),
	}
	var custodyStore custodyservice.Store = custodymemory.NewInMemoryStore()
	if in.db != nil {
		pg := custodypostgres.New(in.db)
		custodyStore = pg
		custodyOpts = append(custodyOpts, custodyservice.WithStoreTx(
			txcontext.NewRunner[custodyservice.Store](in.db, pg, custodypostgres.LockKey)))
	}
	custody, err := custodyservice.New(custodyStore, env, custodyservice.Config{
		OwnerID:   cfg.Custody.OwnerID,
		AccountID: cfg.Custody.AccountID,
	}, custodyOpts...)
	if err != nil {
		return nil, err
	}

	var membershipStore membershipservice.Store = membershipmemory.NewInMemoryStore()
	if in.redis != nil {
		membershipStore = membershipredis.New(in.redis.Client)
	}
	membership, err := membershipservice.New(membershipStore, cfg.Registry.OwnerID,
		membershipservice.WithLogger(log),
		membershipservice.WithAuditPublisher(pub),
	)
	if err != nil {
		return nil, err
	}

	var revoked revocationList = revocation.NewInMemoryTRL()
	if in.redis != nil {
		revoked = revocation.NewRedisTRL(in.redis.Client)
	}

	return &app{
		factory:    factory,
		custody:    custody,
		membership: membership,
		publisher:  pub,
		outbox:     events,
		jwt:        jwttoken.NewJWTService(cfg.JWTSigningKey, jwtIssuer, jwtAudience),
		revoked:    revoked,
	}, nil
}

func newRouter(cfg config.Server, a *app, in *infra, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(log))
	r.Use(request.Recovery(log))
	r.Use(requesttime.Middleware)
	r.Use(httpmetrics.New().Middleware)

	r.Get("/healthz", healthHandler(in))
	r.Handle("/metrics", promhttp.Handler())

	factory := factoryhandler.New(a.factory, log)
	custody := custodyhandler.New(a.custody, log)
	membership := membershiphandler.New(a.membership, log)
	limiter := newRateLimiter(cfg.RateLimit, in, log)

	r.Group(func(r chi.Router) {
		r.Use(limiter.RateLimit(models.ClassRead))
		factory.Register(r)
		custody.Register(r)
		membership.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireCaller(a.jwt.Callers(), log,
			authmw.WithRevocationList(a.revoked)))
		r.Use(limiter.RateLimitCaller(models.ClassWrite))
		factory.RegisterMutations(r)
		custody.RegisterMutations(r)
		membership.RegisterMutations(r)
	})

	if cfg.AdminAPIToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(adminmw.RequireAdminToken(cfg.AdminAPIToken, log))
			admin.New(a.publisher, a.jwt, a.revoked, log).Register(r)
		})
	}
	return r
}

// newRateLimiter shares windows through Redis when configured and falls back
// to process-local windows while Redis is failing.
func newRateLimiter(cfg config.RateLimitConfig, in *infra, log *slog.Logger) *ratelimit.Middleware {
	opts := []ratelimit.Option{
		ratelimit.WithDisabled(cfg.Disabled),
		ratelimit.WithMetrics(ratelimitmetrics.New()),
		ratelimit.WithLimit(models.ClassRead, models.Limit{Requests: cfg.ReadsPerMinute, Window: time.Minute}),
		ratelimit.WithLimit(models.ClassWrite, models.Limit{Requests: cfg.WritesPerMinute, Window: time.Minute}),
	}
	if in.redis == nil {
		return ratelimit.New(bucket.New(), log, opts...)
	}
	opts = append(opts, ratelimit.WithFallback(bucket.New()))
	return ratelimit.New(bucket.NewRedis(in.redis.Client), log, opts...)
}

// healthHandler reports unhealthy when any configured dependency is down.
func healthHandler(in *infra) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{}
		healthy := true
		record := func(name string, err error) {
			if err != nil {
				healthy = false
				status[name] = err.Error()
				return
			}
			status[name] = "ok"
		}
		if in.db != nil {
			record("postgres", in.db.PingContext(ctx))
		}
		if in.redis != nil {
			record("redis", in.redis.Health(ctx))
		}
		if in.producer != nil {
			record("kafka", in.producer.Health(ctx))
		}

		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, status)
	}
}
