// Package middleware applies sliding-window rate limits per client IP or per
// authenticated caller.
package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"microbonds/internal/ratelimit/metrics"
	"microbonds/internal/ratelimit/models"
	"microbonds/pkg/platform/circuit"
	"microbonds/pkg/requestcontext"
)

// Store admits or rejects one request for a key.
type Store interface {
	Allow(ctx context.Context, key string, limit models.Limit) (*models.Result, error)
}

var defaultLimits = map[models.EndpointClass]models.Limit{
	models.ClassRead:  {Requests: 300, Window: time.Minute},
	models.ClassWrite: {Requests: 60, Window: time.Minute},
}

type Middleware struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	limits   map[models.EndpointClass]models.Limit
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithFallback serves checks from store while the primary is failing.
func WithFallback(store Store) Option {
	return func(m *Middleware) {
		m.fallback = store
	}
}

func WithLimit(class models.EndpointClass, limit models.Limit) Option {
	return func(m *Middleware) {
		if limit.Requests > 0 && limit.Window > 0 {
			m.limits[class] = limit
		}
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

// WithDisabled turns every check into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(m *Middleware) {
		m.breaker = b
	}
}

func New(primary Store, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		primary: primary,
		breaker: circuit.New("ratelimit"),
		limits:  make(map[models.EndpointClass]models.Limit, len(defaultLimits)),
		logger:  logger,
	}
	for class, limit := range defaultLimits {
		m.limits[class] = limit
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits requests per client IP.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return m.limit(class, func(r *http.Request) (string, string) {
		return models.IPKey(requestcontext.ClientIP(r.Context()), class), "ip"
	})
}

// RateLimitCaller limits requests per authenticated caller. It must run after
// the auth middleware; requests without a caller are limited by IP.
func (m *Middleware) RateLimitCaller(class models.EndpointClass) func(http.Handler) http.Handler {
	return m.limit(class, func(r *http.Request) (string, string) {
		ctx := r.Context()
		if caller := requestcontext.Caller(ctx); !caller.IsZero() {
			return models.CallerKey(caller.String(), class), "caller"
		}
		return models.IPKey(requestcontext.ClientIP(ctx), class), "ip"
	})
}

func (m *Middleware) limit(class models.EndpointClass, keyOf func(*http.Request) (string, string)) func(http.Handler) http.Handler {
	limit := m.limits[class]
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled || limit.Requests == 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			key, scope := keyOf(r)

			result, degraded, err := m.allow(ctx, key, limit)
			if err != nil {
				// Fail open: an unavailable limiter must not take the API down.
				m.logger.ErrorContext(ctx, "rate limit check failed",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result, degraded)
			if !result.Allowed {
				m.metrics.IncrementRejected(string(class), scope)
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"request_id", requestcontext.RequestID(ctx),
					"class", class,
					"scope", scope,
				)
				writeRateLimitExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// allow asks the primary store and switches to the fallback while the
// breaker is open. The fallback stays in use until the breaker closes.
func (m *Middleware) allow(ctx context.Context, key string, limit models.Limit) (*models.Result, bool, error) {
	result, err := m.primary.Allow(ctx, key, limit)
	if err == nil {
		usePrimary, change := m.breaker.RecordSuccess()
		if change.Closed {
			m.metrics.SetDegraded(false)
			m.logger.InfoContext(ctx, "rate limit store recovered")
		}
		if usePrimary || m.fallback == nil {
			return result, false, nil
		}
	} else {
		m.metrics.IncrementErrors()
		useFallback, change := m.breaker.RecordFailure()
		if change.Opened {
			m.metrics.SetDegraded(true)
			m.logger.WarnContext(ctx, "rate limit store failing, using in-memory fallback", "error", err)
		}
		if m.fallback == nil || !useFallback {
			return nil, false, err
		}
	}
	result, err = m.fallback.Allow(ctx, key, limit)
	return result, true, err
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result, degraded bool) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if degraded {
		h.Set("X-RateLimit-Status", "degraded")
	}
}

type rateLimitResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	RetryAfter       int    `json:"retry_after"`
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	retry := int(result.RetryAfter(time.Now()).Seconds())
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(rateLimitResponse{
		Error:            "rate_limit_exceeded",
		ErrorDescription: "too many requests, retry later",
		RetryAfter:       retry,
	})
}
