// Package requestcontext carries request-scoped values from the HTTP edge to
// services and stores without importing net/http.
//
// The caller account is the only identity the domain sees. Ledger callbacks
// run outside any request and re-attach the original caller before emitting
// events.
package requestcontext

import (
	"context"
	"time"

	"microbonds/pkg/domain"
)

type (
	callerKey    struct{}
	requestIDKey struct{}
	nowKey       struct{}
	clientIPKey  struct{}
)

// Caller returns the authenticated account behind the request, or the zero
// AccountID for anonymous reads and background work.
func Caller(ctx context.Context) domain.AccountID {
	caller, _ := ctx.Value(callerKey{}).(domain.AccountID)
	return caller
}

func WithCaller(ctx context.Context, caller domain.AccountID) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now is the instant the request started. Pending records and audit events
// written while serving one request share it. Outside a request it is the
// wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(nowKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, nowKey{}, t)
}

// ClientIP is the address rate limits are keyed on for anonymous requests.
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}
