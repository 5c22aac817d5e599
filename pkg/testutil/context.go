package testutil

import (
	"net/http"

	"microbonds/pkg/domain"
	"microbonds/pkg/requestcontext"
)

// WithCaller attaches the caller account the auth middleware would resolve
// from a bearer token. Invalid account ids leave the request anonymous.
func WithCaller(req *http.Request, accountID string) *http.Request {
	caller, err := domain.ParseAccountID(accountID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}
