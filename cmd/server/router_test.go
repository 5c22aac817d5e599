package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"microbonds/internal/ledger/sandbox"
	"microbonds/internal/platform/config"
	"microbonds/pkg/domain"
	"microbonds/pkg/testutil"
)

const (
	ownerAccount   = domain.AccountID("owner.test.near")
	factoryAccount = domain.AccountID("factory.test.near")
	custodyAccount = domain.AccountID("custody.test.near")
	adminToken     = "admin-secret"
)

// RouterSuite builds the application once: the Prometheus collectors it
// registers are process-wide.
type RouterSuite struct {
	suite.Suite
	app     *app
	sandbox *sandbox.Sandbox
	router  http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupSuite() {
	cfg := config.Server{
		JWTSigningKey: "test-key",
		AdminAPIToken: adminToken,
		Factory: config.FactoryConfig{
			OwnerID:             ownerAccount,
			AccountID:           factoryAccount,
			StoragePricePerByte: domain.NewAmount(1),
		},
		Custody:  config.CustodyConfig{OwnerID: ownerAccount, AccountID: custodyAccount},
		Registry: config.RegistryConfig{OwnerID: ownerAccount},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sb := sandbox.New(sandbox.WithBalances(map[domain.AccountID]domain.Amount{
		ownerAccount:   domain.NewAmount(1_000),
		factoryAccount: domain.ZeroAmount(),
		custodyAccount: domain.ZeroAmount(),
	}))

	a, err := buildApp(cfg, &infra{}, sb, log)
	s.Require().NoError(err)
	s.app = a
	s.sandbox = sb
	s.router = newRouter(cfg, a, &infra{}, log)
}

func (s *RouterSuite) TearDownSuite() {
	s.app.publisher.Close()
}

func (s *RouterSuite) bearer(req *http.Request, account domain.AccountID) *http.Request {
	token, err := s.app.jwt.GenerateAccessToken(account, time.Minute)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func (s *RouterSuite) TestHealthAndMetrics() {
	rec := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
	s.Equal(http.StatusOK, rec.Code)
	s.NotEmpty(rec.Header().Get("X-Request-ID"))

	rec = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/metrics"))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "microbonds_http_requests_total")
}

func (s *RouterSuite) TestMutationsRequireBearerToken() {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/factory/municipalities", `{"municipality_id":"springfield"}`)
	rec := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rec, http.StatusUnauthorized, "unauthorized")

	req = testutil.NewRequestWithBody(s.T(), http.MethodPost, "/factory/municipalities", `{"municipality_id":"springfield"}`)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = testutil.DoRequest(s.router, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *RouterSuite) TestRegistryFlow() {
	req := s.bearer(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/factory/municipalities",
		`{"municipality_id":"riverton"}`), ownerAccount)
	rec := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusCreated, rec.Code)

	req = s.bearer(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/registry/municipalities/riverton/users",
		`{"user_id":"u1"}`), "stranger.test.near")
	rec = testutil.DoRequest(s.router, req)
	s.Equal(http.StatusUnauthorized, rec.Code)

	req = s.bearer(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/registry/municipalities/riverton/users",
		`{"user_id":"u1"}`), ownerAccount)
	rec = testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/factory/municipalities"))
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "riverton")

	rec = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/registry/municipalities/riverton/users/u1"))
	s.JSONEq(`{"municipality_id":"riverton","user_id":"u1","member":true}`, rec.Body.String())
}

func (s *RouterSuite) TestAdminEndpoints() {
	rec := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/events"))
	s.Equal(http.StatusUnauthorized, rec.Code)

	req := s.bearer(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/factory/municipalities",
		`{"municipality_id":"lakeside","memo":"charter"}`), ownerAccount)
	s.Require().Equal(http.StatusCreated, testutil.DoRequest(s.router, req).Code)

	req = testutil.NewRequest(s.T(), http.MethodGet, "/admin/events?subject=lakeside")
	req.Header.Set("X-Admin-Token", adminToken)
	rec = testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `add_municipality`)
	s.Contains(rec.Body.String(), `charter`)

	req = testutil.NewRequestWithBody(s.T(), http.MethodPost, "/admin/tokens", `{"account_id":"alice.test.near"}`)
	req.Header.Set("X-Admin-Token", adminToken)
	rec = testutil.DoRequest(s.router, req)
	s.Equal(http.StatusCreated, rec.Code)
}

func (s *RouterSuite) TestRevokedTokenIsRejected() {
	token, err := s.app.jwt.GenerateAccessToken(ownerAccount, time.Minute)
	s.Require().NoError(err)

	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/admin/tokens/revoke",
		fmt.Sprintf(`{"access_token":%q}`, token))
	req.Header.Set("X-Admin-Token", adminToken)
	s.Require().Equal(http.StatusNoContent, testutil.DoRequest(s.router, req).Code)

	req = testutil.NewRequestWithBody(s.T(), http.MethodPost, "/factory/municipalities", `{"municipality_id":"ghosttown"}`)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rec, http.StatusUnauthorized, "unauthorized")
}

func (s *RouterSuite) post(path, body string) *httptest.ResponseRecorder {
	req := s.bearer(testutil.NewRequestWithBody(s.T(), http.MethodPost, path, body), ownerAccount)
	return testutil.DoRequest(s.router, req)
}

func (s *RouterSuite) TestDeployThroughSandbox() {
	rec := s.post("/factory/versions", "wasm")
	s.Require().Equal(http.StatusCreated, rec.Code)
	version := testutil.UnmarshalResponse[struct {
		TokenVersion uint64 `json:"token_version"`
	}](s.T(), rec).TokenVersion

	s.Require().Equal(http.StatusCreated, s.post("/factory/municipalities", `{"municipality_id":"harbor"}`).Code)
	s.Require().Equal(http.StatusCreated, s.post("/factory/municipalities/harbor/projects", `{"project_id":"pier"}`).Code)

	rec = s.post("/factory/deployments", fmt.Sprintf(`{
		"municipality_id":"harbor",
		"project_id":"pier",
		"token_version":%d,
		"token_account_name":"pierbond",
		"token_name":"Pier Bond",
		"token_symbol":"PIER",
		"attached_deposit":"100"
	}`, version))
	s.Require().Equal(http.StatusAccepted, rec.Code, rec.Body.String())
	deployment := testutil.UnmarshalResponse[struct {
		CorrelationID string `json:"correlation_id"`
		Status        string `json:"status"`
	}](s.T(), rec)
	s.Equal("pending", deployment.Status)

	s.sandbox.Drain(context.Background())

	rec = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet,
		"/factory/deployments/"+deployment.CorrelationID))
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"status":"committed"`)

	rec = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet,
		"/factory/municipalities/harbor/projects/pier/tokens"))
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "pierbond.factory.test.near")
}
