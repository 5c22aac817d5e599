package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"microbonds/internal/custody/handler/mocks"
	"microbonds/internal/custody/models"
	"microbonds/pkg/domain"
	dErrors "microbonds/pkg/domain-errors"
	"microbonds/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/custody-mocks.go -package=mocks Service
type CustodyHandlerSuite struct {
	suite.Suite
	router  http.Handler
	service *mocks.MockService
}

func TestCustodyHandlerSuite(t *testing.T) {
	suite.Run(t, new(CustodyHandlerSuite))
}

func (s *CustodyHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)

	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)
	h.RegisterMutations(r)
	s.router = r
}

func (s *CustodyHandlerSuite) TestAddToken() {
	s.Run("created", func() {
		s.service.EXPECT().AddTokenForOwner(gomock.Any(), models.AddTokenRequest{
			OwnerID:        "user-1",
			TokenAccountID: "bond.factory.test.near",
			TokenID:        "1",
		}).Return(nil)
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/custody/owners/user-1/tokens",
			AddTokenRequest{TokenAccountID: "bond.factory.test.near", TokenID: "1"})

		rec := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusCreated, rec.Code)
	})

	s.Run("duplicate", func() {
		s.service.EXPECT().AddTokenForOwner(gomock.Any(), gomock.Any()).
			Return(dErrors.New(dErrors.CodeAlreadyExists, "token info already exists"))
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/custody/owners/user-1/tokens",
			AddTokenRequest{TokenAccountID: "bond.factory.test.near", TokenID: "1"})

		rec := testutil.DoRequest(s.router, req)

		testutil.AssertStatusAndError(s.T(), rec, http.StatusConflict, "already_exists")
	})

	s.Run("missing token id", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/custody/owners/user-1/tokens",
			`{"token_account_id":"bond.factory.test.near"}`)
		rec := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *CustodyHandlerSuite) TestTokensForOwner() {
	s.service.EXPECT().TokensForOwner(gomock.Any(), "user-1", domain.NewPage(0, 2)).
		Return([]string{"bond.factory.test.near:1"}, nil)

	rec := testutil.DoRequest(s.router,
		httptest.NewRequest(http.MethodGet, "/custody/owners/user-1/tokens?from_index=0&limit=2", nil))

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"owner_id":"user-1","tokens":["bond.factory.test.near:1"]}`, rec.Body.String())
}

func (s *CustodyHandlerSuite) TestLinkAccount() {
	s.Run("change reports the previous account", func() {
		s.service.EXPECT().LinkAccount(gomock.Any(), "user-1", domain.AccountID("bob.test.near")).
			Return(models.LinkResult{Previous: "alice.test.near", Changed: true}, nil)
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/custody/users/user-1/account",
			LinkAccountRequest{AccountID: "bob.test.near"})

		rec := testutil.DoRequest(s.router, req)

		s.Equal(http.StatusOK, rec.Code)
		s.JSONEq(`{"user_id":"user-1","account_id":"bob.test.near","previous_account_id":"alice.test.near","changed":true}`,
			rec.Body.String())
	})

	s.Run("invalid account id never reaches the service", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/custody/users/user-1/account",
			LinkAccountRequest{AccountID: "Bob"})
		rec := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unauthorized", func() {
		s.service.EXPECT().LinkAccount(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(models.LinkResult{}, dErrors.New(dErrors.CodeUnauthorized, "only the custody owner can call this method"))
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/custody/users/user-1/account",
			LinkAccountRequest{AccountID: "bob.test.near"})
		rec := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func (s *CustodyHandlerSuite) TestAccountForUser() {
	s.Run("linked", func() {
		s.service.EXPECT().AccountForUser(gomock.Any(), "user-1").Return(domain.AccountID("alice.test.near"), true, nil)
		rec := testutil.DoRequest(s.router, httptest.NewRequest(http.MethodGet, "/custody/users/user-1/account", nil))
		s.JSONEq(`{"user_id":"user-1","account_id":"alice.test.near"}`, rec.Body.String())
	})

	s.Run("absent is null", func() {
		s.service.EXPECT().AccountForUser(gomock.Any(), "user-2").Return(domain.AccountID(""), false, nil)
		rec := testutil.DoRequest(s.router, httptest.NewRequest(http.MethodGet, "/custody/users/user-2/account", nil))
		s.Equal(http.StatusOK, rec.Code)
		s.JSONEq(`{"user_id":"user-2","account_id":null}`, rec.Body.String())
	})
}

func (s *CustodyHandlerSuite) TestSendToken() {
	body := SendTokenRequest{OwnerID: "user-1", TokenAccountID: "bond.factory.test.near", TokenID: "1"}

	s.Run("accepted", func() {
		pending := &models.PendingTransfer{
			CorrelationID: domain.NewCorrelationID(),
			Token:         models.OwnedToken{OwnerID: "user-1", TokenAccountID: "bond.factory.test.near", TokenID: "1"},
			ReceiverID:    "alice.test.near",
			Status:        models.TransferPending,
			CreatedAt:     time.Now(),
		}
		s.service.EXPECT().SendTokenToOwner(gomock.Any(), body.ToModel()).Return(pending, nil)

		rec := testutil.DoRequest(s.router, testutil.WithCaller(
			testutil.NewJSONRequest(s.T(), http.MethodPost, "/custody/transfers", body), "alice.test.near"))

		s.Equal(http.StatusAccepted, rec.Code)
		resp := testutil.UnmarshalResponse[TransferResponse](s.T(), rec)
		s.Equal(pending.CorrelationID.String(), resp.CorrelationID)
		s.Equal("alice.test.near", resp.ReceiverID)
	})

	cases := []struct {
		code   dErrors.Code
		status int
	}{
		{dErrors.CodeNoLinkedAccount, http.StatusNotFound},
		{dErrors.CodeForbidden, http.StatusForbidden},
		{dErrors.CodeNotOwned, http.StatusUnprocessableEntity},
		{dErrors.CodeConflict, http.StatusConflict},
	}
	for _, tc := range cases {
		s.Run(string(tc.code), func() {
			s.service.EXPECT().SendTokenToOwner(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(tc.code, "rejected"))
			rec := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/custody/transfers", body))
			testutil.AssertStatusAndError(s.T(), rec, tc.status, string(tc.code))
		})
	}
}

func (s *CustodyHandlerSuite) TestTransferStatus() {
	id := domain.NewCorrelationID()
	done := &models.PendingTransfer{CorrelationID: id, Status: models.TransferFailed, Reason: "boom"}

	s.Run("await with wait", func() {
		s.service.EXPECT().AwaitTransfer(gomock.Any(), id).DoAndReturn(
			func(ctx context.Context, _ domain.CorrelationID) (*models.PendingTransfer, error) {
				_, hasDeadline := ctx.Deadline()
				s.True(hasDeadline, "wait bounds the await")
				return done, nil
			})
		rec := testutil.DoRequest(s.router, httptest.NewRequest(http.MethodGet, "/custody/transfers/"+id.String()+"?wait=1s", nil))
		s.Equal(http.StatusOK, rec.Code)
		resp := testutil.UnmarshalResponse[TransferResponse](s.T(), rec)
		s.Equal("failed", resp.Status)
		s.Equal("boom", resp.Reason)
	})

	s.Run("unknown", func() {
		s.service.EXPECT().Transfer(gomock.Any(), id).Return(nil, dErrors.New(dErrors.CodeNotFound, "transfer does not exist"))
		rec := testutil.DoRequest(s.router, httptest.NewRequest(http.MethodGet, "/custody/transfers/"+id.String(), nil))
		s.Equal(http.StatusNotFound, rec.Code)
	})
}
