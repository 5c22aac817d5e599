package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"microbonds/internal/custody/models"
	"microbonds/internal/custody/store/memory"
	"microbonds/internal/ledger"
	"microbonds/internal/ledger/mocks"
	"microbonds/internal/ledger/sandbox"
	"microbonds/pkg/domain"
	dErrors "microbonds/pkg/domain-errors"
	audit "microbonds/pkg/platform/audit"
	"microbonds/pkg/platform/audit/publisher"
	auditmemory "microbonds/pkg/platform/audit/store/memory"
	"microbonds/pkg/requestcontext"
	"microbonds/pkg/testutil"
)

const (
	ownerAccount   = domain.AccountID("owner.test.near")
	custodyAccount = domain.AccountID("custody.test.near")
	factoryAccount = domain.AccountID("factory.test.near")
	aliceAccount   = domain.AccountID("alice.test.near")
	bobAccount     = domain.AccountID("bob.test.near")
	tokenAccount   = domain.AccountID("bond.factory.test.near")
	userID         = "user-1"
)

type CustodyServiceSuite struct {
	suite.Suite
	ctx     context.Context
	sandbox *sandbox.Sandbox
	store   *memory.InMemoryStore
	events  *auditmemory.InMemoryStore
	service *Service
}

func TestCustodyServiceSuite(t *testing.T) {
	suite.Run(t, new(CustodyServiceSuite))
}

func (s *CustodyServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithCaller(context.Background(), ownerAccount)
	s.sandbox = sandbox.New(sandbox.WithBalances(map[domain.AccountID]domain.Amount{
		factoryAccount: domain.NewAmount(1_000_000),
		custodyAccount: domain.NewAmount(10),
		aliceAccount:   domain.NewAmount(10),
		bobAccount:     domain.NewAmount(10),
	}))
	s.deployTokenContract("1", "2")

	s.store = memory.NewInMemoryStore()
	s.events = auditmemory.NewInMemoryStore()
	svc, err := New(s.store, s.sandbox, Config{OwnerID: ownerAccount, AccountID: custodyAccount},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(publisher.NewPublisher(s.events)),
	)
	s.Require().NoError(err)
	s.service = svc
}

// deployTokenContract creates a token contract owned by the custody account
// and mints the given token ids to it.
func (s *CustodyServiceSuite) deployTokenContract(tokenIDs ...string) {
	ctx := context.Background()
	noop := func(context.Context, ledger.Outcome) {}
	args, err := json.Marshal(map[string]any{
		"owner_id": custodyAccount,
		"metadata": map[string]any{"spec": "nft-0", "name": "Bridge Bond", "symbol": "BRB"},
	})
	s.Require().NoError(err)
	s.Require().NoError(s.sandbox.Deploy(ctx, ledger.DeployCall{
		CorrelationID: domain.NewCorrelationID(),
		Parent:        factoryAccount,
		Account:       tokenAccount,
		Deposit:       domain.NewAmount(100),
		Code:          []byte("wasm"),
		InitMethod:    sandbox.MethodInit,
		InitArgs:      args,
		Signer:        ownerAccount,
		OnComplete:    noop,
	}))
	for _, id := range tokenIDs {
		mint, err := json.Marshal(map[string]any{"token_id": id, "receiver_id": custodyAccount})
		s.Require().NoError(err)
		s.Require().NoError(s.sandbox.Call(ctx, ledger.FunctionCall{
			CorrelationID: domain.NewCorrelationID(),
			Predecessor:   custodyAccount,
			Receiver:      tokenAccount,
			Method:        sandbox.MethodMint,
			Args:          mint,
			Deposit:       domain.ZeroAmount(),
			OnComplete:    noop,
		}))
	}
	s.sandbox.Drain(ctx)
}

func (s *CustodyServiceSuite) as(caller domain.AccountID) context.Context {
	return requestcontext.WithCaller(context.Background(), caller)
}

func (s *CustodyServiceSuite) addToken(ownerID, tokenID string) {
	s.Require().NoError(s.service.AddTokenForOwner(s.ctx, models.AddTokenRequest{
		OwnerID:        ownerID,
		TokenAccountID: tokenAccount,
		TokenID:        tokenID,
	}))
}

func (s *CustodyServiceSuite) sendRequest(tokenID string) models.SendTokenRequest {
	return models.SendTokenRequest{OwnerID: userID, TokenAccountID: tokenAccount, TokenID: tokenID}
}

func (s *CustodyServiceSuite) tokenOwner(tokenID string) domain.AccountID {
	raw, err := s.sandbox.View(context.Background(), tokenAccount, sandbox.MethodToken,
		json.RawMessage(`{"token_id":"`+tokenID+`"}`))
	s.Require().NoError(err)
	var tok sandbox.Token
	s.Require().NoError(json.Unmarshal(raw, &tok))
	return tok.OwnerID
}

func (s *CustodyServiceSuite) actions(subject string) []string {
	events, err := s.events.ListBySubject(context.Background(), subject)
	s.Require().NoError(err)
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Action
	}
	return out
}

func (s *CustodyServiceSuite) TestNewRequiresDependencies() {
	_, err := New(nil, s.sandbox, Config{OwnerID: ownerAccount, AccountID: custodyAccount})
	s.Error(err)
	_, err = New(s.store, nil, Config{OwnerID: ownerAccount, AccountID: custodyAccount})
	s.Error(err)
	_, err = New(s.store, s.sandbox, Config{OwnerID: ownerAccount})
	s.Error(err)
}

func (s *CustodyServiceSuite) TestAddTokenForOwner() {
	s.Run("non-owner", func() {
		err := s.service.AddTokenForOwner(s.as(aliceAccount), models.AddTokenRequest{
			OwnerID: userID, TokenAccountID: tokenAccount, TokenID: "1",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("invalid token account", func() {
		err := s.service.AddTokenForOwner(s.ctx, models.AddTokenRequest{
			OwnerID: userID, TokenAccountID: "Bond Token", TokenID: "1",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("token id may contain the delimiter", func() {
		s.addToken("user-3", "series:1:2")
		listed, err := s.service.TokensForOwner(s.ctx, "user-3", domain.Page{})
		s.Require().NoError(err)
		s.Require().Equal([]string{"bond.factory.test.near:series:1:2"}, listed)

		account, tokenID, ok := strings.Cut(listed[0], models.Delimiter)
		s.True(ok)
		s.Equal(tokenAccount.String(), account)
		s.Equal("series:1:2", tokenID)
	})

	s.Run("duplicate triple", func() {
		memo := "deposit"
		s.Require().NoError(s.service.AddTokenForOwner(s.ctx, models.AddTokenRequest{
			OwnerID: userID, TokenAccountID: tokenAccount, TokenID: "1", Memo: &memo,
		}))
		err := s.service.AddTokenForOwner(s.ctx, models.AddTokenRequest{
			OwnerID: userID, TokenAccountID: tokenAccount, TokenID: "1",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyExists))
	})

	s.Run("the same token may be recorded for another owner", func() {
		s.addToken("user-2", "1")
	})

	s.Run("event in wire format", func() {
		events, err := s.events.ListBySubject(s.ctx, userID)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(`EVENT_JSON:{"version":"1.0.0","event":"add_token","data":[{"memo":"deposit","owner_id":"user-1","token_account_id":"bond.factory.test.near","token_id":"1"}]}`,
			events[0].LogLine())
	})
}

func (s *CustodyServiceSuite) TestTokensForOwner() {
	for _, id := range []string{"1", "2", "3"} {
		s.addToken(userID, id)
	}

	all, err := s.service.TokensForOwner(s.ctx, userID, domain.Page{})
	s.Require().NoError(err)
	s.Equal([]string{
		"bond.factory.test.near:1",
		"bond.factory.test.near:2",
		"bond.factory.test.near:3",
	}, all)

	page, err := s.service.TokensForOwner(s.ctx, userID, domain.NewPage(1, 1))
	s.Require().NoError(err)
	s.Equal([]string{"bond.factory.test.near:2"}, page)

	past, err := s.service.TokensForOwner(s.ctx, userID, domain.NewPage(10, 5))
	s.Require().NoError(err)
	s.Empty(past)

	unknown, err := s.service.TokensForOwner(s.ctx, "nobody", domain.Page{})
	s.Require().NoError(err)
	s.Empty(unknown)
}

func (s *CustodyServiceSuite) TestLinkAccount() {
	s.Run("non-owner", func() {
		_, err := s.service.LinkAccount(s.as(aliceAccount), userID, aliceAccount)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("invalid account id", func() {
		_, err := s.service.LinkAccount(s.ctx, userID, "Alice")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("unlinked user", func() {
		_, ok, err := s.service.AccountForUser(s.ctx, userID)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("first link", func() {
		result, err := s.service.LinkAccount(s.ctx, userID, aliceAccount)
		s.Require().NoError(err)
		s.True(result.Changed)
		s.True(result.Previous.IsZero())
	})

	s.Run("same account is a no-op", func() {
		result, err := s.service.LinkAccount(s.ctx, userID, aliceAccount)
		s.Require().NoError(err)
		s.False(result.Changed)
	})

	s.Run("relink overwrites", func() {
		result, err := s.service.LinkAccount(s.ctx, userID, bobAccount)
		s.Require().NoError(err)
		s.True(result.Changed)
		s.Equal(aliceAccount, result.Previous)

		account, ok, err := s.service.AccountForUser(s.ctx, userID)
		s.Require().NoError(err)
		s.True(ok)
		s.Equal(bobAccount, account)
	})

	s.Run("events", func() {
		s.Equal([]string{string(audit.EventLinkAccount), string(audit.EventChangeAccount)}, s.actions(userID))
		events, err := s.events.ListBySubject(s.ctx, userID)
		s.Require().NoError(err)
		s.Equal(map[string]string{
			"user_id":        userID,
			"old_account_id": aliceAccount.String(),
			"new_account_id": bobAccount.String(),
		}, events[1].Data)
	})
}

func (s *CustodyServiceSuite) TestSendTokenToOwner_Preconditions() {
	s.Run("no linked account", func() {
		_, err := s.service.SendTokenToOwner(s.as(aliceAccount), s.sendRequest("1"))
		s.True(dErrors.HasCode(err, dErrors.CodeNoLinkedAccount))
	})

	_, err := s.service.LinkAccount(s.ctx, userID, aliceAccount)
	s.Require().NoError(err)

	s.Run("caller is not the linked account", func() {
		_, err := s.service.SendTokenToOwner(s.as(bobAccount), s.sendRequest("1"))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("token was never deposited", func() {
		_, err := s.service.SendTokenToOwner(s.as(aliceAccount), s.sendRequest("1"))
		s.True(dErrors.HasCode(err, dErrors.CodeNotOwned))
	})

	s.Zero(s.sandbox.Pending(), "no ledger call on rejection")
}

func (s *CustodyServiceSuite) TestSendTokenToOwner_RemovesEntryOnlyAfterCallback() {
	s.addToken(userID, "1")
	_, err := s.service.LinkAccount(s.ctx, userID, aliceAccount)
	s.Require().NoError(err)

	resolveMemo := "released"
	req := s.sendRequest("1")
	req.ResolveMemo = &resolveMemo

	testutil.Given(s.T(), "an accepted withdrawal", func(t *testing.T) {
		pending, err := s.service.SendTokenToOwner(s.as(aliceAccount), req)
		require.NoError(t, err)
		assert.Equal(t, models.TransferPending, pending.Status)
		assert.Equal(t, aliceAccount, pending.ReceiverID)

		testutil.When(t, "the token contract has not executed the transfer", func(t *testing.T) {
			tokens, err := s.service.TokensForOwner(s.ctx, userID, domain.Page{})
			require.NoError(t, err)
			assert.Len(t, tokens, 1, "custody entry is kept until confirmation")

			_, err = s.service.SendTokenToOwner(s.as(aliceAccount), req)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		})

		testutil.When(t, "the transfer is confirmed", func(t *testing.T) {
			require.Equal(t, 1, s.sandbox.Drain(context.Background()))

			testutil.Then(t, "the custody entry is removed", func(t *testing.T) {
				tokens, err := s.service.TokensForOwner(s.ctx, userID, domain.Page{})
				require.NoError(t, err)
				assert.Empty(t, tokens)
				assert.Equal(t, aliceAccount, s.tokenOwner("1"))

				got, err := s.service.Transfer(s.ctx, pending.CorrelationID)
				require.NoError(t, err)
				assert.Equal(t, models.TransferCommitted, got.Status)
			})

			testutil.Then(t, "a send_token event carries the resolve memo", func(t *testing.T) {
				events, err := s.events.ListBySubject(s.ctx, userID)
				require.NoError(t, err)
				last := events[len(events)-1]
				assert.Equal(t, string(audit.EventSendToken), last.Action)
				assert.Equal(t, "released", last.Data["memo"])
				assert.Equal(t, aliceAccount.String(), last.ActorID)
			})
		})
	})
}

func (s *CustodyServiceSuite) TestSendTokenToOwner_FailureKeepsEntry() {
	s.addToken(userID, "1")
	_, err := s.service.LinkAccount(s.ctx, userID, aliceAccount)
	s.Require().NoError(err)
	s.sandbox.FailNext(tokenAccount, "transfer panicked")

	pending, err := s.service.SendTokenToOwner(s.as(aliceAccount), s.sendRequest("1"))
	s.Require().NoError(err)
	s.sandbox.Drain(context.Background())

	got, err := s.service.Transfer(s.ctx, pending.CorrelationID)
	s.Require().NoError(err)
	s.Equal(models.TransferFailed, got.Status)
	s.Equal("transfer panicked", got.Reason)

	tokens, err := s.service.TokensForOwner(s.ctx, userID, domain.Page{})
	s.Require().NoError(err)
	s.Equal([]string{"bond.factory.test.near:1"}, tokens)
	s.Equal(custodyAccount, s.tokenOwner("1"))
	s.Contains(s.actions(userID), string(audit.EventSendFailed))

	s.Run("the withdrawal can be retried", func() {
		_, err := s.service.SendTokenToOwner(s.as(aliceAccount), s.sendRequest("1"))
		s.Require().NoError(err)
		s.sandbox.Drain(context.Background())
		tokens, err := s.service.TokensForOwner(s.ctx, userID, domain.Page{})
		s.Require().NoError(err)
		s.Empty(tokens)
	})
}

func (s *CustodyServiceSuite) TestSendTokenToOwner_TokenNotHeldOnLedger() {
	s.addToken(userID, "99")
	_, err := s.service.LinkAccount(s.ctx, userID, aliceAccount)
	s.Require().NoError(err)

	pending, err := s.service.SendTokenToOwner(s.as(aliceAccount), s.sendRequest("99"))
	s.Require().NoError(err)
	s.sandbox.Drain(context.Background())

	got, err := s.service.Transfer(s.ctx, pending.CorrelationID)
	s.Require().NoError(err)
	s.Equal(models.TransferFailed, got.Status)
	s.NotEmpty(got.Reason)

	tokens, err := s.service.TokensForOwner(s.ctx, userID, domain.Page{})
	s.Require().NoError(err)
	s.Len(tokens, 1)
}

func (s *CustodyServiceSuite) TestTransferStatus() {
	s.Run("unknown correlation id", func() {
		_, err := s.service.Transfer(s.ctx, domain.NewCorrelationID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.addToken(userID, "1")
	_, err := s.service.LinkAccount(s.ctx, userID, aliceAccount)
	s.Require().NoError(err)
	pending, err := s.service.SendTokenToOwner(s.as(aliceAccount), s.sendRequest("1"))
	s.Require().NoError(err)

	s.Run("await gives up when the context ends", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		got, err := s.service.AwaitTransfer(ctx, pending.CorrelationID)
		s.Require().NoError(err)
		s.Equal(models.TransferPending, got.Status)
	})

	s.Run("await returns once resolved", func() {
		runCtx, stop := context.WithCancel(context.Background())
		defer stop()
		go func() { _ = s.sandbox.Run(runCtx) }()

		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		defer cancel()
		got, err := s.service.AwaitTransfer(ctx, pending.CorrelationID)
		s.Require().NoError(err)
		s.Equal(models.TransferCommitted, got.Status)
	})
}

func newMockedService(t *testing.T) (*Service, *mocks.MockEnvironment, *auditmemory.InMemoryStore) {
	t.Helper()
	ctrl := gomock.NewController(t)
	env := mocks.NewMockEnvironment(ctrl)
	events := auditmemory.NewInMemoryStore()
	svc, err := New(memory.NewInMemoryStore(), env, Config{OwnerID: ownerAccount, AccountID: custodyAccount},
		WithAuditPublisher(publisher.NewPublisher(events)))
	require.NoError(t, err)

	ctx := requestcontext.WithCaller(context.Background(), ownerAccount)
	require.NoError(t, svc.AddTokenForOwner(ctx, models.AddTokenRequest{
		OwnerID: userID, TokenAccountID: tokenAccount, TokenID: "1",
	}))
	_, err = svc.LinkAccount(ctx, userID, aliceAccount)
	require.NoError(t, err)
	return svc, env, events
}

func TestSendTokenToOwner_CallShapeAndDuplicateCallbacks(t *testing.T) {
	svc, env, events := newMockedService(t)

	var captured ledger.FunctionCall
	env.EXPECT().Call(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, call ledger.FunctionCall) error {
			captured = call
			return nil
		})

	transferMemo := "to alice"
	ctx := requestcontext.WithCaller(context.Background(), aliceAccount)
	pending, err := svc.SendTokenToOwner(ctx, models.SendTokenRequest{
		OwnerID:        userID,
		TokenAccountID: tokenAccount,
		TokenID:        "1",
		TransferMemo:   &transferMemo,
	})
	require.NoError(t, err)

	assert.Equal(t, custodyAccount, captured.Predecessor)
	assert.Equal(t, aliceAccount, captured.Signer)
	assert.Equal(t, tokenAccount, captured.Receiver)
	assert.Equal(t, "nft_transfer", captured.Method)
	assert.Zero(t, captured.Deposit.Cmp(ledger.OneYocto))
	assert.JSONEq(t, `{"receiver_id":"alice.test.near","token_id":"1","memo":"to alice"}`, string(captured.Args))

	outcome := ledger.Outcome{CorrelationID: pending.CorrelationID}
	captured.OnComplete(context.Background(), outcome)
	captured.OnComplete(context.Background(), outcome)
	captured.OnComplete(context.Background(), ledger.Outcome{CorrelationID: pending.CorrelationID, Err: errors.New("late")})

	got, err := svc.Transfer(ctx, pending.CorrelationID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferCommitted, got.Status)

	recorded, err := events.ListBySubject(ctx, userID)
	require.NoError(t, err)
	var sends int
	for _, e := range recorded {
		if e.Action == string(audit.EventSendToken) || e.Action == string(audit.EventSendFailed) {
			sends++
		}
	}
	assert.Equal(t, 1, sends)
}

func TestSendTokenToOwner_LedgerRejectsCall(t *testing.T) {
	svc, env, _ := newMockedService(t)
	ctx := requestcontext.WithCaller(context.Background(), aliceAccount)
	req := models.SendTokenRequest{OwnerID: userID, TokenAccountID: tokenAccount, TokenID: "1"}

	env.EXPECT().Call(gomock.Any(), gomock.Any()).Return(errors.New("queue closed"))
	_, err := svc.SendTokenToOwner(ctx, req)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))

	tokens, err := svc.TokensForOwner(ctx, userID, domain.Page{})
	require.NoError(t, err)
	assert.Len(t, tokens, 1)

	// The rejected attempt does not hold the token.
	env.EXPECT().Call(gomock.Any(), gomock.Any()).Return(nil)
	_, err = svc.SendTokenToOwner(ctx, req)
	assert.NoError(t, err)
}
