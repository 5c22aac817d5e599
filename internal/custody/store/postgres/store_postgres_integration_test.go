//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"microbonds/internal/custody/models"
	"microbonds/internal/custody/service"
	"microbonds/internal/custody/store/postgres"
	"microbonds/internal/ledger/sandbox"
	"microbonds/pkg/domain"
	dErrors "microbonds/pkg/domain-errors"
	"microbonds/pkg/platform/audit/publisher"
	auditpostgres "microbonds/pkg/platform/audit/store/postgres"
	"microbonds/pkg/platform/sentinel"
	txcontext "microbonds/pkg/platform/tx"
	"microbonds/pkg/requestcontext"
	"microbonds/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"pending_transfers", "account_links", "owner_tokens", "audit_events", "outbox")
	s.Require().NoError(err)
}

func token(id string) models.OwnedToken {
	return models.OwnedToken{OwnerID: "user-1", TokenAccountID: "bond.factory.test.near", TokenID: id}
}

func (s *PostgresStoreSuite) TestOwnerTokens() {
	ctx := context.Background()
	for _, id := range []string{"3", "1", "2"} {
		s.Require().NoError(s.store.AddToken(ctx, token(id)))
	}
	s.ErrorIs(s.store.AddToken(ctx, token("1")), sentinel.ErrAlreadyUsed)

	s.Require().NoError(s.store.RemoveToken(ctx, token("1")))
	s.ErrorIs(s.store.RemoveToken(ctx, token("1")), sentinel.ErrNotFound)

	got, err := s.store.ListTokens(ctx, "user-1", domain.NewPage(1, 10))
	s.Require().NoError(err)
	s.Equal([]string{"bond.factory.test.near:2"}, got)

	none, err := s.store.ListTokens(ctx, "nobody", domain.Page{})
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *PostgresStoreSuite) TestLinksUpsert() {
	ctx := context.Background()
	_, err := s.store.FindLink(ctx, "user-1")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.SaveLink(ctx, "user-1", "alice.test.near"))
	s.Require().NoError(s.store.SaveLink(ctx, "user-1", "bob.test.near"))
	account, err := s.store.FindLink(ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(domain.AccountID("bob.test.near"), account)
}

func (s *PostgresStoreSuite) TestPendingTransfer() {
	ctx := context.Background()
	memo := "release"
	pending := &models.PendingTransfer{
		CorrelationID: domain.NewCorrelationID(),
		Token:         token("1"),
		ReceiverID:    "alice.test.near",
		ResolveMemo:   &memo,
		Status:        models.TransferPending,
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.store.SavePending(ctx, pending))

	dup := *pending
	dup.CorrelationID = domain.NewCorrelationID()
	s.ErrorIs(s.store.SavePending(ctx, &dup), sentinel.ErrAlreadyUsed)

	got, err := s.store.FindPending(ctx, pending.CorrelationID)
	s.Require().NoError(err)
	s.Equal(pending.Token, got.Token)
	s.Equal(&memo, got.ResolveMemo)
	s.Nil(got.TransferMemo)

	s.Require().NoError(s.store.ResolvePending(ctx, pending.CorrelationID, models.TransferFailed, "boom", time.Now()))
	s.ErrorIs(s.store.ResolvePending(ctx, pending.CorrelationID, models.TransferCommitted, "", time.Now()), sentinel.ErrInvalidState)
	s.Require().NoError(s.store.SavePending(ctx, &dup), "failed withdrawals release the token")
}

func (s *PostgresStoreSuite) TestServiceWritesOutboxInSameTransaction() {
	ctx := requestcontext.WithCaller(context.Background(), "owner.test.near")
	runner := txcontext.NewRunner[service.Store](s.postgres.DB, s.store, postgres.LockKey)
	events := auditpostgres.New(s.postgres.DB)

	svc, err := service.New(s.store, sandbox.New(), service.Config{
		OwnerID:   "owner.test.near",
		AccountID: "custody.test.near",
	},
		service.WithStoreTx(runner),
		service.WithAuditPublisher(publisher.NewPublisher(events)),
	)
	s.Require().NoError(err)

	s.Require().NoError(svc.AddTokenForOwner(ctx, models.AddTokenRequest{
		OwnerID: "user-1", TokenAccountID: "bond.factory.test.near", TokenID: "1",
	}))
	err = svc.AddTokenForOwner(ctx, models.AddTokenRequest{
		OwnerID: "user-1", TokenAccountID: "bond.factory.test.near", TokenID: "1",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyExists))

	entries, err := events.FetchUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1, "rejected calls leave no outbox entry")
	s.Equal("add_token", entries[0].EventType)
	s.Equal("user-1", entries[0].AggregateID)
}
