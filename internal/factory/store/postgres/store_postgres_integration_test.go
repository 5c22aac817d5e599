//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"microbonds/internal/factory/models"
	"microbonds/internal/factory/store/postgres"
	"microbonds/pkg/domain"
	"microbonds/pkg/platform/sentinel"
	txcontext "microbonds/pkg/platform/tx"
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
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx,
		"pending_deployments", "project_tokens", "projects", "municipalities", "token_versions")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestVersionsAreDense() {
	ctx := context.Background()
	for want := range uint64(3) {
		idx, err := s.store.AppendVersion(ctx, []byte("code"))
		s.Require().NoError(err)
		s.Equal(want, idx)
	}
	versions, err := s.store.ListVersions(ctx)
	s.Require().NoError(err)
	s.Equal([]uint64{0, 1, 2}, versions)

	_, err = s.store.FindVersion(ctx, 7)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestRegistryConstraints() {
	ctx := context.Background()
	s.Require().NoError(s.store.AddMunicipality(ctx, "springfield"))
	s.ErrorIs(s.store.AddMunicipality(ctx, "springfield"), sentinel.ErrAlreadyUsed)

	s.ErrorIs(s.store.AddProject(ctx, "ogdenville", "bridge"), sentinel.ErrNotFound)
	s.Require().NoError(s.store.AddProject(ctx, "springfield", "bridge"))
	s.ErrorIs(s.store.AddProject(ctx, "springfield", "bridge"), sentinel.ErrAlreadyUsed)

	ok, err := s.store.HasProject(ctx, "springfield", "bridge")
	s.Require().NoError(err)
	s.True(ok)
}

func (s *PostgresStoreSuite) TestPaginationKeepsInsertionOrder() {
	ctx := context.Background()
	s.Require().NoError(s.store.AddMunicipality(ctx, "springfield"))
	s.Require().NoError(s.store.AddProject(ctx, "springfield", "bridge"))
	for _, name := range []string{"c", "a", "b"} {
		ref := models.TokenReference{AccountID: domain.AccountID(name + ".factory.test.near")}
		s.Require().NoError(s.store.AddToken(ctx, "springfield", "bridge", ref))
	}

	got, err := s.store.ListTokens(ctx, "springfield", "bridge", domain.NewPage(1, 2))
	s.Require().NoError(err)
	s.Equal([]models.TokenReference{
		{AccountID: "a.factory.test.near"},
		{AccountID: "b.factory.test.near"},
	}, got)

	empty, err := s.store.ListProjects(ctx, "ogdenville", domain.Page{})
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *PostgresStoreSuite) TestPendingDeployment() {
	ctx := context.Background()
	memo := "phase one"
	pending := &models.PendingDeployment{
		CorrelationID:  domain.NewCorrelationID(),
		MunicipalityID: "springfield",
		ProjectID:      "bridge",
		TokenVersion:   0,
		TokenAccountID: "bond.factory.test.near",
		Caller:         "owner.test.near",
		Attached:       domain.MustParseAmount("100000000000000000000"),
		Memo:           &memo,
		Status:         models.DeploymentPending,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.store.SavePending(ctx, pending))

	dup := *pending
	dup.CorrelationID = domain.NewCorrelationID()
	s.ErrorIs(s.store.SavePending(ctx, &dup), sentinel.ErrAlreadyUsed, "one pending deployment per account")

	got, err := s.store.FindPending(ctx, pending.CorrelationID)
	s.Require().NoError(err)
	s.Equal(pending.Attached.String(), got.Attached.String())
	s.Equal(&memo, got.Memo)
	s.Equal(models.DeploymentPending, got.Status)

	s.Require().NoError(s.store.ResolvePending(ctx, pending.CorrelationID, models.DeploymentCommitted, "", time.Now()))
	s.ErrorIs(s.store.ResolvePending(ctx, pending.CorrelationID, models.DeploymentFailed, "late", time.Now()), sentinel.ErrInvalidState)
	s.ErrorIs(s.store.ResolvePending(ctx, domain.NewCorrelationID(), models.DeploymentFailed, "", time.Now()), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestRunnerRollsBackOnError() {
	runner := txcontext.NewRunner(s.postgres.DB, s.store, postgres.LockKey)
	ctx := context.Background()

	err := runner.RunInTx(ctx, func(ctx context.Context, store *postgres.PostgresStore) error {
		if err := store.AddMunicipality(ctx, "springfield"); err != nil {
			return err
		}
		return sentinel.ErrInvalidState
	})
	s.ErrorIs(err, sentinel.ErrInvalidState)

	ok, err := s.store.HasMunicipality(ctx, "springfield")
	s.Require().NoError(err)
	s.False(ok, "insert rolled back")
}
