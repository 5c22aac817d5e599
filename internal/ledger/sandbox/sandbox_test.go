package sandbox

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"microbonds/internal/ledger"
	"microbonds/pkg/domain"
)

const (
	factoryAccount = domain.AccountID("factory.test.near")
	custodyAccount = domain.AccountID("custody.test.near")
	aliceAccount   = domain.AccountID("alice.test.near")
)

type SandboxSuite struct {
	suite.Suite
	sb       *Sandbox
	outcomes []ledger.Outcome
}

func TestSandboxSuite(t *testing.T) {
	suite.Run(t, new(SandboxSuite))
}

func (s *SandboxSuite) SetupTest() {
	s.sb = New(WithBalances(map[domain.AccountID]domain.Amount{
		factoryAccount: domain.MustParseAmount("100000000000000000000000000"),
		custodyAccount: domain.NewAmount(10),
		aliceAccount:   domain.NewAmount(1000),
	}))
	s.outcomes = nil
}

func (s *SandboxSuite) record(_ context.Context, o ledger.Outcome) {
	s.outcomes = append(s.outcomes, o)
}

func (s *SandboxSuite) deployToken(name string, owner domain.AccountID) domain.AccountID {
	account, err := factoryAccount.SubAccount(name)
	s.Require().NoError(err)
	args, err := json.Marshal(map[string]any{
		"owner_id": owner,
		"metadata": map[string]any{"spec": "nft-0", "name": "Bond", "symbol": "BND"},
	})
	s.Require().NoError(err)
	s.Require().NoError(s.sb.Deploy(context.Background(), ledger.DeployCall{
		CorrelationID: domain.NewCorrelationID(),
		Parent:        factoryAccount,
		Account:       account,
		Deposit:       domain.NewAmount(500),
		Code:          []byte("wasm"),
		InitMethod:    MethodInit,
		InitArgs:      args,
		Signer:        owner,
		OnComplete:    s.record,
	}))
	return account
}

func (s *SandboxSuite) TestDeployIsDeferredUntilDrain() {
	account := s.deployToken("bond", custodyAccount)

	_, exists := s.sb.Balance(account)
	s.False(exists, "account must not exist before the call executes")
	s.Equal(1, s.sb.Pending())

	s.Equal(1, s.sb.Drain(context.Background()))
	s.Require().Len(s.outcomes, 1)
	s.True(s.outcomes[0].Succeeded())

	balance, exists := s.sb.Balance(account)
	s.True(exists)
	s.Equal("500", balance.String())

	raw, err := s.sb.View(context.Background(), account, MethodMetadata, nil)
	s.Require().NoError(err)
	var meta ContractMetadata
	s.Require().NoError(json.Unmarshal(raw, &meta))
	s.Equal("Bond", meta.Name)
	s.Equal("BND", meta.Symbol)
	s.Equal("nft-0", meta.Spec)
}

func (s *SandboxSuite) TestDeployToExistingAccountFails() {
	s.deployToken("bond", custodyAccount)
	s.deployToken("bond", custodyAccount)
	s.sb.Drain(context.Background())

	s.Require().Len(s.outcomes, 2)
	s.True(s.outcomes[0].Succeeded())
	s.ErrorIs(s.outcomes[1].Err, ledger.ErrAccountExists)
}

func (s *SandboxSuite) TestInjectedFailureLeavesStateUntouched() {
	before, _ := s.sb.Balance(factoryAccount)
	s.sb.FailNext("bond.factory.test.near", "boom")

	account := s.deployToken("bond", custodyAccount)
	s.sb.Drain(context.Background())

	s.Require().Len(s.outcomes, 1)
	s.EqualError(s.outcomes[0].Err, "boom")
	_, exists := s.sb.Balance(account)
	s.False(exists)
	after, _ := s.sb.Balance(factoryAccount)
	s.Equal(before.String(), after.String())
}

func (s *SandboxSuite) TestMintAndTransfer() {
	token := s.deployToken("bond", custodyAccount)
	s.sb.Drain(context.Background())

	mint, _ := json.Marshal(map[string]any{"token_id": "1", "receiver_id": custodyAccount, "metadata": map[string]any{}})
	s.Require().NoError(s.sb.Call(context.Background(), ledger.FunctionCall{
		CorrelationID: domain.NewCorrelationID(),
		Predecessor:   custodyAccount,
		Receiver:      token,
		Method:        MethodMint,
		Args:          mint,
		Deposit:       domain.NewAmount(1),
		OnComplete:    s.record,
	}))

	transfer, _ := json.Marshal(map[string]any{"token_id": "1", "receiver_id": aliceAccount})
	s.Require().NoError(s.sb.Call(context.Background(), ledger.FunctionCall{
		CorrelationID: domain.NewCorrelationID(),
		Predecessor:   custodyAccount,
		Receiver:      token,
		Method:        MethodTransfer,
		Args:          transfer,
		Deposit:       ledger.OneYocto,
		OnComplete:    s.record,
	}))
	s.sb.Drain(context.Background())

	s.Require().Len(s.outcomes, 3)
	for _, o := range s.outcomes {
		s.NoError(o.Err)
	}

	raw, err := s.sb.View(context.Background(), token, MethodToken, json.RawMessage(`{"token_id":"1"}`))
	s.Require().NoError(err)
	var tok Token
	s.Require().NoError(json.Unmarshal(raw, &tok))
	s.Equal(aliceAccount, tok.OwnerID)
}

func (s *SandboxSuite) TestTransferRequiresOwnershipAndOneYocto() {
	token := s.deployToken("bond", custodyAccount)
	s.sb.Drain(context.Background())

	mint, _ := json.Marshal(map[string]any{"token_id": "1", "receiver_id": custodyAccount})
	s.Require().NoError(s.sb.Call(context.Background(), ledger.FunctionCall{
		CorrelationID: domain.NewCorrelationID(), Predecessor: custodyAccount, Receiver: token,
		Method: MethodMint, Args: mint, OnComplete: s.record,
	}))
	transfer, _ := json.Marshal(map[string]any{"token_id": "1", "receiver_id": aliceAccount})
	s.Require().NoError(s.sb.Call(context.Background(), ledger.FunctionCall{
		CorrelationID: domain.NewCorrelationID(), Predecessor: aliceAccount, Receiver: token,
		Method: MethodTransfer, Args: transfer, Deposit: ledger.OneYocto, OnComplete: s.record,
	}))
	s.Require().NoError(s.sb.Call(context.Background(), ledger.FunctionCall{
		CorrelationID: domain.NewCorrelationID(), Predecessor: custodyAccount, Receiver: token,
		Method: MethodTransfer, Args: transfer, OnComplete: s.record,
	}))
	s.sb.Drain(context.Background())

	s.Require().Len(s.outcomes, 4)
	s.NoError(s.outcomes[1].Err)
	s.ErrorIs(s.outcomes[2].Err, errNotTokenOwner)
	s.ErrorIs(s.outcomes[3].Err, errRequiresOneYocto)
}

func TestReserveAndRefund(t *testing.T) {
	sb := New(WithBalances(map[domain.AccountID]domain.Amount{
		aliceAccount:   domain.NewAmount(100),
		factoryAccount: domain.ZeroAmount(),
	}))
	ctx := context.Background()

	require.NoError(t, sb.Reserve(ctx, aliceAccount, factoryAccount, domain.NewAmount(60)))
	err := sb.Reserve(ctx, aliceAccount, factoryAccount, domain.NewAmount(60))
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	require.NoError(t, sb.Refund(ctx, factoryAccount, aliceAccount, domain.NewAmount(60)))
	balance, _ := sb.Balance(aliceAccount)
	assert.Equal(t, "100", balance.String())

	err = sb.Refund(ctx, factoryAccount, "nobody.near", domain.ZeroAmount())
	assert.ErrorIs(t, err, ledger.ErrUnknownAccount)
}

func TestRunStopsOnCancel(t *testing.T) {
	sb := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sb.Run(ctx), context.Canceled)
}
