// Package ledger defines the port between the services and the execution
// environment that hosts accounts, deploys token code and runs cross-account
// calls. Every call that changes another account's state is asynchronous: the
// environment accepts the request and later reports the Outcome through the
// request's completion callback.
package ledger

import (
	"context"
	"encoding/json"
	"errors"

	"microbonds/pkg/domain"
)

// OneYocto is the deposit attached to calls that require an explicit
// signature from the calling account, such as token transfers.
var OneYocto = domain.NewAmount(1)

var (
	// ErrInsufficientBalance is returned when the paying account cannot cover
	// an amount.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrUnknownAccount is returned when an account does not exist.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrAccountExists is reported when creating an account that already exists.
	ErrAccountExists = errors.New("account already exists")
	// ErrUnknownMethod is reported when the receiver does not expose a method.
	ErrUnknownMethod = errors.New("unknown method")
)

// Outcome is the result of an asynchronous call. A nil Err means the call
// succeeded.
type Outcome struct {
	CorrelationID domain.CorrelationID
	Value         json.RawMessage
	Err           error
}

// Succeeded reports whether the call completed without error.
func (o Outcome) Succeeded() bool { return o.Err == nil }

// Callback receives the Outcome of an asynchronous call. It runs exactly once
// per accepted call.
type Callback func(ctx context.Context, outcome Outcome)

// DeployCall creates Account as a sub-account of Parent, funds it with
// Deposit from Parent, deploys Code and calls InitMethod with InitArgs.
type DeployCall struct {
	CorrelationID domain.CorrelationID
	Parent        domain.AccountID
	Account       domain.AccountID
	Deposit       domain.Amount
	Code          []byte
	InitMethod    string
	InitArgs      json.RawMessage
	// Signer is the account that originally signed the request. Init code
	// sees it as the signer; Parent is the predecessor.
	Signer     domain.AccountID
	OnComplete Callback
}

// FunctionCall invokes Method on Receiver with Deposit attached from
// Predecessor.
type FunctionCall struct {
	CorrelationID domain.CorrelationID
	Predecessor   domain.AccountID
	Signer        domain.AccountID
	Receiver      domain.AccountID
	Method        string
	Args          json.RawMessage
	Deposit       domain.Amount
	OnComplete    Callback
}

// Environment is the execution environment consumed by the orchestrators.
type Environment interface {
	// Reserve moves an attached payment from the signer to the receiving
	// service account before the entry point proceeds.
	Reserve(ctx context.Context, from, to domain.AccountID, amount domain.Amount) error
	// Deploy schedules a DeployCall. A returned error means the call was not
	// accepted and OnComplete will not run.
	Deploy(ctx context.Context, call DeployCall) error
	// Call schedules a FunctionCall. A returned error means the call was not
	// accepted and OnComplete will not run.
	Call(ctx context.Context, call FunctionCall) error
	// Refund returns amount from a service account to the given account.
	Refund(ctx context.Context, from, to domain.AccountID, amount domain.Amount) error
}
