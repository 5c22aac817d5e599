// Package sandbox is an in-process execution environment. It keeps account
// balances and deployed token contracts in memory and runs asynchronous calls
// from a queue, so orchestrators see the same accept-now, resolve-later
// behaviour they get from a real ledger.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"microbonds/internal/ledger"
	"microbonds/pkg/domain"
)

const defaultQueueSize = 1024

var errNoCallback = errors.New("call has no completion callback")

var _ ledger.Environment = (*Sandbox)(nil)

type account struct {
	balance domain.Amount
	code    []byte
	token   *tokenContract
}

type job struct {
	id   domain.CorrelationID
	kind string
	exec func() (json.RawMessage, error)
	done ledger.Callback
}

// Sandbox implements ledger.Environment in memory.
type Sandbox struct {
	mu       sync.Mutex
	accounts map[domain.AccountID]*account
	failures map[domain.AccountID][]string

	jobs   chan job
	logger *slog.Logger
}

type Option func(*Sandbox)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sandbox) {
		s.logger = logger
	}
}

// WithQueueSize bounds the number of accepted calls waiting to execute.
func WithQueueSize(n int) Option {
	return func(s *Sandbox) {
		if n > 0 {
			s.jobs = make(chan job, n)
		}
	}
}

// WithBalances creates the given accounts with their starting balances.
func WithBalances(balances map[domain.AccountID]domain.Amount) Option {
	return func(s *Sandbox) {
		for id, amount := range balances {
			s.accounts[id] = &account{balance: amount}
		}
	}
}

func New(opts ...Option) *Sandbox {
	s := &Sandbox{
		accounts: make(map[domain.AccountID]*account),
		failures: make(map[domain.AccountID][]string),
		jobs:     make(chan job, defaultQueueSize),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAccount adds a top-level account. Existing accounts are left as is.
func (s *Sandbox) CreateAccount(id domain.AccountID, balance domain.Amount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		s.accounts[id] = &account{balance: balance}
	}
}

// Balance returns the balance of id and whether the account exists.
func (s *Sandbox) Balance(id domain.AccountID) (domain.Amount, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return domain.ZeroAmount(), false
	}
	return acc.balance, true
}

// Code returns the code deployed to id.
func (s *Sandbox) Code(id domain.AccountID) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok || acc.code == nil {
		return nil, false
	}
	return append([]byte(nil), acc.code...), true
}

// FailNext makes the next call executed against id fail with reason.
// Deploys match on the account being created.
func (s *Sandbox) FailNext(id domain.AccountID, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id] = append(s.failures[id], reason)
}

// Pending returns the number of accepted calls that have not executed yet.
func (s *Sandbox) Pending() int {
	return len(s.jobs)
}

// View runs a read-only method against a deployed contract synchronously.
func (s *Sandbox) View(_ context.Context, id domain.AccountID, method string, args json.RawMessage) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrUnknownAccount, id)
	}
	if acc.token == nil {
		return nil, fmt.Errorf("%w: %s has no contract", ledger.ErrUnknownMethod, id)
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	return acc.token.view(method, args)
}

func (s *Sandbox) Reserve(_ context.Context, from, to domain.AccountID, amount domain.Amount) error {
	return s.move(from, to, amount)
}

func (s *Sandbox) Refund(_ context.Context, from, to domain.AccountID, amount domain.Amount) error {
	return s.move(from, to, amount)
}

func (s *Sandbox) move(from, to domain.AccountID, amount domain.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.accounts[from]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrUnknownAccount, from)
	}
	dst, ok := s.accounts[to]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrUnknownAccount, to)
	}
	if src.balance.LessThan(amount) {
		return fmt.Errorf("%w: %s", ledger.ErrInsufficientBalance, from)
	}
	src.balance = src.balance.Sub(amount)
	dst.balance = dst.balance.Add(amount)
	return nil
}

func (s *Sandbox) Deploy(ctx context.Context, call ledger.DeployCall) error {
	if call.OnComplete == nil {
		return errNoCallback
	}
	if !call.Account.IsSubAccountOf(call.Parent) {
		return fmt.Errorf("%s is not a sub-account of %s", call.Account, call.Parent)
	}
	return s.enqueue(ctx, job{
		id:   call.CorrelationID,
		kind: "deploy",
		exec: func() (json.RawMessage, error) { return nil, s.execDeploy(call) },
		done: call.OnComplete,
	})
}

func (s *Sandbox) Call(ctx context.Context, call ledger.FunctionCall) error {
	if call.OnComplete == nil {
		return errNoCallback
	}
	return s.enqueue(ctx, job{
		id:   call.CorrelationID,
		kind: "call",
		exec: func() (json.RawMessage, error) { return s.execCall(call) },
		done: call.OnComplete,
	})
}

func (s *Sandbox) enqueue(ctx context.Context, j job) error {
	select {
	case s.jobs <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes queued calls until ctx is cancelled.
func (s *Sandbox) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-s.jobs:
			s.execute(ctx, j)
		}
	}
}

// Drain executes every queued call, including calls queued by callbacks
// while draining, and returns how many ran.
func (s *Sandbox) Drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case j := <-s.jobs:
			s.execute(ctx, j)
			n++
		default:
			return n
		}
	}
}

func (s *Sandbox) execute(ctx context.Context, j job) {
	value, err := j.exec()
	if err != nil {
		s.logger.DebugContext(ctx, "sandbox call failed",
			"correlation_id", j.id.String(),
			"kind", j.kind,
			"error", err,
		)
	}
	j.done(ctx, ledger.Outcome{CorrelationID: j.id, Value: value, Err: err})
}

// popFailure must be called with mu held.
func (s *Sandbox) popFailure(id domain.AccountID) error {
	reasons := s.failures[id]
	if len(reasons) == 0 {
		return nil
	}
	s.failures[id] = reasons[1:]
	return errors.New(reasons[0])
}

func (s *Sandbox) execDeploy(call ledger.DeployCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.popFailure(call.Account); err != nil {
		return err
	}
	parent, ok := s.accounts[call.Parent]
	if !ok {
		return fmt.Errorf("%w: %s", ledger.ErrUnknownAccount, call.Parent)
	}
	if _, exists := s.accounts[call.Account]; exists {
		return fmt.Errorf("%w: %s", ledger.ErrAccountExists, call.Account)
	}
	if parent.balance.LessThan(call.Deposit) {
		return fmt.Errorf("%w: %s", ledger.ErrInsufficientBalance, call.Parent)
	}
	if len(call.Code) == 0 {
		return errors.New("code is empty")
	}

	created := &account{balance: call.Deposit, code: append([]byte(nil), call.Code...)}
	if call.InitMethod != "" {
		if call.InitMethod != MethodInit {
			return fmt.Errorf("%w: %s", ledger.ErrUnknownMethod, call.InitMethod)
		}
		token, err := initTokenContract(call.InitArgs)
		if err != nil {
			return fmt.Errorf("init %s: %w", call.Account, err)
		}
		created.token = token
	}

	parent.balance = parent.balance.Sub(call.Deposit)
	s.accounts[call.Account] = created
	return nil
}

func (s *Sandbox) execCall(call ledger.FunctionCall) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.popFailure(call.Receiver); err != nil {
		return nil, err
	}
	caller, ok := s.accounts[call.Predecessor]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrUnknownAccount, call.Predecessor)
	}
	receiver, ok := s.accounts[call.Receiver]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrUnknownAccount, call.Receiver)
	}
	if receiver.token == nil {
		return nil, fmt.Errorf("%w: %s has no contract", ledger.ErrUnknownMethod, call.Receiver)
	}
	if caller.balance.LessThan(call.Deposit) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrInsufficientBalance, call.Predecessor)
	}

	args := call.Args
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	next := receiver.token.clone()
	value, err := next.call(call.Predecessor, call.Method, args, call.Deposit)
	if err != nil {
		return nil, err
	}

	caller.balance = caller.balance.Sub(call.Deposit)
	receiver.balance = receiver.balance.Add(call.Deposit)
	receiver.token = next
	return value, nil
}
