// Package service implements custody: the ownership ledger, the account-link
// table and the withdrawal orchestrator.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"microbonds/internal/custody/metrics"
	"microbonds/internal/custody/models"
	"microbonds/internal/ledger"
	"microbonds/pkg/domain"
	dErrors "microbonds/pkg/domain-errors"
	audit "microbonds/pkg/platform/audit"
	txcontext "microbonds/pkg/platform/tx"
	"microbonds/pkg/requestcontext"
)

const serviceName = "custody"

// Store persists custody state. Implementations return ErrNotFound for
// unknown keys, ErrAlreadyUsed for a duplicate custody entry or a second
// pending withdrawal of the same token, and ErrInvalidState when resolving a
// withdrawal that is no longer pending.
type Store interface {
	AddToken(ctx context.Context, token models.OwnedToken) error
	HasToken(ctx context.Context, token models.OwnedToken) (bool, error)
	RemoveToken(ctx context.Context, token models.OwnedToken) error
	ListTokens(ctx context.Context, ownerID string, page domain.Page) ([]string, error)

	FindLink(ctx context.Context, userID string) (domain.AccountID, error)
	SaveLink(ctx context.Context, userID string, accountID domain.AccountID) error

	SavePending(ctx context.Context, pending *models.PendingTransfer) error
	FindPending(ctx context.Context, id domain.CorrelationID) (*models.PendingTransfer, error)
	ResolvePending(ctx context.Context, id domain.CorrelationID, status models.TransferStatus, reason string, at time.Time) error
}

// StoreTx serializes mutating entry points and their callbacks. The context
// passed to fn carries the transaction, if any.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config is the custody service's identity.
type Config struct {
	OwnerID   domain.AccountID
	AccountID domain.AccountID
}

// Service holds tokens on behalf of logical owners and releases them to the
// owner's linked account.
type Service struct {
	store          Store
	tx             StoreTx
	ledger         ledger.Environment
	cfg            Config
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	pollInterval   time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// WithPollInterval sets how often AwaitTransfer re-reads a pending record.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

func New(store Store, env ledger.Environment, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "custody store is required")
	}
	if env == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "ledger environment is required")
	}
	if cfg.OwnerID.IsZero() || cfg.AccountID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInternal, "custody owner and account are required")
	}
	s := &Service{
		store:        store,
		ledger:       env,
		cfg:          cfg,
		logger:       slog.Default(),
		tracer:       otel.Tracer("microbonds/custody"),
		pollInterval: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = txcontext.NewLocker[Store](store)
	}
	return s, nil
}

func (s *Service) Owner() domain.AccountID {
	return s.cfg.OwnerID
}

func (s *Service) AccountID() domain.AccountID {
	return s.cfg.AccountID
}

func (s *Service) requireOwner(ctx context.Context) error {
	if requestcontext.Caller(ctx) != s.cfg.OwnerID {
		return dErrors.New(dErrors.CodeUnauthorized, "only the custody owner can call this method")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, subject string, data map[string]string) error {
	if s.auditPublisher == nil {
		return nil
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Service:   serviceName,
		Action:    string(action),
		Subject:   subject,
		ActorID:   requestcontext.Caller(ctx).String(),
		RequestID: requestcontext.RequestID(ctx),
		Data:      data,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record event")
	}
	return nil
}
