// Package service implements the factory: the token-version store, the
// municipality/project registry and the deployment orchestrator.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"microbonds/internal/factory/metrics"
	"microbonds/internal/factory/models"
	"microbonds/internal/ledger"
	"microbonds/pkg/domain"
	dErrors "microbonds/pkg/domain-errors"
	audit "microbonds/pkg/platform/audit"
	txcontext "microbonds/pkg/platform/tx"
	"microbonds/pkg/requestcontext"
)

const serviceName = "factory"

// Store persists factory state. Implementations return sentinel errors:
// ErrNotFound for unknown keys, ErrAlreadyUsed for duplicate keys and
// ErrInvalidState when resolving a deployment that is no longer pending.
type Store interface {
	AppendVersion(ctx context.Context, payload []byte) (uint64, error)
	FindVersion(ctx context.Context, index uint64) (*models.TokenVersion, error)
	ListVersions(ctx context.Context) ([]uint64, error)

	AddMunicipality(ctx context.Context, municipalityID string) error
	HasMunicipality(ctx context.Context, municipalityID string) (bool, error)
	ListMunicipalities(ctx context.Context, page domain.Page) ([]string, error)

	AddProject(ctx context.Context, municipalityID, projectID string) error
	HasProject(ctx context.Context, municipalityID, projectID string) (bool, error)
	ListProjects(ctx context.Context, municipalityID string, page domain.Page) ([]string, error)

	AddToken(ctx context.Context, municipalityID, projectID string, token models.TokenReference) error
	ListTokens(ctx context.Context, municipalityID, projectID string, page domain.Page) ([]models.TokenReference, error)

	SavePending(ctx context.Context, pending *models.PendingDeployment) error
	FindPending(ctx context.Context, id domain.CorrelationID) (*models.PendingDeployment, error)
	ResolvePending(ctx context.Context, id domain.CorrelationID, status models.DeploymentStatus, reason string, at time.Time) error
}

// StoreTx serializes mutating entry points and their callbacks. The context
// passed to fn carries the transaction, if any, so audit events written
// through it commit together with the registry change.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config is the factory's identity and pricing.
type Config struct {
	OwnerID                domain.AccountID
	AccountID              domain.AccountID
	StoragePricePerByte    domain.Amount
	AccountCreationReserve domain.Amount
}

// Service orchestrates the factory registries and token deployment.
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

// WithStoreTx replaces the default in-process lock, e.g. with a Postgres
// transaction.
func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// WithPollInterval sets how often AwaitDeployment re-reads a pending record.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// New constructs a Service.
func New(store Store, env ledger.Environment, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "factory store is required")
	}
	if env == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "ledger environment is required")
	}
	if cfg.OwnerID.IsZero() || cfg.AccountID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInternal, "factory owner and account are required")
	}
	s := &Service{
		store:        store,
		ledger:       env,
		cfg:          cfg,
		logger:       slog.Default(),
		tracer:       otel.Tracer("microbonds/factory"),
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

// Owner returns the account allowed to mutate the factory.
func (s *Service) Owner() domain.AccountID {
	return s.cfg.OwnerID
}

// AccountID returns the factory's own ledger account.
func (s *Service) AccountID() domain.AccountID {
	return s.cfg.AccountID
}

func (s *Service) requireOwner(ctx context.Context) (domain.AccountID, error) {
	caller := requestcontext.Caller(ctx)
	if caller != s.cfg.OwnerID {
		return caller, dErrors.New(dErrors.CodeUnauthorized, "only the factory owner can call this method")
	}
	return caller, nil
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
