// Package service implements the membership registry: which users belong to
// which municipality.
package service

import (
	"context"
	"log/slog"

	"microbonds/internal/membership/models"
	"microbonds/pkg/domain"
	dErrors "microbonds/pkg/domain-errors"
	audit "microbonds/pkg/platform/audit"
	txcontext "microbonds/pkg/platform/tx"
	"microbonds/pkg/requestcontext"
)

const serviceName = "registry"

// Store persists memberships in insertion order per municipality.
type Store interface {
	// AddUser reports whether the user was newly added.
	AddUser(ctx context.Context, municipalityID, userID string) (bool, error)
	ListUsers(ctx context.Context, municipalityID string, page domain.Page) ([]string, error)
	IsMember(ctx context.Context, municipalityID, userID string) (bool, error)
}

type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the membership registry.
type Service struct {
	store          Store
	tx             StoreTx
	ownerID        domain.AccountID
	logger         *slog.Logger
	auditPublisher AuditPublisher
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

func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func New(store Store, ownerID domain.AccountID, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "membership store is required")
	}
	if ownerID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInternal, "registry owner is required")
	}
	s := &Service{store: store, ownerID: ownerID, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = txcontext.NewLocker[Store](store)
	}
	return s, nil
}

func (s *Service) Owner() domain.AccountID {
	return s.ownerID
}

// AddUser records userID as a member of municipalityID. Adding an existing
// member is a no-op and records no event.
func (s *Service) AddUser(ctx context.Context, req models.AddUserRequest) error {
	if requestcontext.Caller(ctx) != s.ownerID {
		return dErrors.New(dErrors.CodeUnauthorized, "only the registry owner can call this method")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	var added bool
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		var err error
		added, err = store.AddUser(ctx, req.MunicipalityID, req.UserID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to add user")
		}
		if !added || s.auditPublisher == nil {
			return nil
		}
		err = s.auditPublisher.Emit(ctx, audit.Event{
			Service:   serviceName,
			Action:    string(audit.EventAddUser),
			Subject:   req.MunicipalityID,
			ActorID:   requestcontext.Caller(ctx).String(),
			RequestID: requestcontext.RequestID(ctx),
			Data: map[string]string{
				"municipality_id": req.MunicipalityID,
				"user_id":         req.UserID,
			},
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record event")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if added {
		s.logger.InfoContext(ctx, "user added to municipality",
			"municipality_id", req.MunicipalityID,
			"user_id", req.UserID,
		)
	}
	return nil
}

func (s *Service) ListUsers(ctx context.Context, municipalityID string, page domain.Page) ([]string, error) {
	users, err := s.store.ListUsers(ctx, municipalityID, page)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	return users, nil
}

// IsMember is false for unknown municipalities and users.
func (s *Service) IsMember(ctx context.Context, municipalityID, userID string) (bool, error) {
	ok, err := s.store.IsMember(ctx, municipalityID, userID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check membership")
	}
	return ok, nil
}
