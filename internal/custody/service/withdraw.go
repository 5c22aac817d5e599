package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"microbonds/internal/custody/models"
	"microbonds/internal/ledger"
	"microbonds/pkg/domain"
	dErrors "microbonds/pkg/domain-errors"
	audit "microbonds/pkg/platform/audit"
	"microbonds/pkg/platform/sentinel"
	"microbonds/pkg/requestcontext"
)

const transferMethod = "nft_transfer"

type transferArgs struct {
	ReceiverID domain.AccountID `json:"receiver_id"`
	TokenID    string           `json:"token_id"`
	Memo       *string          `json:"memo,omitempty"`
}

// SendTokenToOwner releases a custodied token to the caller, who must be the
// account linked to the token's owner. The custody entry is removed only
// when the token contract confirms the transfer.
func (s *Service) SendTokenToOwner(ctx context.Context, req models.SendTokenRequest) (*models.PendingTransfer, error) {
	ctx, span := s.tracer.Start(ctx, "custody.SendTokenToOwner")
	defer span.End()

	pending, err := s.sendToken(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("correlation_id", pending.CorrelationID.String()),
		attribute.String("token_account_id", pending.Token.TokenAccountID.String()),
	)
	return pending, nil
}

func (s *Service) sendToken(ctx context.Context, req models.SendTokenRequest) (*models.PendingTransfer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	caller := requestcontext.Caller(ctx)
	token := req.Token()

	var pending *models.PendingTransfer
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		linked, err := store.FindLink(ctx, token.OwnerID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNoLinkedAccount, "no account linked to user")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account link")
		}
		if caller.IsZero() || caller != linked {
			return dErrors.New(dErrors.CodeForbidden, "caller is not the owner of the account")
		}
		owned, err := store.HasToken(ctx, token)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load custody entry")
		}
		if !owned {
			return dErrors.New(dErrors.CodeNotOwned, "owner does not own provided token")
		}

		pending = &models.PendingTransfer{
			CorrelationID: domain.NewCorrelationID(),
			Token:         token,
			ReceiverID:    caller,
			TransferMemo:  req.TransferMemo,
			ResolveMemo:   req.ResolveMemo,
			Status:        models.TransferPending,
			CreatedAt:     requestcontext.Now(ctx),
		}
		if err := store.SavePending(ctx, pending); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "a withdrawal of this token is already in progress")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record withdrawal")
		}

		args, err := json.Marshal(transferArgs{ReceiverID: caller, TokenID: token.TokenID, Memo: req.TransferMemo})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode transfer args")
		}
		err = s.ledger.Call(ctx, ledger.FunctionCall{
			CorrelationID: pending.CorrelationID,
			Predecessor:   s.cfg.AccountID,
			Signer:        caller,
			Receiver:      token.TokenAccountID,
			Method:        transferMethod,
			Args:          args,
			Deposit:       ledger.OneYocto,
			OnComplete:    s.resolveTransfer,
		})
		if err != nil {
			// The record must not stay pending when the call never went out.
			_ = store.ResolvePending(ctx, pending.CorrelationID, models.TransferFailed, err.Error(), requestcontext.Now(ctx))
			return dErrors.Wrap(err, dErrors.CodeInternal, "ledger rejected the transfer")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementTransferStarted()
	s.logger.InfoContext(ctx, "token withdrawal started",
		"correlation_id", pending.CorrelationID.String(),
		"owner_id", token.OwnerID,
		"token_account_id", token.TokenAccountID,
		"token_id", token.TokenID,
		"receiver_id", caller,
	)
	return pending, nil
}

// resolveTransfer is the completion callback of a withdrawal. On success the
// custody entry is removed; on failure it is kept and the reason recorded.
func (s *Service) resolveTransfer(ctx context.Context, outcome ledger.Outcome) {
	ctx, span := s.tracer.Start(ctx, "custody.ResolveTransfer")
	defer span.End()
	span.SetAttributes(attribute.String("correlation_id", outcome.CorrelationID.String()))

	var resolved *models.PendingTransfer
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		pending, err := store.FindPending(ctx, outcome.CorrelationID)
		if err != nil {
			return err
		}
		if pending.Status.IsResolved() {
			return nil
		}
		ctx = requestcontext.WithCaller(ctx, pending.ReceiverID)
		now := time.Now()
		token := pending.Token
		data := map[string]string{
			"owner_id":         token.OwnerID,
			"token_account_id": token.TokenAccountID.String(),
			"token_id":         token.TokenID,
		}

		if outcome.Succeeded() {
			if err := store.RemoveToken(ctx, token); err != nil {
				if !errors.Is(err, sentinel.ErrNotFound) {
					return err
				}
				s.logger.WarnContext(ctx, "custody entry already gone at transfer commit",
					"correlation_id", pending.CorrelationID.String(),
				)
			}
			if err := store.ResolvePending(ctx, pending.CorrelationID, models.TransferCommitted, "", now); err != nil {
				return err
			}
			pending.Status = models.TransferCommitted
			resolved = pending
			return s.emit(ctx, audit.EventSendToken, token.OwnerID, audit.WithMemo(data, pending.ResolveMemo))
		}

		reason := outcome.Err.Error()
		if err := store.ResolvePending(ctx, pending.CorrelationID, models.TransferFailed, reason, now); err != nil {
			return err
		}
		pending.Status = models.TransferFailed
		pending.Reason = reason
		resolved = pending
		data["reason"] = reason
		return s.emit(ctx, audit.EventSendFailed, token.OwnerID, audit.WithMemo(data, pending.ResolveMemo))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		s.logger.ErrorContext(ctx, "failed to resolve withdrawal",
			"correlation_id", outcome.CorrelationID.String(),
			"error", err,
		)
		return
	}
	if resolved == nil {
		s.logger.DebugContext(ctx, "duplicate transfer callback ignored",
			"correlation_id", outcome.CorrelationID.String(),
		)
		return
	}

	committed := resolved.Status == models.TransferCommitted
	s.metrics.ObserveTransferResolved(string(resolved.Status), committed, resolved.CreatedAt)
	if committed {
		s.logger.InfoContext(ctx, "token withdrawn",
			"correlation_id", resolved.CorrelationID.String(),
			"owner_id", resolved.Token.OwnerID,
			"receiver_id", resolved.ReceiverID,
		)
		return
	}
	s.logger.WarnContext(ctx, "token withdrawal failed",
		"correlation_id", resolved.CorrelationID.String(),
		"owner_id", resolved.Token.OwnerID,
		"reason", resolved.Reason,
	)
}

// Transfer returns the current state of a withdrawal.
func (s *Service) Transfer(ctx context.Context, id domain.CorrelationID) (*models.PendingTransfer, error) {
	pending, err := s.store.FindPending(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "transfer does not exist")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load transfer")
	}
	return pending, nil
}

// AwaitTransfer polls until the withdrawal resolves or ctx is done, and
// returns the last state seen.
func (s *Service) AwaitTransfer(ctx context.Context, id domain.CorrelationID) (*models.PendingTransfer, error) {
	pending, err := s.Transfer(ctx, id)
	if err != nil {
		return nil, err
	}
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for !pending.Status.IsResolved() {
		select {
		case <-ctx.Done():
			return pending, nil
		case <-ticker.C:
		}
		next, err := s.Transfer(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return pending, nil
			}
			return nil, err
		}
		pending = next
	}
	return pending, nil
}
