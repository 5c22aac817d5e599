package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"microbonds/internal/factory/models"
	"microbonds/internal/ledger"
	"microbonds/pkg/domain"
	dErrors "microbonds/pkg/domain-errors"
	audit "microbonds/pkg/platform/audit"
	"microbonds/pkg/platform/sentinel"
	"microbonds/pkg/requestcontext"
)

const initMethod = "new"

type contractMetadata struct {
	Spec          string  `json:"spec"`
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	Icon          *string `json:"icon,omitempty"`
	BaseURI       *string `json:"base_uri,omitempty"`
	Reference     *string `json:"reference,omitempty"`
	ReferenceHash *string `json:"reference_hash,omitempty"`
}

type tokenInitArgs struct {
	OwnerID  domain.AccountID `json:"owner_id"`
	Metadata contractMetadata `json:"metadata"`
}

// DeployToken validates the registry, takes the attached payment and asks the
// ledger to create and initialize a token contract under the factory account.
// The token is recorded under the project only when the ledger confirms the
// deployment; the returned record is still pending.
func (s *Service) DeployToken(ctx context.Context, req models.DeployTokenRequest) (*models.PendingDeployment, error) {
	ctx, span := s.tracer.Start(ctx, "factory.DeployToken")
	defer span.End()

	pending, err := s.deployToken(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("correlation_id", pending.CorrelationID.String()),
		attribute.String("token_account_id", pending.TokenAccountID.String()),
	)
	return pending, nil
}

func (s *Service) deployToken(ctx context.Context, req models.DeployTokenRequest) (*models.PendingDeployment, error) {
	caller, err := s.requireOwner(ctx)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var pending *models.PendingDeployment
	err = s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		if err := s.requireMunicipality(ctx, store, req.MunicipalityID); err != nil {
			return err
		}
		if err := s.requireProject(ctx, store, req.MunicipalityID, req.ProjectID); err != nil {
			return err
		}
		version, err := s.findVersion(ctx, store, req.TokenVersion)
		if err != nil {
			return err
		}

		required := s.costOf(version).Add(s.cfg.AccountCreationReserve)
		if req.Attached.LessThan(required) {
			return dErrors.New(dErrors.CodeInsufficientFunds,
				fmt.Sprintf("attach at least %s yoctoNEAR to deploy the contract", required))
		}

		tokenAccount, err := s.cfg.AccountID.SubAccount(req.TokenAccountName)
		if err != nil {
			return err
		}
		initArgs, err := json.Marshal(tokenInitArgs{
			OwnerID: caller,
			Metadata: contractMetadata{
				Spec:          "nft-" + strconv.FormatUint(req.TokenVersion, 10),
				Name:          req.TokenName,
				Symbol:        req.TokenSymbol,
				Icon:          req.TokenIcon,
				BaseURI:       req.TokenBaseURI,
				Reference:     req.TokenReference,
				ReferenceHash: req.TokenReferenceHash,
			},
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode init args")
		}

		pending = &models.PendingDeployment{
			CorrelationID:  domain.NewCorrelationID(),
			MunicipalityID: req.MunicipalityID,
			ProjectID:      req.ProjectID,
			TokenVersion:   req.TokenVersion,
			TokenAccountID: tokenAccount,
			Caller:         caller,
			Attached:       req.Attached,
			Memo:           req.Memo,
			Status:         models.DeploymentPending,
			CreatedAt:      requestcontext.Now(ctx),
		}

		if err := s.ledger.Reserve(ctx, caller, s.cfg.AccountID, req.Attached); err != nil {
			if errors.Is(err, ledger.ErrInsufficientBalance) {
				return dErrors.New(dErrors.CodeInsufficientFunds, "caller balance cannot cover the attached deposit")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to take attached deposit")
		}
		if err := store.SavePending(ctx, pending); err != nil {
			s.refund(ctx, caller, req.Attached)
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeAlreadyExists, "a deployment to this account is already in progress")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record deployment")
		}

		err = s.ledger.Deploy(ctx, ledger.DeployCall{
			CorrelationID: pending.CorrelationID,
			Parent:        s.cfg.AccountID,
			Account:       tokenAccount,
			Deposit:       req.Attached,
			Code:          version.Payload,
			InitMethod:    initMethod,
			InitArgs:      initArgs,
			Signer:        caller,
			OnComplete:    s.resolveDeploy,
		})
		if err != nil {
			s.refund(ctx, caller, req.Attached)
			// The record must not stay pending when the call never went out.
			_ = store.ResolvePending(ctx, pending.CorrelationID, models.DeploymentFailed, err.Error(), requestcontext.Now(ctx))
			return dErrors.Wrap(err, dErrors.CodeInternal, "ledger rejected the deployment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementDeploymentStarted()
	s.logger.InfoContext(ctx, "token deployment started",
		"correlation_id", pending.CorrelationID.String(),
		"municipality_id", pending.MunicipalityID,
		"project_id", pending.ProjectID,
		"token_account_id", pending.TokenAccountID,
		"token_version", pending.TokenVersion,
	)
	return pending, nil
}

// resolveDeploy is the completion callback of a deployment. It commits the
// token reference on success and refunds the caller on failure. Outcomes
// for deployments that are already resolved are ignored.
func (s *Service) resolveDeploy(ctx context.Context, outcome ledger.Outcome) {
	ctx, span := s.tracer.Start(ctx, "factory.ResolveDeploy")
	defer span.End()
	span.SetAttributes(attribute.String("correlation_id", outcome.CorrelationID.String()))

	var resolved *models.PendingDeployment
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		pending, err := store.FindPending(ctx, outcome.CorrelationID)
		if err != nil {
			return err
		}
		if pending.Status.IsResolved() {
			return nil
		}
		// Events from the callback are attributed to the original caller.
		ctx = requestcontext.WithCaller(ctx, pending.Caller)
		now := time.Now()

		if outcome.Succeeded() {
			ref := models.TokenReference{AccountID: pending.TokenAccountID}
			if err := store.AddToken(ctx, pending.MunicipalityID, pending.ProjectID, ref); err != nil {
				return fmt.Errorf("add token for project: %w", err)
			}
			if err := store.ResolvePending(ctx, pending.CorrelationID, models.DeploymentCommitted, "", now); err != nil {
				return err
			}
			pending.Status = models.DeploymentCommitted
			resolved = pending
			return s.emit(ctx, audit.EventAddProjectToken, pending.MunicipalityID, audit.WithMemo(map[string]string{
				"municipality_id": pending.MunicipalityID,
				"project_id":      pending.ProjectID,
				"token_id":        pending.TokenAccountID.String(),
			}, pending.Memo))
		}

		reason := outcome.Err.Error()
		s.refund(ctx, pending.Caller, pending.Attached)
		if err := store.ResolvePending(ctx, pending.CorrelationID, models.DeploymentFailed, reason, now); err != nil {
			return err
		}
		pending.Status = models.DeploymentFailed
		pending.Reason = reason
		resolved = pending
		return s.emit(ctx, audit.EventDeployFailed, pending.MunicipalityID, audit.WithMemo(map[string]string{
			"municipality_id": pending.MunicipalityID,
			"project_id":      pending.ProjectID,
			"token_id":        pending.TokenAccountID.String(),
			"reason":          reason,
		}, pending.Memo))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		s.logger.ErrorContext(ctx, "failed to resolve deployment",
			"correlation_id", outcome.CorrelationID.String(),
			"error", err,
		)
		return
	}
	if resolved == nil {
		s.logger.DebugContext(ctx, "duplicate deployment callback ignored",
			"correlation_id", outcome.CorrelationID.String(),
		)
		return
	}

	s.metrics.ObserveDeploymentResolved(string(resolved.Status), resolved.CreatedAt)
	if resolved.Status == models.DeploymentCommitted {
		s.metrics.IncrementRegistryEntry("token")
		s.logger.InfoContext(ctx, "token deployed",
			"correlation_id", resolved.CorrelationID.String(),
			"municipality_id", resolved.MunicipalityID,
			"project_id", resolved.ProjectID,
			"token_account_id", resolved.TokenAccountID,
		)
		return
	}
	s.logger.WarnContext(ctx, "token deployment failed",
		"correlation_id", resolved.CorrelationID.String(),
		"token_account_id", resolved.TokenAccountID,
		"reason", resolved.Reason,
	)
}

func (s *Service) refund(ctx context.Context, to domain.AccountID, amount domain.Amount) {
	if amount.IsZero() {
		return
	}
	if err := s.ledger.Refund(ctx, s.cfg.AccountID, to, amount); err != nil {
		s.logger.ErrorContext(ctx, "failed to refund attached deposit",
			"account_id", to,
			"amount", amount.String(),
			"error", err,
		)
	}
}

// Deployment returns the current state of a deployment.
func (s *Service) Deployment(ctx context.Context, id domain.CorrelationID) (*models.PendingDeployment, error) {
	pending, err := s.store.FindPending(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "deployment does not exist")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load deployment")
	}
	return pending, nil
}

// AwaitDeployment polls until the deployment resolves or ctx is done, and
// returns the last state seen. A deadline is not an error.
func (s *Service) AwaitDeployment(ctx context.Context, id domain.CorrelationID) (*models.PendingDeployment, error) {
	pending, err := s.Deployment(ctx, id)
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
		next, err := s.Deployment(ctx, id)
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
