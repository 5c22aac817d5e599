package service

import (
	"context"
	"errors"

	"microbonds/internal/custody/models"
	"microbonds/pkg/domain"
	dErrors "microbonds/pkg/domain-errors"
	audit "microbonds/pkg/platform/audit"
	"microbonds/pkg/platform/sentinel"
)

// AddTokenForOwner records that the custody account holds a token for
// ownerID. The triple must not already be recorded.
func (s *Service) AddTokenForOwner(ctx context.Context, req models.AddTokenRequest) error {
	if err := s.requireOwner(ctx); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	token := req.Token()

	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		if err := store.AddToken(ctx, token); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeAlreadyExists, "token info already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record token")
		}
		return s.emit(ctx, audit.EventAddToken, token.OwnerID, audit.WithMemo(map[string]string{
			"owner_id":         token.OwnerID,
			"token_account_id": token.TokenAccountID.String(),
			"token_id":         token.TokenID,
		}, req.Memo))
	})
	if err != nil {
		return err
	}

	s.metrics.IncrementTokenAdded()
	s.logger.InfoContext(ctx, "token added to custody",
		"owner_id", token.OwnerID,
		"token_account_id", token.TokenAccountID,
		"token_id", token.TokenID,
	)
	return nil
}

// TokensForOwner lists "<token_account_id>:<token_id>" entries in the order
// they were added.
func (s *Service) TokensForOwner(ctx context.Context, ownerID string, page domain.Page) ([]string, error) {
	tokens, err := s.store.ListTokens(ctx, ownerID, page)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tokens")
	}
	return tokens, nil
}

// LinkAccount points userID at accountID. Relinking to the same account
// changes nothing; relinking to another account replaces the old one.
func (s *Service) LinkAccount(ctx context.Context, userID string, accountID domain.AccountID) (models.LinkResult, error) {
	if err := s.requireOwner(ctx); err != nil {
		return models.LinkResult{}, err
	}
	if err := domain.ValidateID("user_id", userID); err != nil {
		return models.LinkResult{}, err
	}
	if _, err := domain.ParseAccountID(accountID.String()); err != nil {
		return models.LinkResult{}, err
	}

	var result models.LinkResult
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		previous, err := store.FindLink(ctx, userID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account link")
		}
		if previous == accountID {
			result = models.LinkResult{Previous: previous}
			return nil
		}
		if err := store.SaveLink(ctx, userID, accountID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save account link")
		}
		result = models.LinkResult{Previous: previous, Changed: true}

		if previous.IsZero() {
			return s.emit(ctx, audit.EventLinkAccount, userID, map[string]string{
				"user_id":    userID,
				"account_id": accountID.String(),
			})
		}
		return s.emit(ctx, audit.EventChangeAccount, userID, map[string]string{
			"user_id":        userID,
			"old_account_id": previous.String(),
			"new_account_id": accountID.String(),
		})
	})
	if err != nil {
		return models.LinkResult{}, err
	}

	switch {
	case !result.Changed:
		s.logger.DebugContext(ctx, "account already linked", "user_id", userID)
	case result.Previous.IsZero():
		s.metrics.IncrementLink("link")
		s.logger.InfoContext(ctx, "account linked", "user_id", userID, "account_id", accountID)
	default:
		s.metrics.IncrementLink("change")
		s.logger.InfoContext(ctx, "linked account changed",
			"user_id", userID,
			"old_account_id", result.Previous,
			"new_account_id", accountID,
		)
	}
	return result, nil
}

// AccountForUser returns the account linked to userID. ok is false when the
// user has no link.
func (s *Service) AccountForUser(ctx context.Context, userID string) (domain.AccountID, bool, error) {
	account, err := s.store.FindLink(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account link")
	}
	return account, true, nil
}
