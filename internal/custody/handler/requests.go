package handler

import (
	"strings"

	"microbonds/internal/custody/models"
	"microbonds/pkg/domain"
	dErrors "microbonds/pkg/domain-errors"
)

// AddTokenRequest is the body of POST /custody/owners/{ownerID}/tokens.
type AddTokenRequest struct {
	TokenAccountID string  `json:"token_account_id"`
	TokenID        string  `json:"token_id"`
	Memo           *string `json:"memo,omitempty"`
}

func (r *AddTokenRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.TokenAccountID = strings.TrimSpace(r.TokenAccountID)
	if r.TokenAccountID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "token_account_id is required")
	}
	if r.TokenID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "token_id is required")
	}
	return nil
}

func (r *AddTokenRequest) ToModel(ownerID string) models.AddTokenRequest {
	return models.AddTokenRequest{
		OwnerID:        ownerID,
		TokenAccountID: domain.AccountID(r.TokenAccountID),
		TokenID:        r.TokenID,
		Memo:           r.Memo,
	}
}

// LinkAccountRequest is the body of PUT /custody/users/{userID}/account.
type LinkAccountRequest struct {
	AccountID string `json:"account_id"`
}

func (r *LinkAccountRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.AccountID = strings.TrimSpace(r.AccountID)
	if _, err := domain.ParseAccountID(r.AccountID); err != nil {
		return err
	}
	return nil
}

// SendTokenRequest is the body of POST /custody/transfers.
type SendTokenRequest struct {
	OwnerID        string  `json:"owner_id"`
	TokenAccountID string  `json:"token_account_id"`
	TokenID        string  `json:"token_id"`
	TransferMemo   *string `json:"transfer_memo,omitempty"`
	ResolveMemo    *string `json:"resolve_memo,omitempty"`
}

func (r *SendTokenRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.OwnerID = strings.TrimSpace(r.OwnerID)
	r.TokenAccountID = strings.TrimSpace(r.TokenAccountID)
	req := r.ToModel()
	return req.Validate()
}

func (r *SendTokenRequest) ToModel() models.SendTokenRequest {
	return models.SendTokenRequest{
		OwnerID:        r.OwnerID,
		TokenAccountID: domain.AccountID(r.TokenAccountID),
		TokenID:        r.TokenID,
		TransferMemo:   r.TransferMemo,
		ResolveMemo:    r.ResolveMemo,
	}
}
