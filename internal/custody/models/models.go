// Package models holds the custody ledger's records and request types.
package models

import (
	"time"

	"microbonds/pkg/domain"
)

// Delimiter separates the token account from the token id in listings.
// Account ids never contain it, so the first occurrence always ends the
// account part even when the token id contains more.
const Delimiter = ":"

// OwnedToken is one custody entry. The triple is unique.
type OwnedToken struct {
	OwnerID        string
	TokenAccountID domain.AccountID
	TokenID        string
}

// Key renders the token as it appears in owner listings.
func (t OwnedToken) Key() string {
	return t.TokenAccountID.String() + Delimiter + t.TokenID
}

// TransferStatus tracks a withdrawal through its callback.
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferCommitted TransferStatus = "committed"
	TransferFailed    TransferStatus = "failed"
)

func (s TransferStatus) IsResolved() bool {
	return s == TransferCommitted || s == TransferFailed
}

// PendingTransfer is written before the transfer call goes out and resolved
// exactly once by the completion callback.
type PendingTransfer struct {
	CorrelationID domain.CorrelationID
	Token         OwnedToken
	ReceiverID    domain.AccountID
	TransferMemo  *string
	ResolveMemo   *string
	Status        TransferStatus
	Reason        string
	CreatedAt     time.Time
	ResolvedAt    *time.Time
}

// AddTokenRequest records a deposit into custody.
type AddTokenRequest struct {
	OwnerID        string
	TokenAccountID domain.AccountID
	TokenID        string
	Memo           *string
}

func (r *AddTokenRequest) Validate() error {
	if err := domain.ValidateID("owner_id", r.OwnerID); err != nil {
		return err
	}
	if _, err := domain.ParseAccountID(r.TokenAccountID.String()); err != nil {
		return err
	}
	return domain.ValidateID("token_id", r.TokenID)
}

func (r AddTokenRequest) Token() OwnedToken {
	return OwnedToken{OwnerID: r.OwnerID, TokenAccountID: r.TokenAccountID, TokenID: r.TokenID}
}

// SendTokenRequest withdraws a token to the caller's linked account.
type SendTokenRequest struct {
	OwnerID        string
	TokenAccountID domain.AccountID
	TokenID        string
	TransferMemo   *string
	ResolveMemo    *string
}

func (r *SendTokenRequest) Validate() error {
	if err := domain.ValidateID("owner_id", r.OwnerID); err != nil {
		return err
	}
	if _, err := domain.ParseAccountID(r.TokenAccountID.String()); err != nil {
		return err
	}
	return domain.ValidateID("token_id", r.TokenID)
}

func (r SendTokenRequest) Token() OwnedToken {
	return OwnedToken{OwnerID: r.OwnerID, TokenAccountID: r.TokenAccountID, TokenID: r.TokenID}
}

// LinkResult describes what LinkAccount changed.
type LinkResult struct {
	Previous domain.AccountID
	Changed  bool
}
