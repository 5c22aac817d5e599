package handler

import (
	"time"

	"microbonds/internal/custody/models"
	"microbonds/pkg/domain"
)

type OwnerResponse struct {
	OwnerID domain.AccountID `json:"owner_id"`
}

// TokensResponse lists "<token_account_id>:<token_id>" entries.
type TokensResponse struct {
	OwnerID string   `json:"owner_id"`
	Tokens  []string `json:"tokens"`
}

// AccountResponse reports a user's linked account; AccountID is null when
// there is no link.
type AccountResponse struct {
	UserID    string            `json:"user_id"`
	AccountID *domain.AccountID `json:"account_id"`
}

type LinkResponse struct {
	UserID            string            `json:"user_id"`
	AccountID         domain.AccountID  `json:"account_id"`
	PreviousAccountID *domain.AccountID `json:"previous_account_id,omitempty"`
	Changed           bool              `json:"changed"`
}

// TransferResponse reports a withdrawal's progress.
type TransferResponse struct {
	CorrelationID  string     `json:"correlation_id"`
	Status         string     `json:"status"`
	OwnerID        string     `json:"owner_id"`
	TokenAccountID string     `json:"token_account_id"`
	TokenID        string     `json:"token_id"`
	ReceiverID     string     `json:"receiver_id"`
	Reason         string     `json:"reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

func FromTransfer(p *models.PendingTransfer) TransferResponse {
	return TransferResponse{
		CorrelationID:  p.CorrelationID.String(),
		Status:         string(p.Status),
		OwnerID:        p.Token.OwnerID,
		TokenAccountID: p.Token.TokenAccountID.String(),
		TokenID:        p.Token.TokenID,
		ReceiverID:     p.ReceiverID.String(),
		Reason:         p.Reason,
		CreatedAt:      p.CreatedAt,
		ResolvedAt:     p.ResolvedAt,
	}
}
