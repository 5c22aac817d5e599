package handler

import (
	"time"

	"microbonds/internal/factory/models"
	"microbonds/pkg/domain"
)

type VersionResponse struct {
	TokenVersion uint64 `json:"token_version"`
}

type VersionsResponse struct {
	Versions []uint64 `json:"versions"`
}

type CostResponse struct {
	TokenVersion uint64        `json:"token_version"`
	Cost         domain.Amount `json:"cost"`
}

type CodeResponse struct {
	TokenVersion uint64 `json:"token_version"`
	Code         []byte `json:"code"`
}

type ListResponse struct {
	Items []string `json:"items"`
}

type TokensResponse struct {
	Tokens []models.TokenReference `json:"tokens"`
}

type OwnerResponse struct {
	OwnerID domain.AccountID `json:"owner_id"`
}

// DeploymentResponse reports a deployment's progress.
type DeploymentResponse struct {
	CorrelationID  string     `json:"correlation_id"`
	Status         string     `json:"status"`
	MunicipalityID string     `json:"municipality_id"`
	ProjectID      string     `json:"project_id"`
	TokenVersion   uint64     `json:"token_version"`
	TokenAccountID string     `json:"token_account_id"`
	Reason         string     `json:"reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

func FromDeployment(p *models.PendingDeployment) DeploymentResponse {
	return DeploymentResponse{
		CorrelationID:  p.CorrelationID.String(),
		Status:         string(p.Status),
		MunicipalityID: p.MunicipalityID,
		ProjectID:      p.ProjectID,
		TokenVersion:   p.TokenVersion,
		TokenAccountID: p.TokenAccountID.String(),
		Reason:         p.Reason,
		CreatedAt:      p.CreatedAt,
		ResolvedAt:     p.ResolvedAt,
	}
}
