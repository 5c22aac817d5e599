// Package models holds the factory's registry records and request types.
package models

import (
	"strings"
	"time"

	"microbonds/pkg/domain"
	dErrors "microbonds/pkg/domain-errors"
)

// TokenVersion is a deployable code payload addressed by its insertion index.
type TokenVersion struct {
	Index   uint64
	Payload []byte
}

// TokenReference is a deployed token contract recorded under a project.
type TokenReference struct {
	AccountID domain.AccountID `json:"token_account_id"`
}

// DeploymentStatus tracks a pending deployment through its callback.
type DeploymentStatus string

const (
	DeploymentPending   DeploymentStatus = "pending"
	DeploymentCommitted DeploymentStatus = "committed"
	DeploymentFailed    DeploymentStatus = "failed"
)

func (s DeploymentStatus) IsResolved() bool {
	return s == DeploymentCommitted || s == DeploymentFailed
}

// PendingDeployment is written before the deploy call goes out and resolved
// exactly once by the completion callback.
type PendingDeployment struct {
	CorrelationID  domain.CorrelationID
	MunicipalityID string
	ProjectID      string
	TokenVersion   uint64
	TokenAccountID domain.AccountID
	Caller         domain.AccountID
	Attached       domain.Amount
	Memo           *string
	Status         DeploymentStatus
	Reason         string
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}

// DeployTokenRequest carries the arguments of a deployment.
type DeployTokenRequest struct {
	MunicipalityID     string
	ProjectID          string
	TokenVersion       uint64
	TokenAccountName   string
	TokenName          string
	TokenSymbol        string
	TokenIcon          *string
	TokenBaseURI       *string
	TokenReference     *string
	TokenReferenceHash *string
	Attached           domain.Amount
	Memo               *string
}

// Validate checks the shape of the request. Registry preconditions are
// checked by the service.
func (r *DeployTokenRequest) Validate() error {
	if err := domain.ValidateID("municipality_id", r.MunicipalityID); err != nil {
		return err
	}
	if err := domain.ValidateID("project_id", r.ProjectID); err != nil {
		return err
	}
	r.TokenAccountName = strings.TrimSpace(r.TokenAccountName)
	if r.TokenAccountName == "" {
		return dErrors.New(dErrors.CodeBadRequest, "token_account_name is required")
	}
	r.TokenName = strings.TrimSpace(r.TokenName)
	if r.TokenName == "" {
		return dErrors.New(dErrors.CodeBadRequest, "token_name is required")
	}
	r.TokenSymbol = strings.TrimSpace(r.TokenSymbol)
	if r.TokenSymbol == "" {
		return dErrors.New(dErrors.CodeBadRequest, "token_symbol is required")
	}
	return nil
}
