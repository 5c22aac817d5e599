package handler

import (
	"strings"

	"microbonds/internal/factory/models"
	"microbonds/pkg/domain"
	dErrors "microbonds/pkg/domain-errors"
)

// AddMunicipalityRequest is the body of POST /factory/municipalities.
type AddMunicipalityRequest struct {
	MunicipalityID string  `json:"municipality_id"`
	Memo           *string `json:"memo,omitempty"`
}

// Validate implements httputil.Validatable.
func (r *AddMunicipalityRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.MunicipalityID = strings.TrimSpace(r.MunicipalityID)
	return domain.ValidateID("municipality_id", r.MunicipalityID)
}

// AddProjectRequest is the body of POST /factory/municipalities/{id}/projects.
type AddProjectRequest struct {
	ProjectID string  `json:"project_id"`
	Memo      *string `json:"memo,omitempty"`
}

func (r *AddProjectRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.ProjectID = strings.TrimSpace(r.ProjectID)
	return domain.ValidateID("project_id", r.ProjectID)
}

// DeployTokenRequest is the body of POST /factory/deployments.
type DeployTokenRequest struct {
	MunicipalityID     string        `json:"municipality_id"`
	ProjectID          string        `json:"project_id"`
	TokenVersion       *uint64       `json:"token_version"`
	TokenAccountName   string        `json:"token_account_name"`
	TokenName          string        `json:"token_name"`
	TokenSymbol        string        `json:"token_symbol"`
	TokenIcon          *string       `json:"token_icon,omitempty"`
	TokenBaseURI       *string       `json:"token_base_uri,omitempty"`
	TokenReference     *string       `json:"token_reference,omitempty"`
	TokenReferenceHash *string       `json:"token_reference_hash,omitempty"`
	AttachedDeposit    domain.Amount `json:"attached_deposit"`
	Memo               *string       `json:"memo,omitempty"`
}

func (r *DeployTokenRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.TokenVersion == nil {
		return dErrors.New(dErrors.CodeBadRequest, "token_version is required")
	}
	r.MunicipalityID = strings.TrimSpace(r.MunicipalityID)
	r.ProjectID = strings.TrimSpace(r.ProjectID)
	req := r.ToModel()
	return req.Validate()
}

// ToModel converts the body into the service request.
func (r *DeployTokenRequest) ToModel() models.DeployTokenRequest {
	var version uint64
	if r.TokenVersion != nil {
		version = *r.TokenVersion
	}
	return models.DeployTokenRequest{
		MunicipalityID:     r.MunicipalityID,
		ProjectID:          r.ProjectID,
		TokenVersion:       version,
		TokenAccountName:   r.TokenAccountName,
		TokenName:          r.TokenName,
		TokenSymbol:        r.TokenSymbol,
		TokenIcon:          r.TokenIcon,
		TokenBaseURI:       r.TokenBaseURI,
		TokenReference:     r.TokenReference,
		TokenReferenceHash: r.TokenReferenceHash,
		Attached:           r.AttachedDeposit,
		Memo:               r.Memo,
	}
}
