// Package models holds the membership registry's request types.
package models

import "microbonds/pkg/domain"

// AddUserRequest adds a user to a municipality. The municipality does not
// have to be known to the factory.
type AddUserRequest struct {
	MunicipalityID string
	UserID         string
}

func (r *AddUserRequest) Validate() error {
	if err := domain.ValidateID("municipality_id", r.MunicipalityID); err != nil {
		return err
	}
	return domain.ValidateID("user_id", r.UserID)
}
