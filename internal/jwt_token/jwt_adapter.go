package jwttoken

import (
	"microbonds/pkg/domain"
	authmw "microbonds/pkg/platform/middleware/auth"
)

// CallerValidator narrows JWTService to what the auth middleware needs.
type CallerValidator struct {
	service *JWTService
}

// Callers returns the validator mounted in front of mutating routes.
func (s *JWTService) Callers() *CallerValidator {
	return &CallerValidator{service: s}
}

func (v *CallerValidator) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := v.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{
		AccountID: domain.AccountID(claims.AccountID),
		JTI:       claims.ID,
	}, nil
}
