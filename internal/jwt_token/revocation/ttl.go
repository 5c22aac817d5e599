// Package revocation lists caller tokens that were revoked before they
// expired, keyed by the token's jti.
package revocation

import (
	"fmt"
	"time"

	"microbonds/pkg/platform/sentinel"
)

// validateTTL rejects entries that would be born expired.
func validateTTL(ttl time.Duration) error {
	if ttl > 0 {
		return nil
	}
	return fmt.Errorf("revocation ttl %s: %w", ttl, sentinel.ErrInvalidState)
}
