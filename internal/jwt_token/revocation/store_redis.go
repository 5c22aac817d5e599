package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var checkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "microbonds_token_revocation_check_seconds",
	Help:    "Latency of revocation lookups against Redis",
	Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025},
})

const keyPrefix = "microbonds:trl:jti:"

// RedisTRL shares revocations across replicas. Each key expires with the
// token it names, so the list never outgrows the live token set.
type RedisTRL struct {
	client redis.UniversalClient
}

func NewRedisTRL(client redis.UniversalClient) *RedisTRL {
	return &RedisTRL{client: client}
}

func (t *RedisTRL) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	if jti == "" {
		return nil
	}
	// NX keeps the first expiry when a token is revoked twice.
	if err := t.client.SetNX(ctx, keyPrefix+jti, time.Now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("revoke token %s: %w", jti, err)
	}
	return nil
}

func (t *RedisTRL) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	timer := prometheus.NewTimer(checkDuration)
	defer timer.ObserveDuration()

	n, err := t.client.Exists(ctx, keyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return n > 0, nil
}
