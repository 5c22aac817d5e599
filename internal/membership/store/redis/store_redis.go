// Package redis keeps memberships in Redis sorted sets. Each municipality is
// one set scored by a per-municipality counter, so ZRANGE returns members in
// the order they were added.
package redis

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/redis/go-redis/v9"

	"microbonds/pkg/domain"
)

// Member sets and their counters live under separate prefixes so no
// municipality id can name another municipality's counter. The hash tag
// keeps both keys of one municipality in the same cluster slot.
const (
	membersPrefix = "microbonds:members:"
	seqPrefix     = "microbonds:members-seq:"
)

// addScript adds ARGV[1] to the set KEYS[1] with the next value of the
// counter KEYS[2]. Existing members keep their position.
var addScript = redis.NewScript(`
if redis.call('ZSCORE', KEYS[1], ARGV[1]) then
	return 0
end
local seq = redis.call('INCR', KEYS[2])
redis.call('ZADD', KEYS[1], seq, ARGV[1])
return 1
`)

// RedisStore implements the membership store.
type RedisStore struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func membersKey(municipalityID string) string {
	return membersPrefix + "{" + municipalityID + "}"
}

func seqKey(municipalityID string) string {
	return seqPrefix + "{" + municipalityID + "}"
}

func (s *RedisStore) AddUser(ctx context.Context, municipalityID, userID string) (bool, error) {
	added, err := addScript.Run(ctx, s.client,
		[]string{membersKey(municipalityID), seqKey(municipalityID)}, userID,
	).Int()
	if err != nil {
		return false, fmt.Errorf("add member: %w", err)
	}
	return added == 1, nil
}

func (s *RedisStore) ListUsers(ctx context.Context, municipalityID string, page domain.Page) ([]string, error) {
	size := page.Size()
	if size == 0 || page.Offset() > math.MaxInt64 {
		return []string{}, nil
	}
	start := int64(page.Offset())
	stop := int64(-1)
	if size <= math.MaxInt64-uint64(start) {
		stop = start + int64(size) - 1
	}
	users, err := s.client.ZRange(ctx, membersKey(municipalityID), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if users == nil {
		users = []string{}
	}
	return users, nil
}

func (s *RedisStore) IsMember(ctx context.Context, municipalityID, userID string) (bool, error) {
	_, err := s.client.ZScore(ctx, membersKey(municipalityID), userID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check member: %w", err)
	}
	return true, nil
}
