//go:build integration

package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"microbonds/pkg/domain"
	"microbonds/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = New(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestAddUserIsIdempotent() {
	ctx := context.Background()

	added, err := s.store.AddUser(ctx, "springfield", "u1")
	s.Require().NoError(err)
	s.True(added)

	added, err = s.store.AddUser(ctx, "springfield", "u1")
	s.Require().NoError(err)
	s.False(added)

	ok, err := s.store.IsMember(ctx, "springfield", "u1")
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.store.IsMember(ctx, "shelbyville", "u1")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RedisStoreSuite) TestListUsersKeepsInsertionOrder() {
	ctx := context.Background()
	for _, u := range []string{"zed", "amy", "kim", "amy"} {
		_, err := s.store.AddUser(ctx, "springfield", u)
		s.Require().NoError(err)
	}

	users, err := s.store.ListUsers(ctx, "springfield", domain.NewPage(0, 10))
	s.Require().NoError(err)
	s.Equal([]string{"zed", "amy", "kim"}, users)

	users, err = s.store.ListUsers(ctx, "springfield", domain.NewPage(1, 1))
	s.Require().NoError(err)
	s.Equal([]string{"amy"}, users)

	users, err = s.store.ListUsers(ctx, "springfield", domain.NewPage(10, 1))
	s.Require().NoError(err)
	s.Empty(users)

	users, err = s.store.ListUsers(ctx, "unknown", domain.NewPage(0, 10))
	s.Require().NoError(err)
	s.Empty(users)
}

func (s *RedisStoreSuite) TestConcurrentAddsCountOnce() {
	ctx := context.Background()
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		added int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.store.AddUser(ctx, "springfield", "u1")
			s.NoError(err)
			if ok {
				mu.Lock()
				added++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(1, added)

	for i := 0; i < 5; i++ {
		_, err := s.store.AddUser(ctx, "springfield", fmt.Sprintf("user-%d", i))
		s.Require().NoError(err)
	}
	users, err := s.store.ListUsers(ctx, "springfield", domain.NewPage(0, 100))
	s.Require().NoError(err)
	s.Len(users, 6)
	s.Equal("u1", users[0])
}

func (s *RedisStoreSuite) TestMunicipalityIDsNeverShareKeys() {
	ctx := context.Background()
	pairs := [][2]string{
		{"springfield", "alice"},
		{"springfield:seq", "bob"},
		{"springfield}", "carol"},
		{"{springfield}", "dave"},
		{"springfield", "erin"},
	}
	for _, p := range pairs {
		added, err := s.store.AddUser(ctx, p[0], p[1])
		s.Require().NoError(err, "municipality %q", p[0])
		s.True(added)
	}

	users, err := s.store.ListUsers(ctx, "springfield", domain.NewPage(0, 10))
	s.Require().NoError(err)
	s.Equal([]string{"alice", "erin"}, users)

	users, err = s.store.ListUsers(ctx, "springfield:seq", domain.NewPage(0, 10))
	s.Require().NoError(err)
	s.Equal([]string{"bob"}, users)

	ok, err := s.store.IsMember(ctx, "springfield:seq", "alice")
	s.Require().NoError(err)
	s.False(ok)
}
