package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microbonds/internal/platform/config"
)

func TestNew_BlankURLIsNotConfigured(t *testing.T) {
	client, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestOptions(t *testing.T) {
	opts, err := options(config.RedisConfig{
		URL:          "redis://localhost:6379/2",
		PoolSize:     20,
		MinIdleConns: 4,
		ReadTimeout:  time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 20, opts.PoolSize)
	assert.Equal(t, 4, opts.MinIdleConns)
	assert.Equal(t, time.Second, opts.ReadTimeout)
}

func TestOptions_InvalidURL(t *testing.T) {
	_, err := options(config.RedisConfig{URL: "http://nope"})
	assert.ErrorContains(t, err, "parse redis URL")
}
