//go:build unit

package main

import (
	"testing"

	"openbooking/internal/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisClientSkippedWhenFastCacheDisabled(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.Payment.FastCacheEnabled = false

	client, err := newRedisClient(nil, cfg)
	require.NoError(t, err)
	assert.Nil(t, client)
}
