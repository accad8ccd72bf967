package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPoolOptions_ApplyEnv(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "4")
	t.Setenv("DB_MIN_CONNS", "9")
	t.Setenv("DB_CONNECT_TIMEOUT", "2s")

	var o PoolOptions
	o.applyEnv()
	assert.Equal(t, 4, o.MaxConns)
	assert.Equal(t, 4, o.MinConns, "min is clamped to max")
	assert.Equal(t, 5*time.Minute, o.MaxIdle)
	assert.Equal(t, 2*time.Second, o.ConnectTimeout)

	explicit := PoolOptions{MaxConns: 20, MinConns: 2}
	explicit.applyEnv()
	assert.Equal(t, 20, explicit.MaxConns)
	assert.Equal(t, 2, explicit.MinConns)
}

func TestPoolOptions_ZeroMaxFallsBack(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "0")
	var o PoolOptions
	o.applyEnv()
	assert.Equal(t, 10, o.MaxConns)
}

func TestOpen_NoURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := Open(context.Background(), PoolOptions{})
	assert.ErrorIs(t, err, ErrNoDatabaseURL)
}

func TestOpenOptional(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	pool, err := OpenOptional(context.Background(), zap.NewNop(), false)
	require.NoError(t, err)
	assert.Nil(t, pool)

	_, err = OpenOptional(context.Background(), zap.NewNop(), true)
	assert.ErrorIs(t, err, ErrNoDatabaseURL)
}

func TestOpen_BadURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://%zz")
	_, err := Open(context.Background(), PoolOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse DATABASE_URL")
}
