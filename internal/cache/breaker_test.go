package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/mongomart/internal/domain"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyCache struct {
	err   error
	calls int
}

func (f *flakyCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Cart{UserID: userID}, nil
}

func (f *flakyCache) Version(context.Context, string) (int64, error) {
	f.calls++
	return 7, f.err
}

func (f *flakyCache) SetIfVersion(context.Context, string, *domain.Cart, int64) (bool, error) {
	f.calls++
	return f.err == nil, f.err
}

func (f *flakyCache) Invalidate(context.Context, string) error {
	f.calls++
	return f.err
}

func TestBreakerCache_PassThrough(t *testing.T) {
	next := &flakyCache{}
	b := NewBreakerCache(next, BreakerSettings{})

	cart, err := b.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", cart.UserID)
	version, err := b.Version(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), version)
	stored, err := b.SetIfVersion(context.Background(), "u1", cart, version)
	require.NoError(t, err)
	assert.True(t, stored)
	require.NoError(t, b.Invalidate(context.Background(), "u1"))
	assert.Equal(t, 4, next.calls)
}

func TestBreakerCache_MissDoesNotTrip(t *testing.T) {
	next := &flakyCache{err: ErrCacheMiss}
	b := NewBreakerCache(next, BreakerSettings{ConsecutiveFailures: 2})

	for i := 0; i < 5; i++ {
		_, err := b.Get(context.Background(), "u1")
		assert.ErrorIs(t, err, ErrCacheMiss)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerCache_OpensAfterFailures(t *testing.T) {
	next := &flakyCache{err: errors.New("connection refused")}
	var transitions []gobreaker.State
	b := NewBreakerCache(next, BreakerSettings{
		ConsecutiveFailures: 2,
		OpenTimeout:         time.Hour,
		OnStateChange: func(_ string, _, to gobreaker.State) {
			transitions = append(transitions, to)
		},
	})

	_, err := b.Get(context.Background(), "u1")
	assert.Error(t, err)
	err = b.Invalidate(context.Background(), "u1")
	assert.Error(t, err)

	assert.Equal(t, gobreaker.StateOpen, b.State())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	_, err = b.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, next.calls)
}
