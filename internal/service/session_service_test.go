package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-api/internal/models"
	"github.com/noah-isme/storefront-api/internal/testutil/memstore"
)

func newSessionFixture() (*SessionService, *memstore.Sessions, *memstore.Clock) {
	clock := memstore.NewClock(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	store := memstore.NewSessions(clock)
	svc := NewSessionService(store, NewMetricsService(), nil, time.Minute)
	svc.now = clock.Now
	return svc, store, clock
}

func pairFor(refresh string, expires time.Time) models.TokenPair {
	return models.TokenPair{AccessToken: "access-" + refresh, RefreshToken: refresh, RefreshExpiresAt: expires}
}

func TestSessionServiceRotateIsSingleUse(t *testing.T) {
	svc, _, clock := newSessionFixture()
	ctx := context.Background()
	_, err := svc.CreateSession(ctx, "user-1", pairFor("r1", clock.Now().Add(time.Hour)), models.SessionMetadata{UserAgent: "laptop"})
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := svc.RotateSession(ctx, "user-1", "r1", pairFor("r2", clock.Now().Add(time.Hour)), models.SessionMetadata{})
			assert.NoError(t, err)
			if snap != nil {
				mu.Lock()
				winners++
				mu.Unlock()
				assert.Equal(t, "r1", snap.RefreshToken)
				assert.Equal(t, "access-r1", snap.AccessToken)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)

	sessions, err := svc.ListSessions(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "r2", sessions[0].RefreshToken)
	assert.Equal(t, "laptop", sessions[0].UserAgent)
}

func TestSessionServiceRotateIgnoresExpiredAndForeignSessions(t *testing.T) {
	svc, _, clock := newSessionFixture()
	ctx := context.Background()
	_, err := svc.CreateSession(ctx, "user-1", pairFor("r1", clock.Now().Add(time.Minute)), models.SessionMetadata{})
	require.NoError(t, err)

	snap, err := svc.RotateSession(ctx, "user-2", "r1", pairFor("r2", clock.Now().Add(time.Hour)), models.SessionMetadata{})
	require.NoError(t, err)
	assert.Nil(t, snap)

	clock.Advance(2 * time.Minute)
	snap, err = svc.RotateSession(ctx, "user-1", "r1", pairFor("r2", clock.Now().Add(time.Hour)), models.SessionMetadata{})
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSessionServiceMultipleDevicesAndDeletes(t *testing.T) {
	svc, store, clock := newSessionFixture()
	ctx := context.Background()
	for _, r := range []string{"a", "b", "c"} {
		_, err := svc.CreateSession(ctx, "user-1", pairFor(r, clock.Now().Add(time.Hour)), models.SessionMetadata{})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, store.Count("user-1"))

	require.NoError(t, svc.DeleteSession(ctx, "user-1", "b"))
	assert.Equal(t, 2, store.Count("user-1"))

	require.NoError(t, svc.DeleteAllSessions(ctx, "user-1"))
	assert.Equal(t, 0, store.Count("user-1"))
}

func TestSessionServiceSweep(t *testing.T) {
	svc, store, clock := newSessionFixture()
	ctx := context.Background()
	_, err := svc.CreateSession(ctx, "user-1", pairFor("short", clock.Now().Add(time.Minute)), models.SessionMetadata{})
	require.NoError(t, err)
	_, err = svc.CreateSession(ctx, "user-1", pairFor("long", clock.Now().Add(time.Hour)), models.SessionMetadata{})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	n, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, store.Count("user-1"))
}
