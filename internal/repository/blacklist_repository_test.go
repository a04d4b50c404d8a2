package repository

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlacklistPutAndExists(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewBlacklistRepository(client)

	mock.ExpectSet("blacklist:abc", "revoked", 90*time.Second).SetVal("OK")
	mock.ExpectExists("blacklist:abc").SetVal(1)
	mock.ExpectExists("blacklist:def").SetVal(0)

	require.NoError(t, repo.Put(context.Background(), "abc", 90*time.Second))

	found, err := repo.Exists(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.Exists(context.Background(), "def")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlacklistSkipsExpiredTokens(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewBlacklistRepository(client)

	require.NoError(t, repo.Put(context.Background(), "abc", 0))
	require.NoError(t, repo.Put(context.Background(), "abc", -time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlacklistExistsSurfacesRedisErrors(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewBlacklistRepository(client)

	mock.ExpectExists("blacklist:abc").SetErr(assert.AnError)

	_, err := repo.Exists(context.Background(), "abc")
	assert.Error(t, err)
}
