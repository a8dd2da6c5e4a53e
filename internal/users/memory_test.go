package users

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tubeline/user-service/internal/models"
)

func TestMemoryRepo_CreateEnforcesUniqueness(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	u, err := repo.Create(ctx, &models.User{Username: "alice", Email: "alice@example.com", Password: "h"})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)

	_, err = repo.Create(ctx, &models.User{Username: "alice", Email: "other@example.com"})
	require.ErrorIs(t, err, ErrDuplicate)
	_, err = repo.Create(ctx, &models.User{Username: "other", Email: "alice@example.com"})
	require.ErrorIs(t, err, ErrDuplicate)

	got, err := repo.FindByIdentifier(ctx, Lookup{Email: "alice@example.com"})
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	missing, err := repo.FindByIdentifier(ctx, Lookup{Username: "nobody"})
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestMemoryRepo_ProfileProjection(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()
	u, err := repo.Create(ctx, &models.User{Username: "bob", Email: "bob@example.com", Password: "digest"})
	require.NoError(t, err)
	require.NoError(t, repo.SetRefreshToken(ctx, u.ID, "rt-1"))

	p, err := repo.FindProfileByID(ctx, u.ID)
	require.NoError(t, err)
	require.Empty(t, p.Password)
	require.Empty(t, p.RefreshToken)

	full, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "digest", full.Password)
	require.Equal(t, "rt-1", full.RefreshToken)
}

func TestMemoryRepo_SwapRefreshTokenSingleWinner(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()
	u, err := repo.Create(ctx, &models.User{Username: "carol", Email: "carol@example.com"})
	require.NoError(t, err)
	require.NoError(t, repo.SetRefreshToken(ctx, u.ID, "old"))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.SwapRefreshToken(ctx, u.ID, "old", "new")
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins)

	require.NoError(t, repo.ClearRefreshToken(ctx, u.ID))
	require.NoError(t, repo.ClearRefreshToken(ctx, u.ID))
	ok, err := repo.SwapRefreshToken(ctx, u.ID, "", "x")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryRepo_UpdateFields(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()
	a, _ := repo.Create(ctx, &models.User{Username: "a", Email: "a@example.com"})
	_, _ = repo.Create(ctx, &models.User{Username: "b", Email: "b@example.com"})

	name := "A Person"
	got, err := repo.UpdateFields(ctx, a.ID, Update{FullName: &name})
	require.NoError(t, err)
	require.Equal(t, "A Person", got.FullName)
	require.Equal(t, "a@example.com", got.Email)

	taken := "b@example.com"
	_, err = repo.UpdateFields(ctx, a.ID, Update{Email: &taken})
	require.ErrorIs(t, err, ErrDuplicate)

	none, err := repo.UpdateFields(ctx, "missing", Update{FullName: &name})
	require.NoError(t, err)
	require.Nil(t, none)
}
