package sessions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tubeline/user-service/internal/models"
	"github.com/tubeline/user-service/internal/tokens"
	"github.com/tubeline/user-service/pkg/apperr"
)

// fake store for testing: subjects plus their stored refresh token
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*models.User
	tokens   map[string]string
	writeErr error
}

func newFakeStore(users ...*models.User) *fakeStore {
	f := &fakeStore{users: map[string]*models.User{}, tokens: map[string]string{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	cp.RefreshToken = f.tokens[id]
	return &cp, nil
}

func (f *fakeStore) RefreshToken(ctx context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[id], nil
}

func (f *fakeStore) SetRefreshToken(ctx context.Context, id, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.tokens[id] = token
	return nil
}

func (f *fakeStore) SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return false, f.writeErr
	}
	if expected == "" || f.tokens[id] != expected {
		return false, nil
	}
	f.tokens[id] = next
	return true, nil
}

func (f *fakeStore) ClearRefreshToken(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	delete(f.tokens, id)
	return nil
}

func newTestService(store *fakeStore) *Service {
	access := tokens.MustCodec(tokens.Access, "access-secret-for-tests-xxxxxxxxxxxx", 15*time.Minute)
	refresh := tokens.MustCodec(tokens.Refresh, "refresh-secret-for-tests-xxxxxxxxxxx", 24*time.Hour)
	return NewService(store, store, access, refresh)
}

var alice = &models.User{ID: "u-1", Username: "alice", FullName: "Alice Doe", Email: "alice@example.com"}

func TestIssuePair_PersistsReturnedRefreshToken(t *testing.T) {
	store := newFakeStore(alice)
	svc := newTestService(store)
	ctx := context.Background()

	first, err := svc.IssuePair(ctx, alice)
	require.NoError(t, err)
	require.NotEmpty(t, first.AccessToken)
	require.NotEmpty(t, first.RefreshToken)

	second, err := svc.IssuePair(ctx, alice)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	stored, _ := store.RefreshToken(ctx, alice.ID)
	require.Equal(t, second.RefreshToken, stored)

	claims, err := svc.AccessCodec().Verify(second.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "Alice Doe", claims.FullName)
}

func TestIssuePair_PersistenceFailureReturnsNoTokens(t *testing.T) {
	store := newFakeStore(alice)
	svc := newTestService(store)
	ctx := context.Background()

	prev, err := svc.IssuePair(ctx, alice)
	require.NoError(t, err)

	store.writeErr = errors.New("write timeout")
	p, err := svc.IssuePair(ctx, alice)
	require.Nil(t, p)
	require.ErrorIs(t, err, ErrPersistence)
	require.Equal(t, apperr.KindPersistence, apperr.KindOf(err))

	stored, _ := store.RefreshToken(ctx, alice.ID)
	require.Equal(t, prev.RefreshToken, stored)
}

func TestRotate_IssuesNewPairAndInvalidatesOld(t *testing.T) {
	store := newFakeStore(alice)
	svc := newTestService(store)
	ctx := context.Background()

	p1, err := svc.IssuePair(ctx, alice)
	require.NoError(t, err)

	p2, u, err := svc.Rotate(ctx, p1.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, alice.ID, u.ID)
	require.Empty(t, u.RefreshToken)
	require.NotEqual(t, p1.RefreshToken, p2.RefreshToken)

	stored, _ := store.RefreshToken(ctx, alice.ID)
	require.Equal(t, p2.RefreshToken, stored)

	_, _, err = svc.Rotate(ctx, p1.RefreshToken)
	require.ErrorIs(t, err, ErrRevokedOrStale)
}

func TestRotate_ConcurrentSameTokenSingleWinner(t *testing.T) {
	store := newFakeStore(alice)
	svc := newTestService(store)
	ctx := context.Background()

	p, err := svc.IssuePair(ctx, alice)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	pairs := make([]*Pair, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pairs[i], _, results[i] = svc.Rotate(ctx, p.RefreshToken)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i, err := range results {
		if err == nil {
			succeeded++
			stored, _ := store.RefreshToken(ctx, alice.ID)
			assert.Equal(t, pairs[i].RefreshToken, stored)
			continue
		}
		assert.ErrorIs(t, err, ErrRevokedOrStale)
	}
	require.Equal(t, 1, succeeded)
}

func TestRotate_AfterRevokeIsStale(t *testing.T) {
	store := newFakeStore(alice)
	svc := newTestService(store)
	ctx := context.Background()

	p, err := svc.IssuePair(ctx, alice)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, alice.ID))
	require.NoError(t, svc.Revoke(ctx, alice.ID))

	_, _, err = svc.Rotate(ctx, p.RefreshToken)
	require.ErrorIs(t, err, ErrRevokedOrStale)
	require.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
}

func TestRotate_UnknownSubject(t *testing.T) {
	store := newFakeStore(alice)
	svc := newTestService(store)
	ctx := context.Background()

	ghost := &models.User{ID: "u-ghost", Username: "ghost"}
	p, err := svc.mint(ghost)
	require.NoError(t, err)

	_, _, err = svc.Rotate(ctx, p.RefreshToken)
	require.ErrorIs(t, err, ErrSubjectNotFound)
}

func TestRotate_RejectsAccessTokenAndGarbage(t *testing.T) {
	store := newFakeStore(alice)
	svc := newTestService(store)
	ctx := context.Background()

	p, err := svc.IssuePair(ctx, alice)
	require.NoError(t, err)

	_, _, err = svc.Rotate(ctx, p.AccessToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
	require.ErrorIs(t, err, tokens.ErrInvalidSignature)

	_, _, err = svc.Rotate(ctx, "garbage")
	require.ErrorIs(t, err, tokens.ErrMalformed)
}

func TestRotate_FailedSwapKeepsOldToken(t *testing.T) {
	store := newFakeStore(alice)
	svc := newTestService(store)
	ctx := context.Background()

	p, err := svc.IssuePair(ctx, alice)
	require.NoError(t, err)

	store.writeErr = errors.New("primary stepped down")
	_, _, err = svc.Rotate(ctx, p.RefreshToken)
	require.ErrorIs(t, err, ErrPersistence)

	store.writeErr = nil
	stored, _ := store.RefreshToken(ctx, alice.ID)
	require.Equal(t, p.RefreshToken, stored)

	_, _, err = svc.Rotate(ctx, p.RefreshToken)
	require.NoError(t, err)
}
