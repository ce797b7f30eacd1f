package session

import (
	"context"
	"errors"
	"testing"

	"github.com/markalston/review-insight/internal/models"
	"github.com/markalston/review-insight/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetcherFunc func(ctx context.Context) (*models.User, error)

func (f fetcherFunc) Me(ctx context.Context) (*models.User, error) { return f(ctx) }

func newStore(t *testing.T, opts ...Option) (*Store, *storage.MemoryStore) {
	t.Helper()
	kv := storage.NewMemory()
	s := New(kv, opts...)
	require.NoError(t, s.Hydrate(context.Background()))
	return s, kv
}

func TestLoginLogout_AlwaysEndsEmpty(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)

	users := []*models.User{{ID: "u1"}, {ID: "u2", Email: "b@x.io"}, {ID: "u1", Credits: 5}}
	for _, u := range users {
		require.NoError(t, s.Login(ctx, "tok-"+u.ID, u))
		assert.Equal(t, StateLoggedIn, s.Snapshot().State())
	}
	require.NoError(t, s.Logout(ctx))
	require.NoError(t, s.Logout(ctx))

	snap := s.Snapshot()
	assert.Empty(t, snap.Token)
	assert.Nil(t, snap.User)
	assert.Equal(t, StateLoggedOut, snap.State())

	tok, err := kv.Get(ctx, tokenKey)
	require.NoError(t, err)
	assert.Nil(t, tok)
	usr, err := kv.Get(ctx, userKey)
	require.NoError(t, err)
	assert.Nil(t, usr)
}

func TestLogin_RejectsHalfSession(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Login(ctx, "", &models.User{ID: "u1"}), ErrInvalidSession)
	assert.ErrorIs(t, s.Login(ctx, "tok", nil), ErrInvalidSession)
	assert.Equal(t, StateLoggedOut, s.Snapshot().State())
}

func TestHydrate_RestoresPersistedSession(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()

	first := New(kv)
	require.NoError(t, first.Hydrate(ctx))
	require.NoError(t, first.Login(ctx, "tok", &models.User{ID: "u1", Name: "Kim"}))

	second := New(kv)
	assert.False(t, second.Ready())
	assert.Equal(t, StateUnknown, second.Snapshot().State())

	require.NoError(t, second.Hydrate(ctx))
	snap := second.Snapshot()
	assert.Equal(t, "tok", snap.Token)
	require.NotNil(t, snap.User)
	assert.Equal(t, "Kim", snap.User.Name)
}

func TestHydrate_MalformedDataIsNoSession(t *testing.T) {
	cases := map[string]struct {
		token []byte
		user  []byte
	}{
		"corrupt json":     {[]byte("tok"), []byte(`{"id":`)},
		"wrong json shape": {[]byte("tok"), []byte(`[1,2,3]`)},
		"null user":        {[]byte("tok"), []byte(`null`)},
		"user without id":  {[]byte("tok"), []byte(`{"email":"a@b.c"}`)},
		"token only":       {[]byte("tok"), nil},
		"user only":        {nil, []byte(`{"id":"u1"}`)},
		"empty token":      {[]byte(""), []byte(`{"id":"u1"}`)},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			kv := storage.NewMemory()
			if tc.token != nil {
				require.NoError(t, kv.Set(ctx, tokenKey, tc.token))
			}
			if tc.user != nil {
				require.NoError(t, kv.Set(ctx, userKey, tc.user))
			}

			s := New(kv)
			require.NotPanics(t, func() {
				require.NoError(t, s.Hydrate(ctx))
			})

			snap := s.Snapshot()
			assert.True(t, snap.Ready)
			assert.Nil(t, snap.User)
			assert.Empty(t, snap.Token)

			n, err := kv.Count(ctx, "auth.")
			require.NoError(t, err)
			assert.Zero(t, n, "broken keys are discarded")
		})
	}
}

func TestHydrate_StorageErrorStillReady(t *testing.T) {
	kv := storage.NewMemory()
	require.NoError(t, kv.Close())

	s := New(kv)
	err := s.Hydrate(context.Background())
	require.ErrorIs(t, err, storage.ErrClosed)
	assert.Equal(t, StateLoggedOut, s.Snapshot().State())
}

func TestRefresh_ReplacesUserKeepsToken(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t, WithFetcher(fetcherFunc(func(ctx context.Context) (*models.User, error) {
		return &models.User{ID: "u1", Credits: 40}, nil
	})))
	require.NoError(t, s.Login(ctx, "tok", &models.User{ID: "u1", Credits: 10}))

	u, err := s.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, u.Credits)
	assert.Equal(t, "tok", s.Snapshot().Token)

	reloaded := New(kv)
	require.NoError(t, reloaded.Hydrate(ctx))
	assert.Equal(t, 40, reloaded.User().Credits)
}

func TestRefresh_KeepStaleByDefault(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("network down")
	s, _ := newStore(t, WithFetcher(fetcherFunc(func(ctx context.Context) (*models.User, error) {
		return nil, boom
	})))
	require.NoError(t, s.Login(ctx, "tok", &models.User{ID: "u1", Credits: 10}))

	_, err := s.Refresh(ctx)
	require.ErrorIs(t, err, ErrRefreshFailed)
	require.ErrorIs(t, err, boom)

	snap := s.Snapshot()
	assert.Equal(t, "tok", snap.Token)
	assert.Equal(t, 10, snap.User.Credits)
}

func TestRefresh_LogoutOnFailurePolicy(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t,
		WithPolicy(LogoutOnFailure),
		WithFetcher(fetcherFunc(func(ctx context.Context) (*models.User, error) {
			return nil, errors.New("boom")
		})),
	)
	require.NoError(t, s.Login(ctx, "tok", &models.User{ID: "u1"}))

	_, err := s.Refresh(ctx)
	require.ErrorIs(t, err, ErrRefreshFailed)
	assert.Equal(t, StateLoggedOut, s.Snapshot().State())
}

func TestRefresh_NotLoggedIn(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestRefresh_SupersededResultIsDropped(t *testing.T) {
	ctx := context.Background()
	var s *Store
	s, _ = newStore(t, WithFetcher(fetcherFunc(func(ctx context.Context) (*models.User, error) {
		// the user logs out while the request is in flight
		require.NoError(t, s.Logout(ctx))
		return &models.User{ID: "u1", Credits: 99}, nil
	})))
	require.NoError(t, s.Login(ctx, "tok", &models.User{ID: "u1"}))

	user, err := s.Refresh(ctx)
	require.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Nil(t, user)
	assert.Equal(t, StateLoggedOut, s.Snapshot().State())
}

func TestInvalidate_ClearsBoth(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	require.NoError(t, s.Login(ctx, "tok", &models.User{ID: "u1"}))

	require.NoError(t, s.Invalidate(ctx))
	assert.Empty(t, s.Token(ctx))
	assert.Nil(t, s.User())
}

func TestSubscribe_ReceivesChanges(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	var states []State
	unsubscribe := s.Subscribe(func(snap Snapshot) { states = append(states, snap.State()) })

	require.NoError(t, s.Login(ctx, "tok", &models.User{ID: "u1"}))
	require.NoError(t, s.Logout(ctx))
	unsubscribe()
	require.NoError(t, s.Login(ctx, "tok", &models.User{ID: "u1"}))

	assert.Equal(t, []State{StateLoggedIn, StateLoggedOut}, states)
}

func TestSnapshot_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	require.NoError(t, s.Login(ctx, "tok", &models.User{ID: "u1", Credits: 1}))

	s.Snapshot().User.Credits = 1000
	assert.Equal(t, 1, s.User().Credits)
}
