package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"haruboard/internal/auth"
	"haruboard/internal/cache"
	"haruboard/internal/models"
	"haruboard/internal/repository"
)

type sessionFixture struct {
	provider *auth.LocalProvider
	cache    *cache.LRU
	profiles repository.ProfileRepository
	store    *SessionStore
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	gdb := setupDB(t)
	provider := auth.NewLocalProvider(gdb, auth.LocalConfig{
		Secret:        "test-secret",
		TTL:           time.Hour,
		RefreshWindow: 15 * time.Minute,
		BcryptCost:    bcrypt.MinCost,
	}, zap.NewNop())
	c, err := cache.NewLRU(100, time.Minute)
	require.NoError(t, err)
	profiles := repository.NewProfileRepository(gdb, c)
	store := NewSessionStore(provider, profiles, zap.NewNop())
	t.Cleanup(store.Close)
	return &sessionFixture{provider: provider, cache: c, profiles: profiles, store: store}
}

func TestSignupWritesProfile(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	sess, err := f.store.Signup(ctx, "Alice@Example.com", "secret1", "Alice")
	require.NoError(t, err)
	require.NotNil(t, sess.Profile)
	assert.Equal(t, "Alice", sess.Profile.Name())
	assert.Equal(t, "Alice@Example.com", *sess.Profile.Email, "stored as entered")
	assert.NotEmpty(t, sess.Identity.Token)
	assert.Equal(t, sess.Identity.UID, sess.UID())

	p, err := f.profiles.Get(ctx, sess.UID())
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Name())
}

func TestSignupPropagatesProviderErrors(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.store.Signup(ctx, "bad-email", "secret1", "Alice")
	assert.Equal(t, auth.CodeInvalidEmail, auth.CodeOf(err))

	_, err = f.store.Signup(ctx, "a@b.co", "123", "Alice")
	assert.Equal(t, auth.CodeWeakPassword, auth.CodeOf(err))

	_, err = f.store.Signup(ctx, "a@b.co", "secret1", "Alice")
	require.NoError(t, err)
	_, err = f.store.Signup(ctx, "a@b.co", "secret1", "Again")
	assert.Equal(t, auth.CodeEmailAlreadyInUse, auth.CodeOf(err))
}

func TestLoginLoadsProfile(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.store.Signup(ctx, "bob@example.com", "secret1", "Bob")
	require.NoError(t, err)

	sess, err := f.store.Login(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Bob", sess.Profile.Name())

	_, err = f.store.Login(ctx, "bob@example.com", "wrong!!")
	assert.Equal(t, auth.CodeWrongPassword, auth.CodeOf(err))

	_, err = f.store.Login(ctx, "nobody@example.com", "secret1")
	assert.Equal(t, auth.CodeUserNotFound, auth.CodeOf(err))
}

func TestLoginWithoutProfile(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	// Identity without a profile record.
	id, err := f.provider.Register(ctx, "orphan@example.com", "secret1")
	require.NoError(t, err)

	sess, err := f.store.Login(ctx, "orphan@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, id.UID, sess.UID())
	assert.NotEmpty(t, sess.Identity.Token)
	assert.Nil(t, sess.Profile)
}

type brokenProfiles struct {
	repository.ProfileRepository
	err error
}

func (b brokenProfiles) Get(context.Context, string) (*models.Profile, error) {
	return nil, b.err
}

func TestLoginFailsOnProfileStoreError(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.store.Signup(ctx, "frank@example.com", "secret1", "Frank")
	require.NoError(t, err)

	storeErr := errors.New("connection reset")
	store := NewSessionStore(f.provider, brokenProfiles{ProfileRepository: f.profiles, err: storeErr}, zap.NewNop())
	t.Cleanup(store.Close)

	sess, err := store.Login(ctx, "frank@example.com", "secret1")
	assert.ErrorIs(t, err, storeErr)
	assert.Nil(t, sess)
}

func TestLogoutEvictsProfile(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	sess, err := f.store.Signup(ctx, "carol@example.com", "secret1", "Carol")
	require.NoError(t, err)
	_, cached := f.cache.Get(ctx, sess.UID())
	require.True(t, cached)

	require.NoError(t, f.store.Logout(ctx, sess))
	_, cached = f.cache.Get(ctx, sess.UID())
	assert.False(t, cached)

	assert.NoError(t, f.store.Logout(ctx, nil))
}

func TestResume(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	sess, err := f.store.Signup(ctx, "dave@example.com", "secret1", "Dave")
	require.NoError(t, err)

	resumed, err := f.store.Resume(ctx, sess.Identity.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.UID(), resumed.UID())
	assert.Equal(t, "Dave", resumed.Profile.Name())

	_, err = f.store.Resume(ctx, "not-a-token")
	assert.Equal(t, auth.CodeInvalidToken, auth.CodeOf(err))
}

func TestResumeWithoutProfile(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	id, err := f.provider.Register(ctx, "erin@example.com", "secret1")
	require.NoError(t, err)

	sess, err := f.store.Resume(ctx, id.Token)
	require.NoError(t, err)
	assert.Nil(t, sess.Profile)
}

func TestObserveSessionTransitions(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	var (
		mu    sync.Mutex
		kinds []auth.EventKind
		names []string
	)
	cancel := f.store.Observe(func(_ context.Context, kind auth.EventKind, s *Session) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, kind)
		names = append(names, s.Profile.Name())
	})

	sess, err := f.store.Signup(ctx, "frank@example.com", "secret1", "Frank")
	require.NoError(t, err)
	_, err = f.store.Login(ctx, "frank@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, f.store.Logout(ctx, sess))

	cancel()
	_, err = f.store.Login(ctx, "frank@example.com", "secret1")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []auth.EventKind{auth.EventSignedIn, auth.EventSignedIn, auth.EventSignedOut}, kinds)
	// Signup fires before the profile exists; login sees it settled.
	assert.Equal(t, []string{"", "Frank", ""}, names)
}
