package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"haruboard/internal/db"
)

func newTestProvider(t *testing.T) *LocalProvider {
	t.Helper()
	gdb, err := db.Open("sqlite", ":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() { db.Close(gdb) })

	return NewLocalProvider(gdb, LocalConfig{
		Secret:        "test-secret",
		TTL:           time.Hour,
		RefreshWindow: 15 * time.Minute,
		BcryptCost:    bcrypt.MinCost,
	}, zap.NewNop())
}

func TestRegisterAndAuthenticate(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	reg, err := p.Register(ctx, "Alice@Example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, reg.UID)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "alice@example.com", reg.Email)

	got, err := p.Authenticate(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, reg.UID, got.UID)

	verified, err := p.Verify(ctx, got.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.UID, verified.UID)
	assert.Equal(t, got.Token, verified.Token)
}

func TestRegisterErrors(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	_, err := p.Register(ctx, "taken@example.com", "secret1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		code     string
	}{
		{"duplicate", "taken@example.com", "secret1", CodeEmailAlreadyInUse},
		{"duplicate other case", "TAKEN@example.com", "secret1", CodeEmailAlreadyInUse},
		{"bad email", "not-an-email", "secret1", CodeInvalidEmail},
		{"no tld", "user@localhost", "secret1", CodeInvalidEmail},
		{"weak password", "new@example.com", "12345", CodeWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Register(ctx, tt.email, tt.password)
			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err))
		})
	}
}

func TestAuthenticateErrors(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	reg, err := p.Register(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)

	_, err = p.Authenticate(ctx, "bob@example", "secret1")
	assert.Equal(t, CodeInvalidEmail, CodeOf(err))

	_, err = p.Authenticate(ctx, "nobody@example.com", "secret1")
	assert.Equal(t, CodeUserNotFound, CodeOf(err))

	_, err = p.Authenticate(ctx, "bob@example.com", "wrong-password")
	assert.Equal(t, CodeWrongPassword, CodeOf(err))

	require.NoError(t, p.SetDisabled(ctx, reg.UID, true))
	_, err = p.Authenticate(ctx, "bob@example.com", "secret1")
	assert.Equal(t, CodeUserDisabled, CodeOf(err))
}

func TestObserveTransitions(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	var events []EventKind
	cancel := p.Observe(func(_ context.Context, ev Event) {
		events = append(events, ev.Kind)
	})

	id, err := p.Register(ctx, "carol@example.com", "secret1")
	require.NoError(t, err)
	_, err = p.Authenticate(ctx, "carol@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, p.EndSession(ctx, id))

	assert.Equal(t, []EventKind{EventSignedIn, EventSignedIn, EventSignedOut}, events)

	cancel()
	_, err = p.Authenticate(ctx, "carol@example.com", "secret1")
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestVerifyRefreshesNearExpiry(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	start := time.Now()
	p.now = func() time.Time { return start }
	id, err := p.Register(ctx, "dave@example.com", "secret1")
	require.NoError(t, err)

	var refreshed []Event
	p.Observe(func(_ context.Context, ev Event) {
		if ev.Kind == EventRefreshed {
			refreshed = append(refreshed, ev)
		}
	})

	// Outside the refresh window the token is returned as is.
	p.now = func() time.Time { return start.Add(30 * time.Minute) }
	same, err := p.Verify(ctx, id.Token)
	require.NoError(t, err)
	assert.Equal(t, id.Token, same.Token)
	assert.Empty(t, refreshed)

	p.now = func() time.Time { return start.Add(50 * time.Minute) }
	next, err := p.Verify(ctx, id.Token)
	require.NoError(t, err)
	assert.NotEqual(t, id.Token, next.Token)
	assert.True(t, next.ExpiresAt.After(id.ExpiresAt))
	require.Len(t, refreshed, 1)
	assert.Equal(t, id.UID, refreshed[0].Identity.UID)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	start := time.Now()
	p.now = func() time.Time { return start }
	id, err := p.Register(ctx, "erin@example.com", "secret1")
	require.NoError(t, err)

	_, err = p.Verify(ctx, "garbage")
	assert.Equal(t, CodeInvalidToken, CodeOf(err))

	p.now = func() time.Time { return start.Add(2 * time.Hour) }
	_, err = p.Verify(ctx, id.Token)
	assert.Equal(t, CodeInvalidToken, CodeOf(err))

	other := newTestProvider(t)
	other.tokens.secret = []byte("another-secret")
	_, err = other.Verify(ctx, id.Token)
	assert.Equal(t, CodeInvalidToken, CodeOf(err))
}

func TestRefreshDisabledUser(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	id, err := p.Register(ctx, "frank@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, p.SetDisabled(ctx, id.UID, true))
	_, err = p.Refresh(ctx, id)
	assert.Equal(t, CodeUserDisabled, CodeOf(err))
}
