// Package auth is the identity provider: it owns credentials, issues
// session tokens and announces every session transition to observers.
package auth

import (
	"context"
	"time"
)

// Identity is an authenticated user as seen by the provider.
type Identity struct {
	UID       string
	Email     string
	Token     string
	ExpiresAt time.Time
}

type EventKind int

const (
	EventSignedIn EventKind = iota + 1
	EventSignedOut
	EventRefreshed
)

func (k EventKind) String() string {
	switch k {
	case EventSignedIn:
		return "signed_in"
	case EventSignedOut:
		return "signed_out"
	case EventRefreshed:
		return "refreshed"
	}
	return "unknown"
}

type Event struct {
	Kind     EventKind
	Identity Identity
}

// Observer is called synchronously, before the operation that caused the
// transition returns.
type Observer func(ctx context.Context, ev Event)

type Provider interface {
	Authenticate(ctx context.Context, email, password string) (*Identity, error)
	Register(ctx context.Context, email, password string) (*Identity, error)
	EndSession(ctx context.Context, id *Identity) error

	// Verify checks a session token. Tokens close to expiry are re-issued
	// and reported with EventRefreshed.
	Verify(ctx context.Context, token string) (*Identity, error)
	Refresh(ctx context.Context, id *Identity) (*Identity, error)

	Observe(fn Observer) (cancel func())
}
