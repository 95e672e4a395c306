package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"haruboard/internal/auth"
	"haruboard/internal/models"
	"haruboard/internal/repository"
)

// Session is the signed-in user: the provider identity plus the profile
// record, which may be nil if the profile was never written.
type Session struct {
	Identity auth.Identity
	Profile  *models.Profile
}

// UID is "" for a nil session.
func (s *Session) UID() string {
	if s == nil {
		return ""
	}
	return s.Identity.UID
}

// SessionObserver is notified after the store has settled the profile for a
// provider transition.
type SessionObserver func(ctx context.Context, kind auth.EventKind, s *Session)

// SessionStore wraps the identity provider and keeps the current profile
// in step with it. Construct one per process and pass it to the pages.
type SessionStore struct {
	provider auth.Provider
	profiles repository.ProfileRepository
	log      *zap.Logger
	now      func() time.Time

	unsubscribe func()

	mu        sync.Mutex
	nextID    int
	observers map[int]SessionObserver
}

func NewSessionStore(provider auth.Provider, profiles repository.ProfileRepository, log *zap.Logger) *SessionStore {
	s := &SessionStore{
		provider:  provider,
		profiles:  profiles,
		log:       log,
		now:       time.Now,
		observers: make(map[int]SessionObserver),
	}
	s.unsubscribe = provider.Observe(s.onProviderEvent)
	return s
}

// Close detaches the store from the provider.
func (s *SessionStore) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *SessionStore) onProviderEvent(ctx context.Context, ev auth.Event) {
	sess := &Session{Identity: ev.Identity}

	switch ev.Kind {
	case auth.EventSignedIn, auth.EventRefreshed:
		p, err := s.profiles.Refresh(ctx, ev.Identity.UID)
		switch {
		case err == nil:
			sess.Profile = p
		case errors.Is(err, repository.ErrProfileNotFound):
			// signup 时 profile 还没写入
		default:
			s.log.Warn("reload profile failed", zap.String("uid", ev.Identity.UID), zap.Error(err))
		}
	case auth.EventSignedOut:
		s.profiles.Forget(ctx, ev.Identity.UID)
	}

	s.notify(ctx, ev.Kind, sess)
}

// Observe registers fn for every session transition.
func (s *SessionStore) Observe(fn SessionObserver) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *SessionStore) notify(ctx context.Context, kind auth.EventKind, sess *Session) {
	s.mu.Lock()
	fns := make([]SessionObserver, 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ctx, kind, sess)
	}
}

// Login authenticates and loads the profile. A missing profile leaves
// Profile nil; any other store error fails the login.
func (s *SessionStore) Login(ctx context.Context, email, password string) (*Session, error) {
	id, err := s.provider.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	p, err := s.profiles.Get(ctx, id.UID)
	if err != nil && !errors.Is(err, repository.ErrProfileNotFound) {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &Session{Identity: *id, Profile: p}, nil
}

// Signup registers the identity, then writes its profile with email and
// displayName exactly as entered.
func (s *SessionStore) Signup(ctx context.Context, email, password, displayName string) (*Session, error) {
	id, err := s.provider.Register(ctx, email, password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	profile := &models.Profile{
		UID:         id.UID,
		Email:       &email,
		DisplayName: &displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		// identity 已创建但没有 profile，之后登录时 Profile 为空
		s.log.Error("write profile failed", zap.String("uid", id.UID), zap.Error(err))
		return nil, err
	}

	p, err := s.profiles.Refresh(ctx, id.UID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	s.log.Info("user signed up", zap.String("uid", id.UID))
	return &Session{Identity: *id, Profile: p}, nil
}

func (s *SessionStore) Logout(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	return s.provider.EndSession(ctx, &sess.Identity)
}

// Resume restores a session from a token. The returned identity carries a
// new token when the provider refreshed it.
func (s *SessionStore) Resume(ctx context.Context, token string) (*Session, error) {
	id, err := s.provider.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	p, err := s.profiles.Get(ctx, id.UID)
	if err != nil && !errors.Is(err, repository.ErrProfileNotFound) {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &Session{Identity: *id, Profile: p}, nil
}
