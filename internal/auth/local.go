package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"haruboard/internal/models"
)

const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like local@domain.tld.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

type LocalConfig struct {
	Secret        string
	TTL           time.Duration
	RefreshWindow time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// LocalProvider keeps credentials in the application database.
type LocalProvider struct {
	db            *gorm.DB
	tokens        tokenIssuer
	refreshWindow time.Duration
	cost          int
	log           *zap.Logger
	now           func() time.Time

	mu        sync.Mutex
	nextID    int
	observers map[int]Observer
}

func NewLocalProvider(db *gorm.DB, cfg LocalConfig, log *zap.Logger) *LocalProvider {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &LocalProvider{
		db:            db,
		tokens:        tokenIssuer{secret: []byte(cfg.Secret), ttl: cfg.TTL, issuer: "haruboard"},
		refreshWindow: cfg.RefreshWindow,
		cost:          cost,
		log:           log,
		now:           time.Now,
		observers:     make(map[int]Observer),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *LocalProvider) Register(ctx context.Context, email, password string) (*Identity, error) {
	email = normalizeEmail(email)
	if !ValidEmail(email) {
		return nil, newError(CodeInvalidEmail, "email address is badly formatted")
	}
	if len(password) < MinPasswordLength {
		return nil, newError(CodeWeakPassword, "password should be at least 6 characters")
	}

	var count int64
	if err := p.db.WithContext(ctx).Model(&models.Credential{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("look up credential: %w", err)
	}
	if count > 0 {
		return nil, newError(CodeEmailAlreadyInUse, "email address is already in use")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	cred := models.Credential{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    p.now().UTC(),
	}
	if err := p.db.WithContext(ctx).Create(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, newError(CodeEmailAlreadyInUse, "email address is already in use")
		}
		return nil, fmt.Errorf("create credential: %w", err)
	}

	id, err := p.start(cred)
	if err != nil {
		return nil, err
	}
	p.log.Info("identity registered", zap.String("uid", id.UID))
	p.emit(ctx, Event{Kind: EventSignedIn, Identity: *id})
	return id, nil
}

func (p *LocalProvider) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	email = normalizeEmail(email)
	if !ValidEmail(email) {
		return nil, newError(CodeInvalidEmail, "email address is badly formatted")
	}

	var cred models.Credential
	if err := p.db.WithContext(ctx).Where("email = ?", email).First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(CodeUserNotFound, "no user record for this email")
		}
		return nil, fmt.Errorf("look up credential: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, newError(CodeWrongPassword, "password is invalid")
	}
	if cred.Disabled {
		return nil, newError(CodeUserDisabled, "user account has been disabled")
	}

	id, err := p.start(cred)
	if err != nil {
		return nil, err
	}
	p.emit(ctx, Event{Kind: EventSignedIn, Identity: *id})
	return id, nil
}

func (p *LocalProvider) EndSession(ctx context.Context, id *Identity) error {
	if id == nil {
		return nil
	}
	p.emit(ctx, Event{Kind: EventSignedOut, Identity: *id})
	return nil
}

func (p *LocalProvider) Verify(ctx context.Context, token string) (*Identity, error) {
	now := p.now()
	c, err := p.tokens.parse(token, now)
	if err != nil {
		return nil, err
	}
	id := &Identity{
		UID:       c.Subject,
		Email:     c.Email,
		Token:     token,
		ExpiresAt: c.ExpiresAt.Time,
	}
	if id.ExpiresAt.Sub(now) <= p.refreshWindow {
		return p.Refresh(ctx, id)
	}
	return id, nil
}

func (p *LocalProvider) Refresh(ctx context.Context, id *Identity) (*Identity, error) {
	var cred models.Credential
	if err := p.db.WithContext(ctx).Where("uid = ?", id.UID).First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(CodeUserNotFound, "no user record for this session")
		}
		return nil, fmt.Errorf("look up credential: %w", err)
	}
	if cred.Disabled {
		return nil, newError(CodeUserDisabled, "user account has been disabled")
	}

	next, err := p.start(cred)
	if err != nil {
		return nil, err
	}
	p.emit(ctx, Event{Kind: EventRefreshed, Identity: *next})
	return next, nil
}

func (p *LocalProvider) Observe(fn Observer) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.observers[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.observers, id)
		p.mu.Unlock()
	}
}

func (p *LocalProvider) start(cred models.Credential) (*Identity, error) {
	token, exp, err := p.tokens.issue(cred.UID, cred.Email, p.now())
	if err != nil {
		return nil, err
	}
	return &Identity{UID: cred.UID, Email: cred.Email, Token: token, ExpiresAt: exp}, nil
}

func (p *LocalProvider) emit(ctx context.Context, ev Event) {
	p.mu.Lock()
	observers := make([]Observer, 0, len(p.observers))
	for _, fn := range p.observers {
		observers = append(observers, fn)
	}
	p.mu.Unlock()

	for _, fn := range observers {
		fn(ctx, ev)
	}
}

// SetDisabled toggles a credential. Disabled users cannot sign in and
// their sessions end at the next refresh.
func (p *LocalProvider) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	res := p.db.WithContext(ctx).Model(&models.Credential{}).Where("uid = ?", uid).Update("disabled", disabled)
	if res.Error != nil {
		return fmt.Errorf("update credential: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return newError(CodeUserNotFound, "no user record for this uid")
	}
	return nil
}
