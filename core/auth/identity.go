package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vasilala/gateway"
	"vasilala/logger"
	"vasilala/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrInvalidCredentials is returned on a failed sign-in attempt.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Credential is the stored login record. Profiles live in the document
// store; only the secret material lives here.
type Credential struct {
	UserID       string `gorm:"primaryKey;size:64"`
	Email        string `gorm:"uniqueIndex;size:255"`
	PasswordHash string `gorm:"size:255"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides the default pluralization.
func (Credential) TableName() string {
	return "credentials"
}

// Provider implements gateway.Identity backed by a credentials table and
// the users document collection.
type Provider struct {
	db         *gorm.DB
	docs       gateway.DocumentStore
	secret     string
	tokenTTL   time.Duration
	bcryptCost int

	mu        sync.Mutex
	listeners map[int]func(*gateway.Session)
	nextID    int
}

// NewProvider creates an identity provider.
func NewProvider(db *gorm.DB, docs gateway.DocumentStore, secret string, tokenTTL time.Duration, bcryptCost int) *Provider {
	return &Provider{
		db:         db,
		docs:       docs,
		secret:     secret,
		tokenTTL:   tokenTTL,
		bcryptCost: bcryptCost,
		listeners:  make(map[int]func(*gateway.Session)),
	}
}

var _ gateway.Identity = (*Provider)(nil)

// SignUp registers a new account: a credential row plus a profile
// document, then signs the user in.
func (p *Provider) SignUp(ctx context.Context, email, username, password string, userType model.UserType) (*gateway.Session, error) {
	if email == "" || username == "" {
		return nil, errors.New("email and username are required")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	hash, err := HashPassword(password, p.bcryptCost)
	if err != nil {
		return nil, err
	}

	userID := uuid.New().String()
	cred := Credential{
		UserID:       userID,
		Email:        email,
		PasswordHash: hash,
	}
	if err := p.db.WithContext(ctx).Create(&cred).Error; err != nil {
		return nil, fmt.Errorf("failed to create credential: %w", err)
	}

	now := time.Now().UTC()
	profile := gateway.Document{
		"id":           userID,
		"username":     username,
		"email":        email,
		"displayName":  username,
		"userType":     string(userType),
		"verification": string(model.VerificationPending),
		"createdAt":    now.Format(time.RFC3339),
	}
	if _, err := p.docs.Create(ctx, gateway.CollectionUsers, profile); err != nil {
		// Best effort cleanup so the email is not burned.
		if derr := p.db.WithContext(ctx).Delete(&Credential{}, "user_id = ?", userID).Error; derr != nil {
			logger.Error("failed to clean up credential after profile failure",
				logger.String("userId", userID), logger.ErrorField(derr))
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	return p.issueSession(ctx, userID)
}

// SignIn verifies credentials and issues a session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*gateway.Session, error) {
	var cred Credential
	err := p.db.WithContext(ctx).Where("email = ?", email).First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up credential: %w", err)
	}

	if !CheckPasswordHash(password, cred.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return p.issueSession(ctx, cred.UserID)
}

// SignOut ends the session and notifies listeners with nil.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	if _, err := ParseToken(p.secret, token); err != nil {
		return err
	}
	p.notify(nil)
	return nil
}

// OnSessionChange registers a session listener; the returned function
// removes it.
func (p *Provider) OnSessionChange(fn func(*gateway.Session)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// Authenticate resolves a bearer token to the user's profile. Used by
// the gateway daemon's auth middleware.
func (p *Provider) Authenticate(ctx context.Context, token string) (*model.UserProfile, error) {
	claims, err := ParseToken(p.secret, token)
	if err != nil {
		return nil, err
	}
	return p.loadProfile(ctx, claims.UserID)
}

func (p *Provider) issueSession(ctx context.Context, userID string) (*gateway.Session, error) {
	profile, err := p.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := GenerateToken(p.secret, profile.ID, profile.Username, p.tokenTTL)
	if err != nil {
		return nil, err
	}

	session := &gateway.Session{
		Token:     token,
		User:      *profile,
		ExpiresAt: expiresAt,
	}
	p.notify(session)
	return session, nil
}

func (p *Provider) loadProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	doc, err := p.docs.Get(ctx, gateway.CollectionUsers, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", userID, err)
	}
	return gateway.DecodeProfile(doc)
}

func (p *Provider) notify(session *gateway.Session) {
	p.mu.Lock()
	fns := make([]func(*gateway.Session), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(session)
	}
}
