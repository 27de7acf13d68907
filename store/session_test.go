package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vasilala/gateway"
	"vasilala/model"
)

// fakeIdentity is an in-memory gateway.Identity.
type fakeIdentity struct {
	mu        sync.Mutex
	accounts  map[string]string // email -> password
	listeners []func(*gateway.Session)
	signInErr error
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{accounts: make(map[string]string)}
}

func (f *fakeIdentity) sessionFor(email string) *gateway.Session {
	return &gateway.Session{
		Token: "token-" + email,
		User: model.UserProfile{
			ID:           "uid-" + email,
			Username:     email,
			UserType:     model.UserTypeArtist,
			Verification: model.VerificationApproved,
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func (f *fakeIdentity) notify(s *gateway.Session) {
	f.mu.Lock()
	fns := append([]func(*gateway.Session){}, f.listeners...)
	f.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

func (f *fakeIdentity) SignUp(ctx context.Context, email, username, password string, userType model.UserType) (*gateway.Session, error) {
	f.mu.Lock()
	f.accounts[email] = password
	f.mu.Unlock()
	s := f.sessionFor(email)
	f.notify(s)
	return s, nil
}

func (f *fakeIdentity) SignIn(ctx context.Context, email, password string) (*gateway.Session, error) {
	f.mu.Lock()
	err := f.signInErr
	stored, ok := f.accounts[email]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !ok || stored != password {
		return nil, errors.New("invalid credentials")
	}
	s := f.sessionFor(email)
	f.notify(s)
	return s, nil
}

func (f *fakeIdentity) SignOut(ctx context.Context, token string) error {
	f.notify(nil)
	return nil
}

func (f *fakeIdentity) OnSessionChange(fn func(*gateway.Session)) func() {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	idx := len(f.listeners) - 1
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.listeners[idx] = func(*gateway.Session) {}
		f.mu.Unlock()
	}
}

func TestSessionSignInSignOut(t *testing.T) {
	identity := newFakeIdentity()
	identity.accounts["a@b.c"] = "pw"

	s := NewSessionStore(identity)
	defer s.Close()

	assert.False(t, s.SignedIn())
	assert.Empty(t, s.UserID())

	require.NoError(t, s.SignIn(context.Background(), "a@b.c", "pw"))
	assert.True(t, s.SignedIn())
	assert.Equal(t, "uid-a@b.c", s.UserID())

	perms := s.Permissions()
	assert.True(t, perms.CanPublishTracks, "verified artist can publish")

	require.NoError(t, s.SignOut(context.Background()))
	assert.False(t, s.SignedIn())
	assert.Equal(t, model.Permissions{}, s.Permissions())
}

func TestSessionSignInFailureCaptured(t *testing.T) {
	identity := newFakeIdentity()
	identity.signInErr = errors.New("identity backend down")

	s := NewSessionStore(identity)
	defer s.Close()

	err := s.SignIn(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	assert.False(t, s.SignedIn())
	assert.Equal(t, "identity backend down", s.State().Err)
}

func TestSessionSignUpStoresSession(t *testing.T) {
	identity := newFakeIdentity()
	s := NewSessionStore(identity)
	defer s.Close()

	require.NoError(t, s.SignUp(context.Background(), "new@b.c", "new", "pw", model.UserTypeFan))
	assert.True(t, s.SignedIn())
	assert.Empty(t, s.State().Err)
}

func TestSessionSubscribe(t *testing.T) {
	identity := newFakeIdentity()
	identity.accounts["a@b.c"] = "pw"

	s := NewSessionStore(identity)
	defer s.Close()

	var mu sync.Mutex
	var signedIn []bool
	unsubscribe := s.Subscribe(func(state SessionState) {
		mu.Lock()
		signedIn = append(signedIn, state.Session != nil)
		mu.Unlock()
	})
	defer unsubscribe()

	require.NoError(t, s.SignIn(context.Background(), "a@b.c", "pw"))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, signedIn, true)
}
