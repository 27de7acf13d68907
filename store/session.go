package store

import (
	"context"
	"sync"

	"vasilala/gateway"
	"vasilala/logger"
	"vasilala/model"
)

// SessionState is a copy of the auth session store's state.
type SessionState struct {
	Session     *gateway.Session
	Permissions model.Permissions
	Busy        bool
	Err         string
}

// SessionStore owns the auth session: who is signed in, with which
// permissions. It wraps the gateway identity provider and mirrors its
// session-change notifications.
type SessionStore struct {
	mu       sync.Mutex
	identity gateway.Identity

	session *gateway.Session
	busy    bool
	errMsg  string

	listeners    map[int]func(SessionState)
	nextListener int

	unsubscribe func()
}

// NewSessionStore creates the session store and subscribes it to the
// identity provider's session changes.
func NewSessionStore(identity gateway.Identity) *SessionStore {
	s := &SessionStore{
		identity:  identity,
		listeners: make(map[int]func(SessionState)),
	}
	s.unsubscribe = identity.OnSessionChange(s.onSessionChange)
	return s
}

func (s *SessionStore) onSessionChange(session *gateway.Session) {
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
	s.notify()
}

// State returns a copy of the session state.
func (s *SessionStore) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *SessionStore) stateLocked() SessionState {
	state := SessionState{Busy: s.busy, Err: s.errMsg}
	if s.session != nil {
		copied := *s.session
		state.Session = &copied
		state.Permissions = model.PermissionsFor(s.session.User)
	}
	return state
}

// UserID returns the signed-in user's id, or empty.
func (s *SessionStore) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ""
	}
	return s.session.User.ID
}

// SignedIn reports whether a session is active.
func (s *SessionStore) SignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// Permissions returns the signed-in user's derived capability flags.
func (s *SessionStore) Permissions() model.Permissions {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return model.Permissions{}
	}
	return model.PermissionsFor(s.session.User)
}

// SignIn authenticates and stores the session. The failure is captured
// into store state as well as returned.
func (s *SessionStore) SignIn(ctx context.Context, email, password string) error {
	s.setBusy(true)
	defer s.setBusy(false)

	if _, err := s.identity.SignIn(ctx, email, password); err != nil {
		s.setError(err.Error())
		return err
	}
	s.setError("")
	return nil
}

// SignUp registers a new account and stores the resulting session.
func (s *SessionStore) SignUp(ctx context.Context, email, username, password string, userType model.UserType) error {
	s.setBusy(true)
	defer s.setBusy(false)

	if _, err := s.identity.SignUp(ctx, email, username, password, userType); err != nil {
		s.setError(err.Error())
		return err
	}
	s.setError("")
	return nil
}

// SignOut ends the session.
func (s *SessionStore) SignOut(ctx context.Context) error {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == nil {
		return nil
	}

	if err := s.identity.SignOut(ctx, session.Token); err != nil {
		logger.Warn("sign-out failed", logger.ErrorField(err))
		return err
	}
	return nil
}

// Subscribe registers a state listener.
func (s *SessionStore) Subscribe(fn func(SessionState)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Close detaches the store from the identity provider.
func (s *SessionStore) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *SessionStore) setBusy(busy bool) {
	s.mu.Lock()
	s.busy = busy
	s.mu.Unlock()
	s.notify()
}

func (s *SessionStore) setError(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
	s.notify()
}

func (s *SessionStore) notify() {
	s.mu.Lock()
	state := s.stateLocked()
	fns := make([]func(SessionState), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
