package store

import (
	"context"
	"sync"

	"vasilala/gateway"
	"vasilala/logger"
)

// SettingsState is a copy of the settings store's state.
type SettingsState struct {
	Volume      float64
	Preferences map[string]string
	Drafts      map[string]string
}

// SettingsStore owns user settings and UI-only draft state. It is the
// sole writer of its state; other stores read volume through the
// snapshot and must not mutate it.
type SettingsStore struct {
	mu     sync.Mutex
	docs   gateway.DocumentStore
	userID string

	volume      float64
	preferences map[string]string
	drafts      map[string]string

	listeners    map[int]func(SettingsState)
	nextListener int

	wg sync.WaitGroup
}

// NewSettingsStore creates the settings store with full volume.
func NewSettingsStore(docs gateway.DocumentStore) *SettingsStore {
	return &SettingsStore{
		docs:        docs,
		volume:      1.0,
		preferences: make(map[string]string),
		drafts:      make(map[string]string),
		listeners:   make(map[int]func(SettingsState)),
	}
}

// SetUser switches the acting user. Drafts are discarded; preferences
// reload lazily.
func (s *SettingsStore) SetUser(userID string) {
	s.mu.Lock()
	s.userID = userID
	s.preferences = make(map[string]string)
	s.drafts = make(map[string]string)
	s.mu.Unlock()
	s.notify()
}

// State returns a copy of the settings state.
func (s *SettingsStore) State() SettingsState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *SettingsStore) stateLocked() SettingsState {
	prefs := make(map[string]string, len(s.preferences))
	for k, v := range s.preferences {
		prefs[k] = v
	}
	drafts := make(map[string]string, len(s.drafts))
	for k, v := range s.drafts {
		drafts[k] = v
	}
	return SettingsState{Volume: s.volume, Preferences: prefs, Drafts: drafts}
}

// Volume returns the stored volume.
func (s *SettingsStore) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// SetVolume stores a clamped volume. Purely local state.
func (s *SettingsStore) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
	s.notify()
}

// SetDraft stores a draft form value, e.g. a half-written caption.
func (s *SettingsStore) SetDraft(key, value string) {
	s.mu.Lock()
	if value == "" {
		delete(s.drafts, key)
	} else {
		s.drafts[key] = value
	}
	s.mu.Unlock()
	s.notify()
}

// Draft returns a stored draft value.
func (s *SettingsStore) Draft(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drafts[key]
}

// SetPreference stores a preference locally and writes it through to the
// user document. A failed write restores the previous value.
func (s *SettingsStore) SetPreference(ctx context.Context, key, value string) {
	s.mu.Lock()
	prev, had := s.preferences[key]
	s.preferences[key] = value
	userID := s.userID
	s.mu.Unlock()
	s.notify()

	if userID == "" {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.docs.Update(context.WithoutCancel(ctx), gateway.CollectionUsers, userID, gateway.Document{
			"pref_" + key: value,
		})
		if err != nil {
			logger.Warn("preference write failed, restoring",
				logger.String("key", key), logger.ErrorField(err))
			s.mu.Lock()
			if had {
				s.preferences[key] = prev
			} else {
				delete(s.preferences, key)
			}
			s.mu.Unlock()
			s.notify()
		}
	}()
}

// Preference returns a stored preference value.
func (s *SettingsStore) Preference(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preferences[key]
}

// Subscribe registers a state listener.
func (s *SettingsStore) Subscribe(fn func(SettingsState)) func() {
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

func (s *SettingsStore) notify() {
	s.mu.Lock()
	state := s.stateLocked()
	fns := make([]func(SettingsState), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// Wait blocks until in-flight remote writes settle.
func (s *SettingsStore) Wait() {
	s.wg.Wait()
}
