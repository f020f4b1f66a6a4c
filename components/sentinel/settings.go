package sentinel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Storage keys shared with the browser client.
const (
	KeyAdminToken = "admin_token"
	KeyAdminUser  = "admin_user"
	KeySidebar    = "nexus_sidebar"
	// KeyLegacyToken is written by older clients. It is never read for authentication.
	KeyLegacyToken = "nexus_token"
)

var errMissingScope = errors.New("sentinel: settings scope is required")

// InMemorySettingsStore provides a concurrency-safe store for tests and local runs.
type InMemorySettingsStore struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// NewInMemorySettingsStore creates an empty settings store.
func NewInMemorySettingsStore() *InMemorySettingsStore {
	return &InMemorySettingsStore{
		data: make(map[string]map[string]string),
	}
}

// Get returns the stored value for the scope/key pair.
func (s *InMemorySettingsStore) Get(_ context.Context, scope, key string) (string, bool, error) {
	if scope == "" {
		return "", false, errMissingScope
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[scope][key]
	return value, ok, nil
}

// Set stores a value, replacing any previous one.
func (s *InMemorySettingsStore) Set(_ context.Context, scope, key, value string) error {
	if scope == "" {
		return errMissingScope
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.data[scope]
	if !ok {
		bucket = make(map[string]string)
		s.data[scope] = bucket
	}
	bucket[key] = value
	return nil
}

// Delete removes a value. Missing keys are not an error.
func (s *InMemorySettingsStore) Delete(_ context.Context, scope, key string) error {
	if scope == "" {
		return errMissingScope
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[scope], key)
	return nil
}

// SessionUser mirrors the JSON stored under admin_user.
type SessionUser struct {
	ID    string `json:"id,omitempty"`
	Role  string `json:"role"`
	Nom   string `json:"nom,omitempty"`
	Email string `json:"email,omitempty"`
}

// Session is the locally stored token/user pair.
type Session struct {
	Token string
	User  SessionUser
}

// Settings binds a SettingsStore to one viewer scope and exposes typed accessors.
type Settings struct {
	store SettingsStore
	scope string
}

// NewSettings wraps a store for the given scope.
func NewSettings(store SettingsStore, scope string) Settings {
	return Settings{store: store, scope: strings.TrimSpace(scope)}
}

// Scope returns the bound scope.
func (s Settings) Scope() string { return s.scope }

// Token returns the stored bearer token, or "" when absent.
func (s Settings) Token(ctx context.Context) (string, error) {
	if s.store == nil {
		return "", nil
	}
	token, _, err := s.store.Get(ctx, s.scope, KeyAdminToken)
	if err != nil {
		return "", fmt.Errorf("sentinel: read token: %w", err)
	}
	return strings.TrimSpace(token), nil
}

// RawUser returns the raw admin_user JSON.
func (s Settings) RawUser(ctx context.Context) (string, bool, error) {
	if s.store == nil {
		return "", false, nil
	}
	return s.store.Get(ctx, s.scope, KeyAdminUser)
}

// Session returns the stored pair. ok is false when the token is missing or the user
// does not decode; the role is not checked here, Gate does that.
func (s Settings) Session(ctx context.Context) (Session, bool, error) {
	token, err := s.Token(ctx)
	if err != nil || token == "" {
		return Session{}, false, err
	}
	raw, ok, err := s.RawUser(ctx)
	if err != nil || !ok {
		return Session{}, false, err
	}
	if _, isObject := asObject(json.RawMessage(raw)); !isObject {
		return Session{}, false, nil
	}
	user, err := decodeSessionUser(json.RawMessage(raw))
	if err != nil {
		return Session{}, false, nil
	}
	return Session{Token: token, User: user}, true, nil
}

// SaveSession stores the token and user JSON.
func (s Settings) SaveSession(ctx context.Context, session Session) error {
	if s.store == nil {
		return errors.New("sentinel: settings store not configured")
	}
	user, err := json.Marshal(session.User)
	if err != nil {
		return fmt.Errorf("sentinel: encode session user: %w", err)
	}
	if err := s.store.Set(ctx, s.scope, KeyAdminToken, session.Token); err != nil {
		return fmt.Errorf("sentinel: save token: %w", err)
	}
	if err := s.store.Set(ctx, s.scope, KeyAdminUser, string(user)); err != nil {
		return fmt.Errorf("sentinel: save user: %w", err)
	}
	return nil
}

// ClearSession removes the session keys, including the legacy token key.
func (s Settings) ClearSession(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	var errs error
	for _, key := range []string{KeyAdminToken, KeyAdminUser, KeyLegacyToken} {
		if err := s.store.Delete(ctx, s.scope, key); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

// SidebarPreference returns the stored sidebar state when it is valid.
func (s Settings) SidebarPreference(ctx context.Context) (SidebarState, bool, error) {
	if s.store == nil {
		return "", false, nil
	}
	raw, ok, err := s.store.Get(ctx, s.scope, KeySidebar)
	if err != nil || !ok {
		return "", false, err
	}
	state, valid := ParseSidebarState(raw)
	return state, valid, nil
}

// SaveSidebarPreference persists the sidebar state.
func (s Settings) SaveSidebarPreference(ctx context.Context, state SidebarState) error {
	if s.store == nil {
		return nil
	}
	return s.store.Set(ctx, s.scope, KeySidebar, string(state))
}
