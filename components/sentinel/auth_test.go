package sentinel

import (
	"context"
	"errors"
	"testing"
)

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string, string) (string, bool, error) {
	return "", false, f.err
}
func (f failingStore) Set(context.Context, string, string, string) error { return f.err }
func (f failingStore) Delete(context.Context, string, string) error      { return f.err }

func TestGateDecisions(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		token  string
		user   string
		reason GateReason
	}{
		{name: "allowed", token: "abc", user: `{"id":7,"role":"super_admin","nom":"Ada"}`, reason: GateAllowed},
		{name: "missing token", user: `{"role":"super_admin"}`, reason: GateMissingToken},
		{name: "blank token", token: "   ", user: `{"role":"super_admin"}`, reason: GateMissingToken},
		{name: "missing user", token: "abc", reason: GateInvalidUser},
		{name: "malformed user", token: "abc", user: `{"role":`, reason: GateInvalidUser},
		{name: "non object user", token: "abc", user: `"super_admin"`, reason: GateInvalidUser},
		{name: "wrong role", token: "abc", user: `{"role":"admin"}`, reason: GateWrongRole},
		{name: "no role", token: "abc", user: `{}`, reason: GateWrongRole},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := NewInMemorySettingsStore()
			if tc.token != "" {
				_ = store.Set(ctx, "s", KeyAdminToken, tc.token)
			}
			if tc.user != "" {
				_ = store.Set(ctx, "s", KeyAdminUser, tc.user)
			}
			decision := NewGate("", "").Check(ctx, NewSettings(store, "s"))
			if decision.Reason != tc.reason {
				t.Fatalf("expected reason %s, got %s", tc.reason, decision.Reason)
			}
			if decision.Allowed != (tc.reason == GateAllowed) {
				t.Fatalf("unexpected allowed=%v", decision.Allowed)
			}
			if !decision.Allowed && decision.Redirect != DefaultLoginPath {
				t.Fatalf("expected redirect to %s, got %q", DefaultLoginPath, decision.Redirect)
			}
			if decision.Allowed && decision.Session.User.ID != "7" {
				t.Fatalf("expected numeric id to decode, got %q", decision.Session.User.ID)
			}
		})
	}
}

func TestGateIgnoresLegacyToken(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySettingsStore()
	_ = store.Set(ctx, "s", KeyLegacyToken, "old")
	_ = store.Set(ctx, "s", KeyAdminUser, `{"role":"super_admin"}`)
	decision := NewGate("", "").Check(ctx, NewSettings(store, "s"))
	if decision.Allowed || decision.Reason != GateMissingToken {
		t.Fatalf("legacy token must not authenticate: %+v", decision)
	}
}

func TestGateStorageError(t *testing.T) {
	decision := NewGate("", "/login").Check(context.Background(), NewSettings(failingStore{err: errors.New("down")}, "s"))
	if decision.Allowed || decision.Reason != GateStorageError || decision.Redirect != "/login" {
		t.Fatalf("unexpected decision %+v", decision)
	}
}

func TestGateCustomRole(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySettingsStore()
	seedSession(store, "s", "auditor")
	if !NewGate("auditor", "").Check(ctx, NewSettings(store, "s")).Allowed {
		t.Fatalf("expected custom role to pass")
	}
	if NewGate("", "").Check(ctx, NewSettings(store, "s")).Allowed {
		t.Fatalf("default gate must require super_admin")
	}
}
