package sentinel

import (
	"context"
	"encoding/json"
	"strings"
)

const (
	// RoleSuperAdmin is the only role allowed into the operator dashboard.
	RoleSuperAdmin = "super_admin"
	// DefaultLoginPath is where rejected viewers are sent.
	DefaultLoginPath = "/admin/login"
)

// GateReason explains a gate decision.
type GateReason string

const (
	GateAllowed      GateReason = "allowed"
	GateMissingToken GateReason = "missing_token"
	GateInvalidUser  GateReason = "invalid_user"
	GateWrongRole    GateReason = "insufficient_role"
	GateStorageError GateReason = "storage_error"
)

// GateDecision is the result of checking a viewer's stored session.
type GateDecision struct {
	Allowed  bool       `json:"allowed"`
	Redirect string     `json:"redirect,omitempty"`
	Reason   GateReason `json:"reason"`
	Session  Session    `json:"-"`
}

// Gate guards protected routes using the locally stored session only. The token is
// never validated here; the backend authorizes every API call on its own.
type Gate struct {
	RequiredRole string
	LoginPath    string
}

// NewGate fills empty fields with the dashboard defaults.
func NewGate(role, loginPath string) Gate {
	g := Gate{RequiredRole: strings.TrimSpace(role), LoginPath: strings.TrimSpace(loginPath)}
	if g.RequiredRole == "" {
		g.RequiredRole = RoleSuperAdmin
	}
	if g.LoginPath == "" {
		g.LoginPath = DefaultLoginPath
	}
	return g
}

// Check reads the token and user from settings and decides whether to render.
func (g Gate) Check(ctx context.Context, settings Settings) GateDecision {
	g = NewGate(g.RequiredRole, g.LoginPath)
	token, err := settings.Token(ctx)
	if err != nil {
		return g.deny(GateStorageError)
	}
	if token == "" {
		return g.deny(GateMissingToken)
	}
	raw, ok, err := settings.RawUser(ctx)
	if err != nil {
		return g.deny(GateStorageError)
	}
	if !ok {
		return g.deny(GateInvalidUser)
	}
	if _, isObject := asObject(json.RawMessage(raw)); !isObject {
		return g.deny(GateInvalidUser)
	}
	user, err := decodeSessionUser(json.RawMessage(raw))
	if err != nil {
		return g.deny(GateInvalidUser)
	}
	if user.Role != g.RequiredRole {
		return g.deny(GateWrongRole)
	}
	return GateDecision{
		Allowed: true,
		Reason:  GateAllowed,
		Session: Session{Token: token, User: user},
	}
}

func (g Gate) deny(reason GateReason) GateDecision {
	return GateDecision{Redirect: g.LoginPath, Reason: reason}
}
