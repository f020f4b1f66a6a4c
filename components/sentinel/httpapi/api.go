package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	sentinel "github.com/goliatone/go-sentinel/components/sentinel"
	"github.com/goliatone/go-sentinel/components/sentinel/commands"
	"github.com/goliatone/go-sentinel/components/sentinel/queries"
)

// Authorizer runs the auth gate for a viewer scope.
type Authorizer interface {
	Authorize(ctx context.Context, scope string) sentinel.GateDecision
}

// Handlers exposes sentinel operations over net/http.
type Handlers struct {
	API       Executor
	Gate      Authorizer
	Broadcast *sentinel.BroadcastHook
	BasePath  string
}

func (h *Handlers) basePath() string {
	if h.BasePath == "" {
		return "/admin"
	}
	return strings.TrimRight(h.BasePath, "/")
}

// RequireSession guards next with the auth gate. Page navigations are redirected to
// the login route; API calls receive 401 with the redirect target.
func (h *Handlers) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Gate == nil {
			next.ServeHTTP(w, r)
			return
		}
		decision := h.Gate.Authorize(r.Context(), ScopeFromRequest(r))
		if !decision.Allowed {
			if WantsHTML(r.Header.Get("Accept")) {
				http.Redirect(w, r, decision.Redirect, http.StatusFound)
				return
			}
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":    string(decision.Reason),
				"redirect": decision.Redirect,
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), decision.Session)))
	})
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin authenticates the operator. A request without a scope gets a fresh one,
// returned in the body and set as the session cookie.
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		payload.Email = r.PostForm.Get("email")
		payload.Password = r.PostForm.Get("password")
	} else if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	scope := ScopeFromRequest(r)
	if scope == "" {
		scope = uuid.NewString()
	}
	var session sentinel.Session
	err := h.API.Login(r.Context(), commands.LoginInput{
		Scope:    scope,
		Email:    payload.Email,
		Password: payload.Password,
		Result:   &session,
	})
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, commands.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sentinel.SessionCookie,
		Value:    scope,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	redirect := h.basePath() + "/sentinel"
	if isForm(r) {
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scope":    scope,
		"user":     session.User,
		"redirect": redirect,
	})
}

// HandleLogout clears the stored session and stops the viewer's panels.
func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.API.Logout(r.Context(), commands.LogoutInput{Scope: ScopeFromRequest(r)}); err != nil {
		writeError(w, StatusFor(err), err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:    sentinel.SessionCookie,
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	})
	login := h.basePath() + "/login"
	if isForm(r) || WantsHTML(r.Header.Get("Accept")) {
		http.Redirect(w, r, login, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out", "redirect": login})
}

// HandlePage returns every enabled panel for the viewer.
func (h *Handlers) HandlePage(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())
	page, err := h.API.Page(r.Context(), queries.PageInput{Viewer: ViewerFromRequest(r), Session: session})
	if err != nil {
		writeError(w, StatusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleSnapshot returns one panel, mounting it on first read.
func (h *Handlers) HandleSnapshot(w http.ResponseWriter, r *http.Request, code string) {
	snap, err := h.API.Snapshot(r.Context(), queries.PanelSnapshotInput{Viewer: ViewerFromRequest(r), Code: code})
	if err != nil {
		writeError(w, StatusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type mountPayload struct {
	Config map[string]any `json:"config"`
}

// HandleMount opens a panel with an optional per-instance config.
func (h *Handlers) HandleMount(w http.ResponseWriter, r *http.Request, code string) {
	var payload mountPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err := h.API.Mount(r.Context(), commands.MountPanelInput{
		Viewer: ViewerFromRequest(r),
		Code:   code,
		Config: payload.Config,
	})
	if err != nil {
		writeError(w, StatusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "mounted", "code": code})
}

// HandlePanelOperation refreshes, pauses, resumes or unmounts a panel.
func (h *Handlers) HandlePanelOperation(w http.ResponseWriter, r *http.Request, code string, op commands.PanelOperation) {
	err := h.API.Control(r.Context(), commands.PanelControlInput{
		Scope:     ScopeFromRequest(r),
		Code:      code,
		Operation: op,
	})
	if err != nil {
		writeError(w, StatusFor(err), err)
		return
	}
	switch op {
	case commands.PanelRefresh:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	case commands.PanelUnmount:
		writeJSON(w, http.StatusNoContent, nil)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": string(op)})
	}
}

type sidebarPayload struct {
	Action sentinel.SidebarActionKind `json:"action"`
	Width  int                        `json:"width"`
}

// HandleSidebar applies a sidebar transition and returns the new layout.
func (h *Handlers) HandleSidebar(w http.ResponseWriter, r *http.Request) {
	var payload sidebarPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	viewer := ViewerFromRequest(r)
	if payload.Width > 0 {
		viewer.Width = payload.Width
	}
	var snap sentinel.SidebarSnapshot
	if err := h.API.Sidebar(r.Context(), commands.SidebarInput{Viewer: viewer, Action: payload.Action, Result: &snap}); err != nil {
		writeError(w, StatusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type actionPayload struct {
	Name    string `json:"name"`
	Command string `json:"command"`
}

// HandleAction runs an operator action and returns the resulting banner. Backend
// failures are reported inside the banner with a 200.
func (h *Handlers) HandleAction(w http.ResponseWriter, r *http.Request, action commands.ActionKind) {
	var payload actionPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var banner sentinel.Banner
	err := h.API.Action(r.Context(), commands.ActionInput{
		Scope:   ScopeFromRequest(r),
		Action:  action,
		Name:    payload.Name,
		Command: payload.Command,
		Result:  &banner,
	})
	if err != nil {
		writeError(w, StatusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, banner)
}

type explainPayload struct {
	Question string `json:"question"`
}

// HandleExplain answers an operator question.
func (h *Handlers) HandleExplain(w http.ResponseWriter, r *http.Request) {
	var payload explainPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(payload.Question) == "" {
		writeError(w, http.StatusBadRequest, errors.New("question is required"))
		return
	}
	answer, err := h.API.Explain(r.Context(), queries.ExplainInput{Scope: ScopeFromRequest(r), Question: payload.Question})
	if err != nil {
		writeError(w, StatusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// HandleWebSocket streams the viewer's panel events.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.Broadcast == nil {
		writeError(w, http.StatusNotFound, errors.New("streaming disabled"))
		return
	}
	h.Broadcast.ServeWebSocket(w, r, ScopeFromRequest(r))
}

// HandleEvents streams the viewer's panel events as Server-Sent Events.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if h.Broadcast == nil {
		writeError(w, http.StatusNotFound, errors.New("streaming disabled"))
		return
	}
	h.Broadcast.ServeSSE(w, r, ScopeFromRequest(r))
}

func isForm(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
}
