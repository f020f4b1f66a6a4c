package gorouter

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	router "github.com/goliatone/go-router"
	"github.com/google/uuid"

	sentinel "github.com/goliatone/go-sentinel/components/sentinel"
	"github.com/goliatone/go-sentinel/components/sentinel/commands"
	"github.com/goliatone/go-sentinel/components/sentinel/httpapi"
	"github.com/goliatone/go-sentinel/components/sentinel/queries"
)

// ViewerResolver converts a router.Context into a sentinel.Viewer.
type ViewerResolver func(router.Context) sentinel.Viewer

// Config wires go-router with the sentinel controller, API, gate and hooks.
type Config[T any] struct {
	Router         router.Router[T]
	Controller     *sentinel.Controller
	API            httpapi.Executor
	Gate           httpapi.Authorizer
	Broadcast      *sentinel.BroadcastHook
	ViewerResolver ViewerResolver
	BasePath       string
	Routes         RouteConfig
}

// RouteConfig customizes the relative paths used for sentinel endpoints.
type RouteConfig struct {
	Login     string
	Logout    string
	HTML      string
	Page      string
	Panel     string
	PanelOp   string
	Sidebar   string
	Action    string
	Explain   string
	WebSocket string
}

// Register mounts sentinel routes (HTML, JSON, WebSocket) on a go-router router.
func Register[T any](cfg Config[T]) error {
	if cfg.Router == nil {
		return errors.New("gorouter: router is required")
	}
	if cfg.Controller == nil {
		return errors.New("gorouter: controller is required")
	}
	routes := defaultRouteConfig(cfg.Routes)
	base := strings.TrimRight(cfg.BasePath, "/")
	if base == "" {
		base = "/admin"
	}
	resolver := cfg.ViewerResolver
	if resolver == nil {
		resolver = defaultViewerResolver
	}
	gate := cfg.Gate
	if gate == nil {
		service := cfg.Controller.Service()
		if service == nil {
			return errors.New("gorouter: gate is required")
		}
		gate = service
	}
	guard := &guard{gate: gate}
	group := cfg.Router.Group(base)

	group.Get(routes.Login, router.WrapHandler(func(ctx router.Context) error {
		return renderLogin(ctx, cfg.Controller, base, ctx.Query("email"), ctx.Query("error"))
	}))

	group.Get(routes.HTML, router.WrapHandler(func(ctx router.Context) error {
		viewer := resolver(ctx)
		decision, ok := guard.page(ctx, viewer.Scope)
		if !ok {
			return nil
		}
		var buf bytes.Buffer
		if _, err := cfg.Controller.RenderPage(ctx.Context(), viewer, decision.Session, base, &buf); err != nil {
			return respondError(ctx, http.StatusInternalServerError, err)
		}
		ctx.SetHeader("Content-Type", "text/html; charset=utf-8")
		return ctx.Send(buf.Bytes())
	}))

	if cfg.API != nil {
		registerSession(group, cfg.API, cfg.Controller, base, routes)
		registerAPI(group, cfg.API, guard, resolver, routes)
	}

	if cfg.Broadcast != nil {
		registerWebSocket(group, cfg.Broadcast, guard, routes.WebSocket)
	}

	return nil
}

type guard struct {
	gate httpapi.Authorizer
}

// page redirects rejected navigations to the login route.
func (g *guard) page(ctx router.Context, scope string) (sentinel.GateDecision, bool) {
	decision := g.gate.Authorize(ctx.Context(), scope)
	if decision.Allowed {
		return decision, true
	}
	_ = redirect(ctx, http.StatusFound, decision.Redirect)
	return decision, false
}

// api answers rejected API calls with 401 and the login target.
func (g *guard) api(ctx router.Context, scope string) (sentinel.GateDecision, bool) {
	decision := g.gate.Authorize(ctx.Context(), scope)
	if decision.Allowed {
		return decision, true
	}
	_ = ctx.JSON(http.StatusUnauthorized, map[string]string{
		"error":    string(decision.Reason),
		"redirect": decision.Redirect,
	})
	return decision, false
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func registerSession[T any](r router.Router[T], api httpapi.Executor, controller *sentinel.Controller, base string, routes RouteConfig) {
	r.Post(routes.Login, router.WrapHandler(func(ctx router.Context) error {
		form := isForm(ctx)
		payload, err := decodeLogin(ctx, form)
		if err != nil {
			return respondError(ctx, http.StatusBadRequest, err)
		}
		scope := scopeFromContext(ctx)
		if scope == "" {
			scope = uuid.NewString()
		}
		var session sentinel.Session
		err = api.Login(ctx.Context(), commands.LoginInput{
			Scope:    scope,
			Email:    payload.Email,
			Password: payload.Password,
			Result:   &session,
		})
		if err != nil {
			if form {
				return renderLogin(ctx, controller, base, payload.Email, httpapi.ErrorMessage(err))
			}
			status := http.StatusUnauthorized
			if errors.Is(err, commands.ErrInvalidInput) {
				status = http.StatusBadRequest
			}
			return respondError(ctx, status, err)
		}
		setSessionCookie(ctx, scope, 0)
		target := base + routes.HTML
		if form {
			return redirect(ctx, http.StatusSeeOther, target)
		}
		return ctx.JSON(http.StatusOK, map[string]any{
			"scope":    scope,
			"user":     session.User,
			"redirect": target,
		})
	}))

	r.Post(routes.Logout, router.WrapHandler(func(ctx router.Context) error {
		if err := api.Logout(ctx.Context(), commands.LogoutInput{Scope: scopeFromContext(ctx)}); err != nil {
			return respondError(ctx, httpapi.StatusFor(err), err)
		}
		setSessionCookie(ctx, "", -1)
		login := base + routes.Login
		if isForm(ctx) || httpapi.WantsHTML(ctx.Header("Accept")) {
			return redirect(ctx, http.StatusSeeOther, login)
		}
		return ctx.JSON(http.StatusOK, map[string]string{"status": "logged_out", "redirect": login})
	}))
}

func registerAPI[T any](r router.Router[T], api httpapi.Executor, guard *guard, resolver ViewerResolver, routes RouteConfig) {
	r.Get(routes.Page, router.WrapHandler(func(ctx router.Context) error {
		viewer := resolver(ctx)
		decision, ok := guard.api(ctx, viewer.Scope)
		if !ok {
			return nil
		}
		page, err := api.Page(ctx.Context(), queries.PageInput{Viewer: viewer, Session: decision.Session})
		if err != nil {
			return respondError(ctx, httpapi.StatusFor(err), err)
		}
		return ctx.JSON(http.StatusOK, page)
	}))

	r.Get(routes.Panel, router.WrapHandler(func(ctx router.Context) error {
		viewer := resolver(ctx)
		if _, ok := guard.api(ctx, viewer.Scope); !ok {
			return nil
		}
		snap, err := api.Snapshot(ctx.Context(), queries.PanelSnapshotInput{Viewer: viewer, Code: ctx.Param("code")})
		if err != nil {
			return respondError(ctx, httpapi.StatusFor(err), err)
		}
		return ctx.JSON(http.StatusOK, snap)
	}))

	r.Post(routes.PanelOp, router.WrapHandler(func(ctx router.Context) error {
		return panelOperation(ctx, api, guard, resolver, commands.PanelOperation(ctx.Param("op")))
	}))

	r.Delete(routes.Panel, router.WrapHandler(func(ctx router.Context) error {
		return panelOperation(ctx, api, guard, resolver, commands.PanelUnmount)
	}))

	r.Post(routes.Sidebar, router.WrapHandler(func(ctx router.Context) error {
		viewer := resolver(ctx)
		if _, ok := guard.api(ctx, viewer.Scope); !ok {
			return nil
		}
		var payload struct {
			Action sentinel.SidebarActionKind `json:"action"`
			Width  int                        `json:"width"`
		}
		if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
			return respondError(ctx, http.StatusBadRequest, err)
		}
		if payload.Width > 0 {
			viewer.Width = payload.Width
		}
		var snap sentinel.SidebarSnapshot
		if err := api.Sidebar(ctx.Context(), commands.SidebarInput{Viewer: viewer, Action: payload.Action, Result: &snap}); err != nil {
			return respondError(ctx, httpapi.StatusFor(err), err)
		}
		return ctx.JSON(http.StatusOK, snap)
	}))

	r.Post(routes.Action, router.WrapHandler(func(ctx router.Context) error {
		scope := scopeFromContext(ctx)
		if _, ok := guard.api(ctx, scope); !ok {
			return nil
		}
		var payload struct {
			Name    string `json:"name"`
			Command string `json:"command"`
		}
		if body := ctx.Body(); len(body) > 0 {
			if err := json.Unmarshal(body, &payload); err != nil {
				return respondError(ctx, http.StatusBadRequest, err)
			}
		}
		var banner sentinel.Banner
		err := api.Action(ctx.Context(), commands.ActionInput{
			Scope:   scope,
			Action:  commands.ActionKind(ctx.Param("action")),
			Name:    payload.Name,
			Command: payload.Command,
			Result:  &banner,
		})
		if err != nil {
			return respondError(ctx, httpapi.StatusFor(err), err)
		}
		return ctx.JSON(http.StatusOK, banner)
	}))

	r.Post(routes.Explain, router.WrapHandler(func(ctx router.Context) error {
		scope := scopeFromContext(ctx)
		if _, ok := guard.api(ctx, scope); !ok {
			return nil
		}
		var payload struct {
			Question string `json:"question"`
		}
		if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
			return respondError(ctx, http.StatusBadRequest, err)
		}
		if strings.TrimSpace(payload.Question) == "" {
			return respondError(ctx, http.StatusBadRequest, errors.New("question is required"))
		}
		answer, err := api.Explain(ctx.Context(), queries.ExplainInput{Scope: scope, Question: payload.Question})
		if err != nil {
			return respondError(ctx, httpapi.StatusFor(err), err)
		}
		return ctx.JSON(http.StatusOK, answer)
	}))
}

func panelOperation(ctx router.Context, api httpapi.Executor, guard *guard, resolver ViewerResolver, op commands.PanelOperation) error {
	viewer := resolver(ctx)
	if _, ok := guard.api(ctx, viewer.Scope); !ok {
		return nil
	}
	err := api.Control(ctx.Context(), commands.PanelControlInput{
		Scope:     viewer.Scope,
		Code:      ctx.Param("code"),
		Operation: op,
	})
	if err != nil {
		return respondError(ctx, httpapi.StatusFor(err), err)
	}
	switch op {
	case commands.PanelRefresh:
		return ctx.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
	case commands.PanelUnmount:
		return ctx.JSON(http.StatusNoContent, map[string]string{"status": "unmounted"})
	default:
		return ctx.JSON(http.StatusOK, map[string]string{"status": string(op)})
	}
}

func registerWebSocket[T any](r router.Router[T], hook *sentinel.BroadcastHook, guard *guard, path string) {
	cfg := router.DefaultWebSocketConfig()
	r.WebSocket(path, cfg, func(ws router.WebSocketContext) error {
		scope := scopeFromContext(ws)
		if decision := guard.gate.Authorize(ws.Context(), scope); !decision.Allowed {
			return ws.Close()
		}
		events, cancel := hook.Subscribe(scope)
		defer cancel()
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return nil
				}
				if err := ws.WriteJSON(event); err != nil {
					return err
				}
			case <-ws.Context().Done():
				return ws.Close()
			}
		}
	})
}

func renderLogin(ctx router.Context, controller *sentinel.Controller, base, email, message string) error {
	var buf bytes.Buffer
	if _, err := controller.RenderLogin(base, email, message, &buf); err != nil {
		return respondError(ctx, http.StatusInternalServerError, err)
	}
	ctx.SetHeader("Content-Type", "text/html; charset=utf-8")
	return ctx.Send(buf.Bytes())
}

func decodeLogin(ctx router.Context, form bool) (loginPayload, error) {
	var payload loginPayload
	body := ctx.Body()
	if form {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return payload, err
		}
		payload.Email = values.Get("email")
		payload.Password = values.Get("password")
		return payload, nil
	}
	err := json.Unmarshal(body, &payload)
	return payload, err
}

func defaultViewerResolver(ctx router.Context) sentinel.Viewer {
	viewer := sentinel.Viewer{Scope: scopeFromContext(ctx)}
	width := ctx.Query("width")
	if width == "" {
		width = ctx.Header(sentinel.WidthHeader)
	}
	if width == "" {
		width = cookieValue(ctx, sentinel.WidthCookie)
	}
	if n, err := strconv.Atoi(strings.TrimSpace(width)); err == nil && n > 0 {
		viewer.Width = n
	}
	viewer.Locale = inferLocale(ctx)
	return viewer
}

// scopeFromContext resolves the viewer scope from the session header, the query
// string, then the session cookie.
func scopeFromContext(ctx router.Context) string {
	if scope := strings.TrimSpace(ctx.Header(sentinel.SessionHeader)); scope != "" {
		return scope
	}
	if scope := strings.TrimSpace(ctx.Query(sentinel.SessionQuery)); scope != "" {
		return scope
	}
	return cookieValue(ctx, sentinel.SessionCookie)
}

func cookieValue(ctx router.Context, name string) string {
	line := ctx.Header("Cookie")
	if line == "" {
		return ""
	}
	cookies, _ := http.ParseCookie(line)
	for _, cookie := range cookies {
		if cookie.Name == name {
			return strings.TrimSpace(cookie.Value)
		}
	}
	return ""
}

func inferLocale(ctx router.Context) string {
	if locale, ok := ctx.Locals("locale").(string); ok && locale != "" {
		return locale
	}
	if locale := strings.TrimSpace(ctx.Query("locale")); locale != "" {
		return strings.ToLower(locale)
	}
	return httpapi.ParseAcceptLanguage(ctx.Header("Accept-Language"))
}

func setSessionCookie(ctx router.Context, scope string, maxAge int) {
	cookie := &http.Cookie{
		Name:     sentinel.SessionCookie,
		Value:    scope,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	ctx.SetHeader("Set-Cookie", cookie.String())
}

func redirect(ctx router.Context, status int, location string) error {
	ctx.SetHeader("Location", location)
	return ctx.JSON(status, map[string]string{"redirect": location})
}

func isForm(ctx router.Context) bool {
	return strings.HasPrefix(ctx.Header("Content-Type"), "application/x-www-form-urlencoded")
}

func respondError(ctx router.Context, status int, err error) error {
	return ctx.JSON(status, map[string]string{"error": httpapi.ErrorMessage(err)})
}

func defaultRouteConfig(routes RouteConfig) RouteConfig {
	if routes.Login == "" {
		routes.Login = "/login"
	}
	if routes.Logout == "" {
		routes.Logout = "/logout"
	}
	if routes.HTML == "" {
		routes.HTML = "/sentinel"
	}
	if routes.Page == "" {
		routes.Page = "/sentinel/page"
	}
	if routes.Panel == "" {
		routes.Panel = "/sentinel/panels/:code"
	}
	if routes.PanelOp == "" {
		routes.PanelOp = "/sentinel/panels/:code/:op"
	}
	if routes.Sidebar == "" {
		routes.Sidebar = "/sentinel/sidebar"
	}
	if routes.Action == "" {
		routes.Action = "/sentinel/actions/:action"
	}
	if routes.Explain == "" {
		routes.Explain = "/sentinel/explain"
	}
	if routes.WebSocket == "" {
		routes.WebSocket = "/sentinel/ws"
	}
	return routes
}
