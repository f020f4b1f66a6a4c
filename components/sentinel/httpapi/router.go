package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/goliatone/go-sentinel/components/sentinel/commands"
)

// RouterOptions tunes the net/http router.
type RouterOptions struct {
	// ActionsPerMinute limits operator actions per viewer scope. Zero uses 30.
	ActionsPerMinute int
	// SSLRedirect enables the HTTPS redirect of the security middleware.
	SSLRedirect bool
}

// NewRouter mounts the handlers on a chi router under h.BasePath.
func NewRouter(h *Handlers, opts RouterOptions) http.Handler {
	limit := opts.ActionsPerMinute
	if limit <= 0 {
		limit = 30
	}
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        opts.SSLRedirect,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})
	limiter := httprate.Limit(limit, time.Minute,
		httprate.WithKeyFuncs(scopeRateKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many actions, retry shortly"})
		}),
	)

	r := chi.NewRouter()
	r.Use(secureMiddleware.Handler)
	r.Route(h.basePath(), func(r chi.Router) {
		r.Post("/login", h.HandleLogin)
		r.Post("/logout", h.HandleLogout)
		r.Group(func(r chi.Router) {
			r.Use(h.RequireSession)
			r.Get("/sentinel/page", h.HandlePage)
			r.Get("/sentinel/ws", h.HandleWebSocket)
			r.Get("/sentinel/events", h.HandleEvents)
			r.Post("/sentinel/sidebar", h.HandleSidebar)
			r.Post("/sentinel/explain", h.HandleExplain)
			r.Get("/sentinel/panels/{code}", func(w http.ResponseWriter, r *http.Request) {
				h.HandleSnapshot(w, r, chi.URLParam(r, "code"))
			})
			r.Post("/sentinel/panels/{code}", func(w http.ResponseWriter, r *http.Request) {
				h.HandleMount(w, r, chi.URLParam(r, "code"))
			})
			r.Delete("/sentinel/panels/{code}", func(w http.ResponseWriter, r *http.Request) {
				h.HandlePanelOperation(w, r, chi.URLParam(r, "code"), commands.PanelUnmount)
			})
			r.Post("/sentinel/panels/{code}/{op}", func(w http.ResponseWriter, r *http.Request) {
				h.HandlePanelOperation(w, r, chi.URLParam(r, "code"), commands.PanelOperation(chi.URLParam(r, "op")))
			})
			r.With(limiter).Post("/sentinel/actions/{action}", func(w http.ResponseWriter, r *http.Request) {
				h.HandleAction(w, r, commands.ActionKind(chi.URLParam(r, "action")))
			})
		})
	})
	return r
}

func scopeRateKey(r *http.Request) (string, error) {
	if scope := strings.TrimSpace(ScopeFromRequest(r)); scope != "" {
		return "scope:" + scope, nil
	}
	return httprate.KeyByIP(r)
}
