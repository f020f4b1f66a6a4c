// Package mockbackend serves the NEXUS admin API from fixtures so the dashboard can
// run end to end without the real backend.
package mockbackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"go.uber.org/zap"

	sentinel "github.com/goliatone/go-sentinel/components/sentinel"
	"github.com/goliatone/go-sentinel/pkg/nexusapi"
)

// Default demo credentials.
const (
	DefaultEmail    = "ops@nexus.test"
	DefaultPassword = "sentinel"
)

// Options configures the mock server.
type Options struct {
	Email        string
	Password     string
	Secret       []byte
	TokenTTL     time.Duration
	LoginsPerMin int
	Data         *nexusapi.MockData
	Logger       *zap.Logger
	Now          func() time.Time
}

// Server answers the panel endpoints from fixtures and signs real JWTs on login.
type Server struct {
	opts   Options
	tokens tokenSigner
	logger *zap.Logger

	mu      sync.Mutex
	data    nexusapi.MockData
	backups []backupEntry
}

type backupEntry struct {
	Name      string    `json:"name"`
	Size      string    `json:"size"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// New creates a server with demo defaults for every unset option.
func New(opts Options) *Server {
	if opts.Email == "" {
		opts.Email = DefaultEmail
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if len(opts.Secret) == 0 {
		opts.Secret = []byte(uuid.NewString())
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 12 * time.Hour
	}
	if opts.LoginsPerMin <= 0 {
		opts.LoginsPerMin = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	data := nexusapi.DefaultMockData()
	if opts.Data != nil {
		data = *opts.Data
	}
	return &Server{
		opts:   opts,
		tokens: tokenSigner{secret: opts.Secret, ttl: opts.TokenTTL, now: opts.Now},
		logger: logger,
		data:   data,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, s.logRequests)

	r.With(httprate.LimitByIP(s.opts.LoginsPerMin, time.Minute)).Post(sentinel.PathLogin, s.handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get(sentinel.PathBackups, s.handleListBackups)
		r.Post(sentinel.PathBackups, s.handleCreateBackup)
		r.Post(sentinel.PathBackups+"/{name}/restore", s.handleRestore)
		r.Post(sentinel.PathConsole, s.handleConsole)
		r.Get("/*", s.handleFixture)
		r.Post("/*", s.handleAction)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := s.opts.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("mock backend request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", s.opts.Now().Sub(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requête invalide")
		return
	}
	if !strings.EqualFold(strings.TrimSpace(payload.Email), s.opts.Email) || payload.Password != s.opts.Password {
		writeMessage(w, http.StatusUnauthorized, "Identifiants invalides")
		return
	}
	token, err := s.tokens.issue(s.opts.Email, sentinel.RoleSuperAdmin)
	if err != nil {
		s.logger.Error("mock backend sign token", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	s.mu.Lock()
	user := s.data.User
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"token": token,
			"user":  user,
		},
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Token manquant")
			return
		}
		claims, err := s.tokens.parse(raw)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "Token invalide")
			return
		}
		if claims.Role != sentinel.RoleSuperAdmin {
			writeMessage(w, http.StatusForbidden, "Accès refusé")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleFixture(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	failure, failed := s.data.Failures[r.URL.Path]
	raw, ok := s.data.Responses[r.URL.Path]
	s.mu.Unlock()
	if failed {
		writeMessage(w, http.StatusInternalServerError, failure.Error())
		return
	}
	if !ok {
		writeMessage(w, http.StatusNotFound, "Ressource introuvable")
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	failure, failed := s.data.Failures[r.URL.Path]
	raw, ok := s.data.Actions[r.URL.Path]
	s.mu.Unlock()
	switch {
	case failed:
		writeMessage(w, http.StatusInternalServerError, failure.Error())
	case ok:
		writeRaw(w, http.StatusOK, raw)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	created := append([]backupEntry(nil), s.backups...)
	raw, ok := s.data.Responses[sentinel.PathBackups]
	s.mu.Unlock()

	var existing []json.RawMessage
	if ok {
		var envelope struct {
			Data struct {
				Backups []json.RawMessage `json:"backups"`
			} `json:"data"`
		}
		if err := json.Unmarshal(raw, &envelope); err == nil {
			existing = envelope.Data.Backups
		}
	}
	backups := make([]any, 0, len(created)+len(existing))
	for i := len(created) - 1; i >= 0; i-- {
		backups = append(backups, created[i])
	}
	for _, entry := range existing {
		backups = append(backups, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"backups": backups}})
}

func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	entry := backupEntry{
		Name:      fmt.Sprintf("backup-%s.tar.gz", uuid.NewString()[:8]),
		Size:      "1.1 GB",
		Status:    "completed",
		CreatedAt: s.opts.Now().UTC(),
	}
	s.mu.Lock()
	s.backups = append(s.backups, entry)
	s.mu.Unlock()
	s.logger.Info("mock backend backup created", zap.String("name", entry.Name))
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"backup": entry},
	})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.knownBackup(name) {
		writeMessage(w, http.StatusNotFound, "Sauvegarde introuvable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Restauration de " + name + " lancée",
	})
}

func (s *Server) knownBackup(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.backups {
		if entry.Name == name {
			return true
		}
	}
	return strings.Contains(string(s.data.Responses[sentinel.PathBackups]), `"`+name+`"`)
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || strings.TrimSpace(payload.Command) == "" {
		writeMessage(w, http.StatusBadRequest, "Commande manquante")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"output":  "$ " + strings.TrimSpace(payload.Command) + "\nok",
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeRaw(w http.ResponseWriter, status int, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}
