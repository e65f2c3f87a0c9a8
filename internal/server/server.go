// Package server is a reference host for socialconnect: it drives the
// redirect and callback legs for each browser session and keeps the
// resulting credentials in a credstore.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	socialconnect "github.com/mselvan/social-connect"
	"github.com/mselvan/social-connect/credstore"
)

const (
	sessionCookie     = "sc_session"
	stateCookiePrefix = "sc_state_"
	stateParam        = "state"
	stateCookieMaxAge = 10 * time.Minute

	defaultMaxPendingLogins = 10000

	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
)

// ProviderFactory creates a fresh Provider. A Provider serves one session, so
// the server asks for a new one per login and per API call.
type ProviderFactory func() (socialconnect.Provider, error)

// Server routes browser sessions through the login flow of each configured provider.
type Server struct {
	cfg       HTTPConfig
	providers map[string]ProviderFactory
	store     credstore.Store
	logger    *slog.Logger
	router    chi.Router
	server    *http.Server

	mu sync.Mutex
	// pending holds the provider instance between the redirect and the
	// callback, keyed by session and provider id. Entries live as long as
	// the state cookie.
	pending map[string]pendingLogin
	now     func() time.Time
}

type pendingLogin struct {
	provider  socialconnect.Provider
	createdAt time.Time
}

// New creates a Server. logger may be nil.
func New(cfg HTTPConfig, providers map[string]ProviderFactory, store credstore.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		cfg:       cfg,
		providers: providers,
		store:     store,
		logger:    logger,
		router:    chi.NewRouter(),
		pending:   make(map[string]pendingLogin),
		now:       time.Now,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	s.router.Route("/{provider}", func(r chi.Router) {
		r.Get("/login", s.handleLogin)
		r.Get("/callback", s.handleCallback)
		r.Get("/me", s.handleProfile)
		r.Get("/contacts", s.handleContacts)
		r.Post("/status", s.handleStatus)
		r.Post("/logout", s.handleLogout)
	})
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("address", ln.Addr().String()))
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// handleLogin starts a login: it creates a provider instance for the session,
// sets a state cookie and redirects the browser to the provider.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "provider")
	factory, ok := s.providers[id]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_provider", "unknown provider "+id)
		return
	}

	sessionID := s.session(w, r)
	provider, err := factory()
	if err != nil {
		s.logger.Error("create provider", slog.String("provider", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal", "provider unavailable")
		return
	}

	state, err := socialconnect.GenerateState()
	if err != nil {
		s.logger.Error("generate state", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal", "could not start login")
		return
	}

	callback := s.baseURL(r) + "/" + id + "/callback?" + stateParam + "=" + url.QueryEscape(state)
	redirect, err := provider.LoginRedirectURL(r.Context(), callback)
	if err != nil {
		s.logger.Warn("login redirect failed", slog.String("provider", id), slog.Any("error", err))
		writeAuthError(w, err)
		return
	}

	if !s.addPending(pendingKey(sessionID, id), provider) {
		s.logger.Warn("too many logins in progress", slog.String("provider", id))
		writeError(w, http.StatusServiceUnavailable, "busy", "too many logins in progress")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookiePrefix + id,
		Value:    state,
		Path:     "/" + id,
		MaxAge:   int(stateCookieMaxAge / time.Second),
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, redirect, http.StatusFound)
}

// handleCallback completes a login started by handleLogin.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "provider")
	sessionID, ok := sessionFrom(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "no_session", "no login in progress")
		return
	}

	stateCookie, err := r.Cookie(stateCookiePrefix + id)
	expected := ""
	if err == nil {
		expected = stateCookie.Value
	}
	if err := socialconnect.ValidateState(expected, r.URL.Query().Get(stateParam)); err != nil {
		s.logger.Warn("callback state rejected", slog.String("provider", id), slog.Any("error", err))
		writeError(w, http.StatusBadRequest, "invalid_state", "state mismatch")
		return
	}

	provider, ok := s.takePending(pendingKey(sessionID, id))
	if !ok {
		writeError(w, http.StatusBadRequest, "no_session", "no login in progress")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookiePrefix + id, Path: "/" + id, MaxAge: -1})

	params, err := socialconnect.CallbackParams(r)
	if err != nil {
		s.logger.Warn("malformed callback", slog.String("provider", id), slog.Any("error", err))
		writeError(w, http.StatusBadRequest, "invalid_callback", "malformed callback parameters")
		return
	}
	delete(params, stateParam)

	profile, err := provider.VerifyResponse(r.Context(), params)
	if err != nil {
		s.logger.Warn("callback failed", slog.String("provider", id), slog.Any("error", err))
		writeAuthError(w, err)
		return
	}

	if err := s.store.Save(r.Context(), credentialKey(sessionID, id), provider.AccessGrant()); err != nil {
		s.logger.Error("save credential", slog.String("provider", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal", "could not save credential")
		return
	}

	s.logger.Info("login completed", slog.String("provider", id), slog.String("user", profile.ValidatedID))
	writeJSON(w, http.StatusOK, newProfileResponse(profile))
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.authenticated(w, r)
	if !ok {
		return
	}
	profile, err := provider.UserProfile(r.Context())
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(profile))
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.authenticated(w, r)
	if !ok {
		return
	}
	contacts, err := provider.ContactList(r.Context())
	if err != nil {
		writeAuthError(w, err)
		return
	}
	out := make([]contactResponse, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, contactResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.authenticated(w, r)
	if !ok {
		return
	}
	if err := provider.UpdateStatus(r.Context(), r.FormValue("message")); err != nil {
		writeAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLogout forgets the session's credential and any login in progress.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "provider")
	if _, ok := s.providers[id]; !ok {
		writeError(w, http.StatusNotFound, "unknown_provider", "unknown provider "+id)
		return
	}
	sessionID, ok := sessionFrom(r)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if p, ok := s.takePending(pendingKey(sessionID, id)); ok {
		p.Logout()
	}

	if err := s.store.Delete(r.Context(), credentialKey(sessionID, id)); err != nil {
		s.logger.Error("delete credential", slog.String("provider", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal", "could not delete credential")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authenticated restores the session's credential into a fresh provider.
// It writes the error response itself and reports false on failure.
func (s *Server) authenticated(w http.ResponseWriter, r *http.Request) (socialconnect.Provider, bool) {
	id := chi.URLParam(r, "provider")
	factory, ok := s.providers[id]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_provider", "unknown provider "+id)
		return nil, false
	}
	sessionID, ok := sessionFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not_authenticated", "not signed in")
		return nil, false
	}

	cred, err := s.store.Load(r.Context(), credentialKey(sessionID, id))
	if errors.Is(err, credstore.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "not_authenticated", "not signed in")
		return nil, false
	}
	if err != nil {
		s.logger.Error("load credential", slog.String("provider", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal", "could not load credential")
		return nil, false
	}

	provider, err := factory()
	if err != nil {
		s.logger.Error("create provider", slog.String("provider", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal", "provider unavailable")
		return nil, false
	}
	provider.SetAccessGrant(cred)
	return provider, true
}

// session returns the session id, issuing a new session cookie when needed.
func (s *Server) session(w http.ResponseWriter, r *http.Request) string {
	if id, ok := sessionFrom(r); ok {
		return id
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func sessionFrom(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

// baseURL is the configured origin, or the request's own when none is set.
func (s *Server) baseURL(r *http.Request) string {
	if s.cfg.BaseURL != "" {
		return s.cfg.BaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// addPending records a login in progress after dropping expired ones. It
// reports false when the table is full.
func (s *Server) addPending(key string, provider socialconnect.Provider) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, p := range s.pending {
		if now.Sub(p.createdAt) > stateCookieMaxAge {
			delete(s.pending, k)
		}
	}
	if _, replacing := s.pending[key]; !replacing && len(s.pending) >= s.maxPending() {
		return false
	}
	s.pending[key] = pendingLogin{provider: provider, createdAt: now}
	return true
}

// takePending removes and returns a login in progress. Expired entries are
// removed but not returned.
func (s *Server) takePending(key string) (socialconnect.Provider, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[key]
	if !ok {
		return nil, false
	}
	delete(s.pending, key)
	if s.now().Sub(p.createdAt) > stateCookieMaxAge {
		return nil, false
	}
	return p.provider, true
}

func (s *Server) maxPending() int {
	if s.cfg.MaxPendingLogins > 0 {
		return s.cfg.MaxPendingLogins
	}
	return defaultMaxPendingLogins
}

func pendingKey(sessionID, providerID string) string { return sessionID + "/" + providerID }

func credentialKey(sessionID, providerID string) string { return sessionID + ":" + providerID }

// --- responses ---

type profileResponse struct {
	Provider        string `json:"provider"`
	ID              string `json:"id"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	FullName        string `json:"full_name,omitempty"`
	Email           string `json:"email,omitempty"`
	Gender          string `json:"gender,omitempty"`
	Location        string `json:"location,omitempty"`
	Language        string `json:"language,omitempty"`
	Country         string `json:"country,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	DOB             string `json:"dob,omitempty"`
}

func newProfileResponse(p *socialconnect.Profile) profileResponse {
	resp := profileResponse{
		Provider:        p.ProviderID,
		ID:              p.ValidatedID,
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		FullName:        p.FullName,
		Email:           p.Email,
		Location:        p.Location,
		Language:        p.Language,
		Country:         p.Country,
		ProfileImageURL: p.ProfileImageURL,
		DOB:             p.DOB.String(),
	}
	if p.Gender != socialconnect.GenderUnknown {
		resp.Gender = p.Gender.String()
	}
	return resp
}

type contactResponse struct {
	ID         string `json:"id"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Email      string `json:"email,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}

// writeAuthError maps a socialconnect error to an HTTP status.
func writeAuthError(w http.ResponseWriter, err error) {
	var ae *socialconnect.AuthError
	if !errors.As(err, &ae) {
		writeError(w, http.StatusBadGateway, "provider_error", "provider call failed")
		return
	}
	writeError(w, statusFor(ae.Kind), string(ae.Kind), ae.Message)
}

func statusFor(kind socialconnect.ErrorKind) int {
	switch kind {
	case socialconnect.ErrKindUserDenied:
		return http.StatusForbidden
	case socialconnect.ErrKindInvalidCode, socialconnect.ErrKindProviderState, socialconnect.ErrKindInvalidConfig:
		return http.StatusBadRequest
	case socialconnect.ErrKindNotAuthenticated:
		return http.StatusUnauthorized
	case socialconnect.ErrKindUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusBadGateway
	}
}
