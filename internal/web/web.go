package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"syllasync/internal/config"
	appLog "syllasync/internal/log"
	"syllasync/internal/model"
	"syllasync/internal/response"
	"syllasync/internal/session"
	"syllasync/internal/uploader"
)

const maxUploadBytes = 64 << 20

// Session re-checks authorization against the backend and installs the
// session cookie obtained by signing in through a browser.
type Session interface {
	Refresh(ctx context.Context) *session.Probe
	SetCookie(cookie string) error
}

// Server exposes the uploader controller over HTTP so a browser can drive
// the same workflow as the CLI.
type Server struct {
	cfg        *config.Config
	controller *uploader.Controller
	downloads  *response.MemorySaver
	session    Session
	mux        *http.ServeMux
}

// NewServer constructs a new Server. downloads may be nil when the
// controller saves calendar files to disk; sess may be nil, in which case
// the session is never re-checked.
func NewServer(cfg *config.Config, controller *uploader.Controller, downloads *response.MemorySaver, sess Session) *Server {
	s := &Server{
		cfg:        cfg,
		controller: controller,
		downloads:  downloads,
		session:    sess,
		mux:        http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="SyllaSync", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("POST /api/files", s.handleFiles)
	s.mux.HandleFunc("PUT /api/mode", s.handleMode)
	s.mux.HandleFunc("POST /api/submit", s.handleSubmit)
	s.mux.HandleFunc("GET /api/download", s.handleDownload)
	s.mux.HandleFunc("POST /api/session/refresh", s.handleRefresh)
	s.mux.HandleFunc("PUT /api/session/cookie", s.handleCookie)
	s.mux.HandleFunc("GET /auth/login", s.handleLogin)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

// handleFiles replaces the selection with the multipart "file" parts of the
// request, filtered by the configured extensions.
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	var files []model.FileHandle
	for _, fh := range r.MultipartForm.File["file"] {
		if !s.accepted(fh.Filename) {
			continue
		}
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable file part")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable file part")
			return
		}
		files = append(files, model.FileHandle{Name: fh.Filename, Content: data})
	}

	if err := s.controller.SetFiles(files); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	mode, err := model.ParseDeliveryMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.controller.SetDeliveryMode(mode); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	// The user may have signed in since the last check.
	if s.controller.View() == uploader.ViewSignIn && s.session != nil {
		if err := s.refresh(r.Context()); err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
	}
	if _, err := s.controller.Submit(r.Context()); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

// handleDownload returns the last calendar file produced in file-download
// mode.
func (s *Server) handleDownload(w http.ResponseWriter, _ *http.Request) {
	if s.downloads == nil {
		writeError(w, http.StatusNotFound, "downloads are saved to disk")
		return
	}
	name, blob, ok := s.downloads.Last()
	if !ok {
		writeError(w, http.StatusNotFound, "no calendar file yet")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob)
}

// refresh replaces the controller's authentication source with a freshly
// resolved probe.
func (s *Server) refresh(ctx context.Context) error {
	probe := s.session.Refresh(ctx)
	if err := probe.Err(); err != nil {
		appLog.Debug("session refresh resolved with error", "err", err.Error())
	}
	return s.controller.SetAuth(probe)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		writeError(w, http.StatusNotFound, "session refresh is not available")
		return
	}
	if err := s.refresh(r.Context()); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

type cookieRequest struct {
	Cookie string `json:"cookie"`
}

// handleCookie installs the backend session cookie copied from the browser
// after sign-in, then re-checks the session.
func (s *Server) handleCookie(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		writeError(w, http.StatusNotFound, "session refresh is not available")
		return
	}
	var req cookieRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.session.SetCookie(req.Cookie); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.refresh(r.Context()); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

// handleLogin sends the browser to the provider's authorization flow.
// The backend sets its session cookie in the browser, not in this client:
// the cookie has to be handed over through PUT /api/session/cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	appLog.Info("redirecting to sign-in; install the backend session cookie via PUT /api/session/cookie afterwards")
	http.Redirect(w, r, s.controller.LoginURL(), http.StatusFound)
}

func (s *Server) accepted(name string) bool {
	if s.cfg == nil {
		return true
	}
	return uploader.Accepted(name, s.cfg.Accept)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
