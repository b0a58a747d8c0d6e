// Package difytest provides a fake Dify server covering the console login,
// app listing and workflow run endpoints used by dify-cron.
package difytest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const consoleToken = "fake-console-token"

// App is an application served by the fake. Secret is the app API key
// accepted by the workflow run endpoint.
type App struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Mode        string `json:"mode"`
	Secret      string `json:"-"`
}

// Run is a workflow run received by the fake.
type Run struct {
	ID        string         `json:"id"`
	AppID     string         `json:"app_id"`
	Inputs    map[string]any `json:"inputs"`
	User      string         `json:"user"`
	RequestID string         `json:"request_id,omitempty"`
	At        string         `json:"at"`
}

type Server struct {
	email    string
	password string

	mu     sync.Mutex
	apps   []App
	runs   []Run
	logins int
	since  time.Time
	fail   int
}

const maxStoredRuns = 50

func NewServer(email, password string, apps ...App) *Server {
	return &Server{email: email, password: password, apps: apps, since: time.Now().UTC()}
}

// SetApps replaces the served applications.
func (s *Server) SetApps(apps ...App) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps = apps
}

// FailRuns makes every workflow run respond with status. Zero restores
// normal behavior.
func (s *Server) FailRuns(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = status
}

// Runs returns the most recent workflow runs, oldest first.
func (s *Server) Runs() []Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Run(nil), s.runs...)
}

// Logins returns the number of successful console logins.
func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/console/api/login", s.login)
	mux.HandleFunc("/console/api/apps", s.listApps)
	mux.HandleFunc("/v1/workflows/run", s.runWorkflow)
	mux.HandleFunc("/_fake/runs", s.stats)
	mux.HandleFunc("/_fake/reset", s.reset)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError("method_not_allowed", "POST only"))
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError("invalid_param", "invalid json"))
		return
	}
	if req.Email != s.email || req.Password != s.password {
		writeJSON(w, http.StatusUnauthorized, apiError("unauthorized", "Invalid email or password."))
		return
	}

	s.mu.Lock()
	s.logins++
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"result": "success",
		"data":   map[string]string{"access_token": consoleToken, "refresh_token": "fake-refresh-token"},
	})
}

func (s *Server) listApps(w http.ResponseWriter, r *http.Request) {
	if bearer(r) != consoleToken {
		writeJSON(w, http.StatusUnauthorized, apiError("unauthorized", "Invalid token."))
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 20
	}

	s.mu.Lock()
	apps := append([]App(nil), s.apps...)
	s.mu.Unlock()

	start := (page - 1) * limit
	if start > len(apps) {
		start = len(apps)
	}
	end := start + limit
	if end > len(apps) {
		end = len(apps)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"page":     page,
		"limit":    limit,
		"total":    len(apps),
		"has_more": end < len(apps),
		"data":     apps[start:end],
	})
}

func (s *Server) runWorkflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError("method_not_allowed", "POST only"))
		return
	}

	secret := bearer(r)
	s.mu.Lock()
	var app *App
	for i := range s.apps {
		if s.apps[i].Secret != "" && s.apps[i].Secret == secret {
			app = &s.apps[i]
			break
		}
	}
	fail := s.fail
	s.mu.Unlock()

	if app == nil {
		writeJSON(w, http.StatusUnauthorized, apiError("unauthorized", "Access token is invalid"))
		return
	}
	if fail != 0 {
		writeJSON(w, fail, apiError("internal_server_error", "workflow failed"))
		return
	}

	var req struct {
		Inputs       map[string]any `json:"inputs"`
		ResponseMode string         `json:"response_mode"`
		User         string         `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError("invalid_param", "invalid json"))
		return
	}

	run := Run{
		ID:        uuid.NewString(),
		AppID:     app.ID,
		Inputs:    req.Inputs,
		User:      req.User,
		RequestID: r.Header.Get("X-Difycron-Run-ID"),
		At:        time.Now().UTC().Format(time.RFC3339Nano),
	}

	s.mu.Lock()
	s.runs = append(s.runs, run)
	if len(s.runs) > maxStoredRuns {
		s.runs = s.runs[len(s.runs)-maxStoredRuns:]
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"workflow_run_id": run.ID,
		"task_id":         uuid.NewString(),
		"data": map[string]any{
			"id":          run.ID,
			"workflow_id": app.ID,
			"status":      "succeeded",
			"outputs":     map[string]any{},
		},
	})
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(s.runs),
		"since":  s.since.Format(time.RFC3339),
		"logins": s.logins,
		"runs":   s.runs,
	})
}

func (s *Server) reset(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.runs = nil
	s.logins = 0
	s.since = time.Now().UTC()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func apiError(code, message string) map[string]string {
	return map[string]string{"code": code, "message": message}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
