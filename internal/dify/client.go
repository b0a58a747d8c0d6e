// Package dify talks to the Dify console and service APIs.
//
// The console API, authenticated with an account login, lists the
// applications to sync. Workflow runs go to the service API and are
// authenticated with each application's own API secret.
package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pepabo/dify-cron/internal/domain"
)

const (
	pageSize     = 100
	maxPages     = 100
	maxBodyBytes = 1 << 20
	maxErrorBody = 1024
)

// Config holds the Dify connection settings.
type Config struct {
	BaseURL  string
	Email    string
	Password string

	// User is sent as the "user" of every workflow run.
	User string

	// AppModes restricts ListApps to these modes; empty lists every app.
	AppModes []string

	RequestTimeout   time.Duration
	ExecutionTimeout time.Duration

	// RateLimit caps workflow runs per second; 0 disables the limit.
	RateLimit float64
}

// Client implements the entity source and execution sink against Dify.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	mu    sync.Mutex
	token string
}

// New creates a Client.
func New(cfg Config, logger *zap.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.ExecutionTimeout == 0 {
		cfg.ExecutionTimeout = 60 * time.Second
	}
	if cfg.User == "" {
		cfg.User = "dify-cron"
	}

	c := &Client{
		cfg:    cfg,
		client: &http.Client{},
		logger: logger.Named("dify"),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

type appJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Mode        string `json:"mode"`
}

type appListResponse struct {
	Data    []appJSON `json:"data"`
	HasMore bool      `json:"has_more"`
	Page    int       `json:"page"`
}

// ListApps returns every application visible to the console account,
// following pagination. An expired session is renewed once.
func (c *Client) ListApps(ctx context.Context) ([]domain.RemoteApp, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	apps, err := c.listApps(ctx, token)
	if isUnauthorized(err) {
		c.logger.Info("console session rejected; logging in again")
		c.resetToken()
		if token, err = c.accessToken(ctx); err != nil {
			return nil, err
		}
		apps, err = c.listApps(ctx, token)
	}
	return apps, err
}

func (c *Client) listApps(ctx context.Context, token string) ([]domain.RemoteApp, error) {
	var apps []domain.RemoteApp
	for page := 1; page <= maxPages; page++ {
		q := url.Values{}
		q.Set("page", fmt.Sprint(page))
		q.Set("limit", fmt.Sprint(pageSize))

		var resp appListResponse
		if err := c.do(ctx, c.cfg.RequestTimeout, http.MethodGet, "/console/api/apps?"+q.Encode(), token, nil, &resp, "list apps"); err != nil {
			return nil, err
		}

		for _, a := range resp.Data {
			if !c.wantMode(a.Mode) {
				continue
			}
			apps = append(apps, domain.RemoteApp{ID: a.ID, Name: a.Name, Description: a.Description})
		}
		if !resp.HasMore {
			return apps, nil
		}
	}
	c.logger.Warn("app listing truncated", zap.Int("pages", maxPages))
	return apps, nil
}

func (c *Client) wantMode(mode string) bool {
	if len(c.cfg.AppModes) == 0 {
		return true
	}
	for _, m := range c.cfg.AppModes {
		if strings.EqualFold(m, mode) {
			return true
		}
	}
	return false
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// loginResponse covers the shapes Dify has used across versions: the token
// may sit in data.access_token, in data itself, or at the top level.
type loginResponse struct {
	Result      string          `json:"result"`
	Data        json.RawMessage `json:"data"`
	AccessToken string          `json:"access_token"`
}

func (r loginResponse) token() string {
	if r.AccessToken != "" {
		return r.AccessToken
	}
	if len(r.Data) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Data, &s); err == nil {
		return s
	}
	var nested struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(r.Data, &nested); err == nil {
		return nested.AccessToken
	}
	return ""
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	req := loginRequest{Email: c.cfg.Email, Password: c.cfg.Password, RememberMe: true}
	var resp loginResponse
	if err := c.do(ctx, c.cfg.RequestTimeout, http.MethodPost, "/console/api/login", "", req, &resp, "login"); err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}
	token := resp.token()
	if token == "" {
		return "", fmt.Errorf("%w: no access token in login response (result=%q)", ErrAuth, resp.Result)
	}
	c.token = token
	return token, nil
}

func (c *Client) resetToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

type runRequest struct {
	Inputs       map[string]any `json:"inputs"`
	ResponseMode string         `json:"response_mode"`
	User         string         `json:"user"`
}

type runResponse struct {
	WorkflowRunID string `json:"workflow_run_id"`
	Data          struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Error  string `json:"error"`
	} `json:"data"`
}

// Execute runs the workflow of appID in blocking mode, authenticated with
// its API secret. A nil error means Dify accepted the run and did not
// report it as failed.
func (c *Client) Execute(ctx context.Context, appID, secret string, payload map[string]any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}
	if payload == nil {
		payload = map[string]any{}
	}

	req := runRequest{Inputs: payload, ResponseMode: "blocking", User: c.cfg.User}
	var resp runResponse
	if err := c.do(ctx, c.cfg.ExecutionTimeout, http.MethodPost, "/v1/workflows/run", secret, req, &resp, "run workflow"); err != nil {
		return err
	}

	if resp.Data.Status == "failed" || resp.Data.Status == "stopped" {
		return &WorkflowError{RunID: resp.WorkflowRunID, Status: resp.Data.Status, Message: resp.Data.Error}
	}
	c.logger.Debug("workflow run accepted",
		zap.String("app_id", appID),
		zap.String("workflow_run_id", resp.WorkflowRunID),
		zap.String("status", resp.Data.Status))
	return nil
}

// do sends one JSON request and decodes a 2xx answer into out.
func (c *Client) do(ctx context.Context, timeout time.Duration, method, path, bearer string, in, out any, op string) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxTimeout, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if runID := RunIDFromContext(ctx); runID != "" {
		req.Header.Set("X-Difycron-Run-ID", runID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

type runIDKey struct{}

// ContextWithRunID tags outgoing requests with a run identifier.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run identifier set by ContextWithRunID.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
