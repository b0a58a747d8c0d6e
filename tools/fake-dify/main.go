// Command fake-dify serves a minimal Dify API for local end-to-end testing.
//
// Apps are seeded from FAKE_DIFY_APPS as a comma separated list of
// id:name:secret triples, for example "a1:Daily report:app-key-1".
package main

import (
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/pepabo/dify-cron/internal/dify/difytest"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	addr := ":8081"
	if v := os.Getenv("ADDR"); v != "" {
		addr = v
	}
	email := envOr("FAKE_DIFY_EMAIL", "admin@example.com")
	password := envOr("FAKE_DIFY_PASSWORD", "password")

	apps := parseApps(os.Getenv("FAKE_DIFY_APPS"))
	srv := difytest.NewServer(email, password, apps...)

	logger.Info("fake dify listening",
		zap.String("addr", addr),
		zap.String("email", email),
		zap.Int("apps", len(apps)))
	if err := http.ListenAndServe(addr, logRequests(logger, srv.Handler())); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func parseApps(s string) []difytest.App {
	var apps []difytest.App
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, ":", 3)
		app := difytest.App{ID: parts[0], Name: parts[0], Mode: "workflow"}
		if len(parts) > 1 {
			app.Name = parts[1]
		}
		if len(parts) > 2 {
			app.Secret = parts[2]
		}
		apps = append(apps, app)
	}
	return apps
}

func logRequests(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info("request", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
