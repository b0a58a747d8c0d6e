package difytest

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pepabo/dify-cron/internal/dify"
)

func TestServer_WithClient(t *testing.T) {
	fake := NewServer("ops@example.com", "pw",
		App{ID: "a1", Name: "Alpha", Mode: "workflow", Secret: "key-a1"},
		App{ID: "c3", Name: "Chat", Mode: "chat"},
		App{ID: "b2", Name: "Beta", Mode: "workflow"},
	)
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	client := dify.New(dify.Config{
		BaseURL:  srv.URL,
		Email:    "ops@example.com",
		Password: "pw",
		AppModes: []string{"workflow"},
	}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	apps, err := client.ListApps(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	assert.Equal(t, "a1", apps[0].ID)
	assert.Equal(t, "b2", apps[1].ID)
	assert.Equal(t, 1, fake.Logins())

	require.NoError(t, client.Execute(dify.ContextWithRunID(ctx, "r-1"), "a1", "key-a1", map[string]any{"k": "v"}))
	runs := fake.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "a1", runs[0].AppID)
	assert.Equal(t, "v", runs[0].Inputs["k"])
	assert.Equal(t, "r-1", runs[0].RequestID)

	err = client.Execute(ctx, "b2", "", nil)
	assert.Equal(t, 401, dify.StatusCode(err))

	fake.FailRuns(500)
	err = client.Execute(ctx, "a1", "key-a1", nil)
	assert.Equal(t, 500, dify.StatusCode(err))
}

func TestServer_BadLogin(t *testing.T) {
	fake := NewServer("ops@example.com", "pw")
	srv := httptest.NewServer(fake.Handler())
	t.Cleanup(srv.Close)

	client := dify.New(dify.Config{BaseURL: srv.URL, Email: "ops@example.com", Password: "wrong"}, zap.NewNop())
	_, err := client.ListApps(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, fake.Logins())
}
