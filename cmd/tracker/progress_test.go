package main

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktracker/internal/config"
	"tasktracker/internal/db"
	"tasktracker/internal/engine"
	"tasktracker/internal/migrate"
	"tasktracker/internal/seed"
	"tasktracker/internal/server"
)

func newRemoteServer(t *testing.T, basePath string) string {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "tracker.db")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(ctx, conn))
	c, err := seed.Default()
	require.NoError(t, err)
	_, err = seed.Load(ctx, conn, c)
	require.NoError(t, err)
	handler, err := server.New(server.Config{Engine: engine.New(conn), BasePath: basePath})
	require.NoError(t, err)
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestRemoteClientUsesConfiguredBasePath(t *testing.T) {
	ctx := context.Background()
	url := newRemoteServer(t, "/tracker/v2")

	cfg := config.Default()
	cfg.Server.BasePath = "/tracker/v2"
	summary, err := remoteBackend{client: newRemoteClient(url, "", cfg)}.Summary(ctx)
	require.NoError(t, err)
	assert.Len(t, summary.Stages, 5)

	_, err = remoteBackend{client: newRemoteClient(url, "", config.Default())}.Summary(ctx)
	assert.Error(t, err, "default prefix does not exist on this server")

	b := remoteBackend{client: newRemoteClient(url, "/tracker/v2", config.Default())}
	first := summary.Stages[0].Repositories[0]
	link := "https://example.com/pr/1"
	require.NoError(t, b.SetTask(ctx, first.ID, first.Tasks[0].ID, true, &link))
	summary, err = b.Summary(ctx)
	require.NoError(t, err)
	assert.True(t, summary.Stages[0].Repositories[0].Tasks[0].Completed)
}
