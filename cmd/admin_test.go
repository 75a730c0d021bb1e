package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"weatherbot/config"
	"weatherbot/repository/filestore"
	"weatherbot/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminTestApp(t *testing.T) *App {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "weather.json")

	seed, err := filestore.Open(path, nil)
	require.NoError(t, err)
	uow := seed.UnitOfWorkFactory().Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.UserRepository().Create(ctx, testutil.CreateTestUser("u1", "Alice")))
	require.NoError(t, uow.Commit())

	cfg := config.NewTestConfig()
	cfg.FilestorePath = path

	app, err := NewApp(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func admin(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := runAdmin(context.Background(), app, "admin-1", args, &out)
	return out.String(), err
}

func TestAdmin_ListAndSetActive(t *testing.T) {
	app := newAdminTestApp(t)

	out, err := admin(t, app, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "u1")
	assert.Contains(t, out, "Alice")

	_, err = admin(t, app, "set-active", "u1", "false")
	require.NoError(t, err)

	out, err = admin(t, app, "list")
	require.NoError(t, err)
	assert.Equal(t, "No participants\n", out)

	out, err = admin(t, app, "list", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "false")
}

func TestAdmin_SetScoreAndReconcile(t *testing.T) {
	app := newAdminTestApp(t)

	out, err := admin(t, app, "set-score", "u1", "10")
	require.NoError(t, err)
	assert.Equal(t, "Set score of u1 to 10\n", out)

	out, err = admin(t, app, "reconcile")
	require.NoError(t, err)
	assert.Equal(t, "No drift found\n", out)
}

func TestAdmin_QuotaAndBackfill(t *testing.T) {
	app := newAdminTestApp(t)

	out, err := admin(t, app, "quota")
	require.NoError(t, err)
	assert.Contains(t, out, "0 of 1000 calls used, 1000 remaining")

	out, err = admin(t, app, "backfill")
	require.NoError(t, err)
	assert.Equal(t, "Backfilled 0 observations\n", out)
}

func TestAdmin_InvalidInput(t *testing.T) {
	app := newAdminTestApp(t)

	_, err := admin(t, app)
	assert.Error(t, err)

	_, err = admin(t, app, "set-score", "u1", "lots")
	assert.ErrorContains(t, err, "invalid total")

	_, err = admin(t, app, "set-score", "u1", "-5")
	assert.Error(t, err)

	_, err = admin(t, app, "set-active", "ghost", "true")
	assert.Error(t, err)

	_, err = admin(t, app, "explode")
	assert.ErrorContains(t, err, "unknown admin command")
}
