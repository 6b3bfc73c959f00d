package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalhub/dhsdk/pkg/client"
	"github.com/digitalhub/dhsdk/pkg/config"
	"github.com/digitalhub/dhsdk/pkg/entities"
	"github.com/digitalhub/dhsdk/pkg/entity"
	"github.com/digitalhub/dhsdk/pkg/mockserver"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand("test", "none", "now")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func newBackend(t *testing.T) (*httptest.Server, *entities.Store) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "disabled")
	t.Setenv(config.EnvEndpoint, "")

	srv := httptest.NewServer(mockserver.NewServer(client.NewLocalClient()))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Endpoint = srv.URL
	c, err := client.NewRemoteClient(cfg)
	require.NoError(t, err)
	return srv, entities.NewStore(c)
}

func TestProjectCommands(t *testing.T) {
	srv, _ := newBackend(t)

	out, err := execute(t, "--endpoint", srv.URL, "--json", "project", "create", "demo", "--description", "demo project")
	require.NoError(t, err)
	var created map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, "demo", created["name"])

	out, err = execute(t, "--endpoint", srv.URL, "project", "get", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "description: demo project")

	_, err = execute(t, "--endpoint", srv.URL, "project", "create", "demo")
	require.Error(t, err)
	assert.True(t, client.IsConflict(err))

	_, err = execute(t, "--endpoint", srv.URL, "project", "delete", "demo", "--cascade")
	require.NoError(t, err)

	_, err = execute(t, "--endpoint", srv.URL, "project", "get", "demo")
	assert.True(t, client.IsNotFound(err))
}

func TestEntityCommands(t *testing.T) {
	srv, store := newBackend(t)
	ctx := context.Background()

	p, err := entities.ProjectFromParameters("demo", entities.Parameters{})
	require.NoError(t, err)
	_, err = store.Create(ctx, p)
	require.NoError(t, err)

	var fns []*entity.Entity
	for i := 0; i < 2; i++ {
		fn, err := entities.FunctionFromParameters(entities.Parameters{Project: "demo", Name: "fn", Kind: "python"})
		require.NoError(t, err)
		fn, err = store.Create(ctx, fn)
		require.NoError(t, err)
		fns = append(fns, fn)
	}

	_, err = execute(t, "--endpoint", srv.URL, "entity", "list", "functions")
	require.Error(t, err)

	out, err := execute(t, "--endpoint", srv.URL, "entity", "list", "functions", "-p", "demo")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, fns[1].ID)

	out, err = execute(t, "--endpoint", srv.URL, "entity", "list", "functions", "-p", "demo", "--all-versions")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "\n"))

	key := entity.BuildKey("demo", entity.TypeFunction, "python", "fn", "")
	out, err = execute(t, "--endpoint", srv.URL, "entity", "get", key)
	require.NoError(t, err)
	assert.Contains(t, out, "id: "+fns[1].ID)

	file := filepath.Join(t.TempDir(), "fn.yaml")
	out, err = execute(t, "--endpoint", srv.URL, "entity", "export", entity.KeyOf(fns[0]), "-o", file)
	require.NoError(t, err)
	assert.Equal(t, file, strings.TrimSpace(out))

	_, err = execute(t, "--endpoint", srv.URL, "entity", "delete", key)
	require.NoError(t, err)
	out, err = execute(t, "--endpoint", srv.URL, "entity", "list", "functions", "-p", "demo")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = execute(t, "--endpoint", srv.URL, "entity", "import", file)
	require.NoError(t, err)
	assert.Contains(t, out, "id: "+fns[0].ID)
}

func TestRunCommands(t *testing.T) {
	srv, store := newBackend(t)
	ctx := context.Background()

	p, err := entities.ProjectFromParameters("demo", entities.Parameters{})
	require.NoError(t, err)
	_, err = store.Create(ctx, p)
	require.NoError(t, err)

	run, err := entities.RunFromParameters(entities.Parameters{
		Project: "demo",
		Kind:    "python+run",
		Status:  map[string]any{"logs": []any{"hello", "world"}},
	})
	require.NoError(t, err)
	run, err = store.Create(ctx, run)
	require.NoError(t, err)
	key := entity.KeyOf(run)

	out, err := execute(t, "--endpoint", srv.URL, "run", "logs", key)
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld\n", out)

	out, err = execute(t, "--endpoint", srv.URL, "run", "stop", key)
	require.NoError(t, err)
	assert.Equal(t, "STOPPED\n", out)

	out, err = execute(t, "--endpoint", srv.URL, "run", "wait", key, "--poll", "10ms", "--timeout", "1s")
	require.NoError(t, err)
	assert.Equal(t, "STOPPED\n", out)

	_, err = execute(t, "--endpoint", srv.URL, "run", "stop", entity.KeyOf(p))
	require.Error(t, err)
}

func TestArtifactLog(t *testing.T) {
	srv, store := newBackend(t)
	ctx := context.Background()

	p, err := entities.ProjectFromParameters("demo", entities.Parameters{})
	require.NoError(t, err)
	_, err = store.Create(ctx, p)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, os.WriteFile(src, []byte("weights"), 0o644))
	target := filepath.Join(t.TempDir(), "artifacts", "model.bin")

	out, err := execute(t, "--endpoint", srv.URL, "--json", "artifact", "log", "model", src, "-p", "demo", "--target", target)
	require.NoError(t, err)
	var art map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &art))
	assert.Equal(t, "model", art["name"])

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))

	arts, err := store.List(ctx, entity.TypeArtifact, "demo", nil)
	require.NoError(t, err)
	require.Len(t, arts, 1)
	files, _ := arts[0].Status["files"].([]any)
	assert.Len(t, files, 1)
}

func TestLocalModeAndMissingEndpoint(t *testing.T) {
	t.Setenv("LOG_LEVEL", "disabled")
	t.Setenv(config.EnvEndpoint, "")

	_, err := execute(t, "project", "get", "demo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no backend endpoint")

	out, err := execute(t, "--local", "project", "create", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "name: demo")
}
