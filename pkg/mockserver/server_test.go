package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalhub/dhsdk/pkg/client"
	"github.com/digitalhub/dhsdk/pkg/config"
	"github.com/digitalhub/dhsdk/pkg/entities"
	"github.com/digitalhub/dhsdk/pkg/entity"
)

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewServer(client.NewLocalClient(), opts...))
	t.Cleanup(srv.Close)
	return srv
}

func remoteStore(t *testing.T, srv *httptest.Server, mutate func(*config.Config)) *entities.Store {
	t.Helper()
	cfg := config.Default()
	cfg.Endpoint = srv.URL
	if mutate != nil {
		mutate(cfg)
	}
	c, err := client.NewRemoteClient(cfg)
	require.NoError(t, err)
	return entities.NewStore(c)
}

func createProject(t *testing.T, s *entities.Store, name string) {
	t.Helper()
	p, err := entities.ProjectFromParameters(name, entities.Parameters{})
	require.NoError(t, err)
	_, err = s.Create(context.Background(), p)
	require.NoError(t, err)
}

func createFunction(t *testing.T, s *entities.Store, name string) *entity.Entity {
	t.Helper()
	fn, err := entities.FunctionFromParameters(entities.Parameters{Project: "p1", Name: name, Kind: "python"})
	require.NoError(t, err)
	fn, err = s.Create(context.Background(), fn)
	require.NoError(t, err)
	return fn
}

func TestRemoteCRUDThroughServer(t *testing.T) {
	ctx := context.Background()
	s := remoteStore(t, newTestServer(t), nil)
	createProject(t, s, "p1")

	v1 := createFunction(t, s, "fn")
	v2 := createFunction(t, s, "fn")

	latest, err := s.Get(ctx, entity.TypeFunction, "p1", "fn")
	require.NoError(t, err)
	assert.Equal(t, v2.ID, latest.ID)

	versions, err := s.ListVersions(ctx, entity.TypeFunction, "p1", "fn")
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	v1.Metadata.Description = "first"
	updated, err := s.Update(ctx, v1)
	require.NoError(t, err)
	assert.Equal(t, "first", updated.Metadata.Description)

	_, err = s.Delete(ctx, entity.TypeFunction, "p1", entity.KeyOf(v2), entities.DeleteOptions{})
	require.NoError(t, err)
	latest, err = s.Get(ctx, entity.TypeFunction, "p1", "fn")
	require.NoError(t, err)
	assert.Equal(t, v1.ID, latest.ID)

	_, err = s.Read(ctx, entity.TypeFunction, "p1", v2.ID)
	require.Error(t, err)
	assert.True(t, client.IsNotFound(err))
}

func TestRemoteConflict(t *testing.T) {
	s := remoteStore(t, newTestServer(t), nil)
	createProject(t, s, "p1")

	p, err := entities.ProjectFromParameters("p1", entities.Parameters{})
	require.NoError(t, err)
	_, err = s.Create(context.Background(), p)
	require.Error(t, err)
	assert.True(t, client.IsConflict(err))
}

func TestRemoteListFollowsPages(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	s := remoteStore(t, srv, nil)
	createProject(t, s, "p1")
	for i := 0; i < 7; i++ {
		createFunction(t, s, fmt.Sprintf("fn-%d", i))
	}

	objs, err := s.Client().ListObjects(ctx, client.ContextAPI("p1", entity.TypeFunction, ""), url.Values{"size": {"3"}})
	require.NoError(t, err)
	assert.Len(t, objs, 7)

	resp, err := http.Get(srv.URL + client.ContextAPI("p1", entity.TypeFunction, "") + "?size=3&page=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	var page struct {
		Content    []map[string]any `json:"content"`
		TotalPages int              `json:"totalPages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Content, 1)
}

func TestRemoteProjectCascadeDelete(t *testing.T) {
	ctx := context.Background()
	s := remoteStore(t, newTestServer(t), nil)
	createProject(t, s, "p1")
	createFunction(t, s, "fn")

	project, err := s.Read(ctx, entity.TypeProject, "", "p1")
	require.NoError(t, err)
	assert.Len(t, project.Spec["functions"], 1)

	_, err = s.Delete(ctx, entity.TypeProject, "", "p1", entities.DeleteOptions{Cascade: true})
	require.NoError(t, err)

	createProject(t, s, "p1")
	fns, err := s.List(ctx, entity.TypeFunction, "p1", nil)
	require.NoError(t, err)
	assert.Empty(t, fns)
}

func TestRemoteStopAndLogs(t *testing.T) {
	ctx := context.Background()
	s := remoteStore(t, newTestServer(t), nil)
	createProject(t, s, "p1")

	run, err := entities.RunFromParameters(entities.Parameters{
		Project: "p1",
		Kind:    "python+run",
		Status:  map[string]any{"logs": []any{"starting", map[string]any{"content": "done"}}},
	})
	require.NoError(t, err)
	run, err = s.Create(ctx, run)
	require.NoError(t, err)

	logs, err := s.RunLogs(ctx, run)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "starting", logs[0]["content"])

	require.NoError(t, s.StopRun(ctx, run))
	require.NoError(t, s.Refresh(ctx, run))
	assert.Equal(t, entity.StateStopped, run.State())
}

func TestServerAssignsContextIDs(t *testing.T) {
	srv := newTestServer(t)
	s := remoteStore(t, srv, nil)
	createProject(t, s, "p1")

	body := strings.NewReader(`{"kind":"job","spec":{"function":"store://p1/functions/python/fn:1"}}`)
	resp, err := http.Post(srv.URL+client.ContextAPI("p1", entity.TypeTask, ""), "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var obj map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&obj))
	assert.NotEmpty(t, obj["id"])
}

func TestServerAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("basic", func(t *testing.T) {
		srv := newTestServer(t, WithBasicAuth("alice", "secret"))
		good := remoteStore(t, srv, func(c *config.Config) { c.User, c.Password = "alice", "secret" })
		createProject(t, good, "p1")

		bad := remoteStore(t, srv, func(c *config.Config) { c.User, c.Password = "alice", "wrong" })
		_, err := bad.Read(ctx, entity.TypeProject, "", "p1")
		require.Error(t, err)
		assert.True(t, client.IsAuthExpired(err))
	})

	t.Run("bearer", func(t *testing.T) {
		srv := newTestServer(t, WithBearerToken("tok"))
		s := remoteStore(t, srv, func(c *config.Config) {
			c.AccessToken = "tok"
			c.TokenCachePath = ""
		})
		createProject(t, s, "p1")
	})

	t.Run("health is public", func(t *testing.T) {
		srv := newTestServer(t, WithBearerToken("tok"))
		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestServerAPILevel(t *testing.T) {
	srv := newTestServer(t, WithAPILevel(config.DefaultAPILevelMax+1))
	s := remoteStore(t, srv, nil)

	p, err := entities.ProjectFromParameters("p1", entities.Parameters{})
	require.NoError(t, err)
	_, err = s.Create(context.Background(), p)
	require.Error(t, err)
	assert.True(t, client.IsIncompatible(err))

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fmt.Sprint(config.DefaultAPILevelMax+1), resp.Header.Get(client.APILevelHeader))
}

func TestServerUnknownType(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + client.APIPrefix + "/widgets")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", client.NewNotFoundError(entity.TypeRun, "r1"), http.StatusNotFound},
		{"conflict", client.NewConflictError(entity.TypeProject, "p1"), http.StatusConflict},
		{"missing field", fmt.Errorf("create: %w", entity.NewMissingFieldError(entity.TypeRun, "id")), http.StatusBadRequest},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}
