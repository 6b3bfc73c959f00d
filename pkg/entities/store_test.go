package entities

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalhub/dhsdk/pkg/client"
	"github.com/digitalhub/dhsdk/pkg/entity"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(client.NewLocalClient())
	p, err := ProjectFromParameters("p1", Parameters{})
	require.NoError(t, err)
	_, err = s.Create(context.Background(), p)
	require.NoError(t, err)
	return s
}

func newFunction(t *testing.T, name string) *entity.Entity {
	t.Helper()
	fn, err := FunctionFromParameters(Parameters{
		Project: "p1",
		Name:    name,
		Kind:    "python",
		Spec:    map[string]any{"handler": "main"},
	})
	require.NoError(t, err)
	return fn
}

func TestFromParameters(t *testing.T) {
	fn := newFunction(t, "fn")
	assert.NotEmpty(t, fn.ID)
	assert.Equal(t, fn.ID, fn.Metadata.Version)
	assert.Equal(t, entity.KeyOf(fn), fn.Key)
	assert.NotEmpty(t, fn.Metadata.Created)

	run, err := RunFromParameters(Parameters{Project: "p1", Kind: "python+run"})
	require.NoError(t, err)
	assert.Equal(t, entity.StateCreated, run.State())
	assert.Equal(t, run.ID, run.Name)

	p, err := ProjectFromParameters("p2", Parameters{})
	require.NoError(t, err)
	assert.Equal(t, "p2", p.ID)
	assert.Equal(t, "store://p2", p.Key)
}

func TestFromParametersMissingFields(t *testing.T) {
	_, err := FunctionFromParameters(Parameters{Project: "p1", Kind: "python"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrMissingField), "got %v", err)

	_, err = FunctionFromParameters(Parameters{Project: "p1", Name: "fn"})
	assert.True(t, entity.HasCode(err, entity.CodeMissingField))

	_, err = TaskFromParameters(Parameters{Kind: "job"})
	assert.True(t, entity.HasCode(err, entity.CodeMissingField))

	_, err = FunctionFromParameters(Parameters{Project: "p1", Name: "a/b", Kind: "python"})
	assert.Error(t, err)
}

func TestCreateThenGetByKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fn := newFunction(t, "fn")

	_, err := s.Create(ctx, fn)
	require.NoError(t, err)

	got, err := s.Get(ctx, entity.TypeFunction, "", fn.Key)
	require.NoError(t, err)
	assert.Equal(t, fn.ID, got.ID)
	assert.Equal(t, fn.Name, got.Name)
	assert.Equal(t, fn.Project, got.Project)
	assert.Equal(t, entity.TypeFunction, got.Type)
}

func TestGetByNameReturnsLatest(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := newFunction(t, "fn")
	first.Metadata.Created = "2024-01-01T00:00:00Z"
	_, err := s.Create(ctx, first)
	require.NoError(t, err)

	second := newFunction(t, "fn")
	_, err = s.Create(ctx, second)
	require.NoError(t, err)

	got, err := s.Get(ctx, entity.TypeFunction, "p1", "fn")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	versions, err := s.ListVersions(ctx, entity.TypeFunction, "p1", "fn")
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	_, err = s.Get(ctx, entity.TypeFunction, "p1", "missing")
	assert.True(t, client.IsNotFound(err))
}

func TestUpdateBumpsUpdated(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fn := newFunction(t, "fn")
	fn.Metadata.Updated = "2000-01-01T00:00:00Z"
	require.NoError(t, s.Save(ctx, fn, false))

	fn.Status = map[string]any{"state": "READY"}
	require.NoError(t, s.Save(ctx, fn, true))
	assert.NotEqual(t, "2000-01-01T00:00:00Z", fn.Metadata.Updated)

	other := &entity.Entity{ID: fn.ID, Project: "p1", Type: entity.TypeFunction}
	require.NoError(t, s.Refresh(ctx, other))
	assert.Equal(t, "READY", other.Status["state"])
	assert.Equal(t, fn.Metadata.Updated, other.Metadata.Updated)
}

func TestDeleteByKeyAndName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := newFunction(t, "fn")
	b := newFunction(t, "fn")
	_, err := s.Create(ctx, a)
	require.NoError(t, err)
	_, err = s.Create(ctx, b)
	require.NoError(t, err)

	res, err := s.Delete(ctx, entity.TypeFunction, "", b.Key, DeleteOptions{})
	require.NoError(t, err)
	assert.Equal(t, true, res["deleted"])

	got, err := s.Get(ctx, entity.TypeFunction, "p1", "fn")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = s.Delete(ctx, entity.TypeFunction, "p1", "fn", DeleteOptions{})
	require.NoError(t, err)
	list, err := s.List(ctx, entity.TypeFunction, "p1", nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDeleteProjectCascade(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fn := newFunction(t, "fn")
	_, err := s.Create(ctx, fn)
	require.NoError(t, err)

	_, err = s.Delete(ctx, entity.TypeProject, "", "store://p1", DeleteOptions{Cascade: true})
	require.NoError(t, err)

	_, err = s.Get(ctx, entity.TypeFunction, "", fn.Key)
	assert.True(t, client.IsNotFound(err))
	_, err = s.Read(ctx, entity.TypeProject, "", "p1")
	assert.True(t, client.IsNotFound(err))
}

func TestLookupInterface(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fn := newFunction(t, "fn")
	_, err := s.Create(ctx, fn)
	require.NoError(t, err)

	task, err := TaskFromParameters(Parameters{Project: "p1", Kind: "job", Spec: map[string]any{"function": fn.Key}})
	require.NoError(t, err)
	_, err = s.Create(ctx, task)
	require.NoError(t, err)

	exec, err := s.ReadExecutable(ctx, fn.Key)
	require.NoError(t, err)
	assert.Equal(t, fn.ID, exec.ID)

	got, err := s.ReadTask(ctx, task.Key)
	require.NoError(t, err)
	assert.Equal(t, fn.Key, got.SpecString("function"))

	_, err = s.ReadExecutable(ctx, task.Key)
	assert.True(t, entity.HasCode(err, entity.CodeUnsupported))
}

func TestStopRunLocal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	run, err := RunFromParameters(Parameters{Project: "p1", Kind: "python+run"})
	require.NoError(t, err)
	_, err = s.Create(ctx, run)
	require.NoError(t, err)

	require.NoError(t, s.StopRun(ctx, run))
	require.NoError(t, s.Refresh(ctx, run))
	assert.Equal(t, entity.StateStopped, run.State())
}

func TestExportImport(t *testing.T) {
	fn := newFunction(t, "fn")
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, fn))
	assert.Contains(t, buf.String(), "entity_type: functions")

	back, err := Import(&buf)
	require.NoError(t, err)
	assert.Equal(t, fn.ID, back.ID)
	assert.Equal(t, entity.TypeFunction, back.Type)
	assert.Equal(t, "main", back.SpecString("handler"))
}

func TestLogArtifact(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "model.bin")
	require.NoError(t, os.WriteFile(src, []byte("weights"), 0o644))

	art, err := s.LogArtifact(ctx, "p1", "model", "artifact", src, filepath.Join(dir, "store", "model.bin"))
	require.NoError(t, err)
	assert.Contains(t, art.SpecString("path"), "file://")

	files, ok := art.Status["files"].([]any)
	require.True(t, ok)
	require.Len(t, files, 1)
	assert.EqualValues(t, 7, files[0].(map[string]any)["size"])

	_, err = s.LogArtifact(ctx, "p1", "model", "artifact", src, "s3://bucket/model.bin")
	assert.True(t, entity.HasCode(err, entity.CodeUnsupported))
}
