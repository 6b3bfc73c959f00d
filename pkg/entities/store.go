package entities

import (
	"context"
	"fmt"
	"net/url"

	"github.com/digitalhub/dhsdk/pkg/client"
	"github.com/digitalhub/dhsdk/pkg/entity"
	"github.com/digitalhub/dhsdk/pkg/stores"
	"github.com/digitalhub/dhsdk/pkg/telemetry"
)

// Store performs entity operations through a backend client.
type Store struct {
	client  client.Client
	objects *stores.Registry
	log     *telemetry.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithObjectStores sets the registry used by LogArtifact.
func WithObjectStores(r *stores.Registry) Option {
	return func(s *Store) { s.objects = r }
}

// WithLogger sets the store logger.
func WithLogger(l *telemetry.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore creates a Store over c.
func NewStore(c client.Client, opts ...Option) *Store {
	s := &Store{
		client:  c,
		objects: stores.DefaultRegistry(),
		log:     telemetry.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.NewComponentLogger("entities")
	return s
}

// Client returns the backend client.
func (s *Store) Client() client.Client {
	return s.client
}

// IsLocal reports whether the backend is in process memory.
func (s *Store) IsLocal() bool {
	return s.client.IsLocal()
}

func collectionAPI(t entity.Type, project string) string {
	if t.IsBase() {
		return client.BaseAPI(t, "")
	}
	return client.ContextAPI(project, t, "")
}

// Create persists a new entity and returns the stored copy.
func (s *Store) Create(ctx context.Context, e *entity.Entity) (*entity.Entity, error) {
	obj, err := e.ToMap()
	if err != nil {
		return nil, err
	}
	res, err := s.client.CreateObject(ctx, collectionAPI(e.Type, e.Project), obj)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s %s: %w", e.Type.Singular(), e.Ref(), err)
	}
	s.log.Zerolog().Debug().Str("type", string(e.Type)).Str("ref", e.Ref()).Msg("entity created")
	return fromObject(e.Type, res)
}

// Read returns a base entity by name or a context entity by id.
func (s *Store) Read(ctx context.Context, t entity.Type, project, ref string) (*entity.Entity, error) {
	api := client.ContextAPI(project, t, ref)
	if t.IsBase() {
		api = client.BaseAPI(t, ref)
	}
	res, err := s.client.ReadObject(ctx, api)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s: %w", t.Singular(), ref, err)
	}
	return fromObject(t, res)
}

// Get resolves keyOrName. A key carrying an id reads that version; a key
// without id or a bare name returns the latest version of the name.
func (s *Store) Get(ctx context.Context, t entity.Type, project, keyOrName string) (*entity.Entity, error) {
	if !entity.IsKey(keyOrName) {
		return s.latest(ctx, t, project, keyOrName)
	}

	parts, err := entity.ParseKey(keyOrName)
	if err != nil {
		return nil, err
	}
	if parts.IsProject() {
		return s.Read(ctx, entity.TypeProject, "", parts.Project)
	}
	if parts.ID != "" {
		return s.Read(ctx, parts.Type, parts.Project, parts.ID)
	}
	return s.latest(ctx, parts.Type, parts.Project, parts.Name)
}

func (s *Store) latest(ctx context.Context, t entity.Type, project, name string) (*entity.Entity, error) {
	if t.IsBase() {
		return s.Read(ctx, t, "", name)
	}
	obj, ok, err := client.ListFirst(ctx, s.client, collectionAPI(t, project), url.Values{"name": {name}})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, client.NewNotFoundError(t, name).WithOp("get")
	}
	return fromObject(t, obj)
}

// List returns the latest version of each entity matching filters.
func (s *Store) List(ctx context.Context, t entity.Type, project string, filters url.Values) ([]*entity.Entity, error) {
	objs, err := s.client.ListObjects(ctx, collectionAPI(t, project), filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t, err)
	}
	out := make([]*entity.Entity, 0, len(objs))
	for _, obj := range objs {
		e, err := fromObject(t, obj)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ListVersions returns every version of name.
func (s *Store) ListVersions(ctx context.Context, t entity.Type, project, name string) ([]*entity.Entity, error) {
	return s.List(ctx, t, project, url.Values{"name": {name}, "versions": {"all"}})
}

// Update bumps metadata.updated and overwrites the stored entity.
func (s *Store) Update(ctx context.Context, e *entity.Entity) (*entity.Entity, error) {
	e.Metadata.Updated = entity.Now()
	if e.User != "" {
		e.Metadata.UpdatedBy = e.User
	}
	obj, err := e.ToMap()
	if err != nil {
		return nil, err
	}
	res, err := s.client.UpdateObject(ctx, client.EntityAPI(e), obj)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s %s: %w", e.Type.Singular(), e.Ref(), err)
	}
	if len(res) == 0 {
		return e, nil
	}
	return fromObject(e.Type, res)
}

// DeleteOptions tune Delete.
type DeleteOptions struct {
	// Cascade removes a project's children with it.
	Cascade bool
}

// Delete removes keyOrName. A key carrying an id deletes that version only;
// a bare name or a key without id deletes every version of the name.
func (s *Store) Delete(ctx context.Context, t entity.Type, project, keyOrName string, opts DeleteOptions) (map[string]any, error) {
	params := url.Values{}
	if opts.Cascade {
		params.Set("cascade", "true")
	}

	name := keyOrName
	if entity.IsKey(keyOrName) {
		parts, err := entity.ParseKey(keyOrName)
		if err != nil {
			return nil, err
		}
		if parts.IsProject() {
			t, name = entity.TypeProject, parts.Project
		} else {
			t, project, name = parts.Type, parts.Project, parts.Name
			if parts.ID != "" {
				return s.delete(ctx, t, client.ContextAPI(project, t, parts.ID), params, parts.ID)
			}
		}
	}

	if t.IsBase() {
		return s.delete(ctx, t, client.BaseAPI(t, name), params, name)
	}
	if !t.IsVersioned() {
		return s.delete(ctx, t, client.ContextAPI(project, t, name), params, name)
	}
	params.Set("name", name)
	return s.delete(ctx, t, client.ContextAPI(project, t, ""), params, name)
}

func (s *Store) delete(ctx context.Context, t entity.Type, api string, params url.Values, ref string) (map[string]any, error) {
	res, err := s.client.DeleteObject(ctx, api, params)
	if err != nil {
		return nil, fmt.Errorf("failed to delete %s %s: %w", t.Singular(), ref, err)
	}
	s.log.Zerolog().Debug().Str("type", string(t)).Str("ref", ref).Msg("entity deleted")
	return res, nil
}

// Save creates e, or updates it when update is true, and refreshes e from
// the stored copy.
func (s *Store) Save(ctx context.Context, e *entity.Entity, update bool) error {
	var (
		res *entity.Entity
		err error
	)
	if update {
		res, err = s.Update(ctx, e)
	} else {
		res, err = s.Create(ctx, e)
	}
	if err != nil {
		return err
	}
	*e = *res
	return nil
}

// Refresh reloads e from the backend.
func (s *Store) Refresh(ctx context.Context, e *entity.Entity) error {
	res, err := s.client.ReadObject(ctx, client.EntityAPI(e))
	if err != nil {
		return fmt.Errorf("failed to refresh %s %s: %w", e.Type.Singular(), e.Ref(), err)
	}
	fresh, err := fromObject(e.Type, res)
	if err != nil {
		return err
	}
	*e = *fresh
	return nil
}

// StopRun asks the backend to stop run.
func (s *Store) StopRun(ctx context.Context, run *entity.Entity) error {
	if _, err := s.client.CreateObject(ctx, client.ActionAPI(run.Project, entity.TypeRun, run.ID, "stop"), nil); err != nil {
		return fmt.Errorf("failed to stop run %s: %w", run.ID, err)
	}
	return nil
}

// RunLogs returns the logs the backend holds for run.
func (s *Store) RunLogs(ctx context.Context, run *entity.Entity) ([]map[string]any, error) {
	logs, err := s.client.ListObjects(ctx, client.ActionAPI(run.Project, entity.TypeRun, run.ID, "logs"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read logs of run %s: %w", run.ID, err)
	}
	return logs, nil
}

// ReadExecutable returns the function or workflow addressed by key.
func (s *Store) ReadExecutable(ctx context.Context, key string) (*entity.Entity, error) {
	parts, err := entity.ParseKey(key)
	if err != nil {
		return nil, err
	}
	if !parts.Type.IsExecutable() {
		return nil, entity.NewUnsupportedError(parts.Type, parts.Kind, "run")
	}
	return s.Get(ctx, parts.Type, parts.Project, key)
}

// ReadTask returns the task addressed by key.
func (s *Store) ReadTask(ctx context.Context, key string) (*entity.Entity, error) {
	parts, err := entity.ParseKey(key)
	if err != nil {
		return nil, err
	}
	if parts.Type != entity.TypeTask {
		return nil, entity.NewInvalidKeyError(key, "not a task key")
	}
	return s.Read(ctx, entity.TypeTask, parts.Project, parts.ID)
}

func fromObject(t entity.Type, obj map[string]any) (*entity.Entity, error) {
	e, err := entity.FromMap(t, obj)
	if err != nil {
		return nil, &client.BackendError{Kind: client.KindInternal, Message: "malformed object", EntityType: t, Err: err}
	}
	return e, nil
}
