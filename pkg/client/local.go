package client

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/digitalhub/dhsdk/pkg/entity"
	"github.com/digitalhub/dhsdk/pkg/telemetry"
)

// scope is one project-scoped collection.
type scope struct {
	project string
	typ     entity.Type
}

// bucket holds every version stored under one name.
type bucket struct {
	versions map[string]map[string]any
	latest   string
}

// LocalClient implements Client in process memory.
//
// Base types are stored by name. Context types are stored per project and
// type, then by name, then by id; unversioned types use their id as name.
// Every object is deep-copied on the way in and out. LocalClient is safe for
// concurrent use.
type LocalClient struct {
	mu          sync.RWMutex
	base        map[entity.Type]map[string]map[string]any
	scoped      map[scope]map[string]*bucket
	projections *ProjectionRegistry
	log         *telemetry.Logger
}

// NewLocalClient creates an empty LocalClient.
func NewLocalClient(opts ...Option) *LocalClient {
	o := applyOptions(opts)
	if o.projections == nil {
		o.projections = DefaultProjections()
	}
	return &LocalClient{
		base:        make(map[entity.Type]map[string]map[string]any),
		scoped:      make(map[scope]map[string]*bucket),
		projections: o.projections,
		log:         o.tel.Logger.NewComponentLogger("local-client"),
	}
}

// IsLocal returns true.
func (c *LocalClient) IsLocal() bool {
	return true
}

// CreateObject stores obj. Base objects must not exist yet. A context object
// becomes the latest version of its name. On a run action path it performs
// the action.
func (c *LocalClient) CreateObject(ctx context.Context, api string, obj map[string]any) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ref, err := parseLocal("create", api)
	if err != nil {
		return nil, err
	}

	if !ref.IsContext() {
		name := stringField(obj, "name")
		if name == "" {
			return nil, missingField("create", ref.Type, "name")
		}
		objs := c.base[ref.Type]
		if objs == nil {
			objs = make(map[string]map[string]any)
			c.base[ref.Type] = objs
		}
		if _, ok := objs[name]; ok {
			return nil, NewConflictError(ref.Type, name).WithOp("create")
		}
		objs[name] = deepCopy(obj)
		c.log.Zerolog().Debug().Str("type", string(ref.Type)).Str("name", name).Msg("object created")
		return deepCopy(obj), nil
	}

	if ref.Action != "" {
		return c.action(ref)
	}

	id := stringField(obj, "id")
	if id == "" {
		return nil, missingField("create", ref.Type, "id")
	}
	name := bucketName(ref.Type, obj)
	if name == "" {
		return nil, missingField("create", ref.Type, "name")
	}
	if _, _, ok := c.findVersion(scope{ref.Project, ref.Type}, id); ok {
		return nil, NewConflictError(ref.Type, id).WithOp("create")
	}

	buckets := c.scoped[scope{ref.Project, ref.Type}]
	if buckets == nil {
		buckets = make(map[string]*bucket)
		c.scoped[scope{ref.Project, ref.Type}] = buckets
	}
	b, ok := buckets[name]
	if !ok {
		b = &bucket{versions: make(map[string]map[string]any)}
		buckets[name] = b
	}
	b.versions[id] = deepCopy(obj)
	b.latest = id

	c.log.Zerolog().Debug().
		Str("project", ref.Project).
		Str("type", string(ref.Type)).
		Str("name", name).
		Str("id", id).
		Msg("object created")
	return deepCopy(obj), nil
}

// ReadObject returns a base object by name, a context object by id, or the
// latest version of the name given in a "name" query parameter. Reading a
// project attaches the latest version of each child.
func (c *LocalClient) ReadObject(ctx context.Context, api string) (map[string]any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	path, query := splitQuery(api)
	ref, err := parseLocal("read", path)
	if err != nil {
		return nil, err
	}

	if !ref.IsContext() {
		obj, ok := c.base[ref.Type][ref.Name]
		if !ok {
			return nil, NewNotFoundError(ref.Type, ref.Name).WithOp("read")
		}
		out := deepCopy(obj)
		if ref.Type == entity.TypeProject {
			c.project(ref.Name, out)
		}
		return out, nil
	}

	if ref.Action != "" {
		return nil, newError(KindInternal, fmt.Sprintf("action %q cannot be read", ref.Action), nil).
			WithOp("read").WithEntity(ref.Type, ref.ID)
	}

	s := scope{ref.Project, ref.Type}
	if ref.ID != "" {
		b, _, ok := c.findVersion(s, ref.ID)
		if !ok {
			return nil, NewNotFoundError(ref.Type, ref.ID).WithOp("read")
		}
		return deepCopy(b.versions[ref.ID]), nil
	}

	name := query.Get("name")
	if name == "" {
		return nil, missingField("read", ref.Type, "id")
	}
	b, ok := c.scoped[s][name]
	if !ok {
		return nil, NewNotFoundError(ref.Type, name).WithOp("read")
	}
	return deepCopy(b.versions[b.latest]), nil
}

// UpdateObject overwrites an existing object in place. The latest pointer is
// left untouched.
func (c *LocalClient) UpdateObject(ctx context.Context, api string, obj map[string]any) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ref, err := parseLocal("update", api)
	if err != nil {
		return nil, err
	}

	if !ref.IsContext() {
		if _, ok := c.base[ref.Type][ref.Name]; !ok {
			return nil, NewNotFoundError(ref.Type, ref.Name).WithOp("update")
		}
		c.base[ref.Type][ref.Name] = deepCopy(obj)
		return deepCopy(obj), nil
	}

	if ref.ID == "" {
		return nil, missingField("update", ref.Type, "id")
	}
	b, _, ok := c.findVersion(scope{ref.Project, ref.Type}, ref.ID)
	if !ok {
		return nil, NewNotFoundError(ref.Type, ref.ID).WithOp("update")
	}
	b.versions[ref.ID] = deepCopy(obj)
	return deepCopy(obj), nil
}

// DeleteObject removes one version by id, or every version of the name in
// params. Deleting a project with cascade=true also drops its children.
func (c *LocalClient) DeleteObject(ctx context.Context, api string, params url.Values) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path, query := splitQuery(api)
	ref, err := parseLocal("delete", path)
	if err != nil {
		return nil, err
	}
	for k, v := range params {
		query[k] = v
	}

	if !ref.IsContext() {
		if _, ok := c.base[ref.Type][ref.Name]; !ok {
			return nil, NewNotFoundError(ref.Type, ref.Name).WithOp("delete")
		}
		delete(c.base[ref.Type], ref.Name)
		if ref.Type == entity.TypeProject && query.Get("cascade") == "true" {
			for s := range c.scoped {
				if s.project == ref.Name {
					delete(c.scoped, s)
				}
			}
		}
		return deleted(), nil
	}

	s := scope{ref.Project, ref.Type}
	if ref.ID != "" {
		b, name, ok := c.findVersion(s, ref.ID)
		if !ok {
			return nil, NewNotFoundError(ref.Type, ref.ID).WithOp("delete")
		}
		delete(b.versions, ref.ID)
		switch {
		case len(b.versions) == 0:
			delete(c.scoped[s], name)
		case b.latest == ref.ID:
			b.latest = newestVersion(b.versions)
		}
		return deleted(), nil
	}

	name := query.Get("name")
	if name == "" {
		return nil, missingField("delete", ref.Type, "id")
	}
	if _, ok := c.scoped[s][name]; !ok {
		return nil, NewNotFoundError(ref.Type, name).WithOp("delete")
	}
	delete(c.scoped[s], name)
	return deleted(), nil
}

// ListObjects returns the latest version of every name, or every version
// when versions=all, filtered by name, kind, function, task and state and
// sorted newest first.
func (c *LocalClient) ListObjects(ctx context.Context, api string, params url.Values) ([]map[string]any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	path, query := splitQuery(api)
	ref, err := parseLocal("list", path)
	if err != nil {
		return nil, err
	}
	for k, v := range params {
		query[k] = v
	}

	if ref.Action != "" {
		return nil, newError(KindInternal, fmt.Sprintf("action %q cannot be listed", ref.Action), nil).
			WithOp("list").WithEntity(ref.Type, ref.ID)
	}

	var candidates []map[string]any
	if !ref.IsContext() {
		for _, obj := range c.base[ref.Type] {
			candidates = append(candidates, obj)
		}
	} else {
		all := query.Get("versions") == "all"
		for _, b := range c.scoped[scope{ref.Project, ref.Type}] {
			if all {
				for _, obj := range b.versions {
					candidates = append(candidates, obj)
				}
				continue
			}
			candidates = append(candidates, b.versions[b.latest])
		}
	}

	out := make([]map[string]any, 0, len(candidates))
	for _, obj := range candidates {
		if matches(obj, query) {
			out = append(out, deepCopy(obj))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// action applies a run action.
func (c *LocalClient) action(ref APIRef) (map[string]any, error) {
	if ref.Type != entity.TypeRun || ref.Action != "stop" {
		return nil, newError(KindInternal, fmt.Sprintf("unsupported action %q on %s", ref.Action, ref.Type), nil).
			WithOp("create").WithEntity(ref.Type, ref.ID)
	}
	b, _, ok := c.findVersion(scope{ref.Project, ref.Type}, ref.ID)
	if !ok {
		return nil, NewNotFoundError(ref.Type, ref.ID).WithOp("stop")
	}
	run := b.versions[ref.ID]
	status, _ := run["status"].(map[string]any)
	if status == nil {
		status = make(map[string]any)
		run["status"] = status
	}
	status["state"] = string(entity.StateStopped)
	return deepCopy(run), nil
}

// project attaches the latest version of each registered child type to the
// project spec. Specs of non-embedded children are dropped.
func (c *LocalClient) project(name string, obj map[string]any) {
	spec, _ := obj["spec"].(map[string]any)
	if spec == nil {
		spec = make(map[string]any)
		obj["spec"] = spec
	}
	for _, t := range c.projections.Types() {
		field, _ := c.projections.Field(t)
		buckets := c.scoped[scope{name, t}]
		names := make([]string, 0, len(buckets))
		for n := range buckets {
			names = append(names, n)
		}
		sort.Strings(names)

		children := make([]any, 0, len(names))
		for _, n := range names {
			b := buckets[n]
			child := deepCopy(b.versions[b.latest])
			if !embedded(child) {
				delete(child, "spec")
			}
			children = append(children, child)
		}
		spec[field] = children
	}
}

func (c *LocalClient) findVersion(s scope, id string) (*bucket, string, bool) {
	for name, b := range c.scoped[s] {
		if _, ok := b.versions[id]; ok {
			return b, name, true
		}
	}
	return nil, "", false
}

// newestVersion returns the id with the greatest metadata.created. Equal
// timestamps go to the greater id.
func newestVersion(versions map[string]map[string]any) string {
	var bestID string
	best := entity.Epoch
	for id, obj := range versions {
		created := entity.CreatedAt(obj)
		if bestID == "" || created.After(best) || (created.Equal(best) && id > bestID) {
			bestID, best = id, created
		}
	}
	return bestID
}

func sortNewestFirst(objs []map[string]any) {
	sort.SliceStable(objs, func(i, j int) bool {
		ci, cj := entity.CreatedAt(objs[i]), entity.CreatedAt(objs[j])
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return stringField(objs[i], "id") > stringField(objs[j], "id")
	})
}

func matches(obj map[string]any, query url.Values) bool {
	spec, _ := obj["spec"].(map[string]any)
	status, _ := obj["status"].(map[string]any)
	checks := []struct {
		param string
		value string
	}{
		{"name", stringField(obj, "name")},
		{"kind", stringField(obj, "kind")},
		{"function", stringField(spec, "function")},
		{"workflow", stringField(spec, "workflow")},
		{"task", stringField(spec, "task")},
		{"state", stringField(status, "state")},
	}
	for _, chk := range checks {
		if want := query.Get(chk.param); want != "" && want != chk.value {
			return false
		}
	}
	return true
}

func bucketName(t entity.Type, obj map[string]any) string {
	if t.IsVersioned() {
		return stringField(obj, "name")
	}
	return stringField(obj, "id")
}

func embedded(obj map[string]any) bool {
	md, _ := obj["metadata"].(map[string]any)
	v, _ := md["embedded"].(bool)
	return v
}

func stringField(obj map[string]any, field string) string {
	if obj == nil {
		return ""
	}
	s, _ := obj[field].(string)
	return s
}

func parseLocal(op, api string) (APIRef, error) {
	ref, err := ParseAPI(api)
	if err != nil {
		return APIRef{}, newError(KindInternal, "invalid api path", err).WithOp(op)
	}
	return ref, nil
}

func missingField(op string, t entity.Type, field string) *BackendError {
	return newError(KindInternal, "invalid object", entity.NewMissingFieldError(t, field)).
		WithOp(op).WithEntity(t, "")
}

func deleted() map[string]any {
	return map[string]any{"deleted": true}
}

// deepCopy copies the JSON-shaped value tree of obj.
func deepCopy(obj map[string]any) map[string]any {
	if obj == nil {
		return nil
	}
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopy(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
