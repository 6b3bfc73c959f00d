package client

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/digitalhub/dhsdk/pkg/entity"
)

// APIPrefix is the root of every backend path.
const APIPrefix = "/api/v1"

// contextMarker separates base paths from project-scoped ones.
const contextMarker = "-"

// APIRef is the decoded form of a backend path.
//
// Base paths address unscoped types by name:
//
//	/api/v1/<type>[/<name>]
//
// Context paths address project-scoped types by id, optionally followed by
// an action such as "stop":
//
//	/api/v1/-/<project>/<type>[/<id>[/<action>]]
type APIRef struct {
	Project string
	Type    entity.Type
	Name    string
	ID      string
	Action  string
}

// IsContext reports whether the reference is project-scoped.
func (r APIRef) IsContext() bool {
	return r.Project != ""
}

// String rebuilds the path.
func (r APIRef) String() string {
	if !r.IsContext() {
		return BaseAPI(r.Type, r.Name)
	}
	if r.Action != "" {
		return ActionAPI(r.Project, r.Type, r.ID, r.Action)
	}
	return ContextAPI(r.Project, r.Type, r.ID)
}

// BaseAPI returns the path of an unscoped collection or, with a name, of one
// of its members.
func BaseAPI(t entity.Type, name string) string {
	p := APIPrefix + "/" + string(t)
	if name != "" {
		p += "/" + url.PathEscape(name)
	}
	return p
}

// ContextAPI returns the path of a project-scoped collection or, with an id,
// of one object in it.
func ContextAPI(project string, t entity.Type, id string) string {
	p := APIPrefix + "/" + contextMarker + "/" + url.PathEscape(project) + "/" + string(t)
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

// ActionAPI returns the path of an action on one project-scoped object.
func ActionAPI(project string, t entity.Type, id, action string) string {
	return ContextAPI(project, t, id) + "/" + action
}

// NameAPI returns a context path selecting the latest version of name.
func NameAPI(project string, t entity.Type, name string) string {
	return ContextAPI(project, t, "") + "?" + url.Values{"name": {name}}.Encode()
}

// EntityAPI returns the path under which e is stored: base entities by name,
// context entities by id.
func EntityAPI(e *entity.Entity) string {
	if e.Type.IsBase() {
		return BaseAPI(e.Type, e.Name)
	}
	return ContextAPI(e.Project, e.Type, e.ID)
}

// ParseAPI decodes a path built by BaseAPI, ContextAPI or ActionAPI. A query
// string, if any, is ignored.
func ParseAPI(api string) (APIRef, error) {
	path := api
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, APIPrefix+"/") {
		return APIRef{}, fmt.Errorf("invalid api path %q: missing %s prefix", api, APIPrefix)
	}

	raw := strings.Split(strings.TrimPrefix(path, APIPrefix+"/"), "/")
	segments := make([]string, len(raw))
	for i, s := range raw {
		v, err := url.PathUnescape(s)
		if err != nil {
			return APIRef{}, fmt.Errorf("invalid api path %q: %w", api, err)
		}
		if v == "" {
			return APIRef{}, fmt.Errorf("invalid api path %q: empty segment", api)
		}
		segments[i] = v
	}

	var ref APIRef
	if segments[0] == contextMarker {
		if len(segments) < 3 || len(segments) > 5 {
			return APIRef{}, fmt.Errorf("invalid api path %q: expected -/<project>/<type>[/<id>[/<action>]]", api)
		}
		ref.Project = segments[1]
		ref.Type = entity.Type(segments[2])
		if len(segments) > 3 {
			ref.ID = segments[3]
		}
		if len(segments) > 4 {
			ref.Action = segments[4]
		}
	} else {
		if len(segments) > 2 {
			return APIRef{}, fmt.Errorf("invalid api path %q: expected <type>[/<name>]", api)
		}
		ref.Type = entity.Type(segments[0])
		if len(segments) > 1 {
			ref.Name = segments[1]
		}
	}

	if err := ref.Type.Validate(); err != nil {
		return APIRef{}, fmt.Errorf("invalid api path %q: %w", api, err)
	}
	return ref, nil
}

// splitQuery separates the query string of an api into values.
func splitQuery(api string) (string, url.Values) {
	i := strings.IndexByte(api, '?')
	if i < 0 {
		return api, url.Values{}
	}
	q, err := url.ParseQuery(api[i+1:])
	if err != nil {
		return api[:i], url.Values{}
	}
	return api[:i], q
}
