package entity

import (
	"strings"
)

// KeyPrefix is the scheme of every entity key.
const KeyPrefix = "store://"

// KeyParts is the decoded form of an entity key.
type KeyParts struct {
	Project string
	Type    Type
	Kind    string
	Name    string
	ID      string
}

// IsProject returns true if the key only addresses a project.
func (k KeyParts) IsProject() bool {
	return k.Type == "" || k.Type == TypeProject
}

// BuildKey returns the canonical key of one entity version.
func BuildKey(project string, t Type, kind, name, id string) string {
	if t == TypeProject {
		return BuildProjectKey(project)
	}
	var b strings.Builder
	b.WriteString(KeyPrefix)
	b.WriteString(project)
	b.WriteByte('/')
	b.WriteString(string(t))
	b.WriteByte('/')
	b.WriteString(kind)
	b.WriteByte('/')
	b.WriteString(name)
	if id != "" {
		b.WriteByte(':')
		b.WriteString(id)
	}
	return b.String()
}

// BuildProjectKey returns the key of a project.
func BuildProjectKey(project string) string {
	return KeyPrefix + project
}

// KeyOf returns the canonical key of an entity. Unversioned entities use
// their id in place of the name.
func KeyOf(e *Entity) string {
	if e.Type == TypeProject {
		return BuildProjectKey(e.Name)
	}
	name := e.Name
	if name == "" {
		name = e.ID
	}
	return BuildKey(e.Project, e.Type, e.Kind, name, e.ID)
}

// IsKey reports whether s looks like an entity key rather than a bare name.
func IsKey(s string) bool {
	return strings.HasPrefix(s, KeyPrefix)
}

// ParseKey splits an entity key into its parts.
func ParseKey(key string) (KeyParts, error) {
	if !IsKey(key) {
		return KeyParts{}, NewInvalidKeyError(key, "missing "+KeyPrefix+" prefix")
	}
	body := strings.TrimPrefix(key, KeyPrefix)
	if body == "" {
		return KeyParts{}, NewInvalidKeyError(key, "empty key")
	}

	segments := strings.SplitN(body, "/", 4)
	switch len(segments) {
	case 1:
		return KeyParts{Project: segments[0], Type: TypeProject, Name: segments[0]}, nil
	case 4:
	default:
		return KeyParts{}, NewInvalidKeyError(key, "expected project/type/kind/name")
	}

	parts := KeyParts{
		Project: segments[0],
		Type:    Type(segments[1]),
		Kind:    segments[2],
		Name:    segments[3],
	}
	if err := parts.Type.Validate(); err != nil {
		return KeyParts{}, NewInvalidKeyError(key, err.Error())
	}
	if i := strings.LastIndexByte(parts.Name, ':'); i >= 0 {
		parts.ID = parts.Name[i+1:]
		parts.Name = parts.Name[:i]
	}
	if parts.Project == "" || parts.Name == "" {
		return KeyParts{}, NewInvalidKeyError(key, "project and name are required")
	}
	return parts, nil
}
