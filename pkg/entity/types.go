package entity

import (
	"encoding/json"
	"fmt"
)

// Type identifies an entity family. Its value is the collection name used on
// the wire and in API paths.
type Type string

const (
	TypeProject  Type = "projects"
	TypeFunction Type = "functions"
	TypeTask     Type = "tasks"
	TypeRun      Type = "runs"
	TypeArtifact Type = "artifacts"
	TypeDataitem Type = "dataitems"
	TypeModel    Type = "models"
	TypeWorkflow Type = "workflows"
	TypeSecret   Type = "secrets"
)

// ContextTypes lists every project-scoped type in a stable order.
var ContextTypes = []Type{
	TypeArtifact,
	TypeDataitem,
	TypeFunction,
	TypeModel,
	TypeRun,
	TypeSecret,
	TypeTask,
	TypeWorkflow,
}

// Validate checks if the type is one of the known entity types.
func (t Type) Validate() error {
	switch t {
	case TypeProject, TypeFunction, TypeTask, TypeRun, TypeArtifact,
		TypeDataitem, TypeModel, TypeWorkflow, TypeSecret:
		return nil
	default:
		return fmt.Errorf("invalid entity type: %s", t)
	}
}

// IsBase returns true for types addressed outside of a project.
func (t Type) IsBase() bool {
	return t == TypeProject
}

// IsVersioned returns true if many versions may share one name.
func (t Type) IsVersioned() bool {
	switch t {
	case TypeFunction, TypeArtifact, TypeDataitem, TypeModel, TypeWorkflow, TypeSecret:
		return true
	default:
		return false
	}
}

// IsExecutable returns true for types that can be launched through a task.
func (t Type) IsExecutable() bool {
	return t == TypeFunction || t == TypeWorkflow
}

// Singular returns the singular form of the type, used as a spec field name
// (a task references its "function" or "workflow").
func (t Type) Singular() string {
	if t == "" {
		return ""
	}
	return string(t[:len(t)-1])
}

// State is the lifecycle state of a run.
type State string

const (
	StateCreated   State = "CREATED"
	StateBuilt     State = "BUILT"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateError     State = "ERROR"
	StateStopped   State = "STOPPED"
)

// IsTerminal returns true if the state is final.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateError || s == StateStopped
}

// Validate checks if the state is valid.
func (s State) Validate() error {
	switch s {
	case StateCreated, StateBuilt, StateRunning, StateCompleted, StateError, StateStopped:
		return nil
	default:
		return fmt.Errorf("invalid run state: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *State) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = State(str)
	return s.Validate()
}

// validTransitions maps each state to the states it may move to.
var validTransitions = map[State]map[State]bool{
	StateCreated: {
		StateBuilt:   true,
		StateError:   true,
		StateStopped: true,
	},
	StateBuilt: {
		StateRunning: true,
		StateError:   true,
		StateStopped: true,
	},
	StateRunning: {
		StateCompleted: true,
		StateError:     true,
		StateStopped:   true,
	},
}

// ValidTransition reports whether a run may move from one state to another.
// Staying in the same state is always allowed.
func ValidTransition(from, to State) bool {
	if from == to {
		return true
	}
	return validTransitions[from][to]
}

// Metadata carries the descriptive, server-maintained fields of an entity.
type Metadata struct {
	Project     string   `json:"project,omitempty" yaml:"project,omitempty"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Version     string   `json:"version,omitempty" yaml:"version,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Created     string   `json:"created,omitempty" yaml:"created,omitempty"`
	Updated     string   `json:"updated,omitempty" yaml:"updated,omitempty"`
	CreatedBy   string   `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	UpdatedBy   string   `json:"updated_by,omitempty" yaml:"updated_by,omitempty"`
	Embedded    bool     `json:"embedded" yaml:"embedded"`
	Labels      []string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Entity is the wire shape shared by every entity type.
type Entity struct {
	ID       string         `json:"id" yaml:"id"`
	Project  string         `json:"project,omitempty" yaml:"project,omitempty"`
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
	Kind     string         `json:"kind" yaml:"kind"`
	Key      string         `json:"key,omitempty" yaml:"key,omitempty"`
	User     string         `json:"user,omitempty" yaml:"user,omitempty"`
	Metadata Metadata       `json:"metadata" yaml:"metadata"`
	Spec     map[string]any `json:"spec,omitempty" yaml:"spec,omitempty"`
	Status   map[string]any `json:"status,omitempty" yaml:"status,omitempty"`

	// Type is implied by the API path the entity travels on.
	Type Type `json:"-" yaml:"entity_type"`
}

// State returns status.state, or an empty State when missing.
func (e *Entity) State() State {
	if e.Status == nil {
		return ""
	}
	s, _ := e.Status["state"].(string)
	return State(s)
}

// SetState sets status.state.
func (e *Entity) SetState(s State) {
	if e.Status == nil {
		e.Status = make(map[string]any)
	}
	e.Status["state"] = string(s)
}

// SetMessage sets status.message.
func (e *Entity) SetMessage(msg string) {
	if e.Status == nil {
		e.Status = make(map[string]any)
	}
	e.Status["message"] = msg
}

// SpecString returns a string field from spec.
func (e *Entity) SpecString(field string) string {
	if e.Spec == nil {
		return ""
	}
	s, _ := e.Spec[field].(string)
	return s
}

// Ref returns the identifier a backend stores the entity under: the name for
// base and versioned types, the id otherwise.
func (e *Entity) Ref() string {
	if e.Type.IsBase() || (e.Type.IsVersioned() && e.Name != "") {
		return e.Name
	}
	return e.ID
}

// ToMap converts the entity into its generic wire object.
func (e *Entity) ToMap() (map[string]any, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s %s: %w", e.Type, e.ID, err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s %s: %w", e.Type, e.ID, err)
	}
	return out, nil
}

// FromMap converts a generic wire object into an entity of type t.
func FromMap(t Type, obj map[string]any) (*Entity, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s object: %w", t, err)
	}
	e := &Entity{}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("failed to decode %s object: %w", t, err)
	}
	e.Type = t
	return e, nil
}
