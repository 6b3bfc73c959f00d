package entities

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/digitalhub/dhsdk/pkg/entity"
)

// Parameters are the inputs of an entity factory.
type Parameters struct {
	Project     string `validate:"required_without=IsProject"`
	Name        string `validate:"required_if=Versioned true,max=253,excludesall=/:"`
	Kind        string `validate:"required"`
	ID          string `validate:"excludesall=/:"`
	User        string
	Description string
	Labels      []string
	Embedded    bool
	Spec        map[string]any
	Status      map[string]any

	// Set by FromParameters for validation.
	IsProject bool
	Versioned bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewID returns a fresh entity id.
func NewID() string {
	return uuid.NewString()
}

// FromParameters builds an entity of type t ready to be created. It assigns
// an id, stamps metadata and, for runs, the CREATED state. A project's id is
// its name.
func FromParameters(t entity.Type, p Parameters) (*entity.Entity, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	p.IsProject = t == entity.TypeProject
	p.Versioned = t.IsVersioned() || p.IsProject
	if err := validate.Struct(p); err != nil {
		return nil, parametersError(t, err)
	}

	id := p.ID
	switch {
	case p.IsProject:
		id = p.Name
		p.Project = p.Name
	case id == "":
		id = NewID()
	}
	name := p.Name
	if name == "" {
		name = id
	}

	now := entity.Now()
	e := &entity.Entity{
		ID:      id,
		Project: p.Project,
		Name:    name,
		Kind:    p.Kind,
		User:    p.User,
		Type:    t,
		Metadata: entity.Metadata{
			Project:     p.Project,
			Name:        name,
			Description: p.Description,
			Created:     now,
			Updated:     now,
			CreatedBy:   p.User,
			UpdatedBy:   p.User,
			Embedded:    p.Embedded,
			Labels:      p.Labels,
		},
		Spec:   copyMap(p.Spec),
		Status: copyMap(p.Status),
	}
	if t.IsVersioned() {
		e.Metadata.Version = id
	}
	if t == entity.TypeRun && e.State() == "" {
		e.SetState(entity.StateCreated)
	}
	e.Key = entity.KeyOf(e)
	return e, nil
}

// ProjectFromParameters builds a project.
func ProjectFromParameters(name string, p Parameters) (*entity.Entity, error) {
	p.Name = name
	if p.Kind == "" {
		p.Kind = "project"
	}
	return FromParameters(entity.TypeProject, p)
}

// FunctionFromParameters builds a function.
func FunctionFromParameters(p Parameters) (*entity.Entity, error) {
	return FromParameters(entity.TypeFunction, p)
}

// WorkflowFromParameters builds a workflow.
func WorkflowFromParameters(p Parameters) (*entity.Entity, error) {
	return FromParameters(entity.TypeWorkflow, p)
}

// TaskFromParameters builds a task.
func TaskFromParameters(p Parameters) (*entity.Entity, error) {
	return FromParameters(entity.TypeTask, p)
}

// RunFromParameters builds a run in state CREATED.
func RunFromParameters(p Parameters) (*entity.Entity, error) {
	return FromParameters(entity.TypeRun, p)
}

// ArtifactFromParameters builds an artifact.
func ArtifactFromParameters(p Parameters) (*entity.Entity, error) {
	return FromParameters(entity.TypeArtifact, p)
}

func parametersError(t entity.Type, err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return fmt.Errorf("invalid %s parameters: %w", t.Singular(), err)
	}
	fe := verrs[0]
	if fe.Tag() == "required" || fe.Tag() == "required_if" || fe.Tag() == "required_without" {
		return entity.NewMissingFieldError(t, strings.ToLower(fe.Field()))
	}
	return fmt.Errorf("invalid %s parameters: field %s failed %q", t.Singular(), fe.Field(), fe.Tag())
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
