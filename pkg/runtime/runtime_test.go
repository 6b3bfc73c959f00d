package runtime

import (
	"context"
	"reflect"
	"testing"

	"github.com/digitalhub/dhsdk/pkg/entity"
)

type stubRuntime struct {
	Layered
}

func (stubRuntime) Run(context.Context, *entity.Entity) (map[string]any, error) {
	return map[string]any{"state": "COMPLETED"}, nil
}

type stoppable struct {
	stubRuntime
}

func (stoppable) Stop(context.Context, *entity.Entity) error { return nil }

func (stoppable) ResolvesInputs() bool { return true }

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("python", stubRuntime{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := reg.Register("python", stubRuntime{}); err == nil {
		t.Error("expected error for duplicate registration")
	}
	if err := reg.Register("", stubRuntime{}); err == nil {
		t.Error("expected error for empty kind")
	}

	for _, kind := range []string{"python", "python+run", "python+job"} {
		if _, ok := reg.Lookup(kind); !ok {
			t.Errorf("Lookup(%q) found nothing", kind)
		}
	}
	if _, ok := reg.Lookup("dbt+run"); ok {
		t.Error("Lookup(dbt+run) found a runtime")
	}

	if got := reg.Kinds(); !reflect.DeepEqual(got, []string{"python"}) {
		t.Errorf("Kinds() = %v", got)
	}
}

func TestKinds(t *testing.T) {
	if got := RunKind("python"); got != "python+run" {
		t.Errorf("RunKind = %q", got)
	}
	if got := ExecutableKind("python+run"); got != "python" {
		t.Errorf("ExecutableKind = %q", got)
	}
	if got := ExecutableKind("python"); got != "python" {
		t.Errorf("ExecutableKind = %q", got)
	}
}

func TestCapabilities(t *testing.T) {
	if caps := CapabilitiesOf(stubRuntime{}); caps.Stop || caps.Inputs {
		t.Errorf("CapabilitiesOf(stub) = %+v, want none", caps)
	}
	if caps := CapabilitiesOf(stoppable{}); !caps.Stop || !caps.Inputs {
		t.Errorf("CapabilitiesOf(stoppable) = %+v, want both", caps)
	}
}

func TestMergeSpecs(t *testing.T) {
	fn := map[string]any{
		"handler": "main",
		"source":  map[string]any{"code": "print()", "lang": "python"},
		"env":     []any{"A=1"},
	}
	task := map[string]any{
		"resources": map[string]any{"cpu": "1"},
		"source":    map[string]any{"lang": "python3"},
	}
	run := map[string]any{
		"handler":   "other",
		"resources": map[string]any{"memory": "1Gi"},
	}

	got := MergeSpecs(fn, task, run)
	want := map[string]any{
		"handler":   "other",
		"source":    map[string]any{"code": "print()", "lang": "python3"},
		"env":       []any{"A=1"},
		"resources": map[string]any{"cpu": "1", "memory": "1Gi"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MergeSpecs() = %v, want %v", got, want)
	}

	if fn["handler"] != "main" || fn["source"].(map[string]any)["lang"] != "python" {
		t.Error("MergeSpecs modified its input")
	}
}

func TestLayeredBuild(t *testing.T) {
	exec := &entity.Entity{Spec: map[string]any{"a": 1, "b": 1}}
	task := &entity.Entity{Spec: map[string]any{"b": 2, "c": 2}}
	run := &entity.Entity{Spec: map[string]any{"c": 3}}

	got, err := stubRuntime{}.Build(context.Background(), exec, task, run)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	want := map[string]any{"a": 1, "b": 2, "c": 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Build() = %v, want %v", got, want)
	}
}

func TestInputsContext(t *testing.T) {
	if _, ok := InputsFromContext(context.Background()); ok {
		t.Error("empty context carries inputs")
	}
	inputs := map[string]map[string]any{"data": {"id": "d1"}}
	got, ok := InputsFromContext(WithInputs(context.Background(), inputs))
	if !ok || got["data"]["id"] != "d1" {
		t.Errorf("InputsFromContext() = %v, %v", got, ok)
	}
}
