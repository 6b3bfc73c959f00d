package runtime

import (
	"context"

	"github.com/digitalhub/dhsdk/pkg/entity"
)

// MergeSpecs merges spec layers ordered from weakest to strongest. Nested
// maps merge recursively; any other value in a stronger layer replaces the
// weaker one. Inputs are not modified.
func MergeSpecs(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, layer := range layers {
		mergeInto(out, layer)
	}
	return out
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		if sm, ok := v.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				mergeInto(dm, sm)
				continue
			}
			nested := make(map[string]any, len(sm))
			mergeInto(nested, sm)
			dst[k] = nested
			continue
		}
		dst[k] = cloneValue(v)
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		mergeInto(out, t)
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// Layered implements Runtime.Build as the plain merge of executable < task <
// run specs. Embed it in runtimes that need no extra build logic.
type Layered struct{}

// Build merges the three spec layers.
func (Layered) Build(_ context.Context, executable, task, run *entity.Entity) (map[string]any, error) {
	return MergeSpecs(specOf(executable), specOf(task), specOf(run)), nil
}

func specOf(e *entity.Entity) map[string]any {
	if e == nil {
		return nil
	}
	return e.Spec
}
