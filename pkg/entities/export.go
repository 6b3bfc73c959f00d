package entities

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/digitalhub/dhsdk/pkg/entity"
)

// Export writes e as a YAML document.
func Export(w io.Writer, e *entity.Entity) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("failed to export %s %s: %w", e.Type.Singular(), e.Ref(), err)
	}
	return enc.Close()
}

// ExportFile writes e to path, creating parent directories.
func ExportFile(path string, e *entity.Entity) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := Export(f, e); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Import reads an entity previously written by Export.
func Import(r io.Reader) (*entity.Entity, error) {
	var e entity.Entity
	if err := yaml.NewDecoder(r).Decode(&e); err != nil {
		return nil, fmt.Errorf("failed to import entity: %w", err)
	}
	if err := e.Type.Validate(); err != nil {
		return nil, fmt.Errorf("failed to import entity: %w", err)
	}
	return &e, nil
}

// LogArtifact uploads src to target through the object store serving
// target's scheme and creates an artifact named name pointing at it.
func (s *Store) LogArtifact(ctx context.Context, project, name, kind, src, target string) (*entity.Entity, error) {
	store, ok := s.objects.Lookup(target)
	if !ok {
		return nil, entity.NewUnsupportedError(entity.TypeArtifact, kind, "upload to "+target)
	}

	uri, err := store.Upload(ctx, src, target)
	if err != nil {
		return nil, err
	}
	files, err := store.GetFileInfo(ctx, uri)
	if err != nil {
		return nil, err
	}
	infos := make([]any, 0, len(files))
	for i := range files {
		infos = append(infos, files[i].ToMap())
	}

	art, err := ArtifactFromParameters(Parameters{
		Project: project,
		Name:    name,
		Kind:    kind,
		Spec:    map[string]any{"path": uri, "src_path": src},
		Status:  map[string]any{"files": infos},
	})
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, art)
}
