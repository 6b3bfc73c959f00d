package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/digitalhub/dhsdk/pkg/entities"
	"github.com/digitalhub/dhsdk/pkg/entity"
)

// printEntity writes e as YAML, or JSON with --json.
func printEntity(w io.Writer, e *entity.Entity) error {
	if jsonOutput {
		return printJSON(w, e)
	}
	return entities.Export(w, e)
}

// printEntities writes a table of keys, or a JSON array with --json.
func printEntities(w io.Writer, list []*entity.Entity) error {
	if jsonOutput {
		return printJSON(w, list)
	}
	for _, e := range list {
		state := ""
		if e.Type == entity.TypeRun {
			state = "\t" + string(e.State())
		}
		fmt.Fprintf(w, "%s\t%s%s\n", e.Metadata.Created, entity.KeyOf(e), state)
	}
	return nil
}

// printValue writes any value as YAML, or JSON with --json.
func printValue(w io.Writer, v any) error {
	if jsonOutput {
		return printJSON(w, v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
