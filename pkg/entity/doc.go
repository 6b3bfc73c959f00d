// Package entity defines the domain model shared by every backend client and
// by the execution engine.
//
// # Entities
//
// Every object managed by the backend is an Entity: a project, a function, a
// task, a run, an artifact, a dataitem, a model, a workflow or a secret. The
// entity Type fixes the family, Kind selects the schema variant inside the
// family, and ID identifies exactly one version.
//
// Versioned types (functions, artifacts, dataitems, models, workflows,
// secrets) may hold many versions sharing the same name; the most recently
// created one is the "latest". Tasks and runs are unversioned and are only
// addressed by id. Projects are base-scoped: they live outside any project.
//
// # Keys
//
// An entity version is addressed by a canonical key:
//
//	store://<project>/<entity_type>/<kind>/<name>:<id>
//	store://<project>
//
// BuildKey and ParseKey are inverse operations.
//
// # Run states
//
// Runs move through CREATED -> BUILT -> RUNNING -> COMPLETED | ERROR | STOPPED.
// ValidTransition encodes the allowed moves for locally executed runs.
package entity
