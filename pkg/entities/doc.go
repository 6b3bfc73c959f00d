// Package entities is the entity-level layer over a client.Client.
//
// A Store creates, reads, lists, updates and deletes entities by key or by
// name, refreshes and saves them in place, exports them as YAML and logs
// artifacts through the object stores. The *FromParameters factories build
// new entities with fresh ids and metadata before they are created.
package entities
