// Package client implements the backend contract every entity operation goes
// through.
//
// Two implementations share one addressing scheme and one error taxonomy:
//
//   - RemoteClient talks to the REST backend. It attaches basic or bearer
//     credentials, rejects unsupported API levels, refreshes an expired
//     OAuth2 token once per call and follows paginated list responses.
//   - LocalClient keeps objects in memory. It tracks the latest version of
//     every name, cascades deletes and projects child entities into a
//     project when it is read.
//
// Paths are built with BaseAPI, ContextAPI and ActionAPI and decoded with
// ParseAPI. Failures are always *BackendError values; branch on them with
// errors.Is against the Err* sentinels or with the Is* helpers.
//
// LocalClient is not safe for concurrent use.
package client
