// Package stores provides the object-storage plugins used to move artifact
// payloads. A Store is chosen by URI scheme through a Registry; the
// filesystem Store serves "file" URIs and plain paths from a go-billy
// filesystem, the host one by default.
package stores
