package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/digitalhub/dhsdk/pkg/config"
	"github.com/digitalhub/dhsdk/pkg/telemetry"
)

// Client is the uniform CRUD contract over a backend. Objects travel as
// generic JSON maps; paths come from the builders in api.go.
type Client interface {
	// CreateObject persists obj at api. On a context path with an action
	// suffix it triggers that action instead.
	CreateObject(ctx context.Context, api string, obj map[string]any) (map[string]any, error)

	// ReadObject returns the object at api.
	ReadObject(ctx context.Context, api string) (map[string]any, error)

	// UpdateObject overwrites the object at api.
	UpdateObject(ctx context.Context, api string, obj map[string]any) (map[string]any, error)

	// DeleteObject removes the object at api. With a "name" param on a
	// collection path it removes every version of that name.
	DeleteObject(ctx context.Context, api string, params url.Values) (map[string]any, error)

	// ListObjects returns every object at api matching params, following
	// pagination to the end.
	ListObjects(ctx context.Context, api string, params url.Values) ([]map[string]any, error)

	// IsLocal reports whether the client is backed by process memory.
	IsLocal() bool
}

// Option configures a client.
type Option func(*options)

type options struct {
	tel         *telemetry.Telemetry
	httpClient  *http.Client
	projections *ProjectionRegistry
	tokenCache  *config.TokenCache
}

// WithTelemetry attaches logging, tracing and metrics.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(o *options) { o.tel = tel }
}

// WithHTTPClient replaces the HTTP client used by RemoteClient.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithProjectionRegistry sets the child types LocalClient projects into a
// project on read.
func WithProjectionRegistry(r *ProjectionRegistry) Option {
	return func(o *options) { o.projections = r }
}

// WithTokenCache overrides the token cache derived from the config.
func WithTokenCache(tc *config.TokenCache) Option {
	return func(o *options) { o.tokenCache = tc }
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	o.tel = telemetry.OrNop(o.tel)
	return o
}

// New returns a LocalClient when local is true, else a RemoteClient built
// from cfg.
func New(cfg *config.Config, local bool, opts ...Option) (Client, error) {
	if local {
		return NewLocalClient(opts...), nil
	}
	return NewRemoteClient(cfg, opts...)
}

// ListFirst returns the first object listed at api. ok is false when the
// list is empty.
func ListFirst(ctx context.Context, c Client, api string, params url.Values) (obj map[string]any, ok bool, err error) {
	objs, err := c.ListObjects(ctx, api, params)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list %s: %w", api, err)
	}
	if len(objs) == 0 {
		return nil, false, nil
	}
	return objs[0], true, nil
}
