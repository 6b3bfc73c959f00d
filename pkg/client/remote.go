package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/digitalhub/dhsdk/pkg/config"
	"github.com/digitalhub/dhsdk/pkg/telemetry"
)

// APILevelHeader carries the backend API level on every response.
const APILevelHeader = "X-Api-Level"

// DefaultPageSize is the page size requested by ListObjects when the caller
// does not set one.
const DefaultPageSize = 50

// RemoteClient implements Client over the backend REST API.
type RemoteClient struct {
	endpoint string
	http     *http.Client
	cache    *config.TokenCache
	tel      *telemetry.Telemetry
	log      *telemetry.Logger

	// mu guards cfg, which holds the credentials a refresh replaces.
	mu  sync.Mutex
	cfg config.Config
}

// NewRemoteClient creates a client for cfg.Endpoint. Tokens found in the
// token cache replace configured ones when cfg selects OAuth2.
func NewRemoteClient(cfg *config.Config, opts ...Option) (*RemoteClient, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("remote client requires an endpoint")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)

	c := &RemoteClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		http:     o.httpClient,
		cache:    o.tokenCache,
		tel:      o.tel,
		log:      o.tel.Logger.NewComponentLogger("remote-client"),
		cfg:      *cfg,
	}
	if c.cfg.Timeout == 0 {
		c.cfg.Timeout = config.DefaultTimeout
	}
	if c.cfg.APILevelMax == 0 {
		c.cfg.APILevelMin, c.cfg.APILevelMax = config.DefaultAPILevelMin, config.DefaultAPILevelMax
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.cfg.Timeout}
	}
	if c.cache == nil {
		c.cache = config.NewTokenCache(cfg.TokenCachePath)
	}

	if c.cfg.AuthMode() == config.AuthOAuth2 {
		tokens, ok, err := c.cache.Load()
		if err != nil {
			c.log.WithError(err).Warn("ignoring unreadable token cache")
		} else if ok && (tokens.Endpoint == "" || tokens.Endpoint == c.endpoint) {
			c.cfg.ApplyTokens(tokens)
		}
	}
	return c, nil
}

// IsLocal returns false.
func (c *RemoteClient) IsLocal() bool {
	return false
}

// CreateObject POSTs obj to api.
func (c *RemoteClient) CreateObject(ctx context.Context, api string, obj map[string]any) (map[string]any, error) {
	return c.object(ctx, http.MethodPost, api, nil, obj)
}

// ReadObject GETs api.
func (c *RemoteClient) ReadObject(ctx context.Context, api string) (map[string]any, error) {
	return c.object(ctx, http.MethodGet, api, nil, nil)
}

// UpdateObject PUTs obj to api.
func (c *RemoteClient) UpdateObject(ctx context.Context, api string, obj map[string]any) (map[string]any, error) {
	return c.object(ctx, http.MethodPut, api, nil, obj)
}

// DeleteObject DELETEs api. An empty response is reported as deleted.
func (c *RemoteClient) DeleteObject(ctx context.Context, api string, params url.Values) (map[string]any, error) {
	if _, err := c.object(ctx, http.MethodDelete, api, params, nil); err != nil {
		return nil, err
	}
	return map[string]any{"deleted": true}, nil
}

// ListObjects requests pages 0..totalPages-1 and concatenates their
// content. A bare JSON array is taken as the only page.
func (c *RemoteClient) ListObjects(ctx context.Context, api string, params url.Values) ([]map[string]any, error) {
	query := url.Values{}
	for k, v := range params {
		query[k] = append([]string(nil), v...)
	}
	if query.Get("size") == "" {
		query.Set("size", strconv.Itoa(DefaultPageSize))
	}

	var out []map[string]any
	for page := 0; ; page++ {
		query.Set("page", strconv.Itoa(page))
		body, err := c.call(ctx, http.MethodGet, api, query, nil)
		if err != nil {
			return nil, err
		}

		switch v := body.(type) {
		case []any:
			items, err := toObjects(v)
			if err != nil {
				return nil, newError(KindInternal, "malformed list response", err).WithOp("list")
			}
			return append(out, items...), nil
		case map[string]any:
			content, _ := v["content"].([]any)
			if len(content) == 0 {
				return out, nil
			}
			items, err := toObjects(content)
			if err != nil {
				return nil, newError(KindInternal, "malformed list response", err).WithOp("list")
			}
			out = append(out, items...)

			total, _ := v["totalPages"].(float64)
			if page+1 >= int(total) {
				return out, nil
			}
		default:
			return nil, newError(KindInternal, fmt.Sprintf("unexpected list response of type %T", body), nil).WithOp("list")
		}
	}
}

func (c *RemoteClient) object(ctx context.Context, method, api string, params url.Values, obj map[string]any) (map[string]any, error) {
	body, err := c.call(ctx, method, api, params, obj)
	if err != nil {
		return nil, err
	}
	m, ok := body.(map[string]any)
	if !ok {
		return nil, newError(KindInternal, fmt.Sprintf("expected a JSON object, got %T", body), nil).WithOp(method)
	}
	return m, nil
}

// call performs one logical request: at most one token refresh and one retry.
func (c *RemoteClient) call(ctx context.Context, method, api string, params url.Values, obj map[string]any) (any, error) {
	var payload []byte
	if obj != nil {
		var err error
		payload, err = json.Marshal(obj)
		if err != nil {
			return nil, newError(KindInternal, "failed to encode request body", err).WithOp(method)
		}
	}

	body, status, err := c.do(ctx, method, api, params, payload)
	if status == http.StatusUnauthorized && IsAuthExpired(err) && c.canRefresh() {
		if rerr := c.refreshToken(ctx); rerr != nil {
			return nil, newError(KindAuthExpired, "token refresh failed", rerr).WithOp(method).WithStatus(status)
		}
		body, _, err = c.do(ctx, method, api, params, payload)
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

// do issues a single HTTP request and maps the response.
func (c *RemoteClient) do(ctx context.Context, method, api string, params url.Values, payload []byte) (any, int, error) {
	ctx, span := c.tel.Tracer.StartRequestSpan(ctx, method, api)
	defer span.End()
	timer := telemetry.NewTimer()

	target := c.endpoint + api
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(api, "?") {
			sep = "&"
		}
		target += sep + params.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, 0, newError(KindInternal, "failed to build request", err).WithOp(method)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		c.tel.Metrics.RecordRequest(method, 0, timer.Duration())
		berr := transportError(err).WithOp(method)
		telemetry.RecordError(span, berr)
		return nil, 0, berr
	}
	defer resp.Body.Close()

	c.tel.Metrics.RecordRequest(method, resp.StatusCode, timer.Duration())
	c.log.Zerolog().Debug().
		Str("method", method).
		Str("api", api).
		Int("status", resp.StatusCode).
		Dur("duration", timer.Duration()).
		Msg("backend request")

	if err := c.checkAPILevel(resp.Header.Get(APILevelHeader)); err != nil {
		berr := err.WithOp(method).WithStatus(resp.StatusCode)
		telemetry.RecordError(span, berr)
		return nil, resp.StatusCode, berr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		berr := transportError(err).WithOp(method).WithStatus(resp.StatusCode)
		telemetry.RecordError(span, berr)
		return nil, resp.StatusCode, berr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		berr := statusError(resp.StatusCode, data).WithOp(method)
		telemetry.RecordError(span, berr)
		return nil, resp.StatusCode, berr
	}

	if len(bytes.TrimSpace(data)) == 0 {
		telemetry.RecordSuccess(span)
		return map[string]any{}, resp.StatusCode, nil
	}
	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		berr := newError(KindInternal, "malformed JSON response", err).WithOp(method).WithStatus(resp.StatusCode)
		telemetry.RecordError(span, berr)
		return nil, resp.StatusCode, berr
	}
	telemetry.RecordSuccess(span)
	return body, resp.StatusCode, nil
}

func (c *RemoteClient) authorize(req *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.cfg.AuthMode() {
	case config.AuthOAuth2:
		if c.cfg.AccessToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
		}
	case config.AuthBasic:
		req.SetBasicAuth(c.cfg.User, c.cfg.Password)
	}
}

// checkAPILevel rejects responses whose API level header is present and
// outside the configured range, whatever their status.
func (c *RemoteClient) checkAPILevel(header string) *BackendError {
	if header == "" {
		return nil
	}
	level, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil {
		return newError(KindIncompatible, fmt.Sprintf("unreadable API level %q", header), err)
	}
	if level < c.cfg.APILevelMin || level > c.cfg.APILevelMax {
		return newError(KindIncompatible,
			fmt.Sprintf("backend API level %d is outside the supported range [%d,%d]",
				level, c.cfg.APILevelMin, c.cfg.APILevelMax), nil)
	}
	return nil
}

func statusError(status int, body []byte) *BackendError {
	msg := http.StatusText(status)
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			msg = payload.Message
		} else if payload.Error != "" {
			msg = payload.Error
		}
	}

	kind := KindUnavailable
	switch status {
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusConflict:
		kind = KindConflict
	case http.StatusUnauthorized:
		kind = KindAuthExpired
	}
	return newError(kind, msg, nil).WithStatus(status)
}

func transportError(err error) *BackendError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return newError(KindUnavailable, "backend request timed out", err)
	}
	return newError(KindUnavailable, "unable to connect to backend", err)
}

func toObjects(items []any) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d is %T, not an object", i, item)
		}
		out = append(out, m)
	}
	return out, nil
}
