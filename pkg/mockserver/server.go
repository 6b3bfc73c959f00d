package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/oklog/ulid/v2"

	"github.com/digitalhub/dhsdk/pkg/client"
	"github.com/digitalhub/dhsdk/pkg/config"
	"github.com/digitalhub/dhsdk/pkg/entity"
	"github.com/digitalhub/dhsdk/pkg/telemetry"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second

	// DefaultAPILevel is advertised when no level is configured.
	DefaultAPILevel = config.DefaultAPILevelMin

	defaultPageSize = 20
)

// Server wraps the chi router and the backing client.
type Server struct {
	router   *chi.Mux
	backend  client.Client
	apiLevel int
	metrics  *telemetry.Metrics
	log      *telemetry.Logger

	user, password string
	token          string
}

// Option configures a Server.
type Option func(*Server)

// WithAPILevel sets the value of the X-Api-Level header.
func WithAPILevel(level int) Option {
	return func(s *Server) { s.apiLevel = level }
}

// WithBasicAuth requires HTTP basic credentials on /api routes.
func WithBasicAuth(user, password string) Option {
	return func(s *Server) { s.user, s.password = user, password }
}

// WithBearerToken requires a bearer token on /api routes.
func WithBearerToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithMetrics exposes m on /metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the request logger.
func WithLogger(l *telemetry.Logger) Option {
	return func(s *Server) { s.log = l }
}

// NewServer creates a server answering from backend.
func NewServer(backend client.Client, opts ...Option) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		backend:  backend,
		apiLevel: DefaultAPILevel,
		log:      telemetry.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.NewComponentLogger("mockserver")

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.apiLevelMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", client.APILevelHeader},
		MaxAge:         300,
	}))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Route(client.APIPrefix, func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/-/{project}/{type}", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Post("/", s.handleCreate)
			r.Delete("/", s.handleDelete)
			r.Get("/{id}", s.handleRead)
			r.Put("/{id}", s.handleUpdate)
			r.Delete("/{id}", s.handleDelete)
			r.Post("/{id}/stop", s.handleStop)
			r.Get("/{id}/logs", s.handleLogs)
		})

		r.Get("/{type}", s.handleList)
		r.Post("/{type}", s.handleCreate)
		r.Get("/{type}/{name}", s.handleRead)
		r.Put("/{type}/{name}", s.handleUpdate)
		r.Delete("/{type}/{name}", s.handleDelete)
	})
}

// Router returns the chi router.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	api, ok := s.api(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	page, size, err := pagination(query)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	query.Del("page")
	query.Del("size")

	objs, err := s.backend.ListObjects(r.Context(), api, query)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	writePage(w, objs, page, size)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	api, ok := s.api(w, r)
	if !ok {
		return
	}
	obj, ok := decodeBody(w, r)
	if !ok {
		return
	}
	if param(r, "project") != "" {
		if _, ok := obj["id"].(string); !ok {
			obj["id"] = ulid.Make().String()
		}
	}

	res, err := s.backend.CreateObject(r.Context(), api, obj)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	api, ok := s.api(w, r)
	if !ok {
		return
	}
	res, err := s.backend.ReadObject(r.Context(), api)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	api, ok := s.api(w, r)
	if !ok {
		return
	}
	obj, ok := decodeBody(w, r)
	if !ok {
		return
	}
	res, err := s.backend.UpdateObject(r.Context(), api, obj)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	api, ok := s.api(w, r)
	if !ok {
		return
	}
	res, err := s.backend.DeleteObject(r.Context(), api, r.URL.Query())
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if entity.Type(param(r, "type")) != entity.TypeRun {
		writeError(w, http.StatusNotFound, "only runs can be stopped")
		return
	}
	api := client.ActionAPI(param(r, "project"), entity.TypeRun, param(r, "id"), "stop")
	res, err := s.backend.CreateObject(r.Context(), api, nil)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleLogs pages through status.logs of a run.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if entity.Type(param(r, "type")) != entity.TypeRun {
		writeError(w, http.StatusNotFound, "only runs have logs")
		return
	}
	page, size, err := pagination(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	api := client.ContextAPI(param(r, "project"), entity.TypeRun, param(r, "id"))
	run, err := s.backend.ReadObject(r.Context(), api)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	status, _ := run["status"].(map[string]any)
	raw, _ := status["logs"].([]any)
	logs := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case map[string]any:
			logs = append(logs, v)
		case string:
			logs = append(logs, map[string]any{"content": v})
		}
	}
	writePage(w, logs, page, size)
}

// param returns the unescaped route parameter key.
func param(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

// api rebuilds the backend path from the route parameters.
func (s *Server) api(w http.ResponseWriter, r *http.Request) (string, bool) {
	t := entity.Type(param(r, "type"))
	if err := t.Validate(); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	if project := param(r, "project"); project != "" {
		return client.ContextAPI(project, t, param(r, "id")), true
	}
	return client.BaseAPI(t, param(r, "name")), true
}

func (s *Server) writeBackendError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).Error("backend operation failed")
	}
	writeError(w, status, err.Error())
}

// StatusOf maps a backend error to the HTTP status the REST backend answers
// with.
func StatusOf(err error) int {
	switch client.KindOf(err) {
	case client.KindNotFound:
		return http.StatusNotFound
	case client.KindConflict:
		return http.StatusConflict
	case client.KindAuthExpired:
		return http.StatusUnauthorized
	}
	if entity.HasCode(err, entity.CodeMissingField) || entity.HasCode(err, entity.CodeInvalidKey) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func pagination(q url.Values) (page, size int, err error) {
	size = defaultPageSize
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 0 {
			return 0, 0, fmt.Errorf("invalid page %q", v)
		}
	}
	if v := q.Get("size"); v != "" {
		if size, err = strconv.Atoi(v); err != nil || size <= 0 {
			return 0, 0, fmt.Errorf("invalid size %q", v)
		}
	}
	return page, size, nil
}

func writePage(w http.ResponseWriter, objs []map[string]any, page, size int) {
	totalPages := (len(objs) + size - 1) / size
	start := page * size
	content := []map[string]any{}
	if start < len(objs) {
		end := min(start+size, len(objs))
		content = objs[start:end]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"content":       content,
		"totalPages":    totalPages,
		"totalElements": len(objs),
		"number":        page,
		"size":          size,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var obj map[string]any
	if err := json.NewDecoder(r.Body).Decode(&obj); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return nil, false
	}
	if obj == nil {
		obj = make(map[string]any)
	}
	return obj, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"message": msg})
}
