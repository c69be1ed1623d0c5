package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/alaa-alshamy/ElasticPress/internal/db"
	"github.com/alaa-alshamy/ElasticPress/internal/domain"
	domcontent "github.com/alaa-alshamy/ElasticPress/internal/domain/content"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/event"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/query"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
	"github.com/alaa-alshamy/ElasticPress/internal/transport/api"
	"github.com/alaa-alshamy/ElasticPress/internal/usecase/facet"
	healthuc "github.com/alaa-alshamy/ElasticPress/internal/usecase/health"
	searchuc "github.com/alaa-alshamy/ElasticPress/internal/usecase/search"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// QueryService compiles and runs content queries.
type QueryService interface {
	Compile(ctx context.Context, args *query.Args, sel facet.Selection) (dsl.Document, error)
	Search(ctx context.Context, args *query.Args, sel facet.Selection) (*searchuc.Result, error)
}

// FacetService exposes the meta facet engine.
type FacetService interface {
	Settings() facet.Settings
	Definitions(ctx context.Context) []facet.Definition
	Prepare(ctx context.Context, args *query.Args, sel facet.Selection) facet.Prepared
	Values(ctx context.Context, field string) ([]string, error)
	Invalidate(ctx context.Context, fields ...string)
	InvalidateAll(ctx context.Context)
	Purge(ctx context.Context)
}

// ContentService writes content to the index.
type ContentService interface {
	Index(ctx context.Context, doc domcontent.Document) error
	Delete(ctx context.Context, id int64) error
	Bulk(ctx context.Context, docs []domcontent.Document) []domcontent.Result
}

// EventPublisher accepts content change events.
type EventPublisher interface {
	Publish(ctx context.Context, e event.Event) error
}

// VersionResolver reports the mapping version of an index.
type VersionResolver interface {
	Version(ctx context.Context, index string) (string, error)
	Invalidate(ctx context.Context) error
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Dependencies are the services behind the HTTP API. Content, Events and
// Versions may be nil; their routes then answer 501.
type Dependencies struct {
	Query    QueryService
	Facets   FacetService
	Content  ContentService
	Events   EventPublisher
	Versions VersionResolver
	Health   HealthChecker
	// Index is the content index reported by GetIndexVersion.
	Index string
}

// Server implements api.ServerInterface.
type Server struct {
	api.Unimplemented
	deps          Dependencies
	logger        *zap.Logger
	errorHandlers []errorHandler
}

var _ api.ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server.
func NewServer(deps Dependencies, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{deps: deps, logger: logger}
	s.errorHandlers = []errorHandler{
		algorithmHandler,
		sentinelHandler(domain.ErrInvalidArgs, http.StatusBadRequest, api.ErrorResponseCodeInvalidArgs),
		sentinelHandler(domain.ErrUnknownField, http.StatusNotFound, api.ErrorResponseCodeUnknownField),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, api.ErrorResponseCodeNotFound),
		sentinelHandler(domain.ErrBackendUnavailable,
			http.StatusServiceUnavailable, api.ErrorResponseCodeBackendUnavailable),
		sentinelHandler(db.ErrUnavailable, http.StatusServiceUnavailable, api.ErrorResponseCodeBackendUnavailable),
		sentinelHandler(domain.ErrNotSupported, http.StatusNotImplemented, api.ErrorResponseCodeNotSupported),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, api.ErrorResponseCodeEmbeddingProviderError),
	}
	return s
}

// CompileQuery handles POST /v1/query/compile.
func (s *Server) CompileQuery(w http.ResponseWriter, r *http.Request) {
	args, sel, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}
	doc, err := s.deps.Query.Compile(r.Context(), args, sel)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	state := facet.Idle
	if s.deps.Facets != nil {
		state = s.deps.Facets.Prepare(r.Context(), args, sel).State
	}
	writeJSON(w, http.StatusOK, api.CompileResponse{Document: doc, State: state.String()})
}

// SearchQuery handles POST /v1/query/search.
func (s *Server) SearchQuery(w http.ResponseWriter, r *http.Request) {
	args, sel, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}
	res, err := s.deps.Query.Search(r.Context(), args, sel)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResultToAPI(res))
}

// ListFacets handles GET /v1/facets.
func (s *Server) ListFacets(w http.ResponseWriter, r *http.Request) {
	if s.deps.Facets == nil {
		writeJSON(w, http.StatusOK, api.FacetListResponse{Facets: []api.FacetDefinition{}})
		return
	}
	settings := s.deps.Facets.Settings()
	defs := s.deps.Facets.Definitions(r.Context())
	out := make([]api.FacetDefinition, len(defs))
	for i, d := range defs {
		out[i] = definitionToAPI(d)
	}
	writeJSON(w, http.StatusOK, api.FacetListResponse{
		MatchType:    string(settings.MatchType),
		FilterPrefix: settings.FilterPrefix,
		Facets:       out,
	})
}

// GetFacetValues handles GET /v1/facets/{field}/values.
func (s *Server) GetFacetValues(w http.ResponseWriter, r *http.Request, field string) {
	if s.deps.Facets == nil {
		s.handleDomainError(w, domain.ErrUnknownField)
		return
	}
	values, err := s.deps.Facets.Values(r.Context(), field)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FacetValuesResponse{Field: field, Values: values})
}

// InvalidateFacetCache handles DELETE /v1/facets/cache.
func (s *Server) InvalidateFacetCache(w http.ResponseWriter, r *http.Request, params api.InvalidateFacetCacheParams) {
	if s.deps.Facets == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	scope := api.InvalidateFacetCacheParamsScopeFields
	if params.Scope != nil {
		scope = *params.Scope
	}
	switch scope {
	case api.InvalidateFacetCacheParamsScopeFields:
		s.deps.Facets.InvalidateAll(r.Context())
	case api.InvalidateFacetCacheParamsScopeAll:
		s.deps.Facets.Purge(r.Context())
	default:
		writeError(w, http.StatusBadRequest, api.ErrorResponseCodeBadRequest, `scope must be "fields" or "all"`)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InvalidateFacetField handles DELETE /v1/facets/{field}/cache.
func (s *Server) InvalidateFacetField(w http.ResponseWriter, r *http.Request, field string) {
	if s.deps.Facets != nil {
		s.deps.Facets.Invalidate(r.Context(), field)
	}
	w.WriteHeader(http.StatusNoContent)
}

// PublishEvent handles POST /v1/events.
func (s *Server) PublishEvent(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		s.Unimplemented.PublishEvent(w, r)
		return
	}
	var req api.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	kind := event.Kind(req.Kind)
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, api.ErrorResponseCodeBadRequest, "unknown event kind "+req.Kind)
		return
	}
	if req.ContentType == "" {
		writeError(w, http.StatusBadRequest, api.ErrorResponseCodeBadRequest, "content_type is required")
		return
	}
	e := event.New(kind, req.ContentType, req.Ids...)
	if err := s.deps.Events.Publish(r.Context(), e); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, api.EventResponse{Id: e.ID})
}

// IndexContent handles PUT /v1/content/{id}.
func (s *Server) IndexContent(w http.ResponseWriter, r *http.Request, id int64) {
	if s.deps.Content == nil {
		s.Unimplemented.IndexContent(w, r, id)
		return
	}
	var source map[string]any
	if err := json.NewDecoder(r.Body).Decode(&source); err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	doc, err := domcontent.New(id, source)
	if err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorResponseCodeInvalidArgs, err.Error())
		return
	}
	if err := s.deps.Content.Index(r.Context(), doc); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.ContentResponse{Id: id, Status: string(domcontent.StatusOK)})
}

// DeleteContent handles DELETE /v1/content/{id}.
func (s *Server) DeleteContent(w http.ResponseWriter, r *http.Request, id int64) {
	if s.deps.Content == nil {
		s.Unimplemented.DeleteContent(w, r, id)
		return
	}
	if err := s.deps.Content.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkContent handles POST /v1/content/_bulk.
func (s *Server) BulkContent(w http.ResponseWriter, r *http.Request) {
	if s.deps.Content == nil {
		s.Unimplemented.BulkContent(w, r)
		return
	}
	var req api.BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, api.ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, api.ErrorResponseCodeBadRequest, "items must not be empty")
		return
	}

	docs := make([]domcontent.Document, 0, len(req.Items))
	for _, item := range req.Items {
		doc, err := domcontent.New(item.Id, item.Source)
		if err != nil {
			writeError(w, http.StatusBadRequest, api.ErrorResponseCodeInvalidArgs, err.Error())
			return
		}
		docs = append(docs, doc)
	}

	results := s.deps.Content.Bulk(r.Context(), docs)
	resp := api.BulkResponse{Items: make([]api.BulkResultItem, len(results))}
	for i, res := range results {
		resp.Items[i] = s.bulkResultToAPI(res)
		if res.Status() == domcontent.StatusOK {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetIndexVersion handles GET /v1/index/version.
func (s *Server) GetIndexVersion(w http.ResponseWriter, r *http.Request, params api.GetIndexVersionParams) {
	if s.deps.Versions == nil {
		s.Unimplemented.GetIndexVersion(w, r, params)
		return
	}
	if params.Refresh != nil && *params.Refresh {
		if err := s.deps.Versions.Invalidate(r.Context()); err != nil {
			s.logger.Warn("Failed to invalidate mapping version", zap.Error(err))
		}
	}
	v, err := s.deps.Versions.Version(r.Context(), s.deps.Index)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.IndexVersionResponse{Index: s.deps.Index, Version: v})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.deps.Health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, api.HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decodeQuery reads the request body. The facet selection is taken from
// the URL query string, then overridden per field by the body.
func (s *Server) decodeQuery(w http.ResponseWriter, r *http.Request) (*query.Args, facet.Selection, bool) {
	var req api.QueryRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, api.ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
			return nil, nil, false
		}
	}

	args := &query.Args{}
	if len(req.Args) > 0 && string(req.Args) != "null" {
		var err error
		if args, err = query.Decode(req.Args); err != nil {
			s.handleDomainError(w, err)
			return nil, nil, false
		}
	}

	prefix := facet.DefaultFilterPrefix
	if s.deps.Facets != nil {
		prefix = s.deps.Facets.Settings().FilterPrefix
	}
	sel := facet.ParseSelection(r.URL.Query(), prefix)
	for field, values := range req.Selection {
		sel[field] = values
	}
	return args, sel, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code api.ErrorResponseCode, message string) {
	writeJSON(w, status, api.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidArgs,
		domain.ErrUnknownField,
		domain.ErrNotFound,
		domain.ErrBackendUnavailable,
		db.ErrUnavailable,
		domain.ErrNotSupported,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code api.ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// algorithmHandler reports the requested algorithm name back to the client.
func algorithmHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, domain.ErrUnknownAlgorithm) {
		return false
	}
	msg := domain.ErrUnknownAlgorithm.Error()
	var ae *domain.AlgorithmError
	if errors.As(err, &ae) {
		msg = ae.Error()
	}
	writeError(w, http.StatusBadRequest, api.ErrorResponseCodeUnknownAlgorithm, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, api.ErrorResponseCodeInternalError, "internal error")
}

func (s *Server) bulkResultToAPI(res domcontent.Result) api.BulkResultItem {
	item := api.BulkResultItem{Id: res.ID(), Status: string(res.Status())}
	if err := res.Err(); err != nil {
		item.Error = &api.ErrorResponse{Code: errorCode(err), Message: safeDomainMessage(err)}
	}
	return item
}

func errorCode(err error) api.ErrorResponseCode {
	switch {
	case errors.Is(err, domain.ErrInvalidArgs):
		return api.ErrorResponseCodeInvalidArgs
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		return api.ErrorResponseCodeEmbeddingProviderError
	case errors.Is(err, domain.ErrBackendUnavailable), errors.Is(err, db.ErrUnavailable):
		return api.ErrorResponseCodeBackendUnavailable
	case errors.Is(err, domain.ErrNotFound):
		return api.ErrorResponseCodeNotFound
	}
	return api.ErrorResponseCodeInternalError
}

func definitionToAPI(d facet.Definition) api.FacetDefinition {
	return api.FacetDefinition{
		Field:          d.Field,
		Name:           d.Name,
		Type:           d.Type,
		Label:          d.Label,
		Path:           d.Path,
		BucketSize:     d.BucketSize,
		MaxValueLength: d.MaxValueLength,
	}
}

func searchResultToAPI(res *searchuc.Result) api.SearchResponse {
	out := api.SearchResponse{
		Total:        res.Total,
		Ids:          res.IDs,
		Aggregations: res.Aggregations,
	}
	if out.Ids == nil {
		out.Ids = []string{}
	}
	if len(res.Facets) > 0 {
		out.Facets = make(map[string][]api.FacetBucket, len(res.Facets))
		for field, buckets := range res.Facets {
			items := make([]api.FacetBucket, len(buckets))
			for i, b := range buckets {
				items[i] = api.FacetBucket{Key: b.Key, Count: b.Count}
			}
			out.Facets[field] = items
		}
	}
	return out
}
