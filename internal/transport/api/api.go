// Package api defines the HTTP contract of the query service: wire types,
// the handler interface and a chi router that binds path and query
// parameters before calling the handlers.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ErrorResponseCode is a machine readable error kind.
type ErrorResponseCode string

const (
	ErrorResponseCodeBadRequest             ErrorResponseCode = "bad_request"
	ErrorResponseCodeUnauthorized           ErrorResponseCode = "unauthorized"
	ErrorResponseCodeInvalidArgs            ErrorResponseCode = "invalid_args"
	ErrorResponseCodeNotFound               ErrorResponseCode = "not_found"
	ErrorResponseCodeUnknownAlgorithm       ErrorResponseCode = "unknown_algorithm"
	ErrorResponseCodeUnknownField           ErrorResponseCode = "unknown_field"
	ErrorResponseCodeBackendUnavailable     ErrorResponseCode = "backend_unavailable"
	ErrorResponseCodeNotSupported           ErrorResponseCode = "not_supported"
	ErrorResponseCodeEmbeddingProviderError ErrorResponseCode = "embedding_provider_error"
	ErrorResponseCodeNotImplemented         ErrorResponseCode = "not_implemented"
	ErrorResponseCodeInternalError          ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// QueryRequest carries a content query and an optional facet selection.
// Selection keys are meta field names.
type QueryRequest struct {
	Args      json.RawMessage     `json:"args"`
	Selection map[string][]string `json:"selection,omitempty"`
}

// CompileResponse is the compiled search document.
type CompileResponse struct {
	Document any    `json:"document"`
	State    string `json:"facet_state"`
}

// FacetBucket is one facet value with its document count.
type FacetBucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// SearchResponse is a search result reduced to ids, totals and facets.
type SearchResponse struct {
	Total        int64                      `json:"total"`
	Ids          []string                   `json:"ids"`
	Aggregations map[string]json.RawMessage `json:"aggregations,omitempty"`
	Facets       map[string][]FacetBucket   `json:"facets,omitempty"`
}

// FacetDefinition describes one configured facet.
type FacetDefinition struct {
	Field          string `json:"field"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Label          string `json:"label,omitempty"`
	Path           string `json:"path"`
	BucketSize     int    `json:"bucket_size"`
	MaxValueLength int    `json:"max_value_length"`
}

// FacetListResponse lists the facets and how selections combine.
type FacetListResponse struct {
	MatchType    string            `json:"match_type"`
	FilterPrefix string            `json:"filter_prefix"`
	Facets       []FacetDefinition `json:"facets"`
}

// FacetValuesResponse lists the distinct values of one facet.
type FacetValuesResponse struct {
	Field  string   `json:"field"`
	Values []string `json:"values"`
}

// InvalidateFacetCacheParamsScope selects what a cache invalidation clears.
type InvalidateFacetCacheParamsScope string

const (
	// InvalidateFacetCacheParamsScopeFields clears the known facet fields.
	InvalidateFacetCacheParamsScopeFields InvalidateFacetCacheParamsScope = "fields"
	// InvalidateFacetCacheParamsScopeAll clears every cached facet entry.
	InvalidateFacetCacheParamsScopeAll InvalidateFacetCacheParamsScope = "all"
)

// InvalidateFacetCacheParams are the query parameters of InvalidateFacetCache.
type InvalidateFacetCacheParams struct {
	Scope *InvalidateFacetCacheParamsScope `form:"scope,omitempty" json:"scope,omitempty"`
}

// EventRequest reports a content change.
type EventRequest struct {
	Kind        string  `json:"kind"`
	ContentType string  `json:"content_type"`
	Ids         []int64 `json:"ids,omitempty"`
}

// EventResponse acknowledges an accepted event.
type EventResponse struct {
	Id string `json:"id"`
}

// ContentResponse acknowledges a single write.
type ContentResponse struct {
	Id     int64  `json:"id"`
	Status string `json:"status"`
}

// BulkItem is one document of a bulk write.
type BulkItem struct {
	Id     int64          `json:"id"`
	Source map[string]any `json:"source"`
}

// BulkRequest is a batch of documents.
type BulkRequest struct {
	Items []BulkItem `json:"items"`
}

// BulkResultItem is the outcome of one bulk item.
type BulkResultItem struct {
	Id     int64          `json:"id"`
	Status string         `json:"status"`
	Error  *ErrorResponse `json:"error,omitempty"`
}

// BulkResponse lists per-item outcomes in request order.
type BulkResponse struct {
	Items     []BulkResultItem `json:"items"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

// GetIndexVersionParams are the query parameters of GetIndexVersion.
type GetIndexVersionParams struct {
	Refresh *bool `form:"refresh,omitempty" json:"refresh,omitempty"`
}

// IndexVersionResponse reports the mapping version of the content index.
type IndexVersionResponse struct {
	Index   string `json:"index"`
	Version string `json:"version"`
}

// HealthResponse reports component health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ServerInterface is implemented by the HTTP handlers.
type ServerInterface interface {
	// (POST /v1/query/compile)
	CompileQuery(w http.ResponseWriter, r *http.Request)
	// (POST /v1/query/search)
	SearchQuery(w http.ResponseWriter, r *http.Request)
	// (GET /v1/facets)
	ListFacets(w http.ResponseWriter, r *http.Request)
	// (DELETE /v1/facets/cache)
	InvalidateFacetCache(w http.ResponseWriter, r *http.Request, params InvalidateFacetCacheParams)
	// (GET /v1/facets/{field}/values)
	GetFacetValues(w http.ResponseWriter, r *http.Request, field string)
	// (DELETE /v1/facets/{field}/cache)
	InvalidateFacetField(w http.ResponseWriter, r *http.Request, field string)
	// (POST /v1/events)
	PublishEvent(w http.ResponseWriter, r *http.Request)
	// (POST /v1/content/_bulk)
	BulkContent(w http.ResponseWriter, r *http.Request)
	// (PUT /v1/content/{id})
	IndexContent(w http.ResponseWriter, r *http.Request, id int64)
	// (DELETE /v1/content/{id})
	DeleteContent(w http.ResponseWriter, r *http.Request, id int64)
	// (GET /v1/index/version)
	GetIndexVersion(w http.ResponseWriter, r *http.Request, params GetIndexVersionParams)
	// (GET /health)
	HealthCheck(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	Metrics(w http.ResponseWriter, r *http.Request)
}

// Unimplemented answers every operation with 501. Embed it to implement
// a subset of ServerInterface.
type Unimplemented struct{}

func (Unimplemented) CompileQuery(w http.ResponseWriter, _ *http.Request) { notImplemented(w) }
func (Unimplemented) SearchQuery(w http.ResponseWriter, _ *http.Request)  { notImplemented(w) }
func (Unimplemented) ListFacets(w http.ResponseWriter, _ *http.Request)   { notImplemented(w) }
func (Unimplemented) InvalidateFacetCache(w http.ResponseWriter, _ *http.Request, _ InvalidateFacetCacheParams) {
	notImplemented(w)
}
func (Unimplemented) GetFacetValues(w http.ResponseWriter, _ *http.Request, _ string) { notImplemented(w) }
func (Unimplemented) InvalidateFacetField(w http.ResponseWriter, _ *http.Request, _ string) {
	notImplemented(w)
}
func (Unimplemented) PublishEvent(w http.ResponseWriter, _ *http.Request)              { notImplemented(w) }
func (Unimplemented) BulkContent(w http.ResponseWriter, _ *http.Request)               { notImplemented(w) }
func (Unimplemented) IndexContent(w http.ResponseWriter, _ *http.Request, _ int64)     { notImplemented(w) }
func (Unimplemented) DeleteContent(w http.ResponseWriter, _ *http.Request, _ int64)    { notImplemented(w) }
func (Unimplemented) HealthCheck(w http.ResponseWriter, _ *http.Request)               { notImplemented(w) }
func (Unimplemented) Metrics(w http.ResponseWriter, _ *http.Request)                   { notImplemented(w) }
func (Unimplemented) GetIndexVersion(w http.ResponseWriter, _ *http.Request, _ GetIndexVersionParams) {
	notImplemented(w)
}

func notImplemented(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotImplemented)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Code: ErrorResponseCodeNotImplemented, Message: "not implemented"})
}

// InvalidParamFormatError reports a parameter that could not be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// MiddlewareFunc wraps a single operation handler.
type MiddlewareFunc func(http.Handler) http.Handler

// ServerInterfaceWrapper binds parameters and dispatches to the handler.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, h http.Handler) {
	for _, middleware := range siw.HandlerMiddlewares {
		h = middleware(h)
	}
	h.ServeHTTP(w, r)
}

func (siw *ServerInterfaceWrapper) CompileQuery(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.CompileQuery))
}

func (siw *ServerInterfaceWrapper) SearchQuery(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.SearchQuery))
}

func (siw *ServerInterfaceWrapper) ListFacets(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.ListFacets))
}

func (siw *ServerInterfaceWrapper) InvalidateFacetCache(w http.ResponseWriter, r *http.Request) {
	var params InvalidateFacetCacheParams
	err := runtime.BindQueryParameter("form", true, false, "scope", r.URL.Query(), &params.Scope)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "scope", Err: err})
		return
	}
	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.InvalidateFacetCache(w, r, params)
	}))
}

func (siw *ServerInterfaceWrapper) GetFacetValues(w http.ResponseWriter, r *http.Request) {
	field, ok := siw.bindField(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetFacetValues(w, r, field)
	}))
}

func (siw *ServerInterfaceWrapper) InvalidateFacetField(w http.ResponseWriter, r *http.Request) {
	field, ok := siw.bindField(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.InvalidateFacetField(w, r, field)
	}))
}

func (siw *ServerInterfaceWrapper) PublishEvent(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.PublishEvent))
}

func (siw *ServerInterfaceWrapper) BulkContent(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.BulkContent))
}

func (siw *ServerInterfaceWrapper) IndexContent(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.bindID(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.IndexContent(w, r, id)
	}))
}

func (siw *ServerInterfaceWrapper) DeleteContent(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.bindID(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DeleteContent(w, r, id)
	}))
}

func (siw *ServerInterfaceWrapper) GetIndexVersion(w http.ResponseWriter, r *http.Request) {
	var params GetIndexVersionParams
	err := runtime.BindQueryParameter("form", true, false, "refresh", r.URL.Query(), &params.Refresh)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "refresh", Err: err})
		return
	}
	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetIndexVersion(w, r, params)
	}))
}

func (siw *ServerInterfaceWrapper) HealthCheck(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.HealthCheck))
}

func (siw *ServerInterfaceWrapper) Metrics(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.Metrics))
}

func (siw *ServerInterfaceWrapper) bindField(w http.ResponseWriter, r *http.Request) (string, bool) {
	var field string
	err := runtime.BindStyledParameterWithOptions("simple", "field", chi.URLParam(r, "field"), &field,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "field", Err: err})
		return "", false
	}
	return field, true
}

func (siw *ServerInterfaceWrapper) bindID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "id", Err: err})
		return 0, false
	}
	return id, true
}

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler mounts si on a new chi router.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerWithOptions mounts si on options.BaseRouter, or a new router.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}
	base := options.BaseURL

	r.Group(func(r chi.Router) {
		r.Post(base+"/v1/query/compile", wrapper.CompileQuery)
		r.Post(base+"/v1/query/search", wrapper.SearchQuery)
		r.Get(base+"/v1/facets", wrapper.ListFacets)
		r.Delete(base+"/v1/facets/cache", wrapper.InvalidateFacetCache)
		r.Get(base+"/v1/facets/{field}/values", wrapper.GetFacetValues)
		r.Delete(base+"/v1/facets/{field}/cache", wrapper.InvalidateFacetField)
		r.Post(base+"/v1/events", wrapper.PublishEvent)
		r.Post(base+"/v1/content/_bulk", wrapper.BulkContent)
		r.Put(base+"/v1/content/{id}", wrapper.IndexContent)
		r.Delete(base+"/v1/content/{id}", wrapper.DeleteContent)
		r.Get(base+"/v1/index/version", wrapper.GetIndexVersion)
		r.Get(base+"/health", wrapper.HealthCheck)
		r.Get(base+"/metrics", wrapper.Metrics)
	})
	return r
}
