// Package api provides HTTP handlers for the vulneromics server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vulneromics/server/internal/abc"
	"github.com/vulneromics/server/internal/data/tabular"
	"github.com/vulneromics/server/internal/dataset"
	"github.com/vulneromics/server/internal/service"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Registry    *DatasetRegistry
	CORSOrigins []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Global datasets endpoint (not dataset-scoped)
	r.Get("/api/datasets", datasetsHandler(cfg.Registry))

	// Dataset-scoped routes: /d/{dataset}/...
	r.Route("/d/{dataset}", func(r chi.Router) {
		r.Use(datasetMiddleware(cfg.Registry))

		r.Route("/api", func(r chi.Router) {
			r.Get("/manifest", manifestHandler)
			r.Get("/columns", columnsHandler)
			r.Get("/genes", genesHandler)
			r.Get("/options", optionsHandler)
			r.Get("/cells", cellsHandler)
			r.Post("/cells", cellsPostHandler)
			r.Get("/summary", summaryHandler)
			r.Post("/summary", summaryPostHandler)
			r.Get("/stats", statsHandler)
		})
	})

	return r
}

// Context key for dataset explorer
type ctxKey string

const datasetExplorerKey ctxKey = "datasetExplorer"

// datasetMiddleware resolves the dataset from URL and injects its
// explorer into context.
func datasetMiddleware(registry *DatasetRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			datasetID := chi.URLParam(r, "dataset")
			e := registry.Get(datasetID)
			if e == nil {
				http.Error(w, "dataset not found: "+datasetID, http.StatusNotFound)
				return
			}
			ctx := context.WithValue(r.Context(), datasetExplorerKey, e)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getExplorer(r *http.Request) *service.Explorer {
	if e, ok := r.Context().Value(datasetExplorerKey).(*service.Explorer); ok {
		return e
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeError maps the load-error taxonomy to HTTP statuses: unresolved
// paths are 404, schema and format problems are 400, the rest 500.
func writeError(w http.ResponseWriter, err error) {
	var schemaErr *dataset.SchemaError
	switch {
	case errors.Is(err, abc.ErrPathNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, tabular.ErrUnsupportedFormat), errors.As(err, &schemaErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// datasetsHandler returns the list of available datasets.
func datasetsHandler(registry *DatasetRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"default":  registry.DefaultDatasetID(),
			"datasets": registry.Datasets(),
			"title":    registry.Title(),
		})
	}
}

func manifestHandler(w http.ResponseWriter, r *http.Request) {
	m, err := getExplorer(r).Manifest()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, m)
}

func columnsHandler(w http.ResponseWriter, r *http.Request) {
	columns, err := getExplorer(r).Columns()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"columns": columns})
}

func genesHandler(w http.ResponseWriter, r *http.Request) {
	e := getExplorer(r)
	opts, err := e.Options()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"panel":     e.Panel(),
		"available": opts.Genes,
	})
}

func optionsHandler(w http.ResponseWriter, r *http.Request) {
	opts, err := getExplorer(r).Options()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, opts)
}

func cellsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	spec, err := parseFilterSpec(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	dims, err := parseIntParam(q, "dims", 2)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	maxPoints, err := parseIntParam(q, "max_points", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	serveCells(w, r, spec, dims, q.Get("color_by"), maxPoints)
}

// cellsRequest is the POST body for /api/cells.
type cellsRequest struct {
	Filter    dataset.FilterSpec `json:"filter"`
	Dims      int                `json:"dims"`
	ColorBy   string             `json:"color_by"`
	MaxPoints int                `json:"max_points"`
}

func cellsPostHandler(w http.ResponseWriter, r *http.Request) {
	var req cellsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Dims == 0 {
		req.Dims = 2
	}
	serveCells(w, r, req.Filter, req.Dims, req.ColorBy, req.MaxPoints)
}

func serveCells(w http.ResponseWriter, r *http.Request, spec dataset.FilterSpec, dims int, colorBy string, maxPoints int) {
	if dims != 2 && dims != 3 {
		http.Error(w, fmt.Sprintf("dims must be 2 or 3, got %d", dims), http.StatusBadRequest)
		return
	}
	scatter, err := getExplorer(r).Cells(spec, dims, colorBy, maxPoints)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, scatter)
}

func summaryHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	spec, err := parseFilterSpec(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	groupBy := q.Get("group_by")
	genes := parseStringList(q, "genes")
	sorted := parseBoolParam(q, "sort")

	serveSummary(w, r, spec, groupBy, genes, sorted)
}

// summaryRequest is the POST body for /api/summary.
type summaryRequest struct {
	Filter  dataset.FilterSpec `json:"filter"`
	GroupBy string             `json:"group_by"`
	Genes   []string           `json:"genes"`
	Sort    bool               `json:"sort"`
}

func summaryPostHandler(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	serveSummary(w, r, req.Filter, req.GroupBy, req.Genes, req.Sort)
}

func serveSummary(w http.ResponseWriter, r *http.Request, spec dataset.FilterSpec, groupBy string, genes []string, sorted bool) {
	if groupBy == "" {
		groupBy = dataset.GroupByClass
	}

	result, err := getExplorer(r).Summary(spec, groupBy, genes, sorted)
	if err != nil {
		if errors.Is(err, abc.ErrPathNotFound) || isSchemaOrFormat(err) {
			writeError(w, err)
			return
		}
		// Unknown group_by and similar parameter problems
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, result)
}

func isSchemaOrFormat(err error) bool {
	var schemaErr *dataset.SchemaError
	return errors.Is(err, tabular.ErrUnsupportedFormat) || errors.As(err, &schemaErr)
}

func statsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := getExplorer(r).Stats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, stats)
}
