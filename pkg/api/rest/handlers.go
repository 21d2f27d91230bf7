// Package rest exposes the clustering engine over HTTP: one handler per
// driver mode (clustering, hierarchic, scan, mapping, dtrajs), plus
// dataset and health endpoints.
package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rinikerlab/cnncluster/internal/hierarchy"
	"github.com/rinikerlab/cnncluster/internal/runner"
	"github.com/rinikerlab/cnncluster/pkg/config"
	"github.com/rinikerlab/cnncluster/pkg/dataset"
	"github.com/rinikerlab/cnncluster/pkg/jsonpoints"
)

// Handler wraps a Runner and provides HTTP handlers for every clustering
// operation.
type Handler struct {
	runner *runner.Runner
}

// NewHandler creates a new REST API handler over the given runner.
func NewHandler(r *runner.Runner) *Handler {
	return &Handler{runner: r}
}

// HealthCheck handles GET /v1/health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// GetStats handles GET /v1/stats, returning cache and dataset statistics.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	datasets := h.runner.Registry.List()
	writeJSON(w, map[string]interface{}{
		"cache":    h.runner.Cache.Stats(),
		"datasets": len(datasets),
	}, http.StatusOK)
}

// CreateDatasetRequest is the body for POST /v1/datasets.
type CreateDatasetRequest struct {
	Name          string `json:"name"`
	MaxPoints     int64  `json:"max_points"`
	MaxDimensions int    `json:"max_dimensions"`
	MaxRuns       int64  `json:"max_runs"`
	RateLimitQPS  int    `json:"rate_limit_qps"`
}

// CreateDataset handles POST /v1/datasets.
func (h *Handler) CreateDataset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}

	quota := dataset.DefaultQuota()
	if req.MaxPoints != 0 {
		quota.MaxPoints = req.MaxPoints
	}
	if req.MaxDimensions != 0 {
		quota.MaxDimensions = req.MaxDimensions
	}
	if req.MaxRuns != 0 {
		quota.MaxRuns = req.MaxRuns
	}
	if req.RateLimitQPS != 0 {
		quota.RateLimitQPS = req.RateLimitQPS
	}

	ds, err := h.runner.Registry.Create(req.Name, quota)
	if err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, ds, http.StatusCreated)
}

// GetDataset handles GET /v1/datasets/{name}.
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/v1/datasets/")
	ds, err := h.runner.Registry.Get(name)
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, ds, http.StatusOK)
}

// DeleteDataset handles DELETE /v1/datasets/{name}.
func (h *Handler) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/v1/datasets/")
	if err := h.runner.Registry.Delete(name); err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"deleted": name}, http.StatusOK)
}

// ListDatasets handles GET /v1/datasets.
func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.runner.Registry.List(), http.StatusOK)
}

// routeDatasetByName dispatches /v1/datasets/{name} by HTTP method.
func (h *Handler) routeDatasetByName(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.GetDataset(w, r)
	case http.MethodDelete:
		h.DeleteDataset(w, r)
	default:
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ClusterRequest is the body for POST /v1/cluster.
type ClusterRequest struct {
	Dataset string          `json:"dataset"`
	Points  json.RawMessage `json:"points"`
	Cut     float64         `json:"cut"`
	Sim     uint            `json:"sim"`
	Nkeep   int             `json:"nkeep"`
	UseCNN  bool            `json:"cnn"`
	Mutual  bool            `json:"mutual"`
}

// Cluster handles POST /v1/cluster, running one seed-and-expand pass. The
// points field is decoded with jsonpoints rather than encoding/json,
// since it dominates request size for any dataset worth clustering.
func (h *Handler) Cluster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ClusterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	points, err := jsonpoints.Parse(req.Points)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(points) == 0 {
		writeError(w, "points must not be empty", http.StatusBadRequest)
		return
	}

	clusters, err := h.runner.ClusterOnce(req.Dataset, points, config.ClusterConfig{
		Cut: req.Cut, Sim: req.Sim, Nkeep: req.Nkeep, UseCNN: req.UseCNN, Mutual: req.Mutual,
	})
	if err != nil {
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	writeJSON(w, map[string]interface{}{"clusters": clusters}, http.StatusOK)
}

// BatchClusterResult pairs a batch item's dataset name with either its
// resulting clusters or an error message.
type BatchClusterResult struct {
	Dataset  string     `json:"dataset"`
	Clusters [][]uint32 `json:"clusters,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// BatchCluster handles POST /v1/batch/cluster: a list of independent
// ClusterRequest items run concurrently, one goroutine per item, with no
// limit on how many run at once.
func (h *Handler) BatchCluster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var reqs []ClusterRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	results := make([]BatchClusterResult, len(reqs))
	var g errgroup.Group
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			points, err := jsonpoints.Parse(req.Points)
			if err != nil {
				results[i] = BatchClusterResult{Dataset: req.Dataset, Error: err.Error()}
				return nil
			}
			clusters, err := h.runner.ClusterOnce(req.Dataset, points, config.ClusterConfig{
				Cut: req.Cut, Sim: req.Sim, Nkeep: req.Nkeep, UseCNN: req.UseCNN, Mutual: req.Mutual,
			})
			if err != nil {
				results[i] = BatchClusterResult{Dataset: req.Dataset, Error: err.Error()}
				return nil
			}
			results[i] = BatchClusterResult{Dataset: req.Dataset, Clusters: clusters}
			return nil
		})
	}
	g.Wait()

	writeJSON(w, results, http.StatusOK)
}

// HierarchicRequest is the body for POST /v1/hierarchic.
type HierarchicRequest struct {
	Dataset string      `json:"dataset"`
	Points  [][]float32 `json:"points"`
	Base    [][]uint32  `json:"base"`
	Cut     float64     `json:"cut"`
	Sim     uint        `json:"sim"`
	DeltaFE float64     `json:"dfe"`
	NDims   uint        `json:"ndims"`
	Nkeep   int         `json:"nkeep"`
	Nsplit  int         `json:"nsplit"`
	UseCNN  bool        `json:"cnn"`
	Mutual  bool        `json:"mutual"`
}

// Hierarchic handles POST /v1/hierarchic, running recursive radius-decay
// refinement over a caller-supplied base partition.
func (h *Handler) Hierarchic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req HierarchicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Points) == 0 || len(req.Base) == 0 {
		writeError(w, "points and base must not be empty", http.StatusBadRequest)
		return
	}

	result := h.runner.Refine(req.Dataset, req.Points, req.Base, config.ClusterConfig{
		Cut: req.Cut, Sim: req.Sim, DeltaFE: req.DeltaFE, NDims: req.NDims,
		Nkeep: req.Nkeep, Nsplit: req.Nsplit, UseCNN: req.UseCNN, Mutual: req.Mutual,
	})

	writeJSON(w, result, http.StatusOK)
}

// ScanRequest is the body for POST /v1/scan.
type ScanRequest struct {
	Points   [][]float32 `json:"points"`
	Cut      float64     `json:"cut"`
	Sim      uint        `json:"sim"`
	DeltaCut float64     `json:"dcut"`
	DeltaSim uint        `json:"dsim"`
	NSteps   uint        `json:"nsteps"`
	Nkeep    int         `json:"nkeep"`
	UseCNN   bool        `json:"cnn"`
	Mutual   bool        `json:"mutual"`
	RelMax   float64     `json:"relmax"`
}

// Scan handles POST /v1/scan, sweeping a (cut, sim) schedule until enough
// of the point set is claimed.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Points) == 0 {
		writeError(w, "points must not be empty", http.StatusBadRequest)
		return
	}

	result := h.runner.Scan(req.Points, config.ClusterConfig{
		Cut: req.Cut, Sim: req.Sim, DeltaCut: req.DeltaCut, DeltaSim: req.DeltaSim,
		NSteps: req.NSteps, Nkeep: req.Nkeep, UseCNN: req.UseCNN, Mutual: req.Mutual, RelMax: req.RelMax,
	})

	writeJSON(w, result, http.StatusOK)
}

// MappingRequest is the body for POST /v1/mapping.
type MappingRequest struct {
	Clusters      [][]uint32        `json:"clusters"`
	Leaves        []hierarchy.Step  `json:"leaves"`
	FullData      [][]float32       `json:"full_data"`
	ReducedData   [][]float32       `json:"reduced_data"`
	ReducedToFull map[string]uint32 `json:"reduced_to_full"`
}

// Mapping handles POST /v1/mapping, attaching held-out frames to an
// existing reduced-space partition.
func (h *Handler) Mapping(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req MappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	reducedToFull := make(map[uint32]uint32, len(req.ReducedToFull))
	for k, v := range req.ReducedToFull {
		var reduced uint32
		if _, err := fmt.Sscanf(k, "%d", &reduced); err != nil {
			writeError(w, fmt.Sprintf("invalid reduced_to_full key %q: %v", k, err), http.StatusBadRequest)
			return
		}
		reducedToFull[reduced] = v
	}

	clusters := h.runner.Map(req.Clusters, req.Leaves, req.FullData, req.ReducedData, reducedToFull)
	writeJSON(w, map[string]interface{}{"clusters": clusters}, http.StatusOK)
}

// DtrajsRequest is the body for POST /v1/dtrajs.
type DtrajsRequest struct {
	Clusters [][]uint32 `json:"clusters"`
	Shapes   []uint32   `json:"shapes"`
}

// Dtrajs handles POST /v1/dtrajs, converting full-ID-space cluster
// membership into per-trajectory discretized label sequences.
func (h *Handler) Dtrajs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DtrajsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Shapes) == 0 {
		writeError(w, "shapes must not be empty", http.StatusBadRequest)
		return
	}

	labels := h.runner.Discretize(req.Clusters, req.Shapes)
	writeJSON(w, map[string]interface{}{"dtrajs": labels}, http.StatusOK)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  message,
		"status": statusCode,
	})
}
