// Package dataset tracks registered point sets and enforces per-dataset
// resource quotas (point count, dimensionality, run rate) across
// concurrent clustering requests.
package dataset

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Quota represents resource limits for a dataset. A limit of -1 disables
// that check.
type Quota struct {
	MaxPoints     int64
	MaxDimensions int
	MaxRuns       int64 // lifetime clustering runs
	RateLimitQPS  int
}

// Usage tracks current resource consumption for a dataset.
type Usage struct {
	PointCount    int64
	Dimensions    int
	RunCount      int64
	LastQueryTime time.Time
	QueryCount    int64
	mu            sync.RWMutex
}

// Dataset represents a named, quota-governed point set.
type Dataset struct {
	ID        string
	Name      string
	Quota     Quota
	Usage     Usage
	CreatedAt time.Time
	UpdatedAt time.Time
	IsActive  bool
	mu        sync.RWMutex
}

// Registry handles dataset lifecycle and resource enforcement.
type Registry struct {
	datasets map[string]*Dataset
	mu       sync.RWMutex
}

// NewRegistry creates an empty dataset registry.
func NewRegistry() *Registry {
	return &Registry{
		datasets: make(map[string]*Dataset),
	}
}

// Create registers a new dataset under name with the given quota.
func (r *Registry) Create(name string, quota Quota) (*Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.datasets[name]; exists {
		return nil, fmt.Errorf("dataset %q already exists", name)
	}

	d := &Dataset{
		ID:        uuid.NewString(),
		Name:      name,
		Quota:     quota,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		IsActive:  true,
	}
	r.datasets[name] = d
	return d, nil
}

// Get retrieves a dataset by name.
func (r *Registry) Get(name string) (*Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, exists := r.datasets[name]
	if !exists {
		return nil, fmt.Errorf("dataset %q not found", name)
	}
	return d, nil
}

// Delete removes a dataset.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.datasets[name]; !exists {
		return fmt.Errorf("dataset %q not found", name)
	}
	delete(r.datasets, name)
	return nil
}

// List returns all registered datasets.
func (r *Registry) List() []*Dataset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Dataset, 0, len(r.datasets))
	for _, d := range r.datasets {
		out = append(out, d)
	}
	return out
}

// CheckPointQuota returns an error if adding count points would exceed the
// dataset's point quota.
func (d *Dataset) CheckPointQuota(count int64) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.Quota.MaxPoints >= 0 && d.Usage.PointCount+count > d.Quota.MaxPoints {
		return fmt.Errorf("point quota exceeded: current=%d, requested=%d, max=%d",
			d.Usage.PointCount, count, d.Quota.MaxPoints)
	}
	return nil
}

// CheckDimensionQuota returns an error if dimensions exceeds the dataset's
// dimension quota.
func (d *Dataset) CheckDimensionQuota(dimensions int) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.Quota.MaxDimensions >= 0 && dimensions > d.Quota.MaxDimensions {
		return fmt.Errorf("dimension quota exceeded: requested=%d, max=%d",
			dimensions, d.Quota.MaxDimensions)
	}
	return nil
}

// CheckRunQuota returns an error if the dataset has exhausted its lifetime
// run quota.
func (d *Dataset) CheckRunQuota() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.Quota.MaxRuns >= 0 && d.Usage.RunCount >= d.Quota.MaxRuns {
		return fmt.Errorf("run quota exceeded: current=%d, max=%d", d.Usage.RunCount, d.Quota.MaxRuns)
	}
	return nil
}

// CheckRateLimit enforces the dataset's queries-per-second limit.
func (d *Dataset) CheckRateLimit() error {
	d.Usage.mu.Lock()
	defer d.Usage.mu.Unlock()

	if d.Quota.RateLimitQPS <= 0 {
		return nil
	}

	now := time.Now()
	if now.Sub(d.Usage.LastQueryTime) < time.Second {
		if d.Usage.QueryCount >= int64(d.Quota.RateLimitQPS) {
			return fmt.Errorf("rate limit exceeded: %d queries/s (max: %d)",
				d.Usage.QueryCount, d.Quota.RateLimitQPS)
		}
	} else {
		d.Usage.QueryCount = 0
		d.Usage.LastQueryTime = now
	}

	d.Usage.QueryCount++
	return nil
}

// RecordRun registers a completed clustering run against this dataset's
// quota usage, recording the point count it was run over.
func (d *Dataset) RecordRun(pointCount int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Usage.PointCount = pointCount
	d.Usage.RunCount++
	d.UpdatedAt = time.Now()
}

// SetDimensions records the dimensionality of the dataset's points.
func (d *Dataset) SetDimensions(dimensions int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Usage.Dimensions = dimensions
	d.UpdatedAt = time.Now()
}

// SetActive toggles a dataset's active status.
func (d *Dataset) SetActive(active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.IsActive = active
	d.UpdatedAt = time.Now()
}

// DefaultQuota returns a conservative default quota.
func DefaultQuota() Quota {
	return Quota{
		MaxPoints:     10_000_000,
		MaxDimensions: 256,
		MaxRuns:       10_000,
		RateLimitQPS:  20,
	}
}

// UnlimitedQuota returns a quota with every limit disabled.
func UnlimitedQuota() Quota {
	return Quota{MaxPoints: -1, MaxDimensions: -1, MaxRuns: -1, RateLimitQPS: -1}
}
