package observability

import (
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	t.Run("NewMetrics", func(t *testing.T) {
		if m == nil {
			t.Fatal("NewMetrics returned nil")
		}
		if m.RequestsTotal == nil {
			t.Error("RequestsTotal not initialized")
		}
		if m.RequestDuration == nil {
			t.Error("RequestDuration not initialized")
		}
		if m.RunsTotal == nil {
			t.Error("RunsTotal not initialized")
		}
		if m.CacheHits == nil {
			t.Error("CacheHits not initialized")
		}
	})

	t.Run("RecordRequest", func(t *testing.T) {
		duration := 100 * time.Millisecond
		m.RecordRequest("Clustering", "success", duration)
		m.RecordRequest("Scan", "error", 50*time.Millisecond)

		methods := []string{"Clustering", "Hierarchic", "Scan", "Mapping", "Dtrajs"}
		statuses := []string{"success", "error", "timeout"}
		for _, method := range methods {
			for _, status := range statuses {
				m.RecordRequest(method, status, duration)
			}
		}
	})

	t.Run("RecordError", func(t *testing.T) {
		m.RecordError("Clustering", "invalid_argument")
		m.RecordError("Scan", "timeout")
		m.RecordError("Mapping", "input_missing")
	})

	t.Run("RecordRun", func(t *testing.T) {
		clusters := [][]uint32{{1, 2, 3}, {4, 5}}
		m.RecordRun(500*time.Millisecond, clusters, 10)
		m.RecordRun(5*time.Second, nil, 16)
	})

	t.Run("RecordNeighborhoodBuild", func(t *testing.T) {
		m.RecordNeighborhoodBuild(10*time.Millisecond, []int{3, 5, 8, 2})
		m.RecordNeighborhoodBuild(time.Second, nil)
	})

	t.Run("RecordRefinement", func(t *testing.T) {
		m.RecordRefinement(4, 7)
	})

	t.Run("RecordCacheHitAndMiss", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			m.RecordCacheHit()
		}
		for i := 0; i < 50; i++ {
			m.RecordCacheMiss()
		}
	})

	t.Run("UpdateCacheSize", func(t *testing.T) {
		m.UpdateCacheSize(100)
		m.UpdateCacheSize(500)
	})

	t.Run("UpdateDatasetCount", func(t *testing.T) {
		m.UpdateDatasetCount(5)
		m.UpdateDatasetCount(10)
	})

	t.Run("UpdateDatasetQuota", func(t *testing.T) {
		m.UpdateDatasetQuota("dataset1", "points", 0.75)
		m.UpdateDatasetQuota("dataset1", "runs", 0.2)

		resources := []string{"points", "runs", "storage"}
		for i, resource := range resources {
			m.UpdateDatasetQuota("test_dataset", resource, float64(i)*0.1)
		}
	})

	t.Run("UpdateSystemMetrics", func(t *testing.T) {
		m.UpdateGoroutineCount(100)
		m.UpdateMemoryUsage(1024 * 1024 * 512)

		for i := 0; i < 10; i++ {
			m.UpdateGoroutineCount(100 + i*10)
			m.UpdateMemoryUsage(uint64(1024 * 1024 * (500 + i*100)))
		}
	})
}

func TestConcurrentMetricUpdates(t *testing.T) {
	m := NewMetrics()
	done := make(chan bool, 10)

	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				m.RecordCacheHit()
				m.RecordRequest("Clustering", "success", time.Millisecond)
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
