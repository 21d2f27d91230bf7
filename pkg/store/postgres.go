// Package store persists point sets and their cluster assignments in
// Postgres, using pgvector's column type so the raw feature vectors stay
// queryable from SQL rather than opaque blobs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/rinikerlab/cnncluster/pkg/observability"
)

// PointStore persists a dataset's points and the cluster label each point
// was last assigned, backed by a Postgres connection pool.
type PointStore struct {
	db     *sql.DB
	logger *observability.Logger
}

// Config holds Postgres connection settings.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c Config) connectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Open connects to Postgres and ensures the schema this store needs
// exists.
func Open(ctx context.Context, cfg Config, logger *observability.Logger) (*PointStore, error) {
	if logger == nil {
		logger = observability.GetGlobalLogger()
	}

	db, err := sql.Open("postgres", cfg.connectionString())
	if err != nil {
		return nil, fmt.Errorf("store: open postgres connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}

	s := &PointStore{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("connected to postgres", map[string]interface{}{"database": cfg.Database})
	return s, nil
}

func (s *PointStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	if err != nil {
		return fmt.Errorf("store: enable pgvector extension: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dataset_points (
			dataset    TEXT NOT NULL,
			point_id   INTEGER NOT NULL,
			vector     vector NOT NULL,
			cluster_id INTEGER NOT NULL DEFAULT -1,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (dataset, point_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("store: create dataset_points table: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PointStore) Close() error {
	return s.db.Close()
}

// SavePoints upserts every point of a dataset along with its current
// cluster label (-1 for noise).
func (s *PointStore) SavePoints(ctx context.Context, dataset string, points [][]float32, labels []int32) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dataset_points (dataset, point_id, vector, cluster_id, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (dataset, point_id)
		DO UPDATE SET vector = EXCLUDED.vector, cluster_id = EXCLUDED.cluster_id, updated_at = now()
	`)
	if err != nil {
		return fmt.Errorf("store: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i, p := range points {
		label := int32(-1)
		if i < len(labels) {
			label = labels[i]
		}
		if _, err := stmt.ExecContext(ctx, dataset, i, pgvector.NewVector(p), label); err != nil {
			return fmt.Errorf("store: upsert point %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// LoadPoints retrieves every point of a dataset ordered by point_id,
// alongside its last-recorded cluster label.
func (s *PointStore) LoadPoints(ctx context.Context, dataset string) ([][]float32, []int32, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT vector, cluster_id FROM dataset_points
		WHERE dataset = $1
		ORDER BY point_id ASC
	`, dataset)
	if err != nil {
		return nil, nil, fmt.Errorf("store: query points: %w", err)
	}
	defer rows.Close()

	var points [][]float32
	var labels []int32
	for rows.Next() {
		var vec pgvector.Vector
		var label int32
		if err := rows.Scan(&vec, &label); err != nil {
			return nil, nil, fmt.Errorf("store: scan point row: %w", err)
		}
		points = append(points, vec.Slice())
		labels = append(labels, label)
	}
	return points, labels, rows.Err()
}

// DeleteDataset removes every stored point for a dataset.
func (s *PointStore) DeleteDataset(ctx context.Context, dataset string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dataset_points WHERE dataset = $1`, dataset)
	if err != nil {
		return fmt.Errorf("store: delete dataset %q: %w", dataset, err)
	}
	return nil
}
