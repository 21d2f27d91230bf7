// Package config centralizes clustering-run configuration: defaults, YAML
// file loading, environment overrides and validation, in that precedence
// order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all run configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Cluster ClusterConfig `yaml:"cluster"`
	Cache   CacheConfig   `yaml:"cache"`
	Data    DataConfig    `yaml:"data"`
}

// ServerConfig holds REST API server configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	MaxConnections  int           `yaml:"max_connections"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	EnableTLS       bool          `yaml:"enable_tls"`
	CertFile        string        `yaml:"cert_file"`
	KeyFile         string        `yaml:"key_file"`
}

// ClusterConfig holds the seed-and-expand algorithm's tunables, mirroring
// the CLI's flag surface so a run can be fully described by either.
type ClusterConfig struct {
	Cut      float64 `yaml:"cut"`
	Sim      uint    `yaml:"sim"`
	DeltaCut float64 `yaml:"dcut"`
	DeltaSim uint    `yaml:"dsim"`
	NSteps   uint    `yaml:"nsteps"`
	DeltaFE  float64 `yaml:"dfe"`
	Nkeep    int     `yaml:"nkeep"`
	Nsplit   int     `yaml:"nsplit"`
	RelMax   float64 `yaml:"relmax"`
	NTrajs   uint    `yaml:"ntrajs"`
	NDims    uint    `yaml:"ndims"`
	Slice    uint    `yaml:"slice"`
	UseCNN   bool    `yaml:"cnn"`
	Mutual   bool    `yaml:"mutual"`
}

// CacheConfig holds query-result cache configuration.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

// DataConfig holds file paths and I/O policy for the driver.
type DataConfig struct {
	DataDir   string `yaml:"data_dir"`
	Overwrite bool   `yaml:"overwrite"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			MaxConnections:  1000,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			EnableTLS:       false,
		},
		Cluster: ClusterConfig{
			Cut:     1.0,
			Sim:     2,
			NSteps:  10,
			DeltaFE: 0.25,
			Nkeep:   2,
			Nsplit:  100,
			RelMax:  0.9,
			NDims:   1,
			Slice:   1,
			UseCNN:  true,
			Mutual:  true,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Capacity: 1000,
			TTL:      5 * time.Minute,
		},
		Data: DataConfig{
			DataDir:   "./data",
			Overwrite: false,
		},
	}
}

// LoadFromFile reads YAML configuration from path, starting from Default()
// and overriding only the fields present in the file.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv starts from cfg (or Default() if nil) and overrides fields
// present as CNNCLUSTER_* environment variables.
func LoadFromEnv(cfg *Config) *Config {
	if cfg == nil {
		cfg = Default()
	}

	if host := os.Getenv("CNNCLUSTER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("CNNCLUSTER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if timeout := os.Getenv("CNNCLUSTER_REQUEST_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			cfg.Server.RequestTimeout = t
		}
	}
	if enableTLS := os.Getenv("CNNCLUSTER_ENABLE_TLS"); enableTLS == "true" {
		cfg.Server.EnableTLS = true
		cfg.Server.CertFile = os.Getenv("CNNCLUSTER_TLS_CERT")
		cfg.Server.KeyFile = os.Getenv("CNNCLUSTER_TLS_KEY")
	}

	if cut := os.Getenv("CNNCLUSTER_CUT"); cut != "" {
		if c, err := strconv.ParseFloat(cut, 64); err == nil {
			cfg.Cluster.Cut = c
		}
	}
	if sim := os.Getenv("CNNCLUSTER_SIM"); sim != "" {
		if s, err := strconv.ParseUint(sim, 10, 32); err == nil {
			cfg.Cluster.Sim = uint(s)
		}
	}
	if nkeep := os.Getenv("CNNCLUSTER_NKEEP"); nkeep != "" {
		if n, err := strconv.Atoi(nkeep); err == nil {
			cfg.Cluster.Nkeep = n
		}
	}

	if cacheEnabled := os.Getenv("CNNCLUSTER_CACHE_ENABLED"); cacheEnabled == "false" {
		cfg.Cache.Enabled = false
	}
	if capacity := os.Getenv("CNNCLUSTER_CACHE_CAPACITY"); capacity != "" {
		if c, err := strconv.Atoi(capacity); err == nil {
			cfg.Cache.Capacity = c
		}
	}

	if dataDir := os.Getenv("CNNCLUSTER_DATA_DIR"); dataDir != "" {
		cfg.Data.DataDir = dataDir
	}
	if overwrite := os.Getenv("CNNCLUSTER_OVERWRITE"); overwrite == "true" {
		cfg.Data.Overwrite = true
	}

	return cfg
}

// Validate checks the configuration against the invariants the clustering
// core and the REST server both rely on.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.MaxConnections < 1 {
		return fmt.Errorf("invalid max connections: %d (must be > 0)", c.Server.MaxConnections)
	}
	if c.Server.EnableTLS {
		if c.Server.CertFile == "" || c.Server.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert or key file not specified")
		}
	}

	if c.Cluster.Cut <= 0 {
		return fmt.Errorf("invalid cut: %v (must be > 0)", c.Cluster.Cut)
	}
	if c.Cluster.Sim < 2 {
		return fmt.Errorf("invalid sim: %d (must be >= 2)", c.Cluster.Sim)
	}
	if c.Cluster.NDims < 1 {
		return fmt.Errorf("invalid ndims: %d (must be > 0)", c.Cluster.NDims)
	}

	if c.Cache.Enabled && c.Cache.Capacity < 1 {
		return fmt.Errorf("invalid cache capacity: %d (must be > 0)", c.Cache.Capacity)
	}

	if c.Data.DataDir == "" {
		return fmt.Errorf("data directory not specified")
	}

	return nil
}

// Address returns the server address (host:port).
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
