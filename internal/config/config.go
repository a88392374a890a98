// Package config loads and validates the service configuration.
//
// The configuration is a single YAML document. The recognized keys mirror
// the external contract: everything the analysis core needs lives under
// `code_analysis`, process supervision under `process_management` (with
// `server_manager` as a legacy alias).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
)

// Config is the root configuration document.
type Config struct {
	CodeAnalysis      CodeAnalysisConfig `yaml:"code_analysis"`
	ProcessManagement ProcessConfig      `yaml:"process_management"`
	// ServerManager is a legacy alias for ProcessManagement; when set, its
	// non-zero fields win.
	ServerManager *ProcessConfig `yaml:"server_manager,omitempty"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// CodeAnalysisConfig configures the analysis core.
type CodeAnalysisConfig struct {
	// DatabasePath is the single-file store location.
	DatabasePath string `yaml:"database_path"`
	// VectorDim is the embedding dimension D. Required for semantic features.
	VectorDim int `yaml:"vector_dim"`
	// FaissIndexPath is the on-disk vector index location.
	FaissIndexPath string `yaml:"faiss_index_path"`
	// IndexBackend selects the ANN backend: "flat" (exact, default) or "hnsw".
	IndexBackend string `yaml:"index_backend"`
	// MinChunkLength is L_min for level-adaptive chunk grouping.
	MinChunkLength int `yaml:"min_chunk_length"`
	// MaxFileLines is the quality-issue threshold for oversized files.
	MaxFileLines int `yaml:"max_file_lines"`

	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Worker    WorkerConfig    `yaml:"worker"`

	VectorizationRetryAttempts int     `yaml:"vectorization_retry_attempts"`
	VectorizationRetryDelay    float64 `yaml:"vectorization_retry_delay"`
}

// EmbeddingConfig configures the external embedding service.
type EmbeddingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	URL            string  `yaml:"url"`
	Model          string  `yaml:"model"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
}

// ChunkerConfig configures the external chunking service.
type ChunkerConfig struct {
	Enabled        bool    `yaml:"enabled"`
	URL            string  `yaml:"url"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
}

// WorkerConfig configures the background vectorization worker.
type WorkerConfig struct {
	Enabled             bool          `yaml:"enabled"`
	PollIntervalSeconds int           `yaml:"poll_interval_seconds"`
	BatchSize           int           `yaml:"batch_size"`
	CircuitBreaker      BreakerConfig `yaml:"circuit_breaker"`
}

// BreakerConfig mirrors the circuit-breaker tuning knobs.
type BreakerConfig struct {
	FailureThreshold  int     `yaml:"failure_threshold"`
	RecoveryTimeout   float64 `yaml:"recovery_timeout"`
	SuccessThreshold  int     `yaml:"success_threshold"`
	InitialBackoff    float64 `yaml:"initial_backoff"`
	MaxBackoff        float64 `yaml:"max_backoff"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// ProcessConfig configures process supervision.
type ProcessConfig struct {
	ShutdownGraceSeconds float64 `yaml:"shutdown_grace_seconds"`
	PidFile              string  `yaml:"pid_file"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	FilePath  string `yaml:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
}

// Default returns the configuration defaults applied before loading.
func Default() *Config {
	return &Config{
		CodeAnalysis: CodeAnalysisConfig{
			DatabasePath:   filepath.Join("data", "code_analysis.db"),
			FaissIndexPath: filepath.Join("data", "faiss_index"),
			IndexBackend:   "flat",
			MinChunkLength: 30,
			MaxFileLines:   400,
			Worker: WorkerConfig{
				Enabled:             true,
				PollIntervalSeconds: 30,
				BatchSize:           10,
				CircuitBreaker: BreakerConfig{
					FailureThreshold:  5,
					RecoveryTimeout:   60,
					SuccessThreshold:  2,
					InitialBackoff:    1,
					MaxBackoff:        300,
					BackoffMultiplier: 2.0,
				},
			},
			VectorizationRetryAttempts: 3,
			VectorizationRetryDelay:    1.0,
		},
		ProcessManagement: ProcessConfig{
			ShutdownGraceSeconds: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file, applying defaults for missing keys.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, cerr.Wrap(cerr.CodeInvalidConfig, fmt.Errorf("read config: %w", err))
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, cerr.Wrap(cerr.CodeInvalidConfig, fmt.Errorf("parse config: %w", err))
	}

	cfg.applyAliases()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyAliases folds the legacy server_manager section into process_management.
func (c *Config) applyAliases() {
	if c.ServerManager == nil {
		return
	}
	if c.ServerManager.ShutdownGraceSeconds > 0 {
		c.ProcessManagement.ShutdownGraceSeconds = c.ServerManager.ShutdownGraceSeconds
	}
	if c.ServerManager.PidFile != "" {
		c.ProcessManagement.PidFile = c.ServerManager.PidFile
	}
}

// Validate checks value ranges. VectorDim is validated lazily by operations
// that need it, so analysis-only deployments can omit it.
func (c *Config) Validate() error {
	ca := &c.CodeAnalysis
	if ca.VectorDim < 0 {
		return cerr.Newf(cerr.CodeInvalidConfig, "code_analysis.vector_dim must be positive, got %d", ca.VectorDim)
	}
	if ca.MinChunkLength <= 0 {
		return cerr.Newf(cerr.CodeInvalidConfig, "code_analysis.min_chunk_length must be positive, got %d", ca.MinChunkLength)
	}
	switch ca.IndexBackend {
	case "", "flat", "hnsw":
	default:
		return cerr.Newf(cerr.CodeInvalidConfig, "code_analysis.index_backend must be flat or hnsw, got %q", ca.IndexBackend)
	}
	if ca.Worker.PollIntervalSeconds < 0 || ca.Worker.BatchSize < 0 {
		return cerr.New(cerr.CodeInvalidConfig, "code_analysis.worker values must not be negative")
	}
	return nil
}

// RequireVectorDim returns VectorDim or an INVALID_CONFIG error when unset.
func (c *Config) RequireVectorDim() (int, error) {
	if c.CodeAnalysis.VectorDim <= 0 {
		return 0, cerr.New(cerr.CodeInvalidConfig, "code_analysis.vector_dim is required for semantic features")
	}
	return c.CodeAnalysis.VectorDim, nil
}

// PollInterval returns the worker poll interval as a duration.
func (w WorkerConfig) PollInterval() time.Duration {
	if w.PollIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(w.PollIntervalSeconds) * time.Second
}

// ShutdownGrace returns the shutdown grace period as a duration.
func (p ProcessConfig) ShutdownGrace() time.Duration {
	if p.ShutdownGraceSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.ShutdownGraceSeconds * float64(time.Second))
}

// BreakerDuration converts a float seconds knob to a duration.
func BreakerDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
