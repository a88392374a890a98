package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerr "github.com/maverikod/vvz-code-analyzis-sub010/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.CodeAnalysis.MinChunkLength)
	assert.Equal(t, 10, cfg.CodeAnalysis.Worker.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.CodeAnalysis.Worker.PollInterval())
	assert.Equal(t, 10*time.Second, cfg.ProcessManagement.ShutdownGrace())
	assert.Equal(t, "flat", cfg.CodeAnalysis.IndexBackend)
}

func TestLoad_FullDocument(t *testing.T) {
	path := writeConfig(t, `
code_analysis:
  vector_dim: 384
  faiss_index_path: /tmp/ix/faiss_index
  min_chunk_length: 50
  embedding:
    enabled: true
    url: http://localhost:8300
    model: test-embed
  worker:
    enabled: true
    poll_interval_seconds: 5
    batch_size: 4
    circuit_breaker:
      failure_threshold: 3
      recovery_timeout: 2
      success_threshold: 2
      initial_backoff: 0.5
      max_backoff: 10
      backoff_multiplier: 2.0
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	dim, err := cfg.RequireVectorDim()
	require.NoError(t, err)
	assert.Equal(t, 384, dim)
	assert.Equal(t, 50, cfg.CodeAnalysis.MinChunkLength)
	assert.Equal(t, 3, cfg.CodeAnalysis.Worker.CircuitBreaker.FailureThreshold)
	assert.Equal(t, 5*time.Second, cfg.CodeAnalysis.Worker.PollInterval())
	assert.True(t, cfg.CodeAnalysis.Embedding.Enabled)
}

func TestLoad_ServerManagerAlias(t *testing.T) {
	path := writeConfig(t, `
server_manager:
  shutdown_grace_seconds: 2.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, cfg.ProcessManagement.ShutdownGrace())
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	path := writeConfig(t, `
code_analysis:
  min_chunk_length: 0
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, cerr.CodeInvalidConfig, cerr.GetCode(err))
}

func TestRequireVectorDim_Unset(t *testing.T) {
	cfg := Default()
	_, err := cfg.RequireVectorDim()
	require.Error(t, err)
	assert.Equal(t, cerr.CodeInvalidConfig, cerr.GetCode(err))
}
