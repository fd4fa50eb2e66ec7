package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/seriarr/seriarr/internal/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
sources:
  - id: lib
    variant: text
    base_url: https://lib.example
`))
	require.NoError(t, err)

	assert.Equal(t, ":9190", cfg.Listen)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "file", cfg.Store.Kind)
	assert.Equal(t, "data", cfg.Store.Dir)
	assert.Equal(t, 1000, cfg.Swarm.PollMS)
	assert.Equal(t, 60, cfg.Swarm.MetadataTimeoutS)
	assert.Equal(t, 3, cfg.Download.Retries)
	assert.Equal(t, 1000, cfg.Download.BaseDelayMS)
	assert.Equal(t, 20, cfg.Download.CheckpointN)
	assert.Equal(t, 5, cfg.Download.FollowBound)
	assert.Equal(t, 10, cfg.Download.RankLimit)
}

func TestLoadFullDocument(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
listen: ":8080"
log:
  level: debug
  path: /var/log/seriarr.log
store:
  kind: postgres
swarm:
  rpc_url: http://localhost:6800/jsonrpc
  poll_ms: 250
download:
  retries: 5
  min_seeders: 2
sources:
  - id: lib
    name: Library
    variant: text
    base_url: https://lib.example
    timeout_ms: 5000
    retries: 2
    base_delay_ms: 200
    delay_ms: 100
  - id: idx
    variant: swarm
    enabled: false
`))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "postgres", cfg.Store.Kind)
	assert.Equal(t, 250, cfg.Swarm.PollMS)
	assert.Equal(t, 5, cfg.Download.Retries)
	assert.Equal(t, 2, cfg.Download.MinSeeders)

	srcs := cfg.SourceList()
	require.Len(t, srcs, 2)

	lib := srcs[0]
	assert.Equal(t, data.VariantText, lib.Variant)
	assert.True(t, lib.Enabled)
	assert.Equal(t, 5*time.Second, lib.HTTP.Timeout)
	assert.Equal(t, 2, lib.HTTP.Retries)
	assert.Equal(t, 200*time.Millisecond, lib.HTTP.BaseDelay)
	assert.Equal(t, 100*time.Millisecond, lib.HTTP.Delay)

	idx := srcs[1]
	assert.Equal(t, data.VariantSwarm, idx.Variant)
	assert.False(t, idx.Enabled)
}

func TestLoadSourcePolicyDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
sources:
  - id: lib
    variant: text
    base_url: https://lib.example
`))
	require.NoError(t, err)

	src := cfg.SourceList()[0]
	assert.Equal(t, 15*time.Second, src.HTTP.Timeout)
	assert.Equal(t, 3, src.HTTP.Retries)
	assert.Equal(t, time.Second, src.HTTP.BaseDelay)
	assert.Equal(t, time.Duration(0), src.HTTP.Delay)
}

func TestLoadRejectsDuplicateSourceID(t *testing.T) {
	_, err := Load(writeConfig(t, `
sources:
  - id: lib
    variant: text
    base_url: https://a.example
  - id: lib
    variant: image
    base_url: https://b.example
`))
	require.ErrorIs(t, err, data.ErrInvalidSource)
	assert.Contains(t, err.Error(), "duplicate source id")
}

func TestLoadRejectsUnknownVariant(t *testing.T) {
	_, err := Load(writeConfig(t, `
sources:
  - id: lib
    variant: video
    base_url: https://a.example
`))
	require.ErrorIs(t, err, data.ErrInvalidSource)
}

func TestLoadRejectsMissingBaseURL(t *testing.T) {
	_, err := Load(writeConfig(t, `
sources:
  - id: lib
    variant: text
`))
	require.ErrorIs(t, err, data.ErrInvalidSource)
}

func TestLoadSwarmSourceNeedsNoBaseURL(t *testing.T) {
	_, err := Load(writeConfig(t, `
sources:
  - id: idx
    variant: swarm
`))
	require.NoError(t, err)
}

func TestLoadRejectsUnknownStoreKind(t *testing.T) {
	_, err := Load(writeConfig(t, `
store:
  kind: redis
`))
	require.ErrorIs(t, err, data.ErrInvalidSource)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err)
}
