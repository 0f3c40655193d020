package flags

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ruteri/cas-gateway/config"
	"github.com/ruteri/cas-gateway/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func loadWithArgs(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()

	var (
		cfg     *config.Config
		loadErr error
	)
	app := &cli.App{
		Name:  "test",
		Flags: ServerFlags,
		Action: func(cCtx *cli.Context) error {
			cfg, loadErr = LoadConfig(cCtx)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"test"}, args...)))
	return cfg, loadErr
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadWithArgs(t)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	cfg, err := loadWithArgs(t,
		"--storage-backend", "kubo",
		"--kubo-api-addr", "10.0.0.1:5001",
		"--kubo-timeout", "3s",
		"--storage-cache",
		"--max-concurrency", "4",
		"--listen-addr", "0.0.0.0:9000",
	)
	require.NoError(t, err)

	assert.Equal(t, "kubo", cfg.Storage.Backend)
	assert.Equal(t, "10.0.0.1:5001", cfg.Storage.Kubo.APIAddr)
	assert.Equal(t, 3*time.Second, cfg.Storage.Kubo.Timeout)
	assert.True(t, cfg.Storage.Cache)
	assert.Equal(t, 4, cfg.Storage.MaxConcurrency)
	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
}

func TestLoadConfig_LegacyEnvVar(t *testing.T) {
	t.Setenv("IPFS_CLIENT", "KUBO")

	cfg, err := loadWithArgs(t)
	require.NoError(t, err)
	assert.Equal(t, "KUBO", cfg.Storage.Backend)
}

func TestLoadConfig_FlagOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: kubo\n  cache: true\n"), 0o600))

	cfg, err := loadWithArgs(t, "--config", path, "--storage-backend", "embedded")
	require.NoError(t, err)
	assert.Equal(t, "embedded", cfg.Storage.Backend)
	assert.True(t, cfg.Storage.Cache)
}

func TestLoadConfig_UnknownBackend(t *testing.T) {
	_, err := loadWithArgs(t, "--storage-backend", "UNKNOWN")
	assert.ErrorIs(t, err, interfaces.ErrUnknownBackend)
}
