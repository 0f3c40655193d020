package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/cas-gateway/api"
	"github.com/ruteri/cas-gateway/common"
	"github.com/ruteri/cas-gateway/config"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context, cfg *config.Config) (log *slog.Logger) {
	logUID := cCtx.Bool(LogUidFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cfg.Log.Debug,
		JSON:    cfg.Log.JSON,
		Service: cfg.Log.Service,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// LoadConfig reads the optional config file and applies every flag or
// environment variable that was set explicitly on top of it.
func LoadConfig(cCtx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(cCtx.String(ConfigFileFlag.Name))
	if err != nil {
		return nil, err
	}

	if cCtx.IsSet(ListenAddrFlag.Name) {
		cfg.ListenAddr = cCtx.String(ListenAddrFlag.Name)
	}
	if cCtx.IsSet(MetricsAddrFlag.Name) {
		cfg.MetricsAddr = cCtx.String(MetricsAddrFlag.Name)
	}
	if cCtx.IsSet(StorageBackendFlag.Name) {
		cfg.Storage.Backend = cCtx.String(StorageBackendFlag.Name)
	}
	if cCtx.IsSet(StorageCacheFlag.Name) {
		cfg.Storage.Cache = cCtx.Bool(StorageCacheFlag.Name)
	}
	if cCtx.IsSet(MaxConcurrencyFlag.Name) {
		cfg.Storage.MaxConcurrency = cCtx.Int(MaxConcurrencyFlag.Name)
	}
	if cCtx.IsSet(KuboAPIAddrFlag.Name) {
		cfg.Storage.Kubo.APIAddr = cCtx.String(KuboAPIAddrFlag.Name)
	}
	if cCtx.IsSet(KuboTimeoutFlag.Name) {
		cfg.Storage.Kubo.Timeout = cCtx.Duration(KuboTimeoutFlag.Name)
	}
	if cCtx.IsSet(KuboPinFlag.Name) {
		cfg.Storage.Kubo.Pin = cCtx.Bool(KuboPinFlag.Name)
	}
	if cCtx.IsSet(EmbeddedDirFlag.Name) {
		cfg.Storage.Embedded.Dir = cCtx.String(EmbeddedDirFlag.Name)
	}
	if cCtx.IsSet(EmbeddedCompressFlag.Name) {
		cfg.Storage.Embedded.Compress = cCtx.Bool(EmbeddedCompressFlag.Name)
	}
	if cCtx.IsSet(LogJsonFlag.Name) {
		cfg.Log.JSON = cCtx.Bool(LogJsonFlag.Name)
	}
	if cCtx.IsSet(LogDebugFlag.Name) {
		cfg.Log.Debug = cCtx.Bool(LogDebugFlag.Name)
	}
	if cCtx.IsSet(LogServiceFlag.Name) {
		cfg.Log.Service = cCtx.String(LogServiceFlag.Name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ConfigureServer(cCtx *cli.Context, cfg *config.Config, logger *slog.Logger) *api.HTTPServerConfig {
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &api.HTTPServerConfig{
		ListenAddr:               cfg.ListenAddr,
		MetricsAddr:              cfg.MetricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		MaxUploadSize:            cCtx.Int64(MaxUploadSizeFlag.Name),
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var ConfigFileFlag = &cli.StringFlag{
	Name:    "config",
	EnvVars: []string{"CONFIG_FILE"},
	Usage:   "path to a YAML config file, flags override its values",
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   config.DefaultListenAddr,
	EnvVars: []string{"LISTEN_ADDR"},
	Usage:   "address to listen on for API",
}

var StorageBackendFlag = &cli.StringFlag{
	Name:    "storage-backend",
	Value:   config.DefaultBackend,
	EnvVars: []string{"STORAGE_BACKEND", "IPFS_CLIENT"},
	Usage:   "storage backend to use: 'kubo' or 'embedded'",
}

var StorageCacheFlag = &cli.BoolFlag{
	Name:    "storage-cache",
	EnvVars: []string{"STORAGE_CACHE"},
	Usage:   "cache fetched content in memory",
}

var MaxConcurrencyFlag = &cli.IntFlag{
	Name:    "max-concurrency",
	EnvVars: []string{"MAX_CONCURRENCY"},
	Usage:   "maximum concurrent backend fetches per batch request, 0 for unbounded",
}

var KuboAPIAddrFlag = &cli.StringFlag{
	Name:    "kubo-api-addr",
	Value:   config.DefaultKuboAPIAddr,
	EnvVars: []string{"KUBO_API_ADDR"},
	Usage:   "Kubo RPC API address (host:port or multiaddr)",
}

var KuboTimeoutFlag = &cli.DurationFlag{
	Name:    "kubo-timeout",
	Value:   config.DefaultKuboTimeout,
	EnvVars: []string{"KUBO_TIMEOUT"},
	Usage:   "timeout for Kubo RPC calls",
}

var KuboPinFlag = &cli.BoolFlag{
	Name:    "kubo-pin",
	Value:   true,
	EnvVars: []string{"KUBO_PIN"},
	Usage:   "pin uploaded content on the Kubo node",
}

var EmbeddedDirFlag = &cli.StringFlag{
	Name:    "embedded-dir",
	EnvVars: []string{"EMBEDDED_DIR"},
	Usage:   "data directory of the embedded store, empty keeps blocks in memory",
}

var EmbeddedCompressFlag = &cli.BoolFlag{
	Name:    "embedded-compress",
	Value:   true,
	EnvVars: []string{"EMBEDDED_COMPRESS"},
	Usage:   "zstd-compress blocks in the embedded store",
}

var MaxUploadSizeFlag = &cli.Int64Flag{
	Name:  "max-upload-size",
	Value: api.DefaultMaxUploadSize,
	Usage: "maximum file upload size in bytes",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "cas-gateway",
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: config.DefaultMetricsAddr,
	Usage: "address to listen on for Prometheus metrics",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}

var StorageFlags = []cli.Flag{
	StorageBackendFlag,
	StorageCacheFlag,
	MaxConcurrencyFlag,
	KuboAPIAddrFlag,
	KuboTimeoutFlag,
	KuboPinFlag,
	EmbeddedDirFlag,
	EmbeddedCompressFlag,
}

var ServerFlags = append([]cli.Flag{
	ConfigFileFlag,
	ListenAddrFlag,
	MaxUploadSizeFlag,
}, append(StorageFlags, CommonFlags...)...)
