package hostlib

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// RuntimeConfig carries the environment-tunable knobs of the runtime.
type RuntimeConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"TABLETOP_LOG_LEVEL" envDefault:"info"`

	// FaultThreshold is the session error count that quarantines an
	// extension.
	FaultThreshold int `env:"TABLETOP_FAULT_THRESHOLD" envDefault:"10"`

	// FaultHistorySize is how many recent faults are kept per
	// extension for debugging.
	FaultHistorySize int `env:"TABLETOP_FAULT_HISTORY" envDefault:"10"`

	// CacheDir is where fetched extension packages are stored.
	CacheDir string `env:"TABLETOP_CACHE_DIR" envDefault:"${HOME}/.tabletop/extensions" envExpand:"true"`

	// LockfilePath pins the installed extension set.
	LockfilePath string `env:"TABLETOP_LOCKFILE" envDefault:"tabletop-lock.yaml"`

	// GrantsPath persists capability grant decisions.
	GrantsPath string `env:"TABLETOP_GRANTS_FILE" envDefault:"${HOME}/.tabletop/grants.yaml" envExpand:"true"`

	// CallbackBudget bounds a single callback invocation; zero means
	// unbounded.
	CallbackBudget time.Duration `env:"TABLETOP_CALLBACK_BUDGET" envDefault:"0"`

	// TrustAll grants every requested capability without prompting.
	TrustAll bool `env:"TABLETOP_TRUST_ALL" envDefault:"false"`

	// VerifySignatures requires a cosign signature on pulled packages.
	VerifySignatures bool `env:"TABLETOP_VERIFY_SIGNATURES" envDefault:"false"`

	// FetchTimeout bounds a single package download.
	FetchTimeout time.Duration `env:"TABLETOP_FETCH_TIMEOUT" envDefault:"30s"`
}

// LoadConfig reads the runtime configuration from the environment.
func LoadConfig() (RuntimeConfig, error) {
	cfg, err := env.ParseAs[RuntimeConfig]()
	if err != nil {
		return RuntimeConfig{}, fmt.Errorf("parse runtime config: %w", err)
	}
	if _, err := cfg.SlogLevel(); err != nil {
		return RuntimeConfig{}, err
	}
	return cfg, nil
}

// SlogLevel converts LogLevel to a slog.Level.
func (c RuntimeConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
}
