// Package config provides configuration management for the nsbrowse CLI.
//
// Values are layered, lowest to highest precedence: defaults, the config
// file (nsbrowse.yaml), NSBROWSE_* environment variables and explicitly set
// command-line flags.
package config

import (
	"time"

	"github.com/leapstack-labs/nsbrowse/pkg/core"
)

// Default configuration values.
const (
	DefaultMacrosDir    = "macros"
	DefaultStateFile    = ".nsbrowse/state.db"
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel     = "warn"
	DefaultWorkers      = 4
	DefaultTimeout      = 30 * time.Second
	DefaultRetries      = 2
	DefaultRetryBackoff = 100 * time.Millisecond
	DefaultCacheSize    = 256
)

// Config holds all CLI configuration options.
type Config struct {
	MacrosDir    string `koanf:"macros_dir"`
	StatePath    string `koanf:"state_path"`
	OutputFormat string `koanf:"output"`
	LogLevel     string `koanf:"log_level"`
	Verbose      bool   `koanf:"verbose"`
	Watch        bool   `koanf:"watch"`

	Browse  BrowseConfig  `koanf:"browse"`
	Resolve ResolveConfig `koanf:"resolve"`
	Filter  FilterConfig  `koanf:"filter"`
	Macro   MacroConfig   `koanf:"macro"`

	// ProjectRoot anchors relative paths: the config file's directory or
	// the working directory.
	ProjectRoot string `koanf:"-"`
	// ConfigFile is the config file that was loaded, if any.
	ConfigFile string `koanf:"-"`
}

// BrowseConfig holds the initial browsing state.
type BrowseConfig struct {
	NamespaceMode    core.NamespaceMode `koanf:"namespace_mode"`
	NamespacePattern string             `koanf:"namespace_pattern"`
	MemberMode       core.MemberMode    `koanf:"member_mode"`
	MemberPattern    string             `koanf:"member_pattern"`
	DocFacet         core.DocFacet      `koanf:"doc_facet"`
}

// ResolveConfig holds resolution service tuning.
type ResolveConfig struct {
	Workers      int           `koanf:"workers"`
	Timeout      time.Duration `koanf:"timeout"`
	Retries      int           `koanf:"retries"`
	RetryBackoff time.Duration `koanf:"retry_backoff"`
	QueueSize    int           `koanf:"queue_size"`
}

// FilterConfig holds filter engine tuning.
type FilterConfig struct {
	CacheSize int `koanf:"cache_size"`
}

// MacroConfig holds Starlark host limits.
type MacroConfig struct {
	Threads  int    `koanf:"threads"`
	MaxSteps uint64 `koanf:"max_steps"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		MacrosDir:    DefaultMacrosDir,
		StatePath:    DefaultStateFile,
		OutputFormat: DefaultOutput,
		LogLevel:     DefaultLogLevel,
		Browse: BrowseConfig{
			NamespaceMode: core.NamespacesAll,
			MemberMode:    core.MembersPublics,
			DocFacet:      core.FacetDoc,
		},
		Resolve: ResolveConfig{
			Workers:      DefaultWorkers,
			Timeout:      DefaultTimeout,
			Retries:      DefaultRetries,
			RetryBackoff: DefaultRetryBackoff,
		},
		Filter: FilterConfig{CacheSize: DefaultCacheSize},
	}
}
