package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/leapstack-labs/nsbrowse/pkg/core"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "NSBROWSE_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var configNames = []string{"nsbrowse.yaml", "nsbrowse.yml"}

// sections are the nested config blocks; NSBROWSE_RESOLVE_WORKERS sets
// resolve.workers.
var sections = []string{"browse", "resolve", "filter", "macro"}

// flagKeys maps flag names whose config key is not the snake_case of the
// flag name.
var flagKeys = map[string]string{
	"state":             "state_path",
	"namespace-mode":    "browse.namespace_mode",
	"namespace-pattern": "browse.namespace_pattern",
	"member-mode":       "browse.member_mode",
	"member-pattern":    "browse.member_pattern",
	"facet":             "browse.doc_facet",
	"workers":           "resolve.workers",
	"timeout":           "resolve.timeout",
	"retries":           "resolve.retries",
}

// pathFlags are resolved against the working directory rather than the
// project root.
var pathFlags = map[string]string{
	"macros-dir": "macros_dir",
	"state":      "state_path",
}

// configExistsIn returns the config file in dir, or "".
func configExistsIn(dir string) string {
	for _, name := range configNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a config file.
func findConfigUpward(startDir string) string {
	dir := startDir
	for range maxUpwardSearchLevels {
		if found := configExistsIn(dir); found != "" {
			return found
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range sections {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok {
			return section + "." + rest
		}
	}
	return key
}

func flagKey(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}
	return strings.ReplaceAll(name, "-", "_")
}

// Load loads configuration from defaults, the config file, environment
// variables and flags. An empty cfgFile searches upward from the working
// directory. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	// 1. Defaults
	d := Default()
	if err := k.Load(confmap.Provider(map[string]any{
		"macros_dir":            d.MacrosDir,
		"state_path":            d.StatePath,
		"output":                d.OutputFormat,
		"log_level":             d.LogLevel,
		"verbose":               false,
		"watch":                 false,
		"browse.namespace_mode": d.Browse.NamespaceMode.String(),
		"browse.member_mode":    d.Browse.MemberMode.String(),
		"browse.doc_facet":      d.Browse.DocFacet.String(),
		"resolve.workers":       d.Resolve.Workers,
		"resolve.timeout":       d.Resolve.Timeout.String(),
		"resolve.retries":       d.Resolve.Retries,
		"resolve.retry_backoff": d.Resolve.RetryBackoff.String(),
		"filter.cache_size":     d.Filter.CacheSize,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile == "" {
		cfgFile = findConfigUpward(cwd)
	}
	projectRoot := cwd
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		if abs, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// 3. Environment variables
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority), only those explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return flagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Decode
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				enumHook,
			),
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Resolve paths: flags against the working directory, everything
	// else against the project root.
	cfg.ProjectRoot = projectRoot
	cfg.ConfigFile = cfgFile
	cfg.MacrosDir = resolvePathRelativeTo(cfg.MacrosDir, projectRoot)
	if cfg.StatePath != memoryPath {
		cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, projectRoot)
	}
	if flags != nil {
		for name, key := range pathFlags {
			f := flags.Lookup(name)
			if f == nil || !f.Changed || f.Value.String() == "" || f.Value.String() == memoryPath {
				continue
			}
			abs := resolvePathRelativeTo(f.Value.String(), cwd)
			switch key {
			case "macros_dir":
				cfg.MacrosDir = abs
			case "state_path":
				cfg.StatePath = abs
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

const memoryPath = ":memory:"

var (
	namespaceModeType = reflect.TypeFor[core.NamespaceMode]()
	memberModeType    = reflect.TypeFor[core.MemberMode]()
	docFacetType      = reflect.TypeFor[core.DocFacet]()
)

// enumHook decodes mode and facet labels.
func enumHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	s, _ := data.(string)

	switch to {
	case namespaceModeType:
		if m, ok := core.ParseNamespaceMode(s); ok {
			return m, nil
		}
		return nil, fmt.Errorf("unknown namespace mode %q", s)
	case memberModeType:
		if m, ok := core.ParseMemberMode(s); ok {
			return m, nil
		}
		return nil, fmt.Errorf("unknown member mode %q", s)
	case docFacetType:
		if f, ok := core.ParseDocFacet(s); ok {
			return f, nil
		}
		return nil, fmt.Errorf("unknown doc facet %q", s)
	default:
		return data, nil
	}
}

// configKey is used to store config in context.
type configKey struct{}

// loggerKey is used to store logger in context.
type loggerKey struct{}

// WithConfig returns a context carrying cfg.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// GetConfig retrieves the config from the command context.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	// Return default config if none in context
	return Default()
}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}
