package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by gqlpipe
const EnvPrefix = "GQLPIPE"

// envKeys are the keys that may be set from the environment or a .env file
var envKeys = []string{
	"name",
	"cache_dir",
	"no_cache",
	"backend",
	"s3.endpoint",
	"s3.region",
	"s3.access_key",
	"s3.secret_key",
	"s3.bucket",
	"s3.prefix",
	"s3.use_ssl",
	"work_dir",
	"extension",
	"generator.command",
	"generator.version",
	"client.versioned_code",
	"client.parallelism",
	"client.timeout",
	"verbose",
	"silent",
}

// Loader handles configuration loading from various sources
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader backed by the global viper instance, which
// the CLI binds its flags to
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewModuleLoader creates a loader with its own viper instance, so several
// modules can be loaded in one process without sharing state
func NewModuleLoader() *Loader {
	return &Loader{v: viper.New()}
}

// LoadForBuild loads the configuration of the module named by args (or the
// working directory), layering global config, module config, environment
// and command flags
func (l *Loader) LoadForBuild(cmd *cobra.Command, args []string) (*Config, error) {
	moduleDir, err := ModuleDirFromArgs(args)
	if err != nil {
		return nil, err
	}

	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig(moduleDir)
	l.loadDotEnv(moduleDir)
	l.bindEnv()
	l.bindCommandFlags(cmd)

	return LoadFrom(l.v, moduleDir)
}

// LoadModule loads the configuration of moduleDir without command flags
func (l *Loader) LoadModule(moduleDir string) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig(moduleDir)
	l.loadDotEnv(moduleDir)
	l.bindEnv()

	return LoadFrom(l.v, moduleDir)
}

// LoadModule loads the configuration of an upstream module in isolation
func LoadModule(moduleDir string) (*Config, error) {
	return NewModuleLoader().LoadModule(moduleDir)
}

// ModuleDirFromArgs returns the module directory given on the command line,
// defaulting to the working directory
func ModuleDirFromArgs(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return filepath.Abs(args[0])
	}

	return os.Getwd()
}

// SetDefaults registers the default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("cache_dir", DefaultCacheDir)
	v.SetDefault("backend", DefaultBackend)
	v.SetDefault("work_dir", DefaultWorkDir)
	v.SetDefault("extension", DefaultExtension)
	v.SetDefault("generator.command", DefaultGeneratorCommand)
	v.SetDefault("server.launcher_dir", DefaultLauncherDir)
	v.SetDefault("client.versioned_code", DefaultVersionedCode)
	v.SetDefault("client.versioned_dir", DefaultVersionedDir)
	v.SetDefault("client.transient_dir", DefaultTransientDir)
	v.SetDefault("client.parallelism", DefaultParallelism)
	v.SetDefault("client.timeout", DefaultTimeout)
	v.SetDefault("silent", DefaultSilent)
	v.SetDefault("verbose", DefaultVerbose)
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	SetDefaults(l.v)
}

// GlobalConfigDir returns the directory of the per-user configuration
func GlobalConfigDir() string {
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, "gqlpipe")
	}

	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "gqlpipe")
	}

	return ""
}

// loadGlobalConfig loads the per-user configuration
func (l *Loader) loadGlobalConfig() {
	globalDir := GlobalConfigDir()
	if globalDir == "" {
		return
	}

	for _, ext := range configExtensions {
		globalPath := filepath.Join(globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			l.v.SetConfigFile(globalPath)

			if err := l.v.ReadInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig merges the module configuration over the global one
func (l *Loader) loadLocalConfig(moduleDir string) {
	localPath := FindLocalConfig(moduleDir)
	if localPath == "" {
		return
	}

	l.v.SetConfigFile(localPath)
	_ = l.v.MergeInConfig()
}

// loadDotEnv merges GQLPIPE_* values from the module's .env file. They rank
// above config files and below the real environment and flags. The process
// environment is left untouched so sibling modules do not leak into each
// other.
func (l *Loader) loadDotEnv(moduleDir string) {
	values, err := godotenv.Read(filepath.Join(moduleDir, ".env"))
	if err != nil {
		return
	}

	settings := make(map[string]any)
	for _, key := range envKeys {
		if val, ok := values[EnvName(key)]; ok {
			setNested(settings, key, val)
		}
	}

	if len(settings) > 0 {
		_ = l.v.MergeConfigMap(settings)
	}
}

// bindEnv makes GQLPIPE_* environment variables override config files
func (l *Loader) bindEnv() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	_ = l.v.BindPFlag("verbose", cmd.Flags().Lookup("verbose"))
	_ = l.v.BindPFlag("silent", cmd.Flags().Lookup("silent"))
	_ = l.v.BindPFlag("no_cache", cmd.Flags().Lookup("no-cache"))
	_ = l.v.BindPFlag("cache_dir", cmd.Flags().Lookup("cache-dir"))
	_ = l.v.BindPFlag("client.parallelism", cmd.Flags().Lookup("parallelism"))
	_ = l.v.BindPFlag("client.timeout", cmd.Flags().Lookup("timeout"))
}

// EnvName returns the environment variable that overrides key
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func setNested(m map[string]any, key, val string) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}

		m = next
	}

	m[parts[len(parts)-1]] = val
}
