package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values
const (
	DefaultCacheDir         = ".gqlpipe-cache"
	DefaultWorkDir          = ".gqlpipe"
	DefaultLauncherDir      = "launchers"
	DefaultExtension        = ".go"
	DefaultBackend          = BackendBolt
	DefaultGeneratorCommand = "graphql-client-gen"
	DefaultVersionedCode    = true
	DefaultVersionedDir     = "graphql"
	DefaultTransientDir     = ".gqlpipe/generated"
	DefaultParallelism      = 1
	DefaultTimeout          = 10 * time.Minute
	DefaultSilent           = false
	DefaultVerbose          = false

	// SentinelFile is touched in the work directory on every server phase run
	// that regenerates
	SentinelFile = "server.touch"
)

// Cache store backends
const (
	BackendBolt = "bolt"
	BackendFS   = "fs"
	BackendS3   = "s3"
)

// Holds the configuration of one build module
type Config struct {
	// Absolute directory of the module
	ModuleDir string `validate:"required"`

	// Module name, defaults to the directory name
	Name string `validate:"required,excludesall=#/\\"`

	// Cache root, relative paths are resolved against ModuleDir
	CacheDir string `validate:"required"`

	// Always regenerate, ignoring the settings fingerprint
	NoCache bool

	// Cache store backend (bolt, fs or s3)
	Backend string `validate:"oneof=bolt fs s3"`

	// Remote cache store, only used by the s3 backend
	S3 S3Config `validate:"-"`

	// Directory for launchers, metadata and the sentinel, relative to ModuleDir
	WorkDir string `validate:"required"`

	// Extension of generated source files
	Extension string `validate:"required"`

	// External generator program
	Generator Generator

	// Server phase settings
	Server Server

	// Client phase settings
	Client Client

	// Suppress console output from the generator
	Silent bool

	// Enable verbose output
	Verbose bool
}

// Generator describes the external generator program
type Generator struct {
	// Executable name or path, resolved in the server module
	Command string `validate:"required"`

	// Opaque version string, part of the tracked settings
	Version string

	// Extra arguments passed before the target options
	Args []string
}

// Target is one (api reference, client settings) pair of the server phase
type Target struct {
	// API reference: schema file, introspection endpoint or package
	API string `mapstructure:"api" validate:"required"`

	// Destination package of the generated client
	PackageName string `mapstructure:"package_name" validate:"required,excludesall=#"`

	// Name of the generated client type
	ClientName string `mapstructure:"client_name" validate:"required,excludesall=#"`

	// Generator specific options
	Options map[string]string `mapstructure:"options"`
}

// Server holds the server phase settings
type Server struct {
	// Launcher directory, relative to the work directory
	LauncherDir string `validate:"required"`

	// Configured targets, in declaration order
	APIs []Target `validate:"dive"`
}

// Client holds the client phase settings
type Client struct {
	// Upstream server modules, relative to ModuleDir
	Modules []string

	// Generate into the checked-in directory (true) or the transient one (false)
	VersionedCode bool

	// Checked-in output directory, relative to ModuleDir
	VersionedDir string `validate:"required"`

	// Transient output directory, relative to ModuleDir
	TransientDir string `validate:"required"`

	// Maximum number of destination directories generated concurrently
	Parallelism int `validate:"min=1"`

	// Timeout of a single generator invocation, zero disables it
	Timeout time.Duration `validate:"min=0"`
}

// S3Config configures the remote cache store
type S3Config struct {
	Endpoint  string `validate:"required"`
	Region    string
	AccessKey string `validate:"required"`
	SecretKey string `validate:"required"`
	Bucket    string `validate:"required"`
	Prefix    string
	UseSSL    bool
}

// Load builds the configuration of moduleDir from the global viper instance
func Load(moduleDir string) (*Config, error) {
	return LoadFrom(viper.GetViper(), moduleDir)
}

// LoadFrom builds the configuration of moduleDir from v
func LoadFrom(v *viper.Viper, moduleDir string) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		ModuleDir: moduleDir,
		Name:      v.GetString("name"),
		CacheDir:  v.GetString("cache_dir"),
		NoCache:   v.GetBool("no_cache"),
		Backend:   v.GetString("backend"),
		S3: S3Config{
			Endpoint:  v.GetString("s3.endpoint"),
			Region:    v.GetString("s3.region"),
			AccessKey: v.GetString("s3.access_key"),
			SecretKey: v.GetString("s3.secret_key"),
			Bucket:    v.GetString("s3.bucket"),
			Prefix:    v.GetString("s3.prefix"),
			UseSSL:    v.GetBool("s3.use_ssl"),
		},
		WorkDir:   v.GetString("work_dir"),
		Extension: v.GetString("extension"),
		Generator: Generator{
			Command: v.GetString("generator.command"),
			Version: v.GetString("generator.version"),
			Args:    v.GetStringSlice("generator.args"),
		},
		Server: Server{
			LauncherDir: v.GetString("server.launcher_dir"),
		},
		Client: Client{
			Modules:       v.GetStringSlice("client.modules"),
			VersionedCode: v.GetBool("client.versioned_code"),
			VersionedDir:  v.GetString("client.versioned_dir"),
			TransientDir:  v.GetString("client.transient_dir"),
			Parallelism:   v.GetInt("client.parallelism"),
			Timeout:       v.GetDuration("client.timeout"),
		},
		Silent:  v.GetBool("silent"),
		Verbose: v.GetBool("verbose"),
	}

	if err := v.UnmarshalKey("server.apis", &cfg.Server.APIs); err != nil {
		return nil, fmt.Errorf("invalid server.apis: %w", err)
	}

	applyDefaults(cfg)

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultCacheDir
	}

	if cfg.Backend == "" {
		cfg.Backend = DefaultBackend
	}

	if cfg.WorkDir == "" {
		cfg.WorkDir = DefaultWorkDir
	}

	if cfg.Extension == "" {
		cfg.Extension = DefaultExtension
	}

	if cfg.Generator.Command == "" {
		cfg.Generator.Command = DefaultGeneratorCommand
	}

	if cfg.Server.LauncherDir == "" {
		cfg.Server.LauncherDir = DefaultLauncherDir
	}

	if cfg.Client.VersionedDir == "" {
		cfg.Client.VersionedDir = DefaultVersionedDir
	}

	if cfg.Client.TransientDir == "" {
		cfg.Client.TransientDir = DefaultTransientDir
	}

	if cfg.Client.Parallelism == 0 {
		cfg.Client.Parallelism = DefaultParallelism
	}

	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
}

// Validate resolves paths and checks the configuration
func (c *Config) Validate() error {
	if c.ModuleDir == "" {
		return fmt.Errorf("module directory not specified")
	}

	abs, err := filepath.Abs(c.ModuleDir)
	if err != nil {
		return fmt.Errorf("invalid module directory: %v", err)
	}

	c.ModuleDir = abs

	if c.Name == "" {
		c.Name = filepath.Base(abs)
	}

	if c.CacheDir != "" {
		c.CacheDir = c.resolve(c.CacheDir)
	}

	if c.Extension != "" && !strings.HasPrefix(c.Extension, ".") {
		c.Extension = "." + c.Extension
	}

	if err := ValidateStruct(c); err != nil {
		return err
	}

	if c.Backend == BackendS3 {
		if err := ValidateStruct(&c.S3); err != nil {
			return fmt.Errorf("invalid s3 cache backend: %w", err)
		}
	}

	return nil
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(c.ModuleDir, path)
}

// WorkPath returns the absolute work directory
func (c *Config) WorkPath() string {
	return c.resolve(c.WorkDir)
}

// LauncherPath returns the absolute directory holding launcher artifacts
func (c *Config) LauncherPath() string {
	return filepath.Join(c.WorkPath(), c.Server.LauncherDir)
}

// SentinelPath returns the server phase sentinel file
func (c *Config) SentinelPath() string {
	return filepath.Join(c.WorkPath(), SentinelFile)
}

// OutputPath returns the absolute directory the client phase generates into
func (c *Config) OutputPath() string {
	if c.Client.VersionedCode {
		return c.resolve(c.Client.VersionedDir)
	}

	return c.resolve(c.Client.TransientDir)
}

// ModulePaths resolves the upstream module references against ModuleDir
func (c *Config) ModulePaths() []string {
	paths := make([]string, 0, len(c.Client.Modules))
	for _, m := range c.Client.Modules {
		paths = append(paths, c.resolve(m))
	}

	return paths
}

// String serializes a target for fingerprinting. Options are sorted so map
// ordering never changes the result.
func (t Target) String() string {
	keys := make([]string, 0, len(t.Options))
	for k := range t.Options {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "api=%s;package=%s;client=%s", t.API, t.PackageName, t.ClientName)
	for _, k := range keys {
		fmt.Fprintf(&b, ";%s=%s", k, t.Options[k])
	}

	return b.String()
}
