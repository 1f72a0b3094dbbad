package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	cmd.Flags().BoolP("silent", "s", false, "Silent mode")
	cmd.Flags().Bool("no-cache", false, "Disable cache")
	cmd.Flags().String("cache-dir", "", "Cache directory")
	cmd.Flags().IntP("parallelism", "j", DefaultParallelism, "Parallelism")
	cmd.Flags().Duration("timeout", DefaultTimeout, "Timeout")
	return cmd
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	assert.NotNil(t, loader)
	assert.Same(t, viper.GetViper(), loader.v)

	moduleLoader := NewModuleLoader()
	assert.NotSame(t, viper.GetViper(), moduleLoader.v)
}

func TestLoader_SetupViperDefaults(t *testing.T) {
	loader := NewModuleLoader()
	loader.setupViperDefaults()

	assert.Equal(t, DefaultGeneratorCommand, loader.v.GetString("generator.command"))
	assert.Equal(t, DefaultBackend, loader.v.GetString("backend"))
	assert.Equal(t, true, loader.v.GetBool("client.versioned_code"))
	assert.Equal(t, DefaultTimeout, loader.v.GetDuration("client.timeout"))
	assert.Equal(t, false, loader.v.GetBool("silent"))
	assert.Equal(t, false, loader.v.GetBool("verbose"))
}

func TestLoader_LoadGlobalConfig(t *testing.T) {
	tempDir := t.TempDir()
	globalDir := filepath.Join(tempDir, "gqlpipe")
	require.NoError(t, os.Mkdir(globalDir, 0o755))
	t.Setenv("APPDATA", tempDir)

	t.Run("loads yaml config", func(t *testing.T) {
		configPath := filepath.Join(globalDir, "config.yml")
		configContent := `generator:
  command: "/opt/gen"
  version: "1.0.0"
verbose: true`
		require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))
		defer os.Remove(configPath)

		loader := NewModuleLoader()
		loader.loadGlobalConfig()

		assert.Equal(t, "/opt/gen", loader.v.GetString("generator.command"))
		assert.Equal(t, "1.0.0", loader.v.GetString("generator.version"))
		assert.Equal(t, true, loader.v.GetBool("verbose"))
	})

	t.Run("loads json config", func(t *testing.T) {
		configPath := filepath.Join(globalDir, "config.json")
		configContent := `{
  "generator": {"command": "/json/gen"},
  "backend": "fs"
}`
		require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))
		defer os.Remove(configPath)

		loader := NewModuleLoader()
		loader.loadGlobalConfig()

		assert.Equal(t, "/json/gen", loader.v.GetString("generator.command"))
		assert.Equal(t, "fs", loader.v.GetString("backend"))
	})

	t.Run("handles missing config gracefully", func(t *testing.T) {
		t.Setenv("APPDATA", filepath.Join(tempDir, "nowhere"))

		loader := NewModuleLoader()
		assert.NotPanics(t, func() {
			loader.loadGlobalConfig()
		})
		assert.Empty(t, loader.v.GetString("generator.command"))
	})
}

func TestLoader_LoadLocalConfig(t *testing.T) {
	t.Run("loads module config", func(t *testing.T) {
		moduleDir := t.TempDir()
		configContent := `name: backend
server:
  apis:
    - api: schema.graphql
      package_name: api
      client_name: ApiClient`
		require.NoError(t, os.WriteFile(filepath.Join(moduleDir, ".gqlpipe.yml"), []byte(configContent), 0o644))

		loader := NewModuleLoader()
		loader.loadLocalConfig(moduleDir)

		assert.Equal(t, "backend", loader.v.GetString("name"))

		var targets []Target
		require.NoError(t, loader.v.UnmarshalKey("server.apis", &targets))
		require.Len(t, targets, 1)
		assert.Equal(t, "ApiClient", targets[0].ClientName)
	})

	t.Run("walks up directory tree to find config", func(t *testing.T) {
		root := t.TempDir()
		moduleDir := filepath.Join(root, "services", "web")
		require.NoError(t, os.MkdirAll(moduleDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, ".gqlpipe.yml"), []byte(`extension: ".ts"`), 0o644))

		loader := NewModuleLoader()
		loader.loadLocalConfig(moduleDir)

		assert.Equal(t, ".ts", loader.v.GetString("extension"))
	})

	t.Run("local config overrides global", func(t *testing.T) {
		tempDir := t.TempDir()
		globalDir := filepath.Join(tempDir, "gqlpipe")
		require.NoError(t, os.Mkdir(globalDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(globalDir, "config.yml"), []byte("backend: fs\nextension: .kt"), 0o644))
		t.Setenv("APPDATA", tempDir)

		moduleDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(moduleDir, ".gqlpipe.yml"), []byte("extension: .go"), 0o644))

		loader := NewModuleLoader()
		loader.loadGlobalConfig()
		loader.loadLocalConfig(moduleDir)

		assert.Equal(t, "fs", loader.v.GetString("backend"), "global value survives")
		assert.Equal(t, ".go", loader.v.GetString("extension"), "local value wins")
	})
}

func TestLoader_LoadDotEnv(t *testing.T) {
	moduleDir := t.TempDir()
	env := "GQLPIPE_S3_ACCESS_KEY=from-dotenv\nGQLPIPE_BACKEND=s3\nUNRELATED=1\n"
	require.NoError(t, os.WriteFile(filepath.Join(moduleDir, ".env"), []byte(env), 0o644))

	loader := NewModuleLoader()
	loader.loadDotEnv(moduleDir)

	assert.Equal(t, "from-dotenv", loader.v.GetString("s3.access_key"))
	assert.Equal(t, "s3", loader.v.GetString("backend"))
	_, set := os.LookupEnv("GQLPIPE_S3_ACCESS_KEY")
	assert.False(t, set, "process environment is not modified")
}

func TestLoader_BindEnv(t *testing.T) {
	t.Setenv("GQLPIPE_GENERATOR_VERSION", "9.9.9")

	loader := NewModuleLoader()
	loader.bindEnv()

	assert.Equal(t, "9.9.9", loader.v.GetString("generator.version"))
}

func TestLoader_BindCommandFlags(t *testing.T) {
	cmd := newTestCommand()
	require.NoError(t, cmd.Flags().Set("verbose", "true"))
	require.NoError(t, cmd.Flags().Set("no-cache", "true"))
	require.NoError(t, cmd.Flags().Set("parallelism", "3"))
	require.NoError(t, cmd.Flags().Set("timeout", "45s"))

	loader := NewModuleLoader()
	loader.bindCommandFlags(cmd)

	assert.Equal(t, true, loader.v.GetBool("verbose"))
	assert.Equal(t, true, loader.v.GetBool("no_cache"))
	assert.Equal(t, 3, loader.v.GetInt("client.parallelism"))
	assert.Equal(t, 45*time.Second, loader.v.GetDuration("client.timeout"))
}

func TestLoader_LoadForBuild_Integration(t *testing.T) {
	t.Run("hierarchical config loading - flags override env override local override global", func(t *testing.T) {
		tempDir := t.TempDir()
		globalDir := filepath.Join(tempDir, "gqlpipe")
		require.NoError(t, os.Mkdir(globalDir, 0o755))

		globalContent := `generator:
  command: /global/gen
  version: "1.0"
client:
  parallelism: 2
verbose: false`
		require.NoError(t, os.WriteFile(filepath.Join(globalDir, "config.yml"), []byte(globalContent), 0o644))
		t.Setenv("APPDATA", tempDir)

		moduleDir := t.TempDir()
		localContent := `name: web
client:
  modules: ["../server"]
  parallelism: 3
generator:
  version: "2.0"`
		require.NoError(t, os.WriteFile(filepath.Join(moduleDir, ".gqlpipe.yml"), []byte(localContent), 0o644))
		t.Setenv("GQLPIPE_GENERATOR_VERSION", "3.0")

		cmd := newTestCommand()
		require.NoError(t, cmd.Flags().Set("parallelism", "8"))

		loader := NewModuleLoader()
		cfg, err := loader.LoadForBuild(cmd, []string{moduleDir})
		require.NoError(t, err)

		assert.Equal(t, moduleDir, cfg.ModuleDir)
		assert.Equal(t, "web", cfg.Name)
		assert.Equal(t, "/global/gen", cfg.Generator.Command, "global value is the base")
		assert.Equal(t, "3.0", cfg.Generator.Version, "environment overrides the module config")
		assert.Equal(t, 8, cfg.Client.Parallelism, "flag value wins")
		assert.Equal(t, []string{"../server"}, cfg.Client.Modules)
	})
}

func TestLoadModule_Isolated(t *testing.T) {
	t.Setenv("APPDATA", t.TempDir())

	a := t.TempDir()
	b := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(a, ".gqlpipe.yml"), []byte("name: alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(b, ".gqlpipe.yml"), []byte("name: beta"), 0o644))

	cfgA, err := LoadModule(a)
	require.NoError(t, err)
	cfgB, err := LoadModule(b)
	require.NoError(t, err)

	assert.Equal(t, "alpha", cfgA.Name)
	assert.Equal(t, "beta", cfgB.Name)
}

func TestModuleDirFromArgs(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	dir, err := ModuleDirFromArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, cwd, dir)

	dir, err = ModuleDirFromArgs([]string{"sub"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "sub"), dir)
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "GQLPIPE_S3_ACCESS_KEY", EnvName("s3.access_key"))
	assert.Equal(t, "GQLPIPE_NO_CACHE", EnvName("no_cache"))
}
