package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileSystem abstracts the file lookups the loader performs.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// OSFileSystem resolves files against the real filesystem.
type OSFileSystem struct{}

// Exists reports whether path can be stat'ed.
func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadEnv loads a dotenv file without overriding variables already set.
func (OSFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// Resolver finds the YAML and dotenv files for a service.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths. Empty
// means nothing was found.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles returns explicit paths when given and searches the
// standard locations otherwise.
func (r *Resolver) ResolveFiles(serviceName string, o Options) ResolvedFiles {
	files := ResolvedFiles{ConfigFile: o.ConfigFile, EnvFile: o.EnvFile}
	if files.ConfigFile == "" {
		files.ConfigFile = r.first(configCandidates(serviceName))
	}
	if files.EnvFile == "" {
		files.EnvFile = r.first(envCandidates(serviceName))
	}
	return files
}

func (r *Resolver) first(paths []string) string {
	for _, p := range paths {
		if r.FileSystem.Exists(p) {
			return p
		}
	}
	return ""
}

func configCandidates(serviceName string) []string {
	return []string{
		filepath.Join("cmd", serviceName, "config.yml"),
		filepath.Join("..", "cmd", serviceName, "config.yml"),
		"config.yml",
		filepath.Join("/etc", serviceName, "config.yml"),
	}
}

func envCandidates(serviceName string) []string {
	return []string{
		filepath.Join("cmd", serviceName, ".env"),
		".env." + serviceName,
		".env",
	}
}

// Options holds the loader's dependencies and overrides.
type Options struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
	Defaults   map[string]any
}

// Option configures Load.
type Option func(*Options)

// WithFileSystem sets a custom filesystem for file resolution.
func WithFileSystem(fs FileSystem) Option {
	return func(o *Options) { o.FileSystem = fs }
}

// WithConfigFile sets an explicit YAML config path.
func WithConfigFile(path string) Option {
	return func(o *Options) { o.ConfigFile = path }
}

// WithEnvFile sets an explicit dotenv path.
func WithEnvFile(path string) Option {
	return func(o *Options) { o.EnvFile = path }
}

// WithDefaults registers default values keyed by dotted path
// ("session.idle_timeout"). Every defaulted key can also be overridden
// from the environment.
func WithDefaults(defaults map[string]any) Option {
	return func(o *Options) { o.Defaults = defaults }
}

// Load reads configuration for serviceName into cfg.
//
// Precedence, lowest first: defaults, the YAML file, the dotenv file,
// process environment. A key such as session.idle_timeout is read from
// SESSION_IDLE_TIMEOUT. A missing config file is not an error; a
// malformed one is.
func Load(serviceName string, cfg any, opts ...Option) (ResolvedFiles, error) {
	o := Options{FileSystem: OSFileSystem{}}
	for _, opt := range opts {
		opt(&o)
	}

	resolver := &Resolver{FileSystem: o.FileSystem}
	files := resolver.ResolveFiles(serviceName, o)

	v := viper.New()
	for key, value := range o.Defaults {
		v.SetDefault(key, value)
	}

	if files.ConfigFile != "" && o.FileSystem.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return files, fmt.Errorf("config: read %s: %w", files.ConfigFile, err)
		}
	} else {
		files.ConfigFile = ""
	}

	if files.EnvFile != "" && o.FileSystem.Exists(files.EnvFile) {
		if err := o.FileSystem.LoadEnv(files.EnvFile); err != nil {
			return files, fmt.Errorf("config: load %s: %w", files.EnvFile, err)
		}
	} else {
		files.EnvFile = ""
	}

	bindEnv(v)

	if err := v.Unmarshal(cfg); err != nil {
		return files, fmt.Errorf("config: unmarshal %s: %w", serviceName, err)
	}
	return files, nil
}

// bindEnv binds every known key to its upper-snake environment name.
func bindEnv(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		_ = v.BindEnv(key, EnvKey(key))
	}
}

// EnvKey maps a dotted config key to its environment variable name.
func EnvKey(key string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}
