package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".giztoy"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
	// AppName is the directory name under DefaultBaseDir
	AppName = "speechio"
)

// Config is the speechio configuration file: a set of named contexts,
// one of which is current.
type Config struct {
	// CurrentContext is the name of the currently active context
	CurrentContext string `yaml:"current_context,omitempty"`

	// Contexts is a map of context name to context configuration
	Contexts map[string]*Context `yaml:"contexts,omitempty"`

	configPath string
}

// Context holds the credentials and defaults for one speech account.
type Context struct {
	Name string `yaml:"name"`

	AppID string `yaml:"app_id"`
	Token string `yaml:"token"`

	// Secret switches recognition to HMAC256 signature auth.
	Secret string `yaml:"secret,omitempty"`

	// Cluster is the TTS cluster; ASRCluster the recognition cluster.
	Cluster    string `yaml:"cluster,omitempty"`
	ASRCluster string `yaml:"asr_cluster,omitempty"`

	// WSURL overrides wss://openspeech.bytedance.com.
	WSURL string `yaml:"ws_url,omitempty"`

	// Timeout is the handshake timeout in seconds.
	Timeout int `yaml:"timeout,omitempty"`

	MaxSessions int    `yaml:"max_sessions,omitempty"`
	Voice       string `yaml:"voice,omitempty"`
	SampleRate  int    `yaml:"sample_rate,omitempty"`

	Cache *CacheConfig `yaml:"cache,omitempty"`
}

// CacheConfig selects where synthesized speech is cached.
type CacheConfig struct {
	// Disabled turns the speech cache off.
	Disabled bool `yaml:"disabled,omitempty"`

	// Dir holds audio artifacts. Default: ~/.giztoy/speechio/cache.
	Dir string `yaml:"dir,omitempty"`

	// Index is the badger directory, or "memory". Default:
	// ~/.giztoy/speechio/data/index.
	Index string `yaml:"index,omitempty"`

	// S3 stores artifacts in a bucket instead of Dir.
	S3 *S3Config `yaml:"s3,omitempty"`
}

// S3Config addresses an S3-compatible bucket.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// HandshakeTimeout returns Timeout as a duration, or 0.
func (ctx *Context) HandshakeTimeout() time.Duration {
	return time.Duration(ctx.Timeout) * time.Second
}

// Validate reports missing credentials.
func (ctx *Context) Validate() error {
	var missing []string
	if ctx.AppID == "" {
		missing = append(missing, "app_id")
	}
	if ctx.Token == "" {
		missing = append(missing, "token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("context %q: missing %s", ctx.Name, strings.Join(missing, ", "))
	}
	return nil
}

// LoadConfig loads or creates ~/.giztoy/speechio/config.yaml.
func LoadConfig() (*Config, error) {
	return LoadConfigWithPath("")
}

// LoadConfigWithPath loads configuration from a custom path. An empty path
// uses the default location. A missing file yields an empty config that is
// written on the first Save.
func LoadConfigWithPath(customPath string) (*Config, error) {
	configPath := customPath
	if configPath == "" {
		paths, err := NewPaths(AppName)
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = paths.ConfigFile()
	}

	cfg := &Config{
		Contexts:   make(map[string]*Context),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	for name, ctx := range cfg.Contexts {
		if ctx == nil {
			ctx = &Context{}
			cfg.Contexts[name] = ctx
		}
		ctx.Name = name
	}
	cfg.configPath = configPath
	return cfg, nil
}

// Save writes the configuration, creating its directory.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// AddContext adds or replaces a context. The first context added becomes
// current.
func (c *Config) AddContext(name string, ctx *Context) error {
	ctx.Name = name
	c.Contexts[name] = ctx
	if c.CurrentContext == "" {
		c.CurrentContext = name
	}
	return c.Save()
}

// DeleteContext removes a context
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext sets the current context
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// ResolveContext returns the named context, or the current one when name
// is empty.
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name == "" {
		name = c.CurrentContext
	}
	if name == "" {
		return nil, errors.New("no current context set")
	}
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// ListContexts returns all context names, sorted.
func (c *Config) ListContexts() []string {
	names := make([]string, 0, len(c.Contexts))
	for name := range c.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// MaskAPIKey masks the API key for display
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
