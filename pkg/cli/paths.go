package cli

import (
	"os"
	"path/filepath"
)

// Paths provides access to the ~/.giztoy/<app> directory structure
type Paths struct {
	// AppName is the application name
	AppName string

	// HomeDir is the user's home directory
	HomeDir string
}

// NewPaths creates a new Paths instance for the given app
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{
		AppName: appName,
		HomeDir: home,
	}, nil
}

// BaseDir returns the base giztoy directory (~/.giztoy)
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// AppDir returns the app-specific directory (~/.giztoy/<app>)
func (p *Paths) AppDir() string {
	return filepath.Join(p.BaseDir(), p.AppName)
}

// ConfigFile returns the config file path (~/.giztoy/<app>/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// CacheDir returns the speech artifact directory (~/.giztoy/<app>/cache)
func (p *Paths) CacheDir() string {
	return filepath.Join(p.AppDir(), "cache")
}

// IndexDir returns the badger cache index directory
// (~/.giztoy/<app>/data/index)
func (p *Paths) IndexDir() string {
	return filepath.Join(p.AppDir(), "data", "index")
}

// CacheLocations returns the artifact and index locations for cfg,
// filling in the defaults.
func (p *Paths) CacheLocations(cfg *CacheConfig) (dir, index string) {
	dir, index = p.CacheDir(), p.IndexDir()
	if cfg == nil {
		return dir, index
	}
	if cfg.Dir != "" {
		dir = cfg.Dir
	}
	if cfg.Index != "" {
		index = cfg.Index
	}
	return dir, index
}
