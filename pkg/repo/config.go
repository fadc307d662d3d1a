package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config stores repository-local settings, read from .restack/config.toml.
type Config struct {
	User UserConfig `toml:"user"`
	Sign SignConfig `toml:"sign"`
	Pick PickConfig `toml:"pick"`
}

// UserConfig identifies the committing user.
type UserConfig struct {
	Name string `toml:"name"`
}

// SignConfig configures commit signing.
type SignConfig struct {
	Key string `toml:"key"` // path to an SSH private key; empty disables signing
}

// PickConfig configures fast cherry-pick behavior.
type PickConfig struct {
	// ReuseParentTree skips the merge entirely when a patch commit is applied
	// onto the tree it was originally based on (e.g. after a reword).
	ReuseParentTree *bool `toml:"reuse-parent-tree"`
}

// ReuseParentTreeEnabled returns the configured elision setting, defaulting
// to enabled.
func (c *Config) ReuseParentTreeEnabled() bool {
	if c.Pick.ReuseParentTree == nil {
		return true
	}
	return *c.Pick.ReuseParentTree
}

func (r *Repo) configPath() string {
	return filepath.Join(r.MetaDir, "config.toml")
}

// ReadConfig reads .restack/config.toml. Missing config returns defaults.
func (r *Repo) ReadConfig() (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(r.configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("read config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// WriteConfig atomically writes .restack/config.toml.
func (r *Repo) WriteConfig(cfg *Config) error {
	if cfg == nil {
		cfg = &Config{}
	}

	tmp, err := os.CreateTemp(r.MetaDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if err := toml.NewEncoder(tmp).Encode(cfg); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, r.configPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}

// AuthorName returns the configured user name, or a fallback identity.
func (r *Repo) AuthorName() string {
	cfg, err := r.ReadConfig()
	if err != nil || cfg.User.Name == "" {
		return "restack"
	}
	return cfg.User.Name
}
