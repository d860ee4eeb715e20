// Package config reads and writes the repository-local configuration file.
package config

import (
	"bytes"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/go-git/go-billy/v5"
)

// Path is the config file name, relative to the repository control
// directory.
const Path = "config"

// Core holds the [core] section.
type Core struct {
	RepositoryFormatVersion int `toml:"repositoryformatversion"`
}

// User holds the [user] section used to stamp commit authorship.
type User struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// Config is the parsed contents of a repository's config file.
type Config struct {
	Core Core `toml:"core"`
	User User `toml:"user"`
}

// Default is the configuration written by init.
func Default() Config {
	return Config{
		Core: Core{RepositoryFormatVersion: 0},
		User: User{Name: "xsgit", Email: "xsgit@localhost"},
	}
}

// Author renders the "name <email>" form used in commit metadata.
func (c Config) Author() string {
	return fmt.Sprintf("%s <%s>", c.User.Name, c.User.Email)
}

// Load reads and parses the config file under fs. A missing file yields
// Default().
func Load(fs billy.Filesystem) (Config, error) {
	f, err := fs.Open(Path)
	if err != nil {
		return Default(), nil
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return Config{}, fmt.Errorf("config: read: %w", err)
	}

	cfg := Default()
	if _, err := toml.Decode(string(raw), &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to the config file under fs.
func Save(fs billy.Filesystem, cfg Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	f, err := fs.Create(Path)
	if err != nil {
		return fmt.Errorf("config: create: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}
