package util

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Configuration carries everything the host wires into a loader realm.
// Flags win over the config file; the file fills in what flags left unset.
type Configuration struct {
	Version   string `toml:"-"`
	BuildDate string `toml:"-"`
	Commit    string `toml:"-"`

	RootPath string `toml:"root"`
	LodeHome string `toml:"home"`
	StoreDSN string `toml:"store"` // sqlite3:, mysql: or postgres: DSN; empty = filesystem
	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`
	Trace    bool   `toml:"trace"`
}

// LoadConfiguration reads a TOML config file into cfg, keeping any values
// already set by flags.
func LoadConfiguration(path string, cfg *Configuration) error {
	file := Configuration{}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if cfg.RootPath == "" || cfg.RootPath == "." {
		if file.RootPath != "" {
			cfg.RootPath = file.RootPath
		}
	}
	if cfg.LodeHome == "" {
		cfg.LodeHome = file.LodeHome
	}
	if cfg.StoreDSN == "" {
		cfg.StoreDSN = file.StoreDSN
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = file.LogLevel
	}
	if cfg.LogFile == "" {
		cfg.LogFile = file.LogFile
	}
	if file.Trace {
		cfg.Trace = true
	}
	return nil
}
