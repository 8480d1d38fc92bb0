// Package config loads keywarden settings from defaults, an optional
// config file, and KEYWARDEN_* environment variables, in that order of
// precedence (lowest to highest).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Tool and behavior defaults.
const (
	DefaultGPGBin    = "gpg"
	DefaultStoreBin  = "apt-key"
	DefaultSearchBin = "grep"

	// InspectorGPG extracts identifiers via the external gpg tool.
	InspectorGPG = "gpg"
	// InspectorNative extracts identifiers in-process.
	InspectorNative = "native"
)

// Settings is the resolved keywarden configuration.
type Settings struct {
	GPGBin       string        `mapstructure:"gpg_bin"`
	StoreBin     string        `mapstructure:"store_bin"`
	SearchBin    string        `mapstructure:"search_bin"`
	Inspector    string        `mapstructure:"inspector"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	Audit        bool          `mapstructure:"audit"`
	StateDir     string        `mapstructure:"state_dir"`
	Debug        bool          `mapstructure:"debug"`
}

// Load resolves settings. cfgFile, when non-empty, names an explicit
// config file; otherwise keywarden.yaml is searched for in the standard
// locations. A missing config file is not an error.
func Load(cfgFile string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("gpg_bin", DefaultGPGBin)
	v.SetDefault("store_bin", DefaultStoreBin)
	v.SetDefault("search_bin", DefaultSearchBin)
	v.SetDefault("inspector", InspectorGPG)
	v.SetDefault("fetch_timeout", time.Duration(0))
	v.SetDefault("audit", true)
	v.SetDefault("state_dir", defaultStateDir())
	v.SetDefault("debug", false)

	v.SetEnvPrefix("KEYWARDEN")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("keywarden")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "keywarden"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if s.Inspector != InspectorGPG && s.Inspector != InspectorNative {
		return nil, fmt.Errorf("inspector must be %q or %q, got %q", InspectorGPG, InspectorNative, s.Inspector)
	}

	return &s, nil
}

// RequiredTools returns the executables a reconciliation with these
// settings will invoke. The native inspector never runs gpg, so it is
// not required then.
func (s *Settings) RequiredTools() []string {
	tools := []string{s.StoreBin, s.SearchBin}
	if s.Inspector == InspectorGPG {
		tools = append(tools, s.GPGBin)
	}
	return tools
}

// UsesDefaultStore reports whether the trust-store tool was left at
// its apt default. The platform guard only applies then.
func (s *Settings) UsesDefaultStore() bool {
	return s.StoreBin == DefaultStoreBin
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "keywarden")
	}
	return filepath.Join(home, ".local", "state", "keywarden")
}

// String renders the settings for debug logging, one field per pair.
func (s *Settings) String() string {
	return strings.Join([]string{
		"gpg_bin=" + s.GPGBin,
		"store_bin=" + s.StoreBin,
		"search_bin=" + s.SearchBin,
		"inspector=" + s.Inspector,
		"fetch_timeout=" + s.FetchTimeout.String(),
		fmt.Sprintf("audit=%t", s.Audit),
		"state_dir=" + s.StateDir,
	}, " ")
}
