package config

import (
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "macroscope.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "macroscope.yml"

// LoadFromDir loads a ProjectConfig from the given directory.
// It looks for macroscope.yaml or macroscope.yml in the directory.
// Without a config file the defaults are returned.
func LoadFromDir(dir string) (*ProjectConfig, error) {
	var cfg ProjectConfig

	if configPath := FindConfigFile(dir); configPath != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
		if err := k.Unmarshal("", &cfg); err != nil {
			return nil, err
		}
	}

	cfg.ApplyDefaults()
	ResolveEnginePaths(&cfg.Engine, dir)
	return &cfg, nil
}

// FindConfigFile finds the config file in the given directory.
// Returns empty string if not found.
func FindConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// FindProjectRoot walks up from the given directory to find a directory
// containing macroscope.yaml or macroscope.yml.
// Returns empty string if not found.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for {
		if FindConfigFile(dir) != "" {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return ""
		}
		dir = parent
	}
}
