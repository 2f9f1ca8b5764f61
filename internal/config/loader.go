package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	steadyerrors "github.com/steadyops/steady/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// Load reads a desired-state document from disk, applies defaults, validates
// it, and returns the resulting model. The format is selected by extension:
// .toml decodes as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, steadyerrors.NewParseError(path, 0, err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, steadyerrors.NewParseError(path, tomlLine(err), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, steadyerrors.NewParseError(path, yamlLine(err), err)
		}
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills optional fields after decode so YAML and TOML
// documents behave identically.
func applyDefaults(cfg *Config) {
	if cfg.Packages.System != nil && cfg.Packages.System.Manager == "" {
		cfg.Packages.System.Manager = "auto"
	}

	for i := range cfg.Services.Custom {
		if cfg.Services.Custom[i].Scope == "" {
			cfg.Services.Custom[i].Scope = "user"
		}
	}
	for i := range cfg.Services.Autostart {
		app := &cfg.Services.Autostart[i]
		if app.Command == "" {
			app.Command = app.Name
		}
		if app.Restart == "" {
			app.Restart = "never"
		}
	}
}

func yamlLine(err error) int {
	if err == nil {
		return 0
	}
	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	if _, scanErr := fmt.Sscanf(matches[1], "%d", &line); scanErr != nil {
		return 0
	}
	return line
}

func tomlLine(err error) int {
	var decodeErr *toml.DecodeError
	if errors.As(err, &decodeErr) {
		line, _ := decodeErr.Position()
		return line
	}
	return 0
}
