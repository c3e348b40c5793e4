package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML duration strings like "10s" or "250ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds the cable-tail configuration, merged from the optional
// YAML file and command-line flags. Flags win over file values.
type Config struct {
	URL            string            `yaml:"url"`
	ConnectTimeout Duration          `yaml:"connect_timeout"`
	PingTimeout    Duration          `yaml:"ping_timeout"`
	Headers        map[string]string `yaml:"headers"`
	Channel        string            `yaml:"channel"`
	Params         map[string]any    `yaml:"params"`
	ProtocolLog    string            `yaml:"protocol_log"`
}

// loadConfigFile reads a YAML configuration file.
func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// parseParam splits a key=value channel parameter argument.
func parseParam(arg string) (string, any, error) {
	key, raw, ok := strings.Cut(arg, "=")
	if !ok || key == "" {
		return "", nil, fmt.Errorf("invalid parameter %q (want key=value)", arg)
	}
	return key, parseParamValue(raw), nil
}

// parseParamValue parses a value as int, float, bool, then string.
func parseParamValue(raw string) any {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseBool(raw); err == nil {
		return v
	}
	return strings.Trim(raw, `"'`)
}

// headerFlag collects repeated -header flags into an http.Header.
type headerFlag struct {
	header http.Header
}

func (h *headerFlag) String() string { return "" }

func (h *headerFlag) Set(value string) error {
	name, val, ok := strings.Cut(value, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("invalid header %q (want \"Name: value\")", value)
	}
	if h.header == nil {
		h.header = http.Header{}
	}
	h.header.Add(strings.TrimSpace(name), strings.TrimSpace(val))
	return nil
}
