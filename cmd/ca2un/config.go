package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the user configuration file
// (~/.config/ca2un/config.yaml). Missing fields keep flag defaults.
type Config struct {
	Checkpoint    string `yaml:"checkpoint"`
	Arch          string `yaml:"arch"`
	ServerAddress string `yaml:"server_address"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ca2un", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file
// doesn't exist or doesn't parse.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// applyModelConfig applies config file defaults to the shared model
// flags when they were not set explicitly.
func applyModelConfig(c *cli.Command, cfg Config) {
	if cfg.Checkpoint != "" && !c.IsSet("checkpoint") {
		checkpointPath = cfg.Checkpoint
	}
	if cfg.Arch != "" && !c.IsSet("arch") {
		archPath = cfg.Arch
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyServeConfig additionally applies the server address default.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	applyModelConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}
