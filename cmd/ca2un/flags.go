package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/Mengjie-s/CA2UN/internal/logger"
	"github.com/Mengjie-s/CA2UN/internal/model"
)

var (
	checkpointPath string
	archPath       string
	initSeed       int64
	logLevel       string
	logFormat      string
	debug          bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "checkpoint",
			Aliases:     []string{"m"},
			Usage:       "path to .safetensors checkpoint",
			Destination: &checkpointPath,
		},
		&cli.StringFlag{
			Name:        "arch",
			Aliases:     []string{"a"},
			Usage:       "path to architecture YAML (defaults to the reference configuration)",
			Destination: &archPath,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "weight initialisation seed when no checkpoint is given",
			Value:       0,
			Destination: &initSeed,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func buildLogger() logger.Logger {
	level := logger.ParseLevel(logLevel)
	if debug {
		level = slog.LevelDebug
	}
	switch logFormat {
	case "json":
		return logger.JSON(os.Stderr, level)
	case "text":
		return logger.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	default:
		return logger.Pretty(os.Stderr, level)
	}
}

// loadArch returns the architecture configuration: the reference config,
// overridden by the --arch YAML file when given.
func loadArch() (model.Config, error) {
	cfg := model.DefaultConfig()
	if archPath == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(archPath)
	if err != nil {
		return cfg, fmt.Errorf("read architecture file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse architecture file: %w", err)
	}
	return cfg, nil
}

// loadModel builds the model from --arch and fills its weights from
// --checkpoint, or from the seed when no checkpoint is given.
func loadModel(log logger.Logger) (*model.Model, error) {
	cfg, err := loadArch()
	if err != nil {
		return nil, err
	}
	m, err := model.New(cfg)
	if err != nil {
		return nil, err
	}
	if checkpointPath != "" {
		if err := m.LoadCheckpoint(checkpointPath); err != nil {
			return nil, err
		}
		log.Info("checkpoint loaded", "path", checkpointPath, "params", m.NumParams())
	} else {
		m.InitWeights(initSeed)
		log.Warn("no checkpoint given, using randomly initialised weights", "seed", initSeed)
	}
	return m, nil
}
