package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/Mengjie-s/CA2UN/internal/model"
)

func initCmd() *cli.Command {
	var outputPath string

	return &cli.Command{
		Name:  "init",
		Usage: "Create a randomly initialised checkpoint for the configured architecture",
		Flags: append(append(commonModelFlags(), loggingFlags()...),
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "checkpoint path to write",
				Required:    true,
				Destination: &outputPath,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyModelConfig(cmd, LoadConfig())
			log := buildLogger()

			cfg, err := loadArch()
			if err != nil {
				return err
			}
			m, err := model.New(cfg)
			if err != nil {
				return err
			}
			m.InitWeights(initSeed)
			if err := m.SaveCheckpoint(outputPath); err != nil {
				return fmt.Errorf("write checkpoint: %w", err)
			}
			log.Info("checkpoint written",
				"path", outputPath,
				"params", m.NumParams(),
				"stages", cfg.Stage,
				"seed", initSeed)
			return nil
		},
	}
}
