package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/Mengjie-s/CA2UN/internal/model"
	"github.com/Mengjie-s/CA2UN/internal/safetensors"
)

func infoCmd() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Print the architecture summary and checkpoint contents",
		Flags: append(commonModelFlags(), loggingFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyModelConfig(cmd, LoadConfig())

			cfg, err := loadArch()
			if err != nil {
				return err
			}
			m, err := model.New(cfg)
			if err != nil {
				return err
			}
			fmt.Printf("bands:        %d\n", cfg.Bands)
			fmt.Printf("step:         %d\n", cfg.Step)
			fmt.Printf("dim:          %d\n", cfg.Dim)
			fmt.Printf("window:       %d\n", cfg.WindowSize)
			fmt.Printf("stages:       %d (%s)\n", cfg.Stage, cfg.Sharing)
			fmt.Printf("blocks:       %v\n", cfg.NumBlocks)
			fmt.Printf("ffn:          %s\n", cfg.FFN)
			fmt.Printf("norm:         %s\n", cfg.Norm)
			fmt.Printf("parameters:   %d\n", m.NumParams())

			if checkpointPath == "" {
				return nil
			}
			f, err := safetensors.Open(checkpointPath)
			if err != nil {
				return fmt.Errorf("open checkpoint: %w", err)
			}
			defer func() { _ = f.Close() }()

			var total int
			for _, info := range f.Tensors {
				n := 1
				for _, d := range info.Shape {
					n *= d
				}
				total += n
			}
			fmt.Printf("\ncheckpoint:   %s\n", checkpointPath)
			fmt.Printf("tensors:      %d\n", len(f.Tensors))
			fmt.Printf("values:       %d\n", total)
			if total != m.NumParams() {
				fmt.Printf("warning:      checkpoint does not match this architecture\n")
			}
			return nil
		},
	}
}
