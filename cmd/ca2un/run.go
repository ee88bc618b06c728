package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/Mengjie-s/CA2UN/internal/metrics"
	"github.com/Mengjie-s/CA2UN/internal/safetensors"
)

func runCmd() *cli.Command {
	var (
		inputPath  string
		outputPath string
		withStages bool
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Reconstruct a spectral cube from a measurement file",
		Flags: append(append(commonModelFlags(), loggingFlags()...),
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "safetensors file holding 'measurement' and 'mask' (optionally 'cube' as ground truth)",
				Required:    true,
				Destination: &inputPath,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "safetensors file to write the reconstructed cube to",
				Required:    true,
				Destination: &outputPath,
			},
			&cli.BoolFlag{
				Name:        "stages",
				Usage:       "also write every intermediate stage estimate",
				Destination: &withStages,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyModelConfig(cmd, LoadConfig())
			log := buildLogger()

			m, err := loadModel(log)
			if err != nil {
				return err
			}

			in, err := safetensors.Open(inputPath)
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer func() { _ = in.Close() }()

			y, err := readTensor(in, "measurement")
			if err != nil {
				return err
			}
			phi, err := readTensor(in, "mask")
			if err != nil {
				return err
			}

			start := time.Now()
			stages, err := m.ReconstructStages(y, phi)
			if err != nil {
				return err
			}
			cube := stages[len(stages)-1]
			log.Info("reconstruction finished",
				"batch", cube.N,
				"bands", cube.C,
				"height", cube.H,
				"width", cube.W,
				"stages", len(stages),
				"duration", time.Since(start))

			if _, ok := in.Tensor("cube"); ok {
				truth, err := readTensor(in, "cube")
				if err != nil {
					return err
				}
				if truth.SameShape(cube) {
					log.Info("reconstruction quality",
						"psnr_db", fmt.Sprintf("%.2f", metrics.PSNR(truth, cube, 1)),
						"rmse", fmt.Sprintf("%.5f", metrics.RMSE(truth, cube)),
						"sam_rad", fmt.Sprintf("%.4f", metrics.SAM(truth, cube)))
				} else {
					log.Warn("ground truth shape mismatch, skipping metrics",
						"truth", truth.Shape(), "cube", cube.Shape())
				}
			}

			out := []safetensors.NamedTensor{namedTensor("cube", cube)}
			if withStages {
				for i, st := range stages {
					out = append(out, namedTensor(fmt.Sprintf("stage.%d", i), st))
				}
			}
			if err := safetensors.WriteFloat32(outputPath, out); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			log.Info("output written", "path", outputPath)
			return nil
		},
	}
}
