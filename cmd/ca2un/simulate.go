package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/Mengjie-s/CA2UN/internal/safetensors"
	"github.com/Mengjie-s/CA2UN/internal/sci"
)

func simulateCmd() *cli.Command {
	var (
		inputPath  string
		outputPath string
		step       int64
		noiseSigma float64
		noiseSeed  int64
	)

	return &cli.Command{
		Name:  "simulate",
		Usage: "Synthesize a sensor measurement from a ground-truth cube and mask",
		Flags: append(loggingFlags(),
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "safetensors file holding 'cube' and 'mask'",
				Required:    true,
				Destination: &inputPath,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "safetensors file to write 'measurement', 'mask' and 'cube' to",
				Required:    true,
				Destination: &outputPath,
			},
			&cli.Int64Flag{
				Name:        "step",
				Usage:       "per-band dispersion shift in pixels",
				Value:       2,
				Destination: &step,
			},
			&cli.Float64Flag{
				Name:        "noise-sigma",
				Usage:       "standard deviation of additive Gaussian measurement noise",
				Destination: &noiseSigma,
			},
			&cli.Int64Flag{
				Name:        "noise-seed",
				Usage:       "seed for the measurement noise",
				Destination: &noiseSeed,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := buildLogger()

			in, err := safetensors.Open(inputPath)
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer func() { _ = in.Close() }()

			cube, err := readTensor(in, "cube")
			if err != nil {
				return err
			}
			mask, err := readTensor(in, "mask")
			if err != nil {
				return err
			}
			wantW := cube.W + (cube.C-1)*int(step)
			if mask.W != wantW || mask.H != cube.H || mask.C != cube.C || mask.N != cube.N {
				return fmt.Errorf("mask shape %v does not match cube %v shifted by step %d",
					mask.Shape(), cube.Shape(), step)
			}

			y := sci.Synthesize(cube, mask, int(step))
			if noiseSigma > 0 {
				y = sci.AddNoise(y, noiseSigma, noiseSeed)
			}
			log.Info("measurement synthesized",
				"batch", y.N, "height", y.H, "width", y.W,
				"step", step, "noise_sigma", noiseSigma)

			err = safetensors.WriteFloat32(outputPath, []safetensors.NamedTensor{
				namedTensor("measurement", y),
				namedTensor("mask", mask),
				namedTensor("cube", cube),
			})
			if err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			log.Info("output written", "path", outputPath)
			return nil
		},
	}
}
