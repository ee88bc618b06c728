package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/Mengjie-s/CA2UN/internal/version"
)

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Println("ca2un " + version.String())
			if bt := version.Resolve().BuildTime; bt != "" {
				fmt.Println("built " + bt)
			}
			return nil
		},
	}
}
