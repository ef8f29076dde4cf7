package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:    "tunedeck",
		Usage:   "Self-hosted music library with playlists",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "./config.toml",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			createAdminCommand(),
			reconcileCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logrus.Fatalf("application error: %v", err)
	}
}
