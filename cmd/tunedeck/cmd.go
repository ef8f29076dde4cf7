package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tunedeck/internal/auth"
	"tunedeck/internal/config"
	"tunedeck/internal/server"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

// serveCommand runs the HTTP API until interrupted
func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Start the HTTP server",
		Action: serve,
	}
}

// createAdminCommand seeds an administrator account
func createAdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-admin",
		Usage: "Create an administrator account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "username",
				Usage: "Display name of the admin",
				Value: "admin",
			},
			&cli.StringFlag{
				Name:     "email",
				Usage:    "Login email of the admin",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "password",
				Usage: "Password (generated when omitted)",
			},
		},
		Action: createAdmin,
	}
}

// reconcileCommand compares song files on disk with the catalog
func reconcileCommand() *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "Report song files and records that disagree",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "prune",
				Usage: "Remove files that no song record points at",
			},
		},
		Action: reconcile,
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	authService, err := a.authService()
	if err != nil {
		return fmt.Errorf("failed to initialize auth (set %s): %w", config.EnvJWTSecret, err)
	}

	srv := server.New(a.cfg, server.Deps{
		Auth:      authService,
		Catalog:   a.catalog,
		Playlists: a.playlists,
		Store:     a.store,
		DB:        a.db,
		Logger:    a.logger,
	})

	return srv.Start(ctx)
}

func createAdmin(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	authService, err := a.authService()
	if err != nil {
		return fmt.Errorf("failed to initialize auth: %w", err)
	}

	password := cmd.String("password")
	generated := password == ""
	if generated {
		password, err = auth.GenerateRandomPassword(16)
		if err != nil {
			return fmt.Errorf("failed to generate password: %w", err)
		}
	}

	user, err := authService.CreateAdmin(ctx, cmd.String("username"), cmd.String("email"), password)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	a.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("Admin account created")

	if generated {
		fmt.Println("========================================")
		fmt.Println("ADMIN ACCOUNT CREATED")
		fmt.Printf("Email:    %s\n", user.Email)
		fmt.Printf("Password: %s\n", password)
		fmt.Println("Store this password securely, it will not be shown again.")
		fmt.Println("========================================")
	}
	return nil
}

func reconcile(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.catalog.Reconcile(ctx, cmd.Bool("prune"))
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
