package main

import (
	"context"
	"fmt"
	"io"

	"tunedeck/internal/auth"
	"tunedeck/internal/cache"
	"tunedeck/internal/catalog"
	"tunedeck/internal/config"
	"tunedeck/internal/database"
	"tunedeck/internal/logging"
	"tunedeck/internal/media"
	"tunedeck/internal/metadata"
	"tunedeck/internal/mongostore"
	"tunedeck/internal/playlist"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

// backend is satisfied by both the sqlite and the mongo store
type backend interface {
	catalog.SongRepository
	playlist.Repository
	auth.UserRepository
	Ping(ctx context.Context) error
	Close() error
}

// app holds everything a command needs, built from the config file
type app struct {
	cfg       *config.Config
	logger    *logrus.Logger
	logCloser io.Closer
	db        backend
	store     *media.Store
	catalog   *catalog.Service
	playlists *playlist.Service
}

func newApp(ctx context.Context, cmd *cli.Command) (*app, error) {
	cfg, err := config.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	db, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	store, err := media.NewStore(media.Options{
		Dir:            cfg.SongsDir(),
		PublicPrefix:   cfg.SongsURLPrefix(),
		MaxBytes:       cfg.MaxUploadBytes(),
		AllowedFormats: cfg.Media.AllowedFormats,
	}, logger)
	if err != nil {
		db.Close()
		logCloser.Close()
		return nil, err
	}

	songs := catalog.NewService(db, store, metadata.NewProber(logger), cache.NewSongCache(cfg.CacheTTL()), logger)

	return &app{
		cfg:       cfg,
		logger:    logger,
		logCloser: logCloser,
		db:        db,
		store:     store,
		catalog:   songs,
		playlists: playlist.NewService(db, songs, logger),
	}, nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (backend, error) {
	switch cfg.Database.Driver {
	case "mongo":
		db, err := mongostore.New(ctx, cfg.Database.MongoURI, cfg.Database.MongoDatabase, cfg.Database.MaxConnections, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		return db, nil
	default:
		db, err := database.NewDatabase(cfg.Database.Path, cfg.Database.MaxConnections, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return db, nil
	}
}

// authService is only built by commands that issue or check credentials
func (a *app) authService() (*auth.Service, error) {
	return auth.NewService(a.db, auth.Options{
		Secret:     []byte(a.cfg.Auth.JWTSecret),
		TokenTTL:   a.cfg.TokenTTL(),
		BcryptCost: auth.DefaultBcryptCost,
	}, a.logger)
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Failed to close database")
	}
	a.logCloser.Close()
}
