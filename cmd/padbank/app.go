package main

import (
	"context"
	"os"
	"regexp"

	"github.com/mattn/go-isatty"
	"github.com/mdouchement/logger"
	"github.com/mdouchement/padbank/internal/audio"
	"github.com/mdouchement/padbank/internal/blobstore"
	"github.com/mdouchement/padbank/internal/config"
	"github.com/mdouchement/padbank/internal/database"
	"github.com/mdouchement/padbank/internal/directory"
	"github.com/mdouchement/padbank/internal/service"
	"github.com/mdouchement/padbank/internal/storage"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// An app holds the components shared by the commands.
type app struct {
	config    *config.Config
	log       logger.Logger
	db        database.Client
	blobs     *blobstore.Store
	directory *directory.Directory
	service   *service.Service
	storage   storage.Backend
}

func load() (*config.Config, logger.Logger, error) {
	cfg, _, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, newLogger(cfg.Logging), nil
}

// open loads the configuration and wires the components for a command run
// by the configured operator. close must be called once done.
func open(ctx context.Context) (*app, error) {
	return wire(ctx, func(cfg *config.Config) service.Identity {
		return service.StaticIdentity{ID: cfg.User}
	})
}

// openServer wires the components for the web server, where the identity
// only comes from the requests.
func openServer(ctx context.Context) (*app, error) {
	return wire(ctx, func(*config.Config) service.Identity {
		return service.ContextIdentity{}
	})
}

func wire(ctx context.Context, identity func(*config.Config) service.Identity) (*app, error) {
	cfg, log, err := load()
	if err != nil {
		return nil, err
	}

	a := &app{
		config: cfg,
		log:    log,
	}

	//

	a.db, err = database.StormOpen(cfg.Database)
	if err != nil {
		return nil, errors.Wrap(err, "could not open database")
	}

	var options []blobstore.Option
	if cfg.Transfer.QuotaCeiling > 0 {
		options = append(options, blobstore.WithCeiling(cfg.Transfer.QuotaCeiling))
	}
	a.blobs = blobstore.New(a.db, log, options...)
	a.directory = directory.New(a.db, cfg.Secret, log)

	a.service = service.New(service.Config{
		Database:       a.db,
		Blobs:          a.blobs,
		Trimmer:        audio.NewTranscoder(audio.NewFFmpeg(cfg.Transfer.FFmpeg), log),
		Identity:       identity(cfg),
		Registry:       a.directory,
		Grants:         a.directory,
		Deriver:        a.directory,
		SharedPassword: cfg.Transfer.SharedPassword,
		BatchSize:      cfg.Transfer.BatchSize,
		Logger:         log,
	})

	//

	a.storage, err = openStorage(ctx, cfg.Storage)
	if err != nil {
		a.db.Close()
		return nil, err
	}

	return a, nil
}

func (a *app) close() error {
	return a.db.Close()
}

func openStorage(ctx context.Context, c config.Storage) (storage.Backend, error) {
	switch c.Backend {
	case config.BackendSwift:
		b, err := storage.NewSwift(ctx, storage.SwiftConfig{
			AuthURL:  c.Swift.AuthURL,
			UserName: c.Swift.UserName,
			APIKey:   c.Swift.APIKey,
			Tenant:   c.Swift.Tenant,
			Domain:   c.Swift.Domain,
			Region:   c.Swift.Region,
		})
		return b, errors.Wrap(err, "could not open swift storage")
	default:
		return storage.NewFileSystem(c.Path), nil
	}
}

func newLogger(c config.Logging) logger.Logger {
	colors := c.Colors == "always"
	if c.Colors == "auto" {
		fd := os.Stderr.Fd()
		colors = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}

	log := logrus.New()
	log.SetFormatter(&logger.LogrusTextFormatter{
		DisableColors:   !colors,
		ForceColors:     colors,
		ForceFormatting: true,
		PrefixRE:        regexp.MustCompile(`^(\[.*?\])\s`),
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if level, err := logrus.ParseLevel(c.Level); err == nil {
		log.SetLevel(level)
	}
	return logger.WrapLogrus(log)
}
