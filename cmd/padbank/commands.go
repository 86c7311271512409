package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdouchement/padbank/internal/config"
	"github.com/mdouchement/padbank/internal/database"
	"github.com/mdouchement/padbank/internal/scheduler"
	"github.com/mdouchement/padbank/internal/webserver"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Init the database and write a default configuration file",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			path := configPath
			if path == "" {
				path = config.Filename
			}

			if _, err := os.Stat(path); os.IsNotExist(err) {
				f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
				if err != nil {
					return errors.Wrap(err, "could not create config")
				}
				if err = config.Encode(f, config.Default()); err != nil {
					f.Close()
					return err
				}
				if err = f.Close(); err != nil {
					return errors.Wrap(err, "could not create config")
				}
				fmt.Println("Configuration written to", path)
			}

			cfg, _, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return database.StormInit(cfg.Database)
		},
	}

	//

	reindexCmd = &cobra.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, _, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return database.StormReIndex(cfg.Database)
		},
	}

	//

	gcCmd = &cobra.Command{
		Use:   "gc",
		Short: "Sweep orphan blobs, reconcile the quota ledger and clean the archive storage",
		Args:  cobra.ExactArgs(0),
		RunE: func(c *cobra.Command, _ []string) error {
			a, err := open(c.Context())
			if err != nil {
				return err
			}
			defer a.close()

			grace, err := a.config.GraceDuration()
			if err != nil {
				return err
			}

			report, err := scheduler.Maintain(c.Context(), a.scheduler(grace))
			if err != nil {
				return err
			}
			fmt.Printf("%d orphan blob(s) swept, %s of images stored\n", report.Swept, humanBytes(report.Usage))
			return nil
		},
	}
)

func serverCmd() *cobra.Command {
	var binding, port string

	c := &cobra.Command{
		Use:   "server",
		Short: "Start server",
		Args:  cobra.ExactArgs(0),
		RunE: func(c *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openServer(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if binding == "" {
				binding = a.config.Server.Binding
			}
			if port == "" {
				port = a.config.Server.Port
			}

			//

			grace, err := a.config.GraceDuration()
			if err != nil {
				return err
			}
			cron := scheduler.Start(a.scheduler(grace))
			defer cron.Stop()

			//

			engine := webserver.EchoEngine(webserver.Controller{
				Version:   c.Parent().Version,
				Logger:    a.log,
				Service:   a.service,
				Storage:   a.storage,
				Token:     a.config.Server.Token,
				BodyLimit: a.config.Server.BodyLimit,
			})
			webserver.PrintRoutes(engine)

			go func() {
				<-ctx.Done()
				engine.Shutdown(context.Background())
			}()

			listen := fmt.Sprintf("%s:%s", binding, port)
			a.log.Infof("Server listening on %s", listen)
			if err = engine.Start(listen); err != nil && ctx.Err() == nil {
				return errors.Wrap(err, "could not run server")
			}
			return nil
		},
	}
	c.Flags().StringVarP(&binding, "binding", "b", "", "Server's binding (default from config)")
	c.Flags().StringVarP(&port, "port", "p", "", "Server's port (default from config)")
	return c
}

func (a *app) scheduler(grace time.Duration) scheduler.Controller {
	return scheduler.Controller{
		Logger:        a.log,
		Database:      a.db,
		Blobs:         a.blobs,
		Storage:       a.storage,
		Specification: a.config.Scheduler.Specification,
		Grace:         grace,
	}
}
