package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/dev-tams/sqlbackup/internal/app"
	"github.com/dev-tams/sqlbackup/internal/config"
)

func main() {
	cliApp := &cli.App{
		Name:  "sqlbackup",
		Usage: "dump a MySQL database to a restorable SQL file",
		Commands: []*cli.Command{
			{
				Name:  "backup",
				Usage: "dump, optionally archive, and upload the configured database",
				Flags: append(commonFlags(),
					&cli.StringFlag{
						Name:  "archive",
						Usage: "archive format override: none, zip or gzip",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "artifact file name (default {db}_{YYYY-MM-DD_HH-MM-SS}.{ext})",
					},
					&cli.BoolFlag{
						Name:  "no-upload",
						Usage: "keep the artifact local and skip the configured storage",
					},
				),
				Action: func(c *cli.Context) error {
					setupLogging(c.Bool("verbose"))

					cfg, err := loadValidatedConfig(c.String("config"))
					if err != nil {
						return err
					}

					res, err := app.RunBackup(c.Context, cfg, app.Options{
						Name:     c.String("name"),
						Archive:  c.String("archive"),
						NoUpload: c.Bool("no-upload"),
					})
					if err != nil {
						if res.Artifact.Path != "" {
							fmt.Fprintf(os.Stderr, "local artifact kept at %s\n", res.Artifact.Path)
						}
						return err
					}

					fmt.Printf("backup OK: db=%s bytes=%d path=%s uploaded=%t duration=%s\n",
						res.Database, res.Artifact.Size, res.Artifact.Path, res.Uploaded, res.Duration.Round(time.Millisecond))
					return nil
				},
			},
			{
				Name:  "daemon",
				Usage: "run backups whenever backup.schedule matches",
				Flags: append(commonFlags(),
					&cli.DurationFlag{
						Name:  "run-timeout",
						Usage: "abort a single run after this long (0 disables)",
					},
				),
				Action: func(c *cli.Context) error {
					setupLogging(c.Bool("verbose"))

					cfg, err := loadValidatedConfig(c.String("config"))
					if err != nil {
						return err
					}

					ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
					defer stop()

					return app.RunDaemon(ctx, cfg, app.Options{}, c.Duration("run-timeout"))
				},
			},
			{
				Name:  "check",
				Usage: "connect to the configured database and list the tables a backup would include",
				Flags: commonFlags(),
				Action: func(c *cli.Context) error {
					setupLogging(c.Bool("verbose"))

					cfg, err := loadValidatedConfig(c.String("config"))
					if err != nil {
						return err
					}

					tables, err := app.CheckConnection(c.Context, cfg)
					if err != nil {
						return err
					}

					fmt.Printf("connected to %s on %s:%d, %d tables\n",
						cfg.Database.Database, cfg.Database.Host, cfg.Database.Port, len(tables))
					for _, t := range tables {
						fmt.Println("  " + t.Name)
					}
					return nil
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "config",
			Aliases:  []string{"c"},
			Required: true,
			Usage:    "path to config yaml",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable debug logging",
		},
	}
}

func setupLogging(verbose bool) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func loadValidatedConfig(cfgPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
