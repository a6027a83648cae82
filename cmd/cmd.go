// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// runFlags are shared by download and retry.
func runFlags() []cli.Flag {
	return []cli.Flag{
		configFlag(),
		&cli.StringFlag{
			Name:    "username",
			Aliases: []string{"u"},
			Usage:   "Use the cached credentials of this account",
		},
		&cli.StringFlag{
			Name:    "access-token",
			Aliases: []string{"k"},
			Usage:   "Connect with this access token instead of cached credentials",
		},
		&cli.StringFlag{
			Name:    "helper",
			Aliases: []string{"H"},
			Usage:   "Tagging helper executable (implies helper delivery)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output directory",
		},
		&cli.StringFlag{
			Name:  "layout",
			Usage: "Output layout: flat or grouped",
		},
		&cli.BoolFlag{
			Name:  "direct",
			Usage: "Write payloads directly instead of running the helper",
		},
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "Pause between items",
		},
		&cli.BoolFlag{
			Name:  "stage-cover",
			Usage: "Download cover art next to each item and pass its path to the helper",
		},
	}
}

// downloadCommand reads links from stdin and delivers every item behind them.
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Download links read from stdin (one per line, end with 'done')",
		Flags:   runFlags(),
		Action:  r.Download,
	}
}

// retryCommand requeues items whose latest recorded outcome is a failure.
func retryCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "retry",
		Usage:  "Retry items that failed in earlier runs",
		Flags:  runFlags(),
		Action: r.Retry,
	}
}

// historyCommand prints the delivery ledger.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recorded deliveries",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "failed",
				Usage: "Only items whose latest outcome is a failure",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of rows",
				Value: 50,
			},
			&cli.BoolFlag{
				Name:  "runs",
				Usage: "List runs instead of deliveries",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output JSON",
			},
			&cli.BoolFlag{
				Name:  "csv",
				Usage: "Output CSV",
			},
		},
		Action: r.History,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage session credentials",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Log in through the browser and cache the session credentials",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the cached credentials",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthStatus,
			},
		},
	}
}

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config file from the built-in template",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "print",
						Usage: "Print the effective configuration instead of writing a file",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}
