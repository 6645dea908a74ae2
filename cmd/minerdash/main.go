package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashvest/minerdash/internal/app"
	"github.com/hashvest/minerdash/internal/config"
	"github.com/hashvest/minerdash/internal/logging"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const usage = `usage: minerdash [-config path] [serve|migrate]

Commands:
  serve    run the client API, poller and countdowns (default)
  migrate  create or update the storage tables and exit
`

func main() {
	if errRun := run(os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("minerdash: exiting")
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("minerdash", flag.ContinueOnError)
	flags.Usage = func() { fmt.Fprint(flags.Output(), usage) }
	configPath := flags.String("config", "", "path to config.yaml (default $"+config.EnvConfigPath+" or ./config.yaml)")
	envFile := flags.String("env-file", ".env", "dotenv file loaded before the config")
	if errParse := flags.Parse(args); errParse != nil {
		if errors.Is(errParse, flag.ErrHelp) {
			return nil
		}
		return errParse
	}

	if errEnv := godotenv.Load(*envFile); errEnv != nil && !errors.Is(errEnv, os.ErrNotExist) {
		log.WithError(errEnv).Warnf("minerdash: load %s failed", *envFile)
	}

	cfg, errLoad := config.Load(*configPath)
	if errLoad != nil {
		return errLoad
	}
	logCloser, errLogging := logging.Setup(cfg.Logging)
	if errLogging != nil {
		return errLogging
	}
	defer func() { _ = logCloser.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := "serve"
	if flags.NArg() > 0 {
		command = flags.Arg(0)
	}
	switch command {
	case "serve":
		return app.RunServer(ctx, cfg)
	case "migrate":
		if errMigrate := app.Migrate(ctx, cfg); errMigrate != nil {
			return errMigrate
		}
		log.Info("migrate: done")
		return nil
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}
