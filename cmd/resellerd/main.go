package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/panelmesh/resellerd/internal/app"
	"github.com/panelmesh/resellerd/internal/config"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "path to the YAML config file")
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "serve"
	}

	cfg := config.AppConfig{ConfigPath: *configPath}

	switch command {
	case "serve":
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := app.RunServer(ctx, cfg); err != nil {
			log.WithError(err).Fatal("server exited")
		}
	case "migrate":
		if err := app.Migrate(cfg); err != nil {
			log.WithError(err).Fatal("migrate failed")
		}
		log.Info("migrations applied")
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected serve or migrate)\n", command)
		os.Exit(2)
	}
}
