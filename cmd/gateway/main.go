package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"wagate/internal/app"
	"wagate/internal/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "gateway:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("gateway", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", os.Getenv("WAGATE_CONFIG"), "path to a TOML config file")
	listen := flags.String("listen", "", "HTTP listen address (overrides http.listen)")
	logLevel := flags.String("log-level", "", "log level (overrides log.level)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.HTTP.Listen = *listen
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	app.ConfigureLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wire, err := app.NewWire(ctx, cfg)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"session": cfg.SessionID,
		"listen":  cfg.HTTP.Listen,
		"webhook": cfg.Webhook.Enabled,
	}).Info("Gateway starting")
	return app.New(cfg, wire).Run(ctx)
}
