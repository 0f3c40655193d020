package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/cas-gateway/cmd/flags"
	"github.com/ruteri/cas-gateway/gateway"
	"github.com/ruteri/cas-gateway/httpserver"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "cas-gateway",
		Usage: "Serve files and JSON records from a content-addressed storage backend",
		Flags: flags.ServerFlags,
		Action: func(cCtx *cli.Context) error {
			cfg, err := flags.LoadConfig(cCtx)
			if err != nil {
				return err
			}

			logger := flags.SetupLogger(cCtx, cfg)

			// An unknown or unusable backend stops startup here.
			svc, err := gateway.NewFromConfig(cfg.StorageConfig(), gateway.Options{
				Log:            logger,
				MaxConcurrency: cfg.Storage.MaxConcurrency,
			})
			if err != nil {
				logger.Error("Failed to create gateway", "err", err)
				return err
			}
			defer func() {
				if err := svc.Close(); err != nil {
					logger.Error("Failed to close storage backend", "err", err)
				}
			}()

			serverCfg := flags.ConfigureServer(cCtx, cfg, logger)
			server, err := httpserver.New(serverCfg, httpserver.NewHandler(svc, serverCfg))
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server", "backend", svc.BackendName())
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
