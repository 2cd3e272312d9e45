package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/claimscope/internal/app"
	"github.com/ternarybob/claimscope/internal/common"
	"github.com/ternarybob/claimscope/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the job API, the cron trigger endpoints and the websocket event stream. When [scheduler].enabled is set, sweeps also run on the configured schedule.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	common.InstallCrashHandler("logs")
	defer common.RecoverWithCrashFile()

	common.PrintBanner(common.GetVersion())
	common.PrintStartupSummary(config)

	return withApp(func(application *app.App) error {
		if err := application.StartScheduler(); err != nil {
			return err
		}

		srv := server.New(application)
		errChan := make(chan error, 1)
		common.SafeGo(logger, "http-server", func() {
			errChan <- srv.Start()
		})

		logger.Info().
			Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
			Msg("Server ready - Press Ctrl+C to stop")

		select {
		case <-cmd.Context().Done():
			logger.Info().Msg("Interrupt signal received")
		case err := <-errChan:
			if err != nil {
				return err
			}
		}

		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("Server shutdown failed")
		}
		return nil
	})
}
