package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rename-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for rename checks and cached records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}

		env, err := initResearch(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		srv := server.New(env.Pipeline, env.Records, env.Engine.Normalizer.Normalize, server.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			MaxNames:       cfg.Server.MaxNames,
			RequestTimeout: requestTimeout(cfg.Batch.CompanyTimeout(), cfg.Server.MaxNames, cfg.Batch.MaxConcurrentCompanies),
		})

		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		zap.L().Info("starting server", zap.String("addr", addr))
		return server.ListenAndServe(ctx, addr, srv.Routes())
	},
}

// requestTimeout bounds a check request by the time a full batch of
// maxNames companies could take at the given concurrency.
func requestTimeout(perCompany time.Duration, maxNames, concurrency int) time.Duration {
	if perCompany <= 0 || maxNames <= 0 {
		return 0
	}
	if concurrency < 1 {
		concurrency = 1
	}
	waves := (maxNames + concurrency - 1) / concurrency
	return time.Duration(waves) * perCompany
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "HTTP server port")
	rootCmd.AddCommand(serveCmd)
}
