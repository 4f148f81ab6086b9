package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aretw0/coperacha"
	"github.com/aretw0/coperacha/internal/cli"
	"github.com/spf13/cobra"
)

const shutdownGrace = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook and dashboard HTTP server",
	Long: `Starts the bot in server mode. Inbound messages arrive on POST /webhook and replies
are posted to the configured gateway. The dashboard API and /metrics are served alongside.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			cfg.ListenAddr = listen
		}
		logger := cli.NewLogger(cfg, os.Stderr)

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		app, err := cli.Build(sigCtx, cfg, logger)
		if err != nil {
			fmt.Printf("Error initializing coperacha: %v\n", err)
			os.Exit(1)
		}
		defer app.Close()

		srv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           app.Handler(coperacha.Version),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Turns outlive the signal so queued messages are not cut mid-write.
		runCtx, stopRun := context.WithCancel(context.WithoutCancel(sigCtx))
		defer stopRun()
		dispatched := make(chan error, 1)
		go func() { dispatched <- app.Dispatch(runCtx) }()

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("server starting", "addr", srv.Addr, "version", strings.TrimSpace(coperacha.Version))
			serverErrors <- srv.ListenAndServe()
		}()

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				fmt.Printf("Server error: %v\n", err)
				app.Close()
				os.Exit(1)
			}

		case <-sigCtx.Done():
			logger.Info("shutting down", "signal", fmt.Sprint(sigCtx.Signal()))

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown did not complete", "grace", shutdownGrace, "err", err)
				if err := srv.Close(); err != nil {
					logger.Error("closing server", "err", err)
				}
			}
			app.Inbox.Close()
			drain := cfg.Ledger.ReceiptTimeout + shutdownGrace
			select {
			case <-dispatched:
			case <-time.After(drain):
				logger.Error("queued messages not drained", "after", drain, "queued", app.Inbox.Len())
				stopRun()
			}
			logger.Info("server stopped")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Address to listen on (overrides listen_addr)")
}
