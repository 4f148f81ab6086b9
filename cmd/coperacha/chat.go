package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/coperacha"
	"github.com/aretw0/coperacha/internal/adapters/file"
	"github.com/aretw0/coperacha/internal/cli"
	"github.com/aretw0/coperacha/internal/logging"
	"github.com/aretw0/coperacha/pkg/adapters/console"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the bot from the terminal",
	Long: `Runs the dialogue locally. Each line you type is one message from --as.
Without redis, sessions are kept under session.dir so a conversation survives restarts.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		identity, _ := cmd.Flags().GetString("as")
		markdown, _ := cmd.Flags().GetBool("markdown")
		debug, _ := cmd.Flags().GetBool("debug")

		// Logs would interleave with the conversation on the terminal.
		logger := logging.NewNop()
		if debug {
			logger = cli.NewLogger(cfg, os.Stderr)
			logger = logger.With(slog.String("mode", "chat"))
		}

		con := console.New(os.Stdin, os.Stdout,
			console.WithIdentity(identity),
			console.WithMarkdown(markdown),
		)

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		opts := []cli.BuildOption{cli.WithSender(con)}
		if cfg.Redis.Addr == "" {
			opts = append(opts, cli.WithSessionStore(file.New(cfg.Session.Dir)))
		}
		app, err := cli.Build(sigCtx, cfg, logger, opts...)
		if err != nil {
			fmt.Printf("Error initializing coperacha: %v\n", err)
			os.Exit(1)
		}
		defer app.Close()

		con.PrintBanner(coperacha.Version)
		cli.PrintSystemMessage(os.Stdout, "Conversando como %s. Ctrl+D para salir.", con.Identity())

		if err := con.Run(sigCtx, app.Service.Handle); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Printf("Error: %v\n", err)
			app.Close()
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("as", console.DefaultIdentity, "Identity (phone number) the messages come from")
	chatCmd.Flags().Bool("markdown", false, "Render replies as markdown")
	chatCmd.Flags().Bool("debug", false, "Write logs to stderr")
}
