package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/coperacha/internal/cli"
	"github.com/aretw0/coperacha/pkg/persistence/middleware"
	"github.com/aretw0/coperacha/pkg/ports"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage conversation sessions",
	Long:  `List, inspect, and remove sessions stored in redis, or in session.dir when redis is not configured.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all active sessions",
	Run: func(cmd *cobra.Command, args []string) {
		store, done := openSessions(cmd)
		defer done()

		sessions, err := store.List(cmd.Context())
		if err != nil {
			fmt.Printf("Error listing sessions: %v\n", err)
			os.Exit(1)
		}

		if len(sessions) == 0 {
			fmt.Println("No active sessions found.")
			return
		}

		fmt.Println("Active Sessions:")
		for _, s := range sessions {
			fmt.Println("- " + s)
		}
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <identity>",
	Short: "Inspect the state of a session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		identity := args[0]
		reveal, _ := cmd.Flags().GetBool("reveal")
		store, done := openSessions(cmd)
		defer done()

		if !reveal {
			mask, err := middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns)
			if err != nil {
				fmt.Printf("Error configuring masking: %v\n", err)
				os.Exit(1)
			}
			store = mask(store)
		}

		sess, err := store.Load(cmd.Context(), identity)
		if err != nil {
			fmt.Printf("Error loading session '%s': %v\n", identity, err)
			os.Exit(1)
		}

		// Pretty print JSON
		data, err := json.MarshalIndent(sess, "", "  ")
		if err != nil {
			fmt.Printf("Error marshaling session: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(string(data))
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <identity>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, done := openSessions(cmd)
		hasError := false

		for _, identity := range args {
			if err := store.Delete(cmd.Context(), identity); err != nil {
				fmt.Printf("Error removing '%s': %v\n", identity, err)
				hasError = true
			} else {
				fmt.Printf("Removed session '%s'\n", identity)
			}
		}
		done()

		if hasError {
			os.Exit(1)
		}
	},
}

func openSessions(cmd *cobra.Command) (ports.SessionStore, func()) {
	cfg := loadConfig(cmd)
	store, closeStore, err := cli.OpenSessions(cmd.Context(), cfg)
	if err != nil {
		fmt.Printf("Error opening session store: %v\n", err)
		os.Exit(1)
	}
	return store, func() { _ = closeStore() }
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
	sessionInspectCmd.Flags().Bool("reveal", false, "Show personal data instead of masking it")
}
