package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/aretw0/coperacha/internal/cli"
	"github.com/aretw0/coperacha/internal/logging"
	"github.com/aretw0/coperacha/pkg/finance"
	"github.com/spf13/cobra"
)

var rateCmd = &cobra.Command{
	Use:   "rate",
	Short: "Show or change the exchange rate",
	Long:  `The exchange rate converts native units to lempiras in every balance the bot reports.`,
}

var rateGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the exchange rate in effect",
	Run: func(cmd *cobra.Command, args []string) {
		rates, done := openRates(cmd)
		defer done()
		fmt.Println(strconv.FormatFloat(rates.Current(cmd.Context()), 'f', -1, 64))
	},
}

var rateSetCmd = &cobra.Command{
	Use:   "set <rate>",
	Short: "Store a new exchange rate",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		value, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			fmt.Printf("Invalid rate '%s': %v\n", args[0], err)
			os.Exit(1)
		}
		rates, done := openRates(cmd)
		if err := rates.Set(cmd.Context(), value); err != nil {
			done()
			fmt.Printf("Error setting rate: %v\n", err)
			os.Exit(1)
		}
		done()
		fmt.Printf("Exchange rate set to %s\n", args[0])
	},
}

func openRates(cmd *cobra.Command) (*finance.Rates, func()) {
	cfg := loadConfig(cmd)
	if cfg.Redis.Addr == "" {
		fmt.Println("Warning: redis is not configured, the rate is not persisted.")
	}
	records, closeRecords, err := cli.OpenRecords(cmd.Context(), cfg)
	if err != nil {
		fmt.Printf("Error opening record store: %v\n", err)
		os.Exit(1)
	}
	return finance.NewRates(records, cfg.ExchangeRateFallback, logging.NewNop()), func() { _ = closeRecords() }
}

func init() {
	rootCmd.AddCommand(rateCmd)
	rateCmd.AddCommand(rateGetCmd)
	rateCmd.AddCommand(rateSetCmd)
}
