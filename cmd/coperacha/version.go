package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/coperacha"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of coperacha",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("coperacha version %s\n", strings.TrimSpace(coperacha.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
