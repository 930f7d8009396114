package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kitewire/consentflow"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of consentflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("consentflow version %s\n", strings.TrimSpace(consentflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
