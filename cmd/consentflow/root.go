package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "consentflow",
	Short: "Consentflow orchestrates Account Aggregator consent journeys",
	Long:  `Consentflow drives users through login, OTP verification, account discovery, linking and consent approval against an AA gateway, exposing the journey as a JSON API.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the YAML configuration file")
}
