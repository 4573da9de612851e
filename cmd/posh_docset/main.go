// Package main provides the entry point for the PowerShell docset builder.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "posh_docset",
	Short: "PowerShell documentation docset builder",
	Long:  "posh_docset mirrors the online PowerShell module reference into an offline, indexed docset archive.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
