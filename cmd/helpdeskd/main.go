package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsline/helpdesk-core/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "helpdeskd",
		Short: "Support ticket workflow and SLA monitoring service",
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.SweepCmd())
	rootCmd.AddCommand(cli.MigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
