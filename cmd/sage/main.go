package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "sage",
	Short: "sage — AI coding tutor backend",
	Long:  "sage is the backend for an AI coding tutor: chat grounded in the student's own notes, a wallet of learned concepts and mistakes, and sandboxed code execution.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sage version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sage version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(walletCmd)
	rootCmd.AddCommand(notebookCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
