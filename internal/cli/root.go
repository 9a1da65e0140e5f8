package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var rootFlag string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "callscope",
	Short: "Callscope - static call graph analysis for your codebase",
	Long: `Callscope builds a static call graph of your codebase and answers
questions about it: who calls a function, what data a function can reach,
which entry points touch a table, and what breaks if a function changes.

The graph is built once with 'callscope build' and persisted under
.callscope/, so queries are instant and work offline.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "project root directory (default is the working directory)")
}

// resolveRoot returns the project root: the --root flag when given,
// otherwise the current working directory. Always absolute.
func resolveRoot() (string, error) {
	if rootFlag != "" {
		abs, err := filepath.Abs(rootFlag)
		if err != nil {
			return "", fmt.Errorf("failed to resolve project root: %w", err)
		}
		return abs, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return wd, nil
}
