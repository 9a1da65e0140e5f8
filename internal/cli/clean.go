package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/callscope/callscope/internal/config"
	"github.com/callscope/callscope/internal/graph"
)

var cleanQuietFlag bool

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the persisted call graph",
	Long: `Clean removes the persisted call graph and any staging files under
.callscope/. The next 'callscope build' starts from scratch.

The configuration file (.callscope/config.yaml) is preserved.

Use cases:
  - Corrupted graph data
  - Want a guaranteed full rebuild
  - Reclaiming disk space on a retired checkout

Examples:
  # Remove the graph for the current project
  callscope clean

  # Clean with minimal output
  callscope clean --quiet
`,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVarP(&cleanQuietFlag, "quiet", "q", false, "Suppress output messages")
}

func runClean(cmd *cobra.Command, args []string) error {
	rootDir, err := resolveRoot()
	if err != nil {
		return err
	}

	graphDir := config.Dir(rootDir)
	graphPath := filepath.Join(graphDir, graph.GraphFileName)

	info, err := os.Stat(graphPath)
	if os.IsNotExist(err) {
		if !cleanQuietFlag {
			fmt.Println("No call graph found for this project")
		}
		// Staging leftovers can exist without a graph; clear them anyway.
		removeStaging(graphDir)
		return nil
	}

	var sizeMB float64
	if err == nil {
		sizeMB = float64(info.Size()) / (1024 * 1024)
	}

	if err := os.Remove(graphPath); err != nil {
		return fmt.Errorf("failed to remove call graph: %w", err)
	}
	removeStaging(graphDir)

	if !cleanQuietFlag {
		if sizeMB > 0 {
			fmt.Printf("✓ Removed call graph (~%.1f MB)\n", sizeMB)
		} else {
			fmt.Println("✓ Removed call graph")
		}
		fmt.Println("Next 'callscope build' will start from scratch")
	}

	return nil
}

// removeStaging clears the atomic-write staging directory. Best effort:
// a failure here never fails the command.
func removeStaging(graphDir string) {
	os.RemoveAll(filepath.Join(graphDir, ".tmp"))
}
