package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsJSONFlag bool

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show call graph build statistics",
	Long: `Stats prints metadata about the persisted call graph: when it was
built, how many functions and calls it holds, the resolution rate, and
the per-language file counts.

Examples:
  callscope stats
  callscope stats --json
`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSONFlag, "json", false, "Print the result as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	rootDir, err := resolveRoot()
	if err != nil {
		return err
	}

	searcher, _, err := openSearcher(rootDir)
	if err != nil {
		return err
	}
	defer searcher.Close()

	info, err := searcher.Info()
	if err != nil {
		return describeQueryError(err)
	}

	if statsJSONFlag {
		return printJSON(info)
	}

	fmt.Printf("Call graph for %s\n", info.ProjectRoot)
	fmt.Printf("  Build:           %s (%s)\n", info.BuildID, info.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("  Functions:       %s\n", formatNumber(info.Stats.TotalFunctions))
	fmt.Printf("  Calls:           %s (%.0f%% resolved)\n", formatNumber(info.Stats.TotalCalls), info.Stats.ResolutionRate*100)
	fmt.Printf("  Entry points:    %s\n", formatNumber(info.Stats.EntryPoints))
	fmt.Printf("  Data accessors:  %s\n", formatNumber(info.Stats.DataAccessors))
	fmt.Printf("  Files processed: %s", formatNumber(info.Stats.FilesProcessed))
	if info.Stats.FallbackFiles > 0 {
		fmt.Printf(" (%d via fallback)", info.Stats.FallbackFiles)
	}
	fmt.Println()

	if len(info.Stats.Languages) > 0 {
		languages := make([]string, 0, len(info.Stats.Languages))
		for lang := range info.Stats.Languages {
			languages = append(languages, lang)
		}
		sort.Strings(languages)

		fmt.Println("  Languages:")
		for _, lang := range languages {
			fmt.Printf("    %-12s %s files\n", lang, formatNumber(info.Stats.Languages[lang]))
		}
	}
	return nil
}
