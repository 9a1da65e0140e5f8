package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/callscope/callscope/internal/graph"
)

var (
	impactFileFlag     string
	impactChangeFlag   string
	impactMaxDepthFlag int
	impactJSONFlag     bool
)

// impactCmd represents the impact command
var impactCmd = &cobra.Command{
	Use:   "impact <function>",
	Short: "Estimate the blast radius of changing a function",
	Long: `Impact walks the call graph backwards from a function and classifies
what a change to it would affect: direct callers that would break,
transitive callers that might, the entry points above them, and the
tests that exercise the function.

Change kinds: signature-change, return-type-change, rename, deletion,
behavior-change. Breaking kinds mark direct callers as would-break;
behavior-change never does.

Examples:
  # Default: a signature change
  callscope impact getUserById

  # A deletion
  callscope impact getUserById --change deletion

  # Bound the backward walk
  callscope impact getUserById --max-depth 3
`,
	Args: cobra.ExactArgs(1),
	RunE: runImpact,
}

func init() {
	rootCmd.AddCommand(impactCmd)
	impactCmd.Flags().StringVar(&impactFileFlag, "file", "", "Narrow the function lookup to a file")
	impactCmd.Flags().StringVar(&impactChangeFlag, "change", graph.ChangeSignature, "Change kind being analyzed")
	impactCmd.Flags().IntVar(&impactMaxDepthFlag, "max-depth", 0, "Hop limit for the backward walk (0 means unlimited)")
	impactCmd.Flags().BoolVar(&impactJSONFlag, "json", false, "Print the result as JSON")
}

func runImpact(cmd *cobra.Command, args []string) error {
	rootDir, err := resolveRoot()
	if err != nil {
		return err
	}

	searcher, _, err := openSearcher(rootDir)
	if err != nil {
		return err
	}
	defer searcher.Close()

	fn, err := findTarget(searcher, args[0], impactFileFlag)
	if err != nil {
		return err
	}

	result, err := searcher.Impact(context.Background(), fn.ID, graph.ImpactOptions{
		ChangeKind: impactChangeFlag,
		MaxDepth:   impactMaxDepthFlag,
	})
	if err != nil {
		return describeQueryError(err)
	}

	if impactJSONFlag {
		return printJSON(result)
	}

	fmt.Printf("Impact of %s on %s: blast radius %s\n", result.ChangeKind, result.TargetID, result.BlastRadius)

	if len(result.DirectCallers) > 0 {
		fmt.Printf("Direct callers (%d):\n", len(result.DirectCallers))
		for _, caller := range result.DirectCallers {
			marker := " "
			if caller.WouldBreak {
				marker = "!"
			}
			fmt.Printf("  %s %s (%s:%d)\n", marker, caller.FunctionName, caller.File, caller.Line)
		}
	}
	if len(result.TransitiveCallers) > 0 {
		fmt.Printf("Transitive callers (%d):\n", len(result.TransitiveCallers))
		for _, caller := range result.TransitiveCallers {
			fmt.Printf("    %s (%s:%d, depth %d)\n", caller.FunctionName, caller.File, caller.Line, caller.Depth)
		}
	}
	if len(result.AffectedEntryPoints) > 0 {
		fmt.Printf("Affected entry points (%d):\n", len(result.AffectedEntryPoints))
		for _, ep := range result.AffectedEntryPoints {
			fmt.Printf("    %s\n", ep)
		}
	}
	if len(result.AffectedTests) > 0 {
		fmt.Printf("Affected tests (%d):\n", len(result.AffectedTests))
		for _, test := range result.AffectedTests {
			fmt.Printf("    %s\n", test)
		}
	}
	if len(result.DirectCallers) == 0 && len(result.TransitiveCallers) == 0 {
		fmt.Println("  nothing calls this function")
	}
	return nil
}
