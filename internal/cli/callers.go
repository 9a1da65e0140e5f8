package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	callersFileFlag  string
	callersDepthFlag int
	callersLimitFlag int
	callersJSONFlag  bool
)

// callersCmd represents the callers command
var callersCmd = &cobra.Command{
	Use:   "callers <function>",
	Short: "List the functions that call a function",
	Long: `Callers walks the call graph backwards from a function and lists
everything that calls it, directly or through intermediate calls.

The function may be given as a simple name (getUserById), a qualified
name (UserService.create), or a full id (src/api/users.ts:getUserById:42).
If a simple name matches several functions, qualify it with --file.

Examples:
  # Direct callers only
  callscope callers getUserById

  # Callers up to three hops away
  callscope callers getUserById --depth 3

  # Disambiguate by file
  callscope callers create --file src/services/user.ts

  # Machine-readable output
  callscope callers getUserById --json
`,
	Args: cobra.ExactArgs(1),
	RunE: runCallers,
}

func init() {
	rootCmd.AddCommand(callersCmd)
	callersCmd.Flags().StringVar(&callersFileFlag, "file", "", "Narrow the function lookup to a file")
	callersCmd.Flags().IntVar(&callersDepthFlag, "depth", 1, "How many caller hops to walk")
	callersCmd.Flags().IntVar(&callersLimitFlag, "limit", 50, "Maximum callers to return")
	callersCmd.Flags().BoolVar(&callersJSONFlag, "json", false, "Print the result as JSON")
}

func runCallers(cmd *cobra.Command, args []string) error {
	rootDir, err := resolveRoot()
	if err != nil {
		return err
	}

	searcher, _, err := openSearcher(rootDir)
	if err != nil {
		return err
	}
	defer searcher.Close()

	fn, err := findTarget(searcher, args[0], callersFileFlag)
	if err != nil {
		return err
	}

	result, err := searcher.Callers(context.Background(), fn.ID, callersDepthFlag, callersLimitFlag)
	if err != nil {
		return describeQueryError(err)
	}

	if callersJSONFlag {
		return printJSON(result)
	}

	if len(result.Callers) == 0 {
		fmt.Printf("%s has no callers\n", result.TargetID)
		return nil
	}

	fmt.Printf("Callers of %s (%d found", result.TargetID, result.TotalFound)
	if result.Truncated {
		fmt.Printf(", showing %d", result.TotalReturned)
	}
	fmt.Println("):")
	for _, hit := range result.Callers {
		fmt.Printf("  [depth %d] %s (%s:%d)\n", hit.Depth, hit.Function.Name, hit.Function.File, hit.Function.StartLine)
		for _, site := range hit.CallSites {
			fmt.Printf("            calls at %s:%d\n", site.File, site.Line)
		}
	}
	return nil
}
