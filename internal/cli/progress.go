package cli

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/callscope/callscope/internal/graph"
)

// CLIProgressReporter implements progress reporting with progress bars.
type CLIProgressReporter struct {
	quiet          bool
	fileBar        *progressbar.ProgressBar
	totalFiles     int
	processedFiles int
}

// NewCLIProgressReporter creates a new CLI progress reporter.
func NewCLIProgressReporter(quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{
		quiet: quiet,
	}
}

func (c *CLIProgressReporter) OnBuildStart(totalFiles int) {
	if c.quiet {
		return
	}
	c.totalFiles = totalFiles
	c.processedFiles = 0

	c.fileBar = progressbar.NewOptions(totalFiles,
		progressbar.OptionSetDescription("Building call graph"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

func (c *CLIProgressReporter) OnFileProcessed(processed, totalFiles int, file string) {
	if c.quiet {
		return
	}
	if c.fileBar != nil {
		delta := processed - c.processedFiles
		if delta > 0 {
			c.fileBar.Add(delta)
			c.processedFiles = processed
		}
	}
}

func (c *CLIProgressReporter) OnBuildComplete(stats graph.Stats, duration time.Duration) {
	if c.quiet {
		return
	}
	if c.fileBar != nil {
		c.fileBar.Finish()
		c.fileBar = nil
	}

	fmt.Println()
	fmt.Printf("✓ Build complete: %s functions, %s calls (took %.1fs)\n",
		formatNumber(stats.TotalFunctions), formatNumber(stats.TotalCalls), duration.Seconds())
	fmt.Printf("  Files processed: %s", formatNumber(stats.FilesProcessed))
	if stats.FallbackFiles > 0 {
		fmt.Printf(" (%d via fallback)", stats.FallbackFiles)
	}
	fmt.Println()
	fmt.Printf("  Resolved calls:  %s of %s (%.0f%%)\n",
		formatNumber(stats.ResolvedCalls), formatNumber(stats.TotalCalls), stats.ResolutionRate*100)
	fmt.Printf("  Entry points:    %s\n", formatNumber(stats.EntryPoints))
	fmt.Printf("  Data accessors:  %s\n", formatNumber(stats.DataAccessors))
}

// formatNumber renders a count with thousands separators.
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	var result string
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}
