package handlers

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ainews/internal/core"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show source health and database statistics",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	sources, err := st.ListEnabledSources()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tTYPE\tCATEGORY\tLAST FETCH\tERRORS\tLAST ERROR")
	for _, src := range sources {
		lastFetch := "never"
		if !src.LastFetchAt.IsZero() {
			lastFetch = humanAge(src.LastFetchAt)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			src.ID, src.Config.Type, src.Config.Category,
			lastFetch, src.ErrorCount, truncateErr(src.LastError))
	}
	w.Flush()

	stats, err := st.GetStats()
	if err != nil {
		return err
	}

	fmt.Printf("\nItems: %d  Sources: %d  Metrics: %d  Digests: %d  Size: %s\n",
		stats.TotalItems, stats.TotalSources, stats.TotalMetrics,
		stats.TotalDigests, humanBytes(stats.SizeBytes))

	if len(stats.ByCategory) > 0 {
		fmt.Print("By category:")
		for _, cat := range core.Categories {
			if n, ok := stats.ByCategory[cat]; ok {
				fmt.Printf("  %s=%d", cat, n)
			}
		}
		fmt.Println()
	}
	return nil
}

func humanAge(t time.Time) string {
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

func humanBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func truncateErr(s string) string {
	if len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}
