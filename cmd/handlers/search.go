package handlers

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ainews/internal/store"
)

var searchFlags struct {
	category string
	source   string
	language string
	since    string
	days     int
	limit    int
	offset   int
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over stored items",
	Long: `Search runs an FTS5 MATCH query over item titles and content.
Query syntax follows SQLite FTS5: bare terms, "quoted phrases",
AND/OR/NOT, and prefix* matching.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchFlags.category, "category", "", "filter by category (news, tips, paper)")
	searchCmd.Flags().StringVar(&searchFlags.source, "source", "", "filter by source id")
	searchCmd.Flags().StringVar(&searchFlags.language, "lang", "", "filter by language")
	searchCmd.Flags().StringVar(&searchFlags.since, "since", "", "only items published on or after this date (YYYY-MM-DD)")
	searchCmd.Flags().IntVar(&searchFlags.days, "days", 0, "only items published within the last N days (overrides --since)")
	searchCmd.Flags().IntVar(&searchFlags.limit, "limit", 20, "maximum results")
	searchCmd.Flags().IntVar(&searchFlags.offset, "offset", 0, "result offset for paging")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	filters := store.SearchFilters{
		Category: searchFlags.category,
		Language: searchFlags.language,
		SourceID: searchFlags.source,
		Limit:    searchFlags.limit,
		Offset:   searchFlags.offset,
	}
	switch {
	case searchFlags.days > 0:
		filters.Since = time.Now().UTC().AddDate(0, 0, -searchFlags.days)
	case searchFlags.since != "":
		since, perr := time.Parse("2006-01-02", searchFlags.since)
		if perr != nil {
			return fmt.Errorf("invalid --since date %q: %w", searchFlags.since, perr)
		}
		filters.Since = since
	}

	items, err := st.Search(args[0], filters)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	total, err := st.SearchCount(args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSOURCE\tTITLE\tURL")
	for _, item := range items {
		date := ""
		if !item.PublishedAt.IsZero() {
			date = item.PublishedAt.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", date, item.SourceID, clamp(item.Title, 70), item.URL)
	}
	w.Flush()

	fmt.Printf("\n%d of %d matches\n", len(items), total)
	return nil
}

func clamp(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
