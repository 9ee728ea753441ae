package handlers

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ainews/internal/pipeline"
)

var ingestSource string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch all enabled sources and store new items",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "ingest only this source id")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	orch := pipeline.New(st, cfg)
	if ingestSource != "" {
		if _, ok := cfg.SourceByID(ingestSource); !ok {
			return fmt.Errorf("unknown source %q", ingestSource)
		}
		orch.OnlySource(ingestSource)
	}

	summary, err := orch.Run(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tFETCHED\tINSERTED\tDUPES\tDURATION\tSTATUS")
	for _, r := range summary.Results {
		status := "ok"
		if !r.Success() {
			status = r.ErrorMessage
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%s\n",
			r.SourceID, r.Fetched, r.Inserted, r.Duplicates,
			r.Duration.Round(time.Millisecond), status)
	}
	w.Flush()

	fmt.Printf("\n%d fetched, %d inserted, %d duplicates, %d errors in %s\n",
		summary.TotalFetched, summary.TotalInserted, summary.TotalDuplicates,
		summary.TotalErrors, summary.Duration.Round(time.Millisecond))
	return nil
}
