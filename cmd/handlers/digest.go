package handlers

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ainews/internal/core"
	"ainews/internal/digest"
	"ainews/internal/render"
)

var digestFlags struct {
	date   string
	dryRun bool
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Generate the daily digest (default: today)",
	Long: `Digest filters, deduplicates, scores, and summarizes the day's
items, then stores one markdown+JSON row per section and prints the
rendered document. Re-running the same date regenerates in place.`,
	RunE: runDigest,
}

func init() {
	digestCmd.Flags().StringVar(&digestFlags.date, "date", "", "digest date as YYYY-MM-DD (default: today)")
	digestCmd.Flags().BoolVar(&digestFlags.dryRun, "dry-run", false, "print the digest without saving it")
	rootCmd.AddCommand(digestCmd)
}

func runDigest(cmd *cobra.Command, args []string) error {
	date := time.Now().UTC().Format("2006-01-02")
	if digestFlags.date != "" {
		parsed, err := time.Parse("2006-01-02", digestFlags.date)
		if err != nil {
			return fmt.Errorf("invalid --date %q, want YYYY-MM-DD: %w", digestFlags.date, err)
		}
		date = parsed.Format("2006-01-02")
	}

	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	summarizer, err := digest.NewSummarizer(cfg.LLM)
	if err != nil {
		return err
	}
	gen := digest.NewGenerator(st, cfg, summarizer)

	doc, err := generate(cmd, gen, date)
	if err != nil {
		return err
	}

	fmt.Print(render.Document(doc))
	if doc.TotalItems() == 0 {
		fmt.Println("No items for", date)
	}
	return nil
}

func generate(cmd *cobra.Command, gen *digest.Generator, date string) (*core.DigestDoc, error) {
	if digestFlags.dryRun {
		return gen.Generate(cmd.Context(), date)
	}
	return gen.GenerateAndSave(cmd.Context(), date)
}
