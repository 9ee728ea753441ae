package handlers

import (
	"fmt"

	"github.com/spf13/cobra"
)

var vacuumOptimizeFTS bool

var vacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Compact the database and verify its integrity",
	RunE:  runVacuum,
}

func init() {
	vacuumCmd.Flags().BoolVar(&vacuumOptimizeFTS, "optimize-fts", false, "also merge FTS index segments before compacting")
	rootCmd.AddCommand(vacuumCmd)
}

func runVacuum(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	before, err := st.GetStats()
	if err != nil {
		return err
	}

	if vacuumOptimizeFTS {
		if err := st.OptimizeFTS(); err != nil {
			return err
		}
	}
	if err := st.Vacuum(); err != nil {
		return err
	}

	ok, err := st.IntegrityCheck()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("integrity check failed after vacuum")
	}

	after, err := st.GetStats()
	if err != nil {
		return err
	}
	fmt.Printf("Vacuum complete: %s -> %s, integrity ok\n",
		humanBytes(before.SizeBytes), humanBytes(after.SizeBytes))
	return nil
}
