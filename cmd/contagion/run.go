package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/owenfs/contagion/internal/disease"
	"github.com/owenfs/contagion/internal/engine"
	"github.com/owenfs/contagion/internal/export"
	"github.com/owenfs/contagion/internal/persistence"
)

var (
	runDBPath      string
	runCSVPath     string
	runVariantsCSV string
	runArchivePath string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation to completion",
	RunE: func(cmd *cobra.Command, args []string) error {
		scenario, err := loadScenario()
		if err != nil {
			return err
		}

		sim, err := engine.New(scenario)
		if err != nil {
			return err
		}

		series, reason, err := sim.Run(cmd.Context(), 0)
		if err != nil {
			return err
		}

		final := series[len(series)-1]
		fmt.Printf("scenario %q finished: %s after %s ticks\n",
			scenario.Name, reason, humanize.Comma(int64(final.Tick)))
		fmt.Printf("  susceptible %s  recovered %s  dead %s\n",
			humanize.Comma(int64(final.Susceptible)),
			humanize.Comma(int64(final.Recovered)),
			humanize.Comma(int64(final.Dead)))
		if scenario.Disease.Variants.Enabled {
			fmt.Printf("  variants observed: %d\n", len(sim.Variants()))
		}

		if runDBPath != "" {
			db, err := persistence.Open(runDBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			id, err := db.SaveRun(scenario, series, sim.Events(), reason)
			if err != nil {
				return err
			}
			fmt.Printf("  saved as run %s\n", id)
		}

		if runCSVPath != "" {
			if err := writeFile(runCSVPath, func(f *os.File) error {
				return export.WriteSeriesCSV(f, series)
			}); err != nil {
				return err
			}
		}

		if runVariantsCSV != "" {
			variants := make(map[string]disease.Variant)
			for _, v := range sim.Variants() {
				variants[sim.VariantName(v.Code)] = v
			}
			if err := writeFile(runVariantsCSV, func(f *os.File) error {
				return export.WriteVariantsCSV(f, series, variants)
			}); err != nil {
				return err
			}
		}

		if runArchivePath != "" {
			archive := export.Archive{
				Name:   scenario.Name,
				Seed:   scenario.Seed,
				Reason: string(reason),
				Series: series,
			}
			if err := writeFile(runArchivePath, func(f *os.File) error {
				return export.EncodeArchive(f, archive)
			}); err != nil {
				return err
			}
		}

		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runDBPath, "db", "", "save the run to this SQLite database")
	runCmd.Flags().StringVar(&runCSVPath, "csv", "", "write the compartment series to this CSV file")
	runCmd.Flags().StringVar(&runVariantsCSV, "variants-csv", "", "write per-variant case counts to this CSV file")
	runCmd.Flags().StringVar(&runArchivePath, "archive", "", "write a MessagePack archive of the run")
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
