package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/owenfs/contagion/internal/engine"
	"github.com/owenfs/contagion/internal/persistence"
)

var (
	batchRuns   int
	batchDBPath string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run many replicates of one scenario with derived seeds",
	Long: `batch runs the scenario repeatedly, deriving replicate i's seed as
base seed + i, and reports summary statistics over the replicates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		scenario, err := loadScenario()
		if err != nil {
			return err
		}

		var db *persistence.DB
		if batchDBPath != "" {
			db, err = persistence.Open(batchDBPath)
			if err != nil {
				return err
			}
			defer db.Close()
		}

		bar := progressbar.Default(int64(batchRuns), "replicates")

		endTicks := make([]float64, 0, batchRuns)
		attackRates := make([]float64, 0, batchRuns)
		deathRates := make([]float64, 0, batchRuns)
		reasons := make(map[engine.StopReason]int)

		baseSeed := scenario.Seed
		for i := 0; i < batchRuns; i++ {
			s := scenario
			s.Seed = baseSeed + int64(i)

			sim, err := engine.New(s)
			if err != nil {
				return err
			}
			series, reason, err := sim.Run(cmd.Context(), 0)
			if err != nil {
				return err
			}

			final := series[len(series)-1]
			endTicks = append(endTicks, float64(final.Tick))
			attackRates = append(attackRates, 1-float64(final.Susceptible)/float64(s.N))
			deathRates = append(deathRates, float64(final.Dead)/float64(s.N))
			reasons[reason]++

			if db != nil {
				if _, err := db.SaveRun(s, series, nil, reason); err != nil {
					return err
				}
			}
			bar.Add(1)
		}

		meanTicks, stdTicks := stat.MeanStdDev(endTicks, nil)
		meanAttack, stdAttack := stat.MeanStdDev(attackRates, nil)
		meanDeath, stdDeath := stat.MeanStdDev(deathRates, nil)

		fmt.Printf("\n%d replicates of %q (seeds %d..%d)\n",
			batchRuns, scenario.Name, baseSeed, baseSeed+int64(batchRuns-1))
		fmt.Printf("  end tick:    mean %.1f  stddev %.1f\n", meanTicks, stdTicks)
		fmt.Printf("  attack rate: mean %.3f  stddev %.3f\n", meanAttack, stdAttack)
		fmt.Printf("  death rate:  mean %.3f  stddev %.3f\n", meanDeath, stdDeath)
		for reason, count := range reasons {
			fmt.Printf("  stopped by %s: %d\n", reason, count)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVarP(&batchRuns, "runs", "r", 10, "number of replicates")
	batchCmd.Flags().StringVar(&batchDBPath, "db", "", "save every replicate to this SQLite database")
}
