// Package export serializes finished runs: CSV for spreadsheet
// analysis and MessagePack for compact archival.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/owenfs/contagion/internal/disease"
	"github.com/owenfs/contagion/internal/engine"
)

// WriteSeriesCSV writes the compartment series, one row per tick.
func WriteSeriesCSV(w io.Writer, series []engine.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"tick", "susceptible", "exposed", "infectious", "recovered", "dead"}); err != nil {
		return err
	}
	for _, s := range series {
		row := []string{
			fmt.Sprint(s.Tick),
			fmt.Sprint(s.Susceptible),
			fmt.Sprint(s.Exposed),
			fmt.Sprint(s.Infectious),
			fmt.Sprint(s.Recovered),
			fmt.Sprint(s.Dead),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteVariantsCSV writes per-variant case counts over time together
// with each variant's transmission and fatality parameters. Variants
// are keyed by display name; rows appear only for ticks where the
// variant had active carriers.
func WriteVariantsCSV(w io.Writer, series []engine.Snapshot, variants map[string]disease.Variant) error {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Variant", "Time Step", "Cases", "Infectivity Rate", "Death Rate"}); err != nil {
		return err
	}
	for _, s := range series {
		for _, name := range names {
			cases := s.Variants[name]
			if cases == 0 {
				continue
			}
			v := variants[name]
			row := []string{
				name,
				fmt.Sprint(s.Tick),
				fmt.Sprint(cases),
				fmt.Sprintf("%g", v.Infectivity),
				fmt.Sprintf("%g", v.Fatality),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// Archive is the MessagePack envelope for one stored run.
type Archive struct {
	Name   string            `msgpack:"name"`
	Seed   int64             `msgpack:"seed"`
	Reason string            `msgpack:"reason"`
	Series []engine.Snapshot `msgpack:"series"`
}

// EncodeArchive writes a run archive in MessagePack format.
func EncodeArchive(w io.Writer, a Archive) error {
	return msgpack.NewEncoder(w).Encode(a)
}

// DecodeArchive reads a run archive written by EncodeArchive.
func DecodeArchive(r io.Reader) (Archive, error) {
	var a Archive
	if err := msgpack.NewDecoder(r).Decode(&a); err != nil {
		return Archive{}, fmt.Errorf("decode archive: %w", err)
	}
	return a, nil
}
