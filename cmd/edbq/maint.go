package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/andreyvit/edbq"
	"github.com/andreyvit/edbq/internal/people"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newDumpCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print every table, index and row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.open()
			if err != nil {
				return err
			}
			defer closeDB(db)

			return db.ReadErr(func(tx *edbq.Tx) error {
				_, err := io.WriteString(cmd.OutOrStdout(), tx.Dump(edbq.DumpAll))
				return err
			})
		},
	}
}

type tableStats struct {
	Table      string `json:"table" yaml:"table"`
	Rows       int    `json:"rows" yaml:"rows"`
	IndexRows  int    `json:"index_rows" yaml:"index_rows"`
	DataSize   int64  `json:"data_size" yaml:"data_size"`
	IndexSize  int64  `json:"index_size" yaml:"index_size"`
	TotalAlloc int64  `json:"total_alloc" yaml:"total_alloc"`
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print row counts and sizes of every table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.open()
			if err != nil {
				return err
			}
			defer closeDB(db)

			var result []tableStats
			db.Read(func(tx *edbq.Tx) {
				for _, tbl := range tx.Schema().Tables() {
					s := tx.TableStats(tbl)
					result = append(result, tableStats{
						Table:      tbl.Name(),
						Rows:       s.Rows,
						IndexRows:  s.IndexRows,
						DataSize:   s.DataSize,
						IndexSize:  s.IndexSize,
						TotalAlloc: s.TotalAlloc(),
					})
				}
			})
			return writeOutput(cmd.OutOrStdout(), opts.format(), result)
		},
	}
}

func newReindexCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex [index...]",
		Short: "Rebuild indexes from the stored rows (all of them by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var indices []*edbq.Index
			for _, name := range args {
				idx := people.People.IndexNamed(name)
				if idx == nil {
					return fmt.Errorf("unknown index %q", name)
				}
				indices = append(indices, idx)
			}
			if len(indices) == 0 {
				indices = []*edbq.Index{nil}
			}

			db, err := opts.open()
			if err != nil {
				return err
			}
			defer closeDB(db)

			err = db.Tx(true, func(tx *edbq.Tx) error {
				for _, idx := range indices {
					if err := tx.Reindex(people.People, idx); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reindexed %s\n", indexNames(args))
			return nil
		},
	}
}

func indexNames(names []string) string {
	if len(names) == 0 {
		return "all indexes"
	}
	return fmt.Sprint(names)
}

func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		raw = append(raw, '\n')
		_, err = w.Write(raw)
		return err
	}
}
