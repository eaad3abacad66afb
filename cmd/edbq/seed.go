package main

import (
	"fmt"
	"os"

	"github.com/andreyvit/edbq"
	"github.com/andreyvit/edbq/internal/people"
	"github.com/spf13/cobra"
)

func newSeedCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixtures.yaml>",
		Short: "Insert or update people from a YAML file",
		Long: `Insert or update people from a YAML file of the form:

  people:
    - id: 1
      name: Ann
      email: ann@example.com
      age: 20
      city: Paris
      joined: 2021-03-04T00:00:00Z`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.open()
			if err != nil {
				return err
			}
			defer closeDB(db)

			n, err := seedFile(db, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d people\n", n)
			return nil
		},
	}
}

func seedFile(db *edbq.DB, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	ppl, err := people.LoadFixtures(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	if err := people.Seed(db, ppl); err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return len(ppl), nil
}
