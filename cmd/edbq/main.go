// Command edbq seeds, queries and inspects a database of the sample people
// schema.
//
//	edbq --db people.db seed fixtures.yaml
//	edbq --db people.db query --where Age --between 25,35 --lower-open
//	edbq --db people.db query --where City --any-of Paris,Rome --filter 'row.age > 30'
//	edbq --mem --fixtures fixtures.yaml query --explain --where Email --prefix a
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "edbq:", err)
		os.Exit(1)
	}
}
