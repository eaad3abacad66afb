// Package people defines the sample schema used by the edbq command.
package people

import (
	"fmt"
	"io"
	"time"

	"github.com/andreyvit/edbq"
	"gopkg.in/yaml.v3"
)

type Person struct {
	ID     uint64    `msgpack:"-" json:"id" yaml:"id"`
	Name   string    `msgpack:"name" json:"name" yaml:"name"`
	Email  string    `msgpack:"email" json:"email" yaml:"email"`
	Age    int       `msgpack:"age" json:"age" yaml:"age"`
	City   string    `msgpack:"city,omitempty" json:"city,omitempty" yaml:"city,omitempty"`
	Joined time.Time `msgpack:"joined" json:"joined" yaml:"joined"`
}

var (
	Schema = &edbq.Schema{}

	ByEmail  = edbq.AddIndex[string]("Email").Unique()
	ByName   = edbq.AddIndex[string]("Name")
	ByAge    = edbq.AddIndex[int]("Age")
	ByCity   = edbq.AddIndex[string]("City")
	ByJoined = edbq.AddIndex[time.Time]("Joined")

	People = edbq.DefineTable(Schema, "people", func(b *edbq.TableBuilder[Person]) {
		b.AddIndex(ByEmail)
		b.AddIndex(ByName)
		b.AddIndex(ByAge)
		b.AddIndex(ByCity)
		b.AddIndex(ByJoined)
	})
)

type fixtures struct {
	People []*Person `yaml:"people"`
}

// LoadFixtures reads a YAML document with a top-level people list.
func LoadFixtures(r io.Reader) ([]*Person, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f fixtures
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("fixtures: %w", err)
	}
	for i, p := range f.People {
		if p == nil || p.ID == 0 {
			return nil, fmt.Errorf("fixtures: person #%d has no id", i+1)
		}
	}
	return f.People, nil
}

// Seed saves people in a single transaction.
func Seed(db *edbq.DB, people []*Person) error {
	return db.Tx(true, func(tx *edbq.Tx) error {
		for _, p := range people {
			if _, err := tx.TryPut(People, p); err != nil {
				return err
			}
		}
		return nil
	})
}
