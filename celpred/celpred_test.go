package celpred_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/andreyvit/edbq"
	"github.com/andreyvit/edbq/celpred"
)

type City struct {
	Code    string  `msgpack:"-"`
	Name    string  `msgpack:"name"`
	Country string  `msgpack:"country"`
	Pop     int     `msgpack:"pop"`
	Area    float64 `msgpack:"area"`
}

var (
	schema          = &edbq.Schema{}
	citiesTable     = edbq.AddTable[City](schema, "cities", 1, nil, []*edbq.Index{citiesByCountry})
	citiesByCountry = edbq.AddIndex[string]("Country")
)

func setup(t testing.TB) *edbq.DB {
	db, err := edbq.OpenMemory(schema, edbq.Options{IsTesting: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	db.Write(func(tx *edbq.Tx) {
		edbq.Put(tx,
			&City{"BER", "Berlin", "DE", 3_800_000, 891.8},
			&City{"HAM", "Hamburg", "DE", 1_900_000, 755.2},
			&City{"MUC", "Munich", "DE", 1_500_000, 310.4},
			&City{"PAR", "Paris", "FR", 2_100_000, 105.4},
			&City{"LYS", "Lyon", "FR", 520_000, 47.9},
		)
	})
	return db
}

func codes(rows []*City) []string {
	var r []string
	for _, c := range rows {
		r = append(r, c.Code)
	}
	return r
}

func TestFilter(t *testing.T) {
	db := setup(t)
	ctx := context.Background()
	tests := []struct {
		expr string
		q    edbq.Query[City]
		want []string
	}{
		{"row.pop > 2000000", edbq.From[City](db), []string{"BER", "PAR"}},
		{"row.area < 400", edbq.From[City](db), []string{"LYS", "MUC", "PAR"}},
		{"row.area > 100", edbq.From[City](db).Where("Country").Equal("FR"), []string{"PAR"}},
		{`key.startsWith("M") || key == "LYS"`, edbq.From[City](db), []string{"LYS", "MUC"}},
		{`row.name.contains("bur")`, edbq.From[City](db), []string{"HAM"}},
		{`row.country in ["FR"] && row.pop < 1000000`, edbq.From[City](db), []string{"LYS"}},
		{"row.pop >= 1500000", edbq.From[City](db).Where("Country").AnyOf("FR", "DE").Descending(), []string{"PAR", "MUC", "HAM", "BER"}},
		{"true", edbq.From[City](db).Limit(2), []string{"BER", "HAM"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			prog, err := celpred.Compile(tt.expr)
			if err != nil {
				t.Fatal(err)
			}
			rows, err := tt.q.Filter(celpred.For[City](prog, citiesTable)).All(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if a, e := codes(rows), tt.want; !reflect.DeepEqual(a, e) {
				t.Errorf("** got %v, wanted %v", a, e)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	for _, expr := range []string{
		"row.pop >",
		"row.pop + 1",
		`"string"`,
		"unknown > 1",
	} {
		if _, err := celpred.Compile(expr); err == nil {
			t.Errorf("** Compile(%q) succeeded, wanted error", expr)
		}
	}
}

func TestCompileCaches(t *testing.T) {
	a := celpred.MustCompile("row.pop > 1")
	b := celpred.MustCompile("row.pop > 1")
	if a != b {
		t.Errorf("** expected the cached program")
	}
	if a.String() != "row.pop > 1" {
		t.Errorf("** String() = %q", a.String())
	}
}

func TestEvalError(t *testing.T) {
	db := setup(t)
	prog := celpred.MustCompile("row.missing > 1")
	_, err := edbq.From[City](db).Filter(celpred.For[City](prog, citiesTable)).All(context.Background())
	var pe *edbq.PredicateError
	if !errors.As(err, &pe) {
		t.Fatalf("** got %v, wanted *edbq.PredicateError", err)
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Errorf("** error %q does not mention the field", err)
	}
}

func TestRowMap(t *testing.T) {
	m, err := celpred.RowMap(&City{"X", "Xanadu", "MN", 7, 1.5})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"name": "Xanadu", "country": "MN", "pop": int64(7), "area": 1.5}
	if !reflect.DeepEqual(m, want) {
		t.Errorf("** got %#v, wanted %#v", m, want)
	}
}
