package edbq

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	db := must(OpenMemory(basicSchema, Options{IsTesting: true, Registerer: reg}))
	defer db.Close()
	seedUsers(t, db)
	ctx := context.Background()

	must(From[User](db).All(ctx))
	must(From[User](db).Where("Age").Equal(25).Count(ctx))
	must(From[User](db).Where("Age").AnyOf(20, 25).All(ctx))
	_, err := From[User](db).Where("Nope").Equal(1).All(ctx)
	if err == nil {
		t.Fatal("** expected an error")
	}

	m := db.metrics
	deepEqual(t, testutil.ToFloat64(m.queries.WithLabelValues(opAll, "primary")), 2.0)
	deepEqual(t, testutil.ToFloat64(m.queries.WithLabelValues(opCount, "index")), 1.0)
	deepEqual(t, testutil.ToFloat64(m.queries.WithLabelValues(opAll, "index")), 1.0)
	deepEqual(t, testutil.ToFloat64(m.queryErrors.WithLabelValues(opAll)), 1.0)
	deepEqual(t, testutil.ToFloat64(m.rowsYielded), 7.0)
	// 4 rows and the end of the table, then 2 prefix scans of 2 moves each
	deepEqual(t, testutil.ToFloat64(m.advances), 9.0)

	const fanOut = `
# HELP edbq_fanout_lookups Number of sub-lookups per multi-value query
# TYPE edbq_fanout_lookups histogram
edbq_fanout_lookups_bucket{le="1"} 0
edbq_fanout_lookups_bucket{le="2"} 1
edbq_fanout_lookups_bucket{le="4"} 1
edbq_fanout_lookups_bucket{le="8"} 1
edbq_fanout_lookups_bucket{le="16"} 1
edbq_fanout_lookups_bucket{le="32"} 1
edbq_fanout_lookups_bucket{le="64"} 1
edbq_fanout_lookups_bucket{le="128"} 1
edbq_fanout_lookups_bucket{le="256"} 1
edbq_fanout_lookups_bucket{le="512"} 1
edbq_fanout_lookups_bucket{le="+Inf"} 1
edbq_fanout_lookups_sum 2
edbq_fanout_lookups_count 1
`
	noerr(t, testutil.GatherAndCompare(reg, strings.NewReader(fanOut), "edbq_fanout_lookups"))
}

func TestMetrics_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	db1 := must(OpenMemory(basicSchema, Options{IsTesting: true, Registerer: reg}))
	defer db1.Close()
	db2 := must(OpenMemory(basicSchema, Options{IsTesting: true, Registerer: reg}))
	defer db2.Close()

	if db1.metrics.queries != db2.metrics.queries {
		t.Fatal("** second DB did not reuse the registered collectors")
	}
	must(From[User](db1).Count(context.Background()))
	must(From[User](db2).Count(context.Background()))
	deepEqual(t, testutil.ToFloat64(db1.metrics.queries.WithLabelValues(opCount, "primary")), 2.0)
	deepEqual(t, testutil.CollectAndCount(reg, "edbq_queries_total"), 1)
}
