package edbq

import (
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpTableHeaders = DumpFlags(1 << iota)
	DumpRows
	DumpStats
	DumpIndices
	DumpIndexRows

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the contents of every table for debugging and tests.
func (tx *Tx) Dump(f DumpFlags) string {
	var buf strings.Builder
	for _, tbl := range tx.db.schema.tables {
		tx.dumpTable(&buf, f, tbl)
	}
	return buf.String()
}

func (tx *Tx) dumpTable(w *strings.Builder, f DumpFlags, tbl *Table) {
	prefix := tbl.Name()
	s := tx.TableStats(tbl)
	ts := tx.db.tableState(tbl)

	if f.Contains(DumpTableHeaders) {
		fmt.Fprintln(w, dumpSep1)
		fmt.Fprintf(w, "%s (%d rows)\n", prefix, s.Rows)
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, "%s.stats: index_rows = %d, data_size = %d, data_alloc = %d, index_size = %d, index_alloc = %d, total_alloc = %d\n", prefix, s.IndexRows, s.DataSize, s.DataAlloc, s.IndexSize, s.IndexAlloc, s.TotalAlloc())
	}

	if f.Contains(DumpRows) {
		if f.Contains(DumpStats) {
			fmt.Fprintln(w, dumpSep2)
		}
		c := tx.dataBucket(tbl).Cursor()
		var rowPos int
		for k, v := c.First(); k != nil; k, v = c.Next() {
			rowPos++
			dumpRow(w, prefix, tbl, rowPos, k, v)
		}
	}

	if f.Contains(DumpIndices) {
		for _, idx := range tbl.indices {
			tx.dumpIndex(w, prefix, f, idx, ts)
		}
	}
}

func (tx *Tx) dumpIndex(w *strings.Builder, prefix string, f DumpFlags, idx *Index, ts *tableState) {
	fmt.Fprintln(w, dumpSep2)
	prefix = prefix + ".i." + idx.Name()
	is := ts.indexStates[idx.pos]

	fmt.Fprintf(w, "%s (0x%x)%s\n", prefix, is.IndexOrdinal, map[bool]string{false: " PENDING", true: ""}[is.Built])

	if f.Contains(DumpIndexRows) {
		c := tx.indexBucket(idx).Cursor()
		var rowPos int
		for k, v := c.First(); k != nil; k, v = c.Next() {
			rowPos++
			dumpIndexRow(w, prefix, idx, rowPos, k, v)
		}
	}
}

func dumpRow(w *strings.Builder, prefix string, tbl *Table, rowPos int, k, v []byte) {
	rowVal, rowMeta, err := decodeTableRow(tbl, k, v)
	if err != nil {
		fmt.Fprintf(w, "%s.%d = ** ERROR: %v\n", prefix, rowPos, err)
		return
	}
	fmt.Fprintf(w, "%s.%d = (m%d s%d) %s\n", prefix, rowPos, rowMeta.ModCount, rowMeta.SchemaVer, loggableVal(rowVal))
}

func dumpIndexRow(w *strings.Builder, prefix string, idx *Index, rowPos int, k, v []byte) {
	idxKey, pk, err := idx.splitEntry(k, v)
	if err != nil {
		fmt.Fprintf(w, "%s.%d: ** ERROR: %v\n", prefix, rowPos, err)
		return
	}
	var valStr string
	if val, err := idx.decodeIndexKeyVal(idxKey); err != nil {
		valStr = "** " + hexstr(idxKey)
	} else {
		valStr = fmt.Sprint(val.Interface())
	}
	fmt.Fprintf(w, "%s.%d: %s => %s\n", prefix, rowPos, valStr, idx.table.describeRawKey(pk))
}
