package edbq

import (
	"encoding/json"
	"reflect"
)

type TableStats struct {
	Rows      int
	IndexRows int

	DataSize   int64
	DataAlloc  int64
	IndexSize  int64
	IndexAlloc int64
}

func (ts *TableStats) TotalSize() int64 {
	return ts.DataSize + ts.IndexSize
}

func (ts *TableStats) TotalAlloc() int64 {
	return ts.DataAlloc + ts.IndexAlloc
}

func (tx *Tx) TableStats(tbl *Table) TableStats {
	bs := tx.dataBucket(tbl).Stats()
	result := TableStats{
		Rows:      bs.KeyN,
		DataSize:  bs.LeafInuse,
		DataAlloc: bs.TotalAlloc(),
	}
	for _, idx := range tbl.indices {
		bs = tx.indexBucket(idx).Stats()
		result.IndexRows += bs.KeyN
		result.IndexSize += bs.LeafInuse
		result.IndexAlloc += bs.TotalAlloc()
	}
	return result
}

func loggableRowVal(tbl *Table, rowVal reflect.Value) string {
	if tbl.suppressContent {
		if !rowVal.IsValid() {
			return "<none>"
		}
		return "<suppressed>"
	}
	return loggableVal(rowVal)
}

func loggableVal(rowVal reflect.Value) string {
	if !rowVal.IsValid() {
		return "<none>"
	}
	return string(must(json.Marshal(rowVal.Interface())))
}
