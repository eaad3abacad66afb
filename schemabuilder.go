package edbq

type TableBuilder[Row any] struct {
	tbl *Table
}

// DefineTable is a builder-style alternative to AddTable.
func DefineTable[Row any](scm *Schema, name string, f func(b *TableBuilder[Row])) *Table {
	tbl := newTable[Row](scm, name)
	b := TableBuilder[Row]{
		tbl: tbl,
	}
	f(&b)
	return tbl
}

func (b *TableBuilder[Row]) Indexer(f func(row *Row, ib *IndexBuilder)) {
	if len(b.tbl.indices) > 0 {
		panic("Indexer must be set before adding indices")
	}
	b.tbl.indexer = func(row any, ib *IndexBuilder) {
		f(row.(*Row), ib)
	}
}

func (b *TableBuilder[Row]) AddIndex(idx *Index) *Index {
	b.tbl.AddIndex(idx)
	return idx
}

func (b *TableBuilder[Row]) SetSchemaVersion(ver uint64) {
	b.tbl.latestSchemaVer = ver
}

func (b *TableBuilder[Row]) SuppressContentWhenLogging() {
	b.tbl.suppressContent = true
}
