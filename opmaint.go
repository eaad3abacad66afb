package edbq

// Reindex rebuilds idx, or every index of tbl when idx is nil, from the
// stored rows.
func (tx *Tx) Reindex(tbl *Table, idx *Index) error {
	ts := tx.db.tableState(tbl)
	for _, is := range ts.indexStates {
		if idx != nil && idx != is.index {
			continue
		}
		name := is.index.bucketName()
		if err := tx.stx.DeleteBucket(tbl.name, name); err != nil && err != ErrBucketNotFound {
			return tableErrf(tbl, is.index, nil, err, "dropping index")
		}
		if _, err := tx.stx.CreateBucket(tbl.name, name); err != nil {
			return tableErrf(tbl, is.index, nil, err, "creating index")
		}
		is.Built = false
	}
	tx.markWritten()
	if err := ts.reindex(tx); err != nil {
		return err
	}
	return ts.save(tx)
}

// CountAll returns the number of rows in tbl.
func CountAll(txh Txish, tbl *Table) int {
	return txh.DBTx().dataBucket(tbl).KeyCount()
}
