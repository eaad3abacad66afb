package edbq

import (
	"bytes"
	"reflect"
)

// Put saves rows into their tables, panicking on failure.
func Put(txh Txish, rows ...any) {
	tx := txh.DBTx()
	for _, row := range rows {
		tbl := tx.tableByRowPtr(row)
		tx.Put(tbl, row)
	}
}

func (tx *Tx) Put(tbl *Table, row any) ValueMeta {
	return must(tx.TryPut(tbl, row))
}

// TryPut saves row, returning an error wrapping ErrUniqueViolation if a
// unique index already maps the row's value to another key.
func (tx *Tx) TryPut(tbl *Table, row any) (ValueMeta, error) {
	return tx.putVal(tbl, reflect.ValueOf(row))
}

func (tx *Tx) putVal(tbl *Table, rowVal reflect.Value) (ValueMeta, error) {
	if tx == nil {
		panic("nil tx")
	}
	dataBuck := tx.dataBucket(tbl)

	keyVal := tbl.RowKeyVal(rowVal)
	keyRaw, err := tbl.encodeKeyVal(nil, keyVal)
	if err != nil {
		return ValueMeta{}, tableErrf(tbl, nil, nil, err, "put")
	}

	ts := tx.db.tableState(tbl)
	ib := makeIndexBuilder(ts, keyRaw)
	defer ib.release()
	tbl.buildIndexRows(rowVal, &ib)
	ib.finalize()

	if err := tx.checkUnique(tbl, keyRaw, ib.rows); err != nil {
		return ValueMeta{}, err
	}

	oldValueRaw := dataBuck.Get(keyRaw)
	var old value
	if oldValueRaw != nil {
		old, err = decodeTableValue(tbl, keyRaw, oldValueRaw)
		if err != nil {
			return ValueMeta{}, err
		}
	}

	newSchemaVer := tbl.latestSchemaVer
	newModCount := old.ModCount

	valueBuf := valueBytesPool.Get().([]byte)
	valueRaw := reserveValueHeader(valueBuf)
	dataOff := len(valueRaw)
	valueRaw = tbl.encodeRowVal(valueRaw, rowVal)
	dataBytes := valueRaw[dataOff:]
	indexOff := len(valueRaw)
	valueRaw = appendIndexKeys(valueRaw, ib.rows)
	indexBytes := valueRaw[indexOff:]
	tx.addValueBuf(valueRaw[:0])

	isDataUnchanged := bytes.Equal(dataBytes, old.Data)
	isIndexKeySetUnchanged := bytes.Equal(indexBytes, old.Index)

	if oldValueRaw != nil && (old.SchemaVer == newSchemaVer) && isDataUnchanged && isIndexKeySetUnchanged && !tx.reindexing {
		if tx.db.verbose {
			tx.db.logf("db: PUT.NOOP %s/%v => m=%d %s", tbl.name, keyVal, newModCount, loggableRowVal(tbl, rowVal))
		}
		return ValueMeta{newSchemaVer, newModCount}, nil
	}
	if !isDataUnchanged {
		newModCount++
	}
	valueRaw = putValueHeader(valueRaw, vfDefault, newSchemaVer, newModCount, indexOff)
	tx.markWritten()

	// old.Index points into the stored value, so stale entries go before the overwrite
	if oldValueRaw != nil && !isIndexKeySetUnchanged && !tx.reindexing {
		del := prepareToDeleteIndexEntries(tx, ts)
		if err := findRemovedIndexKeys(old.Index, ib.rows, del); err != nil {
			return ValueMeta{}, tableErrf(tbl, nil, keyRaw, err, "removing stale index entries")
		}
	}

	if err := dataBuck.Put(keyRaw, valueRaw); err != nil {
		return ValueMeta{}, tableErrf(tbl, nil, keyRaw, err, "put")
	}

	if tx.db.verbose {
		tx.db.logf("db: PUT %s/%v => m=%d %s", tbl.name, keyVal, newModCount, loggableRowVal(tbl, rowVal))
	}

	// put new index entries even if the key set is unchanged, values may have changed
	var idx *Index
	var idxBuck storageBucket
	for _, ir := range ib.rows {
		if ir.Index != idx {
			idx = ir.Index
			idxBuck = tx.indexBucket(idx)
		}
		if err := idxBuck.Put(ir.KeyRaw, ir.ValueRaw); err != nil {
			return ValueMeta{}, tableErrf(tbl, idx, ir.KeyRaw, err, "put index entry")
		}
	}

	return ValueMeta{newSchemaVer, newModCount}, nil
}

func (tx *Tx) checkUnique(tbl *Table, keyRaw []byte, rows indexRows) error {
	for _, ir := range rows {
		if !ir.Index.isUnique {
			continue
		}
		existing := tx.indexBucket(ir.Index).Get(ir.KeyRaw)
		if existing != nil && !bytes.Equal(existing, keyRaw) {
			return tableErrf(tbl, ir.Index, keyRaw, ErrUniqueViolation, "value already used by %s", tbl.describeRawKey(existing))
		}
	}
	return nil
}
