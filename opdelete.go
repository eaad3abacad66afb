package edbq

import (
	"reflect"
)

func DeleteRow[Row any](txh Txish, row *Row) bool {
	tx := txh.DBTx()
	tbl := tableOf[Row](tx)
	keyVal := tbl.RowKeyVal(reflect.ValueOf(row))
	return must(tx.TryDeleteByKey(tbl, keyVal.Interface()))
}

func DeleteByKey[Row any](txh Txish, key any) bool {
	tx := txh.DBTx()
	tbl := tableOf[Row](tx)
	return tx.DeleteByKey(tbl, key)
}

func (tx *Tx) DeleteByKey(tbl *Table, key any) bool {
	return must(tx.TryDeleteByKey(tbl, key))
}

// TryDeleteByKey removes the row with the given key along with its index
// entries, reporting whether it existed.
func (tx *Tx) TryDeleteByKey(tbl *Table, key any) (bool, error) {
	keyRaw, err := tbl.EncodeKey(key)
	if err != nil {
		return false, err
	}
	ok, err := tx.deleteByKeyRaw(tbl, keyRaw)
	if tx.db.verbose {
		if ok {
			tx.db.logf("db: DELETE %s/%v", tbl.name, key)
		} else {
			tx.db.logf("db: DELETE.NOOP %s/%v", tbl.name, key)
		}
	}
	return ok, err
}

func (tx *Tx) deleteByKeyRaw(tbl *Table, keyRaw []byte) (bool, error) {
	dataBuck := tx.dataBucket(tbl)
	valueRaw := dataBuck.Get(keyRaw)
	if valueRaw == nil {
		return false, nil
	}
	old, err := decodeTableValue(tbl, keyRaw, valueRaw)
	if err != nil {
		return false, err
	}

	tx.markWritten()
	del := prepareToDeleteIndexEntries(tx, tx.db.tableState(tbl))
	if err := decodeIndexKeys(old.Index, del); err != nil {
		return false, tableErrf(tbl, nil, keyRaw, err, "deleting index entries")
	}
	if err := dataBuck.Delete(keyRaw); err != nil {
		return false, tableErrf(tbl, nil, keyRaw, err, "delete")
	}
	return true, nil
}
