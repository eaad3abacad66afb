package edbq

import (
	"reflect"
)

func Get[Row any](txh Txish, key any) *Row {
	tx := txh.DBTx()
	tbl := tableOf[Row](tx)
	row, _ := tx.Get(tbl, key)
	if row == nil {
		return nil
	}
	return row.(*Row)
}

func Exists[Row any](txh Txish, key any) bool {
	tx := txh.DBTx()
	tbl := tableOf[Row](tx)
	return tx.Exists(tbl, key)
}

func (tx *Tx) Get(tbl *Table, key any) (any, ValueMeta) {
	row, meta, err := tx.TryGet(tbl, key)
	if err != nil {
		panic(err)
	}
	return row, meta
}

func (tx *Tx) TryGet(tbl *Table, key any) (any, ValueMeta, error) {
	keyRaw, err := tbl.EncodeKey(key)
	if err != nil {
		return nil, ValueMeta{}, err
	}
	rowVal, rowMeta, err := tx.getRowValByRawKey(tbl, keyRaw)
	if tx.db.verbose {
		if rowVal.IsValid() {
			tx.db.logf("db: GET %s/%v => %v", tbl.name, key, loggableRowVal(tbl, rowVal))
		} else {
			tx.db.logf("db: GET.NOTFOUND %s/%v", tbl.name, key)
		}
	}
	if err != nil || !rowVal.IsValid() {
		return nil, ValueMeta{}, err
	}
	return rowVal.Interface(), rowMeta, nil
}

func (tx *Tx) Exists(tbl *Table, key any) bool {
	keyRaw := must(tbl.EncodeKey(key))
	found := tx.dataBucket(tbl).Get(keyRaw) != nil
	if tx.db.verbose {
		tx.db.logf("db: EXISTS.%s %s/%v", map[bool]string{false: "NO", true: "YES"}[found], tbl.name, key)
	}
	return found
}

func (tx *Tx) getRowValByRawKey(tbl *Table, keyRaw []byte) (reflect.Value, ValueMeta, error) {
	valueRaw := tx.dataBucket(tbl).Get(keyRaw)
	if valueRaw == nil {
		return reflect.Value{}, ValueMeta{}, nil
	}
	return decodeTableRow(tbl, keyRaw, valueRaw)
}
