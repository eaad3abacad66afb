package edbq

import (
	"fmt"
	"reflect"
)

// Lookup returns the first row whose idx value equals value, or nil.
func Lookup[Row any](txh Txish, idx *Index, value any) *Row {
	tx := txh.DBTx()
	if tbl := tableOf[Row](tx); idx.table != tbl {
		panic(fmt.Errorf("invalid index %v for table %v", idx.FullName(), tbl.Name()))
	}
	rowVal, _ := must2(tx.LookupVal(idx, value))
	if !rowVal.IsValid() {
		return nil
	}
	return rowVal.Interface().(*Row)
}

// LookupKey returns the primary key of the first row whose idx value equals value.
func LookupKey[Key any](txh Txish, idx *Index, value any) (Key, bool) {
	tx := txh.DBTx()
	if at, et := reflect.TypeFor[Key](), idx.table.KeyType(); at != et {
		panic(fmt.Errorf("%s: LookupKey has incorrect return type %v, expected %v", idx.FullName(), at, et))
	}
	var zero Key
	keyRaw := must(tx.lookupRawKey(idx, value))
	if keyRaw == nil {
		return zero, false
	}
	keyVal := must(idx.table.DecodeKeyVal(keyRaw))
	return keyVal.Interface().(Key), true
}

func LookupExists(txh Txish, idx *Index, value any) bool {
	tx := txh.DBTx()
	keyRaw := must(tx.lookupRawKey(idx, value))
	if tx.db.verbose {
		if keyRaw != nil {
			tx.db.logf("db: LOOKUP_EXISTS.OK %s/%v", idx.FullName(), value)
		} else {
			tx.db.logf("db: LOOKUP_EXISTS.NOTFOUND %s/%v", idx.FullName(), value)
		}
	}
	return keyRaw != nil
}

func (tx *Tx) LookupVal(idx *Index, value any) (reflect.Value, ValueMeta, error) {
	keyRaw, err := tx.lookupRawKey(idx, value)
	if err != nil || keyRaw == nil {
		if tx.db.verbose && err == nil {
			tx.db.logf("db: LOOKUP.NOTFOUND %s/%v", idx.FullName(), value)
		}
		return reflect.Value{}, ValueMeta{}, err
	}
	rowVal, rowMeta, err := tx.getRowValByRawKey(idx.table, keyRaw)
	if err != nil {
		return reflect.Value{}, ValueMeta{}, err
	}
	if !rowVal.IsValid() {
		return reflect.Value{}, ValueMeta{}, tableErrf(idx.table, idx, keyRaw, nil, "index entry points to missing row")
	}
	if tx.db.verbose {
		tx.db.logf("db: LOOKUP %s/%v => %v", idx.FullName(), value, loggableRowVal(idx.table, rowVal))
	}
	return rowVal, rowMeta, nil
}

// lookupRawKey returns the encoded primary key of the first entry of idx
// for value, or nil.
func (tx *Tx) lookupRawKey(idx *Index, value any) ([]byte, error) {
	idxKey, err := encodeBound(value, idx.recType, idx.keyEnc)
	if err != nil {
		return nil, err
	}
	b := tx.indexBucket(idx)
	if idx.isUnique {
		return b.Get(idxKey), nil
	}
	r := RawPrefix(idxKey)
	c := r.newCursor(b.Cursor(), tx.db.logger)
	if !c.Next() {
		return nil, nil
	}
	_, pk, err := idx.splitEntry(c.Key(), c.Value())
	return pk, err
}

func must2[A, B any](a A, b B, err error) (A, B) {
	if err != nil {
		panic(err)
	}
	return a, b
}
