package edbq

import (
	"fmt"
	"reflect"
)

type Index struct {
	table    *Table
	pos      int // index in table.indices, unstable across code changes
	name     string
	recType  reflect.Type
	keyEnc   *keyEncoding
	isUnique bool
	field    *fieldPath // nil when filled by a custom indexer only
}

func indexBucketName(name string) string {
	return indexBucketPrefix + name
}

// AddIndex defines an index over values of type T. Name it after the row
// field it covers (a Go field name or msgpack tag, dotted for nested
// fields) to have it filled automatically and matched by Where.
func AddIndex[T any](name string) *Index {
	recType := reflect.TypeFor[T]()
	enc, err := tryKeyEncodingOf(recType)
	if err != nil {
		panic(fmt.Errorf("index %q: %w", name, err))
	}
	return &Index{
		name:    name,
		recType: recType,
		keyEnc:  enc,
	}
}

func (idx *Index) requireTable() {
	if idx.table == nil {
		panic(fmt.Errorf("index %q was not added to a table", idx.name))
	}
}

func (idx *Index) Table() *Table {
	return idx.table
}

func (idx *Index) Name() string {
	return idx.name
}

func (idx *Index) FullName() string {
	idx.requireTable()
	return idx.table.name + "." + idx.name
}

func (idx *Index) Unique() *Index {
	idx.isUnique = true
	return idx
}

func (idx *Index) IsUnique() bool {
	return idx.isUnique
}

func (idx *Index) bucketName() string {
	return indexBucketName(idx.name)
}

// splitEntry returns the encoded index value and the primary key stored in
// an index entry. Unique entries keep the primary key in the value,
// non-unique entries append it to the index value in the key.
func (idx *Index) splitEntry(k, v []byte) (idxKey, pk []byte, err error) {
	if idx.isUnique {
		return k, v, nil
	}
	n, err := idx.keyEnc.skip(k)
	if err != nil {
		return nil, nil, tableErrf(idx.table, idx, k, err, "invalid index entry")
	}
	return k[:n], k[n:], nil
}

func (idx *Index) decodeIndexKeyVal(idxKey []byte) (reflect.Value, error) {
	ptr := reflect.New(idx.recType)
	err := idx.keyEnc.decode(idxKey, ptr)
	if err != nil {
		return reflect.Value{}, tableErrf(idx.table, idx, idxKey, err, "decoding index key")
	}
	return ptr.Elem(), nil
}
