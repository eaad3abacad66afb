package edbq

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"
)

type IndexRow struct {
	IndexOrd uint64
	Index    *Index
	KeyRaw   []byte
	ValueRaw []byte
}

type IndexBuilder struct {
	ts   *tableState
	rows indexRows
	key  []byte
}

func makeIndexBuilder(ts *tableState, keyRaw []byte) IndexBuilder {
	return IndexBuilder{
		ts:   ts,
		rows: indexRowsPool.Get().(indexRows),
		key:  keyRaw,
	}
}

// Add records an index entry for the row being saved. value must have the
// index's type.
func (b *IndexBuilder) Add(idx *Index, value any) {
	valueVal := reflect.ValueOf(value)
	if at, et := valueVal.Type(), idx.recType; at != et {
		panic(fmt.Errorf("%s: attempted to add index entry with incorrect type %v, expected %v", idx.FullName(), at, et))
	}
	b.addVal(idx, valueVal, false)
}

func (b *IndexBuilder) addVal(idx *Index, valueVal reflect.Value, skipInvalid bool) {
	keyRaw, err := idx.keyEnc.encode(nil, valueVal)
	if err != nil {
		if skipInvalid {
			return
		}
		panic(fmt.Errorf("%s: cannot index %v: %w", idx.FullName(), valueVal.Interface(), err))
	}

	var valueRaw []byte
	if idx.isUnique {
		valueRaw = b.key
	} else {
		valueRaw = emptyIndexValue
		keyRaw = append(keyRaw, b.key...)
	}

	b.rows = append(b.rows, IndexRow{b.ts.indexOrdinal(idx), idx, keyRaw, valueRaw})
}

func (b *IndexBuilder) release() {
	clear(b.rows)
	indexRowsPool.Put(b.rows[:0])
	b.rows = nil
}

// finalize sorts the rows by ordinal and key, the order findRemovedIndexKeys expects.
func (b *IndexBuilder) finalize() {
	sort.Sort(b.rows)
}

type indexRows []IndexRow

func (a indexRows) Len() int      { return len(a) }
func (a indexRows) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a indexRows) Less(i, j int) bool {
	lo, ro := a[i].IndexOrd, a[j].IndexOrd
	if lo != ro {
		return lo < ro
	}
	return bytes.Compare(a[i].KeyRaw, a[j].KeyRaw) < 0
}
