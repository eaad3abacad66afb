package edbq

import (
	"fmt"
	"reflect"
	"slices"
)

type Table struct {
	schema          *Schema
	name            string
	latestSchemaVer uint64
	pos             int // index in schema.tables, unstable across code changes
	rowType         reflect.Type
	rowTypePtr      reflect.Type
	rowInfo         *structInfo
	indices         []*Index
	indicesByName   map[string]*Index
	indexer         func(row any, ib *IndexBuilder)
	keyEnc          *keyEncoding
	keyType         reflect.Type
	valueEnc        encodingMethod
	suppressContent bool
}

func (tbl *Table) Name() string {
	return tbl.name
}

type tableOpt int

const (
	SuppressContentWhenLogging = tableOpt(1)
)

// AddTable defines a table holding Row values. The first field of Row is the
// primary key. When indexer is nil, every index is filled from the row field
// named by the index.
func AddTable[Row any](scm *Schema, name string, latestSchemaVer uint64, indexer func(row *Row, ib *IndexBuilder), indices []*Index, opts ...any) *Table {
	tbl := newTable[Row](scm, name)
	tbl.latestSchemaVer = latestSchemaVer
	if indexer != nil {
		tbl.indexer = func(row any, ib *IndexBuilder) {
			indexer(row.(*Row), ib)
		}
	}

	for _, opt := range opts {
		switch opt := opt.(type) {
		case tableOpt:
			if opt == SuppressContentWhenLogging {
				tbl.suppressContent = true
			}
		default:
			panic(fmt.Errorf("invalid option %T %v", opt, opt))
		}
	}

	for _, idx := range indices {
		tbl.AddIndex(idx)
	}
	return tbl
}

func newTable[Row any](scm *Schema, name string) *Table {
	scm.init()
	rowPtrType := reflect.TypeFor[*Row]()
	if rowPtrType.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("%s: table row type must be a struct, got %v", name, rowPtrType.Elem()))
	}
	tbl := &Table{
		schema:          scm,
		name:            name,
		latestSchemaVer: 1,
		rowTypePtr:      rowPtrType,
		rowType:         rowPtrType.Elem(),
		rowInfo:         reflectRowType(rowPtrType),
		valueEnc:        defaultValueEncoding,
		indicesByName:   make(map[string]*Index),
	}
	tbl.keyType = tbl.rowInfo.keyField.Type
	enc, err := tryKeyEncodingOf(tbl.keyType)
	if err != nil {
		panic(fmt.Errorf("%s: primary key %s: %w", name, tbl.rowInfo.keyField.Name, err))
	}
	tbl.keyEnc = enc
	scm.addTable(tbl)
	return tbl
}

func (tbl *Table) AddIndex(idx *Index) *Table {
	if tbl.indicesByName[idx.name] != nil {
		panic(fmt.Errorf("table %s already has index named %q", tbl.name, idx.name))
	}
	if idx.table != nil {
		panic(fmt.Errorf("index %q already added to table %s", idx.name, idx.table.name))
	}
	if fp, err := resolveFieldPath(tbl.rowType, idx.name); err == nil {
		if fp.typ != idx.recType {
			panic(fmt.Errorf("%s.%s: field type is %v, index type is %v", tbl.name, idx.name, fp.typ, idx.recType))
		}
		idx.field = fp
	} else if tbl.indexer == nil {
		panic(fmt.Errorf("%s.%s: index needs an indexer func: %w", tbl.name, idx.name, err))
	}
	idx.pos = len(tbl.indices)
	tbl.indices = append(tbl.indices, idx)
	tbl.indicesByName[idx.name] = idx
	idx.table = tbl
	return tbl
}

func (tbl *Table) Indices() []*Index {
	return slices.Clone(tbl.indices)
}

func (tbl *Table) IndexNamed(name string) *Index {
	return tbl.indicesByName[name]
}

// indexForField returns the index covering fp, if any.
func (tbl *Table) indexForField(fp *fieldPath) *Index {
	for _, idx := range tbl.indices {
		if idx.field != nil && idx.field.name == fp.name {
			return idx
		}
	}
	return nil
}

func (tbl *Table) KeyType() reflect.Type {
	return tbl.keyType
}

// KeyField returns the Go name of the primary key field.
func (tbl *Table) KeyField() string {
	return tbl.rowInfo.keyField.Name
}

// FieldType returns the type that query bounds on field are converted to:
// the field's own type, or the value type of the index with that name.
func (tbl *Table) FieldType(field string) (reflect.Type, error) {
	fp, err := resolveFieldPath(tbl.rowType, field)
	if err == nil {
		return fp.typ, nil
	}
	if idx := tbl.IndexNamed(field); idx != nil {
		return idx.recType, nil
	}
	return nil, tableErrf(tbl, nil, nil, err, "field")
}

func (tbl *Table) isKeyField(fp *fieldPath) bool {
	return len(fp.steps) == 1 && slices.Equal(fp.steps[0], tbl.rowInfo.keyField.Index)
}

func (tbl *Table) buildIndexRows(rowVal reflect.Value, ib *IndexBuilder) {
	if tbl.indexer != nil {
		tbl.indexer(rowVal.Interface(), ib)
		return
	}
	for _, idx := range tbl.indices {
		fv, ok := idx.field.valueIn(rowVal)
		if !ok {
			continue
		}
		ib.addVal(idx, fv, true)
	}
}

func (tbl *Table) RowKeyVal(rowVal reflect.Value) reflect.Value {
	return tbl.rowInfo.keyValue(rowVal)
}
func (tbl *Table) RowKey(row any) any {
	return tbl.RowKeyVal(reflect.ValueOf(row)).Interface()
}

func (tbl *Table) ensureCorrectKeyType(keyVal reflect.Value) (reflect.Value, error) {
	if keyVal.Type() == tbl.keyType {
		return keyVal, nil
	}
	return coerceKey(keyVal.Interface(), tbl.keyType)
}

func (tbl *Table) EncodeKey(key any) ([]byte, error) {
	keyVal, err := tbl.ensureCorrectKeyType(reflect.ValueOf(key))
	if err != nil {
		return nil, err
	}
	return tbl.encodeKeyVal(nil, keyVal)
}

func (tbl *Table) encodeKeyVal(buf []byte, keyVal reflect.Value) ([]byte, error) {
	out, err := tbl.keyEnc.encode(buf, keyVal)
	if err != nil {
		return buf, &KeyError{Type: tbl.keyType, Value: keyVal.Interface(), Err: err}
	}
	return out, nil
}

func (tbl *Table) DecodeKeyVal(buf []byte) (reflect.Value, error) {
	keyPtr := reflect.New(tbl.keyType)
	err := tbl.keyEnc.decode(buf, keyPtr)
	if err != nil {
		return reflect.Value{}, tableErrf(tbl, nil, buf, err, "decoding key")
	}
	return keyPtr.Elem(), nil
}

func (tbl *Table) NewRowVal() reflect.Value {
	return reflect.New(tbl.rowType)
}

func (tbl *Table) encodeRowVal(buf []byte, rowVal reflect.Value) []byte {
	return tbl.valueEnc.EncodeValue(buf, rowVal)
}

func (tbl *Table) describeRawKey(keyRaw []byte) string {
	keyVal, err := tbl.DecodeKeyVal(keyRaw)
	if err != nil {
		return hexstr(keyRaw)
	}
	return fmt.Sprint(keyVal.Interface())
}
