package edbq

import (
	"fmt"
	"reflect"
	"strings"
)

type structInfo struct {
	keyField reflect.StructField
}

func (si *structInfo) keyValue(rowVal reflect.Value) reflect.Value {
	return rowVal.Elem().FieldByIndex(si.keyField.Index)
}

func reflectRowType(typ reflect.Type) *structInfo {
	if typ.Kind() != reflect.Ptr {
		panic(fmt.Errorf("%v not a pointer", typ))
	}
	typ = typ.Elem()
	if typ.Kind() != reflect.Struct {
		panic(fmt.Errorf("%v not a struct", typ))
	}
	if typ.NumField() == 0 {
		panic(fmt.Errorf("%v is an empty struct", typ))
	}
	keyField := typ.Field(0)
	if !keyField.IsExported() {
		panic(fmt.Errorf("key field %v.%s must be exported", typ, keyField.Name))
	}
	return &structInfo{keyField: keyField}
}

// fieldPath is a resolved dotted path into a row struct. Each segment may
// name a field by its Go name or by its msgpack tag.
type fieldPath struct {
	name  string       // canonical dotted Go names
	steps [][]int      // field index per segment
	typ   reflect.Type // leaf type with pointers removed
}

func resolveFieldPath(rowType reflect.Type, path string) (*fieldPath, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty field path", ErrUnknownField)
	}
	fp := &fieldPath{}
	var names []string
	typ := derefType(rowType)
	for _, seg := range strings.Split(path, ".") {
		if typ.Kind() != reflect.Struct {
			return nil, fmt.Errorf("%w: %s in %v: %v is not a struct", ErrUnknownField, path, rowType, typ)
		}
		f, ok := lookupField(typ, seg)
		if !ok {
			return nil, fmt.Errorf("%w: %s in %v", ErrUnknownField, path, rowType)
		}
		fp.steps = append(fp.steps, f.Index)
		names = append(names, f.Name)
		typ = derefType(f.Type)
	}
	fp.name = strings.Join(names, ".")
	fp.typ = typ
	return fp, nil
}

func lookupField(typ reflect.Type, name string) (reflect.StructField, bool) {
	for _, f := range reflect.VisibleFields(typ) {
		if !f.IsExported() || f.Anonymous && derefType(f.Type).Kind() == reflect.Struct {
			continue
		}
		if f.Name == name || msgpackName(f) == name {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

func msgpackName(f reflect.StructField) string {
	tag, _, _ := strings.Cut(f.Tag.Get("msgpack"), ",")
	if tag == "-" {
		return ""
	}
	return tag
}

func derefType(typ reflect.Type) reflect.Type {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return typ
}

// valueIn returns the field's value within rowVal (a pointer to the row
// struct), or false if a nil pointer is on the way.
func (fp *fieldPath) valueIn(rowVal reflect.Value) (reflect.Value, bool) {
	v := rowVal
	for _, step := range fp.steps {
		for v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		var err error
		v, err = v.FieldByIndexErr(step)
		if err != nil {
			return reflect.Value{}, false
		}
	}
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, true
}

func (tx *Tx) tableByRowType(rt reflect.Type) *Table {
	tbl := tx.db.schema.tablesByRowType[rt]
	if tbl == nil {
		panic(fmt.Errorf("no table defined for row type %v", rt))
	}
	return tbl
}

func (tx *Tx) tableByRowPtr(ptr any) *Table {
	rt := reflect.TypeOf(ptr)
	if rt.Kind() == reflect.Ptr && rt.Elem().Kind() == reflect.Struct {
		return tx.tableByRowType(rt)
	} else {
		panic(fmt.Errorf("expected pointer to a table row type, got %v", rt))
	}
}

func tableOf[Row any](tx *Tx) *Table {
	return tx.tableByRowType(reflect.TypeFor[*Row]())
}
