package edbq

import (
	"fmt"
	"reflect"
	"strings"
)

const (
	dataBucket       = "data"
	indexBucketPrefix = "i_"
)

type Schema struct {
	tables            []*Table
	tablesByLowerName map[string]*Table
	tablesByRowType   map[reflect.Type]*Table
}

func (scm *Schema) init() {
	if scm.tablesByLowerName == nil {
		scm.tablesByLowerName = make(map[string]*Table)
		scm.tablesByRowType = make(map[reflect.Type]*Table)
	}
}

func (scm *Schema) addTable(tbl *Table) {
	lower := strings.ToLower(tbl.name)
	if scm.tablesByLowerName[lower] != nil {
		panic(fmt.Errorf("duplicate table %q", tbl.name))
	}
	if scm.tablesByRowType[tbl.rowTypePtr] != nil {
		panic(fmt.Errorf("table %q: row type %v already used by table %q", tbl.name, tbl.rowType, scm.tablesByRowType[tbl.rowTypePtr].name))
	}
	tbl.pos = len(scm.tables)
	scm.tables = append(scm.tables, tbl)
	scm.tablesByLowerName[lower] = tbl
	scm.tablesByRowType[tbl.rowTypePtr] = tbl
}

func (scm *Schema) Tables() []*Table {
	return append([]*Table(nil), scm.tables...)
}

func (scm *Schema) TableNamed(name string) *Table {
	return scm.tablesByLowerName[strings.ToLower(name)]
}

func (scm *Schema) TableByRowType(rt reflect.Type) *Table {
	tbl := scm.tablesByRowType[rt]
	if tbl == nil {
		panic(fmt.Errorf("no table defined for row type %v", rt))
	}
	return tbl
}

func (scm *Schema) TableByRow(row any) *Table {
	rt := reflect.TypeOf(row)
	if rt.Kind() == reflect.Ptr && rt.Elem().Kind() == reflect.Struct {
		return scm.TableByRowType(rt)
	} else {
		panic(fmt.Errorf("expected pointer to a table row type, got %v", rt))
	}
}
