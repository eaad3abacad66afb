// Package celpred compiles CEL expressions into query predicates.
//
// An expression sees two variables: row, a map of the row's fields keyed by
// their msgpack names, and key, the row's primary key. It must evaluate to a
// boolean:
//
//	row.age >= 30 && row.city in ["Paris", "Rome"]
//	key > 100 || row.name.startsWith("A")
//
// Numbers of different types compare naturally, so row.score > 1 works for
// float fields.
package celpred

import (
	"bytes"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/andreyvit/edbq"
	"github.com/google/cel-go/cel"
	"github.com/vmihailenco/msgpack/v5"
)

// Program is a compiled expression. It is safe for concurrent use.
type Program struct {
	expr string
	prg  cel.Program
}

var (
	envOnce sync.Once
	env     *cel.Env
	envErr  error

	programs sync.Map // expr -> *Program
)

func sharedEnv() (*cel.Env, error) {
	envOnce.Do(func() {
		env, envErr = cel.NewEnv(
			cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
			cel.Variable("key", cel.DynType),
			cel.CrossTypeNumericComparisons(true),
		)
	})
	return env, envErr
}

// Compile parses and type-checks expr. Compiled programs are cached by
// expression text.
func Compile(expr string) (*Program, error) {
	if p, ok := programs.Load(expr); ok {
		return p.(*Program), nil
	}
	e, err := sharedEnv()
	if err != nil {
		return nil, fmt.Errorf("celpred: environment: %w", err)
	}
	ast, issues := e.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("celpred: compile %q: %w", expr, issues.Err())
	}
	if t := ast.OutputType(); t != cel.BoolType && t != cel.DynType {
		return nil, fmt.Errorf("celpred: %q evaluates to %v, wanted bool", expr, t)
	}
	prg, err := e.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("celpred: program %q: %w", expr, err)
	}
	p := &Program{expr: expr, prg: prg}
	actual, _ := programs.LoadOrStore(expr, p)
	return actual.(*Program), nil
}

func MustCompile(expr string) *Program {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Program) String() string {
	return p.expr
}

// Eval runs the program against a row map and a key.
func (p *Program) Eval(row map[string]any, key any) (bool, error) {
	out, _, err := p.prg.Eval(map[string]any{
		"row": row,
		"key": key,
	})
	if err != nil {
		return false, fmt.Errorf("celpred: %q: %w", p.expr, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("celpred: %q returned %v, wanted bool", p.expr, out.Type())
	}
	return b, nil
}

// For adapts p to a predicate over rows of tbl.
func For[Row any](p *Program, tbl *edbq.Table) edbq.Predicate[Row] {
	return edbq.PredicateFunc[Row](func(row *Row) (bool, error) {
		m, err := RowMap(row)
		if err != nil {
			return false, err
		}
		return p.Eval(m, plainValue(reflect.ValueOf(tbl.RowKey(row))))
	})
}

// RowMap converts a row into the map an expression sees as row. Integers
// become int64 or uint64 and floats become float64.
func RowMap(row any) (map[string]any, error) {
	raw, err := msgpack.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("celpred: encoding %T: %w", row, err)
	}
	return decodeMap(raw)
}

func decodeMap(raw []byte) (map[string]any, error) {
	dec := msgpack.GetDecoder()
	defer msgpack.PutDecoder(dec)
	dec.Reset(bytes.NewReader(raw))
	dec.UseLooseInterfaceDecoding(true)

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("celpred: decoding row: %w", err)
	}
	return m, nil
}

var timeType = reflect.TypeFor[time.Time]()

// plainValue strips named types from scalar keys; compound keys become maps
// like rows do.
func plainValue(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.String:
		return v.String()
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Bytes()
		}
	case reflect.Struct:
		if v.Type() == timeType {
			return v.Interface()
		}
		raw, err := msgpack.Marshal(v.Interface())
		if err != nil {
			break
		}
		if m, err := decodeMap(raw); err == nil {
			return m
		}
	}
	return v.Interface()
}
