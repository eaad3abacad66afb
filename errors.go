package edbq

import (
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"strings"
)

var (
	// ErrClosed is returned by terminal operations once the database is closed.
	ErrClosed = errors.New("database is closed")

	// ErrUnknownField is returned when a query names a field path the row type does not have.
	ErrUnknownField = errors.New("unknown field")

	// ErrNotIndexed is returned when OrderBy names a field that has no index.
	ErrNotIndexed = errors.New("field is not indexed")

	// ErrUniqueViolation is returned when a row would duplicate a unique index value.
	ErrUniqueViolation = errors.New("unique index violation")
)

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x", e.Msg, e.Off, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x", e.Msg, e.Off, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x...%x", e.Msg, e.Off, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x...%x", e.Msg, e.Off, n, p, s)
		}
	}
}

type TableError struct {
	Table *Table
	Index *Index
	Key   []byte
	Msg   string
	Err   error
}

func tableErrf(tbl *Table, idx *Index, key []byte, err error, format string, args ...any) error {
	return &TableError{tbl, idx, key, fmt.Sprintf(format, args...), err}
}

func (e *TableError) Unwrap() error {
	return e.Err
}

func (e *TableError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Table.Name())
	if e.Index != nil {
		buf.WriteByte('.')
		buf.WriteString(e.Index.Name())
	}
	if e.Key != nil {
		fmt.Fprintf(&buf, "/%x", e.Key)
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
		if e.Err != nil {
			buf.WriteString(": ")
			buf.WriteString(e.Err.Error())
		}
	} else if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// KeyError reports a value that cannot be used as a key, or cannot be
// compared against a key of the given type.
type KeyError struct {
	Type  reflect.Type
	Value any
	Msg   string
	Err   error
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

func (e *KeyError) Error() string {
	var buf strings.Builder
	buf.WriteString("invalid key")
	if e.Value != nil {
		fmt.Fprintf(&buf, " %v", e.Value)
	}
	if e.Type != nil {
		fmt.Fprintf(&buf, " (%v)", e.Type)
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// RangeError is returned when a range's lower bound sorts after its upper bound.
type RangeError struct {
	Field string
	Lower any
	Upper any
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid range on %s: lower bound %v is greater than upper bound %v", e.Field, e.Lower, e.Upper)
}

// PredicateError wraps an error returned, or a panic raised, by a filter.
type PredicateError struct {
	Index int
	Err   error
}

func (e *PredicateError) Unwrap() error {
	return e.Err
}

func (e *PredicateError) Error() string {
	return fmt.Sprintf("filter #%d: %v", e.Index, e.Err)
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func recoverPanic(err *error) {
	if p := recover(); p != nil {
		*err = panicked{p, string(debug.Stack())}
	}
}
