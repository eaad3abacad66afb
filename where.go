package edbq

import (
	"bytes"
	"fmt"
	"reflect"
	"slices"
	"strings"
)

type condOp int

const (
	condEqual condOp = iota + 1
	condRange
	condPrefix
	condAnyOf
)

// condition is the single active range or value set of a query. Bounds are
// kept as supplied and converted to the target field's type when the query
// runs.
type condition struct {
	op        condOp
	value     any // condEqual, condPrefix
	lower     any
	upper     any
	hasLower  bool
	hasUpper  bool
	lowerOpen bool
	upperOpen bool
	values    []any // condAnyOf
}

// BetweenOpts selects open bounds for WhereClause.Between. Bounds are
// closed by default.
type BetweenOpts struct {
	LowerOpen bool
	UpperOpen bool
}

// WhereClause picks the range or value set of a query over one field. Every
// operator returns a new Query whose range replaces any earlier one.
type WhereClause[Row any] struct {
	q     Query[Row]
	field string
}

func (w WhereClause[Row]) with(c condition) Query[Row] {
	q := w.q
	q.st.field = w.field
	q.st.cond = &c
	return q
}

func (w WhereClause[Row]) Equal(v any) Query[Row] {
	return w.with(condition{op: condEqual, value: v})
}

func (w WhereClause[Row]) GreaterThan(v any) Query[Row] {
	return w.with(condition{op: condRange, lower: v, hasLower: true, lowerOpen: true})
}

func (w WhereClause[Row]) GreaterOrEqual(v any) Query[Row] {
	return w.with(condition{op: condRange, lower: v, hasLower: true})
}

func (w WhereClause[Row]) LessThan(v any) Query[Row] {
	return w.with(condition{op: condRange, upper: v, hasUpper: true, upperOpen: true})
}

func (w WhereClause[Row]) LessOrEqual(v any) Query[Row] {
	return w.with(condition{op: condRange, upper: v, hasUpper: true})
}

// Between matches values from lo to hi. A lower bound above the upper bound
// fails the query with a *RangeError.
func (w WhereClause[Row]) Between(lo, hi any, opts BetweenOpts) Query[Row] {
	return w.with(condition{
		op:        condRange,
		lower:     lo,
		upper:     hi,
		hasLower:  true,
		hasUpper:  true,
		lowerOpen: opts.LowerOpen,
		upperOpen: opts.UpperOpen,
	})
}

// HasPrefix matches string or byte slice values starting with prefix.
func (w WhereClause[Row]) HasPrefix(prefix any) Query[Row] {
	return w.with(condition{op: condPrefix, value: prefix})
}

// AnyOf matches values equal to any of values. Each row is returned once
// even when values repeat.
func (w WhereClause[Row]) AnyOf(values ...any) Query[Row] {
	return w.with(condition{op: condAnyOf, values: slices.Clone(values)})
}

// encodeBound converts v to typ and returns its key encoding.
func encodeBound(v any, typ reflect.Type, enc *keyEncoding) ([]byte, error) {
	val, err := coerceKey(v, typ)
	if err != nil {
		return nil, err
	}
	raw, err := enc.encode(nil, val)
	if err != nil {
		return nil, &KeyError{Type: typ, Value: v, Err: err}
	}
	return raw, nil
}

// compile turns a range condition into a RawRange over keys that start with
// values of typ. Index keys may carry a primary key after the value, so
// inclusive upper bounds and exclusive lower bounds use the successor of the
// encoded value.
func (c *condition) compile(field string, typ reflect.Type, enc *keyEncoding) (RawRange, error) {
	switch c.op {
	case condEqual:
		raw, err := encodeBound(c.value, typ, enc)
		if err != nil {
			return RawRange{}, err
		}
		return RawPrefix(raw), nil

	case condPrefix:
		if !enc.isScalar() {
			return RawRange{}, &KeyError{Type: typ, Value: c.value, Msg: "prefix match needs a string or byte slice field"}
		}
		tag := enc.components[0].Tag
		val, err := coerceKey(c.value, typ)
		if err != nil {
			return RawRange{}, err
		}
		switch {
		case tag == tagString && val.Kind() == reflect.String:
			return RawPrefix(appendEscaped([]byte{tagString}, val.String(), false)), nil
		case tag == tagBytes && val.Kind() == reflect.Slice:
			return RawPrefix(appendEscaped([]byte{tagBytes}, val.Bytes(), false)), nil
		default:
			return RawRange{}, &KeyError{Type: typ, Value: c.value, Msg: "prefix match needs a string or byte slice field"}
		}

	case condRange:
		var r RawRange
		var lo, hi []byte
		var err error
		if c.hasLower {
			lo, err = encodeBound(c.lower, typ, enc)
			if err != nil {
				return RawRange{}, err
			}
		}
		if c.hasUpper {
			hi, err = encodeBound(c.upper, typ, enc)
			if err != nil {
				return RawRange{}, err
			}
		}
		if lo != nil && hi != nil && bytes.Compare(lo, hi) > 0 {
			return RawRange{}, &RangeError{Field: field, Lower: c.lower, Upper: c.upper}
		}
		if lo != nil {
			r.LowerInc = true
			if c.lowerOpen {
				r.Lower = prefixSuccessor(lo)
			} else {
				r.Lower = lo
			}
		}
		if hi != nil {
			if c.upperOpen {
				r.Upper = hi
			} else {
				r.Upper = prefixSuccessor(hi)
			}
		}
		return r, nil

	default:
		panic(fmt.Errorf("compile: unexpected condition %d", c.op))
	}
}

// compileValues encodes the values of an AnyOf condition in the given order.
func (c *condition) compileValues(typ reflect.Type, enc *keyEncoding) ([][]byte, error) {
	out := make([][]byte, 0, len(c.values))
	for _, v := range c.values {
		raw, err := encodeBound(v, typ, enc)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func (c *condition) String() string {
	switch c.op {
	case condEqual:
		return fmt.Sprintf("= %v", c.value)
	case condPrefix:
		return fmt.Sprintf("prefix %q", c.value)
	case condAnyOf:
		parts := make([]string, len(c.values))
		for i, v := range c.values {
			parts[i] = fmt.Sprint(v)
		}
		return "any of [" + strings.Join(parts, ", ") + "]"
	case condRange:
		var buf strings.Builder
		if c.hasLower {
			buf.WriteString(map[bool]string{false: "[", true: "("}[c.lowerOpen])
			fmt.Fprint(&buf, c.lower)
		} else {
			buf.WriteString("(-inf")
		}
		buf.WriteString(", ")
		if c.hasUpper {
			fmt.Fprint(&buf, c.upper)
			buf.WriteString(map[bool]string{false: "]", true: ")"}[c.upperOpen])
		} else {
			buf.WriteString("+inf)")
		}
		return buf.String()
	}
	return "?"
}
