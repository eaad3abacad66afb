package edbq

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
)

// ValidateKey reports whether v can be used as a key: a boolean, a number
// other than NaN, a string, a time.Time, a byte slice or array, a value
// implementing encoding.BinaryMarshaler, or a struct whose exported fields
// are all valid keys (a compound key).
func ValidateKey(v any) error {
	_, err := EncodeKey(nil, v)
	return err
}

// EncodeKey appends the order-preserving encoding of v to buf.
// bytes.Compare on two encodings agrees with CompareKeys on the keys.
func EncodeKey(buf []byte, v any) ([]byte, error) {
	if v == nil {
		return buf, &KeyError{Msg: "nil is not a valid key"}
	}
	rv := reflect.ValueOf(v)
	enc, err := tryKeyEncodingOf(rv.Type())
	if err != nil {
		return buf, err
	}
	out, err := enc.encode(buf, rv)
	if err != nil {
		return buf, &KeyError{Type: rv.Type(), Value: v, Err: err}
	}
	return out, nil
}

// CompareKeys returns -1, 0 or +1 depending on whether a sorts before, equal
// to or after b. Compound keys compare element by element. Keys of different
// shapes compare consistently but meaninglessly. Panics if either is not a
// valid key.
func CompareKeys(a, b any) int {
	ea, err := EncodeKey(nil, a)
	if err != nil {
		panic(err)
	}
	eb, err := EncodeKey(nil, b)
	if err != nil {
		panic(err)
	}
	return bytes.Compare(ea, eb)
}

// coerceKey converts a caller-supplied bound to the type of the field it is
// compared against. Numeric values convert between numeric kinds only when
// no precision is lost; everything else must share the field's kind.
func coerceKey(v any, typ reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Value{}, &KeyError{Type: typ, Msg: "nil is not a valid key"}
	}
	rv := reflect.ValueOf(v)
	if rv.Type() == typ {
		return rv, nil
	}
	for rv.Kind() == reflect.Ptr && typ.Kind() != reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, &KeyError{Type: typ, Value: v, Msg: "nil is not a valid key"}
		}
		rv = rv.Elem()
	}
	if rv.Type() == typ {
		return rv, nil
	}

	sk, dk := numericFamily(rv.Kind()), numericFamily(typ.Kind())
	if sk != 0 && dk != 0 {
		out := reflect.New(typ).Elem()
		if ok := convertNumber(rv, out, sk, dk); !ok {
			return reflect.Value{}, &KeyError{Type: typ, Value: v, Msg: "value cannot be represented exactly"}
		}
		return out, nil
	}
	if rv.Kind() == typ.Kind() && rv.Type().ConvertibleTo(typ) {
		return rv.Convert(typ), nil
	}
	return reflect.Value{}, &KeyError{Type: typ, Value: v, Msg: fmt.Sprintf("cannot compare %v with %v", rv.Type(), typ)}
}

const (
	numInt = 1 + iota
	numUint
	numFloat
)

func numericFamily(k reflect.Kind) int {
	switch k {
	case reflect.Int, reflect.Int64, reflect.Int32, reflect.Int16, reflect.Int8:
		return numInt
	case reflect.Uint, reflect.Uint64, reflect.Uint32, reflect.Uint16, reflect.Uint8, reflect.Uintptr:
		return numUint
	case reflect.Float32, reflect.Float64:
		return numFloat
	default:
		return 0
	}
}

func convertNumber(src, dst reflect.Value, sk, dk int) bool {
	switch sk {
	case numInt:
		v := src.Int()
		switch dk {
		case numInt:
			if dst.OverflowInt(v) {
				return false
			}
			dst.SetInt(v)
		case numUint:
			if v < 0 || dst.OverflowUint(uint64(v)) {
				return false
			}
			dst.SetUint(uint64(v))
		case numFloat:
			f := float64(v)
			if int64(f) != v || dst.OverflowFloat(f) {
				return false
			}
			dst.SetFloat(f)
		}
	case numUint:
		v := src.Uint()
		switch dk {
		case numInt:
			if v > math.MaxInt64 || dst.OverflowInt(int64(v)) {
				return false
			}
			dst.SetInt(int64(v))
		case numUint:
			if dst.OverflowUint(v) {
				return false
			}
			dst.SetUint(v)
		case numFloat:
			f := float64(v)
			if uint64(f) != v || dst.OverflowFloat(f) {
				return false
			}
			dst.SetFloat(f)
		}
	case numFloat:
		f := src.Float()
		if math.IsNaN(f) {
			return false
		}
		switch dk {
		case numInt:
			if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 || dst.OverflowInt(int64(f)) {
				return false
			}
			dst.SetInt(int64(f))
		case numUint:
			if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 || dst.OverflowUint(uint64(f)) {
				return false
			}
			dst.SetUint(uint64(f))
		case numFloat:
			if dst.Kind() == reflect.Float32 && float64(float32(f)) != f {
				return false
			}
			dst.SetFloat(f)
		}
	}
	return true
}
