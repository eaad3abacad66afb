package edbq

import (
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"time"
)

// Element tags. Tags order values of different kinds relative to each other
// and make every encoded element self-delimiting.
const (
	tagBool   byte = 0x10
	tagInt    byte = 0x20
	tagUint   byte = 0x21
	tagFloat  byte = 0x22
	tagTime   byte = 0x30
	tagString byte = 0x40
	tagBytes  byte = 0x41

	escByte  byte = 0x00
	escZero  byte = 0xFF
	escFinal byte = 0x01

	signBit = uint64(1) << 63
)

var (
	binaryMarshalerType   = reflect.TypeFor[encoding.BinaryMarshaler]()
	binaryUnmarshalerType = reflect.TypeFor[encoding.BinaryUnmarshaler]()
	timeType              = reflect.TypeFor[time.Time]()
	byteSliceType         = reflect.TypeFor[[]byte]()

	errNaNKey     = errors.New("NaN is not a valid key")
	errNilKey     = errors.New("nil is not a valid key")
	errShortKey   = errors.New("truncated key")
	errBadKeyTag  = errors.New("unexpected key element tag")
	errBadEscape  = errors.New("invalid escape sequence")
	errTrailerKey = errors.New("trailing bytes after key")
)

var keyEncodings sync.Map

type keyEncoding struct {
	typ        reflect.Type
	components []*keyComponent
}

type keyComponent struct {
	Type    reflect.Type
	Path    string
	Tag     byte
	Getters []func(v reflect.Value, init bool) reflect.Value
	Encode  func(buf []byte, v reflect.Value) ([]byte, error)
	Decode  func(b []byte, v reflect.Value) ([]byte, error)
}

func (kc *keyComponent) valueIn(val reflect.Value, init bool) (reflect.Value, error) {
	for i := len(kc.Getters) - 1; i >= 0; i-- {
		val = kc.Getters[i](val, init)
		if !val.IsValid() {
			return val, errNilKey
		}
	}
	return val, nil
}

// keyEncodingOf returns the encoding for typ, panicking when typ can never
// be a key. Use tryKeyEncodingOf for caller-supplied values.
func keyEncodingOf(typ reflect.Type) *keyEncoding {
	return must(tryKeyEncodingOf(typ))
}

func tryKeyEncodingOf(typ reflect.Type) (*keyEncoding, error) {
	if e, ok := keyEncodings.Load(typ); ok {
		return e.(*keyEncoding), nil
	}
	enc := &keyEncoding{typ: typ}
	err := enumerateKeyComponents(typ, "", func(kc *keyComponent) {
		enc.components = append(enc.components, kc)
	})
	if err != nil {
		return nil, err
	}
	if len(enc.components) == 0 {
		return nil, &KeyError{Type: typ, Msg: "no key components"}
	}
	actual, _ := keyEncodings.LoadOrStore(typ, enc)
	return actual.(*keyEncoding), nil
}

func (enc *keyEncoding) isScalar() bool {
	return len(enc.components) == 1 && len(enc.components[0].Getters) == 0
}

func (enc *keyEncoding) encode(buf []byte, val reflect.Value) ([]byte, error) {
	for _, kc := range enc.components {
		cval, err := kc.valueIn(val, false)
		if err != nil {
			return buf, fmt.Errorf("%s%w", pathPrefix(kc.Path), err)
		}
		buf, err = kc.Encode(buf, cval)
		if err != nil {
			return buf, fmt.Errorf("%s%w", pathPrefix(kc.Path), err)
		}
	}
	return buf, nil
}

// decode fills the value pointed to by ptrVal from buf, which must contain
// exactly one encoded key.
func (enc *keyEncoding) decode(buf []byte, ptrVal reflect.Value) error {
	rest, err := enc.decodeFrom(buf, ptrVal.Elem())
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return dataErrf(buf, len(buf)-len(rest), errTrailerKey, "decoding %v", enc.typ)
	}
	return nil
}

// decodeFrom consumes one encoded key from the head of buf and returns the rest.
func (enc *keyEncoding) decodeFrom(buf []byte, val reflect.Value) ([]byte, error) {
	rest := buf
	for _, kc := range enc.components {
		cval, _ := kc.valueIn(val, true)
		var err error
		rest, err = kc.Decode(rest, cval)
		if err != nil {
			return nil, dataErrf(buf, len(buf)-len(rest), err, "decoding %v%s", enc.typ, kc.Path)
		}
	}
	return rest, nil
}

// skip returns the length of the single encoded key at the head of buf.
func (enc *keyEncoding) skip(buf []byte) (int, error) {
	val := reflect.New(enc.typ).Elem()
	rest, err := enc.decodeFrom(buf, val)
	if err != nil {
		return 0, err
	}
	return len(buf) - len(rest), nil
}

func enumerateKeyComponents(typ reflect.Type, path string, f func(kc *keyComponent)) error {
	if typ == timeType {
		f(&keyComponent{Type: typ, Path: path, Tag: tagTime, Encode: encodeTimeKey, Decode: decodeTimeKey})
		return nil
	}
	switch typ.Kind() {
	case reflect.Bool:
		f(&keyComponent{Type: typ, Path: path, Tag: tagBool, Encode: encodeBoolKey, Decode: decodeBoolKey})
		return nil
	case reflect.Int, reflect.Int64, reflect.Int32, reflect.Int16, reflect.Int8:
		f(&keyComponent{Type: typ, Path: path, Tag: tagInt, Encode: encodeIntKey, Decode: decodeIntKey})
		return nil
	case reflect.Uint, reflect.Uint64, reflect.Uint32, reflect.Uint16, reflect.Uint8, reflect.Uintptr:
		f(&keyComponent{Type: typ, Path: path, Tag: tagUint, Encode: encodeUintKey, Decode: decodeUintKey})
		return nil
	case reflect.Float32, reflect.Float64:
		f(&keyComponent{Type: typ, Path: path, Tag: tagFloat, Encode: encodeFloatKey, Decode: decodeFloatKey})
		return nil
	case reflect.String:
		f(&keyComponent{Type: typ, Path: path, Tag: tagString,
			Encode: func(buf []byte, v reflect.Value) ([]byte, error) {
				return appendEscaped(append(buf, tagString), v.String(), true), nil
			},
			Decode: func(b []byte, v reflect.Value) ([]byte, error) {
				s, rest, err := consumeEscaped(b, tagString)
				if err != nil {
					return nil, err
				}
				v.SetString(string(s))
				return rest, nil
			},
		})
		return nil
	case reflect.Slice:
		if typ.Elem().Kind() == reflect.Uint8 {
			f(&keyComponent{Type: typ, Path: path, Tag: tagBytes,
				Encode: func(buf []byte, v reflect.Value) ([]byte, error) {
					return appendEscaped(append(buf, tagBytes), v.Bytes(), true), nil
				},
				Decode: func(b []byte, v reflect.Value) ([]byte, error) {
					s, rest, err := consumeEscaped(b, tagBytes)
					if err != nil {
						return nil, err
					}
					v.SetBytes(s)
					return rest, nil
				},
			})
			return nil
		}
	case reflect.Array:
		if typ.Elem().Kind() == reflect.Uint8 {
			n := typ.Len()
			f(&keyComponent{Type: typ, Path: path, Tag: tagBytes,
				Encode: func(buf []byte, v reflect.Value) ([]byte, error) {
					raw := make([]byte, n)
					reflect.Copy(reflect.ValueOf(raw), v)
					return appendEscaped(append(buf, tagBytes), raw, true), nil
				},
				Decode: func(b []byte, v reflect.Value) ([]byte, error) {
					s, rest, err := consumeEscaped(b, tagBytes)
					if err != nil {
						return nil, err
					}
					if len(s) != n {
						return nil, fmt.Errorf("got %d bytes for %v", len(s), typ)
					}
					reflect.Copy(v, reflect.ValueOf(s))
					return rest, nil
				},
			})
			return nil
		}
	case reflect.Ptr:
		elemType := typ.Elem()
		get := func(v reflect.Value, init bool) reflect.Value {
			if v.IsNil() {
				if !init {
					return reflect.Value{}
				}
				v.Set(reflect.New(elemType))
			}
			return v.Elem()
		}
		return enumerateKeyComponents(elemType, path, func(kc *keyComponent) {
			kc.Getters = append(kc.Getters, get)
			f(kc)
		})
	case reflect.Struct:
		if typ.Implements(binaryMarshalerType) && reflect.PointerTo(typ).Implements(binaryUnmarshalerType) {
			f(binaryMarshalerComponent(typ, path))
			return nil
		}
		n := typ.NumField()
		for i := 0; i < n; i++ {
			field := typ.Field(i)
			if !field.IsExported() {
				continue
			}
			get := func(v reflect.Value, init bool) reflect.Value {
				return v.Field(i)
			}
			err := enumerateKeyComponents(field.Type, path+"."+field.Name, func(kc *keyComponent) {
				kc.Getters = append(kc.Getters, get)
				f(kc)
			})
			if err != nil {
				return err
			}
		}
		return nil
	}
	if typ.Implements(binaryMarshalerType) && reflect.PointerTo(typ).Implements(binaryUnmarshalerType) {
		f(binaryMarshalerComponent(typ, path))
		return nil
	}
	return &KeyError{Type: typ, Msg: "type cannot be used as a key"}
}

func binaryMarshalerComponent(typ reflect.Type, path string) *keyComponent {
	return &keyComponent{Type: typ, Path: path, Tag: tagBytes,
		Encode: func(buf []byte, v reflect.Value) ([]byte, error) {
			data, err := v.Interface().(encoding.BinaryMarshaler).MarshalBinary()
			if err != nil {
				return buf, fmt.Errorf("%v.MarshalBinary: %w", typ, err)
			}
			return appendEscaped(append(buf, tagBytes), data, true), nil
		},
		Decode: func(b []byte, v reflect.Value) ([]byte, error) {
			s, rest, err := consumeEscaped(b, tagBytes)
			if err != nil {
				return nil, err
			}
			return rest, v.Addr().Interface().(encoding.BinaryUnmarshaler).UnmarshalBinary(s)
		},
	}
}

func encodeBoolKey(buf []byte, v reflect.Value) ([]byte, error) {
	if v.Bool() {
		return append(buf, tagBool, 1), nil
	}
	return append(buf, tagBool, 0), nil
}

func decodeBoolKey(b []byte, v reflect.Value) ([]byte, error) {
	if len(b) < 2 {
		return nil, errShortKey
	}
	if b[0] != tagBool || b[1] > 1 {
		return nil, errBadKeyTag
	}
	v.SetBool(b[1] == 1)
	return b[2:], nil
}

func encodeIntKey(buf []byte, v reflect.Value) ([]byte, error) {
	return appendIntKey(buf, v.Int()), nil
}

func appendIntKey(buf []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(append(buf, tagInt), uint64(v)^signBit)
}

func decodeIntKey(b []byte, v reflect.Value) ([]byte, error) {
	u, rest, err := consumeFixed64(b, tagInt)
	if err != nil {
		return nil, err
	}
	v.SetInt(int64(u ^ signBit))
	return rest, nil
}

func encodeUintKey(buf []byte, v reflect.Value) ([]byte, error) {
	return binary.BigEndian.AppendUint64(append(buf, tagUint), v.Uint()), nil
}

func decodeUintKey(b []byte, v reflect.Value) ([]byte, error) {
	u, rest, err := consumeFixed64(b, tagUint)
	if err != nil {
		return nil, err
	}
	v.SetUint(u)
	return rest, nil
}

func encodeFloatKey(buf []byte, v reflect.Value) ([]byte, error) {
	f := v.Float()
	if math.IsNaN(f) {
		return buf, errNaNKey
	}
	if f == 0 {
		f = 0 // folds -0 into +0
	}
	bits := math.Float64bits(f)
	if bits&signBit != 0 {
		bits = ^bits
	} else {
		bits |= signBit
	}
	return binary.BigEndian.AppendUint64(append(buf, tagFloat), bits), nil
}

func decodeFloatKey(b []byte, v reflect.Value) ([]byte, error) {
	bits, rest, err := consumeFixed64(b, tagFloat)
	if err != nil {
		return nil, err
	}
	if bits&signBit != 0 {
		bits &^= signBit
	} else {
		bits = ^bits
	}
	v.SetFloat(math.Float64frombits(bits))
	return rest, nil
}

func encodeTimeKey(buf []byte, v reflect.Value) ([]byte, error) {
	t := v.Interface().(time.Time)
	buf = binary.BigEndian.AppendUint64(append(buf, tagTime), uint64(t.Unix())^signBit)
	return binary.BigEndian.AppendUint32(buf, uint32(t.Nanosecond())), nil
}

func decodeTimeKey(b []byte, v reflect.Value) ([]byte, error) {
	sec, rest, err := consumeFixed64(b, tagTime)
	if err != nil {
		return nil, err
	}
	if len(rest) < 4 {
		return nil, errShortKey
	}
	nsec := binary.BigEndian.Uint32(rest)
	v.Set(reflect.ValueOf(time.Unix(int64(sec^signBit), int64(nsec)).UTC()))
	return rest[4:], nil
}

func consumeFixed64(b []byte, tag byte) (uint64, []byte, error) {
	if len(b) < 9 {
		return 0, nil, errShortKey
	}
	if b[0] != tag {
		return 0, nil, errBadKeyTag
	}
	return binary.BigEndian.Uint64(b[1:9]), b[9:], nil
}

// appendEscaped writes s with every 0x00 byte escaped as 00 FF, followed by
// the 00 01 terminator when final is set. Escaping keeps byte order intact
// and makes the terminator sort before any continuation.
func appendEscaped[S ~string | ~[]byte](buf []byte, s S, final bool) []byte {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == escByte {
			buf = append(buf, escByte, escZero)
		} else {
			buf = append(buf, c)
		}
	}
	if final {
		buf = append(buf, escByte, escFinal)
	}
	return buf
}

func consumeEscaped(b []byte, tag byte) ([]byte, []byte, error) {
	if len(b) == 0 {
		return nil, nil, errShortKey
	}
	if b[0] != tag {
		return nil, nil, errBadKeyTag
	}
	out := make([]byte, 0, len(b))
	for i := 1; i < len(b); i++ {
		c := b[i]
		if c != escByte {
			out = append(out, c)
			continue
		}
		if i+1 >= len(b) {
			return nil, nil, errShortKey
		}
		switch b[i+1] {
		case escFinal:
			return out, b[i+2:], nil
		case escZero:
			out = append(out, escByte)
			i++
		default:
			return nil, nil, errBadEscape
		}
	}
	return nil, nil, errShortKey
}

// prefixSuccessor returns the smallest byte string greater than every string
// that has p as a prefix, or nil if there is none.
func prefixSuccessor(p []byte) []byte {
	n := len(p)
	for n > 0 && p[n-1] == 0xFF {
		n--
	}
	if n == 0 {
		return nil
	}
	succ := make([]byte, n)
	copy(succ, p[:n])
	succ[n-1]++
	return succ
}

func pathPrefix(p string) string {
	if p == "" {
		return ""
	}
	return p[1:] + ": "
}
