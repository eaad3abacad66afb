package edbq

import (
	"bytes"
	"errors"
	"math"
	"net/netip"
	"reflect"
	"testing"
	"time"
)

func TestKeyOrder(t *testing.T) {
	base := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)
	groups := [][]any{
		{false, true},
		{math.MinInt64, -1000, -1, 0, 1, 255, 256, math.MaxInt64},
		{uint64(0), uint64(1), uint64(1 << 40), uint64(math.MaxUint64)},
		{math.Inf(-1), -1e300, -2.5, -1.0, -math.SmallestNonzeroFloat64, 0.0, math.SmallestNonzeroFloat64, 0.5, 1.0, 1e300, math.Inf(1)},
		{base.Add(-time.Hour), base.Add(-time.Nanosecond), base, base.Add(time.Nanosecond), base.Add(time.Hour)},
		{time.Unix(-100, 0), time.Unix(0, 0), time.Unix(100, 0)},
		{"", "\x00", "\x00\x00", "\x00a", "a", "a\x00", "a\x00b", "ab", "b", "\xff"},
		{[]byte{}, []byte{0}, []byte{0, 1}, []byte{1}, []byte{0xff, 0xff}},
		{AB{-1, 5}, AB{0, 0}, AB{0, 1}, AB{1, -5}, AB{1, 42}, AB{2, 0}},
		{pair{"", 9}, pair{"a", 1}, pair{"a", 2}, pair{"a\x00", 0}, pair{"ab", 0}},
	}
	for _, group := range groups {
		for i := 1; i < len(group); i++ {
			a, b := group[i-1], group[i]
			ea, eb := must(EncodeKey(nil, a)), must(EncodeKey(nil, b))
			if bytes.Compare(ea, eb) >= 0 {
				t.Errorf("** %v (%x) should sort before %v (%x)", a, ea, b, eb)
			}
			if c := CompareKeys(a, b); c != -1 {
				t.Errorf("** CompareKeys(%v, %v) = %d, wanted -1", a, b, c)
			}
			if c := CompareKeys(b, a); c != 1 {
				t.Errorf("** CompareKeys(%v, %v) = %d, wanted 1", b, a, c)
			}
		}
	}
}

type pair struct {
	S string
	N int
}

func TestKeyEncoding(t *testing.T) {
	tests := []struct {
		v   any
		enc string
	}{
		{false, "10 00"},
		{true, "10 01"},
		{0, "20 8000000000000000"},
		{-1, "20 7fffffffffffffff"},
		{int8(1), "20 8000000000000001"},
		{uint(1), "21 0000000000000001"},
		{1.0, "22 bff0000000000000"},
		{-1.0, "22 400fffffffffffff"},
		{math.Copysign(0, -1), "22 8000000000000000"},
		{"", "40 0001"},
		{"ab", "40 6162 0001"},
		{"a\x00b", "40 61 00ff 62 0001"},
		{[]byte{0, 0}, "41 00ff00ff 0001"},
		{[2]byte{1, 2}, "41 0102 0001"},
		{AB{1, 2}, "20 8000000000000001 20 8000000000000002"},
		{time.Unix(1, 5), "30 8000000000000001 00000005"},
	}
	for _, tt := range tests {
		enc := must(EncodeKey(nil, tt.v))
		deepEqual(t, hexstr(enc), hexstr(x(tt.enc)))

		typ := reflect.TypeOf(tt.v)
		ptr := reflect.New(typ)
		noerr(t, keyEncodingOf(typ).decode(enc, ptr))
		if got := ptr.Elem().Interface(); !keyEqual(got, tt.v) {
			t.Errorf("** decode(%x) = %v, wanted %v", enc, got, tt.v)
		}
	}
}

func keyEqual(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		return ta.Equal(b.(time.Time))
	}
	if fa, ok := a.(float64); ok {
		return fa == b.(float64)
	}
	return reflect.DeepEqual(a, b)
}

func TestKeyEncoding_BinaryMarshaler(t *testing.T) {
	a := netip.MustParseAddr("10.0.0.1")
	b := netip.MustParseAddr("10.0.0.2")
	deepEqual(t, CompareKeys(a, b), -1)

	enc := must(EncodeKey(nil, a))
	deepEqual(t, enc[0], tagBytes)

	var out netip.Addr
	noerr(t, keyEncodingOf(reflect.TypeFor[netip.Addr]()).decode(enc, reflect.ValueOf(&out)))
	deepEqual(t, out, a)
}

func TestKeyEncoding_SelfDelimiting(t *testing.T) {
	enc := keyEncodingOf(reflect.TypeFor[string]())
	for _, s := range []string{"", "a", "a\x00", "\x00\x00\x01"} {
		raw := must(EncodeKey(nil, s))
		n, err := enc.skip(append(raw, 0x20, 0x01))
		noerr(t, err)
		deepEqual(t, n, len(raw))
	}
}

func TestValidateKey(t *testing.T) {
	type withMap struct {
		A int
		M map[string]int
	}
	var nilPtr *int
	tests := []struct {
		v     any
		valid bool
	}{
		{1, true},
		{"x", true},
		{AB{1, 2}, true},
		{time.Now(), true},
		{1.5, true},
		{math.NaN(), false},
		{nil, false},
		{nilPtr, false},
		{map[string]int{}, false},
		{func() {}, false},
		{make(chan int), false},
		{withMap{}, false},
		{[]int{1}, false},
		{struct{}{}, false},
		{struct{ a int }{}, false},
	}
	for _, tt := range tests {
		err := ValidateKey(tt.v)
		if tt.valid && err != nil {
			t.Errorf("** ValidateKey(%#v) = %v, wanted nil", tt.v, err)
		}
		if !tt.valid {
			var ke *KeyError
			if !errors.As(err, &ke) {
				t.Errorf("** ValidateKey(%#v) = %v, wanted *KeyError", tt.v, err)
			}
		}
	}
}

func TestKeyDecoding_Errors(t *testing.T) {
	intEnc := keyEncodingOf(reflect.TypeFor[int]())
	strEnc := keyEncodingOf(reflect.TypeFor[string]())
	var i int
	var s string
	for _, tt := range []struct {
		enc *keyEncoding
		ptr any
		raw string
	}{
		{intEnc, &i, ""},
		{intEnc, &i, "20 0000"},
		{intEnc, &i, "21 8000000000000000"},
		{intEnc, &i, "20 8000000000000000 00"},
		{strEnc, &s, "40 61"},
		{strEnc, &s, "40 61 00"},
		{strEnc, &s, "40 61 0002"},
		{strEnc, &s, "41 61 0001"},
	} {
		if err := tt.enc.decode(x(tt.raw), reflect.ValueOf(tt.ptr)); err == nil {
			t.Errorf("** decode(%s) succeeded, wanted error", tt.raw)
		}
	}
}

func TestCoerceKey(t *testing.T) {
	intType := reflect.TypeFor[int]()
	tests := []struct {
		v    any
		typ  reflect.Type
		want any
		ok   bool
	}{
		{5, intType, 5, true},
		{int8(-5), intType, -5, true},
		{uint64(5), intType, 5, true},
		{uint64(math.MaxUint64), intType, nil, false},
		{5.0, intType, 5, true},
		{5.5, intType, nil, false},
		{math.NaN(), intType, nil, false},
		{-1, reflect.TypeFor[uint32](), nil, false},
		{300, reflect.TypeFor[uint8](), nil, false},
		{1 << 53, reflect.TypeFor[float64](), float64(1 << 53), true},
		{1<<53 + 1, reflect.TypeFor[float64](), nil, false},
		{0.1, reflect.TypeFor[float32](), nil, false},
		{"5", intType, nil, false},
		{"x", reflect.TypeFor[ID](), nil, false},
		{3, reflect.TypeFor[ID](), ID(3), true},
		{ptrTo(7), intType, 7, true},
	}
	for _, tt := range tests {
		got, err := coerceKey(tt.v, tt.typ)
		if !tt.ok {
			var ke *KeyError
			if !errors.As(err, &ke) {
				t.Errorf("** coerceKey(%v, %v) = %v, wanted *KeyError", tt.v, tt.typ, err)
			}
			continue
		}
		noerr(t, err)
		deepEqual(t, got.Interface(), tt.want)
	}
}

func ptrTo[T any](v T) *T {
	return &v
}

func TestPrefixSuccessor(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"", ""},
		{"00", "01"},
		{"40 61", "40 62"},
		{"40 ff", "41"},
		{"ff ff", ""},
		{"40 61 00 01", "40 61 00 02"},
	}
	for _, tt := range tests {
		deepEqual(t, hexstr(prefixSuccessor(x(tt.in))), hexstr(nilIfEmpty(x(tt.out))))
	}
}

func nilIfEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
