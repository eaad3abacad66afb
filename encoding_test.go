package edbq

import (
	"errors"
	"strconv"
	"strings"
	"testing"
)

func TestIndexDiffing(t *testing.T) {
	tests := []struct {
		old     string
		new     string
		removed string
	}{
		{"", "", ""},
		{"1:a", "1:a", ""},
		{"1:a", "", "1:a"},
		{"", "1:a", ""},
		{"1:a 2:b", "1:a 2:b", ""},
		{"1:a 2:b", "1:a", "2:b"},
		{"1:a 2:b", "2:b", "1:a"},
		{"1:a 2:b", "1:b 2:b", "1:a"},
		{"1:a 1:b 1:c", "1:b", "1:a 1:c"},
		{"1:a 1:c 2:x", "1:b 1:c 2:y", "1:a 2:x"},
		{"1:b 3:z", "2:a 3:z", "1:b"},
		{"2:a", "1:a 3:a", "2:a"},
	}
	for _, tt := range tests {
		t.Run(tt.old+" => "+tt.new, func(t *testing.T) {
			old := appendIndexKeys(nil, parseIndexKeys(tt.old))
			var removed []string
			err := findRemovedIndexKeys(old, parseIndexKeys(tt.new), func(ord uint64, key []byte) error {
				removed = append(removed, strconv.FormatUint(ord, 10)+":"+string(key))
				return nil
			})
			noerr(t, err)
			deepEqual(t, strings.Join(removed, " "), tt.removed)
		})
	}
}

func parseIndexKeys(s string) indexRows {
	var rows indexRows
	for _, item := range strings.Fields(s) {
		ordStr, key, ok := strings.Cut(item, ":")
		if !ok {
			panic("invalid index key " + item)
		}
		rows = append(rows, IndexRow{
			IndexOrd: must(strconv.ParseUint(ordStr, 10, 64)),
			KeyRaw:   []byte(key),
		})
	}
	return rows
}

func TestIndexKeys_Roundtrip(t *testing.T) {
	rows := parseIndexKeys("1:a 1:bb 7:" + strings.Repeat("z", 300))
	data := appendIndexKeys([]byte("prefix"), rows)
	deepEqual(t, string(data[:6]), "prefix")

	var got []string
	noerr(t, decodeIndexKeys(data[6:], func(ord uint64, key []byte) error {
		got = append(got, strconv.FormatUint(ord, 10)+":"+string(key))
		return nil
	}))
	deepEqual(t, len(got), 3)
	deepEqual(t, got[1], "1:bb")

	var de *DataError
	err := decodeIndexKeys(data[6:len(data)-1], func(uint64, []byte) error { return nil })
	if !errors.As(err, &de) {
		t.Errorf("** truncated: got %v, wanted *DataError", err)
	}

	errStop := errors.New("stop")
	err = decodeIndexKeys(data[6:], func(uint64, []byte) error { return errStop })
	deepEqual(t, err, errStop)
}

func TestValueHeader(t *testing.T) {
	buf := reserveValueHeader(nil)
	dataOff := len(buf)
	buf = append(buf, "DATA"...)
	indexOff := len(buf)
	buf = appendIndexKeys(buf, parseIndexKeys("3:k"))
	raw := putValueHeader(buf, vfDefault, 2, 7, indexOff)

	var vle value
	noerr(t, vle.decode(raw))
	deepEqual(t, vle.Flags, vfDefault)
	deepEqual(t, vle.ValueMeta(), ValueMeta{SchemaVer: 2, ModCount: 7})
	deepEqual(t, string(vle.Data), "DATA")
	deepEqual(t, string(vle.Index), string(buf[indexOff:]))
	deepEqual(t, dataOff, maxValueHeaderSize)

	for _, bad := range [][]byte{
		nil,
		x("01 01"),
		x("02 01 01 00 00"),
		x("01 01 01 05 00 41"),
		append(x("01 ff ff 03 01 00"), 0),
	} {
		var vle value
		var de *DataError
		if err := vle.decode(bad); !errors.As(err, &de) {
			t.Errorf("** decode(%x) = %v, wanted *DataError", bad, err)
		}
	}

	assertPanics(t, func() { reserveValueHeader([]byte{1}) })
	assertPanics(t, func() { putValueHeader(reserveValueHeader(nil), valueFlags(0x80), 1, 1, maxValueHeaderSize) })
}

func TestByteDecoder(t *testing.T) {
	w := prealloc(nil, 32)
	w.AppendUvarint(300)
	w.AppendUvarinti(5)
	w.AppendVarBytes([]byte("hello"))
	w.AppendRaw([]byte{0xAA, 0xBB})
	data := w.Trimmed()

	d := makeByteDecoder(data)
	deepEqual(t, must(d.Uvarint()), uint64(300))
	deepEqual(t, must(d.Uvarinti()), 5)
	deepEqual(t, string(must(d.VarBytes())), "hello")
	deepEqual(t, must(d.Raw(2)), []byte{0xAA, 0xBB})
	deepEqual(t, d.Off(), len(data))

	_, err := d.Raw(1)
	var de *DataError
	if !errors.As(err, &de) {
		t.Errorf("** Raw past end: got %v, wanted *DataError", err)
	}
	_, err = d.Uvarint()
	if !errors.As(err, &de) {
		t.Errorf("** Uvarint past end: got %v, wanted *DataError", err)
	}

	assertPanics(t, func() {
		w := prealloc(nil, 1)
		w.AppendUvarinti(-1)
	})
}

func TestBytesBuilder(t *testing.T) {
	var bb bytesBuilder
	must(bb.Write([]byte("ab")))
	noerr(t, bb.WriteByte('c'))
	deepEqual(t, string(bb.Buf), "abc")

	buf := ensureCapacity([]byte("xy"), 100)
	deepEqual(t, string(buf), "xy")
	if cap(buf) < 100 {
		t.Errorf("** cap = %d, wanted at least 100", cap(buf))
	}

	off, buf := grow([]byte("xy"), 3)
	deepEqual(t, off, 2)
	deepEqual(t, len(buf), 5)
}
