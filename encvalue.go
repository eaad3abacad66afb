package edbq

import (
	"encoding/binary"
	"fmt"
	"reflect"
)

type valueFlags uint64

const (
	vfVerBit0 = valueFlags(1 << iota)
	vfVerBit1
	vfVerBit2
	vfVerBit3

	vfVerMask       = (vfVerBit0 | vfVerBit1 | vfVerBit2 | vfVerBit3)
	vfVer1          = vfVerBit0
	vfSupportedMask = vfVer1
	vfDefault       = vfVer1

	minValueSize       = 5
	maxValueHeaderSize = binary.MaxVarintLen64 * 5
	maxSchemaVersion   = 32768 // sanity limit
)

func (vf valueFlags) encoding() encodingMethod {
	return MsgPack
}

// ValueMeta describes a stored row. ModCount starts at 1 and grows with
// every change to the row data.
type ValueMeta struct {
	SchemaVer uint64
	ModCount  uint64
}

func (vm ValueMeta) Exists() bool {
	return vm.ModCount != 0
}

type value struct {
	Flags     valueFlags
	SchemaVer uint64
	ModCount  uint64
	Data      []byte
	Index     []byte
}

func (vle value) ValueMeta() ValueMeta {
	return ValueMeta{
		SchemaVer: vle.SchemaVer,
		ModCount:  vle.ModCount,
	}
}

func reserveValueHeader(buf []byte) []byte {
	if len(buf) != 0 {
		panic("value must be written to an empty buffer")
	}
	_, buf = grow(buf, maxValueHeaderSize)
	return buf
}

// putValueHeader writes the header into the reserved space right before the
// data and returns the value starting at the header.
func putValueHeader(buf []byte, flags valueFlags, schemaVer uint64, modCount uint64, indexOff int) []byte {
	if indexOff > len(buf) {
		panic(fmt.Errorf("invalid indexOff=%d", indexOff))
	}
	if (flags &^ vfSupportedMask) != 0 {
		panic(fmt.Errorf("invalid flags %x", flags))
	}
	dataSize := indexOff - maxValueHeaderSize
	indexSize := len(buf) - indexOff

	var hdr [maxValueHeaderSize]byte
	off := binary.PutUvarint(hdr[:], uint64(flags))
	off += binary.PutUvarint(hdr[off:], schemaVer)
	off += binary.PutUvarint(hdr[off:], modCount)
	off += binary.PutUvarint(hdr[off:], uint64(dataSize))
	off += binary.PutUvarint(hdr[off:], uint64(indexSize))

	start := maxValueHeaderSize - off
	copy(buf[start:maxValueHeaderSize], hdr[:off])
	return buf[start:]
}

func (vle *value) decode(data []byte) error {
	orig := data
	if len(data) < minValueSize {
		return dataErrf(orig, 0, nil, "invalid value: at least %d bytes required", minValueSize)
	}

	v, n := binary.Uvarint(data)
	if n <= 0 {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid value: bad flags")
	}
	if (v & ^uint64(vfSupportedMask)) != 0 {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid value: unsupported flags %x", v)
	}
	vle.Flags, data = valueFlags(v), data[n:]

	v, n = binary.Uvarint(data)
	if n <= 0 || v > maxSchemaVersion {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid value: bad schema version")
	}
	vle.SchemaVer, data = v, data[n:]

	v, n = binary.Uvarint(data)
	if n <= 0 {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid value: bad mod count")
	}
	vle.ModCount, data = v, data[n:]

	dataSize, n := binary.Uvarint(data)
	if n <= 0 {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid value: bad data size")
	}
	data = data[n:]

	indexSize, n := binary.Uvarint(data)
	if n <= 0 {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid value: bad index size")
	}
	data = data[n:]

	if uint64(len(data)) != dataSize+indexSize {
		return dataErrf(orig, len(orig)-len(data), nil, "invalid value: got %d bytes for data+index, expected %d bytes", len(data), dataSize+indexSize)
	}
	vle.Data, vle.Index = data[:dataSize], data[dataSize:]
	return nil
}

func (vle *value) decodeRowInto(rowVal reflect.Value) error {
	return vle.Flags.encoding().DecodeValue(vle.Data, rowVal)
}

func decodeTableValue(tbl *Table, keyRaw, valueRaw []byte) (value, error) {
	var vle value
	err := vle.decode(valueRaw)
	if err != nil {
		return vle, tableErrf(tbl, nil, keyRaw, err, "")
	}
	return vle, nil
}

// decodeTableRow decodes a stored row and fills its key field from keyRaw.
func decodeTableRow(tbl *Table, keyRaw, valueRaw []byte) (reflect.Value, ValueMeta, error) {
	vle, err := decodeTableValue(tbl, keyRaw, valueRaw)
	if err != nil {
		return reflect.Value{}, ValueMeta{}, err
	}
	rowVal := tbl.NewRowVal()
	if err := vle.decodeRowInto(rowVal); err != nil {
		return reflect.Value{}, ValueMeta{}, tableErrf(tbl, nil, keyRaw, err, "data")
	}
	keyVal, err := tbl.DecodeKeyVal(keyRaw)
	if err != nil {
		return reflect.Value{}, ValueMeta{}, err
	}
	tbl.rowInfo.keyValue(rowVal).Set(keyVal)
	return rowVal, vle.ValueMeta(), nil
}
