/*
Package edbq implements typed tables with secondary indexes and a query layer
on top of an ordered key-value store (Bolt, or an in-memory store for tests).

We implement:

1. Tables, collections of msgpack-encoded documents of a given struct type,
keyed by the struct's first field.

2. Indices, ordering a table's rows by a field value (or by values computed
by a custom indexer).

3. Queries: an immutable builder that picks a scan source (primary order, an
index, or a full scan), compiles at most one range or value set into a byte
range, and walks a cursor lazily with post-scan predicates, offset and limit.

# Technical Details

**Buckets.**
Each table is a root bucket holding a `data` bucket, one `i_<name>` bucket
per index, and the `_state` key.

**Index ordinal**
We assign a unique positive integer ordinal to each index. These values are never
reused, even if an index is removed.

**Table states**
We store a meta document per table, called “table state”. This document holds
the information about which indexes are defined for the table, their ordinals,
and whether they have been built.

## Binary encoding

**Key encoding.**
Keys are encoded so that bytes.Compare on two encodings agrees with the key
order. Every element starts with a type tag:

  - bool: 0x10, then 0 or 1.
  - signed integer: 0x20, then 8 bytes big-endian with the sign bit flipped.
  - unsigned integer: 0x21, then 8 bytes big-endian.
  - float: 0x22, then 8 bytes; negative numbers have all bits inverted, others
    have the sign bit set. Negative zero is stored as zero; NaN is rejected.
  - time: 0x30, then seconds (as a signed integer) and 4 bytes of nanoseconds.
  - string: 0x40; bytes, byte arrays and BinaryMarshalers: 0x41. Then the
    content with 00 escaped as 00 FF, terminated by 00 01.

A compound key (a struct) is the concatenation of its fields' encodings.
Encodings are self-delimiting, so an index key can be followed by the primary
key.

**Index entries.**
Unique index: key = encoded value, value = encoded primary key.
Other indexes: key = encoded value + encoded primary key, value empty.

**Value**: value header, then encoded data, then encoded index key records.

**Value header**:
1. Flags (uvarint).
2. Schema version (uvarint).
3. Mod count (uvarint).
4. Data size (uvarint).
5. Index size (uvarint).

**Value data**: msgpack of the row struct.

**Index key records** (inside a value) record the keys contributed by this row.
If index computation changes in the future, we still need to know which index
keys to delete when updating the row, so we store all index keys. Format:
1. Number of entries (uvarint).
2. For each entry: index ordinal (uvarint), key length (uvarint), key bytes.
*/
package edbq
