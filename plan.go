package edbq

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"
)

type sourceKind int

const (
	sourcePrimary sourceKind = iota
	sourceIndex
	sourceFullScan
)

func (k sourceKind) String() string {
	switch k {
	case sourcePrimary:
		return "primary"
	case sourceIndex:
		return "index"
	case sourceFullScan:
		return "fullscan"
	default:
		return fmt.Sprintf("sourceKind(%d)", int(k))
	}
}

// plan is the outcome of source selection for one terminal call.
type plan struct {
	table *Table
	kind  sourceKind
	index *Index // sourceIndex only
	rang  RawRange

	// anyOf holds the encoded values of a multi-value lookup on the source,
	// in the order they were given. Nil for range walks.
	anyOf [][]byte

	residual     residualFunc
	residualDesc string
}

// bucketIn returns the bucket that holds the plan's source order.
func (p *plan) bucketIn(tx *Tx) storageBucket {
	if p.kind == sourceIndex {
		return tx.indexBucket(p.index)
	}
	return tx.dataBucket(p.table)
}

// entryKeys splits a source entry into its sort key and primary key.
func (p *plan) entryKeys(k, v []byte) (sortKey, pk []byte, err error) {
	if p.kind == sourceIndex {
		return p.index.splitEntry(k, v)
	}
	return k, k, nil
}

func (p *plan) String() string {
	var buf strings.Builder
	buf.WriteString(p.table.name)
	buf.WriteString(": ")
	switch p.kind {
	case sourceIndex:
		fmt.Fprintf(&buf, "index %s", p.index.name)
	case sourcePrimary:
		fmt.Fprintf(&buf, "primary %s", p.table.KeyField())
	default:
		buf.WriteString("full scan")
	}
	if p.anyOf != nil {
		fmt.Fprintf(&buf, ", %d lookups", len(p.anyOf))
	} else if !p.rang.isUnbounded() {
		lo, loInc, hi, hiInc := p.rang.bounds()
		fmt.Fprintf(&buf, ", range %s%s, %s%s",
			map[bool]string{false: "(", true: "["}[loInc && lo != nil], orInf(lo, "-inf"),
			orInf(hi, "+inf"), map[bool]string{false: ")", true: "]"}[hiInc && hi != nil])
	}
	if p.rang.Reverse {
		buf.WriteString(", descending")
	}
	if p.residual != nil {
		fmt.Fprintf(&buf, ", filter %s", p.residualDesc)
	}
	return buf.String()
}

func orInf(b []byte, inf string) string {
	if b == nil {
		return inf
	}
	return hexstr(b)
}

// plan selects the scan source for the query: the primary order when no
// field is set or the field is the primary key, the index covering the
// field, or a full scan that checks the condition on every row.
func (q Query[Row]) plan() (*plan, error) {
	tbl := q.qc.table
	st := &q.st
	p := &plan{table: tbl, kind: sourcePrimary}
	p.rang.Reverse = st.desc
	if st.field == "" {
		return p, nil
	}

	fp, fpErr := resolveFieldPath(tbl.rowType, st.field)
	var idx *Index
	switch {
	case fpErr == nil && tbl.isKeyField(fp):
		return p, p.bind(st, fp.name, tbl.keyType, tbl.keyEnc)
	case fpErr == nil:
		idx = tbl.indexForField(fp)
	}
	if idx == nil {
		idx = tbl.IndexNamed(st.field)
	}
	if idx != nil {
		p.kind = sourceIndex
		p.index = idx
		return p, p.bind(st, idx.name, idx.recType, idx.keyEnc)
	}
	if fpErr != nil {
		return nil, tableErrf(tbl, nil, nil, fpErr, "where")
	}

	if st.cond == nil {
		return nil, tableErrf(tbl, nil, nil, ErrNotIndexed, "order by %s", fp.name)
	}
	p.kind = sourceFullScan
	enc, err := tryKeyEncodingOf(fp.typ)
	if err != nil {
		return nil, tableErrf(tbl, nil, nil, err, "where %s", fp.name)
	}
	p.residualDesc = fp.name + " " + st.cond.String()
	if st.cond.op == condAnyOf {
		values, err := st.cond.compileValues(fp.typ, enc)
		if err != nil {
			return nil, err
		}
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[string(v)] = struct{}{}
		}
		p.residual = fieldResidual(fp, enc, func(raw []byte) bool {
			_, found := set[string(raw)]
			return found
		})
		return p, nil
	}
	r, err := st.cond.compile(fp.name, fp.typ, enc)
	if err != nil {
		return nil, err
	}
	p.residual = fieldResidual(fp, enc, func(raw []byte) bool {
		return r.match(raw, nil, slog.Default())
	})
	return p, nil
}

// bind compiles the query's condition against the source key type.
func (p *plan) bind(st *queryState, field string, typ reflect.Type, enc *keyEncoding) error {
	if st.cond == nil {
		return nil
	}
	if st.cond.op == condAnyOf {
		values, err := st.cond.compileValues(typ, enc)
		if err != nil {
			return err
		}
		p.anyOf = values
		return nil
	}
	r, err := st.cond.compile(field, typ, enc)
	if err != nil {
		return err
	}
	r.Reverse = p.rang.Reverse
	p.rang = r
	return nil
}

// fieldResidual encodes the field's value the way an index would and passes
// it to match. Rows without a valid key value in the field never match.
func fieldResidual(fp *fieldPath, enc *keyEncoding, match func(raw []byte) bool) residualFunc {
	return func(rowVal reflect.Value) bool {
		fv, ok := fp.valueIn(rowVal)
		if !ok {
			return false
		}
		raw, err := enc.encode(nil, fv)
		if err != nil {
			return false
		}
		return match(raw)
	}
}
