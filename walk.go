package edbq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var errTxFinished = errors.New("transaction already finished")

// IterState is the state of an Iterator.
type IterState int

const (
	// IterIdle: created, no transaction or cursor yet.
	IterIdle IterState = iota
	// IterAdvancing: moving the cursor to the next candidate.
	IterAdvancing
	// IterYielding: positioned on a result available via Row and Key.
	IterYielding
	// IterClosed: exhausted, failed or closed. Resources are released.
	IterClosed
)

func (s IterState) String() string {
	switch s {
	case IterIdle:
		return "idle"
	case IterAdvancing:
		return "advancing"
	case IterYielding:
		return "yielding"
	case IterClosed:
		return "closed"
	default:
		return fmt.Sprintf("IterState(%d)", int(s))
	}
}

// Iterator walks the results of a query one cursor advance at a time.
//
//	it := q.Iterate(ctx)
//	defer it.Close()
//	for it.Next() {
//		row := it.Row()
//	}
//	if err := it.Err(); err != nil {...}
//
// An Iterator is not safe for concurrent use.
type Iterator[Row any] struct {
	q        Query[Row]
	ctx      context.Context
	op       string
	wantRows bool

	state  IterState
	opened bool
	tx     *Tx
	ownTx  bool
	plan   *plan
	m      matcher[Row]
	cur    *RawRangeCursor
	data   storageBucket
	start  time.Time

	fanOut   bool
	buffered []fanOutEntry[Row]
	fanAdv   int

	skipped int
	yielded int
	row     *Row
	pk      []byte
	err     error
}

func (q Query[Row]) iterate(ctx context.Context, op string, wantRows bool) *Iterator[Row] {
	return &Iterator[Row]{
		q:        q,
		ctx:      nonNil(ctx),
		op:       op,
		wantRows: wantRows,
	}
}

func (it *Iterator[Row]) State() IterState {
	return it.state
}

// Advances returns the number of cursor moves and point lookups issued.
func (it *Iterator[Row]) Advances() int {
	if it.cur != nil {
		return it.cur.Advances()
	}
	return it.fanAdv
}

// Err returns the error that ended the walk, if any.
func (it *Iterator[Row]) Err() error {
	return it.err
}

// Row returns the current row. Valid after Next returns true; nil for
// key-only walks without predicates.
func (it *Iterator[Row]) Row() *Row {
	return it.row
}

// Key returns the primary key of the current row.
func (it *Iterator[Row]) Key() any {
	tbl := it.q.qc.table
	if it.row != nil {
		return tbl.RowKey(it.row)
	}
	keyVal, err := tbl.DecodeKeyVal(it.pk)
	if err != nil {
		panic(err)
	}
	return keyVal.Interface()
}

// Next advances to the next result, returning false when the walk is over.
func (it *Iterator[Row]) Next() bool {
	switch it.state {
	case IterClosed:
		return false
	case IterIdle:
		if it.q.st.limit == 0 {
			it.finish()
			return false
		}
		if err := it.open(); err != nil {
			it.fail(err)
			return false
		}
	}
	it.row, it.pk = nil, nil

	if lim := it.q.st.limit; lim >= 0 && it.yielded >= lim {
		it.finish()
		return false
	}

	if it.fanOut {
		if len(it.buffered) == 0 {
			it.finish()
			return false
		}
		e := it.buffered[0]
		it.buffered = it.buffered[1:]
		it.row, it.pk = e.row, e.pk
		it.yielded++
		it.state = IterYielding
		return true
	}

	for {
		if err := it.ctx.Err(); err != nil {
			it.fail(err)
			return false
		}
		it.state = IterAdvancing
		if !it.cur.Next() {
			it.finish()
			return false
		}
		_, pk, valueRaw, err := it.m.fetch(it.data, it.cur.Key(), it.cur.Value())
		if err != nil {
			it.fail(err)
			return false
		}
		row, ok, err := it.m.match(pk, valueRaw)
		if err != nil {
			it.fail(err)
			return false
		}
		if !ok {
			continue
		}
		if it.skipped < it.q.st.offset {
			it.skipped++
			continue
		}
		it.row, it.pk = row, pk
		it.yielded++
		it.state = IterYielding
		return true
	}
}

// Close releases the cursor and, unless the query runs in a caller's
// transaction, the transaction. It is safe to call more than once.
func (it *Iterator[Row]) Close() {
	if it.state != IterClosed {
		it.finish()
	}
}

func (it *Iterator[Row]) open() error {
	it.opened = true
	it.start = time.Now()
	p, err := it.q.plan()
	if err != nil {
		return err
	}
	it.plan = p

	qc := it.q.qc
	if qc.tx != nil {
		if qc.tx.closed {
			return errTxFinished
		}
		if _, err := qc.conn(it.ctx); err != nil {
			return err
		}
		it.tx = qc.tx
	} else {
		db, err := qc.conn(it.ctx)
		if err != nil {
			return err
		}
		tx, err := db.BeginRead()
		if err != nil {
			return err
		}
		it.tx, it.ownTx = tx, true
	}

	it.m = matcher[Row]{
		plan:     p,
		preds:    it.q.preds,
		needRows: it.wantRows || len(it.q.preds) > 0 || p.residual != nil,
	}
	it.data = it.tx.dataBucket(p.table)

	if p.anyOf != nil {
		it.fanOut = true
		entries, err := it.runFanOut()
		if err != nil {
			return err
		}
		it.buffered = entries
		return nil
	}
	it.cur = p.rang.newCursor(p.bucketIn(it.tx).Cursor(), it.tx.db.logger)
	return nil
}

// count opens the walk and counts its results. The storage counts the
// range directly when no row needs to be looked at.
func (it *Iterator[Row]) count() (int, error) {
	if it.q.st.limit == 0 {
		it.finish()
		return 0, nil
	}
	if err := it.open(); err != nil {
		it.fail(err)
		return 0, err
	}
	if p := it.plan; !it.fanOut && !it.m.needRows {
		n := countRange(p.bucketIn(it.tx), p.rang)
		n = max(0, n-it.q.st.offset)
		if lim := it.q.st.limit; lim >= 0 {
			n = min(n, lim)
		}
		it.yielded = n
		it.finish()
		return n, nil
	}
	it.state = IterAdvancing
	var n int
	for it.Next() {
		n++
	}
	return n, it.err
}

func (it *Iterator[Row]) fail(err error) {
	it.err = err
	it.finish()
}

func (it *Iterator[Row]) finish() {
	it.state = IterClosed
	it.row, it.pk = nil, nil
	it.buffered = nil
	if it.ownTx && it.tx != nil {
		it.tx.Close()
	}
	it.tx = nil
	it.data = nil
	if !it.opened {
		return
	}
	it.opened = false

	db := it.q.qc.db
	kind := sourcePrimary
	if it.plan != nil {
		kind = it.plan.kind
	}
	db.metrics.observe(it.op, kind, it.Advances(), it.yielded, it.err)
	if db.verbose {
		attrs := []slog.Attr{
			slog.String("table", it.q.qc.table.name),
			slog.String("op", it.op),
			slog.String("source", kind.String()),
			slog.Int("rows", it.yielded),
			slog.Int("advances", it.Advances()),
			slog.Duration("elapsed", time.Since(it.start)),
		}
		if it.plan != nil && it.plan.index != nil {
			attrs = append(attrs, slog.String("index", it.plan.index.name))
		}
		if it.err != nil {
			attrs = append(attrs, slog.Any("err", it.err))
		}
		db.logger.LogAttrs(context.Background(), slog.LevelInfo, "db: QUERY", attrs...)
	}
}

// matcher turns source entries into results.
type matcher[Row any] struct {
	plan     *plan
	preds    []Predicate[Row]
	needRows bool
}

// fetch splits a source entry and, when rows are needed, finds the stored
// value of its row.
func (m *matcher[Row]) fetch(data storageBucket, k, v []byte) (sortKey, pk, valueRaw []byte, err error) {
	sortKey, pk, err = m.plan.entryKeys(k, v)
	if err != nil || !m.needRows {
		return sortKey, pk, nil, err
	}
	if m.plan.kind != sourceIndex {
		return sortKey, pk, v, nil
	}
	valueRaw = data.Get(pk)
	if valueRaw == nil {
		return nil, nil, nil, tableErrf(m.plan.table, m.plan.index, pk, nil, "index entry without a row")
	}
	return sortKey, pk, valueRaw, nil
}

// match decodes the row when needed and checks the residual condition and
// the predicates, in that order.
func (m *matcher[Row]) match(pk, valueRaw []byte) (*Row, bool, error) {
	if !m.needRows {
		return nil, true, nil
	}
	rowVal, _, err := decodeTableRow(m.plan.table, pk, valueRaw)
	if err != nil {
		return nil, false, err
	}
	if m.plan.residual != nil && !m.plan.residual(rowVal) {
		return nil, false, nil
	}
	row := rowVal.Interface().(*Row)
	ok, err := evalPredicates(m.preds, row)
	if err != nil || !ok {
		return nil, false, err
	}
	return row, true, nil
}
