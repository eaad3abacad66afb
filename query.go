package edbq

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"slices"
)

// queryContext is everything a query needs besides its state: the table it
// reads and a way to reach the database. It never changes once created.
type queryContext struct {
	table *Table
	db    *DB
	conn  func(ctx context.Context) (*DB, error)
	tx    *Tx // bound transaction, never closed by queries
}

// queryState is the immutable description of a query apart from its
// predicates. Builder methods copy it.
type queryState struct {
	field  string
	cond   *condition
	desc   bool
	limit  int // negative means none
	offset int
}

// Query is an immutable description of a read over one table. Builder
// methods return new queries and leave the receiver untouched; terminal
// methods (All, First, Count, Keys, Iterate, Seq) run it.
//
// The predicate slice is clipped before every append so derived queries
// never share backing storage.
type Query[Row any] struct {
	qc    *queryContext
	st    queryState
	preds []Predicate[Row]
}

// From starts a query over Row's table in db. Every terminal call runs in a
// read transaction of its own.
func From[Row any](db *DB) Query[Row] {
	tbl := db.schema.TableByRowType(reflect.TypeFor[*Row]())
	if tbl == nil {
		panic(fmt.Errorf("no table defined for row type %v", reflect.TypeFor[Row]()))
	}
	return Query[Row]{
		qc: &queryContext{table: tbl, db: db, conn: db.Conn},
		st: queryState{limit: -1},
	}
}

// In starts a query over Row's table that runs inside tx.
func In[Row any](txh Txish) Query[Row] {
	tx := txh.DBTx()
	tbl := tableOf[Row](tx)
	return Query[Row]{
		qc: &queryContext{table: tbl, db: tx.db, conn: tx.db.Conn, tx: tx},
		st: queryState{limit: -1},
	}
}

func (q Query[Row]) Table() *Table {
	return q.qc.table
}

// Where starts a condition on field, a dotted path of Go field names or
// msgpack tags. The primary key field and indexed fields are matched using
// their sorted order; other fields are checked on every row.
func (q Query[Row]) Where(field string) WhereClause[Row] {
	return WhereClause[Row]{q: q, field: field}
}

// OrderBy walks rows in the order of field without restricting them,
// dropping any earlier condition. The field must be the primary key or have
// an index; otherwise terminals fail with ErrNotIndexed.
func (q Query[Row]) OrderBy(field string) Query[Row] {
	q.st.field = field
	q.st.cond = nil
	return q
}

// Filter adds a predicate evaluated after the scan. Rows that fail do not
// count towards Offset and Limit.
func (q Query[Row]) Filter(p Predicate[Row]) Query[Row] {
	q.preds = append(slices.Clip(q.preds), nonNil(p))
	return q
}

func (q Query[Row]) FilterFunc(f func(row *Row) bool) Query[Row] {
	if f == nil {
		panic("nil filter")
	}
	return q.Filter(boolPredicate[Row](f))
}

func (q Query[Row]) Ascending() Query[Row] {
	q.st.desc = false
	return q
}

func (q Query[Row]) Descending() Query[Row] {
	q.st.desc = true
	return q
}

func (q Query[Row]) Limit(n int) Query[Row] {
	if n < 0 {
		panic(fmt.Errorf("negative limit %d", n))
	}
	q.st.limit = n
	return q
}

func (q Query[Row]) Offset(n int) Query[Row] {
	if n < 0 {
		panic(fmt.Errorf("negative offset %d", n))
	}
	q.st.offset = n
	return q
}

// Explain describes the source and range the query would use.
func (q Query[Row]) Explain() (string, error) {
	p, err := q.plan()
	if err != nil {
		return "", err
	}
	s := p.String()
	if n := len(q.preds); n > 0 {
		s += fmt.Sprintf(", %d predicates", n)
	}
	if q.st.offset > 0 {
		s += fmt.Sprintf(", offset %d", q.st.offset)
	}
	if q.st.limit >= 0 {
		s += fmt.Sprintf(", limit %d", q.st.limit)
	}
	return s, nil
}

// All returns every matching row.
func (q Query[Row]) All(ctx context.Context) ([]*Row, error) {
	it := q.iterate(ctx, opAll, true)
	defer it.Close()
	var rows []*Row
	for it.Next() {
		rows = append(rows, it.Row())
	}
	return rows, it.Err()
}

// First returns the first matching row, or nil if there is none.
func (q Query[Row]) First(ctx context.Context) (*Row, error) {
	if q.st.limit != 0 {
		q.st.limit = 1
	}
	it := q.iterate(ctx, opFirst, true)
	defer it.Close()
	if it.Next() {
		return it.Row(), nil
	}
	return nil, it.Err()
}

// Keys returns the primary keys of matching rows. Rows are only decoded
// when predicates need them.
func (q Query[Row]) Keys(ctx context.Context) ([]any, error) {
	it := q.iterate(ctx, opKeys, false)
	defer it.Close()
	var keys []any
	for it.Next() {
		keys = append(keys, it.Key())
	}
	return keys, it.Err()
}

// KeysAs is Keys with the primary keys typed as Key.
func KeysAs[Key, Row any](ctx context.Context, q Query[Row]) ([]Key, error) {
	if kt, want := q.qc.table.keyType, reflect.TypeFor[Key](); kt != want {
		return nil, &KeyError{Type: kt, Msg: fmt.Sprintf("primary key is %v, not %v", kt, want)}
	}
	it := q.iterate(ctx, opKeys, false)
	defer it.Close()
	var keys []Key
	for it.Next() {
		keys = append(keys, it.Key().(Key))
	}
	return keys, it.Err()
}

// Count returns the number of matching rows. Without predicates or a value
// set it asks the storage for the size of the range instead of walking it.
func (q Query[Row]) Count(ctx context.Context) (int, error) {
	it := q.iterate(ctx, opCount, false)
	defer it.Close()
	return it.count()
}

// Iterate returns a lazy iterator over matching rows. The iterator opens
// its transaction on the first Next and must be closed.
func (q Query[Row]) Iterate(ctx context.Context) *Iterator[Row] {
	return q.iterate(ctx, opIterate, true)
}

// Seq adapts Iterate to range-over-func. Breaking out of the loop closes
// the iterator; an error ends the sequence as its last element.
func (q Query[Row]) Seq(ctx context.Context) iter.Seq2[*Row, error] {
	return func(yield func(*Row, error) bool) {
		it := q.Iterate(ctx)
		defer it.Close()
		for it.Next() {
			if !yield(it.Row(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(nil, err)
		}
	}
}
