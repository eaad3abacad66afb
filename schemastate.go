package edbq

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"time"
)

func (db *DB) tableState(tbl *Table) *tableState {
	return db.tableStates[tbl.pos]
}

type tableState struct {
	LastIndexOrdinal uint64                 `msgpack:"li"`
	Indices          map[string]*indexState `msgpack:"i"`
	LastSeen         time.Time              `msgpack:"t"`

	table            *Table                 `msgpack:"-"`
	indexStates      []*indexState          `msgpack:"-"`
	indexStatesByOrd map[uint64]*indexState `msgpack:"-"`
}

func (ts *tableState) indexOrdinal(idx *Index) uint64 {
	return ts.indexStates[idx.pos].IndexOrdinal
}

func (ts *tableState) indexByOrdinal(ord uint64) *Index {
	is := ts.indexStatesByOrd[ord]
	if is == nil {
		return nil
	}
	return is.index
}

func (ts *tableState) hasPendingIndices() bool {
	for _, is := range ts.Indices {
		if !is.Built {
			return true
		}
	}
	return false
}

type indexState struct {
	index        *Index `msgpack:"-"`
	IndexOrdinal uint64 `msgpack:"o"`
	Built        bool   `msgpack:"f"`
}

var tableStateKey = []byte("_state")

const tableStateEncoding = MsgPack

func prepareTable(tx *Tx, tbl *Table, now time.Time) (*tableState, error) {
	rootB, err := tx.stx.CreateBucket(tbl.name, "")
	if err != nil {
		return nil, tableErrf(tbl, nil, nil, err, "creating bucket")
	}
	if _, err := tx.stx.CreateBucket(tbl.name, dataBucket); err != nil {
		return nil, tableErrf(tbl, nil, nil, err, "creating data bucket")
	}
	for _, idx := range tbl.indices {
		if _, err := tx.stx.CreateBucket(tbl.name, idx.bucketName()); err != nil {
			return nil, tableErrf(tbl, idx, nil, err, "creating index bucket")
		}
	}

	ts := new(tableState)
	if rawTS := rootB.Get(tableStateKey); rawTS != nil {
		err := tableStateEncoding.DecodeValue(rawTS, reflect.ValueOf(ts))
		if err != nil {
			return nil, tableErrf(tbl, nil, nil, err, "failed to decode table state")
		}
	}
	ts.table = tbl
	if ts.Indices == nil {
		ts.Indices = make(map[string]*indexState)
	}

	ts.LastSeen = now
	ts.indexStates = make([]*indexState, len(tbl.indices))
	ts.indexStatesByOrd = make(map[uint64]*indexState)

	for i, idx := range tbl.indices {
		is := ts.Indices[idx.name]
		if is == nil {
			ts.LastIndexOrdinal++
			is = &indexState{
				IndexOrdinal: ts.LastIndexOrdinal,
			}
			ts.Indices[idx.name] = is
		}
		is.index = idx
		ts.indexStates[i] = is
		ts.indexStatesByOrd[is.IndexOrdinal] = is
	}
	for k, is := range ts.Indices {
		if is.index == nil {
			if err := dropDeletedIndex(tx, tbl, k); err != nil {
				return nil, err
			}
			delete(ts.Indices, k)
		}
	}
	return ts, nil
}

// reindex fills indices added since the table was last opened.
func (ts *tableState) reindex(tx *Tx) error {
	if !ts.hasPendingIndices() {
		return nil
	}
	tbl := ts.table
	logger := tx.db.logger
	logger.LogAttrs(context.Background(), slog.LevelInfo, "db: re-indexing", slog.String("table", tbl.name))
	start := time.Now()

	var keys [][]byte
	c := tx.dataBucket(tbl).Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}

	tx.reindexing = true
	defer func() { tx.reindexing = false }()
	for i, k := range keys {
		rowVal, _, err := tx.getRowValByRawKey(tbl, k)
		if err != nil {
			return err
		}
		if _, err := tx.putVal(tbl, rowVal); err != nil {
			return err
		}
		if (i+1)%100000 == 0 {
			logger.LogAttrs(context.Background(), slog.LevelInfo, "db: still re-indexing", slog.String("table", tbl.name), slog.Int("rows", i+1), slog.Duration("elapsed", time.Since(start)))
		}
	}
	for _, is := range ts.Indices {
		is.Built = true
	}
	logger.LogAttrs(context.Background(), slog.LevelInfo, "db: re-indexed", slog.String("table", tbl.name), slog.Int("rows", len(keys)), slog.Duration("elapsed", time.Since(start)))
	return nil
}

func (ts *tableState) save(tx *Tx) error {
	rawTS := tableStateEncoding.EncodeValue(nil, reflect.ValueOf(ts))
	rootB := nonNil(tx.stx.Bucket(ts.table.name, ""))
	return rootB.Put(tableStateKey, rawTS)
}

func dropDeletedIndex(tx *Tx, tbl *Table, name string) error {
	err := tx.stx.DeleteBucket(tbl.name, indexBucketName(name))
	if errors.Is(err, ErrBucketNotFound) {
		return nil
	} else if err != nil {
		return tableErrf(tbl, nil, nil, err, "deleting index %s", name)
	}
	tx.db.logger.LogAttrs(context.Background(), slog.LevelInfo, "db: deleted index", slog.String("table", tbl.name), slog.String("index", name))
	return nil
}
