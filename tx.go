package edbq

import (
	"fmt"
	"runtime/debug"
	"time"
)

type Txish interface {
	DBTx() *Tx
}

type Tx struct {
	db     *DB
	stx    storageTx
	closed bool

	written    bool
	reindexing bool

	startTime time.Time
	stack     string

	valueBufs [][]byte
}

func (db *DB) begin(writable bool) (*Tx, error) {
	if db.closed.Load() {
		return nil, ErrClosed
	}
	stx, err := db.store.BeginTx(writable)
	if err != nil {
		return nil, fmt.Errorf("edbq: begin: %w", err)
	}
	tx := &Tx{
		db:        db,
		stx:       stx,
		startTime: time.Now(),
	}
	if db.strict {
		tx.stack = string(debug.Stack())
	}
	if writable {
		db.WriterCount.Add(1)
		db.WriteCount.Add(1)
	} else {
		db.ReaderCount.Add(1)
		db.ReadCount.Add(1)
	}
	db.addTx(tx)
	return tx, nil
}

// DBTx implements Txish
func (tx *Tx) DBTx() *Tx {
	return tx
}

func (tx *Tx) DB() *DB {
	return tx.db
}

func (tx *Tx) Schema() *Schema {
	return tx.db.schema
}

// Tx runs f inside a transaction. A writable transaction commits when f
// returns nil and rolls back otherwise. Panics inside f are returned as errors.
func (db *DB) Tx(writable bool, f func(tx *Tx) error) error {
	tx, err := db.begin(writable)
	if err != nil {
		return err
	}
	defer tx.Close()
	err = safelyCall(f, tx)
	if err != nil {
		return err
	}
	if writable {
		return tx.Commit()
	}
	return nil
}

func safelyCall(fn func(*Tx) error, tx *Tx) (err error) {
	defer recoverPanic(&err)
	return fn(tx)
}

func (db *DB) BeginRead() (*Tx, error) {
	return db.begin(false)
}

func (db *DB) BeginUpdate() (*Tx, error) {
	return db.begin(true)
}

func (db *DB) Read(f func(tx *Tx)) {
	tx := must(db.BeginRead())
	defer tx.Close()
	f(tx)
}

func (db *DB) ReadErr(f func(tx *Tx) error) error {
	tx, err := db.BeginRead()
	if err != nil {
		return err
	}
	defer tx.Close()
	return f(tx)
}

func (db *DB) Write(f func(tx *Tx)) {
	tx := must(db.BeginUpdate())
	defer tx.Close()
	f(tx)
	err := tx.Commit()
	if err != nil {
		panic(fmt.Errorf("commit: %w", err))
	}
}

func (tx *Tx) IsWritable() bool {
	return tx.stx.Writable()
}

func (tx *Tx) markWritten() {
	tx.written = true
}

func (tx *Tx) addValueBuf(buf []byte) {
	tx.valueBufs = append(tx.valueBufs, buf)
}

// Close rolls back the transaction unless it has been committed. It is safe
// to call more than once.
func (tx *Tx) Close() {
	if tx.closed {
		return
	}
	tx.closed = true
	// Rollback after Commit is a no-op.
	ensure(tx.stx.Rollback())
	tx.finish()
}

func (tx *Tx) Commit() error {
	if tx.closed {
		return fmt.Errorf("edbq: commit of a closed transaction")
	}
	err := tx.stx.Commit()
	tx.closed = true
	tx.finish()
	return err
}

func (tx *Tx) finish() {
	if tx.stx.Writable() {
		tx.db.WriterCount.Add(-1)
	} else {
		tx.db.ReaderCount.Add(-1)
	}
	tx.db.removeTx(tx)
	for i, buf := range tx.valueBufs {
		releaseValueBytes(buf)
		tx.valueBufs[i] = nil
	}
	tx.valueBufs = nil
}

func (tx *Tx) tableBucket(tbl *Table, sub string) storageBucket {
	b := tx.stx.Bucket(tbl.name, sub)
	if b == nil {
		panic(tableErrf(tbl, nil, nil, ErrBucketNotFound, "bucket %q", sub))
	}
	return b
}

func (tx *Tx) dataBucket(tbl *Table) storageBucket {
	return tx.tableBucket(tbl, dataBucket)
}

func (tx *Tx) indexBucket(idx *Index) storageBucket {
	return tx.tableBucket(idx.table, idx.bucketName())
}
