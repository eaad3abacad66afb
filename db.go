package edbq

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.etcd.io/bbolt"
)

const trackTxns = true

type DB struct {
	store       storage
	bdb         *bbolt.DB
	schema      *Schema
	logger      *slog.Logger
	verbose     bool
	strict      bool
	fanOutLimit int
	metrics     *metrics
	closed      atomic.Bool

	tableStates []*tableState

	ReaderCount atomic.Int64
	WriterCount atomic.Int64
	ReadCount   atomic.Uint64
	WriteCount  atomic.Uint64

	txns     []*Tx
	txnsLock sync.Mutex
}

type Options struct {
	// Logger receives verbose traces and maintenance messages. Defaults to slog.Default().
	Logger *slog.Logger

	// Verbose logs every read, write and query.
	Verbose bool

	IsTesting bool
	MmapSize  int

	// Registerer receives query metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer

	// FanOutLimit bounds concurrent sub-lookups of a multi-value query.
	// Defaults to GOMAXPROCS.
	FanOutLimit int
}

// Open opens or creates a Bolt database file at path.
func Open(path string, schema *Schema, opt Options) (*DB, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 1024
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, &bopt)
	if err != nil {
		return nil, fmt.Errorf("edbq: %w", err)
	}
	db, err := open(newBoltStorage(bdb), schema, opt)
	if err != nil {
		bdb.Close()
		return nil, err
	}
	db.bdb = bdb
	return db, nil
}

// OpenMemory opens a transient in-memory database.
func OpenMemory(schema *Schema, opt Options) (*DB, error) {
	return open(newMemStorage(), schema, opt)
}

func open(store storage, schema *Schema, opt Options) (*DB, error) {
	schema.init()
	db := &DB{
		store:       store,
		schema:      schema,
		logger:      opt.Logger,
		verbose:     opt.Verbose,
		strict:      opt.IsTesting,
		fanOutLimit: opt.FanOutLimit,
		metrics:     newMetrics(opt.Registerer),
		tableStates: make([]*tableState, len(schema.tables)),
	}
	if db.logger == nil {
		db.logger = slog.Default()
	}
	if db.fanOutLimit <= 0 {
		db.fanOutLimit = runtime.GOMAXPROCS(0)
	}

	err := db.Tx(true, func(tx *Tx) error {
		now := time.Now()
		for i, tbl := range schema.tables {
			ts, err := prepareTable(tx, tbl, now)
			if err != nil {
				return err
			}
			db.tableStates[i] = ts
		}
		for _, ts := range db.tableStates {
			if err := ts.reindex(tx); err != nil {
				return err
			}
		}
		for _, ts := range db.tableStates {
			if err := ts.save(tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("edbq: preparing tables: %w", err)
	}
	return db, nil
}

func (db *DB) Schema() *Schema {
	return db.schema
}

// Bolt returns the underlying Bolt database, or nil for in-memory databases.
func (db *DB) Bolt() *bbolt.DB {
	return db.bdb
}

// Conn returns db while it is open. Queries obtain their database through
// it before every terminal operation.
func (db *DB) Conn(ctx context.Context) (*DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if db.closed.Load() {
		return nil, ErrClosed
	}
	return db, nil
}

func (db *DB) IsClosed() bool {
	return db.closed.Load()
}

func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := db.store.Close()
	if err != nil {
		return fmt.Errorf("edbq: closing: %w", err)
	}
	return nil
}

func (db *DB) logf(format string, args ...any) {
	db.logger.LogAttrs(context.Background(), slog.LevelInfo, fmt.Sprintf(format, args...))
}

func (db *DB) addTx(tx *Tx) {
	if !trackTxns {
		return
	}
	db.txnsLock.Lock()
	defer db.txnsLock.Unlock()
	db.txns = append(db.txns, tx)
}

func (db *DB) removeTx(tx *Tx) {
	if !trackTxns {
		return
	}
	db.txnsLock.Lock()
	defer db.txnsLock.Unlock()

	found := slices.Index(db.txns, tx)
	if found < 0 {
		panic("tx not found in list")
	}
	n := len(db.txns)
	db.txns[found] = db.txns[n-1]
	db.txns[n-1] = nil
	db.txns = db.txns[:n-1]
}

func (db *DB) DescribeOpenTxns() string {
	if !trackTxns {
		return "OPEN TX TRACKING DISABLED"
	}

	db.txnsLock.Lock()
	txns := slices.Clone(db.txns)
	db.txnsLock.Unlock()

	if len(txns) == 0 {
		return "NO OPEN TRANSACTIONS"
	}

	slices.SortFunc(txns, func(a, b *Tx) int {
		return a.startTime.Compare(b.startTime)
	})

	now := time.Now()

	var buf strings.Builder
	fmt.Fprintf(&buf, "%d OPEN TRANSACTIONS:\n", len(txns))
	for _, tx := range txns {
		ms := now.Sub(tx.startTime).Milliseconds()
		if ms < 100 || !db.strict {
			fmt.Fprintf(&buf, "\n---\nopen for %d ms\n", ms)
		} else {
			fmt.Fprintf(&buf, "\n---\nopen for %d ms:\n%s", ms, tx.stack)
		}
	}

	return buf.String()
}
