package edbq

import (
	"bytes"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
)

type fanOutEntry[Row any] struct {
	sortKey []byte
	pk      []byte
	row     *Row
}

type rawEntry struct {
	sortKey  []byte
	pk       []byte
	valueRaw []byte
}

// runFanOut resolves every value of an AnyOf condition concurrently within
// the iterator's transaction, with storage access serialized. Rows are then
// decoded and matched in the calling goroutine, in value order, so
// predicates never run concurrently. Results are deduplicated by primary
// key, sorted by source key and primary key, then paginated.
func (it *Iterator[Row]) runFanOut() ([]fanOutEntry[Row], error) {
	p := it.plan
	db := it.q.qc.db
	db.metrics.fanOutLookups.Observe(float64(len(p.anyOf)))

	src := p.bucketIn(it.tx)
	found := make([][]rawEntry, len(p.anyOf))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(it.ctx)
	g.SetLimit(db.fanOutLimit)
	for i, v := range p.anyOf {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raws, err := it.lookup(&mu, src, v)
			found[i] = raws
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slots := make([][]fanOutEntry[Row], len(found))
	for i, raws := range found {
		for _, r := range raws {
			row, ok, err := it.m.match(r.pk, r.valueRaw)
			if err != nil {
				return nil, err
			}
			if ok {
				slots[i] = append(slots[i], fanOutEntry[Row]{r.sortKey, r.pk, row})
			}
		}
	}

	entries := dedupByPrimaryKey(slots)
	desc := p.rang.Reverse
	slices.SortStableFunc(entries, func(a, b fanOutEntry[Row]) int {
		c := bytes.Compare(a.sortKey, b.sortKey)
		if c == 0 {
			c = bytes.Compare(a.pk, b.pk)
		}
		if desc {
			c = -c
		}
		return c
	})

	off := min(it.q.st.offset, len(entries))
	entries = entries[off:]
	if lim := it.q.st.limit; lim >= 0 && lim < len(entries) {
		entries = entries[:lim]
	}
	return entries, nil
}

// lookup finds the source entries for one encoded value. Primary keys and
// unique index values are point lookups; other index values are prefix
// scans. Returned bytes are copies that outlive the transaction.
func (it *Iterator[Row]) lookup(mu *sync.Mutex, src storageBucket, v []byte) ([]rawEntry, error) {
	mu.Lock()
	defer mu.Unlock()

	p := it.plan
	if p.kind == sourcePrimary || p.index.isUnique {
		it.fanAdv++
		found := src.Get(v)
		if found == nil {
			return nil, nil
		}
		e, err := it.copyEntry(v, found)
		if err != nil {
			return nil, err
		}
		return []rawEntry{e}, nil
	}

	r := RawPrefix(v)
	c := r.newCursor(src.Cursor(), it.tx.db.logger)
	defer func() { it.fanAdv += c.Advances() }()
	var out []rawEntry
	for c.Next() {
		e, err := it.copyEntry(c.Key(), c.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (it *Iterator[Row]) copyEntry(k, v []byte) (rawEntry, error) {
	sortKey, pk, valueRaw, err := it.m.fetch(it.data, k, v)
	if err != nil {
		return rawEntry{}, err
	}
	return rawEntry{
		sortKey:  bytes.Clone(sortKey),
		pk:       bytes.Clone(pk),
		valueRaw: bytes.Clone(valueRaw),
	}, nil
}

// dedupByPrimaryKey flattens slots in order, keeping the first entry seen
// for each primary key.
func dedupByPrimaryKey[Row any](slots [][]fanOutEntry[Row]) []fanOutEntry[Row] {
	var n int
	for _, slot := range slots {
		n += len(slot)
	}
	seen := make(map[uint64][][]byte, n)
	out := make([]fanOutEntry[Row], 0, n)
	for _, slot := range slots {
		for _, e := range slot {
			h := xxhash.Sum64(e.pk)
			if slices.ContainsFunc(seen[h], func(pk []byte) bool { return bytes.Equal(pk, e.pk) }) {
				continue
			}
			seen[h] = append(seen[h], e.pk)
			out = append(out, e)
		}
	}
	return out
}
