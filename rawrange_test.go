package edbq

import (
	"path/filepath"
	"strings"
	"testing"

	"go.etcd.io/bbolt"
)

func TestRawScan(t *testing.T) {
	keys := x("10 12 14 40 44 48")
	tests := []struct {
		rang RawRange
		keys string
	}{
		{RawOO(), "10 12 14 40 44 48"},
		{RawOO().Reversed(), "48 44 40 14 12 10"},
		{RawPrefix(nil), "10 12 14 40 44 48"},
		{RawPrefix(x("10")), "10"},
		{RawPrefix(x("11")), ""},
		{RawPrefix(x("")), "10 12 14 40 44 48"},

		{RawIO(x("12")), "12 14 40 44 48"},
		{RawEO(x("12")), "14 40 44 48"},
		{RawIO(x("13")), "14 40 44 48"},
		{RawEO(x("13")), "14 40 44 48"},
		{RawIO(x("50")), ""},
		{RawOI(x("40")), "10 12 14 40"},
		{RawOE(x("40")), "10 12 14"},
		{RawOE(x("05")), ""},
		{RawII(x("12"), x("44")), "12 14 40 44"},
		{RawIE(x("12"), x("44")), "12 14 40"},
		{RawEI(x("12"), x("44")), "14 40 44"},
		{RawEE(x("12"), x("44")), "14 40"},
		{RawEE(x("12"), x("14")), ""},
		{RawII(x("13"), x("13")), ""},

		{RawIO(x("12")).Reversed(), "48 44 40 14 12"},
		{RawEO(x("12")).Reversed(), "48 44 40 14"},
		{RawOI(x("40")).Reversed(), "40 14 12 10"},
		{RawOE(x("40")).Reversed(), "14 12 10"},
		{RawOI(x("41")).Reversed(), "40 14 12 10"},
		{RawOE(x("41")).Reversed(), "40 14 12 10"},
		{RawOI(x("50")).Reversed(), "48 44 40 14 12 10"},
		{RawII(x("12"), x("44")).Reversed(), "44 40 14 12"},
		{RawEE(x("12"), x("44")).Reversed(), "40 14"},
		{RawOE(x("05")).Reversed(), ""},
	}

	forEachStorage(t, func(t *testing.T, st storage) {
		stx := must(st.BeginTx(true))
		defer stx.Rollback()
		b := must(stx.CreateBucket("raw", ""))
		for _, k := range keys {
			noerr(t, b.Put([]byte{k}, []byte{k, k}))
		}

		for _, tt := range tests {
			c := tt.rang.newCursor(b.Cursor(), nil)
			var actual []string
			for c.Next() {
				if c.Value()[0] != c.Key()[0] {
					t.Errorf("** %v: value %x does not belong to key %x", tt.rang, c.Value(), c.Key())
				}
				actual = append(actual, hexstr(c.Key()))
			}
			if a, e := strings.Join(actual, " "), tt.keys; a != e {
				t.Errorf("** %v: got %q, wanted %q", tt.rang, a, e)
			}
			deepEqual(t, c.Advances(), len(actual)+1)
			deepEqual(t, c.Next(), false)
			deepEqual(t, c.Advances(), len(actual)+1)

			n := countRange(b, tt.rang)
			if e := len(actual); n != e {
				t.Errorf("** countRange(%v) = %d, wanted %d", tt.rang, n, e)
			}
		}
	})
}

func TestRawScan_PrefixWithBounds(t *testing.T) {
	forEachStorage(t, func(t *testing.T, st storage) {
		stx := must(st.BeginTx(true))
		defer stx.Rollback()
		b := must(stx.CreateBucket("raw", ""))
		if _, ok := b.(rangeCounter); !ok {
			t.Errorf("** %T does not count ranges natively", b)
		}
		for _, k := range []string{"4001", "4002", "4003", "41", "4101"} {
			noerr(t, b.Put(x(k), nil))
		}
		tests := []struct {
			rang RawRange
			keys string
		}{
			{RawIO(x("4002")).Prefixed(x("40")), "4002 4003"},
			{RawOE(x("4003")).Prefixed(x("40")), "4001 4002"},
			{RawOE(x("4003")).Prefixed(x("40")).Reversed(), "4002 4001"},
			{RawIO(x("4100")).Prefixed(x("40")), ""},
			{RawPrefix(x("41")).Reversed(), "4101 41"},
		}
		for _, tt := range tests {
			c := tt.rang.newCursor(b.Cursor(), nil)
			var actual []string
			for c.Next() {
				actual = append(actual, hexstr(c.Key()))
			}
			deepEqual(t, strings.Join(actual, " "), tt.keys)
			deepEqual(t, countRange(b, tt.rang), len(actual))
		}
	})
}

func forEachStorage(t *testing.T, f func(t *testing.T, st storage)) {
	t.Run("bolt", func(t *testing.T) {
		bdb := must(bbolt.Open(filepath.Join(t.TempDir(), "raw.db"), 0666, &bbolt.Options{NoSync: true}))
		st := newBoltStorage(bdb)
		defer st.Close()
		f(t, st)
	})
	t.Run("mem", func(t *testing.T) {
		st := newMemStorage()
		defer st.Close()
		f(t, st)
	})
}
