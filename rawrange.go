package edbq

import (
	"bytes"
	"context"
	"log/slog"
)

const (
	debugLogRawScans = false
)

// RawRange defines a range of byte strings. The constructors use mnemonics:
// O means open, I means inclusive, E means exclusive; the first letter is for
// the lower bound, the second for the upper bound.
//
// Prefix, Lower and Upper all constrain the range at once: a key matches
// when it has the prefix and lies within both bounds.
type RawRange struct {
	Prefix   []byte
	Lower    []byte
	Upper    []byte
	LowerInc bool
	UpperInc bool
	Reverse  bool
}

func RawOO() RawRange            { return RawRange{} }
func RawIO(l []byte) RawRange    { return RawRange{Lower: l, LowerInc: true} }
func RawEO(l []byte) RawRange    { return RawRange{Lower: l, LowerInc: false} }
func RawOI(u []byte) RawRange    { return RawRange{Upper: u, UpperInc: true} }
func RawOE(u []byte) RawRange    { return RawRange{Upper: u, UpperInc: false} }
func RawII(l, u []byte) RawRange { return RawRange{Lower: l, Upper: u, LowerInc: true, UpperInc: true} }
func RawIE(l, u []byte) RawRange {
	return RawRange{Lower: l, Upper: u, LowerInc: true, UpperInc: false}
}
func RawEI(l, u []byte) RawRange {
	return RawRange{Lower: l, Upper: u, LowerInc: false, UpperInc: true}
}
func RawEE(l, u []byte) RawRange {
	return RawRange{Lower: l, Upper: u, LowerInc: false, UpperInc: false}
}
func RawPrefix(p []byte) RawRange                { return RawRange{Prefix: p} }
func (rang RawRange) Prefixed(p []byte) RawRange { rang.Prefix = p; return rang }
func (rang RawRange) Reversed() RawRange         { rang.Reverse = true; return rang }

func (r *RawRange) isUnbounded() bool {
	return len(r.Prefix) == 0 && r.Lower == nil && r.Upper == nil
}

// bounds folds the prefix into the lower and upper bounds. A nil bound is open.
func (r *RawRange) bounds() (lo []byte, loInc bool, hi []byte, hiInc bool) {
	lo, loInc = r.Lower, r.LowerInc
	hi, hiInc = r.Upper, r.UpperInc
	if len(r.Prefix) == 0 {
		return
	}
	if lo == nil || bytes.Compare(r.Prefix, lo) > 0 {
		lo, loInc = r.Prefix, true
	}
	if succ := prefixSuccessor(r.Prefix); succ != nil {
		if hi == nil || bytes.Compare(succ, hi) <= 0 {
			hi, hiInc = succ, false
		}
	}
	return
}

func (r *RawRange) start(bcur storageCursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	lo, loInc, hi, hiInc := r.bounds()
	if r.Reverse {
		if hi != nil {
			k, v = bcur.Seek(hi)
			if debugLogRawScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "SEEK to upper", hexAttr("upper", hi), hexAttr("key", k), hexAttr("val", v))
			}
			if k == nil {
				k, v = bcur.Last()
			} else if !hiInc || !bytes.Equal(k, hi) {
				k, v = bcur.Prev()
			}
		} else {
			k, v = bcur.Last()
			if debugLogRawScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "LAST", hexAttr("key", k), hexAttr("val", v))
			}
		}
	} else {
		if lo != nil {
			k, v = bcur.Seek(lo)
			if debugLogRawScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "SEEK to lower", hexAttr("lower", lo), hexAttr("key", k), hexAttr("val", v))
			}
			if k != nil && !loInc && bytes.Equal(k, lo) {
				if debugLogRawScans {
					logger.LogAttrs(context.Background(), slog.LevelDebug, "SKIP_INITIAL")
				}
				k, v = bcur.Next()
			}
		} else {
			k, v = bcur.First()
			if debugLogRawScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "FIRST", hexAttr("key", k), hexAttr("val", v))
			}
		}
	}
	if k != nil && r.match(k, v, logger) {
		return k, v
	}
	return nil, nil
}

func (r *RawRange) next(bcur storageCursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	if r.Reverse {
		k, v = bcur.Prev()
		if debugLogRawScans {
			logger.LogAttrs(context.Background(), slog.LevelDebug, "PREV", hexAttr("key", k), hexAttr("val", v))
		}
	} else {
		k, v = bcur.Next()
		if debugLogRawScans {
			logger.LogAttrs(context.Background(), slog.LevelDebug, "NEXT", hexAttr("key", k), hexAttr("val", v))
		}
	}
	if k != nil && r.match(k, v, logger) {
		return k, v
	}
	return nil, nil
}

// match reports whether k lies inside the range. Matching keys are
// contiguous, so the first miss ends the walk in either direction.
func (r *RawRange) match(k, v []byte, logger *slog.Logger) bool {
	if r.Prefix != nil && !bytes.HasPrefix(k, r.Prefix) {
		if debugLogRawScans {
			logger.LogAttrs(context.Background(), slog.LevelDebug, "BAIL on prefix", hexAttr("prefix", r.Prefix), hexAttr("key", k), hexAttr("val", v))
		}
		return false
	}
	if lower := r.Lower; lower != nil {
		cmp := bytes.Compare(k, lower)
		if cmp < 0 || (cmp == 0 && !r.LowerInc) {
			if debugLogRawScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "BAIL on lower", hexAttr("lower", lower), hexAttr("key", k), hexAttr("val", v))
			}
			return false
		}
	}
	if upper := r.Upper; upper != nil {
		cmp := bytes.Compare(k, upper)
		if cmp > 0 || (cmp == 0 && !r.UpperInc) {
			if debugLogRawScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "BAIL on upper", hexAttr("upper", upper), hexAttr("key", k), hexAttr("val", v))
			}
			return false
		}
	}
	if debugLogRawScans {
		logger.LogAttrs(context.Background(), slog.LevelDebug, "MATCH", hexAttr("key", k), hexAttr("val", v))
	}
	return true
}

func (r *RawRange) newCursor(bcur storageCursor, logger *slog.Logger) *RawRangeCursor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RawRangeCursor{rang: *r, bcur: bcur, logger: logger}
}

// RawRangeCursor walks the keys of a RawRange one cursor move at a time.
type RawRangeCursor struct {
	rang     RawRange
	bcur     storageCursor
	logger   *slog.Logger
	k, v     []byte
	init     bool
	done     bool
	advances int
}

// Next moves to the next key in range. Once it returns false, the cursor is
// exhausted and further calls do not touch the storage.
func (c *RawRangeCursor) Next() bool {
	if c.done {
		return false
	}
	c.advances++
	if c.init {
		c.k, c.v = c.rang.next(c.bcur, c.logger)
	} else {
		c.init = true
		c.k, c.v = c.rang.start(c.bcur, c.logger)
	}
	if c.k == nil {
		c.done = true
	}
	return c.k != nil
}

func (c *RawRangeCursor) Key() []byte   { return c.k }
func (c *RawRangeCursor) Value() []byte { return c.v }

// Advances returns the number of cursor moves issued so far.
func (c *RawRangeCursor) Advances() int { return c.advances }
