package edbq

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
)

var (
	ann = &User{ID: 1, Name: "Ann", Email: "ann@example.com", Age: 20, City: "Paris", Score: 1.5}
	bob = &User{ID: 2, Name: "Bob", Email: "bob@example.org", Age: 25, City: "Berlin", Score: -2}
	cid = &User{ID: 3, Name: "Cid", Email: "cid@example.com", Age: 30, City: "Paris", Score: 0}
	dan = &User{ID: 4, Name: "Dan", Email: "dan@example.org", Age: 35, City: "Rome", Score: 7.25}
)

func seedUsers(t testing.TB, db *DB) {
	t.Helper()
	db.Write(func(tx *Tx) {
		// insertion order differs from key order
		Put(tx, dan, bob, ann, cid)
	})
}

func ages(rows []*User) []int {
	var r []int
	for _, u := range rows {
		r = append(r, u.Age)
	}
	return r
}

func userIDs(rows []*User) []ID {
	var r []ID
	for _, u := range rows {
		r = append(r, u.ID)
	}
	return r
}

func TestQuery_Ranges(t *testing.T) {
	backends(t, basicSchema, func(t *testing.T, db *DB) {
		seedUsers(t, db)
		ctx := context.Background()
		q := From[User](db)

		tests := []struct {
			name string
			q    Query[User]
			want []int
		}{
			{"all", q, []int{20, 25, 30, 35}},
			{"desc", q.Descending(), []int{35, 30, 25, 20}},
			{"between lower open", q.Where("Age").Between(25, 35, BetweenOpts{LowerOpen: true}), []int{30, 35}},
			{"between closed", q.Where("Age").Between(25, 35, BetweenOpts{}), []int{25, 30, 35}},
			{"between both open", q.Where("Age").Between(20, 35, BetweenOpts{LowerOpen: true, UpperOpen: true}), []int{25, 30}},
			{"between empty", q.Where("Age").Between(21, 24, BetweenOpts{}), nil},
			{"between single", q.Where("Age").Between(30, 30, BetweenOpts{}), []int{30}},
			{"between single open", q.Where("Age").Between(30, 30, BetweenOpts{LowerOpen: true}), nil},
			{"equal", q.Where("Age").Equal(25), []int{25}},
			{"equal none", q.Where("Age").Equal(26), nil},
			{"gt", q.Where("Age").GreaterThan(25), []int{30, 35}},
			{"ge", q.Where("Age").GreaterOrEqual(25), []int{25, 30, 35}},
			{"lt", q.Where("Age").LessThan(30), []int{20, 25}},
			{"le", q.Where("Age").LessOrEqual(30), []int{20, 25, 30}},
			{"le desc", q.Where("Age").LessOrEqual(30).Descending(), []int{30, 25, 20}},
			{"gt desc", q.Where("Age").GreaterThan(20).Descending(), []int{35, 30, 25}},
			{"msgpack name", q.Where("a").GreaterThan(30), []int{35}},
			{"widened bound", q.Where("Age").LessThan(int64(25)), []int{20}},
			{"float bound", q.Where("Age").GreaterOrEqual(30.0), []int{30, 35}},
			{"order by", q.OrderBy("Name").Descending(), []int{35, 30, 25, 20}},
			{"primary key", q.Where("ID").Between(2, 3, BetweenOpts{}), []int{25, 30}},
			{"primary key desc", q.Where("ID").GreaterOrEqual(ID(3)).Descending(), []int{35, 30}},
			{"unique index", q.Where("Email").Equal("cid@example.com"), []int{30}},
			{"prefix", q.Where("Email").HasPrefix("b"), []int{25}},
			{"prefix empty", q.Where("Email").HasPrefix(""), []int{20, 25, 30, 35}},
			{"prefix none", q.Where("Name").HasPrefix("Z"), nil},
			{"unindexed equal", q.Where("City").Equal("Paris"), []int{20, 30}},
			{"unindexed range", q.Where("Score").Between(0, 5, BetweenOpts{}), []int{20, 30}},
			{"unindexed negative", q.Where("s").LessThan(0), []int{25}},
			{"unindexed prefix", q.Where("City").HasPrefix("R"), []int{35}},
			{"filter", q.FilterFunc(func(u *User) bool { return u.City != "Paris" }), []int{25, 35}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rows, err := tt.q.All(ctx)
				noerr(t, err)
				deepEqual(t, ages(rows), tt.want)

				n, err := tt.q.Count(ctx)
				noerr(t, err)
				deepEqual(t, n, len(tt.want))
			})
		}
	})
}

func TestQuery_AnyOf(t *testing.T) {
	backends(t, basicSchema, func(t *testing.T, db *DB) {
		seedUsers(t, db)
		ctx := context.Background()
		q := From[User](db)

		tests := []struct {
			name string
			q    Query[User]
			want []int
		}{
			{"dup values", q.Where("Age").AnyOf(25, 25, 30), []int{25, 30}},
			{"value order ignored", q.Where("Age").AnyOf(35, 20, 25), []int{20, 25, 35}},
			{"desc", q.Where("Age").AnyOf(35, 20, 25).Descending(), []int{35, 25, 20}},
			{"missing values", q.Where("Age").AnyOf(21, 30, 99), []int{30}},
			{"no values", q.Where("Age").AnyOf(), nil},
			{"offset limit", q.Where("Age").AnyOf(20, 25, 30, 35).Offset(1).Limit(2), []int{25, 30}},
			{"offset past end", q.Where("Age").AnyOf(20, 25).Offset(5), nil},
			{"limit 0", q.Where("Age").AnyOf(20, 25).Limit(0), nil},
			{"filter", q.Where("Age").AnyOf(20, 25, 30).FilterFunc(func(u *User) bool { return u.City == "Paris" }), []int{20, 30}},
			{"primary key", q.Where("ID").AnyOf(4, 1, 4), []int{20, 35}},
			{"unique index", q.Where("Email").AnyOf("dan@example.org", "bob@example.org", "nobody"), []int{25, 35}},
			{"unindexed", q.Where("City").AnyOf("Rome", "Paris"), []int{20, 30, 35}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rows, err := tt.q.All(ctx)
				noerr(t, err)
				deepEqual(t, ages(rows), tt.want)

				n, err := tt.q.Count(ctx)
				noerr(t, err)
				deepEqual(t, n, len(tt.want))
			})
		}
	})
}

func TestQuery_AnyOfNonUniqueDedup(t *testing.T) {
	db := setup(t, basicSchema)
	seedUsers(t, db)
	twin := &User{ID: 5, Name: "Ann", Email: "ann2@example.com", Age: 20}
	db.Write(func(tx *Tx) {
		Put(tx, twin)
	})
	ctx := context.Background()

	rows := must(From[User](db).Where("Name").AnyOf("Ann", "Dan", "Ann").All(ctx))
	deepEqual(t, userIDs(rows), []ID{1, 5, 4})

	rows = must(From[User](db).Where("Name").AnyOf("Ann", "Dan").Descending().All(ctx))
	deepEqual(t, userIDs(rows), []ID{4, 5, 1})

	rows = must(From[User](db).Where("Age").AnyOf(20).Offset(1).All(ctx))
	deepEqual(t, userIDs(rows), []ID{5})
}

func TestQuery_LimitZeroDoesNoWork(t *testing.T) {
	db := setupMem(t, basicSchema)
	seedUsers(t, db)
	ctx := context.Background()

	for _, q := range []Query[User]{
		From[User](db).Limit(0),
		From[User](db).Where("Age").AnyOf(20, 25).Limit(0),
	} {
		reads := db.ReadCount.Load()
		it := q.Iterate(ctx)
		deepEqual(t, it.Next(), false)
		deepEqual(t, it.Advances(), 0)
		deepEqual(t, it.State(), IterClosed)
		noerr(t, it.Err())
		it.Close()

		deepEqual(t, must(q.Count(ctx)), 0)
		isnil(t, must(q.First(ctx)))
		isempty(t, must(q.All(ctx)))
		deepEqual(t, db.ReadCount.Load(), reads)
	}
}

func TestQuery_Immutable(t *testing.T) {
	db := setupMem(t, basicSchema)
	seedUsers(t, db)
	ctx := context.Background()

	base := From[User](db).Where("Age").GreaterOrEqual(25)
	limited := base.Limit(1)
	desc := base.Descending()
	filtered := base.FilterFunc(func(u *User) bool { return u.Age != 30 })
	filtered2 := filtered.FilterFunc(func(u *User) bool { return u.Age != 35 })
	other := filtered.FilterFunc(func(u *User) bool { return u.Age != 25 })
	replaced := base.Where("Age").Equal(20)

	deepEqual(t, ages(must(base.All(ctx))), []int{25, 30, 35})
	deepEqual(t, ages(must(limited.All(ctx))), []int{25})
	deepEqual(t, ages(must(desc.All(ctx))), []int{35, 30, 25})
	deepEqual(t, ages(must(filtered.All(ctx))), []int{25, 35})
	deepEqual(t, ages(must(filtered2.All(ctx))), []int{25})
	deepEqual(t, ages(must(other.All(ctx))), []int{35})
	deepEqual(t, ages(must(replaced.All(ctx))), []int{20})

	// running a query does not consume it
	deepEqual(t, ages(must(base.All(ctx))), []int{25, 30, 35})
}

func TestQuery_OffsetLimit(t *testing.T) {
	backends(t, basicSchema, func(t *testing.T, db *DB) {
		seedUsers(t, db)
		ctx := context.Background()
		full := []int{20, 25, 30, 35}
		keep := func(u *User) bool { return true }

		for off := 0; off <= 5; off++ {
			for lim := -1; lim <= 5; lim++ {
				want := full[min(off, len(full)):]
				if lim >= 0 && lim < len(want) {
					want = want[:lim]
				}
				for _, q := range []Query[User]{
					From[User](db),
					From[User](db).FilterFunc(keep),
					From[User](db).Where("Age").AnyOf(35, 30, 25, 20),
				} {
					q = q.Offset(off)
					if lim >= 0 {
						q = q.Limit(lim)
					}
					rows := must(q.All(ctx))
					if !slices.Equal(ages(rows), want) {
						t.Errorf("** offset %d limit %d: got %v, wanted %v", off, lim, ages(rows), want)
					}
					if n := must(q.Count(ctx)); n != len(want) {
						t.Errorf("** offset %d limit %d: Count = %d, wanted %d", off, lim, n, len(want))
					}
					if n := len(must(q.Keys(ctx))); n != len(want) {
						t.Errorf("** offset %d limit %d: len(Keys) = %d, wanted %d", off, lim, n, len(want))
					}
				}
			}
		}
	})
}

func TestQuery_OffsetCountsOnlyMatches(t *testing.T) {
	db := setupMem(t, basicSchema)
	seedUsers(t, db)
	rows := must(From[User](db).
		FilterFunc(func(u *User) bool { return u.City == "Paris" || u.City == "Rome" }).
		Offset(1).
		All(context.Background()))
	deepEqual(t, ages(rows), []int{30, 35})
}

func TestQuery_PredicateShortCircuit(t *testing.T) {
	db := setupMem(t, basicSchema)
	seedUsers(t, db)

	var seen []int
	rows := must(From[User](db).
		FilterFunc(func(u *User) bool { return u.Age >= 30 }).
		FilterFunc(func(u *User) bool {
			seen = append(seen, u.Age)
			return true
		}).
		All(context.Background()))
	deepEqual(t, ages(rows), []int{30, 35})
	deepEqual(t, seen, []int{30, 35})
}

func TestQuery_Keys(t *testing.T) {
	backends(t, basicSchema, func(t *testing.T, db *DB) {
		seedUsers(t, db)
		ctx := context.Background()

		keys := must(From[User](db).Where("Age").GreaterThan(20).Keys(ctx))
		deepEqual(t, keys, []any{ID(2), ID(3), ID(4)})

		ids := must(KeysAs[ID](ctx, From[User](db).Where("City").Equal("Paris")))
		deepEqual(t, ids, []ID{1, 3})

		ids = must(KeysAs[ID](ctx, From[User](db).Where("Age").AnyOf(35, 25)))
		deepEqual(t, ids, []ID{2, 4})

		_, err := KeysAs[string](ctx, From[User](db))
		var ke *KeyError
		if !errors.As(err, &ke) {
			t.Errorf("** KeysAs[string] = %v, wanted *KeyError", err)
		}
	})
}

func TestQuery_First(t *testing.T) {
	db := setup(t, basicSchema)
	ctx := context.Background()

	u := must(From[User](db).First(ctx))
	isnil(t, u)

	seedUsers(t, db)
	deepEqual(t, must(From[User](db).First(ctx)), ann)
	deepEqual(t, must(From[User](db).Descending().First(ctx)), dan)
	deepEqual(t, must(From[User](db).Where("Age").GreaterThan(20).Offset(1).First(ctx)), cid)
	isnil(t, must(From[User](db).Where("Age").GreaterThan(40).First(ctx)))
}

func TestQuery_InTx(t *testing.T) {
	db := setup(t, basicSchema)
	seedUsers(t, db)
	ctx := context.Background()

	db.Write(func(tx *Tx) {
		Put(tx, &User{ID: 9, Name: "Eve", Email: "eve@example.com", Age: 40})
		rows := must(In[User](tx).Where("Age").GreaterThan(30).All(ctx))
		deepEqual(t, ages(rows), []int{35, 40})

		n := must(In[User](tx).Count(ctx))
		deepEqual(t, n, 5)
	})

	var it *Iterator[User]
	db.Read(func(tx *Tx) {
		it = In[User](tx).Iterate(ctx)
		deepEqual(t, it.Next(), true)
		it.Close()
		it = In[User](tx).Iterate(ctx)
	})
	deepEqual(t, it.Next(), false)
	if !errors.Is(it.Err(), errTxFinished) {
		t.Errorf("** got %v, wanted errTxFinished", it.Err())
	}
}

func TestQuery_Errors(t *testing.T) {
	db := setupMem(t, basicSchema)
	seedUsers(t, db)
	ctx := context.Background()

	_, err := From[User](db).Where("Nope").Equal(1).All(ctx)
	if !errors.Is(err, ErrUnknownField) {
		t.Errorf("** unknown field: got %v, wanted ErrUnknownField", err)
	}
	_, err = From[User](db).OrderBy("Nope").Count(ctx)
	if !errors.Is(err, ErrUnknownField) {
		t.Errorf("** unknown order: got %v, wanted ErrUnknownField", err)
	}
	_, err = From[User](db).OrderBy("City").All(ctx)
	if !errors.Is(err, ErrNotIndexed) {
		t.Errorf("** unindexed order: got %v, wanted ErrNotIndexed", err)
	}
	_, err = From[User](db).OrderBy("City").Explain()
	if !errors.Is(err, ErrNotIndexed) {
		t.Errorf("** unindexed order explain: got %v, wanted ErrNotIndexed", err)
	}
	n, err := From[User](db).Where("City").GreaterOrEqual("").Count(ctx)
	if err != nil || n != 4 {
		t.Errorf("** unindexed range: got %d, %v, wanted 4", n, err)
	}

	var re *RangeError
	_, err = From[User](db).Where("Age").Between(35, 25, BetweenOpts{}).All(ctx)
	if !errors.As(err, &re) {
		t.Errorf("** inverted range: got %v, wanted *RangeError", err)
	}
	_, err = From[User](db).Where("City").Between("Z", "A", BetweenOpts{}).Count(ctx)
	if !errors.As(err, &re) {
		t.Errorf("** inverted unindexed range: got %v, wanted *RangeError", err)
	}

	var ke *KeyError
	_, err = From[User](db).Where("Age").Equal(2.5).All(ctx)
	if !errors.As(err, &ke) {
		t.Errorf("** lossy bound: got %v, wanted *KeyError", err)
	}
	_, err = From[User](db).Where("Age").Equal("thirty").All(ctx)
	if !errors.As(err, &ke) {
		t.Errorf("** wrong bound type: got %v, wanted *KeyError", err)
	}
	_, err = From[User](db).Where("Age").HasPrefix("3").All(ctx)
	if !errors.As(err, &ke) {
		t.Errorf("** prefix on int: got %v, wanted *KeyError", err)
	}
	_, err = From[User](db).Where("Age").AnyOf(20, nil).All(ctx)
	if !errors.As(err, &ke) {
		t.Errorf("** nil value: got %v, wanted *KeyError", err)
	}
}

func TestQuery_PredicateErrors(t *testing.T) {
	db := setupMem(t, basicSchema)
	seedUsers(t, db)
	ctx := context.Background()
	errBad := errors.New("bad row")

	var pe *PredicateError
	_, err := From[User](db).
		FilterFunc(func(u *User) bool { return true }).
		FilterFunc(func(u *User) bool { panic("boom") }).
		All(ctx)
	if !errors.As(err, &pe) {
		t.Fatalf("** panic: got %v, wanted *PredicateError", err)
	}
	deepEqual(t, pe.Index, 1)
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("** got %q, wanted it to mention the panic", err.Error())
	}

	_, err = From[User](db).Filter(PredicateFunc[User](func(u *User) (bool, error) {
		if u.Age > 25 {
			return false, errBad
		}
		return true, nil
	})).All(ctx)
	if !errors.Is(err, errBad) || !errors.As(err, &pe) {
		t.Errorf("** got %v, wanted *PredicateError wrapping errBad", err)
	}

	_, err = From[User](db).Where("Age").AnyOf(20, 25).
		FilterFunc(func(u *User) bool { panic("fan") }).
		Count(ctx)
	if !errors.As(err, &pe) {
		t.Errorf("** fan-out panic: got %v, wanted *PredicateError", err)
	}
}

func TestQuery_BuilderPanics(t *testing.T) {
	db := setupMem(t, basicSchema)
	assertPanics(t, func() { From[User](db).Limit(-1) })
	assertPanics(t, func() { From[User](db).Offset(-1) })
	assertPanics(t, func() { From[User](db).FilterFunc(nil) })
	assertPanics(t, func() { From[User](db).Filter(PredicateFunc[User](nil)) })
	assertPanics(t, func() { From[User](db).Filter(nil) })
}

func TestIterator_FailsMidWalk(t *testing.T) {
	backends(t, basicSchema, func(t *testing.T, db *DB) {
		seedUsers(t, db)
		errBad := errors.New("bad row")
		var calls int
		q := From[User](db).Where("Age").GreaterOrEqual(0).Filter(PredicateFunc[User](func(u *User) (bool, error) {
			calls++
			if calls == 3 {
				return false, errBad
			}
			return true, nil
		}))

		it := q.Iterate(context.Background())
		defer it.Close()
		var got []*User
		for it.Next() {
			got = append(got, it.Row())
		}
		deepEqual(t, len(got), 2)
		deepEqual(t, it.State(), IterClosed)
		deepEqual(t, it.Next(), false)
		var pe *PredicateError
		if !errors.As(it.Err(), &pe) || !errors.Is(it.Err(), errBad) {
			t.Errorf("** got %v, wanted *PredicateError wrapping errBad", it.Err())
		}
		deepEqual(t, ages(got), []int{20, 25})
		deepEqual(t, got[0].Name, "Ann")
		deepEqual(t, got[1].Email, "bob@example.org")
		deepEqual(t, db.DescribeOpenTxns(), "NO OPEN TRANSACTIONS")

		calls = 0
		var seqRows []*User
		var seqErr error
		for u, err := range q.Seq(context.Background()) {
			if err != nil {
				seqErr = err
				break
			}
			seqRows = append(seqRows, u)
		}
		deepEqual(t, ages(seqRows), []int{20, 25})
		if !errors.As(seqErr, &pe) {
			t.Errorf("** Seq: got %v, wanted *PredicateError", seqErr)
		}
		deepEqual(t, db.DescribeOpenTxns(), "NO OPEN TRANSACTIONS")
	})
}

func TestQuery_AnyOfStatefulPredicate(t *testing.T) {
	db := must(OpenMemory(basicSchema, Options{IsTesting: true, FanOutLimit: 8}))
	defer db.Close()
	db.Write(func(tx *Tx) {
		for i := 1; i <= 400; i++ {
			Put(tx, &User{ID: ID(i), Name: fmt.Sprint("u", i), Email: fmt.Sprintf("u%d@example.com", i), Age: i % 10})
		}
	})

	var calls, seen int
	rows, err := From[User](db).Where("Age").AnyOf(0, 1, 2, 3, 4, 5, 6, 7, 8, 9).
		FilterFunc(func(u *User) bool {
			calls++
			seen += u.Age
			return u.Age%2 == 0
		}).All(context.Background())
	noerr(t, err)
	deepEqual(t, calls, 400)
	deepEqual(t, seen, 40*45)
	deepEqual(t, len(rows), 200)
	deepEqual(t, rows[0].Age, 0)
	deepEqual(t, rows[199].Age, 8)
}

func TestQuery_Context(t *testing.T) {
	db := setup(t, basicSchema)
	seedUsers(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := From[User](db).All(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("** got %v, wanted context.Canceled", err)
	}

	ctx, cancel = context.WithCancel(context.Background())
	it := From[User](db).Iterate(ctx)
	defer it.Close()
	deepEqual(t, it.Next(), true)
	cancel()
	deepEqual(t, it.Next(), false)
	if !errors.Is(it.Err(), context.Canceled) {
		t.Errorf("** got %v, wanted context.Canceled", it.Err())
	}
	deepEqual(t, it.State(), IterClosed)
	deepEqual(t, db.DescribeOpenTxns(), "NO OPEN TRANSACTIONS")
}

func TestQuery_ClosedDB(t *testing.T) {
	db := setupMem(t, basicSchema)
	seedUsers(t, db)
	q := From[User](db).Where("Age").GreaterThan(20)
	noerr(t, db.Close())

	_, err := q.All(context.Background())
	if !errors.Is(err, ErrClosed) {
		t.Errorf("** All: got %v, wanted ErrClosed", err)
	}
	_, err = q.Count(context.Background())
	if !errors.Is(err, ErrClosed) {
		t.Errorf("** Count: got %v, wanted ErrClosed", err)
	}
}

func TestIterator_EarlyTermination(t *testing.T) {
	backends(t, basicSchema, func(t *testing.T, db *DB) {
		db.Write(func(tx *Tx) {
			for i := 1; i <= 100; i++ {
				Put(tx, &User{ID: ID(i), Name: fmt.Sprint("u", i), Email: fmt.Sprintf("u%d@example.com", i), Age: i})
			}
		})
		ctx := context.Background()

		it := From[User](db).Iterate(ctx)
		deepEqual(t, it.State(), IterIdle)
		for range 3 {
			deepEqual(t, it.Next(), true)
			deepEqual(t, it.State(), IterYielding)
		}
		deepEqual(t, it.Key(), any(ID(3)))
		it.Close()
		deepEqual(t, it.State(), IterClosed)
		deepEqual(t, it.Advances(), 3)
		deepEqual(t, it.Next(), false)

		it = From[User](db).Where("Age").GreaterThan(10).Limit(5).Iterate(ctx)
		var n int
		for it.Next() {
			n++
		}
		noerr(t, it.Err())
		deepEqual(t, n, 5)
		deepEqual(t, it.Advances(), 5)

		var seen []int
		for u, err := range From[User](db).Where("Age").GreaterOrEqual(50).Seq(ctx) {
			noerr(t, err)
			seen = append(seen, u.Age)
			if len(seen) == 2 {
				break
			}
		}
		deepEqual(t, seen, []int{50, 51})
		deepEqual(t, db.DescribeOpenTxns(), "NO OPEN TRANSACTIONS")

		// the count fast path does not walk the range
		deepEqual(t, must(From[User](db).Where("Age").Between(10, 59, BetweenOpts{}).Offset(5).Limit(100).Count(ctx)), 45)
	})
}

func TestQuery_Explain(t *testing.T) {
	db := setupMem(t, basicSchema)
	tests := []struct {
		q    Query[User]
		want string
	}{
		{From[User](db), "Users: primary ID"},
		{From[User](db).Where("Age").Equal(5), "Users: index Age, range ["},
		{From[User](db).Where("Age").AnyOf(1, 2), "Users: index Age, 2 lookups"},
		{From[User](db).Where("City").Equal("X"), "Users: full scan"},
		{From[User](db).Descending().Limit(3), "descending"},
		{From[User](db).Limit(3), "limit 3"},
		{From[User](db).Where("City").Equal("X"), "filter City"},
	}
	for _, tt := range tests {
		s := must(tt.q.Explain())
		if !strings.Contains(s, tt.want) {
			t.Errorf("** Explain = %q, wanted it to contain %q", s, tt.want)
		}
	}
}
