package main

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/andreyvit/edbq"
	"github.com/andreyvit/edbq/celpred"
	"github.com/andreyvit/edbq/internal/people"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type queryOptions struct {
	*rootOptions
	where     string
	orderBy   string
	eq        string
	gt, ge    string
	lt, le    string
	between   string
	lowerOpen bool
	upperOpen bool
	prefix    string
	anyOf     []string
	filter    string
	desc      bool
	limit     int
	offset    int
	count     bool
	keys      bool
	explain   bool
}

func newQueryCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &queryOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Find people",
		Long: `Find people by a range or a set of values of one field, then filter
the results with a CEL expression over row (the person's fields) and key.

Examples:
  edbq query --where Age --between 25,35 --lower-open
  edbq query --where City --any-of Paris,Rome --desc --limit 10
  edbq query --where Email --prefix ann --keys
  edbq query --filter 'row.age >= 30 && row.city == "Paris"' --count`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.open()
			if err != nil {
				return err
			}
			defer closeDB(db)

			q, err := opts.build(db)
			if err != nil {
				return err
			}
			return opts.run(cmd, q)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.where, "where", "", "field or index to select on")
	f.StringVar(&opts.orderBy, "order-by", "", "indexed field or index to walk in order, without a range")
	f.StringVar(&opts.eq, "eq", "", "equal to")
	f.StringVar(&opts.gt, "gt", "", "greater than")
	f.StringVar(&opts.ge, "ge", "", "greater than or equal to")
	f.StringVar(&opts.lt, "lt", "", "less than")
	f.StringVar(&opts.le, "le", "", "less than or equal to")
	f.StringVar(&opts.between, "between", "", "lo,hi (inclusive unless --lower-open/--upper-open)")
	f.BoolVar(&opts.lowerOpen, "lower-open", false, "exclude the lower bound of --between")
	f.BoolVar(&opts.upperOpen, "upper-open", false, "exclude the upper bound of --between")
	f.StringVar(&opts.prefix, "prefix", "", "string prefix")
	f.StringSliceVar(&opts.anyOf, "any-of", nil, "comma-separated values")
	f.StringVar(&opts.filter, "filter", "", "CEL expression every result must satisfy")
	f.BoolVar(&opts.desc, "desc", false, "descending order")
	f.IntVar(&opts.limit, "limit", -1, "maximum number of results")
	f.IntVar(&opts.offset, "offset", 0, "number of results to skip")
	f.BoolVar(&opts.count, "count", false, "print the number of results")
	f.BoolVar(&opts.keys, "keys", false, "print primary keys only")
	f.BoolVar(&opts.explain, "explain", false, "print the query plan instead of running it")
	cmd.MarkFlagsMutuallyExclusive("count", "keys", "explain")
	cmd.MarkFlagsMutuallyExclusive("where", "order-by")
	return cmd
}

func (opts *queryOptions) build(db *edbq.DB) (edbq.Query[people.Person], error) {
	q := edbq.From[people.Person](db)
	if opts.orderBy != "" {
		q = q.OrderBy(opts.orderBy)
	}
	if opts.where != "" {
		var err error
		q, err = opts.applyWhere(q)
		if err != nil {
			return q, err
		}
	} else if opts.hasCondition() {
		return q, errors.New("a condition needs --where")
	}
	if opts.filter != "" {
		prog, err := celpred.Compile(opts.filter)
		if err != nil {
			return q, err
		}
		q = q.Filter(celpred.For[people.Person](prog, people.People))
	}
	if opts.desc {
		q = q.Descending()
	}
	if opts.limit < -1 || opts.offset < 0 {
		return q, errors.New("--limit and --offset must not be negative")
	}
	if opts.limit >= 0 {
		q = q.Limit(opts.limit)
	}
	return q.Offset(opts.offset), nil
}

func (opts *queryOptions) hasCondition() bool {
	return opts.eq != "" || opts.gt != "" || opts.ge != "" || opts.lt != "" || opts.le != "" ||
		opts.between != "" || opts.prefix != "" || len(opts.anyOf) > 0
}

func (opts *queryOptions) applyWhere(q edbq.Query[people.Person]) (edbq.Query[people.Person], error) {
	typ, err := people.People.FieldType(opts.where)
	if err != nil {
		return q, err
	}
	parse := func(s string) (any, error) {
		return parseValue(s, typ)
	}
	w := q.Where(opts.where)

	switch {
	case opts.eq != "":
		v, err := parse(opts.eq)
		if err != nil {
			return q, err
		}
		return w.Equal(v), nil

	case opts.prefix != "":
		return w.HasPrefix(opts.prefix), nil

	case len(opts.anyOf) > 0:
		values := make([]any, len(opts.anyOf))
		for i, s := range opts.anyOf {
			if values[i], err = parse(s); err != nil {
				return q, err
			}
		}
		return w.AnyOf(values...), nil

	case opts.between != "":
		lo, hi, ok := strings.Cut(opts.between, ",")
		if !ok {
			return q, fmt.Errorf("--between wants lo,hi, got %q", opts.between)
		}
		lov, err := parse(lo)
		if err != nil {
			return q, err
		}
		hiv, err := parse(hi)
		if err != nil {
			return q, err
		}
		return w.Between(lov, hiv, edbq.BetweenOpts{LowerOpen: opts.lowerOpen, UpperOpen: opts.upperOpen}), nil
	}

	lower, lowerOpen := opts.ge, false
	if opts.gt != "" {
		lower, lowerOpen = opts.gt, true
	}
	upper, upperOpen := opts.le, false
	if opts.lt != "" {
		upper, upperOpen = opts.lt, true
	}
	var lov, hiv any
	if lower != "" {
		if lov, err = parse(lower); err != nil {
			return q, err
		}
	}
	if upper != "" {
		if hiv, err = parse(upper); err != nil {
			return q, err
		}
	}
	switch {
	case lower != "" && upper != "":
		return w.Between(lov, hiv, edbq.BetweenOpts{LowerOpen: lowerOpen, UpperOpen: upperOpen}), nil
	case lower != "" && lowerOpen:
		return w.GreaterThan(lov), nil
	case lower != "":
		return w.GreaterOrEqual(lov), nil
	case upper != "" && upperOpen:
		return w.LessThan(hiv), nil
	case upper != "":
		return w.LessOrEqual(hiv), nil
	default:
		// walk in the order of the field
		return q.OrderBy(opts.where), nil
	}
}

// parseValue converts a command-line value to typ using YAML scalar rules,
// so numbers, booleans and RFC 3339 timestamps parse naturally.
func parseValue(s string, typ reflect.Type) (any, error) {
	if typ.Kind() == reflect.String {
		return reflect.ValueOf(s).Convert(typ).Interface(), nil
	}
	ptr := reflect.New(typ)
	if err := yaml.Unmarshal([]byte(s), ptr.Interface()); err != nil {
		return nil, fmt.Errorf("invalid %v value %q: %w", typ, s, err)
	}
	return ptr.Elem().Interface(), nil
}

func (opts *queryOptions) run(cmd *cobra.Command, q edbq.Query[people.Person]) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()
	switch {
	case opts.explain:
		s, err := q.Explain()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, s)
		return nil
	case opts.count:
		n, err := q.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, n)
		return nil
	case opts.keys:
		keys, err := edbq.KeysAs[uint64](ctx, q)
		if err != nil {
			return err
		}
		return writeOutput(w, opts.format(), keys)
	default:
		rows, err := q.All(ctx)
		if err != nil {
			return err
		}
		return writeOutput(w, opts.format(), rows)
	}
}
