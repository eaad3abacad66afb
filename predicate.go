package edbq

import (
	"fmt"
	"reflect"
)

// Predicate is a post-scan condition evaluated against a fully decoded row.
// Predicates run in the order they were added and must not modify the row.
// Predicates are always called from the goroutine running the query.
type Predicate[Row any] interface {
	Match(row *Row) (bool, error)
}

// PredicateFunc adapts a function to Predicate.
type PredicateFunc[Row any] func(row *Row) (bool, error)

func (f PredicateFunc[Row]) Match(row *Row) (bool, error) {
	return f(row)
}

type boolPredicate[Row any] func(row *Row) bool

func (f boolPredicate[Row]) Match(row *Row) (bool, error) {
	return f(row), nil
}

// residualFunc is a range or value set that could not be mapped onto an
// index, evaluated against rowVal before any predicate.
type residualFunc func(rowVal reflect.Value) bool

// evalPredicates reports whether row passes every predicate, stopping at the
// first one that fails.
func evalPredicates[Row any](preds []Predicate[Row], row *Row) (bool, error) {
	for i, p := range preds {
		ok, err := safeMatch(i, p, row)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func safeMatch[Row any](i int, p Predicate[Row], row *Row) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, &PredicateError{Index: i, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	ok, err = p.Match(row)
	if err != nil {
		return false, &PredicateError{Index: i, Err: err}
	}
	return ok, nil
}
