package stcdetail

import (
	"fmt"
	"strings"
)

// An error type that groups together a bunch of errors and renders
// them separated by newlines.
type Errors []error

func (errs Errors) Error() string {
	out := strings.Builder{}
	for i := range errs {
		fmt.Fprintln(&out, errs[i].Error())
	}
	return strings.TrimRight(out.String(), "\r\n")
}

// Gather runs fn(0) through fn(n-1) concurrently and returns the
// results in index order.  If any call fails, the returned error is
// an Errors holding every failure, each tagged with its index, and
// the results are nil.
func Gather[T any](n int, fn func(i int) (T, error)) ([]T, error) {
	type result struct {
		val T
		err error
	}
	jobs := make([]chan result, n)
	for i := range jobs {
		c := make(chan result, 1)
		jobs[i] = c
		go func(i int) {
			v, err := fn(i)
			c <- result{v, err}
		}(i)
	}
	ret := make([]T, n)
	var errs Errors
	for i := range jobs {
		r := <-jobs[i]
		if r.err != nil {
			errs = append(errs, fmt.Errorf("%d: %w", i, r.err))
		}
		ret[i] = r.val
	}
	if errs != nil {
		return nil, errs
	}
	return ret, nil
}
