// Package result holds a small tagged result type for operations whose
// failure is acceptable and replaced by a fallback value.
package result

import "github.com/rotisserie/eris"

// ErrNoCause stands in for the cause of a failure built from a nil error.
var ErrNoCause = eris.New("failed without a cause")

// Result is either Ok(value) or Err(cause), never both.
type Result[T any] struct {
	value T
	err   error
	ok    bool
}

func Ok[T any](value T) Result[T] {
	return Result[T]{value: value, ok: true}
}

// Err builds a failed result. A nil cause is still a failure and is
// reported as ErrNoCause.
func Err[T any](err error) Result[T] {
	if err == nil {
		err = ErrNoCause
	}
	return Result[T]{err: err}
}

// Try runs fn and captures its outcome.
func Try[T any](fn func() (T, error)) Result[T] {
	v, err := fn()
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

// Do runs fn for its side effect only.
func Do(fn func() error) Result[struct{}] {
	return Try(func() (struct{}, error) {
		return struct{}{}, fn()
	})
}

func (r Result[T]) IsOk() bool {
	return r.ok
}

// Err returns the failure cause, or nil for Ok.
func (r Result[T]) Err() error {
	return r.err
}

func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}

// ValueOr returns the value for Ok and def otherwise.
func (r Result[T]) ValueOr(def T) T {
	if r.ok {
		return r.value
	}
	return def
}
