// Package stream provides the pull-based stream contract used by nrpc bindings
// and a few primitive streams for the cases that show up in every call.
package stream

import (
	"errors"
	"io"
	"iter"
)

// Stream is a single-consumer, pull-based sequence of values.
// Recv returns io.EOF once the stream is exhausted. Any other error is a
// failure result for that position. After io.EOF or a failure, Recv keeps
// returning the same terminal result.
type Stream[T any] interface {
	Recv() (T, error)
}

// Sizer is implemented by streams that know how many items remain.
type Sizer interface {
	// SizeHint returns lower and upper bounds on the remaining items.
	// upper is -1 when unknown.
	SizeHint() (lower, upper int)
}

// SizeHint reports the remaining items of s, or (0, -1) when s cannot tell.
func SizeHint[T any](s Stream[T]) (lower, upper int) {
	if sz, ok := s.(Sizer); ok {
		return sz.SizeHint()
	}
	return 0, -1
}

type empty[T any] struct{}

// Empty returns a stream that yields nothing. It holds no state, so it can be
// pulled any number of times and always ends immediately.
func Empty[T any]() Stream[T] { return empty[T]{} }

func (empty[T]) Recv() (T, error) {
	var zero T
	return zero, io.EOF
}

func (empty[T]) SizeHint() (int, int) { return 0, 0 }

type once[T any] struct {
	item T
	done bool
}

// Once returns a stream that yields v and then ends.
func Once[T any](v T) Stream[T] { return &once[T]{item: v} }

func (o *once[T]) Recv() (T, error) {
	if o.done {
		var zero T
		return zero, io.EOF
	}
	o.done = true
	v := o.item
	var zero T
	o.item = zero
	return v, nil
}

func (o *once[T]) SizeHint() (int, int) {
	if o.done {
		return 0, 0
	}
	return 1, 1
}

type slice[T any] struct {
	items []T
	pos   int
}

// FromSlice returns a stream over items in order. The slice is not copied
// and must not be modified while the stream is in use.
func FromSlice[T any](items []T) Stream[T] { return &slice[T]{items: items} }

func (s *slice[T]) Recv() (T, error) {
	if s.pos >= len(s.items) {
		var zero T
		return zero, io.EOF
	}
	v := s.items[s.pos]
	s.pos++
	return v, nil
}

func (s *slice[T]) SizeHint() (int, int) {
	n := len(s.items) - s.pos
	return n, n
}

// Func adapts a producer function into a Stream. fn returns io.EOF to end
// the stream. fn is not called again after it returns an error.
func Func[T any](fn func() (T, error)) Stream[T] { return &funcStream[T]{fn: fn} }

type funcStream[T any] struct {
	fn  func() (T, error)
	err error
}

func (f *funcStream[T]) Recv() (T, error) {
	if f.err != nil {
		var zero T
		return zero, f.err
	}
	v, err := f.fn()
	if err != nil {
		f.err = err
		var zero T
		return zero, err
	}
	return v, nil
}

// Map returns a stream applying fn to each item of s as it is pulled.
// Nothing is read from s until the result is pulled. The first failure,
// whether from s or from fn, terminates the result stream.
func Map[A, B any](s Stream[A], fn func(int, A) (B, error)) Stream[B] {
	return &mapped[A, B]{src: s, fn: fn}
}

type mapped[A, B any] struct {
	src Stream[A]
	fn  func(int, A) (B, error)
	pos int
	err error
}

func (m *mapped[A, B]) Recv() (B, error) {
	var zero B
	if m.err != nil {
		return zero, m.err
	}
	a, err := m.src.Recv()
	if err != nil {
		m.err = err
		return zero, err
	}
	b, err := m.fn(m.pos, a)
	m.pos++
	if err != nil {
		m.err = err
		return zero, err
	}
	return b, nil
}

func (m *mapped[A, B]) SizeHint() (int, int) {
	if m.err != nil {
		return 0, 0
	}
	return SizeHint(m.src)
}

// Collect drains s into a slice. It stops at the first failure and returns
// the items read so far along with the error.
func Collect[T any](s Stream[T]) ([]T, error) {
	var out []T
	if lower, _ := SizeHint(s); lower > 0 {
		out = make([]T, 0, lower)
	}
	for {
		v, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}

// All adapts s for use with range. Iteration stops after the first failure,
// which is yielded with a zero value. io.EOF is not yielded.
func All[T any](s Stream[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, err := s.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(v, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}
