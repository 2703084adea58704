package environ

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

var ErrUndefined = errors.New("undefined identifier")

// Environ is a lexical scope. Lookups that fail locally are delegated to the
// enclosing scope.
type Environ[T any] interface {
	Resolve(string) (T, error)
	Define(string, T)
	Names() []string
	Len() int
}

type Env[T any] struct {
	values map[string]T
	parent Environ[T]
}

func Empty[T any]() Environ[T] {
	return Enclosed[T](nil)
}

func Enclosed[T any](parent Environ[T]) Environ[T] {
	e := Env[T]{
		values: make(map[string]T),
		parent: parent,
	}
	return &e
}

// Unwrap returns the scope enclosing env, or env itself at the top.
func Unwrap[T any](env Environ[T]) Environ[T] {
	u, ok := env.(interface{ Parent() Environ[T] })
	if !ok {
		return env
	}
	if p := u.Parent(); p != nil {
		return p
	}
	return env
}

// Visible lists every name reachable from env, innermost first, without
// duplicates.
func Visible[T any](env Environ[T]) []string {
	var (
		seen = make(map[string]struct{})
		list []string
	)
	for env != nil {
		names := env.Names()
		slices.Sort(names)
		for _, n := range names {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			list = append(list, n)
		}
		u, ok := env.(interface{ Parent() Environ[T] })
		if !ok {
			break
		}
		env = u.Parent()
	}
	return list
}

func (e *Env[T]) Len() int {
	return len(e.values)
}

func (e *Env[T]) Names() []string {
	return slices.Collect(maps.Keys(e.values))
}

func (e *Env[T]) Define(ident string, value T) {
	e.values[ident] = value
}

func (e *Env[T]) Resolve(ident string) (T, error) {
	value, ok := e.values[ident]
	if ok {
		return value, nil
	}
	if e.parent != nil {
		return e.parent.Resolve(ident)
	}
	var t T
	return t, fmt.Errorf("%s: %w", ident, ErrUndefined)
}

// Local reports whether ident is defined in this scope, ignoring parents.
func (e *Env[T]) Local(ident string) bool {
	_, ok := e.values[ident]
	return ok
}

func (e *Env[T]) Parent() Environ[T] {
	return e.parent
}

func (e *Env[T]) Clone() Environ[T] {
	x := Env[T]{
		values: maps.Clone(e.values),
	}
	if c, ok := e.parent.(interface{ Clone() Environ[T] }); ok {
		x.parent = c.Clone()
	}
	return &x
}
