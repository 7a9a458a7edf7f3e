package runnable

import (
	"reflect"
)

var runnableType = reflect.TypeFor[Runnable]()

// Coerce turns a unit into a Runnable:
//
//   - a Runnable is returned as is,
//   - functions of any shape NewLambda accepts, and LambdaPair, become a Lambda,
//   - maps keyed by string holding units become a Parallel,
//   - nil is a CompositionError,
//   - any other value becomes a Constant.
//
// A map holds units when its values are map[string]any, Runnables, functions
// or interfaces; map[string]Runnable and map[string]func(any) any both become
// a Parallel while map[string]int stays a Constant. Functions of any other
// shape are a CompositionError rather than constants. Lambdas built here are
// named "lambda"; use NewLambda to name them.
func Coerce(unit any) (Runnable, error) {
	switch u := unit.(type) {
	case nil:
		return nil, compositionErr("coerce", "nil unit")
	case Runnable:
		return u, nil
	case map[string]any:
		return NewParallel(u)
	}
	if branches, ok := unitMap(unit); ok {
		return NewParallel(branches)
	}
	var fn Lambda
	if fn.setFunc(unit) || reflect.TypeOf(unit).Kind() == reflect.Func {
		return NewLambda("lambda", unit)
	}
	return NewConstant(unit), nil
}

// unitMap copies a string-keyed map whose element type can hold units into
// Parallel branches.
func unitMap(unit any) (map[string]any, bool) {
	v := reflect.ValueOf(unit)
	t := v.Type()
	if t.Kind() != reflect.Map || t.Key().Kind() != reflect.String {
		return nil, false
	}
	elem := t.Elem()
	if !elem.Implements(runnableType) && elem.Kind() != reflect.Func && elem.Kind() != reflect.Interface {
		return nil, false
	}
	branches := make(map[string]any, v.Len())
	for it := v.MapRange(); it.Next(); {
		branches[it.Key().String()] = it.Value().Interface()
	}
	return branches, true
}

// MustCoerce is like Coerce but panics on error.
func MustCoerce(unit any) Runnable {
	r, err := Coerce(unit)
	if err != nil {
		panic(err)
	}
	return r
}
