// Package validation provides helpers for contract enforcement in constructors.
package validation

import (
	"fmt"
	"reflect"
)

// AssertNotNil panics if the provided pointer is nil.
// It is intended for constructors where dependencies are mandatory.
//
// Usage:
//
//	validation.AssertNotNil(pool, "database pool")
func AssertNotNil[T any](ptr *T, name string) {
	if ptr == nil {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
}

// AssertNotNilInterface panics if dep is nil or a typed nil hidden behind an interface.
// Services receive their collaborators as interfaces (Store, Drawer, Generator),
// which AssertNotNil cannot check.
//
//	validation.AssertNotNilInterface(repo, "customer repository")
func AssertNotNilInterface(dep any, name string) {
	if dep == nil {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
	v := reflect.ValueOf(dep)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		if v.IsNil() {
			panic(fmt.Sprintf("critical error: %s cannot be nil", name))
		}
	}
}

// Panics here signal programmer error (misconfiguration), never runtime failure.
