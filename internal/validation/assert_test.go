package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeStore interface{ Name() string }

type memStore struct{}

func (*memStore) Name() string { return "mem" }

func TestAssertNotNil(t *testing.T) {
	t.Parallel()

	t.Run("Should panic on nil pointer", func(t *testing.T) {
		var p *int
		assert.PanicsWithValue(t, "critical error: pool cannot be nil", func() { AssertNotNil(p, "pool") })
	})

	t.Run("Should not panic on valid pointer", func(t *testing.T) {
		v := 1
		assert.NotPanics(t, func() { AssertNotNil(&v, "value") })
	})
}

func TestAssertNotNilInterface(t *testing.T) {
	t.Parallel()

	var typedNil *memStore
	var nilIface fakeStore

	tests := []struct {
		name      string
		dep       any
		wantPanic bool
	}{
		{"Should panic on untyped nil", nilIface, true},
		{"Should panic on typed nil behind interface", fakeStore(typedNil), true},
		{"Should panic on nil func", (func())(nil), true},
		{"Should accept a concrete implementation", fakeStore(&memStore{}), false},
		{"Should accept a non-pointer value", 0.9, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fn := func() { AssertNotNilInterface(tt.dep, "store") }
			if tt.wantPanic {
				assert.Panics(t, fn)
			} else {
				assert.NotPanics(t, fn)
			}
		})
	}
}
