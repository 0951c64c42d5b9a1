// Package assert holds invariant checks that panic. They guard values the
// program generates itself, never user input.
package assert

import (
	"fmt"
)

// Length panics unless value is exactly expected bytes long
func Length(value string, expected int) {
	if len(value) != expected {
		panic(fmt.Sprintf("assert.Length: expected %d bytes, got %d (%q)", expected, len(value), value))
	}
}
