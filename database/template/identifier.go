package template

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidIdentifier is returned for text that is not a safe SQL identifier.
var ErrInvalidIdentifier = errors.New("invalid SQL identifier")

var validIdentifier = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Identifier is an SQL identifier (table, column, schema name) which is
// spliced verbatim into generated SQL. Identifiers are restricted to a
// letter followed by letters, digits or underscores.
type Identifier struct {
	name string
}

// NewIdentifier validates name and wraps it as an Identifier.
func NewIdentifier(name string) (Identifier, error) {
	if !IsValidIdentifier(name) {
		return Identifier{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return Identifier{name: name}, nil
}

// MustIdentifier is like NewIdentifier but panics on invalid input.
// Intended for package level constants.
func MustIdentifier(name string) Identifier {
	id, err := NewIdentifier(name)
	if err != nil {
		panic(err)
	}
	return id
}

// IsValidIdentifier reports whether text can be used as an Identifier.
func IsValidIdentifier(text string) bool {
	return validIdentifier.MatchString(text)
}

// Name returns the identifier text.
func (i Identifier) Name() string {
	return i.name
}

func (i Identifier) String() string {
	return i.name
}
