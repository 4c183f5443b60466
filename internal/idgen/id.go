// Package idgen mints the opaque 128-bit identifiers used across every
// entity (§3).
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is an opaque 128-bit identifier. It is a distinct type (not a bare
// string) so entity ids can't be mixed up with arbitrary strings at compile
// time, while still marshaling as a plain string on the wire.
type ID [16]byte

// Nil is the zero ID, used to represent "no reference" alongside Go's
// pointer-based optionality where a value type is more convenient.
var Nil ID

// New mints a fresh random ID.
func New() ID {
	return ID(uuid.New())
}

// Parse decodes a canonical UUID string into an ID.
func Parse(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Nil, err
	}
	return ID(u), nil
}

// MustParse is Parse but panics on error; only safe for constants in tests.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

func (id ID) IsNil() bool {
	return id == Nil
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value implements database/sql/driver.Valuer so an ID can be written
// straight into a lib/pq query argument.
func (id ID) Value() (interface{}, error) {
	if id.IsNil() {
		return nil, nil
	}
	return id.String(), nil
}

// Scan implements sql.Scanner so an ID can be read straight out of a
// postgres uuid column.
func (id *ID) Scan(src interface{}) error {
	if src == nil {
		*id = Nil
		return nil
	}
	switch v := src.(type) {
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	case []byte:
		parsed, err := Parse(string(v))
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	default:
		return fmt.Errorf("idgen: cannot scan %T into ID", src)
	}
}
