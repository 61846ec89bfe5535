// Package uuid wraps google/uuid behind a small domain identifier type.
package uuid

import (
	"github.com/google/uuid"
)

// UUID is the identifier type used across all aggregates.
type UUID string

// NewUUID generates a new random UUID.
func NewUUID() UUID {
	return UUID(uuid.New().String())
}

// ParseUUID validates s and returns it as a UUID.
func ParseUUID(s string) (UUID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return UUID(s), nil
}

// MustParseUUID parses s or panics. Intended for tests and static fixtures.
func MustParseUUID(s string) UUID {
	id, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical string form.
func (u UUID) String() string {
	return string(u)
}

// IsZero reports whether the UUID is unset.
func (u UUID) IsZero() bool {
	return u == ""
}
