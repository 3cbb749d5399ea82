package models

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID is the opaque identifier shared by every aggregate and child entity.
type ID string

// NewID generates a random identifier rendered as 32 hex characters.
func NewID() ID {
	u := uuid.New()
	return ID(hex.EncodeToString(u[:]))
}

// ParseID builds an ID from text. Empty input is rejected.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: identifier must not be empty", ErrInvalidIdentifier)
	}
	return ID(s), nil
}

// String implements fmt.Stringer.
func (id ID) String() string { return string(id) }

// IsZero reports whether the ID is empty.
func (id ID) IsZero() bool { return id == "" }
