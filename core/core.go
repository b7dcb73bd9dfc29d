package core

import "github.com/google/uuid"

// NewID generates a new unique identifier.
//
// This function creates a UUID-based unique identifier used for fencing
// tokens, conversation ids and any other correlation handle minted by the
// simulation core.
//
// Returns a string representation of a new UUID.
func NewID() string { return uuid.NewString() }
