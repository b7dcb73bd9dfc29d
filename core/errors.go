package core

import "errors"

var (
	// ErrNotFound is returned when a referenced agent, player, conversation
	// or generation-service resource does not exist. For world-state lookups
	// it aborts the current tick's action; for a consolidation delete it is
	// the signal that the other participant already claimed the transcript.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned by generation-service creation calls when
	// the resource is already present. Callers treat it as success so that
	// provisioning stays idempotent under retry.
	ErrAlreadyExists = errors.New("already exists")

	// ErrStaleOperation is returned when a completion carries an operation id
	// that no longer matches the agent's in-progress operation. The completion
	// is dropped without mutating state.
	ErrStaleOperation = errors.New("stale operation")

	// ErrConversationEnded is returned when a lifecycle call targets a
	// conversation that has already reached its terminal state.
	ErrConversationEnded = errors.New("conversation ended")
)
