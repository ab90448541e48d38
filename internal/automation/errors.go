package automation

import "errors"

var (
	// ErrConfiguration marks a malformed or incomplete trigger/action spec.
	ErrConfiguration = errors.New("configuration error")

	// ErrCollaboratorUnavailable marks a missing device or a disconnected message bus.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)
