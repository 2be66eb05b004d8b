package editor

import "errors"

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// session's current state.
	ErrInvalidState  = errors.New("editor: operation not allowed in current state")
	ErrUnknownNode   = errors.New("editor: unknown or detached node")
	ErrNotEditable   = errors.New("editor: node is not an editable text container")
	ErrNotImage      = errors.New("editor: node is not an image")
	ErrNoReplaceFlow = errors.New("editor: no replace flow is open")
	ErrNoUploader    = errors.New("editor: no uploader configured")
)
