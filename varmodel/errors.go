package varmodel

import "errors"

var (
	// ErrUnknownKind indicates a value kind byte outside the 0-4 range
	// defined by the wire protocol (bool, byte, word, dword, float).
	ErrUnknownKind = errors.New("varmodel: unknown value kind")

	// ErrEmptyGroup indicates an identifier was constructed with an empty
	// group tag.
	ErrEmptyGroup = errors.New("varmodel: empty group")

	// ErrEmptyName indicates an identifier was constructed with an empty
	// variable name.
	ErrEmptyName = errors.New("varmodel: empty name")
)
