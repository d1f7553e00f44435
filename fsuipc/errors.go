package fsuipc

import "errors"

var (
	// ErrAdapterUnavailable is returned by NullAdapter for every
	// operation, standing in for a real simulator-memory adapter that is
	// out of scope for this core.
	ErrAdapterUnavailable = errors.New("fsuipc: offset adapter unavailable")

	// ErrInvalidOffsetAddress indicates an address outside the valid
	// range (0x0000, 0xCCCC), exclusive at both ends per spec.
	ErrInvalidOffsetAddress = errors.New("fsuipc: offset address out of range")

	// ErrInvalidOffsetLength indicates a length outside {1, 2, 4}.
	ErrInvalidOffsetLength = errors.New("fsuipc: offset length must be 1, 2, or 4")

	// ErrMalformedTopic indicates a bus topic did not match the
	// fsuipc/offsets/<hex_addr>:<length> format.
	ErrMalformedTopic = errors.New("fsuipc: malformed offset topic")

	// ErrMalformedPayload indicates a bus payload was shorter than its
	// two-byte header plus its offset's declared width.
	ErrMalformedPayload = errors.New("fsuipc: malformed offset payload")
)
