package wire

import "errors"

var (
	ErrBadMagic        = errors.New("wire: invalid magic")
	ErrBadVersion      = errors.New("wire: unsupported version")
	ErrUnknownType     = errors.New("wire: unknown message type")
	ErrTruncated       = errors.New("wire: truncated data")
	ErrPayloadTooLarge = errors.New("wire: payload too large")
	ErrShortPayload    = errors.New("wire: payload shorter than message layout")
)
