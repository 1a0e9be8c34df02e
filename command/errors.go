package command

import "errors"

var (
	// ErrUnknownCommand is returned by Parse for an unrecognized verb.
	ErrUnknownCommand = errors.New("command: unknown command")

	// ErrMissingAddress is returned by Parse when connect has no target.
	ErrMissingAddress = errors.New("command: missing address")

	// ErrInvalidAddress is returned by Parse when the target is not an IPv4 address.
	ErrInvalidAddress = errors.New("command: invalid address")
)
