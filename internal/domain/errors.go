package domain

import "errors"

var ErrNotFound = errors.New("not found")
var ErrAlreadyExists = errors.New("already exists")

// ErrInvalidState is returned when an operation targets a record that is not
// in a state the operation is allowed to act on.
var ErrInvalidState = errors.New("invalid state")

// ErrNotSameRoom is returned when two devices involved in a transfer are not
// co-members of a room at request time.
var ErrNotSameRoom = errors.New("devices are not in the same room")

// ErrGenerationExhausted is returned when a fresh room code could not be
// generated after a bounded number of attempts.
var ErrGenerationExhausted = errors.New("room code space exhausted")
