package repository

import "errors"

// ErrInvalidStatusTransition means the booking status machine rejected a move.
// This is a programming error when it escapes; handlers map it to 500.
var ErrInvalidStatusTransition = errors.New("INVALID_STATUS_TRANSITION")
