package service

import "errors"

// ErrInvalidParameter marks malformed or out-of-range search input (bad
// coordinates, non-positive radius, bad paging). Surfaced to the caller as a
// client error and never retried.
var ErrInvalidParameter = errors.New("invalid parameter")
