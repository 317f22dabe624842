package db

import "errors"

// ErrNotFound is returned instead of sql.ErrNoRows by single-row getters.
var ErrNotFound = errors.New("not found")
