package database

import "errors"

// ErrNotFound is returned by Exec-based statements that matched no rows.
// Query-based statements surface pgx.ErrNoRows instead.
var ErrNotFound = errors.New("not found")
