// Package storage provides persistence of prayer requests and rejected submissions.
// Each table is represented by a struct working on top of engine.SQL, so the same code runs on sqlite and postgres.
// All records are scoped by the group id of the engine.
package storage

import "errors"

// ErrNotFound is returned when a record with the given id doesn't exist in the group
var ErrNotFound = errors.New("not found")
