package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyTable indicates a CSV with no header row.
var ErrEmptyTable = errors.New("table has no header")

// MissingColumnError indicates a required column is absent from a source table.
type MissingColumnError struct {
	Table   string
	Path    string
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s (%s): missing required column(s): %s", e.Table, e.Path, strings.Join(e.Columns, ", "))
}

// DuplicateKeyError is returned in strict mode when a table repeats its join key.
type DuplicateKeyError struct {
	Table string
	Count int
	First string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s: %d duplicate join key(s), first %s", e.Table, e.Count, e.First)
}
