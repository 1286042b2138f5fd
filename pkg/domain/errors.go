package domain

import (
	"fmt"
	"strings"
)

// ResolutionAmbiguityError is fatal: an incoming record's match keys point at
// two or more distinct existing entities. The enclosing import transaction
// must roll back rather than guess.
type ResolutionAmbiguityError struct {
	Entity   EntityType
	RowIndex int
	Matches  map[string]string // key-spec name -> matched entity id
}

func (e ResolutionAmbiguityError) Error() string {
	parts := make([]string, 0, len(e.Matches))
	for spec, id := range e.Matches {
		parts = append(parts, fmt.Sprintf("%s=>%s", spec, id))
	}
	return fmt.Sprintf("row %d: %s match keys resolve to different entities: %s",
		e.RowIndex, e.Entity, strings.Join(parts, ", "))
}

// ReferentialIntegrityError is fatal: a child record references a parent that
// does not exist in the transaction's entity index.
type ReferentialIntegrityError struct {
	Child      EntityType
	RowIndex   int
	ParentType EntityType
	ParentKey  string
}

func (e ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("row %d: %s references missing %s %q",
		e.RowIndex, e.Child, e.ParentType, e.ParentKey)
}

// MatchKeyAbsentError is non-fatal per row: the row carries no usable match
// key and not enough data to create a new entity. The row is reported as a
// failure and skipped.
type MatchKeyAbsentError struct {
	Entity   EntityType
	RowIndex int
}

func (e MatchKeyAbsentError) Error() string {
	return fmt.Sprintf("row %d: no usable match key for %s", e.RowIndex, e.Entity)
}

// ErrNotFound is returned when reference validation fails within transactional helpers.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
