package domain

import "time"

// ConflictPolicy names the per-field merge policy that was applied when an
// incoming value disagreed with a stored one.
type ConflictPolicy string

// Field merge policies.
const (
	// PolicyOverwrite lets the incoming value win.
	PolicyOverwrite ConflictPolicy = "overwrite"
	// PolicyPreferExisting keeps the stored value.
	PolicyPreferExisting ConflictPolicy = "prefer_existing"
	// PolicyPreferNonNull keeps whichever side is non-null; incoming wins
	// when both sides carry data.
	PolicyPreferNonNull ConflictPolicy = "prefer_non_null"
	// PolicyFlagOnly keeps the stored value and records the disagreement for
	// manual review.
	PolicyFlagOnly ConflictPolicy = "flag_only"
)

// Conflict is a recorded disagreement between a stored entity field and an
// incoming record's value for the same field.
type Conflict struct {
	Entity        EntityType     `json:"entity_type"`
	EntityID      string         `json:"entity_id"`
	Field         string         `json:"field"`
	ExistingValue string         `json:"existing_value"`
	IncomingValue string         `json:"incoming_value"`
	PolicyApplied ConflictPolicy `json:"policy_applied"`
}

// Failure is a row that could not be resolved at all.
type Failure struct {
	RowIndex int    `json:"row_index"`
	Reason   string `json:"reason"`
}

// ImportReport summarizes one import transaction for operator review.
type ImportReport struct {
	SourceFileID string             `json:"source_file_id"`
	StartedAt    time.Time          `json:"started_at"`
	FinishedAt   time.Time          `json:"finished_at"`
	Committed    bool               `json:"committed"`
	Created      map[EntityType]int `json:"created"`
	Updated      map[EntityType]int `json:"updated"`
	Conflicts    []Conflict         `json:"conflicts"`
	Failures     []Failure          `json:"failures"`
}

// NewImportReport constructs an empty report for one source file.
func NewImportReport(sourceFileID string) ImportReport {
	return ImportReport{
		SourceFileID: sourceFileID,
		Created:      make(map[EntityType]int),
		Updated:      make(map[EntityType]int),
	}
}

// AddCreated counts a newly created entity.
func (r *ImportReport) AddCreated(entity EntityType) { r.Created[entity]++ }

// AddUpdated counts an entity that changed during the import. Zero-diff
// matches are not counted.
func (r *ImportReport) AddUpdated(entity EntityType) { r.Updated[entity]++ }

// AddConflicts appends recorded field conflicts.
func (r *ImportReport) AddConflicts(cs ...Conflict) {
	r.Conflicts = append(r.Conflicts, cs...)
}

// AddFailure records a skipped or fatal row.
func (r *ImportReport) AddFailure(rowIndex int, reason string) {
	r.Failures = append(r.Failures, Failure{RowIndex: rowIndex, Reason: reason})
}

// Reset clears all counts after a rollback so the report reflects that
// nothing persisted; accumulated failures are kept for the operator.
func (r *ImportReport) Reset() {
	r.Created = make(map[EntityType]int)
	r.Updated = make(map[EntityType]int)
	r.Conflicts = nil
}

// TotalCreated sums created counts across entity types.
func (r ImportReport) TotalCreated() int {
	n := 0
	for _, c := range r.Created {
		n += c
	}
	return n
}

// TotalUpdated sums updated counts across entity types.
func (r ImportReport) TotalUpdated() int {
	n := 0
	for _, c := range r.Updated {
		n += c
	}
	return n
}
