// Package domain defines the persistent entities, tagged record values, and
// rule evaluation primitives used by virolink.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityLocation identifies a capture/collection location record.
	EntityLocation EntityType = "location"
	// EntityTaxonomy identifies a taxonomic classification record.
	EntityTaxonomy EntityType = "taxonomy"
	// EntityHost identifies a captured host specimen record.
	EntityHost EntityType = "host"
	// EntityEnvironmentalSample identifies an environmental pool record.
	EntityEnvironmentalSample EntityType = "environmental_sample"
	// EntitySample identifies a physical sample aliquot record.
	EntitySample EntityType = "sample"
	// EntityScreening identifies a screening test result record.
	EntityScreening EntityType = "screening"
	// EntityStorage identifies a physical storage assignment record.
	EntityStorage EntityType = "storage"
)

// HostType distinguishes the capture workflows a host can originate from. The
// same source_id may legitimately recur across host types, never within one.
type HostType string

// Canonical host types observed across the field spreadsheets.
const (
	HostTypeBat    HostType = "bat"
	HostTypeRodent HostType = "rodent"
	HostTypeMarket HostType = "market"
	HostTypeOther  HostType = "other"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location is append-only reference data describing where a host or sample
// was collected. Identified by the composite name chain; coordinates may be
// backfilled after creation.
type Location struct {
	Base
	Country            string   `json:"country"`
	Province           string   `json:"province"`
	District           string   `json:"district"`
	Village            string   `json:"village"`
	SiteName           string   `json:"site_name"`
	Latitude           *float64 `json:"latitude"`
	Longitude          *float64 `json:"longitude"`
	Altitude           *float64 `json:"altitude"`
	HabitatDescription string   `json:"habitat_description,omitempty"`
}

// Taxonomy is append-only reference data for one scientific name.
type Taxonomy struct {
	Base
	Kingdom        string `json:"kingdom,omitempty"`
	Phylum         string `json:"phylum,omitempty"`
	Class          string `json:"class,omitempty"`
	OrderName      string `json:"order_name,omitempty"`
	Family         string `json:"family,omitempty"`
	Genus          string `json:"genus,omitempty"`
	Species        string `json:"species"`
	ScientificName string `json:"scientific_name"`
	CommonName     string `json:"common_name,omitempty"`
}

// Host represents a captured specimen (bat, rodent, or market individual).
// Natural key is (SourceID, HostType).
type Host struct {
	Base
	SourceID      string     `json:"source_id"`
	HostType      HostType   `json:"host_type"`
	BagID         string     `json:"bag_id,omitempty"`
	FieldID       string     `json:"field_id,omitempty"`
	CollectionID  string     `json:"collection_id,omitempty"`
	LocationID    *string    `json:"location_id"`
	TaxonomyID    *string    `json:"taxonomy_id"`
	CaptureDate   *time.Time `json:"capture_date"`
	CaptureTime   string     `json:"capture_time,omitempty"`
	TrapType      string     `json:"trap_type,omitempty"`
	Collectors    string     `json:"collectors,omitempty"`
	Sex           string     `json:"sex,omitempty"`
	Status        string     `json:"status,omitempty"`
	Age           string     `json:"age,omitempty"`
	RingNo        string     `json:"ring_no,omitempty"`
	Recapture     string     `json:"recapture,omitempty"`
	WeightG       *float64   `json:"weight_g"`
	ForearmMM     *float64   `json:"forearm_mm"`
	Ecology       string     `json:"ecology,omitempty"`
	InterfaceType string     `json:"interface_type,omitempty"`
	UseFor        string     `json:"use_for,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

// EnvironmentalSample represents a pooled environmental collection (guano
// plot, wastewater, etc.) that samples may derive from instead of a host.
type EnvironmentalSample struct {
	Base
	SourceID   string  `json:"source_id"`
	PoolID     string  `json:"pool_id,omitempty"`
	LocationID *string `json:"location_id"`
}

// Sample is a physical specimen aliquot derived from exactly one Host or one
// EnvironmentalSample. Natural key is (SourceID, SampleOrigin). Sub-identifier
// fields accumulate across imports without duplicating the row.
type Sample struct {
	Base
	SourceID         string     `json:"source_id"`
	SampleOrigin     string     `json:"sample_origin"`
	HostID           *string    `json:"host_id"`
	EnvSampleID      *string    `json:"env_sample_id"`
	LocationID       *string    `json:"location_id"`
	CollectionDate   *time.Time `json:"collection_date"`
	SalivaID         string     `json:"saliva_id,omitempty"`
	AnalID           string     `json:"anal_id,omitempty"`
	UrineID          string     `json:"urine_id,omitempty"`
	EctoID           string     `json:"ecto_id,omitempty"`
	BloodID          string     `json:"blood_id,omitempty"`
	PlasmaID         string     `json:"plasma_id,omitempty"`
	TissueID         string     `json:"tissue_id,omitempty"`
	TissueSampleType string     `json:"tissue_sample_type,omitempty"`
	IntestineID      string     `json:"intestine_id,omitempty"`
	AdiposeID        string     `json:"adipose_id,omitempty"`
	Remark           string     `json:"remark,omitempty"`
}

// SubIdentifiers returns the non-empty tube identifiers carried by the sample,
// keyed by column name. Storage and screening rows reference samples through
// these.
func (s Sample) SubIdentifiers() map[string]string {
	out := make(map[string]string, 9)
	put := func(col, v string) {
		if v != "" {
			out[col] = v
		}
	}
	put("saliva_id", s.SalivaID)
	put("anal_id", s.AnalID)
	put("urine_id", s.UrineID)
	put("ecto_id", s.EctoID)
	put("blood_id", s.BloodID)
	put("plasma_id", s.PlasmaID)
	put("tissue_id", s.TissueID)
	put("intestine_id", s.IntestineID)
	put("adipose_id", s.AdiposeID)
	return out
}

// Screening is one test result for a sample (or environmental sample).
// Uniqueness is (parent reference, test type, screening date) so a sample can
// be re-tested.
type Screening struct {
	Base
	SampleID        *string    `json:"sample_id"`
	EnvSampleID     *string    `json:"env_sample_id"`
	TestedSampleID  string     `json:"tested_sample_id,omitempty"`
	SampleType      string     `json:"sample_type,omitempty"`
	TestType        string     `json:"test_type"`
	ScreeningDate   *time.Time `json:"screening_date"`
	ScreeningMethod string     `json:"screening_method,omitempty"`
	PanCorona       string     `json:"pan_corona,omitempty"`
	Hantavirus      string     `json:"hantavirus,omitempty"`
	Coronavirus     string     `json:"coronavirus,omitempty"`
	OtherVirus      string     `json:"other_virus,omitempty"`
	Result          string     `json:"result,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

// Storage is one physical storage assignment for a sample tube. History is
// append-only: moving a tube appends a new current row and demotes the prior
// one, never overwriting it.
type Storage struct {
	Base
	SampleID      string `json:"sample_id"`
	SampleTubeID  string `json:"sample_tube_id"`
	StorageUnitID string `json:"storage_unit_id,omitempty"`
	RackPosition  string `json:"rack_position,omitempty"`
	SpotPosition  string `json:"spot_position,omitempty"`
	Current       bool   `json:"current"`
	Notes         string `json:"notes,omitempty"`
}

// SamePosition reports whether two storage rows describe the same physical slot.
func (s Storage) SamePosition(other Storage) bool {
	return s.StorageUnitID == other.StorageUnitID &&
		s.RackPosition == other.RackPosition &&
		s.SpotPosition == other.SpotPosition
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the mutations captured for rule evaluation. The
// core never deletes: reference data is append-only and storage history is
// demoted, not removed.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	var parts []string
	for _, v := range e.Result.Violations {
		if v.Severity != SeverityBlock {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", v.Rule, v.Message))
		// Three violations are enough for an operator to see the shape of
		// the problem; the full result travels on the error value.
		if len(parts) == 3 {
			break
		}
	}
	if len(parts) == 0 {
		return "transaction blocked by rules"
	}
	return "transaction blocked by rules: " + strings.Join(parts, "; ")
}
