package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Deletes are deliberately absent:
// reference data is append-only and storage history is demoted in place.
type Transaction interface {
	Snapshot() TransactionView
	CreateLocation(Location) (Location, error)
	UpdateLocation(id string, mutator func(*Location) error) (Location, error)
	CreateTaxonomy(Taxonomy) (Taxonomy, error)
	CreateHost(Host) (Host, error)
	UpdateHost(id string, mutator func(*Host) error) (Host, error)
	CreateEnvironmentalSample(EnvironmentalSample) (EnvironmentalSample, error)
	UpdateEnvironmentalSample(id string, mutator func(*EnvironmentalSample) error) (EnvironmentalSample, error)
	CreateSample(Sample) (Sample, error)
	UpdateSample(id string, mutator func(*Sample) error) (Sample, error)
	CreateScreening(Screening) (Screening, error)
	UpdateScreening(id string, mutator func(*Screening) error) (Screening, error)
	CreateStorage(Storage) (Storage, error)
	UpdateStorage(id string, mutator func(*Storage) error) (Storage, error)
	FindHost(id string) (Host, bool)
	FindSample(id string) (Sample, bool)
	FindEnvironmentalSample(id string) (EnvironmentalSample, bool)
}

// TransactionView provides read-only access to snapshot data for resolution
// and rules.
type TransactionView = RuleView

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetHost(id string) (Host, bool)
	GetSample(id string) (Sample, bool)
	ListLocations() []Location
	ListTaxonomies() []Taxonomy
	ListHosts() []Host
	ListEnvironmentalSamples() []EnvironmentalSample
	ListSamples() []Sample
	ListScreenings() []Screening
	ListStorages() []Storage
}
