package importer

import (
	"context"
	"errors"
	"testing"

	archmem "virolink/internal/archive/memory"
	"virolink/internal/infra/persistence/memory"
	"virolink/pkg/domain"
)

func newTestCoordinator(opts ...Option) (*Coordinator, *memory.Store) {
	store := memory.NewStore(DefaultRulesEngine())
	return NewCoordinator(store, opts...), store
}

func row(index int, entity domain.EntityType, cols map[string]domain.Value) domain.Row {
	rec := make(domain.Record, len(cols))
	for k, v := range cols {
		rec[k] = v
	}
	return domain.Row{Index: index, Entity: entity, Record: rec}
}

func str(s string) domain.Value { return domain.StringValue(s) }

func num(f float64) domain.Value { return domain.NumberValue(f) }

func batHostRow(index int, sourceID string) domain.Row {
	return row(index, domain.EntityHost, map[string]domain.Value{
		"source_id":       str(sourceID),
		"host_type":       str("bat"),
		"sex":             str("Female"),
		"weight_g":        num(45.5),
		"scientific_name": str("Rhinolophus affinis"),
		"country":         str("Cambodia"),
		"province":        str("Stung Treng"),
		"district":        str("Thala Barivat"),
		"village":         str("O Svay"),
		"site_name":       str("Cave 3"),
	})
}

func TestRunImportCreatesHostWithReferences(t *testing.T) {
	coord, store := newTestCoordinator()

	report, err := coord.RunImport(context.Background(), "hosts-2024.xlsx", []domain.Row{batHostRow(1, "B-0001")})
	if err != nil {
		t.Fatalf("RunImport: %v", err)
	}
	if !report.Committed {
		t.Fatalf("expected committed report")
	}
	if got := report.Created[domain.EntityHost]; got != 1 {
		t.Fatalf("created hosts = %d, want 1", got)
	}
	if got := report.Created[domain.EntityLocation]; got != 1 {
		t.Fatalf("created locations = %d, want 1", got)
	}
	if got := report.Created[domain.EntityTaxonomy]; got != 1 {
		t.Fatalf("created taxonomies = %d, want 1", got)
	}

	hosts := store.ListHosts()
	if len(hosts) != 1 {
		t.Fatalf("stored hosts = %d, want 1", len(hosts))
	}
	h := hosts[0]
	if h.LocationID == nil || *h.LocationID == "" {
		t.Fatalf("host missing location reference")
	}
	if h.TaxonomyID == nil || *h.TaxonomyID == "" {
		t.Fatalf("host missing taxonomy reference")
	}
	if h.WeightG == nil || *h.WeightG != 45.5 {
		t.Fatalf("host weight = %v, want 45.5", h.WeightG)
	}
}

func TestRunImportIsIdempotent(t *testing.T) {
	coord, _ := newTestCoordinator()
	rows := []domain.Row{batHostRow(1, "B-0001")}

	if _, err := coord.RunImport(context.Background(), "hosts.xlsx", rows); err != nil {
		t.Fatalf("first import: %v", err)
	}
	report, err := coord.RunImport(context.Background(), "hosts.xlsx", rows)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if got := report.TotalCreated(); got != 0 {
		t.Fatalf("second run created %d entities, want 0", got)
	}
	if got := report.TotalUpdated(); got != 0 {
		t.Fatalf("second run updated %d entities, want 0", got)
	}
	if len(report.Conflicts) != 0 {
		t.Fatalf("second run recorded conflicts: %+v", report.Conflicts)
	}
}

func TestRunImportBackfillsIdentifier(t *testing.T) {
	coord, store := newTestCoordinator()

	if _, err := coord.RunImport(context.Background(), "first.xlsx", []domain.Row{batHostRow(1, "B-0002")}); err != nil {
		t.Fatalf("first import: %v", err)
	}

	second := row(1, domain.EntityHost, map[string]domain.Value{
		"source_id": str("B-0002"),
		"host_type": str("bat"),
		"field_id":  str("FLD-77"),
	})
	report, err := coord.RunImport(context.Background(), "second.xlsx", []domain.Row{second})
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if got := report.Created[domain.EntityHost]; got != 0 {
		t.Fatalf("created hosts = %d, want 0", got)
	}
	if got := report.Updated[domain.EntityHost]; got != 1 {
		t.Fatalf("updated hosts = %d, want 1", got)
	}

	hosts := store.ListHosts()
	if len(hosts) != 1 {
		t.Fatalf("stored hosts = %d, want 1", len(hosts))
	}
	if hosts[0].FieldID != "FLD-77" {
		t.Fatalf("field id = %q, want FLD-77", hosts[0].FieldID)
	}

	// The new identifier is now a usable match key on its own.
	third := row(1, domain.EntityHost, map[string]domain.Value{
		"field_id": str("fld 77"),
		"sex":      str("Female"),
	})
	report, err = coord.RunImport(context.Background(), "third.xlsx", []domain.Row{third})
	if err != nil {
		t.Fatalf("third import: %v", err)
	}
	if got := report.TotalCreated() + report.TotalUpdated(); got != 0 {
		t.Fatalf("third run mutated %d entities, want 0", got)
	}
}

func TestRunImportFlagOnlyKeepsStoredValue(t *testing.T) {
	coord, store := newTestCoordinator()

	if _, err := coord.RunImport(context.Background(), "first.xlsx", []domain.Row{batHostRow(1, "B-0003")}); err != nil {
		t.Fatalf("first import: %v", err)
	}

	second := row(1, domain.EntityHost, map[string]domain.Value{
		"source_id": str("B-0003"),
		"host_type": str("bat"),
		"sex":       str("Male"),
	})
	report, err := coord.RunImport(context.Background(), "second.xlsx", []domain.Row{second})
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if len(report.Conflicts) != 1 {
		t.Fatalf("conflicts = %+v, want exactly one", report.Conflicts)
	}
	c := report.Conflicts[0]
	if c.Field != "sex" || c.ExistingValue != "Female" || c.IncomingValue != "Male" {
		t.Fatalf("unexpected conflict %+v", c)
	}
	if c.PolicyApplied != domain.PolicyFlagOnly {
		t.Fatalf("policy = %s, want flag_only", c.PolicyApplied)
	}
	if got := store.ListHosts()[0].Sex; got != "Female" {
		t.Fatalf("stored sex = %q, want Female", got)
	}
}

func TestRunImportOmittedColumnPreservesData(t *testing.T) {
	coord, store := newTestCoordinator()

	if _, err := coord.RunImport(context.Background(), "first.xlsx", []domain.Row{batHostRow(1, "B-0004")}); err != nil {
		t.Fatalf("first import: %v", err)
	}

	// The follow-up sheet has no weight_g column at all.
	second := row(1, domain.EntityHost, map[string]domain.Value{
		"source_id": str("B-0004"),
		"host_type": str("bat"),
		"notes":     str("recaptured near roost"),
	})
	if _, err := coord.RunImport(context.Background(), "second.xlsx", []domain.Row{second}); err != nil {
		t.Fatalf("second import: %v", err)
	}

	h := store.ListHosts()[0]
	if h.WeightG == nil || *h.WeightG != 45.5 {
		t.Fatalf("weight = %v, want 45.5 preserved", h.WeightG)
	}
	if h.Notes != "recaptured near roost" {
		t.Fatalf("notes = %q, want updated", h.Notes)
	}
}

func TestRunImportAmbiguityRollsBackWholeFile(t *testing.T) {
	coord, store := newTestCoordinator()

	seed := []domain.Row{
		row(1, domain.EntityHost, map[string]domain.Value{
			"source_id": str("R-0001"),
			"host_type": str("rodent"),
		}),
		row(2, domain.EntityHost, map[string]domain.Value{
			"source_id": str("R-0002"),
			"host_type": str("rodent"),
			"field_id":  str("FLD-9"),
		}),
	}
	if _, err := coord.RunImport(context.Background(), "seed.xlsx", seed); err != nil {
		t.Fatalf("seed import: %v", err)
	}

	rows := []domain.Row{
		row(1, domain.EntityHost, map[string]domain.Value{
			"source_id": str("R-0003"),
			"host_type": str("rodent"),
		}),
		// source_id points at one host, field_id at another.
		row(2, domain.EntityHost, map[string]domain.Value{
			"source_id": str("R-0001"),
			"host_type": str("rodent"),
			"field_id":  str("FLD-9"),
		}),
	}
	report, err := coord.RunImport(context.Background(), "bad.xlsx", rows)
	if err == nil {
		t.Fatalf("expected ambiguity error")
	}
	var amb domain.ResolutionAmbiguityError
	if !errors.As(err, &amb) {
		t.Fatalf("error = %v, want ResolutionAmbiguityError", err)
	}
	if report.Committed {
		t.Fatalf("report marked committed after rollback")
	}
	if got := report.TotalCreated(); got != 0 {
		t.Fatalf("rolled-back report counts %d created", got)
	}
	if len(report.Failures) == 0 || report.Failures[len(report.Failures)-1].RowIndex != 2 {
		t.Fatalf("failures = %+v, want entry for row 2", report.Failures)
	}
	if got := len(store.ListHosts()); got != 2 {
		t.Fatalf("stored hosts = %d, want 2 untouched", got)
	}
}

func TestRunImportSampleChain(t *testing.T) {
	coord, store := newTestCoordinator()

	rows := []domain.Row{
		batHostRow(1, "B-0005"),
		row(2, domain.EntitySample, map[string]domain.Value{
			"source_id":     str("B-0005"),
			"sample_origin": str("bat"),
			"saliva_id":     str("SAL-105"),
		}),
		row(3, domain.EntityScreening, map[string]domain.Value{
			"tested_sample_id": str("sal 105"),
			"test_type":        str("PCR"),
			"screening_date":   str("2024-03-01"),
			"result":           str("negative"),
		}),
		row(4, domain.EntityStorage, map[string]domain.Value{
			"sample_tube_id":  str("SAL-105"),
			"storage_unit_id": str("F1"),
			"rack_position":   str("R2"),
			"spot_position":   str("A3"),
		}),
	}
	report, err := coord.RunImport(context.Background(), "chain.xlsx", rows)
	if err != nil {
		t.Fatalf("RunImport: %v", err)
	}
	for _, entity := range []domain.EntityType{domain.EntitySample, domain.EntityScreening, domain.EntityStorage} {
		if got := report.Created[entity]; got != 1 {
			t.Fatalf("created %s = %d, want 1", entity, got)
		}
	}

	samples := store.ListSamples()
	if len(samples) != 1 {
		t.Fatalf("stored samples = %d, want 1", len(samples))
	}
	host := store.ListHosts()[0]
	if samples[0].HostID == nil || *samples[0].HostID != host.ID {
		t.Fatalf("sample host = %v, want %s", samples[0].HostID, host.ID)
	}
	if samples[0].EnvSampleID != nil {
		t.Fatalf("sample unexpectedly carries environmental parent")
	}

	screenings := store.ListScreenings()
	if len(screenings) != 1 || screenings[0].SampleID == nil || *screenings[0].SampleID != samples[0].ID {
		t.Fatalf("screening not linked to sample: %+v", screenings)
	}
	storages := store.ListStorages()
	if len(storages) != 1 || storages[0].SampleID != samples[0].ID || !storages[0].Current {
		t.Fatalf("storage not linked as current: %+v", storages)
	}
}

func TestRunImportEnvironmentalSampleChain(t *testing.T) {
	coord, store := newTestCoordinator()

	rows := []domain.Row{
		row(1, domain.EntityEnvironmentalSample, map[string]domain.Value{
			"source_id": str("ENV-01"),
			"pool_id":   str("GUANO-3"),
			"country":   str("Cambodia"),
			"province":  str("Kampot"),
		}),
		row(2, domain.EntitySample, map[string]domain.Value{
			"source_id":     str("ENV-01"),
			"sample_origin": str("environmental"),
			"saliva_id":     str("ENV-01-A"),
		}),
	}
	if _, err := coord.RunImport(context.Background(), "env.xlsx", rows); err != nil {
		t.Fatalf("RunImport: %v", err)
	}

	envs := store.ListEnvironmentalSamples()
	if len(envs) != 1 {
		t.Fatalf("stored environmental samples = %d, want 1", len(envs))
	}
	samples := store.ListSamples()
	if len(samples) != 1 {
		t.Fatalf("stored samples = %d, want 1", len(samples))
	}
	if samples[0].EnvSampleID == nil || *samples[0].EnvSampleID != envs[0].ID {
		t.Fatalf("sample environmental parent = %v, want %s", samples[0].EnvSampleID, envs[0].ID)
	}
	if samples[0].HostID != nil {
		t.Fatalf("environmental sample row must not gain a host parent")
	}
}

func TestRunImportMissingParentRollsBack(t *testing.T) {
	coord, store := newTestCoordinator()

	rows := []domain.Row{
		batHostRow(1, "B-0006"),
		row(2, domain.EntitySample, map[string]domain.Value{
			"source_id":     str("B-9999"),
			"sample_origin": str("bat"),
			"saliva_id":     str("SAL-900"),
		}),
	}
	report, err := coord.RunImport(context.Background(), "orphan.xlsx", rows)
	if err == nil {
		t.Fatalf("expected referential integrity error")
	}
	var riv domain.ReferentialIntegrityError
	if !errors.As(err, &riv) {
		t.Fatalf("error = %v, want ReferentialIntegrityError", err)
	}
	if riv.ParentType != domain.EntityHost || riv.ParentKey != "B-9999" {
		t.Fatalf("unexpected violation detail: %+v", riv)
	}
	if report.Committed || report.TotalCreated() != 0 {
		t.Fatalf("rolled-back report should carry no creations: %+v", report)
	}
	if got := len(store.ListHosts()); got != 0 {
		t.Fatalf("stored hosts = %d, want 0 after rollback", got)
	}
}

func TestRunImportRejectsSecondParent(t *testing.T) {
	coord, store := newTestCoordinator()

	seed := []domain.Row{
		batHostRow(1, "B-0007"),
		row(2, domain.EntitySample, map[string]domain.Value{
			"source_id":     str("B-0007"),
			"sample_origin": str("bat"),
			"saliva_id":     str("SAL-7"),
		}),
	}
	if _, err := coord.RunImport(context.Background(), "seed.xlsx", seed); err != nil {
		t.Fatalf("seed import: %v", err)
	}

	// The follow-up sheet pins the existing sample (via its tube id) to a
	// different host.
	rows := []domain.Row{
		batHostRow(1, "B-0008"),
		row(2, domain.EntitySample, map[string]domain.Value{
			"source_id":     str("B-0008"),
			"sample_origin": str("bat"),
			"saliva_id":     str("SAL-7"),
		}),
	}
	report, err := coord.RunImport(context.Background(), "repin.xlsx", rows)
	if err == nil {
		t.Fatalf("expected cardinality rejection")
	}
	if report.Committed {
		t.Fatalf("report marked committed after rollback")
	}
	if got := len(store.ListHosts()); got != 1 {
		t.Fatalf("stored hosts = %d, want 1 after rollback", got)
	}
}

func TestRunImportStorageMoveAppendsHistory(t *testing.T) {
	coord, store := newTestCoordinator()

	base := []domain.Row{
		batHostRow(1, "B-0009"),
		row(2, domain.EntitySample, map[string]domain.Value{
			"source_id":     str("B-0009"),
			"sample_origin": str("bat"),
			"saliva_id":     str("SAL-9"),
		}),
		row(3, domain.EntityStorage, map[string]domain.Value{
			"sample_tube_id":  str("SAL-9"),
			"storage_unit_id": str("F1"),
			"rack_position":   str("R1"),
			"spot_position":   str("A1"),
		}),
	}
	if _, err := coord.RunImport(context.Background(), "base.xlsx", base); err != nil {
		t.Fatalf("base import: %v", err)
	}

	move := []domain.Row{
		row(1, domain.EntityStorage, map[string]domain.Value{
			"sample_tube_id":  str("SAL-9"),
			"storage_unit_id": str("F2"),
			"rack_position":   str("R4"),
			"spot_position":   str("B6"),
		}),
	}
	report, err := coord.RunImport(context.Background(), "move.xlsx", move)
	if err != nil {
		t.Fatalf("move import: %v", err)
	}
	if got := report.Created[domain.EntityStorage]; got != 1 {
		t.Fatalf("created storages = %d, want 1 appended", got)
	}
	if len(report.Conflicts) != 0 {
		t.Fatalf("a move is history, not a conflict: %+v", report.Conflicts)
	}

	storages := store.ListStorages()
	if len(storages) != 2 {
		t.Fatalf("stored storages = %d, want 2", len(storages))
	}
	var current, prior *domain.Storage
	for i := range storages {
		if storages[i].Current {
			if current != nil {
				t.Fatalf("more than one current row for the tube")
			}
			current = &storages[i]
		} else {
			prior = &storages[i]
		}
	}
	if current == nil || prior == nil {
		t.Fatalf("want one current and one demoted row, got %+v", storages)
	}
	if current.StorageUnitID != "F2" || current.SpotPosition != "B6" {
		t.Fatalf("current row at %s/%s, want F2/B6", current.StorageUnitID, current.SpotPosition)
	}
	if prior.StorageUnitID != "F1" {
		t.Fatalf("demoted row at %s, want F1", prior.StorageUnitID)
	}
}

func TestRunImportSkipsRowWithoutMatchKey(t *testing.T) {
	coord, store := newTestCoordinator()

	rows := []domain.Row{
		batHostRow(1, "B-0010"),
		// No identifier at all: reportable, not fatal.
		row(2, domain.EntityHost, map[string]domain.Value{
			"sex": str("Male"),
		}),
	}
	report, err := coord.RunImport(context.Background(), "partial.xlsx", rows)
	if err != nil {
		t.Fatalf("RunImport: %v", err)
	}
	if !report.Committed {
		t.Fatalf("file with one bad row should still commit")
	}
	if got := report.Created[domain.EntityHost]; got != 1 {
		t.Fatalf("created hosts = %d, want 1", got)
	}
	if len(report.Failures) != 1 || report.Failures[0].RowIndex != 2 {
		t.Fatalf("failures = %+v, want one entry for row 2", report.Failures)
	}
	if got := len(store.ListHosts()); got != 1 {
		t.Fatalf("stored hosts = %d, want 1", got)
	}
}

func TestRunImportArchivesReport(t *testing.T) {
	arch := archmem.New()
	coord, _ := newTestCoordinator(WithArchive(arch))

	if _, err := coord.RunImport(context.Background(), "hosts.xlsx", []domain.Row{batHostRow(1, "B-0011")}); err != nil {
		t.Fatalf("RunImport: %v", err)
	}
	keys, err := arch.List(context.Background(), "reports/hosts.xlsx/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("archived reports = %d, want 1", len(keys))
	}
}
