package importer

import (
	"errors"
	"fmt"
	"strings"

	"virolink/internal/conflict"
	"virolink/internal/linkgraph"
	"virolink/internal/normalize"
	"virolink/internal/resolve"
	"virolink/pkg/domain"
)

// session carries the per-transaction state of one import run.
type session struct {
	coord  *Coordinator
	tx     domain.Transaction
	graph  *linkgraph.Graph
	report *domain.ImportReport
}

func (s *session) processRow(row domain.Row) error {
	var err error
	switch row.Entity {
	case domain.EntityLocation:
		err = s.upsertLocationRow(row)
	case domain.EntityTaxonomy:
		err = s.upsertTaxonomyRow(row)
	case domain.EntityHost:
		err = s.upsertHost(row)
	case domain.EntityEnvironmentalSample:
		err = s.upsertEnvSample(row)
	case domain.EntitySample:
		err = s.upsertSample(row)
	case domain.EntityScreening:
		err = s.upsertScreening(row)
	case domain.EntityStorage:
		err = s.upsertStorage(row)
	default:
		s.report.AddFailure(row.Index, fmt.Sprintf("unknown entity type %q", row.Entity))
		return nil
	}
	if err == nil {
		return nil
	}
	var amb domain.ResolutionAmbiguityError
	var riv domain.ReferentialIntegrityError
	if errors.As(err, &amb) || errors.As(err, &riv) {
		return err
	}
	return rowError{index: row.Index, err: err}
}

// resolveRow matches a row against the index. A missing match key records the
// row as a failure and reports skip=false; ambiguities propagate as fatal.
func (s *session) resolveRow(row domain.Row) (resolve.Resolution, bool, error) {
	res, err := resolve.Resolve(s.graph, row, s.coord.specsFor(row.Entity))
	if err != nil {
		var absent domain.MatchKeyAbsentError
		if errors.As(err, &absent) {
			s.report.AddFailure(row.Index, err.Error())
			return resolve.Resolution{}, false, nil
		}
		return resolve.Resolution{}, false, err
	}
	return res, true, nil
}

// ensureLocation resolves or creates the location named by the row's
// location columns, returning nil when the row carries none. Host and
// environmental sheets embed location columns alongside their own.
func (s *session) ensureLocation(row domain.Row) (*string, error) {
	locRow := domain.Row{Index: row.Index, Entity: domain.EntityLocation, Record: row.Record}
	res, err := resolve.Resolve(s.graph, locRow, s.coord.specsFor(domain.EntityLocation))
	if err != nil {
		var absent domain.MatchKeyAbsentError
		if errors.As(err, &absent) {
			return nil, nil
		}
		return nil, err
	}
	proj := project(row.Record, locationColumns)
	if res.Matched {
		l, found := s.tx.Snapshot().FindLocation(res.ID)
		if !found {
			return nil, domain.ErrNotFound{Entity: domain.EntityLocation, ID: res.ID}
		}
		out := conflict.Detect(domain.EntityLocation, res.ID, locationRecord(l), proj, s.coord.policyFor(domain.EntityLocation))
		s.report.AddConflicts(out.Conflicts...)
		if out.Changed {
			if _, err := s.tx.UpdateLocation(res.ID, func(loc *domain.Location) error {
				applyLocationRecord(loc, out.Merged)
				return nil
			}); err != nil {
				return nil, err
			}
			s.report.AddUpdated(domain.EntityLocation)
		}
		id := res.ID
		return &id, nil
	}
	var l domain.Location
	applyLocationRecord(&l, proj)
	created, err := s.tx.CreateLocation(l)
	if err != nil {
		return nil, err
	}
	s.report.AddCreated(domain.EntityLocation)
	resolve.IndexRecord(s.graph, domain.EntityLocation, locationRecord(created), created.ID, s.coord.specsFor(domain.EntityLocation))
	id := created.ID
	return &id, nil
}

// ensureTaxonomy resolves or creates the taxonomy named by the row's
// scientific name, returning nil when the row carries none. Existing rows are
// never mutated; disagreements are recorded only.
func (s *session) ensureTaxonomy(row domain.Row) (*string, error) {
	taxRow := domain.Row{Index: row.Index, Entity: domain.EntityTaxonomy, Record: row.Record}
	res, err := resolve.Resolve(s.graph, taxRow, s.coord.specsFor(domain.EntityTaxonomy))
	if err != nil {
		var absent domain.MatchKeyAbsentError
		if errors.As(err, &absent) {
			return nil, nil
		}
		return nil, err
	}
	if res.Matched {
		t, found := s.tx.Snapshot().FindTaxonomy(res.ID)
		if !found {
			return nil, domain.ErrNotFound{Entity: domain.EntityTaxonomy, ID: res.ID}
		}
		out := conflict.Detect(domain.EntityTaxonomy, res.ID, taxonomyRecord(t), project(row.Record, taxonomyColumns), s.coord.policyFor(domain.EntityTaxonomy))
		s.report.AddConflicts(out.Conflicts...)
		id := res.ID
		return &id, nil
	}
	var t domain.Taxonomy
	applyTaxonomyRecord(&t, project(row.Record, taxonomyColumns))
	created, err := s.tx.CreateTaxonomy(t)
	if err != nil {
		return nil, err
	}
	s.report.AddCreated(domain.EntityTaxonomy)
	resolve.IndexRecord(s.graph, domain.EntityTaxonomy, taxonomyRecord(created), created.ID, s.coord.specsFor(domain.EntityTaxonomy))
	id := created.ID
	return &id, nil
}

func (s *session) upsertLocationRow(row domain.Row) error {
	id, err := s.ensureLocation(row)
	if err != nil {
		return err
	}
	if id == nil {
		s.report.AddFailure(row.Index, domain.MatchKeyAbsentError{Entity: domain.EntityLocation, RowIndex: row.Index}.Error())
	}
	return nil
}

func (s *session) upsertTaxonomyRow(row domain.Row) error {
	id, err := s.ensureTaxonomy(row)
	if err != nil {
		return err
	}
	if id == nil {
		s.report.AddFailure(row.Index, domain.MatchKeyAbsentError{Entity: domain.EntityTaxonomy, RowIndex: row.Index}.Error())
	}
	return nil
}

func (s *session) upsertHost(row domain.Row) error {
	res, ok, err := s.resolveRow(row)
	if err != nil || !ok {
		return err
	}
	locID, err := s.ensureLocation(row)
	if err != nil {
		return err
	}
	taxID, err := s.ensureTaxonomy(row)
	if err != nil {
		return err
	}
	proj := project(row.Record, hostColumns)

	var host domain.Host
	if res.Matched {
		current, found := s.tx.FindHost(res.ID)
		if !found {
			return domain.ErrNotFound{Entity: domain.EntityHost, ID: res.ID}
		}
		out := conflict.Detect(domain.EntityHost, res.ID, hostRecord(current), proj, s.coord.policyFor(domain.EntityHost))
		s.report.AddConflicts(out.Conflicts...)
		changed := out.Changed
		newLoc := s.backfillRef(domain.EntityHost, res.ID, "location_id", current.LocationID, locID, &changed)
		newTax := s.backfillRef(domain.EntityHost, res.ID, "taxonomy_id", current.TaxonomyID, taxID, &changed)
		if changed {
			updated, err := s.tx.UpdateHost(res.ID, func(h *domain.Host) error {
				applyHostRecord(h, out.Merged)
				h.LocationID = newLoc
				h.TaxonomyID = newTax
				return nil
			})
			if err != nil {
				return err
			}
			s.report.AddUpdated(domain.EntityHost)
			resolve.IndexRecord(s.graph, domain.EntityHost, hostRecord(updated), res.ID, s.coord.specsFor(domain.EntityHost))
			current = updated
		}
		host = current
	} else {
		var h domain.Host
		applyHostRecord(&h, proj)
		h.LocationID = locID
		h.TaxonomyID = taxID
		created, err := s.tx.CreateHost(h)
		if err != nil {
			return err
		}
		s.report.AddCreated(domain.EntityHost)
		resolve.IndexRecord(s.graph, domain.EntityHost, hostRecord(created), created.ID, s.coord.specsFor(domain.EntityHost))
		host = created
	}

	if host.LocationID != nil && *host.LocationID != "" {
		if err := s.graph.RegisterLink(domain.EntityLocation, *host.LocationID, domain.EntityHost, host.ID, linkgraph.RelHostLocation); err != nil {
			return err
		}
	}
	if host.TaxonomyID != nil && *host.TaxonomyID != "" {
		if err := s.graph.RegisterLink(domain.EntityTaxonomy, *host.TaxonomyID, domain.EntityHost, host.ID, linkgraph.RelHostTaxonomy); err != nil {
			return err
		}
	}
	return nil
}

// backfillRef fills a nil reference from the row's resolved value. A
// differing non-nil reference is recorded for review and kept as is: imports
// never silently repoint reference data.
func (s *session) backfillRef(entity domain.EntityType, entityID, field string, existing, incoming *string, changed *bool) *string {
	if incoming == nil || *incoming == "" {
		return existing
	}
	if existing == nil || *existing == "" {
		*changed = true
		return incoming
	}
	if *existing != *incoming {
		s.report.AddConflicts(domain.Conflict{
			Entity:        entity,
			EntityID:      entityID,
			Field:         field,
			ExistingValue: *existing,
			IncomingValue: *incoming,
			PolicyApplied: domain.PolicyFlagOnly,
		})
	}
	return existing
}

func (s *session) upsertEnvSample(row domain.Row) error {
	res, ok, err := s.resolveRow(row)
	if err != nil || !ok {
		return err
	}
	locID, err := s.ensureLocation(row)
	if err != nil {
		return err
	}
	proj := project(row.Record, envSampleColumns)

	var env domain.EnvironmentalSample
	if res.Matched {
		current, found := s.tx.FindEnvironmentalSample(res.ID)
		if !found {
			return domain.ErrNotFound{Entity: domain.EntityEnvironmentalSample, ID: res.ID}
		}
		out := conflict.Detect(domain.EntityEnvironmentalSample, res.ID, envSampleRecord(current), proj, s.coord.policyFor(domain.EntityEnvironmentalSample))
		s.report.AddConflicts(out.Conflicts...)
		changed := out.Changed
		newLoc := s.backfillRef(domain.EntityEnvironmentalSample, res.ID, "location_id", current.LocationID, locID, &changed)
		if changed {
			updated, err := s.tx.UpdateEnvironmentalSample(res.ID, func(e *domain.EnvironmentalSample) error {
				applyEnvSampleRecord(e, out.Merged)
				e.LocationID = newLoc
				return nil
			})
			if err != nil {
				return err
			}
			s.report.AddUpdated(domain.EntityEnvironmentalSample)
			resolve.IndexRecord(s.graph, domain.EntityEnvironmentalSample, envSampleRecord(updated), res.ID, s.coord.specsFor(domain.EntityEnvironmentalSample))
			current = updated
		}
		env = current
	} else {
		var e domain.EnvironmentalSample
		applyEnvSampleRecord(&e, proj)
		e.LocationID = locID
		created, err := s.tx.CreateEnvironmentalSample(e)
		if err != nil {
			return err
		}
		s.report.AddCreated(domain.EntityEnvironmentalSample)
		resolve.IndexRecord(s.graph, domain.EntityEnvironmentalSample, envSampleRecord(created), created.ID, s.coord.specsFor(domain.EntityEnvironmentalSample))
		env = created
	}

	if env.LocationID != nil && *env.LocationID != "" {
		if err := s.graph.RegisterLink(domain.EntityLocation, *env.LocationID, domain.EntityEnvironmentalSample, env.ID, linkgraph.RelEnvironmentalLocation); err != nil {
			return err
		}
	}
	return nil
}

// sampleParent is the resolved parent of one sample row: exactly one side set.
type sampleParent struct {
	hostID string
	envID  string
}

// environmentalOrigin reports whether a sample origin names the environmental
// workflow rather than a host type.
func environmentalOrigin(origin string) bool {
	switch origin {
	case "environmental", "environment", "env":
		return true
	}
	return false
}

// resolveSampleParent finds the host or environmental sample a sample row
// derives from. Sample sheets rarely carry a host_type column; the origin
// column doubles as one for host-derived samples.
func (s *session) resolveSampleParent(row domain.Row) (sampleParent, error) {
	origin := strings.ToLower(strings.TrimSpace(row.Record.Text("sample_origin")))
	if environmentalOrigin(origin) {
		envRow := domain.Row{Index: row.Index, Entity: domain.EntityEnvironmentalSample, Record: row.Record}
		res, err := resolve.Resolve(s.graph, envRow, s.coord.specsFor(domain.EntityEnvironmentalSample))
		if err != nil || !res.Matched {
			var amb domain.ResolutionAmbiguityError
			if errors.As(err, &amb) {
				return sampleParent{}, err
			}
			return sampleParent{}, domain.ReferentialIntegrityError{
				Child:      domain.EntitySample,
				RowIndex:   row.Index,
				ParentType: domain.EntityEnvironmentalSample,
				ParentKey:  row.Record.Text("source_id"),
			}
		}
		return sampleParent{envID: res.ID}, nil
	}

	rec := row.Record
	if !rec.Has("host_type") && origin != "" {
		rec = rec.Clone()
		rec["host_type"] = domain.StringValue(origin)
	}
	hostRow := domain.Row{Index: row.Index, Entity: domain.EntityHost, Record: rec}
	res, err := resolve.Resolve(s.graph, hostRow, s.coord.specsFor(domain.EntityHost))
	if err != nil || !res.Matched {
		var amb domain.ResolutionAmbiguityError
		if errors.As(err, &amb) {
			return sampleParent{}, err
		}
		return sampleParent{}, domain.ReferentialIntegrityError{
			Child:      domain.EntitySample,
			RowIndex:   row.Index,
			ParentType: domain.EntityHost,
			ParentKey:  row.Record.Text("source_id"),
		}
	}
	return sampleParent{hostID: res.ID}, nil
}

func (s *session) upsertSample(row domain.Row) error {
	res, ok, err := s.resolveRow(row)
	if err != nil || !ok {
		return err
	}
	parent, err := s.resolveSampleParent(row)
	if err != nil {
		return err
	}
	locID, err := s.ensureLocation(row)
	if err != nil {
		return err
	}
	proj := project(row.Record, sampleColumns)

	var sampleID string
	if res.Matched {
		current, found := s.tx.FindSample(res.ID)
		if !found {
			return domain.ErrNotFound{Entity: domain.EntitySample, ID: res.ID}
		}
		out := conflict.Detect(domain.EntitySample, res.ID, sampleRecord(current), proj, s.coord.policyFor(domain.EntitySample))
		s.report.AddConflicts(out.Conflicts...)
		changed := out.Changed
		newHost := current.HostID
		newEnv := current.EnvSampleID
		if parent.hostID != "" && (newHost == nil || *newHost == "") {
			hid := parent.hostID
			newHost = &hid
			changed = true
		}
		if parent.envID != "" && (newEnv == nil || *newEnv == "") {
			eid := parent.envID
			newEnv = &eid
			changed = true
		}
		newLoc := s.backfillRef(domain.EntitySample, res.ID, "location_id", current.LocationID, locID, &changed)
		if changed {
			updated, err := s.tx.UpdateSample(res.ID, func(sm *domain.Sample) error {
				applySampleRecord(sm, out.Merged)
				sm.HostID = newHost
				sm.EnvSampleID = newEnv
				sm.LocationID = newLoc
				return nil
			})
			if err != nil {
				return err
			}
			s.report.AddUpdated(domain.EntitySample)
			resolve.IndexRecord(s.graph, domain.EntitySample, sampleRecord(updated), res.ID, s.coord.specsFor(domain.EntitySample))
		}
		sampleID = res.ID
	} else {
		var sm domain.Sample
		applySampleRecord(&sm, proj)
		if parent.hostID != "" {
			hid := parent.hostID
			sm.HostID = &hid
		}
		if parent.envID != "" {
			eid := parent.envID
			sm.EnvSampleID = &eid
		}
		sm.LocationID = locID
		created, err := s.tx.CreateSample(sm)
		if err != nil {
			return err
		}
		s.report.AddCreated(domain.EntitySample)
		resolve.IndexRecord(s.graph, domain.EntitySample, sampleRecord(created), created.ID, s.coord.specsFor(domain.EntitySample))
		sampleID = created.ID
	}

	// A row whose parent disagrees with the sample's registered parent is
	// rejected here by the declared many-to-one cardinality.
	if parent.hostID != "" {
		if err := s.graph.RegisterLink(domain.EntityHost, parent.hostID, domain.EntitySample, sampleID, linkgraph.RelSampleHost); err != nil {
			return err
		}
	}
	if parent.envID != "" {
		if err := s.graph.RegisterLink(domain.EntityEnvironmentalSample, parent.envID, domain.EntitySample, sampleID, linkgraph.RelSampleEnvironmental); err != nil {
			return err
		}
	}
	return nil
}

// findTestedSample locates the sample (or environmental sample) a screening
// or storage row references through its tube identifier.
func (s *session) findTestedSample(tube string) (sampleID, envID string, ok bool) {
	key := normalize.Normalize(tube, normalize.FieldCode)
	if key.IsEmpty() {
		return "", "", false
	}
	if id, found := s.graph.Lookup(domain.EntitySample, key); found {
		return id, "", true
	}
	if id, found := s.graph.Lookup(domain.EntityEnvironmentalSample, key); found {
		return "", id, true
	}
	return "", "", false
}

func (s *session) upsertScreening(row domain.Row) error {
	res, ok, err := s.resolveRow(row)
	if err != nil || !ok {
		return err
	}
	tube := row.Record.Text("tested_sample_id")
	if strings.TrimSpace(tube) == "" {
		s.report.AddFailure(row.Index, "screening row carries no tested_sample_id")
		return nil
	}
	sampleID, envID, found := s.findTestedSample(tube)
	if !found {
		return domain.ReferentialIntegrityError{
			Child:      domain.EntityScreening,
			RowIndex:   row.Index,
			ParentType: domain.EntitySample,
			ParentKey:  tube,
		}
	}
	proj := project(row.Record, screeningColumns)

	var screeningID string
	if res.Matched {
		current, ok := s.tx.Snapshot().FindScreening(res.ID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityScreening, ID: res.ID}
		}
		out := conflict.Detect(domain.EntityScreening, res.ID, screeningRecord(current), proj, s.coord.policyFor(domain.EntityScreening))
		s.report.AddConflicts(out.Conflicts...)
		if out.Changed {
			updated, err := s.tx.UpdateScreening(res.ID, func(sc *domain.Screening) error {
				applyScreeningRecord(sc, out.Merged)
				return nil
			})
			if err != nil {
				return err
			}
			s.report.AddUpdated(domain.EntityScreening)
			resolve.IndexRecord(s.graph, domain.EntityScreening, screeningRecord(updated), res.ID, s.coord.specsFor(domain.EntityScreening))
		}
		screeningID = res.ID
	} else {
		var sc domain.Screening
		applyScreeningRecord(&sc, proj)
		if sampleID != "" {
			sc.SampleID = &sampleID
		} else {
			sc.EnvSampleID = &envID
		}
		created, err := s.tx.CreateScreening(sc)
		if err != nil {
			return err
		}
		s.report.AddCreated(domain.EntityScreening)
		resolve.IndexRecord(s.graph, domain.EntityScreening, screeningRecord(created), created.ID, s.coord.specsFor(domain.EntityScreening))
		screeningID = created.ID
	}

	if sampleID != "" {
		return s.graph.RegisterLink(domain.EntitySample, sampleID, domain.EntityScreening, screeningID, linkgraph.RelScreeningSample)
	}
	return s.graph.RegisterLink(domain.EntityEnvironmentalSample, envID, domain.EntityScreening, screeningID, linkgraph.RelScreeningEnvironmental)
}

func (s *session) upsertStorage(row domain.Row) error {
	res, ok, err := s.resolveRow(row)
	if err != nil || !ok {
		return err
	}
	tube := row.Record.Text("sample_tube_id")
	sampleID, _, found := s.findTestedSample(tube)
	if !found || sampleID == "" {
		return domain.ReferentialIntegrityError{
			Child:      domain.EntityStorage,
			RowIndex:   row.Index,
			ParentType: domain.EntitySample,
			ParentKey:  tube,
		}
	}
	proj := project(row.Record, storageColumns)

	var storageID string
	if res.Matched {
		current, ok := s.tx.Snapshot().FindStorage(res.ID)
		if !ok {
			return domain.ErrNotFound{Entity: domain.EntityStorage, ID: res.ID}
		}
		// Effective position after applying only the columns the row carries.
		effective := current
		applyStorageRecord(&effective, proj)
		if current.SamePosition(effective) {
			out := conflict.Detect(domain.EntityStorage, res.ID, storageRecord(current), proj, s.coord.policyFor(domain.EntityStorage))
			s.report.AddConflicts(out.Conflicts...)
			if out.Changed {
				if _, err := s.tx.UpdateStorage(res.ID, func(st *domain.Storage) error {
					applyStorageRecord(st, out.Merged)
					return nil
				}); err != nil {
					return err
				}
				s.report.AddUpdated(domain.EntityStorage)
			}
			storageID = res.ID
		} else {
			// The tube moved: demote the current row and append a new one.
			if _, err := s.tx.UpdateStorage(res.ID, func(st *domain.Storage) error {
				st.Current = false
				return nil
			}); err != nil {
				return err
			}
			moved := effective
			moved.Base = domain.Base{}
			moved.SampleID = sampleID
			moved.Current = true
			created, err := s.tx.CreateStorage(moved)
			if err != nil {
				return err
			}
			s.report.AddCreated(domain.EntityStorage)
			// The successor row inherits the tube key from the row it demoted.
			s.graph.Reassign(domain.EntityStorage, normalize.Normalize(created.SampleTubeID, normalize.FieldCode), created.ID)
			storageID = created.ID
		}
	} else {
		var st domain.Storage
		applyStorageRecord(&st, proj)
		st.SampleID = sampleID
		st.Current = true
		created, err := s.tx.CreateStorage(st)
		if err != nil {
			return err
		}
		s.report.AddCreated(domain.EntityStorage)
		resolve.IndexRecord(s.graph, domain.EntityStorage, storageRecord(created), created.ID, s.coord.specsFor(domain.EntityStorage))
		storageID = created.ID
	}

	return s.graph.RegisterLink(domain.EntitySample, sampleID, domain.EntityStorage, storageID, linkgraph.RelStorageSample)
}
