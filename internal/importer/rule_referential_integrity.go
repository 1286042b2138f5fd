package importer

import (
	"context"
	"fmt"

	"virolink/pkg/domain"
)

// ReferentialIntegrityRule verifies that no foreign key dangles at commit:
// hosts point at existing locations and taxonomies, samples at existing
// parents, screenings and storages at existing samples.
func ReferentialIntegrityRule() domain.Rule {
	return referentialIntegrityRule{}
}

type referentialIntegrityRule struct{}

func (referentialIntegrityRule) Name() string { return "referential_integrity" }

func (referentialIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}

	exists := func(find func(string) bool, ref *string) bool {
		return ref == nil || *ref == "" || find(*ref)
	}
	hasLocation := func(id string) bool { _, ok := view.FindLocation(id); return ok }
	hasTaxonomy := func(id string) bool { _, ok := view.FindTaxonomy(id); return ok }
	hasHost := func(id string) bool { _, ok := view.FindHost(id); return ok }
	hasEnv := func(id string) bool { _, ok := view.FindEnvironmentalSample(id); return ok }
	hasSample := func(id string) bool { _, ok := view.FindSample(id); return ok }

	for _, h := range view.ListHosts() {
		if !exists(hasLocation, h.LocationID) {
			res.Violations = append(res.Violations, integrityViolation(domain.EntityHost, h.ID,
				fmt.Sprintf("host %s references missing location %s", h.ID, *h.LocationID)))
		}
		if !exists(hasTaxonomy, h.TaxonomyID) {
			res.Violations = append(res.Violations, integrityViolation(domain.EntityHost, h.ID,
				fmt.Sprintf("host %s references missing taxonomy %s", h.ID, *h.TaxonomyID)))
		}
	}
	for _, e := range view.ListEnvironmentalSamples() {
		if !exists(hasLocation, e.LocationID) {
			res.Violations = append(res.Violations, integrityViolation(domain.EntityEnvironmentalSample, e.ID,
				fmt.Sprintf("environmental sample %s references missing location %s", e.ID, *e.LocationID)))
		}
	}
	for _, s := range view.ListSamples() {
		if !exists(hasHost, s.HostID) {
			res.Violations = append(res.Violations, integrityViolation(domain.EntitySample, s.ID,
				fmt.Sprintf("sample %s references missing host %s", s.ID, *s.HostID)))
		}
		if !exists(hasEnv, s.EnvSampleID) {
			res.Violations = append(res.Violations, integrityViolation(domain.EntitySample, s.ID,
				fmt.Sprintf("sample %s references missing environmental sample %s", s.ID, *s.EnvSampleID)))
		}
		if !exists(hasLocation, s.LocationID) {
			res.Violations = append(res.Violations, integrityViolation(domain.EntitySample, s.ID,
				fmt.Sprintf("sample %s references missing location %s", s.ID, *s.LocationID)))
		}
	}
	for _, sc := range view.ListScreenings() {
		if !exists(hasSample, sc.SampleID) {
			res.Violations = append(res.Violations, integrityViolation(domain.EntityScreening, sc.ID,
				fmt.Sprintf("screening %s references missing sample %s", sc.ID, *sc.SampleID)))
		}
		if !exists(hasEnv, sc.EnvSampleID) {
			res.Violations = append(res.Violations, integrityViolation(domain.EntityScreening, sc.ID,
				fmt.Sprintf("screening %s references missing environmental sample %s", sc.ID, *sc.EnvSampleID)))
		}
	}
	for _, st := range view.ListStorages() {
		if st.SampleID == "" || !hasSample(st.SampleID) {
			res.Violations = append(res.Violations, integrityViolation(domain.EntityStorage, st.ID,
				fmt.Sprintf("storage %s references missing sample %q", st.ID, st.SampleID)))
		}
	}
	return res, nil
}

func integrityViolation(entity domain.EntityType, id, msg string) domain.Violation {
	return domain.Violation{
		Rule:     "referential_integrity",
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   entity,
		EntityID: id,
	}
}
