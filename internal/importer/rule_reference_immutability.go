package importer

import (
	"context"
	"fmt"

	"virolink/pkg/domain"
)

// ReferenceImmutabilityRule enforces the append-only contract on reference
// data: a location row referenced by any host, environmental sample, or
// sample keeps its identity. Only the descriptive fields (coordinates,
// habitat) may change after the fact. Taxonomy rows referenced by hosts may
// not change at all; disagreements are flagged in the report, never merged.
func ReferenceImmutabilityRule() domain.Rule {
	return referenceImmutabilityRule{}
}

type referenceImmutabilityRule struct{}

func (referenceImmutabilityRule) Name() string { return "reference_immutability" }

func (referenceImmutabilityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	var locations, taxonomies map[string]struct{}
	for _, ch := range changes {
		if ch.Action != domain.ActionUpdate {
			continue
		}
		switch ch.Entity {
		case domain.EntityLocation:
			before, okB := ch.Before.(domain.Location)
			after, okA := ch.After.(domain.Location)
			if !okB || !okA {
				continue
			}
			field := locationIdentityDiff(before, after)
			if field == "" {
				continue
			}
			if locations == nil {
				locations = referencedLocations(view)
			}
			if _, referenced := locations[after.ID]; !referenced {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "reference_immutability",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("location %s is referenced and its %s may not change (%q -> %q)", after.ID, field, fieldOf(before, field), fieldOf(after, field)),
				Entity:   domain.EntityLocation,
				EntityID: after.ID,
			})
		case domain.EntityTaxonomy:
			after, ok := ch.After.(domain.Taxonomy)
			if !ok {
				continue
			}
			if taxonomies == nil {
				taxonomies = referencedTaxonomies(view)
			}
			if _, referenced := taxonomies[after.ID]; !referenced {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "reference_immutability",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("taxonomy %s is referenced and append-only", after.ID),
				Entity:   domain.EntityTaxonomy,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}

// locationIdentityDiff names the first changed field that is part of a
// location's identity, or "" when only descriptive fields changed.
func locationIdentityDiff(before, after domain.Location) string {
	switch {
	case before.Country != after.Country:
		return "country"
	case before.Province != after.Province:
		return "province"
	case before.District != after.District:
		return "district"
	case before.Village != after.Village:
		return "village"
	case before.SiteName != after.SiteName:
		return "site_name"
	}
	return ""
}

func fieldOf(l domain.Location, field string) string {
	switch field {
	case "country":
		return l.Country
	case "province":
		return l.Province
	case "district":
		return l.District
	case "village":
		return l.Village
	case "site_name":
		return l.SiteName
	}
	return ""
}

func referencedLocations(view domain.RuleView) map[string]struct{} {
	refs := make(map[string]struct{})
	add := func(id *string) {
		if id != nil && *id != "" {
			refs[*id] = struct{}{}
		}
	}
	for _, h := range view.ListHosts() {
		add(h.LocationID)
	}
	for _, e := range view.ListEnvironmentalSamples() {
		add(e.LocationID)
	}
	for _, s := range view.ListSamples() {
		add(s.LocationID)
	}
	return refs
}

func referencedTaxonomies(view domain.RuleView) map[string]struct{} {
	refs := make(map[string]struct{})
	for _, h := range view.ListHosts() {
		if h.TaxonomyID != nil && *h.TaxonomyID != "" {
			refs[*h.TaxonomyID] = struct{}{}
		}
	}
	return refs
}
