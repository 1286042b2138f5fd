package importer

import (
	"context"
	"fmt"

	"virolink/internal/normalize"
	"virolink/pkg/domain"
)

// UniqueKeysRule enforces the natural-key constraints at commit: no two hosts
// share a normalized (source_id, host_type), no two samples share
// (source_id, sample_origin), and no two taxonomies share a scientific name.
func UniqueKeysRule() domain.Rule {
	return uniqueKeysRule{}
}

type uniqueKeysRule struct{}

func (uniqueKeysRule) Name() string { return "unique_keys" }

func (uniqueKeysRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}

	hostKeys := make(map[normalize.Key]string)
	for _, h := range view.ListHosts() {
		key := normalize.Join(
			normalize.Normalize(h.SourceID, normalize.FieldCode),
			normalize.Normalize(string(h.HostType), normalize.FieldText),
		)
		if key.IsEmpty() {
			continue
		}
		if prev, dup := hostKeys[key]; dup {
			res.Violations = append(res.Violations, uniqueViolation(domain.EntityHost, h.ID,
				fmt.Sprintf("hosts %s and %s share source id %q under host type %q", prev, h.ID, h.SourceID, h.HostType)))
			continue
		}
		hostKeys[key] = h.ID
	}

	sampleKeys := make(map[normalize.Key]string)
	for _, s := range view.ListSamples() {
		key := normalize.Join(
			normalize.Normalize(s.SourceID, normalize.FieldCode),
			normalize.Normalize(s.SampleOrigin, normalize.FieldText),
		)
		if key.IsEmpty() {
			continue
		}
		if prev, dup := sampleKeys[key]; dup {
			res.Violations = append(res.Violations, uniqueViolation(domain.EntitySample, s.ID,
				fmt.Sprintf("samples %s and %s share source id %q under origin %q", prev, s.ID, s.SourceID, s.SampleOrigin)))
			continue
		}
		sampleKeys[key] = s.ID
	}

	taxonomyKeys := make(map[normalize.Key]string)
	for _, t := range view.ListTaxonomies() {
		key := normalize.Normalize(t.ScientificName, normalize.FieldText)
		if key.IsEmpty() {
			continue
		}
		if prev, dup := taxonomyKeys[key]; dup {
			res.Violations = append(res.Violations, uniqueViolation(domain.EntityTaxonomy, t.ID,
				fmt.Sprintf("taxonomies %s and %s share scientific name %q", prev, t.ID, t.ScientificName)))
			continue
		}
		taxonomyKeys[key] = t.ID
	}

	return res, nil
}

func uniqueViolation(entity domain.EntityType, id, msg string) domain.Violation {
	return domain.Violation{
		Rule:     "unique_keys",
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   entity,
		EntityID: id,
	}
}
