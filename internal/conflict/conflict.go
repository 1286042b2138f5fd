// Package conflict merges an incoming record into a stored one under
// per-field policies. Conflicts never fail an import on their own; the worst
// a disagreement can do is end up in the report for manual review.
package conflict

import "virolink/pkg/domain"

// PolicySet maps field names to merge policies, with a fallback default for
// fields no rule names.
type PolicySet struct {
	Default domain.ConflictPolicy
	Fields  map[string]domain.ConflictPolicy
}

// For returns the policy governing one field.
func (p PolicySet) For(field string) domain.ConflictPolicy {
	if pol, ok := p.Fields[field]; ok {
		return pol
	}
	if p.Default == "" {
		return domain.PolicyOverwrite
	}
	return p.Default
}

// With returns a copy of the set with one field's policy overridden.
func (p PolicySet) With(field string, pol domain.ConflictPolicy) PolicySet {
	fields := make(map[string]domain.ConflictPolicy, len(p.Fields)+1)
	for k, v := range p.Fields {
		fields[k] = v
	}
	fields[field] = pol
	return PolicySet{Default: p.Default, Fields: fields}
}

// DefaultPolicies returns the per-entity field policies: identifiers are
// flag-only because a silently rewritten id severs the paper trail back to
// the field sheets, measurements prefer whichever side has data, and
// free-text remarks let the newest sheet win.
func DefaultPolicies() map[domain.EntityType]PolicySet {
	identifiers := map[string]domain.ConflictPolicy{
		"source_id": domain.PolicyFlagOnly,
		"field_id":  domain.PolicyFlagOnly,
		"bag_id":    domain.PolicyFlagOnly,
	}
	return map[domain.EntityType]PolicySet{
		domain.EntityLocation: {
			// Name fields are the match key and immutable once referenced;
			// coordinates may be backfilled.
			Default: domain.PolicyPreferNonNull,
			Fields: map[string]domain.ConflictPolicy{
				"country":   domain.PolicyPreferExisting,
				"province":  domain.PolicyPreferExisting,
				"district":  domain.PolicyPreferExisting,
				"village":   domain.PolicyPreferExisting,
				"site_name": domain.PolicyPreferExisting,
			},
		},
		domain.EntityTaxonomy: {
			// Taxonomy rows are append-only; disagreements are only recorded.
			Default: domain.PolicyFlagOnly,
		},
		domain.EntityHost: {
			Default: domain.PolicyOverwrite,
			Fields: merge(identifiers, map[string]domain.ConflictPolicy{
				"collection_id": domain.PolicyFlagOnly,
				"weight_g":      domain.PolicyPreferNonNull,
				"forearm_mm":    domain.PolicyPreferNonNull,
				"sex":           domain.PolicyFlagOnly,
				"age":           domain.PolicyPreferNonNull,
			}),
		},
		domain.EntityEnvironmentalSample: {
			Default: domain.PolicyPreferNonNull,
			Fields: map[string]domain.ConflictPolicy{
				"source_id": domain.PolicyFlagOnly,
				"pool_id":   domain.PolicyFlagOnly,
			},
		},
		domain.EntitySample: {
			// Sub-identifiers arrive incrementally across sheets; a sheet
			// that names a different tube for the same slot needs review.
			Default: domain.PolicyPreferNonNull,
			Fields: map[string]domain.ConflictPolicy{
				"source_id":     domain.PolicyFlagOnly,
				"sample_origin": domain.PolicyFlagOnly,
				"remark":        domain.PolicyOverwrite,
			},
		},
		domain.EntityScreening: {
			Default: domain.PolicyOverwrite,
			Fields: map[string]domain.ConflictPolicy{
				"tested_sample_id": domain.PolicyFlagOnly,
				"result":           domain.PolicyFlagOnly,
			},
		},
		domain.EntityStorage: {
			Default: domain.PolicyOverwrite,
			Fields: map[string]domain.ConflictPolicy{
				"sample_tube_id": domain.PolicyFlagOnly,
			},
		},
	}
}

func merge(a, b map[string]domain.ConflictPolicy) map[string]domain.ConflictPolicy {
	out := make(map[string]domain.ConflictPolicy, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Outcome is the result of merging one row into one entity.
type Outcome struct {
	Merged    domain.Record
	Conflicts []domain.Conflict
	// Changed reports whether Merged differs from the stored record, so the
	// coordinator can keep zero-diff matches out of the updated counts.
	Changed bool
}

// Detect merges incoming into existing field by field. Columns absent from
// the incoming record never touch stored values; explicit blanks participate
// under the field's policy. A conflict is recorded only when both sides hold
// differing non-null values.
func Detect(entity domain.EntityType, entityID string, existing, incoming domain.Record, policies PolicySet) Outcome {
	merged := existing.Clone()
	out := Outcome{}
	for col, inc := range incoming {
		stored, present := existing.Get(col)
		if !present {
			if !inc.IsNull() {
				merged[col] = inc
				out.Changed = true
			}
			continue
		}
		if inc.Equal(stored) {
			continue
		}
		pol := policies.For(col)
		winner := stored
		switch pol {
		case domain.PolicyOverwrite:
			winner = inc
		case domain.PolicyPreferExisting, domain.PolicyFlagOnly:
			// stored wins
		case domain.PolicyPreferNonNull:
			if stored.IsNull() {
				winner = inc
			} else if !inc.IsNull() {
				winner = inc
			}
		}
		if !inc.IsNull() && !stored.IsNull() {
			out.Conflicts = append(out.Conflicts, domain.Conflict{
				Entity:        entity,
				EntityID:      entityID,
				Field:         col,
				ExistingValue: stored.Text(),
				IncomingValue: inc.Text(),
				PolicyApplied: pol,
			})
		}
		if !winner.Equal(stored) {
			merged[col] = winner
			out.Changed = true
		}
	}
	out.Merged = merged
	return out
}
