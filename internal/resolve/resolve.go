// Package resolve decides whether an incoming row refers to an existing
// entity or requires a new one. Each entity type carries a priority-ordered
// list of key specs; stronger identifiers come first, but every spec is
// evaluated so that two specs pointing at different entities surface as an
// ambiguity instead of being hidden by priority order.
package resolve

import (
	"virolink/internal/linkgraph"
	"virolink/internal/normalize"
	"virolink/pkg/domain"
)

// KeyField names one column of a match key and how to normalize it.
type KeyField struct {
	Column string
	Kind   normalize.FieldKind
}

// KeySpec is one candidate match key: an ordered set of columns whose
// normalized values are joined into a composite key. A spec with any absent
// or blank column yields the Empty key and is skipped.
type KeySpec struct {
	Name   string
	Fields []KeyField
	// Sparse keys tolerate blank components: only an all-blank field set
	// collapses to Empty. Used where parts of the composite are optional,
	// like the location name chain.
	Sparse bool
}

// Key computes the composite key a KeySpec describes. For strict specs any
// absent or blank column collapses the key to Empty.
func (s KeySpec) Key(rec domain.Record) normalize.Key {
	parts := make([]normalize.Key, 0, len(s.Fields))
	for _, f := range s.Fields {
		v, ok := rec.Get(f.Column)
		if !ok && !s.Sparse {
			return normalize.Empty
		}
		parts = append(parts, normalize.Normalize(v.Text(), f.Kind))
	}
	if s.Sparse {
		return normalize.JoinSparse(parts...)
	}
	return normalize.Join(parts...)
}

// DefaultKeySpecs returns the priority-ordered match keys per entity type.
// Hosts key primarily on (source_id, host_type) because the same source id
// legitimately recurs across host types; field and bag ids are weaker
// fallbacks from older sheets that carried only one of them.
func DefaultKeySpecs() map[domain.EntityType][]KeySpec {
	return map[domain.EntityType][]KeySpec{
		domain.EntityLocation: {
			{Name: "place", Fields: []KeyField{
				{Column: "country", Kind: normalize.FieldText},
				{Column: "province", Kind: normalize.FieldText},
				{Column: "district", Kind: normalize.FieldText},
				{Column: "village", Kind: normalize.FieldText},
				{Column: "site_name", Kind: normalize.FieldText},
			}, Sparse: true},
		},
		domain.EntityTaxonomy: {
			{Name: "scientific_name", Fields: []KeyField{{Column: "scientific_name", Kind: normalize.FieldText}}},
		},
		domain.EntityHost: {
			{Name: "source_id+host_type", Fields: []KeyField{
				{Column: "source_id", Kind: normalize.FieldCode},
				{Column: "host_type", Kind: normalize.FieldText},
			}},
			{Name: "field_id", Fields: []KeyField{{Column: "field_id", Kind: normalize.FieldCode}}},
			{Name: "bag_id", Fields: []KeyField{{Column: "bag_id", Kind: normalize.FieldCode}}},
		},
		domain.EntityEnvironmentalSample: {
			{Name: "source_id", Fields: []KeyField{{Column: "source_id", Kind: normalize.FieldCode}}},
			{Name: "pool_id", Fields: []KeyField{{Column: "pool_id", Kind: normalize.FieldCode}}},
		},
		domain.EntitySample: {
			{Name: "source_id+sample_origin", Fields: []KeyField{
				{Column: "source_id", Kind: normalize.FieldCode},
				{Column: "sample_origin", Kind: normalize.FieldText},
			}},
			{Name: "saliva_id", Fields: []KeyField{{Column: "saliva_id", Kind: normalize.FieldCode}}},
			{Name: "anal_id", Fields: []KeyField{{Column: "anal_id", Kind: normalize.FieldCode}}},
			{Name: "urine_id", Fields: []KeyField{{Column: "urine_id", Kind: normalize.FieldCode}}},
			{Name: "ecto_id", Fields: []KeyField{{Column: "ecto_id", Kind: normalize.FieldCode}}},
			{Name: "blood_id", Fields: []KeyField{{Column: "blood_id", Kind: normalize.FieldCode}}},
			{Name: "plasma_id", Fields: []KeyField{{Column: "plasma_id", Kind: normalize.FieldCode}}},
			{Name: "tissue_id", Fields: []KeyField{{Column: "tissue_id", Kind: normalize.FieldCode}}},
			{Name: "intestine_id", Fields: []KeyField{{Column: "intestine_id", Kind: normalize.FieldCode}}},
			{Name: "adipose_id", Fields: []KeyField{{Column: "adipose_id", Kind: normalize.FieldCode}}},
		},
		domain.EntityScreening: {
			{Name: "tested_sample+test+date", Fields: []KeyField{
				{Column: "tested_sample_id", Kind: normalize.FieldCode},
				{Column: "test_type", Kind: normalize.FieldText},
				{Column: "screening_date", Kind: normalize.FieldCode},
			}, Sparse: true},
		},
		domain.EntityStorage: {
			{Name: "sample_tube_id", Fields: []KeyField{{Column: "sample_tube_id", Kind: normalize.FieldCode}}},
		},
	}
}

// Resolution is the outcome of matching one row against the entity index.
type Resolution struct {
	Matched bool
	ID      string
	// Spec names the winning key spec when Matched.
	Spec string
}

// Resolve matches a row against the transaction's entity index. Every spec
// is evaluated; if two specs match different existing entities the result is
// a ResolutionAmbiguityError. If no spec yields a usable key at all the
// result is a MatchKeyAbsentError, so the caller can record the row as a
// failure without aborting the file.
func Resolve(g *linkgraph.Graph, row domain.Row, specs []KeySpec) (Resolution, error) {
	matches := make(map[string]string)
	var (
		first    Resolution
		distinct []string
		usable   bool
	)
	for _, spec := range specs {
		key := spec.Key(row.Record)
		if key.IsEmpty() {
			continue
		}
		usable = true
		id, ok := g.Lookup(row.Entity, key)
		if !ok {
			continue
		}
		matches[spec.Name] = id
		if !first.Matched {
			first = Resolution{Matched: true, ID: id, Spec: spec.Name}
		}
		seen := false
		for _, d := range distinct {
			if d == id {
				seen = true
				break
			}
		}
		if !seen {
			distinct = append(distinct, id)
		}
	}
	if len(distinct) > 1 {
		return Resolution{}, domain.ResolutionAmbiguityError{Entity: row.Entity, RowIndex: row.Index, Matches: matches}
	}
	if !usable {
		return Resolution{}, domain.MatchKeyAbsentError{Entity: row.Entity, RowIndex: row.Index}
	}
	return first, nil
}

// IndexRecord registers every computable key of a record under the given
// entity id, so later rows in the same file can match the entity by any of
// its identifiers.
func IndexRecord(g *linkgraph.Graph, entity domain.EntityType, rec domain.Record, id string, specs []KeySpec) {
	for _, spec := range specs {
		if key := spec.Key(rec); !key.IsEmpty() {
			g.Index(entity, key, id)
		}
	}
}
