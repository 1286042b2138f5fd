// Package linkgraph maintains the per-import entity index and the
// relationship registry. The index maps normalized match keys to entity
// identifiers for one transaction; the registry declares which parent/child
// edges exist and with what cardinality, so cardinality rules live in one
// place instead of being restated at every join site.
package linkgraph

import (
	"fmt"

	"virolink/internal/normalize"
	"virolink/pkg/domain"
)

// Ref identifies an entity within the graph.
type Ref struct {
	Entity domain.EntityType
	ID     string
}

// State tracks an entity's progress through one import transaction.
type State int

const (
	// StateUnresolved is the zero state: the entity is not yet known.
	StateUnresolved State = iota
	// StateIndexed means the entity was created or matched and its match
	// keys are registered in the index.
	StateIndexed
	// StateLinked means at least one required relationship is attached.
	StateLinked
	// StateCommitted means the enclosing transaction closed successfully.
	StateCommitted
	// StateDiscarded means the enclosing transaction rolled back.
	StateDiscarded
)

func (s State) String() string {
	switch s {
	case StateIndexed:
		return "indexed"
	case StateLinked:
		return "linked"
	case StateCommitted:
		return "committed"
	case StateDiscarded:
		return "discarded"
	default:
		return "unresolved"
	}
}

// Cardinality constrains how many parents a child may attach per relationship.
type Cardinality int

const (
	// ManyToOne allows each child exactly one parent of the relationship's
	// parent type. Attaching a second distinct parent is rejected.
	ManyToOne Cardinality = iota
	// ManyToMany allows any number of edges in both directions.
	ManyToMany
)

// RelationshipKind names a declared edge type between two entity types.
type RelationshipKind string

const (
	RelSampleHost             RelationshipKind = "sample_of_host"
	RelSampleEnvironmental    RelationshipKind = "sample_of_environmental"
	RelScreeningSample        RelationshipKind = "screening_of_sample"
	RelScreeningEnvironmental RelationshipKind = "screening_of_environmental"
	RelStorageSample          RelationshipKind = "storage_of_sample"
	RelHostLocation           RelationshipKind = "host_at_location"
	RelHostTaxonomy           RelationshipKind = "host_of_taxonomy"
	RelEnvironmentalLocation  RelationshipKind = "environmental_at_location"
)

// Relationship declares a parent/child edge type with its cardinality.
type Relationship struct {
	Kind        RelationshipKind
	ParentType  domain.EntityType
	ChildType   domain.EntityType
	Cardinality Cardinality
}

// DefaultRelationships lists every edge the import pipeline registers.
func DefaultRelationships() []Relationship {
	return []Relationship{
		{Kind: RelSampleHost, ParentType: domain.EntityHost, ChildType: domain.EntitySample, Cardinality: ManyToOne},
		{Kind: RelSampleEnvironmental, ParentType: domain.EntityEnvironmentalSample, ChildType: domain.EntitySample, Cardinality: ManyToOne},
		{Kind: RelScreeningSample, ParentType: domain.EntitySample, ChildType: domain.EntityScreening, Cardinality: ManyToOne},
		{Kind: RelScreeningEnvironmental, ParentType: domain.EntityEnvironmentalSample, ChildType: domain.EntityScreening, Cardinality: ManyToOne},
		{Kind: RelStorageSample, ParentType: domain.EntitySample, ChildType: domain.EntityStorage, Cardinality: ManyToOne},
		{Kind: RelHostLocation, ParentType: domain.EntityLocation, ChildType: domain.EntityHost, Cardinality: ManyToOne},
		{Kind: RelHostTaxonomy, ParentType: domain.EntityTaxonomy, ChildType: domain.EntityHost, Cardinality: ManyToOne},
		{Kind: RelEnvironmentalLocation, ParentType: domain.EntityLocation, ChildType: domain.EntityEnvironmentalSample, Cardinality: ManyToOne},
	}
}

// CardinalityError reports an attempt to attach a second parent to a child
// whose relationship is declared many-to-one.
type CardinalityError struct {
	Kind     RelationshipKind
	Child    Ref
	Existing string
	Incoming string
}

func (e CardinalityError) Error() string {
	return fmt.Sprintf("linkgraph: relationship %s allows one parent per %s, child %s already linked to %s, refusing %s",
		e.Kind, e.Child.Entity, e.Child.ID, e.Existing, e.Incoming)
}

// UndeclaredRelationshipError reports a registerLink call for an edge type
// that was never declared, or declared with different endpoint types.
type UndeclaredRelationshipError struct {
	Kind   RelationshipKind
	Parent domain.EntityType
	Child  domain.EntityType
}

func (e UndeclaredRelationshipError) Error() string {
	return fmt.Sprintf("linkgraph: no declared relationship %s from %s to %s", e.Kind, e.Parent, e.Child)
}

// Graph is the per-transaction entity index plus registered edges. It is
// exclusively owned by one import transaction and rebuilt from the persisted
// store for the next one; it is not safe for concurrent use.
type Graph struct {
	relationships map[RelationshipKind]Relationship
	index         map[domain.EntityType]map[normalize.Key]string
	// parents[child][kind] holds the single parent for many-to-one edges.
	parents map[Ref]map[RelationshipKind]string
	edges   map[RelationshipKind]map[string][]string
	states  map[Ref]State
	// shared holds match keys claimed by more than one entity. A shared key
	// never resolves; matching on it would depend on indexing order.
	shared map[domain.EntityType]map[normalize.Key]struct{}
}

// New builds an empty graph with the given declared relationships.
func New(relationships []Relationship) *Graph {
	g := &Graph{
		relationships: make(map[RelationshipKind]Relationship, len(relationships)),
		index:         make(map[domain.EntityType]map[normalize.Key]string),
		parents:       make(map[Ref]map[RelationshipKind]string),
		edges:         make(map[RelationshipKind]map[string][]string),
		states:        make(map[Ref]State),
		shared:        make(map[domain.EntityType]map[normalize.Key]struct{}),
	}
	for _, rel := range relationships {
		g.relationships[rel.Kind] = rel
	}
	return g
}

// Index registers a normalized match key for an entity and moves it to
// Indexed. Empty keys are ignored so blank identifiers can never collide.
// Re-indexing the same key for the same entity is a no-op. A key claimed by
// two distinct entities is retired from the index entirely: a weak key like
// field_id shared by two persisted hosts must not match either of them, or
// resolution would depend on indexing order.
func (g *Graph) Index(entity domain.EntityType, key normalize.Key, id string) {
	g.markAtLeast(Ref{Entity: entity, ID: id}, StateIndexed)
	if key.IsEmpty() {
		return
	}
	if _, dup := g.shared[entity][key]; dup {
		return
	}
	bucket := g.index[entity]
	if bucket == nil {
		bucket = make(map[normalize.Key]string)
		g.index[entity] = bucket
	}
	if existing, ok := bucket[key]; ok && existing != id {
		delete(bucket, key)
		if g.shared[entity] == nil {
			g.shared[entity] = make(map[normalize.Key]struct{})
		}
		g.shared[entity][key] = struct{}{}
		return
	}
	bucket[key] = id
}

// Reassign hands a match key over to a new entity id. Demote-and-append
// flows use it when a successor row legitimately takes over its
// predecessor's key, which Index would otherwise treat as a collision.
func (g *Graph) Reassign(entity domain.EntityType, key normalize.Key, id string) {
	g.markAtLeast(Ref{Entity: entity, ID: id}, StateIndexed)
	if key.IsEmpty() {
		return
	}
	delete(g.shared[entity], key)
	bucket := g.index[entity]
	if bucket == nil {
		bucket = make(map[normalize.Key]string)
		g.index[entity] = bucket
	}
	bucket[key] = id
}

// Lookup returns the entity id registered for a match key, if any.
func (g *Graph) Lookup(entity domain.EntityType, key normalize.Key) (string, bool) {
	if key.IsEmpty() {
		return "", false
	}
	id, ok := g.index[entity][key]
	return id, ok
}

// RegisterLink records an edge between a parent and child entity, enforcing
// the declared cardinality. Registering an identical edge twice is a no-op.
func (g *Graph) RegisterLink(parentType domain.EntityType, parentID string, childType domain.EntityType, childID string, kind RelationshipKind) error {
	rel, ok := g.relationships[kind]
	if !ok || rel.ParentType != parentType || rel.ChildType != childType {
		return UndeclaredRelationshipError{Kind: kind, Parent: parentType, Child: childType}
	}
	child := Ref{Entity: childType, ID: childID}
	if rel.Cardinality == ManyToOne {
		byKind := g.parents[child]
		if byKind == nil {
			byKind = make(map[RelationshipKind]string)
			g.parents[child] = byKind
		}
		if existing, linked := byKind[kind]; linked {
			if existing == parentID {
				return nil
			}
			return CardinalityError{Kind: kind, Child: child, Existing: existing, Incoming: parentID}
		}
		byKind[kind] = parentID
	} else {
		children := g.edges[kind]
		if children == nil {
			children = make(map[string][]string)
			g.edges[kind] = children
		}
		for _, existing := range children[parentID] {
			if existing == childID {
				return nil
			}
		}
		children[parentID] = append(children[parentID], childID)
	}
	g.markAtLeast(child, StateLinked)
	g.markAtLeast(Ref{Entity: parentType, ID: parentID}, StateIndexed)
	return nil
}

// FindParent returns the parent id linked to a child for the given parent
// type, searching the declared many-to-one relationships. Screening and
// storage insertion use this to verify the referenced sample exists.
func (g *Graph) FindParent(childType domain.EntityType, childID string, parentType domain.EntityType) (string, error) {
	child := Ref{Entity: childType, ID: childID}
	for kind, parentID := range g.parents[child] {
		if g.relationships[kind].ParentType == parentType {
			return parentID, nil
		}
	}
	return "", domain.ErrNotFound{Entity: parentType, ID: childID}
}

// StateOf reports the entity's current state; unknown entities are Unresolved.
func (g *Graph) StateOf(entity domain.EntityType, id string) State {
	return g.states[Ref{Entity: entity, ID: id}]
}

// MarkLinked promotes an entity to Linked without registering an edge, for
// entity types whose required relationships live outside the graph.
func (g *Graph) MarkLinked(entity domain.EntityType, id string) {
	g.markAtLeast(Ref{Entity: entity, ID: id}, StateLinked)
}

// Commit moves every tracked entity to Committed. Called once after the
// enclosing transaction persists successfully.
func (g *Graph) Commit() {
	for ref := range g.states {
		g.states[ref] = StateCommitted
	}
}

// Discard moves every tracked entity to Discarded after a rollback.
func (g *Graph) Discard() {
	for ref := range g.states {
		g.states[ref] = StateDiscarded
	}
}

// markAtLeast advances an entity's state monotonically. Committed and
// Discarded are terminal.
func (g *Graph) markAtLeast(ref Ref, s State) {
	cur := g.states[ref]
	if cur == StateCommitted || cur == StateDiscarded {
		return
	}
	if s > cur {
		g.states[ref] = s
	}
}
