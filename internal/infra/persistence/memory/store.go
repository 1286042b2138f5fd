// Package memory provides the in-memory transactional store for the core
// domain. Mutations run against a cloned state and are swapped in only after
// the rules engine passes, so a failed import leaves no trace.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"virolink/pkg/domain"
)

type state struct {
	locations  map[string]domain.Location
	taxonomies map[string]domain.Taxonomy
	hosts      map[string]domain.Host
	envSamples map[string]domain.EnvironmentalSample
	samples    map[string]domain.Sample
	screenings map[string]domain.Screening
	storages   map[string]domain.Storage
}

func newState() state {
	return state{
		locations:  make(map[string]domain.Location),
		taxonomies: make(map[string]domain.Taxonomy),
		hosts:      make(map[string]domain.Host),
		envSamples: make(map[string]domain.EnvironmentalSample),
		samples:    make(map[string]domain.Sample),
		screenings: make(map[string]domain.Screening),
		storages:   make(map[string]domain.Storage),
	}
}

func (s state) clone() state {
	cloned := newState()
	for k, v := range s.locations {
		cloned.locations[k] = cloneLocation(v)
	}
	for k, v := range s.taxonomies {
		cloned.taxonomies[k] = v
	}
	for k, v := range s.hosts {
		cloned.hosts[k] = cloneHost(v)
	}
	for k, v := range s.envSamples {
		cloned.envSamples[k] = cloneEnvSample(v)
	}
	for k, v := range s.samples {
		cloned.samples[k] = cloneSample(v)
	}
	for k, v := range s.screenings {
		cloned.screenings[k] = cloneScreening(v)
	}
	for k, v := range s.storages {
		cloned.storages[k] = v
	}
	return cloned
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func cloneLocation(l domain.Location) domain.Location {
	cp := l
	cp.Latitude = clonePtr(l.Latitude)
	cp.Longitude = clonePtr(l.Longitude)
	cp.Altitude = clonePtr(l.Altitude)
	return cp
}

func cloneHost(h domain.Host) domain.Host {
	cp := h
	cp.LocationID = clonePtr(h.LocationID)
	cp.TaxonomyID = clonePtr(h.TaxonomyID)
	cp.CaptureDate = clonePtr(h.CaptureDate)
	cp.WeightG = clonePtr(h.WeightG)
	cp.ForearmMM = clonePtr(h.ForearmMM)
	return cp
}

func cloneEnvSample(e domain.EnvironmentalSample) domain.EnvironmentalSample {
	cp := e
	cp.LocationID = clonePtr(e.LocationID)
	return cp
}

func cloneSample(s domain.Sample) domain.Sample {
	cp := s
	cp.HostID = clonePtr(s.HostID)
	cp.EnvSampleID = clonePtr(s.EnvSampleID)
	cp.LocationID = clonePtr(s.LocationID)
	cp.CollectionDate = clonePtr(s.CollectionDate)
	return cp
}

func cloneScreening(sc domain.Screening) domain.Screening {
	cp := sc
	cp.SampleID = clonePtr(sc.SampleID)
	cp.EnvSampleID = clonePtr(sc.EnvSampleID)
	cp.ScreeningDate = clonePtr(sc.ScreeningDate)
	return cp
}

// Store is the in-memory transactional store.
type Store struct {
	mu     sync.RWMutex
	state  state
	engine *domain.RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an empty store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func newID() string { return uuid.NewString() }

// Tx is one clone-on-write mutation set.
type Tx struct {
	store   *Store
	state   state
	changes []domain.Change
	now     time.Time
}

type view struct {
	state *state
}

// RunInTransaction executes fn against a cloned state, evaluates the rules
// engine over the accumulated changes, and swaps the clone in only when no
// blocking violation and no error occurred.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	res, err := s.engine.Evaluate(ctx, view{state: &tx.state}, tx.changes)
	if err != nil {
		return domain.Result{}, err
	}
	if res.HasBlocking() {
		return res, domain.RuleViolationError{Result: res}
	}

	s.state = tx.state
	return res, nil
}

// View executes fn against a read-only snapshot of the current state.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(view{state: &snapshot})
}

// Snapshot exposes the transaction's working state to the resolver and the
// rules, including entities created earlier in the same transaction.
func (tx *Tx) Snapshot() domain.TransactionView {
	return view{state: &tx.state}
}

func (tx *Tx) recordChange(c domain.Change) {
	tx.changes = append(tx.changes, c)
}

// CreateLocation stores a new location within the transaction.
func (tx *Tx) CreateLocation(l domain.Location) (domain.Location, error) {
	if l.ID == "" {
		l.ID = newID()
	}
	if _, exists := tx.state.locations[l.ID]; exists {
		return domain.Location{}, fmt.Errorf("location %q already exists", l.ID)
	}
	l.CreatedAt = tx.now
	l.UpdatedAt = tx.now
	tx.state.locations[l.ID] = cloneLocation(l)
	tx.recordChange(domain.Change{Entity: domain.EntityLocation, Action: domain.ActionCreate, After: cloneLocation(l)})
	return cloneLocation(l), nil
}

// UpdateLocation mutates a location. Callers only use this for coordinate
// backfill; name fields are immutable once referenced, enforced by rule.
func (tx *Tx) UpdateLocation(id string, mutator func(*domain.Location) error) (domain.Location, error) {
	current, ok := tx.state.locations[id]
	if !ok {
		return domain.Location{}, domain.ErrNotFound{Entity: domain.EntityLocation, ID: id}
	}
	before := cloneLocation(current)
	if err := mutator(&current); err != nil {
		return domain.Location{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.locations[id] = cloneLocation(current)
	tx.recordChange(domain.Change{Entity: domain.EntityLocation, Action: domain.ActionUpdate, Before: before, After: cloneLocation(current)})
	return cloneLocation(current), nil
}

// CreateTaxonomy stores a new taxonomy row. Taxonomies have no update path:
// reference data is append-only.
func (tx *Tx) CreateTaxonomy(t domain.Taxonomy) (domain.Taxonomy, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	if _, exists := tx.state.taxonomies[t.ID]; exists {
		return domain.Taxonomy{}, fmt.Errorf("taxonomy %q already exists", t.ID)
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.taxonomies[t.ID] = t
	tx.recordChange(domain.Change{Entity: domain.EntityTaxonomy, Action: domain.ActionCreate, After: t})
	return t, nil
}

// CreateHost stores a new host within the transaction.
func (tx *Tx) CreateHost(h domain.Host) (domain.Host, error) {
	if h.ID == "" {
		h.ID = newID()
	}
	if _, exists := tx.state.hosts[h.ID]; exists {
		return domain.Host{}, fmt.Errorf("host %q already exists", h.ID)
	}
	h.CreatedAt = tx.now
	h.UpdatedAt = tx.now
	tx.state.hosts[h.ID] = cloneHost(h)
	tx.recordChange(domain.Change{Entity: domain.EntityHost, Action: domain.ActionCreate, After: cloneHost(h)})
	return cloneHost(h), nil
}

// UpdateHost mutates a host using the provided mutator.
func (tx *Tx) UpdateHost(id string, mutator func(*domain.Host) error) (domain.Host, error) {
	current, ok := tx.state.hosts[id]
	if !ok {
		return domain.Host{}, domain.ErrNotFound{Entity: domain.EntityHost, ID: id}
	}
	before := cloneHost(current)
	if err := mutator(&current); err != nil {
		return domain.Host{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.hosts[id] = cloneHost(current)
	tx.recordChange(domain.Change{Entity: domain.EntityHost, Action: domain.ActionUpdate, Before: before, After: cloneHost(current)})
	return cloneHost(current), nil
}

// CreateEnvironmentalSample stores a new environmental pool.
func (tx *Tx) CreateEnvironmentalSample(e domain.EnvironmentalSample) (domain.EnvironmentalSample, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	if _, exists := tx.state.envSamples[e.ID]; exists {
		return domain.EnvironmentalSample{}, fmt.Errorf("environmental sample %q already exists", e.ID)
	}
	e.CreatedAt = tx.now
	e.UpdatedAt = tx.now
	tx.state.envSamples[e.ID] = cloneEnvSample(e)
	tx.recordChange(domain.Change{Entity: domain.EntityEnvironmentalSample, Action: domain.ActionCreate, After: cloneEnvSample(e)})
	return cloneEnvSample(e), nil
}

// UpdateEnvironmentalSample mutates an environmental pool.
func (tx *Tx) UpdateEnvironmentalSample(id string, mutator func(*domain.EnvironmentalSample) error) (domain.EnvironmentalSample, error) {
	current, ok := tx.state.envSamples[id]
	if !ok {
		return domain.EnvironmentalSample{}, domain.ErrNotFound{Entity: domain.EntityEnvironmentalSample, ID: id}
	}
	before := cloneEnvSample(current)
	if err := mutator(&current); err != nil {
		return domain.EnvironmentalSample{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.envSamples[id] = cloneEnvSample(current)
	tx.recordChange(domain.Change{Entity: domain.EntityEnvironmentalSample, Action: domain.ActionUpdate, Before: before, After: cloneEnvSample(current)})
	return cloneEnvSample(current), nil
}

// CreateSample stores a new sample within the transaction.
func (tx *Tx) CreateSample(sm domain.Sample) (domain.Sample, error) {
	if sm.ID == "" {
		sm.ID = newID()
	}
	if _, exists := tx.state.samples[sm.ID]; exists {
		return domain.Sample{}, fmt.Errorf("sample %q already exists", sm.ID)
	}
	sm.CreatedAt = tx.now
	sm.UpdatedAt = tx.now
	tx.state.samples[sm.ID] = cloneSample(sm)
	tx.recordChange(domain.Change{Entity: domain.EntitySample, Action: domain.ActionCreate, After: cloneSample(sm)})
	return cloneSample(sm), nil
}

// UpdateSample mutates a sample using the provided mutator.
func (tx *Tx) UpdateSample(id string, mutator func(*domain.Sample) error) (domain.Sample, error) {
	current, ok := tx.state.samples[id]
	if !ok {
		return domain.Sample{}, domain.ErrNotFound{Entity: domain.EntitySample, ID: id}
	}
	before := cloneSample(current)
	if err := mutator(&current); err != nil {
		return domain.Sample{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.samples[id] = cloneSample(current)
	tx.recordChange(domain.Change{Entity: domain.EntitySample, Action: domain.ActionUpdate, Before: before, After: cloneSample(current)})
	return cloneSample(current), nil
}

// CreateScreening stores a new screening result.
func (tx *Tx) CreateScreening(sc domain.Screening) (domain.Screening, error) {
	if sc.ID == "" {
		sc.ID = newID()
	}
	if _, exists := tx.state.screenings[sc.ID]; exists {
		return domain.Screening{}, fmt.Errorf("screening %q already exists", sc.ID)
	}
	sc.CreatedAt = tx.now
	sc.UpdatedAt = tx.now
	tx.state.screenings[sc.ID] = cloneScreening(sc)
	tx.recordChange(domain.Change{Entity: domain.EntityScreening, Action: domain.ActionCreate, After: cloneScreening(sc)})
	return cloneScreening(sc), nil
}

// UpdateScreening mutates a screening result.
func (tx *Tx) UpdateScreening(id string, mutator func(*domain.Screening) error) (domain.Screening, error) {
	current, ok := tx.state.screenings[id]
	if !ok {
		return domain.Screening{}, domain.ErrNotFound{Entity: domain.EntityScreening, ID: id}
	}
	before := cloneScreening(current)
	if err := mutator(&current); err != nil {
		return domain.Screening{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.screenings[id] = cloneScreening(current)
	tx.recordChange(domain.Change{Entity: domain.EntityScreening, Action: domain.ActionUpdate, Before: before, After: cloneScreening(current)})
	return cloneScreening(current), nil
}

// CreateStorage appends a new storage assignment.
func (tx *Tx) CreateStorage(st domain.Storage) (domain.Storage, error) {
	if st.ID == "" {
		st.ID = newID()
	}
	if _, exists := tx.state.storages[st.ID]; exists {
		return domain.Storage{}, fmt.Errorf("storage %q already exists", st.ID)
	}
	st.CreatedAt = tx.now
	st.UpdatedAt = tx.now
	tx.state.storages[st.ID] = st
	tx.recordChange(domain.Change{Entity: domain.EntityStorage, Action: domain.ActionCreate, After: st})
	return st, nil
}

// UpdateStorage mutates a storage row. Used to demote the current flag when a
// tube moves; position fields of historical rows stay untouched.
func (tx *Tx) UpdateStorage(id string, mutator func(*domain.Storage) error) (domain.Storage, error) {
	current, ok := tx.state.storages[id]
	if !ok {
		return domain.Storage{}, domain.ErrNotFound{Entity: domain.EntityStorage, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.Storage{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.storages[id] = current
	tx.recordChange(domain.Change{Entity: domain.EntityStorage, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// FindHost retrieves a host from the transaction's working state.
func (tx *Tx) FindHost(id string) (domain.Host, bool) {
	h, ok := tx.state.hosts[id]
	if !ok {
		return domain.Host{}, false
	}
	return cloneHost(h), true
}

// FindSample retrieves a sample from the transaction's working state.
func (tx *Tx) FindSample(id string) (domain.Sample, bool) {
	sm, ok := tx.state.samples[id]
	if !ok {
		return domain.Sample{}, false
	}
	return cloneSample(sm), true
}

// FindEnvironmentalSample retrieves an environmental pool from the working state.
func (tx *Tx) FindEnvironmentalSample(id string) (domain.EnvironmentalSample, bool) {
	e, ok := tx.state.envSamples[id]
	if !ok {
		return domain.EnvironmentalSample{}, false
	}
	return cloneEnvSample(e), true
}

var _ domain.Transaction = (*Tx)(nil)
var _ domain.PersistentStore = (*Store)(nil)
