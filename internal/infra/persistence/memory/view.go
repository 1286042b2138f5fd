package memory

import "virolink/pkg/domain"

// Read-side accessors. Views return clones so callers can never reach into
// live state.

func (v view) ListLocations() []domain.Location {
	out := make([]domain.Location, 0, len(v.state.locations))
	for _, l := range v.state.locations {
		out = append(out, cloneLocation(l))
	}
	return out
}

func (v view) ListTaxonomies() []domain.Taxonomy {
	out := make([]domain.Taxonomy, 0, len(v.state.taxonomies))
	for _, t := range v.state.taxonomies {
		out = append(out, t)
	}
	return out
}

func (v view) ListHosts() []domain.Host {
	out := make([]domain.Host, 0, len(v.state.hosts))
	for _, h := range v.state.hosts {
		out = append(out, cloneHost(h))
	}
	return out
}

func (v view) ListEnvironmentalSamples() []domain.EnvironmentalSample {
	out := make([]domain.EnvironmentalSample, 0, len(v.state.envSamples))
	for _, e := range v.state.envSamples {
		out = append(out, cloneEnvSample(e))
	}
	return out
}

func (v view) ListSamples() []domain.Sample {
	out := make([]domain.Sample, 0, len(v.state.samples))
	for _, sm := range v.state.samples {
		out = append(out, cloneSample(sm))
	}
	return out
}

func (v view) ListScreenings() []domain.Screening {
	out := make([]domain.Screening, 0, len(v.state.screenings))
	for _, sc := range v.state.screenings {
		out = append(out, cloneScreening(sc))
	}
	return out
}

func (v view) ListStorages() []domain.Storage {
	out := make([]domain.Storage, 0, len(v.state.storages))
	for _, st := range v.state.storages {
		out = append(out, st)
	}
	return out
}

func (v view) FindLocation(id string) (domain.Location, bool) {
	l, ok := v.state.locations[id]
	if !ok {
		return domain.Location{}, false
	}
	return cloneLocation(l), true
}

func (v view) FindTaxonomy(id string) (domain.Taxonomy, bool) {
	t, ok := v.state.taxonomies[id]
	return t, ok
}

func (v view) FindHost(id string) (domain.Host, bool) {
	h, ok := v.state.hosts[id]
	if !ok {
		return domain.Host{}, false
	}
	return cloneHost(h), true
}

func (v view) FindEnvironmentalSample(id string) (domain.EnvironmentalSample, bool) {
	e, ok := v.state.envSamples[id]
	if !ok {
		return domain.EnvironmentalSample{}, false
	}
	return cloneEnvSample(e), true
}

func (v view) FindSample(id string) (domain.Sample, bool) {
	sm, ok := v.state.samples[id]
	if !ok {
		return domain.Sample{}, false
	}
	return cloneSample(sm), true
}

func (v view) FindScreening(id string) (domain.Screening, bool) {
	sc, ok := v.state.screenings[id]
	if !ok {
		return domain.Screening{}, false
	}
	return cloneScreening(sc), true
}

func (v view) FindStorage(id string) (domain.Storage, bool) {
	st, ok := v.state.storages[id]
	return st, ok
}

var _ domain.TransactionView = view{}

// GetLocation retrieves a location from committed state.
func (s *Store) GetLocation(id string) (domain.Location, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.state.locations[id]
	if !ok {
		return domain.Location{}, false
	}
	return cloneLocation(l), true
}

// GetHost retrieves a host from committed state.
func (s *Store) GetHost(id string) (domain.Host, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.state.hosts[id]
	if !ok {
		return domain.Host{}, false
	}
	return cloneHost(h), true
}

// GetSample retrieves a sample from committed state.
func (s *Store) GetSample(id string) (domain.Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sm, ok := s.state.samples[id]
	if !ok {
		return domain.Sample{}, false
	}
	return cloneSample(sm), true
}

// ListLocations returns all committed locations.
func (s *Store) ListLocations() []domain.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListLocations()
}

// ListTaxonomies returns all committed taxonomies.
func (s *Store) ListTaxonomies() []domain.Taxonomy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListTaxonomies()
}

// ListHosts returns all committed hosts.
func (s *Store) ListHosts() []domain.Host {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListHosts()
}

// ListEnvironmentalSamples returns all committed environmental pools.
func (s *Store) ListEnvironmentalSamples() []domain.EnvironmentalSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListEnvironmentalSamples()
}

// ListSamples returns all committed samples.
func (s *Store) ListSamples() []domain.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListSamples()
}

// ListScreenings returns all committed screening results.
func (s *Store) ListScreenings() []domain.Screening {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListScreenings()
}

// ListStorages returns all committed storage assignments.
func (s *Store) ListStorages() []domain.Storage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListStorages()
}
