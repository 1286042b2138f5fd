package memory

import "virolink/pkg/domain"

// Snapshot captures a point-in-time clone of the store state. Durable
// backends export it after each committed transaction and import it at open.
type Snapshot struct {
	Locations  map[string]domain.Location            `json:"locations"`
	Taxonomies map[string]domain.Taxonomy            `json:"taxonomies"`
	Hosts      map[string]domain.Host                `json:"hosts"`
	EnvSamples map[string]domain.EnvironmentalSample `json:"environmental_samples"`
	Samples    map[string]domain.Sample              `json:"samples"`
	Screenings map[string]domain.Screening           `json:"screenings"`
	Storages   map[string]domain.Storage             `json:"storages"`
}

func snapshotFromState(st state) Snapshot {
	s := Snapshot{
		Locations:  make(map[string]domain.Location, len(st.locations)),
		Taxonomies: make(map[string]domain.Taxonomy, len(st.taxonomies)),
		Hosts:      make(map[string]domain.Host, len(st.hosts)),
		EnvSamples: make(map[string]domain.EnvironmentalSample, len(st.envSamples)),
		Samples:    make(map[string]domain.Sample, len(st.samples)),
		Screenings: make(map[string]domain.Screening, len(st.screenings)),
		Storages:   make(map[string]domain.Storage, len(st.storages)),
	}
	for k, v := range st.locations {
		s.Locations[k] = cloneLocation(v)
	}
	for k, v := range st.taxonomies {
		s.Taxonomies[k] = v
	}
	for k, v := range st.hosts {
		s.Hosts[k] = cloneHost(v)
	}
	for k, v := range st.envSamples {
		s.EnvSamples[k] = cloneEnvSample(v)
	}
	for k, v := range st.samples {
		s.Samples[k] = cloneSample(v)
	}
	for k, v := range st.screenings {
		s.Screenings[k] = cloneScreening(v)
	}
	for k, v := range st.storages {
		s.Storages[k] = v
	}
	return s
}

func stateFromSnapshot(s Snapshot) state {
	st := newState()
	for k, v := range s.Locations {
		st.locations[k] = cloneLocation(v)
	}
	for k, v := range s.Taxonomies {
		st.taxonomies[k] = v
	}
	for k, v := range s.Hosts {
		st.hosts[k] = cloneHost(v)
	}
	for k, v := range s.EnvSamples {
		st.envSamples[k] = cloneEnvSample(v)
	}
	for k, v := range s.Samples {
		st.samples[k] = cloneSample(v)
	}
	for k, v := range s.Screenings {
		st.screenings[k] = cloneScreening(v)
	}
	for k, v := range s.Storages {
		st.storages[k] = v
	}
	return st
}

// ExportState returns a deep copy of the committed state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromState(s.state)
}

// ImportState replaces the committed state with the snapshot's contents.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateFromSnapshot(snapshot)
}
