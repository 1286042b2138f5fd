package importer

import (
	"fmt"

	"virolink/internal/linkgraph"
	"virolink/internal/resolve"
	"virolink/pkg/domain"
)

// seedGraph rebuilds the entity index and relationship edges from the
// transaction snapshot. The graph never outlives its transaction, so there
// is no cross-import cache to go stale.
func (c *Coordinator) seedGraph(g *linkgraph.Graph, view domain.TransactionView) error {
	for _, l := range view.ListLocations() {
		resolve.IndexRecord(g, domain.EntityLocation, locationRecord(l), l.ID, c.specsFor(domain.EntityLocation))
	}
	for _, t := range view.ListTaxonomies() {
		resolve.IndexRecord(g, domain.EntityTaxonomy, taxonomyRecord(t), t.ID, c.specsFor(domain.EntityTaxonomy))
	}
	for _, h := range view.ListHosts() {
		resolve.IndexRecord(g, domain.EntityHost, hostRecord(h), h.ID, c.specsFor(domain.EntityHost))
		if h.LocationID != nil && *h.LocationID != "" {
			if err := g.RegisterLink(domain.EntityLocation, *h.LocationID, domain.EntityHost, h.ID, linkgraph.RelHostLocation); err != nil {
				return fmt.Errorf("seed host %s: %w", h.ID, err)
			}
		}
		if h.TaxonomyID != nil && *h.TaxonomyID != "" {
			if err := g.RegisterLink(domain.EntityTaxonomy, *h.TaxonomyID, domain.EntityHost, h.ID, linkgraph.RelHostTaxonomy); err != nil {
				return fmt.Errorf("seed host %s: %w", h.ID, err)
			}
		}
	}
	for _, e := range view.ListEnvironmentalSamples() {
		resolve.IndexRecord(g, domain.EntityEnvironmentalSample, envSampleRecord(e), e.ID, c.specsFor(domain.EntityEnvironmentalSample))
		if e.LocationID != nil && *e.LocationID != "" {
			if err := g.RegisterLink(domain.EntityLocation, *e.LocationID, domain.EntityEnvironmentalSample, e.ID, linkgraph.RelEnvironmentalLocation); err != nil {
				return fmt.Errorf("seed environmental sample %s: %w", e.ID, err)
			}
		}
	}
	for _, s := range view.ListSamples() {
		resolve.IndexRecord(g, domain.EntitySample, sampleRecord(s), s.ID, c.specsFor(domain.EntitySample))
		if s.HostID != nil && *s.HostID != "" {
			if err := g.RegisterLink(domain.EntityHost, *s.HostID, domain.EntitySample, s.ID, linkgraph.RelSampleHost); err != nil {
				return fmt.Errorf("seed sample %s: %w", s.ID, err)
			}
		}
		if s.EnvSampleID != nil && *s.EnvSampleID != "" {
			if err := g.RegisterLink(domain.EntityEnvironmentalSample, *s.EnvSampleID, domain.EntitySample, s.ID, linkgraph.RelSampleEnvironmental); err != nil {
				return fmt.Errorf("seed sample %s: %w", s.ID, err)
			}
		}
	}
	for _, sc := range view.ListScreenings() {
		resolve.IndexRecord(g, domain.EntityScreening, screeningRecord(sc), sc.ID, c.specsFor(domain.EntityScreening))
		if sc.SampleID != nil && *sc.SampleID != "" {
			if err := g.RegisterLink(domain.EntitySample, *sc.SampleID, domain.EntityScreening, sc.ID, linkgraph.RelScreeningSample); err != nil {
				return fmt.Errorf("seed screening %s: %w", sc.ID, err)
			}
		}
		if sc.EnvSampleID != nil && *sc.EnvSampleID != "" {
			if err := g.RegisterLink(domain.EntityEnvironmentalSample, *sc.EnvSampleID, domain.EntityScreening, sc.ID, linkgraph.RelScreeningEnvironmental); err != nil {
				return fmt.Errorf("seed screening %s: %w", sc.ID, err)
			}
		}
	}
	for _, st := range view.ListStorages() {
		// Only the current row is matchable by tube id; history stays put.
		if st.Current {
			resolve.IndexRecord(g, domain.EntityStorage, storageRecord(st), st.ID, c.specsFor(domain.EntityStorage))
		}
		if st.SampleID != "" {
			if err := g.RegisterLink(domain.EntitySample, st.SampleID, domain.EntityStorage, st.ID, linkgraph.RelStorageSample); err != nil {
				return fmt.Errorf("seed storage %s: %w", st.ID, err)
			}
		}
	}
	return nil
}
