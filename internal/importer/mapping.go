package importer

import (
	"virolink/pkg/domain"
)

// Column sets per entity. Conflict detection runs on the projection of an
// incoming row onto these columns, so that reference columns riding along on
// a host sheet (scientific_name, country, ...) do not count as host changes.

var locationColumns = []string{
	"country", "province", "district", "village", "site_name",
	"latitude", "longitude", "altitude", "habitat_description",
}

var taxonomyColumns = []string{
	"kingdom", "phylum", "class", "order_name", "family", "genus",
	"species", "scientific_name", "common_name",
}

var hostColumns = []string{
	"source_id", "host_type", "bag_id", "field_id", "collection_id",
	"capture_date", "capture_time", "trap_type", "collectors",
	"sex", "status", "age", "ring_no", "recapture",
	"weight_g", "forearm_mm", "ecology", "interface_type", "use_for", "notes",
}

var envSampleColumns = []string{"source_id", "pool_id"}

var sampleColumns = []string{
	"source_id", "sample_origin", "collection_date",
	"saliva_id", "anal_id", "urine_id", "ecto_id", "blood_id", "plasma_id",
	"tissue_id", "tissue_sample_type", "intestine_id", "adipose_id", "remark",
}

var screeningColumns = []string{
	"tested_sample_id", "sample_type", "test_type", "screening_date",
	"screening_method", "pan_corona", "hantavirus", "coronavirus",
	"other_virus", "result", "notes",
}

var storageColumns = []string{
	"sample_tube_id", "storage_unit_id", "rack_position", "spot_position", "notes",
}

// project returns the subset of rec limited to the given columns.
func project(rec domain.Record, columns []string) domain.Record {
	out := make(domain.Record, len(columns))
	for _, col := range columns {
		if v, ok := rec.Get(col); ok {
			out[col] = v
		}
	}
	return out
}

// Record builders render stored entities in the same tagged-value shape the
// spreadsheet parser produces, so the conflict detector compares like with
// like. Unset fields are omitted, not nulled: an entity that never carried a
// value has nothing to defend.

func putString(rec domain.Record, col, v string) {
	if v != "" {
		rec[col] = domain.StringValue(v)
	}
}

func putFloat(rec domain.Record, col string, v *float64) {
	if v != nil {
		rec[col] = domain.NumberValue(*v)
	}
}

func locationRecord(l domain.Location) domain.Record {
	rec := domain.Record{}
	putString(rec, "country", l.Country)
	putString(rec, "province", l.Province)
	putString(rec, "district", l.District)
	putString(rec, "village", l.Village)
	putString(rec, "site_name", l.SiteName)
	putFloat(rec, "latitude", l.Latitude)
	putFloat(rec, "longitude", l.Longitude)
	putFloat(rec, "altitude", l.Altitude)
	putString(rec, "habitat_description", l.HabitatDescription)
	return rec
}

func taxonomyRecord(t domain.Taxonomy) domain.Record {
	rec := domain.Record{}
	putString(rec, "kingdom", t.Kingdom)
	putString(rec, "phylum", t.Phylum)
	putString(rec, "class", t.Class)
	putString(rec, "order_name", t.OrderName)
	putString(rec, "family", t.Family)
	putString(rec, "genus", t.Genus)
	putString(rec, "species", t.Species)
	putString(rec, "scientific_name", t.ScientificName)
	putString(rec, "common_name", t.CommonName)
	return rec
}

func hostRecord(h domain.Host) domain.Record {
	rec := domain.Record{}
	putString(rec, "source_id", h.SourceID)
	putString(rec, "host_type", string(h.HostType))
	putString(rec, "bag_id", h.BagID)
	putString(rec, "field_id", h.FieldID)
	putString(rec, "collection_id", h.CollectionID)
	if h.CaptureDate != nil {
		rec["capture_date"] = domain.DateValue(*h.CaptureDate)
	}
	putString(rec, "capture_time", h.CaptureTime)
	putString(rec, "trap_type", h.TrapType)
	putString(rec, "collectors", h.Collectors)
	putString(rec, "sex", h.Sex)
	putString(rec, "status", h.Status)
	putString(rec, "age", h.Age)
	putString(rec, "ring_no", h.RingNo)
	putString(rec, "recapture", h.Recapture)
	putFloat(rec, "weight_g", h.WeightG)
	putFloat(rec, "forearm_mm", h.ForearmMM)
	putString(rec, "ecology", h.Ecology)
	putString(rec, "interface_type", h.InterfaceType)
	putString(rec, "use_for", h.UseFor)
	putString(rec, "notes", h.Notes)
	return rec
}

func envSampleRecord(e domain.EnvironmentalSample) domain.Record {
	rec := domain.Record{}
	putString(rec, "source_id", e.SourceID)
	putString(rec, "pool_id", e.PoolID)
	return rec
}

func sampleRecord(s domain.Sample) domain.Record {
	rec := domain.Record{}
	putString(rec, "source_id", s.SourceID)
	putString(rec, "sample_origin", s.SampleOrigin)
	if s.CollectionDate != nil {
		rec["collection_date"] = domain.DateValue(*s.CollectionDate)
	}
	putString(rec, "saliva_id", s.SalivaID)
	putString(rec, "anal_id", s.AnalID)
	putString(rec, "urine_id", s.UrineID)
	putString(rec, "ecto_id", s.EctoID)
	putString(rec, "blood_id", s.BloodID)
	putString(rec, "plasma_id", s.PlasmaID)
	putString(rec, "tissue_id", s.TissueID)
	putString(rec, "tissue_sample_type", s.TissueSampleType)
	putString(rec, "intestine_id", s.IntestineID)
	putString(rec, "adipose_id", s.AdiposeID)
	putString(rec, "remark", s.Remark)
	return rec
}

func screeningRecord(sc domain.Screening) domain.Record {
	rec := domain.Record{}
	putString(rec, "tested_sample_id", sc.TestedSampleID)
	putString(rec, "sample_type", sc.SampleType)
	putString(rec, "test_type", sc.TestType)
	if sc.ScreeningDate != nil {
		rec["screening_date"] = domain.DateValue(*sc.ScreeningDate)
	}
	putString(rec, "screening_method", sc.ScreeningMethod)
	putString(rec, "pan_corona", sc.PanCorona)
	putString(rec, "hantavirus", sc.Hantavirus)
	putString(rec, "coronavirus", sc.Coronavirus)
	putString(rec, "other_virus", sc.OtherVirus)
	putString(rec, "result", sc.Result)
	putString(rec, "notes", sc.Notes)
	return rec
}

func storageRecord(st domain.Storage) domain.Record {
	rec := domain.Record{}
	putString(rec, "sample_tube_id", st.SampleTubeID)
	putString(rec, "storage_unit_id", st.StorageUnitID)
	putString(rec, "rack_position", st.RackPosition)
	putString(rec, "spot_position", st.SpotPosition)
	putString(rec, "notes", st.Notes)
	return rec
}

// Apply functions copy a merged record back onto an entity. Only columns
// present in the record are written; a null column clears the field.

func applyString(rec domain.Record, col string, dst *string) {
	if v, ok := rec.Get(col); ok {
		*dst = v.Text()
	}
}

func applyFloat(rec domain.Record, col string, dst **float64) {
	v, ok := rec.Get(col)
	if !ok {
		return
	}
	if v.IsNull() {
		*dst = nil
		return
	}
	if f, ok := rec.Number(col); ok {
		*dst = &f
	}
}

func applyLocationRecord(l *domain.Location, rec domain.Record) {
	applyString(rec, "country", &l.Country)
	applyString(rec, "province", &l.Province)
	applyString(rec, "district", &l.District)
	applyString(rec, "village", &l.Village)
	applyString(rec, "site_name", &l.SiteName)
	applyFloat(rec, "latitude", &l.Latitude)
	applyFloat(rec, "longitude", &l.Longitude)
	applyFloat(rec, "altitude", &l.Altitude)
	applyString(rec, "habitat_description", &l.HabitatDescription)
}

func applyTaxonomyRecord(t *domain.Taxonomy, rec domain.Record) {
	applyString(rec, "kingdom", &t.Kingdom)
	applyString(rec, "phylum", &t.Phylum)
	applyString(rec, "class", &t.Class)
	applyString(rec, "order_name", &t.OrderName)
	applyString(rec, "family", &t.Family)
	applyString(rec, "genus", &t.Genus)
	applyString(rec, "species", &t.Species)
	applyString(rec, "scientific_name", &t.ScientificName)
	applyString(rec, "common_name", &t.CommonName)
}

func applyHostRecord(h *domain.Host, rec domain.Record) {
	applyString(rec, "source_id", &h.SourceID)
	if v, ok := rec.Get("host_type"); ok {
		h.HostType = domain.HostType(v.Text())
	}
	applyString(rec, "bag_id", &h.BagID)
	applyString(rec, "field_id", &h.FieldID)
	applyString(rec, "collection_id", &h.CollectionID)
	if _, ok := rec.Get("capture_date"); ok {
		if d, ok := rec.Date("capture_date"); ok {
			h.CaptureDate = &d
		} else {
			h.CaptureDate = nil
		}
	}
	applyString(rec, "capture_time", &h.CaptureTime)
	applyString(rec, "trap_type", &h.TrapType)
	applyString(rec, "collectors", &h.Collectors)
	applyString(rec, "sex", &h.Sex)
	applyString(rec, "status", &h.Status)
	applyString(rec, "age", &h.Age)
	applyString(rec, "ring_no", &h.RingNo)
	applyString(rec, "recapture", &h.Recapture)
	applyFloat(rec, "weight_g", &h.WeightG)
	applyFloat(rec, "forearm_mm", &h.ForearmMM)
	applyString(rec, "ecology", &h.Ecology)
	applyString(rec, "interface_type", &h.InterfaceType)
	applyString(rec, "use_for", &h.UseFor)
	applyString(rec, "notes", &h.Notes)
}

func applyEnvSampleRecord(e *domain.EnvironmentalSample, rec domain.Record) {
	applyString(rec, "source_id", &e.SourceID)
	applyString(rec, "pool_id", &e.PoolID)
}

func applySampleRecord(s *domain.Sample, rec domain.Record) {
	applyString(rec, "source_id", &s.SourceID)
	applyString(rec, "sample_origin", &s.SampleOrigin)
	if _, ok := rec.Get("collection_date"); ok {
		if d, ok := rec.Date("collection_date"); ok {
			s.CollectionDate = &d
		} else {
			s.CollectionDate = nil
		}
	}
	applyString(rec, "saliva_id", &s.SalivaID)
	applyString(rec, "anal_id", &s.AnalID)
	applyString(rec, "urine_id", &s.UrineID)
	applyString(rec, "ecto_id", &s.EctoID)
	applyString(rec, "blood_id", &s.BloodID)
	applyString(rec, "plasma_id", &s.PlasmaID)
	applyString(rec, "tissue_id", &s.TissueID)
	applyString(rec, "tissue_sample_type", &s.TissueSampleType)
	applyString(rec, "intestine_id", &s.IntestineID)
	applyString(rec, "adipose_id", &s.AdiposeID)
	applyString(rec, "remark", &s.Remark)
}

func applyScreeningRecord(sc *domain.Screening, rec domain.Record) {
	applyString(rec, "tested_sample_id", &sc.TestedSampleID)
	applyString(rec, "sample_type", &sc.SampleType)
	applyString(rec, "test_type", &sc.TestType)
	if _, ok := rec.Get("screening_date"); ok {
		if d, ok := rec.Date("screening_date"); ok {
			sc.ScreeningDate = &d
		} else {
			sc.ScreeningDate = nil
		}
	}
	applyString(rec, "screening_method", &sc.ScreeningMethod)
	applyString(rec, "pan_corona", &sc.PanCorona)
	applyString(rec, "hantavirus", &sc.Hantavirus)
	applyString(rec, "coronavirus", &sc.Coronavirus)
	applyString(rec, "other_virus", &sc.OtherVirus)
	applyString(rec, "result", &sc.Result)
	applyString(rec, "notes", &sc.Notes)
}

func applyStorageRecord(st *domain.Storage, rec domain.Record) {
	applyString(rec, "sample_tube_id", &st.SampleTubeID)
	applyString(rec, "storage_unit_id", &st.StorageUnitID)
	applyString(rec, "rack_position", &st.RackPosition)
	applyString(rec, "spot_position", &st.SpotPosition)
	applyString(rec, "notes", &st.Notes)
}
