package postgres

// schemaDDL declares the relational shape of the domain for reporting tools
// that query Postgres directly. The store itself reads and writes only the
// snapshot table; these tables document constraints and hold mirrored rows
// populated by downstream sync jobs.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		country TEXT NOT NULL DEFAULT '',
		province TEXT NOT NULL DEFAULT '',
		district TEXT NOT NULL DEFAULT '',
		village TEXT NOT NULL DEFAULT '',
		site_name TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		altitude DOUBLE PRECISION,
		habitat_description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS taxonomies (
		id TEXT PRIMARY KEY,
		scientific_name TEXT NOT NULL,
		species TEXT NOT NULL DEFAULT '',
		genus TEXT NOT NULL DEFAULT '',
		family TEXT NOT NULL DEFAULT '',
		order_name TEXT NOT NULL DEFAULT '',
		class TEXT NOT NULL DEFAULT '',
		phylum TEXT NOT NULL DEFAULT '',
		kingdom TEXT NOT NULL DEFAULT '',
		common_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (scientific_name)
	)`,
	`CREATE TABLE IF NOT EXISTS hosts (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		host_type TEXT NOT NULL,
		bag_id TEXT NOT NULL DEFAULT '',
		field_id TEXT NOT NULL DEFAULT '',
		collection_id TEXT NOT NULL DEFAULT '',
		location_id TEXT REFERENCES locations(id),
		taxonomy_id TEXT REFERENCES taxonomies(id),
		capture_date DATE,
		sex TEXT NOT NULL DEFAULT '',
		age TEXT NOT NULL DEFAULT '',
		weight_g DOUBLE PRECISION,
		forearm_mm DOUBLE PRECISION,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (source_id, host_type)
	)`,
	`CREATE TABLE IF NOT EXISTS environmental_samples (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		pool_id TEXT NOT NULL DEFAULT '',
		location_id TEXT REFERENCES locations(id),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (source_id)
	)`,
	`CREATE TABLE IF NOT EXISTS samples (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		sample_origin TEXT NOT NULL,
		host_id TEXT REFERENCES hosts(id),
		env_sample_id TEXT REFERENCES environmental_samples(id),
		location_id TEXT REFERENCES locations(id),
		collection_date DATE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (source_id, sample_origin),
		CHECK ((host_id IS NULL) <> (env_sample_id IS NULL))
	)`,
	`CREATE TABLE IF NOT EXISTS screenings (
		id TEXT PRIMARY KEY,
		sample_id TEXT REFERENCES samples(id),
		env_sample_id TEXT REFERENCES environmental_samples(id),
		tested_sample_id TEXT NOT NULL DEFAULT '',
		test_type TEXT NOT NULL DEFAULT '',
		screening_date DATE,
		result TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS storages (
		id TEXT PRIMARY KEY,
		sample_id TEXT NOT NULL REFERENCES samples(id),
		sample_tube_id TEXT NOT NULL,
		storage_unit_id TEXT NOT NULL DEFAULT '',
		rack_position TEXT NOT NULL DEFAULT '',
		spot_position TEXT NOT NULL DEFAULT '',
		current BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS storages_one_current
		ON storages (sample_tube_id) WHERE current`,
}
