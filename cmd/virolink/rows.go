package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"virolink/pkg/domain"
)

// Columns that carry numbers or dates in the field spreadsheets. Everything
// else stays a string so identifiers like "007" keep their leading zeros.
var (
	numberColumns = map[string]struct{}{
		"weight_g": {}, "forearm_mm": {},
		"latitude": {}, "longitude": {}, "altitude": {},
	}
	dateColumns = map[string]struct{}{
		"capture_date": {}, "collection_date": {}, "screening_date": {},
	}
)

var rowDateLayouts = []string{"2006-01-02", "02/01/2006", "2006/01/02", "2-Jan-2006", "2 Jan 2006"}

// readRows parses one CSV sheet into tagged rows for the given entity. The
// first line is the header; row indexes are 1-based over data lines, matching
// how lab staff count spreadsheet rows.
func readRows(r io.Reader, entity domain.EntityType) ([]domain.Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, col := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(col))
	}

	var rows []domain.Row
	index := 0
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", index+1, err)
		}
		index++
		rec := make(domain.Record, len(columns))
		for i, raw := range fields {
			if i >= len(columns) || columns[i] == "" {
				continue
			}
			rec[columns[i]] = cellValue(columns[i], raw)
		}
		rows = append(rows, domain.Row{Index: index, Entity: entity, Record: rec})
	}
	return rows, nil
}

func cellValue(column, raw string) domain.Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return domain.NullValue()
	}
	if _, ok := numberColumns[column]; ok {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return domain.NumberValue(f)
		}
	}
	if _, ok := dateColumns[column]; ok {
		for _, layout := range rowDateLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return domain.DateValue(t)
			}
		}
	}
	return domain.StringValue(trimmed)
}

// entityForName maps a -entity flag value to a domain entity type.
func entityForName(name string) (domain.EntityType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "location", "locations":
		return domain.EntityLocation, nil
	case "taxonomy", "taxonomies":
		return domain.EntityTaxonomy, nil
	case "host", "hosts":
		return domain.EntityHost, nil
	case "environmental_sample", "environmental_samples", "env":
		return domain.EntityEnvironmentalSample, nil
	case "sample", "samples":
		return domain.EntitySample, nil
	case "screening", "screenings":
		return domain.EntityScreening, nil
	case "storage", "storages":
		return domain.EntityStorage, nil
	default:
		return "", fmt.Errorf("unknown entity %q", name)
	}
}
