package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"virolink/pkg/domain"
)

func TestReadRowsTagsCells(t *testing.T) {
	csv := strings.Join([]string{
		"Source_ID,host_type,weight_g,capture_date,notes",
		"B-0001,bat,45.5,2024-03-01,first capture",
		"B-0002,bat,,,",
	}, "\n")

	rows, err := readRows(strings.NewReader(csv), domain.EntityHost)
	if err != nil {
		t.Fatalf("readRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Index != 1 || rows[1].Index != 2 {
		t.Fatalf("row indexes = %d, %d", rows[0].Index, rows[1].Index)
	}
	rec := rows[0].Record
	if v, _ := rec.Get("source_id"); v.Kind != domain.KindString || v.Str != "B-0001" {
		t.Fatalf("source_id = %+v", v)
	}
	if v, _ := rec.Get("weight_g"); v.Kind != domain.KindNumber || v.Num != 45.5 {
		t.Fatalf("weight_g = %+v", v)
	}
	if v, _ := rec.Get("capture_date"); v.Kind != domain.KindDate {
		t.Fatalf("capture_date = %+v", v)
	}
	// Blank cells are explicit nulls, not absent columns.
	if v, ok := rows[1].Record.Get("weight_g"); !ok || !v.IsNull() {
		t.Fatalf("blank weight_g = %+v present=%v", v, ok)
	}
}

func TestEntityForName(t *testing.T) {
	cases := map[string]domain.EntityType{
		"host":    domain.EntityHost,
		"Hosts":   domain.EntityHost,
		"env":     domain.EntityEnvironmentalSample,
		"storage": domain.EntityStorage,
	}
	for name, want := range cases {
		got, err := entityForName(name)
		if err != nil {
			t.Fatalf("entityForName(%q): %v", name, err)
		}
		if got != want {
			t.Fatalf("entityForName(%q) = %s, want %s", name, got, want)
		}
	}
	if _, err := entityForName("virus"); err == nil {
		t.Fatal("expected error for unknown entity")
	}
}

func TestCLIImportsSheet(t *testing.T) {
	t.Setenv("VIROLINK_STORAGE_DRIVER", "memory")
	t.Setenv("VIROLINK_ARCHIVE_DRIVER", "none")
	t.Setenv("VIROLINK_LOG_LEVEL", "error")

	dir := t.TempDir()
	sheet := filepath.Join(dir, "hosts.csv")
	csv := strings.Join([]string{
		"source_id,host_type,sex,country,province",
		"B-0001,bat,Female,Cambodia,Kampot",
	}, "\n")
	if err := os.WriteFile(sheet, []byte(csv), 0o600); err != nil {
		t.Fatalf("write sheet: %v", err)
	}

	var stdout, stderr bytes.Buffer
	code := cli([]string{"-entity", "host", sheet}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("cli exit = %d, stderr: %s", code, stderr.String())
	}

	var report domain.ImportReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v\noutput: %s", err, stdout.String())
	}
	if !report.Committed {
		t.Fatalf("report not committed: %+v", report)
	}
	if report.SourceFileID != "hosts.csv" {
		t.Fatalf("source file id = %q", report.SourceFileID)
	}
	if got := report.Created[domain.EntityHost]; got != 1 {
		t.Fatalf("created hosts = %d, want 1", got)
	}
}

func TestPolicyOverrides(t *testing.T) {
	policies, err := policyOverrides(map[string]string{"host.notes": "prefer_existing"})
	if err != nil {
		t.Fatalf("policyOverrides: %v", err)
	}
	if got := policies[domain.EntityHost].For("notes"); got != domain.PolicyPreferExisting {
		t.Fatalf("host.notes policy = %s", got)
	}
	// Built-in policies for other fields survive an override.
	if got := policies[domain.EntityHost].For("sex"); got != domain.PolicyFlagOnly {
		t.Fatalf("host.sex policy = %s", got)
	}
	for _, key := range []string{"notes", "virus.notes", "host.notes=maybe"} {
		bad := map[string]string{key: "overwrite"}
		if key == "host.notes=maybe" {
			bad = map[string]string{"host.notes": "maybe"}
		}
		if _, err := policyOverrides(bad); err == nil {
			t.Fatalf("expected error for %q", key)
		}
	}
}

func TestCLIRejectsMissingArguments(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := cli(nil, &stdout, &stderr); code != 2 {
		t.Fatalf("exit = %d, want 2", code)
	}
	if code := cli([]string{"-entity", "virus", "sheet.csv"}, &stdout, &stderr); code != 2 {
		t.Fatalf("exit = %d, want 2 for unknown entity", code)
	}
}
