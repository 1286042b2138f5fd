// Command virolink imports field spreadsheets (exported as CSV) into the
// virolink store, one atomic transaction per file, and prints the resulting
// import report.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"virolink/internal/archive"
	"virolink/internal/config"
	"virolink/internal/core"
	"virolink/internal/importer"
	"virolink/internal/metrics"
	"virolink/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("virolink", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath string
		entityName string
		sourceID   string
	)
	fs.StringVar(&configPath, "config", "", "path to config yaml (default virolink.yaml)")
	fs.StringVar(&entityName, "entity", "", "entity type of the sheet: host|sample|screening|storage|location|taxonomy|environmental_sample")
	fs.StringVar(&sourceID, "source", "", "source file id recorded in the report (default: file name)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintln(stderr, "usage: virolink -entity <type> [flags] <sheet.csv> [more.csv ...]")
		return 2
	}
	entity, err := entityForName(entityName)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logger, err := core.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	store, err := core.OpenPersistentStore(cfg.Storage, importer.DefaultRulesEngine())
	if err != nil {
		logger.Error("open store", zap.Error(err))
		return 1
	}
	arch, err := core.OpenArchive(ctx, cfg.Archive)
	if err != nil {
		logger.Error("open archive", zap.Error(err))
		return 1
	}

	recorder := metrics.Recorder(metrics.Nop{})
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		prom, err := metrics.NewPrometheusRecorder(registry)
		if err != nil {
			logger.Error("register metrics", zap.Error(err))
			return 1
		}
		recorder = prom
		go func() {
			handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
			if err := http.ListenAndServe(cfg.Metrics.Addr, handler); err != nil {
				logger.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
	}

	opts := []importer.Option{
		importer.WithLogger(logger),
		importer.WithMetrics(recorder),
	}
	if arch != nil {
		opts = append(opts, importer.WithArchive(arch))
	}
	if len(cfg.Conflict.FieldPolicies) > 0 {
		policies, err := policyOverrides(cfg.Conflict.FieldPolicies)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		opts = append(opts, importer.WithPolicies(policies))
	}
	coord := importer.NewCoordinator(store, opts...)

	code := 0
	for _, file := range files {
		id := sourceID
		if id == "" || len(files) > 1 {
			id = filepath.Base(file)
		}
		if err := importFile(ctx, coord, arch, logger, entity, file, id, stdout); err != nil {
			logger.Error("import failed", zap.String("file", file), zap.Error(err))
			code = 1
		}
	}
	return code
}

func importFile(ctx context.Context, coord *importer.Coordinator, arch archive.Store, logger *zap.Logger, entity domain.EntityType, path, sourceID string, stdout io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	rows, err := readRows(bytes.NewReader(data), entity)
	if err != nil {
		return err
	}
	if arch != nil {
		// Keep the raw sheet alongside the report so an audit can replay
		// exactly what was imported. Best effort.
		key := "sources/" + sourceID
		opts := archive.PutOptions{ContentType: "text/csv"}
		if _, err := arch.Put(ctx, key, bytes.NewReader(data), opts); err != nil {
			logger.Warn("archive source file", zap.String("key", key), zap.Error(err))
		}
	}
	report, runErr := coord.RunImport(ctx, sourceID, rows)
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	return runErr
}
