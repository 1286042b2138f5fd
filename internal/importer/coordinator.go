// Package importer coordinates spreadsheet imports: it resolves each raw row
// against the entity index, merges it under the conflict policies, links it
// into the relationship graph, and commits the whole file atomically.
package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"virolink/internal/archive"
	"virolink/internal/conflict"
	"virolink/internal/linkgraph"
	"virolink/internal/metrics"
	"virolink/internal/resolve"
	"virolink/pkg/domain"
)

// Coordinator runs import transactions against a persistent store. A global
// import lock serializes writers: the resolve-then-insert sequence is a
// check-then-act race under interleaved imports, so at most one file mutates
// the entity index at a time. Reads proceed concurrently through the store.
type Coordinator struct {
	store    domain.PersistentStore
	logger   *zap.Logger
	metrics  metrics.Recorder
	archive  archive.Store
	policies map[domain.EntityType]conflict.PolicySet
	specs    map[domain.EntityType][]resolve.KeySpec
	rels     []linkgraph.Relationship
	nowFn    func() time.Time

	importMu sync.Mutex
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder. Defaults to a no-op recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithArchive enables report archival. Reports are written as JSON under
// reports/<source-file-id>/<timestamp>.json after every import, committed or
// not.
func WithArchive(a archive.Store) Option {
	return func(c *Coordinator) { c.archive = a }
}

// WithPolicies overrides the per-entity conflict policies.
func WithPolicies(p map[domain.EntityType]conflict.PolicySet) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.policies = p
		}
	}
}

// WithKeySpecs overrides the per-entity match-key priority lists.
func WithKeySpecs(s map[domain.EntityType][]resolve.KeySpec) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.specs = s
		}
	}
}

// NewCoordinator constructs an import coordinator over the given store.
func NewCoordinator(store domain.PersistentStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		logger:   zap.NewNop(),
		metrics:  metrics.Nop{},
		policies: conflict.DefaultPolicies(),
		specs:    resolve.DefaultKeySpecs(),
		rels:     linkgraph.DefaultRelationships(),
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) policyFor(entity domain.EntityType) conflict.PolicySet {
	if p, ok := c.policies[entity]; ok {
		return p
	}
	return conflict.PolicySet{Default: domain.PolicyOverwrite}
}

func (c *Coordinator) specsFor(entity domain.EntityType) []resolve.KeySpec {
	return c.specs[entity]
}

// rowError attaches a row index to errors that do not carry one themselves,
// such as cardinality rejections from the link graph.
type rowError struct {
	index int
	err   error
}

func (e rowError) Error() string { return fmt.Sprintf("row %d: %v", e.index, e.err) }
func (e rowError) Unwrap() error { return e.err }

func rowIndexOf(err error) int {
	var re rowError
	if errors.As(err, &re) {
		return re.index
	}
	var amb domain.ResolutionAmbiguityError
	if errors.As(err, &amb) {
		return amb.RowIndex
	}
	var riv domain.ReferentialIntegrityError
	if errors.As(err, &riv) {
		return riv.RowIndex
	}
	return -1
}

// RunImport processes one source file as a single atomic unit. Either every
// resolved and linked entity persists, or the store is untouched and the
// report carries the triggering error in its failures.
func (c *Coordinator) RunImport(ctx context.Context, sourceFileID string, rows []domain.Row) (domain.ImportReport, error) {
	c.importMu.Lock()
	defer c.importMu.Unlock()

	start := c.nowFn()
	report := domain.NewImportReport(sourceFileID)
	report.StartedAt = start

	logger := c.logger.With(zap.String("source_file_id", sourceFileID))
	logger.Info("import started", zap.Int("rows", len(rows)))

	var graph *linkgraph.Graph
	_, err := c.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		graph = linkgraph.New(c.rels)
		if err := c.seedGraph(graph, tx.Snapshot()); err != nil {
			return err
		}
		sess := &session{coord: c, tx: tx, graph: graph, report: &report}
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := sess.processRow(row); err != nil {
				return err
			}
		}
		return nil
	})

	report.FinishedAt = c.nowFn()
	if err != nil {
		report.Reset()
		report.AddFailure(rowIndexOf(err), err.Error())
		if graph != nil {
			graph.Discard()
		}
		logger.Warn("import rolled back", zap.Error(err))
	} else {
		report.Committed = true
		graph.Commit()
		logger.Info("import committed",
			zap.Int("created", report.TotalCreated()),
			zap.Int("updated", report.TotalUpdated()),
			zap.Int("conflicts", len(report.Conflicts)),
			zap.Int("failures", len(report.Failures)))
	}
	c.metrics.Observe(ctx, "run_import", err == nil, report.FinishedAt.Sub(start))
	c.archiveReport(ctx, logger, report)
	return report, err
}

// archiveReport stores the report durably when an archive is configured.
// Best effort: an archive failure never fails the import itself.
func (c *Coordinator) archiveReport(ctx context.Context, logger *zap.Logger, report domain.ImportReport) {
	if c.archive == nil {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		logger.Warn("report serialization failed", zap.Error(err))
		return
	}
	key := fmt.Sprintf("reports/%s/%s.json", report.SourceFileID, report.FinishedAt.Format("20060102T150405.000000000Z"))
	if _, err := c.archive.Put(ctx, key, bytes.NewReader(raw), archive.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"source_file_id": report.SourceFileID},
	}); err != nil {
		logger.Warn("report archival failed", zap.String("key", key), zap.Error(err))
	}
}
