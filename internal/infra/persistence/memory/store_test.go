package memory

import (
	"context"
	"errors"
	"testing"

	"virolink/pkg/domain"
)

func TestTransactionCommit(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	var hostID string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		h, err := tx.CreateHost(domain.Host{SourceID: "BAT001", HostType: domain.HostTypeBat})
		if err != nil {
			return err
		}
		hostID = h.ID
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if hostID == "" {
		t.Fatal("create did not assign an id")
	}
	h, ok := store.GetHost(hostID)
	if !ok {
		t.Fatal("committed host not found")
	}
	if h.CreatedAt.IsZero() || h.UpdatedAt.IsZero() {
		t.Fatal("timestamps not set on create")
	}
}

func TestTransactionRollbackOnError(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	boom := errors.New("boom")
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateHost(domain.Host{SourceID: "BAT001", HostType: domain.HostTypeBat}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if got := len(store.ListHosts()); got != 0 {
		t.Fatalf("hosts after rollback = %d, want 0", got)
	}
}

type blockAllRule struct{}

func (blockAllRule) Name() string { return "block_all" }

func (blockAllRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, c := range changes {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "block_all",
			Severity: domain.SeverityBlock,
			Entity:   c.Entity,
		})
	}
	return res, nil
}

func TestTransactionRollbackOnBlockingViolation(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockAllRule{})
	store := NewStore(engine)

	res, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateSample(domain.Sample{SourceID: "S1", SampleOrigin: "bat"})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("err = %v, want RuleViolationError", err)
	}
	if !res.HasBlocking() {
		t.Fatal("result should carry the blocking violation")
	}
	if got := len(store.ListSamples()); got != 0 {
		t.Fatalf("samples after blocked commit = %d, want 0", got)
	}
}

func TestUpdateHostMutator(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	var id string
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		h, err := tx.CreateHost(domain.Host{SourceID: "BAT001", HostType: domain.HostTypeBat})
		id = h.ID
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateHost(id, func(h *domain.Host) error {
			h.FieldID = "F123"
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	h, _ := store.GetHost(id)
	if h.FieldID != "F123" {
		t.Fatalf("field id = %q, want F123", h.FieldID)
	}
	if !h.UpdatedAt.After(h.CreatedAt) && !h.UpdatedAt.Equal(h.CreatedAt) {
		t.Fatal("update did not touch UpdatedAt")
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateHost("missing", func(h *domain.Host) error { return nil })
		return err
	}); err == nil {
		t.Fatal("updating a missing host must fail")
	}
}

func TestSnapshotVisibilityWithinTransaction(t *testing.T) {
	store := NewStore(nil)

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		h, err := tx.CreateHost(domain.Host{SourceID: "BAT001", HostType: domain.HostTypeBat})
		if err != nil {
			return err
		}
		// Later rows in the same file see entities created earlier in it.
		if _, ok := tx.Snapshot().FindHost(h.ID); !ok {
			t.Fatal("snapshot does not see uncommitted create")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	store := NewStore(nil)
	weight := 45.5
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		h, err := tx.CreateHost(domain.Host{SourceID: "BAT001", HostType: domain.HostTypeBat, WeightG: &weight})
		if err != nil {
			return err
		}
		hostID := h.ID
		sm, err := tx.CreateSample(domain.Sample{SourceID: "BAT001", SampleOrigin: "bat", HostID: &hostID})
		if err != nil {
			return err
		}
		_, err = tx.CreateStorage(domain.Storage{SampleID: sm.ID, SampleTubeID: "T1", Current: true})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	snap := store.ExportState()

	other := NewStore(nil)
	other.ImportState(snap)
	if got := len(other.ListHosts()); got != 1 {
		t.Fatalf("hosts after import = %d, want 1", got)
	}
	if got := len(other.ListSamples()); got != 1 {
		t.Fatalf("samples after import = %d, want 1", got)
	}
	if got := len(other.ListStorages()); got != 1 {
		t.Fatalf("storages after import = %d, want 1", got)
	}

	// Snapshots are deep copies.
	for k, h := range snap.Hosts {
		*h.WeightG = 99
		snap.Hosts[k] = h
	}
	if h := other.ListHosts()[0]; h.WeightG == nil || *h.WeightG != 45.5 {
		t.Fatal("imported state shares memory with the snapshot")
	}
}

func TestViewIsolation(t *testing.T) {
	store := NewStore(nil)
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateTaxonomy(domain.Taxonomy{ScientificName: "Rousettus leschenaultii", Species: "leschenaultii"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := store.View(context.Background(), func(v domain.TransactionView) error {
		if got := len(v.ListTaxonomies()); got != 1 {
			t.Fatalf("taxonomies in view = %d, want 1", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
