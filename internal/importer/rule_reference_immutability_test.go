package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"virolink/internal/infra/persistence/memory"
	"virolink/pkg/domain"
)

func seedReferencedLocation(t *testing.T, store *memory.Store) string {
	t.Helper()
	ctx := context.Background()
	var locID string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		loc, err := tx.CreateLocation(domain.Location{Country: "Cambodia", Province: "Kampot", SiteName: "Cave A"})
		if err != nil {
			return err
		}
		locID = loc.ID
		_, err = tx.CreateHost(domain.Host{SourceID: "B-0001", HostType: domain.HostTypeBat, LocationID: &loc.ID})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return locID
}

func TestReferencedLocationRenameBlocked(t *testing.T) {
	store := memory.NewStore(DefaultRulesEngine())
	locID := seedReferencedLocation(t, store)

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateLocation(locID, func(l *domain.Location) error {
			l.Country = "Laos"
			return nil
		})
		return err
	})
	var rve domain.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("err = %v, want rule violation", err)
	}
	// The error text names the rule and the offending field for the report.
	if !strings.Contains(err.Error(), "reference_immutability") || !strings.Contains(err.Error(), "country") {
		t.Fatalf("error text %q does not name the violation", err.Error())
	}
	loc, ok := store.GetLocation(locID)
	if !ok {
		t.Fatal("location missing after rollback")
	}
	if loc.Country != "Cambodia" {
		t.Fatalf("country = %q after rollback, want Cambodia", loc.Country)
	}
}

func TestReferencedLocationCoordinateBackfillAllowed(t *testing.T) {
	store := memory.NewStore(DefaultRulesEngine())
	locID := seedReferencedLocation(t, store)

	lat := 10.61
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateLocation(locID, func(l *domain.Location) error {
			l.Latitude = &lat
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("coordinate backfill: %v", err)
	}
	loc, _ := store.GetLocation(locID)
	if loc.Latitude == nil || *loc.Latitude != lat {
		t.Fatalf("latitude = %v, want %v", loc.Latitude, lat)
	}
}

func TestUnreferencedLocationRenameAllowed(t *testing.T) {
	store := memory.NewStore(DefaultRulesEngine())
	ctx := context.Background()

	var locID string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		loc, err := tx.CreateLocation(domain.Location{Country: "Cambodia", Province: "Kampot", SiteName: "Cave B"})
		locID = loc.ID
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateLocation(locID, func(l *domain.Location) error {
			l.SiteName = "Cave B (resurveyed)"
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("rename of unreferenced location: %v", err)
	}
}
