package importer

import (
	"context"
	"fmt"

	"virolink/pkg/domain"
)

// StorageCurrentRule enforces the append-only storage history invariant: a
// sample tube has at most one current storage row at any time.
func StorageCurrentRule() domain.Rule {
	return storageCurrentRule{}
}

type storageCurrentRule struct{}

func (storageCurrentRule) Name() string { return "storage_current" }

func (storageCurrentRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	current := make(map[string]string)
	for _, st := range view.ListStorages() {
		if !st.Current || st.SampleTubeID == "" {
			continue
		}
		if prev, dup := current[st.SampleTubeID]; dup {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "storage_current",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("storage rows %s and %s both mark tube %q current", prev, st.ID, st.SampleTubeID),
				Entity:   domain.EntityStorage,
				EntityID: st.ID,
			})
			continue
		}
		current[st.SampleTubeID] = st.ID
	}
	return res, nil
}

// DefaultRulesEngine returns a rules engine with every import invariant
// registered.
func DefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(ParentExclusivityRule())
	engine.Register(ReferentialIntegrityRule())
	engine.Register(UniqueKeysRule())
	engine.Register(StorageCurrentRule())
	engine.Register(ReferenceImmutabilityRule())
	return engine
}
