package importer

import (
	"context"
	"fmt"

	"virolink/pkg/domain"
)

// ParentExclusivityRule enforces that every sample derives from exactly one
// host or one environmental sample, never zero and never both.
func ParentExclusivityRule() domain.Rule {
	return parentExclusivityRule{}
}

type parentExclusivityRule struct{}

func (parentExclusivityRule) Name() string { return "parent_exclusivity" }

func (parentExclusivityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, s := range view.ListSamples() {
		hasHost := s.HostID != nil && *s.HostID != ""
		hasEnv := s.EnvSampleID != nil && *s.EnvSampleID != ""
		switch {
		case hasHost && hasEnv:
			res.Violations = append(res.Violations, parentViolation(s.ID,
				fmt.Sprintf("sample %s derives from both host %s and environmental sample %s", s.ID, *s.HostID, *s.EnvSampleID)))
		case !hasHost && !hasEnv:
			res.Violations = append(res.Violations, parentViolation(s.ID,
				fmt.Sprintf("sample %s has no parent", s.ID)))
		}
	}
	return res, nil
}

func parentViolation(id, msg string) domain.Violation {
	return domain.Violation{
		Rule:     "parent_exclusivity",
		Severity: domain.SeverityBlock,
		Message:  msg,
		Entity:   domain.EntitySample,
		EntityID: id,
	}
}
