package main

import (
	"fmt"
	"strings"

	"virolink/internal/conflict"
	"virolink/pkg/domain"
)

// policyOverrides applies "entity.field: policy" config entries on top of the
// built-in per-entity policy sets.
func policyOverrides(overrides map[string]string) (map[domain.EntityType]conflict.PolicySet, error) {
	policies := conflict.DefaultPolicies()
	for key, name := range overrides {
		entityName, field, ok := strings.Cut(key, ".")
		if !ok || field == "" {
			return nil, fmt.Errorf("conflict policy key %q: want entity.field", key)
		}
		entity, err := entityForName(entityName)
		if err != nil {
			return nil, fmt.Errorf("conflict policy key %q: %w", key, err)
		}
		pol, err := policyForName(name)
		if err != nil {
			return nil, fmt.Errorf("conflict policy key %q: %w", key, err)
		}
		policies[entity] = policies[entity].With(strings.ToLower(field), pol)
	}
	return policies, nil
}

func policyForName(name string) (domain.ConflictPolicy, error) {
	switch domain.ConflictPolicy(strings.ToLower(strings.TrimSpace(name))) {
	case domain.PolicyOverwrite:
		return domain.PolicyOverwrite, nil
	case domain.PolicyPreferExisting:
		return domain.PolicyPreferExisting, nil
	case domain.PolicyPreferNonNull:
		return domain.PolicyPreferNonNull, nil
	case domain.PolicyFlagOnly:
		return domain.PolicyFlagOnly, nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q", name)
	}
}
